package connection

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/spy-duck/duck-tui/client"
	"github.com/spy-duck/duck-tui/query"
)

var (
	// ErrServiceNotReady means the installed service never reported ready
	// within the wait bounds.
	ErrServiceNotReady = errors.New("service did not become ready")
	// ErrInstallFailed wraps a failed install command.
	ErrInstallFailed = errors.New("service installation failed")
)

// ServiceBackend manages the privileged helper and the core process.
type ServiceBackend interface {
	RunningMode(ctx context.Context) (client.RunningMode, error)
	IsServiceAvailable(ctx context.Context) (bool, error)
	InstallService(ctx context.Context) error
	UninstallService(ctx context.Context) error
	RestartCore(ctx context.Context) error
	StopCore(ctx context.Context) error
}

// ServiceOptions bound the readiness wait after installation.
type ServiceOptions struct {
	PollInterval time.Duration
	Timeout      time.Duration
	MaxAttempts  int
}

// DefaultServiceOptions poll once a second for at most 90 seconds.
var DefaultServiceOptions = ServiceOptions{
	PollInterval: time.Second,
	Timeout:      90 * time.Second,
	MaxAttempts:  90,
}

// ServiceFlow installs and removes the helper service.
type ServiceFlow struct {
	backend ServiceBackend
	opts    ServiceOptions
	running *query.Query[client.RunningMode]
	notify  Notifier
	log     logrus.FieldLogger
}

func NewServiceFlow(b ServiceBackend, opts ServiceOptions, notify Notifier, log logrus.FieldLogger) *ServiceFlow {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultServiceOptions.PollInterval
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultServiceOptions.Timeout
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultServiceOptions.MaxAttempts
	}
	if notify == nil {
		notify = Discard
	}
	return &ServiceFlow{
		backend: b,
		opts:    opts,
		running: query.New(b.RunningMode),
		notify:  notify,
		log:     log.WithField("component", "service"),
	}
}

// Available reports whether the core last ran under the service.
func (f *ServiceFlow) Available() bool {
	m, _ := f.running.Peek()
	return m == client.RunningService
}

// RunningMode returns the cached running mode.
func (f *ServiceFlow) RunningMode() client.RunningMode {
	m, _ := f.running.Peek()
	return m
}

// Refresh re-reads the running mode.
func (f *ServiceFlow) Refresh(ctx context.Context) (client.RunningMode, error) {
	return f.running.Refetch(ctx)
}

// Install installs the service, waits until it answers, restarts the core
// under it and refreshes the running mode.
func (f *ServiceFlow) Install(ctx context.Context) (bool, error) {
	f.log.Info("installing service")
	if err := f.backend.InstallService(ctx); err != nil {
		return false, fmt.Errorf("%w: %v", ErrInstallFailed, err)
	}
	if err := f.WaitReady(ctx); err != nil {
		return false, err
	}
	if err := f.backend.RestartCore(ctx); err != nil {
		return false, fmt.Errorf("restart core: %w", err)
	}
	if _, err := f.Refresh(ctx); err != nil {
		f.log.WithError(err).Warn("running mode refresh after install failed")
	}
	f.log.Info("service installed and core restarted")
	return true, nil
}

// WaitReady polls service availability every PollInterval until it reports
// ready, MaxAttempts checks were made, or Timeout elapsed. Cancelling ctx
// returns ctx.Err().
func (f *ServiceFlow) WaitReady(ctx context.Context) error {
	wctx, cancel := context.WithTimeout(ctx, f.opts.Timeout)
	defer cancel()

	for attempt := 1; ; attempt++ {
		ok, err := f.backend.IsServiceAvailable(wctx)
		if err == nil && ok {
			f.log.WithField("attempt", attempt).Debug("service ready")
			return nil
		}
		if err != nil {
			f.log.WithError(err).WithField("attempt", attempt).Debug("availability check failed")
		}
		if attempt >= f.opts.MaxAttempts {
			return fmt.Errorf("%w after %d attempts", ErrServiceNotReady, attempt)
		}

		t := time.NewTimer(f.opts.PollInterval)
		select {
		case <-t.C:
		case <-wctx.Done():
			t.Stop()
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("%w within %v", ErrServiceNotReady, f.opts.Timeout)
		}
	}
}

// Uninstall stops the core, removes the service and restarts the core as a
// sidecar. If any step fails it still tries to bring the core back.
func (f *ServiceFlow) Uninstall(ctx context.Context) error {
	err := f.uninstall(ctx)
	if err == nil {
		return nil
	}
	f.notify.Notify(LevelError, err.Error())
	f.log.WithError(err).Warn("uninstall failed, restarting core as sidecar")

	f.notify.Notify(LevelInfo, "Trying to run the core as a sidecar...")
	if rerr := f.backend.RestartCore(ctx); rerr != nil {
		f.notify.Notify(LevelError, rerr.Error())
		return errors.Join(err, fmt.Errorf("sidecar restart: %w", rerr))
	}
	if _, rerr := f.Refresh(ctx); rerr != nil {
		f.log.WithError(rerr).Warn("running mode refresh failed")
	}
	return err
}

func (f *ServiceFlow) uninstall(ctx context.Context) error {
	f.notify.Notify(LevelInfo, "Stopping core...")
	if err := f.backend.StopCore(ctx); err != nil {
		return fmt.Errorf("stop core: %w", err)
	}
	f.notify.Notify(LevelInfo, "Uninstalling service...")
	if err := f.backend.UninstallService(ctx); err != nil {
		return fmt.Errorf("uninstall service: %w", err)
	}
	f.notify.Notify(LevelSuccess, "Service uninstalled")
	f.notify.Notify(LevelInfo, "Restarting core...")
	if err := f.backend.RestartCore(ctx); err != nil {
		return fmt.Errorf("restart core: %w", err)
	}
	if _, err := f.Refresh(ctx); err != nil {
		return fmt.Errorf("refresh running mode: %w", err)
	}
	return nil
}
