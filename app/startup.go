package app

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/spy-duck/duck-tui/client"
	"github.com/spy-duck/duck-tui/query"
)

const (
	handshakeRetries = 2 // three attempts in total
	handshakeDelay   = 500 * time.Millisecond
)

var handshakeStages = []client.UIStage{
	client.StageLoading,
	client.StageDomReady,
	client.StageResourcesLoaded,
}

type stageReporter interface {
	UpdateUIStage(ctx context.Context, stage client.UIStage) error
	NotifyUIReady(ctx context.Context) error
}

type clashPatcher interface {
	PatchClashConfig(ctx context.Context, payload map[string]any) error
}

// handshake reports every UI stage and then readiness. When all attempts
// fail, readiness is still announced once so the backend stops waiting.
func handshake(ctx context.Context, r stageReporter, delay time.Duration, log logrus.FieldLogger) error {
	attempt := 0
	err := query.Retry(ctx, handshakeRetries, delay, func(ctx context.Context) error {
		attempt++
		for _, st := range handshakeStages {
			if err := r.UpdateUIStage(ctx, st); err != nil {
				log.WithError(err).WithFields(logrus.Fields{"stage": st, "attempt": attempt}).Warn("ui stage")
				return err
			}
		}
		return r.NotifyUIReady(ctx)
	})
	if err == nil {
		log.WithField("attempt", attempt).Info("ui ready")
		return nil
	}
	if ctx.Err() != nil {
		return err
	}
	log.WithError(err).Warn("handshake failed, sending emergency ready")
	return r.NotifyUIReady(ctx)
}

// allowOrigins lets the listed web origins reach the core's controller.
func allowOrigins(ctx context.Context, p clashPatcher, origins []string) error {
	return p.PatchClashConfig(ctx, map[string]any{
		"external-controller-cors": map[string]any{
			"allow-private-network": true,
			"allow-origins":         origins,
		},
	})
}
