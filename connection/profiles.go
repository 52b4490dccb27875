package connection

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/spy-duck/duck-tui/client"
	"github.com/spy-duck/duck-tui/query"
	"github.com/spy-duck/duck-tui/uistate"
)

// ProxyBackend lists and selects proxies.
type ProxyBackend interface {
	Proxies(ctx context.Context) (client.Proxies, error)
	ForceUpdateProxies(ctx context.Context) error
	SetCurrentProxy(ctx context.Context, group, proxy string) error
}

// Selection is the chosen group and proxy.
type Selection struct {
	Group string
	Proxy string
}

// Selector keeps the proxy list and the user's selection. The selection is
// persisted in the UI state file and reverted when the backend rejects it.
type Selector struct {
	backend ProxyBackend
	proxies *query.Query[client.Proxies]
	store   *uistate.Store
	notify  Notifier
	log     logrus.FieldLogger

	mu  sync.RWMutex
	sel Selection
}

func NewSelector(b ProxyBackend, store *uistate.Store, notify Notifier, log logrus.FieldLogger) *Selector {
	if notify == nil {
		notify = Discard
	}
	st := store.Get()
	return &Selector{
		backend: b,
		proxies: query.New(b.Proxies),
		store:   store,
		notify:  notify,
		log:     log.WithField("component", "proxies"),
		sel:     Selection{Group: st.SelectedGroup, Proxy: st.SelectedProxy},
	}
}

// Selected returns the current selection.
func (s *Selector) Selected() Selection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sel
}

// Groups returns the cached visible groups without I/O.
func (s *Selector) Groups() []client.ProxyGroup {
	p, _ := s.proxies.Peek()
	return p.Visible()
}

// Initialized reports whether proxies were ever seen on this machine.
func (s *Selector) Initialized() bool {
	return s.store.Get().ProxiesInitialized
}

// MarkInitialized records that the empty-list loader should no longer show.
func (s *Selector) MarkInitialized() error {
	return s.store.Update(func(st *uistate.State) { st.ProxiesInitialized = true })
}

// Refresh re-reads the proxy list. Seeing at least one visible group marks
// the list as initialized.
func (s *Selector) Refresh(ctx context.Context) ([]client.ProxyGroup, error) {
	p, err := s.proxies.Refetch(ctx)
	if err != nil {
		return s.Groups(), err
	}
	groups := p.Visible()
	if len(groups) > 0 && !s.Initialized() {
		if err := s.MarkInitialized(); err != nil {
			s.log.WithError(err).Warn("persist proxies initialized")
		}
	}
	return groups, nil
}

// ForceUpdate asks the core to reload its providers.
func (s *Selector) ForceUpdate(ctx context.Context) error {
	return s.backend.ForceUpdateProxies(ctx)
}

// Select switches the active proxy. The new selection is visible at once
// and restored to the previous one if the backend call fails.
func (s *Selector) Select(ctx context.Context, group, proxy string) error {
	err := query.Optimistic(ctx,
		func() func() {
			prev := s.set(Selection{Group: group, Proxy: proxy})
			return func() { s.set(prev) }
		},
		func(ctx context.Context) error {
			return s.backend.SetCurrentProxy(ctx, group, proxy)
		},
	)
	if err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{"group": group, "proxy": proxy}).Warn("proxy switch failed")
		s.notify.Notify(LevelError, "Could not switch proxy: "+err.Error())
		return err
	}
	return nil
}

// HandleEvent applies a proxy change made outside this client.
func (s *Selector) HandleEvent(ev any) bool {
	e, ok := ev.(client.ProxyChangedEvent)
	if !ok {
		return false
	}
	s.set(Selection{Group: e.Group, Proxy: e.Proxy})
	return true
}

// set stores sel and returns the selection it replaced.
func (s *Selector) set(sel Selection) Selection {
	s.mu.Lock()
	prev := s.sel
	s.sel = sel
	s.mu.Unlock()
	if err := s.store.Update(func(st *uistate.State) {
		st.SelectedGroup = sel.Group
		st.SelectedProxy = sel.Proxy
	}); err != nil {
		s.log.WithError(err).Warn("persist selection")
	}
	return prev
}
