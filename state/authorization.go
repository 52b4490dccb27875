package state

import (
	"sync"

	"github.com/spy-duck/duck-tui/uistate"
)

// Authorization remembers whether the user has completed sign-in. The flag
// survives restarts through the ui-state file.
type Authorization struct {
	mu    sync.RWMutex
	store *uistate.Store
	ok    bool
}

// NewAuthorization seeds the flag from the persisted UI state.
func NewAuthorization(store *uistate.Store) *Authorization {
	return &Authorization{store: store, ok: store.Get().Authorized}
}

func (a *Authorization) IsAuthorized() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.ok
}

// Set stores the flag in memory and on disk. The in-memory value is updated
// even when persisting fails.
func (a *Authorization) Set(ok bool) error {
	a.mu.Lock()
	a.ok = ok
	a.mu.Unlock()
	return a.store.Update(func(s *uistate.State) { s.Authorized = ok })
}
