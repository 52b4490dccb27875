// Package uistate persists the small amount of local UI state the client
// remembers between sessions (last selected proxy, dismissed server message,
// access token and so on) in <profileDir>/ui-state.yaml.
package uistate

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

const filename = "ui-state.yaml"

// State is the persisted document.
type State struct {
	SelectedGroup      string `yaml:"selected_group,omitempty"`
	SelectedProxy      string `yaml:"selected_proxy,omitempty"`
	ModeTab            string `yaml:"mode_tab,omitempty"`
	ProxiesInitialized bool   `yaml:"proxies_initialized"`
	HiddenMessageID    string `yaml:"hidden_message_id,omitempty"`
	AccessToken        string `yaml:"access_token,omitempty"`
	NewUI              *bool  `yaml:"new_ui,omitempty"`
	Authorized         bool   `yaml:"authorized"`
}

// IsNewUI reports the layout flag; it defaults to true when never set.
func (s State) IsNewUI() bool {
	if s.NewUI == nil {
		return true
	}
	return *s.NewUI
}

// Store guards the in-memory copy and writes every update through to disk.
type Store struct {
	mu   sync.Mutex
	path string
	st   State
}

// Open loads the state file from dir. A missing or unreadable file yields
// an empty state; the file is created on the first Update.
func Open(dir string) *Store {
	s := &Store{path: filepath.Join(dir, filename)}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return s
	}
	var st State
	if err := yaml.Unmarshal(data, &st); err != nil {
		return s
	}
	s.st = st
	return s
}

// Get returns a copy of the current state.
func (s *Store) Get() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st
}

// Update applies fn to the state and saves it. The in-memory copy is only
// replaced when the write succeeds.
func (s *Store) Update(fn func(*State)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.st
	fn(&next)
	if err := s.write(next); err != nil {
		return err
	}
	s.st = next
	return nil
}

func (s *Store) write(st State) error {
	if s.path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	data, err := yaml.Marshal(st)
	if err != nil {
		return fmt.Errorf("marshal ui state: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write ui state: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace ui state: %w", err)
	}
	return nil
}

// Memory returns a store that never touches the filesystem.
func Memory(st State) *Store {
	return &Store{st: st}
}
