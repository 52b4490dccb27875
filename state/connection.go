// Package state holds the process-wide observable stores shared by the TUI,
// the CLI and the connection controller.
//
// Stores are plain values created by the caller and passed to whoever needs
// them. They cache backend truth; the backend may overwrite them at any time
// through push events.
package state

import "sync"

// ConnectionState is the coarse connection phase shown by the UI.
type ConnectionState string

const (
	Disconnected ConnectionState = "disconnected"
	Connecting   ConnectionState = "connecting"
	Connected    ConnectionState = "connected"
)

// Valid reports whether s is one of the three known phases.
func (s ConnectionState) Valid() bool {
	switch s {
	case Disconnected, Connecting, Connected:
		return true
	}
	return false
}

func (s ConnectionState) String() string {
	if s == "" {
		return string(Disconnected)
	}
	return string(s)
}

// Listener is called after the stored value changed.
type Listener func(prev, next ConnectionState)

// Connection is the single source of truth for the connection phase.
// Transitions are not validated: any state may move to any other, and the
// last writer wins.
type Connection struct {
	mu        sync.RWMutex
	current   ConnectionState
	nextID    int
	listeners []subscription
}

type subscription struct {
	id int
	fn Listener
}

// NewConnection returns a store holding initial.
func NewConnection(initial ConnectionState) *Connection {
	if !initial.Valid() {
		initial = Disconnected
	}
	return &Connection{current: initial}
}

// Read returns the current phase.
func (c *Connection) Read() ConnectionState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

// Transition overwrites the current phase and returns the previous one.
// Subscribers are notified in registration order, outside the lock, only
// when the value actually changed.
func (c *Connection) Transition(next ConnectionState) ConnectionState {
	c.mu.Lock()
	prev := c.current
	c.current = next
	var fns []Listener
	if prev != next {
		fns = make([]Listener, 0, len(c.listeners))
		for _, l := range c.listeners {
			fns = append(fns, l.fn)
		}
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn(prev, next)
	}
	return prev
}

// Subscribe registers fn and returns a function that removes it.
func (c *Connection) Subscribe(fn Listener) (unsubscribe func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	id := c.nextID
	c.listeners = append(c.listeners, subscription{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			for i, l := range c.listeners {
				if l.id == id {
					c.listeners = append(c.listeners[:i], c.listeners[i+1:]...)
					return
				}
			}
		})
	}
}
