package state

import (
	"sync"
	"testing"

	"github.com/spy-duck/duck-tui/uistate"
)

// ---------------------------------------------------------------------------
// Connection
// ---------------------------------------------------------------------------

func TestNewConnection_InvalidInitialFallsBack(t *testing.T) {
	c := NewConnection("bogus")
	if got := c.Read(); got != Disconnected {
		t.Errorf("want %q, got %q", Disconnected, got)
	}
}

func TestTransition_AnyToAny(t *testing.T) {
	c := NewConnection(Disconnected)
	steps := []ConnectionState{Connected, Connecting, Disconnected, Connecting, Connected}
	for _, next := range steps {
		prev := c.Read()
		if got := c.Transition(next); got != prev {
			t.Errorf("Transition(%q) want prev %q, got %q", next, prev, got)
		}
		if got := c.Read(); got != next {
			t.Errorf("want %q after transition, got %q", next, got)
		}
	}
}

func TestSubscribe_NotifiedOnChangeOnly(t *testing.T) {
	c := NewConnection(Disconnected)
	var calls [][2]ConnectionState
	c.Subscribe(func(prev, next ConnectionState) {
		calls = append(calls, [2]ConnectionState{prev, next})
	})

	c.Transition(Connecting)
	c.Transition(Connecting)
	c.Transition(Connected)

	if len(calls) != 2 {
		t.Fatalf("want 2 notifications, got %d: %v", len(calls), calls)
	}
	if calls[0] != [2]ConnectionState{Disconnected, Connecting} {
		t.Errorf("first call: got %v", calls[0])
	}
	if calls[1] != [2]ConnectionState{Connecting, Connected} {
		t.Errorf("second call: got %v", calls[1])
	}
}

func TestSubscribe_OrderAndUnsubscribe(t *testing.T) {
	c := NewConnection(Disconnected)
	var order []string
	unsubA := c.Subscribe(func(_, _ ConnectionState) { order = append(order, "a") })
	c.Subscribe(func(_, _ ConnectionState) { order = append(order, "b") })

	c.Transition(Connected)
	unsubA()
	unsubA() // second call is a no-op
	c.Transition(Disconnected)

	want := []string{"a", "b", "b"}
	if len(order) != len(want) {
		t.Fatalf("want %v, got %v", want, order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("order[%d]: want %q, got %q", i, want[i], order[i])
		}
	}
}

func TestSubscribe_ListenerMayReadStore(t *testing.T) {
	c := NewConnection(Disconnected)
	var seen ConnectionState
	c.Subscribe(func(_, _ ConnectionState) { seen = c.Read() })
	c.Transition(Connected)
	if seen != Connected {
		t.Errorf("listener saw %q, want %q", seen, Connected)
	}
}

func TestTransition_ConcurrentWriters(t *testing.T) {
	c := NewConnection(Disconnected)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				c.Transition(Connected)
			} else {
				c.Transition(Disconnected)
			}
		}(i)
	}
	wg.Wait()
	if !c.Read().Valid() {
		t.Errorf("store ended in invalid state %q", c.Read())
	}
}

// ---------------------------------------------------------------------------
// Authorization
// ---------------------------------------------------------------------------

func TestAuthorization_PersistsFlag(t *testing.T) {
	dir := t.TempDir()
	a := NewAuthorization(uistate.Open(dir))
	if a.IsAuthorized() {
		t.Fatal("fresh store should be unauthorized")
	}
	if err := a.Set(true); err != nil {
		t.Fatalf("Set: %v", err)
	}

	again := NewAuthorization(uistate.Open(dir))
	if !again.IsAuthorized() {
		t.Error("want authorized after reopen")
	}
}
