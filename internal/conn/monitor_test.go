package conn

import (
	"testing"

	"github.com/Darelldrayton/parking-in-a-pinch-sub002/internal/bus"
)

func TestInitialState(t *testing.T) {
	m := NewMonitor(nil)
	if m.Current() != Unknown {
		t.Errorf("initial state = %s, want unknown", m.Current())
	}
}

func TestValidTransitions(t *testing.T) {
	tests := []struct {
		from State
		to   State
	}{
		{Unknown, Connecting},
		{Connecting, Connected},
		{Connected, Reconnecting},
		{Reconnecting, Connected},
		{Reconnecting, Connecting},
		{Connected, Disconnected},
		{Disconnected, Connecting},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			m := NewMonitor(nil)
			walkTo(t, m, tt.from)
			if err := m.Transition(tt.to); err != nil {
				t.Errorf("Transition(%s -> %s) error = %v", tt.from, tt.to, err)
			}
			if m.Current() != tt.to {
				t.Errorf("state = %s, want %s", m.Current(), tt.to)
			}
		})
	}
}

func TestInvalidTransition(t *testing.T) {
	m := NewMonitor(nil)
	if err := m.Transition(Connected); err == nil {
		t.Error("Transition(unknown -> connected) should fail")
	}
	if m.Current() != Unknown {
		t.Errorf("state = %s, want unchanged unknown", m.Current())
	}
}

func TestAnyStateCanDisconnect(t *testing.T) {
	for _, from := range []State{Unknown, Connecting, Connected, Reconnecting} {
		m := NewMonitor(nil)
		walkTo(t, m, from)
		if err := m.Transition(Disconnected); err != nil {
			t.Errorf("%s -> disconnected: %v", from, err)
		}
	}
}

func TestSameStateIsNoOp(t *testing.T) {
	b := bus.New()
	ch, unsub := b.Subscribe("conn.", 10)
	defer unsub()

	m := NewMonitor(b)
	if err := m.Transition(Unknown); err != nil {
		t.Fatalf("same-state transition errored: %v", err)
	}
	select {
	case evt := <-ch:
		t.Errorf("no event expected for same-state transition, got %v", evt)
	default:
	}
}

func TestTransitionEmitsEvent(t *testing.T) {
	b := bus.New()
	ch, unsub := b.Subscribe("conn.", 10)
	defer unsub()

	m := NewMonitor(b)
	if err := m.Transition(Connecting); err != nil {
		t.Fatal(err)
	}

	evt := <-ch
	if evt.Kind != bus.KindConnStatusChanged {
		t.Errorf("event kind = %q, want %q", evt.Kind, bus.KindConnStatusChanged)
	}
	change, ok := evt.Payload.(Change)
	if !ok {
		t.Fatalf("payload type = %T, want Change", evt.Payload)
	}
	if change.From != Unknown || change.To != Connecting {
		t.Errorf("change = %v -> %v, want unknown -> connecting", change.From, change.To)
	}
}

// TestDropReconnectCycle walks the lifecycle a flaky network produces:
// connected, link drops, retries, recovers.
func TestDropReconnectCycle(t *testing.T) {
	m := NewMonitor(nil)
	steps := []State{Connecting, Connected, Reconnecting, Connected, Reconnecting, Connecting, Connected}
	for _, s := range steps {
		if err := m.Transition(s); err != nil {
			t.Fatalf("Transition to %s: %v (current: %s)", s, err, m.Current())
		}
	}
	if !m.Live() {
		t.Error("monitor should report live after recovery")
	}
}

func walkTo(t *testing.T, m *Monitor, target State) {
	t.Helper()
	paths := map[State][]State{
		Unknown:      {},
		Connecting:   {Connecting},
		Connected:    {Connecting, Connected},
		Reconnecting: {Connecting, Connected, Reconnecting},
		Disconnected: {Disconnected},
	}
	for _, s := range paths[target] {
		if err := m.Transition(s); err != nil {
			t.Fatalf("walkTo(%s): %v", target, err)
		}
	}
}
