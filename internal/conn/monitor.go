// Package conn tracks the liveness of the push notification channel as a
// small state machine. The monitor only consumes lifecycle events from
// the socket; it never originates connection attempts itself. Unread
// badges and composer availability read this state, nothing else writes
// it except the push listener.
package conn

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/Darelldrayton/parking-in-a-pinch-sub002/internal/bus"
)

// State is the process-wide connection liveness value.
type State string

const (
	Unknown      State = "unknown"
	Connecting   State = "connecting"
	Connected    State = "connected"
	Reconnecting State = "reconnecting"
	Disconnected State = "disconnected"
)

// validTransitions defines allowed state transitions. Any state may fall
// to Disconnected on hard failure; Disconnected recovers only through
// Connecting.
var validTransitions = map[State][]State{
	Unknown:      {Connecting, Disconnected},
	Connecting:   {Connected, Reconnecting, Disconnected},
	Connected:    {Reconnecting, Disconnected},
	Reconnecting: {Connected, Connecting, Disconnected},
	Disconnected: {Connecting},
}

// Monitor tracks and enforces connection state transitions, publishing a
// bus event on every change.
type Monitor struct {
	mu      sync.RWMutex
	current State
	bus     *bus.Bus
}

// NewMonitor creates a monitor starting in the Unknown state.
func NewMonitor(b *bus.Bus) *Monitor {
	return &Monitor{current: Unknown, bus: b}
}

// Current returns the current state.
func (m *Monitor) Current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Live reports whether the push channel is usable right now.
func (m *Monitor) Live() bool {
	return m.Current() == Connected
}

// Transition attempts to move to a new state. Same-state transitions are
// no-ops; invalid ones return an error and leave the state unchanged.
func (m *Monitor) Transition(to State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if to == m.current {
		return nil
	}
	if !slices.Contains(validTransitions[m.current], to) {
		return fmt.Errorf("invalid connection transition from %s to %s", m.current, to)
	}
	from := m.current
	m.current = to
	if m.bus != nil {
		m.bus.Publish(bus.Event{
			Kind:      bus.KindConnStatusChanged,
			Timestamp: time.Now(),
			Payload:   Change{From: from, To: to},
		})
	}
	return nil
}

// Change is the payload for connection status events.
type Change struct {
	From State
	To   State
}
