// Package push maintains the notification WebSocket. Frames arriving on
// it are hints published to the bus; the sync engine treats them as an
// invitation to refresh, never as the source of truth, so a dropped or
// garbled frame costs nothing but latency.
package push

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"nhooyr.io/websocket"

	"github.com/Darelldrayton/parking-in-a-pinch-sub002/internal/bus"
	"github.com/Darelldrayton/parking-in-a-pinch-sub002/internal/conn"
	"github.com/Darelldrayton/parking-in-a-pinch-sub002/internal/rest"
)

// envelope is the wire format of notification frames.
type envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Listener dials the notification socket and keeps it alive, driving the
// connection monitor through its states and re-dialing with exponential
// backoff when the socket drops.
type Listener struct {
	url     string
	token   string
	selfID  int64
	bus     *bus.Bus
	monitor *conn.Monitor
	logger  *zap.Logger
	cancel  context.CancelFunc

	heartbeat time.Duration
}

// NewListener creates a listener for the given socket URL.
func NewListener(url, token string, selfID int64, b *bus.Bus, m *conn.Monitor, logger *zap.Logger) *Listener {
	return &Listener{
		url:       url,
		token:     token,
		selfID:    selfID,
		bus:       b,
		monitor:   m,
		logger:    logger,
		heartbeat: 25 * time.Second,
	}
}

// Start launches the connect/read/reconnect loop.
func (l *Listener) Start(ctx context.Context) {
	ctx, l.cancel = context.WithCancel(ctx)
	go l.run(ctx)
}

// Stop tears the socket down.
func (l *Listener) Stop() {
	if l.cancel != nil {
		l.cancel()
	}
}

func (l *Listener) run(ctx context.Context) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = time.Second
	policy.MaxInterval = 30 * time.Second
	policy.MaxElapsedTime = 0 // retry forever
	policy.RandomizationFactor = 0.5

	l.transition(conn.Connecting)
	for {
		connectedAt, err := l.session(ctx)
		if ctx.Err() != nil {
			l.transition(conn.Disconnected)
			return
		}
		if err != nil {
			l.logger.Warn("notification socket dropped", zap.Error(err))
		}
		l.transition(conn.Reconnecting)

		// A session that held for a while earns a fresh backoff schedule.
		if !connectedAt.IsZero() && time.Since(connectedAt) > time.Minute {
			policy.Reset()
		}
		delay := policy.NextBackOff()
		l.logger.Info("reconnecting notification socket", zap.Duration("in", delay))
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			l.transition(conn.Disconnected)
			return
		}
	}
}

// session dials, reads frames until the socket breaks, and returns when
// it does. The returned time is when the dial succeeded, zero if never.
func (l *Listener) session(ctx context.Context) (time.Time, error) {
	c, _, err := websocket.Dial(ctx, l.url+"?token="+l.token, nil)
	if err != nil {
		return time.Time{}, fmt.Errorf("dial notification socket: %w", err)
	}
	defer c.Close(websocket.StatusNormalClosure, "")

	connectedAt := time.Now()
	l.transition(conn.Connected)
	l.logger.Info("notification socket connected")

	readCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go l.heartbeatLoop(readCtx, c)

	for {
		_, data, err := c.Read(ctx)
		if err != nil {
			return connectedAt, fmt.Errorf("read frame: %w", err)
		}
		l.handleFrame(data)
	}
}

func (l *Listener) heartbeatLoop(ctx context.Context, c *websocket.Conn) {
	ticker := time.NewTicker(l.heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			err := c.Ping(pingCtx)
			cancel()
			if err != nil {
				// The read loop will observe the closed socket.
				_ = c.Close(websocket.StatusGoingAway, "heartbeat timeout")
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func (l *Listener) handleFrame(data []byte) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		l.logger.Debug("unparseable notification frame", zap.Error(err))
		return
	}

	switch env.Type {
	case "message.new", "new_message":
		msg, err := rest.NormalizeMessage(env.Payload, l.selfID)
		if err != nil {
			l.logger.Debug("unparseable pushed message", zap.Error(err))
			return
		}
		l.bus.Emit(bus.KindPushMessageNew, &msg)

	case "conversation.updated", "conversation_updated", "unread_changed":
		var hint struct {
			ConversationID int64 `json:"conversation_id"`
		}
		_ = json.Unmarshal(env.Payload, &hint)
		l.bus.Emit(bus.KindPushConvDirty, bus.ThreadRef{ConversationID: hint.ConversationID})

	default:
		// Unknown frame types are ignored; the poller covers anything
		// the socket protocol grows later.
	}
}

func (l *Listener) transition(to conn.State) {
	if err := l.monitor.Transition(to); err != nil {
		l.logger.Debug("connection state transition rejected",
			zap.String("to", string(to)), zap.Error(err))
	}
}
