package sync

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Poller periodically refreshes the conversation list and the active
// thread. Polling is the fallback transport: push hints make updates
// feel instant when the socket is up, the poller guarantees progress
// when it is not.
type Poller struct {
	engine      *Engine
	logger      *zap.Logger
	listEvery   time.Duration
	threadEvery time.Duration
	cancel      context.CancelFunc
}

// NewPoller creates a poller driving the given engine.
func NewPoller(e *Engine, logger *zap.Logger, listEvery, threadEvery time.Duration) *Poller {
	if listEvery <= 0 {
		listEvery = 30 * time.Second
	}
	if threadEvery <= 0 {
		threadEvery = 10 * time.Second
	}
	return &Poller{
		engine:      e,
		logger:      logger,
		listEvery:   listEvery,
		threadEvery: threadEvery,
	}
}

// Start launches the polling loops.
func (p *Poller) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)
	go p.loop(ctx)
}

// Stop halts polling.
func (p *Poller) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
}

func (p *Poller) loop(ctx context.Context) {
	listTick := time.NewTicker(p.listEvery)
	threadTick := time.NewTicker(p.threadEvery)
	defer listTick.Stop()
	defer threadTick.Stop()

	for {
		select {
		case <-listTick.C:
			if err := p.engine.LoadConversations(ctx); err != nil {
				p.logger.Warn("list poll failed", zap.Error(err))
			}
		case <-threadTick.C:
			id := p.engine.Active()
			if id == 0 {
				continue
			}
			if err := p.engine.LoadMessages(ctx, id); err != nil {
				p.logger.Warn("thread poll failed", zap.Error(err), zap.Int64("conversation_id", id))
			}
		case <-ctx.Done():
			return
		}
	}
}
