// Package sync owns the fetch/merge cycle between the REST backend and
// the in-memory stores. All writes to the stores funnel through the
// Engine so ordering guarantees hold no matter how many goroutines ask
// for a refresh at once.
package sync

import (
	"context"
	"strconv"
	"strings"
	stdsync "sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/Darelldrayton/parking-in-a-pinch-sub002/internal/bus"
	"github.com/Darelldrayton/parking-in-a-pinch-sub002/internal/model"
	"github.com/Darelldrayton/parking-in-a-pinch-sub002/internal/rest"
	"github.com/Darelldrayton/parking-in-a-pinch-sub002/internal/store"
)

// MaxMessageLen caps outgoing message content. The backend enforces the
// same limit; rejecting locally avoids burning a request on it.
const MaxMessageLen = 5000

// DefaultFreshness is how long a fetched list is trusted before a
// re-selection triggers another fetch.
const DefaultFreshness = 30 * time.Second

// Transport is the slice of the REST client the engine drives.
type Transport interface {
	ListConversations(ctx context.Context) ([]model.Conversation, error)
	ListMessages(ctx context.Context, conversationID int64) ([]model.Message, error)
	CreateMessage(ctx context.Context, conversationID int64, content string) (model.Message, error)
	MarkConversationRead(ctx context.Context, conversationID int64) error
	BootstrapConversations(ctx context.Context) error
	SelfID() int64
}

// Cache is the optional write-through persistence layer. Cache failures
// are logged and swallowed; the in-memory stores stay authoritative.
type Cache interface {
	ReplaceConversations(convs []model.Conversation, selfID int64) error
	ReplaceMessages(conversationID int64, msgs []model.Message) error
	UpsertMessage(m *model.Message) error
}

// Engine coordinates fetches, optimistic sends, and reconciliation.
type Engine struct {
	transport Transport
	convs     *store.Conversations
	msgs      *store.Messages
	cache     Cache
	bus       *bus.Bus
	logger    *zap.Logger
	cancel    context.CancelFunc

	group     singleflight.Group
	freshness time.Duration

	mu           stdsync.Mutex
	active       int64
	listLoadedAt time.Time
	threadLoaded map[int64]time.Time
	bootstrapped bool
}

// Option tweaks engine construction.
type Option func(*Engine)

// WithFreshness overrides the staleness window used by SelectConversation.
func WithFreshness(d time.Duration) Option {
	return func(e *Engine) { e.freshness = d }
}

// WithCache enables write-through persistence.
func WithCache(c Cache) Option {
	return func(e *Engine) { e.cache = c }
}

// NewEngine creates a sync engine over the given transport and stores.
func NewEngine(t Transport, convs *store.Conversations, msgs *store.Messages, b *bus.Bus, logger *zap.Logger, opts ...Option) *Engine {
	e := &Engine{
		transport:    t,
		convs:        convs,
		msgs:         msgs,
		bus:          b,
		logger:       logger,
		freshness:    DefaultFreshness,
		threadLoaded: make(map[int64]time.Time),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start subscribes to "push.*" hints on the bus and refreshes the
// affected resources as they arrive.
func (e *Engine) Start(ctx context.Context) {
	ctx, e.cancel = context.WithCancel(ctx)
	ch, unsub := e.bus.Subscribe("push.", 256)

	go func() {
		defer unsub()
		for {
			select {
			case evt := <-ch:
				e.handlePush(ctx, evt)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the push listener.
func (e *Engine) Stop() {
	if e.cancel != nil {
		e.cancel()
	}
}

func (e *Engine) handlePush(ctx context.Context, evt bus.Event) {
	switch evt.Kind {
	case bus.KindPushMessageNew:
		msg, ok := evt.Payload.(*model.Message)
		if !ok {
			return
		}
		e.ingestPushed(ctx, msg)
	case bus.KindPushConvDirty:
		ref, ok := evt.Payload.(bus.ThreadRef)
		if !ok {
			return
		}
		go func() {
			if err := e.LoadConversations(ctx); err != nil {
				e.logger.Warn("refresh after push hint failed", zap.Error(err))
			}
			if ref.ConversationID != 0 && ref.ConversationID == e.Active() {
				if err := e.LoadMessages(ctx, ref.ConversationID); err != nil {
					e.logger.Warn("thread refresh after push hint failed",
						zap.Error(err), zap.Int64("conversation_id", ref.ConversationID))
				}
			}
		}()
	}
}

// ingestPushed applies a single pushed message without a full refetch.
// Pushes are hints, not truth: a later fetch reconciles any drift.
func (e *Engine) ingestPushed(ctx context.Context, msg *model.Message) {
	e.msgs.Upsert(*msg)
	e.convs.Touch(msg.ConversationID, model.MessagePreview{
		Content:  msg.Content,
		SenderID: msg.SenderID,
		SentAt:   msg.CreatedAt,
	}, msg.CreatedAt)
	e.persistMessage(msg)
	e.bus.Emit(bus.KindMessageUpserted, bus.MessageRef{
		ConversationID: msg.ConversationID,
		MessageID:      msg.ID,
	})

	if msg.ConversationID == e.Active() && !msg.IsOwn {
		e.markRead(ctx, msg.ConversationID)
	} else {
		e.bus.Emit(bus.KindConversationUpdated, msg.ConversationID)
	}
}

// LoadConversations fetches the conversation list and replaces the store
// wholesale. Concurrent callers collapse onto one request; all of them
// see its result.
func (e *Engine) LoadConversations(ctx context.Context) error {
	_, err, _ := e.group.Do("conversations", func() (any, error) {
		e.maybeBootstrap(ctx)

		convs, err := e.transport.ListConversations(ctx)
		if err != nil {
			return nil, err
		}
		e.convs.ReplaceAll(convs)
		e.mu.Lock()
		e.listLoadedAt = time.Now()
		e.mu.Unlock()

		if e.cache != nil {
			if err := e.cache.ReplaceConversations(convs, e.transport.SelfID()); err != nil {
				e.logger.Warn("persist conversations failed", zap.Error(err))
			}
		}
		e.bus.Emit(bus.KindConversationsReplaced, len(convs))
		return nil, nil
	})
	return err
}

// maybeBootstrap asks the backend once per process to materialize
// conversations for bookings that don't have one yet. Failure is not
// fatal; the list fetch proceeds regardless.
func (e *Engine) maybeBootstrap(ctx context.Context) {
	e.mu.Lock()
	done := e.bootstrapped
	e.bootstrapped = true
	e.mu.Unlock()
	if done {
		return
	}
	if err := e.transport.BootstrapConversations(ctx); err != nil {
		e.logger.Warn("conversation bootstrap failed", zap.Error(err))
	}
}

// LoadMessages fetches one conversation's messages, reconciles pending
// local sends against the result, and replaces the thread. If the user
// has navigated away by the time the response lands, the result is
// discarded so it cannot clobber the thread now on screen.
func (e *Engine) LoadMessages(ctx context.Context, conversationID int64) error {
	_, err, _ := e.group.Do(threadKey(conversationID), func() (any, error) {
		fetched, err := e.transport.ListMessages(ctx, conversationID)
		if err != nil {
			return nil, err
		}

		if e.Active() != conversationID {
			e.logger.Debug("discarding stale thread response",
				zap.Int64("conversation_id", conversationID))
			return nil, nil
		}

		e.msgs.ReconcileAndReplace(conversationID, fetched, func(locals []model.Message) []model.Message {
			return reconcile(fetched, locals)
		})
		e.mu.Lock()
		e.threadLoaded[conversationID] = time.Now()
		e.mu.Unlock()

		if e.cache != nil {
			if err := e.cache.ReplaceMessages(conversationID, fetched); err != nil {
				e.logger.Warn("persist messages failed",
					zap.Error(err), zap.Int64("conversation_id", conversationID))
			}
		}
		e.bus.Emit(bus.KindThreadReplaced, bus.ThreadRef{ConversationID: conversationID})

		e.markRead(ctx, conversationID)
		return nil, nil
	})
	return err
}

// markRead zeros the unread count locally right away and tells the
// backend in the background. The endpoint is idempotent, so losing the
// request just means the next open sends it again.
func (e *Engine) markRead(ctx context.Context, conversationID int64) {
	conv, ok := e.convs.Get(conversationID)
	if !ok || conv.UnreadCount == 0 {
		return
	}
	e.convs.ZeroUnread(conversationID)
	e.bus.Emit(bus.KindConversationUpdated, conversationID)

	go func() {
		if err := e.transport.MarkConversationRead(ctx, conversationID); err != nil {
			e.logger.Warn("mark read failed",
				zap.Error(err), zap.Int64("conversation_id", conversationID))
		}
	}()
}

// SelectConversation makes a conversation active and refreshes its
// thread unless a fetch completed within the freshness window. Returns
// immediately; the fetch, if any, runs in the background.
func (e *Engine) SelectConversation(ctx context.Context, conversationID int64) {
	e.mu.Lock()
	e.active = conversationID
	loadedAt := e.threadLoaded[conversationID]
	e.mu.Unlock()

	if conversationID == 0 {
		return
	}
	if time.Since(loadedAt) < e.freshness {
		// Fresh enough; still settle the unread counter.
		e.markRead(ctx, conversationID)
		return
	}
	go func() {
		if err := e.LoadMessages(ctx, conversationID); err != nil {
			e.logger.Warn("thread load failed",
				zap.Error(err), zap.Int64("conversation_id", conversationID))
		}
	}()
}

// Active returns the currently selected conversation ID, 0 for none.
func (e *Engine) Active() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active
}

// SendMessage validates, inserts an optimistic pending message, and
// posts it to the backend. The pending entry is visible in the thread
// before the request leaves the process; on success it is swapped for
// the canonical record, on failure it flips to failed and stays.
func (e *Engine) SendMessage(ctx context.Context, conversationID int64, content string) (string, error) {
	if strings.TrimSpace(content) == "" {
		return "", &rest.ValidationError{Reason: "message is empty"}
	}
	if len(content) > MaxMessageLen {
		return "", &rest.ValidationError{Reason: "message is too long"}
	}

	pending := model.Message{
		ID:             model.LocalIDPrefix + uuid.NewString(),
		ConversationID: conversationID,
		SenderID:       e.transport.SelfID(),
		Content:        content,
		CreatedAt:      time.Now(),
		Status:         model.StatusPending,
		IsOwn:          true,
	}
	e.msgs.Upsert(pending)
	e.bus.Emit(bus.KindMessageUpserted, bus.MessageRef{
		ConversationID: conversationID,
		MessageID:      pending.ID,
	})

	go e.deliver(ctx, pending)
	return pending.ID, nil
}

// RetrySend re-attempts a failed local message. The entry flips back to
// pending and goes through the same delivery path as a fresh send.
func (e *Engine) RetrySend(ctx context.Context, conversationID int64, localID string) error {
	m, ok := e.msgs.Get(conversationID, localID)
	if !ok || !m.Local() {
		return &rest.ValidationError{Reason: "message is not retryable"}
	}
	if m.Status != model.StatusFailed {
		return &rest.ValidationError{Reason: "message is not retryable"}
	}

	m.Status = model.StatusPending
	m.CreatedAt = time.Now()
	e.msgs.Upsert(m)
	e.bus.Emit(bus.KindMessageUpserted, bus.MessageRef{
		ConversationID: conversationID,
		MessageID:      m.ID,
	})

	go e.deliver(ctx, m)
	return nil
}

func (e *Engine) deliver(ctx context.Context, pending model.Message) {
	canonical, err := e.transport.CreateMessage(ctx, pending.ConversationID, pending.Content)
	if err != nil {
		e.logger.Error("send failed",
			zap.Error(err),
			zap.Int64("conversation_id", pending.ConversationID),
			zap.String("local_id", pending.ID))
		e.msgs.SetStatus(pending.ConversationID, pending.ID, model.StatusFailed)
		e.bus.Emit(bus.KindMessageSendFailed, bus.SendFailure{
			ConversationID: pending.ConversationID,
			MessageID:      pending.ID,
			Err:            err,
		})
		return
	}

	e.msgs.Swap(pending.ConversationID, pending.ID, canonical)
	e.convs.Touch(pending.ConversationID, model.MessagePreview{
		Content:  canonical.Content,
		SenderID: canonical.SenderID,
		SentAt:   canonical.CreatedAt,
	}, canonical.CreatedAt)
	e.persistMessage(&canonical)
	e.bus.Emit(bus.KindMessageSendAck, bus.MessageRef{
		ConversationID: pending.ConversationID,
		MessageID:      canonical.ID,
	})
}

func (e *Engine) persistMessage(m *model.Message) {
	if e.cache == nil {
		return
	}
	if err := e.cache.UpsertMessage(m); err != nil {
		e.logger.Warn("persist message failed",
			zap.Error(err), zap.String("msg_id", m.ID))
	}
}

// Conversations returns a snapshot of the conversation list.
func (e *Engine) Conversations() []model.Conversation {
	return e.convs.Snapshot()
}

// ActiveMessages returns a snapshot of the active conversation's thread.
func (e *Engine) ActiveMessages() []model.Message {
	id := e.Active()
	if id == 0 {
		return nil
	}
	return e.msgs.List(id)
}

// UnreadTotal sums unread counts across all conversations.
func (e *Engine) UnreadTotal() int {
	return e.convs.UnreadTotal()
}

func threadKey(conversationID int64) string {
	return "messages:" + strconv.FormatInt(conversationID, 10)
}
