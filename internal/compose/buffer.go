// Package compose isolates in-progress message drafts from the sync
// engine. Keystroke-rate updates land here and nowhere else, so typing
// never retriggers list filtering or network work; the engine only sees
// the text once a draft is submitted.
package compose

import (
	"strings"
	"sync"

	"go.uber.org/zap"
)

// DraftStore persists drafts across restarts. Persistence is best-effort;
// a failing store never blocks typing.
type DraftStore interface {
	SaveDraft(conversationID int64, text string) error
	DeleteDraft(conversationID int64) error
	ListDrafts() (map[int64]string, error)
}

// Buffer holds per-conversation draft text. Drafts survive conversation
// switches; only submission or explicit clearing removes them.
type Buffer struct {
	mu     sync.RWMutex
	drafts map[int64]string
	store  DraftStore
	logger *zap.Logger
}

// NewBuffer creates an empty buffer. store may be nil for a purely
// in-memory buffer (tests).
func NewBuffer(store DraftStore, logger *zap.Logger) *Buffer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Buffer{
		drafts: make(map[int64]string),
		store:  store,
		logger: logger,
	}
}

// Hydrate loads persisted drafts, keeping any text already typed this
// session.
func (b *Buffer) Hydrate() {
	if b.store == nil {
		return
	}
	persisted, err := b.store.ListDrafts()
	if err != nil {
		b.logger.Warn("failed to load drafts", zap.Error(err))
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, text := range persisted {
		if _, typing := b.drafts[id]; !typing {
			b.drafts[id] = text
		}
	}
}

// SetDraft stores the current draft text for a conversation. A pure
// local mutation: no events, no network.
func (b *Buffer) SetDraft(conversationID int64, text string) {
	b.mu.Lock()
	if text == "" {
		delete(b.drafts, conversationID)
	} else {
		b.drafts[conversationID] = text
	}
	b.mu.Unlock()

	if b.store != nil {
		var err error
		if text == "" {
			err = b.store.DeleteDraft(conversationID)
		} else {
			err = b.store.SaveDraft(conversationID, text)
		}
		if err != nil {
			b.logger.Warn("failed to persist draft",
				zap.Int64("conversation_id", conversationID), zap.Error(err))
		}
	}
}

// Draft returns the current draft for a conversation, or "".
func (b *Buffer) Draft(conversationID int64) string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.drafts[conversationID]
}

// Submit takes the draft out of the buffer and returns it. The buffer is
// cleared before the caller hands the text to the engine: if the send
// later fails the draft is not auto-restored, the failure surfaces on the
// message itself.
func (b *Buffer) Submit(conversationID int64) (string, bool) {
	b.mu.Lock()
	text, ok := b.drafts[conversationID]
	delete(b.drafts, conversationID)
	b.mu.Unlock()

	if !ok || strings.TrimSpace(text) == "" {
		return "", false
	}
	if b.store != nil {
		if err := b.store.DeleteDraft(conversationID); err != nil {
			b.logger.Warn("failed to clear persisted draft",
				zap.Int64("conversation_id", conversationID), zap.Error(err))
		}
	}
	return text, true
}
