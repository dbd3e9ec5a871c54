// Package model holds the view model: the projection layer between the
// sync engine's stores and the tview widgets. Widgets never touch the
// engine directly; they read snapshots from here and push intents back
// through it.
package model

import (
	"context"
	stdsync "sync"
	"time"

	"github.com/Darelldrayton/parking-in-a-pinch-sub002/internal/cache"
	"github.com/Darelldrayton/parking-in-a-pinch-sub002/internal/compose"
	"github.com/Darelldrayton/parking-in-a-pinch-sub002/internal/conn"
	"github.com/Darelldrayton/parking-in-a-pinch-sub002/internal/filter"
	"github.com/Darelldrayton/parking-in-a-pinch-sub002/internal/model"
	"github.com/Darelldrayton/parking-in-a-pinch-sub002/internal/rest"
	"github.com/Darelldrayton/parking-in-a-pinch-sub002/internal/sync"
)

// Flash is the status bar's transient notice line. Send failures and
// other user-facing errors land here for a few seconds and then clear
// on the next redraw tick.
type Flash struct {
	mu    stdsync.RWMutex
	text  string
	until time.Time
}

// Set replaces the notice, visible for d.
func (f *Flash) Set(text string, d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.text = text
	f.until = time.Now().Add(d)
}

// Get returns the notice, or empty once it has lapsed.
func (f *Flash) Get() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if time.Now().After(f.until) {
		return ""
	}
	return f.text
}

// ViewModel caches UI-facing state derived from the engine and exposes
// user intents back to it.
type ViewModel struct {
	mu stdsync.RWMutex

	engine  *sync.Engine
	buffer  *compose.Buffer
	db      *cache.DB
	monitor *conn.Monitor
	selfID  int64

	criterion filter.Criterion
	Flash     Flash
}

// NewViewModel creates a view model over the engine.
func NewViewModel(e *sync.Engine, b *compose.Buffer, db *cache.DB, m *conn.Monitor, selfID int64) *ViewModel {
	return &ViewModel{
		engine:  e,
		buffer:  b,
		db:      db,
		monitor: m,
		selfID:  selfID,
		criterion: filter.Criterion{
			Category: filter.CategoryAll,
			SelfID:   selfID,
		},
	}
}

// Conversations returns the conversation list under the active filter.
func (vm *ViewModel) Conversations() []model.Conversation {
	vm.mu.RLock()
	crit := vm.criterion
	vm.mu.RUnlock()
	return filter.Project(vm.engine.Conversations(), crit)
}

// SetCategory switches the active category tab.
func (vm *ViewModel) SetCategory(cat filter.Category) {
	vm.mu.Lock()
	vm.criterion.Category = cat
	vm.mu.Unlock()
}

// SetSearchText updates the free-text filter.
func (vm *ViewModel) SetSearchText(text string) {
	vm.mu.Lock()
	vm.criterion.SearchText = text
	vm.mu.Unlock()
}

// Criterion returns the active filter criterion.
func (vm *ViewModel) Criterion() filter.Criterion {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.criterion
}

// Open makes a conversation active. The thread refresh happens in the
// background; the caller renders whatever is cached right away.
func (vm *ViewModel) Open(ctx context.Context, conversationID int64) {
	vm.engine.SelectConversation(ctx, conversationID)
}

// ActiveID returns the selected conversation, 0 for none.
func (vm *ViewModel) ActiveID() int64 {
	return vm.engine.Active()
}

// ActiveConversation returns the selected conversation's summary.
func (vm *ViewModel) ActiveConversation() (model.Conversation, bool) {
	id := vm.engine.Active()
	if id == 0 {
		return model.Conversation{}, false
	}
	for _, c := range vm.engine.Conversations() {
		if c.ID == id {
			return c, true
		}
	}
	return model.Conversation{}, false
}

// Messages returns the active thread snapshot.
func (vm *ViewModel) Messages() []model.Message {
	return vm.engine.ActiveMessages()
}

// Draft returns the saved composer text for a conversation.
func (vm *ViewModel) Draft(conversationID int64) string {
	return vm.buffer.Draft(conversationID)
}

// SaveDraft records in-progress composer text.
func (vm *ViewModel) SaveDraft(conversationID int64, text string) {
	vm.buffer.SetDraft(conversationID, text)
}

// Send submits the composer content for the active conversation. The
// draft clears on submit; a failed delivery surfaces on the message
// itself, not by restoring the draft.
func (vm *ViewModel) Send(ctx context.Context, text string) error {
	id := vm.engine.Active()
	if id == 0 {
		return nil
	}
	vm.buffer.SetDraft(id, text)
	content, ok := vm.buffer.Submit(id)
	if !ok {
		return &rest.ValidationError{Reason: "message is empty"}
	}
	_, err := vm.engine.SendMessage(ctx, id, content)
	return err
}

// Retry re-attempts a failed send in the active conversation.
func (vm *ViewModel) Retry(ctx context.Context, messageID string) error {
	id := vm.engine.Active()
	if id == 0 {
		return nil
	}
	return vm.engine.RetrySend(ctx, id, messageID)
}

// Search runs a full-text query over the cached message history.
func (vm *ViewModel) Search(query string) ([]cache.SearchResult, error) {
	if vm.db == nil {
		return nil, nil
	}
	return vm.db.SearchMessages(query, 0, 50)
}

// UnreadTotal sums unread counts across all conversations.
func (vm *ViewModel) UnreadTotal() int {
	return vm.engine.UnreadTotal()
}

// ConnState returns the push channel state for the status bar.
func (vm *ViewModel) ConnState() conn.State {
	return vm.monitor.Current()
}

// SelfID returns the local user's ID.
func (vm *ViewModel) SelfID() int64 {
	return vm.selfID
}

// FlashError records a user-facing failure message.
func (vm *ViewModel) FlashError(err error) {
	vm.Flash.Set(rest.UserMessage(err), 5*time.Second)
}
