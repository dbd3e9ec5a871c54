package store

import (
	"sort"
	"sync"

	"github.com/Darelldrayton/parking-in-a-pinch-sub002/internal/model"
)

// Messages caches ordered message lists keyed by conversation ID.
// Within one conversation the list is totally ordered by creation time
// with ID as tiebreak, and never holds two entries with the same ID.
type Messages struct {
	mu      sync.RWMutex
	threads map[int64][]model.Message
}

// NewMessages creates an empty message store.
func NewMessages() *Messages {
	return &Messages{threads: make(map[int64][]model.Message)}
}

// Replace swaps one conversation's message list with canonical server
// data. Local entries (pending or failed sends) survive the replace; the
// caller reconciles them against the canonical list first.
func (s *Messages) Replace(conversationID int64, msgs []model.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	thread := make([]model.Message, 0, len(msgs))
	seen := make(map[string]struct{}, len(msgs))
	for _, m := range msgs {
		if _, dup := seen[m.ID]; dup {
			continue
		}
		seen[m.ID] = struct{}{}
		thread = append(thread, m)
	}
	sortThread(thread)
	s.threads[conversationID] = thread
}

// ReconcileAndReplace swaps in canonical server data and decides the
// fate of the thread's local entries in the same critical section: keep
// receives the locals present right now and returns the ones to retain.
// A send started mid-refresh therefore either lands before the replace
// and is seen by keep, or lands after it and survives untouched.
func (s *Messages) ReconcileAndReplace(conversationID int64, fetched []model.Message, keep func(locals []model.Message) []model.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var locals []model.Message
	for _, m := range s.threads[conversationID] {
		if m.Local() {
			locals = append(locals, m)
		}
	}
	survivors := keep(locals)

	thread := make([]model.Message, 0, len(fetched)+len(survivors))
	seen := make(map[string]struct{}, len(fetched)+len(survivors))
	for _, m := range fetched {
		if _, dup := seen[m.ID]; dup {
			continue
		}
		seen[m.ID] = struct{}{}
		thread = append(thread, m)
	}
	for _, m := range survivors {
		if _, dup := seen[m.ID]; dup {
			continue
		}
		seen[m.ID] = struct{}{}
		thread = append(thread, m)
	}
	sortThread(thread)
	s.threads[conversationID] = thread
}

// Upsert inserts or replaces a message by ID, keeping order. Network
// responses may resolve out of request order; upserting by ID keeps the
// result identical either way.
func (s *Messages) Upsert(m model.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	thread := s.threads[m.ConversationID]
	replaced := false
	for i := range thread {
		if thread[i].ID == m.ID {
			thread[i] = m
			replaced = true
			break
		}
	}
	if !replaced {
		thread = append(thread, m)
	}
	sortThread(thread)
	s.threads[m.ConversationID] = thread
}

// Swap removes oldID and upserts m in one step, used when a pending
// message is replaced by its canonical server record.
func (s *Messages) Swap(conversationID int64, oldID string, m model.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	thread := s.threads[conversationID]
	kept := thread[:0]
	for _, existing := range thread {
		if existing.ID != oldID && existing.ID != m.ID {
			kept = append(kept, existing)
		}
	}
	kept = append(kept, m)
	sortThread(kept)
	s.threads[conversationID] = kept
}

// SetStatus updates one message's delivery status. Returns false if the
// message is gone (e.g. replaced by a canonical record meanwhile).
func (s *Messages) SetStatus(conversationID int64, id string, status model.MessageStatus) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	thread := s.threads[conversationID]
	for i := range thread {
		if thread[i].ID == id {
			thread[i].Status = status
			return true
		}
	}
	return false
}

// Get returns a copy of one message.
func (s *Messages) Get(conversationID int64, id string) (model.Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, m := range s.threads[conversationID] {
		if m.ID == id {
			return m, true
		}
	}
	return model.Message{}, false
}

// List returns a value snapshot of one conversation's messages in order.
func (s *Messages) List(conversationID int64) []model.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	thread := s.threads[conversationID]
	out := make([]model.Message, len(thread))
	copy(out, thread)
	return out
}

// Locals returns the local (client-ID) entries of a conversation:
// optimistic sends still pending plus failed ones awaiting retry.
func (s *Messages) Locals(conversationID int64) []model.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Message
	for _, m := range s.threads[conversationID] {
		if m.Local() {
			out = append(out, m)
		}
	}
	return out
}

// Has reports whether a conversation has any cached messages.
func (s *Messages) Has(conversationID int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.threads[conversationID]) > 0
}

// Drop removes one message, used when a retried send supersedes a failed
// local entry.
func (s *Messages) Drop(conversationID int64, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	thread := s.threads[conversationID]
	for i := range thread {
		if thread[i].ID == id {
			s.threads[conversationID] = append(thread[:i], thread[i+1:]...)
			return
		}
	}
}

func sortThread(thread []model.Message) {
	sort.SliceStable(thread, func(i, j int) bool {
		return thread[i].Before(&thread[j])
	})
}
