// Package store holds the in-memory caches of conversations and
// messages. Both stores are owned by the sync engine: only the engine
// mutates them, everything else reads value snapshots. That single-writer
// discipline is what keeps the client race-free without coarse locking
// around the whole sync path.
package store

import (
	"sort"
	"sync"
	"time"

	"github.com/Darelldrayton/parking-in-a-pinch-sub002/internal/model"
)

// Conversations is the authoritative client-side cache of conversation
// summaries.
type Conversations struct {
	mu    sync.RWMutex
	byID  map[int64]*model.Conversation
	order []int64
}

// NewConversations creates an empty conversation store.
func NewConversations() *Conversations {
	return &Conversations{byID: make(map[int64]*model.Conversation)}
}

// ReplaceAll swaps the full conversation set. The backend is
// authoritative for the list, so this is a replace, never a merge.
func (s *Conversations) ReplaceAll(convs []model.Conversation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID = make(map[int64]*model.Conversation, len(convs))
	s.order = s.order[:0]
	for i := range convs {
		c := convs[i].Clone()
		if _, dup := s.byID[c.ID]; dup {
			continue
		}
		s.byID[c.ID] = &c
		s.order = append(s.order, c.ID)
	}
	s.sortLocked()
}

// Get returns a copy of one conversation.
func (s *Conversations) Get(id int64) (model.Conversation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.byID[id]
	if !ok {
		return model.Conversation{}, false
	}
	return c.Clone(), true
}

// Snapshot returns value copies of every conversation, most recently
// active first.
func (s *Conversations) Snapshot() []model.Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Conversation, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.byID[id].Clone())
	}
	return out
}

// Len returns the number of cached conversations.
func (s *Conversations) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

// ZeroUnread provisionally clears a conversation's unread counter after a
// mark-read acknowledgement. The next full fetch reconciles it with
// server truth. Never goes below zero; repeated calls are no-ops.
func (s *Conversations) ZeroUnread(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.byID[id]; ok && c.UnreadCount > 0 {
		c.UnreadCount = 0
	}
}

// UnreadTotal sums unread counters across all conversations.
func (s *Conversations) UnreadTotal() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	total := 0
	for _, c := range s.byID {
		total += c.UnreadCount
	}
	return total
}

// Touch updates a conversation's preview and activity time after a
// message lands, and resorts the list. Pushed messages can arrive out of
// order, so anything older than the current activity is ignored; preview
// and timestamp always move together.
func (s *Conversations) Touch(id int64, preview model.MessagePreview, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.byID[id]
	if !ok || !at.After(c.LastActivityAt) {
		return
	}
	p := preview
	c.LastMessage = &p
	c.LastActivityAt = at
	s.sortLocked()
}

func (s *Conversations) sortLocked() {
	sort.SliceStable(s.order, func(i, j int) bool {
		a, b := s.byID[s.order[i]], s.byID[s.order[j]]
		return a.LastActivityAt.After(b.LastActivityAt)
	})
}
