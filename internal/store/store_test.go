package store

import (
	"testing"
	"time"

	"github.com/Darelldrayton/parking-in-a-pinch-sub002/internal/model"
)

func conv(id int64, at time.Time, unread int) model.Conversation {
	return model.Conversation{
		ID:             id,
		Type:           model.TypeBooking,
		UnreadCount:    unread,
		LastActivityAt: at,
	}
}

func TestReplaceAllIsWholesale(t *testing.T) {
	s := NewConversations()
	t0 := time.Now()
	s.ReplaceAll([]model.Conversation{conv(1, t0, 2), conv(2, t0.Add(time.Hour), 0)})
	s.ReplaceAll([]model.Conversation{conv(3, t0, 1)})

	snap := s.Snapshot()
	if len(snap) != 1 || snap[0].ID != 3 {
		t.Errorf("snapshot = %+v, want only conversation 3", snap)
	}
}

func TestSnapshotOrderAndIsolation(t *testing.T) {
	s := NewConversations()
	t0 := time.Now()
	s.ReplaceAll([]model.Conversation{conv(1, t0, 0), conv(2, t0.Add(time.Hour), 0)})

	snap := s.Snapshot()
	if snap[0].ID != 2 || snap[1].ID != 1 {
		t.Errorf("order = [%d %d], want [2 1] (most recent first)", snap[0].ID, snap[1].ID)
	}

	// Mutating the snapshot must not reach the store.
	snap[0].UnreadCount = 99
	again, _ := s.Get(2)
	if again.UnreadCount != 0 {
		t.Error("snapshot mutation leaked into store")
	}
}

func TestZeroUnreadIdempotentAndFloored(t *testing.T) {
	s := NewConversations()
	s.ReplaceAll([]model.Conversation{conv(1, time.Now(), 5)})

	s.ZeroUnread(1)
	s.ZeroUnread(1)
	c, _ := s.Get(1)
	if c.UnreadCount != 0 {
		t.Errorf("UnreadCount = %d, want 0", c.UnreadCount)
	}
	if s.UnreadTotal() != 0 {
		t.Errorf("UnreadTotal = %d, want 0", s.UnreadTotal())
	}
}

func TestUnreadTotal(t *testing.T) {
	s := NewConversations()
	t0 := time.Now()
	s.ReplaceAll([]model.Conversation{conv(1, t0, 2), conv(2, t0, 3)})
	if got := s.UnreadTotal(); got != 5 {
		t.Errorf("UnreadTotal = %d, want 5", got)
	}
}

func TestTouchResorts(t *testing.T) {
	s := NewConversations()
	t0 := time.Now()
	s.ReplaceAll([]model.Conversation{conv(1, t0.Add(-time.Hour), 0), conv(2, t0, 0)})

	s.Touch(1, model.MessagePreview{Content: "new msg"}, t0.Add(time.Minute))
	snap := s.Snapshot()
	if snap[0].ID != 1 {
		t.Errorf("conversation 1 should lead after Touch, got %d", snap[0].ID)
	}
	if snap[0].LastMessage == nil || snap[0].LastMessage.Content != "new msg" {
		t.Errorf("preview not updated: %+v", snap[0].LastMessage)
	}
}

func TestTouchIgnoresOlderMessage(t *testing.T) {
	s := NewConversations()
	t0 := time.Now()
	s.ReplaceAll([]model.Conversation{conv(1, t0, 0)})

	s.Touch(1, model.MessagePreview{Content: "fresh"}, t0.Add(time.Minute))
	s.Touch(1, model.MessagePreview{Content: "stale"}, t0.Add(-time.Minute))

	snap := s.Snapshot()
	if snap[0].LastMessage == nil || snap[0].LastMessage.Content != "fresh" {
		t.Errorf("preview = %+v, want the newer message kept", snap[0].LastMessage)
	}
	if !snap[0].LastActivityAt.Equal(t0.Add(time.Minute)) {
		t.Errorf("LastActivityAt = %v, want unchanged by the stale touch", snap[0].LastActivityAt)
	}
}

func msg(id string, convID int64, content string, at time.Time) model.Message {
	return model.Message{
		ID:             id,
		ConversationID: convID,
		Content:        content,
		CreatedAt:      at,
		Status:         model.StatusSent,
	}
}

func TestUpsertKeepsOrderAndUniqueness(t *testing.T) {
	s := NewMessages()
	t0 := time.Now()
	// Insert out of chronological order.
	s.Upsert(msg("20", 1, "second", t0.Add(time.Minute)))
	s.Upsert(msg("10", 1, "first", t0))

	thread := s.List(1)
	if len(thread) != 2 || thread[0].ID != "10" {
		t.Errorf("thread = %+v, want [10 20]", thread)
	}

	// Upserting the same ID replaces rather than duplicates.
	s.Upsert(msg("20", 1, "second edited", t0.Add(time.Minute)))
	thread = s.List(1)
	if len(thread) != 2 {
		t.Fatalf("len = %d, want 2", len(thread))
	}
	if thread[1].Content != "second edited" {
		t.Errorf("content = %q, want edited", thread[1].Content)
	}
}

func TestTiebreakByID(t *testing.T) {
	s := NewMessages()
	t0 := time.Now()
	s.Upsert(msg("b", 1, "x", t0))
	s.Upsert(msg("a", 1, "y", t0))
	thread := s.List(1)
	if thread[0].ID != "a" {
		t.Errorf("equal timestamps should order by ID, got %q first", thread[0].ID)
	}
}

func TestSwapReplacesPending(t *testing.T) {
	s := NewMessages()
	t0 := time.Now()
	pending := msg(model.LocalIDPrefix+"abc", 1, "hi", t0)
	pending.Status = model.StatusPending
	s.Upsert(pending)

	canonical := msg("500", 1, "hi", t0.Add(time.Second))
	s.Swap(1, pending.ID, canonical)

	thread := s.List(1)
	if len(thread) != 1 || thread[0].ID != "500" {
		t.Errorf("thread = %+v, want single canonical message", thread)
	}
}

func TestLocals(t *testing.T) {
	s := NewMessages()
	t0 := time.Now()
	s.Upsert(msg("1", 1, "server", t0))
	p := msg(model.LocalIDPrefix+"x", 1, "mine", t0.Add(time.Second))
	p.Status = model.StatusPending
	s.Upsert(p)

	locals := s.Locals(1)
	if len(locals) != 1 || locals[0].Content != "mine" {
		t.Errorf("Locals = %+v", locals)
	}
}

func TestReplaceDropsServerEntriesOnly(t *testing.T) {
	s := NewMessages()
	t0 := time.Now()
	s.Upsert(msg("1", 1, "old", t0))
	s.Replace(1, []model.Message{msg("2", 1, "new", t0.Add(time.Minute))})

	thread := s.List(1)
	if len(thread) != 1 || thread[0].ID != "2" {
		t.Errorf("thread = %+v, want only message 2", thread)
	}
}

func TestReconcileAndReplaceSeesCurrentLocals(t *testing.T) {
	s := NewMessages()
	t0 := time.Now()
	s.Upsert(msg("1", 1, "old server", t0))
	pending := msg(model.LocalIDPrefix+"p1", 1, "on my way", t0.Add(time.Second))
	pending.Status = model.StatusPending
	s.Upsert(pending)

	fetched := []model.Message{
		msg("1", 1, "old server", t0),
		msg("2", 1, "new server", t0.Add(2*time.Second)),
	}
	var saw []string
	s.ReconcileAndReplace(1, fetched, func(locals []model.Message) []model.Message {
		for _, m := range locals {
			saw = append(saw, m.ID)
		}
		return locals
	})

	if len(saw) != 1 || saw[0] != pending.ID {
		t.Errorf("keep saw %v, want exactly the pending local", saw)
	}
	got := s.List(1)
	if len(got) != 3 {
		t.Fatalf("thread = %d entries, want server pair plus the kept local", len(got))
	}
	if _, ok := s.Get(1, pending.ID); !ok {
		t.Error("kept local missing after replace")
	}
}

func TestSetStatusMissing(t *testing.T) {
	s := NewMessages()
	if s.SetStatus(1, "nope", model.StatusFailed) {
		t.Error("SetStatus on missing message should return false")
	}
}
