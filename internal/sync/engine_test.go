package sync

import (
	"context"
	"errors"
	stdsync "sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/Darelldrayton/parking-in-a-pinch-sub002/internal/bus"
	"github.com/Darelldrayton/parking-in-a-pinch-sub002/internal/model"
	"github.com/Darelldrayton/parking-in-a-pinch-sub002/internal/rest"
	"github.com/Darelldrayton/parking-in-a-pinch-sub002/internal/store"
)

// fakeTransport implements Transport with canned data and call counters.
type fakeTransport struct {
	mu     stdsync.Mutex
	selfID int64

	convs   []model.Conversation
	threads map[int64][]model.Message

	listConvErr error
	listMsgErr  error
	createErr   error

	listConvCalls  int
	listMsgCalls   int
	createCalls    int
	markReadCalls  int
	bootstrapCalls int

	// When non-nil, the call blocks until the channel closes.
	listGate   chan struct{}
	createGate chan struct{}

	nextServerID int64
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{selfID: 5, threads: make(map[int64][]model.Message), nextServerID: 100}
}

func (f *fakeTransport) SelfID() int64 { return f.selfID }

func (f *fakeTransport) ListConversations(ctx context.Context) ([]model.Conversation, error) {
	f.mu.Lock()
	f.listConvCalls++
	gate := f.listGate
	err := f.listConvErr
	convs := append([]model.Conversation(nil), f.convs...)
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if err != nil {
		return nil, err
	}
	return convs, nil
}

func (f *fakeTransport) ListMessages(ctx context.Context, conversationID int64) ([]model.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listMsgCalls++
	if f.listMsgErr != nil {
		return nil, f.listMsgErr
	}
	return append([]model.Message(nil), f.threads[conversationID]...), nil
}

func (f *fakeTransport) CreateMessage(ctx context.Context, conversationID int64, content string) (model.Message, error) {
	f.mu.Lock()
	f.createCalls++
	gate := f.createGate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return model.Message{}, f.createErr
	}
	f.nextServerID++
	m := model.Message{
		ID:             itoa(f.nextServerID),
		ConversationID: conversationID,
		SenderID:       f.selfID,
		Content:        content,
		CreatedAt:      time.Now(),
		Status:         model.StatusSent,
		IsOwn:          true,
	}
	f.threads[conversationID] = append(f.threads[conversationID], m)
	return m, nil
}

func (f *fakeTransport) MarkConversationRead(ctx context.Context, conversationID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.markReadCalls++
	return nil
}

func (f *fakeTransport) BootstrapConversations(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bootstrapCalls++
	return nil
}

func (f *fakeTransport) calls() (listConv, listMsg, create, markRead, bootstrap int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listConvCalls, f.listMsgCalls, f.createCalls, f.markReadCalls, f.bootstrapCalls
}

func itoa(n int64) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}

func newTestEngine(t *testing.T, ft *fakeTransport, opts ...Option) (*Engine, *store.Conversations, *store.Messages, *bus.Bus) {
	t.Helper()
	convs := store.NewConversations()
	msgs := store.NewMessages()
	b := bus.New()
	e := NewEngine(ft, convs, msgs, b, zap.NewNop(), opts...)
	return e, convs, msgs, b
}

// waitFor polls until cond holds or the deadline expires.
func waitFor(t *testing.T, cond func() bool, what string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timeout waiting for %s", what)
}

func TestLoadConversationsReplacesWholesale(t *testing.T) {
	ft := newFakeTransport()
	ft.convs = []model.Conversation{
		{ID: 1, UnreadCount: 2, LastActivityAt: time.Now()},
		{ID: 2, LastActivityAt: time.Now().Add(time.Minute)},
	}
	e, convs, _, b := newTestEngine(t, ft)

	ch, unsub := b.Subscribe("conversation.", 10)
	defer unsub()

	if err := e.LoadConversations(context.Background()); err != nil {
		t.Fatal(err)
	}
	if convs.Len() != 2 {
		t.Fatalf("store has %d conversations, want 2", convs.Len())
	}

	// A second load with a shrunken list removes the dropped conversation.
	ft.mu.Lock()
	ft.convs = ft.convs[1:]
	ft.mu.Unlock()
	if err := e.LoadConversations(context.Background()); err != nil {
		t.Fatal(err)
	}
	if convs.Len() != 1 {
		t.Errorf("store has %d conversations after shrink, want 1", convs.Len())
	}
	if _, ok := convs.Get(1); ok {
		t.Error("conversation 1 should be gone after wholesale replace")
	}

	select {
	case evt := <-ch:
		if evt.Kind != bus.KindConversationsReplaced {
			t.Errorf("event kind = %q, want %q", evt.Kind, bus.KindConversationsReplaced)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for conversation.replaced event")
	}
}

func TestLoadConversationsCollapsesConcurrentCalls(t *testing.T) {
	ft := newFakeTransport()
	ft.listGate = make(chan struct{})
	e, _, _, _ := newTestEngine(t, ft)

	var wg stdsync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = e.LoadConversations(context.Background())
		}()
	}

	// All five callers should pile onto one in-flight request.
	waitFor(t, func() bool {
		listConv, _, _, _, _ := ft.calls()
		return listConv == 1
	}, "first request to start")
	time.Sleep(20 * time.Millisecond)
	close(ft.listGate)
	wg.Wait()

	listConv, _, _, _, _ := ft.calls()
	if listConv != 1 {
		t.Errorf("transport saw %d list calls, want 1", listConv)
	}
}

func TestBootstrapRunsOncePerProcess(t *testing.T) {
	ft := newFakeTransport()
	e, _, _, _ := newTestEngine(t, ft)

	for i := 0; i < 3; i++ {
		if err := e.LoadConversations(context.Background()); err != nil {
			t.Fatal(err)
		}
	}
	_, _, _, _, bootstrap := ft.calls()
	if bootstrap != 1 {
		t.Errorf("bootstrap called %d times, want 1", bootstrap)
	}
}

func TestLoadConversationsErrorKeepsStore(t *testing.T) {
	ft := newFakeTransport()
	ft.convs = []model.Conversation{{ID: 1, LastActivityAt: time.Now()}}
	e, convs, _, _ := newTestEngine(t, ft)

	if err := e.LoadConversations(context.Background()); err != nil {
		t.Fatal(err)
	}
	ft.mu.Lock()
	ft.listConvErr = &rest.NetworkError{Op: "list conversations", Err: errors.New("boom")}
	ft.mu.Unlock()

	err := e.LoadConversations(context.Background())
	var ne *rest.NetworkError
	if !errors.As(err, &ne) {
		t.Fatalf("err = %v, want NetworkError", err)
	}
	if convs.Len() != 1 {
		t.Error("failed fetch must not clear the store")
	}
}

func TestLoadMessagesReconcilesPendingEcho(t *testing.T) {
	ft := newFakeTransport()
	e, _, msgs, _ := newTestEngine(t, ft)
	e.SelectConversation(context.Background(), 1)
	waitFor(t, func() bool {
		_, listMsg, _, _, _ := ft.calls()
		return listMsg == 1
	}, "selection fetch to finish")

	now := time.Now()
	pending := model.Message{
		ID: model.LocalIDPrefix + "a", ConversationID: 1,
		Content: "on my way ", CreatedAt: now,
		Status: model.StatusPending, IsOwn: true,
	}
	msgs.Upsert(pending)

	// Server already has the echo, plus an unrelated inbound message.
	ft.mu.Lock()
	ft.threads[1] = []model.Message{
		{ID: "50", ConversationID: 1, Content: "on my way", CreatedAt: now.Add(3 * time.Second), Status: model.StatusSent, IsOwn: true},
		{ID: "51", ConversationID: 1, Content: "ok!", CreatedAt: now.Add(5 * time.Second), Status: model.StatusSent},
	}
	ft.mu.Unlock()

	if err := e.LoadMessages(context.Background(), 1); err != nil {
		t.Fatal(err)
	}

	thread := msgs.List(1)
	if len(thread) != 2 {
		t.Fatalf("thread has %d messages, want 2: %+v", len(thread), thread)
	}
	for _, m := range thread {
		if m.Local() {
			t.Errorf("local message %s should have been claimed by its echo", m.ID)
		}
	}
}

func TestLoadMessagesKeepsUnmatchedPending(t *testing.T) {
	ft := newFakeTransport()
	e, _, msgs, _ := newTestEngine(t, ft)
	e.SelectConversation(context.Background(), 1)
	waitFor(t, func() bool {
		_, listMsg, _, _, _ := ft.calls()
		return listMsg == 1
	}, "selection fetch to finish")

	pending := model.Message{
		ID: model.LocalIDPrefix + "b", ConversationID: 1,
		Content: "still in flight", CreatedAt: time.Now(),
		Status: model.StatusPending, IsOwn: true,
	}
	msgs.Upsert(pending)

	ft.mu.Lock()
	ft.threads[1] = []model.Message{
		{ID: "50", ConversationID: 1, Content: "something else", CreatedAt: time.Now(), Status: model.StatusSent},
	}
	ft.mu.Unlock()

	if err := e.LoadMessages(context.Background(), 1); err != nil {
		t.Fatal(err)
	}

	if _, ok := msgs.Get(1, pending.ID); !ok {
		t.Error("unmatched pending message must survive a thread replace")
	}
	if len(msgs.List(1)) != 2 {
		t.Errorf("thread has %d messages, want 2", len(msgs.List(1)))
	}
}

func TestLoadMessagesStaleResponseDiscarded(t *testing.T) {
	ft := newFakeTransport()
	ft.mu.Lock()
	ft.threads[1] = []model.Message{
		{ID: "50", ConversationID: 1, Content: "old thread", CreatedAt: time.Now(), Status: model.StatusSent},
	}
	ft.mu.Unlock()
	e, _, msgs, _ := newTestEngine(t, ft)

	// User has moved to conversation 2 by the time the fetch for 1 lands.
	e.SelectConversation(context.Background(), 2)

	if err := e.LoadMessages(context.Background(), 1); err != nil {
		t.Fatal(err)
	}
	if msgs.Has(1) {
		t.Error("stale response must not populate the store")
	}
}

func TestLoadMessagesMarksReadProvisionally(t *testing.T) {
	ft := newFakeTransport()
	ft.convs = []model.Conversation{{ID: 1, UnreadCount: 3, LastActivityAt: time.Now()}}
	e, convs, _, _ := newTestEngine(t, ft)
	if err := e.LoadConversations(context.Background()); err != nil {
		t.Fatal(err)
	}
	e.SelectConversation(context.Background(), 1)

	waitFor(t, func() bool {
		c, ok := convs.Get(1)
		return ok && c.UnreadCount == 0
	}, "unread count to zero")
	waitFor(t, func() bool {
		_, _, _, markRead, _ := ft.calls()
		return markRead == 1
	}, "mark-read request")
}

func TestMarkReadSkippedWhenAlreadyRead(t *testing.T) {
	ft := newFakeTransport()
	ft.convs = []model.Conversation{{ID: 1, UnreadCount: 0, LastActivityAt: time.Now()}}
	e, _, _, _ := newTestEngine(t, ft)
	if err := e.LoadConversations(context.Background()); err != nil {
		t.Fatal(err)
	}
	e.SelectConversation(context.Background(), 1)

	waitFor(t, func() bool {
		_, listMsg, _, _, _ := ft.calls()
		return listMsg == 1
	}, "thread fetch")
	time.Sleep(50 * time.Millisecond)

	_, _, _, markRead, _ := ft.calls()
	if markRead != 0 {
		t.Errorf("mark-read called %d times for an already-read conversation, want 0", markRead)
	}
}

func TestSendMessageRejectsEmptyWithoutRequest(t *testing.T) {
	ft := newFakeTransport()
	e, _, msgs, _ := newTestEngine(t, ft)

	for _, content := range []string{"", "   ", "\n\t"} {
		_, err := e.SendMessage(context.Background(), 1, content)
		var ve *rest.ValidationError
		if !errors.As(err, &ve) {
			t.Errorf("SendMessage(%q) err = %v, want ValidationError", content, err)
		}
	}
	_, _, create, _, _ := ft.calls()
	if create != 0 {
		t.Errorf("transport saw %d create calls, want 0", create)
	}
	if msgs.Has(1) {
		t.Error("rejected sends must not leave pending entries")
	}
}

func TestSendMessageRejectsOversized(t *testing.T) {
	ft := newFakeTransport()
	e, _, _, _ := newTestEngine(t, ft)

	big := make([]byte, MaxMessageLen+1)
	for i := range big {
		big[i] = 'a'
	}
	_, err := e.SendMessage(context.Background(), 1, string(big))
	var ve *rest.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
}

func TestSendMessageOptimisticThenCanonical(t *testing.T) {
	ft := newFakeTransport()
	ft.convs = []model.Conversation{{ID: 1, LastActivityAt: time.Now().Add(-time.Hour)}}
	e, convs, msgs, b := newTestEngine(t, ft)
	if err := e.LoadConversations(context.Background()); err != nil {
		t.Fatal(err)
	}

	ch, unsub := b.Subscribe("message.", 10)
	defer unsub()

	ft.createGate = make(chan struct{})
	localID, err := e.SendMessage(context.Background(), 1, "see you at 3")
	if err != nil {
		t.Fatal(err)
	}

	// The pending entry is visible while the request is still in flight.
	if m, ok := msgs.Get(1, localID); !ok || m.Status != model.StatusPending {
		t.Fatalf("pending message missing or wrong status: %+v ok=%v", m, ok)
	}
	close(ft.createGate)

	// Delivery swaps it for the canonical record.
	waitFor(t, func() bool {
		_, ok := msgs.Get(1, localID)
		return !ok
	}, "pending entry to be swapped out")

	thread := msgs.List(1)
	if len(thread) != 1 || thread[0].Local() || thread[0].Status != model.StatusSent {
		t.Fatalf("thread = %+v, want one canonical sent message", thread)
	}

	c, _ := convs.Get(1)
	if c.LastMessage == nil || c.LastMessage.Content != "see you at 3" {
		t.Errorf("conversation preview not updated: %+v", c.LastMessage)
	}

	sawAck := false
	deadline := time.After(time.Second)
	for !sawAck {
		select {
		case evt := <-ch:
			if evt.Kind == bus.KindMessageSendAck {
				sawAck = true
			}
		case <-deadline:
			t.Fatal("timeout waiting for send ack event")
		}
	}
}

func TestSendMessageFailureThenRetry(t *testing.T) {
	ft := newFakeTransport()
	ft.createErr = &rest.NetworkError{Op: "create message", Err: errors.New("timeout")}
	e, _, msgs, b := newTestEngine(t, ft)

	ch, unsub := b.Subscribe("message.", 10)
	defer unsub()

	localID, err := e.SendMessage(context.Background(), 1, "hello?")
	if err != nil {
		t.Fatal(err)
	}

	waitFor(t, func() bool {
		m, ok := msgs.Get(1, localID)
		return ok && m.Status == model.StatusFailed
	}, "send to fail")

	var failure bus.SendFailure
	deadline := time.After(time.Second)
	for failure.MessageID == "" {
		select {
		case evt := <-ch:
			if evt.Kind == bus.KindMessageSendFailed {
				failure = evt.Payload.(bus.SendFailure)
			}
		case <-deadline:
			t.Fatal("timeout waiting for send failed event")
		}
	}
	if failure.ConversationID != 1 || failure.MessageID != localID {
		t.Errorf("failure = %+v", failure)
	}

	// The network recovers; retry delivers the same content.
	ft.mu.Lock()
	ft.createErr = nil
	ft.mu.Unlock()
	if err := e.RetrySend(context.Background(), 1, localID); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool {
		_, ok := msgs.Get(1, localID)
		return !ok
	}, "retry to swap in canonical record")

	thread := msgs.List(1)
	if len(thread) != 1 || thread[0].Content != "hello?" || thread[0].Status != model.StatusSent {
		t.Errorf("thread after retry = %+v", thread)
	}
}

func TestRetrySendRejectsNonFailed(t *testing.T) {
	ft := newFakeTransport()
	e, _, msgs, _ := newTestEngine(t, ft)

	// Unknown ID.
	if err := e.RetrySend(context.Background(), 1, model.LocalIDPrefix+"nope"); err == nil {
		t.Error("retry of unknown message should fail")
	}

	// Canonical (server) message.
	msgs.Upsert(model.Message{ID: "9", ConversationID: 1, Content: "x", CreatedAt: time.Now(), Status: model.StatusSent})
	if err := e.RetrySend(context.Background(), 1, "9"); err == nil {
		t.Error("retry of a canonical message should fail")
	}
}

func TestSelectConversationHonorsFreshness(t *testing.T) {
	ft := newFakeTransport()
	e, _, _, _ := newTestEngine(t, ft, WithFreshness(time.Hour))

	e.SelectConversation(context.Background(), 1)
	waitFor(t, func() bool {
		_, listMsg, _, _, _ := ft.calls()
		return listMsg == 1
	}, "initial thread fetch")

	// Re-selecting within the freshness window fetches nothing.
	e.SelectConversation(context.Background(), 1)
	time.Sleep(50 * time.Millisecond)
	_, listMsg, _, _, _ := ft.calls()
	if listMsg != 1 {
		t.Errorf("transport saw %d thread fetches, want 1", listMsg)
	}
}

func TestSelectConversationRefetchesWhenStale(t *testing.T) {
	ft := newFakeTransport()
	e, _, _, _ := newTestEngine(t, ft, WithFreshness(time.Nanosecond))

	e.SelectConversation(context.Background(), 1)
	waitFor(t, func() bool {
		_, listMsg, _, _, _ := ft.calls()
		return listMsg == 1
	}, "first fetch")

	e.SelectConversation(context.Background(), 1)
	waitFor(t, func() bool {
		_, listMsg, _, _, _ := ft.calls()
		return listMsg == 2
	}, "refetch after staleness")
}

func TestPushHintIngestsMessage(t *testing.T) {
	ft := newFakeTransport()
	ft.convs = []model.Conversation{{ID: 1, LastActivityAt: time.Now().Add(-time.Hour)}}
	e, convs, msgs, b := newTestEngine(t, ft)
	if err := e.LoadConversations(context.Background()); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	e.Start(ctx)
	defer e.Stop()

	at := time.Now()
	b.Emit(bus.KindPushMessageNew, &model.Message{
		ID: "77", ConversationID: 1, SenderID: 9,
		Content: "gate is open", CreatedAt: at, Status: model.StatusSent,
	})

	waitFor(t, func() bool {
		_, ok := msgs.Get(1, "77")
		return ok
	}, "pushed message to land in store")

	c, _ := convs.Get(1)
	if c.LastMessage == nil || c.LastMessage.Content != "gate is open" {
		t.Errorf("preview = %+v, want pushed content", c.LastMessage)
	}
	if !c.LastActivityAt.Equal(at) {
		t.Errorf("LastActivityAt = %v, want %v", c.LastActivityAt, at)
	}
}

func TestUnreadTotal(t *testing.T) {
	ft := newFakeTransport()
	ft.convs = []model.Conversation{
		{ID: 1, UnreadCount: 2, LastActivityAt: time.Now()},
		{ID: 2, UnreadCount: 3, LastActivityAt: time.Now()},
	}
	e, _, _, _ := newTestEngine(t, ft)
	if err := e.LoadConversations(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := e.UnreadTotal(); got != 5 {
		t.Errorf("UnreadTotal = %d, want 5", got)
	}
}
