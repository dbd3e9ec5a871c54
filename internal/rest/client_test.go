package rest

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRequestSendsBearerToken(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok-123", 1)
	if _, err := c.ListConversations(context.Background()); err != nil {
		t.Fatal(err)
	}
	if gotAuth != "Bearer tok-123" {
		t.Errorf("Authorization = %q, want Bearer tok-123", gotAuth)
	}
}

func TestListMessagesQuery(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		_, _ = w.Write([]byte(`{"results":[{"id":1,"content":"hi","sender_id":2,"created_at":"2026-08-30T10:00:00Z"}]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "t", 2)
	msgs, err := c.ListMessages(context.Background(), 77)
	if err != nil {
		t.Fatal(err)
	}
	if gotQuery != "conversation=77&ordering=created_at" {
		t.Errorf("query = %q", gotQuery)
	}
	if len(msgs) != 1 || msgs[0].ConversationID != 77 {
		t.Errorf("msgs = %+v, want one message bound to conversation 77", msgs)
	}
	if !msgs[0].IsOwn {
		t.Error("sender 2 should be own for selfID 2")
	}
}

func TestServerErrorCarriesDetail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"detail":"You are not a participant of this conversation."}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "t", 1)
	_, err := c.ListMessages(context.Background(), 5)
	var se *ServerError
	if !errors.As(err, &se) {
		t.Fatalf("error = %v, want *ServerError", err)
	}
	if se.Status != http.StatusForbidden {
		t.Errorf("Status = %d, want 403", se.Status)
	}
	if UserMessage(err) != "You are not a participant of this conversation." {
		t.Errorf("UserMessage = %q", UserMessage(err))
	}
}

func TestUnauthorizedPropagates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "expired", 1)
	_, err := c.ListConversations(context.Background())
	var se *ServerError
	if !errors.As(err, &se) || !se.Unauthorized() {
		t.Fatalf("error = %v, want unauthorized ServerError", err)
	}
}

func TestTimeoutIsNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "t", 1, WithTimeout(20*time.Millisecond))
	_, err := c.ListConversations(context.Background())
	var ne *NetworkError
	if !errors.As(err, &ne) {
		t.Fatalf("error = %v, want *NetworkError", err)
	}
	if !Retryable(err) {
		t.Error("network errors must be retryable")
	}
}

func TestRetryable(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{&NetworkError{Op: "GET /x", Err: errors.New("refused")}, true},
		{&ServerError{Status: 500}, true},
		{&ServerError{Status: 503}, true},
		{&ServerError{Status: 400}, false},
		{&ServerError{Status: 401}, false},
		{&ValidationError{Reason: "empty"}, false},
	}
	for _, tt := range tests {
		if got := Retryable(tt.err); got != tt.want {
			t.Errorf("Retryable(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestCreateMessageNormalizesResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id": 555, "conversation": 9, "body": "hi there", "created_at": "2026-08-30T12:00:00Z"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "t", 1)
	msg, err := c.CreateMessage(context.Background(), 9, "hi there")
	if err != nil {
		t.Fatal(err)
	}
	if msg.ID != "555" {
		t.Errorf("ID = %q, want 555", msg.ID)
	}
	if !msg.IsOwn {
		t.Error("created message must be own")
	}
}

func TestMarkConversationReadPath(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "t", 1)
	if err := c.MarkConversationRead(context.Background(), 31); err != nil {
		t.Fatal(err)
	}
	if gotPath != "/api/conversations/31/mark_as_read" {
		t.Errorf("path = %q", gotPath)
	}
}
