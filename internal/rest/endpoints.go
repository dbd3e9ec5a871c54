package rest

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"go.uber.org/zap"

	"github.com/Darelldrayton/parking-in-a-pinch-sub002/internal/model"
)

// ListConversations fetches the full conversation list. The backend is
// authoritative; callers replace their cache wholesale with the result.
func (c *Client) ListConversations(ctx context.Context) ([]model.Conversation, error) {
	data, err := c.request(ctx, http.MethodGet, "/api/conversations", nil, nil)
	if err != nil {
		return nil, err
	}
	items, err := unwrapList(data, "conversations")
	if err != nil {
		return nil, fmt.Errorf("decode conversation list: %w", err)
	}
	convs := make([]model.Conversation, 0, len(items))
	for _, raw := range items {
		conv, err := normalizeConversation(raw)
		if err != nil {
			c.logger.Warn("skipping malformed conversation payload", zap.Error(err))
			continue
		}
		convs = append(convs, conv)
	}
	return convs, nil
}

// ListMessages fetches the ordered message history for one conversation.
func (c *Client) ListMessages(ctx context.Context, conversationID int64) ([]model.Message, error) {
	q := url.Values{}
	q.Set("conversation", strconv.FormatInt(conversationID, 10))
	q.Set("ordering", "created_at")
	data, err := c.request(ctx, http.MethodGet, "/api/messages", nil, q)
	if err != nil {
		return nil, err
	}
	items, err := unwrapList(data, "messages")
	if err != nil {
		return nil, fmt.Errorf("decode message list: %w", err)
	}
	msgs := make([]model.Message, 0, len(items))
	for _, raw := range items {
		msg, err := normalizeMessage(raw, c.selfID)
		if err != nil {
			c.logger.Warn("skipping malformed message payload", zap.Error(err))
			continue
		}
		msg.ConversationID = conversationID
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

// CreateMessage posts a new message and returns the canonical record the
// server assigned.
func (c *Client) CreateMessage(ctx context.Context, conversationID int64, content string) (model.Message, error) {
	body := map[string]any{
		"content":      content,
		"conversation": conversationID,
		"message_type": "text",
	}
	data, err := c.request(ctx, http.MethodPost, "/api/messages", body, nil)
	if err != nil {
		return model.Message{}, err
	}
	msg, err := normalizeMessage(data, c.selfID)
	if err != nil {
		return model.Message{}, fmt.Errorf("decode created message: %w", err)
	}
	msg.ConversationID = conversationID
	msg.IsOwn = true
	return msg, nil
}

// MarkConversationRead acknowledges all messages in a conversation as
// read. Idempotent server-side; calling it twice is harmless.
func (c *Client) MarkConversationRead(ctx context.Context, conversationID int64) error {
	path := fmt.Sprintf("/api/conversations/%d/mark_as_read", conversationID)
	_, err := c.request(ctx, http.MethodPost, path, nil, nil)
	return err
}

// BootstrapConversations asks the backend to create any conversations
// implied by the user's bookings and listings. Idempotent; the server
// skips ones that already exist.
func (c *Client) BootstrapConversations(ctx context.Context) error {
	_, err := c.request(ctx, http.MethodPost, "/api/conversations/bootstrap", nil, nil)
	return err
}
