package rest

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Darelldrayton/parking-in-a-pinch-sub002/internal/model"
)

// This file is the normalization boundary. The backend has grown several
// spellings for the same logical fields across API revisions; everything
// is folded into the canonical model here so no other package ever probes
// alternate field names.

// unwrapList accepts either a bare JSON array or a paginated envelope
// ({"results": [...]}, or a named key like {"conversations": [...]}).
func unwrapList(data []byte, namedKey string) ([]json.RawMessage, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err == nil {
		return items, nil
	}
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("neither array nor object: %w", err)
	}
	for _, key := range []string{"results", namedKey, "data"} {
		if raw, ok := envelope[key]; ok {
			if err := json.Unmarshal(raw, &items); err != nil {
				return nil, fmt.Errorf("list under %q: %w", key, err)
			}
			return items, nil
		}
	}
	return nil, fmt.Errorf("no list found in envelope")
}

// NormalizeMessage folds a raw message payload into the canonical model.
// Exposed for the push listener, which receives the same shapes over the
// notification socket that the REST endpoints return.
func NormalizeMessage(raw json.RawMessage, selfID int64) (model.Message, error) {
	return normalizeMessage(raw, selfID)
}

func normalizeConversation(raw json.RawMessage) (model.Conversation, error) {
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return model.Conversation{}, err
	}

	id, ok := intField(m, "id", "pk")
	if !ok {
		return model.Conversation{}, fmt.Errorf("conversation without id")
	}

	conv := model.Conversation{
		ID:    id,
		Type:  normalizeType(stringField(m, "conversation_type", "type", "kind")),
		Role:  normalizeRole(stringField(m, "role", "user_role")),
		Title: stringField(m, "title", "name", "subject"),
	}

	if unread, ok := intField(m, "unread_count", "unread"); ok && unread > 0 {
		conv.UnreadCount = int(unread)
	}

	if t, ok := timeField(m, "last_activity_at", "last_message_at", "updated_at", "created_at"); ok {
		conv.LastActivityAt = t
	}

	conv.Participants = normalizeParticipants(m)

	if lm, ok := m["last_message"].(map[string]any); ok {
		preview := model.MessagePreview{
			Content: stringField(lm, "content", "body", "text", "message"),
		}
		if sid, ok := intField(lm, "sender_id", "sender"); ok {
			preview.SenderID = sid
		}
		if t, ok := timeField(lm, "created_at", "sent_at", "timestamp"); ok {
			preview.SentAt = t
		}
		conv.LastMessage = &preview
	} else if s := stringField(m, "last_message_preview", "last_message"); s != "" {
		conv.LastMessage = &model.MessagePreview{Content: s, SentAt: conv.LastActivityAt}
	}

	return conv, nil
}

// normalizeParticipants folds the three shapes the backend uses:
// a "participants" array, a "users" array, or a single "other_user"
// object on direct conversations.
func normalizeParticipants(m map[string]any) []model.UserRef {
	for _, key := range []string{"participants", "users"} {
		arr, ok := m[key].([]any)
		if !ok {
			continue
		}
		var refs []model.UserRef
		for _, item := range arr {
			u, ok := item.(map[string]any)
			if !ok {
				continue
			}
			if ref, ok := normalizeUser(u); ok {
				refs = append(refs, ref)
			}
		}
		if len(refs) > 0 {
			return refs
		}
	}
	for _, key := range []string{"other_user", "other_participant", "recipient"} {
		if u, ok := m[key].(map[string]any); ok {
			if ref, ok := normalizeUser(u); ok {
				return []model.UserRef{ref}
			}
		}
	}
	return nil
}

func normalizeUser(u map[string]any) (model.UserRef, bool) {
	id, ok := intField(u, "id", "pk", "user_id")
	if !ok {
		return model.UserRef{}, false
	}
	name := stringField(u, "display_name", "name", "username", "email")
	if name == "" {
		first := stringField(u, "first_name")
		last := stringField(u, "last_name")
		name = strings.TrimSpace(first + " " + last)
	}
	return model.UserRef{ID: id, DisplayName: name}, true
}

func normalizeMessage(raw json.RawMessage, selfID int64) (model.Message, error) {
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return model.Message{}, err
	}

	msg := model.Message{
		Content: stringField(m, "content", "body", "text", "message"),
		Status:  model.StatusSent,
	}

	if id, ok := intField(m, "id", "pk"); ok {
		msg.ID = strconv.FormatInt(id, 10)
	} else if s := stringField(m, "id"); s != "" {
		msg.ID = s
	} else {
		return model.Message{}, fmt.Errorf("message without id")
	}

	if cid, ok := intField(m, "conversation", "conversation_id"); ok {
		msg.ConversationID = cid
	}

	if sender, ok := m["sender"].(map[string]any); ok {
		if ref, ok := normalizeUser(sender); ok {
			msg.SenderID = ref.ID
			msg.SenderName = ref.DisplayName
		}
	} else if sid, ok := intField(m, "sender_id", "sender"); ok {
		msg.SenderID = sid
	}
	if msg.SenderName == "" {
		msg.SenderName = stringField(m, "sender_name")
	}

	if t, ok := timeField(m, "created_at", "createdAt", "timestamp", "sent_at"); ok {
		msg.CreatedAt = t
	}

	if s := stringField(m, "status", "delivery_status"); s != "" {
		msg.Status = normalizeStatus(s)
	} else if read, ok := m["is_read"].(bool); ok && read {
		msg.Status = model.StatusRead
	}

	if own, ok := boolField(m, "is_own", "is_mine", "from_me"); ok {
		msg.IsOwn = own
	} else {
		msg.IsOwn = msg.SenderID == selfID
	}

	return msg, nil
}

func normalizeType(s string) model.ConversationType {
	switch strings.ToLower(s) {
	case "booking", "reservation":
		return model.TypeBooking
	case "inquiry", "enquiry":
		return model.TypeInquiry
	case "listing":
		return model.TypeListing
	case "support":
		return model.TypeSupport
	case "dispute":
		return model.TypeDispute
	default:
		return model.TypeDirect
	}
}

func normalizeRole(s string) model.Role {
	switch strings.ToLower(s) {
	case "host", "owner":
		return model.RoleHost
	case "renter", "guest", "driver":
		return model.RoleRenter
	default:
		return model.RoleNone
	}
}

func normalizeStatus(s string) model.MessageStatus {
	switch strings.ToLower(s) {
	case "pending", "sending", "queued":
		return model.StatusPending
	case "delivered":
		return model.StatusDelivered
	case "read", "seen":
		return model.StatusRead
	case "failed", "error":
		return model.StatusFailed
	default:
		return model.StatusSent
	}
}

// stringField returns the first non-empty string among the given keys.
func stringField(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// intField returns the first key holding an integer, accepting JSON
// numbers and numeric strings.
func intField(m map[string]any, keys ...string) (int64, bool) {
	for _, k := range keys {
		switch v := m[k].(type) {
		case float64:
			return int64(v), true
		case string:
			if n, err := strconv.ParseInt(v, 10, 64); err == nil {
				return n, true
			}
		case json.Number:
			if n, err := v.Int64(); err == nil {
				return n, true
			}
		}
	}
	return 0, false
}

func boolField(m map[string]any, keys ...string) (bool, bool) {
	for _, k := range keys {
		if b, ok := m[k].(bool); ok {
			return b, true
		}
	}
	return false, false
}

// timeField parses the first key holding a timestamp: RFC 3339 strings,
// unix seconds, or unix milliseconds.
func timeField(m map[string]any, keys ...string) (time.Time, bool) {
	for _, k := range keys {
		switch v := m[k].(type) {
		case string:
			for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05"} {
				if t, err := time.Parse(layout, v); err == nil {
					return t, true
				}
			}
		case float64:
			// Values too large to be unix seconds are unix millis.
			if v > 4e10 {
				return time.UnixMilli(int64(v)), true
			}
			if v > 0 {
				return time.Unix(int64(v), 0), true
			}
		}
	}
	return time.Time{}, false
}
