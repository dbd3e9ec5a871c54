package cache

import (
	"fmt"
	"time"

	"github.com/Darelldrayton/parking-in-a-pinch-sub002/internal/model"
)

// ReplaceConversations mirrors a wholesale list replace into the cache.
// Participants collapse to the other-user summary; that is all the
// offline view needs. selfID picks which participant to keep.
func (db *DB) ReplaceConversations(convs []model.Conversation, selfID int64) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM conversations`); err != nil {
		return fmt.Errorf("clear conversations: %w", err)
	}

	now := time.Now().UnixMilli()
	for i := range convs {
		c := &convs[i]
		other := c.OtherParticipant(selfID)
		preview := ""
		if c.LastMessage != nil {
			preview = c.LastMessage.Content
		}
		if _, err := tx.Exec(`
			INSERT INTO conversations (id, conv_type, role, title, other_user_id, other_user_name, unread_count, preview, last_activity_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			c.ID, string(c.Type), string(c.Role), c.Title,
			other.ID, other.DisplayName, c.UnreadCount, preview,
			c.LastActivityAt.UnixMilli(), now); err != nil {
			return fmt.Errorf("insert conversation %d: %w", c.ID, err)
		}
	}

	return tx.Commit()
}

// ListConversations returns cached conversation summaries, most recently
// active first.
func (db *DB) ListConversations() ([]model.Conversation, error) {
	rows, err := db.Query(`
		SELECT id, conv_type, role, title, other_user_id, other_user_name, unread_count, preview, last_activity_at
		FROM conversations
		ORDER BY last_activity_at DESC`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var convs []model.Conversation
	for rows.Next() {
		var (
			c         model.Conversation
			typ, role string
			otherID   int64
			otherName string
			preview   string
			activity  int64
		)
		if err := rows.Scan(&c.ID, &typ, &role, &c.Title, &otherID, &otherName, &c.UnreadCount, &preview, &activity); err != nil {
			return nil, err
		}
		c.Type = model.ConversationType(typ)
		c.Role = model.Role(role)
		c.LastActivityAt = time.UnixMilli(activity)
		if otherID != 0 || otherName != "" {
			c.Participants = []model.UserRef{{ID: otherID, DisplayName: otherName}}
		}
		if preview != "" {
			c.LastMessage = &model.MessagePreview{Content: preview, SentAt: c.LastActivityAt}
		}
		convs = append(convs, c)
	}
	return convs, rows.Err()
}
