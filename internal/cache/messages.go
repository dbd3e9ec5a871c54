package cache

import (
	"fmt"
	"time"

	"github.com/Darelldrayton/parking-in-a-pinch-sub002/internal/model"
)

// ReplaceMessages mirrors one conversation's canonical message list into
// the cache. Local (unacknowledged) entries are skipped: the cache only
// ever holds server truth.
func (db *DB) ReplaceMessages(conversationID int64, msgs []model.Message) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM messages WHERE conversation_id = ?`, conversationID); err != nil {
		return fmt.Errorf("clear messages: %w", err)
	}

	now := time.Now().UnixMilli()
	for i := range msgs {
		m := &msgs[i]
		if m.Local() {
			continue
		}
		if _, err := tx.Exec(`
			INSERT INTO messages (conversation_id, msg_id, sender_id, sender_name, content, status, is_own, created_at, cached_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(conversation_id, msg_id) DO UPDATE SET
				content = excluded.content,
				status = excluded.status`,
			conversationID, m.ID, m.SenderID, m.SenderName, m.Content,
			string(m.Status), m.IsOwn, m.CreatedAt.UnixMilli(), now); err != nil {
			return fmt.Errorf("insert message %s: %w", m.ID, err)
		}
	}

	return tx.Commit()
}

// UpsertMessage caches a single canonical message (idempotent on
// conversation + message ID).
func (db *DB) UpsertMessage(m *model.Message) error {
	if m.Local() {
		return nil
	}
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		INSERT INTO messages (conversation_id, msg_id, sender_id, sender_name, content, status, is_own, created_at, cached_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(conversation_id, msg_id) DO UPDATE SET
			content = excluded.content,
			status = excluded.status`,
		m.ConversationID, m.ID, m.SenderID, m.SenderName, m.Content,
		string(m.Status), m.IsOwn, m.CreatedAt.UnixMilli(), now)
	return err
}

// ListMessages returns one conversation's cached messages in
// chronological order.
func (db *DB) ListMessages(conversationID int64) ([]model.Message, error) {
	rows, err := db.Query(`
		SELECT msg_id, sender_id, sender_name, content, status, is_own, created_at
		FROM messages
		WHERE conversation_id = ?
		ORDER BY created_at ASC, msg_id ASC`, conversationID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var msgs []model.Message
	for rows.Next() {
		var (
			m       model.Message
			status  string
			created int64
		)
		if err := rows.Scan(&m.ID, &m.SenderID, &m.SenderName, &m.Content, &status, &m.IsOwn, &created); err != nil {
			return nil, err
		}
		m.ConversationID = conversationID
		m.Status = model.MessageStatus(status)
		m.CreatedAt = time.UnixMilli(created)
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}
