package cache

import "time"

// SaveDraft persists an in-progress draft for a conversation.
func (db *DB) SaveDraft(conversationID int64, text string) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		INSERT INTO drafts (conversation_id, content, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(conversation_id) DO UPDATE SET
			content = excluded.content,
			updated_at = excluded.updated_at`,
		conversationID, text, now)
	return err
}

// DeleteDraft removes a conversation's persisted draft.
func (db *DB) DeleteDraft(conversationID int64) error {
	_, err := db.Exec(`DELETE FROM drafts WHERE conversation_id = ?`, conversationID)
	return err
}

// ListDrafts returns all persisted drafts keyed by conversation.
func (db *DB) ListDrafts() (map[int64]string, error) {
	rows, err := db.Query(`SELECT conversation_id, content FROM drafts`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	drafts := make(map[int64]string)
	for rows.Next() {
		var (
			id   int64
			text string
		)
		if err := rows.Scan(&id, &text); err != nil {
			return nil, err
		}
		drafts[id] = text
	}
	return drafts, rows.Err()
}
