package cache

import (
	"time"

	"github.com/Darelldrayton/parking-in-a-pinch-sub002/internal/model"
)

// SearchResult holds a matching cached message with a highlight snippet.
type SearchResult struct {
	Message model.Message
	Snippet string
}

// SearchMessages runs a full-text search over cached message content.
// conversationID of 0 searches every conversation.
func (db *DB) SearchMessages(query string, conversationID int64, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 50
	}

	q := `
		SELECT m.conversation_id, m.msg_id, m.sender_id, m.sender_name, m.content,
		       m.status, m.is_own, m.created_at,
		       snippet(messages_fts, 0, '<<', '>>', '...', 32)
		FROM messages_fts f
		JOIN messages m ON m.id = f.rowid
		WHERE messages_fts MATCH ?`

	args := []any{query}
	if conversationID != 0 {
		q += " AND m.conversation_id = ?"
		args = append(args, conversationID)
	}
	q += " ORDER BY rank LIMIT ?"
	args = append(args, limit)

	rows, err := db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var results []SearchResult
	for rows.Next() {
		var (
			r       SearchResult
			status  string
			created int64
		)
		if err := rows.Scan(
			&r.Message.ConversationID, &r.Message.ID, &r.Message.SenderID,
			&r.Message.SenderName, &r.Message.Content, &status,
			&r.Message.IsOwn, &created, &r.Snippet,
		); err != nil {
			return nil, err
		}
		r.Message.Status = model.MessageStatus(status)
		r.Message.CreatedAt = time.UnixMilli(created)
		results = append(results, r)
	}
	return results, rows.Err()
}
