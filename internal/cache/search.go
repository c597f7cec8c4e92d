package cache

import "github.com/coachpal/chatkit/internal/protocol"

// SearchResult holds a matched message with a highlight snippet.
type SearchResult struct {
	Message protocol.Message
	Snippet string
}

// SearchMessages performs an offline full-text search over cached message
// bodies, optionally scoped to one conversation.
func (db *DB) SearchMessages(query, conversationID string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 50
	}

	q := `
		SELECT m.conversation_id, m.msg_id, m.client_msg_id, m.sender_id, m.content,
			m.message_type, m.reply_to_msg_id, m.media_url, m.status, m.edited,
			m.deleted, m.reactions, m.timestamp,
			snippet(messages_fts, 0, '<<', '>>', '...', 32)
		FROM messages_fts f
		JOIN messages m ON m.id = f.rowid
		WHERE messages_fts MATCH ? AND m.deleted = 0`

	args := []any{query}
	if conversationID != "" {
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
		var r SearchResult
		var reactions string
		m := &r.Message
		if err := rows.Scan(&m.ConversationID, &m.ID, &m.ClientID, &m.SenderID,
			&m.Content, &m.Type, &m.ReplyToID, &m.MediaURL, &m.Status, &m.Edited,
			&m.Deleted, &reactions, &m.Timestamp, &r.Snippet); err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}
