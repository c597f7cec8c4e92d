package cache

import (
	"encoding/json"
	"time"

	"github.com/coachpal/chatkit/internal/protocol"
)

// UpsertMessage inserts or updates a message (idempotent on conversation +
// message ID). Only confirmed messages belong in the cache; pending
// optimistic entries live in the in-memory store alone.
func (db *DB) UpsertMessage(m *protocol.Message) error {
	reactions, err := json.Marshal(m.Reactions)
	if err != nil {
		return err
	}
	now := time.Now().UnixMilli()
	_, err = db.Exec(`
		INSERT INTO messages (conversation_id, msg_id, client_msg_id, sender_id, content,
			message_type, reply_to_msg_id, media_url, status, edited, deleted, reactions,
			timestamp, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(conversation_id, msg_id) DO UPDATE SET
			content = excluded.content,
			status = excluded.status,
			edited = excluded.edited,
			deleted = excluded.deleted,
			reactions = excluded.reactions`,
		m.ConversationID, m.ID, m.ClientID, m.SenderID, m.Content,
		m.Type, m.ReplyToID, m.MediaURL, m.Status, m.Edited, m.Deleted, string(reactions),
		m.Timestamp, now)
	return err
}

// MarkMessageDeleted tombstones a cached message in place.
func (db *DB) MarkMessageDeleted(conversationID, msgID string) error {
	_, err := db.Exec(`
		UPDATE messages SET deleted = 1, content = '', media_url = ''
		WHERE conversation_id = ? AND msg_id = ?`, conversationID, msgID)
	return err
}

// ListMessages returns a conversation's messages in ascending timestamp
// order using keyset pagination. beforeTs <= 0 means "from the newest".
func (db *DB) ListMessages(conversationID string, beforeTs int64, limit int) ([]protocol.Message, error) {
	if limit <= 0 {
		limit = 50
	}
	if beforeTs <= 0 {
		beforeTs = time.Now().UnixMilli() + 1
	}
	rows, err := db.Query(`
		SELECT conversation_id, msg_id, client_msg_id, sender_id, content, message_type,
			reply_to_msg_id, media_url, status, edited, deleted, reactions, timestamp
		FROM messages
		WHERE conversation_id = ? AND timestamp < ?
		ORDER BY timestamp DESC, msg_id DESC
		LIMIT ?`, conversationID, beforeTs, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var msgs []protocol.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// Newest-first from the query; reverse into display order.
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

func scanMessage(row rowScanner) (protocol.Message, error) {
	var m protocol.Message
	var reactions string
	err := row.Scan(&m.ConversationID, &m.ID, &m.ClientID, &m.SenderID, &m.Content,
		&m.Type, &m.ReplyToID, &m.MediaURL, &m.Status, &m.Edited, &m.Deleted,
		&reactions, &m.Timestamp)
	if err != nil {
		return m, err
	}
	if reactions != "" && reactions != "{}" {
		_ = json.Unmarshal([]byte(reactions), &m.Reactions)
	}
	return m, nil
}
