package cache

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/coachpal/chatkit/internal/protocol"
)

// UpsertConversation inserts or updates a conversation row (idempotent on ID).
func (db *DB) UpsertConversation(c *protocol.Conversation) error {
	participants, err := json.Marshal(c.ParticipantIDs)
	if err != nil {
		return err
	}
	now := time.Now().UnixMilli()
	_, err = db.Exec(`
		INSERT INTO conversations (id, type, title, participant_ids, muted, pinned, archived,
			unread_count, last_message_preview, last_activity_at, deleted, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			type = excluded.type,
			title = excluded.title,
			participant_ids = excluded.participant_ids,
			muted = excluded.muted,
			pinned = excluded.pinned,
			archived = excluded.archived,
			unread_count = excluded.unread_count,
			last_message_preview = excluded.last_message_preview,
			last_activity_at = excluded.last_activity_at,
			deleted = excluded.deleted,
			updated_at = excluded.updated_at`,
		c.ID, c.Type, c.Title, string(participants), c.Muted, c.Pinned, c.Archived,
		c.UnreadCount, c.LastPreview, c.LastActivity, c.Deleted, now)
	return err
}

// ListConversations returns all cached conversations, most recent activity
// first. Tombstoned conversations are included; callers filter.
func (db *DB) ListConversations() ([]protocol.Conversation, error) {
	rows, err := db.Query(`
		SELECT id, type, title, participant_ids, muted, pinned, archived,
			unread_count, last_message_preview, last_activity_at, deleted
		FROM conversations
		ORDER BY last_activity_at DESC`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var convs []protocol.Conversation
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		convs = append(convs, c)
	}
	return convs, rows.Err()
}

// GetConversation returns a cached conversation or nil if absent.
func (db *DB) GetConversation(id string) (*protocol.Conversation, error) {
	row := db.QueryRow(`
		SELECT id, type, title, participant_ids, muted, pinned, archived,
			unread_count, last_message_preview, last_activity_at, deleted
		FROM conversations WHERE id = ?`, id)
	c, err := scanConversation(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConversation(row rowScanner) (protocol.Conversation, error) {
	var c protocol.Conversation
	var participants string
	err := row.Scan(&c.ID, &c.Type, &c.Title, &participants, &c.Muted, &c.Pinned,
		&c.Archived, &c.UnreadCount, &c.LastPreview, &c.LastActivity, &c.Deleted)
	if err != nil {
		return c, err
	}
	if participants != "" {
		_ = json.Unmarshal([]byte(participants), &c.ParticipantIDs)
	}
	return c, nil
}
