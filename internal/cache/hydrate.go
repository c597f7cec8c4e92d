package cache

import "github.com/coachpal/chatkit/internal/protocol"

// hydrateWindow is how many recent messages per conversation are loaded at
// startup; older history comes in on demand via REST pagination.
const hydrateWindow = 200

// Snapshot loads all cached conversations and the most recent messages for
// each, ready to seed the in-memory store.
func (db *DB) Snapshot() ([]protocol.Conversation, map[string][]protocol.Message, error) {
	convs, err := db.ListConversations()
	if err != nil {
		return nil, nil, err
	}

	msgs := make(map[string][]protocol.Message, len(convs))
	for _, c := range convs {
		list, err := db.ListMessages(c.ID, 0, hydrateWindow)
		if err != nil {
			return nil, nil, err
		}
		if len(list) > 0 {
			msgs[c.ID] = list
		}
	}
	return convs, msgs, nil
}
