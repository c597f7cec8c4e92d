package store

import (
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/coachpal/chatkit/internal/bus"
	"github.com/coachpal/chatkit/internal/protocol"
)

const previewMaxLen = 100

// Store is the authoritative in-memory projection of all conversations and
// messages for the active session.
//
// All mutation goes through its methods under a single mutex, giving the
// single-writer discipline the rest of the system assumes. Accessors return
// copies, never internal pointers.
//
// Within a conversation, confirmed messages are totally ordered by
// (server timestamp, message ID); pending messages sit at the tail in local
// creation order until reconciled.
type Store struct {
	mu       sync.Mutex
	selfID   string
	convs    map[string]*protocol.Conversation
	msgs     map[string][]*protocol.Message
	lastRead map[string]string
	typing   map[string]map[string]bool
	online   map[string]bool
	bus      *bus.Bus
	logger   *zap.Logger
}

// New creates an empty store. selfID identifies the local user for unread
// and read-receipt bookkeeping.
func New(selfID string, b *bus.Bus, logger *zap.Logger) *Store {
	return &Store{
		selfID:   selfID,
		convs:    make(map[string]*protocol.Conversation),
		msgs:     make(map[string][]*protocol.Message),
		lastRead: make(map[string]string),
		typing:   make(map[string]map[string]bool),
		online:   make(map[string]bool),
		bus:      b,
		logger:   logger,
	}
}

// SelfID returns the local user ID.
func (s *Store) SelfID() string { return s.selfID }

// UpsertConversation inserts or replaces a conversation. A client-side
// tombstone survives server updates until the conversation is recreated
// explicitly.
func (s *Store) UpsertConversation(c *protocol.Conversation) {
	s.mu.Lock()
	cp := *c
	if existing, ok := s.convs[c.ID]; ok && existing.Deleted {
		cp.Deleted = true
	}
	s.convs[c.ID] = &cp
	s.mu.Unlock()
	s.notifyConversation(c.ID)
}

// Conversation returns a copy of the conversation, if present.
func (s *Store) Conversation(id string) (protocol.Conversation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.convs[id]
	if !ok {
		return protocol.Conversation{}, false
	}
	return *c, true
}

// Conversations returns all live (non-tombstoned) conversations, pinned
// first, then by most recent activity.
func (s *Store) Conversations() []protocol.Conversation {
	s.mu.Lock()
	out := make([]protocol.Conversation, 0, len(s.convs))
	for _, c := range s.convs {
		if c.Deleted {
			continue
		}
		out = append(out, *c)
	}
	s.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Pinned != out[j].Pinned {
			return out[i].Pinned
		}
		return out[i].LastActivity > out[j].LastActivity
	})
	return out
}

// DeleteConversation tombstones a conversation. The entry and its messages
// stay in memory so late events for it remain harmless no-ops.
func (s *Store) DeleteConversation(id string) {
	s.mu.Lock()
	if c, ok := s.convs[id]; ok {
		c.Deleted = true
	}
	s.mu.Unlock()
	s.notifyConversation(id)
}

// Messages returns copies of a conversation's messages in display order.
func (s *Store) Messages(conversationID string) []protocol.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.msgs[conversationID]
	out := make([]protocol.Message, 0, len(list))
	for _, m := range list {
		out = append(out, *m.Clone())
	}
	return out
}

// Message returns a copy of a single message looked up by server ID or
// correlation ID.
func (s *Store) Message(conversationID, id string) (protocol.Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if idx := s.indexOfLocked(conversationID, id); idx >= 0 {
		return *s.msgs[conversationID][idx].Clone(), true
	}
	return protocol.Message{}, false
}

// AddMessage appends a message to its conversation. Idempotent: a message
// whose ID (or correlation ID) is already present is replaced in place
// rather than duplicated. Confirmed messages are inserted in timestamp
// order ahead of the pending tail; pending messages are appended.
func (s *Store) AddMessage(conversationID string, m *protocol.Message) {
	s.mu.Lock()
	s.ensureConversationLocked(conversationID, m)

	if idx := s.indexOfLocked(conversationID, m.ID); idx >= 0 {
		s.replaceLocked(conversationID, idx, m)
	} else if m.ClientID != "" && m.SenderID == s.selfID {
		// Server echo of an optimistic send: reconcile by correlation ID.
		if idx := s.indexOfLocked(conversationID, m.ClientID); idx >= 0 {
			s.replaceLocked(conversationID, idx, m)
		} else {
			s.insertLocked(conversationID, m)
		}
	} else {
		s.insertLocked(conversationID, m)
	}

	s.refreshConversationLocked(conversationID)
	s.mu.Unlock()
	s.notifyMessage(conversationID, m.ID)
}

// UpdateMessage is the reconciliation primitive. id may be either the
// server ID or the client correlation ID of a still-pending message. The
// entry is replaced in place so the message keeps its list position; if a
// confirmed message with an earlier timestamp landed behind it in the
// meantime, the confirmed region is re-sorted. An unknown id upserts.
func (s *Store) UpdateMessage(conversationID, id string, updated *protocol.Message) {
	s.mu.Lock()
	idx := s.indexOfLocked(conversationID, id)
	if idx < 0 {
		s.mu.Unlock()
		// Event raced ahead of the local insert; tolerate as an insert.
		s.AddMessage(conversationID, updated)
		return
	}
	s.replaceLocked(conversationID, idx, updated)
	s.refreshConversationLocked(conversationID)
	s.mu.Unlock()
	s.notifyMessage(conversationID, updated.ID)
}

// ApplyDeleted tombstones a message in place, preserving its ID and
// position. A delete for an unknown message is a no-op.
func (s *Store) ApplyDeleted(conversationID, messageID string) {
	s.mu.Lock()
	idx := s.indexOfLocked(conversationID, messageID)
	if idx < 0 {
		s.mu.Unlock()
		return
	}
	m := s.msgs[conversationID][idx]
	m.Deleted = true
	m.Content = ""
	m.MediaURL = ""
	s.refreshConversationLocked(conversationID)
	s.mu.Unlock()
	s.notifyMessage(conversationID, messageID)
}

// ApplyRead records a read receipt. A receipt from the local user moves the
// last-read marker and clears the unread count; a receipt from a peer marks
// our own sent messages up to messageID as read.
func (s *Store) ApplyRead(conversationID, messageID, userID string) {
	s.mu.Lock()
	if userID == s.selfID {
		if messageID == "" {
			if list := s.msgs[conversationID]; len(list) > 0 {
				messageID = list[len(list)-1].ID
			}
		}
		s.lastRead[conversationID] = messageID
		if c, ok := s.convs[conversationID]; ok {
			c.UnreadCount = s.deriveUnreadLocked(conversationID)
		}
	} else {
		for _, m := range s.msgs[conversationID] {
			if m.SenderID != s.selfID {
				continue
			}
			if m.Status == protocol.StatusSent || m.Status == protocol.StatusDelivered {
				m.Status = protocol.StatusRead
			}
			if m.ID == messageID {
				break
			}
		}
	}
	s.mu.Unlock()
	s.notifyConversation(conversationID)
}

// ApplyConversationUpdate merges server-sent field changes into a
// conversation. Unknown keys are ignored.
func (s *Store) ApplyConversationUpdate(conversationID string, data map[string]any) {
	s.mu.Lock()
	c, ok := s.convs[conversationID]
	if !ok {
		c = &protocol.Conversation{ID: conversationID}
		s.convs[conversationID] = c
	}
	for key, val := range data {
		switch key {
		case "title":
			if v, ok := val.(string); ok {
				c.Title = v
			}
		case "muted":
			if v, ok := val.(bool); ok {
				c.Muted = v
			}
		case "pinned":
			if v, ok := val.(bool); ok {
				c.Pinned = v
			}
		case "archived":
			if v, ok := val.(bool); ok {
				c.Archived = v
			}
		}
	}
	s.mu.Unlock()
	s.notifyConversation(conversationID)
}

// SetTyping tracks a typing indicator for a conversation.
func (s *Store) SetTyping(conversationID, userID string, isTyping bool) {
	s.mu.Lock()
	set, ok := s.typing[conversationID]
	if !ok {
		set = make(map[string]bool)
		s.typing[conversationID] = set
	}
	if isTyping {
		set[userID] = true
	} else {
		delete(set, userID)
	}
	s.mu.Unlock()
}

// TypingUsers returns the users currently typing in a conversation, sorted.
func (s *Store) TypingUsers(conversationID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	set := s.typing[conversationID]
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// SetOnline tracks a user's presence.
func (s *Store) SetOnline(userID string, online bool) {
	s.mu.Lock()
	s.online[userID] = online
	s.mu.Unlock()
}

// IsOnline reports a user's last known presence.
func (s *Store) IsOnline(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.online[userID]
}

// TotalUnread returns the unread count summed over live conversations.
func (s *Store) TotalUnread() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, c := range s.convs {
		if !c.Deleted {
			total += c.UnreadCount
		}
	}
	return total
}

// Hydrate bulk-loads conversations and their messages, replacing current
// contents. Messages must arrive in ascending (timestamp, ID) order per
// conversation. Used at startup to seed the store from the local cache.
func (s *Store) Hydrate(convs []protocol.Conversation, msgs map[string][]protocol.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range convs {
		c := convs[i]
		s.convs[c.ID] = &c
	}
	for convID, list := range msgs {
		stored := make([]*protocol.Message, 0, len(list))
		for i := range list {
			stored = append(stored, list[i].Clone())
		}
		s.msgs[convID] = stored
	}
}

// --- internals, all called with s.mu held ---

func (s *Store) ensureConversationLocked(conversationID string, m *protocol.Message) {
	if _, ok := s.convs[conversationID]; ok {
		return
	}
	// First sight of this conversation; a conversation_updated or REST
	// fetch fills in the rest later.
	s.convs[conversationID] = &protocol.Conversation{
		ID:           conversationID,
		Type:         protocol.ConversationDirect,
		LastActivity: m.Timestamp,
	}
}

func (s *Store) indexOfLocked(conversationID, id string) int {
	if id == "" {
		return -1
	}
	for i, m := range s.msgs[conversationID] {
		if m.ID == id || (m.ClientID != "" && m.ClientID == id) {
			return i
		}
	}
	return -1
}

// insertLocked places a new message. Pending messages go to the tail;
// confirmed messages are inserted ahead of the pending tail at their
// (timestamp, ID) position.
func (s *Store) insertLocked(conversationID string, m *protocol.Message) {
	list := s.msgs[conversationID]
	cp := m.Clone()
	if cp.Timestamp == 0 {
		cp.Timestamp = time.Now().UnixMilli()
	}

	if cp.Status == protocol.StatusPending {
		s.msgs[conversationID] = append(list, cp)
		return
	}

	pos := len(list)
	for pos > 0 {
		prev := list[pos-1]
		if prev.Status == protocol.StatusPending || cp.Before(prev) {
			pos--
			continue
		}
		break
	}
	list = append(list, nil)
	copy(list[pos+1:], list[pos:])
	list[pos] = cp
	s.msgs[conversationID] = list
}

// replaceLocked swaps the entry at idx with updated, keeping its position.
// If the swap breaks the confirmed (timestamp, ID) order because a causally
// later confirmation already landed, the list is re-sorted.
func (s *Store) replaceLocked(conversationID string, idx int, updated *protocol.Message) {
	list := s.msgs[conversationID]
	cp := updated.Clone()
	if cp.Timestamp == 0 {
		cp.Timestamp = list[idx].Timestamp
	}
	list[idx] = cp

	if !s.orderedLocked(list) {
		sort.SliceStable(list, func(i, j int) bool {
			pi := list[i].Status == protocol.StatusPending
			pj := list[j].Status == protocol.StatusPending
			if pi || pj {
				// Pending stays at the tail, in insertion order.
				return !pi && pj
			}
			return list[i].Before(list[j])
		})
	}
}

// orderedLocked reports whether the confirmed region is in (timestamp, ID)
// order with all pending messages at the tail.
func (s *Store) orderedLocked(list []*protocol.Message) bool {
	var prev *protocol.Message
	seenPending := false
	for _, m := range list {
		if m.Status == protocol.StatusPending {
			seenPending = true
			continue
		}
		if seenPending {
			return false
		}
		if prev != nil && m.Before(prev) {
			return false
		}
		prev = m
	}
	return true
}

// refreshConversationLocked recomputes the derived conversation metadata
// (preview, last activity, unread count) from the message list.
func (s *Store) refreshConversationLocked(conversationID string) {
	c, ok := s.convs[conversationID]
	if !ok {
		return
	}
	list := s.msgs[conversationID]
	for i := len(list) - 1; i >= 0; i-- {
		if list[i].Deleted {
			continue
		}
		c.LastPreview = truncate(list[i].Content, previewMaxLen)
		if list[i].Timestamp > c.LastActivity {
			c.LastActivity = list[i].Timestamp
		}
		break
	}
	c.UnreadCount = s.deriveUnreadLocked(conversationID)
}

// deriveUnreadLocked counts messages after the last-read marker that were
// not sent by the local user.
func (s *Store) deriveUnreadLocked(conversationID string) int {
	marker := s.lastRead[conversationID]
	list := s.msgs[conversationID]
	count := 0
	seen := marker == ""
	for _, m := range list {
		if seen && m.SenderID != s.selfID && !m.Deleted {
			count++
		}
		if !seen && (m.ID == marker || (m.ClientID != "" && m.ClientID == marker)) {
			seen = true
		}
	}
	return count
}

func (s *Store) notifyMessage(conversationID, messageID string) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(bus.Event{
		Kind:      "store.message_changed",
		Timestamp: time.Now(),
		Payload:   Change{ConversationID: conversationID, MessageID: messageID},
	})
}

func (s *Store) notifyConversation(conversationID string) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(bus.Event{
		Kind:      "store.conversation_changed",
		Timestamp: time.Now(),
		Payload:   Change{ConversationID: conversationID},
	})
}

// Change is the payload for store.* change notifications.
type Change struct {
	ConversationID string
	MessageID      string
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen]
}
