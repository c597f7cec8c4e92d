package protocol

// ConversationType distinguishes one-on-one threads from group threads.
type ConversationType string

const (
	ConversationDirect ConversationType = "direct"
	ConversationGroup  ConversationType = "group"
)

// DeliveryStatus tracks a message through its outbound lifecycle.
type DeliveryStatus string

const (
	StatusPending   DeliveryStatus = "pending"
	StatusSent      DeliveryStatus = "sent"
	StatusDelivered DeliveryStatus = "delivered"
	StatusRead      DeliveryStatus = "read"
	StatusFailed    DeliveryStatus = "failed"
)

// MessageType enumerates message content kinds.
type MessageType string

const (
	MessageText   MessageType = "text"
	MessageImage  MessageType = "image"
	MessageAudio  MessageType = "audio"
	MessageVideo  MessageType = "video"
	MessageFile   MessageType = "file"
	MessageSystem MessageType = "system"
)

// Conversation is a chat thread as the server describes it.
type Conversation struct {
	ID             string           `json:"id"`
	Type           ConversationType `json:"type"`
	Title          string           `json:"title,omitempty"`
	ParticipantIDs []string         `json:"participantIds"`
	Muted          bool             `json:"muted"`
	Pinned         bool             `json:"pinned"`
	Archived       bool             `json:"archived"`
	UnreadCount    int              `json:"unreadCount"`
	LastPreview    string           `json:"lastMessagePreview,omitempty"`
	LastActivity   int64            `json:"lastActivityAt"` // unix millis
	Deleted        bool             `json:"-"`              // client-side tombstone, never wire-visible
}

// Message is a chat message in wire and domain form. Before server
// confirmation ID holds the client-generated correlation ID; after
// confirmation ID is server-assigned and ClientID echoes the correlation.
type Message struct {
	ID             string              `json:"id"`
	ClientID       string              `json:"clientMessageId,omitempty"`
	ConversationID string              `json:"conversationId"`
	SenderID       string              `json:"senderId"`
	Content        string              `json:"content"`
	Type           MessageType         `json:"type"`
	ReplyToID      string              `json:"replyToMessageId,omitempty"`
	MediaURL       string              `json:"mediaUrl,omitempty"`
	Timestamp      int64               `json:"timestamp"` // unix millis, server-assigned once confirmed
	Status         DeliveryStatus      `json:"status,omitempty"`
	Edited         bool                `json:"edited,omitempty"`
	Deleted        bool                `json:"deleted,omitempty"`
	Reactions      map[string][]string `json:"reactions,omitempty"` // emoji -> user IDs
}

// Clone returns a deep copy so callers can mutate without aliasing store state.
func (m *Message) Clone() *Message {
	c := *m
	if m.Reactions != nil {
		c.Reactions = make(map[string][]string, len(m.Reactions))
		for emoji, users := range m.Reactions {
			c.Reactions[emoji] = append([]string(nil), users...)
		}
	}
	return &c
}

// Before reports whether m sorts before other in the confirmed total order
// (server timestamp, then message ID as tiebreaker).
func (m *Message) Before(other *Message) bool {
	if m.Timestamp != other.Timestamp {
		return m.Timestamp < other.Timestamp
	}
	return m.ID < other.ID
}
