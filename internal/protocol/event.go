package protocol

import "time"

// EventKind enumerates the decoded inbound event variants.
type EventKind string

const (
	EventMessageReceived     EventKind = "message_received"
	EventMessageUpdated      EventKind = "message_updated"
	EventMessageDeleted      EventKind = "message_deleted"
	EventMessageRead         EventKind = "message_read"
	EventTypingStarted       EventKind = "typing_started"
	EventTypingStopped       EventKind = "typing_stopped"
	EventUserOnline          EventKind = "user_online"
	EventUserOffline         EventKind = "user_offline"
	EventConversationUpdated EventKind = "conversation_updated"

	// EventUnknown marks a frame whose type the codec does not recognize.
	// The router discards it; keeping it explicit preserves forward
	// compatibility without untyped dispatch deeper in the pipeline.
	EventUnknown EventKind = "unknown"
)

// ChatEvent is a decoded inbound frame. Constructed once per frame and
// published to all subscribers; never persisted.
type ChatEvent struct {
	Kind           EventKind
	ConversationID string
	MessageID      string
	UserID         string
	Payload        any
	ReceivedAt     time.Time
}

// MessageDeletedPayload carries a message_deleted frame body.
type MessageDeletedPayload struct {
	ConversationID string `json:"conversationId"`
	MessageID      string `json:"messageId"`
}

// MessageReadPayload carries a message_read frame body.
type MessageReadPayload struct {
	ConversationID string `json:"conversationId"`
	MessageID      string `json:"messageId"`
	UserID         string `json:"userId"`
}

// TypingPayload carries a typing frame body.
type TypingPayload struct {
	ConversationID string `json:"conversationId"`
	UserID         string `json:"userId"`
	IsTyping       bool   `json:"isTyping"`
}

// UserStatusPayload carries a user_status frame body.
type UserStatusPayload struct {
	UserID   string `json:"userId"`
	IsOnline bool   `json:"isOnline"`
}

// ConversationUpdatedPayload carries a conversation_updated frame body.
// Data holds the changed fields as the server sent them.
type ConversationUpdatedPayload struct {
	ConversationID string         `json:"conversationId"`
	Data           map[string]any `json:"data"`
}
