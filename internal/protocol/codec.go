package protocol

import (
	"encoding/json"
	"fmt"
	"time"
)

// Inbound frame types on the wire.
const (
	frameTypePong                = "pong"
	frameTypeMessage             = "message"
	frameTypeMessageUpdated      = "message_updated"
	frameTypeMessageDeleted      = "message_deleted"
	frameTypeMessageRead         = "message_read"
	frameTypeTyping              = "typing"
	frameTypeUserStatus          = "user_status"
	frameTypeConversationUpdated = "conversation_updated"
)

type inboundFrame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Decode parses an inbound wire frame into a ChatEvent.
//
// A pong frame returns (nil, nil): it is a keepalive acknowledgment, not an
// event. An unrecognized type returns an EventUnknown event so callers can
// drop it without treating the frame as an error. Malformed JSON returns an
// error; the caller logs and drops it, so one bad frame never stops the
// stream.
func Decode(data []byte) (*ChatEvent, error) {
	var frame inboundFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	if frame.Type == "" {
		return nil, fmt.Errorf("decode frame: missing type discriminator")
	}

	now := time.Now()

	switch frame.Type {
	case frameTypePong:
		return nil, nil

	case frameTypeMessage, frameTypeMessageUpdated:
		var msg Message
		if err := json.Unmarshal(frame.Payload, &msg); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", frame.Type, err)
		}
		kind := EventMessageReceived
		if frame.Type == frameTypeMessageUpdated {
			kind = EventMessageUpdated
		}
		return &ChatEvent{
			Kind:           kind,
			ConversationID: msg.ConversationID,
			MessageID:      msg.ID,
			UserID:         msg.SenderID,
			Payload:        &msg,
			ReceivedAt:     now,
		}, nil

	case frameTypeMessageDeleted:
		var p MessageDeletedPayload
		if err := json.Unmarshal(frame.Payload, &p); err != nil {
			return nil, fmt.Errorf("decode message_deleted payload: %w", err)
		}
		return &ChatEvent{
			Kind:           EventMessageDeleted,
			ConversationID: p.ConversationID,
			MessageID:      p.MessageID,
			Payload:        &p,
			ReceivedAt:     now,
		}, nil

	case frameTypeMessageRead:
		var p MessageReadPayload
		if err := json.Unmarshal(frame.Payload, &p); err != nil {
			return nil, fmt.Errorf("decode message_read payload: %w", err)
		}
		return &ChatEvent{
			Kind:           EventMessageRead,
			ConversationID: p.ConversationID,
			MessageID:      p.MessageID,
			UserID:         p.UserID,
			Payload:        &p,
			ReceivedAt:     now,
		}, nil

	case frameTypeTyping:
		var p TypingPayload
		if err := json.Unmarshal(frame.Payload, &p); err != nil {
			return nil, fmt.Errorf("decode typing payload: %w", err)
		}
		kind := EventTypingStopped
		if p.IsTyping {
			kind = EventTypingStarted
		}
		return &ChatEvent{
			Kind:           kind,
			ConversationID: p.ConversationID,
			UserID:         p.UserID,
			Payload:        &p,
			ReceivedAt:     now,
		}, nil

	case frameTypeUserStatus:
		var p UserStatusPayload
		if err := json.Unmarshal(frame.Payload, &p); err != nil {
			return nil, fmt.Errorf("decode user_status payload: %w", err)
		}
		kind := EventUserOffline
		if p.IsOnline {
			kind = EventUserOnline
		}
		return &ChatEvent{
			Kind:       kind,
			UserID:     p.UserID,
			Payload:    &p,
			ReceivedAt: now,
		}, nil

	case frameTypeConversationUpdated:
		var p ConversationUpdatedPayload
		if err := json.Unmarshal(frame.Payload, &p); err != nil {
			return nil, fmt.Errorf("decode conversation_updated payload: %w", err)
		}
		return &ChatEvent{
			Kind:           EventConversationUpdated,
			ConversationID: p.ConversationID,
			Payload:        &p,
			ReceivedAt:     now,
		}, nil

	default:
		return &ChatEvent{Kind: EventUnknown, ReceivedAt: now}, nil
	}
}
