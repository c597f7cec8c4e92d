package protocol

import "encoding/json"

// Outbound frame types on the wire.
const (
	frameTypePing        = "ping"
	frameTypeSendMessage = "send_message"
	frameTypeMarkRead    = "mark_read"
	frameTypeJoin        = "join"
	frameTypeLeave       = "leave"
)

type pingFrame struct {
	Type string `json:"type"`
}

type sendMessageFrame struct {
	Type           string         `json:"type"`
	ConversationID string         `json:"conversationId"`
	Content        string         `json:"content"`
	MessageType    MessageType    `json:"messageType"`
	ReplyToID      string         `json:"replyToMessageId,omitempty"`
	MediaURL       string         `json:"mediaUrl,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

type markReadFrame struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversationId"`
	MessageID      string `json:"messageId,omitempty"`
}

type typingFrame struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversationId"`
	IsTyping       bool   `json:"isTyping"`
}

type membershipFrame struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversationId"`
}

// EncodePing returns a ping keepalive frame.
func EncodePing() []byte {
	data, _ := json.Marshal(pingFrame{Type: frameTypePing})
	return data
}

// SendMessageFrame describes an outbound send_message frame. The correlation
// ID travels in metadata so the server can echo it on the broadcast.
type SendMessageFrame struct {
	ConversationID string
	Content        string
	MessageType    MessageType
	ReplyToID      string
	MediaURL       string
	ClientID       string
}

// EncodeSendMessage serializes an outbound send_message frame.
func EncodeSendMessage(f SendMessageFrame) ([]byte, error) {
	frame := sendMessageFrame{
		Type:           frameTypeSendMessage,
		ConversationID: f.ConversationID,
		Content:        f.Content,
		MessageType:    f.MessageType,
		ReplyToID:      f.ReplyToID,
		MediaURL:       f.MediaURL,
	}
	if f.ClientID != "" {
		frame.Metadata = map[string]any{"clientMessageId": f.ClientID}
	}
	return json.Marshal(frame)
}

// EncodeMarkRead serializes a mark_read frame. messageID may be empty to
// mark the whole conversation read.
func EncodeMarkRead(conversationID, messageID string) ([]byte, error) {
	return json.Marshal(markReadFrame{
		Type:           frameTypeMarkRead,
		ConversationID: conversationID,
		MessageID:      messageID,
	})
}

// EncodeTyping serializes a typing indicator frame.
func EncodeTyping(conversationID string, isTyping bool) ([]byte, error) {
	return json.Marshal(typingFrame{
		Type:           frameTypeTyping,
		ConversationID: conversationID,
		IsTyping:       isTyping,
	})
}

// EncodeJoin serializes a join frame for a conversation.
func EncodeJoin(conversationID string) ([]byte, error) {
	return json.Marshal(membershipFrame{Type: frameTypeJoin, ConversationID: conversationID})
}

// EncodeLeave serializes a leave frame for a conversation.
func EncodeLeave(conversationID string) ([]byte, error) {
	return json.Marshal(membershipFrame{Type: frameTypeLeave, ConversationID: conversationID})
}
