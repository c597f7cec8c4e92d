package rest

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/coachpal/chatkit/internal/protocol"
)

// Page describes cursor pagination for history fetches. Before and After are
// message IDs; Limit caps the page size.
type Page struct {
	Before string
	After  string
	Limit  int
}

// ListMessages fetches a page of conversation history in ascending display
// order.
func (c *Client) ListMessages(ctx context.Context, conversationID string, page Page) ([]protocol.Message, error) {
	q := url.Values{}
	if page.Before != "" {
		q.Set("before", page.Before)
	}
	if page.After != "" {
		q.Set("after", page.After)
	}
	if page.Limit > 0 {
		q.Set("limit", strconv.Itoa(page.Limit))
	}
	var out struct {
		Messages []protocol.Message `json:"messages"`
	}
	if err := c.do(ctx, http.MethodGet, "/conversations/"+conversationID+"/messages", q, nil, &out); err != nil {
		return nil, err
	}
	return out.Messages, nil
}

// SendMessageRequest is the HTTP send payload. ClientID carries the
// correlation ID so the confirmed message can be reconciled with the
// optimistic entry.
type SendMessageRequest struct {
	ClientID  string               `json:"clientMessageId"`
	Content   string               `json:"content"`
	Type      protocol.MessageType `json:"type"`
	ReplyToID string               `json:"replyToMessageId,omitempty"`
	MediaURL  string               `json:"mediaUrl,omitempty"`
}

// SendMessage posts a message and returns the server-confirmed result with
// its real ID and timestamp.
func (c *Client) SendMessage(ctx context.Context, conversationID string, req SendMessageRequest) (*protocol.Message, error) {
	var out protocol.Message
	if err := c.do(ctx, http.MethodPost, "/conversations/"+conversationID+"/messages", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// EditMessage replaces a message's content in place.
func (c *Client) EditMessage(ctx context.Context, conversationID, messageID, content string) (*protocol.Message, error) {
	body := map[string]string{"content": content}
	var out protocol.Message
	if err := c.do(ctx, http.MethodPatch, "/conversations/"+conversationID+"/messages/"+messageID, nil, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteMessage deletes a message server-side.
func (c *Client) DeleteMessage(ctx context.Context, conversationID, messageID string) error {
	return c.do(ctx, http.MethodDelete, "/conversations/"+conversationID+"/messages/"+messageID, nil, nil, nil)
}

// AddReaction adds an emoji reaction from the current user.
func (c *Client) AddReaction(ctx context.Context, conversationID, messageID, emoji string) error {
	body := map[string]string{"emoji": emoji}
	return c.do(ctx, http.MethodPost, "/conversations/"+conversationID+"/messages/"+messageID+"/reactions", nil, body, nil)
}

// RemoveReaction removes the current user's reaction.
func (c *Client) RemoveReaction(ctx context.Context, conversationID, messageID, emoji string) error {
	q := url.Values{"emoji": {emoji}}
	return c.do(ctx, http.MethodDelete, "/conversations/"+conversationID+"/messages/"+messageID+"/reactions", q, nil, nil)
}
