package rest

import (
	"context"
	"net/http"
	"net/url"

	"github.com/coachpal/chatkit/internal/protocol"
)

// ListConversations fetches all conversations for the current user.
func (c *Client) ListConversations(ctx context.Context) ([]protocol.Conversation, error) {
	var out struct {
		Conversations []protocol.Conversation `json:"conversations"`
	}
	if err := c.do(ctx, http.MethodGet, "/conversations", nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Conversations, nil
}

// GetOrCreateDirectConversation resolves the direct conversation with a
// peer, creating it if absent. The server enforces one direct conversation
// per participant pair, so repeated calls return the same conversation.
func (c *Client) GetOrCreateDirectConversation(ctx context.Context, peerID string) (*protocol.Conversation, error) {
	body := map[string]string{"peerId": peerID}
	var out protocol.Conversation
	if err := c.do(ctx, http.MethodPost, "/conversations/direct", nil, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateGroupConversation creates a group thread with the given members.
func (c *Client) CreateGroupConversation(ctx context.Context, title string, memberIDs []string) (*protocol.Conversation, error) {
	body := map[string]any{"title": title, "participantIds": memberIDs}
	var out protocol.Conversation
	if err := c.do(ctx, http.MethodPost, "/conversations", nil, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateConversation patches conversation settings (title, muted, pinned,
// archived). patch holds only the fields to change.
func (c *Client) UpdateConversation(ctx context.Context, id string, patch map[string]any) (*protocol.Conversation, error) {
	var out protocol.Conversation
	if err := c.do(ctx, http.MethodPatch, "/conversations/"+id, nil, patch, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteConversation leaves or deletes a conversation server-side.
func (c *Client) DeleteConversation(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/conversations/"+id, nil, nil, nil)
}

// MarkRead records a read receipt over HTTP. messageID may be empty to mark
// the whole conversation read.
func (c *Client) MarkRead(ctx context.Context, conversationID, messageID string) error {
	body := map[string]string{}
	if messageID != "" {
		body["messageId"] = messageID
	}
	return c.do(ctx, http.MethodPost, "/conversations/"+conversationID+"/read", nil, body, nil)
}

// UnreadCounts returns the server-side unread aggregate.
type UnreadCounts struct {
	Total           int            `json:"total"`
	PerConversation map[string]int `json:"perConversation"`
}

// UnreadCount fetches the unread-count aggregate across conversations.
func (c *Client) UnreadCount(ctx context.Context) (*UnreadCounts, error) {
	var out UnreadCounts
	if err := c.do(ctx, http.MethodGet, "/conversations/unread-count", url.Values{}, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
