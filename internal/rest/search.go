package rest

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"sync"

	"github.com/coachpal/chatkit/internal/protocol"
)

// SearchMessages runs a full-text search, globally or scoped to one
// conversation when conversationID is non-empty.
func (c *Client) SearchMessages(ctx context.Context, query, conversationID string, limit int) ([]protocol.Message, error) {
	q := url.Values{"q": {query}}
	if conversationID != "" {
		q.Set("conversationId", conversationID)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var out struct {
		Messages []protocol.Message `json:"messages"`
	}
	if err := c.do(ctx, http.MethodGet, "/messages/search", q, nil, &out); err != nil {
		return nil, err
	}
	return out.Messages, nil
}

// Searcher serializes a logical search stream (e.g. one search box) so that
// a superseded request can never deliver stale results: each call takes a
// generation number, and results are discarded if a newer call started in
// the meantime.
type Searcher struct {
	client *Client
	mu     sync.Mutex
	seq    uint64
}

// NewSearcher wraps a client with supersession guarding.
func NewSearcher(client *Client) *Searcher {
	return &Searcher{client: client}
}

// Search runs a guarded search. stale is true when a newer Search began
// before this one finished; stale results carry no messages and must be
// ignored by the caller.
func (s *Searcher) Search(ctx context.Context, query, conversationID string, limit int) (msgs []protocol.Message, stale bool, err error) {
	s.mu.Lock()
	s.seq++
	gen := s.seq
	s.mu.Unlock()

	msgs, err = s.client.SearchMessages(ctx, query, conversationID, limit)

	s.mu.Lock()
	stale = gen != s.seq
	s.mu.Unlock()
	if stale {
		return nil, true, nil
	}
	return msgs, false, err
}
