package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/coachpal/chatkit/internal/auth"
)

// Timeouts holds per-call deadlines. Media uploads get a longer deadline.
type Timeouts struct {
	Default time.Duration
	Media   time.Duration
}

// DefaultTimeouts returns the production tuning.
func DefaultTimeouts() Timeouts {
	return Timeouts{Default: 8 * time.Second, Media: 15 * time.Second}
}

// Client is the typed HTTP client for everything the socket does not carry:
// history pagination, search, conversation CRUD, reactions, read receipts,
// media upload, and unread aggregates. Calls never touch the conversation
// store; successful results are piped through the store's own methods by the
// caller.
type Client struct {
	baseURL  string
	http     *http.Client
	tokens   auth.TokenSource
	logger   *zap.Logger
	timeouts Timeouts
}

// NewClient creates a REST client for the given API base URL
// (e.g. "https://api.example.com/v1").
func NewClient(baseURL string, tokens auth.TokenSource, logger *zap.Logger, timeouts Timeouts) *Client {
	if timeouts.Default <= 0 {
		timeouts.Default = DefaultTimeouts().Default
	}
	if timeouts.Media <= 0 {
		timeouts.Media = DefaultTimeouts().Media
	}
	return &Client{
		baseURL:  baseURL,
		http:     &http.Client{},
		tokens:   tokens,
		logger:   logger,
		timeouts: timeouts,
	}
}

// do executes a JSON request and decodes the response body into out (which
// may be nil). Non-2xx responses and transport failures come back as
// *SyncError.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	return c.doTimeout(ctx, method, path, query, body, out, c.timeouts.Default)
}

func (c *Client) doTimeout(ctx context.Context, method, path string, query url.Values, body, out any, timeout time.Duration) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return &SyncError{Op: method + " " + path, Err: err}
		}
		reader = bytes.NewReader(data)
	}

	req, err := c.newRequest(ctx, method, path, query, reader, timeout)
	if err != nil {
		return err
	}
	if body != nil {
		req.req.Header.Set("Content-Type", "application/json")
	}
	defer req.cancel()

	return c.send(req.req, method+" "+path, out)
}

type request struct {
	req    *http.Request
	cancel context.CancelFunc
}

func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, body io.Reader, timeout time.Duration) (*request, error) {
	op := method + " " + path

	token, err := c.tokens.AccessToken(ctx)
	if err != nil {
		return nil, &SyncError{Op: op, Err: err}
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		cancel()
		return nil, &SyncError{Op: op, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return &request{req: req, cancel: cancel}, nil
}

func (c *Client) send(req *http.Request, op string, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return &SyncError{Op: op, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Read a little of the body for diagnostics, then discard.
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &SyncError{
			Op:         op,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("server returned %s: %s", resp.Status, snippet),
		}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &SyncError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}
