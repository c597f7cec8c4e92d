package transport

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/coachpal/chatkit/internal/auth"
	"github.com/coachpal/chatkit/internal/bus"
	"github.com/coachpal/chatkit/internal/protocol"
	"github.com/coachpal/chatkit/internal/status"
)

// Options tunes the connection lifecycle.
type Options struct {
	PingInterval         time.Duration
	ReconnectBaseDelay   time.Duration
	MaxReconnectAttempts int
}

// DefaultOptions returns the production tuning.
func DefaultOptions() Options {
	return Options{
		PingInterval:         30 * time.Second,
		ReconnectBaseDelay:   2 * time.Second,
		MaxReconnectAttempts: 5,
	}
}

// Conn owns the single websocket connection to the chat endpoint.
//
// Inbound frames are published on the bus as "transport.frame" with a []byte
// payload; connection state transitions go through the status machine, which
// publishes "conn.state_changed". Both are multicast: any number of
// subscribers see every event.
//
// Send is fire-and-forget. A frame sent while not connected is dropped;
// callers that need delivery guarantees layer their own handling on top
// (the send pipeline marks messages failed or falls back to REST).
type Conn struct {
	endpoint string
	tokens   auth.TokenSource
	machine  *status.Machine
	bus      *bus.Bus
	logger   *zap.Logger
	opts     Options

	mu       sync.Mutex
	ws       *websocket.Conn
	gen      int
	dialing  bool
	closed   bool
	attempts int
	retry    *time.Timer
	pingStop chan struct{}

	writeMu sync.Mutex
}

// New creates a connection for the given websocket endpoint
// (e.g. "wss://chat.example.com/ws").
func New(endpoint string, tokens auth.TokenSource, machine *status.Machine, b *bus.Bus, logger *zap.Logger, opts Options) *Conn {
	if opts.PingInterval <= 0 {
		opts.PingInterval = DefaultOptions().PingInterval
	}
	if opts.ReconnectBaseDelay <= 0 {
		opts.ReconnectBaseDelay = DefaultOptions().ReconnectBaseDelay
	}
	if opts.MaxReconnectAttempts <= 0 {
		opts.MaxReconnectAttempts = DefaultOptions().MaxReconnectAttempts
	}
	return &Conn{
		endpoint: endpoint,
		tokens:   tokens,
		machine:  machine,
		bus:      b,
		logger:   logger,
		opts:     opts,
	}
}

// State returns the current connection state.
func (c *Conn) State() status.State {
	return c.machine.Current()
}

// Connect opens the websocket. It is a no-op if a connection is already open
// or being opened. A missing credential fails fast without dialing and
// without scheduling a reconnect; a dial failure schedules a backoff retry.
func (c *Conn) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.dialing || c.ws != nil {
		c.mu.Unlock()
		return nil
	}
	c.dialing = true
	c.closed = false
	if c.retry != nil {
		c.retry.Stop()
		c.retry = nil
	}
	c.mu.Unlock()

	token, err := c.tokens.AccessToken(ctx)
	if err != nil {
		c.mu.Lock()
		c.dialing = false
		c.mu.Unlock()
		// Fatal for the session: no dial, no reconnect.
		_ = c.machine.Transition(status.Disconnected)
		return fmt.Errorf("auth unavailable: %w", err)
	}

	_ = c.machine.Transition(status.Connecting)

	endpoint, err := c.buildURL(token)
	if err != nil {
		c.mu.Lock()
		c.dialing = false
		c.mu.Unlock()
		_ = c.machine.Transition(status.Disconnected)
		return err
	}

	ws, resp, err := websocket.DefaultDialer.DialContext(ctx, endpoint, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		c.logger.Warn("chat socket dial failed", zap.Error(err))
		_ = c.machine.Transition(status.Disconnected)
		c.mu.Lock()
		c.dialing = false
		c.scheduleRetryLocked()
		c.mu.Unlock()
		return fmt.Errorf("dial chat endpoint: %w", err)
	}

	c.mu.Lock()
	c.ws = ws
	c.gen++
	gen := c.gen
	c.dialing = false
	c.attempts = 0
	c.startPingLocked()
	c.mu.Unlock()

	_ = c.machine.Transition(status.Connected)
	c.logger.Info("chat socket connected")

	go c.readLoop(ws, gen)
	return nil
}

// Disconnect closes the socket and cancels all timers. Idempotent; no
// reconnect is scheduled after an explicit disconnect.
func (c *Conn) Disconnect() {
	c.mu.Lock()
	c.closed = true
	c.gen++
	c.attempts = 0
	if c.retry != nil {
		c.retry.Stop()
		c.retry = nil
	}
	c.stopPingLocked()
	ws := c.ws
	c.ws = nil
	c.mu.Unlock()

	if ws != nil {
		_ = ws.Close()
	}
	_ = c.machine.Transition(status.Disconnected)
}

// Send writes a frame to the socket. Best effort: frames sent while not
// connected are dropped silently.
func (c *Conn) Send(frame []byte) {
	c.mu.Lock()
	ws := c.ws
	c.mu.Unlock()
	if ws == nil {
		c.logger.Debug("dropping outbound frame, not connected")
		return
	}
	c.writeMu.Lock()
	err := ws.WriteMessage(websocket.TextMessage, frame)
	c.writeMu.Unlock()
	if err != nil {
		// The read loop observes the broken socket and drives reconnect.
		c.logger.Warn("socket write failed", zap.Error(err))
	}
}

func (c *Conn) buildURL(token string) (string, error) {
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return "", fmt.Errorf("parse endpoint: %w", err)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (c *Conn) readLoop(ws *websocket.Conn, gen int) {
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			c.handleClose(gen, err)
			return
		}
		c.bus.Publish(bus.Event{
			Kind:      "transport.frame",
			Timestamp: time.Now(),
			Payload:   data,
		})
	}
}

// handleClose reacts to a socket error or close. Stale generations (already
// replaced or explicitly disconnected) are ignored.
func (c *Conn) handleClose(gen int, cause error) {
	c.mu.Lock()
	if gen != c.gen || c.closed {
		c.mu.Unlock()
		return
	}
	c.gen++
	c.stopPingLocked()
	ws := c.ws
	c.ws = nil
	c.mu.Unlock()

	if ws != nil {
		_ = ws.Close()
	}
	c.logger.Warn("chat socket dropped", zap.Error(cause))
	_ = c.machine.Transition(status.Disconnected)

	c.mu.Lock()
	c.scheduleRetryLocked()
	c.mu.Unlock()
}

// scheduleRetryLocked arms the reconnect timer with linear backoff
// (base * attempt). After MaxReconnectAttempts failures it gives up; the
// caller must invoke Connect again explicitly.
func (c *Conn) scheduleRetryLocked() {
	if c.closed {
		return
	}
	c.attempts++
	if c.attempts > c.opts.MaxReconnectAttempts {
		c.logger.Error("reconnect attempts exhausted",
			zap.Int("attempts", c.opts.MaxReconnectAttempts))
		c.attempts = 0
		c.bus.Publish(bus.Event{
			Kind:      "conn.reconnect_exhausted",
			Timestamp: time.Now(),
		})
		return
	}

	delay := c.opts.ReconnectBaseDelay * time.Duration(c.attempts)
	c.logger.Info("scheduling reconnect",
		zap.Int("attempt", c.attempts),
		zap.Duration("delay", delay))
	_ = c.machine.Transition(status.Reconnecting)
	c.retry = time.AfterFunc(delay, func() {
		if err := c.Connect(context.Background()); err != nil {
			c.logger.Warn("reconnect attempt failed", zap.Error(err))
		}
	})
}

func (c *Conn) startPingLocked() {
	stop := make(chan struct{})
	c.pingStop = stop
	interval := c.opts.PingInterval
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.Send(protocol.EncodePing())
			case <-stop:
				return
			}
		}
	}()
}

func (c *Conn) stopPingLocked() {
	if c.pingStop != nil {
		close(c.pingStop)
		c.pingStop = nil
	}
}
