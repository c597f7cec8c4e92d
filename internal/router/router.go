package router

import (
	"context"

	"go.uber.org/zap"

	"github.com/coachpal/chatkit/internal/bus"
	"github.com/coachpal/chatkit/internal/protocol"
)

// Kind prefixes published by the router. Connection state changes are
// published under "conn." by the status machine; subscribing to the bus for
// "chat." and "conn." gives consumers the full router contract without
// touching the transport directly.
const chatKindPrefix = "chat."

// Router consumes raw transport frames, decodes them, and republishes the
// resulting ChatEvents on the bus under "chat.<kind>". Frames are processed
// by a single goroutine in arrival order, so the published event sequence
// preserves wire order exactly. A frame that fails to decode is logged and
// dropped; it never stops the loop.
type Router struct {
	bus    *bus.Bus
	logger *zap.Logger
	cancel context.CancelFunc
}

// New creates a router publishing on b.
func New(b *bus.Bus, logger *zap.Logger) *Router {
	return &Router{bus: b, logger: logger}
}

// Start subscribes to transport frames and begins dispatching.
func (r *Router) Start(ctx context.Context) {
	ctx, r.cancel = context.WithCancel(ctx)
	ch, unsub := r.bus.Subscribe("transport.frame", 1024)

	go func() {
		defer unsub()
		for {
			select {
			case evt := <-ch:
				data, ok := evt.Payload.([]byte)
				if !ok {
					continue
				}
				r.dispatch(data)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the dispatch loop.
func (r *Router) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
}

func (r *Router) dispatch(data []byte) {
	evt, err := protocol.Decode(data)
	if err != nil {
		r.logger.Warn("dropping malformed frame", zap.Error(err))
		return
	}
	if evt == nil {
		// Keepalive pong, consumed silently.
		return
	}
	if evt.Kind == protocol.EventUnknown {
		r.logger.Debug("ignoring unknown frame type")
		return
	}
	r.bus.Publish(bus.Event{
		Kind:      chatKindPrefix + string(evt.Kind),
		Timestamp: evt.ReceivedAt,
		Payload:   evt,
	})
}
