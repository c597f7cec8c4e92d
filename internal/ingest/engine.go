package ingest

import (
	"context"

	"go.uber.org/zap"

	"github.com/coachpal/chatkit/internal/bus"
	"github.com/coachpal/chatkit/internal/cache"
	"github.com/coachpal/chatkit/internal/protocol"
	"github.com/coachpal/chatkit/internal/store"
)

// Engine applies routed ChatEvents to the conversation store and mirrors
// confirmed state into the history cache. It subscribes to "chat." events on
// the bus; the store is only ever mutated from this loop and from the send
// pipeline, both funneling through the store's own methods.
type Engine struct {
	store  *store.Store
	db     *cache.DB // optional; nil disables persistence
	bus    *bus.Bus
	logger *zap.Logger
	cancel context.CancelFunc
}

// NewEngine creates an engine. db may be nil when the session runs without
// a local history cache.
func NewEngine(s *store.Store, db *cache.DB, b *bus.Bus, logger *zap.Logger) *Engine {
	return &Engine{store: s, db: db, bus: b, logger: logger}
}

// Start subscribes to chat events on the bus.
func (e *Engine) Start(ctx context.Context) {
	ctx, e.cancel = context.WithCancel(ctx)
	ch, unsub := e.bus.Subscribe("chat.", 1024)

	go func() {
		defer unsub()
		for {
			select {
			case evt := <-ch:
				chatEvt, ok := evt.Payload.(*protocol.ChatEvent)
				if !ok {
					continue
				}
				e.apply(chatEvt)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the engine.
func (e *Engine) Stop() {
	if e.cancel != nil {
		e.cancel()
	}
}

func (e *Engine) apply(evt *protocol.ChatEvent) {
	switch evt.Kind {
	case protocol.EventMessageReceived:
		msg, ok := evt.Payload.(*protocol.Message)
		if !ok {
			return
		}
		if msg.Status == "" {
			msg.Status = protocol.StatusSent
		}
		e.store.AddMessage(msg.ConversationID, msg)
		e.persistMessage(msg)

	case protocol.EventMessageUpdated:
		msg, ok := evt.Payload.(*protocol.Message)
		if !ok {
			return
		}
		e.store.UpdateMessage(msg.ConversationID, msg.ID, msg)
		e.persistMessage(msg)

	case protocol.EventMessageDeleted:
		e.store.ApplyDeleted(evt.ConversationID, evt.MessageID)
		if e.db != nil {
			if err := e.db.MarkMessageDeleted(evt.ConversationID, evt.MessageID); err != nil {
				e.logger.Error("cache delete failed", zap.Error(err), zap.String("msg_id", evt.MessageID))
			}
		}

	case protocol.EventMessageRead:
		e.store.ApplyRead(evt.ConversationID, evt.MessageID, evt.UserID)

	case protocol.EventTypingStarted:
		e.store.SetTyping(evt.ConversationID, evt.UserID, true)

	case protocol.EventTypingStopped:
		e.store.SetTyping(evt.ConversationID, evt.UserID, false)

	case protocol.EventUserOnline:
		e.store.SetOnline(evt.UserID, true)

	case protocol.EventUserOffline:
		e.store.SetOnline(evt.UserID, false)

	case protocol.EventConversationUpdated:
		p, ok := evt.Payload.(*protocol.ConversationUpdatedPayload)
		if !ok {
			return
		}
		e.store.ApplyConversationUpdate(p.ConversationID, p.Data)
		e.persistConversation(p.ConversationID)
	}
}

func (e *Engine) persistMessage(msg *protocol.Message) {
	if e.db == nil || msg.Status == protocol.StatusPending {
		return
	}
	if err := e.db.UpsertMessage(msg); err != nil {
		e.logger.Error("cache upsert message failed", zap.Error(err), zap.String("msg_id", msg.ID))
		return
	}
	e.persistConversation(msg.ConversationID)
}

func (e *Engine) persistConversation(conversationID string) {
	if e.db == nil {
		return
	}
	conv, ok := e.store.Conversation(conversationID)
	if !ok {
		return
	}
	if err := e.db.UpsertConversation(&conv); err != nil {
		e.logger.Error("cache upsert conversation failed", zap.Error(err), zap.String("conversation_id", conversationID))
	}
}
