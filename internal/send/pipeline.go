package send

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/coachpal/chatkit/internal/bus"
	"github.com/coachpal/chatkit/internal/protocol"
	"github.com/coachpal/chatkit/internal/rest"
	"github.com/coachpal/chatkit/internal/status"
	"github.com/coachpal/chatkit/internal/store"
)

// Socket is the transport surface the pipeline needs: best-effort frame
// send plus connection state, so a disconnected socket can be detected and
// routed around instead of silently dropping the user's message.
type Socket interface {
	Send(frame []byte)
	State() status.State
}

// API is the REST surface the pipeline needs.
type API interface {
	SendMessage(ctx context.Context, conversationID string, req rest.SendMessageRequest) (*protocol.Message, error)
	GetOrCreateDirectConversation(ctx context.Context, peerID string) (*protocol.Conversation, error)
}

// SendFailure reports a failed outbound send. The message stays in the
// store with status failed; retry is an explicit caller action.
type SendFailure struct {
	ConversationID string
	ClientID       string
	Err            error
}

func (e *SendFailure) Error() string {
	return fmt.Sprintf("send message %s in %s: %v", e.ClientID, e.ConversationID, e.Err)
}

func (e *SendFailure) Unwrap() error { return e.Err }

// Request describes an outbound message. Either ConversationID names an
// existing conversation, or PeerID asks for the direct conversation with
// that user to be resolved (created if needed) first.
type Request struct {
	ConversationID string
	PeerID         string
	Content        string
	Type           protocol.MessageType
	ReplyToID      string
	MediaURL       string
	ViaREST        bool // force the HTTP path even when the socket is up
}

// Pipeline orchestrates optimistic sends: insert a pending message with a
// correlation ID, push it over the socket or REST, and reconcile or mark
// failed. There is no automatic retry of a failed send; re-sending a
// duplicate is worse than surfacing the failure.
//
// When the socket is down the pipeline falls back to the REST path rather
// than letting the transport drop the frame.
type Pipeline struct {
	store  *store.Store
	socket Socket // may be nil (REST-only mode, e.g. the one-shot CLI)
	api    API
	bus    *bus.Bus
	logger *zap.Logger
}

// NewPipeline creates a pipeline. socket may be nil to force all sends over
// REST.
func NewPipeline(s *store.Store, socket Socket, api API, b *bus.Bus, logger *zap.Logger) *Pipeline {
	return &Pipeline{store: s, socket: socket, api: api, bus: b, logger: logger}
}

// Send runs the full outbound flow and returns the optimistic pending
// message. A nil error means the message was handed off; confirmation
// arrives through the store (socket broadcast or the REST response applied
// here). A *SendFailure means the message is parked in the store with
// status failed.
func (p *Pipeline) Send(ctx context.Context, req Request) (*protocol.Message, error) {
	conversationID := req.ConversationID
	if conversationID == "" {
		if req.PeerID == "" {
			return nil, fmt.Errorf("send: no conversation or peer specified")
		}
		conv, err := p.api.GetOrCreateDirectConversation(ctx, req.PeerID)
		if err != nil {
			return nil, fmt.Errorf("resolve direct conversation with %s: %w", req.PeerID, err)
		}
		p.store.UpsertConversation(conv)
		conversationID = conv.ID
	}

	msgType := req.Type
	if msgType == "" {
		msgType = protocol.MessageText
	}

	correlationID := uuid.New().String()
	pending := &protocol.Message{
		ID:             correlationID,
		ClientID:       correlationID,
		ConversationID: conversationID,
		SenderID:       p.store.SelfID(),
		Content:        req.Content,
		Type:           msgType,
		ReplyToID:      req.ReplyToID,
		MediaURL:       req.MediaURL,
		Timestamp:      time.Now().UnixMilli(),
		Status:         protocol.StatusPending,
	}
	p.store.AddMessage(conversationID, pending)

	if err := p.dispatch(ctx, pending, req.ViaREST); err != nil {
		return pending.Clone(), err
	}
	return pending.Clone(), nil
}

// Retry re-runs the send flow for a failed message, identified by its
// correlation ID. The original content and correlation ID are reused so the
// server can deduplicate.
func (p *Pipeline) Retry(ctx context.Context, conversationID, clientID string) error {
	msg, ok := p.store.Message(conversationID, clientID)
	if !ok {
		return fmt.Errorf("retry: message %s not found in %s", clientID, conversationID)
	}
	if msg.Status != protocol.StatusFailed {
		return fmt.Errorf("retry: message %s has status %s, want failed", clientID, msg.Status)
	}

	msg.Status = protocol.StatusPending
	p.store.UpdateMessage(conversationID, clientID, &msg)
	return p.dispatch(ctx, &msg, false)
}

// dispatch pushes a pending message over the socket when connected, or the
// REST path otherwise.
func (p *Pipeline) dispatch(ctx context.Context, pending *protocol.Message, forceREST bool) error {
	if !forceREST && p.socket != nil && p.socket.State() == status.Connected {
		frame, err := protocol.EncodeSendMessage(protocol.SendMessageFrame{
			ConversationID: pending.ConversationID,
			Content:        pending.Content,
			MessageType:    pending.Type,
			ReplyToID:      pending.ReplyToID,
			MediaURL:       pending.MediaURL,
			ClientID:       pending.ClientID,
		})
		if err != nil {
			return p.markFailed(pending, err)
		}
		p.socket.Send(frame)
		// Confirmation arrives as a broadcast carrying the correlation ID;
		// the ingest engine reconciles it. No application-level timeout on
		// the socket path: liveness is the ping/pong loop's job.
		return nil
	}

	confirmed, err := p.api.SendMessage(ctx, pending.ConversationID, rest.SendMessageRequest{
		ClientID:  pending.ClientID,
		Content:   pending.Content,
		Type:      pending.Type,
		ReplyToID: pending.ReplyToID,
		MediaURL:  pending.MediaURL,
	})
	if err != nil {
		return p.markFailed(pending, err)
	}

	if confirmed.ClientID == "" {
		confirmed.ClientID = pending.ClientID
	}
	if confirmed.Status == "" || confirmed.Status == protocol.StatusPending {
		confirmed.Status = protocol.StatusSent
	}
	p.store.UpdateMessage(pending.ConversationID, pending.ClientID, confirmed)
	p.bus.Publish(bus.Event{
		Kind:      "message.send_ack",
		Timestamp: time.Now(),
		Payload: Ack{
			ConversationID: pending.ConversationID,
			ClientID:       pending.ClientID,
			ServerID:       confirmed.ID,
		},
	})
	return nil
}

// markFailed parks the message in the store with status failed. It is never
// removed, so the UI can offer retry.
func (p *Pipeline) markFailed(pending *protocol.Message, cause error) error {
	p.logger.Warn("message send failed",
		zap.String("client_msg_id", pending.ClientID),
		zap.Error(cause))

	failed := pending.Clone()
	failed.Status = protocol.StatusFailed
	p.store.UpdateMessage(pending.ConversationID, pending.ClientID, failed)

	p.bus.Publish(bus.Event{
		Kind:      "message.send_failed",
		Timestamp: time.Now(),
		Payload: Ack{
			ConversationID: pending.ConversationID,
			ClientID:       pending.ClientID,
		},
	})
	return &SendFailure{
		ConversationID: pending.ConversationID,
		ClientID:       pending.ClientID,
		Err:            cause,
	}
}

// Ack is the payload for message.send_ack and message.send_failed events.
type Ack struct {
	ConversationID string
	ClientID       string
	ServerID       string
}
