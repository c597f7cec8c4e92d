package send

import (
	"context"
	"errors"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/coachpal/chatkit/internal/bus"
	"github.com/coachpal/chatkit/internal/protocol"
	"github.com/coachpal/chatkit/internal/rest"
	"github.com/coachpal/chatkit/internal/status"
	"github.com/coachpal/chatkit/internal/store"
)

type fakeSocket struct {
	mu     sync.Mutex
	state  status.State
	frames [][]byte
}

func (f *fakeSocket) Send(frame []byte) {
	f.mu.Lock()
	f.frames = append(f.frames, frame)
	f.mu.Unlock()
}

func (f *fakeSocket) State() status.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeSocket) sent() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.frames)
}

type fakeAPI struct {
	mu        sync.Mutex
	sendErr   error
	sendCalls int
	directs   int
}

func (f *fakeAPI) SendMessage(_ context.Context, conversationID string, req rest.SendMessageRequest) (*protocol.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sendCalls++
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	return &protocol.Message{
		ID:             "srv-" + req.ClientID,
		ClientID:       req.ClientID,
		ConversationID: conversationID,
		SenderID:       "me",
		Content:        req.Content,
		Type:           req.Type,
		Timestamp:      9000,
		Status:         protocol.StatusSent,
	}, nil
}

func (f *fakeAPI) GetOrCreateDirectConversation(_ context.Context, peerID string) (*protocol.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.directs++
	return &protocol.Conversation{
		ID:             "direct-" + peerID,
		Type:           protocol.ConversationDirect,
		ParticipantIDs: []string{"me", peerID},
	}, nil
}

func newTestPipeline(socket Socket, api API) (*Pipeline, *store.Store, *bus.Bus) {
	b := bus.New()
	s := store.New("me", b, zap.NewNop())
	return NewPipeline(s, socket, api, b, zap.NewNop()), s, b
}

func TestSocketSendStaysPendingUntilEcho(t *testing.T) {
	socket := &fakeSocket{state: status.Connected}
	api := &fakeAPI{}
	p, s, _ := newTestPipeline(socket, api)

	pending, err := p.Send(context.Background(), Request{ConversationID: "c1", Content: "hello"})
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if pending.Status != protocol.StatusPending || pending.ClientID == "" {
		t.Errorf("pending = %+v", pending)
	}
	if socket.sent() != 1 {
		t.Errorf("frames sent = %d, want 1", socket.sent())
	}
	if api.sendCalls != 0 {
		t.Errorf("REST used despite connected socket")
	}

	// Still optimistic: the echo has not arrived yet.
	m, ok := s.Message("c1", pending.ClientID)
	if !ok || m.Status != protocol.StatusPending {
		t.Errorf("store message = %+v, ok = %v", m, ok)
	}

	// The server echo reconciles in place.
	echo := &protocol.Message{
		ID:             "srv-1",
		ClientID:       pending.ClientID,
		ConversationID: "c1",
		SenderID:       "me",
		Content:        "hello",
		Timestamp:      9000,
		Status:         protocol.StatusSent,
	}
	s.AddMessage("c1", echo)

	msgs := s.Messages("c1")
	if len(msgs) != 1 || msgs[0].ID != "srv-1" || msgs[0].Status != protocol.StatusSent {
		t.Errorf("messages after echo = %+v", msgs)
	}
}

func TestDisconnectedSocketFallsBackToREST(t *testing.T) {
	socket := &fakeSocket{state: status.Disconnected}
	api := &fakeAPI{}
	p, s, b := newTestPipeline(socket, api)

	acks, cancel := b.Subscribe("message.send_ack", 1)
	defer cancel()

	pending, err := p.Send(context.Background(), Request{ConversationID: "c1", Content: "hi"})
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if socket.sent() != 0 {
		t.Error("frame pushed to a disconnected socket")
	}
	if api.sendCalls != 1 {
		t.Errorf("REST calls = %d, want 1", api.sendCalls)
	}

	m, ok := s.Message("c1", pending.ClientID)
	if !ok || m.Status != protocol.StatusSent || m.ID != "srv-"+pending.ClientID {
		t.Errorf("confirmed message = %+v, ok = %v", m, ok)
	}

	select {
	case evt := <-acks:
		ack := evt.Payload.(Ack)
		if ack.ClientID != pending.ClientID || ack.ServerID != "srv-"+pending.ClientID {
			t.Errorf("ack = %+v", ack)
		}
	default:
		t.Error("no send_ack published")
	}
}

func TestNilSocketUsesREST(t *testing.T) {
	api := &fakeAPI{}
	p, _, _ := newTestPipeline(nil, api)

	if _, err := p.Send(context.Background(), Request{ConversationID: "c1", Content: "x"}); err != nil {
		t.Fatal(err)
	}
	if api.sendCalls != 1 {
		t.Errorf("REST calls = %d, want 1", api.sendCalls)
	}
}

func TestSendToNewPeerResolvesDirectConversation(t *testing.T) {
	api := &fakeAPI{}
	p, s, _ := newTestPipeline(nil, api)

	pending, err := p.Send(context.Background(), Request{PeerID: "u2", Content: "hey"})
	if err != nil {
		t.Fatal(err)
	}
	if pending.ConversationID != "direct-u2" {
		t.Errorf("conversationID = %q", pending.ConversationID)
	}
	if api.directs != 1 {
		t.Errorf("direct resolutions = %d, want 1", api.directs)
	}
	if _, ok := s.Conversation("direct-u2"); !ok {
		t.Error("resolved conversation not upserted")
	}
}

func TestSendWithoutTargetFails(t *testing.T) {
	p, _, _ := newTestPipeline(nil, &fakeAPI{})
	if _, err := p.Send(context.Background(), Request{Content: "x"}); err == nil {
		t.Fatal("expected error with neither conversation nor peer")
	}
}

func TestFailedSendIsKeptWithStatusFailed(t *testing.T) {
	api := &fakeAPI{sendErr: errors.New("boom")}
	p, s, b := newTestPipeline(nil, api)

	failures, cancel := b.Subscribe("message.send_failed", 1)
	defer cancel()

	pending, err := p.Send(context.Background(), Request{ConversationID: "c1", Content: "doomed"})
	if err == nil {
		t.Fatal("expected a send failure")
	}
	var sf *SendFailure
	if !errors.As(err, &sf) {
		t.Fatalf("error type = %T", err)
	}
	if sf.ClientID != pending.ClientID {
		t.Errorf("failure = %+v", sf)
	}

	// The message is parked, never removed.
	m, ok := s.Message("c1", pending.ClientID)
	if !ok {
		t.Fatal("failed message removed from store")
	}
	if m.Status != protocol.StatusFailed || m.Content != "doomed" {
		t.Errorf("message = %+v", m)
	}

	select {
	case <-failures:
	default:
		t.Error("no send_failed published")
	}
}

func TestRetryReusesCorrelationID(t *testing.T) {
	api := &fakeAPI{sendErr: errors.New("boom")}
	p, s, _ := newTestPipeline(nil, api)

	pending, err := p.Send(context.Background(), Request{ConversationID: "c1", Content: "retry me"})
	if err == nil {
		t.Fatal("expected initial failure")
	}

	api.mu.Lock()
	api.sendErr = nil
	api.mu.Unlock()

	if err := p.Retry(context.Background(), "c1", pending.ClientID); err != nil {
		t.Fatalf("Retry() error = %v", err)
	}

	m, ok := s.Message("c1", pending.ClientID)
	if !ok || m.Status != protocol.StatusSent {
		t.Errorf("message = %+v, ok = %v", m, ok)
	}
	if m.ClientID != pending.ClientID {
		t.Errorf("correlation ID changed on retry: %q vs %q", m.ClientID, pending.ClientID)
	}
	if len(s.Messages("c1")) != 1 {
		t.Error("retry duplicated the message")
	}
}

func TestRetryRequiresFailedStatus(t *testing.T) {
	api := &fakeAPI{}
	p, _, _ := newTestPipeline(nil, api)

	pending, err := p.Send(context.Background(), Request{ConversationID: "c1", Content: "fine"})
	if err != nil {
		t.Fatal(err)
	}
	if err := p.Retry(context.Background(), "c1", pending.ClientID); err == nil {
		t.Error("retry of a non-failed message should error")
	}
	if err := p.Retry(context.Background(), "c1", "unknown-id"); err == nil {
		t.Error("retry of an unknown message should error")
	}
}
