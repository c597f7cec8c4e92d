package router

import (
	"context"
	"fmt"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/coachpal/chatkit/internal/bus"
	"github.com/coachpal/chatkit/internal/protocol"
)

func publishFrame(b *bus.Bus, frame string) {
	b.Publish(bus.Event{Kind: "transport.frame", Payload: []byte(frame)})
}

func TestDispatchPublishesChatEvents(t *testing.T) {
	b := bus.New()
	r := New(b, zap.NewNop())
	r.Start(context.Background())
	defer r.Stop()

	ch, cancel := b.Subscribe("chat.", 8)
	defer cancel()

	publishFrame(b, `{"type":"message","payload":{"id":"m1","conversationId":"c1","senderId":"u2","content":"hi","timestamp":1000}}`)

	select {
	case evt := <-ch:
		if evt.Kind != "chat.message_received" {
			t.Errorf("kind = %q, want chat.message_received", evt.Kind)
		}
		ce, ok := evt.Payload.(*protocol.ChatEvent)
		if !ok {
			t.Fatalf("payload type = %T", evt.Payload)
		}
		if ce.MessageID != "m1" || ce.ConversationID != "c1" {
			t.Errorf("event = %+v", ce)
		}
	case <-time.After(time.Second):
		t.Fatal("no chat event published")
	}
}

func TestDispatchPreservesArrivalOrder(t *testing.T) {
	b := bus.New()
	r := New(b, zap.NewNop())
	r.Start(context.Background())
	defer r.Stop()

	const n = 100
	ch, cancel := b.Subscribe("chat.message_received", n)
	defer cancel()

	for i := 0; i < n; i++ {
		publishFrame(b, fmt.Sprintf(
			`{"type":"message","payload":{"id":"m%03d","conversationId":"c1","senderId":"u2","content":"x","timestamp":%d}}`, i, 1000+i))
	}

	for i := 0; i < n; i++ {
		select {
		case evt := <-ch:
			want := fmt.Sprintf("m%03d", i)
			ce := evt.Payload.(*protocol.ChatEvent)
			if ce.MessageID != want {
				t.Fatalf("event %d = %q, want %q (order not preserved)", i, ce.MessageID, want)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("only %d of %d events arrived", i, n)
		}
	}
}

func TestMalformedFrameDoesNotStopDispatch(t *testing.T) {
	b := bus.New()
	r := New(b, zap.NewNop())
	r.Start(context.Background())
	defer r.Stop()

	ch, cancel := b.Subscribe("chat.", 8)
	defer cancel()

	publishFrame(b, `this is not json`)
	publishFrame(b, `{"type":"mystery_frame","payload":{}}`)
	publishFrame(b, `{"type":"pong"}`)
	publishFrame(b, `{"type":"message","payload":{"id":"m1","conversationId":"c1","senderId":"u2","content":"after junk"}}`)

	select {
	case evt := <-ch:
		ce := evt.Payload.(*protocol.ChatEvent)
		if ce.MessageID != "m1" {
			t.Errorf("got %+v, want the message after the junk", ce)
		}
	case <-time.After(time.Second):
		t.Fatal("dispatch stopped after malformed frame")
	}

	select {
	case evt := <-ch:
		t.Errorf("unexpected extra event %+v", evt)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestStopEndsDispatch(t *testing.T) {
	b := bus.New()
	r := New(b, zap.NewNop())
	r.Start(context.Background())

	ch, cancel := b.Subscribe("chat.", 8)
	defer cancel()

	r.Stop()
	time.Sleep(50 * time.Millisecond)
	publishFrame(b, `{"type":"message","payload":{"id":"m1","conversationId":"c1","senderId":"u2","content":"x"}}`)

	select {
	case evt := <-ch:
		t.Errorf("event dispatched after Stop: %+v", evt)
	case <-time.After(100 * time.Millisecond):
	}
}
