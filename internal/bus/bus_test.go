package bus

import (
	"testing"
	"time"
)

func TestPublishSubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("conn.", 10)
	defer unsub()

	b.Publish(Event{Kind: "conn.state_changed", Payload: "test"})

	select {
	case evt := <-ch:
		if evt.Kind != "conn.state_changed" {
			t.Errorf("got kind %q, want conn.state_changed", evt.Kind)
		}
		if evt.Timestamp.IsZero() {
			t.Error("publish should stamp a zero timestamp")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}
}

func TestPrefixFiltering(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("chat.", 10)
	defer unsub()

	b.Publish(Event{Kind: "conn.state_changed"})
	b.Publish(Event{Kind: "chat.message_received"})

	select {
	case evt := <-ch:
		if evt.Kind != "chat.message_received" {
			t.Errorf("got kind %q, want chat.message_received", evt.Kind)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}

	select {
	case evt := <-ch:
		t.Errorf("unexpected event: %v", evt)
	case <-time.After(50 * time.Millisecond):
		// Expected: conn event was filtered out.
	}
}

func TestMulticast(t *testing.T) {
	b := New()
	ch1, unsub1 := b.Subscribe("chat.", 10)
	defer unsub1()
	ch2, unsub2 := b.Subscribe("chat.", 10)
	defer unsub2()

	b.Publish(Event{Kind: "chat.message_received"})

	for i, ch := range []<-chan Event{ch1, ch2} {
		select {
		case <-ch:
		case <-time.After(time.Second):
			t.Fatalf("subscriber %d did not receive the event", i)
		}
	}
}

func TestOrderPreserved(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("chat.", 100)
	defer unsub()

	kinds := []string{"chat.a", "chat.b", "chat.c", "chat.d", "chat.e"}
	for _, k := range kinds {
		b.Publish(Event{Kind: k})
	}

	for i, want := range kinds {
		select {
		case evt := <-ch:
			if evt.Kind != want {
				t.Errorf("event %d: got %q, want %q", i, evt.Kind, want)
			}
		case <-time.After(time.Second):
			t.Fatal("timeout waiting for ordered events")
		}
	}
}

func TestUnsubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("conn.", 10)
	unsub()

	b.Publish(Event{Kind: "conn.state_changed"})

	select {
	case evt := <-ch:
		t.Errorf("received event after unsubscribe: %v", evt)
	case <-time.After(50 * time.Millisecond):
		// Expected.
	}
}

func TestDropOnFullBuffer(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("chat.", 1)
	defer unsub()

	b.Publish(Event{Kind: "chat.one"})
	// This should be dropped (non-blocking).
	b.Publish(Event{Kind: "chat.two"})

	evt := <-ch
	if evt.Kind != "chat.one" {
		t.Errorf("got %q, want chat.one", evt.Kind)
	}
}
