package bus

import (
	"log/slog"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"leasebot/internal/domain"
)

func testEBLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func TestEventBus_EmitAndReceive(t *testing.T) {
	eb := NewEventBus(testEBLogger())

	var received int32
	eb.On(EventTicketCreated, func(e Event) {
		atomic.AddInt32(&received, 1)
	})

	eb.Emit(Event{Type: EventTicketCreated, Payload: map[string]any{"ticket_id": "MAINT-1"}})

	if atomic.LoadInt32(&received) != 1 {
		t.Errorf("expected 1 event received, got %d", received)
	}
}

func TestEventBus_WildcardHandler(t *testing.T) {
	eb := NewEventBus(testEBLogger())

	var count int32
	eb.On("*", func(e Event) {
		atomic.AddInt32(&count, 1)
	})

	eb.Emit(Event{Type: EventMessageReceived})
	eb.Emit(Event{Type: EventReplySent})

	if atomic.LoadInt32(&count) != 2 {
		t.Errorf("expected 2, got %d", count)
	}
}

func TestEventBus_Off(t *testing.T) {
	eb := NewEventBus(testEBLogger())

	var count int32
	id := eb.On(EventPipelineStage, func(e Event) {
		atomic.AddInt32(&count, 1)
	})

	eb.Emit(Event{Type: EventPipelineStage})
	eb.Off(EventPipelineStage, id)
	eb.Emit(Event{Type: EventPipelineStage})

	if atomic.LoadInt32(&count) != 1 {
		t.Errorf("expected 1 after unsubscribe, got %d", count)
	}
}

func TestEventBus_Replay(t *testing.T) {
	eb := NewEventBus(testEBLogger())

	eb.Emit(Event{Type: "a"})
	eb.Emit(Event{Type: "b"})
	eb.Emit(Event{Type: "a"})

	events := eb.Replay("a", time.Time{})
	if len(events) != 2 {
		t.Errorf("expected 2 'a' events, got %d", len(events))
	}

	allEvents := eb.Replay("*", time.Time{})
	if len(allEvents) != 3 {
		t.Errorf("expected 3 total events, got %d", len(allEvents))
	}
}

func TestInMemoryBus_PublishSubscribe(t *testing.T) {
	b := New(4, testEBLogger())
	defer b.Close()

	b.Publish(domain.InboundMessage{Channel: "whatsapp", SenderID: "+15551234567", Body: "hello"})

	select {
	case msg := <-b.Subscribe():
		if msg.SenderID != "+15551234567" {
			t.Fatalf("unexpected sender: %q", msg.SenderID)
		}
	case <-time.After(time.Second):
		t.Fatal("no message received")
	}
}

func TestInMemoryBus_OutboundRouting(t *testing.T) {
	b := New(4, testEBLogger())
	defer b.Close()

	var got []string
	b.OnOutbound("whatsapp", func(m domain.OutboundMessage) {
		got = m.Segments
	})

	b.SendOutbound(domain.OutboundMessage{Channel: "whatsapp", To: "x", Segments: []string{"a", "b"}})
	if len(got) != 2 || got[0] != "a" {
		t.Fatalf("outbound not delivered: %v", got)
	}

	// No handler registered: must not panic.
	b.SendOutbound(domain.OutboundMessage{Channel: "telegram"})
}
