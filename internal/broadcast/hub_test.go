package broadcast

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/joao-fontenele/orderboard/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testEvent(id string) domain.Event {
	return domain.Event{
		Type:       domain.EventOrderCreated,
		OrderID:    id,
		OccurredAt: time.Now().UTC(),
	}
}

func TestHubFanOut(t *testing.T) {
	t.Run("delivers every event to every subscriber", func(t *testing.T) {
		hub := NewHub(nil, testLogger())
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go hub.Run(ctx)

		first := hub.Subscribe()
		second := hub.Subscribe()
		defer hub.Unsubscribe(first)
		defer hub.Unsubscribe(second)

		hub.Inbound() <- testEvent("order-1")

		for _, sub := range []*Subscription{first, second} {
			select {
			case ev := <-sub.Events():
				if ev.OrderID != "order-1" {
					t.Errorf("unexpected order id %s", ev.OrderID)
				}
			case <-time.After(time.Second):
				t.Fatal("timed out waiting for event")
			}
		}
	})

	t.Run("unsubscribed observers receive nothing", func(t *testing.T) {
		hub := NewHub(nil, testLogger())
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go hub.Run(ctx)

		sub := hub.Subscribe()
		hub.Unsubscribe(sub)

		if _, open := <-sub.Events(); open {
			t.Error("expected channel to be closed after unsubscribe")
		}
		if hub.SubscriberCount() != 0 {
			t.Errorf("expected 0 subscribers, got %d", hub.SubscriberCount())
		}
	})

	t.Run("a full subscriber queue never blocks dispatch", func(t *testing.T) {
		hub := NewHub(nil, testLogger())
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go hub.Run(ctx)

		slow := hub.Subscribe()
		defer hub.Unsubscribe(slow)
		live := hub.Subscribe()
		defer hub.Unsubscribe(live)

		// Overflow the slow subscriber's queue without draining it.
		for i := 0; i < subscriberBuffer+8; i++ {
			hub.Inbound() <- testEvent("flood")
		}

		// The healthy subscriber still gets events once it drains.
		drained := 0
		timeout := time.After(time.Second)
		for drained < subscriberBuffer {
			select {
			case <-live.Events():
				drained++
			case <-timeout:
				t.Fatalf("timed out after %d events", drained)
			}
		}
	})

	t.Run("double unsubscribe is harmless", func(t *testing.T) {
		hub := NewHub(nil, testLogger())
		sub := hub.Subscribe()
		hub.Unsubscribe(sub)
		hub.Unsubscribe(sub)
	})
}

type recordingRelay struct {
	mu     sync.Mutex
	events []domain.Event
	err    error
}

func (r *recordingRelay) Publish(_ context.Context, event domain.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, event)
	return nil
}

func (r *recordingRelay) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func TestHubRelay(t *testing.T) {
	t.Run("forwards events to the relay", func(t *testing.T) {
		relay := &recordingRelay{}
		hub := NewHub(relay, testLogger())
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go hub.Run(ctx)

		hub.Inbound() <- testEvent("order-1")

		deadline := time.After(time.Second)
		for relay.count() == 0 {
			select {
			case <-deadline:
				t.Fatal("timed out waiting for relay publish")
			default:
				time.Sleep(5 * time.Millisecond)
			}
		}
	})

	t.Run("relay failures do not stop local delivery", func(t *testing.T) {
		relay := &recordingRelay{err: errors.New("broker down")}
		hub := NewHub(relay, testLogger())
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go hub.Run(ctx)

		sub := hub.Subscribe()
		defer hub.Unsubscribe(sub)

		hub.Inbound() <- testEvent("order-1")

		select {
		case ev := <-sub.Events():
			if ev.OrderID != "order-1" {
				t.Errorf("unexpected order id %s", ev.OrderID)
			}
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for event")
		}
	})
}
