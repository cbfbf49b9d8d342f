package broadcast

import (
	"context"
	"log/slog"
	"sync"

	"github.com/joao-fontenele/orderboard/internal/domain"
)

// subscriberBuffer is the per-subscriber queue depth. A subscriber that
// falls this far behind starts losing events; delivery is at-most-once
// per connected session and clients recover with a snapshot pull.
const subscriberBuffer = 16

// Relay forwards events beyond the process, e.g. to a Kafka topic.
type Relay interface {
	Publish(ctx context.Context, event domain.Event) error
}

// Subscription is one connected observer's private event queue.
type Subscription struct {
	ch chan domain.Event
}

// Events is the channel the observer drains. It is closed on Unsubscribe.
func (s *Subscription) Events() <-chan domain.Event {
	return s.ch
}

// Hub fans lifecycle events out to every connected observer. The
// lifecycle service publishes into the hub's inbound channel and never
// waits on a subscriber; each subscriber has its own buffered queue so
// one slow client cannot delay the others.
type Hub struct {
	inbound chan domain.Event
	relay   Relay
	logger  *slog.Logger

	mu   sync.Mutex
	subs map[*Subscription]struct{}
}

func NewHub(relay Relay, logger *slog.Logger) *Hub {
	return &Hub{
		inbound: make(chan domain.Event, 64),
		relay:   relay,
		logger:  logger,
		subs:    make(map[*Subscription]struct{}),
	}
}

// Inbound is the channel mutations are published to. The hub is the only
// consumer; a separate goroutine (Run) drains it, decoupling mutation
// latency from delivery latency.
func (h *Hub) Inbound() chan<- domain.Event {
	return h.inbound
}

func (h *Hub) Subscribe() *Subscription {
	sub := &Subscription{ch: make(chan domain.Event, subscriberBuffer)}

	h.mu.Lock()
	h.subs[sub] = struct{}{}
	count := len(h.subs)
	h.mu.Unlock()

	h.logger.Info("observer subscribed", "subscribers", count)
	return sub
}

func (h *Hub) Unsubscribe(sub *Subscription) {
	h.mu.Lock()
	_, ok := h.subs[sub]
	if ok {
		delete(h.subs, sub)
	}
	count := len(h.subs)
	h.mu.Unlock()

	if ok {
		close(sub.ch)
		h.logger.Info("observer unsubscribed", "subscribers", count)
	}
}

func (h *Hub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Run drains the inbound channel until ctx is cancelled. Every event
// goes to all current subscribers and, when configured, to the relay.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-h.inbound:
			h.dispatch(ctx, event)
		}
	}
}

func (h *Hub) dispatch(ctx context.Context, event domain.Event) {
	// Sends are non-blocking, so holding the lock here is cheap and
	// keeps the fan-out from racing an Unsubscribe closing a channel.
	h.mu.Lock()
	for sub := range h.subs {
		select {
		case sub.ch <- event:
		default:
			h.logger.Warn("subscriber queue full, dropping event", "type", event.Type, "order_id", event.OrderID)
		}
	}
	h.mu.Unlock()

	if h.relay != nil {
		if err := h.relay.Publish(ctx, event); err != nil {
			h.logger.Error("failed to relay event", "error", err, "type", event.Type, "order_id", event.OrderID)
		}
	}
}
