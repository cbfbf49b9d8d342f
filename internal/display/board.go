package display

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/joao-fontenele/orderboard/internal/domain"
)

// Board is the kitchen display model: every order that still needs
// attention, keyed by id. It is fed from the order event topic; the
// payload always carries the full record, so each event simply replaces
// the local copy.
type Board struct {
	logger *slog.Logger

	mu      sync.Mutex
	tickets map[string]domain.Order
}

func NewBoard(logger *slog.Logger) *Board {
	return &Board{
		logger:  logger,
		tickets: make(map[string]domain.Order),
	}
}

// Handle applies one event payload to the board. It matches the
// messaging consumer's handler contract.
func (b *Board) Handle(_ context.Context, payload []byte) error {
	var event domain.Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("unmarshal order event: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	switch event.Type {
	case domain.EventOrderCreated, domain.EventOrderStatusChanged:
		if event.Order == nil {
			return fmt.Errorf("event %s for order %s has no record", event.Type, event.OrderID)
		}
		if event.Order.Status == domain.OrderStatusCompleted {
			delete(b.tickets, event.OrderID)
			b.logger.Info("ticket completed", "order_number", event.Order.OrderNumber)
			return nil
		}
		b.tickets[event.OrderID] = *event.Order
		b.logger.Info("ticket updated",
			"order_number", event.Order.OrderNumber,
			"status", event.Order.Status,
			"items", len(event.Order.Items))

	case domain.EventOrderDeleted:
		delete(b.tickets, event.OrderID)
		b.logger.Info("ticket removed", "order_id", event.OrderID)

	default:
		b.logger.Warn("ignoring unknown event type", "type", event.Type)
	}

	return nil
}

// Load replaces the board with a snapshot, used on startup and after a
// reconnect to recover events missed while disconnected.
func (b *Board) Load(orders []domain.Order) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.tickets = make(map[string]domain.Order, len(orders))
	for _, order := range orders {
		if order.Status == domain.OrderStatusCompleted {
			continue
		}
		b.tickets[order.ID] = order
	}
}

// Tickets returns the open orders oldest first, the order the kitchen
// should work them in.
func (b *Board) Tickets() []domain.Order {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]domain.Order, 0, len(b.tickets))
	for _, order := range b.tickets {
		out = append(out, order)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}
