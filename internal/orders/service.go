package orders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/joao-fontenele/orderboard/internal/domain"
)

var serviceMeter = otel.Meter("orderboard/orders")

// Store is the persistence contract the lifecycle service depends on.
// GetByID and UpdateStatus return a nil order when the id is absent.
type Store interface {
	Insert(ctx context.Context, order *domain.Order) error
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	List(ctx context.Context, filter ListFilter) ([]domain.Order, error)
	UpdateStatus(ctx context.Context, id string, status, expected domain.OrderStatus) (*domain.Order, error)
	Delete(ctx context.Context, id string) (bool, error)
}

// Service is the single authority on what constitutes a legal order and
// a legal status change. Every successful mutation publishes exactly one
// event to the broadcast channel, strictly after the store commit.
type Service struct {
	store  Store
	events chan<- domain.Event
	logger *slog.Logger

	mutations     metric.Int64Counter
	droppedEvents metric.Int64Counter
}

func NewService(store Store, events chan<- domain.Event, logger *slog.Logger) *Service {
	mutations, _ := serviceMeter.Int64Counter("orderboard.order.mutations",
		metric.WithDescription("Committed order mutations by kind"))
	droppedEvents, _ := serviceMeter.Int64Counter("orderboard.events.dropped",
		metric.WithDescription("Lifecycle events dropped because the broadcast channel was full"))

	return &Service{
		store:         store,
		events:        events,
		logger:        logger,
		mutations:     mutations,
		droppedEvents: droppedEvents,
	}
}

// PlaceOrder validates the line items, computes the total server-side,
// persists the order with a freshly assigned number and emits
// order.created.
func (s *Service) PlaceOrder(ctx context.Context, items []domain.OrderItem, notes string) (*domain.Order, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: order must contain at least one item", domain.ErrValidation)
	}

	var total int64
	for i, item := range items {
		if item.Name == "" {
			return nil, fmt.Errorf("%w: item %d has no name", domain.ErrValidation, i)
		}
		if item.Quantity <= 0 {
			return nil, fmt.Errorf("%w: item %q has non-positive quantity %d", domain.ErrValidation, item.Name, item.Quantity)
		}
		if item.UnitPrice < 0 {
			return nil, fmt.Errorf("%w: item %q has negative unit price", domain.ErrValidation, item.Name)
		}
		total += item.UnitPrice * int64(item.Quantity)
	}

	order := &domain.Order{
		Items:       items,
		TotalAmount: total,
		Status:      domain.OrderStatusPending,
		Notes:       notes,
	}

	if err := s.store.Insert(ctx, order); err != nil {
		if errors.Is(err, domain.ErrUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: insert order: %v", domain.ErrUnavailable, err)
	}

	s.mutations.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", "create")))
	s.publish(domain.Event{
		Type:       domain.EventOrderCreated,
		OrderID:    order.ID,
		Order:      order,
		OccurredAt: order.CreatedAt,
	})

	return order, nil
}

// ChangeStatus re-reads the current persisted status, validates the
// transition and applies it with a conditional update, so two
// concurrent changes to the same order cannot both succeed on a stale
// read. Re-applying the current status is a no-op that still refreshes
// updated_at.
func (s *Service) ChangeStatus(ctx context.Context, id string, requested domain.OrderStatus) (*domain.Order, error) {
	if !requested.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", domain.ErrValidation, requested)
	}

	current, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: read order: %v", domain.ErrUnavailable, err)
	}
	if current == nil {
		return nil, fmt.Errorf("%w: order %s", domain.ErrNotFound, id)
	}

	if requested != current.Status && !domain.CanTransition(current.Status, requested) {
		return nil, fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, current.Status, requested)
	}

	updated, err := s.store.UpdateStatus(ctx, id, requested, current.Status)
	if err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return nil, fmt.Errorf("%w: order %s changed concurrently", domain.ErrConflict, id)
		}
		return nil, fmt.Errorf("%w: update status: %v", domain.ErrUnavailable, err)
	}
	if updated == nil {
		return nil, fmt.Errorf("%w: order %s", domain.ErrNotFound, id)
	}

	s.mutations.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", "status_change")))
	s.publish(domain.Event{
		Type:       domain.EventOrderStatusChanged,
		OrderID:    updated.ID,
		Order:      updated,
		OccurredAt: updated.UpdatedAt,
	})

	return updated, nil
}

// DeleteOrder removes an order unconditionally, from any status.
func (s *Service) DeleteOrder(ctx context.Context, id string) error {
	deleted, err := s.store.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("%w: delete order: %v", domain.ErrUnavailable, err)
	}
	if !deleted {
		return fmt.Errorf("%w: order %s", domain.ErrNotFound, id)
	}

	s.mutations.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", "delete")))
	s.publish(domain.Event{
		Type:       domain.EventOrderDeleted,
		OrderID:    id,
		OccurredAt: time.Now().UTC(),
	})

	return nil
}

func (s *Service) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	order, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: read order: %v", domain.ErrUnavailable, err)
	}
	if order == nil {
		return nil, fmt.Errorf("%w: order %s", domain.ErrNotFound, id)
	}
	return order, nil
}

// ListOrders resolves a role-facing filter: "" or "all" is the full
// history newest first, "active" is everything not completed oldest
// first, and a concrete status name is that status oldest first.
func (s *Service) ListOrders(ctx context.Context, filter string) ([]domain.Order, error) {
	var f ListFilter
	switch filter {
	case "", "all":
	case "active":
		f.ActiveOnly = true
	default:
		status := domain.OrderStatus(filter)
		if !status.Valid() {
			return nil, fmt.Errorf("%w: unknown status filter %q", domain.ErrValidation, filter)
		}
		f.Status = status
	}

	listed, err := s.store.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("%w: list orders: %v", domain.ErrUnavailable, err)
	}
	return listed, nil
}

// publish hands the event to the broadcaster without ever blocking the
// mutation path. A full channel drops the event; clients reconcile with
// a snapshot pull on reconnect.
func (s *Service) publish(event domain.Event) {
	if s.events == nil {
		return
	}
	select {
	case s.events <- event:
	default:
		s.droppedEvents.Add(context.Background(), 1)
		s.logger.Warn("broadcast channel full, dropping event", "type", event.Type, "order_id", event.OrderID)
	}
}
