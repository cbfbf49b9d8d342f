package domain

import "time"

const (
	EventOrderCreated       = "order.created"
	EventOrderStatusChanged = "order.status_changed"
	EventOrderDeleted       = "order.deleted"
)

// Event is the envelope broadcast to every connected observer after a
// mutation commits. Created and status-changed events carry the full
// record so clients replace their local copy wholesale; deleted events
// carry only the id.
type Event struct {
	Type       string    `json:"type"`
	OrderID    string    `json:"order_id"`
	Order      *Order    `json:"order,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}
