package domain

import "time"

// MenuItem is the catalog entry orders are built from. Order line items
// are snapshots taken at placement time; editing or deleting a menu item
// never touches historical orders.
type MenuItem struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Price       int64     `json:"price"`
	Description string    `json:"description,omitempty"`
	Category    string    `json:"category,omitempty"`
	Available   bool      `json:"available"`
	CreatedAt   time.Time `json:"created_at"`
}
