package core

import "time"

// EventType names a domain event published after a successful commit.
type EventType string

const (
	EventPurchaseRegistered EventType = "card.purchase_registered"
	EventInvoicePaid        EventType = "card.invoice_paid"
)

// Event is a lightweight notification; consumers fetch the full records by ID.
type Event struct {
	ID            string    `json:"id"`
	Type          EventType `json:"type"`
	UserID        string    `json:"user_id"`
	TransactionID string    `json:"transaction_id,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}
