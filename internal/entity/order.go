package entity

import (
	"time"

	"github.com/uptrace/bun"
)

// Order represents one customer purchase request moving through the lifecycle.
// Orders are never physically deleted; cancellation is a terminal status so the
// billing ledger keeps its audit trail.
type Order struct {
	bun.BaseModel `bun:"table:orders"`

	ID              int64   `bun:",pk,autoincrement" json:"id"`
	Number          string  `bun:"number" json:"number"`
	CustomerID      int64   `bun:"customer_id" json:"customer_id"`
	UserID          int64   `bun:"user_id" json:"user_id"`
	Status          string  `bun:"status" json:"status"`
	TotalAmount     float64 `bun:"total_amount" json:"total_amount"`
	TaxAmount       float64 `bun:"tax_amount" json:"tax_amount"`
	Notes           string  `bun:"notes" json:"notes"`
	ProductionNotes string  `bun:"production_notes" json:"production_notes"`
	DeliveryAddress string  `bun:"delivery_address" json:"delivery_address"`
	RecipientName   string  `bun:"recipient_name" json:"recipient_name"`
	// RecipientSignature is an opaque base64 payload; nothing in the core
	// inspects it.
	RecipientSignature string `bun:"recipient_signature" json:"recipient_signature,omitempty"`

	InvoiceID *int64 `bun:"invoice_id" json:"invoice_id,omitempty"`

	ProductionStartedAt   *time.Time `bun:"production_started_at" json:"production_started_at,omitempty"`
	ProductionCompletedAt *time.Time `bun:"production_completed_at" json:"production_completed_at,omitempty"`
	ShippedAt             *time.Time `bun:"shipped_at" json:"shipped_at,omitempty"`
	DeliveredAt           *time.Time `bun:"delivered_at" json:"delivered_at,omitempty"`

	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `bun:"updated_at,nullzero" json:"updated_at"`

	Items []OrderItem `bun:"rel:has-many,join:id=order_id" json:"items,omitempty"`
}

// Invoiced reports whether the order has been claimed by an invoice.
func (o *Order) Invoiced() bool {
	return o.InvoiceID != nil
}

// OrderItem is one product line on an order. The set is owned exclusively by
// its order and replaced wholesale during production editing.
type OrderItem struct {
	bun.BaseModel `bun:"table:order_items"`

	ID          int64   `bun:",pk,autoincrement" json:"id"`
	OrderID     int64   `bun:"order_id" json:"order_id"`
	ProductID   int64   `bun:"product_id" json:"product_id"`
	ProductName string  `bun:"product_name" json:"product_name"`
	Quantity    int     `bun:"quantity" json:"quantity"`
	UnitPrice   float64 `bun:"unit_price" json:"unit_price"`
	LineTotal   float64 `bun:"line_total" json:"line_total"`
}
