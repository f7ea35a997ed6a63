package entity

import (
	"time"

	"github.com/uptrace/bun"
)

// Invoice statuses.
const (
	InvoiceStatusGenerated = "generated"
	InvoiceStatusPaid      = "paid"
	InvoiceStatusCancelled = "cancelled"
)

// Invoice aggregates one or more delivered orders for a single customer.
// Once generated the amount fields are immutable; corrections happen through
// new invoices or credit transactions.
type Invoice struct {
	bun.BaseModel `bun:"table:invoices"`

	ID              int64     `bun:",pk,autoincrement" json:"id"`
	Number          string    `bun:"number" json:"number"`
	CustomerID      int64     `bun:"customer_id" json:"customer_id"`
	Status          string    `bun:"status" json:"status"`
	SubtotalAmount  float64   `bun:"subtotal_amount" json:"subtotal_amount"`
	TaxAmount       float64   `bun:"tax_amount" json:"tax_amount"`
	TotalAmount     float64   `bun:"total_amount" json:"total_amount"`
	Description     string    `bun:"description" json:"description"`
	ShippingAddress string    `bun:"shipping_address" json:"shipping_address"`
	CreatedAt       time.Time `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP" json:"created_at"`

	Items []InvoiceItem `bun:"rel:has-many,join:id=invoice_id" json:"items,omitempty"`
}

// InvoiceItem is a denormalized snapshot of a product line at invoice time.
// The product name and price are copied, never re-resolved against the live
// catalog, so historical documents stay accurate.
type InvoiceItem struct {
	bun.BaseModel `bun:"table:invoice_items"`

	ID          int64   `bun:",pk,autoincrement" json:"id"`
	InvoiceID   int64   `bun:"invoice_id" json:"invoice_id"`
	ProductID   int64   `bun:"product_id" json:"product_id"`
	ProductName string  `bun:"product_name" json:"product_name"`
	Quantity    int     `bun:"quantity" json:"quantity"`
	UnitPrice   float64 `bun:"unit_price" json:"unit_price"`
	LineTotal   float64 `bun:"line_total" json:"line_total"`
}
