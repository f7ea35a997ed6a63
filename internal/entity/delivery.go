package entity

import (
	"time"

	"github.com/uptrace/bun"
)

// Delivery slip statuses.
const (
	SlipStatusPrepared  = "prepared"
	SlipStatusDelivered = "delivered"
	SlipStatusReturned  = "returned"
)

// DeliverySlip is a proof-of-delivery record, distinct from the billing
// invoice. One order may have several slips (partial shipments); a slip may
// later be linked to the invoice that bills it.
type DeliverySlip struct {
	bun.BaseModel `bun:"table:delivery_slips"`

	ID                 int64      `bun:",pk,autoincrement" json:"id"`
	OrderID            int64      `bun:"order_id" json:"order_id"`
	InvoiceID          *int64     `bun:"invoice_id" json:"invoice_id,omitempty"`
	DriverName         string     `bun:"driver_name" json:"driver_name"`
	VehiclePlate       string     `bun:"vehicle_plate" json:"vehicle_plate"`
	RecipientName      string     `bun:"recipient_name" json:"recipient_name"`
	RecipientSignature string     `bun:"recipient_signature" json:"recipient_signature,omitempty"`
	Status             string     `bun:"status" json:"status"`
	CreatedAt          time.Time  `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP" json:"created_at"`
	DeliveredAt        *time.Time `bun:"delivered_at" json:"delivered_at,omitempty"`

	Items []DeliverySlipItem `bun:"rel:has-many,join:id=slip_id" json:"items,omitempty"`
}

// DeliverySlipItem records what actually left the warehouse; DeliveredQuantity
// may be lower than OrderedQuantity on partial deliveries.
type DeliverySlipItem struct {
	bun.BaseModel `bun:"table:delivery_slip_items"`

	ID                int64  `bun:",pk,autoincrement" json:"id"`
	SlipID            int64  `bun:"slip_id" json:"slip_id"`
	ProductID         int64  `bun:"product_id" json:"product_id"`
	ProductName       string `bun:"product_name" json:"product_name"`
	OrderedQuantity   int    `bun:"ordered_quantity" json:"ordered_quantity"`
	DeliveredQuantity int    `bun:"delivered_quantity" json:"delivered_quantity"`
}
