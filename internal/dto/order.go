package dto

import (
	"time"

	"github.com/nazlim/orderdesk/internal/entity"
)

// OrderItemResponse is one order line as exposed via transport layers.
type OrderItemResponse struct {
	ID          int64   `json:"id"`
	ProductID   int64   `json:"product_id"`
	ProductName string  `json:"product_name"`
	Quantity    int     `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	LineTotal   float64 `json:"line_total"`
}

// OrderResponse represents an order as exposed via transport layers.
type OrderResponse struct {
	ID              int64   `json:"id"`
	Number          string  `json:"number"`
	CustomerID      int64   `json:"customer_id"`
	Status          string  `json:"status"`
	TotalAmount     float64 `json:"total_amount"`
	Notes           string  `json:"notes,omitempty"`
	DeliveryAddress string  `json:"delivery_address,omitempty"`
	RecipientName   string  `json:"recipient_name,omitempty"`
	InvoiceID       *int64  `json:"invoice_id,omitempty"`

	ProductionStartedAt   *time.Time `json:"production_started_at,omitempty"`
	ProductionCompletedAt *time.Time `json:"production_completed_at,omitempty"`
	ShippedAt             *time.Time `json:"shipped_at,omitempty"`
	DeliveredAt           *time.Time `json:"delivered_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Items []OrderItemResponse `json:"items,omitempty"`
}

// NewOrderResponse maps an order entity onto its transport shape.
func NewOrderResponse(order *entity.Order) OrderResponse {
	resp := OrderResponse{
		ID:                    order.ID,
		Number:                order.Number,
		CustomerID:            order.CustomerID,
		Status:                order.Status,
		TotalAmount:           order.TotalAmount,
		Notes:                 order.Notes,
		DeliveryAddress:       order.DeliveryAddress,
		RecipientName:         order.RecipientName,
		InvoiceID:             order.InvoiceID,
		ProductionStartedAt:   order.ProductionStartedAt,
		ProductionCompletedAt: order.ProductionCompletedAt,
		ShippedAt:             order.ShippedAt,
		DeliveredAt:           order.DeliveredAt,
		CreatedAt:             order.CreatedAt,
		UpdatedAt:             order.UpdatedAt,
	}
	for _, item := range order.Items {
		resp.Items = append(resp.Items, OrderItemResponse{
			ID:          item.ID,
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			LineTotal:   item.LineTotal,
		})
	}
	return resp
}
