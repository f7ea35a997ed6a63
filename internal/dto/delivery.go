package dto

import (
	"time"

	"github.com/nazlim/orderdesk/internal/entity"
)

// DeliverySlipItemResponse is one slip line as exposed via transport layers.
type DeliverySlipItemResponse struct {
	ID                int64  `json:"id"`
	ProductID         int64  `json:"product_id"`
	ProductName       string `json:"product_name"`
	OrderedQuantity   int    `json:"ordered_quantity"`
	DeliveredQuantity int    `json:"delivered_quantity"`
}

// DeliverySlipResponse represents a proof-of-delivery document.
type DeliverySlipResponse struct {
	ID            int64      `json:"id"`
	OrderID       int64      `json:"order_id"`
	InvoiceID     *int64     `json:"invoice_id,omitempty"`
	DriverName    string     `json:"driver_name,omitempty"`
	VehiclePlate  string     `json:"vehicle_plate,omitempty"`
	RecipientName string     `json:"recipient_name,omitempty"`
	Status        string     `json:"status"`
	CreatedAt     time.Time  `json:"created_at"`
	DeliveredAt   *time.Time `json:"delivered_at,omitempty"`

	Items []DeliverySlipItemResponse `json:"items,omitempty"`
}

// NewDeliverySlipResponse maps a slip entity onto its transport shape.
func NewDeliverySlipResponse(slip *entity.DeliverySlip) DeliverySlipResponse {
	resp := DeliverySlipResponse{
		ID:            slip.ID,
		OrderID:       slip.OrderID,
		InvoiceID:     slip.InvoiceID,
		DriverName:    slip.DriverName,
		VehiclePlate:  slip.VehiclePlate,
		RecipientName: slip.RecipientName,
		Status:        slip.Status,
		CreatedAt:     slip.CreatedAt,
		DeliveredAt:   slip.DeliveredAt,
	}
	for _, item := range slip.Items {
		resp.Items = append(resp.Items, DeliverySlipItemResponse{
			ID:                item.ID,
			ProductID:         item.ProductID,
			ProductName:       item.ProductName,
			OrderedQuantity:   item.OrderedQuantity,
			DeliveredQuantity: item.DeliveredQuantity,
		})
	}
	return resp
}
