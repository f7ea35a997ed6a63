package dto

import (
	"time"

	"github.com/nazlim/orderdesk/internal/entity"
)

// InvoiceItemResponse is one merged product line on an invoice.
type InvoiceItemResponse struct {
	ID          int64   `json:"id"`
	ProductID   int64   `json:"product_id"`
	ProductName string  `json:"product_name"`
	Quantity    int     `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	LineTotal   float64 `json:"line_total"`
}

// InvoiceResponse represents an invoice as exposed via transport layers.
type InvoiceResponse struct {
	ID              int64     `json:"id"`
	Number          string    `json:"number"`
	CustomerID      int64     `json:"customer_id"`
	Status          string    `json:"status"`
	SubtotalAmount  float64   `json:"subtotal_amount"`
	TaxAmount       float64   `json:"tax_amount"`
	TotalAmount     float64   `json:"total_amount"`
	Description     string    `json:"description,omitempty"`
	ShippingAddress string    `json:"shipping_address,omitempty"`
	CreatedAt       time.Time `json:"created_at"`

	Items []InvoiceItemResponse `json:"items,omitempty"`
}

// NewInvoiceResponse maps an invoice entity onto its transport shape.
func NewInvoiceResponse(inv *entity.Invoice) InvoiceResponse {
	resp := InvoiceResponse{
		ID:              inv.ID,
		Number:          inv.Number,
		CustomerID:      inv.CustomerID,
		Status:          inv.Status,
		SubtotalAmount:  inv.SubtotalAmount,
		TaxAmount:       inv.TaxAmount,
		TotalAmount:     inv.TotalAmount,
		Description:     inv.Description,
		ShippingAddress: inv.ShippingAddress,
		CreatedAt:       inv.CreatedAt,
	}
	for _, item := range inv.Items {
		resp.Items = append(resp.Items, InvoiceItemResponse{
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
