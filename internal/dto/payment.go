package dto

import (
	"time"

	"github.com/nazlim/orderdesk/internal/entity"
)

// PaymentResponse represents a ledger entry as exposed via transport layers.
type PaymentResponse struct {
	ID          int64     `json:"id"`
	CustomerID  int64     `json:"customer_id"`
	InvoiceID   *int64    `json:"invoice_id,omitempty"`
	Amount      float64   `json:"amount"`
	Method      string    `json:"method"`
	Status      string    `json:"status"`
	PaymentDate time.Time `json:"payment_date"`
	CreatedAt   time.Time `json:"created_at"`
}

// NewPaymentResponse maps a payment entity onto its transport shape.
func NewPaymentResponse(p *entity.Payment) PaymentResponse {
	return PaymentResponse{
		ID:          p.ID,
		CustomerID:  p.CustomerID,
		InvoiceID:   p.InvoiceID,
		Amount:      p.Amount,
		Method:      p.Method,
		Status:      p.Status,
		PaymentDate: p.PaymentDate,
		CreatedAt:   p.CreatedAt,
	}
}

// BalanceResponse carries a customer's derived outstanding balance.
type BalanceResponse struct {
	CustomerID int64   `json:"customer_id"`
	Balance    float64 `json:"balance"`
}
