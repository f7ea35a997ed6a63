package entity

import (
	"time"

	"github.com/uptrace/bun"
)

// Payment statuses and methods.
const (
	PaymentStatusCompleted = "completed"
	PaymentStatusPending   = "pending"
	PaymentStatusOverdue   = "overdue"

	PaymentMethodCash     = "cash"
	PaymentMethodTransfer = "transfer"
	PaymentMethodCard     = "card"
	PaymentMethodCheck    = "check"
)

// Payment is a ledger entry recording money received from a customer,
// optionally against a specific invoice.
type Payment struct {
	bun.BaseModel `bun:"table:payments"`

	ID          int64      `bun:",pk,autoincrement" json:"id"`
	CustomerID  int64      `bun:"customer_id" json:"customer_id"`
	InvoiceID   *int64     `bun:"invoice_id" json:"invoice_id,omitempty"`
	Amount      float64    `bun:"amount" json:"amount"`
	Method      string     `bun:"method" json:"method"`
	Status      string     `bun:"status" json:"status"`
	PaymentDate time.Time  `bun:"payment_date" json:"payment_date"`
	DueDate     *time.Time `bun:"due_date" json:"due_date,omitempty"`
	CreatedAt   time.Time  `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP" json:"created_at"`
}

// Account transaction kinds.
const (
	TransactionDebit  = "debit"
	TransactionCredit = "credit"
)

// AccountTransaction is a double-entry style audit record tying a payment or
// invoice to a dated ledger movement. It is never mutated after insert.
type AccountTransaction struct {
	bun.BaseModel `bun:"table:account_transactions"`

	ID          int64     `bun:",pk,autoincrement" json:"id"`
	CustomerID  int64     `bun:"customer_id" json:"customer_id"`
	PaymentID   *int64    `bun:"payment_id" json:"payment_id,omitempty"`
	InvoiceID   *int64    `bun:"invoice_id" json:"invoice_id,omitempty"`
	Kind        string    `bun:"kind" json:"kind"`
	Amount      float64   `bun:"amount" json:"amount"`
	OccurredAt  time.Time `bun:"occurred_at" json:"occurred_at"`
	Description string    `bun:"description" json:"description"`
}
