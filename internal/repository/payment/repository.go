package payment

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/nazlim/orderdesk/internal/database"
	"github.com/nazlim/orderdesk/internal/entity"
)

var repoTracer = otel.Tracer("github.com/nazlim/orderdesk/repository/payment")

// ErrInvoiceNotFound is returned when a referenced invoice is missing.
var ErrInvoiceNotFound = errors.New("invoice not found")

// Repository persists payments and answers the ledger aggregate queries.
// Balance figures are always computed fresh from the tables; there is no
// cached balance column to drift.
type Repository struct {
	writer *bun.DB
	reader *bun.DB
}

// NewRepository wires a payment repository.
func NewRepository(conns *database.Connections) *Repository {
	return &Repository{writer: conns.Writer, reader: conns.Reader}
}

// Create inserts the payment and, when given, its credit transaction in one
// transaction. Concurrent payments for the same customer simply accumulate.
func (r *Repository) Create(ctx context.Context, p *entity.Payment, txn *entity.AccountTransaction) error {
	ctx, span := repoTracer.Start(ctx, "PaymentRepository.Create", trace.WithAttributes(
		attribute.Int64("payment.customer_id", p.CustomerID),
		attribute.Float64("payment.amount", p.Amount),
	))
	defer span.End()

	err := r.writer.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(p).Exec(ctx); err != nil {
			return err
		}
		if txn == nil {
			return nil
		}
		txn.PaymentID = &p.ID
		_, err := tx.NewInsert().Model(txn).Exec(ctx)
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
	}
	return err
}

// InvoiceCustomer resolves the owning customer of an invoice.
func (r *Repository) InvoiceCustomer(ctx context.Context, invoiceID int64) (int64, error) {
	var customerID int64
	err := r.reader.NewSelect().Model((*entity.Invoice)(nil)).
		Column("customer_id").
		Where("id = ?", invoiceID).
		Scan(ctx, &customerID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrInvoiceNotFound
	}
	if err != nil {
		return 0, err
	}
	return customerID, nil
}

// InvoicedTotal sums the customer's non-cancelled invoice totals.
func (r *Repository) InvoicedTotal(ctx context.Context, customerID int64) (float64, error) {
	var total float64
	err := r.reader.NewSelect().Model((*entity.Invoice)(nil)).
		ColumnExpr("COALESCE(SUM(total_amount), 0)").
		Where("customer_id = ?", customerID).
		Where("status != ?", entity.InvoiceStatusCancelled).
		Scan(ctx, &total)
	if err != nil {
		return 0, err
	}
	return total, nil
}

// CompletedPaymentsTotal sums the customer's completed payments.
func (r *Repository) CompletedPaymentsTotal(ctx context.Context, customerID int64) (float64, error) {
	var total float64
	err := r.reader.NewSelect().Model((*entity.Payment)(nil)).
		ColumnExpr("COALESCE(SUM(amount), 0)").
		Where("customer_id = ?", customerID).
		Where("status = ?", entity.PaymentStatusCompleted).
		Scan(ctx, &total)
	if err != nil {
		return 0, err
	}
	return total, nil
}

// OverdueInvoices returns unpaid, non-cancelled invoices created before the
// cutoff, oldest first.
func (r *Repository) OverdueInvoices(ctx context.Context, customerID int64, cutoff time.Time) ([]entity.Invoice, error) {
	var invoices []entity.Invoice
	err := r.reader.NewSelect().Model(&invoices).
		Where("i.customer_id = ?", customerID).
		Where("i.status NOT IN (?)", bun.In([]string{entity.InvoiceStatusPaid, entity.InvoiceStatusCancelled})).
		Where("i.created_at < ?", cutoff).
		Order("i.created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return invoices, nil
}

// ListByCustomer returns a customer's payments, newest first.
func (r *Repository) ListByCustomer(ctx context.Context, customerID int64) ([]entity.Payment, error) {
	var payments []entity.Payment
	err := r.reader.NewSelect().Model(&payments).
		Where("customer_id = ?", customerID).
		Order("payment_date DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return payments, nil
}
