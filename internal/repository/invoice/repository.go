package invoice

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
	"github.com/nazlim/orderdesk/internal/lifecycle"
)

var repoTracer = otel.Tracer("github.com/nazlim/orderdesk/repository/invoice")

var (
	// ErrNotFound is returned when an invoice is missing.
	ErrNotFound = errors.New("invoice not found")
	// ErrDuplicateNumber is returned on an invoice-number collision.
	ErrDuplicateNumber = errors.New("duplicate invoice number")
	// ErrOrderClaimed is returned when a selected order was invoiced by a
	// concurrent caller; the whole transaction is rolled back.
	ErrOrderClaimed = errors.New("order already claimed by another invoice")
	// ErrStatusConflict is returned when a conditional status update matched
	// no row.
	ErrStatusConflict = errors.New("invoice status conflict")
)

// Repository encapsulates invoice persistence including the atomic claim of
// delivered orders.
type Repository struct {
	writer *bun.DB
	reader *bun.DB
}

// NewRepository wires an invoice repository.
func NewRepository(conns *database.Connections) *Repository {
	return &Repository{writer: conns.Writer, reader: conns.Reader}
}

// UninvoicedDelivered returns delivered orders not yet attached to an
// invoice, items loaded, oldest first.
func (r *Repository) UninvoicedDelivered(ctx context.Context) ([]entity.Order, error) {
	var orders []entity.Order
	err := r.reader.NewSelect().Model(&orders).
		Relation("Items").
		Where("o.status = ?", string(lifecycle.StatusDelivered)).
		Where("o.invoice_id IS NULL").
		Order("o.created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return orders, nil
}

// OrdersForCustomer fetches the given orders with items, restricted to one
// customer. Missing IDs simply come back absent; the caller validates.
func (r *Repository) OrdersForCustomer(ctx context.Context, customerID int64, orderIDs []int64) ([]entity.Order, error) {
	var orders []entity.Order
	err := r.reader.NewSelect().Model(&orders).
		Relation("Items").
		Where("o.customer_id = ?", customerID).
		Where("o.id IN (?)", bun.In(orderIDs)).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return orders, nil
}

// CreateWithClaim inserts the invoice and its items and conditionally claims
// the selected orders in one transaction. The claim update only matches
// orders that are still delivered and uninvoiced; a row-count mismatch rolls
// everything back with ErrOrderClaimed, so two concurrent calls sharing an
// order cannot both succeed.
func (r *Repository) CreateWithClaim(ctx context.Context, inv *entity.Invoice, items []entity.InvoiceItem, orderIDs []int64) error {
	ctx, span := repoTracer.Start(ctx, "InvoiceRepository.CreateWithClaim", trace.WithAttributes(
		attribute.String("invoice.number", inv.Number),
		attribute.Int("invoice.orders", len(orderIDs)),
	))
	defer span.End()

	err := r.writer.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(inv).Exec(ctx); err != nil {
			if database.IsUniqueViolation(err) {
				return ErrDuplicateNumber
			}
			return err
		}

		for i := range items {
			items[i].InvoiceID = inv.ID
		}
		if len(items) > 0 {
			if _, err := tx.NewInsert().Model(&items).Exec(ctx); err != nil {
				return err
			}
		}

		res, err := tx.NewUpdate().Model((*entity.Order)(nil)).
			Set("invoice_id = ?", inv.ID).
			Set("updated_at = ?", time.Now().UTC()).
			Where("id IN (?)", bun.In(orderIDs)).
			Where("status = ?", string(lifecycle.StatusDelivered)).
			Where("invoice_id IS NULL").
			Exec(ctx)
		if err != nil {
			return err
		}
		claimed, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if claimed != int64(len(orderIDs)) {
			return ErrOrderClaimed
		}
		return nil
	})
	if err != nil {
		span.SetStatus(codes.Error, "claim failed")
		if !errors.Is(err, ErrOrderClaimed) && !errors.Is(err, ErrDuplicateNumber) {
			span.RecordError(err)
		}
		return err
	}
	inv.Items = items
	return nil
}

// Get fetches an invoice with its items.
func (r *Repository) Get(ctx context.Context, id int64) (*entity.Invoice, error) {
	inv := new(entity.Invoice)
	err := r.reader.NewSelect().Model(inv).
		Relation("Items").
		Where("i.id = ?", id).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return inv, nil
}

// ListByCustomer returns a customer's invoices, newest first.
func (r *Repository) ListByCustomer(ctx context.Context, customerID int64) ([]entity.Invoice, error) {
	var invoices []entity.Invoice
	err := r.reader.NewSelect().Model(&invoices).
		Where("i.customer_id = ?", customerID).
		Order("i.created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return invoices, nil
}

// UpdateStatus moves an invoice from one status to another conditionally;
// ErrStatusConflict when the invoice is not in the expected status.
func (r *Repository) UpdateStatus(ctx context.Context, id int64, from, to string) error {
	res, err := r.writer.NewUpdate().Model((*entity.Invoice)(nil)).
		Set("status = ?", to).
		Where("id = ?", id).
		Where("status = ?", from).
		Exec(ctx)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrStatusConflict
	}
	return nil
}
