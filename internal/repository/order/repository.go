package order

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

	"github.com/nazlim/orderdesk/internal/config"
	"github.com/nazlim/orderdesk/internal/database"
	"github.com/nazlim/orderdesk/internal/entity"
)

var repoTracer = otel.Tracer("github.com/nazlim/orderdesk/repository/order")

var (
	// ErrNotFound is returned when an order is missing.
	ErrNotFound = errors.New("order not found")
	// ErrLockTimeout is returned when the order row lock could not be
	// acquired within the configured bound.
	ErrLockTimeout = errors.New("order lock timeout")
)

// Repository encapsulates read/write access for orders. Mutations run under a
// row lock so status transitions and item edits never interleave.
type Repository struct {
	writer      *bun.DB
	reader      *bun.DB
	lockTimeout time.Duration
}

// NewRepository wires a repository backed by configured database connections.
func NewRepository(conns *database.Connections, cfg config.Config) *Repository {
	return &Repository{
		writer:      conns.Writer,
		reader:      conns.Reader,
		lockTimeout: cfg.Database.LockTimeout,
	}
}

// Create persists a new order together with its item set.
func (r *Repository) Create(ctx context.Context, order *entity.Order, items []entity.OrderItem) error {
	if order == nil {
		return errors.New("nil order")
	}
	ctx, span := repoTracer.Start(ctx, "OrderRepository.Create", trace.WithAttributes(attribute.String("order.number", order.Number)))
	defer span.End()

	err := r.writer.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(order).Exec(ctx); err != nil {
			return err
		}
		if len(items) == 0 {
			return nil
		}
		for i := range items {
			items[i].OrderID = order.ID
		}
		_, err := tx.NewInsert().Model(&items).Exec(ctx)
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
		return err
	}
	order.Items = items
	return nil
}

// Get fetches an order with its items using the read replica when available.
func (r *Repository) Get(ctx context.Context, id int64) (*entity.Order, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.Get", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	order := new(entity.Order)
	err := r.reader.NewSelect().Model(order).
		Relation("Items").
		Where("o.id = ?", id).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		span.SetStatus(codes.Error, "not found")
		return nil, ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return order, nil
}

// ListByStatus returns orders in the given status, oldest first.
func (r *Repository) ListByStatus(ctx context.Context, status string) ([]entity.Order, error) {
	var orders []entity.Order
	q := r.reader.NewSelect().Model(&orders).Relation("Items").Order("o.created_at ASC")
	if status != "" {
		q = q.Where("o.status = ?", status)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	return orders, nil
}

// Mutate loads the order under SELECT ... FOR UPDATE, applies fn, and writes
// the result back in the same transaction. Lock waits are bounded by the
// configured timeout and surface as ErrLockTimeout.
func (r *Repository) Mutate(ctx context.Context, id int64, fn func(*entity.Order) error) (*entity.Order, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.Mutate", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, r.lockTimeout)
	defer cancel()

	order := new(entity.Order)
	err := r.writer.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		err := tx.NewSelect().Model(order).
			Where("o.id = ?", id).
			For("UPDATE").
			Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		// FOR UPDATE cannot join the relation; load the item set separately
		// so callers (and the events built from the result) see it.
		var items []entity.OrderItem
		if err := tx.NewSelect().Model(&items).Where("order_id = ?", id).Scan(ctx); err != nil {
			return err
		}
		order.Items = items

		if err := fn(order); err != nil {
			return err
		}

		_, err = tx.NewUpdate().Model(order).WherePK().Exec(ctx)
		return err
	})
	if err != nil {
		if database.IsLockTimeout(err) {
			span.SetStatus(codes.Error, "lock timeout")
			return nil, ErrLockTimeout
		}
		span.RecordError(err)
		return nil, err
	}
	return order, nil
}

// ReplaceItems swaps the order's item set wholesale under the same row lock
// used by Mutate. The build callback receives the locked order plus its
// current items and returns the replacement set; the order row is updated with
// whatever totals the callback assigned.
func (r *Repository) ReplaceItems(ctx context.Context, id int64, build func(*entity.Order, []entity.OrderItem) ([]entity.OrderItem, error)) (*entity.Order, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.ReplaceItems", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, r.lockTimeout)
	defer cancel()

	order := new(entity.Order)
	err := r.writer.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		err := tx.NewSelect().Model(order).
			Where("o.id = ?", id).
			For("UPDATE").
			Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		var current []entity.OrderItem
		if err := tx.NewSelect().Model(&current).Where("order_id = ?", id).Scan(ctx); err != nil {
			return err
		}

		replacement, err := build(order, current)
		if err != nil {
			return err
		}

		if _, err := tx.NewDelete().Model((*entity.OrderItem)(nil)).Where("order_id = ?", id).Exec(ctx); err != nil {
			return err
		}
		for i := range replacement {
			replacement[i].ID = 0
			replacement[i].OrderID = id
		}
		if len(replacement) > 0 {
			if _, err := tx.NewInsert().Model(&replacement).Exec(ctx); err != nil {
				return err
			}
		}
		order.Items = replacement

		_, err = tx.NewUpdate().Model(order).WherePK().Exec(ctx)
		return err
	})
	if err != nil {
		if database.IsLockTimeout(err) {
			span.SetStatus(codes.Error, "lock timeout")
			return nil, ErrLockTimeout
		}
		span.RecordError(err)
		return nil, err
	}
	return order, nil
}
