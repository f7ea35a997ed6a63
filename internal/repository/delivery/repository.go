package delivery

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"

	"github.com/nazlim/orderdesk/internal/config"
	"github.com/nazlim/orderdesk/internal/database"
	"github.com/nazlim/orderdesk/internal/entity"
)

// ErrNotFound is returned when a delivery slip is missing.
var ErrNotFound = errors.New("delivery slip not found")

// ErrLockTimeout is returned when the slip row lock could not be acquired in
// time.
var ErrLockTimeout = errors.New("delivery slip lock timeout")

// Repository persists delivery slips and their item lists.
type Repository struct {
	writer      *bun.DB
	reader      *bun.DB
	lockTimeout time.Duration
}

// NewRepository wires a delivery slip repository.
func NewRepository(conns *database.Connections, cfg config.Config) *Repository {
	return &Repository{
		writer:      conns.Writer,
		reader:      conns.Reader,
		lockTimeout: cfg.Database.LockTimeout,
	}
}

// Create inserts a slip with its items in one transaction.
func (r *Repository) Create(ctx context.Context, slip *entity.DeliverySlip, items []entity.DeliverySlipItem) error {
	err := r.writer.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(slip).Exec(ctx); err != nil {
			return err
		}
		if len(items) == 0 {
			return nil
		}
		for i := range items {
			items[i].SlipID = slip.ID
		}
		_, err := tx.NewInsert().Model(&items).Exec(ctx)
		return err
	})
	if err != nil {
		return err
	}
	slip.Items = items
	return nil
}

// Get fetches a slip with its items.
func (r *Repository) Get(ctx context.Context, id int64) (*entity.DeliverySlip, error) {
	slip := new(entity.DeliverySlip)
	err := r.reader.NewSelect().Model(slip).
		Relation("Items").
		Where("d.id = ?", id).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return slip, nil
}

// ListByOrder returns an order's slips, oldest first.
func (r *Repository) ListByOrder(ctx context.Context, orderID int64) ([]entity.DeliverySlip, error) {
	var slips []entity.DeliverySlip
	err := r.reader.NewSelect().Model(&slips).
		Relation("Items").
		Where("d.order_id = ?", orderID).
		Order("d.created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return slips, nil
}

// Mutate loads the slip under SELECT ... FOR UPDATE, applies fn, and writes
// the result back.
func (r *Repository) Mutate(ctx context.Context, id int64, fn func(*entity.DeliverySlip) error) (*entity.DeliverySlip, error) {
	ctx, cancel := context.WithTimeout(ctx, r.lockTimeout)
	defer cancel()

	slip := new(entity.DeliverySlip)
	err := r.writer.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		err := tx.NewSelect().Model(slip).
			Where("d.id = ?", id).
			For("UPDATE").
			Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		if err := fn(slip); err != nil {
			return err
		}

		_, err = tx.NewUpdate().Model(slip).WherePK().Exec(ctx)
		return err
	})
	if err != nil {
		if database.IsLockTimeout(err) {
			return nil, ErrLockTimeout
		}
		return nil, err
	}
	return slip, nil
}
