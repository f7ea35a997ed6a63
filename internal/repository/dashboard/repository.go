package dashboard

import (
	"context"
	"time"

	"github.com/uptrace/bun"

	"github.com/nazlim/orderdesk/internal/database"
	"github.com/nazlim/orderdesk/internal/entity"
	"github.com/nazlim/orderdesk/internal/lifecycle"
)

// Repository answers the dashboard's read-only aggregate queries. Everything
// is computed from the live tables at call time; there are no counters to
// drift out of sync.
type Repository struct {
	reader *bun.DB
}

// NewRepository wires a dashboard repository against the read replica.
func NewRepository(conns *database.Connections) *Repository {
	return &Repository{reader: conns.Reader}
}

// VisitCount counts visit records for the given day, optionally scoped to one
// sales person.
func (r *Repository) VisitCount(ctx context.Context, userID *int64, day time.Time) (int64, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	end := start.AddDate(0, 0, 1)

	q := r.reader.NewSelect().Model((*entity.Visit)(nil)).
		Where("visited_at >= ?", start).
		Where("visited_at < ?", end)
	if userID != nil {
		q = q.Where("user_id = ?", *userID)
	}
	count, err := q.Count(ctx)
	return int64(count), err
}

// ActiveOrderCount counts orders still in flight.
func (r *Repository) ActiveOrderCount(ctx context.Context, userID *int64) (int64, error) {
	statuses := make([]string, 0, 4)
	for _, s := range lifecycle.ActiveStatuses() {
		statuses = append(statuses, string(s))
	}

	q := r.reader.NewSelect().Model((*entity.Order)(nil)).
		Where("status IN (?)", bun.In(statuses))
	if userID != nil {
		q = q.Where("user_id = ?", *userID)
	}
	count, err := q.Count(ctx)
	return int64(count), err
}

// DeliveredSales sums the totals of orders delivered inside the window.
func (r *Repository) DeliveredSales(ctx context.Context, userID *int64, from, to time.Time) (float64, error) {
	q := r.reader.NewSelect().Model((*entity.Order)(nil)).
		ColumnExpr("COALESCE(SUM(total_amount), 0)").
		Where("delivered_at >= ?", from).
		Where("delivered_at < ?", to)
	if userID != nil {
		q = q.Where("user_id = ?", *userID)
	}
	var sum float64
	if err := q.Scan(ctx, &sum); err != nil {
		return 0, err
	}
	return sum, nil
}

// OrderCounts returns the delivered and total order counts for orders created
// inside the window.
func (r *Repository) OrderCounts(ctx context.Context, userID *int64, from, to time.Time) (delivered, total int64, err error) {
	base := func() *bun.SelectQuery {
		q := r.reader.NewSelect().Model((*entity.Order)(nil)).
			Where("created_at >= ?", from).
			Where("created_at < ?", to)
		if userID != nil {
			q = q.Where("user_id = ?", *userID)
		}
		return q
	}

	totalCount, err := base().Count(ctx)
	if err != nil {
		return 0, 0, err
	}
	deliveredCount, err := base().Where("status = ?", string(lifecycle.StatusDelivered)).Count(ctx)
	if err != nil {
		return 0, 0, err
	}
	return int64(deliveredCount), int64(totalCount), nil
}
