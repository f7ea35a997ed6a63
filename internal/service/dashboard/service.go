package dashboard

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/nazlim/orderdesk/internal/billing"
	repo "github.com/nazlim/orderdesk/internal/repository/dashboard"
	"github.com/nazlim/orderdesk/pkg/errorbank"
)

var serviceTracer = otel.Tracer("github.com/nazlim/orderdesk/service/dashboard")

// Store is the read-side surface the dashboard needs.
type Store interface {
	VisitCount(ctx context.Context, userID *int64, day time.Time) (int64, error)
	ActiveOrderCount(ctx context.Context, userID *int64) (int64, error)
	DeliveredSales(ctx context.Context, userID *int64, from, to time.Time) (float64, error)
	OrderCounts(ctx context.Context, userID *int64, from, to time.Time) (delivered, total int64, err error)
}

// Service assembles per-user activity summaries. Figures are computed live on
// each request; a manager refreshing after a status change sees the new state
// immediately.
type Service struct {
	store  Store
	logger *zap.Logger
	now    func() time.Time
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Repository *repo.Repository
	Logger     *zap.Logger
}

// NewService wires a new Service instance.
func NewService(p Params) *Service {
	return newService(p.Repository, p.Logger)
}

func newService(store Store, logger *zap.Logger) *Service {
	return &Service{
		store:  store,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Summary is the dashboard payload. When scoped to a user the figures cover
// that user's records only; unscoped they cover the whole organization.
type Summary struct {
	DailyVisits      int64   `json:"daily_visits"`
	ActiveOrders     int64   `json:"active_orders"`
	MonthlySales     float64 `json:"monthly_sales"`
	DeliveryRate     float64 `json:"delivery_rate"`
	DeliveredOrders  int64   `json:"delivered_orders"`
	MonthOrdersTotal int64   `json:"month_orders_total"`
}

// monthWindow returns the half-open range covering the calendar month of t.
func monthWindow(t time.Time) (time.Time, time.Time) {
	start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	return start, start.AddDate(0, 1, 0)
}

// Summarize computes the four dashboard figures for the current day and
// calendar month.
func (s *Service) Summarize(ctx context.Context, userID *int64) (*Summary, error) {
	ctx, span := serviceTracer.Start(ctx, "DashboardService.Summarize")
	defer span.End()

	now := s.now()
	from, to := monthWindow(now)

	visits, err := s.store.VisitCount(ctx, userID, now)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("failed to count visits", errorbank.WithCause(err))
	}
	active, err := s.store.ActiveOrderCount(ctx, userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("failed to count active orders", errorbank.WithCause(err))
	}
	sales, err := s.store.DeliveredSales(ctx, userID, from, to)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("failed to sum monthly sales", errorbank.WithCause(err))
	}
	delivered, total, err := s.store.OrderCounts(ctx, userID, from, to)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("failed to count orders", errorbank.WithCause(err))
	}

	return &Summary{
		DailyVisits:      visits,
		ActiveOrders:     active,
		MonthlySales:     billing.Round2(sales),
		DeliveryRate:     billing.Rate(delivered, total),
		DeliveredOrders:  delivered,
		MonthOrdersTotal: total,
	}, nil
}
