package seeder

import (
	"context"
	"time"

	"github.com/uptrace/bun"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/nazlim/orderdesk/internal/billing"
	"github.com/nazlim/orderdesk/internal/database"
	"github.com/nazlim/orderdesk/internal/entity"
	"github.com/nazlim/orderdesk/internal/lifecycle"
)

// Module provides the seeder to Fx.
var Module = fx.Provide(New)

// Seeder performs database seeding for local/dev setups.
type Seeder struct {
	db     *bun.DB
	logger *zap.Logger
}

// New constructs a Seeder backed by the primary database connection.
func New(conns *database.Connections, logger *zap.Logger) *Seeder {
	return &Seeder{db: conns.Writer, logger: logger}
}

// All runs every seeder in dependency order.
func (s *Seeder) All(ctx context.Context) error {
	if err := s.Customers(ctx); err != nil {
		return err
	}
	if err := s.Visits(ctx); err != nil {
		return err
	}
	return s.Orders(ctx)
}

// Customers seeds example customers if they are missing.
func (s *Seeder) Customers(ctx context.Context) error {
	samples := []entity.Customer{
		{ID: 1, Name: "Harbor Cafe", Email: "orders@harborcafe.test", Phone: "+31 10 555 0101", Address: "12 Harbor St"},
		{ID: 2, Name: "Mill Bakery", Email: "purchasing@millbakery.test", Phone: "+31 10 555 0102", Address: "4 Mill Rd"},
	}

	for _, sample := range samples {
		customer := sample
		_, err := s.db.NewInsert().Model(&customer).
			On("CONFLICT (id) DO NOTHING").
			Exec(ctx)
		if err != nil {
			return err
		}
	}

	s.logger.Info("seeded customers", zap.Int("count", len(samples)))
	return nil
}

// Visits seeds a couple of sales visits for today's dashboard figure.
func (s *Seeder) Visits(ctx context.Context) error {
	now := time.Now().UTC()
	samples := []entity.Visit{
		{ID: 1, UserID: 1, CustomerID: 1, VisitedAt: now, Notes: "quarterly catalog review"},
		{ID: 2, UserID: 1, CustomerID: 2, VisitedAt: now, Notes: "follow-up on standing order"},
	}

	for _, sample := range samples {
		visit := sample
		_, err := s.db.NewInsert().Model(&visit).
			On("CONFLICT (id) DO NOTHING").
			Exec(ctx)
		if err != nil {
			return err
		}
	}

	s.logger.Info("seeded visits", zap.Int("count", len(samples)))
	return nil
}

// Orders seeds example orders with items if they are missing.
func (s *Seeder) Orders(ctx context.Context) error {
	now := time.Now().UTC()
	type sample struct {
		order entity.Order
		items []entity.OrderItem
	}
	samples := []sample{
		{
			order: entity.Order{
				Number:          "ORD-SEED-1000",
				CustomerID:      1,
				UserID:          1,
				Status:          string(lifecycle.StatusPending),
				DeliveryAddress: "12 Harbor St",
				CreatedAt:       now,
				UpdatedAt:       now,
			},
			items: []entity.OrderItem{
				{ProductID: 1, ProductName: "Espresso Beans 1kg", Quantity: 4, UnitPrice: 18.50},
				{ProductID: 2, ProductName: "Oat Milk Case", Quantity: 2, UnitPrice: 21.00},
			},
		},
		{
			order: entity.Order{
				Number:          "ORD-SEED-1001",
				CustomerID:      2,
				UserID:          1,
				Status:          string(lifecycle.StatusProduction),
				DeliveryAddress: "4 Mill Rd",
				CreatedAt:       now,
				UpdatedAt:       now,
				ProductionStartedAt: func() *time.Time {
					t := now.Add(-2 * time.Hour)
					return &t
				}(),
			},
			items: []entity.OrderItem{
				{ProductID: 3, ProductName: "Rye Flour 25kg", Quantity: 10, UnitPrice: 32.00},
			},
		},
	}

	seeded := 0
	for _, sm := range samples {
		order := sm.order
		order.TotalAmount = billing.SumItems(sm.items)

		res, err := s.db.NewInsert().Model(&order).
			On("CONFLICT (number) DO NOTHING").
			Exec(ctx)
		if err != nil {
			return err
		}
		if affected, err := res.RowsAffected(); err != nil || affected == 0 {
			continue
		}

		items := make([]entity.OrderItem, len(sm.items))
		copy(items, sm.items)
		for i := range items {
			items[i].OrderID = order.ID
		}
		if _, err := s.db.NewInsert().Model(&items).Exec(ctx); err != nil {
			return err
		}
		seeded++
	}

	s.logger.Info("seeded orders", zap.Int("count", seeded))
	return nil
}
