package invoice

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/nazlim/orderdesk/internal/billing"
	"github.com/nazlim/orderdesk/internal/config"
	"github.com/nazlim/orderdesk/internal/entity"
	"github.com/nazlim/orderdesk/internal/lifecycle"
	repo "github.com/nazlim/orderdesk/internal/repository/invoice"
	"github.com/nazlim/orderdesk/pkg/errorbank"
)

var serviceTracer = otel.Tracer("github.com/nazlim/orderdesk/service/invoice")

// Store is the persistence surface the invoice service needs.
type Store interface {
	UninvoicedDelivered(ctx context.Context) ([]entity.Order, error)
	OrdersForCustomer(ctx context.Context, customerID int64, orderIDs []int64) ([]entity.Order, error)
	CreateWithClaim(ctx context.Context, inv *entity.Invoice, items []entity.InvoiceItem, orderIDs []int64) error
	Get(ctx context.Context, id int64) (*entity.Invoice, error)
	ListByCustomer(ctx context.Context, customerID int64) ([]entity.Invoice, error)
	UpdateStatus(ctx context.Context, id int64, from, to string) error
}

// Service groups delivered orders into billable invoices.
type Service struct {
	store         Store
	logger        *zap.Logger
	taxRate       float64
	numberRetries int
	now           func() time.Time
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Repository *repo.Repository
	Config     config.Config
	Logger     *zap.Logger
}

// NewService wires a new Service instance.
func NewService(p Params) *Service {
	return newService(p.Repository, p.Config, p.Logger)
}

func newService(store Store, cfg config.Config, logger *zap.Logger) *Service {
	return &Service{
		store:         store,
		logger:        logger,
		taxRate:       cfg.Billing.TaxRatePercent,
		numberRetries: cfg.Billing.NumberRetries,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// ProductRollup sums one product across a customer's grouped orders.
type ProductRollup struct {
	ProductID   int64   `json:"product_id"`
	ProductName string  `json:"product_name"`
	Quantity    int     `json:"quantity"`
	Amount      float64 `json:"amount"`
}

// CustomerGroup is the read-side projection of one customer's billable
// orders. Nothing is persisted until invoicing is requested.
type CustomerGroup struct {
	CustomerID  int64           `json:"customer_id"`
	OrderCount  int             `json:"order_count"`
	OrderIDs    []int64         `json:"order_ids"`
	TotalAmount float64         `json:"total_amount"`
	Products    []ProductRollup `json:"products"`
}

// GroupDeliveredOrders projects delivered, uninvoiced orders per customer.
func (s *Service) GroupDeliveredOrders(ctx context.Context) ([]CustomerGroup, error) {
	ctx, span := serviceTracer.Start(ctx, "InvoiceService.GroupDeliveredOrders")
	defer span.End()

	orders, err := s.store.UninvoicedDelivered(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("failed to load delivered orders", errorbank.WithCause(err))
	}

	byCustomer := make(map[int64][]entity.Order)
	for _, order := range orders {
		byCustomer[order.CustomerID] = append(byCustomer[order.CustomerID], order)
	}

	customerIDs := make([]int64, 0, len(byCustomer))
	for id := range byCustomer {
		customerIDs = append(customerIDs, id)
	}
	sort.Slice(customerIDs, func(i, j int) bool { return customerIDs[i] < customerIDs[j] })

	groups := make([]CustomerGroup, 0, len(customerIDs))
	for _, customerID := range customerIDs {
		group := CustomerGroup{CustomerID: customerID}
		var total float64
		for _, order := range byCustomer[customerID] {
			group.OrderIDs = append(group.OrderIDs, order.ID)
			total += order.TotalAmount
		}
		group.OrderCount = len(group.OrderIDs)
		group.TotalAmount = billing.Round2(total)
		for _, line := range billing.MergeOrderItems(byCustomer[customerID]) {
			group.Products = append(group.Products, ProductRollup{
				ProductID:   line.ProductID,
				ProductName: line.ProductName,
				Quantity:    line.Quantity,
				Amount:      line.LineTotal,
			})
		}
		groups = append(groups, group)
	}
	return groups, nil
}

// CreateBulkInvoice aggregates the selected delivered orders into one
// invoice. The selected orders are claimed conditionally inside the same
// transaction as the invoice insert, so overlapping concurrent calls cannot
// both succeed. Invoice-number collisions are retried with a fresh number.
func (s *Service) CreateBulkInvoice(ctx context.Context, customerID int64, orderIDs []int64, shippingAddress string) (*entity.Invoice, error) {
	if customerID <= 0 {
		return nil, errorbank.BadRequest("customer is required")
	}
	orderIDs = dedupe(orderIDs)
	if len(orderIDs) == 0 {
		return nil, errorbank.BadRequest("at least one order is required")
	}

	ctx, span := serviceTracer.Start(ctx, "InvoiceService.CreateBulkInvoice", trace.WithAttributes(
		attribute.Int64("invoice.customer_id", customerID),
		attribute.Int("invoice.orders", len(orderIDs)),
	))
	defer span.End()

	orders, err := s.store.OrdersForCustomer(ctx, customerID, orderIDs)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("failed to load orders", errorbank.WithCause(err))
	}
	if len(orders) != len(orderIDs) {
		return nil, errorbank.NotFound("one or more orders not found for customer")
	}

	var subtotal float64
	for _, order := range orders {
		if order.Status != string(lifecycle.StatusDelivered) {
			return nil, errorbank.Unprocessable(
				fmt.Sprintf("order %s is not delivered", order.Number),
				errorbank.WithCode(errorbank.CodeOrderNotDelivered),
				errorbank.WithDetail("order_id", order.ID),
			)
		}
		if order.Invoiced() {
			return nil, errorbank.Conflict(
				fmt.Sprintf("order %s is already invoiced", order.Number),
				errorbank.WithCode(errorbank.CodeOrderAlreadyInvoiced),
				errorbank.WithDetail("order_id", order.ID),
			)
		}
		subtotal += order.TotalAmount
	}
	subtotal = billing.Round2(subtotal)
	tax := billing.Tax(subtotal, s.taxRate)

	lines := billing.MergeOrderItems(orders)

	for attempt := 0; attempt < s.numberRetries; attempt++ {
		inv := &entity.Invoice{
			Number:          billing.InvoiceNumber(s.now()),
			CustomerID:      customerID,
			Status:          entity.InvoiceStatusGenerated,
			SubtotalAmount:  subtotal,
			TaxAmount:       tax,
			TotalAmount:     billing.Round2(subtotal + tax),
			Description:     fmt.Sprintf("Bulk invoice for %d delivered orders", len(orderIDs)),
			ShippingAddress: shippingAddress,
			CreatedAt:       s.now(),
		}
		items := make([]entity.InvoiceItem, len(lines))
		copy(items, lines)

		err := s.store.CreateWithClaim(ctx, inv, items, orderIDs)
		if err == nil {
			return inv, nil
		}
		if errors.Is(err, repo.ErrDuplicateNumber) {
			s.logger.Warn("invoice number collision; retrying",
				zap.String("number", inv.Number),
				zap.Int("attempt", attempt+1),
			)
			continue
		}
		if errors.Is(err, repo.ErrOrderClaimed) {
			return nil, errorbank.Conflict(
				"one or more orders were invoiced concurrently",
				errorbank.WithCode(errorbank.CodeOrderAlreadyInvoiced),
			)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("failed to create invoice", errorbank.WithCause(err))
	}

	return nil, errorbank.Internal(
		"invoice number generation exhausted",
		errorbank.WithCode(errorbank.CodeInvoiceNumberExhausted),
	)
}

// Get fetches an invoice with items.
func (s *Service) Get(ctx context.Context, id int64) (*entity.Invoice, error) {
	inv, err := s.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, errorbank.NotFound("invoice not found")
		}
		return nil, errorbank.Internal("failed to load invoice", errorbank.WithCause(err))
	}
	return inv, nil
}

// ListByCustomer returns a customer's invoices.
func (s *Service) ListByCustomer(ctx context.Context, customerID int64) ([]entity.Invoice, error) {
	invoices, err := s.store.ListByCustomer(ctx, customerID)
	if err != nil {
		return nil, errorbank.Internal("failed to list invoices", errorbank.WithCause(err))
	}
	return invoices, nil
}

// MarkPaid moves a generated invoice to paid.
func (s *Service) MarkPaid(ctx context.Context, id int64) error {
	return s.updateStatus(ctx, id, entity.InvoiceStatusGenerated, entity.InvoiceStatusPaid)
}

// Cancel moves a generated invoice to cancelled. Amount fields stay frozen;
// corrections happen through new invoices.
func (s *Service) Cancel(ctx context.Context, id int64) error {
	return s.updateStatus(ctx, id, entity.InvoiceStatusGenerated, entity.InvoiceStatusCancelled)
}

func (s *Service) updateStatus(ctx context.Context, id int64, from, to string) error {
	err := s.store.UpdateStatus(ctx, id, from, to)
	if errors.Is(err, repo.ErrStatusConflict) {
		return errorbank.Conflict(fmt.Sprintf("invoice is not %s", from))
	}
	if err != nil {
		return errorbank.Internal("failed to update invoice", errorbank.WithCause(err))
	}
	return nil
}

func dedupe(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id <= 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
