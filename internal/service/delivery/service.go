package delivery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/nazlim/orderdesk/internal/entity"
	"github.com/nazlim/orderdesk/internal/lifecycle"
	repo "github.com/nazlim/orderdesk/internal/repository/delivery"
	orderrepo "github.com/nazlim/orderdesk/internal/repository/order"
	"github.com/nazlim/orderdesk/pkg/errorbank"
)

var serviceTracer = otel.Tracer("github.com/nazlim/orderdesk/service/delivery")

// Store is the persistence surface for delivery slips.
type Store interface {
	Create(ctx context.Context, slip *entity.DeliverySlip, items []entity.DeliverySlipItem) error
	Get(ctx context.Context, id int64) (*entity.DeliverySlip, error)
	ListByOrder(ctx context.Context, orderID int64) ([]entity.DeliverySlip, error)
	Mutate(ctx context.Context, id int64, fn func(*entity.DeliverySlip) error) (*entity.DeliverySlip, error)
}

// OrderStore resolves the order a slip documents.
type OrderStore interface {
	Get(ctx context.Context, id int64) (*entity.Order, error)
}

// Service manages proof-of-delivery slips. Slips are operational documents,
// separate from billing invoices; an order in transit may accumulate several.
type Service struct {
	store  Store
	orders OrderStore
	logger *zap.Logger
	now    func() time.Time
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Repository      *repo.Repository
	OrderRepository *orderrepo.Repository
	Logger          *zap.Logger
}

// NewService wires a new Service instance.
func NewService(p Params) *Service {
	return newService(p.Repository, p.OrderRepository, p.Logger)
}

func newService(store Store, orders OrderStore, logger *zap.Logger) *Service {
	return &Service{
		store:  store,
		orders: orders,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// ItemInput describes one slip line.
type ItemInput struct {
	ProductID         int64  `json:"product_id"`
	ProductName       string `json:"product_name"`
	OrderedQuantity   int    `json:"ordered_quantity"`
	DeliveredQuantity int    `json:"delivered_quantity"`
}

// CreateInput describes a new slip.
type CreateInput struct {
	OrderID      int64       `json:"order_id"`
	DriverName   string      `json:"driver_name"`
	VehiclePlate string      `json:"vehicle_plate"`
	Items        []ItemInput `json:"items"`
}

// CreateSlip prepares a slip for an order that is on the road or already
// delivered. Earlier lifecycle stages have nothing to hand over yet.
func (s *Service) CreateSlip(ctx context.Context, in CreateInput) (*entity.DeliverySlip, error) {
	if in.OrderID <= 0 {
		return nil, errorbank.BadRequest("order is required")
	}
	if len(in.Items) == 0 {
		return nil, errorbank.BadRequest("at least one item is required")
	}

	ctx, span := serviceTracer.Start(ctx, "DeliveryService.CreateSlip", trace.WithAttributes(
		attribute.Int64("slip.order_id", in.OrderID),
	))
	defer span.End()

	order, err := s.orders.Get(ctx, in.OrderID)
	if errors.Is(err, orderrepo.ErrNotFound) {
		return nil, errorbank.NotFound("order not found")
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("failed to load order", errorbank.WithCause(err))
	}
	if order.Status != string(lifecycle.StatusShipping) && order.Status != string(lifecycle.StatusDelivered) {
		return nil, errorbank.Unprocessable(
			fmt.Sprintf("order %s is not out for delivery", order.Number),
			errorbank.WithCode(errorbank.CodeInvalidStatus),
			errorbank.WithDetail("status", order.Status),
		)
	}

	slip := &entity.DeliverySlip{
		OrderID:      in.OrderID,
		DriverName:   in.DriverName,
		VehiclePlate: in.VehiclePlate,
		Status:       entity.SlipStatusPrepared,
		CreatedAt:    s.now(),
	}
	items := make([]entity.DeliverySlipItem, 0, len(in.Items))
	for _, item := range in.Items {
		if item.OrderedQuantity <= 0 {
			return nil, errorbank.BadRequest("item quantity must be positive")
		}
		delivered := item.DeliveredQuantity
		if delivered <= 0 || delivered > item.OrderedQuantity {
			delivered = item.OrderedQuantity
		}
		items = append(items, entity.DeliverySlipItem{
			ProductID:         item.ProductID,
			ProductName:       item.ProductName,
			OrderedQuantity:   item.OrderedQuantity,
			DeliveredQuantity: delivered,
		})
	}

	if err := s.store.Create(ctx, slip, items); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("failed to create delivery slip", errorbank.WithCause(err))
	}
	return slip, nil
}

// MarkDelivered records the handover on a prepared slip. The recipient name
// is the proof and is mandatory; the signature is optional.
func (s *Service) MarkDelivered(ctx context.Context, id int64, recipient, signature string) (*entity.DeliverySlip, error) {
	if recipient == "" {
		return nil, errorbank.BadRequest(
			"recipient name is required",
			errorbank.WithCode(errorbank.CodeMissingRecipient),
		)
	}

	slip, err := s.store.Mutate(ctx, id, func(slip *entity.DeliverySlip) error {
		if slip.Status != entity.SlipStatusPrepared {
			return errorbank.Conflict(fmt.Sprintf("slip is already %s", slip.Status))
		}
		now := s.now()
		slip.Status = entity.SlipStatusDelivered
		slip.RecipientName = recipient
		slip.RecipientSignature = signature
		slip.DeliveredAt = &now
		return nil
	})
	if err != nil {
		return nil, s.mapStoreError(err)
	}
	return slip, nil
}

// MarkReturned records that the goods came back undelivered or were refused.
func (s *Service) MarkReturned(ctx context.Context, id int64) (*entity.DeliverySlip, error) {
	slip, err := s.store.Mutate(ctx, id, func(slip *entity.DeliverySlip) error {
		if slip.Status == entity.SlipStatusReturned {
			return errorbank.Conflict("slip is already returned")
		}
		slip.Status = entity.SlipStatusReturned
		return nil
	})
	if err != nil {
		return nil, s.mapStoreError(err)
	}
	return slip, nil
}

// AttachInvoice links a delivered slip to the invoice that bills it.
func (s *Service) AttachInvoice(ctx context.Context, id, invoiceID int64) (*entity.DeliverySlip, error) {
	if invoiceID <= 0 {
		return nil, errorbank.BadRequest("invoice is required")
	}
	slip, err := s.store.Mutate(ctx, id, func(slip *entity.DeliverySlip) error {
		if slip.Status != entity.SlipStatusDelivered {
			return errorbank.Conflict("only delivered slips can be invoiced")
		}
		slip.InvoiceID = &invoiceID
		return nil
	})
	if err != nil {
		return nil, s.mapStoreError(err)
	}
	return slip, nil
}

// Get fetches one slip.
func (s *Service) Get(ctx context.Context, id int64) (*entity.DeliverySlip, error) {
	slip, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, s.mapStoreError(err)
	}
	return slip, nil
}

// ListByOrder returns an order's slips.
func (s *Service) ListByOrder(ctx context.Context, orderID int64) ([]entity.DeliverySlip, error) {
	slips, err := s.store.ListByOrder(ctx, orderID)
	if err != nil {
		return nil, errorbank.Internal("failed to list delivery slips", errorbank.WithCause(err))
	}
	return slips, nil
}

func (s *Service) mapStoreError(err error) error {
	var appErr *errorbank.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	switch {
	case errors.Is(err, repo.ErrNotFound):
		return errorbank.NotFound("delivery slip not found")
	case errors.Is(err, repo.ErrLockTimeout):
		return errorbank.Conflict(
			"delivery slip is busy; try again",
			errorbank.WithCode(errorbank.CodeLockTimeout),
		)
	default:
		return errorbank.Internal("delivery slip storage failure", errorbank.WithCause(err))
	}
}
