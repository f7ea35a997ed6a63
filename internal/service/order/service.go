package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/nazlim/orderdesk/internal/billing"
	"github.com/nazlim/orderdesk/internal/cache"
	"github.com/nazlim/orderdesk/internal/config"
	"github.com/nazlim/orderdesk/internal/entity"
	"github.com/nazlim/orderdesk/internal/lifecycle"
	"github.com/nazlim/orderdesk/internal/messaging"
	repo "github.com/nazlim/orderdesk/internal/repository/order"
	"github.com/nazlim/orderdesk/pkg/errorbank"
)

var serviceTracer = otel.Tracer("github.com/nazlim/orderdesk/service/order")

// Store is the persistence surface the order service needs. The bun-backed
// repository satisfies it; tests substitute an in-memory implementation.
type Store interface {
	Create(ctx context.Context, order *entity.Order, items []entity.OrderItem) error
	Get(ctx context.Context, id int64) (*entity.Order, error)
	ListByStatus(ctx context.Context, status string) ([]entity.Order, error)
	Mutate(ctx context.Context, id int64, fn func(*entity.Order) error) (*entity.Order, error)
	ReplaceItems(ctx context.Context, id int64, build func(*entity.Order, []entity.OrderItem) ([]entity.OrderItem, error)) (*entity.Order, error)
}

// Service owns the order lifecycle: creation, status transitions, and
// production item edits.
type Service struct {
	store     Store
	cache     cache.Store
	cacheTTL  time.Duration
	logger    *zap.Logger
	publisher messaging.Client
	policy    lifecycle.Policy
	messaging messagingConfig
	now       func() time.Time
}

type messagingConfig struct {
	enabled bool
	topic   string
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Repository *repo.Repository
	Cache      cache.Store
	Config     config.Config
	Logger     *zap.Logger
	Publisher  messaging.Client
}

// NewService wires a new Service instance.
func NewService(p Params) *Service {
	return newService(p.Repository, p.Cache, p.Config, p.Logger, p.Publisher)
}

func newService(store Store, cacheStore cache.Store, cfg config.Config, logger *zap.Logger, publisher messaging.Client) *Service {
	return &Service{
		store:     store,
		cache:     cacheStore,
		cacheTTL:  cfg.Cache.DefaultTTL,
		logger:    logger,
		publisher: publisher,
		policy:    lifecycle.Policy(cfg.Lifecycle.Policy),
		messaging: messagingConfig{
			enabled: cfg.Messaging.Enabled,
			topic:   cfg.Messaging.Kafka.Topic,
		},
		now: func() time.Time { return time.Now().UTC() },
	}
}

// ItemInput is one requested product line.
type ItemInput struct {
	ProductID   int64   `json:"product_id"`
	ProductName string  `json:"product_name"`
	Quantity    int     `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
}

// CreateInput carries the fields needed to open a new order.
type CreateInput struct {
	CustomerID      int64
	UserID          int64
	Notes           string
	DeliveryAddress string
	Items           []ItemInput
}

// TransitionInput carries the optional extra fields of a transition; only the
// delivered transition consumes them.
type TransitionInput struct {
	Recipient string
	Signature string
}

// Create opens a new order in pending status with zero milestones.
func (s *Service) Create(ctx context.Context, input CreateInput) (*entity.Order, error) {
	if input.CustomerID <= 0 {
		return nil, errorbank.BadRequest("customer is required")
	}
	items, err := buildItems(input.Items)
	if err != nil {
		return nil, err
	}

	now := s.now()
	order := &entity.Order{
		Number:          billing.OrderNumber(now),
		CustomerID:      input.CustomerID,
		UserID:          input.UserID,
		Status:          string(lifecycle.StatusPending),
		Notes:           input.Notes,
		DeliveryAddress: input.DeliveryAddress,
		TotalAmount:     billing.SumItems(items),
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	ctx, span := serviceTracer.Start(ctx, "OrderService.Create", trace.WithAttributes(attribute.String("order.number", order.Number)))
	defer span.End()

	if err := s.store.Create(ctx, order, items); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("failed to create order", errorbank.WithCause(err))
	}

	if err := s.storeInCache(ctx, order); err != nil {
		s.logger.Warn("orders cache write failed", zap.Int64("id", order.ID), zap.Error(err))
	}

	s.publish(ctx, EventOrderCreated, order)
	return order, nil
}

// Get retrieves an order by id, consulting cache when available.
func (s *Service) Get(ctx context.Context, id int64) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Get", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	if order, err := s.getFromCache(ctx, id); err == nil {
		return order, nil
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		s.logger.Warn("orders cache read failed", zap.Int64("id", id), zap.Error(err))
	}

	order, err := s.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, errorbank.NotFound("order not found")
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("failed to load order", errorbank.WithCause(err))
	}

	if err := s.storeInCache(ctx, order); err != nil {
		s.logger.Warn("orders cache write failed", zap.Int64("id", id), zap.Error(err))
	}

	return order, nil
}

// List returns orders, optionally filtered by status.
func (s *Service) List(ctx context.Context, status string) ([]entity.Order, error) {
	if status != "" {
		if _, err := lifecycle.Parse(status); err != nil {
			return nil, errorbank.BadRequest("unknown status filter", errorbank.WithCode(errorbank.CodeInvalidStatus))
		}
	}
	orders, err := s.store.ListByStatus(ctx, status)
	if err != nil {
		return nil, errorbank.Internal("failed to list orders", errorbank.WithCause(err))
	}
	return orders, nil
}

// Transition moves the order to the target status under a row lock, stamping
// the matching milestone. The state machine itself emits nothing; the service
// publishes an event after commit so collaborators (mail, invoicing UI) can
// observe the delivered state.
func (s *Service) Transition(ctx context.Context, id int64, target string, extra TransitionInput) (*entity.Order, error) {
	targetStatus, err := lifecycle.Parse(target)
	if err != nil {
		return nil, errorbank.BadRequest(
			fmt.Sprintf("unknown target status %q", target),
			errorbank.WithCode(errorbank.CodeInvalidStatus),
		)
	}

	ctx, span := serviceTracer.Start(ctx, "OrderService.Transition", trace.WithAttributes(
		attribute.Int64("order.id", id),
		attribute.String("order.target_status", target),
	))
	defer span.End()

	order, err := s.store.Mutate(ctx, id, func(order *entity.Order) error {
		from := lifecycle.Status(order.Status)
		if err := lifecycle.CanTransition(s.policy, from, targetStatus); err != nil {
			return transitionError(err, from, targetStatus)
		}
		lifecycleExtra := lifecycle.Extra{Recipient: extra.Recipient, Signature: extra.Signature}
		if err := lifecycle.Apply(order, targetStatus, lifecycleExtra, s.now()); err != nil {
			return transitionError(err, from, targetStatus)
		}
		return nil
	})
	if err != nil {
		return nil, s.mapStoreError(err, span)
	}

	s.invalidateCache(ctx, id)

	if targetStatus == lifecycle.StatusDelivered {
		s.publish(ctx, EventOrderDelivered, order)
	}

	return order, nil
}

// UpdateItems replaces the order's item set wholesale and re-sums the total.
// Only legal while the order is still editable (pending or in production).
func (s *Service) UpdateItems(ctx context.Context, id int64, inputs []ItemInput) (*entity.Order, error) {
	items, err := buildItems(inputs)
	if err != nil {
		return nil, err
	}

	ctx, span := serviceTracer.Start(ctx, "OrderService.UpdateItems", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	order, err := s.store.ReplaceItems(ctx, id, func(order *entity.Order, _ []entity.OrderItem) ([]entity.OrderItem, error) {
		if !lifecycle.Status(order.Status).Editable() {
			return nil, errorbank.Conflict(
				"order items can no longer be edited",
				errorbank.WithCode(errorbank.CodeOrderLocked),
				errorbank.WithDetail("status", order.Status),
			)
		}
		order.TotalAmount = billing.SumItems(items)
		order.UpdatedAt = s.now()
		return items, nil
	})
	if err != nil {
		return nil, s.mapStoreError(err, span)
	}

	s.invalidateCache(ctx, id)
	return order, nil
}

func buildItems(inputs []ItemInput) ([]entity.OrderItem, error) {
	if len(inputs) == 0 {
		return nil, errorbank.BadRequest("at least one item is required")
	}
	items := make([]entity.OrderItem, 0, len(inputs))
	for _, in := range inputs {
		if in.Quantity <= 0 {
			return nil, errorbank.BadRequest("item quantity must be positive")
		}
		if in.UnitPrice < 0 {
			return nil, errorbank.BadRequest("item unit price must not be negative")
		}
		items = append(items, entity.OrderItem{
			ProductID:   in.ProductID,
			ProductName: in.ProductName,
			Quantity:    in.Quantity,
			UnitPrice:   in.UnitPrice,
		})
	}
	return items, nil
}

func transitionError(err error, from, to lifecycle.Status) error {
	switch {
	case errors.Is(err, lifecycle.ErrTerminalState):
		return errorbank.Conflict(
			"order is in a terminal state",
			errorbank.WithCode(errorbank.CodeOrderLocked),
			errorbank.WithDetail("status", string(from)),
		)
	case errors.Is(err, lifecycle.ErrIllegalTransition):
		return errorbank.Unprocessable(
			fmt.Sprintf("transition %s to %s is not allowed", from, to),
			errorbank.WithCode(errorbank.CodeInvalidStatus),
		)
	case errors.Is(err, lifecycle.ErrMissingRecipient):
		return errorbank.BadRequest(
			"delivery recipient is required",
			errorbank.WithCode(errorbank.CodeMissingRecipient),
		)
	case errors.Is(err, lifecycle.ErrInvalidStatus):
		return errorbank.BadRequest("unknown target status", errorbank.WithCode(errorbank.CodeInvalidStatus))
	default:
		return err
	}
}

func (s *Service) mapStoreError(err error, span trace.Span) error {
	switch {
	case errors.Is(err, repo.ErrNotFound):
		return errorbank.NotFound("order not found")
	case errors.Is(err, repo.ErrLockTimeout):
		return errorbank.Conflict(
			"order is locked by a concurrent operation",
			errorbank.WithCode(errorbank.CodeLockTimeout),
		)
	}
	var appErr *errorbank.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, "repository error")
	return errorbank.Internal("order operation failed", errorbank.WithCause(err))
}

func (s *Service) cacheKey(id int64) string {
	return fmt.Sprintf("orders:%d", id)
}

func (s *Service) getFromCache(ctx context.Context, id int64) (*entity.Order, error) {
	if s.cache == nil {
		return nil, cache.ErrCacheMiss
	}
	bytes, err := s.cache.Get(ctx, s.cacheKey(id))
	if err != nil {
		return nil, err
	}
	var order entity.Order
	if err := json.Unmarshal(bytes, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (s *Service) storeInCache(ctx context.Context, order *entity.Order) error {
	if s.cache == nil || order == nil {
		return nil
	}
	bytes, err := json.Marshal(order)
	if err != nil {
		return err
	}
	return s.cache.Set(ctx, s.cacheKey(order.ID), bytes, s.cacheTTL)
}

func (s *Service) invalidateCache(ctx context.Context, id int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, s.cacheKey(id)); err != nil {
		s.logger.Warn("orders cache invalidate failed", zap.Int64("id", id), zap.Error(err))
	}
}

func (s *Service) publish(ctx context.Context, eventType string, order *entity.Order) {
	if !s.messaging.enabled || s.publisher == nil {
		return
	}
	payload, err := json.Marshal(NewEvent(eventType, order))
	if err != nil {
		s.logger.Error("marshal order event", zap.String("type", eventType), zap.Error(err))
		return
	}
	if err := s.publisher.Publish(ctx, []byte(fmt.Sprintf("order-%d", order.ID)), payload); err != nil {
		s.logger.Error("publish order event", zap.String("type", eventType), zap.Error(err))
	}
}
