package payment

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

	"github.com/nazlim/orderdesk/internal/billing"
	"github.com/nazlim/orderdesk/internal/config"
	"github.com/nazlim/orderdesk/internal/entity"
	repo "github.com/nazlim/orderdesk/internal/repository/payment"
	"github.com/nazlim/orderdesk/pkg/errorbank"
)

var serviceTracer = otel.Tracer("github.com/nazlim/orderdesk/service/payment")

// Store is the persistence surface the payment ledger needs.
type Store interface {
	Create(ctx context.Context, p *entity.Payment, txn *entity.AccountTransaction) error
	InvoiceCustomer(ctx context.Context, invoiceID int64) (int64, error)
	InvoicedTotal(ctx context.Context, customerID int64) (float64, error)
	CompletedPaymentsTotal(ctx context.Context, customerID int64) (float64, error)
	OverdueInvoices(ctx context.Context, customerID int64, cutoff time.Time) ([]entity.Invoice, error)
	ListByCustomer(ctx context.Context, customerID int64) ([]entity.Payment, error)
}

// Service maintains the customer payment ledger. Outstanding balances are
// derived fresh on every call rather than kept as a running column.
type Service struct {
	store   Store
	logger  *zap.Logger
	dueDays int
	now     func() time.Time
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
		store:   store,
		logger:  logger,
		dueDays: cfg.Billing.DueDays,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// RecordInput describes one incoming payment.
type RecordInput struct {
	CustomerID  int64      `json:"customer_id"`
	InvoiceID   *int64     `json:"invoice_id"`
	Amount      float64    `json:"amount"`
	Method      string     `json:"method"`
	PaymentDate *time.Time `json:"payment_date"`
	Description string     `json:"description"`
}

func validMethod(method string) bool {
	switch method {
	case entity.PaymentMethodCash, entity.PaymentMethodTransfer,
		entity.PaymentMethodCard, entity.PaymentMethodCheck:
		return true
	}
	return false
}

// Record books a payment and its credit transaction. When the payment
// references an invoice, the invoice must belong to the paying customer.
// Overpayment is accepted; the balance floors at zero instead.
func (s *Service) Record(ctx context.Context, in RecordInput) (*entity.Payment, error) {
	if in.CustomerID <= 0 {
		return nil, errorbank.BadRequest("customer is required")
	}
	if in.Amount <= 0 {
		return nil, errorbank.BadRequest(
			"payment amount must be positive",
			errorbank.WithCode(errorbank.CodeInvalidAmount),
		)
	}
	if !validMethod(in.Method) {
		return nil, errorbank.BadRequest(fmt.Sprintf("unknown payment method %q", in.Method))
	}

	ctx, span := serviceTracer.Start(ctx, "PaymentService.Record", trace.WithAttributes(
		attribute.Int64("payment.customer_id", in.CustomerID),
		attribute.Float64("payment.amount", in.Amount),
	))
	defer span.End()

	if in.InvoiceID != nil {
		owner, err := s.store.InvoiceCustomer(ctx, *in.InvoiceID)
		if errors.Is(err, repo.ErrInvoiceNotFound) {
			return nil, errorbank.NotFound("invoice not found")
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "repository error")
			return nil, errorbank.Internal("failed to resolve invoice", errorbank.WithCause(err))
		}
		if owner != in.CustomerID {
			return nil, errorbank.Unprocessable(
				"invoice belongs to a different customer",
				errorbank.WithCode(errorbank.CodeInvoiceCustomerMismatch),
				errorbank.WithDetail("invoice_id", *in.InvoiceID),
			)
		}
	}

	paidAt := s.now()
	if in.PaymentDate != nil {
		paidAt = in.PaymentDate.UTC()
	}

	payment := &entity.Payment{
		CustomerID:  in.CustomerID,
		InvoiceID:   in.InvoiceID,
		Amount:      billing.Round2(in.Amount),
		Method:      in.Method,
		Status:      entity.PaymentStatusCompleted,
		PaymentDate: paidAt,
		CreatedAt:   s.now(),
	}
	txn := &entity.AccountTransaction{
		CustomerID:  in.CustomerID,
		InvoiceID:   in.InvoiceID,
		Kind:        entity.TransactionCredit,
		Amount:      payment.Amount,
		OccurredAt:  paidAt,
		Description: in.Description,
	}

	if err := s.store.Create(ctx, payment, txn); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("failed to record payment", errorbank.WithCause(err))
	}

	s.logger.Info("payment recorded",
		zap.Int64("customer_id", in.CustomerID),
		zap.Float64("amount", payment.Amount),
		zap.String("method", in.Method),
	)
	return payment, nil
}

// OutstandingBalance computes invoiced-minus-paid for a customer, floored at
// zero so overpayments never surface as negative debt.
func (s *Service) OutstandingBalance(ctx context.Context, customerID int64) (float64, error) {
	ctx, span := serviceTracer.Start(ctx, "PaymentService.OutstandingBalance")
	defer span.End()

	invoiced, err := s.store.InvoicedTotal(ctx, customerID)
	if err != nil {
		span.RecordError(err)
		return 0, errorbank.Internal("failed to sum invoices", errorbank.WithCause(err))
	}
	paid, err := s.store.CompletedPaymentsTotal(ctx, customerID)
	if err != nil {
		span.RecordError(err)
		return 0, errorbank.Internal("failed to sum payments", errorbank.WithCause(err))
	}
	return billing.OutstandingBalance(invoiced, paid), nil
}

// OverdueInvoices lists a customer's unpaid invoices older than the grace
// window. A non-positive graceDays falls back to the configured default.
func (s *Service) OverdueInvoices(ctx context.Context, customerID int64, graceDays int) ([]entity.Invoice, error) {
	if graceDays <= 0 {
		graceDays = s.dueDays
	}
	cutoff := s.now().AddDate(0, 0, -graceDays)

	invoices, err := s.store.OverdueInvoices(ctx, customerID, cutoff)
	if err != nil {
		return nil, errorbank.Internal("failed to list overdue invoices", errorbank.WithCause(err))
	}
	return invoices, nil
}

// ListByCustomer returns a customer's payment history.
func (s *Service) ListByCustomer(ctx context.Context, customerID int64) ([]entity.Payment, error) {
	payments, err := s.store.ListByCustomer(ctx, customerID)
	if err != nil {
		return nil, errorbank.Internal("failed to list payments", errorbank.WithCause(err))
	}
	return payments, nil
}
