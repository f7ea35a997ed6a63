package payment

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/nazlim/orderdesk/internal/dto"
	"github.com/nazlim/orderdesk/internal/presentation/http/response"
	service "github.com/nazlim/orderdesk/internal/service/payment"
	"github.com/nazlim/orderdesk/pkg/errorbank"
)

var httpTracer = otel.Tracer("github.com/nazlim/orderdesk/transport/http/payment")

// Handler exposes payment ledger endpoints over HTTP.
type Handler struct {
	svc *service.Service
}

// NewHandler constructs a payment Handler.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// Register routes with the provided Echo instance. The customer-scoped reads
// live under /customers so the ledger endpoints read naturally.
func Register(e *echo.Echo, h *Handler) {
	e.POST("/payments", h.record)

	g := e.Group("/customers/:id")
	g.GET("/payments", h.listByCustomer)
	g.GET("/balance", h.balance)
	g.GET("/overdue-invoices", h.overdueInvoices)
}

func customerID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, errorbank.BadRequest("invalid customer id", errorbank.WithCause(err))
	}
	return id, nil
}

func (h *Handler) record(c echo.Context) error {
	b := response.New(c)

	var payload struct {
		CustomerID  int64      `json:"customer_id"`
		InvoiceID   *int64     `json:"invoice_id"`
		Amount      float64    `json:"amount"`
		Method      string     `json:"method"`
		PaymentDate *time.Time `json:"payment_date"`
		Description string     `json:"description"`
	}
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "payments.record", trace.WithAttributes(
		attribute.Int64("payment.customer_id", payload.CustomerID),
		attribute.Float64("payment.amount", payload.Amount),
	))
	defer span.End()

	p, err := h.svc.Record(ctx, service.RecordInput{
		CustomerID:  payload.CustomerID,
		InvoiceID:   payload.InvoiceID,
		Amount:      payload.Amount,
		Method:      payload.Method,
		PaymentDate: payload.PaymentDate,
		Description: payload.Description,
	})
	if err != nil {
		return b.WithError(err).Build()
	}

	return b.WithStatus(http.StatusCreated).WithData(dto.NewPaymentResponse(p)).Build()
}

func (h *Handler) listByCustomer(c echo.Context) error {
	b := response.New(c)

	id, err := customerID(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "payments.listByCustomer",
		trace.WithAttributes(attribute.Int64("payment.customer_id", id)))
	defer span.End()

	payments, err := h.svc.ListByCustomer(ctx, id)
	if err != nil {
		return b.WithError(err).Build()
	}

	out := make([]dto.PaymentResponse, 0, len(payments))
	for i := range payments {
		out = append(out, dto.NewPaymentResponse(&payments[i]))
	}
	return b.WithData(out).WithMeta("count", len(out)).Build()
}

func (h *Handler) balance(c echo.Context) error {
	b := response.New(c)

	id, err := customerID(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "payments.balance",
		trace.WithAttributes(attribute.Int64("payment.customer_id", id)))
	defer span.End()

	balance, err := h.svc.OutstandingBalance(ctx, id)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.BalanceResponse{CustomerID: id, Balance: balance}).Build()
}

func (h *Handler) overdueInvoices(c echo.Context) error {
	b := response.New(c)

	id, err := customerID(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	graceDays := 0
	if raw := c.QueryParam("grace_days"); raw != "" {
		graceDays, err = strconv.Atoi(raw)
		if err != nil || graceDays < 0 {
			return b.WithError(errorbank.BadRequest("invalid grace_days")).Build()
		}
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "payments.overdueInvoices",
		trace.WithAttributes(attribute.Int64("payment.customer_id", id)))
	defer span.End()

	invoices, err := h.svc.OverdueInvoices(ctx, id, graceDays)
	if err != nil {
		return b.WithError(err).Build()
	}

	out := make([]dto.InvoiceResponse, 0, len(invoices))
	for i := range invoices {
		out = append(out, dto.NewInvoiceResponse(&invoices[i]))
	}
	return b.WithData(out).WithMeta("count", len(out)).Build()
}
