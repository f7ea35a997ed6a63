package invoice

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/nazlim/orderdesk/internal/dto"
	"github.com/nazlim/orderdesk/internal/presentation/http/response"
	service "github.com/nazlim/orderdesk/internal/service/invoice"
	"github.com/nazlim/orderdesk/pkg/errorbank"
)

var httpTracer = otel.Tracer("github.com/nazlim/orderdesk/transport/http/invoice")

// Handler exposes invoicing endpoints over HTTP.
type Handler struct {
	svc *service.Service
}

// NewHandler constructs an invoice Handler.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// Register routes with the provided Echo instance.
func Register(e *echo.Echo, h *Handler) {
	g := e.Group("/invoices")
	g.GET("/groups", h.groups)
	g.POST("/bulk", h.createBulk)
	g.GET("", h.list)
	g.GET("/:id", h.getByID)
	g.POST("/:id/pay", h.markPaid)
	g.POST("/:id/cancel", h.cancel)
}

func pathID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, errorbank.BadRequest("invalid id", errorbank.WithCause(err))
	}
	return id, nil
}

func (h *Handler) groups(c echo.Context) error {
	b := response.New(c)

	ctx, span := httpTracer.Start(c.Request().Context(), "invoices.groups")
	defer span.End()

	groups, err := h.svc.GroupDeliveredOrders(ctx)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(groups).WithMeta("count", len(groups)).Build()
}

func (h *Handler) createBulk(c echo.Context) error {
	b := response.New(c)

	var payload struct {
		CustomerID      int64   `json:"customer_id"`
		OrderIDs        []int64 `json:"order_ids"`
		ShippingAddress string  `json:"shipping_address"`
	}
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "invoices.createBulk", trace.WithAttributes(
		attribute.Int64("invoice.customer_id", payload.CustomerID),
		attribute.Int("invoice.orders", len(payload.OrderIDs)),
	))
	defer span.End()

	inv, err := h.svc.CreateBulkInvoice(ctx, payload.CustomerID, payload.OrderIDs, payload.ShippingAddress)
	if err != nil {
		return b.WithError(err).Build()
	}

	return b.WithStatus(http.StatusCreated).WithData(dto.NewInvoiceResponse(inv)).Build()
}

func (h *Handler) list(c echo.Context) error {
	b := response.New(c)

	customerID, err := strconv.ParseInt(c.QueryParam("customer_id"), 10, 64)
	if err != nil || customerID <= 0 {
		return b.WithError(errorbank.BadRequest("customer_id query parameter is required")).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "invoices.list",
		trace.WithAttributes(attribute.Int64("invoice.customer_id", customerID)))
	defer span.End()

	invoices, err := h.svc.ListByCustomer(ctx, customerID)
	if err != nil {
		return b.WithError(err).Build()
	}

	out := make([]dto.InvoiceResponse, 0, len(invoices))
	for i := range invoices {
		out = append(out, dto.NewInvoiceResponse(&invoices[i]))
	}
	return b.WithData(out).WithMeta("count", len(out)).Build()
}

func (h *Handler) getByID(c echo.Context) error {
	b := response.New(c)

	id, err := pathID(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "invoices.getByID",
		trace.WithAttributes(attribute.Int64("invoice.id", id)))
	defer span.End()

	inv, err := h.svc.Get(ctx, id)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.NewInvoiceResponse(inv)).Build()
}

func (h *Handler) markPaid(c echo.Context) error {
	b := response.New(c)

	id, err := pathID(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "invoices.markPaid",
		trace.WithAttributes(attribute.Int64("invoice.id", id)))
	defer span.End()

	if err := h.svc.MarkPaid(ctx, id); err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(map[string]any{"id": id, "status": "paid"}).Build()
}

func (h *Handler) cancel(c echo.Context) error {
	b := response.New(c)

	id, err := pathID(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "invoices.cancel",
		trace.WithAttributes(attribute.Int64("invoice.id", id)))
	defer span.End()

	if err := h.svc.Cancel(ctx, id); err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(map[string]any{"id": id, "status": "cancelled"}).Build()
}
