package delivery

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/nazlim/orderdesk/internal/dto"
	"github.com/nazlim/orderdesk/internal/presentation/http/response"
	service "github.com/nazlim/orderdesk/internal/service/delivery"
	"github.com/nazlim/orderdesk/pkg/errorbank"
)

var httpTracer = otel.Tracer("github.com/nazlim/orderdesk/transport/http/delivery")

// Handler exposes delivery slip endpoints over HTTP.
type Handler struct {
	svc *service.Service
}

// NewHandler constructs a delivery Handler.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// Register routes with the provided Echo instance.
func Register(e *echo.Echo, h *Handler) {
	g := e.Group("/delivery-slips")
	g.POST("", h.create)
	g.GET("", h.listByOrder)
	g.GET("/:id", h.getByID)
	g.POST("/:id/deliver", h.markDelivered)
	g.POST("/:id/return", h.markReturned)
	g.POST("/:id/invoice", h.attachInvoice)
}

func pathID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, errorbank.BadRequest("invalid id", errorbank.WithCause(err))
	}
	return id, nil
}

func (h *Handler) create(c echo.Context) error {
	b := response.New(c)

	var payload struct {
		OrderID      int64               `json:"order_id"`
		DriverName   string              `json:"driver_name"`
		VehiclePlate string              `json:"vehicle_plate"`
		Items        []service.ItemInput `json:"items"`
	}
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "deliverySlips.create",
		trace.WithAttributes(attribute.Int64("slip.order_id", payload.OrderID)))
	defer span.End()

	slip, err := h.svc.CreateSlip(ctx, service.CreateInput{
		OrderID:      payload.OrderID,
		DriverName:   payload.DriverName,
		VehiclePlate: payload.VehiclePlate,
		Items:        payload.Items,
	})
	if err != nil {
		return b.WithError(err).Build()
	}

	return b.WithStatus(http.StatusCreated).WithData(dto.NewDeliverySlipResponse(slip)).Build()
}

func (h *Handler) listByOrder(c echo.Context) error {
	b := response.New(c)

	orderID, err := strconv.ParseInt(c.QueryParam("order_id"), 10, 64)
	if err != nil || orderID <= 0 {
		return b.WithError(errorbank.BadRequest("order_id query parameter is required")).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "deliverySlips.listByOrder",
		trace.WithAttributes(attribute.Int64("slip.order_id", orderID)))
	defer span.End()

	slips, err := h.svc.ListByOrder(ctx, orderID)
	if err != nil {
		return b.WithError(err).Build()
	}

	out := make([]dto.DeliverySlipResponse, 0, len(slips))
	for i := range slips {
		out = append(out, dto.NewDeliverySlipResponse(&slips[i]))
	}
	return b.WithData(out).WithMeta("count", len(out)).Build()
}

func (h *Handler) getByID(c echo.Context) error {
	b := response.New(c)

	id, err := pathID(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "deliverySlips.getByID",
		trace.WithAttributes(attribute.Int64("slip.id", id)))
	defer span.End()

	slip, err := h.svc.Get(ctx, id)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.NewDeliverySlipResponse(slip)).Build()
}

func (h *Handler) markDelivered(c echo.Context) error {
	b := response.New(c)

	id, err := pathID(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	var payload struct {
		Recipient string `json:"recipient"`
		Signature string `json:"signature"`
	}
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "deliverySlips.markDelivered",
		trace.WithAttributes(attribute.Int64("slip.id", id)))
	defer span.End()

	slip, err := h.svc.MarkDelivered(ctx, id, payload.Recipient, payload.Signature)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.NewDeliverySlipResponse(slip)).Build()
}

func (h *Handler) markReturned(c echo.Context) error {
	b := response.New(c)

	id, err := pathID(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "deliverySlips.markReturned",
		trace.WithAttributes(attribute.Int64("slip.id", id)))
	defer span.End()

	slip, err := h.svc.MarkReturned(ctx, id)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.NewDeliverySlipResponse(slip)).Build()
}

func (h *Handler) attachInvoice(c echo.Context) error {
	b := response.New(c)

	id, err := pathID(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	var payload struct {
		InvoiceID int64 `json:"invoice_id"`
	}
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "deliverySlips.attachInvoice", trace.WithAttributes(
		attribute.Int64("slip.id", id),
		attribute.Int64("slip.invoice_id", payload.InvoiceID),
	))
	defer span.End()

	slip, err := h.svc.AttachInvoice(ctx, id, payload.InvoiceID)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.NewDeliverySlipResponse(slip)).Build()
}
