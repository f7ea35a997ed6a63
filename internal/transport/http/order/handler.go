package order

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/nazlim/orderdesk/internal/dto"
	"github.com/nazlim/orderdesk/internal/presentation/http/response"
	service "github.com/nazlim/orderdesk/internal/service/order"
	"github.com/nazlim/orderdesk/pkg/errorbank"
)

var httpTracer = otel.Tracer("github.com/nazlim/orderdesk/transport/http/order")

// Handler exposes order endpoints over HTTP.
type Handler struct {
	svc *service.Service
}

// NewHandler constructs an order Handler.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// Register routes with the provided Echo instance.
func Register(e *echo.Echo, h *Handler) {
	g := e.Group("/orders")
	g.POST("", h.create)
	g.GET("", h.list)
	g.GET("/:id", h.getByID)
	g.POST("/:id/transition", h.transition)
	g.PUT("/:id/items", h.updateItems)
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
		CustomerID      int64               `json:"customer_id"`
		UserID          int64               `json:"user_id"`
		Notes           string              `json:"notes"`
		DeliveryAddress string              `json:"delivery_address"`
		Items           []service.ItemInput `json:"items"`
	}
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.create",
		trace.WithAttributes(attribute.Int64("order.customer_id", payload.CustomerID)))
	defer span.End()

	order, err := h.svc.Create(ctx, service.CreateInput{
		CustomerID:      payload.CustomerID,
		UserID:          payload.UserID,
		Notes:           payload.Notes,
		DeliveryAddress: payload.DeliveryAddress,
		Items:           payload.Items,
	})
	if err != nil {
		return b.WithError(err).Build()
	}

	return b.WithStatus(http.StatusCreated).WithData(dto.NewOrderResponse(order)).Build()
}

func (h *Handler) list(c echo.Context) error {
	b := response.New(c)

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.list")
	defer span.End()

	orders, err := h.svc.List(ctx, c.QueryParam("status"))
	if err != nil {
		return b.WithError(err).Build()
	}

	out := make([]dto.OrderResponse, 0, len(orders))
	for i := range orders {
		out = append(out, dto.NewOrderResponse(&orders[i]))
	}
	return b.WithData(out).WithMeta("count", len(out)).Build()
}

func (h *Handler) getByID(c echo.Context) error {
	b := response.New(c)

	id, err := pathID(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.getByID",
		trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	order, err := h.svc.Get(ctx, id)
	if err != nil {
		return b.WithError(err).Build()
	}

	return b.WithData(dto.NewOrderResponse(order)).Build()
}

func (h *Handler) transition(c echo.Context) error {
	b := response.New(c)

	id, err := pathID(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	var payload struct {
		Status    string `json:"status"`
		Recipient string `json:"recipient"`
		Signature string `json:"signature"`
	}
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.transition", trace.WithAttributes(
		attribute.Int64("order.id", id),
		attribute.String("order.target_status", payload.Status),
	))
	defer span.End()

	order, err := h.svc.Transition(ctx, id, payload.Status, service.TransitionInput{
		Recipient: payload.Recipient,
		Signature: payload.Signature,
	})
	if err != nil {
		return b.WithError(err).Build()
	}

	return b.WithData(dto.NewOrderResponse(order)).Build()
}

func (h *Handler) updateItems(c echo.Context) error {
	b := response.New(c)

	id, err := pathID(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	var payload struct {
		Items []service.ItemInput `json:"items"`
	}
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.updateItems",
		trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	order, err := h.svc.UpdateItems(ctx, id, payload.Items)
	if err != nil {
		return b.WithError(err).Build()
	}

	return b.WithData(dto.NewOrderResponse(order)).Build()
}
