package dashboard

import (
	"strconv"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"

	"github.com/nazlim/orderdesk/internal/presentation/http/response"
	service "github.com/nazlim/orderdesk/internal/service/dashboard"
	"github.com/nazlim/orderdesk/pkg/errorbank"
)

var httpTracer = otel.Tracer("github.com/nazlim/orderdesk/transport/http/dashboard")

// Handler exposes the dashboard summary over HTTP.
type Handler struct {
	svc *service.Service
}

// NewHandler constructs a dashboard Handler.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// Register routes with the provided Echo instance.
func Register(e *echo.Echo, h *Handler) {
	e.GET("/dashboard", h.summary)
}

func (h *Handler) summary(c echo.Context) error {
	b := response.New(c)

	var userID *int64
	if raw := c.QueryParam("user_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			return b.WithError(errorbank.BadRequest("invalid user_id")).Build()
		}
		userID = &id
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "dashboard.summary")
	defer span.End()

	summary, err := h.svc.Summarize(ctx, userID)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(summary).Build()
}
