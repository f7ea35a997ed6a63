package order

import (
	"context"
	"encoding/json"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/nazlim/orderdesk/internal/config"
	"github.com/nazlim/orderdesk/internal/messaging"
	ordersvc "github.com/nazlim/orderdesk/internal/service/order"
	"github.com/nazlim/orderdesk/internal/worker"
)

var workerTracer = otel.Tracer("github.com/nazlim/orderdesk/worker/order")

// Module registers the order lifecycle consumer.
var Module = fx.Module("worker_order",
	fx.Provide(
		fx.Annotate(
			NewLifecycleHandler,
			fx.ResultTags(`group:"worker.handlers"`),
		),
	),
)

// NewLifecycleHandler consumes order lifecycle events. Delivered events carry
// the delivery-confirmation payload for the notification side; everything the
// mail needs is in the event, so no database round trip happens here.
func NewLifecycleHandler(logger *zap.Logger, cfg config.Config) worker.HandlerRegistration {
	handler := func(ctx context.Context, msg messaging.Message) error {
		ctx, span := workerTracer.Start(ctx, "worker.orders.process", trace.WithAttributes(
			attribute.String("messaging.topic", msg.Topic),
		))
		defer span.End()

		var event ordersvc.Event
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			logger.Error("failed to decode order event", zap.Error(err))

			span.RecordError(err)
			span.SetStatus(codes.Error, "decode error")
			return err
		}
		span.SetAttributes(attribute.String("order.event", event.Type))

		switch event.Type {
		case ordersvc.EventOrderCreated:
			logger.Info("order created",
				zap.Int64("id", event.OrderID),
				zap.String("number", event.Number),
				zap.Float64("total", event.TotalAmount),
			)
		case ordersvc.EventOrderDelivered:
			fields := []zap.Field{
				zap.Int64("id", event.OrderID),
				zap.String("number", event.Number),
				zap.Int64("customer_id", event.CustomerID),
				zap.String("recipient", event.Recipient),
				zap.Int("items", len(event.Items)),
			}
			if event.DeliveredAt != nil {
				fields = append(fields, zap.Time("delivered_at", *event.DeliveredAt))
			}
			logger.Info("delivery confirmation dispatched", fields...)
		default:
			logger.Warn("unknown order event type", zap.String("type", event.Type))
		}

		return nil
	}

	return worker.HandlerRegistration{
		Topic:   cfg.Messaging.Kafka.Topic,
		Handler: handler,
	}
}
