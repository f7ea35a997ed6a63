package order

import (
	"time"

	"github.com/nazlim/orderdesk/internal/entity"
)

// Event types published on the order lifecycle topic.
const (
	EventOrderCreated   = "order.created"
	EventOrderDelivered = "order.delivered"
)

// EventItem mirrors one order line inside an event payload.
type EventItem struct {
	ProductID   int64   `json:"product_id"`
	ProductName string  `json:"product_name"`
	Quantity    int     `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	LineTotal   float64 `json:"line_total"`
}

// Event is the envelope for order lifecycle messages. The delivered variant
// doubles as the payload contract for the delivery-confirmation mail
// collaborator: it carries everything the notification needs.
type Event struct {
	Type        string      `json:"type"`
	OrderID     int64       `json:"order_id"`
	Number      string      `json:"number"`
	CustomerID  int64       `json:"customer_id"`
	Status      string      `json:"status"`
	TotalAmount float64     `json:"total_amount"`
	Recipient   string      `json:"recipient,omitempty"`
	DeliveredAt *time.Time  `json:"delivered_at,omitempty"`
	Items       []EventItem `json:"items,omitempty"`
	OccurredAt  time.Time   `json:"occurred_at"`
}

// NewEvent builds an event snapshot from the order's current state.
func NewEvent(eventType string, order *entity.Order) Event {
	event := Event{
		Type:        eventType,
		OrderID:     order.ID,
		Number:      order.Number,
		CustomerID:  order.CustomerID,
		Status:      order.Status,
		TotalAmount: order.TotalAmount,
		OccurredAt:  time.Now().UTC(),
	}
	if eventType == EventOrderDelivered {
		event.Recipient = order.RecipientName
		event.DeliveredAt = order.DeliveredAt
		for _, item := range order.Items {
			event.Items = append(event.Items, EventItem{
				ProductID:   item.ProductID,
				ProductName: item.ProductName,
				Quantity:    item.Quantity,
				UnitPrice:   item.UnitPrice,
				LineTotal:   item.LineTotal,
			})
		}
	}
	return event
}
