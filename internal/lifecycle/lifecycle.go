// Package lifecycle declares the order state machine: the status enum, the
// transition adjacency table, and the milestone timestamp each transition
// stamps. It has no persistence dependencies so transition rules can be tested
// in isolation.
package lifecycle

import (
	"errors"
	"time"

	"github.com/nazlim/orderdesk/internal/entity"
)

// Status is an order lifecycle phase.
type Status string

const (
	StatusPending         Status = "pending"
	StatusProduction      Status = "production"
	StatusProductionReady Status = "production_ready"
	StatusShipping        Status = "shipping"
	StatusDelivered       Status = "delivered"
	StatusCancelled       Status = "cancelled"
)

// Policy selects how strictly transitions are validated. Lenient mirrors the
// historical behavior where any non-terminal order could jump to any status;
// strict consults the adjacency table.
type Policy string

const (
	PolicyStrict  Policy = "strict"
	PolicyLenient Policy = "lenient"
)

var (
	// ErrInvalidStatus marks an unrecognized status string.
	ErrInvalidStatus = errors.New("invalid order status")
	// ErrIllegalTransition marks a transition the adjacency table forbids.
	ErrIllegalTransition = errors.New("illegal status transition")
	// ErrTerminalState marks a transition attempted out of delivered/cancelled.
	ErrTerminalState = errors.New("order is in a terminal state")
	// ErrMissingRecipient marks a delivered transition without a recipient.
	ErrMissingRecipient = errors.New("delivery recipient is required")
)

// adjacency lists the legal next statuses per status. Cancellation is legal
// from every non-terminal state.
var adjacency = map[Status][]Status{
	StatusPending:         {StatusProduction, StatusCancelled},
	StatusProduction:      {StatusProductionReady, StatusCancelled},
	StatusProductionReady: {StatusShipping, StatusCancelled},
	StatusShipping:        {StatusDelivered, StatusCancelled},
	StatusDelivered:       {},
	StatusCancelled:       {},
}

// Parse validates a status string.
func Parse(s string) (Status, error) {
	status := Status(s)
	if _, ok := adjacency[status]; !ok {
		return "", ErrInvalidStatus
	}
	return status, nil
}

// Terminal reports whether no further transition may leave the status.
func (s Status) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// Editable reports whether the order's item set may still be replaced.
func (s Status) Editable() bool {
	return s == StatusPending || s == StatusProduction
}

// Active reports whether the order counts toward the active-orders dashboard
// figure.
func (s Status) Active() bool {
	switch s {
	case StatusPending, StatusProduction, StatusProductionReady, StatusShipping:
		return true
	}
	return false
}

// ActiveStatuses returns the statuses counted as in-flight, in phase order.
func ActiveStatuses() []Status {
	return []Status{StatusPending, StatusProduction, StatusProductionReady, StatusShipping}
}

// CanTransition validates from→to under the given policy. Terminal states
// reject every transition regardless of policy.
func CanTransition(policy Policy, from, to Status) error {
	if _, err := Parse(string(to)); err != nil {
		return err
	}
	if from.Terminal() {
		return ErrTerminalState
	}
	if policy == PolicyLenient {
		return nil
	}
	for _, next := range adjacency[from] {
		if next == to {
			return nil
		}
	}
	return ErrIllegalTransition
}

// Extra carries the optional fields a transition may require. Only the
// delivered transition consumes them.
type Extra struct {
	Recipient string
	Signature string
}

// Apply mutates the order for a validated transition: it sets the status, the
// matching milestone timestamp, and the delivery fields. Earlier milestones
// are never cleared, even on cancellation, so history is preserved. Exactly
// one milestone is stamped per transition.
func Apply(order *entity.Order, target Status, extra Extra, at time.Time) error {
	if target == StatusDelivered && extra.Recipient == "" {
		return ErrMissingRecipient
	}

	switch target {
	case StatusProduction:
		order.ProductionStartedAt = &at
	case StatusProductionReady:
		order.ProductionCompletedAt = &at
	case StatusShipping:
		order.ShippedAt = &at
	case StatusDelivered:
		order.DeliveredAt = &at
		order.RecipientName = extra.Recipient
		if extra.Signature != "" {
			order.RecipientSignature = extra.Signature
		}
	case StatusPending, StatusCancelled:
		// no milestone
	default:
		return ErrInvalidStatus
	}

	order.Status = string(target)
	order.UpdatedAt = at
	return nil
}
