package orders

import (
	"github.com/tapcard/cardshop/internal/apperr"
)

type Status string

const (
	StatusPending      Status = "pending"
	StatusPaid         Status = "paid"
	StatusInProduction Status = "in_production"
	StatusShipped      Status = "shipped"
	StatusDelivered    Status = "delivered"
	StatusRejected     Status = "rejected"
)

// Event is an admin action that moves an order forward.
type Event string

const (
	EventConfirm         Event = "confirm"
	EventStartProduction Event = "start_production"
	EventShip            Event = "ship"
	EventConfirmDelivery Event = "confirm_delivery"
	EventReject          Event = "reject"
)

var validNext = map[Status]map[Status]bool{
	StatusPending:      {StatusPaid: true, StatusRejected: true},
	StatusPaid:         {StatusInProduction: true},
	StatusInProduction: {StatusShipped: true},
	StatusShipped:      {StatusDelivered: true},
	StatusDelivered:    {},
	StatusRejected:     {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

type transition struct {
	from, to Status
	// precondition is shown to the actor when the guard fails.
	precondition string
}

var transitions = map[Event]transition{
	EventConfirm:         {StatusPending, StatusPaid, "cannot confirm an order that is not pending"},
	EventStartProduction: {StatusPaid, StatusInProduction, "cannot start production of an order that is not paid"},
	EventShip:            {StatusInProduction, StatusShipped, "cannot ship an order that is not in production"},
	EventConfirmDelivery: {StatusShipped, StatusDelivered, "cannot confirm delivery of an order that is not shipped"},
	EventReject:          {StatusPending, StatusRejected, "cannot reject an order that is not pending"},
}

// Next returns the status an event leads to from the given status, or an
// InvalidTransition error naming the unmet precondition.
func Next(from Status, ev Event) (Status, error) {
	t, ok := transitions[ev]
	if !ok {
		return "", apperr.Validation("orders.Next", "unknown event %q", ev)
	}
	if from != t.from || !CanTransition(from, t.to) {
		return "", apperr.InvalidTransition("orders.Next", t.precondition)
	}
	return t.to, nil
}

// From returns the only status the event is legal from.
func (ev Event) From() Status { return transitions[ev].from }

func (s Status) Valid() bool {
	_, ok := validNext[s]
	return ok
}

func (s Status) Terminal() bool {
	return s.Valid() && len(validNext[s]) == 0
}

// rank orders the forward path; rejected sits outside it.
func (s Status) rank() int {
	switch s {
	case StatusPending:
		return 0
	case StatusPaid:
		return 1
	case StatusInProduction:
		return 2
	case StatusShipped:
		return 3
	case StatusDelivered:
		return 4
	default:
		return -1
	}
}

// Reached reports whether an order in status s has passed through target.
func (s Status) Reached(target Status) bool {
	if s == StatusRejected || target == StatusRejected {
		return s == target
	}
	return s.rank() >= target.rank()
}

// AllStatuses lists statuses in lifecycle order.
func AllStatuses() []Status {
	return []Status{StatusPending, StatusPaid, StatusInProduction, StatusShipped, StatusDelivered, StatusRejected}
}
