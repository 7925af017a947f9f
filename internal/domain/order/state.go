package order

import "fmt"

var ErrInvalidStateTransition = fmt.Errorf("order: invalid state transition")

type Status string

const (
	StatusProcessing Status = "processing"
	StatusConfirmed  Status = "confirmed"
	StatusShipping   Status = "shipping"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
	StatusFailed     Status = "failed"
	StatusReturned   Status = "returned"
)

// transitions is the order lifecycle. Movement is monotonic: once an order
// leaves Processing it never regresses, and terminal statuses only admit the
// return path where the carrier supports it.
var transitions = map[Status][]Status{
	StatusProcessing: {StatusConfirmed, StatusCancelled, StatusFailed},
	StatusConfirmed:  {StatusShipping, StatusDelivered, StatusCancelled, StatusFailed, StatusReturned},
	StatusShipping:   {StatusDelivered, StatusCancelled, StatusFailed, StatusReturned},
	StatusDelivered:  {StatusReturned},
	StatusFailed:     {StatusReturned},
	StatusCancelled:  {},
	StatusReturned:   {},
}

// IsTerminal reports whether the status admits no forward movement other than
// a carrier-initiated return.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusDelivered, StatusCancelled, StatusFailed, StatusReturned:
		return true
	}
	return false
}

func (o *Order) transition(to Status) error {
	for _, next := range transitions[o.Status] {
		if next == to {
			o.Status = to
			o.touch()
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidStateTransition, o.Status, to)
}
