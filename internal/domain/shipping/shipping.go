package shipping

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound        = errors.New("shipping: not found")
	ErrMethodInactive  = errors.New("shipping: method inactive")
	ErrUnknownProvider = errors.New("shipping: unknown provider")
)

// Method is a configured way of shipping orders, backed by a carrier adapter.
type Method struct {
	ID           string
	Name         string
	ProviderCode string
	Active       bool
}

// OrderShipment links an order to its shipping method and tracks the carrier
// lifecycle. ShippedDate and DeliveredDate are each settable at most once.
type OrderShipment struct {
	OrderID        string
	MethodID       string
	TrackingNumber string
	Fee            decimal.Decimal
	ShippedDate    *time.Time
	DeliveredDate  *time.Time
	UpdatedAt      time.Time
}

func (s *OrderShipment) SetTracking(trackingNumber string, fee decimal.Decimal) {
	if s.TrackingNumber != "" {
		return
	}
	s.TrackingNumber = trackingNumber
	s.Fee = fee
	s.touch()
}

func (s *OrderShipment) StampShipped(at time.Time) {
	if s.ShippedDate != nil {
		return
	}
	at = at.UTC()
	s.ShippedDate = &at
	s.touch()
}

func (s *OrderShipment) StampDelivered(at time.Time) {
	if s.DeliveredDate != nil {
		return
	}
	at = at.UTC()
	s.DeliveredDate = &at
	s.touch()
}

func (s *OrderShipment) Clone() *OrderShipment {
	if s == nil {
		return nil
	}
	clone := *s
	if s.ShippedDate != nil {
		shipped := *s.ShippedDate
		clone.ShippedDate = &shipped
	}
	if s.DeliveredDate != nil {
		delivered := *s.DeliveredDate
		clone.DeliveredDate = &delivered
	}
	return &clone
}

func (s *OrderShipment) touch() {
	s.UpdatedAt = time.Now().UTC()
}
