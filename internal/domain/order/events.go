package order

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderPlacedEvent is emitted after the placement transaction commits. It is
// handled by the audit trail; failures to publish never affect the order.
type OrderPlacedEvent struct {
	OrderID     string
	UserID      string
	FinalAmount decimal.Decimal
	CouponCode  string
	OccurredAt  time.Time
}

func (OrderPlacedEvent) EventName() string { return "order.placed" }

func NewOrderPlacedEvent(o *Order) OrderPlacedEvent {
	return OrderPlacedEvent{
		OrderID:     o.ID,
		UserID:      o.UserID,
		FinalAmount: o.FinalAmount,
		CouponCode:  o.CouponCode,
		OccurredAt:  time.Now().UTC(),
	}
}

// PaymentReconciledEvent is emitted when a gateway callback settles the order
// one way or the other.
type PaymentReconciledEvent struct {
	OrderID       string
	Gateway       string
	TransactionID string
	Succeeded     bool
	OccurredAt    time.Time
}

func (PaymentReconciledEvent) EventName() string { return "order.payment_reconciled" }

func NewPaymentReconciledEvent(orderID, gateway, transactionID string, succeeded bool) PaymentReconciledEvent {
	return PaymentReconciledEvent{
		OrderID:       orderID,
		Gateway:       gateway,
		TransactionID: transactionID,
		Succeeded:     succeeded,
		OccurredAt:    time.Now().UTC(),
	}
}

// ShipmentUpdatedEvent is emitted when a carrier callback moves the order.
type ShipmentUpdatedEvent struct {
	OrderID       string
	CarrierStatus string
	OrderStatus   Status
	OccurredAt    time.Time
}

func (ShipmentUpdatedEvent) EventName() string { return "order.shipment_updated" }

func NewShipmentUpdatedEvent(o *Order, carrierStatus string) ShipmentUpdatedEvent {
	return ShipmentUpdatedEvent{
		OrderID:       o.ID,
		CarrierStatus: carrierStatus,
		OrderStatus:   o.Status,
		OccurredAt:    time.Now().UTC(),
	}
}
