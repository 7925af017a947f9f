package shipping

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// QuoteRequest asks a carrier for a delivery fee.
type QuoteRequest struct {
	ToAddress  string
	ToDistrict string
	WeightGram int
}

// ShipmentRequest asks the carrier to pick up an order. The caller passes a
// flattened view of the order so the adapter does not depend on the order
// aggregate.
type ShipmentRequest struct {
	OrderID       string
	RecipientName string
	Phone         string
	Address       string
	CODAmount     decimal.Decimal
	ItemNames     []string
}

// Shipment is the carrier handle for a created shipping order.
type Shipment struct {
	TrackingNumber   string
	Fee              decimal.Decimal
	ExpectedDelivery time.Time
}

// CallbackEvent is the decoded carrier status notification.
type CallbackEvent struct {
	TrackingNumber string
	StatusCode     string
	StatusName     string
	Timestamp      time.Time
}

// Transition is the internal consequence of a carrier status. The adapter
// owns the external-status vocabulary and maps it onto one of these rules;
// unrecognized codes map to TransitionUnknown and never move the order.
type Transition int

const (
	TransitionNone Transition = iota
	TransitionShipping
	TransitionDelivered
	TransitionCancelled
	TransitionFailed
	TransitionReturned
	TransitionUnknown
)

// Provider is the outbound port for a shipping carrier.
type Provider interface {
	Code() string
	Quote(ctx context.Context, req QuoteRequest) (decimal.Decimal, error)
	CreateShipment(ctx context.Context, req ShipmentRequest) (*Shipment, error)
	HandleCallback(body []byte) (*CallbackEvent, error)
	// MapStatus translates the carrier status code into a transition rule.
	MapStatus(statusCode string) Transition
	Cancel(ctx context.Context, trackingNumber string) error
}

// Registry maps a provider code onto its adapter, assembled at startup.
type Registry map[string]Provider

func (r Registry) Resolve(code string) (Provider, error) {
	p, ok := r[code]
	if !ok {
		return nil, ErrUnknownProvider
	}
	return p, nil
}
