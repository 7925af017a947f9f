package order

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/namprobe/NekoViBE-sub001/internal/domain/payment"
)

var (
	ErrNotFound        = errors.New("order: not found")
	ErrConflict        = errors.New("order: already exists")
	ErrNoItems         = errors.New("order: at least one item is required")
	ErrInvalidQuantity = errors.New("order: quantity must be greater than zero")
	ErrMissingPayment  = errors.New("order: processing order has no payment record")
)

// Order is the aggregate root of the fulfillment saga. It is created in
// StatusProcessing by checkout and only ever mutated by callback handlers.
// Orders are never deleted; Notes is an append-only audit trail.
type Order struct {
	ID     string
	UserID string // empty for guest checkout

	// Contact snapshot taken at checkout time. Populated for guest orders,
	// mirrored from the account for registered customers.
	RecipientName    string
	RecipientPhone   string
	RecipientEmail   string
	RecipientAddress string

	Items []Item

	TotalAmount    decimal.Decimal
	DiscountAmount decimal.Decimal
	TaxAmount      decimal.Decimal
	FinalAmount    decimal.Decimal

	Status        Status
	PaymentStatus payment.Status

	CouponCode   string // empty when no coupon was applied
	UserCouponID string

	ShippingMethodID string

	Notes     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Item snapshots product name, unit price and per-item discount at order
// time; it is never re-derived from the catalog afterwards.
type Item struct {
	ProductID   string
	ProductName string
	Quantity    int
	UnitPrice   decimal.Decimal
	Discount    decimal.Decimal
}

func New(id, userID string, items []Item) (*Order, error) {
	if len(items) == 0 {
		return nil, ErrNoItems
	}
	for _, it := range items {
		if it.Quantity <= 0 {
			return nil, ErrInvalidQuantity
		}
	}

	now := time.Now().UTC()
	return &Order{
		ID:            id,
		UserID:        userID,
		Items:         items,
		Status:        StatusProcessing,
		PaymentStatus: payment.StatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// SetAmounts fixes the monetary snapshot. FinalAmount is clamped at zero so a
// discount can never push the order total negative.
func (o *Order) SetAmounts(total, discount, tax decimal.Decimal) {
	o.TotalAmount = total
	o.DiscountAmount = discount
	o.TaxAmount = tax
	final := total.Sub(discount)
	if final.IsNegative() {
		final = decimal.Zero
	}
	o.FinalAmount = final
	o.touch()
}

func (o *Order) Confirm() error {
	if err := o.transition(StatusConfirmed); err != nil {
		return err
	}
	o.PaymentStatus = payment.StatusCompleted
	return nil
}

func (o *Order) MarkShipping() error {
	return o.transition(StatusShipping)
}

func (o *Order) MarkDelivered() error {
	return o.transition(StatusDelivered)
}

func (o *Order) Cancel() error {
	return o.transition(StatusCancelled)
}

func (o *Order) MarkReturned() error {
	return o.transition(StatusReturned)
}

// MarkFailed terminates the order and its payment together. It belongs to
// payment compensation, where the payment itself failed. Safe to call again
// on an already failed order.
func (o *Order) MarkFailed() error {
	if o.Status == StatusFailed {
		return nil
	}
	if err := o.transition(StatusFailed); err != nil {
		return err
	}
	o.PaymentStatus = payment.StatusFailed
	return nil
}

// MarkDeliveryFailed terminates the order after the carrier gave up on
// delivery. The payment state is untouched: the customer has already paid,
// and any refund is an ops decision, not a carrier callback's.
func (o *Order) MarkDeliveryFailed() error {
	return o.transition(StatusFailed)
}

// AppendNote adds a timestamped line to the audit trail. A note whose text is
// already present is skipped so repeated carrier callbacks do not pile up
// duplicate status lines.
func (o *Order) AppendNote(note string) {
	if note == "" || strings.Contains(o.Notes, note) {
		return
	}
	line := time.Now().UTC().Format(time.RFC3339) + " " + note
	if o.Notes == "" {
		o.Notes = line
	} else {
		o.Notes += "\n" + line
	}
	o.touch()
}

func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	clone := *o
	clone.Items = append([]Item(nil), o.Items...)
	return &clone
}

func (o *Order) touch() {
	o.UpdatedAt = time.Now().UTC()
}
