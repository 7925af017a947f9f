package coupon

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound        = errors.New("coupon: not found")
	ErrGrantNotFound   = errors.New("coupon: user grant not found")
	ErrNotOwned        = errors.New("coupon: not granted to this user")
	ErrAlreadyUsed     = errors.New("coupon: already used")
	ErrInactive        = errors.New("coupon: inactive")
	ErrNotStarted      = errors.New("coupon: not yet valid")
	ErrExpired         = errors.New("coupon: expired")
	ErrExhausted       = errors.New("coupon: usage limit reached")
	ErrMinAmountNotMet = errors.New("coupon: order amount below minimum")
)

type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

// Coupon defines the discount rule. CurrentUsage counts redemptions across
// all users and is bounded by UsageLimit when set.
type Coupon struct {
	Code           string
	DiscountType   DiscountType
	DiscountValue  decimal.Decimal
	MinOrderAmount decimal.Decimal
	ValidFrom      time.Time
	ValidTo        time.Time
	UsageLimit     int // zero means unlimited
	CurrentUsage   int
	Active         bool
	UpdatedAt      time.Time
}

// Validate checks every eligibility rule against the post-product-discount
// subtotal. Ownership is checked on the UserCoupon side.
func (c *Coupon) Validate(now time.Time, subtotal decimal.Decimal) error {
	if !c.Active {
		return ErrInactive
	}
	if now.Before(c.ValidFrom) {
		return ErrNotStarted
	}
	if !c.ValidTo.IsZero() && now.After(c.ValidTo) {
		return ErrExpired
	}
	if c.UsageLimit > 0 && c.CurrentUsage >= c.UsageLimit {
		return ErrExhausted
	}
	if subtotal.LessThan(c.MinOrderAmount) {
		return ErrMinAmountNotMet
	}
	return nil
}

// Discount computes the coupon discount for the given subtotal, capped at the
// subtotal so the order never goes negative. A single coupon per order is
// modeled; stacking is out of scope.
func (c *Coupon) Discount(subtotal decimal.Decimal) decimal.Decimal {
	var d decimal.Decimal
	switch c.DiscountType {
	case DiscountPercentage:
		d = subtotal.Mul(c.DiscountValue).Div(decimal.NewFromInt(100))
	case DiscountFixed:
		d = c.DiscountValue
	default:
		return decimal.Zero
	}
	if d.GreaterThan(subtotal) {
		return subtotal
	}
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

func (c *Coupon) IncrementUsage() {
	c.CurrentUsage++
	c.UpdatedAt = time.Now().UTC()
}

func (c *Coupon) DecrementUsage() {
	if c.CurrentUsage > 0 {
		c.CurrentUsage--
	}
	c.UpdatedAt = time.Now().UTC()
}

func (c *Coupon) Clone() *Coupon {
	if c == nil {
		return nil
	}
	clone := *c
	return &clone
}

// UserCoupon is a per-user grant. It becomes used at most once; reversal
// clears the usage link again.
type UserCoupon struct {
	ID         string
	UserID     string
	CouponCode string
	OrderID    string
	UsedDate   *time.Time
	UpdatedAt  time.Time
}

func (uc *UserCoupon) Used() bool { return uc.UsedDate != nil }

func (uc *UserCoupon) Use(orderID string) error {
	if uc.Used() {
		return ErrAlreadyUsed
	}
	now := time.Now().UTC()
	uc.OrderID = orderID
	uc.UsedDate = &now
	uc.UpdatedAt = now
	return nil
}

// Revert clears the usage link. Calling it on an unused grant is a no-op so
// compensation stays idempotent.
func (uc *UserCoupon) Revert() {
	uc.OrderID = ""
	uc.UsedDate = nil
	uc.UpdatedAt = time.Now().UTC()
}

func (uc *UserCoupon) Clone() *UserCoupon {
	if uc == nil {
		return nil
	}
	clone := *uc
	if uc.UsedDate != nil {
		usedAt := *uc.UsedDate
		clone.UsedDate = &usedAt
	}
	return &clone
}
