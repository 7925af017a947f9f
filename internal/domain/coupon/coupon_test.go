package coupon

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func validCoupon() *Coupon {
	now := time.Now().UTC()
	return &Coupon{
		Code:           "SAVE10",
		DiscountType:   DiscountPercentage,
		DiscountValue:  decimal.NewFromInt(10),
		MinOrderAmount: decimal.NewFromInt(150),
		ValidFrom:      now.Add(-time.Hour),
		ValidTo:        now.Add(time.Hour),
		UsageLimit:     5,
		Active:         true,
	}
}

func TestCouponValidate(t *testing.T) {
	now := time.Now().UTC()
	subtotal := decimal.NewFromInt(200)

	cases := []struct {
		name   string
		mutate func(*Coupon)
		want   error
	}{
		{"valid", func(*Coupon) {}, nil},
		{"inactive", func(c *Coupon) { c.Active = false }, ErrInactive},
		{"not started", func(c *Coupon) { c.ValidFrom = now.Add(time.Hour) }, ErrNotStarted},
		{"expired", func(c *Coupon) { c.ValidTo = now.Add(-time.Minute) }, ErrExpired},
		{"exhausted", func(c *Coupon) { c.CurrentUsage = 5 }, ErrExhausted},
		{"below minimum", func(c *Coupon) { c.MinOrderAmount = decimal.NewFromInt(300) }, ErrMinAmountNotMet},
		{"unlimited usage", func(c *Coupon) { c.UsageLimit = 0; c.CurrentUsage = 1000 }, nil},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := validCoupon()
			tc.mutate(c)
			err := c.Validate(now, subtotal)
			if tc.want == nil {
				require.NoError(t, err)
			} else {
				require.ErrorIs(t, err, tc.want)
			}
		})
	}
}

func TestCouponDiscount(t *testing.T) {
	c := validCoupon()
	require.True(t, decimal.NewFromInt(20).Equal(c.Discount(decimal.NewFromInt(200))))

	c.DiscountType = DiscountFixed
	c.DiscountValue = decimal.NewFromInt(50)
	require.True(t, decimal.NewFromInt(50).Equal(c.Discount(decimal.NewFromInt(200))))

	// A fixed discount larger than the subtotal is capped, never negative.
	require.True(t, decimal.NewFromInt(30).Equal(c.Discount(decimal.NewFromInt(30))))
}

func TestUserCouponUseAndRevert(t *testing.T) {
	grant := &UserCoupon{ID: "g1", UserID: "u1", CouponCode: "SAVE10"}

	require.NoError(t, grant.Use("o1"))
	require.True(t, grant.Used())
	require.Equal(t, "o1", grant.OrderID)
	require.ErrorIs(t, grant.Use("o2"), ErrAlreadyUsed)

	grant.Revert()
	require.False(t, grant.Used())
	require.Empty(t, grant.OrderID)
	require.NoError(t, grant.Use("o2"))
}
