package coupon

import "context"

type Repository interface {
	GetCoupon(ctx context.Context, code string) (*Coupon, error)
	UpdateCoupon(ctx context.Context, coupon *Coupon) error
	GetUserCoupon(ctx context.Context, userID, code string) (*UserCoupon, error)
	// FindUserCouponByOrder locates the grant linked to an order, if any.
	// Compensation uses it to revert usage without knowing the coupon code.
	FindUserCouponByOrder(ctx context.Context, orderID string) (*UserCoupon, error)
	UpdateUserCoupon(ctx context.Context, grant *UserCoupon) error
}
