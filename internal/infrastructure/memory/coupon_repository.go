package memory

import (
	"context"
	"fmt"
	"sync"

	domain "github.com/namprobe/NekoViBE-sub001/internal/domain/coupon"
)

type CouponRepository struct {
	mu      sync.RWMutex
	coupons map[string]*domain.Coupon     // keyed by code
	grants  map[string]*domain.UserCoupon // keyed by grant id
}

func NewCouponRepository() *CouponRepository {
	return &CouponRepository{
		coupons: make(map[string]*domain.Coupon),
		grants:  make(map[string]*domain.UserCoupon),
	}
}

// Seed loads coupon definitions and per-user grants outside any transaction.
func (r *CouponRepository) Seed(coupons []*domain.Coupon, grants []*domain.UserCoupon) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range coupons {
		r.coupons[c.Code] = c.Clone()
	}
	for _, g := range grants {
		r.grants[g.ID] = g.Clone()
	}
}

func (r *CouponRepository) GetCoupon(ctx context.Context, code string) (*domain.Coupon, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.coupons[code]
	if !ok {
		return nil, domain.ErrNotFound
	}

	return c.Clone(), nil
}

func (r *CouponRepository) UpdateCoupon(ctx context.Context, coupon *domain.Coupon) error {
	_ = ctx
	if coupon == nil || coupon.Code == "" {
		return fmt.Errorf("coupon repository: code is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.coupons[coupon.Code]; !exists {
		return domain.ErrNotFound
	}

	r.coupons[coupon.Code] = coupon.Clone()
	return nil
}

func (r *CouponRepository) GetUserCoupon(ctx context.Context, userID, code string) (*domain.UserCoupon, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, g := range r.grants {
		if g.UserID == userID && g.CouponCode == code {
			return g.Clone(), nil
		}
	}
	return nil, domain.ErrGrantNotFound
}

func (r *CouponRepository) FindUserCouponByOrder(ctx context.Context, orderID string) (*domain.UserCoupon, error) {
	_ = ctx
	if orderID == "" {
		return nil, domain.ErrGrantNotFound
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, g := range r.grants {
		if g.OrderID == orderID {
			return g.Clone(), nil
		}
	}
	return nil, domain.ErrGrantNotFound
}

func (r *CouponRepository) UpdateUserCoupon(ctx context.Context, grant *domain.UserCoupon) error {
	_ = ctx
	if grant == nil || grant.ID == "" {
		return fmt.Errorf("coupon repository: grant id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.grants[grant.ID]; !exists {
		return domain.ErrGrantNotFound
	}

	r.grants[grant.ID] = grant.Clone()
	return nil
}

type couponSnapshot struct {
	coupons map[string]*domain.Coupon
	grants  map[string]*domain.UserCoupon
}

func (r *CouponRepository) snapshot() couponSnapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snap := couponSnapshot{
		coupons: make(map[string]*domain.Coupon, len(r.coupons)),
		grants:  make(map[string]*domain.UserCoupon, len(r.grants)),
	}
	for code, c := range r.coupons {
		snap.coupons[code] = c.Clone()
	}
	for id, g := range r.grants {
		snap.grants[id] = g.Clone()
	}
	return snap
}

func (r *CouponRepository) restore(snap couponSnapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.coupons = snap.coupons
	r.grants = snap.grants
}
