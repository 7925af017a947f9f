package memory

import (
	"context"
	"sync"

	"github.com/namprobe/NekoViBE-sub001/internal/storage"
)

// UnitOfWork serializes transactions over the in-memory repositories and
// rolls back by restoring a pre-transaction snapshot. It trades throughput
// for the same all-or-nothing semantics the SQL unit of work gives.
type UnitOfWork struct {
	mu sync.Mutex

	orders    *OrderRepository
	payments  *PaymentRepository
	products  *ProductRepository
	coupons   *CouponRepository
	shipments *ShippingRepository
	users     *UserRepository
}

func NewUnitOfWork(
	orders *OrderRepository,
	payments *PaymentRepository,
	products *ProductRepository,
	coupons *CouponRepository,
	shipments *ShippingRepository,
	users *UserRepository,
) *UnitOfWork {
	return &UnitOfWork{
		orders:    orders,
		payments:  payments,
		products:  products,
		coupons:   coupons,
		shipments: shipments,
		users:     users,
	}
}

func (u *UnitOfWork) Do(ctx context.Context, fn func(ctx context.Context, tx storage.Tx) error) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	u.mu.Lock()
	defer u.mu.Unlock()

	orderSnap := u.orders.snapshot()
	paymentSnap := u.payments.snapshot()
	productSnap := u.products.snapshot()
	couponSnap := u.coupons.snapshot()
	shipmentSnap := u.shipments.snapshot()

	rollback := func() {
		u.orders.restore(orderSnap)
		u.payments.restore(paymentSnap)
		u.products.restore(productSnap)
		u.coupons.restore(couponSnap)
		u.shipments.restore(shipmentSnap)
	}

	defer func() {
		if r := recover(); r != nil {
			rollback()
			panic(r)
		}
	}()

	tx := storage.Tx{
		Orders:    u.orders,
		Payments:  u.payments,
		Products:  u.products,
		Coupons:   u.coupons,
		Shipments: u.shipments,
		Users:     u.users,
	}

	if err := fn(ctx, tx); err != nil {
		rollback()
		return err
	}
	return nil
}
