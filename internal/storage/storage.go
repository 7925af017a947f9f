package storage

import (
	"context"

	"github.com/namprobe/NekoViBE-sub001/internal/domain/coupon"
	"github.com/namprobe/NekoViBE-sub001/internal/domain/order"
	"github.com/namprobe/NekoViBE-sub001/internal/domain/payment"
	"github.com/namprobe/NekoViBE-sub001/internal/domain/product"
	"github.com/namprobe/NekoViBE-sub001/internal/domain/shipping"
	"github.com/namprobe/NekoViBE-sub001/internal/domain/user"
)

// Tx bundles the transaction-scoped repositories. Every mutation inside a
// unit of work goes through these handles so rollback is total.
type Tx struct {
	Orders    order.Repository
	Payments  payment.Repository
	Products  product.Repository
	Coupons   coupon.Repository
	Shipments shipping.Repository
	Users     user.Repository
}

// UnitOfWork runs fn inside one atomic transaction: commit when fn returns
// nil, full rollback on error or panic. A transaction always runs to commit
// or rollback; cancellation is honored between transactions, never as a
// partial flush inside one.
type UnitOfWork interface {
	Do(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}
