package reconcile

import (
	"context"
	"errors"
	"fmt"

	"github.com/namprobe/NekoViBE-sub001/internal/domain/coupon"
	"github.com/namprobe/NekoViBE-sub001/internal/domain/order"
	"github.com/namprobe/NekoViBE-sub001/internal/domain/payment"
	"github.com/namprobe/NekoViBE-sub001/internal/domain/shipping"
	"github.com/namprobe/NekoViBE-sub001/internal/observability"
	"github.com/namprobe/NekoViBE-sub001/internal/observability/logctx"
	"github.com/namprobe/NekoViBE-sub001/internal/storage"
)

// Compensator reverts the side effects of a placed order when its payment
// ultimately fails: stock goes back to the ledger, coupon usage is cleared,
// and any shipment already opened with the carrier is cancelled.
type Compensator struct {
	providers shipping.Registry
	log       observability.Logger
}

func NewCompensator(providers shipping.Registry, tel observability.Observability) *Compensator {
	baseLog := observability.NopLogger()
	if tel != nil {
		baseLog = tel.Logger()
	}
	return &Compensator{
		providers: providers,
		log:       baseLog.With(observability.F("component", "compensator")),
	}
}

// RevertStockAndCoupon runs inside the caller's transaction so the reversal
// commits or rolls back together with the order-status transition that
// triggered it.
func (c *Compensator) RevertStockAndCoupon(ctx context.Context, tx storage.Tx, o *order.Order) error {
	for _, it := range o.Items {
		p, err := tx.Products.Get(ctx, it.ProductID)
		if err != nil {
			return fmt.Errorf("compensate: load product %s: %w", it.ProductID, err)
		}
		if err := p.RestoreStock(it.Quantity); err != nil {
			return fmt.Errorf("compensate: restore stock %s: %w", it.ProductID, err)
		}
		if err := tx.Products.Update(ctx, p); err != nil {
			return fmt.Errorf("compensate: update product %s: %w", it.ProductID, err)
		}
	}

	grant, err := tx.Coupons.FindUserCouponByOrder(ctx, o.ID)
	if errors.Is(err, coupon.ErrGrantNotFound) {
		return nil // no coupon was applied
	}
	if err != nil {
		return fmt.Errorf("compensate: find coupon grant: %w", err)
	}

	grant.Revert()
	if err := tx.Coupons.UpdateUserCoupon(ctx, grant); err != nil {
		return fmt.Errorf("compensate: revert coupon grant: %w", err)
	}

	cp, err := tx.Coupons.GetCoupon(ctx, grant.CouponCode)
	if err != nil {
		return fmt.Errorf("compensate: load coupon %s: %w", grant.CouponCode, err)
	}
	cp.DecrementUsage()
	if err := tx.Coupons.UpdateCoupon(ctx, cp); err != nil {
		return fmt.Errorf("compensate: decrement coupon usage: %w", err)
	}
	return nil
}

// RollbackShipment requests cancellation of a shipment already opened with
// the carrier. Best-effort cleanup: failures are logged and never block
// marking the order failed.
func (c *Compensator) RollbackShipment(ctx context.Context, tx storage.Tx, o *order.Order) {
	logger := logctx.FromOr(ctx, c.log).With(observability.F("order_id", o.ID))

	sh, err := tx.Shipments.GetShipmentByOrderID(ctx, o.ID)
	if errors.Is(err, shipping.ErrNotFound) {
		return
	}
	if err != nil {
		logger.Warn("shipment_rollback_lookup_failed", observability.F("error", err.Error()))
		return
	}
	if sh.TrackingNumber == "" {
		return
	}

	method, err := tx.Shipments.GetMethod(ctx, sh.MethodID)
	if err != nil {
		logger.Warn("shipment_rollback_method_failed", observability.F("error", err.Error()))
		return
	}
	provider, err := c.providers.Resolve(method.ProviderCode)
	if err != nil {
		logger.Warn("shipment_rollback_provider_missing", observability.F("provider", method.ProviderCode))
		return
	}
	if err := provider.Cancel(ctx, sh.TrackingNumber); err != nil {
		logger.Warn("shipment_cancel_failed",
			observability.F("tracking_number", sh.TrackingNumber),
			observability.F("error", err.Error()),
		)
	}
}

// MarkFailed sets the terminal statuses and appends the note. Idempotent:
// the Processing-guarded lookup upstream has already excluded settled orders,
// and MarkFailed on an already failed order is a no-op.
func (c *Compensator) MarkFailed(ctx context.Context, tx storage.Tx, o *order.Order, pmt *payment.Payment, note, raw string) error {
	if err := o.MarkFailed(); err != nil {
		return fmt.Errorf("compensate: mark order failed: %w", err)
	}
	o.AppendNote(note)
	if err := tx.Orders.Update(ctx, o); err != nil {
		return fmt.Errorf("compensate: update order: %w", err)
	}
	if pmt != nil {
		pmt.MarkFailed(raw)
		if err := tx.Payments.Update(ctx, pmt); err != nil {
			return fmt.Errorf("compensate: update payment: %w", err)
		}
	}
	return nil
}
