package audit

import (
	"context"

	domorder "github.com/namprobe/NekoViBE-sub001/internal/domain/order"
	domoutbox "github.com/namprobe/NekoViBE-sub001/internal/domain/outbox"
	"github.com/namprobe/NekoViBE-sub001/internal/observability"
)

// Worker is the audit trail: it subscribes to the saga's domain events and
// writes one structured line per event. It runs outside the authoritative
// transaction; losing an entry never affects order state.
type Worker struct {
	subscriber domoutbox.Subscriber
	log        observability.Logger
}

func New(subscriber domoutbox.Subscriber, logger observability.Logger) *Worker {
	return &Worker{
		subscriber: subscriber,
		log:        logger.With(observability.F("component", "audit_trail")),
	}
}

func (w *Worker) Start() {
	w.subscriber.Subscribe(domorder.OrderPlacedEvent{}.EventName(), w.handleOrderPlaced)
	w.subscriber.Subscribe(domorder.PaymentReconciledEvent{}.EventName(), w.handlePaymentReconciled)
	w.subscriber.Subscribe(domorder.ShipmentUpdatedEvent{}.EventName(), w.handleShipmentUpdated)
}

func (w *Worker) handleOrderPlaced(ctx context.Context, e domoutbox.Event) error {
	_ = ctx
	evt, ok := e.(domorder.OrderPlacedEvent)
	if !ok {
		return nil
	}
	w.log.Info("audit_order_placed",
		observability.F("order_id", evt.OrderID),
		observability.F("user_id", evt.UserID),
		observability.F("final_amount", evt.FinalAmount.String()),
		observability.F("coupon_code", evt.CouponCode),
	)
	return nil
}

func (w *Worker) handlePaymentReconciled(ctx context.Context, e domoutbox.Event) error {
	_ = ctx
	evt, ok := e.(domorder.PaymentReconciledEvent)
	if !ok {
		return nil
	}
	w.log.Info("audit_payment_reconciled",
		observability.F("order_id", evt.OrderID),
		observability.F("gateway", evt.Gateway),
		observability.F("transaction_id", evt.TransactionID),
		observability.F("succeeded", evt.Succeeded),
	)
	return nil
}

func (w *Worker) handleShipmentUpdated(ctx context.Context, e domoutbox.Event) error {
	_ = ctx
	evt, ok := e.(domorder.ShipmentUpdatedEvent)
	if !ok {
		return nil
	}
	w.log.Info("audit_shipment_updated",
		observability.F("order_id", evt.OrderID),
		observability.F("carrier_status", evt.CarrierStatus),
		observability.F("order_status", string(evt.OrderStatus)),
	)
	return nil
}
