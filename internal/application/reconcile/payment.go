package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	domorder "github.com/namprobe/NekoViBE-sub001/internal/domain/order"
	domoutbox "github.com/namprobe/NekoViBE-sub001/internal/domain/outbox"
	dompayment "github.com/namprobe/NekoViBE-sub001/internal/domain/payment"
	domshipping "github.com/namprobe/NekoViBE-sub001/internal/domain/shipping"
	"github.com/namprobe/NekoViBE-sub001/internal/observability"
	"github.com/namprobe/NekoViBE-sub001/internal/observability/logctx"
	"github.com/namprobe/NekoViBE-sub001/internal/storage"
)

const (
	reconcileService       = "payment-reconciler"
	useCasePaymentCallback = "payment.callback"
	spanPrefix             = "UC."
	publishTimeout         = 300 * time.Millisecond
)

// Ack is the gateway-neutral acknowledgment outcome. The HTTP handlers
// translate it into each provider's wire shape; the HTTP status is always 200
// because gateways retry on anything else.
type Ack int

const (
	AckConfirmed Ack = iota
	AckFailureRecorded
	AckAlreadyProcessed
	AckOrderNotFound
	AckMalformed
)

type CallbackResult struct {
	Ack           Ack
	OrderID       string
	TransactionID string
	ProviderRef   string
	Message       string
}

// PaymentCallbackUseCase is the shared reconciler behind every gateway
// webhook. The FindProcessing lookup is the idempotency barrier: a duplicate
// or late callback finds no Processing order and becomes a no-op ack.
type PaymentCallbackUseCase struct {
	uow       storage.UnitOfWork
	comp      *Compensator
	providers domshipping.Registry
	publisher domoutbox.Publisher

	log          observability.Logger
	tracer       observability.Tracer
	reqCounter   observability.Counter
	durHistogram observability.Histogram
	extCounter   observability.Counter
	extHistogram observability.Histogram
}

func NewPaymentCallbackUseCase(
	uow storage.UnitOfWork,
	comp *Compensator,
	providers domshipping.Registry,
	publisher domoutbox.Publisher,
	tel observability.Observability,
) *PaymentCallbackUseCase {
	if tel == nil {
		tel = observability.Nop()
	}
	baseLog := tel.Logger().With(
		observability.F("service", reconcileService),
	)
	metricsProvider := tel.Metrics()

	return &PaymentCallbackUseCase{
		uow:          uow,
		comp:         comp,
		providers:    providers,
		publisher:    publisher,
		log:          baseLog,
		tracer:       tel.Tracer(),
		reqCounter:   metricsProvider.Counter(observability.MUsecaseRequests),
		durHistogram: metricsProvider.Histogram(observability.MUsecaseDuration),
		extCounter:   metricsProvider.Counter(observability.MExternalRequests),
		extHistogram: metricsProvider.Histogram(observability.MExternalRequestDuration),
	}
}

// Execute verifies the inbound callback through the gateway adapter and
// reconciles the order exactly once. It never returns an error to the
// provider-facing handler: every internal failure still maps to an ack.
func (uc *PaymentCallbackUseCase) Execute(ctx context.Context, gw dompayment.Gateway, cb dompayment.Callback) (_ *CallbackResult, err error) {
	gateway := string(gw.Method())
	logger := logctx.FromOr(ctx, uc.log).With(
		observability.F("use_case", useCasePaymentCallback),
		observability.F("gateway", gateway),
	)

	ctx, span := uc.tracer.Start(ctx, spanPrefix+"PaymentCallback",
		attribute.String("use_case", useCasePaymentCallback),
		attribute.String("payment.gateway", gateway),
	)
	start := time.Now()
	outcome, statusText := "success", "OK"
	result := &CallbackResult{Ack: AckMalformed}

	defer func() {
		if span != nil {
			span.SetAttributes(attribute.Int("callback.ack", int(result.Ack)))
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, statusText)
			} else {
				span.SetStatus(codes.Ok, statusText)
			}
			span.End()
		}

		latency := time.Since(start).Seconds()
		uc.reqCounter.Add(1,
			observability.L("use_case", useCasePaymentCallback),
			observability.L("outcome", outcome),
		)
		uc.durHistogram.Observe(latency,
			observability.L("use_case", useCasePaymentCallback),
		)

		fields := []observability.Field{
			observability.F("outcome", outcome),
			observability.F("status", statusText),
			observability.F("latency_seconds", latency),
			observability.F("order_id", result.OrderID),
		}
		if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
			fields = append(fields,
				observability.F("trace_id", sc.TraceID().String()),
				observability.F("span_id", sc.SpanID().String()),
			)
		}
		if err != nil {
			fields = append(fields, observability.F("error", err.Error()))
		}
		logger.Info("use_case_done", fields...)
	}()

	verified, verr := gw.VerifyCallback(cb)
	if verr != nil {
		outcome, statusText = "error", "CALLBACK_MALFORMED"
		result.Message = "malformed callback"
		return result, fmt.Errorf("reconcile: verify callback: %w", verr)
	}
	result.OrderID = verified.OrderID
	result.TransactionID = verified.TransactionID
	result.ProviderRef = verified.ProviderRef
	span.SetAttributes(attribute.String("order.id", verified.OrderID))

	if !verified.Succeeded {
		err = uc.recordFailure(ctx, result, verified, gateway)
		if err != nil {
			outcome, statusText = "error", "COMPENSATION_FAILED"
		} else if result.Ack == AckFailureRecorded {
			statusText = "PAYMENT_FAILED_RECORDED"
		} else {
			statusText = "IDEMPOTENT_NOOP"
		}
		return result, err
	}

	err = uc.confirm(ctx, result, verified, gateway)
	switch {
	case err != nil:
		outcome, statusText = "error", "CONFIRM_FAILED"
	case result.Ack == AckConfirmed:
		statusText = "OK"
	case result.Ack == AckAlreadyProcessed:
		statusText = "IDEMPOTENT_NOOP"
	default:
		statusText = "ORDER_NOT_FOUND"
	}
	return result, err
}

// recordFailure reverts every placement side effect and terminates the order.
// The reversal and the status transition share one transaction.
func (uc *PaymentCallbackUseCase) recordFailure(ctx context.Context, result *CallbackResult, verified *dompayment.CallbackResult, gateway string) error {
	uowErr := uc.uow.Do(ctx, func(ctx context.Context, tx storage.Tx) error {
		o, err := tx.Orders.FindProcessing(ctx, verified.OrderID)
		if errors.Is(err, domorder.ErrNotFound) {
			result.Ack = uc.classifyMissing(ctx, tx, verified.OrderID)
			return nil
		}
		if err != nil {
			return fmt.Errorf("reconcile: find order: %w", err)
		}

		if err := uc.comp.RevertStockAndCoupon(ctx, tx, o); err != nil {
			return err
		}
		uc.comp.RollbackShipment(ctx, tx, o)

		pmt, err := tx.Payments.GetByOrderID(ctx, o.ID)
		if errors.Is(err, dompayment.ErrNotFound) {
			pmt = nil
		} else if err != nil {
			return fmt.Errorf("reconcile: load payment: %w", err)
		}

		note := fmt.Sprintf("payment failed via %s: %s (code %s)", gateway, verified.Message, verified.ResultCode)
		if err := uc.comp.MarkFailed(ctx, tx, o, pmt, note, verified.Raw); err != nil {
			return err
		}
		result.Ack = AckFailureRecorded
		result.Message = note
		return nil
	})
	if uowErr != nil {
		return uowErr
	}
	if result.Ack == AckFailureRecorded {
		uc.publish(ctx, gateway, domorder.NewPaymentReconciledEvent(verified.OrderID, gateway, verified.TransactionID, false))
	}
	return nil
}

// confirm settles the order, then attempts shipment creation with the
// carrier. Shipment creation is best-effort: a carrier error is logged and
// the confirmation still commits.
func (uc *PaymentCallbackUseCase) confirm(ctx context.Context, result *CallbackResult, verified *dompayment.CallbackResult, gateway string) error {
	logger := logctx.FromOr(ctx, uc.log)

	uowErr := uc.uow.Do(ctx, func(ctx context.Context, tx storage.Tx) error {
		o, err := tx.Orders.FindProcessing(ctx, verified.OrderID)
		if errors.Is(err, domorder.ErrNotFound) {
			result.Ack = uc.classifyMissing(ctx, tx, verified.OrderID)
			return nil
		}
		if err != nil {
			return fmt.Errorf("reconcile: find order: %w", err)
		}

		pmt, err := tx.Payments.GetByOrderID(ctx, o.ID)
		if errors.Is(err, dompayment.ErrNotFound) {
			// A Processing order always owns exactly one payment. A missing
			// record is a data-integrity anomaly: revert everything.
			logger.Error("payment_record_missing", observability.F("order_id", o.ID))
			if err := uc.comp.RevertStockAndCoupon(ctx, tx, o); err != nil {
				return err
			}
			uc.comp.RollbackShipment(ctx, tx, o)
			if err := uc.comp.MarkFailed(ctx, tx, o, nil, "payment record missing during confirmation", verified.Raw); err != nil {
				return err
			}
			result.Ack = AckFailureRecorded
			result.Message = domorder.ErrMissingPayment.Error()
			return nil
		}
		if err != nil {
			return fmt.Errorf("reconcile: load payment: %w", err)
		}

		if verified.Amount.IsPositive() && !verified.Amount.Equal(pmt.Amount) {
			note := fmt.Sprintf("payment amount mismatch via %s: got %s want %s", gateway, verified.Amount, pmt.Amount)
			if err := uc.comp.RevertStockAndCoupon(ctx, tx, o); err != nil {
				return err
			}
			uc.comp.RollbackShipment(ctx, tx, o)
			if err := uc.comp.MarkFailed(ctx, tx, o, pmt, note, verified.Raw); err != nil {
				return err
			}
			result.Ack = AckFailureRecorded
			result.Message = note
			return nil
		}

		if err := o.Confirm(); err != nil {
			return fmt.Errorf("reconcile: confirm order: %w", err)
		}
		pmt.MarkCompleted(verified.TransactionID, verified.Raw)
		o.AppendNote(fmt.Sprintf("payment confirmed via %s, transaction %s", gateway, verified.TransactionID))

		uc.createShipment(ctx, tx, o)

		if err := tx.Orders.Update(ctx, o); err != nil {
			return fmt.Errorf("reconcile: update order: %w", err)
		}
		if err := tx.Payments.Update(ctx, pmt); err != nil {
			return fmt.Errorf("reconcile: update payment: %w", err)
		}
		result.Ack = AckConfirmed
		return nil
	})
	if uowErr != nil {
		return uowErr
	}
	if result.Ack == AckConfirmed || result.Ack == AckFailureRecorded {
		uc.publish(ctx, gateway, domorder.NewPaymentReconciledEvent(verified.OrderID, gateway, verified.TransactionID, result.Ack == AckConfirmed))
	}
	return nil
}

// createShipment opens the carrier order for a freshly confirmed payment.
// Non-fatal on failure: the order is already paid, ops can re-dispatch.
func (uc *PaymentCallbackUseCase) createShipment(ctx context.Context, tx storage.Tx, o *domorder.Order) {
	logger := logctx.FromOr(ctx, uc.log).With(observability.F("order_id", o.ID))

	if o.ShippingMethodID == "" {
		return
	}
	method, err := tx.Shipments.GetMethod(ctx, o.ShippingMethodID)
	if err != nil {
		logger.Warn("shipment_method_lookup_failed", observability.F("error", err.Error()))
		return
	}
	provider, err := uc.providers.Resolve(method.ProviderCode)
	if err != nil {
		logger.Warn("shipment_provider_missing", observability.F("provider", method.ProviderCode))
		return
	}

	names := make([]string, 0, len(o.Items))
	for _, it := range o.Items {
		names = append(names, it.ProductName)
	}

	extStart := time.Now()
	created, err := provider.CreateShipment(ctx, domshipping.ShipmentRequest{
		OrderID:       o.ID,
		RecipientName: o.RecipientName,
		Phone:         o.RecipientPhone,
		Address:       o.RecipientAddress,
		ItemNames:     names,
	})
	extOutcome := "success"
	if err != nil {
		extOutcome = "error"
	}
	uc.extCounter.Add(1,
		observability.L("peer", method.ProviderCode),
		observability.L("endpoint", "shipment.create"),
		observability.L("outcome", extOutcome),
	)
	uc.extHistogram.Observe(time.Since(extStart).Seconds(),
		observability.L("peer", method.ProviderCode),
		observability.L("endpoint", "shipment.create"),
	)
	if err != nil {
		logger.Warn("shipment_create_failed", observability.F("error", err.Error()))
		return
	}

	sh, err := tx.Shipments.GetShipmentByOrderID(ctx, o.ID)
	if errors.Is(err, domshipping.ErrNotFound) {
		sh = &domshipping.OrderShipment{OrderID: o.ID, MethodID: method.ID}
		sh.SetTracking(created.TrackingNumber, created.Fee)
		if err := tx.Shipments.InsertShipment(ctx, sh); err != nil {
			logger.Warn("shipment_insert_failed", observability.F("error", err.Error()))
		}
		return
	}
	if err != nil {
		logger.Warn("shipment_lookup_failed", observability.F("error", err.Error()))
		return
	}
	sh.SetTracking(created.TrackingNumber, created.Fee)
	if err := tx.Shipments.UpdateShipment(ctx, sh); err != nil {
		logger.Warn("shipment_update_failed", observability.F("error", err.Error()))
	}
}

// classifyMissing separates "already settled" (duplicate webhook) from
// "never existed" so the ack can carry the provider's expected code.
func (uc *PaymentCallbackUseCase) classifyMissing(ctx context.Context, tx storage.Tx, orderID string) Ack {
	if _, err := tx.Orders.Get(ctx, orderID); err == nil {
		return AckAlreadyProcessed
	}
	return AckOrderNotFound
}

func (uc *PaymentCallbackUseCase) publish(ctx context.Context, gateway string, e domoutbox.Event) {
	if uc.publisher == nil {
		return
	}
	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	if err := uc.publisher.Publish(pubCtx, e); err != nil {
		logctx.FromOr(ctx, uc.log).Warn("event_publish_failed",
			observability.F("event", e.EventName()),
			observability.F("gateway", gateway),
			observability.F("error", err.Error()),
		)
	}
}
