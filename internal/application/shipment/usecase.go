package shipment

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
	domshipping "github.com/namprobe/NekoViBE-sub001/internal/domain/shipping"
	"github.com/namprobe/NekoViBE-sub001/internal/observability"
	"github.com/namprobe/NekoViBE-sub001/internal/observability/logctx"
	"github.com/namprobe/NekoViBE-sub001/internal/storage"
)

const (
	shipmentService        = "shipment-service"
	useCaseCarrierCallback = "shipment.callback"
	spanPrefix             = "UC."
	publishTimeout         = 300 * time.Millisecond
)

type CallbackResult struct {
	OrderID      string
	OrderStatus  domorder.Status
	Transitioned bool
}

// CarrierCallbackUseCase maps the carrier's status vocabulary onto the order
// state machine. The carrier is always acknowledged with success; internal
// outcomes only surface in logs and metrics, because a carrier retry would
// simply replay an idempotent flow.
type CarrierCallbackUseCase struct {
	uow       storage.UnitOfWork
	publisher domoutbox.Publisher

	log          observability.Logger
	tracer       observability.Tracer
	reqCounter   observability.Counter
	durHistogram observability.Histogram
}

func NewCarrierCallbackUseCase(uow storage.UnitOfWork, publisher domoutbox.Publisher, tel observability.Observability) *CarrierCallbackUseCase {
	if tel == nil {
		tel = observability.Nop()
	}
	baseLog := tel.Logger().With(
		observability.F("service", shipmentService),
	)
	metricsProvider := tel.Metrics()

	return &CarrierCallbackUseCase{
		uow:          uow,
		publisher:    publisher,
		log:          baseLog,
		tracer:       tel.Tracer(),
		reqCounter:   metricsProvider.Counter(observability.MUsecaseRequests),
		durHistogram: metricsProvider.Histogram(observability.MUsecaseDuration),
	}
}

// Execute decodes and applies one carrier status callback.
func (uc *CarrierCallbackUseCase) Execute(ctx context.Context, provider domshipping.Provider, body []byte) (_ *CallbackResult, err error) {
	logger := logctx.FromOr(ctx, uc.log).With(
		observability.F("use_case", useCaseCarrierCallback),
		observability.F("carrier", provider.Code()),
	)

	ctx, span := uc.tracer.Start(ctx, spanPrefix+"CarrierCallback",
		attribute.String("use_case", useCaseCarrierCallback),
		attribute.String("carrier.code", provider.Code()),
	)
	start := time.Now()
	outcome, statusText := "success", "OK"
	result := &CallbackResult{}

	defer func() {
		if span != nil {
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
			observability.L("use_case", useCaseCarrierCallback),
			observability.L("outcome", outcome),
		)
		uc.durHistogram.Observe(latency,
			observability.L("use_case", useCaseCarrierCallback),
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

	ev, decodeErr := provider.HandleCallback(body)
	if decodeErr != nil {
		outcome, statusText = "error", "CALLBACK_MALFORMED"
		return result, fmt.Errorf("shipment: decode callback: %w", decodeErr)
	}
	span.SetAttributes(
		attribute.String("carrier.tracking", ev.TrackingNumber),
		attribute.String("carrier.status", ev.StatusCode),
	)

	rule := provider.MapStatus(ev.StatusCode)
	if rule == domshipping.TransitionUnknown {
		// Fail-safe default: an unknown vocabulary entry must never move
		// the state machine.
		logger.Warn("carrier_status_unrecognized",
			observability.F("status_code", ev.StatusCode),
			observability.F("tracking_number", ev.TrackingNumber),
		)
		statusText = "STATUS_UNRECOGNIZED"
		return result, nil
	}

	err = uc.uow.Do(ctx, func(ctx context.Context, tx storage.Tx) error {
		sh, err := tx.Shipments.GetShipmentByTracking(ctx, ev.TrackingNumber)
		if errors.Is(err, domshipping.ErrNotFound) {
			logger.Warn("shipment_unknown_tracking",
				observability.F("tracking_number", ev.TrackingNumber),
			)
			return nil
		}
		if err != nil {
			return fmt.Errorf("shipment: find by tracking: %w", err)
		}

		o, err := tx.Orders.Get(ctx, sh.OrderID)
		if err != nil {
			return fmt.Errorf("shipment: load order %s: %w", sh.OrderID, err)
		}
		result.OrderID = o.ID

		result.Transitioned = uc.apply(logger, o, sh, rule, ev)
		o.AppendNote(fmt.Sprintf("carrier %s status: %s", provider.Code(), ev.StatusName))
		result.OrderStatus = o.Status

		if err := tx.Orders.Update(ctx, o); err != nil {
			return fmt.Errorf("shipment: update order: %w", err)
		}
		if err := tx.Shipments.UpdateShipment(ctx, sh); err != nil {
			return fmt.Errorf("shipment: update shipment: %w", err)
		}
		return nil
	})
	if err != nil {
		outcome, statusText = "error", "CALLBACK_APPLY_FAILED"
		return result, err
	}

	if result.Transitioned {
		uc.publish(ctx, domorder.ShipmentUpdatedEvent{
			OrderID:       result.OrderID,
			CarrierStatus: ev.StatusCode,
			OrderStatus:   result.OrderStatus,
			OccurredAt:    time.Now().UTC(),
		})
	}
	return result, nil
}

// apply moves the order per the transition rule. Guard violations (late or
// out-of-order callbacks) are logged and swallowed: the machine only moves
// forward, never regresses.
func (uc *CarrierCallbackUseCase) apply(logger observability.Logger, o *domorder.Order, sh *domshipping.OrderShipment, rule domshipping.Transition, ev *domshipping.CallbackEvent) bool {
	at := ev.Timestamp
	if at.IsZero() {
		at = time.Now().UTC()
	}

	var transitionErr error
	moved := false
	switch rule {
	case domshipping.TransitionNone:
		// Pre-pickup chatter: no order movement.
	case domshipping.TransitionShipping:
		if transitionErr = o.MarkShipping(); transitionErr == nil {
			moved = true
		}
		sh.StampShipped(at)
	case domshipping.TransitionDelivered:
		if transitionErr = o.MarkDelivered(); transitionErr == nil {
			moved = true
		}
		sh.StampDelivered(at)
	case domshipping.TransitionCancelled:
		if transitionErr = o.Cancel(); transitionErr == nil {
			moved = true
		}
	case domshipping.TransitionFailed:
		if transitionErr = o.MarkDeliveryFailed(); transitionErr == nil {
			moved = true
		}
	case domshipping.TransitionReturned:
		if transitionErr = o.MarkReturned(); transitionErr == nil {
			moved = true
		}
	}

	if transitionErr != nil {
		logger.Debug("carrier_transition_skipped",
			observability.F("order_id", o.ID),
			observability.F("order_status", string(o.Status)),
			observability.F("carrier_status", ev.StatusCode),
			observability.F("reason", transitionErr.Error()),
		)
	}
	return moved
}

func (uc *CarrierCallbackUseCase) publish(ctx context.Context, e domorder.ShipmentUpdatedEvent) {
	if uc.publisher == nil {
		return
	}
	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	if err := uc.publisher.Publish(pubCtx, e); err != nil {
		logctx.FromOr(ctx, uc.log).Warn("event_publish_failed",
			observability.F("event", e.EventName()),
			observability.F("error", err.Error()),
		)
	}
}
