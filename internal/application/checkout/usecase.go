package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	domcart "github.com/namprobe/NekoViBE-sub001/internal/domain/cart"
	domcoupon "github.com/namprobe/NekoViBE-sub001/internal/domain/coupon"
	domorder "github.com/namprobe/NekoViBE-sub001/internal/domain/order"
	domoutbox "github.com/namprobe/NekoViBE-sub001/internal/domain/outbox"
	dompayment "github.com/namprobe/NekoViBE-sub001/internal/domain/payment"
	domproduct "github.com/namprobe/NekoViBE-sub001/internal/domain/product"
	domshipping "github.com/namprobe/NekoViBE-sub001/internal/domain/shipping"
	"github.com/namprobe/NekoViBE-sub001/internal/observability"
	"github.com/namprobe/NekoViBE-sub001/internal/observability/logctx"
	"github.com/namprobe/NekoViBE-sub001/internal/storage"
)

const (
	checkoutService    = "checkout-service"
	useCasePlaceOrder  = "order.place"
	spanPrefix         = "UC."
	publishPeer        = "outbox"
	publishEndpoint    = "order.placed"
	publishTimeout     = 300 * time.Millisecond
	defaultCurrency    = "VND"
)

var (
	ErrGuestContactRequired = errors.New("checkout: guest orders require name, phone and address")
	ErrMissingRedirectURL   = errors.New("checkout: gateway returned no redirect url")
	ErrGuestCartCheckout    = errors.New("checkout: cart checkout requires an account")
)

// PlaceOrderInput selects either a single product ("buy now") or the user's
// current cart (empty ProductID). Guest checkout leaves UserID empty and
// supplies contact fields instead.
type PlaceOrderInput struct {
	UserID string

	ProductID string
	Quantity  int

	CouponCode       string
	PaymentMethod    dompayment.Method
	ShippingMethodID string

	GuestName    string
	GuestPhone   string
	GuestEmail   string
	GuestAddress string

	ClientIP string
}

type PlaceOrderResult struct {
	OrderID     string
	RedirectURL string
	FinalAmount decimal.Decimal
	CreatedAt   time.Time
}

// PlaceOrderUseCase is the saga initiator: one atomic transaction reserves
// stock, prices items, applies the coupon, and opens the payment record.
// Any failure rolls everything back; nothing is persisted.
type PlaceOrderUseCase struct {
	uow         storage.UnitOfWork
	carts       domcart.Repository
	gateways    dompayment.Registry
	idGenerator IDGenerator
	publisher   domoutbox.Publisher

	log          observability.Logger
	tracer       observability.Tracer
	reqCounter   observability.Counter
	durHistogram observability.Histogram
	extCounter   observability.Counter
	extHistogram observability.Histogram
}

func NewPlaceOrderUseCase(
	uow storage.UnitOfWork,
	carts domcart.Repository,
	gateways dompayment.Registry,
	idGen IDGenerator,
	publisher domoutbox.Publisher,
	tel observability.Observability,
) *PlaceOrderUseCase {
	if tel == nil {
		tel = observability.Nop()
	}
	baseLog := tel.Logger().With(
		observability.F("service", checkoutService),
	)
	metricsProvider := tel.Metrics()

	return &PlaceOrderUseCase{
		uow:          uow,
		carts:        carts,
		gateways:     gateways,
		idGenerator:  idGen,
		publisher:    publisher,
		log:          baseLog,
		tracer:       tel.Tracer(),
		reqCounter:   metricsProvider.Counter(observability.MUsecaseRequests),
		durHistogram: metricsProvider.Histogram(observability.MUsecaseDuration),
		extCounter:   metricsProvider.Counter(observability.MExternalRequests),
		extHistogram: metricsProvider.Histogram(observability.MExternalRequestDuration),
	}
}

// Execute performs the order placement flow.
func (uc *PlaceOrderUseCase) Execute(ctx context.Context, cmd PlaceOrderInput) (_ *PlaceOrderResult, err error) {
	logger := logctx.FromOr(ctx, uc.log).With(observability.F("use_case", useCasePlaceOrder))

	ctx, span := uc.tracer.Start(ctx, spanPrefix+"PlaceOrder",
		attribute.String("use_case", useCasePlaceOrder),
		attribute.String("order.user_id", cmd.UserID),
		attribute.String("order.product_id", cmd.ProductID),
		attribute.String("payment.method", string(cmd.PaymentMethod)),
	)
	start := time.Now()
	outcome, statusText := "success", "OK"
	var orderID string
	fromCart := cmd.ProductID == ""

	defer func() {
		lat := time.Since(start).Seconds()

		if span != nil {
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, statusText)
			} else {
				span.SetStatus(codes.Ok, statusText)
			}
			span.End()
		}

		uc.reqCounter.Add(1,
			observability.L("use_case", useCasePlaceOrder),
			observability.L("outcome", outcome),
		)
		uc.durHistogram.Observe(lat,
			observability.L("use_case", useCasePlaceOrder),
		)

		fields := []observability.Field{
			observability.F("outcome", outcome),
			observability.F("status", statusText),
			observability.F("latency_seconds", lat),
			observability.F("from_cart", fromCart),
		}
		if orderID != "" {
			fields = append(fields, observability.F("order_id", orderID))
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

	if cmd.UserID == "" {
		if cmd.GuestName == "" || cmd.GuestPhone == "" || cmd.GuestAddress == "" {
			outcome, statusText = "error", "GUEST_CONTACT_REQUIRED"
			return nil, ErrGuestContactRequired
		}
		if fromCart {
			outcome, statusText = "error", "GUEST_CART_CHECKOUT"
			return nil, ErrGuestCartCheckout
		}
	}
	if !fromCart && cmd.Quantity <= 0 {
		outcome, statusText = "error", "QUANTITY_INVALID"
		return nil, domorder.ErrInvalidQuantity
	}

	var gw dompayment.Gateway
	if cmd.PaymentMethod.Online() {
		gw, err = uc.gateways.Resolve(cmd.PaymentMethod)
		if err != nil {
			outcome, statusText = "error", "PAYMENT_METHOD_UNKNOWN"
			return nil, err
		}
	}

	var result *PlaceOrderResult
	err = uc.uow.Do(ctx, func(ctx context.Context, tx storage.Tx) error {
		o, buildErr := uc.buildOrder(ctx, tx, cmd, fromCart)
		if buildErr != nil {
			return buildErr
		}
		orderID = o.ID

		redirectURL := ""
		if gw != nil {
			redirectURL, buildErr = uc.openIntent(ctx, gw, o, cmd)
			if buildErr != nil {
				return buildErr
			}
		}

		result = &PlaceOrderResult{
			OrderID:     o.ID,
			RedirectURL: redirectURL,
			FinalAmount: o.FinalAmount,
			CreatedAt:   o.CreatedAt,
		}
		return nil
	})
	if err != nil {
		if outcome == "success" {
			outcome, statusText = "error", classifyPlacementError(err)
		}
		return nil, err
	}

	// Post-commit side effects: cart cleanup and the audit event. Neither
	// can fail the placement any more.
	if fromCart {
		if clearErr := uc.carts.Clear(ctx, cmd.UserID); clearErr != nil {
			logger.Warn("cart_clear_failed",
				observability.F("order_id", orderID),
				observability.F("error", clearErr.Error()),
			)
		}
	}
	uc.publishPlaced(ctx, result, cmd)

	span.AddEvent("order.placed",
		trace.WithAttributes(attribute.String("order.id", orderID)),
	)
	return result, nil
}

// buildOrder runs steps 3-8 of the placement transaction: resolve lines,
// validate stock, price, apply the coupon, persist order+payment+shipment.
func (uc *PlaceOrderUseCase) buildOrder(ctx context.Context, tx storage.Tx, cmd PlaceOrderInput, fromCart bool) (*domorder.Order, error) {
	recipient := struct{ name, phone, email, address string }{
		cmd.GuestName, cmd.GuestPhone, cmd.GuestEmail, cmd.GuestAddress,
	}
	if cmd.UserID != "" {
		u, err := tx.Users.Get(ctx, cmd.UserID)
		if err != nil {
			return nil, fmt.Errorf("checkout: resolve user: %w", err)
		}
		if !u.Active {
			return nil, fmt.Errorf("checkout: user %s: account disabled", u.ID)
		}
		recipient.name, recipient.phone, recipient.email, recipient.address = u.Name, u.Phone, u.Email, u.Address
	}

	lines, err := uc.resolveLines(ctx, cmd, fromCart)
	if err != nil {
		return nil, err
	}

	method, err := tx.Shipments.GetMethod(ctx, cmd.ShippingMethodID)
	if err != nil {
		return nil, fmt.Errorf("checkout: resolve shipping method: %w", err)
	}
	if !method.Active {
		return nil, domshipping.ErrMethodInactive
	}

	total := decimal.Zero
	productDiscount := decimal.Zero
	items := make([]domorder.Item, 0, len(lines))
	for _, line := range lines {
		p, err := tx.Products.Get(ctx, line.ProductID)
		if err != nil {
			return nil, fmt.Errorf("checkout: product %s: %w", line.ProductID, err)
		}
		if !p.Active {
			return nil, fmt.Errorf("checkout: product %s: %w", p.ID, domproduct.ErrInactive)
		}
		if err := p.DeductStock(line.Quantity); err != nil {
			return nil, fmt.Errorf("checkout: product %s: %w", p.ID, err)
		}
		if err := tx.Products.Update(ctx, p); err != nil {
			return nil, fmt.Errorf("checkout: update product %s: %w", p.ID, err)
		}

		qty := decimal.NewFromInt(int64(line.Quantity))
		unitDiscount := p.UnitDiscount()
		total = total.Add(p.Price.Mul(qty))
		productDiscount = productDiscount.Add(unitDiscount.Mul(qty))

		items = append(items, domorder.Item{
			ProductID:   p.ID,
			ProductName: p.Name,
			Quantity:    line.Quantity,
			UnitPrice:   p.Price,
			Discount:    unitDiscount,
		})
	}

	o, err := domorder.New(uc.idGenerator.NewID(), cmd.UserID, items)
	if err != nil {
		return nil, err
	}
	o.RecipientName = recipient.name
	o.RecipientPhone = recipient.phone
	o.RecipientEmail = recipient.email
	o.RecipientAddress = recipient.address
	o.ShippingMethodID = method.ID

	subtotal := total.Sub(productDiscount)
	couponDiscount := decimal.Zero
	var grant *domcoupon.UserCoupon
	var cp *domcoupon.Coupon
	if cmd.CouponCode != "" && subtotal.IsPositive() {
		grant, cp, couponDiscount, err = uc.applyCoupon(ctx, tx, cmd, subtotal)
		if err != nil {
			return nil, err
		}
		o.CouponCode = cp.Code
		o.UserCouponID = grant.ID
	}

	o.SetAmounts(total, productDiscount.Add(couponDiscount), decimal.Zero)

	if err := tx.Orders.Insert(ctx, o); err != nil {
		return nil, fmt.Errorf("checkout: insert order: %w", err)
	}

	pmt, err := dompayment.New(uc.idGenerator.NewID(), o.ID, cmd.PaymentMethod, o.FinalAmount)
	if err != nil {
		return nil, err
	}
	if err := tx.Payments.Insert(ctx, pmt); err != nil {
		return nil, fmt.Errorf("checkout: insert payment: %w", err)
	}

	if err := tx.Shipments.InsertShipment(ctx, &domshipping.OrderShipment{
		OrderID:  o.ID,
		MethodID: method.ID,
	}); err != nil {
		return nil, fmt.Errorf("checkout: insert shipment: %w", err)
	}

	if grant != nil {
		if err := grant.Use(o.ID); err != nil {
			return nil, err
		}
		if err := tx.Coupons.UpdateUserCoupon(ctx, grant); err != nil {
			return nil, fmt.Errorf("checkout: mark coupon used: %w", err)
		}
		cp.IncrementUsage()
		if err := tx.Coupons.UpdateCoupon(ctx, cp); err != nil {
			return nil, fmt.Errorf("checkout: increment coupon usage: %w", err)
		}
	}

	return o, nil
}

func (uc *PlaceOrderUseCase) resolveLines(ctx context.Context, cmd PlaceOrderInput, fromCart bool) ([]domcart.Item, error) {
	if !fromCart {
		return []domcart.Item{{ProductID: cmd.ProductID, Quantity: cmd.Quantity}}, nil
	}
	c, err := uc.carts.Get(ctx, cmd.UserID)
	if err != nil {
		return nil, fmt.Errorf("checkout: load cart: %w", err)
	}
	if len(c.Items) == 0 {
		return nil, domcart.ErrEmpty
	}
	return c.Items, nil
}

func (uc *PlaceOrderUseCase) applyCoupon(ctx context.Context, tx storage.Tx, cmd PlaceOrderInput, subtotal decimal.Decimal) (*domcoupon.UserCoupon, *domcoupon.Coupon, decimal.Decimal, error) {
	if cmd.UserID == "" {
		return nil, nil, decimal.Zero, domcoupon.ErrNotOwned
	}
	grant, err := tx.Coupons.GetUserCoupon(ctx, cmd.UserID, cmd.CouponCode)
	if err != nil {
		return nil, nil, decimal.Zero, err
	}
	if grant.Used() {
		return nil, nil, decimal.Zero, domcoupon.ErrAlreadyUsed
	}
	cp, err := tx.Coupons.GetCoupon(ctx, cmd.CouponCode)
	if err != nil {
		return nil, nil, decimal.Zero, err
	}
	if err := cp.Validate(time.Now().UTC(), subtotal); err != nil {
		return nil, nil, decimal.Zero, err
	}
	return grant, cp, cp.Discount(subtotal), nil
}

// openIntent asks the gateway for a redirect URL. A blank URL aborts the whole
// placement: an online order without a way to pay is worthless.
func (uc *PlaceOrderUseCase) openIntent(ctx context.Context, gw dompayment.Gateway, o *domorder.Order, cmd PlaceOrderInput) (string, error) {
	names := make([]string, 0, len(o.Items))
	for _, it := range o.Items {
		names = append(names, it.ProductName)
	}

	extStart := time.Now()
	intent, err := gw.CreateIntent(ctx, dompayment.Intent{
		OrderID:      o.ID,
		Amount:       o.FinalAmount,
		Currency:     defaultCurrency,
		Description:  fmt.Sprintf("order %s: %s", o.ID, strings.Join(names, ", ")),
		CustomerName: o.RecipientName,
		ClientIP:     cmd.ClientIP,
		CreatedAt:    o.CreatedAt,
	})
	extOutcome := "success"
	if err != nil {
		extOutcome = "error"
	}
	uc.extCounter.Add(1,
		observability.L("peer", string(gw.Method())),
		observability.L("endpoint", "payment.create_intent"),
		observability.L("outcome", extOutcome),
	)
	uc.extHistogram.Observe(time.Since(extStart).Seconds(),
		observability.L("peer", string(gw.Method())),
		observability.L("endpoint", "payment.create_intent"),
	)
	if err != nil {
		return "", fmt.Errorf("checkout: create payment intent: %w", err)
	}
	if intent == nil || intent.RedirectURL == "" {
		return "", ErrMissingRedirectURL
	}
	return intent.RedirectURL, nil
}

func (uc *PlaceOrderUseCase) publishPlaced(ctx context.Context, result *PlaceOrderResult, cmd PlaceOrderInput) {
	if uc.publisher == nil {
		return
	}
	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	pubStart := time.Now()
	pubOutcome := "success"
	pubErr := uc.publisher.Publish(pubCtx, domorder.OrderPlacedEvent{
		OrderID:     result.OrderID,
		UserID:      cmd.UserID,
		FinalAmount: result.FinalAmount,
		CouponCode:  cmd.CouponCode,
		OccurredAt:  time.Now().UTC(),
	})
	if pubErr != nil {
		pubOutcome = "error"
		logctx.FromOr(ctx, uc.log).Warn("event_publish_failed",
			observability.F("event", publishEndpoint),
			observability.F("error", pubErr.Error()),
		)
	}
	cancel()

	uc.extCounter.Add(1,
		observability.L("peer", publishPeer),
		observability.L("endpoint", publishEndpoint),
		observability.L("outcome", pubOutcome),
	)
	uc.extHistogram.Observe(time.Since(pubStart).Seconds(),
		observability.L("peer", publishPeer),
		observability.L("endpoint", publishEndpoint),
	)
}

func classifyPlacementError(err error) string {
	switch {
	case errors.Is(err, domcart.ErrEmpty):
		return "CART_EMPTY"
	case errors.Is(err, ErrMissingRedirectURL):
		return "REDIRECT_URL_MISSING"
	case errors.Is(err, domproduct.ErrInsufficientStock):
		return "INSUFFICIENT_STOCK"
	case errors.Is(err, domcoupon.ErrAlreadyUsed),
		errors.Is(err, domcoupon.ErrExpired),
		errors.Is(err, domcoupon.ErrExhausted),
		errors.Is(err, domcoupon.ErrInactive),
		errors.Is(err, domcoupon.ErrMinAmountNotMet),
		errors.Is(err, domcoupon.ErrNotOwned),
		errors.Is(err, domcoupon.ErrNotStarted):
		return "COUPON_REJECTED"
	default:
		return "PLACEMENT_FAILED"
	}
}
