package httppresentation

import (
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/namprobe/NekoViBE-sub001/internal/application/checkout"
	"github.com/namprobe/NekoViBE-sub001/internal/application/reconcile"
	"github.com/namprobe/NekoViBE-sub001/internal/application/shipment"
	domcart "github.com/namprobe/NekoViBE-sub001/internal/domain/cart"
	domcoupon "github.com/namprobe/NekoViBE-sub001/internal/domain/coupon"
	domorder "github.com/namprobe/NekoViBE-sub001/internal/domain/order"
	dompayment "github.com/namprobe/NekoViBE-sub001/internal/domain/payment"
	domproduct "github.com/namprobe/NekoViBE-sub001/internal/domain/product"
	domshipping "github.com/namprobe/NekoViBE-sub001/internal/domain/shipping"
	domuser "github.com/namprobe/NekoViBE-sub001/internal/domain/user"
	"github.com/namprobe/NekoViBE-sub001/internal/infrastructure/gateway/momo"
	"github.com/namprobe/NekoViBE-sub001/internal/infrastructure/gateway/vnpay"
	"github.com/namprobe/NekoViBE-sub001/internal/observability"
	"github.com/namprobe/NekoViBE-sub001/internal/observability/logctx"
)

const componentHTTPHandler = "http_server"

// Handler exposes checkout and the three provider webhooks. Webhook routes
// always answer HTTP 200: success or failure lives in the provider-shaped
// body, because providers retry on any other status.
type Handler struct {
	place     *checkout.PlaceOrderUseCase
	reconcile *reconcile.PaymentCallbackUseCase
	shipment  *shipment.CarrierCallbackUseCase

	vnpayGW *vnpay.Gateway
	momoGW  *momo.Gateway
	carrier domshipping.Provider

	log observability.Logger
	tel observability.Observability
}

func NewHandler(
	place *checkout.PlaceOrderUseCase,
	rec *reconcile.PaymentCallbackUseCase,
	ship *shipment.CarrierCallbackUseCase,
	vnpayGW *vnpay.Gateway,
	momoGW *momo.Gateway,
	carrier domshipping.Provider,
	tel observability.Observability,
) *Handler {
	if tel == nil {
		tel = observability.Nop()
	}
	return &Handler{
		place:     place,
		reconcile: rec,
		shipment:  ship,
		vnpayGW:   vnpayGW,
		momoGW:    momoGW,
		carrier:   carrier,
		log:       tel.Logger().With(observability.F("component", componentHTTPHandler)),
		tel:       tel,
	}
}

func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	obs := ObservabilityMiddleware(h.log, h.tel)
	route := func(pattern string) func(http.Handler) http.Handler {
		return withRoute(pattern)
	}

	r.With(route("/api/v1/orders"), obs).Post("/api/v1/orders", h.handlePlaceOrder)
	r.With(route("/api/v1/payments/vnpay/ipn"), obs).Get("/api/v1/payments/vnpay/ipn", h.handleVNPayIPN)
	r.With(route("/api/v1/payments/momo/ipn"), obs).Post("/api/v1/payments/momo/ipn", h.handleMoMoIPN)
	r.With(route("/api/v1/shipping/ghn/webhook"), obs).Post("/api/v1/shipping/ghn/webhook", h.handleCarrierWebhook)
	r.Get("/health", h.handleHealth)

	return r
}

type placeOrderRequest struct {
	UserID           string `json:"user_id"`
	ProductID        string `json:"product_id"`
	Quantity         int    `json:"quantity"`
	CouponCode       string `json:"coupon_code"`
	PaymentMethod    string `json:"payment_method"`
	ShippingMethodID string `json:"shipping_method_id"`
	GuestName        string `json:"guest_name"`
	GuestPhone       string `json:"guest_phone"`
	GuestEmail       string `json:"guest_email"`
	GuestAddress     string `json:"guest_address"`
}

type placeOrderResponse struct {
	OrderID     string    `json:"order_id"`
	RedirectURL string    `json:"redirect_url,omitempty"`
	FinalAmount string    `json:"final_amount"`
	CreatedAt   time.Time `json:"created_at"`
}

func (h *Handler) handlePlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req placeOrderRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	result, err := h.place.Execute(r.Context(), checkout.PlaceOrderInput{
		UserID:           req.UserID,
		ProductID:        req.ProductID,
		Quantity:         req.Quantity,
		CouponCode:       req.CouponCode,
		PaymentMethod:    dompayment.Method(req.PaymentMethod),
		ShippingMethodID: req.ShippingMethodID,
		GuestName:        req.GuestName,
		GuestPhone:       req.GuestPhone,
		GuestEmail:       req.GuestEmail,
		GuestAddress:     req.GuestAddress,
		ClientIP:         clientIP(r),
	})
	if err != nil {
		writePlacementError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, placeOrderResponse{
		OrderID:     result.OrderID,
		RedirectURL: result.RedirectURL,
		FinalAmount: result.FinalAmount.StringFixed(2),
		CreatedAt:   result.CreatedAt,
	})
}

// vnpayAck is the query-gateway acknowledgment body.
type vnpayAck struct {
	RspCode string `json:"RspCode"`
	Message string `json:"Message"`
}

func (h *Handler) handleVNPayIPN(w http.ResponseWriter, r *http.Request) {
	result, err := h.reconcile.Execute(r.Context(), h.vnpayGW, dompayment.Callback{
		Query:    r.URL.Query(),
		SourceIP: clientIP(r),
	})

	// An internal failure acks 99 so the gateway retries into the same
	// idempotent flow.
	ack := vnpayAck{RspCode: vnpay.CodeUnknownError, Message: "Unknown error"}
	if err != nil {
		writeJSON(w, http.StatusOK, ack)
		return
	}
	switch result.Ack {
	case reconcile.AckConfirmed, reconcile.AckFailureRecorded:
		ack = vnpayAck{RspCode: vnpay.CodeSuccess, Message: "Confirm Success"}
	case reconcile.AckAlreadyProcessed:
		ack = vnpayAck{RspCode: vnpay.CodeAlreadyConfirmed, Message: "Order already confirmed"}
	case reconcile.AckOrderNotFound:
		ack = vnpayAck{RspCode: vnpay.CodeOrderNotFound, Message: "Order not found"}
	case reconcile.AckMalformed:
		ack = vnpayAck{RspCode: vnpay.CodeInvalidSignature, Message: "Invalid checksum"}
	}
	writeJSON(w, http.StatusOK, ack)
}

// momoAck is the JSON-gateway acknowledgment, signed like the inbound IPN.
type momoAck struct {
	PartnerCode  string `json:"partnerCode"`
	RequestID    string `json:"requestId"`
	OrderID      string `json:"orderId"`
	ResultCode   int    `json:"resultCode"`
	Message      string `json:"message"`
	ResponseTime int64  `json:"responseTime"`
	Signature    string `json:"signature"`
}

func (h *Handler) handleMoMoIPN(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeJSON(w, http.StatusOK, h.momoAckFor("", "", 99, "cannot read body"))
		return
	}

	result, err := h.reconcile.Execute(r.Context(), h.momoGW, dompayment.Callback{
		Body:     body,
		SourceIP: clientIP(r),
	})
	if errors.Is(err, momo.ErrUntrustedSource) {
		// Untrusted peers get no detail, just a refusal-shaped ack.
		writeJSON(w, http.StatusOK, h.momoAckFor("", "", 43, "access denied"))
		return
	}
	if err != nil {
		writeJSON(w, http.StatusOK, h.momoAckFor(result.OrderID, result.ProviderRef, 99, "internal error"))
		return
	}

	code, msg := 0, "OK"
	switch result.Ack {
	case reconcile.AckOrderNotFound:
		code, msg = 1, "order not found"
	case reconcile.AckMalformed:
		code, msg = 20, "bad format"
	}
	writeJSON(w, http.StatusOK, h.momoAckFor(result.OrderID, result.ProviderRef, code, msg))
}

func (h *Handler) momoAckFor(orderID, requestID string, code int, message string) momoAck {
	now := time.Now().UnixMilli()
	return momoAck{
		PartnerCode:  h.momoGW.PartnerCode(),
		RequestID:    requestID,
		OrderID:      orderID,
		ResultCode:   code,
		Message:      message,
		ResponseTime: now,
		Signature:    h.momoGW.AckSignature(orderID, requestID, message, code, now),
	}
}

// carrierAck is the small envelope the carrier expects on every webhook.
type carrierAck struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (h *Handler) handleCarrierWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeJSON(w, http.StatusOK, carrierAck{Code: http.StatusOK, Message: "ok"})
		return
	}

	if _, err := h.shipment.Execute(r.Context(), h.carrier, body); err != nil {
		logctx.FromOr(r.Context(), h.log).Warn("carrier_webhook_failed",
			observability.F("error", err.Error()),
		)
	}
	// Carrier retries on non-200; internal outcome never changes the ack.
	writeJSON(w, http.StatusOK, carrierAck{Code: http.StatusOK, Message: "ok"})
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			fwd = fwd[:i]
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writePlacementError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domuser.ErrNotFound),
		errors.Is(err, domproduct.ErrNotFound),
		errors.Is(err, domshipping.ErrNotFound),
		errors.Is(err, domcoupon.ErrNotFound):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, domproduct.ErrInsufficientStock),
		errors.Is(err, domproduct.ErrInactive),
		errors.Is(err, domshipping.ErrMethodInactive),
		errors.Is(err, domorder.ErrNoItems),
		errors.Is(err, domorder.ErrInvalidQuantity),
		errors.Is(err, domcart.ErrEmpty),
		errors.Is(err, domcart.ErrNotFound),
		errors.Is(err, dompayment.ErrUnknownGateway),
		errors.Is(err, checkout.ErrGuestContactRequired),
		errors.Is(err, checkout.ErrGuestCartCheckout):
		writeError(w, http.StatusBadRequest, err)
	case errors.Is(err, domcoupon.ErrNotOwned),
		errors.Is(err, domcoupon.ErrAlreadyUsed),
		errors.Is(err, domcoupon.ErrInactive),
		errors.Is(err, domcoupon.ErrNotStarted),
		errors.Is(err, domcoupon.ErrExpired),
		errors.Is(err, domcoupon.ErrExhausted),
		errors.Is(err, domcoupon.ErrMinAmountNotMet):
		writeError(w, http.StatusUnprocessableEntity, err)
	default:
		writeError(w, http.StatusInternalServerError, err)
	}
}
