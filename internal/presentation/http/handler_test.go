package httppresentation

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/namprobe/NekoViBE-sub001/internal/application/checkout"
	"github.com/namprobe/NekoViBE-sub001/internal/application/reconcile"
	"github.com/namprobe/NekoViBE-sub001/internal/application/shipment"
	domorder "github.com/namprobe/NekoViBE-sub001/internal/domain/order"
	dompayment "github.com/namprobe/NekoViBE-sub001/internal/domain/payment"
	domproduct "github.com/namprobe/NekoViBE-sub001/internal/domain/product"
	domshipping "github.com/namprobe/NekoViBE-sub001/internal/domain/shipping"
	domuser "github.com/namprobe/NekoViBE-sub001/internal/domain/user"
	"github.com/namprobe/NekoViBE-sub001/internal/infrastructure/carrier/ghn"
	"github.com/namprobe/NekoViBE-sub001/internal/infrastructure/gateway/momo"
	"github.com/namprobe/NekoViBE-sub001/internal/infrastructure/gateway/vnpay"
	"github.com/namprobe/NekoViBE-sub001/internal/infrastructure/id"
	"github.com/namprobe/NekoViBE-sub001/internal/infrastructure/memory"
)

type testEnv struct {
	router    http.Handler
	vnpayGW   *vnpay.Gateway
	momoGW    *momo.Gateway
	orders    *memory.OrderRepository
	products  *memory.ProductRepository
	shipments *memory.ShippingRepository
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	orders := memory.NewOrderRepository()
	payments := memory.NewPaymentRepository()
	products := memory.NewProductRepository()
	coupons := memory.NewCouponRepository()
	shipments := memory.NewShippingRepository()
	users := memory.NewUserRepository()
	carts := memory.NewCartRepository()
	uow := memory.NewUnitOfWork(orders, payments, products, coupons, shipments, users)

	users.Seed(&domuser.User{
		ID: "u1", Name: "An", Phone: "0901", Email: "an@example.com", Address: "1 Street", Active: true,
	})
	products.Seed(&domproduct.Product{
		ID: "p1", Name: "Mug", Price: decimal.NewFromInt(100), StockQuantity: 10, Active: true,
	})
	shipments.SeedMethods(&domshipping.Method{
		ID: "m1", Name: "Standard", ProviderCode: ghn.ProviderCode, Active: true,
	})

	vnpayGW := vnpay.New(vnpay.Config{
		TmnCode:    "TEST01",
		HashSecret: "secret",
		PayURL:     "https://sandbox.vnpayment.vn/paymentv2/vpcpay.html",
		ReturnURL:  "https://shop.example/return",
	})
	momoGW, err := momo.New(momo.Config{
		PartnerCode: "MOMOTEST",
		AccessKey:   "access",
		SecretKey:   "secret",
		Endpoint:    "https://test-payment.momo.vn",
		RedirectURL: "https://shop.example/return",
		IPNURL:      "https://shop.example/api/v1/payments/momo/ipn",
		AllowedIPs:  []string{"10.0.0.0/8"},
	}, nil)
	require.NoError(t, err)
	carrier := ghn.New(ghn.Config{Token: "tok", ShopID: 1, BaseURL: "https://dev-online-gateway.ghn.vn"}, nil)

	gateways := dompayment.Registry{
		dompayment.MethodVNPay: vnpayGW,
		dompayment.MethodMoMo:  momoGW,
	}
	providers := domshipping.Registry{ghn.ProviderCode: carrier}

	placeUC := checkout.NewPlaceOrderUseCase(uow, carts, gateways, id.NewUUIDGenerator(), nil, nil)
	reconcileUC := reconcile.NewPaymentCallbackUseCase(uow, reconcile.NewCompensator(providers, nil), providers, nil, nil)
	shipmentUC := shipment.NewCarrierCallbackUseCase(uow, nil, nil)

	h := NewHandler(placeUC, reconcileUC, shipmentUC, vnpayGW, momoGW, carrier, nil)
	return &testEnv{
		router:    h.Router(),
		vnpayGW:   vnpayGW,
		momoGW:    momoGW,
		orders:    orders,
		products:  products,
		shipments: shipments,
	}
}

func (e *testEnv) placeOrder(t *testing.T) string {
	t.Helper()

	body, _ := json.Marshal(map[string]any{
		"user_id":            "u1",
		"product_id":         "p1",
		"quantity":           2,
		"payment_method":     "vnpay",
		"shipping_method_id": "m1",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp struct {
		OrderID     string `json:"order_id"`
		RedirectURL string `json:"redirect_url"`
		FinalAmount string `json:"final_amount"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.OrderID)
	require.Contains(t, resp.RedirectURL, "vnp_SecureHash=")
	require.Equal(t, "200.00", resp.FinalAmount)
	return resp.OrderID
}

// signedIPNQuery builds a gateway-signed return query for the given order.
func (e *testEnv) signedIPNQuery(orderID, responseCode string) string {
	params := map[string]string{
		"vnp_TmnCode":           "TEST01",
		"vnp_TxnRef":            orderID,
		"vnp_Amount":            "20000",
		"vnp_TransactionNo":     "14023978",
		"vnp_ResponseCode":      responseCode,
		"vnp_TransactionStatus": responseCode,
		"vnp_BankCode":          "NCB",
	}
	q := url.Values{}
	for k, v := range params {
		q.Set(k, v)
	}
	q.Set("vnp_SecureHash", e.vnpayGW.BuildSignature(params))
	return q.Encode()
}

func (e *testEnv) vnpayIPN(t *testing.T, query string) vnpayAck {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/payments/vnpay/ipn?"+query, nil)
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, "gateway webhooks are always acked with 200")

	var ack vnpayAck
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ack))
	return ack
}

func TestPlaceOrderEndpoint(t *testing.T) {
	e := newTestEnv(t)
	orderID := e.placeOrder(t)

	o, err := e.orders.Get(t.Context(), orderID)
	require.NoError(t, err)
	require.Equal(t, domorder.StatusProcessing, o.Status)

	p, err := e.products.Get(t.Context(), "p1")
	require.NoError(t, err)
	require.Equal(t, 8, p.StockQuantity)
}

func TestPlaceOrderEndpointValidation(t *testing.T) {
	e := newTestEnv(t)

	post := func(body map[string]any) *httptest.ResponseRecorder {
		raw, _ := json.Marshal(body)
		req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", bytes.NewReader(raw))
		rec := httptest.NewRecorder()
		e.router.ServeHTTP(rec, req)
		return rec
	}

	rec := post(map[string]any{
		"user_id": "ghost", "product_id": "p1", "quantity": 1,
		"payment_method": "vnpay", "shipping_method_id": "m1",
	})
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = post(map[string]any{
		"user_id": "u1", "product_id": "p1", "quantity": 99,
		"payment_method": "vnpay", "shipping_method_id": "m1",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = post(map[string]any{
		"user_id": "u1", "product_id": "p1", "quantity": 1,
		"payment_method": "zalopay", "shipping_method_id": "m1",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestVNPayIPNConfirmsAndDeduplicates(t *testing.T) {
	e := newTestEnv(t)
	orderID := e.placeOrder(t)
	query := e.signedIPNQuery(orderID, "00")

	ack := e.vnpayIPN(t, query)
	require.Equal(t, vnpay.CodeSuccess, ack.RspCode)

	o, err := e.orders.Get(t.Context(), orderID)
	require.NoError(t, err)
	require.Equal(t, domorder.StatusConfirmed, o.Status)

	replay := e.vnpayIPN(t, query)
	require.Equal(t, vnpay.CodeAlreadyConfirmed, replay.RspCode)
}

func TestVNPayIPNDeclinedCompensates(t *testing.T) {
	e := newTestEnv(t)
	orderID := e.placeOrder(t)

	ack := e.vnpayIPN(t, e.signedIPNQuery(orderID, "24"))
	require.Equal(t, vnpay.CodeSuccess, ack.RspCode, "a recorded failure still confirms receipt")

	o, err := e.orders.Get(t.Context(), orderID)
	require.NoError(t, err)
	require.Equal(t, domorder.StatusFailed, o.Status)

	p, err := e.products.Get(t.Context(), "p1")
	require.NoError(t, err)
	require.Equal(t, 10, p.StockQuantity)
}

func TestVNPayIPNUnknownOrder(t *testing.T) {
	e := newTestEnv(t)

	ack := e.vnpayIPN(t, e.signedIPNQuery("ghost", "00"))
	require.Equal(t, vnpay.CodeOrderNotFound, ack.RspCode)
}

func TestVNPayIPNTamperedSignature(t *testing.T) {
	e := newTestEnv(t)
	orderID := e.placeOrder(t)

	q, err := url.ParseQuery(e.signedIPNQuery(orderID, "00"))
	require.NoError(t, err)
	q.Set("vnp_Amount", "1")

	ack := e.vnpayIPN(t, q.Encode())
	require.Equal(t, vnpay.CodeSuccess, ack.RspCode, "failed verification is recorded, not retried")

	o, getErr := e.orders.Get(t.Context(), orderID)
	require.NoError(t, getErr)
	require.Equal(t, domorder.StatusFailed, o.Status, "an unverifiable payment terminates the order")
}

func TestMoMoIPNRejectsUntrustedPeer(t *testing.T) {
	e := newTestEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/momo/ipn", bytes.NewReader([]byte(`{}`)))
	req.RemoteAddr = "192.0.2.7:4431"
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var ack momoAck
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ack))
	require.Equal(t, 43, ack.ResultCode)
	require.Equal(t, "MOMOTEST", ack.PartnerCode)
	require.NotEmpty(t, ack.Signature)
}

func TestMoMoIPNAckEchoesRequestID(t *testing.T) {
	e := newTestEnv(t)

	payload := map[string]any{
		"partnerCode":  "MOMOTEST",
		"orderId":      "no-such-order",
		"requestId":    "req-42",
		"amount":       int64(20000),
		"orderInfo":    "order no-such-order",
		"orderType":    "momo_wallet",
		"transId":      int64(4088878653),
		"resultCode":   0,
		"message":      "Successful.",
		"payType":      "qr",
		"responseTime": int64(1756555200000),
		"extraData":    "",
	}
	payload["signature"] = e.momoGW.BuildSignature(map[string]string{
		"accessKey":    "access",
		"amount":       "20000",
		"extraData":    "",
		"message":      "Successful.",
		"orderId":      "no-such-order",
		"orderInfo":    "order no-such-order",
		"orderType":    "momo_wallet",
		"partnerCode":  "MOMOTEST",
		"payType":      "qr",
		"requestId":    "req-42",
		"responseTime": "1756555200000",
		"resultCode":   "0",
		"transId":      "4088878653",
	})
	body, _ := json.Marshal(payload)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/momo/ipn", bytes.NewReader(body))
	req.RemoteAddr = "10.1.2.3:4431"
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var ack momoAck
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ack))
	require.Equal(t, "no-such-order", ack.OrderID)
	require.Equal(t, "req-42", ack.RequestID)
}

func TestCarrierWebhookMovesOrder(t *testing.T) {
	e := newTestEnv(t)
	orderID := e.placeOrder(t)
	ctx := t.Context()

	// Settle the payment out of band and attach a tracking number, the state
	// a carrier webhook normally finds.
	ack := e.vnpayIPN(t, e.signedIPNQuery(orderID, "00"))
	require.Equal(t, vnpay.CodeSuccess, ack.RspCode)
	sh, err := e.shipments.GetShipmentByOrderID(ctx, orderID)
	require.NoError(t, err)
	sh.SetTracking("GHN123", decimal.NewFromInt(15))
	require.NoError(t, e.shipments.UpdateShipment(ctx, sh))

	body := `{"OrderCode":"GHN123","Status":"delivering","Type":"switch_status","Time":"2026-08-30T10:00:00Z"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/shipping/ghn/webhook", bytes.NewReader([]byte(body)))
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	o, err := e.orders.Get(ctx, orderID)
	require.NoError(t, err)
	require.Equal(t, domorder.StatusShipping, o.Status)
}

func TestCarrierWebhookAlwaysAcks(t *testing.T) {
	e := newTestEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/shipping/ghn/webhook", bytes.NewReader([]byte("not json")))
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var ack carrierAck
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ack))
	require.Equal(t, http.StatusOK, ack.Code)
}

func TestHealthEndpoint(t *testing.T) {
	e := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", rec.Body.String())
}
