package ghn

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	domshipping "github.com/namprobe/NekoViBE-sub001/internal/domain/shipping"
)

func TestMapStatusTable(t *testing.T) {
	p := New(Config{}, nil)

	cases := map[string]domshipping.Transition{
		"ready_to_pick":            domshipping.TransitionNone,
		"picking":                  domshipping.TransitionNone,
		"money_collect_picking":    domshipping.TransitionNone,
		"cancel":                   domshipping.TransitionCancelled,
		"picked":                   domshipping.TransitionShipping,
		"transporting":             domshipping.TransitionShipping,
		"money_collect_delivering": domshipping.TransitionShipping,
		"delivered":                domshipping.TransitionDelivered,
		"delivery_fail":            domshipping.TransitionFailed,
		"lost":                     domshipping.TransitionFailed,
		"waiting_to_return":        domshipping.TransitionNone,
		"return_transporting":      domshipping.TransitionNone,
		"returned":                 domshipping.TransitionReturned,
		"some_future_status":       domshipping.TransitionUnknown,
	}
	for status, want := range cases {
		require.Equal(t, want, p.MapStatus(status), "status %q", status)
	}
}

func TestHandleCallback(t *testing.T) {
	p := New(Config{}, nil)

	at := time.Date(2026, 8, 31, 9, 30, 0, 0, time.UTC)
	body, _ := json.Marshal(webhookPayload{
		OrderCode: "GHN123",
		Status:    "delivered",
		Type:      "switch_status",
		Time:      at,
	})

	ev, err := p.HandleCallback(body)
	require.NoError(t, err)
	require.Equal(t, "GHN123", ev.TrackingNumber)
	require.Equal(t, "delivered", ev.StatusCode)
	require.Equal(t, at, ev.Timestamp)
}

func TestHandleCallbackMalformed(t *testing.T) {
	p := New(Config{}, nil)

	_, err := p.HandleCallback(nil)
	require.Error(t, err)

	_, err = p.HandleCallback([]byte("{not json"))
	require.Error(t, err)

	_, err = p.HandleCallback([]byte(`{"Status":"delivered"}`))
	require.Error(t, err, "missing order code")
}

func TestCreateShipment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/shipping-order/create", r.URL.Path)
		require.Equal(t, "token-1", r.Header.Get("Token"))
		require.Equal(t, "42", r.Header.Get("ShopId"))

		json.NewEncoder(w).Encode(map[string]any{
			"code":    200,
			"message": "Success",
			"data": map[string]any{
				"order_code":             "GHN123",
				"total_fee":              22000,
				"expected_delivery_time": "2026-09-02T12:00:00Z",
			},
		})
	}))
	defer srv.Close()

	p := New(Config{Token: "token-1", ShopID: 42, BaseURL: srv.URL}, nil)
	sh, err := p.CreateShipment(context.Background(), domshipping.ShipmentRequest{
		OrderID:       "order-1",
		RecipientName: "Nguyen Van A",
		Phone:         "0900000000",
		Address:       "1 Ly Thuong Kiet, Ha Noi",
		CODAmount:     decimal.Zero,
		ItemNames:     []string{"Mug"},
	})
	require.NoError(t, err)
	require.Equal(t, "GHN123", sh.TrackingNumber)
	require.True(t, sh.Fee.Equal(decimal.NewFromInt(22000)))
	require.Equal(t, 2026, sh.ExpectedDelivery.Year())
}

func TestCreateShipmentRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"code": 400, "message": "invalid district"})
	}))
	defer srv.Close()

	p := New(Config{BaseURL: srv.URL}, nil)
	_, err := p.CreateShipment(context.Background(), domshipping.ShipmentRequest{OrderID: "order-1"})
	require.Error(t, err)
}

func TestQuoteAndCancel(t *testing.T) {
	var cancelled []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/shipping-order/fee":
			json.NewEncoder(w).Encode(map[string]any{
				"code": 200, "message": "Success",
				"data": map[string]any{"total": 18500},
			})
		case "/switch-status/cancel":
			var req struct {
				OrderCodes []string `json:"order_codes"`
			}
			json.NewDecoder(r.Body).Decode(&req)
			cancelled = req.OrderCodes
			json.NewEncoder(w).Encode(map[string]any{"code": 200, "message": "Success", "data": []any{}})
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	p := New(Config{BaseURL: srv.URL}, nil)

	fee, err := p.Quote(context.Background(), domshipping.QuoteRequest{ToDistrict: "1442", WeightGram: 500})
	require.NoError(t, err)
	require.True(t, fee.Equal(decimal.NewFromInt(18500)))

	require.NoError(t, p.Cancel(context.Background(), "GHN123"))
	require.Equal(t, []string{"GHN123"}, cancelled)
}
