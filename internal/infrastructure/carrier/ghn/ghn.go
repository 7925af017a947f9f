package ghn

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	domshipping "github.com/namprobe/NekoViBE-sub001/internal/domain/shipping"
)

const ProviderCode = "ghn"

// Config carries the carrier API credentials. ShopID scopes every call to
// the merchant's registered pickup location.
type Config struct {
	Token        string
	ShopID       int
	BaseURL      string
	FromDistrict int
}

// Provider talks to a GHN-style carrier API: fee quoting, shipping-order
// creation and cancellation, and webhook decoding. The status vocabulary
// below is the carrier's own; the mapping table is the single place it is
// translated into order transitions.
type Provider struct {
	cfg    Config
	client *http.Client
}

func New(cfg Config, client *http.Client) *Provider {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Provider{cfg: cfg, client: client}
}

func (p *Provider) Code() string { return ProviderCode }

// transitionByStatus is the carrier vocabulary mapping. The return-leg
// statuses (waiting_to_return through return_fail) intentionally map to no
// order movement: the order only becomes Returned when the carrier reports
// the return completed.
var transitionByStatus = map[string]domshipping.Transition{
	"ready_to_pick":            domshipping.TransitionNone,
	"picking":                  domshipping.TransitionNone,
	"money_collect_picking":    domshipping.TransitionNone,
	"cancel":                   domshipping.TransitionCancelled,
	"picked":                   domshipping.TransitionShipping,
	"storing":                  domshipping.TransitionShipping,
	"transporting":             domshipping.TransitionShipping,
	"sorting":                  domshipping.TransitionShipping,
	"delivering":               domshipping.TransitionShipping,
	"money_collect_delivering": domshipping.TransitionShipping,
	"delivered":                domshipping.TransitionDelivered,
	"delivery_fail":            domshipping.TransitionFailed,
	"exception":                domshipping.TransitionFailed,
	"damage":                   domshipping.TransitionFailed,
	"lost":                     domshipping.TransitionFailed,
	"waiting_to_return":        domshipping.TransitionNone,
	"return":                   domshipping.TransitionReturned,
	"return_transporting":      domshipping.TransitionNone,
	"return_sorting":           domshipping.TransitionNone,
	"returning":                domshipping.TransitionNone,
	"return_fail":              domshipping.TransitionNone,
	"returned":                 domshipping.TransitionReturned,
}

func (p *Provider) MapStatus(statusCode string) domshipping.Transition {
	t, ok := transitionByStatus[statusCode]
	if !ok {
		return domshipping.TransitionUnknown
	}
	return t
}

type apiResponse struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (p *Provider) post(ctx context.Context, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("ghn: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("ghn: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Token", p.cfg.Token)
	req.Header.Set("ShopId", strconv.Itoa(p.cfg.ShopID))

	res, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("ghn: %s: %w", path, err)
	}
	defer res.Body.Close()

	var envelope apiResponse
	if err := json.NewDecoder(res.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("ghn: decode %s response: %w", path, err)
	}
	if envelope.Code != http.StatusOK {
		return fmt.Errorf("ghn: %s rejected: %s (code %d)", path, envelope.Message, envelope.Code)
	}
	if out != nil {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return fmt.Errorf("ghn: decode %s data: %w", path, err)
		}
	}
	return nil
}

type feeData struct {
	Total int64 `json:"total"`
}

func (p *Provider) Quote(ctx context.Context, req domshipping.QuoteRequest) (decimal.Decimal, error) {
	payload := map[string]any{
		"from_district_id": p.cfg.FromDistrict,
		"to_district_id":   req.ToDistrict,
		"to_address":       req.ToAddress,
		"weight":           req.WeightGram,
		"service_type_id":  2,
	}

	var data feeData
	if err := p.post(ctx, "/shipping-order/fee", payload, &data); err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromInt(data.Total), nil
}

type createData struct {
	OrderCode            string `json:"order_code"`
	TotalFee             int64  `json:"total_fee"`
	ExpectedDeliveryTime string `json:"expected_delivery_time"`
}

func (p *Provider) CreateShipment(ctx context.Context, req domshipping.ShipmentRequest) (*domshipping.Shipment, error) {
	items := make([]map[string]any, 0, len(req.ItemNames))
	for _, name := range req.ItemNames {
		items = append(items, map[string]any{"name": name})
	}

	payload := map[string]any{
		"client_order_code": req.OrderID,
		"to_name":           req.RecipientName,
		"to_phone":          req.Phone,
		"to_address":        req.Address,
		"cod_amount":        req.CODAmount.Truncate(0).IntPart(),
		"payment_type_id":   1, // sender pays the fee
		"required_note":     "CHOXEMHANGKHONGTHU",
		"service_type_id":   2,
		"items":             items,
	}

	var data createData
	if err := p.post(ctx, "/shipping-order/create", payload, &data); err != nil {
		return nil, err
	}

	shipment := &domshipping.Shipment{
		TrackingNumber: data.OrderCode,
		Fee:            decimal.NewFromInt(data.TotalFee),
	}
	if data.ExpectedDeliveryTime != "" {
		if ts, err := time.Parse(time.RFC3339, data.ExpectedDeliveryTime); err == nil {
			shipment.ExpectedDelivery = ts
		}
	}
	return shipment, nil
}

func (p *Provider) Cancel(ctx context.Context, trackingNumber string) error {
	payload := map[string]any{
		"order_codes": []string{trackingNumber},
	}
	return p.post(ctx, "/switch-status/cancel", payload, nil)
}

type webhookPayload struct {
	OrderCode string    `json:"OrderCode"`
	Status    string    `json:"Status"`
	Type      string    `json:"Type"`
	Time      time.Time `json:"Time"`
}

// HandleCallback decodes the carrier webhook. StatusName doubles as the
// human-readable line appended to the order's audit note.
func (p *Provider) HandleCallback(body []byte) (*domshipping.CallbackEvent, error) {
	if len(body) == 0 {
		return nil, fmt.Errorf("ghn: empty callback body")
	}

	var w webhookPayload
	if err := json.Unmarshal(body, &w); err != nil {
		return nil, fmt.Errorf("ghn: decode callback: %w", err)
	}
	if w.OrderCode == "" {
		return nil, fmt.Errorf("ghn: callback without order code")
	}

	return &domshipping.CallbackEvent{
		TrackingNumber: w.OrderCode,
		StatusCode:     w.Status,
		StatusName:     fmt.Sprintf("%s (%s)", w.Status, ProviderCode),
		Timestamp:      w.Time,
	}, nil
}
