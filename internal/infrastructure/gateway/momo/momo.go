package momo

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	dompayment "github.com/namprobe/NekoViBE-sub001/internal/domain/payment"
)

const (
	resultCodeSuccess = 0

	requestTypeCaptureWallet = "captureWallet"
)

var ErrUntrustedSource = fmt.Errorf("momo: callback from untrusted source")

// Config carries partner credentials, the create-payment endpoint, and the
// IPN source allow-list (exact IPs or CIDR ranges).
type Config struct {
	PartnerCode string
	AccessKey   string
	SecretKey   string
	Endpoint    string
	RedirectURL string
	IPNURL      string
	AllowedIPs  []string
}

// Gateway opens payments with a server-to-server create call and verifies
// JSON IPNs signed with HMAC-SHA256 over an alphabetized key=value string.
type Gateway struct {
	cfg     Config
	client  *http.Client
	allowed []*net.IPNet
	exact   map[string]struct{}
}

func New(cfg Config, client *http.Client) (*Gateway, error) {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	g := &Gateway{
		cfg:    cfg,
		client: client,
		exact:  make(map[string]struct{}),
	}
	for _, entry := range cfg.AllowedIPs {
		if strings.Contains(entry, "/") {
			_, ipnet, err := net.ParseCIDR(entry)
			if err != nil {
				return nil, fmt.Errorf("momo: parse allow-list entry %q: %w", entry, err)
			}
			g.allowed = append(g.allowed, ipnet)
			continue
		}
		if net.ParseIP(entry) == nil {
			return nil, fmt.Errorf("momo: allow-list entry %q is not an ip or cidr", entry)
		}
		g.exact[entry] = struct{}{}
	}
	return g, nil
}

func (g *Gateway) Method() dompayment.Method { return dompayment.MethodMoMo }

// PartnerCode identifies the merchant on every signed acknowledgment.
func (g *Gateway) PartnerCode() string { return g.cfg.PartnerCode }

// TrustedSource reports whether the callback peer is on the allow-list. An
// empty allow-list trusts everyone, for sandbox use.
func (g *Gateway) TrustedSource(sourceIP string) bool {
	if len(g.exact) == 0 && len(g.allowed) == 0 {
		return true
	}
	if _, ok := g.exact[sourceIP]; ok {
		return true
	}
	ip := net.ParseIP(sourceIP)
	if ip == nil {
		return false
	}
	for _, ipnet := range g.allowed {
		if ipnet.Contains(ip) {
			return true
		}
	}
	return false
}

type createRequest struct {
	PartnerCode string `json:"partnerCode"`
	AccessKey   string `json:"accessKey"`
	RequestID   string `json:"requestId"`
	Amount      int64  `json:"amount"`
	OrderID     string `json:"orderId"`
	OrderInfo   string `json:"orderInfo"`
	RedirectURL string `json:"redirectUrl"`
	IPNURL      string `json:"ipnUrl"`
	ExtraData   string `json:"extraData"`
	RequestType string `json:"requestType"`
	Lang        string `json:"lang"`
	Signature   string `json:"signature"`
}

type createResponse struct {
	ResultCode int    `json:"resultCode"`
	Message    string `json:"message"`
	PayURL     string `json:"payUrl"`
	RequestID  string `json:"requestId"`
}

// CreateIntent opens the payment with the provider and returns its hosted
// payment URL.
func (g *Gateway) CreateIntent(ctx context.Context, intent dompayment.Intent) (*dompayment.IntentResult, error) {
	if intent.OrderID == "" {
		return nil, fmt.Errorf("momo: order id is required")
	}

	amount := intent.Amount.Truncate(0).IntPart()
	requestID := intent.OrderID

	req := createRequest{
		PartnerCode: g.cfg.PartnerCode,
		AccessKey:   g.cfg.AccessKey,
		RequestID:   requestID,
		Amount:      amount,
		OrderID:     intent.OrderID,
		OrderInfo:   intent.Description,
		RedirectURL: g.cfg.RedirectURL,
		IPNURL:      g.cfg.IPNURL,
		ExtraData:   "",
		RequestType: requestTypeCaptureWallet,
		Lang:        "vi",
	}
	req.Signature = g.BuildSignature(map[string]string{
		"accessKey":   req.AccessKey,
		"amount":      strconv.FormatInt(req.Amount, 10),
		"extraData":   req.ExtraData,
		"ipnUrl":      req.IPNURL,
		"orderId":     req.OrderID,
		"orderInfo":   req.OrderInfo,
		"partnerCode": req.PartnerCode,
		"redirectUrl": req.RedirectURL,
		"requestId":   req.RequestID,
		"requestType": req.RequestType,
	})

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("momo: marshal create request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("momo: build create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpRes, err := g.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("momo: create payment: %w", err)
	}
	defer httpRes.Body.Close()

	var res createResponse
	if err := json.NewDecoder(httpRes.Body).Decode(&res); err != nil {
		return nil, fmt.Errorf("momo: decode create response: %w", err)
	}
	if res.ResultCode != resultCodeSuccess {
		return nil, fmt.Errorf("momo: create payment rejected: %s (code %d)", res.Message, res.ResultCode)
	}

	return &dompayment.IntentResult{
		RedirectURL: res.PayURL,
		ProviderRef: res.RequestID,
	}, nil
}

type ipnPayload struct {
	PartnerCode  string `json:"partnerCode"`
	OrderID      string `json:"orderId"`
	RequestID    string `json:"requestId"`
	Amount       int64  `json:"amount"`
	OrderInfo    string `json:"orderInfo"`
	OrderType    string `json:"orderType"`
	TransID      int64  `json:"transId"`
	ResultCode   int    `json:"resultCode"`
	Message      string `json:"message"`
	PayType      string `json:"payType"`
	ResponseTime int64  `json:"responseTime"`
	ExtraData    string `json:"extraData"`
	Signature    string `json:"signature"`
}

// VerifyCallback authenticates the peer against the allow-list, checks the
// payload signature, and decodes the result. A signature mismatch is an
// unsucceeded result so the reconciler compensates and still acknowledges.
func (g *Gateway) VerifyCallback(cb dompayment.Callback) (*dompayment.CallbackResult, error) {
	if !g.TrustedSource(cb.SourceIP) {
		return nil, ErrUntrustedSource
	}
	if len(cb.Body) == 0 {
		return nil, fmt.Errorf("momo: empty callback body")
	}

	var p ipnPayload
	if err := json.Unmarshal(cb.Body, &p); err != nil {
		return nil, fmt.Errorf("momo: decode callback: %w", err)
	}

	result := &dompayment.CallbackResult{
		OrderID:       p.OrderID,
		TransactionID: strconv.FormatInt(p.TransID, 10),
		ProviderRef:   p.RequestID,
		Amount:        decimal.NewFromInt(p.Amount),
		ResultCode:    strconv.Itoa(p.ResultCode),
		Message:       p.Message,
		Raw:           string(cb.Body),
	}

	expected := g.BuildSignature(map[string]string{
		"accessKey":    g.cfg.AccessKey,
		"amount":       strconv.FormatInt(p.Amount, 10),
		"extraData":    p.ExtraData,
		"message":      p.Message,
		"orderId":      p.OrderID,
		"orderInfo":    p.OrderInfo,
		"orderType":    p.OrderType,
		"partnerCode":  p.PartnerCode,
		"payType":      p.PayType,
		"requestId":    p.RequestID,
		"responseTime": strconv.FormatInt(p.ResponseTime, 10),
		"resultCode":   strconv.Itoa(p.ResultCode),
		"transId":      strconv.FormatInt(p.TransID, 10),
	})
	if !hmac.Equal([]byte(p.Signature), []byte(expected)) {
		result.Succeeded = false
		result.Message = "invalid signature"
		return result, nil
	}

	result.Succeeded = p.ResultCode == resultCodeSuccess
	return result, nil
}

// BuildSignature is HMAC-SHA256 over "k1=v1&k2=v2..." with keys alphabetized,
// hex-encoded. Empty values are kept: the provider signs them as "key=".
func (g *Gateway) BuildSignature(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(params[k])
	}

	mac := hmac.New(sha256.New, []byte(g.cfg.SecretKey))
	mac.Write([]byte(b.String()))
	return hex.EncodeToString(mac.Sum(nil))
}

// AckSignature signs our acknowledgment body the same way the provider signs
// the IPN.
func (g *Gateway) AckSignature(orderID, requestID, message string, resultCode int, responseTime int64) string {
	return g.BuildSignature(map[string]string{
		"accessKey":    g.cfg.AccessKey,
		"message":      message,
		"orderId":      orderID,
		"partnerCode":  g.cfg.PartnerCode,
		"requestId":    requestID,
		"responseTime": strconv.FormatInt(responseTime, 10),
		"resultCode":   strconv.Itoa(resultCode),
	})
}
