package vnpay

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	dompayment "github.com/namprobe/NekoViBE-sub001/internal/domain/payment"
)

// Result codes on the inbound IPN and on our acknowledgment, per the
// provider's integration contract.
const (
	CodeSuccess          = "00"
	CodeOrderNotFound    = "01"
	CodeAlreadyConfirmed = "02"
	CodeInvalidSignature = "97"
	CodeUnknownError     = "99"
)

const (
	version     = "2.1.0"
	commandPay  = "pay"
	orderType   = "other"
	locale      = "vn"
	dateLayout  = "20060102150405"
	paramPrefix = "vnp_"
)

// Config carries merchant credentials and endpoints. The secret never leaves
// this package.
type Config struct {
	TmnCode    string
	HashSecret string
	PayURL     string
	ReturnURL  string
}

// Gateway builds the hosted-payment redirect URL locally and verifies the
// query-string IPN. The provider signs with HMAC-SHA512 over the sorted,
// url-encoded parameter set.
type Gateway struct {
	cfg Config
}

func New(cfg Config) *Gateway {
	return &Gateway{cfg: cfg}
}

func (g *Gateway) Method() dompayment.Method { return dompayment.MethodVNPay }

// CreateIntent assembles the redirect URL. No provider round-trip happens
// here; the provider learns about the payment when the customer lands on the
// URL.
func (g *Gateway) CreateIntent(ctx context.Context, intent dompayment.Intent) (*dompayment.IntentResult, error) {
	_ = ctx
	if intent.OrderID == "" {
		return nil, fmt.Errorf("vnpay: order id is required")
	}

	// Amounts are sent in minor units: VND has none, so multiply by 100 per
	// the provider's convention.
	amount := intent.Amount.Mul(decimal.NewFromInt(100)).Truncate(0).String()

	params := map[string]string{
		"vnp_Version":    version,
		"vnp_Command":    commandPay,
		"vnp_TmnCode":    g.cfg.TmnCode,
		"vnp_Amount":     amount,
		"vnp_CurrCode":   intent.Currency,
		"vnp_TxnRef":     intent.OrderID,
		"vnp_OrderInfo":  intent.Description,
		"vnp_OrderType":  orderType,
		"vnp_Locale":     locale,
		"vnp_ReturnUrl":  g.cfg.ReturnURL,
		"vnp_IpAddr":     intent.ClientIP,
		"vnp_CreateDate": intent.CreatedAt.Format(dateLayout),
	}

	query := encodeSorted(params)
	signature := g.BuildSignature(params)

	return &dompayment.IntentResult{
		RedirectURL: g.cfg.PayURL + "?" + query + "&vnp_SecureHash=" + signature,
		ProviderRef: intent.OrderID,
	}, nil
}

// VerifyCallback checks the IPN signature and decodes the transaction result.
// A bad signature is reported as an unsucceeded result, not an error: the
// reconciler compensates the order and still acknowledges the provider.
func (g *Gateway) VerifyCallback(cb dompayment.Callback) (*dompayment.CallbackResult, error) {
	q := cb.Query
	if len(q) == 0 {
		return nil, fmt.Errorf("vnpay: empty callback query")
	}

	received := q.Get("vnp_SecureHash")
	params := make(map[string]string, len(q))
	for key := range q {
		if !strings.HasPrefix(key, paramPrefix) || key == "vnp_SecureHash" || key == "vnp_SecureHashType" {
			continue
		}
		params[key] = q.Get(key)
	}

	result := &dompayment.CallbackResult{
		OrderID:       q.Get("vnp_TxnRef"),
		TransactionID: q.Get("vnp_TransactionNo"),
		Raw:           q.Encode(),
	}

	expected := g.BuildSignature(params)
	if received == "" || !hmac.Equal([]byte(strings.ToLower(received)), []byte(expected)) {
		result.ResultCode = CodeInvalidSignature
		result.Message = "invalid signature"
		return result, nil
	}

	if raw := q.Get("vnp_Amount"); raw != "" {
		minor, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("vnpay: parse amount %q: %w", raw, err)
		}
		result.Amount = decimal.NewFromInt(minor).Div(decimal.NewFromInt(100))
	}

	responseCode := q.Get("vnp_ResponseCode")
	transactionStatus := q.Get("vnp_TransactionStatus")
	result.ResultCode = responseCode
	result.Succeeded = responseCode == CodeSuccess && transactionStatus == CodeSuccess
	if result.Succeeded {
		result.Message = "payment completed"
	} else {
		result.Message = "payment declined by provider"
	}
	return result, nil
}

// BuildSignature is HMAC-SHA512 over the sorted url-encoded parameters,
// hex-encoded lowercase.
func (g *Gateway) BuildSignature(params map[string]string) string {
	mac := hmac.New(sha512.New, []byte(g.cfg.HashSecret))
	mac.Write([]byte(encodeSorted(params)))
	return hex.EncodeToString(mac.Sum(nil))
}

func encodeSorted(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		if params[k] == "" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(k))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(params[k]))
	}
	return b.String()
}
