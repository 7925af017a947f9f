package payment

import (
	"context"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
)

// Intent carries the contextual metadata a gateway needs to open a payment:
// who is paying, what for, and how much.
type Intent struct {
	OrderID      string
	Amount       decimal.Decimal
	Currency     string
	Description  string
	CustomerName string
	ClientIP     string
	CreatedAt    time.Time
}

// IntentResult is the provider handle for an opened payment. RedirectURL is
// where the customer completes the payment; a blank URL is a hard failure for
// online methods.
type IntentResult struct {
	RedirectURL string
	ProviderRef string
}

// Callback is the raw inbound notification. Query-string gateways populate
// Query, JSON-body gateways populate Body. SourceIP is the peer address for
// allow-list checks.
type Callback struct {
	Query    url.Values
	Body     []byte
	SourceIP string
}

// CallbackResult is the structured outcome of verifying an inbound callback.
// Succeeded=false with a populated ResultCode covers both a declined payment
// and a failed signature check; the reconciler compensates either way.
type CallbackResult struct {
	OrderID       string
	TransactionID string
	// ProviderRef is the processor's own request correlation id, echoed back
	// in acknowledgements that require it.
	ProviderRef string
	Amount      decimal.Decimal
	ResultCode  string
	Message     string
	Succeeded   bool
	// Raw is the processor payload as received, persisted on the payment.
	Raw string
}

// Gateway is the outbound port for a payment provider. Adapters live in
// infrastructure and are resolved through the Registry at startup.
type Gateway interface {
	Method() Method
	CreateIntent(ctx context.Context, intent Intent) (*IntentResult, error)
	VerifyCallback(cb Callback) (*CallbackResult, error)
	BuildSignature(params map[string]string) string
}

// Registry maps a payment method onto its gateway adapter. It is assembled
// once at composition time and read-only afterwards.
type Registry map[Method]Gateway

func (r Registry) Resolve(m Method) (Gateway, error) {
	gw, ok := r[m]
	if !ok {
		return nil, ErrUnknownGateway
	}
	return gw, nil
}
