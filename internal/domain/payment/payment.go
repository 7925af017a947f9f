package payment

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound       = errors.New("payment: not found")
	ErrConflict       = errors.New("payment: already exists")
	ErrInvalidAmount  = errors.New("payment: amount must be zero or greater")
	ErrUnknownGateway = errors.New("payment: unknown gateway")
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Method identifies how an order is paid. Online methods map 1:1 onto a
// registered gateway adapter.
type Method string

const (
	MethodCOD   Method = "cod"
	MethodVNPay Method = "vnpay"
	MethodMoMo  Method = "momo"
)

func (m Method) Online() bool { return m != MethodCOD }

// Payment is the single payment record an order owns. It is created in the
// same transaction as the order and settled exactly once by a gateway
// callback.
type Payment struct {
	ID            string
	OrderID       string
	Method        Method
	Amount        decimal.Decimal
	Status        Status
	TransactionID string
	// RawResponse keeps the processor payload verbatim for audit.
	RawResponse string
	PaidAt      *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func New(id, orderID string, method Method, amount decimal.Decimal) (*Payment, error) {
	if amount.IsNegative() {
		return nil, ErrInvalidAmount
	}
	now := time.Now().UTC()
	return &Payment{
		ID:        id,
		OrderID:   orderID,
		Method:    method,
		Amount:    amount,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (p *Payment) MarkCompleted(transactionID, raw string) {
	now := time.Now().UTC()
	p.Status = StatusCompleted
	p.TransactionID = transactionID
	p.RawResponse = raw
	p.PaidAt = &now
	p.UpdatedAt = now
}

func (p *Payment) MarkFailed(raw string) {
	p.Status = StatusFailed
	p.RawResponse = raw
	p.UpdatedAt = time.Now().UTC()
}

func (p *Payment) Clone() *Payment {
	if p == nil {
		return nil
	}
	clone := *p
	if p.PaidAt != nil {
		paidAt := *p.PaidAt
		clone.PaidAt = &paidAt
	}
	return &clone
}
