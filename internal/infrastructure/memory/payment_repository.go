package memory

import (
	"context"
	"fmt"
	"sync"

	domain "github.com/namprobe/NekoViBE-sub001/internal/domain/payment"
)

// PaymentRepository keys payments by order, matching the one-payment-per-order
// model.
type PaymentRepository struct {
	mu      sync.RWMutex
	byOrder map[string]*domain.Payment
}

func NewPaymentRepository() *PaymentRepository {
	return &PaymentRepository{
		byOrder: make(map[string]*domain.Payment),
	}
}

func (r *PaymentRepository) Insert(ctx context.Context, payment *domain.Payment) error {
	_ = ctx
	if payment == nil || payment.OrderID == "" {
		return fmt.Errorf("payment repository: order id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byOrder[payment.OrderID]; exists {
		return domain.ErrConflict
	}

	r.byOrder[payment.OrderID] = payment.Clone()
	return nil
}

func (r *PaymentRepository) GetByOrderID(ctx context.Context, orderID string) (*domain.Payment, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	payment, ok := r.byOrder[orderID]
	if !ok {
		return nil, domain.ErrNotFound
	}

	return payment.Clone(), nil
}

func (r *PaymentRepository) Update(ctx context.Context, payment *domain.Payment) error {
	_ = ctx
	if payment == nil || payment.OrderID == "" {
		return fmt.Errorf("payment repository: order id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byOrder[payment.OrderID]; !exists {
		return domain.ErrNotFound
	}

	r.byOrder[payment.OrderID] = payment.Clone()
	return nil
}

func (r *PaymentRepository) snapshot() map[string]*domain.Payment {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snap := make(map[string]*domain.Payment, len(r.byOrder))
	for id, p := range r.byOrder {
		snap[id] = p.Clone()
	}
	return snap
}

func (r *PaymentRepository) restore(snap map[string]*domain.Payment) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byOrder = snap
}
