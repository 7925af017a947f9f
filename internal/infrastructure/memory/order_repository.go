package memory

import (
	"context"
	"fmt"
	"sync"

	domain "github.com/namprobe/NekoViBE-sub001/internal/domain/order"
)

type OrderRepository struct {
	mu     sync.RWMutex
	orders map[string]*domain.Order
}

func NewOrderRepository() *OrderRepository {
	return &OrderRepository{
		orders: make(map[string]*domain.Order),
	}
}

func (r *OrderRepository) Insert(ctx context.Context, order *domain.Order) error {
	_ = ctx
	if order == nil || order.ID == "" {
		return fmt.Errorf("order repository: id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.orders[order.ID]; exists {
		return domain.ErrConflict
	}

	r.orders[order.ID] = order.Clone()
	return nil
}

func (r *OrderRepository) Get(ctx context.Context, id string) (*domain.Order, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	order, ok := r.orders[id]
	if !ok {
		return nil, domain.ErrNotFound
	}

	return order.Clone(), nil
}

func (r *OrderRepository) FindProcessing(ctx context.Context, id string) (*domain.Order, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	order, ok := r.orders[id]
	if !ok || order.Status != domain.StatusProcessing {
		return nil, domain.ErrNotFound
	}

	return order.Clone(), nil
}

func (r *OrderRepository) Update(ctx context.Context, order *domain.Order) error {
	_ = ctx
	if order == nil || order.ID == "" {
		return fmt.Errorf("order repository: id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.orders[order.ID]; !exists {
		return domain.ErrNotFound
	}

	r.orders[order.ID] = order.Clone()
	return nil
}

func (r *OrderRepository) snapshot() map[string]*domain.Order {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snap := make(map[string]*domain.Order, len(r.orders))
	for id, o := range r.orders {
		snap[id] = o.Clone()
	}
	return snap
}

func (r *OrderRepository) restore(snap map[string]*domain.Order) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders = snap
}
