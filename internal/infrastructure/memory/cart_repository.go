package memory

import (
	"context"
	"sync"

	domain "github.com/namprobe/NekoViBE-sub001/internal/domain/cart"
)

// CartRepository is the in-process stand-in for the Redis cart tier. Carts
// live outside the unit of work, so there is no snapshot hook here.
type CartRepository struct {
	mu    sync.RWMutex
	carts map[string]*domain.Cart
}

func NewCartRepository() *CartRepository {
	return &CartRepository{
		carts: make(map[string]*domain.Cart),
	}
}

func (r *CartRepository) Get(ctx context.Context, userID string) (*domain.Cart, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.carts[userID]
	if !ok || len(c.Items) == 0 {
		return nil, domain.ErrNotFound
	}

	cp := &domain.Cart{
		UserID: c.UserID,
		Items:  append([]domain.Item(nil), c.Items...),
	}
	return cp, nil
}

func (r *CartRepository) AddItem(ctx context.Context, userID, productID string, delta int) error {
	_ = ctx

	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.carts[userID]
	if !ok {
		c = &domain.Cart{UserID: userID}
		r.carts[userID] = c
	}

	for i, it := range c.Items {
		if it.ProductID != productID {
			continue
		}
		qty := it.Quantity + delta
		if qty <= 0 {
			c.Items = append(c.Items[:i], c.Items[i+1:]...)
		} else {
			c.Items[i].Quantity = qty
		}
		return nil
	}

	if delta > 0 {
		c.Items = append(c.Items, domain.Item{ProductID: productID, Quantity: delta})
	}
	return nil
}

func (r *CartRepository) Clear(ctx context.Context, userID string) error {
	_ = ctx

	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.carts, userID)
	return nil
}
