package memory

import (
	"context"
	"fmt"
	"sync"

	domain "github.com/namprobe/NekoViBE-sub001/internal/domain/product"
)

type ProductRepository struct {
	mu       sync.RWMutex
	products map[string]*domain.Product
}

func NewProductRepository() *ProductRepository {
	return &ProductRepository{
		products: make(map[string]*domain.Product),
	}
}

// Seed loads catalog fixtures outside any transaction.
func (r *ProductRepository) Seed(products ...*domain.Product) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range products {
		r.products[p.ID] = p.Clone()
	}
}

func (r *ProductRepository) Get(ctx context.Context, id string) (*domain.Product, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	product, ok := r.products[id]
	if !ok {
		return nil, domain.ErrNotFound
	}

	return product.Clone(), nil
}

func (r *ProductRepository) Update(ctx context.Context, product *domain.Product) error {
	_ = ctx
	if product == nil || product.ID == "" {
		return fmt.Errorf("product repository: id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.products[product.ID]; !exists {
		return domain.ErrNotFound
	}

	r.products[product.ID] = product.Clone()
	return nil
}

func (r *ProductRepository) snapshot() map[string]*domain.Product {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snap := make(map[string]*domain.Product, len(r.products))
	for id, p := range r.products {
		snap[id] = p.Clone()
	}
	return snap
}

func (r *ProductRepository) restore(snap map[string]*domain.Product) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.products = snap
}
