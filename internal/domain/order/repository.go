package order

import "context"

type Repository interface {
	Insert(ctx context.Context, order *Order) error
	Get(ctx context.Context, id string) (*Order, error)
	// FindProcessing returns the order only while it is still in
	// StatusProcessing. This is the idempotency barrier for callback
	// reconciliation: an order already settled simply yields ErrNotFound.
	FindProcessing(ctx context.Context, id string) (*Order, error)
	Update(ctx context.Context, order *Order) error
}
