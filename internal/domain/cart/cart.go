package cart

import (
	"context"
	"errors"
)

var (
	ErrNotFound = errors.New("cart: not found")
	ErrEmpty    = errors.New("cart: empty")
)

type Item struct {
	ProductID string
	Quantity  int
}

// Cart is the pre-checkout working set. It lives in the cache tier, not the
// order store, and is cleared after a successful cart checkout.
type Cart struct {
	UserID string
	Items  []Item
}

type Repository interface {
	Get(ctx context.Context, userID string) (*Cart, error)
	// AddItem applies a quantity delta; a non-positive resulting quantity
	// removes the line.
	AddItem(ctx context.Context, userID, productID string, delta int) error
	Clear(ctx context.Context, userID string) error
}
