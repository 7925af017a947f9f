package payment

import "context"

type Repository interface {
	Insert(ctx context.Context, payment *Payment) error
	GetByOrderID(ctx context.Context, orderID string) (*Payment, error)
	Update(ctx context.Context, payment *Payment) error
}
