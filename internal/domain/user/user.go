package user

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("user: not found")

// User is the minimal account view checkout needs: identity, contact
// snapshot source, and an active flag.
type User struct {
	ID      string
	Name    string
	Email   string
	Phone   string
	Address string
	Active  bool
}

type Repository interface {
	Get(ctx context.Context, id string) (*User, error)
}
