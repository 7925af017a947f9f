package memory

import (
	"context"
	"sync"

	domain "github.com/namprobe/NekoViBE-sub001/internal/domain/user"
)

type UserRepository struct {
	mu    sync.RWMutex
	users map[string]*domain.User
}

func NewUserRepository() *UserRepository {
	return &UserRepository{
		users: make(map[string]*domain.User),
	}
}

func (r *UserRepository) Seed(users ...*domain.User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range users {
		cp := *u
		r.users[u.ID] = &cp
	}
}

func (r *UserRepository) Get(ctx context.Context, id string) (*domain.User, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}

	cp := *u
	return &cp, nil
}
