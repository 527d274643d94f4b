package memory

import (
	"context"
	"sync"

	"github.com/fluxshorts/fluxshorts/src/internal/domain"
)

type InMemoryUserRepo struct {
	users map[string]domain.User
	mu    sync.RWMutex
}

func NewUserRepo() *InMemoryUserRepo {
	return &InMemoryUserRepo{
		users: make(map[string]domain.User),
	}
}

func (r *InMemoryUserRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &user, nil
}

func (r *InMemoryUserRepo) Save(ctx context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.users[user.ID] = *user
	return nil
}
