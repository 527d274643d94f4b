package memory

import (
	"context"
	"sync"

	"github.com/fluxshorts/fluxshorts/src/internal/domain"
)

type InMemorySubscriptionRepo struct {
	subs map[string][]domain.Subscription // by user id, insertion order
	mu   sync.RWMutex
}

func NewSubscriptionRepo() *InMemorySubscriptionRepo {
	return &InMemorySubscriptionRepo{
		subs: make(map[string][]domain.Subscription),
	}
}

func (r *InMemorySubscriptionRepo) Latest(ctx context.Context, userID string) (*domain.Subscription, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var latest *domain.Subscription
	for i := range r.subs[userID] {
		s := r.subs[userID][i]
		// Ties go to the later insert, matching ORDER BY created_at DESC on a heap table.
		if latest == nil || !s.CreatedAt.Before(latest.CreatedAt) {
			latest = &s
		}
	}
	if latest == nil {
		return nil, domain.ErrNotFound
	}
	return latest, nil
}

func (r *InMemorySubscriptionRepo) Save(ctx context.Context, sub *domain.Subscription) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.subs[sub.UserID] = append(r.subs[sub.UserID], *sub)
	return nil
}
