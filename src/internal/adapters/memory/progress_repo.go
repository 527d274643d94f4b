package memory

import (
	"context"
	"sync"

	"github.com/fluxshorts/fluxshorts/src/internal/domain"
)

type progressKey struct {
	userID  string
	movieID string
}

type InMemoryProgressRepo struct {
	progress map[progressKey]domain.WatchProgress
	mu       sync.RWMutex
}

func NewProgressRepo() *InMemoryProgressRepo {
	return &InMemoryProgressRepo{
		progress: make(map[progressKey]domain.WatchProgress),
	}
}

// GetProgress returns nil, nil when nothing was recorded yet.
func (r *InMemoryProgressRepo) GetProgress(ctx context.Context, userID, movieID string) (*domain.WatchProgress, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.progress[progressKey{userID, movieID}]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (r *InMemoryProgressRepo) SaveProgress(ctx context.Context, p *domain.WatchProgress) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.progress[progressKey{p.UserID, p.MovieID}] = *p
	return nil
}
