package ports

import (
	"context"

	"github.com/fluxshorts/fluxshorts/src/internal/domain"
)

// Player controls the video engine of one playback screen.
type Player interface {
	Play(ctx context.Context) error
	Pause(ctx context.Context) error
	Replay(ctx context.Context) error
}

// EntitlementChecker answers whether the current viewer has paid access.
type EntitlementChecker interface {
	CheckEntitlement(ctx context.Context) (bool, error)
}

// EntitlementFunc adapts a plain function to EntitlementChecker.
type EntitlementFunc func(ctx context.Context) (bool, error)

func (f EntitlementFunc) CheckEntitlement(ctx context.Context) (bool, error) {
	return f(ctx)
}

// EntitlementProvider hands out a checker bound to one viewer. An empty
// viewer id denotes an anonymous viewer.
type EntitlementProvider interface {
	CheckerFor(viewerID string) EntitlementChecker
}

// Navigator moves the viewer to the upgrade/checkout flow.
type Navigator interface {
	OpenUpgrade(ctx context.Context) (string, error)
}

type SubscriptionRepository interface {
	// Latest returns the most recently created subscription for the user,
	// or domain.ErrNotFound.
	Latest(ctx context.Context, userID string) (*domain.Subscription, error)
	Save(ctx context.Context, sub *domain.Subscription) error
}

type UserRepository interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	Save(ctx context.Context, user *domain.User) error
}

type ProgressRepository interface {
	GetProgress(ctx context.Context, userID, movieID string) (*domain.WatchProgress, error)
	SaveProgress(ctx context.Context, p *domain.WatchProgress) error
}

// MovieSource fetches the full movie list from the catalog backend.
type MovieSource interface {
	ListMovies(ctx context.Context) ([]domain.Movie, error)
}

// MovieCache stores the movie list between catalog fetches.
type MovieCache interface {
	GetMovies(ctx context.Context) ([]domain.Movie, bool)
	SetMovies(ctx context.Context, movies []domain.Movie)
}
