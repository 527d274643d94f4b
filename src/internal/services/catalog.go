package services

import (
	"context"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/fluxshorts/fluxshorts/src/internal/domain"
	"github.com/fluxshorts/fluxshorts/src/internal/log"
	"github.com/fluxshorts/fluxshorts/src/internal/metrics"
	"github.com/fluxshorts/fluxshorts/src/internal/ports"
)

const featuredCount = 3

// CatalogService slices the external movie list for the browse screens.
// Fetch failures degrade to an empty list so screens render instead of erroring.
type CatalogService struct {
	source ports.MovieSource
	cache  ports.MovieCache // optional
	group  singleflight.Group
	logger zerolog.Logger
}

func NewCatalogService(source ports.MovieSource, cache ports.MovieCache) *CatalogService {
	return &CatalogService{
		source: source,
		cache:  cache,
		logger: log.WithComponent("catalog"),
	}
}

func (s *CatalogService) All(ctx context.Context) []domain.Movie {
	if s.cache != nil {
		if movies, ok := s.cache.GetMovies(ctx); ok {
			metrics.RecordCache(metrics.CacheHit)
			return movies
		}
		metrics.RecordCache(metrics.CacheMiss)
	} else {
		metrics.RecordCache(metrics.CacheBypass)
	}

	v, err, _ := s.group.Do("movies", func() (any, error) {
		movies, err := s.source.ListMovies(ctx)
		if err != nil {
			return nil, err
		}
		if s.cache != nil {
			s.cache.SetMovies(ctx, movies)
		}
		return movies, nil
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to fetch movies")
		return []domain.Movie{}
	}

	movies := v.([]domain.Movie)
	s.logger.Debug().Int("count", len(movies)).Msg("movies loaded")
	return movies
}

func (s *CatalogService) ByID(ctx context.Context, id string) (*domain.Movie, error) {
	for _, m := range s.All(ctx) {
		if m.ID == id {
			return &m, nil
		}
	}
	return nil, domain.ErrNotFound
}

// Featured returns the first three movies.
func (s *CatalogService) Featured(ctx context.Context) []domain.Movie {
	movies := s.All(ctx)
	if len(movies) > featuredCount {
		movies = movies[:featuredCount]
	}
	return movies
}

// Recent returns everything after the featured movies.
func (s *CatalogService) Recent(ctx context.Context) []domain.Movie {
	movies := s.All(ctx)
	if len(movies) <= featuredCount {
		return []domain.Movie{}
	}
	return movies[featuredCount:]
}

// ByGenre returns movies of the genre, skipping excludeID.
func (s *CatalogService) ByGenre(ctx context.Context, genre, excludeID string) []domain.Movie {
	out := []domain.Movie{}
	for _, m := range s.All(ctx) {
		if m.Metadata.Genre == genre && m.ID != excludeID {
			out = append(out, m)
		}
	}
	return out
}
