package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fluxshorts/fluxshorts/src/internal/domain"
)

type stubSource struct {
	movies []domain.Movie
	err    error
	calls  atomic.Int32
}

func (s *stubSource) ListMovies(ctx context.Context) ([]domain.Movie, error) {
	s.calls.Add(1)
	return s.movies, s.err
}

type mapCache struct {
	mu     sync.Mutex
	movies []domain.Movie
	ok     bool
}

func (c *mapCache) GetMovies(ctx context.Context) ([]domain.Movie, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.movies, c.ok
}

func (c *mapCache) SetMovies(ctx context.Context, movies []domain.Movie) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.movies, c.ok = movies, true
}

func sampleMovies() []domain.Movie {
	mk := func(id, genre string) domain.Movie {
		return domain.Movie{ID: id, Title: "Movie " + id, Metadata: domain.MovieMetadata{Genre: genre, Year: 2024}}
	}
	return []domain.Movie{
		mk("1", "Drama"), mk("2", "Comedy"), mk("3", "Drama"),
		mk("4", "Action"), mk("5", "Drama"),
	}
}

func TestCatalog_Slices(t *testing.T) {
	ctx := context.Background()
	svc := NewCatalogService(&stubSource{movies: sampleMovies()}, nil)

	assert.Len(t, svc.All(ctx), 5)

	featured := svc.Featured(ctx)
	require.Len(t, featured, 3)
	assert.Equal(t, "1", featured[0].ID)
	assert.Equal(t, "3", featured[2].ID)

	recent := svc.Recent(ctx)
	require.Len(t, recent, 2)
	assert.Equal(t, "4", recent[0].ID)

	related := svc.ByGenre(ctx, "Drama", "3")
	require.Len(t, related, 2)
	assert.Equal(t, "1", related[0].ID)
	assert.Equal(t, "5", related[1].ID)

	m, err := svc.ByID(ctx, "4")
	require.NoError(t, err)
	assert.Equal(t, "Action", m.Metadata.Genre)

	_, err = svc.ByID(ctx, "404")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCatalog_ShortList(t *testing.T) {
	ctx := context.Background()
	svc := NewCatalogService(&stubSource{movies: sampleMovies()[:2]}, nil)

	assert.Len(t, svc.Featured(ctx), 2)
	assert.Empty(t, svc.Recent(ctx))
	assert.NotNil(t, svc.Recent(ctx))
}

func TestCatalog_SourceErrorDegradesToEmpty(t *testing.T) {
	ctx := context.Background()
	svc := NewCatalogService(&stubSource{err: errors.New("503")}, nil)

	assert.Empty(t, svc.All(ctx))
	assert.Empty(t, svc.Featured(ctx))
	assert.Empty(t, svc.ByGenre(ctx, "Drama", ""))
	_, err := svc.ByID(ctx, "1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCatalog_UsesCache(t *testing.T) {
	ctx := context.Background()
	src := &stubSource{movies: sampleMovies()}
	cache := &mapCache{}
	svc := NewCatalogService(src, cache)

	svc.All(ctx)
	svc.Featured(ctx)
	svc.ByGenre(ctx, "Drama", "")

	assert.Equal(t, int32(1), src.calls.Load())
	assert.True(t, cache.ok)
}

func TestCatalog_ErrorIsNotCached(t *testing.T) {
	ctx := context.Background()
	src := &stubSource{err: errors.New("down")}
	cache := &mapCache{}
	svc := NewCatalogService(src, cache)

	svc.All(ctx)
	svc.All(ctx)

	assert.Equal(t, int32(2), src.calls.Load())
	assert.False(t, cache.ok)
}
