package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/fluxshorts/fluxshorts/src/internal/domain"
)

const moviesKey = "fluxshorts:catalog:movies"

// Config holds Redis connection configuration.
type Config struct {
	Addr     string // host:port
	Password string
	DB       int
}

// MovieCache keeps the catalog movie list in Redis with a TTL.
type MovieCache struct {
	client *goredis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

func NewClient(cfg Config) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	return client, nil
}

func NewMovieCache(client *goredis.Client, ttl time.Duration, logger zerolog.Logger) *MovieCache {
	return &MovieCache{client: client, ttl: ttl, logger: logger}
}

func (c *MovieCache) GetMovies(ctx context.Context) ([]domain.Movie, bool) {
	data, err := c.client.Get(ctx, moviesKey).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false
	}
	if err != nil {
		c.logger.Warn().Err(err).Msg("redis get failed")
		return nil, false
	}

	var movies []domain.Movie
	if err := json.Unmarshal(data, &movies); err != nil {
		c.logger.Warn().Err(err).Msg("cached movie list is corrupt")
		return nil, false
	}
	return movies, true
}

func (c *MovieCache) SetMovies(ctx context.Context, movies []domain.Movie) {
	data, err := json.Marshal(movies)
	if err != nil {
		c.logger.Warn().Err(err).Msg("json marshal failed")
		return
	}
	if err := c.client.Set(ctx, moviesKey, data, c.ttl).Err(); err != nil {
		c.logger.Warn().Err(err).Msg("redis set failed")
	}
}
