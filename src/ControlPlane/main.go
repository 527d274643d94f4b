package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fluxshorts/fluxshorts/src/internal/adapters/catalog"
	"github.com/fluxshorts/fluxshorts/src/internal/adapters/memory"
	"github.com/fluxshorts/fluxshorts/src/internal/adapters/postgres"
	"github.com/fluxshorts/fluxshorts/src/internal/adapters/redis"
	"github.com/fluxshorts/fluxshorts/src/internal/config"
	"github.com/fluxshorts/fluxshorts/src/internal/log"
	"github.com/fluxshorts/fluxshorts/src/internal/ports"
	"github.com/fluxshorts/fluxshorts/src/internal/services"
)

const upgradeRoute = "/subscribe"

type repositories struct {
	users         ports.UserRepository
	subscriptions ports.SubscriptionRepository
	progress      ports.ProgressRepository
	db            *sql.DB
}

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_FILE"), "path to YAML or JSON config file")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	log.Configure(log.Config{Level: cfg.LogLevel, Service: "fluxshorts-control-plane"})
	logger := log.WithComponent("main")
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}

	logger.Info().Str("port", cfg.Port).Msg("starting FluxShorts Control Plane")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 1. Initialize Adapters
	repos, err := openRepositories(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize storage")
	}
	if repos.db != nil {
		defer repos.db.Close()
	}

	var cache ports.MovieCache
	if cfg.Redis.Addr != "" {
		client, err := redis.NewClient(redis.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			logger.Warn().Err(err).Msg("redis unavailable, catalog cache disabled")
		} else {
			defer client.Close()
			cache = redis.NewMovieCache(client, cfg.CatalogCacheTTL.Std(), log.WithComponent("cache"))
			logger.Info().Str("addr", cfg.Redis.Addr).Msg("catalog cache enabled")
		}
	}

	if cfg.CatalogURL == "" {
		logger.Warn().Msg("CATALOG_URL not set, movie lists will be empty")
	}

	// 2. Services
	catalogSvc := services.NewCatalogService(catalog.NewClient(cfg.CatalogURL), cache)
	entitlementSvc := services.NewEntitlementService(repos.subscriptions)
	playbackSvc := services.NewPlaybackService(
		entitlementSvc,
		repos.progress,
		services.RouteNavigator{Route: upgradeRoute},
		services.PlaybackConfig{
			Threshold:    cfg.Paywall.ThresholdSeconds,
			CheckTimeout: cfg.Paywall.CheckTimeout.Std(),
		},
	)

	reaper := services.NewSessionReaper(playbackSvc, cfg.Session.ReapInterval.Std(), cfg.Session.IdleTimeout.Std())
	go reaper.StartMonitoring(ctx)

	// 3. HTTP
	authMW := NewAuthMiddleware(ctx, repos.users, cfg.OIDC)
	api := NewAPI(catalogSvc, entitlementSvc, playbackSvc, repos.progress, authMW)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           api.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			logger.Error().Err(err).Msg("server failed")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("http shutdown incomplete")
	}
	playbackSvc.Shutdown(shutdownCtx)
	logger.Info().Msg("control plane stopped")
}

func loadConfig(path string) (config.ServerConfig, error) {
	var cfg config.ServerConfig
	if err := config.LoadDotEnv(); err != nil {
		return cfg, err
	}
	if path != "" {
		if err := config.Load(path, &cfg); err != nil {
			return cfg, err
		}
	}
	if err := cfg.ApplyEnv(); err != nil {
		return cfg, err
	}
	cfg.Defaults()
	return cfg, nil
}

// openRepositories connects to Postgres, or falls back to in-memory
// repositories when no DATABASE_URL is configured.
func openRepositories(cfg config.ServerConfig) (*repositories, error) {
	logger := log.WithComponent("postgres")

	if cfg.DatabaseURL == "" {
		logger.Warn().Msg("no DATABASE_URL set, using in-memory storage")
		return &repositories{
			users:         memory.NewUserRepo(),
			subscriptions: memory.NewSubscriptionRepo(),
			progress:      memory.NewProgressRepo(),
		}, nil
	}

	db, err := postgres.NewConnection(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	users := postgres.NewUserRepo(db)
	subs := postgres.NewSubscriptionRepo(db)
	history := postgres.NewHistoryRepo(db)
	if err := postgres.InitSchemas(users, subs, history); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info().Msg("connected to Postgres")
	return &repositories{
		users:         users,
		subscriptions: subs,
		progress:      history,
		db:            db,
	}, nil
}
