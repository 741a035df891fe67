package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/gokatarajesh/score-duel/internal/bot"
	"github.com/gokatarajesh/score-duel/internal/config"
	"github.com/gokatarajesh/score-duel/internal/db/repository"
	"github.com/gokatarajesh/score-duel/internal/feed"
	"github.com/gokatarajesh/score-duel/internal/logging"
	"github.com/gokatarajesh/score-duel/internal/match"
	"github.com/gokatarajesh/score-duel/internal/match/store/memory"
	"github.com/gokatarajesh/score-duel/internal/match/store/redisstore"
	"github.com/gokatarajesh/score-duel/internal/server"
	ws "github.com/gokatarajesh/score-duel/pkg/http/ws"
)

// Application aggregates shared infrastructure (store, feed, HTTP server).
type Application struct {
	cfg    *config.App
	logger zerolog.Logger

	pool  *pgxpool.Pool
	redis *redis.Client
	http  *http.Server

	broadcaster *feed.Broadcaster
	sweeper     *match.Sweeper
	bgCancels   []context.CancelFunc
}

// backend is the store selected by STORE_BACKEND plus what it needs at runtime.
type backend struct {
	store match.Store
	ping  server.PingFunc
	pool  *pgxpool.Pool
	redis *redis.Client
}

// New bootstraps logger, store backend, engine, feed and HTTP server.
func New(ctx context.Context, cfg *config.App) (*Application, error) {
	logger := logging.New(cfg.Name, cfg.Env, cfg.LogLevel)
	logger.Info().Str("store", cfg.Store.Backend).Msg("starting application bootstrap")

	be, err := openBackend(ctx, cfg)
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	wsHub := ws.NewHub(logger)
	broadcaster := feed.NewBroadcaster(be.redis, wsHub, cfg.Feed.Channel, logger)

	var notifier match.Notifier
	if be.redis != nil {
		notifier = feed.NewPublisher(be.redis, cfg.Feed.Channel, logger)
	} else {
		// no shared bus without Redis; events only reach players connected to this instance
		notifier = feed.NewLocal(broadcaster)
	}

	engine := match.NewEngine(be.store, match.EngineOptions{
		ClaimAttempts: cfg.Matchmaking.ClaimAttempts,
		ScanPage:      cfg.Matchmaking.ScanPage,
		Notifier:      notifier,
		Metrics:       match.NewMetrics(registry),
	}, logger)

	var sweeper *match.Sweeper
	if ttl := cfg.Matchmaking.LobbyTTL; ttl > 0 {
		sweeper = match.NewSweeper(engine, ttl, cfg.Matchmaking.SweepInterval, logger)
	}

	gateway := bot.NewGateway(engine, bot.Options{
		Prefix:       cfg.Bot.CommandPrefix,
		HistoryLimit: cfg.Bot.HistoryLimit,
	}, logger)

	apiServer := server.NewHTTPServer(cfg, logger, registry, be.ping, []server.RouteRegistrar{
		match.NewHTTPHandlers(engine, logger),
		bot.NewHTTPHandler(gateway, logger),
	}, feed.NewHandler(wsHub, logger))

	return &Application{
		cfg:         cfg,
		logger:      logger,
		pool:        be.pool,
		redis:       be.redis,
		http:        apiServer,
		broadcaster: broadcaster,
		sweeper:     sweeper,
		bgCancels:   make([]context.CancelFunc, 0, 2),
	}, nil
}

func openBackend(ctx context.Context, cfg *config.App) (*backend, error) {
	switch cfg.Store.Backend {
	case config.BackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		store := redisstore.New(client, redisstore.Options{KeyPrefix: cfg.Redis.KeyPrefix})
		return &backend{store: store, ping: store.Ping, redis: client}, nil

	case config.BackendPostgres:
		connString := fmt.Sprintf("%s pool_max_conns=%d", cfg.Postgres.DSN(), cfg.Postgres.MaxConns)
		pool, err := pgxpool.New(ctx, connString)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		return &backend{store: repository.NewMatchRepository(pool), ping: pool.Ping, pool: pool}, nil

	case config.BackendMemory:
		return &backend{store: memory.New()}, nil

	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

// Run starts the HTTP server and waits for termination signals.
func (a *Application) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	a.startBackgroundWorkers(ctx)

	go func() {
		a.logger.Info().Str("addr", a.cfg.HTTPAddr).Msg("http server listening")
		if err := a.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		a.logger.Info().Str("signal", sig.String()).Msg("shutdown signal received")
	case err := <-errCh:
		return fmt.Errorf("http server error: %w", err)
	case <-ctx.Done():
		a.logger.Warn().Msg("context canceled")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.GracefulShutdownTimeout)
	defer cancel()

	if err := a.http.Shutdown(shutdownCtx); err != nil {
		a.logger.Error().Err(err).Msg("http shutdown error")
	}

	for _, cancel := range a.bgCancels {
		cancel()
	}

	if a.pool != nil {
		a.pool.Close()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Error().Err(err).Msg("redis shutdown error")
		}
	}

	a.logger.Info().Msg("shutdown complete")
	return nil
}

func (a *Application) startBackgroundWorkers(ctx context.Context) {
	if a.broadcaster != nil && a.redis != nil {
		bgCtx, cancel := context.WithCancel(ctx)
		a.bgCancels = append(a.bgCancels, cancel)
		go func() {
			if err := a.broadcaster.Run(bgCtx); err != nil && !errors.Is(err, context.Canceled) {
				a.logger.Warn().Err(err).Msg("match feed broadcaster stopped")
			}
		}()
	}

	if a.sweeper != nil {
		bgCtx, cancel := context.WithCancel(ctx)
		a.bgCancels = append(a.bgCancels, cancel)
		go func() {
			if err := a.sweeper.Run(bgCtx); err != nil && !errors.Is(err, context.Canceled) {
				a.logger.Warn().Err(err).Msg("lobby sweeper stopped")
			}
		}()
	}
}
