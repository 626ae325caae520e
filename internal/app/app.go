package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okonomi/yoyaku-go/internal/config"
	"github.com/okonomi/yoyaku-go/internal/postgres"
	"github.com/okonomi/yoyaku-go/internal/redis"
	postgresrepo "github.com/okonomi/yoyaku-go/internal/repository/postgres"
	redisrepo "github.com/okonomi/yoyaku-go/internal/repository/redis"
	"github.com/okonomi/yoyaku-go/internal/service"
	"github.com/okonomi/yoyaku-go/internal/service/calendar"
	"github.com/okonomi/yoyaku-go/internal/sideeffect"
	httpgin "github.com/okonomi/yoyaku-go/internal/transport/http/gin"
	"github.com/okonomi/yoyaku-go/migrations"
)

type App struct {
	cfg        *config.Config
	logger     *slog.Logger
	httpServer *http.Server
	dispatcher *sideeffect.Dispatcher
}

func New(cfg *config.Config, logger *slog.Logger) (*App, error) {
	// Initialize dependencies
	dsn := cfg.Postgres.DSN()

	if err := postgres.Migrate(context.Background(), dsn, migrations.FS); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	pgxPool, err := postgres.New(context.Background(), postgres.Config{DSN: dsn})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize postgres: %w", err)
	}

	rdb, err := redis.New(context.Background(), redis.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize redis: %w", err)
	}

	// Initialize repositories
	store := postgresrepo.NewStore(pgxPool, cfg.Locks.Timeout)
	cache := redisrepo.New(rdb)
	pubsub := redis.NewCalendarPubSub(rdb)
	limiter := redisrepo.NewSlidingWindowLimiter(rdb, redis.RateLimitPrefix(), cfg.RateLimit.Limit, cfg.RateLimit.Window)
	idempotencyStore := redisrepo.NewIdempotencyStore(rdb, 2*time.Hour)

	// Initialize side-effect dispatcher
	dispatcher := sideeffect.NewDispatcher(
		sideeffect.NewWebhookRefunder(cfg.Webhooks.RefundURL),
		sideeffect.NewWebhookNotifier(cfg.Webhooks.NotifyURL),
		logger,
		sideeffect.Config{
			Workers:    cfg.Dispatcher.Workers,
			QueueSize:  cfg.Dispatcher.QueueSize,
			MaxRetries: uint64(cfg.Dispatcher.MaxRetries),
		},
	)

	// Initialize services
	services := service.NewServices(store, cache, pubsub, limiter, dispatcher, logger, service.Config{
		Calendar: calendar.Config{CacheTTL: cfg.Calendar.CacheTTL},
	})

	// Initialize Gin router
	router := httpgin.NewRouter(services, idempotencyStore, logger)

	return &App{
		cfg:        cfg,
		logger:     logger,
		dispatcher: dispatcher,
		httpServer: &http.Server{
			Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
			Handler: router,
		},
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	g, gCtx := errgroup.WithContext(ctx)

	// Start side-effect workers
	g.Go(func() error {
		return a.dispatcher.Run(gCtx)
	})

	// Start HTTP server
	g.Go(func() error {
		a.logger.Info("HTTP server listening", "host", a.cfg.Server.Host, "port", a.cfg.Server.Port)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("failed to start HTTP server: %w", err)
		}
		return nil
	})

	// Graceful shutdown
	g.Go(func() error {
		<-gCtx.Done()
		a.logger.Info("shutting down HTTP server")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return a.httpServer.Shutdown(ctx)
	})

	return g.Wait()
}
