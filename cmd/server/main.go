package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/0x-mperego/unimec-display/internal/adapter/blobstore"
	"github.com/0x-mperego/unimec-display/internal/adapter/httpserver"
	"github.com/0x-mperego/unimec-display/internal/adapter/metrics"
	"github.com/0x-mperego/unimec-display/internal/adapter/postgres"
	"github.com/0x-mperego/unimec-display/internal/adapter/redis"
	"github.com/0x-mperego/unimec-display/internal/app"
	"github.com/0x-mperego/unimec-display/internal/broadcast"
	"github.com/0x-mperego/unimec-display/internal/domain"
	"github.com/0x-mperego/unimec-display/internal/platform/config"
	"github.com/0x-mperego/unimec-display/internal/platform/logging"
	"github.com/0x-mperego/unimec-display/internal/platform/retry"
	"github.com/0x-mperego/unimec-display/internal/platform/version"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	goredis "github.com/redis/go-redis/v9"
)

// startupPolicy covers a database or Redis that comes up after us, as in
// docker compose.
func startupPolicy(clock clockwork.Clock, what string) retry.Policy {
	return retry.Policy{
		MaxAttempts:    6,
		InitialBackoff: time.Second,
		MaxBackoff:     10 * time.Second,
		Clock:          clock,
		OnRetry: func(attempt int, err error, backoff time.Duration) {
			slog.Warn("Connection attempt failed, retrying", "target", what, "attempt", attempt, "backoff", backoff, "error", err)
		},
	}
}

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func setupDB(clock clockwork.Clock, cfg *config.Config, m *metrics.DBMetrics) *pgxpool.Pool {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pool, err := retry.Do(ctx, startupPolicy(clock, "postgres"), retry.Transient, func(ctx context.Context) (*pgxpool.Pool, error) {
		attemptCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		return postgres.Connect(attemptCtx, cfg.DatabaseURL,
			postgres.WithMaxConns(cfg.DBMaxConns),
			postgres.WithQueryMetrics(m),
		)
	})
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}

	return pool
}

func setupRedis(clock clockwork.Clock, cfg *config.Config, m *metrics.RedisMetrics) *goredis.Client {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	client, err := retry.Do(ctx, startupPolicy(clock, "redis"), retry.Transient, func(ctx context.Context) (*goredis.Client, error) {
		return redis.NewClient(ctx, cfg.RedisURL, m)
	})
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	return client
}

// changeFeed picks the notification transport. With Redis, writers publish
// explicitly; with Postgres, the table trigger publishes for them.
type changeFeed struct {
	feed      domain.ChangeFeed
	publisher domain.ChangePublisher
	start     func(ctx context.Context)
	stop      func()
}

func setupChangeFeed(cfg *config.Config, clock clockwork.Clock, pool *pgxpool.Pool, rdb *goredis.Client, m *metrics.DBMetrics) changeFeed {
	if cfg.ChangeFeed == config.ChangeFeedRedis {
		origin := version.Name + "-" + uuid.NewString()[:8]
		rf := redis.NewChangeFeed(rdb, origin)
		cancel := func() {}
		done := make(chan struct{})
		return changeFeed{
			feed:      rf,
			publisher: rf,
			start: func(parent context.Context) {
				var ctx context.Context
				ctx, cancel = context.WithCancel(parent)
				go func() {
					defer close(done)
					rf.Start(ctx)
				}()
			},
			stop: func() {
				cancel()
				<-done
			},
		}
	}

	listener := postgres.NewListener(pool, clock, postgres.WithListenerMetrics(m))
	return changeFeed{
		feed:  listener,
		start: listener.Start,
		stop:  listener.Stop,
	}
}

func runGracefulShutdown(srv *httpserver.Server, detach func(), hub *broadcast.Hub, feed changeFeed) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		// Hub first: open streams would otherwise hold Shutdown until it times out.
		detach()
		hub.Stop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		feed.stop()
		close(done)
	}()

	return done
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	logging.Setup(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "version", version.Get().Version, "env", cfg.AppEnv, "port", cfg.Port, "change_feed", cfg.ChangeFeed)

	registry := metrics.NewRegistry()
	dbMetrics := metrics.NewDBMetrics(registry)

	pool := setupDB(clock, cfg, dbMetrics)
	defer pool.Close()

	healthChecks := []httpserver.HealthCheck{
		{Name: "postgres", Check: pool.Ping},
	}

	var redisClient *goredis.Client
	if cfg.RedisURL != "" {
		redisClient = setupRedis(clock, cfg, metrics.NewRedisMetrics(registry))
		defer func() { _ = redisClient.Close() }()
		healthChecks = append(healthChecks, httpserver.HealthCheck{
			Name:  "redis",
			Check: func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
		})
	}

	blobs, err := blobstore.NewOnDisk(cfg.MediaDir, cfg.MediaBaseURL)
	if err != nil {
		slog.Error("Failed to prepare media directory", "dir", cfg.MediaDir, "error", err)
		os.Exit(1)
	}

	repo := postgres.NewItemRepo(pool)
	feed := setupChangeFeed(cfg, clock, pool, redisClient, dbMetrics)

	svcOpts := []app.Option{app.WithMetrics(metrics.NewPlaylistMetrics(registry))}
	if feed.publisher != nil {
		svcOpts = append(svcOpts, app.WithPublisher(feed.publisher))
	}
	appSvc := app.NewService(repo, blobs, clock, svcOpts...)

	hub := broadcast.NewHub(repo, clock,
		broadcast.WithPulseInterval(cfg.HubPulseInterval),
		broadcast.WithMetrics(metrics.NewHubMetrics(registry)),
	)
	detach := hub.Attach(feed.feed)
	feed.start(context.Background())

	srv, err := httpserver.NewServer(cfg, appSvc, hub, blobs.Handler(),
		httpserver.WithHealthChecks(healthChecks...),
		httpserver.WithMetrics(registry),
	)
	if err != nil {
		slog.Error("Failed to create server", "error", err)
		os.Exit(1)
	}

	done := runGracefulShutdown(srv, detach, hub, feed)

	slog.Info("Server starting", "port", cfg.Port)
	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
}
