package postgres

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/0x-mperego/unimec-display/internal/adapter/metrics"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/tern/v2/migrate"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

const (
	versionTable = "public.schema_version"

	// schemaLockKey is "signag" in ASCII, held as a session advisory lock
	// while the schema is migrated.
	schemaLockKey     = 0x7369676e6167
	unlockTimeout     = 5 * time.Second
	defaultMaxConns   = 10
	defaultIdleExpiry = 5 * time.Minute
)

type ConnectOption func(*pgxpool.Config)

// WithQueryMetrics records latency and failures of every query.
func WithQueryMetrics(m *metrics.DBMetrics) ConnectOption {
	return func(cfg *pgxpool.Config) {
		cfg.ConnConfig.Tracer = &MetricsTracer{metrics: m}
	}
}

// WithMaxConns caps the pool. Non-positive values keep the default.
func WithMaxConns(n int32) ConnectOption {
	return func(cfg *pgxpool.Config) {
		if n > 0 {
			cfg.MaxConns = n
		}
	}
}

func poolConfig(databaseURL string, opts ...ConnectOption) (*pgxpool.Config, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}
	cfg.MaxConns = defaultMaxConns
	cfg.MaxConnIdleTime = defaultIdleExpiry
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg, nil
}

// Connect opens a pool and pings it once so a bad URL or unreachable server
// fails here rather than on the first query.
func Connect(ctx context.Context, databaseURL string, opts ...ConnectOption) (*pgxpool.Pool, error) {
	cfg, err := poolConfig(databaseURL, opts...)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	slog.Info("Database connected",
		"host", cfg.ConnConfig.Host,
		"database", cfg.ConnConfig.Database,
		"tls", cfg.ConnConfig.TLSConfig != nil,
		"max_conns", cfg.MaxConns,
	)
	return pool, nil
}

// RunMigrations brings the schema up to date. Replicas starting together
// take turns on an advisory lock, so later ones find nothing to do.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire connection for migration: %w", err)
	}
	defer conn.Release()

	return withSchemaLock(ctx, conn.Conn(), func() error {
		return migrateSchema(ctx, conn.Conn())
	})
}

func migrateSchema(ctx context.Context, conn *pgx.Conn) error {
	sub, err := fs.Sub(migrationFiles, "migrations")
	if err != nil {
		return fmt.Errorf("failed to read migrations: %w", err)
	}

	migrator, err := migrate.NewMigrator(ctx, conn, versionTable)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}
	if err := migrator.LoadMigrations(sub); err != nil {
		return fmt.Errorf("failed to load migrations: %w", err)
	}

	from, err := migrator.GetCurrentVersion(ctx)
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	target := int32(len(migrator.Migrations))
	if from == target {
		slog.Debug("Schema up to date", "version", from)
		return nil
	}

	migrator.OnStart = func(seq int32, name, _, _ string) {
		slog.Info("Applying migration", "sequence", seq, "name", name)
	}
	if err := migrator.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	slog.Info("Schema migrated", "from", from, "to", target)
	return nil
}

func withSchemaLock(ctx context.Context, conn *pgx.Conn, fn func() error) error {
	if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock($1)", schemaLockKey); err != nil {
		return fmt.Errorf("failed to acquire migration lock: %w", err)
	}
	defer func() {
		// The caller's ctx may already be done; the lock must still go.
		unlockCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), unlockTimeout)
		defer cancel()
		if _, err := conn.Exec(unlockCtx, "SELECT pg_advisory_unlock($1)", schemaLockKey); err != nil {
			slog.Error("Failed to release migration lock", "error", err)
		}
	}()

	return fn()
}
