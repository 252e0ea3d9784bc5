package postgres

import (
	"context"
	"fmt"
	"lending-backoffice/internal/config"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	defaultMaxConns    = 10
	applicationName    = "lending-backoffice"
	pingAttempts       = 5
	pingTimeout        = 5 * time.Second
	initialPingBackoff = 500 * time.Millisecond
)

// NewConnectionPool opens the pool and waits for the database to answer.
// Sessions run in UTC so DATE columns come back as UTC midnights, which is
// what the accrual day counts assume.
func NewConnectionPool(ctx context.Context, cfg config.DatabaseConfig, logger *slog.Logger) (*pgxpool.Pool, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("database URL is empty in configuration")
	}
	logger = logger.With("component", "postgres")

	poolConfig, err := configurePool(cfg)
	if err != nil {
		return nil, err
	}

	logger.Info("Connecting to PostgreSQL database...", "host", poolConfig.ConnConfig.Host, "db", poolConfig.ConnConfig.Database)
	dbpool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := waitForDatabase(ctx, dbpool, pingAttempts, initialPingBackoff, logger); err != nil {
		dbpool.Close()
		return nil, err
	}

	logger.Info("Connected to PostgreSQL database.", "max_conns", poolConfig.MaxConns)
	return dbpool, nil
}

func configurePool(cfg config.DatabaseConfig) (*pgxpool.Config, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config from URL: %w", err)
	}

	poolConfig.MaxConns = defaultMaxConns
	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = cfg.MaxConns
	}
	poolConfig.MaxConnIdleTime = 5 * time.Minute
	poolConfig.HealthCheckPeriod = 1 * time.Minute

	params := poolConfig.ConnConfig.RuntimeParams
	params["timezone"] = "UTC"
	if _, ok := params["application_name"]; !ok {
		params["application_name"] = applicationName
	}

	return poolConfig, nil
}

type pinger interface {
	Ping(ctx context.Context) error
}

// waitForDatabase pings up to attempts times, doubling the delay between
// tries. It gives up early when ctx is done.
func waitForDatabase(ctx context.Context, db pinger, attempts int, backoff time.Duration, logger *slog.Logger) error {
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
		lastErr = db.Ping(pingCtx)
		cancel()
		if lastErr == nil {
			return nil
		}

		logger.Warn("Database not reachable yet", "attempt", attempt, "of", attempts, "error", lastErr)
		if attempt == attempts {
			break
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("gave up waiting for database: %w", ctx.Err())
		case <-time.After(backoff):
		}
		backoff *= 2
	}

	logger.Error("Failed to ping database", "attempts", attempts, "error", lastErr)
	return fmt.Errorf("failed to ping database after %d attempts: %w", attempts, lastErr)
}
