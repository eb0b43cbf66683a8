// Package postgres opens the shared connection pool, runs schema migrations
// and provides the transaction runner used by the onboarding orchestrators.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq"

	"corretaje/internal/platform/config"
)

var (
	connectRetries = 15
	retryDelay     = 2 * time.Second
	pingTimeout    = 2 * time.Second
	sleep          = time.Sleep
)

// Open connects to PostgreSQL, retrying while the server comes up.
func Open(ctx context.Context, cfg config.Database, logger *slog.Logger) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	var lastErr error
	for i := 0; i < connectRetries; i++ {
		pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
		lastErr = db.PingContext(pingCtx)
		cancel()
		if lastErr == nil {
			return db, nil
		}
		if ctx.Err() != nil {
			break
		}
		logger.WarnContext(ctx, "postgres not ready, retrying",
			"attempt", i+1,
			"error", lastErr,
		)
		sleep(retryDelay)
	}
	_ = db.Close()
	return nil, fmt.Errorf("db ping retries exhausted: %w", lastErr)
}
