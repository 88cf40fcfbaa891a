package db

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/TheBackpacker1/AHDProject/internal/config"
)

// Connect opens the configured backend, retrying up to cfg.ConnectAttempts
// times. The error of the last attempt is returned when all of them fail.
func Connect(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (Store, error) {
	attempts := cfg.ConnectAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		store, err := open(ctx, cfg, logger)
		if err == nil {
			logger.Info("database connected", zap.String("driver", cfg.Driver), zap.Int("attempt", attempt))
			return store, nil
		}
		lastErr = err
		logger.Warn("database connection failed",
			zap.String("driver", cfg.Driver),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", attempts),
			zap.Error(err),
		)
		if attempt == attempts {
			break
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(cfg.RetryDelay):
		}
	}

	return nil, fmt.Errorf("connect to %s after %d attempts: %w", cfg.Driver, attempts, lastErr)
}

func open(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (Store, error) {
	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	switch cfg.Driver {
	case config.DriverPostgres:
		return OpenPostgres(ctx, cfg.URL, cfg.AutoMigrate, logger)
	case config.DriverSQLite:
		return OpenSQLite(ctx, cfg.URL, cfg.AutoMigrate, logger)
	default:
		return nil, fmt.Errorf("unsupported driver %q", cfg.Driver)
	}
}
