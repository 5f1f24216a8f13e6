package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aussiebroadwan/clipshare/internal/accounts/store"
	"github.com/aussiebroadwan/clipshare/internal/accounts/store/drivers/mongo"
	"github.com/aussiebroadwan/clipshare/internal/accounts/store/drivers/postgres"
	"github.com/aussiebroadwan/clipshare/internal/accounts/store/drivers/sqlite"
)

// OpenStore connects to the configured store driver without migrating it.
func OpenStore(ctx context.Context, cfg Config) (store.Store, error) {
	switch cfg.StoreDriver {
	case "sqlite":
		dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", cfg.DatabaseFile)
		return sqlite.NewStore(dsn)
	case "postgres":
		return postgres.NewStore(ctx, cfg.DatabaseDSN)
	case "mongo":
		return mongo.NewStore(ctx, cfg.MongoURI, cfg.MongoDatabase)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

// Migrate brings the configured store's schema up to date.
func Migrate(ctx context.Context, cfg Config, logger *slog.Logger) error {
	st, err := OpenStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open %s store: %w", cfg.StoreDriver, err)
	}
	defer st.Close()

	if err := st.ApplyMigrations(ctx); err != nil {
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	logger.Info("database migrations applied successfully", "driver", cfg.StoreDriver)
	return nil
}
