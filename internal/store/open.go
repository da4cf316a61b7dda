package store

import (
	"context"

	"exam-allocation/internal/allocation"
	"exam-allocation/internal/config"
	"exam-allocation/internal/db"
	"exam-allocation/internal/strategy"

	"go.uber.org/zap"
)

// Backend is everything the binaries need from persistence.
type Backend interface {
	allocation.DataStore
	strategy.Store
}

// Open returns a PostgresStore when the database is enabled and reachable.
// Otherwise it falls back to a MemoryStore, seeded with the demo campus when
// cfg.SeedDemoData is set. The returned func releases the connection.
func Open(ctx context.Context, cfg *config.Config, logger *zap.Logger) (Backend, func()) {
	if cfg.DBEnabled {
		conn, err := db.Connect(ctx, &cfg.Database)
		if err == nil {
			if err = db.EnsureSchema(ctx, conn); err == nil {
				logger.Info("DB enabled",
					zap.String("host", cfg.Database.Host),
					zap.String("database", cfg.Database.Database),
				)
				return NewPostgresStore(conn), func() { _ = conn.Close() }
			}
			_ = conn.Close()
		}
		logger.Warn("DB enabled but unavailable, falling back to memory store", zap.Error(err))
	}

	mem := NewMemoryStore()
	if cfg.SeedDemoData {
		mem.SeedDemo()
		logger.Info("memory store seeded with demo data")
	}
	return mem, func() {}
}
