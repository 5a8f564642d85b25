package commands

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/fleet-support/internal/api/http/handlers"
	"github.com/spec-kit/fleet-support/internal/config"
	"github.com/spec-kit/fleet-support/internal/persistence"
	"github.com/spec-kit/fleet-support/internal/repository"
)

// storage is the ticket backend selected by STORAGE_DRIVER together with
// its readiness probes.
type storage struct {
	tickets repository.TicketRepository
	history repository.TicketHistoryRepository
	checks  map[string]handlers.Check
	pg      *persistence.Postgres
	closers []func()
}

func (s *storage) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

func openStorage(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*storage, error) {
	st := &storage{checks: map[string]handlers.Check{}}

	switch cfg.Storage.Driver {
	case config.StorageMemory:
		logger.Warn("using in-memory ticket storage; data is lost on restart")
		st.tickets = repository.NewMemoryTicketRepository()

	case config.StoragePostgres:
		pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		st.closers = append(st.closers, pg.Close)
		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pg.PoolHandle(), cfg.Postgres.MigrationsDir, logger); err != nil {
				st.Close()
				return nil, fmt.Errorf("run migrations: %w", err)
			}
		}
		st.pg = pg
		st.tickets = repository.NewTicketRepository(pg.PoolHandle())
		st.history = repository.NewTicketHistoryRepository(pg.PoolHandle())
		st.checks["postgres"] = pg.Ping

	case config.StorageRedis:
		rdb := persistence.NewRedis(ctx, cfg.Redis, logger)
		st.closers = append(st.closers, rdb.Close)
		st.tickets = repository.NewRedisTicketRepository(rdb.Client, cfg.Redis.KeyPrefix)
		st.history = repository.NewRedisTicketHistoryRepository(rdb.Client, cfg.Redis.KeyPrefix)
		st.checks["redis"] = rdb.Ping

	case config.StorageSQLite:
		db, err := persistence.NewSQLite(ctx, cfg.SQLite, logger)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		st.closers = append(st.closers, func() { _ = db.Close() })
		st.tickets = repository.NewSQLiteTicketRepository(db)
		st.history = repository.NewSQLiteTicketHistoryRepository(db)
		st.checks["sqlite"] = db.PingContext

	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
	if st.history == nil {
		// memory driver: history lives as long as the process.
		st.history = repository.NewMemoryTicketHistoryRepository()
	}
	return st, nil
}

// openAgentDirectory prefers the YAML export, then the Postgres agents table.
func openAgentDirectory(cfg *config.Config, st *storage, logger *zap.Logger) (repository.AgentDirectory, error) {
	if cfg.Agents.File != "" {
		agents, err := repository.LoadAgentsFile(cfg.Agents.File)
		if err != nil {
			return nil, err
		}
		logger.Info("loaded agent directory", zap.String("file", cfg.Agents.File), zap.Int("agents", len(agents)))
		return repository.NewMemoryAgentDirectory(agents...), nil
	}
	if st.pg != nil && st.pg.PoolHandle() != nil {
		return repository.NewAgentRepository(st.pg.PoolHandle()), nil
	}
	logger.Warn("no agent directory configured; assignments will be rejected")
	return repository.NewMemoryAgentDirectory(), nil
}
