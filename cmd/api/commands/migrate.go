package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spec-kit/fleet-support/internal/config"
	"github.com/spec-kit/fleet-support/internal/observability"
	"github.com/spec-kit/fleet-support/internal/persistence"
)

var migrationsDir string

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply Postgres schema migrations",
	Long: `Applies the SQL files in the migrations directory, in name order, to
the database named by POSTGRES_DSN. Every file is idempotent.`,
	RunE: runMigrate,
}

func init() {
	migrateCmd.Flags().StringVar(&migrationsDir, "dir", "", "migrations directory (default POSTGRES_MIGRATIONS_DIR)")
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Postgres.DSN == "" {
		return errors.New("POSTGRES_DSN is required")
	}
	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	dir := migrationsDir
	if dir == "" {
		dir = cfg.Postgres.MigrationsDir
	}

	pg, err := persistence.NewPostgres(cmd.Context(), cfg.Postgres, logger)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pg.Close()

	return persistence.RunMigrations(cmd.Context(), pg.PoolHandle(), dir, logger)
}
