package persistence

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/spec-kit/fleet-support/internal/config"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS tickets (
    id         TEXT PRIMARY KEY,
    version    INTEGER NOT NULL,
    created_at TEXT NOT NULL,
    document   TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_tickets_created_at ON tickets (created_at);
CREATE TABLE IF NOT EXISTS ticket_history (
    seq        INTEGER PRIMARY KEY AUTOINCREMENT,
    id         TEXT NOT NULL UNIQUE,
    ticket_id  TEXT NOT NULL,
    created_at TEXT NOT NULL,
    document   TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_ticket_history_ticket ON ticket_history (ticket_id, created_at, seq);`

// NewSQLite opens the embedded database and ensures the ticket and history schema exists.
func NewSQLite(ctx context.Context, cfg config.SQLiteConfig, logger *zap.Logger) (*sql.DB, error) {
	// modernc.org/sqlite registers itself as "sqlite".
	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, err
	}
	// SQLite serializes writers anyway; one connection avoids SQLITE_BUSY churn.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA foreign_keys=ON;",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("sqlite pragma %q: %w", p, err)
		}
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	logger.Info("opened sqlite", zap.String("path", cfg.Path))
	return db, nil
}
