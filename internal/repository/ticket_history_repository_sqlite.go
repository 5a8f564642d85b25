package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/spec-kit/fleet-support/internal/domain"
)

// SQLiteTicketHistoryRepository stores audit entries as JSON documents in the
// ticket_history table created by persistence.NewSQLite.
type SQLiteTicketHistoryRepository struct {
	db *sql.DB
}

func NewSQLiteTicketHistoryRepository(db *sql.DB) *SQLiteTicketHistoryRepository {
	return &SQLiteTicketHistoryRepository{db: db}
}

func (r *SQLiteTicketHistoryRepository) Create(ctx context.Context, history *domain.TicketHistory) error {
	doc, err := json.Marshal(history)
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO ticket_history (id, ticket_id, created_at, document) VALUES (?, ?, ?, ?)`,
		history.ID, history.TicketID, history.CreatedAt.UTC().Format(timeLayout), string(doc))
	return err
}

// ListByTicket returns entries oldest first; seq breaks timestamp ties in
// insertion order.
func (r *SQLiteTicketHistoryRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketHistory, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT document FROM ticket_history WHERE ticket_id = ? ORDER BY created_at ASC, seq ASC`, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []domain.TicketHistory{}
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		var entry domain.TicketHistory
		if err := json.Unmarshal([]byte(doc), &entry); err != nil {
			return nil, fmt.Errorf("decode history: %w", err)
		}
		result = append(result, entry)
	}
	return result, rows.Err()
}
