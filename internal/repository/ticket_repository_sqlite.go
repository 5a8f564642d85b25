package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spec-kit/fleet-support/internal/domain"
)

// SQLiteTicketRepository keeps one JSON document per ticket alongside its
// version, so the compare-and-swap is a single conditional UPDATE.
type SQLiteTicketRepository struct {
	db *sql.DB
}

// NewSQLiteTicketRepository wraps an opened database. The schema is created
// by persistence.NewSQLite.
func NewSQLiteTicketRepository(db *sql.DB) *SQLiteTicketRepository {
	return &SQLiteTicketRepository{db: db}
}

func (r *SQLiteTicketRepository) Get(ctx context.Context, id string) (*domain.Ticket, error) {
	var doc string
	err := r.db.QueryRowContext(ctx, `SELECT document FROM tickets WHERE id = ?`, id).Scan(&doc)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return unmarshalTicketDocument(doc)
}

func (r *SQLiteTicketRepository) Put(ctx context.Context, ticket *domain.Ticket) error {
	next := ticket.Clone()
	next.Version = ticket.Version + 1
	doc, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("encode ticket: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	var res sql.Result
	if ticket.Version == 0 {
		res, err = tx.ExecContext(ctx,
			`INSERT INTO tickets (id, version, created_at, document) VALUES (?, ?, ?, ?)
             ON CONFLICT(id) DO NOTHING`,
			ticket.ID, next.Version, ticket.CreatedAt.UTC().Format(timeLayout), string(doc))
	} else {
		res, err = tx.ExecContext(ctx,
			`UPDATE tickets SET version = ?, document = ? WHERE id = ? AND version = ?`,
			next.Version, string(doc), ticket.ID, ticket.Version)
	}
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		if ticket.Version == 0 {
			return ErrVersionConflict
		}
		var exists int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM tickets WHERE id = ?`, ticket.ID).Scan(&exists); err != nil {
			return err
		}
		if exists == 0 {
			return ErrNotFound
		}
		return ErrVersionConflict
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	ticket.Version = next.Version
	return nil
}

func (r *SQLiteTicketRepository) Scan(ctx context.Context) ([]domain.Ticket, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT document FROM tickets`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tickets := []domain.Ticket{}
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		ticket, err := unmarshalTicketDocument(doc)
		if err != nil {
			return nil, err
		}
		tickets = append(tickets, *ticket)
	}
	return tickets, rows.Err()
}

const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func unmarshalTicketDocument(doc string) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := json.Unmarshal([]byte(doc), &ticket); err != nil {
		return nil, fmt.Errorf("decode ticket: %w", err)
	}
	return &ticket, nil
}
