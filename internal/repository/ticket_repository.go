package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/fleet-support/internal/domain"
)

var (
	// ErrNotFound is returned when a record id does not resolve.
	ErrNotFound = errors.New("record not found")
	// ErrVersionConflict is returned when Put observes a stored version
	// different from the one the caller read.
	ErrVersionConflict = errors.New("version conflict")
)

// TicketRepository owns the canonical ticket records.
//
// Put is a compare-and-swap: ticket.Version must equal the stored version
// (zero for a ticket that has never been stored). On success the stored
// version is incremented and written back to ticket.Version. Implementations
// never hand out references to their internal state; Get and Scan return
// copies.
type TicketRepository interface {
	Get(ctx context.Context, id string) (*domain.Ticket, error)
	Put(ctx context.Context, ticket *domain.Ticket) error
	Scan(ctx context.Context) ([]domain.Ticket, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates the PostgreSQL repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `id, title, description, status, priority, category,
               requester_id, requester_name, requester_email, assigned_agent_id,
               tags, created_at, updated_at, resolved_at, version`

// readTx runs fn in a read-only REPEATABLE READ transaction so the ticket
// rows and their responses come from one snapshot.
func (r *ticketRepository) readTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *ticketRepository) Get(ctx context.Context, id string) (*domain.Ticket, error) {
	var ticket *domain.Ticket
	err := r.readTx(ctx, func(tx pgx.Tx) error {
		query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1`
		var err error
		ticket, err = scanTicket(tx.QueryRow(ctx, query, id))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}

		const responsesQuery = `
        SELECT id, ticket_id, author_id, author_name, author_role, message, created_at
        FROM ticket_responses WHERE ticket_id=$1 ORDER BY seq ASC`
		rows, err := tx.Query(ctx, responsesQuery, id)
		if err != nil {
			return err
		}
		defer rows.Close()
		responses, err := scanResponses(rows)
		if err != nil {
			return err
		}
		ticket.Responses = responses[id]
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ticket, nil
}

func (r *ticketRepository) Put(ctx context.Context, ticket *domain.Ticket) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if ticket.Version == 0 {
		const insert = `
        INSERT INTO tickets (id, title, description, status, priority, category,
            requester_id, requester_name, requester_email, assigned_agent_id,
            tags, created_at, updated_at, resolved_at, version)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,1)
        ON CONFLICT (id) DO NOTHING`
		cmd, err := tx.Exec(ctx, insert,
			ticket.ID,
			ticket.Title,
			ticket.Description,
			ticket.Status,
			ticket.Priority,
			ticket.Category,
			ticket.Requester.ID,
			ticket.Requester.Name,
			ticket.Requester.Email,
			ticket.AssignedAgentID,
			nonNilTags(ticket.Tags),
			ticket.CreatedAt,
			ticket.UpdatedAt,
			ticket.ResolvedAt,
		)
		if err != nil {
			return err
		}
		if cmd.RowsAffected() == 0 {
			return ErrVersionConflict
		}
	} else {
		const update = `
        UPDATE tickets SET status=$1, priority=$2, category=$3, assigned_agent_id=$4,
            tags=$5, updated_at=$6, resolved_at=$7, version=version+1
        WHERE id=$8 AND version=$9`
		cmd, err := tx.Exec(ctx, update,
			ticket.Status,
			ticket.Priority,
			ticket.Category,
			ticket.AssignedAgentID,
			nonNilTags(ticket.Tags),
			ticket.UpdatedAt,
			ticket.ResolvedAt,
			ticket.ID,
			ticket.Version,
		)
		if err != nil {
			return err
		}
		if cmd.RowsAffected() == 0 {
			var exists bool
			if err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM tickets WHERE id=$1)`, ticket.ID).Scan(&exists); err != nil {
				return err
			}
			if !exists {
				return ErrNotFound
			}
			return ErrVersionConflict
		}
	}

	// Responses are append-only; rows already stored are left untouched.
	if len(ticket.Responses) > 0 {
		const insertResponse = `
        INSERT INTO ticket_responses (id, ticket_id, seq, author_id, author_name, author_role, message, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        ON CONFLICT (id) DO NOTHING`
		batch := &pgx.Batch{}
		for i, resp := range ticket.Responses {
			batch.Queue(insertResponse,
				resp.ID,
				ticket.ID,
				i,
				resp.Author.ID,
				resp.Author.Name,
				resp.Author.Role,
				resp.Message,
				resp.CreatedAt,
			)
		}
		results := tx.SendBatch(ctx, batch)
		for range ticket.Responses {
			if _, err := results.Exec(); err != nil {
				_ = results.Close()
				return fmt.Errorf("insert response: %w", err)
			}
		}
		if err := results.Close(); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}
	ticket.Version++
	return nil
}

func (r *ticketRepository) Scan(ctx context.Context) ([]domain.Ticket, error) {
	tickets := []domain.Ticket{}
	err := r.readTx(ctx, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `SELECT `+ticketColumns+` FROM tickets`)
		if err != nil {
			return err
		}
		for rows.Next() {
			ticket, err := scanTicket(rows)
			if err != nil {
				rows.Close()
				return err
			}
			tickets = append(tickets, *ticket)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		const responsesQuery = `
        SELECT id, ticket_id, author_id, author_name, author_role, message, created_at
        FROM ticket_responses ORDER BY ticket_id, seq ASC`
		respRows, err := tx.Query(ctx, responsesQuery)
		if err != nil {
			return err
		}
		defer respRows.Close()
		byTicket, err := scanResponses(respRows)
		if err != nil {
			return err
		}
		for i := range tickets {
			tickets[i].Responses = byTicket[tickets[i].ID]
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tickets, nil
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := row.Scan(
		&ticket.ID,
		&ticket.Title,
		&ticket.Description,
		&ticket.Status,
		&ticket.Priority,
		&ticket.Category,
		&ticket.Requester.ID,
		&ticket.Requester.Name,
		&ticket.Requester.Email,
		&ticket.AssignedAgentID,
		&ticket.Tags,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
		&ticket.ResolvedAt,
		&ticket.Version,
	); err != nil {
		return nil, err
	}
	return &ticket, nil
}

func scanResponses(rows pgx.Rows) (map[string][]domain.Response, error) {
	result := map[string][]domain.Response{}
	for rows.Next() {
		var resp domain.Response
		var authorID *string
		if err := rows.Scan(
			&resp.ID,
			&resp.TicketID,
			&authorID,
			&resp.Author.Name,
			&resp.Author.Role,
			&resp.Message,
			&resp.CreatedAt,
		); err != nil {
			return nil, err
		}
		if authorID != nil {
			resp.Author.ID = *authorID
		}
		result[resp.TicketID] = append(result[resp.TicketID], resp)
	}
	return result, rows.Err()
}

func nonNilTags(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}
