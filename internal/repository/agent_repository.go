package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/fleet-support/internal/domain"
)

// AgentDirectory is the read-only view of externally provisioned agents.
type AgentDirectory interface {
	GetByID(ctx context.Context, id string) (*domain.Agent, error)
	List(ctx context.Context) ([]domain.Agent, error)
}

type agentRepository struct {
	pool *pgxpool.Pool
}

// NewAgentRepository reads agents from the PostgreSQL agents table.
func NewAgentRepository(pool *pgxpool.Pool) AgentDirectory {
	return &agentRepository{pool: pool}
}

func (r *agentRepository) GetByID(ctx context.Context, id string) (*domain.Agent, error) {
	const query = `SELECT id, name, role, presence FROM agents WHERE id=$1`
	var agent domain.Agent
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&agent.ID,
		&agent.Name,
		&agent.Role,
		&agent.Presence,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &agent, nil
}

func (r *agentRepository) List(ctx context.Context) ([]domain.Agent, error) {
	const query = `SELECT id, name, role, presence FROM agents ORDER BY name ASC, id ASC`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []domain.Agent{}
	for rows.Next() {
		var agent domain.Agent
		if err := rows.Scan(
			&agent.ID,
			&agent.Name,
			&agent.Role,
			&agent.Presence,
		); err != nil {
			return nil, err
		}
		result = append(result, agent)
	}
	return result, rows.Err()
}
