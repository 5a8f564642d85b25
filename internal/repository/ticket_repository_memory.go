package repository

import (
	"context"
	"sync"

	"github.com/spec-kit/fleet-support/internal/domain"
)

// MemoryTicketRepository is the in-process reference implementation.
type MemoryTicketRepository struct {
	mu      sync.RWMutex
	tickets map[string]*domain.Ticket
}

// NewMemoryTicketRepository builds an empty repository.
func NewMemoryTicketRepository() *MemoryTicketRepository {
	return &MemoryTicketRepository{tickets: make(map[string]*domain.Ticket)}
}

func (r *MemoryTicketRepository) Get(ctx context.Context, id string) (*domain.Ticket, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	stored, ok := r.tickets[id]
	if !ok {
		return nil, ErrNotFound
	}
	return stored.Clone(), nil
}

func (r *MemoryTicketRepository) Put(ctx context.Context, ticket *domain.Ticket) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, exists := r.tickets[ticket.ID]
	switch {
	case ticket.Version == 0 && exists:
		return ErrVersionConflict
	case ticket.Version != 0 && !exists:
		return ErrNotFound
	case exists && stored.Version != ticket.Version:
		return ErrVersionConflict
	}

	next := ticket.Clone()
	next.Version = ticket.Version + 1
	r.tickets[ticket.ID] = next
	ticket.Version = next.Version
	return nil
}

func (r *MemoryTicketRepository) Scan(ctx context.Context) ([]domain.Ticket, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]domain.Ticket, 0, len(r.tickets))
	for _, stored := range r.tickets {
		result = append(result, *stored.Clone())
	}
	return result, nil
}
