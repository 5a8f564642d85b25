package repository

import (
	"context"
	"maps"
	"sync"

	"github.com/spec-kit/fleet-support/internal/domain"
)

// MemoryTicketHistoryRepository keeps audit entries per ticket in append order.
type MemoryTicketHistoryRepository struct {
	mu      sync.RWMutex
	entries map[string][]domain.TicketHistory
}

func NewMemoryTicketHistoryRepository() *MemoryTicketHistoryRepository {
	return &MemoryTicketHistoryRepository{entries: make(map[string][]domain.TicketHistory)}
}

func (r *MemoryTicketHistoryRepository) Create(ctx context.Context, history *domain.TicketHistory) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	entry := *history
	entry.OldValue = maps.Clone(history.OldValue)
	entry.NewValue = maps.Clone(history.NewValue)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[entry.TicketID] = append(r.entries[entry.TicketID], entry)
	return nil
}

func (r *MemoryTicketHistoryRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketHistory, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]domain.TicketHistory, 0, len(r.entries[ticketID]))
	for _, entry := range r.entries[ticketID] {
		entry.OldValue = maps.Clone(entry.OldValue)
		entry.NewValue = maps.Clone(entry.NewValue)
		result = append(result, entry)
	}
	return result, nil
}
