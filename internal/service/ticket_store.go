package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/fleet-support/internal/domain"
	"github.com/spec-kit/fleet-support/internal/events"
	"github.com/spec-kit/fleet-support/internal/repository"
	apperrors "github.com/spec-kit/fleet-support/pkg/util/errorutil"
)

// ticketStore is the single write path shared by the façade and the
// assignment subsystem. Every mutation runs under the ticket's lock on a
// private copy and is committed with one compare-and-swap Put.
type ticketStore struct {
	tickets    repository.TicketRepository
	locks      *ticketLocks
	dispatcher events.Dispatcher
	logger     *zap.Logger
	now        func() time.Time
}

func (s *ticketStore) get(ctx context.Context, id string) (*domain.Ticket, error) {
	ticket, err := s.tickets.Get(ctx, id)
	if err != nil {
		return nil, s.mapRepoError(err, id)
	}
	return ticket, nil
}

// update loads the ticket, lets fn mutate it and persists the result. If fn
// fails nothing is written.
func (s *ticketStore) update(ctx context.Context, id string, fn func(ticket *domain.Ticket, now time.Time) error) (*domain.Ticket, error) {
	unlock, err := s.locks.acquire(ctx, id)
	if err != nil {
		// ctx ended while waiting; the caller sees the plain context error.
		return nil, err
	}
	defer unlock()

	ticket, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := fn(ticket, s.now()); err != nil {
		return nil, err
	}
	if err := s.tickets.Put(ctx, ticket); err != nil {
		return nil, s.mapRepoError(err, id)
	}
	return ticket, nil
}

func (s *ticketStore) mapRepoError(err error, id string) error {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case errors.Is(err, repository.ErrNotFound):
		return apperrors.NewNotFound("ticket", map[string]any{"ticket_id": id})
	case errors.Is(err, repository.ErrVersionConflict):
		s.logger.Warn("ticket version conflict", zap.String("ticket_id", id))
		return apperrors.NewConcurrentModification(map[string]any{"ticket_id": id})
	default:
		s.logger.Error("ticket storage failure", zap.String("ticket_id", id), zap.Error(err))
		return apperrors.NewInternalError(err)
	}
}

// publish emits a post-commit event. Handler failures are logged and never
// undo the committed mutation.
func (s *ticketStore) publish(ctx context.Context, eventType events.EventType, ticketID string, payload any) {
	if s.dispatcher == nil {
		return
	}
	event := events.Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		TicketID:  ticketID,
		Actor:     events.ActorFrom(ctx),
		Timestamp: s.now(),
		Payload:   payload,
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event handler failed",
			zap.String("event_type", string(eventType)),
			zap.String("ticket_id", ticketID),
			zap.Error(err))
	}
}
