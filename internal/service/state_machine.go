package service

import (
	"fmt"
	"time"

	"github.com/spec-kit/fleet-support/internal/domain"
	apperrors "github.com/spec-kit/fleet-support/pkg/util/errorutil"
)

var allowedTransitions = map[domain.TicketStatus][]domain.TicketStatus{
	domain.TicketStatusOpen:       {domain.TicketStatusInProgress, domain.TicketStatusResolved, domain.TicketStatusClosed},
	domain.TicketStatusInProgress: {domain.TicketStatusOpen, domain.TicketStatusResolved, domain.TicketStatusClosed},
	domain.TicketStatusResolved:   {domain.TicketStatusOpen},
	domain.TicketStatusClosed:     {domain.TicketStatusOpen},
}

// NextStatuses lists the statuses reachable from current.
func NextStatuses(current domain.TicketStatus) []domain.TicketStatus {
	return append([]domain.TicketStatus(nil), allowedTransitions[current]...)
}

// CanTransition reports whether current may move to next. Staying in the
// same status is never a transition.
func CanTransition(current, next domain.TicketStatus) bool {
	for _, candidate := range allowedTransitions[current] {
		if candidate == next {
			return true
		}
	}
	return false
}

// applyTransition moves ticket to target and applies the timestamp side
// effects. The ticket is left untouched on error.
func applyTransition(ticket *domain.Ticket, target domain.TicketStatus, now time.Time) error {
	if !CanTransition(ticket.Status, target) {
		return apperrors.NewInvalidTransition(
			fmt.Sprintf("cannot move ticket from %s to %s", ticket.Status, target),
			map[string]any{
				"ticket_id": ticket.ID,
				"from":      ticket.Status,
				"to":        target,
				"allowed":   NextStatuses(ticket.Status),
			},
		)
	}

	switch target {
	case domain.TicketStatusResolved:
		resolvedAt := now
		if resolvedAt.Before(ticket.CreatedAt) {
			resolvedAt = ticket.CreatedAt
		}
		ticket.ResolvedAt = &resolvedAt
	case domain.TicketStatusOpen:
		// reopen
		ticket.ResolvedAt = nil
	}
	ticket.Status = target
	ticket.Touch(now)
	return nil
}
