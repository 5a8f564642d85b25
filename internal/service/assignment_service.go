package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/fleet-support/internal/domain"
	"github.com/spec-kit/fleet-support/internal/events"
	"github.com/spec-kit/fleet-support/internal/repository"
	apperrors "github.com/spec-kit/fleet-support/pkg/util/errorutil"
)

// AgentWorkload pairs a directory agent with counts derived from tickets.
type AgentWorkload struct {
	domain.Agent
	// ActiveTickets counts assigned tickets that are open or in progress.
	ActiveTickets int `json:"active_tickets"`
	// AssignedTickets counts every ticket assigned to the agent.
	AssignedTickets int `json:"assigned_tickets"`
}

// AssignmentService binds tickets to agents from the external directory.
type AssignmentService struct {
	store  *ticketStore
	agents repository.AgentDirectory
}

func newAssignmentService(store *ticketStore, agents repository.AgentDirectory) *AssignmentService {
	return &AssignmentService{store: store, agents: agents}
}

// Assign sets or clears the ticket's agent. Reassignment simply overwrites
// the previous agent.
func (s *AssignmentService) Assign(ctx context.Context, ticketID string, agentID *string) (*domain.Ticket, error) {
	var target *string
	if agentID != nil {
		id := strings.TrimSpace(*agentID)
		if id == "" {
			return nil, apperrors.NewValidationError("agent id must not be blank", map[string]any{"ticket_id": ticketID})
		}
		if err := s.requireAgent(ctx, id); err != nil {
			return nil, err
		}
		target = &id
	}

	var previous *string
	ticket, err := s.store.update(ctx, ticketID, func(ticket *domain.Ticket, now time.Time) error {
		previous = ticket.AssignedAgentID
		ticket.AssignedAgentID = target
		ticket.Touch(now)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.store.logger.Debug("ticket assignment changed",
		zap.String("ticket_id", ticket.ID),
		zap.Stringp("previous_agent_id", previous),
		zap.Stringp("agent_id", target))
	s.store.publish(ctx, events.EventTicketAssigned, ticket.ID, events.TicketAssignedPayload{
		PreviousAgentID: previous,
		AgentID:         target,
	})
	return ticket, nil
}

func (s *AssignmentService) requireAgent(ctx context.Context, agentID string) error {
	if s.agents == nil {
		return apperrors.NewAssignmentError("agent directory unavailable", map[string]any{"agent_id": agentID})
	}
	if _, err := s.agents.GetByID(ctx, agentID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NewAssignmentError("unknown agent", map[string]any{"agent_id": agentID})
		}
		s.store.logger.Error("agent lookup failed", zap.String("agent_id", agentID), zap.Error(err))
		return apperrors.NewInternalError(err)
	}
	return nil
}

// Workloads lists directory agents with ticket counts computed from the
// current ticket collection.
func (s *AssignmentService) Workloads(ctx context.Context) ([]AgentWorkload, error) {
	if s.agents == nil {
		return []AgentWorkload{}, nil
	}
	agents, err := s.agents.List(ctx)
	if err != nil {
		s.store.logger.Error("agent directory list failed", zap.Error(err))
		return nil, apperrors.NewInternalError(err)
	}
	tickets, err := s.store.tickets.Scan(ctx)
	if err != nil {
		s.store.logger.Error("ticket scan failed", zap.Error(err))
		return nil, apperrors.NewInternalError(err)
	}

	active := make(map[string]int)
	assigned := make(map[string]int)
	for i := range tickets {
		if tickets[i].AssignedAgentID == nil {
			continue
		}
		id := *tickets[i].AssignedAgentID
		assigned[id]++
		if tickets[i].Status.Active() {
			active[id]++
		}
	}

	result := make([]AgentWorkload, 0, len(agents))
	for _, agent := range agents {
		result = append(result, AgentWorkload{
			Agent:           agent,
			ActiveTickets:   active[agent.ID],
			AssignedTickets: assigned[agent.ID],
		})
	}
	return result, nil
}
