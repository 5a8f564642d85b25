package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/fleet-support/internal/domain"
	"github.com/spec-kit/fleet-support/internal/events"
	"github.com/spec-kit/fleet-support/internal/repository"
)

// historyRecorder turns committed ticket events into audit entries.
type historyRecorder struct {
	repo   repository.TicketHistoryRepository
	logger *zap.Logger
}

func (h *historyRecorder) register(dispatcher events.Dispatcher) {
	for _, eventType := range []events.EventType{
		events.EventTicketCreated,
		events.EventTicketStatusChanged,
		events.EventTicketAssigned,
		events.EventTicketResponseAdded,
	} {
		dispatcher.Subscribe(eventType, h.record)
	}
}

func (h *historyRecorder) record(ctx context.Context, event events.Event) error {
	entry := historyEntry(event)
	if entry == nil {
		return nil
	}
	if err := h.repo.Create(ctx, entry); err != nil {
		h.logger.Error("ticket history write failed",
			zap.String("ticket_id", event.TicketID),
			zap.String("event_type", string(event.Type)),
			zap.Error(err))
		return err
	}
	return nil
}

func historyEntry(event events.Event) *domain.TicketHistory {
	entry := &domain.TicketHistory{
		ID:            event.ID,
		TicketID:      event.TicketID,
		ChangedByType: string(event.Actor.Type),
		ChangedByName: event.Actor.Name,
		CreatedAt:     event.Timestamp,
	}
	if event.Actor.ID != "" {
		id := event.Actor.ID
		entry.ChangedByID = &id
	}

	switch payload := event.Payload.(type) {
	case events.TicketCreatedPayload:
		entry.ChangeType = domain.ChangeTypeCreated
		entry.NewValue = map[string]any{
			"status":   string(domain.TicketStatusOpen),
			"priority": string(payload.Priority),
			"category": string(payload.Category),
		}
	case events.TicketStatusChangedPayload:
		entry.ChangeType = domain.ChangeTypeStatus
		entry.OldValue = map[string]any{"status": string(payload.OldStatus)}
		entry.NewValue = map[string]any{"status": string(payload.NewStatus)}
	case events.TicketAssignedPayload:
		entry.ChangeType = domain.ChangeTypeAssignee
		entry.OldValue = map[string]any{"agent_id": optionalString(payload.PreviousAgentID)}
		entry.NewValue = map[string]any{"agent_id": optionalString(payload.AgentID)}
	case events.TicketResponseAddedPayload:
		entry.ChangeType = domain.ChangeTypeResponse
		entry.NewValue = map[string]any{
			"response_id": payload.ResponseID,
			"author_role": string(payload.AuthorRole),
		}
	default:
		return nil
	}
	return entry
}

func optionalString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}
