package events

import (
	"time"

	"github.com/spec-kit/fleet-support/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated       EventType = "ticket_created"
	EventTicketStatusChanged EventType = "ticket_status_changed"
	EventTicketAssigned      EventType = "ticket_assigned"
	EventTicketResponseAdded EventType = "ticket_response_added"
)

// ActorType distinguishes who caused an event.
type ActorType string

const (
	ActorAgent     ActorType = "agent"
	ActorRequester ActorType = "requester"
	ActorSystem    ActorType = "system"
)

// Actor encapsulates actor metadata for an event.
type Actor struct {
	Type ActorType `json:"type"`
	ID   string    `json:"id,omitempty"`
	Name string    `json:"name,omitempty"`
}

// Event represents a domain event emitted by services after a commit.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	TicketID  string    `json:"ticket_id"`
	Actor     Actor     `json:"actor"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	Priority    domain.TicketPriority `json:"priority"`
	Category    domain.TicketCategory `json:"category"`
	Title       string                `json:"title"`
	RequesterID string                `json:"requester_id,omitempty"`
}

// TicketStatusChangedPayload payload.
type TicketStatusChangedPayload struct {
	OldStatus domain.TicketStatus `json:"old_status"`
	NewStatus domain.TicketStatus `json:"new_status"`
}

// TicketAssignedPayload payload. A nil AgentID means the ticket was unassigned.
type TicketAssignedPayload struct {
	PreviousAgentID *string `json:"previous_agent_id,omitempty"`
	AgentID         *string `json:"agent_id,omitempty"`
}

// TicketResponseAddedPayload payload.
type TicketResponseAddedPayload struct {
	ResponseID  string            `json:"response_id"`
	AuthorRole  domain.AuthorRole `json:"author_role"`
	AuthorName  string            `json:"author_name"`
	BodyPreview string            `json:"body_preview"`
}
