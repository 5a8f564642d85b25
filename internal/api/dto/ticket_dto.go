package dto

import (
	"time"

	"github.com/spec-kit/fleet-support/internal/domain"
)

// RequesterPayload identifies the customer opening a ticket.
type RequesterPayload struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Title       string                `json:"title"`
	Description string                `json:"description"`
	Priority    domain.TicketPriority `json:"priority"`
	Category    domain.TicketCategory `json:"category"`
	Requester   RequesterPayload      `json:"requester"`
	Tags        []string              `json:"tags"`
}

// UpdateStatusRequest payload.
type UpdateStatusRequest struct {
	Status domain.TicketStatus `json:"status"`
}

// AssignTicketRequest payload. A null agent_id unassigns.
type AssignTicketRequest struct {
	AgentID *string `json:"agent_id"`
}

// CreateResponseRequest payload. Author may be omitted when the caller is
// authenticated; the token identity is used instead.
type CreateResponseRequest struct {
	Message string         `json:"message"`
	Author  *AuthorPayload `json:"author,omitempty"`
}

// AuthorPayload identifies who wrote a response.
type AuthorPayload struct {
	ID   string            `json:"id"`
	Name string            `json:"name"`
	Role domain.AuthorRole `json:"role"`
}

// TicketSummary response used in listings.
type TicketSummary struct {
	ID              string                `json:"id"`
	Title           string                `json:"title"`
	Status          domain.TicketStatus   `json:"status"`
	Priority        domain.TicketPriority `json:"priority"`
	Category        domain.TicketCategory `json:"category"`
	Requester       RequesterPayload      `json:"requester"`
	AssignedAgentID *string               `json:"assigned_agent_id"`
	Tags            []string              `json:"tags"`
	ResponseCount   int                   `json:"response_count"`
	CreatedAt       time.Time             `json:"created_at"`
	UpdatedAt       time.Time             `json:"updated_at"`
	ResolvedAt      *time.Time            `json:"resolved_at"`
}

// TicketDetailResponse provides full ticket info.
type TicketDetailResponse struct {
	TicketSummary
	Description        string                `json:"description"`
	Responses          []ResponseResponse    `json:"responses"`
	AllowedTransitions []domain.TicketStatus `json:"allowed_transitions"`
	Version            int64                 `json:"version"`
}

// ResponseResponse represents one thread message.
type ResponseResponse struct {
	ID        string        `json:"id"`
	TicketID  string        `json:"ticket_id"`
	Author    AuthorPayload `json:"author"`
	Message   string        `json:"message"`
	CreatedAt time.Time     `json:"created_at"`
}

// HistoryEntryResponse is one audit trail entry.
type HistoryEntryResponse struct {
	ID         string                  `json:"id"`
	ChangeType domain.TicketChangeType `json:"change_type"`
	ChangedBy  HistoryActor            `json:"changed_by"`
	OldValue   map[string]any          `json:"old_value,omitempty"`
	NewValue   map[string]any          `json:"new_value,omitempty"`
	CreatedAt  time.Time               `json:"created_at"`
}

// HistoryActor identifies who made a change.
type HistoryActor struct {
	Type string  `json:"type"`
	ID   *string `json:"id,omitempty"`
	Name string  `json:"name,omitempty"`
}
