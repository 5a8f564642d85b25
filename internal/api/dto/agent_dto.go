package dto

import "github.com/spec-kit/fleet-support/internal/domain"

// AgentResponse is an agent with derived ticket counts.
type AgentResponse struct {
	ID              string               `json:"id"`
	Name            string               `json:"name"`
	Role            string               `json:"role"`
	Presence        domain.AgentPresence `json:"presence"`
	ActiveTickets   int                  `json:"active_tickets"`
	AssignedTickets int                  `json:"assigned_tickets"`
}
