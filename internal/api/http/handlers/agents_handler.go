package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/fleet-support/internal/api/dto"
	"github.com/spec-kit/fleet-support/internal/service"
)

// AgentsHandler lists the agent directory with workloads.
type AgentsHandler struct {
	service *service.TicketService
}

// NewAgentsHandler constructs handler.
func NewAgentsHandler(ticketService *service.TicketService) *AgentsHandler {
	return &AgentsHandler{service: ticketService}
}

// ListAgents GET /agents.
func (h *AgentsHandler) ListAgents(c *fiber.Ctx) error {
	workloads, err := h.service.ListAgents(c.UserContext())
	if err != nil {
		return err
	}
	items := make([]dto.AgentResponse, 0, len(workloads))
	for _, w := range workloads {
		items = append(items, dto.AgentResponse{
			ID:              w.ID,
			Name:            w.Name,
			Role:            w.Role,
			Presence:        w.Presence,
			ActiveTickets:   w.ActiveTickets,
			AssignedTickets: w.AssignedTickets,
		})
	}
	return c.JSON(fiber.Map{"data": items})
}
