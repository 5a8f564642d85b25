package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/fleet-support/internal/api/dto"
	"github.com/spec-kit/fleet-support/internal/auth"
	"github.com/spec-kit/fleet-support/internal/domain"
	"github.com/spec-kit/fleet-support/internal/query"
	"github.com/spec-kit/fleet-support/internal/service"
	apperrors "github.com/spec-kit/fleet-support/pkg/util/errorutil"
)

// TicketsHandler exposes the ticket lifecycle endpoints.
type TicketsHandler struct {
	service *service.TicketService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService) *TicketsHandler {
	return &TicketsHandler{service: ticketService}
}

// CreateTicket POST /tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	requester := domain.Requester{
		ID:    req.Requester.ID,
		Name:  req.Requester.Name,
		Email: req.Requester.Email,
	}
	if principal, ok := auth.PrincipalFromContext(c); ok && principal.Role == domain.AuthorRoleRequester && requester.ID == "" {
		requester.ID = principal.ID
	}

	ticket, err := h.service.CreateTicket(c.UserContext(), service.TicketCreateInput{
		Title:       req.Title,
		Description: req.Description,
		Priority:    req.Priority,
		Category:    req.Category,
		Requester:   requester,
		Tags:        req.Tags,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": ticketDetail(ticket)})
}

// ListTickets GET /tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	filter, sort, err := parseTicketQuery(c)
	if err != nil {
		return err
	}
	tickets, err := h.service.ListTickets(c.UserContext(), filter, sort)
	if err != nil {
		return err
	}
	items := make([]dto.TicketSummary, 0, len(tickets))
	for i := range tickets {
		items = append(items, ticketSummary(&tickets[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// GetTicket GET /tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	ticket, err := h.service.GetTicket(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketDetail(ticket)})
}

// UpdateStatus PATCH /tickets/:id/status.
func (h *TicketsHandler) UpdateStatus(c *fiber.Ctx) error {
	var req dto.UpdateStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Status == "" {
		return apperrors.NewValidationError("status required", nil)
	}
	ticket, err := h.service.UpdateStatus(c.UserContext(), c.Params("id"), req.Status)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketDetail(ticket)})
}

// AssignTicket PUT /tickets/:id/assignee.
func (h *TicketsHandler) AssignTicket(c *fiber.Ctx) error {
	var req dto.AssignTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	ticket, err := h.service.AssignTicket(c.UserContext(), c.Params("id"), req.AgentID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketDetail(ticket)})
}

// ListResponses GET /tickets/:id/responses.
func (h *TicketsHandler) ListResponses(c *fiber.Ctx) error {
	responses, err := h.service.ListResponses(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	items := make([]dto.ResponseResponse, 0, len(responses))
	for i := range responses {
		items = append(items, responseResponse(&responses[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// ListHistory GET /tickets/:id/history.
func (h *TicketsHandler) ListHistory(c *fiber.Ctx) error {
	entries, err := h.service.ListHistory(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	items := make([]dto.HistoryEntryResponse, 0, len(entries))
	for _, e := range entries {
		items = append(items, dto.HistoryEntryResponse{
			ID:         e.ID,
			ChangeType: e.ChangeType,
			ChangedBy:  dto.HistoryActor{Type: e.ChangedByType, ID: e.ChangedByID, Name: e.ChangedByName},
			OldValue:   e.OldValue,
			NewValue:   e.NewValue,
			CreatedAt:  e.CreatedAt,
		})
	}
	return c.JSON(fiber.Map{"data": items})
}

// AddResponse POST /tickets/:id/responses.
func (h *TicketsHandler) AddResponse(c *fiber.Ctx) error {
	var req dto.CreateResponseRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	// An authenticated caller always speaks as itself. A body author is only
	// honoured when auth is disabled.
	var author domain.Author
	switch principal, ok := auth.PrincipalFromContext(c); {
	case ok:
		author = principal.Author()
		if req.Author != nil && (strings.TrimSpace(req.Author.ID) != author.ID || req.Author.Role != author.Role) {
			return apperrors.NewForbidden("response author must match the authenticated caller")
		}
	case req.Author != nil:
		author = domain.Author{ID: req.Author.ID, Name: req.Author.Name, Role: req.Author.Role}
	default:
		return apperrors.NewValidationError("author required", nil)
	}

	resp, err := h.service.AddResponse(c.UserContext(), c.Params("id"), author, req.Message)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": responseResponse(resp)})
}

func parseTicketQuery(c *fiber.Ctx) (query.Filter, query.Sort, error) {
	var filter query.Filter
	if v := strings.TrimSpace(c.Query("status")); v != "" {
		status := domain.TicketStatus(v)
		filter.Status = &status
	}
	if v := strings.TrimSpace(c.Query("priority")); v != "" {
		priority := domain.TicketPriority(v)
		filter.Priority = &priority
	}
	if v := strings.TrimSpace(c.Query("category")); v != "" {
		category := domain.TicketCategory(v)
		filter.Category = &category
	}
	if v := strings.TrimSpace(c.Query("assignee")); v != "" {
		filter.AssignedAgent = &v
	}
	filter.Text = c.Query("q")
	filter.Tag = c.Query("tag")

	var err error
	if filter.Limit, err = parseNonNegative(c.Query("limit")); err != nil {
		return filter, query.Sort{}, apperrors.NewValidationError("limit must be a non-negative integer", nil)
	}
	if filter.Offset, err = parseNonNegative(c.Query("offset")); err != nil {
		return filter, query.Sort{}, apperrors.NewValidationError("offset must be a non-negative integer", nil)
	}

	sort := query.Sort{
		Field: query.SortField(strings.TrimSpace(c.Query("sort"))),
		Order: query.SortOrder(strings.ToLower(strings.TrimSpace(c.Query("order")))),
	}
	return filter, sort, nil
}

func parseNonNegative(val string) (int, error) {
	if val == "" {
		return 0, nil
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return 0, err
	}
	if parsed < 0 {
		return 0, strconv.ErrRange
	}
	return parsed, nil
}

func ticketSummary(ticket *domain.Ticket) dto.TicketSummary {
	tags := ticket.Tags
	if tags == nil {
		tags = []string{}
	}
	return dto.TicketSummary{
		ID:       ticket.ID,
		Title:    ticket.Title,
		Status:   ticket.Status,
		Priority: ticket.Priority,
		Category: ticket.Category,
		Requester: dto.RequesterPayload{
			ID:    ticket.Requester.ID,
			Name:  ticket.Requester.Name,
			Email: ticket.Requester.Email,
		},
		AssignedAgentID: ticket.AssignedAgentID,
		Tags:            tags,
		ResponseCount:   len(ticket.Responses),
		CreatedAt:       ticket.CreatedAt,
		UpdatedAt:       ticket.UpdatedAt,
		ResolvedAt:      ticket.ResolvedAt,
	}
}

func ticketDetail(ticket *domain.Ticket) dto.TicketDetailResponse {
	responses := make([]dto.ResponseResponse, 0, len(ticket.Responses))
	for i := range ticket.Responses {
		responses = append(responses, responseResponse(&ticket.Responses[i]))
	}
	return dto.TicketDetailResponse{
		TicketSummary:      ticketSummary(ticket),
		Description:        ticket.Description,
		Responses:          responses,
		AllowedTransitions: service.NextStatuses(ticket.Status),
		Version:            ticket.Version,
	}
}

func responseResponse(resp *domain.Response) dto.ResponseResponse {
	return dto.ResponseResponse{
		ID:       resp.ID,
		TicketID: resp.TicketID,
		Author: dto.AuthorPayload{
			ID:   resp.Author.ID,
			Name: resp.Author.Name,
			Role: resp.Author.Role,
		},
		Message:   resp.Message,
		CreatedAt: resp.CreatedAt,
	}
}
