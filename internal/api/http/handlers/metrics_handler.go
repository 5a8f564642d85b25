package handlers

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/fleet-support/internal/api/dto"
	"github.com/spec-kit/fleet-support/internal/service"
	apperrors "github.com/spec-kit/fleet-support/pkg/util/errorutil"
)

// MetricsHandler serves ticket metrics snapshots.
type MetricsHandler struct {
	service *service.TicketService
}

// NewMetricsHandler constructs handler.
func NewMetricsHandler(ticketService *service.TicketService) *MetricsHandler {
	return &MetricsHandler{service: ticketService}
}

// GetMetrics GET /metrics?window_days=&satisfaction=.
func (h *MetricsHandler) GetMetrics(c *fiber.Ctx) error {
	window := 0
	if v := strings.TrimSpace(c.Query("window_days")); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			return apperrors.NewValidationError("window_days must be an integer", nil)
		}
		window = parsed
	}

	var satisfaction *float64
	if v := strings.TrimSpace(c.Query("satisfaction")); v != "" {
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return apperrors.NewValidationError("satisfaction must be a number", nil)
		}
		satisfaction = &parsed
	}

	snap, err := h.service.GetMetrics(c.UserContext(), window, satisfaction)
	if err != nil {
		return err
	}

	resp := dto.MetricsResponse{
		GeneratedAt:     snap.GeneratedAt,
		WindowDays:      snap.WindowDays,
		TotalTickets:    snap.TotalTickets,
		ByCategory:      snap.ByCategory,
		ByPriority:      snap.ByPriority,
		ByStatus:        snap.ByStatus,
		ResolvedTickets: snap.ResolvedTickets,
		Daily:           snap.Daily,
		Satisfaction:    snap.Satisfaction,
	}
	if snap.HasResolutionData {
		avg := snap.AverageResolutionHours
		resp.AverageResolutionHours = &avg
	}
	return c.JSON(fiber.Map{"data": resp})
}
