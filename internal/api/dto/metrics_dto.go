package dto

import (
	"time"

	"github.com/spec-kit/fleet-support/internal/domain"
)

// MetricsResponse is the wire form of a metrics snapshot.
type MetricsResponse struct {
	GeneratedAt            time.Time                     `json:"generated_at"`
	WindowDays             int                           `json:"window_days"`
	TotalTickets           int                           `json:"total_tickets"`
	ByCategory             map[domain.TicketCategory]int `json:"by_category"`
	ByPriority             map[domain.TicketPriority]int `json:"by_priority"`
	ByStatus               map[domain.TicketStatus]int   `json:"by_status"`
	ResolvedTickets        int                           `json:"resolved_tickets"`
	AverageResolutionHours *float64                      `json:"average_resolution_hours"`
	Daily                  []domain.DailyPoint           `json:"daily"`
	Satisfaction           *float64                      `json:"satisfaction"`
}
