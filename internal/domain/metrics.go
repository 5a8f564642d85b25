package domain

import "time"

// DailyPoint is one day of the creation/resolution trend.
type DailyPoint struct {
	Date          string `json:"date"`
	CreatedCount  int    `json:"created_count"`
	ResolvedCount int    `json:"resolved_count"`
}

// MetricsSnapshot is a derived, point-in-time summary of the ticket collection.
type MetricsSnapshot struct {
	GeneratedAt            time.Time              `json:"generated_at"`
	WindowDays             int                    `json:"window_days"`
	TotalTickets           int                    `json:"total_tickets"`
	ByCategory             map[TicketCategory]int `json:"by_category"`
	ByPriority             map[TicketPriority]int `json:"by_priority"`
	ByStatus               map[TicketStatus]int   `json:"by_status"`
	ResolvedTickets        int                    `json:"resolved_tickets"`
	AverageResolutionHours float64                `json:"average_resolution_hours"`
	HasResolutionData      bool                   `json:"has_resolution_data"`
	Daily                  []DailyPoint           `json:"daily"`

	// Satisfaction is supplied by the survey system and echoed unchanged.
	Satisfaction *float64 `json:"satisfaction,omitempty"`
}
