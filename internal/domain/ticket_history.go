package domain

import "time"

// TicketChangeType captures what changed in a history entry.
type TicketChangeType string

const (
	ChangeTypeCreated  TicketChangeType = "created"
	ChangeTypeStatus   TicketChangeType = "status_change"
	ChangeTypeAssignee TicketChangeType = "assignee_change"
	ChangeTypeResponse TicketChangeType = "response_added"
)

// TicketHistory is an immutable audit trail entry. ChangedByType is the
// actor kind (agent, requester or system).
type TicketHistory struct {
	ID            string           `json:"id"`
	TicketID      string           `json:"ticket_id"`
	ChangedByType string           `json:"changed_by_type"`
	ChangedByID   *string          `json:"changed_by_id,omitempty"`
	ChangedByName string           `json:"changed_by_name,omitempty"`
	ChangeType    TicketChangeType `json:"change_type"`
	OldValue      map[string]any   `json:"old_value,omitempty"`
	NewValue      map[string]any   `json:"new_value,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
}
