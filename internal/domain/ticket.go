package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "open"
	TicketStatusInProgress TicketStatus = "in_progress"
	TicketStatusResolved   TicketStatus = "resolved"
	TicketStatusClosed     TicketStatus = "closed"
)

// TicketStatuses lists every status in lifecycle order.
var TicketStatuses = []TicketStatus{
	TicketStatusOpen,
	TicketStatusInProgress,
	TicketStatusResolved,
	TicketStatusClosed,
}

// Valid reports whether s is a known status.
func (s TicketStatus) Valid() bool {
	for _, candidate := range TicketStatuses {
		if s == candidate {
			return true
		}
	}
	return false
}

// Active reports whether the ticket is still being worked.
func (s TicketStatus) Active() bool {
	return s == TicketStatusOpen || s == TicketStatusInProgress
}

// Locked reports whether the thread refuses new responses in this status.
func (s TicketStatus) Locked() bool {
	return s == TicketStatusResolved || s == TicketStatusClosed
}

// TicketPriority enumerates urgency levels.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "low"
	TicketPriorityMedium TicketPriority = "medium"
	TicketPriorityHigh   TicketPriority = "high"
)

// TicketPriorities lists priorities from least to most urgent.
var TicketPriorities = []TicketPriority{
	TicketPriorityLow,
	TicketPriorityMedium,
	TicketPriorityHigh,
}

// Valid reports whether p is a known priority.
func (p TicketPriority) Valid() bool {
	return p.Rank() >= 0
}

// Rank orders priorities; unknown values rank -1.
func (p TicketPriority) Rank() int {
	for i, candidate := range TicketPriorities {
		if p == candidate {
			return i
		}
	}
	return -1
}

// TicketCategory classifies what the request is about.
type TicketCategory string

const (
	TicketCategoryTechnical TicketCategory = "technical"
	TicketCategoryBilling   TicketCategory = "billing"
	TicketCategoryAccount   TicketCategory = "account"
	TicketCategorySales     TicketCategory = "sales"
	TicketCategoryGeneral   TicketCategory = "general"
)

// TicketCategories lists the fixed category enumeration.
var TicketCategories = []TicketCategory{
	TicketCategoryTechnical,
	TicketCategoryBilling,
	TicketCategoryAccount,
	TicketCategorySales,
	TicketCategoryGeneral,
}

// Valid reports whether c is a known category.
func (c TicketCategory) Valid() bool {
	for _, candidate := range TicketCategories {
		if c == candidate {
			return true
		}
	}
	return false
}

// Requester identifies the customer who opened the ticket.
type Requester struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Ticket is the aggregate for support requests.
type Ticket struct {
	ID              string         `json:"id"`
	Title           string         `json:"title"`
	Description     string         `json:"description"`
	Status          TicketStatus   `json:"status"`
	Priority        TicketPriority `json:"priority"`
	Category        TicketCategory `json:"category"`
	Requester       Requester      `json:"requester"`
	AssignedAgentID *string        `json:"assigned_agent_id,omitempty"`
	Tags            []string       `json:"tags"`
	Responses       []Response     `json:"responses"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	ResolvedAt      *time.Time     `json:"resolved_at,omitempty"`

	// Version is the optimistic concurrency token. Repositories bump it on
	// every successful Put; zero means the ticket has never been stored.
	Version int64 `json:"version"`
}

// Clone returns a deep copy that shares no mutable state with t.
func (t *Ticket) Clone() *Ticket {
	if t == nil {
		return nil
	}
	clone := *t
	if t.AssignedAgentID != nil {
		agentID := *t.AssignedAgentID
		clone.AssignedAgentID = &agentID
	}
	if t.ResolvedAt != nil {
		resolvedAt := *t.ResolvedAt
		clone.ResolvedAt = &resolvedAt
	}
	clone.Tags = append([]string(nil), t.Tags...)
	clone.Responses = append([]Response(nil), t.Responses...)
	return &clone
}

// AssignedTo reports whether the ticket is currently bound to agentID.
func (t *Ticket) AssignedTo(agentID string) bool {
	return t.AssignedAgentID != nil && *t.AssignedAgentID == agentID
}

// Touch stamps UpdatedAt without ever moving it backwards.
func (t *Ticket) Touch(now time.Time) {
	if now.Before(t.UpdatedAt) {
		return
	}
	t.UpdatedAt = now
}

// ResolutionTime returns how long the ticket took to resolve, if it has been.
func (t *Ticket) ResolutionTime() (time.Duration, bool) {
	if t.ResolvedAt == nil {
		return 0, false
	}
	d := t.ResolvedAt.Sub(t.CreatedAt)
	if d < 0 {
		d = 0
	}
	return d, true
}
