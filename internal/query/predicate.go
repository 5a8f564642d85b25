package query

import (
	"strings"

	"github.com/spec-kit/fleet-support/internal/domain"
)

// Unassigned is the AssignedAgent value that matches tickets with no agent.
const Unassigned = "unassigned"

// Predicate decides whether a ticket belongs in a result set.
type Predicate interface {
	Match(ticket *domain.Ticket) bool
}

// PredicateFunc adapts a plain function to Predicate.
type PredicateFunc func(ticket *domain.Ticket) bool

func (f PredicateFunc) Match(ticket *domain.Ticket) bool { return f(ticket) }

// StatusIs matches tickets in the given status.
type StatusIs domain.TicketStatus

func (p StatusIs) Match(ticket *domain.Ticket) bool {
	return ticket.Status == domain.TicketStatus(p)
}

// PriorityIs matches tickets with the given priority.
type PriorityIs domain.TicketPriority

func (p PriorityIs) Match(ticket *domain.Ticket) bool {
	return ticket.Priority == domain.TicketPriority(p)
}

// CategoryIs matches tickets in the given category.
type CategoryIs domain.TicketCategory

func (p CategoryIs) Match(ticket *domain.Ticket) bool {
	return ticket.Category == domain.TicketCategory(p)
}

// AssignedTo matches tickets bound to an agent id. The value Unassigned
// matches tickets without an agent.
type AssignedTo string

func (p AssignedTo) Match(ticket *domain.Ticket) bool {
	if string(p) == Unassigned {
		return ticket.AssignedAgentID == nil
	}
	return ticket.AssignedTo(string(p))
}

// TextContains is a case-insensitive substring search over the title,
// description, requester name and requester email.
type TextContains string

func (p TextContains) Match(ticket *domain.Ticket) bool {
	needle := strings.ToLower(strings.TrimSpace(string(p)))
	if needle == "" {
		return true
	}
	for _, field := range []string{
		ticket.Title,
		ticket.Description,
		ticket.Requester.Name,
		ticket.Requester.Email,
	} {
		if strings.Contains(strings.ToLower(field), needle) {
			return true
		}
	}
	return false
}

// HasTag matches tickets carrying the tag, ignoring case.
type HasTag string

func (p HasTag) Match(ticket *domain.Ticket) bool {
	for _, tag := range ticket.Tags {
		if strings.EqualFold(tag, string(p)) {
			return true
		}
	}
	return false
}

// All is the conjunction of its predicates. An empty All matches everything.
type All []Predicate

func (p All) Match(ticket *domain.Ticket) bool {
	for _, pred := range p {
		if !pred.Match(ticket) {
			return false
		}
	}
	return true
}
