package query

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spec-kit/fleet-support/internal/domain"
)

// SortField names a sortable ticket attribute.
type SortField string

const (
	SortByCreatedAt SortField = "created_at"
	SortByUpdatedAt SortField = "updated_at"
	SortByPriority  SortField = "priority"
)

// SortOrder is the direction of a sort.
type SortOrder string

const (
	Ascending  SortOrder = "asc"
	Descending SortOrder = "desc"
)

// Sort selects result ordering. The zero value sorts newest first.
type Sort struct {
	Field SortField
	Order SortOrder
}

// DefaultSort orders by creation time, newest first.
var DefaultSort = Sort{Field: SortByCreatedAt, Order: Descending}

func (s Sort) normalized() Sort {
	if s.Field == "" {
		s.Field = DefaultSort.Field
	}
	if s.Order == "" {
		s.Order = Descending
	}
	return s
}

// Validate rejects unknown fields or directions.
func (s Sort) Validate() error {
	s = s.normalized()
	switch s.Field {
	case SortByCreatedAt, SortByUpdatedAt, SortByPriority:
	default:
		return fmt.Errorf("unknown sort field %q", s.Field)
	}
	if s.Order != Ascending && s.Order != Descending {
		return fmt.Errorf("unknown sort order %q", s.Order)
	}
	return nil
}

// Filter holds the optional list predicates. Nil or empty fields match
// every ticket; supplied fields are combined with AND.
type Filter struct {
	Status        *domain.TicketStatus
	Priority      *domain.TicketPriority
	Category      *domain.TicketCategory
	AssignedAgent *string
	Text          string
	Tag           string

	// Limit caps the page size after sorting; zero means no limit.
	Limit  int
	Offset int
}

// Validate checks enum membership and paging bounds.
func (f Filter) Validate() error {
	if f.Status != nil && !f.Status.Valid() {
		return fmt.Errorf("unknown status %q", *f.Status)
	}
	if f.Priority != nil && !f.Priority.Valid() {
		return fmt.Errorf("unknown priority %q", *f.Priority)
	}
	if f.Category != nil && !f.Category.Valid() {
		return fmt.Errorf("unknown category %q", *f.Category)
	}
	if f.AssignedAgent != nil && strings.TrimSpace(*f.AssignedAgent) == "" {
		return fmt.Errorf("assigned agent must not be blank")
	}
	if f.Limit < 0 || f.Offset < 0 {
		return fmt.Errorf("limit and offset must be non-negative")
	}
	return nil
}

// Predicate composes the supplied fields into one predicate.
func (f Filter) Predicate() Predicate {
	preds := All{}
	if f.Status != nil {
		preds = append(preds, StatusIs(*f.Status))
	}
	if f.Priority != nil {
		preds = append(preds, PriorityIs(*f.Priority))
	}
	if f.Category != nil {
		preds = append(preds, CategoryIs(*f.Category))
	}
	if f.AssignedAgent != nil {
		preds = append(preds, AssignedTo(strings.TrimSpace(*f.AssignedAgent)))
	}
	if strings.TrimSpace(f.Text) != "" {
		preds = append(preds, TextContains(f.Text))
	}
	if strings.TrimSpace(f.Tag) != "" {
		preds = append(preds, HasTag(strings.TrimSpace(f.Tag)))
	}
	return preds
}

// Run filters, sorts and pages tickets. The input slice is not modified.
func Run(tickets []domain.Ticket, filter Filter, order Sort) []domain.Ticket {
	pred := filter.Predicate()
	result := make([]domain.Ticket, 0, len(tickets))
	for i := range tickets {
		if pred.Match(&tickets[i]) {
			result = append(result, tickets[i])
		}
	}

	order = order.normalized()
	sort.SliceStable(result, func(i, j int) bool {
		return less(&result[i], &result[j], order)
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(result) {
			return []domain.Ticket{}
		}
		result = result[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(result) {
		result = result[:filter.Limit]
	}
	return result
}

func less(a, b *domain.Ticket, order Sort) bool {
	var cmp int
	switch order.Field {
	case SortByUpdatedAt:
		cmp = a.UpdatedAt.Compare(b.UpdatedAt)
	case SortByPriority:
		cmp = a.Priority.Rank() - b.Priority.Rank()
		if cmp == 0 {
			cmp = a.CreatedAt.Compare(b.CreatedAt)
		}
	default:
		cmp = a.CreatedAt.Compare(b.CreatedAt)
	}
	if cmp == 0 {
		cmp = strings.Compare(a.ID, b.ID)
	}
	if order.Order == Ascending {
		return cmp < 0
	}
	return cmp > 0
}
