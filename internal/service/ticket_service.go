package service

import (
	"context"
	"fmt"
	"math"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/fleet-support/internal/analytics"
	"github.com/spec-kit/fleet-support/internal/domain"
	"github.com/spec-kit/fleet-support/internal/events"
	"github.com/spec-kit/fleet-support/internal/query"
	"github.com/spec-kit/fleet-support/internal/repository"
	apperrors "github.com/spec-kit/fleet-support/pkg/util/errorutil"
)

// MaxTagLength bounds a single tag in characters.
const MaxTagLength = 32

// TicketService coordinates ticket workflows. It is the only entry point
// transports use; the sub-components are reachable only through it.
type TicketService struct {
	store         *ticketStore
	assignments   *AssignmentService
	history       repository.TicketHistoryRepository
	logger        *zap.Logger
	defaultWindow int
	location      *time.Location
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	TicketRepo repository.TicketRepository
	Agents     repository.AgentDirectory
	Dispatcher events.Dispatcher
	// History receives one audit entry per committed mutation when set.
	// Recording needs Dispatcher.
	History repository.TicketHistoryRepository
	Logger  *zap.Logger
	// Clock defaults to time.Now in UTC.
	Clock func() time.Time
	// MetricsWindowDays is used when GetMetrics receives a window <= 0.
	MetricsWindowDays int
	// MetricsLocation sets calendar-day boundaries for the daily series.
	MetricsLocation *time.Location
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	Title       string
	Description string
	Priority    domain.TicketPriority
	Category    domain.TicketCategory
	Requester   domain.Requester
	Tags        []string
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	loc := deps.MetricsLocation
	if loc == nil {
		loc = time.UTC
	}
	store := &ticketStore{
		tickets:    deps.TicketRepo,
		locks:      newTicketLocks(),
		dispatcher: deps.Dispatcher,
		logger:     logger,
		now:        clock,
	}
	if deps.History != nil && deps.Dispatcher != nil {
		(&historyRecorder{repo: deps.History, logger: logger}).register(deps.Dispatcher)
	}
	return &TicketService{
		store:         store,
		assignments:   newAssignmentService(store, deps.Agents),
		history:       deps.History,
		logger:        logger,
		defaultWindow: deps.MetricsWindowDays,
		location:      loc,
	}
}

// CreateTicket validates input and stores a new open ticket.
func (s *TicketService) CreateTicket(ctx context.Context, input TicketCreateInput) (*domain.Ticket, error) {
	ticket, err := newTicketFromInput(input)
	if err != nil {
		return nil, err
	}
	now := s.store.now()
	ticket.ID = uuid.NewString()
	ticket.CreatedAt = now
	ticket.UpdatedAt = now

	if err := s.store.tickets.Put(ctx, ticket); err != nil {
		return nil, s.store.mapRepoError(err, ticket.ID)
	}

	s.logger.Debug("ticket created",
		zap.String("ticket_id", ticket.ID),
		zap.String("priority", string(ticket.Priority)),
		zap.String("category", string(ticket.Category)))
	s.store.publish(ctx, events.EventTicketCreated, ticket.ID, events.TicketCreatedPayload{
		Priority:    ticket.Priority,
		Category:    ticket.Category,
		Title:       ticket.Title,
		RequesterID: ticket.Requester.ID,
	})
	return ticket, nil
}

// GetTicket fetches one ticket.
func (s *TicketService) GetTicket(ctx context.Context, id string) (*domain.Ticket, error) {
	return s.store.get(ctx, id)
}

// ListTickets returns tickets matching every supplied predicate, ordered by
// sort (newest first when unset).
func (s *TicketService) ListTickets(ctx context.Context, filter query.Filter, sort query.Sort) ([]domain.Ticket, error) {
	if err := filter.Validate(); err != nil {
		return nil, apperrors.NewValidationError(err.Error(), nil)
	}
	if err := sort.Validate(); err != nil {
		return nil, apperrors.NewValidationError(err.Error(), nil)
	}
	tickets, err := s.store.tickets.Scan(ctx)
	if err != nil {
		s.logger.Error("ticket scan failed", zap.Error(err))
		return nil, apperrors.NewInternalError(err)
	}
	return query.Run(tickets, filter, sort), nil
}

// UpdateStatus applies a state machine transition.
func (s *TicketService) UpdateStatus(ctx context.Context, id string, target domain.TicketStatus) (*domain.Ticket, error) {
	if !target.Valid() {
		return nil, apperrors.NewValidationError("unknown status", map[string]any{"status": target})
	}

	var previous domain.TicketStatus
	ticket, err := s.store.update(ctx, id, func(ticket *domain.Ticket, now time.Time) error {
		previous = ticket.Status
		return applyTransition(ticket, target, now)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug("ticket status changed",
		zap.String("ticket_id", ticket.ID),
		zap.String("from", string(previous)),
		zap.String("to", string(ticket.Status)))
	s.store.publish(ctx, events.EventTicketStatusChanged, ticket.ID, events.TicketStatusChangedPayload{
		OldStatus: previous,
		NewStatus: ticket.Status,
	})
	return ticket, nil
}

// AssignTicket binds the ticket to agentID, or unassigns it when nil.
func (s *TicketService) AssignTicket(ctx context.Context, id string, agentID *string) (*domain.Ticket, error) {
	return s.assignments.Assign(ctx, id, agentID)
}

// AddResponse appends a message to the ticket thread.
func (s *TicketService) AddResponse(ctx context.Context, id string, author domain.Author, message string) (*domain.Response, error) {
	author, message, err := normalizeResponse(author, message)
	if err != nil {
		return nil, err
	}

	var resp domain.Response
	responseID := uuid.NewString()
	if _, err := s.store.update(ctx, id, func(ticket *domain.Ticket, now time.Time) error {
		var err error
		resp, err = appendResponse(ticket, responseID, author, message, now)
		return err
	}); err != nil {
		return nil, err
	}

	s.logger.Debug("ticket response added",
		zap.String("ticket_id", id),
		zap.String("response_id", resp.ID),
		zap.String("author_role", string(resp.Author.Role)))
	s.store.publish(ctx, events.EventTicketResponseAdded, id, events.TicketResponseAddedPayload{
		ResponseID:  resp.ID,
		AuthorRole:  resp.Author.Role,
		AuthorName:  resp.Author.Name,
		BodyPreview: stringPreview(resp.Message, previewLength),
	})
	return &resp, nil
}

// ListResponses returns the thread in append order.
func (s *TicketService) ListResponses(ctx context.Context, id string) ([]domain.Response, error) {
	ticket, err := s.store.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if ticket.Responses == nil {
		return []domain.Response{}, nil
	}
	return ticket.Responses, nil
}

// ListHistory returns the audit trail of a ticket, oldest first.
func (s *TicketService) ListHistory(ctx context.Context, id string) ([]domain.TicketHistory, error) {
	if _, err := s.store.get(ctx, id); err != nil {
		return nil, err
	}
	if s.history == nil {
		return []domain.TicketHistory{}, nil
	}
	entries, err := s.history.ListByTicket(ctx, id)
	if err != nil {
		s.logger.Error("ticket history read failed", zap.String("ticket_id", id), zap.Error(err))
		return nil, apperrors.NewInternalError(err)
	}
	return entries, nil
}

// ListAgents returns the directory with derived ticket counts.
func (s *TicketService) ListAgents(ctx context.Context) ([]AgentWorkload, error) {
	return s.assignments.Workloads(ctx)
}

// GetMetrics builds a snapshot of the current collection. satisfaction is
// an externally computed score and is echoed unchanged.
func (s *TicketService) GetMetrics(ctx context.Context, windowDays int, satisfaction *float64) (*domain.MetricsSnapshot, error) {
	if satisfaction != nil && (math.IsNaN(*satisfaction) || math.IsInf(*satisfaction, 0)) {
		return nil, apperrors.NewValidationError("satisfaction must be a finite number", nil)
	}
	tickets, err := s.store.tickets.Scan(ctx)
	if err != nil {
		s.logger.Error("ticket scan failed", zap.Error(err))
		return nil, apperrors.NewInternalError(err)
	}
	return analytics.Snapshot(tickets, analytics.Options{
		WindowDays:    windowDays,
		DefaultWindow: s.defaultWindow,
		Satisfaction:  satisfaction,
		Now:           s.store.now(),
		Location:      s.location,
	}), nil
}

func newTicketFromInput(input TicketCreateInput) (*domain.Ticket, error) {
	fields := map[string]string{}

	title := strings.TrimSpace(input.Title)
	if title == "" {
		fields["title"] = "must not be empty"
	}
	description := strings.TrimSpace(input.Description)
	if description == "" {
		fields["description"] = "must not be empty"
	}
	if !input.Priority.Valid() {
		fields["priority"] = fmt.Sprintf("must be one of %v", domain.TicketPriorities)
	}
	if !input.Category.Valid() {
		fields["category"] = fmt.Sprintf("must be one of %v", domain.TicketCategories)
	}

	requester := domain.Requester{
		ID:    strings.TrimSpace(input.Requester.ID),
		Name:  strings.TrimSpace(input.Requester.Name),
		Email: strings.TrimSpace(input.Requester.Email),
	}
	if requester.Name == "" {
		fields["requester.name"] = "must not be empty"
	}
	if !validEmail(requester.Email) {
		fields["requester.email"] = "must be a well-formed address"
	}

	tags, tagErr := normalizeTags(input.Tags)
	if tagErr != "" {
		fields["tags"] = tagErr
	}

	if len(fields) > 0 {
		return nil, apperrors.NewValidationError("invalid ticket", map[string]any{"fields": fields})
	}
	return &domain.Ticket{
		Title:       title,
		Description: description,
		Status:      domain.TicketStatusOpen,
		Priority:    input.Priority,
		Category:    input.Category,
		Requester:   requester,
		Tags:        tags,
		Responses:   []domain.Response{},
	}, nil
}

// validEmail accepts a bare addr-spec, rejecting display-name forms.
func validEmail(email string) bool {
	if email == "" {
		return false
	}
	addr, err := mail.ParseAddress(email)
	if err != nil {
		return false
	}
	return addr.Address == email && strings.Contains(addr.Address[strings.LastIndex(addr.Address, "@")+1:], ".")
}

// normalizeTags trims, drops empties and removes case-insensitive duplicates
// while keeping the first spelling.
func normalizeTags(raw []string) ([]string, string) {
	tags := make([]string, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, tag := range raw {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if utf8.RuneCountInString(tag) > MaxTagLength {
			return nil, fmt.Sprintf("tag %q exceeds %d characters", tag, MaxTagLength)
		}
		key := strings.ToLower(tag)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		tags = append(tags, tag)
	}
	return tags, ""
}
