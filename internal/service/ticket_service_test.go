package service

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/fleet-support/internal/domain"
	"github.com/spec-kit/fleet-support/internal/events"
	"github.com/spec-kit/fleet-support/internal/query"
	"github.com/spec-kit/fleet-support/internal/repository"
	apperrors "github.com/spec-kit/fleet-support/pkg/util/errorutil"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

// Now advances one minute per call so every mutation gets a distinct stamp.
func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Minute)
	return c.now
}

type countingRepo struct {
	repository.TicketRepository
	gets, puts, scans atomic.Int32
}

func (r *countingRepo) Get(ctx context.Context, id string) (*domain.Ticket, error) {
	r.gets.Add(1)
	return r.TicketRepository.Get(ctx, id)
}

func (r *countingRepo) Put(ctx context.Context, ticket *domain.Ticket) error {
	r.puts.Add(1)
	return r.TicketRepository.Put(ctx, ticket)
}

func (r *countingRepo) Scan(ctx context.Context) ([]domain.Ticket, error) {
	r.scans.Add(1)
	return r.TicketRepository.Scan(ctx)
}

func (r *countingRepo) calls() int32 {
	return r.gets.Load() + r.puts.Load() + r.scans.Load()
}

type fixture struct {
	svc        *TicketService
	repo       *countingRepo
	dispatcher events.Dispatcher
	clock      *fakeClock
}

func testAgents() *repository.MemoryAgentDirectory {
	return repository.NewMemoryAgentDirectory(
		domain.Agent{ID: "agent-001", Name: "Sam Rivera", Role: "tier1", Presence: domain.AgentPresenceOnline},
		domain.Agent{ID: "agent-002", Name: "Alex Chen", Role: "tier2", Presence: domain.AgentPresenceAway},
	)
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo := &countingRepo{TicketRepository: repository.NewMemoryTicketRepository()}
	clock := &fakeClock{now: time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)}
	dispatcher := events.NewInMemoryDispatcher()
	svc := NewTicketService(TicketDependencies{
		TicketRepo:        repo,
		Agents:            testAgents(),
		Dispatcher:        dispatcher,
		Clock:             clock.Now,
		MetricsWindowDays: 7,
	})
	return &fixture{svc: svc, repo: repo, dispatcher: dispatcher, clock: clock}
}

func validInput() TicketCreateInput {
	return TicketCreateInput{
		Title:       "Scooter not starting",
		Description: "Throttle unresponsive at dock 4",
		Priority:    domain.TicketPriorityHigh,
		Category:    domain.TicketCategoryTechnical,
		Requester:   domain.Requester{ID: "rider-7", Name: "Ada Rider", Email: "ada@example.com"},
		Tags:        []string{"scooter", " dock-4 ", "Scooter", ""},
	}
}

func ptr[T any](v T) *T { return &v }

func TestCreateTicketInitialState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ticket, err := f.svc.CreateTicket(ctx, validInput())
	require.NoError(t, err)

	assert.NotEmpty(t, ticket.ID)
	assert.Equal(t, domain.TicketStatusOpen, ticket.Status)
	assert.Nil(t, ticket.ResolvedAt)
	assert.Nil(t, ticket.AssignedAgentID)
	assert.NotNil(t, ticket.Responses)
	assert.Empty(t, ticket.Responses)
	assert.Equal(t, ticket.CreatedAt, ticket.UpdatedAt)
	assert.Equal(t, []string{"scooter", "dock-4"}, ticket.Tags)
	assert.Equal(t, int64(1), ticket.Version)

	stored, err := f.svc.GetTicket(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, ticket.Title, stored.Title)
}

func TestCreateTicketValidation(t *testing.T) {
	cases := map[string]func(in *TicketCreateInput){
		"blank title":          func(in *TicketCreateInput) { in.Title = "   " },
		"blank description":    func(in *TicketCreateInput) { in.Description = "" },
		"unknown priority":     func(in *TicketCreateInput) { in.Priority = "urgent" },
		"missing priority":     func(in *TicketCreateInput) { in.Priority = "" },
		"unknown category":     func(in *TicketCreateInput) { in.Category = "fleet" },
		"missing requester":    func(in *TicketCreateInput) { in.Requester.Name = "" },
		"malformed email":      func(in *TicketCreateInput) { in.Requester.Email = "ada-at-example" },
		"display name email":   func(in *TicketCreateInput) { in.Requester.Email = "Ada <ada@example.com>" },
		"email without domain": func(in *TicketCreateInput) { in.Requester.Email = "ada@localhost" },
		"oversized tag":        func(in *TicketCreateInput) { in.Tags = []string{strings.Repeat("x", MaxTagLength+1)} },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t)
			in := validInput()
			mutate(&in)

			_, err := f.svc.CreateTicket(context.Background(), in)
			require.Error(t, err)
			assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation), "got %v", err)
			assert.Zero(t, f.repo.calls(), "validation must not reach the repository")
		})
	}
}

func TestExampleScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ticket, err := f.svc.CreateTicket(ctx, validInput())
	require.NoError(t, err)
	require.Equal(t, domain.TicketStatusOpen, ticket.Status)

	ticket, err = f.svc.AssignTicket(ctx, ticket.ID, ptr("agent-001"))
	require.NoError(t, err)
	require.NotNil(t, ticket.AssignedAgentID)
	assert.Equal(t, "agent-001", *ticket.AssignedAgentID)

	ticket, err = f.svc.UpdateStatus(ctx, ticket.ID, domain.TicketStatusInProgress)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusInProgress, ticket.Status)

	resp, err := f.svc.AddResponse(ctx, ticket.ID,
		domain.Author{ID: "agent-001", Name: "Sam Rivera", Role: domain.AuthorRoleAgent},
		"Dispatching a technician to dock 4.")
	require.NoError(t, err)
	assert.Equal(t, ticket.ID, resp.TicketID)

	ticket, err = f.svc.UpdateStatus(ctx, ticket.ID, domain.TicketStatusResolved)
	require.NoError(t, err)
	require.NotNil(t, ticket.ResolvedAt)
	resolution, ok := ticket.ResolutionTime()
	require.True(t, ok)
	assert.GreaterOrEqual(t, resolution, time.Duration(0))
	assert.False(t, ticket.ResolvedAt.Before(ticket.CreatedAt))

	ticket, err = f.svc.UpdateStatus(ctx, ticket.ID, domain.TicketStatusOpen)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusOpen, ticket.Status)
	assert.Nil(t, ticket.ResolvedAt)
	require.Len(t, ticket.Responses, 1)
	assert.True(t, ticket.UpdatedAt.After(ticket.CreatedAt))
}

func TestResolveThenReopen(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ticket, err := f.svc.CreateTicket(ctx, validInput())
	require.NoError(t, err)

	_, err = f.svc.UpdateStatus(ctx, ticket.ID, domain.TicketStatusResolved)
	require.NoError(t, err)
	reopened, err := f.svc.UpdateStatus(ctx, ticket.ID, domain.TicketStatusOpen)
	require.NoError(t, err)

	assert.Equal(t, domain.TicketStatusOpen, reopened.Status)
	assert.Nil(t, reopened.ResolvedAt)
}

func TestAddResponseLockedUntilReopen(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ticket, err := f.svc.CreateTicket(ctx, validInput())
	require.NoError(t, err)
	_, err = f.svc.UpdateStatus(ctx, ticket.ID, domain.TicketStatusClosed)
	require.NoError(t, err)

	author := domain.Author{Name: "Ada Rider", Role: domain.AuthorRoleRequester}
	_, err = f.svc.AddResponse(ctx, ticket.ID, author, "still broken")
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidTransition))

	stored, err := f.svc.GetTicket(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.Responses)

	_, err = f.svc.UpdateStatus(ctx, ticket.ID, domain.TicketStatusOpen)
	require.NoError(t, err)
	resp, err := f.svc.AddResponse(ctx, ticket.ID, author, "still broken")
	require.NoError(t, err)
	assert.Equal(t, "still broken", resp.Message)
}

func TestAddResponseValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ticket, err := f.svc.CreateTicket(ctx, validInput())
	require.NoError(t, err)
	before := f.repo.calls()

	agent := domain.Author{Name: "Sam", Role: domain.AuthorRoleAgent}
	_, err = f.svc.AddResponse(ctx, ticket.ID, agent, "   ")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))

	_, err = f.svc.AddResponse(ctx, ticket.ID, domain.Author{Name: "Sam", Role: "bot"}, "hi")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))
	assert.Equal(t, before, f.repo.calls())

	_, err = f.svc.AddResponse(ctx, "missing", agent, "hi")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
}

func TestAddResponseKeepsMessageVerbatim(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ticket, err := f.svc.CreateTicket(ctx, validInput())
	require.NoError(t, err)

	message := "  stack trace:\n    at dock-4\n"
	author := domain.Author{Name: "  Sam  ", Role: domain.AuthorRoleAgent}
	resp, err := f.svc.AddResponse(ctx, ticket.ID, author, message)
	require.NoError(t, err)
	assert.Equal(t, message, resp.Message)
	assert.Equal(t, "Sam", resp.Author.Name)

	thread, err := f.svc.ListResponses(ctx, ticket.ID)
	require.NoError(t, err)
	require.Len(t, thread, 1)
	assert.Equal(t, message, thread[0].Message)
}

func TestResponsesKeepAppendOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ticket, err := f.svc.CreateTicket(ctx, validInput())
	require.NoError(t, err)

	author := domain.Author{Name: "Sam", Role: domain.AuthorRoleAgent}
	var lastUpdated time.Time
	for i := 0; i < 5; i++ {
		_, err := f.svc.AddResponse(ctx, ticket.ID, author, fmt.Sprintf("message %d", i))
		require.NoError(t, err)
		stored, err := f.svc.GetTicket(ctx, ticket.ID)
		require.NoError(t, err)
		assert.True(t, stored.UpdatedAt.After(lastUpdated))
		lastUpdated = stored.UpdatedAt
	}

	thread, err := f.svc.ListResponses(ctx, ticket.ID)
	require.NoError(t, err)
	require.Len(t, thread, 5)
	ids := map[string]bool{}
	for i, resp := range thread {
		assert.Equal(t, fmt.Sprintf("message %d", i), resp.Message)
		assert.False(t, ids[resp.ID], "response ids are unique")
		ids[resp.ID] = true
		if i > 0 {
			assert.False(t, resp.CreatedAt.Before(thread[i-1].CreatedAt))
		}
	}

	_, err = f.svc.ListResponses(ctx, "missing")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
}

func TestUpdateStatusErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ticket, err := f.svc.CreateTicket(ctx, validInput())
	require.NoError(t, err)

	_, err = f.svc.UpdateStatus(ctx, "missing", domain.TicketStatusInProgress)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))

	_, err = f.svc.UpdateStatus(ctx, ticket.ID, domain.TicketStatusOpen)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidTransition))

	_, err = f.svc.UpdateStatus(ctx, ticket.ID, "archived")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))

	stored, err := f.svc.GetTicket(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stored.Version)
	assert.Equal(t, ticket.UpdatedAt, stored.UpdatedAt)
}

func TestGetTicketNotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.GetTicket(context.Background(), "nope")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
}

func TestAssignmentRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ticket, err := f.svc.CreateTicket(ctx, validInput())
	require.NoError(t, err)

	_, err = f.svc.AssignTicket(ctx, ticket.ID, ptr("agent-404"))
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeAssignment))
	stored, err := f.svc.GetTicket(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.AssignedAgentID)
	assert.Equal(t, ticket.UpdatedAt, stored.UpdatedAt)
	assert.Equal(t, int64(1), stored.Version)

	_, err = f.svc.AssignTicket(ctx, "missing", ptr("agent-001"))
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))

	assigned, err := f.svc.AssignTicket(ctx, ticket.ID, ptr("agent-001"))
	require.NoError(t, err)
	assert.True(t, assigned.AssignedTo("agent-001"))
	assert.True(t, assigned.UpdatedAt.After(ticket.UpdatedAt))

	reassigned, err := f.svc.AssignTicket(ctx, ticket.ID, ptr("agent-002"))
	require.NoError(t, err)
	assert.True(t, reassigned.AssignedTo("agent-002"))

	unassigned, err := f.svc.AssignTicket(ctx, ticket.ID, nil)
	require.NoError(t, err)
	assert.Nil(t, unassigned.AssignedAgentID)

	_, err = f.svc.UpdateStatus(ctx, ticket.ID, domain.TicketStatusClosed)
	require.NoError(t, err)
	closedAssigned, err := f.svc.AssignTicket(ctx, ticket.ID, ptr("agent-001"))
	require.NoError(t, err)
	assert.True(t, closedAssigned.AssignedTo("agent-001"))

	_, err = f.svc.AssignTicket(ctx, ticket.ID, ptr("  "))
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))
}

func TestConcurrentAssignmentCommitsOneFinalAgent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ticket, err := f.svc.CreateTicket(ctx, validInput())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for _, agent := range []string{"agent-001", "agent-002"} {
		wg.Add(1)
		go func(agent string) {
			defer wg.Done()
			_, err := f.svc.AssignTicket(ctx, ticket.ID, &agent)
			assert.NoError(t, err)
		}(agent)
	}
	wg.Wait()

	stored, err := f.svc.GetTicket(ctx, ticket.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.AssignedAgentID)
	assert.Contains(t, []string{"agent-001", "agent-002"}, *stored.AssignedAgentID)
	assert.Equal(t, int64(3), stored.Version, "both writes committed in sequence")
}

func TestConcurrentAssignmentAcrossInstances(t *testing.T) {
	// Two service instances share storage but not locks, as two API
	// replicas would. The repository compare-and-swap decides the winner.
	repo := repository.NewMemoryTicketRepository()
	clock := &fakeClock{now: time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)}
	newSvc := func() *TicketService {
		return NewTicketService(TicketDependencies{TicketRepo: repo, Agents: testAgents(), Clock: clock.Now})
	}
	a, b := newSvc(), newSvc()
	ctx := context.Background()

	ticket, err := a.CreateTicket(ctx, validInput())
	require.NoError(t, err)

	for round := 0; round < 50; round++ {
		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			succeeded []string
		)
		for i, svc := range []*TicketService{a, b} {
			agent := []string{"agent-001", "agent-002"}[i]
			wg.Add(1)
			go func(svc *TicketService, agent string) {
				defer wg.Done()
				_, err := svc.AssignTicket(ctx, ticket.ID, &agent)
				if err != nil {
					assert.True(t, apperrors.HasCode(err, apperrors.CodeConcurrentModification), "unexpected error %v", err)
					return
				}
				mu.Lock()
				succeeded = append(succeeded, agent)
				mu.Unlock()
			}(svc, agent)
		}
		wg.Wait()

		require.NotEmpty(t, succeeded)
		stored, err := repo.Get(ctx, ticket.ID)
		require.NoError(t, err)
		require.NotNil(t, stored.AssignedAgentID)
		assert.Contains(t, succeeded, *stored.AssignedAgentID)
	}
}

type conflictingRepo struct {
	*repository.MemoryTicketRepository
	conflict atomic.Bool
}

func (r *conflictingRepo) Put(ctx context.Context, ticket *domain.Ticket) error {
	if r.conflict.Load() {
		return repository.ErrVersionConflict
	}
	return r.MemoryTicketRepository.Put(ctx, ticket)
}

func TestVersionConflictSurfacesAsConcurrentModification(t *testing.T) {
	repo := &conflictingRepo{MemoryTicketRepository: repository.NewMemoryTicketRepository()}
	svc := NewTicketService(TicketDependencies{TicketRepo: repo, Agents: testAgents()})
	ctx := context.Background()

	ticket, err := svc.CreateTicket(ctx, validInput())
	require.NoError(t, err)

	repo.conflict.Store(true)
	_, err = svc.UpdateStatus(ctx, ticket.ID, domain.TicketStatusInProgress)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeConcurrentModification))

	stored, err := svc.GetTicket(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusOpen, stored.Status)
}

func TestCanceledContextIsNotAnInternalError(t *testing.T) {
	f := newFixture(t)
	ticket, err := f.svc.CreateTicket(context.Background(), validInput())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = f.svc.UpdateStatus(ctx, ticket.ID, domain.TicketStatusInProgress)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, apperrors.HasCode(err, apperrors.CodeInternal))

	_, err = f.svc.AddResponse(ctx, ticket.ID, domain.Author{Name: "Sam", Role: domain.AuthorRoleAgent}, "hi")
	assert.ErrorIs(t, err, context.Canceled)

	stored, err := f.svc.GetTicket(context.Background(), ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusOpen, stored.Status)
	assert.Empty(t, stored.Responses)
}

func TestCanceledWhileWaitingForTicketLock(t *testing.T) {
	f := newFixture(t)
	ticket, err := f.svc.CreateTicket(context.Background(), validInput())
	require.NoError(t, err)

	unlock, err := f.svc.store.locks.acquire(context.Background(), ticket.ID)
	require.NoError(t, err)
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = f.svc.UpdateStatus(ctx, ticket.ID, domain.TicketStatusInProgress)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, apperrors.HasCode(err, apperrors.CodeInternal))
}

func TestListTicketsThroughFacade(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	billing := validInput()
	billing.Title = "Double charge on ride"
	billing.Category = domain.TicketCategoryBilling
	billing.Priority = domain.TicketPriorityLow
	first, err := f.svc.CreateTicket(ctx, billing)
	require.NoError(t, err)
	second, err := f.svc.CreateTicket(ctx, validInput())
	require.NoError(t, err)
	_, err = f.svc.AssignTicket(ctx, second.ID, ptr("agent-001"))
	require.NoError(t, err)

	all, err := f.svc.ListTickets(ctx, query.Filter{}, query.Sort{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, second.ID, all[0].ID, "newest first")

	byCategory, err := f.svc.ListTickets(ctx, query.Filter{Category: ptr(domain.TicketCategoryBilling)}, query.Sort{})
	require.NoError(t, err)
	require.Len(t, byCategory, 1)
	assert.Equal(t, first.ID, byCategory[0].ID)

	unassigned, err := f.svc.ListTickets(ctx, query.Filter{AssignedAgent: ptr(query.Unassigned), Text: "CHARGE"}, query.Sort{})
	require.NoError(t, err)
	require.Len(t, unassigned, 1)
	assert.Equal(t, first.ID, unassigned[0].ID)

	_, err = f.svc.ListTickets(ctx, query.Filter{Priority: ptr(domain.TicketPriority("urgent"))}, query.Sort{})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))
	_, err = f.svc.ListTickets(ctx, query.Filter{}, query.Sort{Field: "title"})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))
}

func TestListAgentsDerivesCounts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ticket, err := f.svc.CreateTicket(ctx, validInput())
		require.NoError(t, err)
		_, err = f.svc.AssignTicket(ctx, ticket.ID, ptr("agent-001"))
		require.NoError(t, err)
		if i == 0 {
			_, err = f.svc.UpdateStatus(ctx, ticket.ID, domain.TicketStatusResolved)
			require.NoError(t, err)
		}
	}

	agents, err := f.svc.ListAgents(ctx)
	require.NoError(t, err)
	require.Len(t, agents, 2)

	byID := map[string]AgentWorkload{}
	for _, a := range agents {
		byID[a.ID] = a
	}
	assert.Equal(t, 2, byID["agent-001"].ActiveTickets)
	assert.Equal(t, 3, byID["agent-001"].AssignedTickets)
	assert.Equal(t, 0, byID["agent-002"].ActiveTickets)
	assert.Equal(t, "Alex Chen", agents[0].Name, "directory order is kept")
}

func TestGetMetrics(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	priorities := domain.TicketPriorities
	categories := domain.TicketCategories
	for i := 0; i < 9; i++ {
		in := validInput()
		in.Priority = priorities[i%len(priorities)]
		in.Category = categories[i%len(categories)]
		ticket, err := f.svc.CreateTicket(ctx, in)
		require.NoError(t, err)
		switch i % 3 {
		case 0:
			_, err = f.svc.UpdateStatus(ctx, ticket.ID, domain.TicketStatusResolved)
		case 1:
			_, err = f.svc.UpdateStatus(ctx, ticket.ID, domain.TicketStatusClosed)
		}
		require.NoError(t, err)
	}

	score := 4.2
	snap, err := f.svc.GetMetrics(ctx, 0, &score)
	require.NoError(t, err)
	assert.Equal(t, 9, snap.TotalTickets)
	assert.Equal(t, 7, snap.WindowDays)

	catSum, prioSum := 0, 0
	for _, n := range snap.ByCategory {
		catSum += n
	}
	for _, n := range snap.ByPriority {
		prioSum += n
	}
	assert.Equal(t, snap.TotalTickets, catSum)
	assert.Equal(t, snap.TotalTickets, prioSum)

	assert.Equal(t, 3, snap.ResolvedTickets, "closed-unresolved tickets are skipped")
	assert.True(t, snap.HasResolutionData)
	assert.GreaterOrEqual(t, snap.AverageResolutionHours, 0.0)
	require.NotNil(t, snap.Satisfaction)
	assert.Equal(t, 4.2, *snap.Satisfaction)

	_, err = f.svc.GetMetrics(ctx, 7, ptr(math.NaN()))
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))
}

func TestEventsPublishedAfterCommit(t *testing.T) {
	f := newFixture(t)
	var (
		mu   sync.Mutex
		seen []events.Event
	)
	record := func(_ context.Context, e events.Event) error {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, e)
		return nil
	}
	for _, et := range []events.EventType{
		events.EventTicketCreated,
		events.EventTicketAssigned,
		events.EventTicketStatusChanged,
		events.EventTicketResponseAdded,
	} {
		f.dispatcher.Subscribe(et, record)
	}

	ctx := events.WithActor(context.Background(), events.Actor{Type: events.ActorAgent, ID: "agent-001"})
	ticket, err := f.svc.CreateTicket(ctx, validInput())
	require.NoError(t, err)
	_, err = f.svc.AssignTicket(ctx, ticket.ID, ptr("agent-001"))
	require.NoError(t, err)
	_, err = f.svc.UpdateStatus(ctx, ticket.ID, domain.TicketStatusInProgress)
	require.NoError(t, err)
	_, err = f.svc.AddResponse(ctx, ticket.ID, domain.Author{Name: "Sam", Role: domain.AuthorRoleAgent}, "on it")
	require.NoError(t, err)

	// a rejected mutation publishes nothing
	_, err = f.svc.UpdateStatus(ctx, ticket.ID, domain.TicketStatusInProgress)
	require.Error(t, err)

	require.Len(t, seen, 4)
	assert.Equal(t, events.EventTicketCreated, seen[0].Type)
	assert.Equal(t, events.EventTicketAssigned, seen[1].Type)
	assert.Equal(t, events.TicketStatusChangedPayload{
		OldStatus: domain.TicketStatusOpen,
		NewStatus: domain.TicketStatusInProgress,
	}, seen[2].Payload)
	assert.Equal(t, events.EventTicketResponseAdded, seen[3].Type)
	for _, e := range seen {
		assert.Equal(t, ticket.ID, e.TicketID)
		assert.Equal(t, "agent-001", e.Actor.ID)
		assert.NotEmpty(t, e.ID)
	}
}

func TestStringPreview(t *testing.T) {
	assert.Equal(t, "short", stringPreview("  short  ", 10))
	assert.Equal(t, "abcdefg...", stringPreview(strings.Repeat("abcdefghij", 3), 10))
	assert.Equal(t, "ab", stringPreview("abcdef", 2))
}
