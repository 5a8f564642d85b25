package analytics

import (
	"math"
	"time"

	"github.com/spec-kit/fleet-support/internal/domain"
)

const (
	// DefaultWindowDays is used when neither caller nor config pick a window.
	DefaultWindowDays = 7
	// MaxWindowDays bounds the daily series.
	MaxWindowDays = 365

	dateLayout = "2006-01-02"
)

// Options parameterize a snapshot.
type Options struct {
	// WindowDays is the caller's requested trend length; values <= 0 fall
	// back to DefaultWindow.
	WindowDays    int
	DefaultWindow int
	Satisfaction  *float64
	Now           time.Time
	// Location decides calendar-day boundaries. Nil means UTC.
	Location *time.Location
}

// WindowFor resolves the effective number of days in the daily series.
func WindowFor(requested, fallback int) int {
	window := requested
	if window <= 0 {
		window = fallback
	}
	if window <= 0 {
		window = DefaultWindowDays
	}
	if window > MaxWindowDays {
		window = MaxWindowDays
	}
	return window
}

// Snapshot aggregates tickets in a single pass.
func Snapshot(tickets []domain.Ticket, opts Options) *domain.MetricsSnapshot {
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}
	window := WindowFor(opts.WindowDays, opts.DefaultWindow)

	snap := &domain.MetricsSnapshot{
		GeneratedAt:  now,
		WindowDays:   window,
		TotalTickets: len(tickets),
		ByCategory:   make(map[domain.TicketCategory]int, len(domain.TicketCategories)),
		ByPriority:   make(map[domain.TicketPriority]int, len(domain.TicketPriorities)),
		ByStatus:     make(map[domain.TicketStatus]int, len(domain.TicketStatuses)),
		Daily:        make([]domain.DailyPoint, window),
	}
	for _, c := range domain.TicketCategories {
		snap.ByCategory[c] = 0
	}
	for _, p := range domain.TicketPriorities {
		snap.ByPriority[p] = 0
	}
	for _, s := range domain.TicketStatuses {
		snap.ByStatus[s] = 0
	}
	if opts.Satisfaction != nil {
		score := *opts.Satisfaction
		snap.Satisfaction = &score
	}

	today := civilDay(now, loc)
	first := today.AddDate(0, 0, -(window - 1))
	index := make(map[string]int, window)
	for i := 0; i < window; i++ {
		date := first.AddDate(0, 0, i).Format(dateLayout)
		snap.Daily[i] = domain.DailyPoint{Date: date}
		index[date] = i
	}

	var totalHours float64
	for i := range tickets {
		ticket := &tickets[i]
		snap.ByCategory[ticket.Category]++
		snap.ByPriority[ticket.Priority]++
		snap.ByStatus[ticket.Status]++

		if pos, ok := index[ticket.CreatedAt.In(loc).Format(dateLayout)]; ok {
			snap.Daily[pos].CreatedCount++
		}
		if d, ok := ticket.ResolutionTime(); ok {
			snap.ResolvedTickets++
			totalHours += d.Hours()
			if pos, ok := index[ticket.ResolvedAt.In(loc).Format(dateLayout)]; ok {
				snap.Daily[pos].ResolvedCount++
			}
		}
	}

	if snap.ResolvedTickets > 0 {
		snap.HasResolutionData = true
		snap.AverageResolutionHours = roundTenth(totalHours / float64(snap.ResolvedTickets))
	}
	return snap
}

// civilDay returns midnight of t's calendar day in loc. Stepping with
// AddDate from here keeps DST days at one entry each.
func civilDay(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}

func roundTenth(v float64) float64 {
	return math.Round(v*10) / 10
}
