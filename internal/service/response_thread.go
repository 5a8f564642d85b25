package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/spec-kit/fleet-support/internal/domain"
	apperrors "github.com/spec-kit/fleet-support/pkg/util/errorutil"
)

const previewLength = 120

// normalizeResponse trims the author and validates a response before any
// ticket is read. The message is stored as written; only its emptiness is
// judged on the trimmed text.
func normalizeResponse(author domain.Author, message string) (domain.Author, string, error) {
	author.ID = strings.TrimSpace(author.ID)
	author.Name = strings.TrimSpace(author.Name)

	fields := map[string]string{}
	if strings.TrimSpace(message) == "" {
		fields["message"] = "must not be empty"
	}
	if author.Name == "" {
		fields["author.name"] = "must not be empty"
	}
	if !author.Role.Valid() {
		fields["author.role"] = fmt.Sprintf("must be %s or %s", domain.AuthorRoleAgent, domain.AuthorRoleRequester)
	}
	if len(fields) > 0 {
		return author, message, apperrors.NewValidationError("invalid response", map[string]any{"fields": fields})
	}
	return author, message, nil
}

// appendResponse adds a message to the end of the thread. Resolved and
// closed tickets refuse new messages until reopened.
func appendResponse(ticket *domain.Ticket, id string, author domain.Author, message string, now time.Time) (domain.Response, error) {
	if ticket.Status.Locked() {
		return domain.Response{}, apperrors.NewInvalidTransition(
			fmt.Sprintf("ticket is %s; reopen it before responding", ticket.Status),
			map[string]any{"ticket_id": ticket.ID, "status": ticket.Status},
		)
	}

	createdAt := now
	if n := len(ticket.Responses); n > 0 && createdAt.Before(ticket.Responses[n-1].CreatedAt) {
		createdAt = ticket.Responses[n-1].CreatedAt
	}
	resp := domain.Response{
		ID:        id,
		TicketID:  ticket.ID,
		Author:    author,
		Message:   message,
		CreatedAt: createdAt,
	}
	ticket.Responses = append(ticket.Responses, resp)
	ticket.Touch(createdAt)
	return resp, nil
}

func stringPreview(body string, max int) string {
	body = strings.TrimSpace(body)
	runes := []rune(body)
	if len(runes) <= max {
		return body
	}
	if max <= 3 {
		return string(runes[:max])
	}
	return string(runes[:max-3]) + "..."
}
