package domain

import "time"

// AuthorRole indicates who wrote a response.
type AuthorRole string

const (
	AuthorRoleAgent     AuthorRole = "agent"
	AuthorRoleRequester AuthorRole = "requester"
)

// Valid reports whether r is a known author role.
func (r AuthorRole) Valid() bool {
	return r == AuthorRoleAgent || r == AuthorRoleRequester
}

// Author identifies the writer of a response.
type Author struct {
	ID   string     `json:"id,omitempty"`
	Name string     `json:"name"`
	Role AuthorRole `json:"role"`
}

// Response is one immutable message in a ticket thread. TicketID is a
// lookup reference only; the owning ticket holds the response.
type Response struct {
	ID        string    `json:"id"`
	TicketID  string    `json:"ticket_id"`
	Author    Author    `json:"author"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}
