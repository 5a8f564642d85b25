package domain

// AgentPresence reports whether an agent is currently reachable.
type AgentPresence string

const (
	AgentPresenceOnline  AgentPresence = "online"
	AgentPresenceAway    AgentPresence = "away"
	AgentPresenceOffline AgentPresence = "offline"
)

// Valid reports whether p is a known presence value.
func (p AgentPresence) Valid() bool {
	switch p {
	case AgentPresenceOnline, AgentPresenceAway, AgentPresenceOffline:
		return true
	}
	return false
}

// Agent models a support agent provisioned by the external directory.
// Ticket counts are never stored here; see service.AgentWorkload.
type Agent struct {
	ID       string        `json:"id" yaml:"id"`
	Name     string        `json:"name" yaml:"name"`
	Role     string        `json:"role" yaml:"role"`
	Presence AgentPresence `json:"presence" yaml:"presence"`
}
