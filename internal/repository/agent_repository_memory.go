package repository

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/spec-kit/fleet-support/internal/domain"
)

// MemoryAgentDirectory serves a fixed agent list, typically loaded from
// the YAML file the directory team publishes.
type MemoryAgentDirectory struct {
	byID  map[string]domain.Agent
	order []string
}

// NewMemoryAgentDirectory indexes agents by id. Later duplicates win.
func NewMemoryAgentDirectory(agents ...domain.Agent) *MemoryAgentDirectory {
	dir := &MemoryAgentDirectory{byID: make(map[string]domain.Agent, len(agents))}
	for _, agent := range agents {
		if _, seen := dir.byID[agent.ID]; !seen {
			dir.order = append(dir.order, agent.ID)
		}
		dir.byID[agent.ID] = agent
	}
	sort.SliceStable(dir.order, func(i, j int) bool {
		a, b := dir.byID[dir.order[i]], dir.byID[dir.order[j]]
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.ID < b.ID
	})
	return dir
}

func (d *MemoryAgentDirectory) GetByID(ctx context.Context, id string) (*domain.Agent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	agent, ok := d.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &agent, nil
}

func (d *MemoryAgentDirectory) List(ctx context.Context) ([]domain.Agent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	result := make([]domain.Agent, 0, len(d.order))
	for _, id := range d.order {
		result = append(result, d.byID[id])
	}
	return result, nil
}

type agentsFile struct {
	Agents []domain.Agent `yaml:"agents"`
}

// LoadAgentsFile parses an agent directory export:
//
//	agents:
//	  - id: agent-001
//	    name: Sam Rivera
//	    role: tier1
//	    presence: online
func LoadAgentsFile(path string) ([]domain.Agent, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read agents file: %w", err)
	}
	return ParseAgents(data)
}

// ParseAgents decodes and validates the YAML agent list.
func ParseAgents(data []byte) ([]domain.Agent, error) {
	var file agentsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse agents file: %w", err)
	}

	seen := make(map[string]struct{}, len(file.Agents))
	for i := range file.Agents {
		agent := &file.Agents[i]
		agent.ID = strings.TrimSpace(agent.ID)
		agent.Name = strings.TrimSpace(agent.Name)
		if agent.ID == "" {
			return nil, fmt.Errorf("agent #%d: id is required", i+1)
		}
		if agent.Name == "" {
			return nil, fmt.Errorf("agent %s: name is required", agent.ID)
		}
		if _, dup := seen[agent.ID]; dup {
			return nil, fmt.Errorf("agent %s: duplicate id", agent.ID)
		}
		seen[agent.ID] = struct{}{}
		if agent.Role == "" {
			agent.Role = "agent"
		}
		if agent.Presence == "" {
			agent.Presence = domain.AgentPresenceOffline
		}
		if !agent.Presence.Valid() {
			return nil, fmt.Errorf("agent %s: unknown presence %q", agent.ID, agent.Presence)
		}
	}
	return file.Agents, nil
}
