package database

import (
	"context"
)

// AgentReader provides read-only access to enrolled agents
type AgentReader interface {
	// GetAgent retrieves an agent by employee ID, returns nil if not found
	GetAgent(ctx context.Context, employeeID string) (*Agent, error)
	// ListAgents returns all agents in enrollment order
	ListAgents(ctx context.Context) ([]Agent, error)
	// Roster returns every agent with its signature text, in enrollment order.
	// Rows are not validated; callers decide what to do with unparsable signatures.
	Roster(ctx context.Context) ([]RosterRow, error)
	// FindNearest returns up to limit agents closest to the embedding together
	// with their cosine distances, nearest first
	FindNearest(ctx context.Context, embedding []float32, limit int) ([]Agent, []float64, error)
	// Count returns the number of enrolled agents
	Count(ctx context.Context) (int, error)
}

// AgentWriter provides write access to enrolled agents
type AgentWriter interface {
	AgentReader

	// CreateAgent stores a new agent. ID and CreatedAt are filled in when empty.
	// Returns ErrAgentExists if the employee ID is taken.
	CreateAgent(ctx context.Context, agent *Agent) error
	// UpdateStatus changes an agent's status. Returns ErrAgentNotFound if missing.
	UpdateStatus(ctx context.Context, employeeID, status string) error
	// DeleteAgent removes an agent. Returns ErrAgentNotFound if missing.
	DeleteAgent(ctx context.Context, employeeID string) error
}
