// Package mock provides mock implementations of database interfaces for testing.
package mock

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kozaktomas/agent-faceid/internal/database"
	"github.com/kozaktomas/agent-faceid/internal/facematch"
)

// MockAgentStore is an in-memory implementation of database.AgentWriter
type MockAgentStore struct {
	mu     sync.RWMutex
	agents []*database.Agent
	// raw overrides the stored signature text for an employee ID in Roster
	raw map[string]string

	// Error injection
	GetError         error
	ListError        error
	RosterError      error
	FindNearestError error
	CountError       error
	CreateError      error
	UpdateError      error
	DeleteError      error

	// RosterCalls counts Roster reads
	RosterCalls int
}

// NewMockAgentStore creates a new empty mock store
func NewMockAgentStore() *MockAgentStore {
	return &MockAgentStore{raw: make(map[string]string)}
}

// AddAgent adds an agent directly, bypassing duplicate checks
func (m *MockAgentStore) AddAgent(agent database.Agent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.agents = append(m.agents, &agent)
}

// SetRawSignature makes Roster return text instead of the formatted embedding
func (m *MockAgentStore) SetRawSignature(employeeID, text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.raw[employeeID] = text
}

func (m *MockAgentStore) find(employeeID string) int {
	for i, a := range m.agents {
		if a.EmployeeID == employeeID {
			return i
		}
	}
	return -1
}

// GetAgent retrieves an agent by employee ID
func (m *MockAgentStore) GetAgent(ctx context.Context, employeeID string) (*database.Agent, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if i := m.find(employeeID); i >= 0 {
		agent := *m.agents[i]
		return &agent, nil
	}
	return nil, nil
}

// ListAgents returns all agents in insertion order
func (m *MockAgentStore) ListAgents(ctx context.Context) ([]database.Agent, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]database.Agent, len(m.agents))
	for i, a := range m.agents {
		out[i] = *a
	}
	return out, nil
}

// Roster returns agents with their signature text
func (m *MockAgentStore) Roster(ctx context.Context) ([]database.RosterRow, error) {
	m.mu.Lock()
	m.RosterCalls++
	m.mu.Unlock()

	if m.RosterError != nil {
		return nil, m.RosterError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	rows := make([]database.RosterRow, len(m.agents))
	for i, a := range m.agents {
		text, ok := m.raw[a.EmployeeID]
		if !ok {
			text = facematch.FormatSignature(a.Embedding)
		}
		rows[i] = database.RosterRow{Agent: *a, Signature: text}
	}
	return rows, nil
}

// FindNearest performs a linear scan by cosine distance
func (m *MockAgentStore) FindNearest(ctx context.Context, embedding []float32, limit int) ([]database.Agent, []float64, error) {
	if m.FindNearestError != nil {
		return nil, nil, m.FindNearestError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	type scored struct {
		agent    database.Agent
		distance float64
	}
	var candidates []scored
	for _, a := range m.agents {
		if len(a.Embedding) != len(embedding) {
			continue
		}
		sim := facematch.CosineSimilarity(embedding, a.Embedding)
		candidates = append(candidates, scored{*a, 1 - sim})
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].distance < candidates[j].distance
	})

	limit = min(limit, len(candidates))
	agents := make([]database.Agent, limit)
	distances := make([]float64, limit)
	for i := range limit {
		agents[i] = candidates[i].agent
		distances[i] = candidates[i].distance
	}
	return agents, distances, nil
}

// Count returns the number of agents
func (m *MockAgentStore) Count(ctx context.Context) (int, error) {
	if m.CountError != nil {
		return 0, m.CountError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.agents), nil
}

// CreateAgent stores a new agent
func (m *MockAgentStore) CreateAgent(ctx context.Context, agent *database.Agent) error {
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.find(agent.EmployeeID) >= 0 {
		return database.ErrAgentExists
	}
	if agent.ID == "" {
		agent.ID = uuid.NewString()
	}
	if agent.CreatedAt.IsZero() {
		agent.CreatedAt = time.Now()
	}
	stored := *agent
	m.agents = append(m.agents, &stored)
	return nil
}

// UpdateStatus changes an agent's status
func (m *MockAgentStore) UpdateStatus(ctx context.Context, employeeID, status string) error {
	if m.UpdateError != nil {
		return m.UpdateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.find(employeeID)
	if i < 0 {
		return database.ErrAgentNotFound
	}
	m.agents[i].Status = status
	return nil
}

// DeleteAgent removes an agent
func (m *MockAgentStore) DeleteAgent(ctx context.Context, employeeID string) error {
	if m.DeleteError != nil {
		return m.DeleteError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.find(employeeID)
	if i < 0 {
		return database.ErrAgentNotFound
	}
	m.agents = append(m.agents[:i], m.agents[i+1:]...)
	delete(m.raw, employeeID)
	return nil
}

// Compile-time check
var _ database.AgentWriter = (*MockAgentStore)(nil)
