package database

import (
	"errors"
	"sync"

	"github.com/coder/hnsw"
)

// AgentIndex wraps an HNSW graph over agent embeddings, keyed by agent ID.
type AgentIndex struct {
	graph  *hnsw.Graph[string]
	agents map[string]*Agent
	dim    int
	mu     sync.RWMutex
}

// NewAgentIndex creates a new empty index.
func NewAgentIndex() *AgentIndex {
	return &AgentIndex{
		agents: make(map[string]*Agent),
	}
}

func newGraph() *hnsw.Graph[string] {
	g := hnsw.NewGraph[string]()
	g.M = HNSWMaxNeighbors
	g.Ml = 1.0 / float64(HNSWMaxNeighbors) // Standard HNSW formula
	g.EfSearch = HNSWEfSearch
	g.Distance = hnsw.CosineDistance
	return g
}

// Build replaces the index contents with the given agents. Agents without an
// embedding, or whose embedding dimension differs from the first one seen,
// are left out.
func (h *AgentIndex) Build(agents []Agent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.graph = nil
	h.dim = 0
	h.agents = make(map[string]*Agent, len(agents))

	for i := range agents {
		h.addLocked(&agents[i])
	}
}

// Add inserts a single agent.
func (h *AgentIndex) Add(agent *Agent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.addLocked(agent)
}

func (h *AgentIndex) addLocked(agent *Agent) {
	if len(agent.Embedding) == 0 {
		return
	}
	if _, exists := h.agents[agent.ID]; exists {
		return
	}
	if h.graph == nil {
		h.graph = newGraph()
		h.dim = len(agent.Embedding)
	}
	if len(agent.Embedding) != h.dim {
		return
	}

	h.graph.Add(hnsw.MakeNode(agent.ID, agent.Embedding))
	h.agents[agent.ID] = agent
}

// Delete removes an agent from search results.
func (h *AgentIndex) Delete(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.agents, id)
	// The graph node stays; lookups through the agents map filter it out.
}

// Search finds up to k agents nearest to the query. Returns agents and their
// cosine distances, nearest first.
func (h *AgentIndex) Search(query []float32, k int) ([]Agent, []float64, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.graph == nil {
		return nil, nil, errors.New("index not initialized")
	}
	if len(query) != h.dim {
		return nil, nil, nil
	}

	neighbors := h.graph.Search(query, k*HNSWSearchMultiplier)

	agents := make([]Agent, 0, k)
	distances := make([]float64, 0, k)
	for _, n := range neighbors {
		agent, ok := h.agents[n.Key]
		if !ok {
			continue
		}
		agents = append(agents, *agent)
		distances = append(distances, float64(hnsw.CosineDistance(query, n.Value)))
		if len(agents) == k {
			break
		}
	}

	return agents, distances, nil
}

// Count returns the number of indexed agents.
func (h *AgentIndex) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.agents)
}
