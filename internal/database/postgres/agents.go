package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kozaktomas/agent-faceid/internal/database"
	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
)

const uniqueViolation = "23505"

const agentColumns = `id, last_name, first_name, employee_id, department, phone,
		       photos, face_crops, status, embedding, model, created_at`

// AgentRepository provides PostgreSQL-backed agent storage with optional in-memory HNSW index.
type AgentRepository struct {
	pool        *Pool
	hnswIndex   *database.AgentIndex
	hnswEnabled bool
	hnswMu      sync.RWMutex
}

// NewAgentRepository creates a new PostgreSQL agent repository.
func NewAgentRepository(pool *Pool) *AgentRepository {
	return &AgentRepository{pool: pool}
}

func scanAgentRow(scanner interface{ Scan(...any) error }, extraDest ...any) (database.Agent, error) {
	var agent database.Agent
	var vec pgvector.Vector
	var photos, crops pq.StringArray

	dest := make([]any, 0, 12+len(extraDest))
	dest = append(dest,
		&agent.ID,
		&agent.LastName,
		&agent.FirstName,
		&agent.EmployeeID,
		&agent.Department,
		&agent.Phone,
		&photos,
		&crops,
		&agent.Status,
		&vec,
		&agent.Model,
		&agent.CreatedAt,
	)
	dest = append(dest, extraDest...)

	if err := scanner.Scan(dest...); err != nil {
		return agent, fmt.Errorf("scan agent: %w", err)
	}

	agent.Embedding = vec.Slice()
	agent.Photos = []string(photos)
	agent.FaceCrops = []string(crops)
	return agent, nil
}

func scanAgents(rows *sql.Rows) ([]database.Agent, error) {
	var agents []database.Agent
	for rows.Next() {
		agent, err := scanAgentRow(rows)
		if err != nil {
			return nil, err
		}
		agents = append(agents, agent)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate agents: %w", err)
	}
	return agents, nil
}

// GetAgent retrieves an agent by employee ID, returns nil if not found.
func (r *AgentRepository) GetAgent(ctx context.Context, employeeID string) (*database.Agent, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+agentColumns+` FROM agents WHERE employee_id = $1`, employeeID)
	agent, err := scanAgentRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &agent, nil
}

// ListAgents returns all agents in enrollment order.
func (r *AgentRepository) ListAgents(ctx context.Context) ([]database.Agent, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+agentColumns+` FROM agents ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("query agents: %w", err)
	}
	defer rows.Close()

	return scanAgents(rows)
}

// Roster returns every agent with the textual form of its embedding. The
// embedding is read as text so a row the matcher cannot use does not fail the
// whole scan.
func (r *AgentRepository) Roster(ctx context.Context) ([]database.RosterRow, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, last_name, first_name, employee_id, department, phone, photos, face_crops,
		       status, model, created_at, embedding::text
		FROM agents
		ORDER BY seq
	`)
	if err != nil {
		return nil, fmt.Errorf("query roster: %w", err)
	}
	defer rows.Close()

	var roster []database.RosterRow
	for rows.Next() {
		var row database.RosterRow
		var text sql.NullString
		var photos, crops pq.StringArray
		a := &row.Agent
		if err := rows.Scan(&a.ID, &a.LastName, &a.FirstName, &a.EmployeeID, &a.Department, &a.Phone,
			&photos, &crops, &a.Status, &a.Model, &a.CreatedAt, &text); err != nil {
			return nil, fmt.Errorf("scan roster row: %w", err)
		}
		a.Photos = []string(photos)
		a.FaceCrops = []string(crops)
		row.Signature = text.String
		roster = append(roster, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate roster: %w", err)
	}
	return roster, nil
}

// FindNearest returns up to limit agents closest to embedding by cosine distance.
func (r *AgentRepository) FindNearest(
	ctx context.Context, embedding []float32, limit int,
) ([]database.Agent, []float64, error) {
	r.hnswMu.RLock()
	hnswEnabled := r.hnswEnabled && r.hnswIndex != nil
	r.hnswMu.RUnlock()

	if hnswEnabled {
		if agents, distances, err := r.findNearestHNSW(embedding, limit); err == nil {
			return agents, distances, nil
		}
	}

	return r.findNearestPostgres(ctx, embedding, limit)
}

func (r *AgentRepository) findNearestHNSW(embedding []float32, limit int) ([]database.Agent, []float64, error) {
	r.hnswMu.RLock()
	defer r.hnswMu.RUnlock()

	agents, distances, err := r.hnswIndex.Search(embedding, limit)
	if err != nil {
		return nil, nil, fmt.Errorf("HNSW search: %w", err)
	}
	return agents, distances, nil
}

func (r *AgentRepository) findNearestPostgres(
	ctx context.Context, embedding []float32, limit int,
) ([]database.Agent, []float64, error) {
	// <=> fails on rows of another dimension, so they are filtered first.
	query := `
		SELECT ` + agentColumns + `,
		       embedding <=> $1::vector AS distance
		FROM agents
		WHERE vector_dims(embedding) = $2
		ORDER BY distance
		LIMIT $3
	`

	rows, err := r.pool.Query(ctx, query, pgvector.NewVector(embedding), len(embedding), limit)
	if err != nil {
		return nil, nil, fmt.Errorf("query nearest agents: %w", err)
	}
	defer rows.Close()

	var agents []database.Agent
	var distances []float64
	for rows.Next() {
		var dist float64
		agent, err := scanAgentRow(rows, &dist)
		if err != nil {
			return nil, nil, err
		}
		agents = append(agents, agent)
		distances = append(distances, dist)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate nearest agents: %w", err)
	}
	return agents, distances, nil
}

// Count returns the number of enrolled agents.
func (r *AgentRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM agents").Scan(&count); err != nil {
		return 0, fmt.Errorf("count agents: %w", err)
	}
	return count, nil
}

// CreateAgent inserts a new agent.
func (r *AgentRepository) CreateAgent(ctx context.Context, agent *database.Agent) error {
	if agent.ID == "" {
		agent.ID = uuid.NewString()
	}
	if agent.CreatedAt.IsZero() {
		agent.CreatedAt = time.Now().UTC()
	}
	if agent.Status == "" {
		agent.Status = database.StatusPending
	}
	// pq.Array encodes a nil slice as NULL
	if agent.Photos == nil {
		agent.Photos = []string{}
	}
	if agent.FaceCrops == nil {
		agent.FaceCrops = []string{}
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO agents (id, last_name, first_name, employee_id, department, phone,
		                    photos, face_crops, status, embedding, model, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10::vector, $11, $12)
	`,
		agent.ID, agent.LastName, agent.FirstName, agent.EmployeeID, agent.Department, agent.Phone,
		pq.Array(agent.Photos), pq.Array(agent.FaceCrops), agent.Status,
		pgvector.NewVector(agent.Embedding), agent.Model, agent.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return database.ErrAgentExists
		}
		return fmt.Errorf("insert agent: %w", err)
	}

	if r.isHNSWEnabled() {
		stored := *agent
		r.hnswMu.Lock()
		r.hnswIndex.Add(&stored)
		r.hnswMu.Unlock()
	}
	return nil
}

// UpdateStatus changes an agent's status.
func (r *AgentRepository) UpdateStatus(ctx context.Context, employeeID, status string) error {
	res, err := r.pool.Exec(ctx, "UPDATE agents SET status = $2 WHERE employee_id = $1", employeeID, status)
	if err != nil {
		return fmt.Errorf("update agent status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return database.ErrAgentNotFound
	}
	return nil
}

// DeleteAgent removes an agent and drops it from the HNSW index.
func (r *AgentRepository) DeleteAgent(ctx context.Context, employeeID string) error {
	var id string
	err := r.pool.QueryRow(ctx, "DELETE FROM agents WHERE employee_id = $1 RETURNING id", employeeID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return database.ErrAgentNotFound
	}
	if err != nil {
		return fmt.Errorf("delete agent: %w", err)
	}

	if r.isHNSWEnabled() {
		r.hnswMu.Lock()
		r.hnswIndex.Delete(id)
		r.hnswMu.Unlock()
	}
	return nil
}

func (r *AgentRepository) isHNSWEnabled() bool {
	r.hnswMu.RLock()
	defer r.hnswMu.RUnlock()
	return r.hnswEnabled && r.hnswIndex != nil
}

// EnableHNSW builds the in-memory HNSW index from all stored agents.
func (r *AgentRepository) EnableHNSW(ctx context.Context) error {
	agents, err := r.ListAgents(ctx)
	if err != nil {
		return fmt.Errorf("failed to load agents: %w", err)
	}

	index := database.NewAgentIndex()
	index.Build(agents)

	r.hnswMu.Lock()
	r.hnswIndex = index
	r.hnswEnabled = true
	r.hnswMu.Unlock()
	return nil
}

// DisableHNSW disables the in-memory HNSW index, falling back to PostgreSQL queries.
func (r *AgentRepository) DisableHNSW() {
	r.hnswMu.Lock()
	defer r.hnswMu.Unlock()
	r.hnswEnabled = false
	r.hnswIndex = nil
}

// RebuildHNSW rebuilds the in-memory HNSW index from the database.
func (r *AgentRepository) RebuildHNSW(ctx context.Context) error {
	return r.EnableHNSW(ctx)
}

// HNSWCount returns the number of agents in the HNSW index.
func (r *AgentRepository) HNSWCount() int {
	r.hnswMu.RLock()
	defer r.hnswMu.RUnlock()
	if r.hnswIndex == nil {
		return 0
	}
	return r.hnswIndex.Count()
}

// IsHNSWEnabled returns whether the HNSW index is active.
func (r *AgentRepository) IsHNSWEnabled() bool {
	return r.isHNSWEnabled()
}

// Compile-time checks
var (
	_ database.AgentWriter   = (*AgentRepository)(nil)
	_ database.HNSWRebuilder = (*AgentRepository)(nil)
)
