//go:build integration

package postgres

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/kozaktomas/agent-faceid/internal/config"
	"github.com/kozaktomas/agent-faceid/internal/database"
	"github.com/kozaktomas/agent-faceid/internal/facematch"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupTestContainer(t *testing.T) (*Pool, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "pgvector/pgvector:pg16",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Skipf("Docker not available or container failed to start, skipping integration test: %v", err)
		return nil, func() {}
	}
	if container == nil {
		t.Skip("Docker not available, skipping integration test")
		return nil, func() {}
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	dbURL := fmt.Sprintf("postgres://test:test@%s:%s/testdb?sslmode=disable", host, port.Port())

	cfg := &config.DatabaseConfig{
		URL:          dbURL,
		MaxOpenConns: 5,
		MaxIdleConns: 2,
	}

	pool, err := NewPool(cfg)
	if err != nil {
		container.Terminate(ctx)
		t.Fatalf("Failed to create pool: %v", err)
	}

	// Run migrations
	if err := pool.Migrate(ctx); err != nil {
		pool.Close()
		container.Terminate(ctx)
		t.Fatalf("Failed to run migrations: %v", err)
	}

	cleanup := func() {
		pool.Close()
		container.Terminate(ctx)
	}

	return pool, cleanup
}

func testEmbedding(dim, hot int) []float32 {
	emb := make([]float32, dim)
	for i := range emb {
		emb[i] = 0.01
	}
	emb[hot] = 1
	return emb
}

func testAgent(employeeID string, hot int) *database.Agent {
	return &database.Agent{
		LastName:   "Novak",
		FirstName:  "Jan",
		EmployeeID: employeeID,
		Department: "Field",
		Photos:     []string{"https://cdn.example.com/agents/" + employeeID + "/photo_1.jpg"},
		FaceCrops:  []string{"https://cdn.example.com/agents/" + employeeID + "/face_1.jpg"},
		Embedding:  testEmbedding(512, hot),
		Model:      "buffalo_l",
	}
}

func TestAgentRepository(t *testing.T) {
	pool, cleanup := setupTestContainer(t)
	if pool == nil {
		return
	}
	defer cleanup()

	ctx := context.Background()
	repo := NewAgentRepository(pool)

	t.Run("CreateAndGet", func(t *testing.T) {
		agent := testAgent("E100", 0)
		if err := repo.CreateAgent(ctx, agent); err != nil {
			t.Fatalf("Failed to create agent: %v", err)
		}
		if agent.ID == "" {
			t.Error("Expected ID to be assigned")
		}

		got, err := repo.GetAgent(ctx, "E100")
		if err != nil {
			t.Fatalf("Failed to get agent: %v", err)
		}
		if got == nil {
			t.Fatal("Expected agent, got nil")
		}
		if got.Status != database.StatusPending {
			t.Errorf("Expected status pending, got '%s'", got.Status)
		}
		if len(got.Embedding) != 512 {
			t.Errorf("Expected 512 dimensions, got %d", len(got.Embedding))
		}
		if len(got.Photos) != 1 || len(got.FaceCrops) != 1 {
			t.Errorf("Expected one photo and crop, got %v / %v", got.Photos, got.FaceCrops)
		}
	})

	t.Run("GetMissing", func(t *testing.T) {
		got, err := repo.GetAgent(ctx, "nope")
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if got != nil {
			t.Errorf("Expected nil, got %+v", got)
		}
	})

	t.Run("DuplicateEmployeeID", func(t *testing.T) {
		err := repo.CreateAgent(ctx, testAgent("E100", 1))
		if !errors.Is(err, database.ErrAgentExists) {
			t.Errorf("Expected ErrAgentExists, got %v", err)
		}
	})

	t.Run("RosterOrderAndText", func(t *testing.T) {
		if err := repo.CreateAgent(ctx, testAgent("E200", 1)); err != nil {
			t.Fatalf("Failed to create agent: %v", err)
		}

		roster, err := repo.Roster(ctx)
		if err != nil {
			t.Fatalf("Failed to read roster: %v", err)
		}
		if len(roster) != 2 {
			t.Fatalf("Expected 2 roster rows, got %d", len(roster))
		}
		if roster[0].Agent.EmployeeID != "E100" || roster[1].Agent.EmployeeID != "E200" {
			t.Errorf("Expected enrollment order, got %s, %s", roster[0].Agent.EmployeeID, roster[1].Agent.EmployeeID)
		}
		sig, err := facematch.ParseSignature(roster[0].Signature)
		if err != nil {
			t.Fatalf("Roster signature not parsable: %v", err)
		}
		if len(sig) != 512 {
			t.Errorf("Expected 512 components, got %d", len(sig))
		}
	})

	t.Run("FindNearestPostgres", func(t *testing.T) {
		agents, distances, err := repo.FindNearest(ctx, testEmbedding(512, 1), 1)
		if err != nil {
			t.Fatalf("Failed to find nearest: %v", err)
		}
		if len(agents) != 1 || agents[0].EmployeeID != "E200" {
			t.Fatalf("Expected E200 nearest, got %+v", agents)
		}
		if distances[0] > 0.001 {
			t.Errorf("Expected ~0 distance, got %f", distances[0])
		}
	})

	t.Run("FindNearestSkipsOtherDimensions", func(t *testing.T) {
		agents, _, err := repo.FindNearest(ctx, testEmbedding(128, 0), 5)
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if len(agents) != 0 {
			t.Errorf("Expected no agents for 128-dim query, got %d", len(agents))
		}
	})

	t.Run("FindNearestHNSW", func(t *testing.T) {
		if err := repo.EnableHNSW(ctx); err != nil {
			t.Fatalf("Failed to enable HNSW: %v", err)
		}
		defer repo.DisableHNSW()

		if repo.HNSWCount() != 2 {
			t.Errorf("Expected 2 indexed agents, got %d", repo.HNSWCount())
		}

		agents, _, err := repo.FindNearest(ctx, testEmbedding(512, 0), 1)
		if err != nil {
			t.Fatalf("Failed to find nearest: %v", err)
		}
		if len(agents) != 1 || agents[0].EmployeeID != "E100" {
			t.Errorf("Expected E100 nearest, got %+v", agents)
		}
	})

	t.Run("UpdateStatus", func(t *testing.T) {
		if err := repo.UpdateStatus(ctx, "E100", database.StatusActive); err != nil {
			t.Fatalf("Failed to update status: %v", err)
		}
		got, _ := repo.GetAgent(ctx, "E100")
		if got.Status != database.StatusActive {
			t.Errorf("Expected active, got '%s'", got.Status)
		}
		if err := repo.UpdateStatus(ctx, "nope", database.StatusActive); !errors.Is(err, database.ErrAgentNotFound) {
			t.Errorf("Expected ErrAgentNotFound, got %v", err)
		}
	})

	t.Run("DeleteAndCount", func(t *testing.T) {
		if err := repo.DeleteAgent(ctx, "E200"); err != nil {
			t.Fatalf("Failed to delete: %v", err)
		}
		if err := repo.DeleteAgent(ctx, "E200"); !errors.Is(err, database.ErrAgentNotFound) {
			t.Errorf("Expected ErrAgentNotFound, got %v", err)
		}
		count, err := repo.Count(ctx)
		if err != nil {
			t.Fatalf("Failed to count: %v", err)
		}
		if count != 1 {
			t.Errorf("Expected 1, got %d", count)
		}
	})
}

func TestMigrationsApplied(t *testing.T) {
	pool, cleanup := setupTestContainer(t)
	if pool == nil {
		return
	}
	defer cleanup()

	versions, err := pool.MigrationsApplied(context.Background())
	if err != nil {
		t.Fatalf("Failed to list migrations: %v", err)
	}
	if len(versions) == 0 || versions[0] != "001_agents.sql" {
		t.Errorf("Expected 001_agents.sql applied, got %v", versions)
	}
}
