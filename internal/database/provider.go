package database

import (
	"context"
	"errors"
)

// HNSWRebuilder is an interface for repositories that support HNSW index rebuilding
type HNSWRebuilder interface {
	// RebuildHNSW rebuilds the in-memory HNSW index
	RebuildHNSW(ctx context.Context) error
	// HNSWCount returns the number of items in the HNSW index
	HNSWCount() int
	// IsHNSWEnabled returns whether HNSW is enabled
	IsHNSWEnabled() bool
}

var (
	postgresAgentWriter func() AgentWriter
	postgresAgentHNSW   HNSWRebuilder
	postgresInitialized bool
)

// RegisterPostgresBackend registers the PostgreSQL agent repository constructor.
// This is called by the postgres package to avoid import cycles.
func RegisterPostgresBackend(agentWriter func() AgentWriter) {
	postgresAgentWriter = agentWriter
	postgresInitialized = agentWriter != nil
}

// RegisterAgentHNSWRebuilder registers the HNSW rebuilder for the agent repository.
func RegisterAgentHNSWRebuilder(rebuilder HNSWRebuilder) {
	postgresAgentHNSW = rebuilder
}

// GetAgentHNSWRebuilder returns the registered agent HNSW rebuilder, or nil if not registered.
func GetAgentHNSWRebuilder() HNSWRebuilder {
	return postgresAgentHNSW
}

var errNotInitialized = errors.New("PostgreSQL backend not initialized: DATABASE_URL is required")

// GetAgentWriter returns an AgentWriter from the PostgreSQL backend
func GetAgentWriter(_ context.Context) (AgentWriter, error) {
	if !postgresInitialized {
		return nil, errNotInitialized
	}
	return postgresAgentWriter(), nil
}
