package database

// HNSW index parameters for 512-dim face embeddings
const (
	// HNSWMaxNeighbors (M) is the maximum number of neighbors per node.
	// Higher values improve recall but increase memory and build time.
	HNSWMaxNeighbors = 16

	// HNSWEfSearch is the search candidate pool size.
	HNSWEfSearch = 100

	// HNSWSearchMultiplier is the factor to request more candidates from HNSW
	// so deleted agents can be filtered out and still leave k results.
	HNSWSearchMultiplier = 3
)
