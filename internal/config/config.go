package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/kozaktomas/agent-faceid/internal/constants"
)

type Config struct {
	Engine   EngineConfig
	Matching MatchingConfig
	Database DatabaseConfig
	Storage  StorageConfig
	Web      WebConfig
	Log      LogConfig
}

type EngineConfig struct {
	URL          string        // defaults to http://localhost:8000
	Model        string        // engine model pack, defaults to buffalo_l
	DetSize      int           // detector input size, defaults to 640
	EmbeddingDim int           // expected embedding dimension, defaults to 512
	Timeout      time.Duration // per-call HTTP timeout
	Serialize    bool          // guard inference with a mutex
	OverlayPath  string        // optional YAML replacing the embedded landmark overlay
}

type MatchingConfig struct {
	Threshold          float64 // minimum cosine similarity for a login match
	Policy             string  // "first" (scan order) or "best" (global maximum)
	DuplicateThreshold float64 // enrollment warns when an existing agent is this similar
}

type DatabaseConfig struct {
	URL          string // PostgreSQL connection URL
	MaxOpenConns int    // Maximum open connections (default 25)
	MaxIdleConns int    // Maximum idle connections (default 5)
	HNSWEnabled  bool   // Maintain the in-memory agent index
}

type StorageConfig struct {
	Backend      string // "local" or "azure"
	LocalDir     string // root directory of the local backend
	PublicURL    string // URL prefix under which the local backend is served
	AzureAccount string
	AzureKey     string
	Bucket       string // Azure container name
}

type WebConfig struct {
	Host           string
	Port           int
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string // "json" or "text"
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable as a float in [0, 1].
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f >= 0 && f <= 1 {
		return f
	}
	return defaultVal
}

func envBool(key string, defaultVal bool) bool {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return defaultVal
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return d
	}
	return defaultVal
}

func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

// envList splits a comma-separated variable, dropping empty items.
func envList(key string) []string {
	var out []string
	for item := range strings.SplitSeq(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func Load() *Config {
	return &Config{
		Engine: EngineConfig{
			URL:          envString("ENGINE_URL", "http://localhost:8000"),
			Model:        envString("ENGINE_MODEL", "buffalo_l"),
			DetSize:      envInt("ENGINE_DET_SIZE", 640),
			EmbeddingDim: envInt("ENGINE_EMBEDDING_DIM", constants.DefaultEmbeddingDim),
			Timeout:      envDuration("ENGINE_TIMEOUT", 60*time.Second),
			Serialize:    envBool("ENGINE_SERIALIZE", false),
			OverlayPath:  os.Getenv("LANDMARK_OVERLAY_PATH"),
		},
		Matching: MatchingConfig{
			Threshold:          envFloat("MATCH_THRESHOLD", constants.DefaultMatchThreshold),
			Policy:             strings.ToLower(envString("MATCH_POLICY", "first")),
			DuplicateThreshold: envFloat("DUPLICATE_THRESHOLD", constants.DefaultDuplicateThreshold),
		},
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 5),
			HNSWEnabled:  envBool("HNSW_ENABLED", true),
		},
		Storage: StorageConfig{
			Backend:      strings.ToLower(envString("STORAGE_BACKEND", "local")),
			LocalDir:     envString("STORAGE_LOCAL_DIR", "./data/objects"),
			PublicURL:    envString("STORAGE_PUBLIC_URL", "http://localhost:8080/media"),
			AzureAccount: os.Getenv("AZURE_STORAGE_ACCOUNT"),
			AzureKey:     os.Getenv("AZURE_STORAGE_KEY"),
			Bucket:       envString("STORAGE_BUCKET", "agents-photos"),
		},
		Web: WebConfig{
			Host:           envString("WEB_HOST", "0.0.0.0"),
			Port:           envInt("WEB_PORT", 8080),
			AllowedOrigins: envList("WEB_ALLOWED_ORIGINS"),
		},
		Log: LogConfig{
			Level:  envString("LOG_LEVEL", "info"),
			Format: strings.ToLower(envString("LOG_FORMAT", "json")),
		},
	}
}
