package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// DirName is the name of both the global (~/.cmdrouter) and repo (.cmdrouter) config directories.
const DirName = ".cmdrouter"

// Config holds application configuration.
type Config struct {
	// UniversalScope is the reserved scope value visible to every caller.
	UniversalScope string `json:"universal_scope,omitempty"`

	// DefaultPriority is assigned to patterns registered without an explicit priority.
	// Lower values win tie-breaks.
	DefaultPriority int `json:"default_priority,omitempty"`

	// FuzzyLimit caps the number of lexical fallback candidates.
	FuzzyLimit int `json:"fuzzy_limit,omitempty"`

	// SemanticThreshold is the minimum cosine similarity for semantic matches and recall.
	SemanticThreshold float64 `json:"semantic_threshold,omitempty"`

	// SemanticLimit caps the number of semantic fallback candidates.
	SemanticLimit int `json:"semantic_limit,omitempty"`

	// FillerPrefixes extends the built-in leading filler vocabulary stripped before
	// the second exact-match attempt.
	FillerPrefixes []string `json:"filler_prefixes,omitempty"`

	// RegistryCacheTTLSeconds bounds how long a registry snapshot is served before
	// being reloaded. Local writes always invalidate immediately.
	RegistryCacheTTLSeconds int `json:"registry_cache_ttl_seconds,omitempty"`

	// RecallDefaultLimit is the number of trace entries returned when no limit is given.
	RecallDefaultLimit int `json:"recall_default_limit,omitempty"`

	// AllowedPaths is an allowlist of directories for catalog import/export.
	// Paths outside ~/.cmdrouter/exports require either being in this list or AllowUnsafePaths=true.
	AllowedPaths []string `json:"allowed_paths,omitempty"`

	// AllowUnsafePaths disables directory restrictions for catalog import/export.
	AllowUnsafePaths bool `json:"allow_unsafe_paths,omitempty"`

	// DBMaxOpenConns limits the maximum number of open database connections.
	// 0 means use sql.DB default (unlimited). Only set if you experience contention.
	DBMaxOpenConns int `json:"db_max_open_conns,omitempty"`

	// DBMaxIdleConns limits the maximum number of idle database connections.
	DBMaxIdleConns int `json:"db_max_idle_conns,omitempty"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	DisabledTools []string `json:"disabled_tools,omitempty"`

	// DisabledTypes is a list of type names to disable entirely.
	// Known types: "pattern", "router", "trace".
	DisabledTypes []string `json:"disabled_types,omitempty"`

	// LogLevel is one of debug, info, warn, error. Empty means info.
	LogLevel string `json:"log_level,omitempty"`

	// Embedding configures the optional embedding provider.
	Embedding EmbeddingConfig `json:"embedding"`
}

// EmbeddingConfig selects and configures the embedding provider.
type EmbeddingConfig struct {
	// Provider is "ollama", "genai", or empty to disable automatic embedding.
	Provider string `json:"provider,omitempty"`

	OllamaEndpoint string `json:"ollama_endpoint,omitempty"`
	OllamaModel    string `json:"ollama_model,omitempty"`

	GenAIAPIKey string `json:"genai_api_key,omitempty"`
	GenAIModel  string `json:"genai_model,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		UniversalScope:          "public",
		DefaultPriority:         100,
		FuzzyLimit:              3,
		SemanticThreshold:       0.75,
		SemanticLimit:           3,
		RegistryCacheTTLSeconds: 30,
		RecallDefaultLimit:      10,
		LogLevel:                "info",
	}
}

// RegistryCacheTTL returns the snapshot TTL as a duration.
func (c *Config) RegistryCacheTTL() time.Duration {
	return time.Duration(c.RegistryCacheTTLSeconds) * time.Second
}

// Load loads configuration from baseDir/config.json.
// Returns default config if the file doesn't exist.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.cmdrouter.
func Load(baseDir string) (*Config, error) {
	return loadFile(filepath.Join(baseDir, "config.json"))
}

// LoadWithRepo loads configuration from both global (~/.cmdrouter) and repo (.cmdrouter) directories.
// Repo config is found by walking upward from startDir to find the nearest .cmdrouter/config.json.
// Repo config takes precedence for scalar values; arrays are merged (deduplicated).
// Either or both configs may be missing.
func LoadWithRepo(globalDir, startDir string) (*Config, error) {
	global, err := loadFileRaw(filepath.Join(globalDir, "config.json"))
	if err != nil {
		return nil, err
	}

	repo, err := loadFileRaw(FindRepoConfig(startDir))
	if err != nil {
		return nil, err
	}

	// Apply defaults, then global, then repo
	return Merge(Merge(DefaultConfig(), global), repo), nil
}

// FindRepoConfig walks upward from startDir to find the nearest .cmdrouter/config.json.
// Returns the path if found, or empty string if not found.
func FindRepoConfig(startDir string) string {
	if startDir == "" {
		return ""
	}
	dir := startDir
	for {
		configPath := filepath.Join(dir, DirName, "config.json")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// loadFileRaw loads configuration from a specific file path.
// Returns zero-valued config if the file doesn't exist (not defaults).
func loadFileRaw(configPath string) (*Config, error) {
	if configPath == "" {
		return &Config{}, nil
	}
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadFile loads configuration from a specific file path.
// Returns default config if the file doesn't exist.
func loadFile(configPath string) (*Config, error) {
	cfg, err := loadFileRaw(configPath)
	if err != nil {
		return nil, err
	}
	return Merge(DefaultConfig(), cfg), nil
}

// Merge combines base and overlay configs.
// Overlay values take precedence for scalars; arrays are merged and deduplicated.
func Merge(base, overlay *Config) *Config {
	result := &Config{}

	// Scalars: overlay wins if non-zero, else base
	result.UniversalScope = pickString(overlay.UniversalScope, base.UniversalScope)
	result.DefaultPriority = pickInt(overlay.DefaultPriority, base.DefaultPriority)
	result.FuzzyLimit = pickInt(overlay.FuzzyLimit, base.FuzzyLimit)
	result.SemanticLimit = pickInt(overlay.SemanticLimit, base.SemanticLimit)
	result.RegistryCacheTTLSeconds = pickInt(overlay.RegistryCacheTTLSeconds, base.RegistryCacheTTLSeconds)
	result.RecallDefaultLimit = pickInt(overlay.RecallDefaultLimit, base.RecallDefaultLimit)
	result.DBMaxOpenConns = pickInt(overlay.DBMaxOpenConns, base.DBMaxOpenConns)
	result.DBMaxIdleConns = pickInt(overlay.DBMaxIdleConns, base.DBMaxIdleConns)
	result.LogLevel = pickString(overlay.LogLevel, base.LogLevel)

	result.SemanticThreshold = overlay.SemanticThreshold
	if result.SemanticThreshold == 0 {
		result.SemanticThreshold = base.SemanticThreshold
	}

	result.Embedding = EmbeddingConfig{
		Provider:       pickString(overlay.Embedding.Provider, base.Embedding.Provider),
		OllamaEndpoint: pickString(overlay.Embedding.OllamaEndpoint, base.Embedding.OllamaEndpoint),
		OllamaModel:    pickString(overlay.Embedding.OllamaModel, base.Embedding.OllamaModel),
		GenAIAPIKey:    pickString(overlay.Embedding.GenAIAPIKey, base.Embedding.GenAIAPIKey),
		GenAIModel:     pickString(overlay.Embedding.GenAIModel, base.Embedding.GenAIModel),
	}

	// Booleans: overlay wins if true, else base
	result.AllowUnsafePaths = base.AllowUnsafePaths || overlay.AllowUnsafePaths

	// Arrays: merge and deduplicate
	result.FillerPrefixes = mergeStringSlice(base.FillerPrefixes, overlay.FillerPrefixes)
	result.AllowedPaths = mergeStringSlice(base.AllowedPaths, overlay.AllowedPaths)
	result.DisabledTools = mergeStringSlice(base.DisabledTools, overlay.DisabledTools)
	result.DisabledTypes = mergeStringSlice(base.DisabledTypes, overlay.DisabledTypes)

	return result
}

func pickString(overlay, base string) string {
	if strings.TrimSpace(overlay) != "" {
		return overlay
	}
	return base
}

func pickInt(overlay, base int) int {
	if overlay != 0 {
		return overlay
	}
	return base
}

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, s := range append(append([]string{}, a...), b...) {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}
