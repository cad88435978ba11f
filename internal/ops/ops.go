// Package ops implements the router's operations. Every surface (CLI, MCP,
// web) goes through these functions; none of them touch storage directly.
package ops

import (
	"context"
	"crypto/rand"
	"database/sql"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/strackan/cmdrouter/internal/config"
	"github.com/strackan/cmdrouter/internal/embed"
	"github.com/strackan/cmdrouter/internal/metrics"
	"github.com/strackan/cmdrouter/internal/registry"
	"github.com/strackan/cmdrouter/internal/resolver"
)

// Pagination limits
const (
	DefaultListLimit = 20
	MaxListLimit     = 100
	MaxRecallLimit   = 100
)

// Pagination contains pagination metadata for list operations.
type Pagination struct {
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
	Total   int  `json:"total"`
}

// Env carries the collaborators shared by all operations.
type Env struct {
	DB       *sql.DB
	Config   *config.Config
	Registry *registry.Registry
	Resolver *resolver.Resolver

	// Embedder is nil when no provider is configured
	Embedder embed.Embedder

	// Metrics may be nil
	Metrics *metrics.Metrics

	Log *zap.Logger
}

// NewEnv wires the registry and resolver over database. A nil cfg or log
// falls back to defaults.
func NewEnv(database *sql.DB, cfg *config.Config, embedder embed.Embedder, m *metrics.Metrics, log *zap.Logger) *Env {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if log == nil {
		log = zap.NewNop()
	}
	reg := registry.New(database, cfg, log)
	return &Env{
		DB:       database,
		Config:   cfg,
		Registry: reg,
		Resolver: resolver.New(reg, cfg, log),
		Embedder: embedder,
		Metrics:  m,
		Log:      log.Named("ops"),
	}
}

// universal returns the configured universal scope.
func (e *Env) universal() string {
	return e.Registry.Universal()
}

// scopeOrUniversal trims scope and falls back to the universal scope.
func (e *Env) scopeOrUniversal(scope string) string {
	scope = strings.TrimSpace(scope)
	if scope == "" {
		return e.universal()
	}
	return scope
}

// embedText returns a vector for text, or nil when no embedder is configured.
// Provider failures are logged and swallowed: a missing vector only removes
// the entry from semantic matching.
func (e *Env) embedText(ctx context.Context, text string) []float32 {
	if e.Embedder == nil || strings.TrimSpace(text) == "" {
		return nil
	}
	v, err := e.Embedder.Embed(ctx, text)
	if err != nil {
		e.Log.Warn("embedding failed",
			zap.String("provider", e.Embedder.Name()),
			zap.Error(err),
		)
		return nil
	}
	return v
}

// clampLimit applies a default and an upper bound to a requested page size.
func clampLimit(limit, def, maxLimit int) int {
	if limit <= 0 {
		limit = def
	}
	return min(limit, maxLimit)
}

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// generateULID generates a new ULID. Monotonic entropy is not safe for
// concurrent use, so it is guarded.
func generateULID() (string, error) {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	id, err := ulid.New(ulid.Timestamp(time.Now()), entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// cleanStrings trims each entry and drops empty and repeated ones, keeping
// first-seen order.
func cleanStrings(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
