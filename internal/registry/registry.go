// Package registry serves the pattern registry to the resolver. Reads come
// from a TTL-bounded in-memory snapshot of every enabled pattern; writes go
// through ops and invalidate the snapshot.
package registry

import (
	"context"
	"database/sql"
	"strconv"
	"sync/atomic"
	"time"

	cache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/strackan/cmdrouter/internal/config"
	"github.com/strackan/cmdrouter/internal/db"
	"github.com/strackan/cmdrouter/internal/pattern"
)

const snapshotKey = "enabled"

// Registry is the read path over command_patterns.
type Registry struct {
	db        *sql.DB
	universal string
	snapshots *cache.Cache
	loads     singleflight.Group
	gen       atomic.Uint64
	log       *zap.Logger
}

// New creates a Registry. The snapshot TTL comes from config; a zero TTL keeps
// the snapshot until the next write invalidates it.
func New(database *sql.DB, cfg *config.Config, log *zap.Logger) *Registry {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if log == nil {
		log = zap.NewNop()
	}
	ttl := cfg.RegistryCacheTTL()
	if ttl <= 0 {
		ttl = cache.NoExpiration
	}
	return &Registry{
		db:        database,
		universal: cfg.UniversalScope,
		// No janitor: there is a single key and Get already ignores expired items
		snapshots: cache.New(ttl, 0),
		log:       log.Named("registry"),
	}
}

// Universal returns the scope every caller can see.
func (r *Registry) Universal() string {
	return r.universal
}

// Snapshot returns every enabled pattern. The slice is shared; callers must
// not modify it or the patterns it holds.
func (r *Registry) Snapshot(ctx context.Context) ([]*pattern.CommandPattern, error) {
	if v, ok := r.snapshots.Get(snapshotKey); ok {
		return v.([]*pattern.CommandPattern), nil
	}

	// Loads are keyed by generation so a reader arriving after Invalidate
	// never joins a load that started before it.
	// The load is shared, so it must outlive any one caller's cancellation.
	gen := r.gen.Load()
	loadCtx := context.WithoutCancel(ctx)
	v, err, _ := r.loads.Do(strconv.FormatUint(gen, 10), func() (any, error) {
		start := time.Now()
		patterns, err := db.ListEnabledPatterns(loadCtx, r.db)
		if err != nil {
			return nil, err
		}
		if r.gen.Load() == gen {
			r.snapshots.SetDefault(snapshotKey, patterns)
		}
		r.log.Debug("snapshot reloaded",
			zap.Int("patterns", len(patterns)),
			zap.Duration("took", time.Since(start)),
		)
		return patterns, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]*pattern.CommandPattern), nil
}

// ListEligible returns the enabled patterns visible to a caller: its own scope
// or the universal scope, and a context-tag intersection when the pattern
// declares tags. No other read path bypasses this filter.
func (r *Registry) ListEligible(ctx context.Context, scope string, contextTags []string) ([]*pattern.CommandPattern, error) {
	all, err := r.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return pattern.Filter(all, pattern.Visibility{
		Scope:     scope,
		Tags:      contextTags,
		Universal: r.universal,
	}), nil
}

// Invalidate drops the snapshot so the next read reloads from storage.
func (r *Registry) Invalidate() {
	r.gen.Add(1)
	r.snapshots.Delete(snapshotKey)
}
