package resolver

import (
	"sort"
	"sync"

	"github.com/strackan/cmdrouter/internal/pattern"
)

// matcherCache memoizes compiled templates. Templates are immutable once
// registered, so entries never go stale.
type matcherCache struct {
	m sync.Map // template -> *pattern.Matcher (nil if it does not compile)
}

func (c *matcherCache) get(template string) *pattern.Matcher {
	if v, ok := c.m.Load(template); ok {
		return v.(*pattern.Matcher)
	}
	m, err := pattern.Compile(template)
	if err != nil {
		m = nil
	}
	v, _ := c.m.LoadOrStore(template, m)
	return v.(*pattern.Matcher)
}

// exactMatch runs every eligible template against text and returns the single
// winner: lowest priority, then a non-universal scope over the universal one,
// then higher usage, then the older pattern.
func exactMatch(cache *matcherCache, universal, text string, eligible []*pattern.CommandPattern) []Match {
	var hits []Match
	for _, p := range eligible {
		m := cache.get(p.Pattern)
		if m == nil {
			continue
		}
		vars, ok := m.Match(text)
		if !ok {
			continue
		}
		hits = append(hits, Match{Pattern: p, MatchType: MatchExact, Variables: vars, Confidence: 1})
	}
	if len(hits) == 0 {
		return nil
	}

	sort.SliceStable(hits, func(i, j int) bool {
		a, b := hits[i].Pattern, hits[j].Pattern
		if a.Priority != b.Priority {
			return a.Priority < b.Priority
		}
		aPrivate, bPrivate := a.Scope != universal, b.Scope != universal
		if aPrivate != bPrivate {
			return aPrivate
		}
		if a.UsageCount != b.UsageCount {
			return a.UsageCount > b.UsageCount
		}
		return a.ID < b.ID
	})
	return hits[:1]
}

// NewExactStage builds the anchored-template stage.
func NewExactStage(universal string) Stage {
	cache := &matcherCache{}
	return Stage{
		Name: "exact",
		Run: func(req Request, eligible []*pattern.CommandPattern) []Match {
			return exactMatch(cache, universal, req.Text, eligible)
		},
	}
}

// NormalizedStage retries exact on the request with leading filler removed.
// It does nothing when normalization leaves the text unchanged or empty.
func NormalizedStage(exact Stage, filler *FillerNormalizer) Stage {
	return Stage{
		Name: "normalized",
		Run: func(req Request, eligible []*pattern.CommandPattern) []Match {
			normalized := filler.Normalize(req.Text)
			if normalized == "" || normalized == req.Text {
				return nil
			}
			retry := req
			retry.Text = normalized
			return exact.Run(retry, eligible)
		},
	}
}
