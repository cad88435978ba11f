// Package resolver turns raw request text into ranked pattern matches.
//
// Resolution runs a list of stages in order and stops at the first stage that
// produces anything:
//
//  1. exact: anchored template matchers with variable extraction
//  2. normalized: exact matching again after leading filler is stripped
//  3. lexical: which template's vocabulary appears in the request
//  4. semantic: cosine similarity against pattern embeddings
//
// Every stage is a pure function of the request and the eligible patterns, so
// reordering or removing stages is a change to the stage list only.
package resolver

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/strackan/cmdrouter/internal/config"
	"github.com/strackan/cmdrouter/internal/errors"
	"github.com/strackan/cmdrouter/internal/pattern"
)

// Match types reported on each result.
const (
	MatchExact    = "exact"
	MatchFuzzy    = "fuzzy"
	MatchSemantic = "semantic"
)

// Request is one resolution attempt.
type Request struct {
	Text        string
	Scope       string
	ContextTags []string
	Embedding   []float32
}

// Match is one candidate, best first in a result list.
type Match struct {
	Pattern    *pattern.CommandPattern `json:"pattern"`
	MatchType  string                  `json:"match_type"`
	Stage      string                  `json:"stage"`
	Variables  map[string]string       `json:"variables,omitempty"`
	Confidence float64                 `json:"confidence"`
}

// Stage is one step of the pipeline. Run returns nil when the stage has
// nothing to offer, handing the request to the next stage.
type Stage struct {
	Name string
	Run  func(req Request, eligible []*pattern.CommandPattern) []Match
}

// Source supplies the patterns a caller may resolve against.
type Source interface {
	ListEligible(ctx context.Context, scope string, contextTags []string) ([]*pattern.CommandPattern, error)
	Universal() string
}

// Resolver folds a request over its stages.
type Resolver struct {
	source Source
	stages []Stage
	log    *zap.Logger
}

// New creates a Resolver with the default four-stage pipeline.
func New(source Source, cfg *config.Config, log *zap.Logger) *Resolver {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return NewWithStages(source, log, DefaultStages(cfg, source.Universal())...)
}

// NewWithStages creates a Resolver running exactly the given stages.
func NewWithStages(source Source, log *zap.Logger, stages ...Stage) *Resolver {
	if log == nil {
		log = zap.NewNop()
	}
	return &Resolver{source: source, stages: stages, log: log.Named("resolver")}
}

// DefaultStages returns exact, normalized, lexical and semantic stages.
func DefaultStages(cfg *config.Config, universal string) []Stage {
	exact := NewExactStage(universal)
	filler := NewFillerNormalizer(cfg.FillerPrefixes...)
	return []Stage{
		exact,
		NormalizedStage(exact, filler),
		LexicalStage(cfg.FuzzyLimit),
		SemanticStage(cfg.SemanticThreshold, cfg.SemanticLimit),
	}
}

// Resolve returns the first non-empty stage result, best first. When every
// stage comes up empty the error is NO_MATCH, an expected outcome rather than
// a fault; only storage failures surface as INTERNAL.
func (r *Resolver) Resolve(ctx context.Context, req Request) ([]Match, error) {
	eligible, err := r.source.ListEligible(ctx, req.Scope, req.ContextTags)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	for _, stage := range r.stages {
		matches := stage.Run(req, eligible)
		if len(matches) == 0 {
			continue
		}
		for i := range matches {
			matches[i].Stage = stage.Name
		}
		r.log.Debug("resolved",
			zap.String("stage", stage.Name),
			zap.Int("candidates", len(matches)),
			zap.Int("eligible", len(eligible)),
			zap.Duration("took", time.Since(start)),
		)
		return matches, nil
	}

	r.log.Debug("no match", zap.Int("eligible", len(eligible)), zap.Duration("took", time.Since(start)))
	return nil, errors.NewNoMatch(req.Text)
}
