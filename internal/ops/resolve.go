package ops

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/strackan/cmdrouter/internal/chain"
	"github.com/strackan/cmdrouter/internal/errors"
	"github.com/strackan/cmdrouter/internal/resolver"
)

// ResolveInput contains parameters for the Resolve operation.
type ResolveInput struct {
	Text        string // required
	Scope       string // default: universal scope
	ContextTags []string

	// Embedding is the request vector for the semantic stage. When absent and
	// an embedder is configured, it is computed only if the cheaper stages fail.
	Embedding []float32
}

// MatchOutput is one candidate in a resolve result.
type MatchOutput struct {
	PatternID            string            `json:"pattern_id"`
	Pattern              string            `json:"pattern"`
	Description          string            `json:"description,omitempty"`
	Scope                string            `json:"scope"`
	MatchType            string            `json:"match_type"`
	Stage                string            `json:"stage"`
	Confidence           float64           `json:"confidence"`
	Variables            map[string]string `json:"variables,omitempty"`
	RequiredCapabilities []string          `json:"required_capabilities,omitempty"`
	ExecutionModeHint    string            `json:"execution_mode_hint,omitempty"`

	// Plan is the action chain with variables bound; exact matches only
	Plan      []chain.Step `json:"plan,omitempty"`
	PlanError string       `json:"plan_error,omitempty"`

	// actions is the unbound chain; the executor binds it against Variables
	actions []chain.Step
}

// ResolveOutput contains the result of the Resolve operation. A request that
// matches nothing is not an error: Matched is false and Message says so.
type ResolveOutput struct {
	Matched bool          `json:"matched"`
	Message string        `json:"message,omitempty"`
	Matches []MatchOutput `json:"matches"`
}

// Best returns the top-ranked match, or nil.
func (o *ResolveOutput) Best() *MatchOutput {
	if len(o.Matches) == 0 {
		return nil
	}
	return &o.Matches[0]
}

// Resolve maps request text onto registered patterns.
func Resolve(ctx context.Context, env *Env, input ResolveInput) (*ResolveOutput, error) {
	text := strings.TrimSpace(input.Text)
	if text == "" {
		return nil, errors.NewInvalidRequest("text is required")
	}

	req := resolver.Request{
		Text:        text,
		Scope:       env.scopeOrUniversal(input.Scope),
		ContextTags: input.ContextTags,
		Embedding:   input.Embedding,
	}

	start := time.Now()
	matches, err := env.Resolver.Resolve(ctx, req)
	if errors.Is(err, errors.ErrNoMatch) && len(req.Embedding) == 0 && env.Embedder != nil {
		// Stages before semantic are deterministic, so a rerun with a vector
		// only adds the semantic stage's answer.
		if req.Embedding = env.embedText(ctx, text); len(req.Embedding) > 0 {
			matches, err = env.Resolver.Resolve(ctx, req)
		}
	}
	took := time.Since(start)

	if errors.Is(err, errors.ErrNoMatch) {
		env.Metrics.ObserveResolution("", "", took)
		return &ResolveOutput{
			Matched: false,
			Message: errors.NoMatchMessage,
			Matches: []MatchOutput{},
		}, nil
	}
	if err != nil {
		return nil, err
	}

	out := &ResolveOutput{Matched: true, Matches: make([]MatchOutput, 0, len(matches))}
	for _, m := range matches {
		out.Matches = append(out.Matches, newMatchOutput(env, m))
	}
	env.Metrics.ObserveResolution(matches[0].Stage, matches[0].MatchType, took)
	return out, nil
}

func newMatchOutput(env *Env, m resolver.Match) MatchOutput {
	p := m.Pattern
	mo := MatchOutput{
		PatternID:            p.ID,
		Pattern:              p.Pattern,
		Description:          p.Description,
		Scope:                p.Scope,
		MatchType:            m.MatchType,
		Stage:                m.Stage,
		Confidence:           m.Confidence,
		Variables:            m.Variables,
		RequiredCapabilities: p.RequiredCapabilities,
		ExecutionModeHint:    p.ExecutionModeHint,
	}
	if m.MatchType != resolver.MatchExact || len(p.Actions) == 0 {
		return mo
	}

	plan, err := chain.Bind(p.Actions, m.Variables)
	if err != nil {
		env.Log.Warn("plan binding failed", zap.String("pattern_id", p.ID), zap.Error(err))
		mo.PlanError = err.Error()
		return mo
	}
	mo.Plan = plan
	mo.actions = p.Actions
	return mo
}
