package ops

import (
	"context"
	"strings"
	"time"

	"github.com/strackan/cmdrouter/internal/chain"
	"github.com/strackan/cmdrouter/internal/db"
	"github.com/strackan/cmdrouter/internal/errors"
	"github.com/strackan/cmdrouter/internal/pattern"
)

// RegisterInput contains parameters for the Register operation.
type RegisterInput struct {
	Pattern              string // required, e.g. "ping {name} {message}"
	Description          string
	Scope                string // default: universal scope
	ContextTags          []string
	ExecutionModeHint    string
	RequiredCapabilities []string // default: capabilities named by Actions
	Actions              []chain.Step
	Priority             *int  // default: config default_priority
	Enabled              *bool // default: true

	// Embedding overrides the vector the configured embedder would compute
	Embedding []float32
}

// RegisterOutput contains the result of the Register operation.
type RegisterOutput struct {
	ID                   string   `json:"id"`
	Pattern              string   `json:"pattern"`
	Scope                string   `json:"scope"`
	Variables            []string `json:"variables,omitempty"`
	RequiredCapabilities []string `json:"required_capabilities,omitempty"`
	HasEmbedding         bool     `json:"has_embedding"`
}

// Register validates and stores a new command pattern.
func Register(ctx context.Context, env *Env, input RegisterInput) (*RegisterOutput, error) {
	p, err := newPattern(ctx, env, input)
	if err != nil {
		return nil, err
	}

	if err := db.InsertPattern(ctx, env.DB, p); err != nil {
		return nil, err
	}
	env.Registry.Invalidate()
	env.Metrics.PatternWrite("register")

	return &RegisterOutput{
		ID:                   p.ID,
		Pattern:              p.Pattern,
		Scope:                p.Scope,
		Variables:            pattern.Placeholders(p.Pattern),
		RequiredCapabilities: p.RequiredCapabilities,
		HasEmbedding:         p.HasEmbedding(),
	}, nil
}

// newPattern validates input and builds the pattern Register would store,
// embedding included. Import shares it.
func newPattern(ctx context.Context, env *Env, input RegisterInput) (*pattern.CommandPattern, error) {
	template := strings.TrimSpace(input.Pattern)
	if template == "" {
		return nil, errors.NewInvalidRequest("pattern is required")
	}
	m, err := pattern.Compile(template)
	if err != nil {
		return nil, err
	}
	if err := chain.Validate(input.Actions, m.Placeholders()); err != nil {
		return nil, err
	}

	caps := cleanStrings(input.RequiredCapabilities)
	if caps == nil {
		caps = chain.Capabilities(input.Actions)
	}

	priority := env.Config.DefaultPriority
	if input.Priority != nil {
		priority = *input.Priority
	}
	enabled := true
	if input.Enabled != nil {
		enabled = *input.Enabled
	}

	embedding := input.Embedding
	if len(embedding) == 0 {
		embedding = env.embedText(ctx, embeddingText(template, input.Description))
	}

	id, err := generateULID()
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	now := time.Now().Unix()

	return &pattern.CommandPattern{
		ID:                   id,
		Pattern:              template,
		PatternNorm:          pattern.Normalize(template),
		Description:          strings.TrimSpace(input.Description),
		Scope:                env.scopeOrUniversal(input.Scope),
		ContextTags:          pattern.NormalizeTags(input.ContextTags),
		ExecutionModeHint:    strings.TrimSpace(input.ExecutionModeHint),
		RequiredCapabilities: caps,
		Actions:              input.Actions,
		Priority:             priority,
		Enabled:              enabled,
		PatternEmbedding:     embedding,
		CreatedAt:            now,
		UpdatedAt:            now,
	}, nil
}

// embeddingText is what a pattern is embedded as: its template with the
// placeholders removed, followed by its description.
func embeddingText(template, description string) string {
	text := pattern.StripPlaceholders(template)
	if d := strings.TrimSpace(description); d != "" {
		text += ". " + d
	}
	return text
}
