package ops

import (
	"context"
	"strings"

	"github.com/strackan/cmdrouter/internal/db"
	"github.com/strackan/cmdrouter/internal/errors"
	"github.com/strackan/cmdrouter/internal/pattern"
)

// GetInput contains parameters for the Get operation.
type GetInput struct {
	ID             string // required
	IncludeDeleted bool
}

// PatternOutput is a pattern as surfaces return it.
type PatternOutput struct {
	*pattern.CommandPattern
	Variables    []string `json:"variables,omitempty"`
	HasEmbedding bool     `json:"has_embedding"`
}

func newPatternOutput(p *pattern.CommandPattern) *PatternOutput {
	return &PatternOutput{
		CommandPattern: p,
		Variables:      pattern.Placeholders(p.Pattern),
		HasEmbedding:   p.HasEmbedding(),
	}
}

// Get retrieves a single pattern by ID.
func Get(ctx context.Context, env *Env, input GetInput) (*PatternOutput, error) {
	id := strings.TrimSpace(input.ID)
	if id == "" {
		return nil, errors.NewInvalidRequest("id is required")
	}
	p, err := db.GetPattern(ctx, env.DB, id, input.IncludeDeleted)
	if err != nil {
		return nil, err
	}
	return newPatternOutput(p), nil
}
