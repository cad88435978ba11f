package ops

import (
	"context"
	"strings"

	"github.com/strackan/cmdrouter/internal/chain"
	"github.com/strackan/cmdrouter/internal/db"
	"github.com/strackan/cmdrouter/internal/errors"
	"github.com/strackan/cmdrouter/internal/pattern"
)

// UpdateInput contains parameters for the Update operation. The template and
// scope are fixed at registration; register a new pattern to change them.
type UpdateInput struct {
	ID string // required

	// Editable fields (nil = don't change)
	Description          *string
	ContextTags          *[]string
	ExecutionModeHint    *string
	RequiredCapabilities *[]string
	Actions              *[]chain.Step
	Priority             *int
	Enabled              *bool
	Embedding            []float32

	// Reembed recomputes the embedding with the configured embedder
	Reembed bool
}

// UpdateOutput contains the result of the Update operation.
type UpdateOutput struct {
	ID        string `json:"id"`
	UpdatedAt int64  `json:"updated_at"`
}

// Update modifies the editable fields of a live pattern.
func Update(ctx context.Context, env *Env, input UpdateInput) (*UpdateOutput, error) {
	id := strings.TrimSpace(input.ID)
	if id == "" {
		return nil, errors.NewInvalidRequest("id is required")
	}
	if input.Description == nil && input.ContextTags == nil && input.ExecutionModeHint == nil &&
		input.RequiredCapabilities == nil && input.Actions == nil && input.Priority == nil &&
		input.Enabled == nil && len(input.Embedding) == 0 && !input.Reembed {
		return nil, errors.NewInvalidRequest("at least one editable field must be provided")
	}

	p, err := db.GetPattern(ctx, env.DB, id, false)
	if err != nil {
		return nil, err
	}

	if input.Actions != nil {
		if err := chain.Validate(*input.Actions, pattern.Placeholders(p.Pattern)); err != nil {
			return nil, err
		}
		p.Actions = *input.Actions
		// Derived capabilities follow the chain unless given explicitly
		if input.RequiredCapabilities == nil {
			p.RequiredCapabilities = chain.Capabilities(p.Actions)
		}
	}
	if input.RequiredCapabilities != nil {
		p.RequiredCapabilities = cleanStrings(*input.RequiredCapabilities)
	}
	if input.Description != nil {
		p.Description = strings.TrimSpace(*input.Description)
	}
	if input.ContextTags != nil {
		p.ContextTags = pattern.NormalizeTags(*input.ContextTags)
	}
	if input.ExecutionModeHint != nil {
		p.ExecutionModeHint = strings.TrimSpace(*input.ExecutionModeHint)
	}
	if input.Priority != nil {
		p.Priority = *input.Priority
	}
	if input.Enabled != nil {
		p.Enabled = *input.Enabled
	}

	switch {
	case len(input.Embedding) > 0:
		p.PatternEmbedding = input.Embedding
	case input.Reembed:
		if env.Embedder == nil {
			return nil, errors.NewInvalidRequest("reembed requires an embedding provider")
		}
		v, err := env.Embedder.Embed(ctx, embeddingText(p.Pattern, p.Description))
		if err != nil {
			return nil, errors.NewInternal(err)
		}
		p.PatternEmbedding = v
	}

	if err := db.UpdatePattern(ctx, env.DB, p); err != nil {
		return nil, err
	}
	env.Registry.Invalidate()
	env.Metrics.PatternWrite("update")

	return &UpdateOutput{ID: p.ID, UpdatedAt: p.UpdatedAt}, nil
}
