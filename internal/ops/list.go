package ops

import (
	"context"
	"strings"

	"github.com/strackan/cmdrouter/internal/db"
	"github.com/strackan/cmdrouter/internal/pattern"
)

// ListInput contains parameters for the List operation.
type ListInput struct {
	Scope           *string // optional filter by scope
	IncludeDisabled bool
	IncludeDeleted  bool
	Limit           int // default: 20, max: 100
	Offset          int
}

// PatternSummary is a pattern without its action chain.
type PatternSummary struct {
	ID                string   `json:"id"`
	Pattern           string   `json:"pattern"`
	Description       string   `json:"description,omitempty"`
	Scope             string   `json:"scope"`
	ContextTags       []string `json:"context_tags,omitempty"`
	ExecutionModeHint string   `json:"execution_mode_hint,omitempty"`
	Steps             int      `json:"steps"`
	Priority          int      `json:"priority"`
	Enabled           bool     `json:"enabled"`
	UsageCount        int64    `json:"usage_count"`
	LastUsedAt        *int64   `json:"last_used_at,omitempty"`
	HasEmbedding      bool     `json:"has_embedding"`
	UpdatedAt         int64    `json:"updated_at"`
	DeletedAt         *int64   `json:"deleted_at,omitempty"`
}

func summarize(p *pattern.CommandPattern) PatternSummary {
	return PatternSummary{
		ID:                p.ID,
		Pattern:           p.Pattern,
		Description:       p.Description,
		Scope:             p.Scope,
		ContextTags:       p.ContextTags,
		ExecutionModeHint: p.ExecutionModeHint,
		Steps:             len(p.Actions),
		Priority:          p.Priority,
		Enabled:           p.Enabled,
		UsageCount:        p.UsageCount,
		LastUsedAt:        p.LastUsedAt,
		HasEmbedding:      p.HasEmbedding(),
		UpdatedAt:         p.UpdatedAt,
		DeletedAt:         p.DeletedAt,
	}
}

// ListOutput contains the result of the List operation.
type ListOutput struct {
	Items      []PatternSummary `json:"items"`
	Pagination Pagination       `json:"pagination"`
	Sort       string           `json:"sort"`
}

// List retrieves pattern summaries with pagination.
func List(ctx context.Context, env *Env, input ListInput) (*ListOutput, error) {
	var scope *string
	if input.Scope != nil {
		s := strings.TrimSpace(*input.Scope)
		scope = &s
	}

	limit := clampLimit(input.Limit, DefaultListLimit, MaxListLimit)
	offset := max(input.Offset, 0)

	patterns, total, err := db.ListPatterns(ctx, env.DB, db.PatternFilter{
		Scope:           scope,
		IncludeDisabled: input.IncludeDisabled,
		IncludeDeleted:  input.IncludeDeleted,
		Limit:           limit,
		Offset:          offset,
	})
	if err != nil {
		return nil, err
	}

	items := make([]PatternSummary, 0, len(patterns))
	for _, p := range patterns {
		items = append(items, summarize(p))
	}

	return &ListOutput{
		Items: items,
		Pagination: Pagination{
			Limit:   limit,
			Offset:  offset,
			HasMore: offset+len(items) < total,
			Total:   total,
		},
		Sort: "scope_priority_asc",
	}, nil
}
