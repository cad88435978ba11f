// Package pattern holds the command template model: the registry entry, template
// compilation into anchored matchers, and the visibility rules that decide which
// patterns a caller may resolve against.
package pattern

import (
	"github.com/strackan/cmdrouter/internal/chain"
)

// CommandPattern is one registered command template.
type CommandPattern struct {
	// ID is a ULID that uniquely identifies this pattern
	ID string `json:"id"`

	// Pattern is the template as registered, e.g. "ping {name} {message}"
	Pattern string `json:"pattern"`

	// PatternNorm is the normalized template used for (pattern, scope) uniqueness
	PatternNorm string `json:"-"`

	Description string `json:"description,omitempty"`

	// Scope is the visibility partition; the configured universal scope is visible to all callers
	Scope string `json:"scope"`

	// ContextTags gate eligibility when non-empty
	ContextTags []string `json:"context_tags,omitempty"`

	// ExecutionModeHint is passed through to the executor untouched
	ExecutionModeHint string `json:"execution_mode_hint,omitempty"`

	RequiredCapabilities []string     `json:"required_capabilities,omitempty"`
	Actions              []chain.Step `json:"actions,omitempty"`

	// Priority breaks ties between matching patterns; lower wins
	Priority int `json:"priority"`

	// Enabled is false for patterns hidden from the resolver
	Enabled bool `json:"enabled"`

	UsageCount int64  `json:"usage_count"`
	LastUsedAt *int64 `json:"last_used_at,omitempty"`

	// PatternEmbedding is the optional vector used by semantic matching
	PatternEmbedding []float32 `json:"-"`

	CreatedAt int64  `json:"created_at"`
	UpdatedAt int64  `json:"updated_at"`
	DeletedAt *int64 `json:"deleted_at,omitempty"`
}

// HasEmbedding reports whether the pattern can take part in semantic matching.
func (p *CommandPattern) HasEmbedding() bool {
	return len(p.PatternEmbedding) > 0
}
