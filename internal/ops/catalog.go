package ops

import (
	"github.com/strackan/cmdrouter/internal/chain"
	"github.com/strackan/cmdrouter/internal/pattern"
)

// CatalogVersion is the catalog file format version.
const CatalogVersion = 1

// Catalog is the YAML document exchanged by Export and Import.
type Catalog struct {
	Version    int            `yaml:"catalog_version"`
	ExportedAt int64          `yaml:"exported_at,omitempty"`
	Patterns   []CatalogEntry `yaml:"patterns"`
}

// CatalogEntry is one pattern definition. Usage counters, embeddings and IDs
// are local state and are not carried.
type CatalogEntry struct {
	Pattern              string       `yaml:"pattern"`
	Description          string       `yaml:"description,omitempty"`
	Scope                string       `yaml:"scope,omitempty"`
	ContextTags          []string     `yaml:"context_tags,omitempty"`
	ExecutionModeHint    string       `yaml:"execution_mode_hint,omitempty"`
	RequiredCapabilities []string     `yaml:"required_capabilities,omitempty"`
	Priority             *int         `yaml:"priority,omitempty"`
	Enabled              *bool        `yaml:"enabled,omitempty"`
	Actions              []chain.Step `yaml:"actions,omitempty"`
}

func catalogEntry(p *pattern.CommandPattern) CatalogEntry {
	priority, enabled := p.Priority, p.Enabled
	return CatalogEntry{
		Pattern:              p.Pattern,
		Description:          p.Description,
		Scope:                p.Scope,
		ContextTags:          p.ContextTags,
		ExecutionModeHint:    p.ExecutionModeHint,
		RequiredCapabilities: p.RequiredCapabilities,
		Priority:             &priority,
		Enabled:              &enabled,
		Actions:              p.Actions,
	}
}

func (c CatalogEntry) registerInput() RegisterInput {
	return RegisterInput{
		Pattern:              c.Pattern,
		Description:          c.Description,
		Scope:                c.Scope,
		ContextTags:          c.ContextTags,
		ExecutionModeHint:    c.ExecutionModeHint,
		RequiredCapabilities: c.RequiredCapabilities,
		Actions:              c.Actions,
		Priority:             c.Priority,
		Enabled:              c.Enabled,
	}
}
