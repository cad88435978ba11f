// Package trace models the append-only execution log: one Entry per
// resolution attempt, and the filters recall runs over it.
package trace

import (
	"fmt"
	"strings"

	"github.com/strackan/cmdrouter/internal/chain"
)

// Entry is the archival record of one resolution attempt.
type Entry struct {
	ID string `json:"id"`

	// MatchedPatternID is a weak reference; the pattern may since have been deleted
	MatchedPatternID *string `json:"matched_pattern_id,omitempty"`

	// PatternTextCopy is the template text captured when the entry was written
	PatternTextCopy string `json:"pattern_text_copy,omitempty"`

	InputRequest       string            `json:"input_request"`
	ExtractedVariables map[string]string `json:"extracted_variables,omitempty"`
	MatchType          string            `json:"match_type,omitempty"`

	// Steps is the per-step trace handed back by the executor
	Steps []chain.StepTrace `json:"steps,omitempty"`

	ResultSummary string `json:"result_summary,omitempty"`
	Success       bool   `json:"success"`
	ErrorMessage  string `json:"error_message,omitempty"`

	ReferencedEntities []string  `json:"referenced_entities,omitempty"`
	Embedding          []float32 `json:"-"`

	Scope   string `json:"scope"`
	ActorID string `json:"actor_id,omitempty"`

	DurationMs        int64   `json:"duration_ms"`
	ResourceUnitsUsed float64 `json:"resource_units_used"`

	CreatedAt int64 `json:"created_at"`
}

// Mode selects how recall ranks entries.
type Mode string

const (
	ModeSemantic Mode = "semantic"
	ModeTextual  Mode = "textual"
	ModeRecent   Mode = "recent"
)

// ParseMode validates a recall mode name. An empty name means recent.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return ModeRecent, nil
	case ModeSemantic, ModeTextual, ModeRecent:
		return m, nil
	}
	return "", fmt.Errorf("unknown recall mode %q (want semantic, textual or recent)", s)
}

// Filter narrows recall. Only successful entries whose scope is universal or
// equal to Scope are ever returned.
type Filter struct {
	Scope     string
	Universal string

	// Entities keeps entries that reference at least one of these identifiers
	Entities []string

	// Text is the substring searched in textual mode
	Text string

	// Embedding is the query vector for semantic mode
	Embedding []float32

	// MinSimilarity drops semantic results below this cosine similarity
	MinSimilarity float64

	Limit int
}

// Scored pairs an entry with its similarity to a semantic recall query.
type Scored struct {
	Entry      *Entry  `json:"entry"`
	Similarity float64 `json:"similarity,omitempty"`
}
