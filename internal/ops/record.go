package ops

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/strackan/cmdrouter/internal/chain"
	"github.com/strackan/cmdrouter/internal/db"
	"github.com/strackan/cmdrouter/internal/errors"
	"github.com/strackan/cmdrouter/internal/trace"
)

// RecordInput contains parameters for the Record operation.
type RecordInput struct {
	MatchedPatternID *string // optional weak reference
	PatternText      string  // default: looked up from MatchedPatternID
	InputRequest     string  // required

	ExtractedVariables map[string]string
	MatchType          string
	Steps              []chain.StepTrace
	ResultSummary      string
	Success            bool
	ErrorMessage       string
	ReferencedEntities []string

	// Embedding overrides the vector the configured embedder would compute
	Embedding []float32

	Scope             string // default: universal scope
	ActorID           string
	DurationMs        int64
	ResourceUnitsUsed float64
}

// RecordOutput contains the result of the Record operation.
type RecordOutput struct {
	ID string `json:"id"`

	// PatternStale is true when the referenced pattern no longer exists
	PatternStale bool `json:"pattern_stale,omitempty"`
}

// Record appends one entry to the trace log and, when it references a
// pattern, bumps that pattern's usage counters. A dangling reference is
// tolerated: the entry is still written with whatever template text is known.
func Record(ctx context.Context, env *Env, input RecordInput) (*RecordOutput, error) {
	if strings.TrimSpace(input.InputRequest) == "" {
		return nil, errors.NewInvalidRequest("input_request is required")
	}
	if input.DurationMs < 0 || input.ResourceUnitsUsed < 0 {
		return nil, errors.NewInvalidRequest("duration_ms and resource_units_used must not be negative")
	}

	var patternID *string
	if input.MatchedPatternID != nil {
		if id := strings.TrimSpace(*input.MatchedPatternID); id != "" {
			patternID = &id
		}
	}

	stale := false
	patternText := strings.TrimSpace(input.PatternText)
	if patternID != nil && patternText == "" {
		p, err := db.GetPattern(ctx, env.DB, *patternID, true)
		switch {
		case errors.Is(err, errors.ErrNotFound):
			stale = true
		case err != nil:
			return nil, err
		default:
			patternText = p.Pattern
		}
	}

	embedding := input.Embedding
	if len(embedding) == 0 {
		embedding = env.embedText(ctx, input.InputRequest)
	}

	id, err := generateULID()
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	now := time.Now()

	e := &trace.Entry{
		ID:                 id,
		MatchedPatternID:   patternID,
		PatternTextCopy:    patternText,
		InputRequest:       input.InputRequest,
		ExtractedVariables: input.ExtractedVariables,
		MatchType:          strings.TrimSpace(input.MatchType),
		Steps:              input.Steps,
		ResultSummary:      input.ResultSummary,
		Success:            input.Success,
		ErrorMessage:       input.ErrorMessage,
		ReferencedEntities: cleanStrings(input.ReferencedEntities),
		Embedding:          embedding,
		Scope:              env.scopeOrUniversal(input.Scope),
		ActorID:            strings.TrimSpace(input.ActorID),
		DurationMs:         input.DurationMs,
		ResourceUnitsUsed:  input.ResourceUnitsUsed,
		CreatedAt:          now.Unix(),
	}
	if err := db.InsertTrace(ctx, env.DB, e); err != nil {
		return nil, err
	}

	// The counter bump is not transactional with the insert; a lost
	// increment only skews future ranking.
	if patternID != nil && !stale {
		err := db.IncrementUsage(ctx, env.DB, *patternID, now.Unix())
		switch {
		case errors.Is(err, errors.ErrStaleReference):
			stale = true
		case err != nil:
			env.Log.Warn("usage increment failed", zap.String("pattern_id", *patternID), zap.Error(err))
		}
	}
	if stale {
		env.Log.Warn("trace references missing pattern",
			zap.String("trace_id", id),
			zap.String("pattern_id", *patternID),
		)
	}
	env.Metrics.TraceRecorded(input.Success, stale)

	return &RecordOutput{ID: id, PatternStale: stale}, nil
}
