package ops

import (
	"context"
	"strings"

	"github.com/strackan/cmdrouter/internal/db"
	"github.com/strackan/cmdrouter/internal/errors"
	"github.com/strackan/cmdrouter/internal/trace"
)

// TraceOutput is a trace entry plus the current state of its pattern reference.
type TraceOutput struct {
	*trace.Entry
	PatternStale bool `json:"pattern_stale,omitempty"`
}

// GetTrace retrieves a single trace entry by ID.
func GetTrace(ctx context.Context, env *Env, id string) (*TraceOutput, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, errors.NewInvalidRequest("id is required")
	}
	e, err := db.GetTrace(ctx, env.DB, id)
	if err != nil {
		return nil, err
	}

	out := &TraceOutput{Entry: e}
	if e.MatchedPatternID != nil {
		exists, err := db.PatternExists(ctx, env.DB, *e.MatchedPatternID)
		if err != nil {
			return nil, err
		}
		out.PatternStale = !exists
	}
	return out, nil
}

// ListTracesInput contains parameters for the ListTraces operation.
type ListTracesInput struct {
	PatternID *string
	Scope     *string
	Success   *bool // nil = both outcomes
	Limit     int   // default: 20, max: 100
	Offset    int
}

// ListTracesOutput contains the result of the ListTraces operation.
type ListTracesOutput struct {
	Items      []*trace.Entry `json:"items"`
	Pagination Pagination     `json:"pagination"`
}

// ListTraces pages through the log newest first. Unlike Recall it is an audit
// view and includes failed attempts unless Success says otherwise.
func ListTraces(ctx context.Context, env *Env, input ListTracesInput) (*ListTracesOutput, error) {
	limit := clampLimit(input.Limit, DefaultListLimit, MaxListLimit)
	offset := max(input.Offset, 0)

	entries, total, err := db.ListTraces(ctx, env.DB, db.TraceFilter{
		PatternID: input.PatternID,
		Scope:     input.Scope,
		Success:   input.Success,
		Limit:     limit,
		Offset:    offset,
	})
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []*trace.Entry{}
	}

	return &ListTracesOutput{
		Items: entries,
		Pagination: Pagination{
			Limit:   limit,
			Offset:  offset,
			HasMore: offset+len(entries) < total,
			Total:   total,
		},
	}, nil
}

// RecallInput contains parameters for the Recall operation.
type RecallInput struct {
	Mode     string // semantic | textual | recent (default)
	Scope    string // empty: universal entries only
	Entities []string

	// Text is the textual query; in semantic mode it is embedded when no
	// Embedding is supplied
	Text      string
	Embedding []float32

	// MinSimilarity defaults to the configured semantic threshold
	MinSimilarity *float64

	Limit int // default: config recall_default_limit, max: 100
}

// RecallOutput contains the result of the Recall operation.
type RecallOutput struct {
	Mode  trace.Mode     `json:"mode"`
	Items []trace.Scored `json:"items"`
}

// Recall searches successful trace entries visible to the caller's scope.
func Recall(ctx context.Context, env *Env, input RecallInput) (*RecallOutput, error) {
	mode, err := trace.ParseMode(input.Mode)
	if err != nil {
		return nil, errors.NewInvalidRequest(err.Error())
	}

	f := trace.Filter{
		Scope:     strings.TrimSpace(input.Scope),
		Universal: env.universal(),
		Entities:  cleanStrings(input.Entities),
		Limit:     clampLimit(input.Limit, env.Config.RecallDefaultLimit, MaxRecallLimit),
	}

	switch mode {
	case trace.ModeTextual:
		f.Text = strings.TrimSpace(input.Text)
		if f.Text == "" {
			return nil, errors.NewInvalidRequest("textual recall requires text")
		}
	case trace.ModeSemantic:
		f.Embedding = input.Embedding
		if len(f.Embedding) == 0 && strings.TrimSpace(input.Text) != "" {
			if env.Embedder == nil {
				return nil, errors.NewInvalidRequest("semantic recall requires an embedding or an embedding provider")
			}
			v, err := env.Embedder.Embed(ctx, input.Text)
			if err != nil {
				return nil, errors.NewInternal(err)
			}
			f.Embedding = v
		}
		if len(f.Embedding) == 0 {
			return nil, errors.NewInvalidRequest("semantic recall requires an embedding or text")
		}
		f.MinSimilarity = env.Config.SemanticThreshold
		if input.MinSimilarity != nil {
			f.MinSimilarity = *input.MinSimilarity
		}
	}

	items, err := db.Recall(ctx, env.DB, mode, f)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []trace.Scored{}
	}
	env.Metrics.Recall(string(mode))

	return &RecallOutput{Mode: mode, Items: items}, nil
}
