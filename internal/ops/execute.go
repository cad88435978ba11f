package ops

import (
	"context"
	"fmt"

	"github.com/strackan/cmdrouter/internal/chain"
	"github.com/strackan/cmdrouter/internal/errors"
	"github.com/strackan/cmdrouter/internal/resolver"
)

// ExecuteInput contains parameters for the Execute operation.
type ExecuteInput struct {
	ResolveInput
	ActorID string

	// Invoker runs each capability; the router has none of its own
	Invoker chain.Invoker

	// Summarize renders the result summary stored on the trace. The default
	// lists the capabilities that ran.
	Summarize func(*chain.Result) string

	// Entities extracts referenced entity identifiers from a finished run
	Entities func(*chain.Result) []string
}

// ExecuteOutput contains the result of the Execute operation.
type ExecuteOutput struct {
	TraceID string        `json:"trace_id"`
	Resolve ResolveOutput `json:"resolve"`
	Run     *chain.Result `json:"run,omitempty"`
	Success bool          `json:"success"`
	Error   string        `json:"error,omitempty"`
}

// Execute is the full request loop: resolve, run the best exact match's chain
// through the caller's Invoker, and record the attempt. Fuzzy and semantic
// matches are not run, since they carry no variables; the attempt is still
// recorded as unsuccessful so it shows up in the audit log.
func Execute(ctx context.Context, env *Env, input ExecuteInput) (*ExecuteOutput, error) {
	if input.Invoker == nil {
		return nil, errors.NewInvalidRequest("invoker is required")
	}

	res, err := Resolve(ctx, env, input.ResolveInput)
	if err != nil {
		return nil, err
	}
	out := &ExecuteOutput{Resolve: *res}

	rec := RecordInput{
		InputRequest: input.Text,
		Embedding:    input.Embedding,
		Scope:        input.Scope,
		ActorID:      input.ActorID,
	}

	best := res.Best()
	switch {
	case best == nil:
		out.Error = res.Message
	case best.MatchType != resolver.MatchExact:
		rec.MatchType = best.MatchType
		out.Error = fmt.Sprintf("%d %s candidates need confirmation", len(res.Matches), best.MatchType)
	case best.PlanError != "":
		rec.MatchedPatternID = &best.PatternID
		rec.PatternText = best.Pattern
		rec.MatchType = best.MatchType
		rec.ExtractedVariables = best.Variables
		out.Error = best.PlanError
	default:
		rec.MatchedPatternID = &best.PatternID
		rec.PatternText = best.Pattern
		rec.MatchType = best.MatchType
		rec.ExtractedVariables = best.Variables

		// Bind the registered chain, not the display plan; variable values are literals
		run, runErr := chain.Run(ctx, best.actions, best.Variables, input.Invoker)
		out.Run = run
		rec.Steps = run.Steps
		rec.DurationMs = run.DurationMs
		if runErr != nil {
			out.Error = runErr.Error()
		} else {
			out.Success = true
			rec.ResultSummary = summarizeRun(run, input.Summarize)
			if input.Entities != nil {
				rec.ReferencedEntities = input.Entities(run)
			}
		}
	}

	rec.Success = out.Success
	rec.ErrorMessage = out.Error

	// A cancelled run is still worth recording
	recorded, err := Record(context.WithoutCancel(ctx), env, rec)
	if err != nil {
		return nil, err
	}
	out.TraceID = recorded.ID
	return out, nil
}

func summarizeRun(run *chain.Result, fn func(*chain.Result) string) string {
	if fn != nil {
		return fn(run)
	}
	ran := 0
	var caps []string
	for _, st := range run.Steps {
		if st.Skipped {
			continue
		}
		ran++
		caps = append(caps, st.Capability)
	}
	return fmt.Sprintf("ran %d step(s): %v", ran, caps)
}
