package chain

import (
	"context"
	"time"
)

// Invoker executes a single capability. The router never invokes
// capabilities itself; callers supply the implementation.
type Invoker interface {
	Invoke(ctx context.Context, capability string, params map[string]any) (any, error)
}

// InvokerFunc adapts a function to the Invoker interface.
type InvokerFunc func(ctx context.Context, capability string, params map[string]any) (any, error)

// Invoke calls f.
func (f InvokerFunc) Invoke(ctx context.Context, capability string, params map[string]any) (any, error) {
	return f(ctx, capability, params)
}

// StepTrace records what one step did during a run.
type StepTrace struct {
	Index      int            `json:"index"`
	Capability string         `json:"capability"`
	Params     map[string]any `json:"params,omitempty"`
	OutputName string         `json:"output_name,omitempty"`
	Result     any            `json:"result,omitempty"`
	Skipped    bool           `json:"skipped,omitempty"`
	Error      string         `json:"error,omitempty"`
	DurationMs int64          `json:"duration_ms"`
}

// Result is the outcome of running a chain.
type Result struct {
	Steps      []StepTrace    `json:"steps"`
	Outputs    map[string]any `json:"outputs,omitempty"`
	DurationMs int64          `json:"duration_ms"`
}

// Run executes steps strictly in order. Each step's condition is evaluated
// against the variables and the outputs produced so far; a false condition
// skips the step. A step's result is stored under its output name for later
// steps. On the first failure Run stops and returns the partial result along
// with the error.
func Run(ctx context.Context, steps []Step, vars map[string]string, inv Invoker) (*Result, error) {
	start := time.Now()
	b := Bindings{Variables: vars, Outputs: make(map[string]any)}
	res := &Result{Steps: make([]StepTrace, 0, len(steps)), Outputs: b.Outputs}

	finish := func(err error) (*Result, error) {
		res.DurationMs = time.Since(start).Milliseconds()
		return res, err
	}

	for i, s := range steps {
		if err := ctx.Err(); err != nil {
			return finish(err)
		}

		st := StepTrace{Index: i, Capability: s.Capability, OutputName: s.OutputName}

		cond, err := ParseCondition(s.Condition)
		if err != nil {
			st.Error = err.Error()
			res.Steps = append(res.Steps, st)
			return finish(err)
		}
		if !cond.Eval(b) {
			st.Skipped = true
			res.Steps = append(res.Steps, st)
			continue
		}

		params, err := BindParams(s, b, i)
		if err != nil {
			st.Error = err.Error()
			res.Steps = append(res.Steps, st)
			return finish(err)
		}
		st.Params = params

		stepStart := time.Now()
		out, err := inv.Invoke(ctx, s.Capability, params)
		st.DurationMs = time.Since(stepStart).Milliseconds()
		if err != nil {
			st.Error = err.Error()
			res.Steps = append(res.Steps, st)
			return finish(err)
		}

		st.Result = out
		if s.OutputName != "" {
			b.Outputs[s.OutputName] = out
		}
		res.Steps = append(res.Steps, st)
	}
	return finish(nil)
}
