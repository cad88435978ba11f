package ops

import (
	"context"
	"strings"

	"github.com/strackan/cmdrouter/internal/db"
	"github.com/strackan/cmdrouter/internal/errors"
)

// StateOutput is returned by the single-field pattern writes.
type StateOutput struct {
	ID       string `json:"id"`
	Enabled  *bool  `json:"enabled,omitempty"`
	Priority *int   `json:"priority,omitempty"`
}

// SetEnabled enables or disables a pattern. Disabled patterns are invisible
// to resolution until re-enabled.
func SetEnabled(ctx context.Context, env *Env, id string, enabled bool) (*StateOutput, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, errors.NewInvalidRequest("id is required")
	}
	if err := db.SetEnabled(ctx, env.DB, id, enabled); err != nil {
		return nil, err
	}
	env.Registry.Invalidate()
	if enabled {
		env.Metrics.PatternWrite("enable")
	} else {
		env.Metrics.PatternWrite("disable")
	}
	return &StateOutput{ID: id, Enabled: &enabled}, nil
}

// SetPriority changes the priority used to break ties between matches.
func SetPriority(ctx context.Context, env *Env, id string, priority int) (*StateOutput, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, errors.NewInvalidRequest("id is required")
	}
	if err := db.SetPriority(ctx, env.DB, id, priority); err != nil {
		return nil, err
	}
	env.Registry.Invalidate()
	env.Metrics.PatternWrite("priority")
	return &StateOutput{ID: id, Priority: &priority}, nil
}
