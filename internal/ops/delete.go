package ops

import (
	"context"
	"strings"

	"github.com/strackan/cmdrouter/internal/db"
	"github.com/strackan/cmdrouter/internal/errors"
)

// DeleteInput contains parameters for the Delete operation.
type DeleteInput struct {
	ID string // required
}

// DeleteOutput contains the result of the Delete operation.
type DeleteOutput struct {
	Deleted bool   `json:"deleted"`
	ID      string `json:"id"`
}

// Delete soft-deletes a pattern. Traces that matched it keep their copy of
// the template and report the reference as stale from now on.
func Delete(ctx context.Context, env *Env, input DeleteInput) (*DeleteOutput, error) {
	id := strings.TrimSpace(input.ID)
	if id == "" {
		return nil, errors.NewInvalidRequest("id is required")
	}

	if err := db.SoftDeletePattern(ctx, env.DB, id); err != nil {
		return nil, err
	}
	env.Registry.Invalidate()
	env.Metrics.PatternWrite("delete")

	return &DeleteOutput{
		Deleted: true,
		ID:      id,
	}, nil
}
