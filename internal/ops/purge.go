package ops

import (
	"context"
	"fmt"

	"github.com/strackan/cmdrouter/internal/db"
	"github.com/strackan/cmdrouter/internal/errors"
)

// PurgeInput contains parameters for the Purge operation.
type PurgeInput struct {
	OlderThanDays *int // optional, only purge if deleted_at < (now - N days)
}

// PurgeOutput contains the result of the Purge operation.
type PurgeOutput struct {
	Purged  int    `json:"purged"`
	Message string `json:"message"`
}

// Purge permanently removes soft-deleted patterns. Trace entries are never
// purged; their matched_pattern_id simply stays stale.
func Purge(ctx context.Context, env *Env, input PurgeInput) (*PurgeOutput, error) {
	if input.OlderThanDays != nil && *input.OlderThanDays < 0 {
		return nil, errors.NewInvalidRequest("older_than_days must not be negative")
	}

	count, err := db.PurgeDeletedPatterns(ctx, env.DB, input.OlderThanDays)
	if err != nil {
		return nil, err
	}
	if count > 0 {
		env.Metrics.PatternWrite("purge")
	}

	return &PurgeOutput{
		Purged:  count,
		Message: formatPurgeMessage(count, input.OlderThanDays),
	}, nil
}

// formatPurgeMessage creates a human-readable message for the purge result.
func formatPurgeMessage(count int, olderThanDays *int) string {
	if count == 0 {
		return "No deleted patterns to purge"
	}

	noun := "pattern"
	if count > 1 {
		noun = "patterns"
	}
	msg := fmt.Sprintf("Permanently deleted %d %s", count, noun)
	if olderThanDays != nil {
		msg += fmt.Sprintf(" (deleted more than %d days ago)", *olderThanDays)
	}
	return msg
}
