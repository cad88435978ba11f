package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/strackan/cmdrouter/internal/chain"
	"github.com/strackan/cmdrouter/internal/errors"
	"github.com/strackan/cmdrouter/internal/pattern"
	"github.com/strackan/cmdrouter/internal/vector"
)

// DBTX is the query surface shared by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const patternColumns = `
	id, pattern_raw, pattern_norm, description, scope, context_tags_json,
	execution_mode_hint, required_capabilities_json, actions_json, priority,
	enabled, usage_count, last_used_at, pattern_embedding,
	created_at, updated_at, deleted_at`

// InsertPattern stores a new pattern. A live pattern with the same normalized
// template in the same scope yields a DUPLICATE error.
func InsertPattern(ctx context.Context, db DBTX, p *pattern.CommandPattern) error {
	tagsJSON, err := toNullJSON(p.ContextTags, len(p.ContextTags) > 0)
	if err != nil {
		return errors.NewInternal(err)
	}
	capsJSON, err := toNullJSON(p.RequiredCapabilities, len(p.RequiredCapabilities) > 0)
	if err != nil {
		return errors.NewInternal(err)
	}
	actionsJSON, err := toNullJSON(p.Actions, len(p.Actions) > 0)
	if err != nil {
		return errors.NewInternal(err)
	}

	query := `
		INSERT INTO command_patterns (
			id, pattern_raw, pattern_norm, description, scope, context_tags_json,
			execution_mode_hint, required_capabilities_json, actions_json, priority,
			enabled, usage_count, last_used_at, pattern_embedding,
			created_at, updated_at, deleted_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL)
	`

	_, err = db.ExecContext(ctx, query,
		p.ID, p.Pattern, p.PatternNorm, toNullStringValue(p.Description), p.Scope, tagsJSON,
		toNullStringValue(p.ExecutionModeHint), capsJSON, actionsJSON, p.Priority,
		boolToInt(p.Enabled), p.UsageCount, toNullInt64(p.LastUsedAt), embeddingBlob(p.PatternEmbedding),
		p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return errors.NewDuplicate(p.Pattern, p.Scope)
		}
		return errors.NewInternal(err)
	}
	return nil
}

// isUniqueConstraintError checks if the error is a SQLite UNIQUE constraint violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// GetPattern retrieves a pattern by its ULID.
// If includeDeleted is false, soft-deleted patterns are excluded.
func GetPattern(ctx context.Context, db DBTX, id string, includeDeleted bool) (*pattern.CommandPattern, error) {
	query := `SELECT ` + patternColumns + ` FROM command_patterns WHERE id = ?`
	if !includeDeleted {
		query += " AND deleted_at IS NULL"
	}

	p, err := scanPattern(db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound("pattern", id)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return p, nil
}

// GetPatternByTemplate retrieves the live pattern registered for a normalized
// template in a scope.
func GetPatternByTemplate(ctx context.Context, db DBTX, scope, patternNorm string) (*pattern.CommandPattern, error) {
	query := `SELECT ` + patternColumns + `
		FROM command_patterns
		WHERE scope = ? AND pattern_norm = ? AND deleted_at IS NULL`

	p, err := scanPattern(db.QueryRowContext(ctx, query, scope, patternNorm))
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound("pattern", patternNorm)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return p, nil
}

// PatternExists reports whether a live pattern with the given ID exists.
func PatternExists(ctx context.Context, db DBTX, id string) (bool, error) {
	var exists int
	err := db.QueryRowContext(ctx,
		`SELECT 1 FROM command_patterns WHERE id = ? AND deleted_at IS NULL LIMIT 1`, id,
	).Scan(&exists)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, errors.NewInternal(err)
	}
	return true, nil
}

// PatternFilter narrows ListPatterns.
type PatternFilter struct {
	Scope           *string
	IncludeDisabled bool
	IncludeDeleted  bool
	Limit           int
	Offset          int
}

// ListPatterns returns one page of patterns ordered by scope, priority and age,
// plus the total number of rows matching the filter.
func ListPatterns(ctx context.Context, db DBTX, f PatternFilter) ([]*pattern.CommandPattern, int, error) {
	var (
		where []string
		args  []any
	)
	if !f.IncludeDeleted {
		where = append(where, "deleted_at IS NULL")
	}
	if !f.IncludeDisabled {
		where = append(where, "enabled = 1")
	}
	if f.Scope != nil {
		where = append(where, "scope = ?")
		args = append(args, *f.Scope)
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM command_patterns`+clause, args...).Scan(&total); err != nil {
		return nil, 0, errors.NewInternal(err)
	}

	query := `SELECT ` + patternColumns + ` FROM command_patterns` + clause +
		` ORDER BY scope ASC, priority ASC, id ASC LIMIT ? OFFSET ?`
	rows, err := db.QueryContext(ctx, query, append(args, f.Limit, f.Offset)...)
	if err != nil {
		return nil, 0, errors.NewInternal(err)
	}
	defer rows.Close()

	patterns, err := scanPatterns(rows)
	if err != nil {
		return nil, 0, err
	}
	return patterns, total, nil
}

// ListEnabledPatterns returns every live, enabled pattern. It backs the
// registry snapshot the resolver reads from.
func ListEnabledPatterns(ctx context.Context, db DBTX) ([]*pattern.CommandPattern, error) {
	query := `SELECT ` + patternColumns + `
		FROM command_patterns
		WHERE enabled = 1 AND deleted_at IS NULL
		ORDER BY priority ASC, id ASC`

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()
	return scanPatterns(rows)
}

// UpdatePattern rewrites the mutable fields of a live pattern and sets updated_at.
// The template and scope never change.
func UpdatePattern(ctx context.Context, db DBTX, p *pattern.CommandPattern) error {
	tagsJSON, err := toNullJSON(p.ContextTags, len(p.ContextTags) > 0)
	if err != nil {
		return errors.NewInternal(err)
	}
	capsJSON, err := toNullJSON(p.RequiredCapabilities, len(p.RequiredCapabilities) > 0)
	if err != nil {
		return errors.NewInternal(err)
	}
	actionsJSON, err := toNullJSON(p.Actions, len(p.Actions) > 0)
	if err != nil {
		return errors.NewInternal(err)
	}

	now := time.Now().Unix()
	query := `
		UPDATE command_patterns
		SET description = ?, context_tags_json = ?, execution_mode_hint = ?,
			required_capabilities_json = ?, actions_json = ?, priority = ?,
			enabled = ?, pattern_embedding = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`
	result, err := db.ExecContext(ctx, query,
		toNullStringValue(p.Description), tagsJSON, toNullStringValue(p.ExecutionModeHint),
		capsJSON, actionsJSON, p.Priority,
		boolToInt(p.Enabled), embeddingBlob(p.PatternEmbedding), now,
		p.ID,
	)
	if err := requireRow(result, err, p.ID); err != nil {
		return err
	}
	p.UpdatedAt = now
	return nil
}

// SetEnabled enables or disables a live pattern.
func SetEnabled(ctx context.Context, db DBTX, id string, enabled bool) error {
	result, err := db.ExecContext(ctx,
		`UPDATE command_patterns SET enabled = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL`,
		boolToInt(enabled), time.Now().Unix(), id,
	)
	return requireRow(result, err, id)
}

// SetPriority changes the tie-break priority of a live pattern.
func SetPriority(ctx context.Context, db DBTX, id string, priority int) error {
	result, err := db.ExecContext(ctx,
		`UPDATE command_patterns SET priority = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL`,
		priority, time.Now().Unix(), id,
	)
	return requireRow(result, err, id)
}

// SoftDeletePattern marks a pattern as deleted. Its (pattern, scope) slot is
// freed; traces keep their copy of the template text.
func SoftDeletePattern(ctx context.Context, db DBTX, id string) error {
	result, err := db.ExecContext(ctx,
		`UPDATE command_patterns SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`,
		time.Now().Unix(), id,
	)
	return requireRow(result, err, id)
}

// PurgeDeletedPatterns permanently removes soft-deleted patterns, optionally
// only those deleted more than olderThanDays ago.
func PurgeDeletedPatterns(ctx context.Context, db DBTX, olderThanDays *int) (int, error) {
	query := `DELETE FROM command_patterns WHERE deleted_at IS NOT NULL`
	var args []any
	if olderThanDays != nil {
		cutoff := time.Now().Add(-time.Duration(*olderThanDays) * 24 * time.Hour).Unix()
		query += " AND deleted_at < ?"
		args = append(args, cutoff)
	}

	result, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	return int(n), nil
}

// IncrementUsage atomically bumps usage_count and stamps last_used_at. A
// pattern that is gone yields STALE_REFERENCE.
func IncrementUsage(ctx context.Context, db DBTX, id string, at int64) error {
	result, err := db.ExecContext(ctx, `
		UPDATE command_patterns
		SET usage_count = usage_count + 1, last_used_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`, at, id)
	if err != nil {
		return errors.NewInternal(err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return errors.NewInternal(err)
	}
	if n == 0 {
		return errors.NewStaleReference(id)
	}
	return nil
}

// requireRow converts an Exec result into NOT_FOUND when no row was touched.
func requireRow(result sql.Result, err error, id string) error {
	if err != nil {
		return errors.NewInternal(err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return errors.NewInternal(err)
	}
	if n == 0 {
		return errors.NewNotFound("pattern", id)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

// scanPattern scans a single row into a CommandPattern.
func scanPattern(row rowScanner) (*pattern.CommandPattern, error) {
	var (
		p           pattern.CommandPattern
		description sql.NullString
		tagsJSON    sql.NullString
		hint        sql.NullString
		capsJSON    sql.NullString
		actionsJSON sql.NullString
		enabled     int
		lastUsedAt  sql.NullInt64
		embedding   []byte
		deletedAt   sql.NullInt64
	)

	err := row.Scan(
		&p.ID, &p.Pattern, &p.PatternNorm, &description, &p.Scope, &tagsJSON,
		&hint, &capsJSON, &actionsJSON, &p.Priority,
		&enabled, &p.UsageCount, &lastUsedAt, &embedding,
		&p.CreatedAt, &p.UpdatedAt, &deletedAt,
	)
	if err != nil {
		return nil, err
	}

	p.Description = description.String
	p.ExecutionModeHint = hint.String
	p.Enabled = enabled != 0
	if lastUsedAt.Valid {
		p.LastUsedAt = &lastUsedAt.Int64
	}
	if deletedAt.Valid {
		p.DeletedAt = &deletedAt.Int64
	}

	if err := fromNullJSON(tagsJSON, &p.ContextTags); err != nil {
		return nil, err
	}
	if err := fromNullJSON(capsJSON, &p.RequiredCapabilities); err != nil {
		return nil, err
	}
	var actions []chain.Step
	if err := fromNullJSON(actionsJSON, &actions); err != nil {
		return nil, err
	}
	p.Actions = actions

	if p.PatternEmbedding, err = vector.Decode(embedding); err != nil {
		return nil, err
	}
	return &p, nil
}

func scanPatterns(rows *sql.Rows) ([]*pattern.CommandPattern, error) {
	var out []*pattern.CommandPattern
	for rows.Next() {
		p, err := scanPattern(rows)
		if err != nil {
			return nil, errors.NewInternal(err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return out, nil
}

// toNullJSON marshals v into a nullable JSON column.
func toNullJSON(v any, present bool) (sql.NullString, error) {
	if !present {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

// fromNullJSON unmarshals a nullable JSON column into dst.
func fromNullJSON(ns sql.NullString, dst any) error {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	return json.Unmarshal([]byte(ns.String), dst)
}

// toNullStringValue maps "" to NULL.
func toNullStringValue(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// toNullString converts a *string to sql.NullString.
func toNullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// fromNullString converts a sql.NullString to *string.
func fromNullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return &ns.String
}

func toNullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

// embeddingBlob encodes a vector, storing NULL when there is none.
func embeddingBlob(v []float32) any {
	if len(v) == 0 {
		return nil
	}
	return vector.Encode(v)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
