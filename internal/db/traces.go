package db

import (
	"context"
	"database/sql"
	"sort"
	"strings"

	"github.com/strackan/cmdrouter/internal/chain"
	"github.com/strackan/cmdrouter/internal/errors"
	"github.com/strackan/cmdrouter/internal/trace"
	"github.com/strackan/cmdrouter/internal/vector"
)

const traceColumns = `
	id, matched_pattern_id, pattern_text_copy, input_request, extracted_variables_json,
	match_type, steps_json, result_summary, success, error_message,
	referenced_entities_json, embedding, scope, actor_id, duration_ms,
	resource_units_used, created_at`

// InsertTrace appends an entry to the execution log. Entries are never updated.
func InsertTrace(ctx context.Context, db DBTX, e *trace.Entry) error {
	varsJSON, err := toNullJSON(e.ExtractedVariables, len(e.ExtractedVariables) > 0)
	if err != nil {
		return errors.NewInternal(err)
	}
	stepsJSON, err := toNullJSON(e.Steps, len(e.Steps) > 0)
	if err != nil {
		return errors.NewInternal(err)
	}
	entitiesJSON, err := toNullJSON(e.ReferencedEntities, len(e.ReferencedEntities) > 0)
	if err != nil {
		return errors.NewInternal(err)
	}

	query := `
		INSERT INTO execution_traces (` + traceColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = db.ExecContext(ctx, query,
		e.ID, toNullString(e.MatchedPatternID), toNullStringValue(e.PatternTextCopy), e.InputRequest, varsJSON,
		toNullStringValue(e.MatchType), stepsJSON, toNullStringValue(e.ResultSummary), boolToInt(e.Success), toNullStringValue(e.ErrorMessage),
		entitiesJSON, embeddingBlob(e.Embedding), e.Scope, toNullStringValue(e.ActorID), e.DurationMs,
		e.ResourceUnitsUsed, e.CreatedAt,
	)
	if err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// GetTrace retrieves a trace entry by its ULID.
func GetTrace(ctx context.Context, db DBTX, id string) (*trace.Entry, error) {
	query := `SELECT ` + traceColumns + ` FROM execution_traces WHERE id = ?`
	e, err := scanTrace(db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound("trace", id)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return e, nil
}

// TraceFilter narrows ListTraces. Unlike recall it can include failed attempts.
type TraceFilter struct {
	PatternID *string
	Scope     *string
	Success   *bool
	Limit     int
	Offset    int
}

// ListTraces returns one page of the log, newest first, plus the total count.
func ListTraces(ctx context.Context, db DBTX, f TraceFilter) ([]*trace.Entry, int, error) {
	var (
		where []string
		args  []any
	)
	if f.PatternID != nil {
		where = append(where, "matched_pattern_id = ?")
		args = append(args, *f.PatternID)
	}
	if f.Scope != nil {
		where = append(where, "scope = ?")
		args = append(args, *f.Scope)
	}
	if f.Success != nil {
		where = append(where, "success = ?")
		args = append(args, boolToInt(*f.Success))
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM execution_traces`+clause, args...).Scan(&total); err != nil {
		return nil, 0, errors.NewInternal(err)
	}

	query := `SELECT ` + traceColumns + ` FROM execution_traces` + clause +
		` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`
	entries, err := queryTraces(ctx, db, query, append(args, f.Limit, f.Offset)...)
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

// Recall searches successful entries visible to the filter's scope.
// Semantic mode ranks by cosine similarity; textual and recent modes return
// the newest entries first.
func Recall(ctx context.Context, db DBTX, mode trace.Mode, f trace.Filter) ([]trace.Scored, error) {
	where := []string{"success = 1"}
	var args []any

	if f.Scope != "" && f.Scope != f.Universal {
		where = append(where, "(scope = ? OR scope = ?)")
		args = append(args, f.Universal, f.Scope)
	} else {
		where = append(where, "scope = ?")
		args = append(args, f.Universal)
	}

	if len(f.Entities) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(f.Entities)), ",")
		where = append(where, `EXISTS (
			SELECT 1 FROM json_each(execution_traces.referenced_entities_json) je
			WHERE je.value IN (`+placeholders+`))`)
		for _, ent := range f.Entities {
			args = append(args, ent)
		}
	}

	if mode == trace.ModeSemantic {
		where = append(where, "embedding IS NOT NULL")
	}

	query := `SELECT ` + traceColumns + ` FROM execution_traces WHERE ` +
		strings.Join(where, " AND ") + ` ORDER BY created_at DESC, id DESC`
	if mode != trace.ModeSemantic && mode != trace.ModeTextual && f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	entries, err := queryTraces(ctx, db, query, args...)
	if err != nil {
		return nil, err
	}

	// SQLite lower() folds ASCII only, so substring matching happens here
	if mode == trace.ModeTextual {
		entries = matchText(entries, f.Text, f.Limit)
	}

	if mode != trace.ModeSemantic {
		out := make([]trace.Scored, len(entries))
		for i, e := range entries {
			out[i] = trace.Scored{Entry: e}
		}
		return out, nil
	}

	scored := make([]trace.Scored, 0, len(entries))
	for _, e := range entries {
		sim := vector.Cosine(f.Embedding, e.Embedding)
		if sim < f.MinSimilarity {
			continue
		}
		scored = append(scored, trace.Scored{Entry: e, Similarity: sim})
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Similarity > scored[j].Similarity
	})
	if f.Limit > 0 && len(scored) > f.Limit {
		scored = scored[:f.Limit]
	}
	return scored, nil
}

func queryTraces(ctx context.Context, db DBTX, query string, args ...any) ([]*trace.Entry, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	var out []*trace.Entry
	for rows.Next() {
		e, err := scanTrace(rows)
		if err != nil {
			return nil, errors.NewInternal(err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return out, nil
}

// scanTrace scans a single row into a trace Entry.
func scanTrace(row rowScanner) (*trace.Entry, error) {
	var (
		e            trace.Entry
		patternID    sql.NullString
		patternText  sql.NullString
		varsJSON     sql.NullString
		matchType    sql.NullString
		stepsJSON    sql.NullString
		summary      sql.NullString
		success      int
		errorMessage sql.NullString
		entitiesJSON sql.NullString
		embedding    []byte
		actorID      sql.NullString
	)

	err := row.Scan(
		&e.ID, &patternID, &patternText, &e.InputRequest, &varsJSON,
		&matchType, &stepsJSON, &summary, &success, &errorMessage,
		&entitiesJSON, &embedding, &e.Scope, &actorID, &e.DurationMs,
		&e.ResourceUnitsUsed, &e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	e.MatchedPatternID = fromNullString(patternID)
	e.PatternTextCopy = patternText.String
	e.MatchType = matchType.String
	e.ResultSummary = summary.String
	e.Success = success != 0
	e.ErrorMessage = errorMessage.String
	e.ActorID = actorID.String

	if err := fromNullJSON(varsJSON, &e.ExtractedVariables); err != nil {
		return nil, err
	}
	var steps []chain.StepTrace
	if err := fromNullJSON(stepsJSON, &steps); err != nil {
		return nil, err
	}
	e.Steps = steps
	if err := fromNullJSON(entitiesJSON, &e.ReferencedEntities); err != nil {
		return nil, err
	}
	if e.Embedding, err = vector.Decode(embedding); err != nil {
		return nil, err
	}
	return &e, nil
}

// matchText keeps entries whose request or summary contains text, ignoring
// case, up to limit (0 means no limit).
func matchText(entries []*trace.Entry, text string, limit int) []*trace.Entry {
	needle := strings.ToLower(text)
	kept := entries[:0]
	for _, e := range entries {
		if limit > 0 && len(kept) == limit {
			break
		}
		if strings.Contains(strings.ToLower(e.InputRequest), needle) ||
			strings.Contains(strings.ToLower(e.ResultSummary), needle) {
			kept = append(kept, e)
		}
	}
	return kept
}
