package mcp

import (
	"context"
	"encoding/json"
	stderrors "errors"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/strackan/cmdrouter/internal/chain"
	"github.com/strackan/cmdrouter/internal/errors"
	"github.com/strackan/cmdrouter/internal/ops"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	env *ops.Env
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(env *ops.Env) *Handlers {
	return &Handlers{env: env}
}

// Request types for each tool

// RegisterRequest represents the arguments for pattern_register.
type RegisterRequest struct {
	Pattern              string       `json:"pattern"`
	Description          string       `json:"description,omitempty"`
	Scope                string       `json:"scope,omitempty"`
	ContextTags          []string     `json:"context_tags,omitempty"`
	ExecutionModeHint    string       `json:"execution_mode_hint,omitempty"`
	RequiredCapabilities []string     `json:"required_capabilities,omitempty"`
	Actions              []chain.Step `json:"actions,omitempty"`
	Priority             *int         `json:"priority,omitempty"`
	Enabled              *bool        `json:"enabled,omitempty"`
	Embedding            []float32    `json:"embedding,omitempty"`
}

// GetRequest represents the arguments for pattern_get.
type GetRequest struct {
	ID             string `json:"id"`
	IncludeDeleted bool   `json:"include_deleted,omitempty"`
}

// ListRequest represents the arguments for pattern_list.
type ListRequest struct {
	Scope           *string `json:"scope,omitempty"`
	IncludeDisabled bool    `json:"include_disabled,omitempty"`
	IncludeDeleted  bool    `json:"include_deleted,omitempty"`
	Limit           int     `json:"limit,omitempty"`
	Offset          int     `json:"offset,omitempty"`
}

// UpdateRequest represents the arguments for pattern_update.
type UpdateRequest struct {
	ID                   string        `json:"id"`
	Description          *string       `json:"description,omitempty"`
	ContextTags          *[]string     `json:"context_tags,omitempty"`
	ExecutionModeHint    *string       `json:"execution_mode_hint,omitempty"`
	RequiredCapabilities *[]string     `json:"required_capabilities,omitempty"`
	Actions              *[]chain.Step `json:"actions,omitempty"`
	Priority             *int          `json:"priority,omitempty"`
	Enabled              *bool         `json:"enabled,omitempty"`
	Embedding            []float32     `json:"embedding,omitempty"`
	Reembed              bool          `json:"reembed,omitempty"`
}

// IDRequest represents the arguments for tools addressing one record by ID.
type IDRequest struct {
	ID string `json:"id"`
}

// PriorityRequest represents the arguments for pattern_priority.
type PriorityRequest struct {
	ID       string `json:"id"`
	Priority *int   `json:"priority"`
}

// PurgeRequest represents the arguments for pattern_purge.
type PurgeRequest struct {
	OlderThanDays *int `json:"older_than_days,omitempty"`
}

// ImportRequest represents the arguments for pattern_import.
type ImportRequest struct {
	Path string `json:"path"`
	Mode string `json:"mode,omitempty"`
}

// ExportRequest represents the arguments for pattern_export.
type ExportRequest struct {
	Path  string  `json:"path,omitempty"`
	Scope *string `json:"scope,omitempty"`
}

// ResolveRequest represents the arguments for router_resolve.
type ResolveRequest struct {
	Text        string    `json:"text"`
	Scope       string    `json:"scope,omitempty"`
	ContextTags []string  `json:"context_tags,omitempty"`
	Embedding   []float32 `json:"embedding,omitempty"`
}

// RecordRequest represents the arguments for trace_record.
type RecordRequest struct {
	MatchedPatternID   *string           `json:"matched_pattern_id,omitempty"`
	PatternText        string            `json:"pattern_text,omitempty"`
	InputRequest       string            `json:"input_request"`
	ExtractedVariables map[string]string `json:"extracted_variables,omitempty"`
	MatchType          string            `json:"match_type,omitempty"`
	Steps              []chain.StepTrace `json:"steps,omitempty"`
	ResultSummary      string            `json:"result_summary,omitempty"`
	Success            bool              `json:"success"`
	ErrorMessage       string            `json:"error_message,omitempty"`
	ReferencedEntities []string          `json:"referenced_entities,omitempty"`
	Embedding          []float32         `json:"embedding,omitempty"`
	Scope              string            `json:"scope,omitempty"`
	ActorID            string            `json:"actor_id,omitempty"`
	DurationMs         int64             `json:"duration_ms,omitempty"`
	ResourceUnitsUsed  float64           `json:"resource_units_used,omitempty"`
}

// TraceListRequest represents the arguments for trace_list.
type TraceListRequest struct {
	PatternID *string `json:"pattern_id,omitempty"`
	Scope     *string `json:"scope,omitempty"`
	Success   *bool   `json:"success,omitempty"`
	Limit     int     `json:"limit,omitempty"`
	Offset    int     `json:"offset,omitempty"`
}

// RecallRequest represents the arguments for trace_recall.
type RecallRequest struct {
	Mode          string    `json:"mode,omitempty"`
	Scope         string    `json:"scope,omitempty"`
	Entities      []string  `json:"entities,omitempty"`
	Text          string    `json:"text,omitempty"`
	Embedding     []float32 `json:"embedding,omitempty"`
	MinSimilarity *float64  `json:"min_similarity,omitempty"`
	Limit         int       `json:"limit,omitempty"`
}

// Handler implementations

// HandleRegister handles the pattern_register tool call.
func (h *Handlers) HandleRegister(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[RegisterRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Register(ctx, h.env, ops.RegisterInput{
		Pattern:              input.Pattern,
		Description:          input.Description,
		Scope:                input.Scope,
		ContextTags:          input.ContextTags,
		ExecutionModeHint:    input.ExecutionModeHint,
		RequiredCapabilities: input.RequiredCapabilities,
		Actions:              input.Actions,
		Priority:             input.Priority,
		Enabled:              input.Enabled,
		Embedding:            input.Embedding,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleGet handles the pattern_get tool call.
func (h *Handlers) HandleGet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[GetRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Get(ctx, h.env, ops.GetInput{ID: input.ID, IncludeDeleted: input.IncludeDeleted})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleList handles the pattern_list tool call.
func (h *Handlers) HandleList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ListRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.List(ctx, h.env, ops.ListInput{
		Scope:           input.Scope,
		IncludeDisabled: input.IncludeDisabled,
		IncludeDeleted:  input.IncludeDeleted,
		Limit:           input.Limit,
		Offset:          input.Offset,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleUpdate handles the pattern_update tool call.
func (h *Handlers) HandleUpdate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[UpdateRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Update(ctx, h.env, ops.UpdateInput{
		ID:                   input.ID,
		Description:          input.Description,
		ContextTags:          input.ContextTags,
		ExecutionModeHint:    input.ExecutionModeHint,
		RequiredCapabilities: input.RequiredCapabilities,
		Actions:              input.Actions,
		Priority:             input.Priority,
		Enabled:              input.Enabled,
		Embedding:            input.Embedding,
		Reembed:              input.Reembed,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleEnable handles the pattern_enable tool call.
func (h *Handlers) HandleEnable(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return h.setEnabled(ctx, req, true)
}

// HandleDisable handles the pattern_disable tool call.
func (h *Handlers) HandleDisable(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return h.setEnabled(ctx, req, false)
}

func (h *Handlers) setEnabled(ctx context.Context, req mcp.CallToolRequest, enabled bool) (*mcp.CallToolResult, error) {
	input, err := decode[IDRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.SetEnabled(ctx, h.env, input.ID, enabled)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandlePriority handles the pattern_priority tool call.
func (h *Handlers) HandlePriority(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[PriorityRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if input.Priority == nil {
		return errorResult(errors.NewInvalidRequest("priority is required")), nil
	}

	result, err := ops.SetPriority(ctx, h.env, input.ID, *input.Priority)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleDelete handles the pattern_delete tool call.
func (h *Handlers) HandleDelete(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[IDRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Delete(ctx, h.env, ops.DeleteInput{ID: input.ID})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandlePurge handles the pattern_purge tool call.
func (h *Handlers) HandlePurge(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[PurgeRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Purge(ctx, h.env, ops.PurgeInput{OlderThanDays: input.OlderThanDays})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleImport handles the pattern_import tool call.
func (h *Handlers) HandleImport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ImportRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Import(ctx, h.env, ops.ImportInput{
		Path: input.Path,
		Mode: ops.ImportMode(input.Mode),
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleExport handles the pattern_export tool call.
func (h *Handlers) HandleExport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ExportRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Export(ctx, h.env, ops.ExportInput{Path: input.Path, Scope: input.Scope})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleResolve handles the router_resolve tool call. A request that matches
// nothing comes back as a normal result carrying the no-match message.
func (h *Handlers) HandleResolve(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ResolveRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Resolve(ctx, h.env, ops.ResolveInput{
		Text:        input.Text,
		Scope:       input.Scope,
		ContextTags: input.ContextTags,
		Embedding:   input.Embedding,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleRecord handles the trace_record tool call.
func (h *Handlers) HandleRecord(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[RecordRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Record(ctx, h.env, ops.RecordInput{
		MatchedPatternID:   input.MatchedPatternID,
		PatternText:        input.PatternText,
		InputRequest:       input.InputRequest,
		ExtractedVariables: input.ExtractedVariables,
		MatchType:          input.MatchType,
		Steps:              input.Steps,
		ResultSummary:      input.ResultSummary,
		Success:            input.Success,
		ErrorMessage:       input.ErrorMessage,
		ReferencedEntities: input.ReferencedEntities,
		Embedding:          input.Embedding,
		Scope:              input.Scope,
		ActorID:            input.ActorID,
		DurationMs:         input.DurationMs,
		ResourceUnitsUsed:  input.ResourceUnitsUsed,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleTraceGet handles the trace_get tool call.
func (h *Handlers) HandleTraceGet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[IDRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.GetTrace(ctx, h.env, input.ID)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleTraceList handles the trace_list tool call.
func (h *Handlers) HandleTraceList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[TraceListRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.ListTraces(ctx, h.env, ops.ListTracesInput{
		PatternID: input.PatternID,
		Scope:     input.Scope,
		Success:   input.Success,
		Limit:     input.Limit,
		Offset:    input.Offset,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleRecall handles the trace_recall tool call.
func (h *Handlers) HandleRecall(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[RecallRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Recall(ctx, h.env, ops.RecallInput{
		Mode:          input.Mode,
		Scope:         input.Scope,
		Entities:      input.Entities,
		Text:          input.Text,
		Embedding:     input.Embedding,
		MinSimilarity: input.MinSimilarity,
		Limit:         input.Limit,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// Result helpers

// errorResult creates an MCP error result from any error.
// Internal error details are never exposed: they carry file paths and SQL.
// A wrapped RouterError keeps its code and gains the wrapper's context in
// the message.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	var routerErr *errors.RouterError
	if stderrors.As(err, &routerErr) {
		msg := routerErr.Message
		if err != error(routerErr) && routerErr.Code != errors.ErrInternal {
			msg = err.Error()
		}
		errorObj := map[string]any{
			"code":    routerErr.Code,
			"message": msg,
			"status":  routerErr.Status,
		}
		if routerErr.Code != errors.ErrInternal && routerErr.Details != nil {
			errorObj["details"] = routerErr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    errors.ErrInternal,
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
