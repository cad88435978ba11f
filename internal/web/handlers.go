package web

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/strackan/cmdrouter/internal/errors"
	"github.com/strackan/cmdrouter/internal/ops"
)

// Handlers contains HTTP route handlers for the web viewer.
type Handlers struct {
	env      *ops.Env
	renderer *Renderer
}

// patternTraceLimit caps the recent executions shown on a pattern page.
const patternTraceLimit = 10

// HandlePatterns handles GET /patterns: list patterns, optionally in one scope.
func (h *Handlers) HandlePatterns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	input := ops.ListInput{
		Scope:           ptrString(q.Get("scope")),
		IncludeDisabled: parseBoolParam(r, "include_disabled"),
		IncludeDeleted:  parseBoolParam(r, "include_deleted"),
		Limit:           parseIntParam(r, "limit", ops.DefaultListLimit),
		Offset:          parseIntParam(r, "offset", 0),
	}

	result, err := ops.List(r.Context(), h.env, input)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, result)
		return
	}

	h.renderer.renderPage(w, "patterns", PatternsPageData{
		PageData:   h.renderer.page("Patterns", "patterns"),
		Items:      result.Items,
		Pagination: result.Pagination,
		Scope:      q.Get("scope"),
		Disabled:   input.IncludeDisabled,
		Deleted:    input.IncludeDeleted,
	})
}

// HandlePattern handles GET /patterns/{id}: one pattern with its chain and
// most recent executions.
func (h *Handlers) HandlePattern(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	p, err := ops.Get(r.Context(), h.env, ops.GetInput{
		ID:             id,
		IncludeDeleted: parseBoolParam(r, "include_deleted"),
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, p)
		return
	}

	traces, err := ops.ListTraces(r.Context(), h.env, ops.ListTracesInput{
		PatternID: &p.ID,
		Limit:     patternTraceLimit,
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	h.renderer.renderPage(w, "pattern", PatternPageData{
		PageData:    h.renderer.page(p.Pattern, "patterns"),
		Pattern:     p,
		Description: renderMarkdown(p.Description),
		Actions:     p.Actions,
		Traces:      traces.Items,
	})
}

// HandleSetEnabled returns the handler for POST /patterns/{id}/enable and
// POST /patterns/{id}/disable.
func (h *Handlers) HandleSetEnabled(enabled bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		result, err := ops.SetEnabled(r.Context(), h.env, id, enabled)
		if err != nil {
			h.renderer.renderError(w, r, err)
			return
		}

		if wantsJSON(r) {
			renderJSON(w, http.StatusOK, result)
			return
		}
		http.Redirect(w, r, "/patterns/"+result.ID, http.StatusSeeOther)
	}
}

// HandleDelete handles DELETE /patterns/{id}: soft-delete a pattern.
func (h *Handlers) HandleDelete(w http.ResponseWriter, r *http.Request) {
	result, err := ops.Delete(r.Context(), h.env, ops.DeleteInput{ID: r.PathValue("id")})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, result)
		return
	}
	http.Redirect(w, r, "/patterns", http.StatusSeeOther)
}

// HandlePurge handles POST /patterns/purge: permanently remove soft-deleted patterns.
func (h *Handlers) HandlePurge(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("invalid form data"))
		return
	}

	if r.FormValue("confirm") != "true" {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("confirm parameter must be \"true\""))
		return
	}

	var input ops.PurgeInput
	if days := r.FormValue("older_than_days"); days != "" {
		d, err := strconv.Atoi(days)
		if err != nil {
			h.renderer.renderError(w, r, errors.NewInvalidRequest("older_than_days must be an integer"))
			return
		}
		input.OlderThanDays = &d
	}

	result, err := ops.Purge(r.Context(), h.env, input)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, result)
		return
	}
	http.Redirect(w, r, "/patterns?include_deleted=true", http.StatusSeeOther)
}

// HandleResolve handles GET /resolve: try a request against the registry
// without executing or recording anything.
func (h *Handlers) HandleResolve(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	data := ResolvePageData{
		PageData: h.renderer.page("Resolve", "resolve"),
		Query:    q.Get("q"),
		Scope:    q.Get("scope"),
		Tags:     q.Get("tags"),
		HasQuery: strings.TrimSpace(q.Get("q")) != "",
	}

	if data.HasQuery {
		result, err := ops.Resolve(r.Context(), h.env, ops.ResolveInput{
			Text:        data.Query,
			Scope:       data.Scope,
			ContextTags: splitList(data.Tags),
		})
		if err != nil {
			h.renderer.renderError(w, r, err)
			return
		}
		if wantsJSON(r) {
			renderJSON(w, http.StatusOK, result)
			return
		}
		data.Result = result
	}

	h.renderer.renderPage(w, "resolve", data)
}

// HandleTraces handles GET /traces: the audit log, newest first.
func (h *Handlers) HandleTraces(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	input := ops.ListTracesInput{
		PatternID: ptrString(q.Get("pattern_id")),
		Scope:     ptrString(q.Get("scope")),
		Limit:     parseIntParam(r, "limit", ops.DefaultListLimit),
		Offset:    parseIntParam(r, "offset", 0),
	}
	outcome := q.Get("outcome")
	switch outcome {
	case "success":
		input.Success = boolPtr(true)
	case "failure":
		input.Success = boolPtr(false)
	default:
		outcome = ""
	}

	result, err := ops.ListTraces(r.Context(), h.env, input)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, result)
		return
	}

	h.renderer.renderPage(w, "traces", TracesPageData{
		PageData:   h.renderer.page("Traces", "traces"),
		Items:      result.Items,
		Pagination: result.Pagination,
		Scope:      q.Get("scope"),
		PatternID:  q.Get("pattern_id"),
		Outcome:    outcome,
	})
}

// HandleTrace handles GET /traces/{id}: one trace entry with its steps.
func (h *Handlers) HandleTrace(w http.ResponseWriter, r *http.Request) {
	tr, err := ops.GetTrace(r.Context(), h.env, r.PathValue("id"))
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, tr)
		return
	}

	h.renderer.renderPage(w, "trace", TracePageData{
		PageData: h.renderer.page(tr.InputRequest, "traces"),
		Trace:    tr,
		Summary:  renderMarkdown(tr.ResultSummary),
	})
}

// HandleRecall handles GET /traces/search: recall over successful executions.
func (h *Handlers) HandleRecall(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	data := RecallPageData{
		PageData: h.renderer.page("Search", "search"),
		Query:    q.Get("q"),
		Mode:     q.Get("mode"),
		Scope:    q.Get("scope"),
		Entities: q.Get("entities"),
	}
	if data.Mode == "" && data.Query != "" {
		data.Mode = "textual"
	}
	data.HasQuery = data.Query != "" || data.Entities != "" || data.Mode != ""

	if !data.HasQuery {
		h.renderer.renderPage(w, "search", data)
		return
	}

	result, err := ops.Recall(r.Context(), h.env, ops.RecallInput{
		Mode:     data.Mode,
		Scope:    data.Scope,
		Entities: splitList(data.Entities),
		Text:     data.Query,
		Limit:    parseIntParam(r, "limit", 0),
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, result)
		return
	}

	data.Mode = string(result.Mode)
	data.Items = result.Items
	h.renderer.renderPage(w, "search", data)
}

// parseIntParam parses an integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	s := r.URL.Query().Get(name)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}

// parseBoolParam parses a boolean query parameter.
func parseBoolParam(r *http.Request, name string) bool {
	s := r.URL.Query().Get(name)
	return s == "true" || s == "1"
}

// ptrString returns a pointer to s if non-empty, nil otherwise.
func ptrString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func boolPtr(b bool) *bool { return &b }

// splitList splits a comma-separated form value, dropping empty items.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
