package web

import (
	"context"
	"encoding/json"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/strackan/cmdrouter/internal/chain"
	"github.com/strackan/cmdrouter/internal/config"
	"github.com/strackan/cmdrouter/internal/db"
	"github.com/strackan/cmdrouter/internal/metrics"
	"github.com/strackan/cmdrouter/internal/ops"
)

func stringPtr(s string) *string { return &s }

func setupTest(t *testing.T) *Handlers {
	t.Helper()
	database, err := db.Init(t.TempDir())
	if err != nil {
		t.Fatalf("db.Init: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	env := ops.NewEnv(database, config.DefaultConfig(), nil, metrics.New(), zap.NewNop())

	templateSub, err := fs.Sub(templateFS, "templates")
	if err != nil {
		t.Fatalf("template sub-FS: %v", err)
	}

	return &Handlers{
		env:      env,
		renderer: NewRenderer(templateSub, "test", zap.NewNop()),
	}
}

// serve routes a request through the full mux, middleware included.
func serve(t *testing.T, h *Handlers, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	staticSub, err := fs.Sub(staticFS, "static")
	if err != nil {
		t.Fatalf("static sub-FS: %v", err)
	}
	rec := httptest.NewRecorder()
	securityHeaders(h.routes(staticSub)).ServeHTTP(rec, req)
	return rec
}

// seedPattern registers a pattern and returns its ID.
func seedPattern(t *testing.T, h *Handlers, input ops.RegisterInput) string {
	t.Helper()
	out, err := ops.Register(context.Background(), h.env, input)
	if err != nil {
		t.Fatalf("seed pattern %q: %v", input.Pattern, err)
	}
	return out.ID
}

// seedTrace records a trace and returns its ID.
func seedTrace(t *testing.T, h *Handlers, input ops.RecordInput) string {
	t.Helper()
	out, err := ops.Record(context.Background(), h.env, input)
	if err != nil {
		t.Fatalf("seed trace %q: %v", input.InputRequest, err)
	}
	return out.ID
}

func jsonRequest(method, target string) *http.Request {
	req := httptest.NewRequest(method, target, nil)
	req.Header.Set("Accept", "application/json")
	return req
}

// --- Patterns ---

func TestHandlePatterns_Default(t *testing.T) {
	h := setupTest(t)
	seedPattern(t, h, ops.RegisterInput{Pattern: "schedule {title}", ContextTags: []string{"calendar"}})

	rec := serve(t, h, httptest.NewRequest("GET", "/patterns", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "schedule {title}") {
		t.Error("expected pattern text in response")
	}
	if !strings.Contains(body, "calendar") {
		t.Error("expected context tag in response")
	}
	if !strings.Contains(body, "<title>Patterns") {
		t.Error("expected page title 'Patterns' in response")
	}
}

func TestHandlePatterns_ScopeFilter(t *testing.T) {
	h := setupTest(t)
	seedPattern(t, h, ops.RegisterInput{Pattern: "alice only", Scope: "alice"})
	seedPattern(t, h, ops.RegisterInput{Pattern: "for everyone"})

	rec := serve(t, h, httptest.NewRequest("GET", "/patterns?scope=alice", nil))
	body := rec.Body.String()
	if !strings.Contains(body, "alice only") {
		t.Error("expected 'alice only' in filtered results")
	}
	if strings.Contains(body, "for everyone") {
		t.Error("did not expect universal pattern in filtered results")
	}
}

func TestHandlePatterns_DisabledHiddenByDefault(t *testing.T) {
	h := setupTest(t)
	seedPattern(t, h, ops.RegisterInput{Pattern: "dormant", Enabled: new(bool)})

	rec := serve(t, h, httptest.NewRequest("GET", "/patterns", nil))
	if !strings.Contains(rec.Body.String(), "No patterns found") {
		t.Error("expected empty state when only a disabled pattern exists")
	}

	rec = serve(t, h, httptest.NewRequest("GET", "/patterns?include_disabled=true", nil))
	if !strings.Contains(rec.Body.String(), "dormant") {
		t.Error("expected disabled pattern with include_disabled")
	}
}

func TestHandlePatterns_JSON(t *testing.T) {
	h := setupTest(t)
	seedPattern(t, h, ops.RegisterInput{Pattern: "my tasks"})

	rec := serve(t, h, jsonRequest("GET", "/patterns"))
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("Content-Type = %q", ct)
	}
	var out ops.ListOutput
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Pagination.Total != 1 || out.Items[0].Pattern != "my tasks" {
		t.Errorf("unexpected list output: %+v", out)
	}
}

func TestHandlePattern_Detail(t *testing.T) {
	h := setupTest(t)
	id := seedPattern(t, h, ops.RegisterInput{
		Pattern:     "ping {name} {message}",
		Description: "Send a **direct** message. <script>alert(1)</script>",
		Actions: []chain.Step{
			{Capability: "contacts.lookup", Params: map[string]any{"name": "{{name}}"}, OutputName: "person"},
			{Capability: "chat.send", Params: map[string]any{"to": "{{person.id}}"}, Condition: "person"},
		},
	})
	seedTrace(t, h, ops.RecordInput{MatchedPatternID: &id, InputRequest: "ping Sam hi", Success: true})

	rec := serve(t, h, httptest.NewRequest("GET", "/patterns/"+id, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{"<strong>direct</strong>", "contacts.lookup", "chat.send", "if person", "ping Sam hi", "name, message"} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %q in detail page", want)
		}
	}
	if strings.Contains(body, "<script>alert") {
		t.Error("raw HTML in description must not be rendered")
	}
}

func TestHandlePattern_NotFound(t *testing.T) {
	h := setupTest(t)

	rec := serve(t, h, httptest.NewRequest("GET", "/patterns/nonexistent", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Error 404") {
		t.Error("expected error page")
	}

	rec = serve(t, h, jsonRequest("GET", "/patterns/nonexistent"))
	var payload map[string]map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload["error"]["code"] != "NOT_FOUND" {
		t.Errorf("code = %v, want NOT_FOUND", payload["error"]["code"])
	}
}

func TestHandleSetEnabled(t *testing.T) {
	h := setupTest(t)
	id := seedPattern(t, h, ops.RegisterInput{Pattern: "my tasks"})

	rec := serve(t, h, httptest.NewRequest("POST", "/patterns/"+id+"/disable", nil))
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/patterns/"+id {
		t.Errorf("Location = %q", loc)
	}

	res, err := ops.Resolve(context.Background(), h.env, ops.ResolveInput{Text: "my tasks"})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.Matched {
		t.Error("disabled pattern still resolves")
	}

	rec = serve(t, h, jsonRequest("POST", "/patterns/"+id+"/enable"))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	res, _ = ops.Resolve(context.Background(), h.env, ops.ResolveInput{Text: "my tasks"})
	if !res.Matched {
		t.Error("re-enabled pattern does not resolve")
	}
}

func TestHandleDelete(t *testing.T) {
	h := setupTest(t)
	id := seedPattern(t, h, ops.RegisterInput{Pattern: "my tasks"})

	rec := serve(t, h, jsonRequest("DELETE", "/patterns/"+id))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var out ops.DeleteOutput
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !out.Deleted || out.ID != id {
		t.Errorf("unexpected delete output: %+v", out)
	}

	rec = serve(t, h, jsonRequest("DELETE", "/patterns/"+id))
	if rec.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", rec.Code)
	}
}

func TestHandlePurge(t *testing.T) {
	h := setupTest(t)
	id := seedPattern(t, h, ops.RegisterInput{Pattern: "old"})
	if _, err := ops.Delete(context.Background(), h.env, ops.DeleteInput{ID: id}); err != nil {
		t.Fatalf("delete: %v", err)
	}

	form := func(v url.Values) *http.Request {
		req := httptest.NewRequest("POST", "/patterns/purge", strings.NewReader(v.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return req
	}

	rec := serve(t, h, form(url.Values{}))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("purge without confirm: status = %d, want 400", rec.Code)
	}

	rec = serve(t, h, form(url.Values{"confirm": {"true"}, "older_than_days": {"x"}}))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("purge with bad days: status = %d, want 400", rec.Code)
	}

	rec = serve(t, h, form(url.Values{"confirm": {"true"}}))
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303", rec.Code)
	}

	if _, err := ops.Get(context.Background(), h.env, ops.GetInput{ID: id, IncludeDeleted: true}); err == nil {
		t.Error("purged pattern still exists")
	}
}

// --- Resolve ---

func TestHandleResolve(t *testing.T) {
	h := setupTest(t)
	seedPattern(t, h, ops.RegisterInput{
		Pattern: "schedule {title}",
		Actions: []chain.Step{{Capability: "calendar.create", Params: map[string]any{"title": "{{title}}"}}},
	})

	rec := serve(t, h, httptest.NewRequest("GET", "/resolve", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	rec = serve(t, h, httptest.NewRequest("GET", "/resolve?q=schedule+budget+review", nil))
	body := rec.Body.String()
	for _, want := range []string{"schedule {title}", "exact", "budget review", "calendar.create"} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %q in resolve page", want)
		}
	}

	rec = serve(t, h, httptest.NewRequest("GET", "/resolve?q=launch+the+rocket", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("no match status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "know how to do that yet") {
		t.Error("expected the no-match message")
	}
}

// --- Traces ---

func TestHandleTraces_OutcomeFilter(t *testing.T) {
	h := setupTest(t)
	seedTrace(t, h, ops.RecordInput{InputRequest: "worked fine", Success: true})
	seedTrace(t, h, ops.RecordInput{InputRequest: "blew up", Success: false, ErrorMessage: "boom"})

	rec := serve(t, h, httptest.NewRequest("GET", "/traces", nil))
	body := rec.Body.String()
	if !strings.Contains(body, "worked fine") || !strings.Contains(body, "blew up") {
		t.Error("expected both traces in unfiltered list")
	}

	rec = serve(t, h, httptest.NewRequest("GET", "/traces?outcome=failure", nil))
	body = rec.Body.String()
	if strings.Contains(body, "worked fine") || !strings.Contains(body, "blew up") {
		t.Error("outcome=failure should list only the failed trace")
	}
}

func TestHandleTrace_StalePattern(t *testing.T) {
	h := setupTest(t)
	ctx := context.Background()
	id := seedPattern(t, h, ops.RegisterInput{Pattern: "weekly report"})
	traceID := seedTrace(t, h, ops.RecordInput{
		MatchedPatternID: &id,
		InputRequest:     "weekly report",
		ResultSummary:    "Sent to *3* people",
		Success:          true,
		Steps:            []chain.StepTrace{{Index: 0, Capability: "report.send", DurationMs: 4}},
	})
	if _, err := ops.Delete(ctx, h.env, ops.DeleteInput{ID: id}); err != nil {
		t.Fatalf("delete: %v", err)
	}

	rec := serve(t, h, httptest.NewRequest("GET", "/traces/"+traceID, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{"no longer registered", "<em>3</em>", "report.send"} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %q in trace page", want)
		}
	}
}

func TestHandleRecall(t *testing.T) {
	h := setupTest(t)
	seedTrace(t, h, ops.RecordInput{InputRequest: "ping Sam about the deck", Success: true, ReferencedEntities: []string{"person:sam"}})
	seedTrace(t, h, ops.RecordInput{InputRequest: "schedule review", Success: true})

	rec := serve(t, h, httptest.NewRequest("GET", "/traces/search", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	rec = serve(t, h, httptest.NewRequest("GET", "/traces/search?q=deck", nil))
	body := rec.Body.String()
	if !strings.Contains(body, "ping Sam about the deck") || strings.Contains(body, "schedule review") {
		t.Error("textual search should return only the deck trace")
	}

	rec = serve(t, h, jsonRequest("GET", "/traces/search?mode=recent&entities=person:sam"))
	var out ops.RecallOutput
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out.Items) != 1 {
		t.Errorf("entity recall returned %d items, want 1", len(out.Items))
	}

	rec = serve(t, h, httptest.NewRequest("GET", "/traces/search?mode=fuzzy", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad mode status = %d, want 400", rec.Code)
	}
}

// --- Server plumbing ---

func TestMetricsEndpoint(t *testing.T) {
	h := setupTest(t)
	if _, err := ops.Resolve(context.Background(), h.env, ops.ResolveInput{Text: "anything"}); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	rec := serve(t, h, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "cmdrouter_resolutions_total") {
		t.Error("expected resolution counter in metrics output")
	}
}

func TestSecurityHeaders(t *testing.T) {
	h := setupTest(t)
	rec := serve(t, h, httptest.NewRequest("GET", "/", nil))
	if rec.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302", rec.Code)
	}
	for _, header := range []string{"Content-Security-Policy", "X-Content-Type-Options", "X-Frame-Options"} {
		if rec.Header().Get(header) == "" {
			t.Errorf("missing %s header", header)
		}
	}
}

func TestStaticFiles(t *testing.T) {
	h := setupTest(t)
	for _, path := range []string{"/static/style.css", "/static/app.js"} {
		rec := serve(t, h, httptest.NewRequest("GET", path, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("%s status = %d, want 200", path, rec.Code)
		}
	}
}

// --- Helpers ---

func TestSplitList(t *testing.T) {
	got := splitList(" person:sam, ,event:1,")
	if len(got) != 2 || got[0] != "person:sam" || got[1] != "event:1" {
		t.Errorf("splitList = %v", got)
	}
	if splitList("") != nil {
		t.Error("splitList(\"\") should be nil")
	}
}

func TestFormatHelpers(t *testing.T) {
	if got := formatTime(0); got != "1970-01-01 00:00" {
		t.Errorf("formatTime(0) = %q", got)
	}
	if got := percent(0.756); got != "76%" {
		t.Errorf("percent(0.756) = %q", got)
	}
	if got := deref(stringPtr("x")); got != "x" {
		t.Errorf("deref = %v", got)
	}
	var nilPtr *int64
	if hasValue(nilPtr) {
		t.Error("hasValue(nil pointer) = true")
	}
	if got := deref(nilPtr); got != int64(0) {
		t.Errorf("deref(nil *int64) = %v", got)
	}
}
