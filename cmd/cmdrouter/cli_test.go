package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/strackan/cmdrouter/internal/config"
	"github.com/strackan/cmdrouter/internal/db"
	"github.com/strackan/cmdrouter/internal/errors"
	"github.com/strackan/cmdrouter/internal/metrics"
	"github.com/strackan/cmdrouter/internal/ops"
)

// setupTestEnv creates a router environment over a temporary database.
func setupTestEnv(t *testing.T) *ops.Env {
	t.Helper()
	tmpDir := t.TempDir()
	database, err := db.Init(tmpDir)
	if err != nil {
		t.Fatalf("failed to init test db: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	cfg := config.DefaultConfig()
	cfg.AllowUnsafePaths = true
	return ops.NewEnv(database, cfg, nil, metrics.New(), zap.NewNop())
}

// pingActions is a two-step chain for "ping {name} {message}".
const pingActions = `
- capability: contacts.lookup
  params:
    query: "{{name}}"
  output_name: person
- capability: messaging.send
  params:
    to: "{{person.id}}"
    body: "{{message}}"
`

// runCLI runs the app with stdin as piped input and returns what it wrote to stdout.
func runCLI(t *testing.T, env *ops.Env, stdin string, args ...string) (string, error) {
	t.Helper()

	oldStdin := os.Stdin
	stdinR, stdinW, err := os.Pipe()
	if err != nil {
		t.Fatalf("failed to create stdin pipe: %v", err)
	}
	os.Stdin = stdinR
	go func() {
		_, _ = stdinW.WriteString(stdin)
		stdinW.Close()
	}()
	defer func() {
		os.Stdin = oldStdin
		stdinR.Close()
	}()

	oldStdout := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("failed to create stdout pipe: %v", err)
	}
	os.Stdout = w

	done := make(chan string)
	go func() {
		var buf bytes.Buffer
		_, _ = buf.ReadFrom(r)
		done <- buf.String()
	}()

	app := newCLIApp(env)
	runErr := app.Run(append([]string{"cmdrouter"}, args...))

	w.Close()
	os.Stdout = oldStdout
	return <-done, runErr
}

// registerPing registers the ping pattern through the ops layer.
func registerPing(t *testing.T, env *ops.Env) string {
	t.Helper()
	actions, err := parseActions([]byte(pingActions))
	if err != nil {
		t.Fatalf("failed to parse actions: %v", err)
	}
	out, err := ops.Register(context.Background(), env, ops.RegisterInput{
		Pattern:     "ping {name} {message}",
		Description: "Send someone a quick message",
		Actions:     actions,
	})
	if err != nil {
		t.Fatalf("failed to register pattern: %v", err)
	}
	return out.ID
}

// TestParseTags tests the parseTags helper function.
func TestParseTags(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{
			name:     "empty string",
			input:    "",
			expected: nil,
		},
		{
			name:     "single tag",
			input:    "foo",
			expected: []string{"foo"},
		},
		{
			name:     "tags with spaces",
			input:    " foo , bar , baz ",
			expected: []string{"foo", "bar", "baz"},
		},
		{
			name:     "empty tags filtered",
			input:    "foo,,bar,",
			expected: []string{"foo", "bar"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := parseTags(tt.input)
			if len(result) != len(tt.expected) {
				t.Fatalf("expected %d tags, got %d", len(tt.expected), len(result))
			}
			for i, tag := range result {
				if tag != tt.expected[i] {
					t.Errorf("expected tag[%d]=%q, got %q", i, tt.expected[i], tag)
				}
			}
		})
	}
}

// TestParseDuration tests the parseDuration helper function.
func TestParseDuration(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		expected    int
		expectError bool
	}{
		{name: "valid days", input: "7d", expected: 7},
		{name: "zero days", input: "0d", expected: 0},
		{name: "missing suffix", input: "7", expectError: true},
		{name: "hours not supported", input: "7h", expectError: true},
		{name: "negative", input: "-1d", expectError: true},
		{name: "not a number", input: "xd", expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := parseDuration(tt.input)
			if tt.expectError {
				if err == nil {
					t.Errorf("expected error for %q", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result != tt.expected {
				t.Errorf("expected %d, got %d", tt.expected, result)
			}
		})
	}
}

// TestParseActions tests action chain decoding from YAML and JSON.
func TestParseActions(t *testing.T) {
	t.Run("yaml", func(t *testing.T) {
		steps, err := parseActions([]byte(pingActions))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(steps) != 2 {
			t.Fatalf("expected 2 steps, got %d", len(steps))
		}
		if steps[0].OutputName != "person" {
			t.Errorf("expected output_name=person, got %q", steps[0].OutputName)
		}
		if steps[1].Params["body"] != "{{message}}" {
			t.Errorf("expected body token, got %v", steps[1].Params["body"])
		}
	})

	t.Run("json", func(t *testing.T) {
		steps, err := parseActions([]byte(`[{"capability": "calendar.list", "condition": "!quiet"}]`))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(steps) != 1 || steps[0].Capability != "calendar.list" || steps[0].Condition != "!quiet" {
			t.Errorf("unexpected steps: %+v", steps)
		}
	})

	t.Run("empty", func(t *testing.T) {
		steps, err := parseActions([]byte("  \n"))
		if err != nil || steps != nil {
			t.Errorf("expected nil steps and no error, got %v, %v", steps, err)
		}
	})

	t.Run("malformed", func(t *testing.T) {
		_, err := parseActions([]byte("capability: [unterminated"))
		if !errors.Is(err, errors.ErrInvalidRequest) {
			t.Errorf("expected INVALID_REQUEST, got %v", err)
		}
	})
}

// TestCLIRegister tests the register command.
func TestCLIRegister(t *testing.T) {
	env := setupTestEnv(t)

	t.Run("actions from stdin", func(t *testing.T) {
		out, err := runCLI(t, env, pingActions, "register", "--description=Quick message", "ping", "{name}", "{message}")
		if err != nil {
			t.Fatalf("register command failed: %v", err)
		}

		var output ops.RegisterOutput
		if err := json.Unmarshal([]byte(out), &output); err != nil {
			t.Fatalf("failed to parse output: %v\nOutput: %s", err, out)
		}
		if output.ID == "" {
			t.Error("expected non-empty ID")
		}
		if output.Pattern != "ping {name} {message}" {
			t.Errorf("expected joined pattern, got %q", output.Pattern)
		}
		if len(output.RequiredCapabilities) != 2 {
			t.Errorf("expected derived capabilities, got %v", output.RequiredCapabilities)
		}
	})

	t.Run("actions from file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "agenda.yaml")
		if err := os.WriteFile(path, []byte("- capability: calendar.list\n"), 0o600); err != nil {
			t.Fatalf("failed to write actions file: %v", err)
		}

		out, err := runCLI(t, env, "", "register", "--actions="+path, "--scope=alice", "--priority=5", "what's on my plate")
		if err != nil {
			t.Fatalf("register command failed: %v", err)
		}

		var output ops.RegisterOutput
		if err := json.Unmarshal([]byte(out), &output); err != nil {
			t.Fatalf("failed to parse output: %v", err)
		}
		if output.Scope != "alice" {
			t.Errorf("expected scope=alice, got %q", output.Scope)
		}
	})

	t.Run("duplicate returns error", func(t *testing.T) {
		_, err := runCLI(t, env, pingActions, "register", "ping {name} {message}")
		if err == nil {
			t.Fatal("expected error, got nil")
		}
		if !strings.Contains(err.Error(), "[DUPLICATE]") {
			t.Errorf("expected DUPLICATE, got %v", err)
		}
	})

	t.Run("missing pattern returns error", func(t *testing.T) {
		_, err := runCLI(t, env, "", "register")
		if err == nil {
			t.Error("expected error, got nil")
		}
	})

	t.Run("missing actions file returns error", func(t *testing.T) {
		_, err := runCLI(t, env, "", "register", "--actions=/nonexistent/actions.yaml", "hello")
		if err == nil || !strings.Contains(err.Error(), "[FILE_NOT_FOUND]") {
			t.Errorf("expected FILE_NOT_FOUND, got %v", err)
		}
	})
}

// TestCLIResolve tests the resolve command.
func TestCLIResolve(t *testing.T) {
	env := setupTestEnv(t)
	id := registerPing(t, env)

	t.Run("exact match binds plan", func(t *testing.T) {
		out, err := runCLI(t, env, "", "resolve", "hey", "ping", "Sam", "about", "the", "launch")
		if err != nil {
			t.Fatalf("resolve command failed: %v", err)
		}

		var output ops.ResolveOutput
		if err := json.Unmarshal([]byte(out), &output); err != nil {
			t.Fatalf("failed to parse output: %v", err)
		}
		if !output.Matched || len(output.Matches) == 0 {
			t.Fatalf("expected a match, got %+v", output)
		}
		best := output.Matches[0]
		if best.PatternID != id {
			t.Errorf("expected pattern %s, got %s", id, best.PatternID)
		}
		if best.Variables["name"] != "Sam" || best.Variables["message"] != "about the launch" {
			t.Errorf("unexpected variables: %v", best.Variables)
		}
		if len(best.Plan) != 2 || best.Plan[1].Params["body"] != "about the launch" {
			t.Errorf("unexpected plan: %+v", best.Plan)
		}
	})

	t.Run("no match is a normal result", func(t *testing.T) {
		out, err := runCLI(t, env, "", "resolve", "zzyzx quux")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		var output ops.ResolveOutput
		if err := json.Unmarshal([]byte(out), &output); err != nil {
			t.Fatalf("failed to parse output: %v", err)
		}
		if output.Matched {
			t.Error("expected matched=false")
		}
		if output.Message != errors.NoMatchMessage {
			t.Errorf("expected %q, got %q", errors.NoMatchMessage, output.Message)
		}
	})

	t.Run("empty request returns error", func(t *testing.T) {
		_, err := runCLI(t, env, "", "resolve")
		if err == nil || !strings.Contains(err.Error(), "[INVALID_REQUEST]") {
			t.Errorf("expected INVALID_REQUEST, got %v", err)
		}
	})
}

// TestCLIMaintenance tests get, list, update, enable, disable, priority, delete and purge.
func TestCLIMaintenance(t *testing.T) {
	env := setupTestEnv(t)
	id := registerPing(t, env)

	t.Run("get", func(t *testing.T) {
		out, err := runCLI(t, env, "", "get", id)
		if err != nil {
			t.Fatalf("get command failed: %v", err)
		}
		var output ops.PatternOutput
		if err := json.Unmarshal([]byte(out), &output); err != nil {
			t.Fatalf("failed to parse output: %v", err)
		}
		if output.CommandPattern == nil || output.ID != id {
			t.Fatalf("expected pattern %s, got %s", id, out)
		}
		if len(output.Actions) != 2 {
			t.Errorf("expected 2 actions, got %d", len(output.Actions))
		}
	})

	t.Run("update description and priority", func(t *testing.T) {
		_, err := runCLI(t, env, "", "update", "--description=Nudge someone", "--priority=7", id)
		if err != nil {
			t.Fatalf("update command failed: %v", err)
		}
		p, err := ops.Get(context.Background(), env, ops.GetInput{ID: id})
		if err != nil {
			t.Fatalf("get failed: %v", err)
		}
		if p.Description != "Nudge someone" || p.Priority != 7 {
			t.Errorf("expected updated fields, got description=%q priority=%d", p.Description, p.Priority)
		}
	})

	t.Run("priority", func(t *testing.T) {
		out, err := runCLI(t, env, "", "priority", id, "3")
		if err != nil {
			t.Fatalf("priority command failed: %v", err)
		}
		var output ops.StateOutput
		if err := json.Unmarshal([]byte(out), &output); err != nil {
			t.Fatalf("failed to parse output: %v", err)
		}
		if output.Priority == nil || *output.Priority != 3 {
			t.Errorf("expected priority=3, got %v", output.Priority)
		}

		if _, err := runCLI(t, env, "", "priority", id, "high"); err == nil {
			t.Error("expected error for non-integer priority")
		}
	})

	t.Run("disable hides from list and resolve", func(t *testing.T) {
		if _, err := runCLI(t, env, "", "disable", id); err != nil {
			t.Fatalf("disable command failed: %v", err)
		}

		out, err := runCLI(t, env, "", "list")
		if err != nil {
			t.Fatalf("list command failed: %v", err)
		}
		var list ops.ListOutput
		if err := json.Unmarshal([]byte(out), &list); err != nil {
			t.Fatalf("failed to parse output: %v", err)
		}
		if len(list.Items) != 0 {
			t.Errorf("expected disabled pattern hidden, got %d items", len(list.Items))
		}

		out, err = runCLI(t, env, "", "list", "--include-disabled")
		if err != nil {
			t.Fatalf("list command failed: %v", err)
		}
		if err := json.Unmarshal([]byte(out), &list); err != nil {
			t.Fatalf("failed to parse output: %v", err)
		}
		if len(list.Items) != 1 || list.Items[0].Enabled {
			t.Errorf("expected one disabled pattern, got %+v", list.Items)
		}

		res, err := ops.Resolve(context.Background(), env, ops.ResolveInput{Text: "ping Sam hi"})
		if err != nil {
			t.Fatalf("resolve failed: %v", err)
		}
		if res.Matched {
			t.Error("expected disabled pattern to be invisible to the resolver")
		}

		if _, err := runCLI(t, env, "", "enable", id); err != nil {
			t.Fatalf("enable command failed: %v", err)
		}
	})

	t.Run("delete then purge", func(t *testing.T) {
		if _, err := runCLI(t, env, "", "delete", id); err != nil {
			t.Fatalf("delete command failed: %v", err)
		}
		if _, err := runCLI(t, env, "", "get", id); err == nil {
			t.Error("expected NOT_FOUND after delete")
		}

		out, err := runCLI(t, env, "", "purge")
		if err != nil {
			t.Fatalf("purge command failed: %v", err)
		}
		var output ops.PurgeOutput
		if err := json.Unmarshal([]byte(out), &output); err != nil {
			t.Fatalf("failed to parse output: %v", err)
		}
		if output.Purged != 1 {
			t.Errorf("expected 1 purged, got %d", output.Purged)
		}
	})
}

// TestCLIRecordAndRecall tests record, trace and recall.
func TestCLIRecordAndRecall(t *testing.T) {
	env := setupTestEnv(t)
	id := registerPing(t, env)

	doc, err := json.Marshal(map[string]any{
		"matched_pattern_id":  id,
		"input_request":       "ping Sam about the launch",
		"extracted_variables": map[string]string{"name": "Sam", "message": "about the launch"},
		"match_type":          "exact",
		"result_summary":      "messaged Sam about the launch",
		"success":             true,
		"referenced_entities": []string{"person:sam"},
		"duration_ms":         12,
	})
	if err != nil {
		t.Fatalf("failed to marshal trace entry: %v", err)
	}

	out, err := runCLI(t, env, string(doc), "record")
	if err != nil {
		t.Fatalf("record command failed: %v", err)
	}
	var recorded ops.RecordOutput
	if err := json.Unmarshal([]byte(out), &recorded); err != nil {
		t.Fatalf("failed to parse output: %v", err)
	}
	if recorded.ID == "" || recorded.PatternStale {
		t.Fatalf("unexpected record output: %+v", recorded)
	}

	t.Run("trace get", func(t *testing.T) {
		out, err := runCLI(t, env, "", "trace", "get", recorded.ID)
		if err != nil {
			t.Fatalf("trace get failed: %v", err)
		}
		var output ops.TraceOutput
		if err := json.Unmarshal([]byte(out), &output); err != nil {
			t.Fatalf("failed to parse output: %v", err)
		}
		if output.Entry == nil || output.PatternTextCopy != "ping {name} {message}" {
			t.Errorf("expected pattern text copy, got %s", out)
		}
	})

	t.Run("trace list by outcome", func(t *testing.T) {
		out, err := runCLI(t, env, "", "trace", "list", "--outcome=failure")
		if err != nil {
			t.Fatalf("trace list failed: %v", err)
		}
		var output ops.ListTracesOutput
		if err := json.Unmarshal([]byte(out), &output); err != nil {
			t.Fatalf("failed to parse output: %v", err)
		}
		if len(output.Items) != 0 {
			t.Errorf("expected no failures, got %d", len(output.Items))
		}

		if _, err := runCLI(t, env, "", "trace", "list", "--outcome=maybe"); err == nil {
			t.Error("expected error for unknown outcome")
		}
	})

	t.Run("recall by entity", func(t *testing.T) {
		out, err := runCLI(t, env, "", "recall", "--entities=person:sam")
		if err != nil {
			t.Fatalf("recall command failed: %v", err)
		}
		var output ops.RecallOutput
		if err := json.Unmarshal([]byte(out), &output); err != nil {
			t.Fatalf("failed to parse output: %v", err)
		}
		if len(output.Items) != 1 || output.Items[0].Entry.ID != recorded.ID {
			t.Errorf("expected the recorded entry, got %s", out)
		}
	})

	t.Run("recall by text defaults to textual", func(t *testing.T) {
		out, err := runCLI(t, env, "", "recall", "launch")
		if err != nil {
			t.Fatalf("recall command failed: %v", err)
		}
		var output ops.RecallOutput
		if err := json.Unmarshal([]byte(out), &output); err != nil {
			t.Fatalf("failed to parse output: %v", err)
		}
		if output.Mode != "textual" || len(output.Items) != 1 {
			t.Errorf("expected one textual hit, got %s", out)
		}
	})

	t.Run("usage counted", func(t *testing.T) {
		p, err := ops.Get(context.Background(), env, ops.GetInput{ID: id})
		if err != nil {
			t.Fatalf("get failed: %v", err)
		}
		if p.UsageCount != 1 || p.LastUsedAt == nil {
			t.Errorf("expected usage_count=1 with last_used_at, got %d", p.UsageCount)
		}
	})

	t.Run("unknown field rejected", func(t *testing.T) {
		_, err := runCLI(t, env, `{"input_request": "x", "bogus": 1}`, "record")
		if err == nil || !strings.Contains(err.Error(), "[INVALID_REQUEST]") {
			t.Errorf("expected INVALID_REQUEST, got %v", err)
		}
	})
}

// TestCLIExportImport tests catalog round trips through the CLI.
func TestCLIExportImport(t *testing.T) {
	env := setupTestEnv(t)
	registerPing(t, env)

	path := filepath.Join(t.TempDir(), "catalog.yaml")
	out, err := runCLI(t, env, "", "export", "--path="+path)
	if err != nil {
		t.Fatalf("export command failed: %v", err)
	}
	var exported ops.ExportOutput
	if err := json.Unmarshal([]byte(out), &exported); err != nil {
		t.Fatalf("failed to parse output: %v", err)
	}
	if exported.Count != 1 {
		t.Fatalf("expected 1 exported, got %d", exported.Count)
	}

	t.Run("error mode reports duplicates", func(t *testing.T) {
		out, err := runCLI(t, env, "", "import", path)
		if err != nil {
			t.Fatalf("import command failed: %v", err)
		}
		var imported ops.ImportOutput
		if err := json.Unmarshal([]byte(out), &imported); err != nil {
			t.Fatalf("failed to parse output: %v", err)
		}
		if imported.Imported != 0 || len(imported.Errors) != 1 || imported.Errors[0].Code != "DUPLICATE" {
			t.Errorf("expected one DUPLICATE error and nothing imported, got %s", out)
		}
	})

	t.Run("skip mode skips duplicates", func(t *testing.T) {
		out, err := runCLI(t, env, "", "import", "--mode=skip", path)
		if err != nil {
			t.Fatalf("import command failed: %v", err)
		}
		var imported ops.ImportOutput
		if err := json.Unmarshal([]byte(out), &imported); err != nil {
			t.Fatalf("failed to parse output: %v", err)
		}
		if imported.Imported != 0 || imported.Skipped != 1 {
			t.Errorf("expected 0 imported / 1 skipped, got %d / %d", imported.Imported, imported.Skipped)
		}
	})

	t.Run("fresh store imports", func(t *testing.T) {
		other := setupTestEnv(t)
		out, err := runCLI(t, other, "", "import", path)
		if err != nil {
			t.Fatalf("import command failed: %v", err)
		}
		var imported ops.ImportOutput
		if err := json.Unmarshal([]byte(out), &imported); err != nil {
			t.Fatalf("failed to parse output: %v", err)
		}
		if imported.Imported != 1 {
			t.Errorf("expected 1 imported, got %d", imported.Imported)
		}
	})
}

// TestCLIErrorHandling tests error handling in CLI commands.
func TestCLIErrorHandling(t *testing.T) {
	env := setupTestEnv(t)

	t.Run("get not found returns error", func(t *testing.T) {
		_, err := runCLI(t, env, "", "get", "01ARZ3NDEKTSV4RRFFQ69G5FAV")
		if err == nil || !strings.Contains(err.Error(), "[NOT_FOUND]") {
			t.Errorf("expected NOT_FOUND, got %v", err)
		}
	})

	t.Run("delete not found returns error", func(t *testing.T) {
		_, err := runCLI(t, env, "", "delete", "01ARZ3NDEKTSV4RRFFQ69G5FAV")
		if err == nil {
			t.Error("expected error, got nil")
		}
	})

	t.Run("invalid duration format returns error", func(t *testing.T) {
		_, err := runCLI(t, env, "", "purge", "--older-than=invalid")
		if err == nil {
			t.Error("expected error, got nil")
		}
	})

	t.Run("record without input returns error", func(t *testing.T) {
		_, err := runCLI(t, env, "", "record")
		if err == nil {
			t.Error("expected error, got nil")
		}
	})
}

// TestIsCLIMode tests the isCLIMode function.
func TestIsCLIMode(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected bool
	}{
		{name: "no args", args: []string{"cmdrouter"}, expected: false},
		{name: "register command", args: []string{"cmdrouter", "register"}, expected: true},
		{name: "resolve command", args: []string{"cmdrouter", "resolve"}, expected: true},
		{name: "serve command", args: []string{"cmdrouter", "serve"}, expected: true},
		{name: "verbose before command", args: []string{"cmdrouter", "--verbose", "trace"}, expected: true},
		{name: "verbose alone", args: []string{"cmdrouter", "--verbose"}, expected: false},
		{name: "help flag", args: []string{"cmdrouter", "--help"}, expected: true},
		{name: "short version flag", args: []string{"cmdrouter", "-v"}, expected: true},
		{name: "unknown arg defaults to MCP", args: []string{"cmdrouter", "--unknown"}, expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			oldArgs := os.Args
			defer func() { os.Args = oldArgs }()

			os.Args = tt.args
			if result := isCLIMode(); result != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, result)
			}
		})
	}
}

// TestIsHelpOrVersion tests the isHelpOrVersion function.
func TestIsHelpOrVersion(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected bool
	}{
		{name: "no args", args: []string{"cmdrouter"}, expected: false},
		{name: "help flag", args: []string{"cmdrouter", "--help"}, expected: true},
		{name: "short help flag", args: []string{"cmdrouter", "-h"}, expected: true},
		{name: "version flag", args: []string{"cmdrouter", "--version"}, expected: true},
		{name: "help subcommand", args: []string{"cmdrouter", "help"}, expected: true},
		{name: "verbose help", args: []string{"cmdrouter", "--verbose", "help"}, expected: true},
		{name: "resolve command is not help", args: []string{"cmdrouter", "resolve"}, expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			oldArgs := os.Args
			defer func() { os.Args = oldArgs }()

			os.Args = tt.args
			if result := isHelpOrVersion(); result != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, result)
			}
		})
	}
}

// TestNewLogger tests log level parsing.
func TestNewLogger(t *testing.T) {
	defer logLevel.SetLevel(zap.InfoLevel)

	log, err := newLogger("DEBUG")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !log.Core().Enabled(zap.DebugLevel) {
		t.Error("expected debug level enabled")
	}

	if _, err := newLogger("loud"); err == nil {
		t.Error("expected error for unknown level")
	}
}

// TestReadStdinWithLimit tests the readStdin function respects size limits.
func TestReadStdinWithLimit(t *testing.T) {
	t.Run("within limit", func(t *testing.T) {
		content := "small content"
		r, w, err := os.Pipe()
		if err != nil {
			t.Fatalf("Failed to create pipe: %v", err)
		}
		go func() {
			_, _ = w.WriteString(content)
			w.Close()
		}()

		oldStdin := os.Stdin
		os.Stdin = r
		defer func() { os.Stdin = oldStdin }()

		result, err := readStdin(1000)
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		if result != content {
			t.Errorf("expected %q, got %q", content, result)
		}
	})

	t.Run("exceeds limit", func(t *testing.T) {
		r, w, err := os.Pipe()
		if err != nil {
			t.Fatalf("Failed to create pipe: %v", err)
		}
		go func() {
			_, _ = w.WriteString(strings.Repeat("x", 100))
			w.Close()
		}()

		oldStdin := os.Stdin
		os.Stdin = r
		defer func() { os.Stdin = oldStdin }()

		if _, err := readStdin(50); err == nil {
			t.Error("expected error for content exceeding limit, got nil")
		}
	})
}
