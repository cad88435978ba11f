package main

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/strackan/cmdrouter/internal/chain"
	"github.com/strackan/cmdrouter/internal/errors"
	"github.com/strackan/cmdrouter/internal/ops"
	"github.com/strackan/cmdrouter/internal/web"
)

// maxStdinBytes caps piped input for register, update and record.
const maxStdinBytes = 1 << 20

// newCLIApp creates the CLI application with all commands. env may be nil
// when only help or version output is needed.
func newCLIApp(env *ops.Env) *cli.App {
	app := &cli.App{
		Name:    "cmdrouter",
		Usage:   "Resolve natural-language requests to registered command patterns",
		Version: Version,
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "verbose", Usage: "Log at debug level"},
		},
		Before: func(c *cli.Context) error {
			if c.Bool("verbose") {
				logLevel.SetLevel(zapcore.DebugLevel)
			}
			return nil
		},
		Commands: []*cli.Command{
			registerCmd(env),
			getCmd(env),
			listCmd(env),
			updateCmd(env),
			enableCmd(env, true),
			enableCmd(env, false),
			priorityCmd(env),
			deleteCmd(env),
			purgeCmd(env),
			resolveCmd(env),
			recordCmd(env),
			traceCmd(env),
			recallCmd(env),
			importCmd(env),
			exportCmd(env),
			serveCmd(env),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// registerCmd creates the register command.
func registerCmd(env *ops.Env) *cli.Command {
	return &cli.Command{
		Name:      "register",
		Usage:     "Register a command pattern (action chain as YAML or JSON via --actions or stdin)",
		ArgsUsage: "<pattern>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "description", Aliases: []string{"d"}, Usage: "Human-readable summary"},
			&cli.StringFlag{Name: "scope", Aliases: []string{"s"}, Usage: "Visibility scope (default: universal)"},
			&cli.StringFlag{Name: "tags", Usage: "Comma-separated context tags"},
			&cli.StringFlag{Name: "mode-hint", Usage: "Execution mode hint passed through to the executor"},
			&cli.StringFlag{Name: "capabilities", Usage: "Comma-separated required capabilities (default: derived from actions)"},
			&cli.StringFlag{Name: "actions", Aliases: []string{"a"}, Usage: "Path to an action chain file"},
			&cli.IntFlag{Name: "priority", Aliases: []string{"p"}, Usage: "Tie-break priority, lower wins"},
			&cli.BoolFlag{Name: "disabled", Usage: "Register the pattern disabled"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() == 0 {
				return outputError(errors.NewInvalidRequest("pattern is required"))
			}

			actions, err := readActions(c.String("actions"))
			if err != nil {
				return outputError(err)
			}

			input := ops.RegisterInput{
				Pattern:              strings.Join(c.Args().Slice(), " "),
				Description:          c.String("description"),
				Scope:                c.String("scope"),
				ContextTags:          parseTags(c.String("tags")),
				ExecutionModeHint:    c.String("mode-hint"),
				RequiredCapabilities: parseTags(c.String("capabilities")),
				Actions:              actions,
			}
			if c.IsSet("priority") {
				p := c.Int("priority")
				input.Priority = &p
			}
			if c.Bool("disabled") {
				enabled := false
				input.Enabled = &enabled
			}

			output, err := ops.Register(c.Context, env, input)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// getCmd creates the get command.
func getCmd(env *ops.Env) *cli.Command {
	return &cli.Command{
		Name:      "get",
		Usage:     "Show a pattern with its action chain",
		ArgsUsage: "<id>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "include-deleted", Usage: "Include soft-deleted patterns"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.Get(c.Context, env, ops.GetInput{
				ID:             c.Args().First(),
				IncludeDeleted: c.Bool("include-deleted"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// listCmd creates the list command.
func listCmd(env *ops.Env) *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List patterns",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "scope", Aliases: []string{"s"}, Usage: "Filter by scope"},
			&cli.BoolFlag{Name: "include-disabled", Usage: "Include disabled patterns"},
			&cli.BoolFlag{Name: "include-deleted", Usage: "Include soft-deleted patterns"},
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: ops.DefaultListLimit, Usage: "Max items"},
			&cli.IntFlag{Name: "offset", Aliases: []string{"o"}, Usage: "Pagination offset"},
		},
		Action: func(c *cli.Context) error {
			input := ops.ListInput{
				IncludeDisabled: c.Bool("include-disabled"),
				IncludeDeleted:  c.Bool("include-deleted"),
				Limit:           c.Int("limit"),
				Offset:          c.Int("offset"),
			}
			if scope := c.String("scope"); scope != "" {
				input.Scope = &scope
			}

			output, err := ops.List(c.Context, env, input)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// updateCmd creates the update command.
func updateCmd(env *ops.Env) *cli.Command {
	return &cli.Command{
		Name:      "update",
		Usage:     "Update a pattern's description, tags, hint, capabilities, actions or priority",
		ArgsUsage: "<id>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "description", Aliases: []string{"d"}, Usage: "New description"},
			&cli.StringFlag{Name: "tags", Usage: "Comma-separated context tags (empty clears)"},
			&cli.StringFlag{Name: "mode-hint", Usage: "New execution mode hint"},
			&cli.StringFlag{Name: "capabilities", Usage: "Comma-separated required capabilities"},
			&cli.StringFlag{Name: "actions", Aliases: []string{"a"}, Usage: "Path to a replacement action chain file"},
			&cli.IntFlag{Name: "priority", Aliases: []string{"p"}, Usage: "New priority"},
			&cli.BoolFlag{Name: "reembed", Usage: "Recompute the embedding with the configured provider"},
		},
		Action: func(c *cli.Context) error {
			input := ops.UpdateInput{
				ID:      c.Args().First(),
				Reembed: c.Bool("reembed"),
			}
			if c.IsSet("description") {
				d := c.String("description")
				input.Description = &d
			}
			if c.IsSet("tags") {
				tags := parseTags(c.String("tags"))
				input.ContextTags = &tags
			}
			if c.IsSet("mode-hint") {
				h := c.String("mode-hint")
				input.ExecutionModeHint = &h
			}
			if c.IsSet("capabilities") {
				caps := parseTags(c.String("capabilities"))
				input.RequiredCapabilities = &caps
			}
			if c.IsSet("actions") {
				actions, err := readActions(c.String("actions"))
				if err != nil {
					return outputError(err)
				}
				input.Actions = &actions
			}
			if c.IsSet("priority") {
				p := c.Int("priority")
				input.Priority = &p
			}

			output, err := ops.Update(c.Context, env, input)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// enableCmd creates the enable or disable command.
func enableCmd(env *ops.Env, enabled bool) *cli.Command {
	name, usage := "enable", "Make a pattern visible to the resolver"
	if !enabled {
		name, usage = "disable", "Hide a pattern from the resolver without deleting it"
	}
	return &cli.Command{
		Name:      name,
		Usage:     usage,
		ArgsUsage: "<id>",
		Action: func(c *cli.Context) error {
			output, err := ops.SetEnabled(c.Context, env, c.Args().First(), enabled)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// priorityCmd creates the priority command.
func priorityCmd(env *ops.Env) *cli.Command {
	return &cli.Command{
		Name:      "priority",
		Usage:     "Set a pattern's tie-break priority (lower wins)",
		ArgsUsage: "<id> <priority>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 2 {
				return outputError(errors.NewInvalidRequest("usage: priority <id> <priority>"))
			}
			p, err := strconv.Atoi(c.Args().Get(1))
			if err != nil {
				return outputError(errors.NewInvalidRequest("priority must be an integer"))
			}

			output, err := ops.SetPriority(c.Context, env, c.Args().First(), p)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// deleteCmd creates the delete command.
func deleteCmd(env *ops.Env) *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Usage:     "Soft-delete a pattern (trace history is kept)",
		ArgsUsage: "<id>",
		Action: func(c *cli.Context) error {
			output, err := ops.Delete(c.Context, env, ops.DeleteInput{ID: c.Args().First()})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// purgeCmd creates the purge command.
func purgeCmd(env *ops.Env) *cli.Command {
	return &cli.Command{
		Name:  "purge",
		Usage: "Permanently delete soft-deleted patterns",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "older-than", Usage: "Only purge if deleted more than N days ago (e.g., 7d)"},
		},
		Action: func(c *cli.Context) error {
			input := ops.PurgeInput{}
			if olderThan := c.String("older-than"); olderThan != "" {
				days, err := parseDuration(olderThan)
				if err != nil {
					return outputError(errors.NewInvalidRequest(err.Error()))
				}
				input.OlderThanDays = &days
			}

			output, err := ops.Purge(c.Context, env, input)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// resolveCmd creates the resolve command. A request nothing matches is a
// normal result, not an error.
func resolveCmd(env *ops.Env) *cli.Command {
	return &cli.Command{
		Name:      "resolve",
		Usage:     "Resolve a request to the best matching patterns",
		ArgsUsage: "<request text>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "scope", Aliases: []string{"s"}, Usage: "Caller scope (default: universal)"},
			&cli.StringFlag{Name: "tags", Usage: "Comma-separated context tags"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.Resolve(c.Context, env, ops.ResolveInput{
				Text:        strings.Join(c.Args().Slice(), " "),
				Scope:       c.String("scope"),
				ContextTags: parseTags(c.String("tags")),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// recordRequest is the JSON document read by the record command.
type recordRequest struct {
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

// recordCmd creates the record command.
func recordCmd(env *ops.Env) *cli.Command {
	return &cli.Command{
		Name:  "record",
		Usage: "Append an execution trace entry (reads a JSON document from stdin)",
		Action: func(c *cli.Context) error {
			if !stdinHasData() {
				return outputError(errors.NewInvalidRequest("trace entry must be piped via stdin"))
			}
			text, err := readStdin(maxStdinBytes)
			if err != nil {
				return outputError(errors.NewInvalidRequest(err.Error()))
			}

			var req recordRequest
			dec := json.NewDecoder(strings.NewReader(text))
			dec.DisallowUnknownFields()
			if err := dec.Decode(&req); err != nil {
				return outputError(errors.NewInvalidRequest("invalid trace entry: " + err.Error()))
			}

			output, err := ops.Record(c.Context, env, ops.RecordInput{
				MatchedPatternID:   req.MatchedPatternID,
				PatternText:        req.PatternText,
				InputRequest:       req.InputRequest,
				ExtractedVariables: req.ExtractedVariables,
				MatchType:          req.MatchType,
				Steps:              req.Steps,
				ResultSummary:      req.ResultSummary,
				Success:            req.Success,
				ErrorMessage:       req.ErrorMessage,
				ReferencedEntities: req.ReferencedEntities,
				Embedding:          req.Embedding,
				Scope:              req.Scope,
				ActorID:            req.ActorID,
				DurationMs:         req.DurationMs,
				ResourceUnitsUsed:  req.ResourceUnitsUsed,
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// traceCmd creates the trace command with get and list subcommands.
func traceCmd(env *ops.Env) *cli.Command {
	return &cli.Command{
		Name:  "trace",
		Usage: "Inspect the execution trace log",
		Subcommands: []*cli.Command{
			{
				Name:      "get",
				Usage:     "Show one trace entry",
				ArgsUsage: "<id>",
				Action: func(c *cli.Context) error {
					output, err := ops.GetTrace(c.Context, env, c.Args().First())
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
			{
				Name:  "list",
				Usage: "List trace entries, newest first",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "pattern", Usage: "Filter by matched pattern ID"},
					&cli.StringFlag{Name: "scope", Aliases: []string{"s"}, Usage: "Filter by scope"},
					&cli.StringFlag{Name: "outcome", Usage: "success|failure"},
					&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: ops.DefaultListLimit, Usage: "Max items"},
					&cli.IntFlag{Name: "offset", Aliases: []string{"o"}, Usage: "Pagination offset"},
				},
				Action: func(c *cli.Context) error {
					input := ops.ListTracesInput{
						Limit:  c.Int("limit"),
						Offset: c.Int("offset"),
					}
					if id := c.String("pattern"); id != "" {
						input.PatternID = &id
					}
					if scope := c.String("scope"); scope != "" {
						input.Scope = &scope
					}
					switch c.String("outcome") {
					case "":
					case "success":
						ok := true
						input.Success = &ok
					case "failure":
						ok := false
						input.Success = &ok
					default:
						return outputError(errors.NewInvalidRequest("outcome must be success or failure"))
					}

					output, err := ops.ListTraces(c.Context, env, input)
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
		},
	}
}

// recallCmd creates the recall command.
func recallCmd(env *ops.Env) *cli.Command {
	return &cli.Command{
		Name:      "recall",
		Usage:     "Recall successful executions (semantic, textual or recent)",
		ArgsUsage: "[query]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "mode", Aliases: []string{"m"}, Usage: "semantic|textual|recent (default: textual with a query, recent without)"},
			&cli.StringFlag{Name: "scope", Aliases: []string{"s"}, Usage: "Caller scope (default: universal entries only)"},
			&cli.StringFlag{Name: "entities", Aliases: []string{"e"}, Usage: "Comma-separated entity identifiers"},
			&cli.Float64Flag{Name: "min-similarity", Usage: "Semantic similarity floor"},
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Usage: "Max items"},
		},
		Action: func(c *cli.Context) error {
			input := ops.RecallInput{
				Mode:     c.String("mode"),
				Scope:    c.String("scope"),
				Entities: parseTags(c.String("entities")),
				Text:     strings.Join(c.Args().Slice(), " "),
				Limit:    c.Int("limit"),
			}
			if input.Mode == "" && input.Text != "" {
				input.Mode = "textual"
			}
			if c.IsSet("min-similarity") {
				m := c.Float64("min-similarity")
				input.MinSimilarity = &m
			}

			output, err := ops.Recall(c.Context, env, input)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// importCmd creates the import command.
func importCmd(env *ops.Env) *cli.Command {
	return &cli.Command{
		Name:      "import",
		Usage:     "Register the patterns of a YAML catalog",
		ArgsUsage: "<path>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "mode", Aliases: []string{"m"}, Value: "error", Usage: "Collision mode: error|skip"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() == 0 {
				return outputError(errors.NewInvalidRequest("path is required"))
			}

			output, err := ops.Import(c.Context, env, ops.ImportInput{
				Path: c.Args().First(),
				Mode: ops.ImportMode(c.String("mode")),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// exportCmd creates the export command.
func exportCmd(env *ops.Env) *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Write live patterns to a YAML catalog",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "path", Usage: "Output file (default: ~/.cmdrouter/exports/<scope>-<timestamp>.yaml)"},
			&cli.StringFlag{Name: "scope", Aliases: []string{"s"}, Usage: "Filter by scope"},
		},
		Action: func(c *cli.Context) error {
			input := ops.ExportInput{Path: c.String("path")}
			if scope := c.String("scope"); scope != "" {
				input.Scope = &scope
			}

			output, err := ops.Export(c.Context, env, input)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// serveCmd creates the serve command.
func serveCmd(env *ops.Env) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the web viewer",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bind", Value: "127.0.0.1", Usage: "Bind address"},
			&cli.IntFlag{Name: "port", Value: 8420, Usage: "Port"},
		},
		Action: func(c *cli.Context) error {
			srv, err := web.NewServer(env, Version, c.String("bind"), c.Int("port"))
			if err != nil {
				return outputError(errors.NewInternal(err))
			}
			if err := web.Run(srv, env.Log); err != nil {
				return outputError(errors.NewInternal(err))
			}
			return nil
		},
	}
}

// Helper functions

// outputJSON marshals result to stdout as JSON.
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	var rErr *errors.RouterError
	if stderrors.As(err, &rErr) {
		return cli.Exit(fmt.Sprintf("[%s] %s", rErr.Code, rErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}

// stdinHasData returns true if stdin has piped data (not a terminal).
func stdinHasData() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}

// readStdin reads at most limit bytes from stdin.
func readStdin(limit int64) (string, error) {
	data, err := io.ReadAll(io.LimitReader(os.Stdin, limit+1))
	if err != nil {
		return "", err
	}
	if int64(len(data)) > limit {
		return "", fmt.Errorf("stdin exceeds %d bytes", limit)
	}
	return strings.TrimSpace(string(data)), nil
}

// readActions loads an action chain from path, or from stdin when path is
// empty and input is piped. YAML and JSON are both accepted.
func readActions(path string) ([]chain.Step, error) {
	var data []byte
	switch {
	case path != "":
		b, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, errors.NewFileNotFound(path)
			}
			return nil, errors.NewInvalidRequest("cannot read actions file: " + err.Error())
		}
		data = b
	case stdinHasData():
		text, err := readStdin(maxStdinBytes)
		if err != nil {
			return nil, errors.NewInvalidRequest(err.Error())
		}
		data = []byte(text)
	default:
		return nil, nil
	}
	return parseActions(data)
}

// parseActions decodes an action chain document.
func parseActions(data []byte) ([]chain.Step, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	var steps []chain.Step
	if err := yaml.Unmarshal(data, &steps); err != nil {
		return nil, errors.NewInvalidRequest("invalid action chain: " + err.Error())
	}
	return steps, nil
}

// parseTags splits a comma-separated string into a slice of tags.
func parseTags(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

// parseDuration parses "7d" format to days.
func parseDuration(s string) (int, error) {
	if numStr, ok := strings.CutSuffix(s, "d"); ok {
		days, err := strconv.Atoi(numStr)
		if err != nil {
			return 0, fmt.Errorf("invalid duration: %s", s)
		}
		if days < 0 {
			return 0, fmt.Errorf("duration must be non-negative")
		}
		return days, nil
	}
	return 0, fmt.Errorf("duration must end with 'd' (days), e.g., 7d")
}
