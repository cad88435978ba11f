package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/strackan/cmdrouter/internal/config"
	"github.com/strackan/cmdrouter/internal/db"
	"github.com/strackan/cmdrouter/internal/embed"
	"github.com/strackan/cmdrouter/internal/mcp"
	"github.com/strackan/cmdrouter/internal/metrics"
	"github.com/strackan/cmdrouter/internal/ops"
)

// Version is set via -ldflags at build time.
var Version = "dev"

// logLevel is shared by the logger and the --verbose flag.
var logLevel = zap.NewAtomicLevelAt(zapcore.InfoLevel)

// cliCommands contains known CLI subcommands.
var cliCommands = map[string]bool{
	"register": true, "get": true, "list": true, "update": true,
	"enable": true, "disable": true, "priority": true,
	"delete": true, "purge": true,
	"resolve": true, "record": true, "trace": true, "recall": true,
	"import": true, "export": true, "serve": true,
	"help": true,
}

// firstArg returns the first argument after the program name, skipping a
// leading --verbose.
func firstArg() string {
	args := os.Args[1:]
	if len(args) > 0 && args[0] == "--verbose" {
		args = args[1:]
	}
	if len(args) == 0 {
		return ""
	}
	return args[0]
}

// isCLIMode determines if we should run CLI vs MCP server.
func isCLIMode() bool {
	arg := firstArg()
	if arg == "" {
		return false // No args → MCP server
	}
	if cliCommands[arg] {
		return true
	}
	if arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" {
		return true
	}
	return false // Default → MCP server
}

// isHelpOrVersion returns true if the user is requesting help or version info.
func isHelpOrVersion() bool {
	arg := firstArg()
	return arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" || arg == "help"
}

// isTerminal returns true if stdin is a terminal (not piped).
func isTerminal() bool {
	stat, _ := os.Stdin.Stat()
	return (stat.Mode() & os.ModeCharDevice) != 0
}

// printBanner displays a friendly banner when run interactively without args.
func printBanner() {
	fmt.Println(`
                       _                  _
   ___ _ __ ___   __ _| |_ __ ___  _   _| |_ ___ _ __
  / __| '_ ' _ \ / _' | '__/ _ \| | | | __/ _ \ '__|
 | (__| | | | | | (_| | | | (_) | |_| | ||  __/ |
  \___|_| |_| |_|\__,_|_|  \___/ \__,_|\__\___|_|

  Command pattern router

  Usage: cmdrouter <command> [options]
         cmdrouter --help

  MCP server mode requires piped input.`)
}

// newLogger builds the process logger. Output goes to stderr so the MCP
// stdio transport keeps stdout to itself.
func newLogger(level string) (*zap.Logger, error) {
	if level != "" {
		lvl, err := zapcore.ParseLevel(strings.ToLower(level))
		if err != nil {
			return nil, fmt.Errorf("invalid log_level %q: %w", level, err)
		}
		logLevel.SetLevel(lvl)
	}

	zcfg := zap.NewProductionConfig()
	zcfg.Level = logLevel
	zcfg.Encoding = "console"
	zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zcfg.DisableStacktrace = true
	return zcfg.Build()
}

func main() {
	// No args + interactive terminal → show banner and exit
	if len(os.Args) < 2 && isTerminal() {
		printBanner()
		return
	}

	// Handle --help/--version before DB init (no DB needed)
	if isHelpOrVersion() {
		app := newCLIApp(nil)
		if err := app.Run(os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: could not determine home directory: %v\n", err)
		os.Exit(1)
	}

	baseDir := filepath.Join(homeDir, config.DirName)

	database, err := db.Init(baseDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to initialize database: %v\n", err)
		os.Exit(1)
	}
	defer database.Close()

	cwd, _ := os.Getwd()
	cfg, err := config.LoadWithRepo(baseDir, cwd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to load config: %v\n", err)
		os.Exit(1)
	}
	db.ConfigurePool(database, cfg)

	log, err := newLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	embedder, err := embed.New(cfg.Embedding)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to configure embeddings: %v\n", err)
		os.Exit(1)
	}
	if embedder != nil {
		log.Debug("embedding provider configured", zap.String("provider", embedder.Name()))
	}

	env := ops.NewEnv(database, cfg, embedder, metrics.New(), log)

	// CLI mode: known subcommand
	if isCLIMode() {
		app := newCLIApp(env)
		if err := app.Run(os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	// Unknown argument + terminal → show error (don't start MCP server)
	if len(os.Args) >= 2 && isTerminal() {
		fmt.Fprintf(os.Stderr, "error: unknown command %q\n", os.Args[1])
		fmt.Fprintf(os.Stderr, "Run 'cmdrouter --help' for usage.\n")
		os.Exit(1)
	}

	if unknown := mcp.ValidateDisabledTools(cfg.DisabledTools); len(unknown) > 0 {
		log.Warn("unknown tools in disabled_tools", zap.Strings("names", unknown))
	}
	if unknown := mcp.ValidateDisabledTypes(cfg.DisabledTypes); len(unknown) > 0 {
		log.Warn("unknown types in disabled_types", zap.Strings("names", unknown))
	}

	// MCP server mode (default)
	if err := mcp.Run(env, Version); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
