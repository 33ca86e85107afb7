package main

import (
	"context"
	"fmt"
	"os"

	"github.com/mattn/go-isatty"

	"github.com/hpungsan/moodtrace/internal/config"
	"github.com/hpungsan/moodtrace/internal/logging"
	"github.com/hpungsan/moodtrace/internal/mcp"
	"github.com/hpungsan/moodtrace/internal/store"
)

// Version is set via -ldflags at build time.
var Version = "dev"

// cliCommands contains known CLI subcommands.
var cliCommands = map[string]bool{
	"run": true, "list": true, "range": true, "stats": true,
	"export": true, "import": true, "clear": true, "video": true,
	"resolve": true, "serve": true, "mcp": true,
	"help": true,
}

// isCLIMode determines if we should run CLI vs MCP server.
func isCLIMode() bool {
	if len(os.Args) < 2 {
		return false
	}
	arg := os.Args[1]
	if cliCommands[arg] {
		return true
	}
	return isHelpOrVersion()
}

// isHelpOrVersion returns true if the user is requesting help or version info.
func isHelpOrVersion() bool {
	if len(os.Args) < 2 {
		return false
	}
	arg := os.Args[1]
	return arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" || arg == "help"
}

// isTerminal returns true if stdin is a terminal (not piped).
func isTerminal() bool {
	fd := os.Stdin.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// printBanner displays a friendly banner when run interactively without args.
func printBanner() {
	fmt.Println(`
   (o_o)  moodtrace

  Periodic emotion check-ins, recorded locally

  Usage: moodtrace run           start a live session
         moodtrace <command> [options]
         moodtrace --help

  MCP server mode requires piped input.`)
}

func main() {
	if len(os.Args) < 2 && isTerminal() {
		printBanner()
		return
	}

	// Help and version need neither the database nor the config.
	if isHelpOrVersion() {
		app := newCLIApp(nil, nil, nil)
		if err := app.Run(os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if len(os.Args) >= 2 && !isCLIMode() && isTerminal() {
		fmt.Fprintf(os.Stderr, "error: unknown command %q\n", os.Args[1])
		fmt.Fprintf(os.Stderr, "Run 'moodtrace --help' for usage.\n")
		os.Exit(1)
	}

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	baseDir, err := config.HomeDir()
	if err != nil {
		return err
	}

	cfg, err := config.Load(baseDir)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if unknown := mcp.ValidateDisabledTools(cfg.DisabledTools); len(unknown) > 0 {
		fmt.Fprintf(os.Stderr, "warning: unknown tools in disabled_tools: %v\n", unknown)
	}

	// Records go to <home>/moodtrace.log: stdout carries command output or the
	// MCP transport, and the live session owns the terminal.
	logger, closer, err := logging.NewFromConfig(cfg, baseDir)
	if err != nil {
		return fmt.Errorf("failed to init logging: %w", err)
	}
	defer closer.Close()

	st, err := store.Open(context.Background(), baseDir, store.Options{Logger: logger, Config: cfg})
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer st.Close()

	if isCLIMode() {
		app := newCLIApp(st, cfg, logger)
		return app.Run(os.Args)
	}

	logger.Info("starting mcp server", "version", Version)
	return mcp.Run(st, cfg, Version)
}
