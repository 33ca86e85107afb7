package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/urfave/cli/v2"

	"github.com/hpungsan/moodtrace/internal/config"
	"github.com/hpungsan/moodtrace/internal/errors"
	"github.com/hpungsan/moodtrace/internal/mcp"
	"github.com/hpungsan/moodtrace/internal/ops"
	"github.com/hpungsan/moodtrace/internal/store"
	"github.com/hpungsan/moodtrace/internal/web"
	"github.com/hpungsan/moodtrace/internal/wheel"
)

// stdoutIsTerminal decides between tables and JSON. Tests replace it.
var stdoutIsTerminal = func() bool {
	fd := os.Stdout.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// newCLIApp creates the CLI application with all commands.
func newCLIApp(st *store.Store, cfg *config.Config, logger *slog.Logger) *cli.App {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	app := &cli.App{
		Name:    "moodtrace",
		Usage:   "Periodic emotion check-ins, recorded locally",
		Version: Version,
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "json", Usage: "Print JSON even on a terminal"},
		},
		Commands: []*cli.Command{
			runCmd(st, cfg, logger),
			listCmd(st),
			rangeCmd(st),
			statsCmd(st),
			exportCmd(st, cfg),
			importCmd(st, cfg),
			clearCmd(st),
			videoCmd(st, cfg),
			resolveCmd(cfg),
			serveCmd(st, cfg, logger),
			mcpCmd(st, cfg),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// listCmd creates the list command.
func listCmd(st *store.Store) *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List captures, newest first",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "from", Usage: "Only captures at or after this time (RFC 3339, YYYY-MM-DD or epoch ms)"},
			&cli.StringFlag{Name: "to", Usage: "Only captures at or before this time"},
			&cli.IntFlag{Name: "limit", Usage: "Max results (default 50, max 500)"},
			&cli.IntFlag{Name: "offset", Usage: "Pagination offset"},
		},
		Action: func(c *cli.Context) error {
			input := ops.ListInput{Limit: c.Int("limit"), Offset: c.Int("offset")}
			if err := parseBounds(c, &input, false); err != nil {
				return outputError(err)
			}
			output, err := ops.Timeline(c.Context, st, input)
			if err != nil {
				return outputError(err)
			}
			return outputList(c, output)
		},
	}
}

// rangeCmd creates the range command.
func rangeCmd(st *store.Store) *cli.Command {
	return &cli.Command{
		Name:  "range",
		Usage: "List captures between two times, oldest first",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "from", Usage: "Inclusive start", Required: true},
			&cli.StringFlag{Name: "to", Usage: "Inclusive end; a bare date covers the whole day", Required: true},
			&cli.IntFlag{Name: "limit", Usage: "Max results (default 50, max 500)"},
			&cli.IntFlag{Name: "offset", Usage: "Pagination offset"},
		},
		Action: func(c *cli.Context) error {
			input := ops.ListInput{Limit: c.Int("limit"), Offset: c.Int("offset")}
			if err := parseBounds(c, &input, true); err != nil {
				return outputError(err)
			}
			output, err := ops.List(c.Context, st, input)
			if err != nil {
				return outputError(err)
			}
			return outputList(c, output)
		},
	}
}

// statsCmd creates the stats command.
func statsCmd(st *store.Store) *cli.Command {
	return &cli.Command{
		Name:  "stats",
		Usage: "Summarize captures per emotion and intensity",
		Action: func(c *cli.Context) error {
			output, err := ops.Stats(c.Context, st, wheel.ModeNormal)
			if err != nil {
				return outputError(err)
			}
			if !wantTable(c) {
				return outputJSON(c, output)
			}
			rows := make([][]string, 0, len(output.ByEmotion))
			for _, e := range output.ByEmotion {
				rows = append(rows, []string{e.Emotion, strconv.Itoa(e.Count)})
			}
			fmt.Fprintln(c.App.Writer, renderTable([]string{"Emotion", "Count"}, rows, []columnAlignment{alignLeft, alignRight}))
			fmt.Fprintf(c.App.Writer, "Total: %d  With video: %d  Mean intensity: %.2f\n",
				output.Total, output.WithVideo, output.MeanIntensity)
			if output.MostCommon != "" {
				fmt.Fprintf(c.App.Writer, "Most common: %s\n", output.MostCommon)
			}
			return nil
		},
	}
}

// exportCmd creates the export command.
func exportCmd(st *store.Store, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Export every capture to a JSON or CSV file",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "path", Usage: "Output path (default: <home>/exports/captures-<time>.<format>)"},
			&cli.StringFlag{Name: "format", Usage: "json or csv (inferred from --path)"},
			&cli.BoolFlag{Name: "include-video", Usage: "Embed recorded media as base64 (json only)"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.Export(c.Context, st, cfg, ops.ExportInput{
				Path:         c.String("path"),
				Format:       ops.Format(strings.ToLower(c.String("format"))),
				IncludeVideo: c.Bool("include-video"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c, output)
		},
	}
}

// importCmd creates the import command.
func importCmd(st *store.Store, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:      "import",
		Usage:     "Import captures from a JSON export",
		ArgsUsage: "<path>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "path", Usage: "Import file path"},
		},
		Action: func(c *cli.Context) error {
			path := c.String("path")
			if path == "" {
				path = c.Args().First()
			}
			if path == "" {
				return outputError(errors.NewInvalidRequest("import path is required"))
			}
			output, err := ops.Import(c.Context, st, cfg, ops.ImportInput{Path: path})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c, output)
		},
	}
}

// clearCmd creates the clear command.
func clearCmd(st *store.Store) *cli.Command {
	return &cli.Command{
		Name:  "clear",
		Usage: "Delete every capture (cannot be undone)",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "yes", Usage: "Confirm the deletion"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.Clear(c.Context, st, ops.ClearInput{Confirm: c.Bool("yes")})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c, output)
		},
	}
}

// videoCmd creates the video command.
func videoCmd(st *store.Store, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:      "video",
		Usage:     "Write a capture's recorded media to a file",
		ArgsUsage: "<id>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "path", Usage: "Output path (default: <home>/exports/capture-<id>.<ext>)"},
		},
		Action: func(c *cli.Context) error {
			id, err := strconv.ParseInt(c.Args().First(), 10, 64)
			if err != nil {
				return outputError(errors.NewInvalidRequest("capture id must be a number"))
			}
			output, err := ops.SaveVideo(c.Context, st, cfg, ops.VideoInput{ID: id, Path: c.String("path")})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c, output)
		},
	}
}

// resolveCmd creates the resolve command with its word and point subcommands.
func resolveCmd(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "resolve",
		Usage: "Resolve a word or wheel point to an emotion",
		Subcommands: []*cli.Command{
			{
				Name:      "word",
				Usage:     "Map a free-text word onto the wheel",
				ArgsUsage: "<word>",
				Action: func(c *cli.Context) error {
					word := strings.Join(c.Args().Slice(), " ")
					if strings.TrimSpace(word) == "" {
						return outputError(errors.NewInvalidRequest("word is required"))
					}
					return outputJSON(c, wheel.New(cfg.WheelRadius).ResolveFromWord(word))
				},
			},
			{
				Name:      "point",
				Usage:     "Map pointer coordinates relative to the wheel center",
				ArgsUsage: "<x> <y>",
				Action: func(c *cli.Context) error {
					if c.NArg() != 2 {
						return outputError(errors.NewInvalidRequest("expected two coordinates: <x> <y>"))
					}
					x, errX := strconv.ParseFloat(c.Args().Get(0), 64)
					y, errY := strconv.ParseFloat(c.Args().Get(1), 64)
					if errX != nil || errY != nil {
						return outputError(errors.NewInvalidRequest("coordinates must be numbers"))
					}
					sel, inside := wheel.New(cfg.WheelRadius).ResolveFromPointer(x, y)
					output := mcp.ResolvePointOutput{Inside: inside}
					if inside {
						output.Selection = &sel
					}
					return outputJSON(c, output)
				},
			},
		},
	}
}

// serveCmd creates the serve command.
func serveCmd(st *store.Store, cfg *config.Config, logger *slog.Logger) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the read-only capture viewer",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bind", Usage: "Bind address", Value: cfg.WebBind},
			&cli.IntFlag{Name: "port", Usage: "Port", Value: cfg.WebPort},
		},
		Action: func(c *cli.Context) error {
			serveCfg := *cfg
			serveCfg.WebBind = c.String("bind")
			serveCfg.WebPort = c.Int("port")

			srv, err := web.NewServer(st, &serveCfg, Version, logger)
			if err != nil {
				return outputError(err)
			}
			fmt.Fprintf(c.App.Writer, "Viewer running at http://%s (Ctrl+C to stop)\n", srv.Addr)
			if err := web.Run(c.Context, srv, logger); err != nil {
				return outputError(err)
			}
			return nil
		},
	}
}

// mcpCmd creates the mcp command.
func mcpCmd(st *store.Store, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Serve the MCP tools over stdio",
		Action: func(c *cli.Context) error {
			if err := mcp.Run(st, cfg, Version); err != nil {
				return outputError(err)
			}
			return nil
		},
	}
}

// Helper functions

// parseBounds fills the optional time bounds of a list input from --from/--to.
func parseBounds(c *cli.Context, input *ops.ListInput, required bool) error {
	from, to := c.String("from"), c.String("to")
	if required && (from == "" || to == "") {
		return errors.NewInvalidRequest("both --from and --to are required")
	}
	if from != "" {
		t, err := ops.ParseTime(from)
		if err != nil {
			return err
		}
		input.Start = &t
	}
	if to != "" {
		t, err := ops.ParseRangeEnd(to)
		if err != nil {
			return err
		}
		input.End = &t
	}
	if input.Start != nil && input.End != nil && input.End.Before(*input.Start) {
		return errors.NewInvalidRequest("--to is before --from")
	}
	if input.Limit < 0 || input.Offset < 0 {
		return errors.NewInvalidRequest("limit and offset must be non-negative")
	}
	return nil
}

// wantTable reports whether output should be a table rather than JSON.
func wantTable(c *cli.Context) bool {
	return !c.Bool("json") && stdoutIsTerminal()
}

// outputList renders a page of captures.
func outputList(c *cli.Context, output *ops.ListOutput) error {
	if !wantTable(c) {
		return outputJSON(c, output)
	}
	if len(output.Items) == 0 {
		fmt.Fprintln(c.App.Writer, "No captures recorded yet.")
		return nil
	}
	rows := make([][]string, 0, len(output.Items))
	for _, s := range output.Items {
		rows = append(rows, []string{
			strconv.FormatInt(s.ID, 10),
			time.UnixMilli(s.Timestamp).Format("2006-01-02 15:04"),
			s.Emotion,
			fmt.Sprintf("%.2f (%s)", s.Intensity, s.IntensityLevel),
			truncate(s.Transcript, 48),
			yesNo(s.HasVideo),
		})
	}
	fmt.Fprintln(c.App.Writer, renderTable(
		[]string{"ID", "Time", "Emotion", "Intensity", "Transcript", "Video"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
	))
	if output.Pagination.HasMore {
		fmt.Fprintf(c.App.Writer, "Showing %d of %d; use --offset %d for more.\n",
			len(output.Items), output.Pagination.Total, output.Pagination.Offset+len(output.Items))
	}
	return nil
}

// outputJSON marshals result to the app writer as JSON.
func outputJSON(c *cli.Context, v any) error {
	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI as "[CODE] message". Internal errors
// show their cause since the generic message says nothing on a terminal.
func outputError(err error) error {
	tErr := errors.As(err)
	msg := tErr.Message
	if tErr.Code == errors.ErrInternal && tErr.Unwrap() != nil {
		msg = tErr.Unwrap().Error()
	}
	return cli.Exit(fmt.Sprintf("[%s] %s", tErr.Code, msg), 1)
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return ""
}
