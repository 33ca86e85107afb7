package main

import (
	"fmt"
	"log/slog"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gofrs/flock"
	"github.com/urfave/cli/v2"

	"github.com/hpungsan/moodtrace/internal/config"
	"github.com/hpungsan/moodtrace/internal/errors"
	"github.com/hpungsan/moodtrace/internal/logging"
	"github.com/hpungsan/moodtrace/internal/media"
	"github.com/hpungsan/moodtrace/internal/session"
	"github.com/hpungsan/moodtrace/internal/store"
	"github.com/hpungsan/moodtrace/internal/transcribe"
	"github.com/hpungsan/moodtrace/internal/tui"
	"github.com/hpungsan/moodtrace/internal/wheel"
)

// lockFileName guards the capture devices: only one live session per data dir.
const lockFileName = "moodtrace.lock"

// runCmd creates the run command, which owns the terminal for a live session.
func runCmd(st *store.Store, cfg *config.Config, logger *slog.Logger) *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Start a live capture session",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "xray", Usage: "Start with the alternate palette"},
			&cli.BoolFlag{Name: "wait", Usage: "Wait for 's' before the first countdown"},
			&cli.BoolFlag{Name: "no-alt-screen", Usage: "Disable the alternate screen buffer"},
		},
		Action: func(c *cli.Context) error {
			if logger == nil {
				logger = logging.Discard()
			}

			home, err := config.HomeDir()
			if err != nil {
				return outputError(err)
			}
			lock, err := acquireSessionLock(home)
			if err != nil {
				return outputError(err)
			}
			defer func() { _ = lock.Unlock() }()

			bridge := tui.NewBridge(0)
			ctrl := session.New(
				media.NewFFmpegRecorder(media.OptionsFromConfig(cfg, logger)),
				transcribe.FromConfig(cfg, logger),
				st,
				session.Options{
					Logger:            logger,
					Interval:          cfg.Interval(),
					RecordingDuration: cfg.RecordingDuration(),
					Tick:              cfg.TickResolution(),
					WheelRadius:       cfg.WheelRadius,
					Observers:         []session.Observer{bridge},
				},
			)
			defer func() {
				if err := ctrl.Stop(); err != nil {
					logger.Warn("session stop failed", "error", err)
				}
			}()

			mode := wheel.ModeNormal
			if c.Bool("xray") {
				mode = wheel.ModeXRay
			}

			var opts []tea.ProgramOption
			if !c.Bool("no-alt-screen") {
				opts = append(opts, tea.WithAltScreen())
			}
			program := tea.NewProgram(
				tui.New(tui.Config{
					Session:     ctrl,
					Events:      bridge.Events(),
					WheelRadius: cfg.WheelRadius,
					Mode:        mode,
					AutoStart:   !c.Bool("wait"),
					Context:     c.Context,
				}),
				opts...,
			)

			logger.Info("live session started", "interval", cfg.Interval(), "recording", cfg.RecordingDuration())
			if _, err := program.Run(); err != nil {
				return outputError(fmt.Errorf("program error: %w", err))
			}
			if n := bridge.Dropped(); n > 0 {
				logger.Debug("ui dropped session events", "count", n)
			}
			return nil
		},
	}
}

// acquireSessionLock takes the per-home session lock without blocking.
func acquireSessionLock(home string) (*flock.Flock, error) {
	lock := flock.New(filepath.Join(home, lockFileName))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, errors.NewStorage("lock", err)
	}
	if !locked {
		return nil, errors.NewInvalidState("run", "another live session holds "+lock.Path())
	}
	return lock, nil
}
