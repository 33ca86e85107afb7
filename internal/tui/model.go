// Package tui is the terminal front end of a live capture session.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/hpungsan/moodtrace/internal/errors"
	"github.com/hpungsan/moodtrace/internal/session"
	"github.com/hpungsan/moodtrace/internal/wheel"
)

// Config wires runtime options into the TUI program.
type Config struct {
	Session Session

	// Events is usually Bridge.Events(); the bridge must be subscribed to the
	// controller before the program starts.
	Events <-chan session.Event

	WheelRadius float64
	Mode        wheel.Mode

	// AutoStart begins the first countdown as soon as the program runs.
	AutoStart bool

	Context context.Context
}

// New returns a tea.Model ready to be mounted into a Program.
func New(config Config) tea.Model {
	return newModel(config)
}

func newModel(config Config) *model {
	if config.Context == nil {
		config.Context = context.Background()
	}
	if config.WheelRadius <= 0 {
		config.WheelRadius = 140
	}

	input := textinput.New()
	input.Placeholder = "How does it feel? e.g. anxious, glad, furious"
	input.CharLimit = 64
	input.Width = 48

	spin := spinner.New()
	spin.Spinner = spinner.Dot

	m := &model{
		config:  config,
		input:   input,
		spinner: spin,
		mode:    config.Mode,
		width:   80,
		info:    "Press s to start. A short clip is recorded at every interval.",
	}
	if config.Session != nil {
		m.snap = config.Session.Snapshot()
	}
	return m
}

type model struct {
	config Config

	input   textinput.Model
	spinner spinner.Model
	snap    session.Snapshot

	remaining time.Duration
	partial   string
	selection *wheel.Selection
	cursorX   float64
	cursorY   float64
	mode      wheel.Mode

	width       int
	info        string
	warning     string
	errMessage  string
	helpVisible bool
	submitting  bool
	starting    bool
	quitting    bool
}

func (m *model) Init() tea.Cmd {
	cmds := []tea.Cmd{waitForEvent(m.config.Events)}
	if m.config.AutoStart {
		m.starting = true
		cmds = append(cmds, startCmd(m.config.Context, m.config.Session))
	}
	return tea.Batch(cmds...)
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil
	case spinner.TickMsg:
		if m.snap.State == session.Recording || m.submitting {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
		return m, nil
	case eventMsg:
		cmd := m.apply(session.Event(msg))
		return m, tea.Batch(cmd, waitForEvent(m.config.Events))
	case eventsClosedMsg:
		return m, nil
	case startResultMsg:
		m.starting = false
		if msg.err != nil {
			m.errMessage = formatError(msg.err)
			m.info = "Check camera and microphone access, then press s to retry."
		}
		m.refresh()
		return m, nil
	case submitResultMsg:
		m.submitting = false
		if msg.err != nil {
			m.errMessage = formatError(msg.err)
		} else {
			m.errMessage = ""
			m.info = fmt.Sprintf("Saved capture #%d.", msg.id)
		}
		m.refresh()
		return m, nil
	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

// apply folds one controller event into the model.
func (m *model) apply(e session.Event) tea.Cmd {
	prev := m.snap.State
	m.refresh()

	var cmd tea.Cmd
	switch e.Kind {
	case session.EventState:
		switch e.State {
		case session.CountingDown:
			m.partial = ""
			if prev == session.AwaitingEmotionInput || prev == session.Idle || prev == session.Stopped {
				m.selection = nil
			}
		case session.Recording:
			m.info = "Recording. Say what is on your mind."
			cmd = m.spinner.Tick
		case session.AwaitingEmotionInput:
			m.input.Reset()
			m.input.Focus()
			m.cursorX, m.cursorY = 0, 0
			m.selection = nil
			m.info = "Type a word or steer the wheel with the arrows, then press Enter."
			cmd = textinput.Blink
		case session.Paused:
			m.info = "Paused. Press p to resume."
		case session.Stopped:
			m.info = "Stopped. Press s to start again or q to quit."
		}
		if e.State != session.AwaitingEmotionInput {
			m.input.Blur()
		}
	case session.EventCountdown, session.EventRecording:
		m.remaining = e.Remaining
	case session.EventTranscript:
		m.partial = e.Partial
	case session.EventSelection:
		m.selection = e.Selection
	case session.EventSaved:
		m.errMessage = ""
		m.info = fmt.Sprintf("Saved capture #%d.", e.CaptureID)
	case session.EventWarning:
		if e.Err != nil {
			m.warning = formatError(e.Err)
		}
	case session.EventError:
		if e.Err != nil {
			m.errMessage = formatError(e.Err)
		}
	}
	return cmd
}

func (m *model) refresh() {
	if m.config.Session == nil {
		return
	}
	m.snap = m.config.Session.Snapshot()
	if m.snap.Selection != nil {
		m.selection = m.snap.Selection
	}
	if m.snap.State == session.CountingDown || m.snap.State == session.Recording || m.snap.State == session.Paused {
		m.remaining = m.snap.Remaining
	}
}

func (m *model) handleKey(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Type == tea.KeyCtrlC {
		return m.quit()
	}
	if m.snap.State == session.AwaitingEmotionInput {
		return m.handleEmotionKey(key)
	}

	switch key.String() {
	case "q", "esc":
		return m.quit()
	case "s":
		if m.starting || (m.snap.State != session.Idle && m.snap.State != session.Stopped) {
			return m, nil
		}
		m.starting = true
		m.errMessage = ""
		m.info = "Requesting camera and microphone…"
		return m, startCmd(m.config.Context, m.config.Session)
	case "p", " ":
		var err error
		if m.snap.State == session.Paused {
			err = m.config.Session.Resume()
		} else {
			err = m.config.Session.Pause()
		}
		if err != nil {
			m.errMessage = formatError(err)
		}
		m.refresh()
	case "x":
		if err := m.config.Session.Stop(); err != nil {
			m.errMessage = formatError(err)
		}
		m.refresh()
	case "m":
		m.toggleMode()
	case "?":
		m.helpVisible = !m.helpVisible
	}
	return m, nil
}

func (m *model) handleEmotionKey(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	step := m.config.WheelRadius / cursorSteps
	switch key.Type {
	case tea.KeyEnter:
		if m.submitting {
			return m, nil
		}
		word := strings.TrimSpace(m.input.Value())
		if word == "" && m.selection == nil {
			m.errMessage = "Type a word or pick a point on the wheel first."
			return m, nil
		}
		m.submitting = true
		m.info = "Saving…"
		return m, tea.Batch(submitCmd(m.config.Context, m.config.Session, word), m.spinner.Tick)
	case tea.KeyUp:
		return m.moveCursor(0, -step)
	case tea.KeyDown:
		return m.moveCursor(0, step)
	case tea.KeyLeft:
		return m.moveCursor(-step, 0)
	case tea.KeyRight:
		return m.moveCursor(step, 0)
	case tea.KeyCtrlT:
		m.toggleMode()
		return m, nil
	case tea.KeyCtrlX:
		if err := m.config.Session.Stop(); err != nil {
			m.errMessage = formatError(err)
		}
		m.refresh()
		return m, nil
	case tea.KeyEsc:
		m.input.Reset()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(key)
	return m, cmd
}

func (m *model) moveCursor(dx, dy float64) (tea.Model, tea.Cmd) {
	x, y := m.cursorX+dx, m.cursorY+dy
	sel, ok, err := m.config.Session.SelectPointer(x, y)
	if err != nil {
		m.errMessage = formatError(err)
		return m, nil
	}
	if !ok {
		m.info = "That is outside the wheel."
		return m, nil
	}
	m.cursorX, m.cursorY = x, y
	m.selection = &sel
	m.errMessage = ""
	return m, nil
}

func (m *model) toggleMode() {
	if m.mode == wheel.ModeXRay {
		m.mode = wheel.ModeNormal
	} else {
		m.mode = wheel.ModeXRay
	}
}

func (m *model) quit() (tea.Model, tea.Cmd) {
	m.quitting = true
	if m.config.Session != nil {
		_ = m.config.Session.Stop()
	}
	return m, tea.Quit
}

func formatError(err error) string {
	tErr := errors.As(err)
	return fmt.Sprintf("[%s] %s", tErr.Code, tErr.Message)
}
