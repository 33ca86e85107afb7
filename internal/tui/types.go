package tui

import (
	"context"

	"github.com/charmbracelet/lipgloss"

	"github.com/hpungsan/moodtrace/internal/session"
	"github.com/hpungsan/moodtrace/internal/wheel"
)

// Session is the part of the session controller the TUI drives.
type Session interface {
	Start(ctx context.Context) error
	Pause() error
	Resume() error
	Stop() error
	SelectPointer(x, y float64) (wheel.Selection, bool, error)
	SelectWord(word string) (wheel.Selection, error)
	Submit(ctx context.Context, word string) (int64, error)
	Snapshot() session.Snapshot
}

const (
	minWrapWidth = 40
	// cursorSteps is how many arrow presses cross the wheel radius.
	cursorSteps = 10
	heroTagline = "Notice the feeling, name it, move on."
)

type eventMsg session.Event

type eventsClosedMsg struct{}

type startResultMsg struct {
	err error
}

type submitResultMsg struct {
	id  int64
	err error
}

var (
	titleStyle         = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#ff8c00"))
	taglineStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("#c8b79c")).Italic(true)
	sectionHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("81"))
	statusBarStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#0f0f0f")).Background(lipgloss.Color("#8ecae6")).Padding(0, 1)
	recordingStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#ffffff")).Background(lipgloss.Color("#dc143c")).Padding(0, 1)
	errorStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	warningStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	helperStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	selectedStyle      = lipgloss.NewStyle().Bold(true).Underline(true)
	partialStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("244")).Italic(true)
	keyStyle           = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#0f0f0f")).Background(lipgloss.Color("#ffd166")).Padding(0, 1)
	keyDescStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("#e0def4"))
	wheelBoxStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#56526e")).Padding(0, 1)
)
