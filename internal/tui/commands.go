package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// startTimeout bounds device acquisition; permission prompts can hang.
const startTimeout = 30 * time.Second

func startCmd(parent context.Context, s Session) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(parent, startTimeout)
		defer cancel()
		return startResultMsg{err: s.Start(ctx)}
	}
}

func submitCmd(ctx context.Context, s Session, word string) tea.Cmd {
	return func() tea.Msg {
		id, err := s.Submit(ctx, word)
		return submitResultMsg{id: id, err: err}
	}
}
