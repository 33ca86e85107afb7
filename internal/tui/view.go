package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	"github.com/hpungsan/moodtrace/internal/scheduler"
	"github.com/hpungsan/moodtrace/internal/session"
	"github.com/hpungsan/moodtrace/internal/wheel"
)

func (m *model) View() string {
	if m.quitting {
		return ""
	}
	parts := []string{m.heroView(), m.statusView()}
	if m.snap.State == session.Recording || m.snap.State == session.AwaitingEmotionInput {
		parts = append(parts, m.transcriptView())
	}
	parts = append(parts, m.wheelView())
	if m.snap.State == session.AwaitingEmotionInput {
		parts = append(parts, m.inputView())
	}
	parts = append(parts, m.messagesView(), m.helpView())
	return joinNonEmpty(parts)
}

func (m *model) heroView() string {
	return joinNonEmpty([]string{
		titleStyle.Render("moodtrace"),
		taglineStyle.Render(heroTagline),
	})
}

func (m *model) statusView() string {
	var label string
	switch m.snap.State {
	case session.Idle:
		label = statusBarStyle.Render("Idle")
	case session.CountingDown:
		label = statusBarStyle.Render("Next capture in " + scheduler.FormatRemaining(m.remaining))
	case session.Recording:
		label = recordingStyle.Render(fmt.Sprintf("%s REC %s", m.spinner.View(), scheduler.FormatRemaining(m.remaining)))
	case session.AwaitingEmotionInput:
		label = statusBarStyle.Render("How did that feel?")
	case session.Paused:
		label = statusBarStyle.Render("Paused at " + scheduler.FormatRemaining(m.remaining))
	case session.Stopped:
		label = statusBarStyle.Render("Stopped")
	default:
		label = statusBarStyle.Render(string(m.snap.State))
	}
	meta := helperStyle.Render(fmt.Sprintf("cycle %d · %d saved", m.snap.Cycle, m.snap.Saved))
	return lipgloss.JoinHorizontal(lipgloss.Center, label, " ", meta)
}

func (m *model) transcriptView() string {
	text := strings.TrimSpace(m.snap.Transcript)
	var body string
	switch {
	case text == "" && m.partial == "":
		body = helperStyle.Render("No speech yet.")
	default:
		body = wordwrap.String(text, m.wrapWidth())
		if m.partial != "" && !strings.HasSuffix(text, m.partial) {
			body = joinNonEmpty([]string{body, partialStyle.Render(wordwrap.String(m.partial, m.wrapWidth()))})
		}
	}
	return joinNonEmpty([]string{sectionHeaderStyle.Render("Transcript"), body})
}

// wheelView lists the eight categories around the compass, highlighting the
// current selection.
func (m *model) wheelView() string {
	cats := wheel.Categories()
	cells := make([]string, len(cats))
	for i, cat := range cats {
		dot := lipgloss.NewStyle().Foreground(lipgloss.Color(cat.ColorFor(m.mode))).Render("●")
		name := cat.Name
		if m.selection != nil && m.selection.Emotion == cat.Name {
			name = selectedStyle.Render(name)
		}
		cells[i] = fmt.Sprintf("%s %s", dot, name)
	}
	rows := []string{
		strings.Join(cells[:4], "   "),
		strings.Join(cells[4:], "   "),
	}
	if m.selection != nil {
		rows = append(rows, helperStyle.Render(fmt.Sprintf("%s · %s · %.0f%%",
			m.selection.Emotion, m.selection.Level, m.selection.Intensity*100)))
	}
	return wheelBoxStyle.Render(strings.Join(rows, "\n"))
}

func (m *model) inputView() string {
	return joinNonEmpty([]string{
		sectionHeaderStyle.Render("Emotion"),
		m.input.View(),
	})
}

func (m *model) messagesView() string {
	var lines []string
	if m.warning != "" {
		lines = append(lines, warningStyle.Render(m.warning))
	}
	if m.errMessage != "" {
		lines = append(lines, errorStyle.Render(wordwrap.String(m.errMessage, m.wrapWidth())))
	}
	if m.info != "" {
		info := m.info
		if m.submitting {
			info = m.spinner.View() + " " + info
		}
		lines = append(lines, helperStyle.Render(info))
	}
	return joinNonEmpty(lines)
}

func (m *model) helpView() string {
	var keys [][2]string
	if m.snap.State == session.AwaitingEmotionInput {
		keys = [][2]string{{"enter", "save"}, {"←↑↓→", "wheel"}, {"ctrl+t", "palette"}, {"ctrl+x", "stop"}}
	} else {
		keys = [][2]string{{"s", "start"}, {"p", "pause/resume"}, {"x", "stop"}, {"m", "palette"}, {"q", "quit"}}
	}
	if !m.helpVisible {
		keys = append(keys, [2]string{"?", "more"})
	}
	items := make([]string, 0, len(keys))
	for _, k := range keys {
		items = append(items, keyStyle.Render(k[0])+" "+keyDescStyle.Render(k[1]))
	}
	legend := strings.Join(items, "  ")
	if !m.helpVisible {
		return legend
	}
	return joinNonEmpty([]string{
		legend,
		helperStyle.Render(wordwrap.String("Every interval a short clip is recorded while your speech is transcribed. "+
			"Afterwards name the feeling with a word or by steering the wheel: the direction picks the emotion and "+
			"the distance from the center its intensity. Nothing is saved until you press Enter.", m.wrapWidth())),
	})
}

func (m *model) wrapWidth() int {
	return max(m.width-4, minWrapWidth)
}

func joinNonEmpty(parts []string) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, "\n\n")
}
