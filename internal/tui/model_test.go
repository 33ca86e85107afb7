package tui

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/hpungsan/moodtrace/internal/errors"
	"github.com/hpungsan/moodtrace/internal/session"
	"github.com/hpungsan/moodtrace/internal/wheel"
)

type fakeSession struct {
	snap      session.Snapshot
	startErr  error
	submitted []string
	pointers  [][2]float64
	stops     int
	pauses    int
	resumes   int
	codec     *wheel.Codec
}

func newFakeSession() *fakeSession {
	return &fakeSession{snap: session.Snapshot{State: session.Idle}, codec: wheel.New(100)}
}

func (f *fakeSession) Start(ctx context.Context) error {
	if f.startErr != nil {
		return f.startErr
	}
	f.snap.State = session.CountingDown
	return nil
}

func (f *fakeSession) Pause() error {
	if f.snap.State != session.CountingDown {
		return errors.NewInvalidState("pause", string(f.snap.State))
	}
	f.pauses++
	f.snap.State = session.Paused
	return nil
}

func (f *fakeSession) Resume() error {
	f.resumes++
	f.snap.State = session.CountingDown
	return nil
}

func (f *fakeSession) Stop() error {
	f.stops++
	f.snap.State = session.Stopped
	return nil
}

func (f *fakeSession) SelectPointer(x, y float64) (wheel.Selection, bool, error) {
	f.pointers = append(f.pointers, [2]float64{x, y})
	sel, ok := f.codec.ResolveFromPointer(x, y)
	return sel, ok, nil
}

func (f *fakeSession) SelectWord(word string) (wheel.Selection, error) {
	return f.codec.ResolveFromWord(word), nil
}

func (f *fakeSession) Submit(ctx context.Context, word string) (int64, error) {
	f.submitted = append(f.submitted, word)
	f.snap.Saved++
	f.snap.State = session.CountingDown
	return int64(len(f.submitted)), nil
}

func (f *fakeSession) Snapshot() session.Snapshot { return f.snap }

func newTestModel(t *testing.T) (*model, *fakeSession) {
	t.Helper()
	fs := newFakeSession()
	m := newModel(Config{Session: fs, WheelRadius: 100})
	return m, fs
}

func enterAwaiting(m *model, fs *fakeSession) {
	fs.snap.State = session.AwaitingEmotionInput
	m.Update(eventMsg(session.Event{Kind: session.EventState, State: session.AwaitingEmotionInput}))
}

func typeText(m *model, s string) {
	for _, r := range s {
		m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
}

func TestStartKeyRunsStart(t *testing.T) {
	m, _ := newTestModel(t)

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'s'}})
	if cmd == nil {
		t.Fatal("s should start the session")
	}
	msg := cmd()
	if _, ok := msg.(startResultMsg); !ok {
		t.Fatalf("expected startResultMsg, got %T", msg)
	}
	m.Update(msg)
	if m.snap.State != session.CountingDown {
		t.Fatalf("state = %s, want CountingDown", m.snap.State)
	}
	if m.errMessage != "" {
		t.Fatalf("unexpected error message %q", m.errMessage)
	}

	// A second s while running is ignored.
	if _, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'s'}}); cmd != nil {
		t.Fatal("s while counting down should not start again")
	}
}

func TestStartPermissionDeniedShowsCode(t *testing.T) {
	m, fs := newTestModel(t)
	fs.startErr = errors.NewPermissionDenied("camera/microphone", fmt.Errorf("no device"))

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'s'}})
	m.Update(cmd())

	if !strings.HasPrefix(m.errMessage, "[PERMISSION_DENIED]") {
		t.Fatalf("errMessage = %q", m.errMessage)
	}
	if m.snap.State != session.Idle {
		t.Fatalf("state = %s, want Idle", m.snap.State)
	}
}

func TestPauseToggle(t *testing.T) {
	m, fs := newTestModel(t)
	fs.snap.State = session.CountingDown
	m.refresh()

	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'p'}})
	if fs.pauses != 1 || m.snap.State != session.Paused {
		t.Fatalf("pause not applied: pauses=%d state=%s", fs.pauses, m.snap.State)
	}
	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'p'}})
	if fs.resumes != 1 || m.snap.State != session.CountingDown {
		t.Fatalf("resume not applied: resumes=%d state=%s", fs.resumes, m.snap.State)
	}
}

func TestPauseWhileRecordingShowsError(t *testing.T) {
	m, fs := newTestModel(t)
	fs.snap.State = session.Recording
	m.refresh()

	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'p'}})
	if !strings.HasPrefix(m.errMessage, "[INVALID_STATE]") {
		t.Fatalf("errMessage = %q", m.errMessage)
	}
}

func TestWordSubmission(t *testing.T) {
	m, fs := newTestModel(t)
	enterAwaiting(m, fs)

	if !m.input.Focused() {
		t.Fatal("input should be focused while awaiting an emotion")
	}
	typeText(m, "furious")

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if cmd == nil {
		t.Fatal("enter should submit")
	}
	if !m.submitting {
		t.Fatal("model should be submitting")
	}

	// Run the batch: the submit command is the one returning submitResultMsg.
	var result tea.Msg
	for _, c := range cmd().(tea.BatchMsg) {
		if c == nil {
			continue
		}
		if msg, ok := c().(submitResultMsg); ok {
			result = msg
		}
	}
	if result == nil {
		t.Fatal("no submitResultMsg produced")
	}
	m.Update(result)

	if len(fs.submitted) != 1 || fs.submitted[0] != "furious" {
		t.Fatalf("submitted = %v", fs.submitted)
	}
	if m.submitting {
		t.Fatal("submitting should be cleared")
	}
	if m.info != "Saved capture #1." {
		t.Fatalf("info = %q", m.info)
	}
}

func TestEnterWithoutInputOrSelection(t *testing.T) {
	m, fs := newTestModel(t)
	enterAwaiting(m, fs)

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if cmd != nil {
		t.Fatal("enter with nothing selected should not submit")
	}
	if m.errMessage == "" {
		t.Fatal("expected a prompt to select something")
	}
	if len(fs.submitted) != 0 {
		t.Fatal("nothing should be submitted")
	}
}

func TestArrowKeysSteerWheel(t *testing.T) {
	m, fs := newTestModel(t)
	enterAwaiting(m, fs)

	for i := 0; i < 5; i++ {
		m.Update(tea.KeyMsg{Type: tea.KeyDown})
	}
	if m.selection == nil || m.selection.Emotion != "Fear" {
		t.Fatalf("selection = %+v, want Fear", m.selection)
	}
	if m.selection.Intensity != 0.5 {
		t.Fatalf("intensity = %v, want 0.5", m.selection.Intensity)
	}

	// Leaving the wheel keeps the cursor and selection where they were.
	for i := 0; i < 6; i++ {
		m.Update(tea.KeyMsg{Type: tea.KeyDown})
	}
	if m.cursorY != 100 {
		t.Fatalf("cursorY = %v, want clamped at the rim (100)", m.cursorY)
	}
	if m.info != "That is outside the wheel." {
		t.Fatalf("info = %q", m.info)
	}
	if last := fs.pointers[len(fs.pointers)-1]; last != [2]float64{0, 110} {
		t.Fatalf("last pointer = %v", last)
	}
}

func TestCountdownEventRendersRemaining(t *testing.T) {
	m, fs := newTestModel(t)
	fs.snap.State = session.CountingDown
	m.Update(eventMsg(session.Event{Kind: session.EventState, State: session.CountingDown}))
	m.Update(eventMsg(session.Event{Kind: session.EventCountdown, State: session.CountingDown, Remaining: 4*time.Minute + 58*time.Second + 100*time.Millisecond}))

	if view := m.View(); !strings.Contains(view, "Next capture in 4:59") {
		t.Fatalf("view missing countdown:\n%s", view)
	}
}

func TestTranscriptShownWhileRecording(t *testing.T) {
	m, fs := newTestModel(t)
	fs.snap.State = session.Recording
	fs.snap.Transcript = "today was long"
	m.Update(eventMsg(session.Event{Kind: session.EventTranscript, Transcript: "today was long", Partial: "and tiring"}))

	view := m.View()
	if !strings.Contains(view, "today was long") || !strings.Contains(view, "and tiring") {
		t.Fatalf("view missing transcript:\n%s", view)
	}
}

func TestWarningAndErrorEvents(t *testing.T) {
	m, _ := newTestModel(t)
	m.Update(eventMsg(session.Event{Kind: session.EventWarning, Err: errors.NewTranscriptionUnavailable("no service configured")}))
	m.Update(eventMsg(session.Event{Kind: session.EventError, Err: errors.NewStorage("insert", nil)}))

	if !strings.HasPrefix(m.warning, "[TRANSCRIPTION_UNAVAILABLE]") {
		t.Fatalf("warning = %q", m.warning)
	}
	if !strings.HasPrefix(m.errMessage, "[STORAGE_ERROR]") {
		t.Fatalf("errMessage = %q", m.errMessage)
	}
}

func TestModeToggle(t *testing.T) {
	m, _ := newTestModel(t)
	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'m'}})
	if m.mode != wheel.ModeXRay {
		t.Fatalf("mode = %s, want xray", m.mode)
	}
	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'m'}})
	if m.mode != wheel.ModeNormal {
		t.Fatalf("mode = %s, want normal", m.mode)
	}
}

func TestQuitStopsSession(t *testing.T) {
	m, fs := newTestModel(t)
	fs.snap.State = session.CountingDown
	m.refresh()

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	if cmd == nil {
		t.Fatal("q should quit")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatal("expected tea.QuitMsg")
	}
	if fs.stops != 1 {
		t.Fatalf("stops = %d, want 1", fs.stops)
	}
}

func TestBridgeNeverBlocks(t *testing.T) {
	b := NewBridge(2)
	for i := 0; i < 5; i++ {
		b.OnEvent(session.Event{Kind: session.EventCountdown})
	}
	if b.Dropped() != 3 {
		t.Fatalf("dropped = %d, want 3", b.Dropped())
	}

	msg := waitForEvent(b.Events())()
	if e, ok := msg.(eventMsg); !ok || e.Kind != session.EventCountdown {
		t.Fatalf("unexpected msg %#v", msg)
	}
}
