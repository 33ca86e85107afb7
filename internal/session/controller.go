// Package session runs the capture cycle: countdown, fixed-length recording
// with concurrent transcription, emotion input, and persistence.
package session

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/hpungsan/moodtrace/internal/capture"
	"github.com/hpungsan/moodtrace/internal/clock"
	"github.com/hpungsan/moodtrace/internal/errors"
	"github.com/hpungsan/moodtrace/internal/logging"
	"github.com/hpungsan/moodtrace/internal/scheduler"
	"github.com/hpungsan/moodtrace/internal/wheel"
)

// DefaultRecordingDuration is the fixed length of one recording.
const DefaultRecordingDuration = 30 * time.Second

// Options configures a Controller. Zero fields take defaults.
type Options struct {
	Clock             clock.Clock
	Logger            *slog.Logger
	Interval          time.Duration
	RecordingDuration time.Duration
	Tick              time.Duration
	WheelRadius       float64
	Observers         []Observer
}

// Controller is the recording session state machine. All transitions happen
// under one mutex; device calls and store writes run outside it and are
// re-checked against the cycle number before their results are applied.
type Controller struct {
	clock       clock.Clock
	logger      *slog.Logger
	recorder    Recorder
	transcriber Transcriber
	store       CaptureStore
	codec       *wheel.Codec
	countdown   *scheduler.Countdown
	recording   *scheduler.Countdown

	obsMu     sync.RWMutex
	observers []Observer

	mu             sync.Mutex
	state          State
	cycle          uint64
	starting       bool
	submitting     bool
	acquired       bool
	recorderActive bool
	transcribing   bool
	warned         bool
	runCtx         context.Context
	cancelRun      context.CancelFunc
	finals         []string
	partial        string
	transcript     string
	media          *Media
	saved          int
}

// New builds an idle controller. A nil transcriber behaves as unavailable.
func New(rec Recorder, tr Transcriber, st CaptureStore, opts Options) *Controller {
	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	if opts.RecordingDuration <= 0 {
		opts.RecordingDuration = DefaultRecordingDuration
	}
	if opts.WheelRadius <= 0 {
		opts.WheelRadius = 140
	}
	if tr == nil {
		tr = noTranscriber{}
	}

	c := &Controller{
		clock:       opts.Clock,
		logger:      opts.Logger,
		recorder:    rec,
		transcriber: tr,
		store:       st,
		codec:       wheel.New(opts.WheelRadius),
		observers:   append([]Observer(nil), opts.Observers...),
		state:       Idle,
		runCtx:      context.Background(),
	}
	c.countdown = scheduler.New(opts.Clock, scheduler.Options{
		Interval: opts.Interval,
		Tick:     opts.Tick,
		OnTick:   c.onCountdownTick,
		OnExpire: c.onCountdownExpire,
	})
	c.recording = scheduler.New(opts.Clock, scheduler.Options{
		Interval: opts.RecordingDuration,
		Tick:     opts.Tick,
		OnTick:   c.onRecordingTick,
		OnExpire: c.onRecordingElapsed,
	})
	return c
}

// Subscribe registers an observer for all future events.
func (c *Controller) Subscribe(o Observer) {
	c.obsMu.Lock()
	c.observers = append(c.observers, o)
	c.obsMu.Unlock()
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Snapshot returns a consistent read-only view.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Snapshot{
		State:      c.state,
		Cycle:      c.cycle,
		Transcript: c.currentTranscriptLocked(),
		HasMedia:   c.media != nil && len(c.media.Data) > 0,
		Saved:      c.saved,
	}
	switch c.state {
	case CountingDown, Paused:
		s.Remaining = c.countdown.Remaining()
	case Recording:
		s.Remaining = c.recording.Remaining()
	}
	if sel, ok := c.codec.Selection(); ok && c.state == AwaitingEmotionInput {
		s.Selection = &sel
	}
	return s
}

// Start acquires the devices and begins the first countdown. On denial the
// state is unchanged, no timer is armed, and the PERMISSION_DENIED error is
// both returned and reported once to observers.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.state != Idle && c.state != Stopped {
		st := c.state
		c.mu.Unlock()
		return errors.NewInvalidState("start", string(st))
	}
	if c.starting {
		c.mu.Unlock()
		return errors.NewInvalidState("start", "starting")
	}
	c.starting = true
	cycle := c.cycle
	c.mu.Unlock()

	err := c.recorder.Acquire(ctx)

	c.mu.Lock()
	c.starting = false
	prior := c.state
	if err != nil {
		c.mu.Unlock()
		if !errors.Is(err, errors.ErrPermissionDenied) {
			err = errors.NewPermissionDenied("camera/microphone", err)
		}
		c.logger.Warn("device acquisition failed", "error", err)
		c.emit(Event{Kind: EventError, State: prior, Cycle: cycle, Err: err})
		return err
	}
	if c.cycle != cycle {
		// Stopped while acquiring.
		c.mu.Unlock()
		_ = c.recorder.Release()
		return errors.NewInvalidState("start", string(Stopped))
	}

	c.acquired = true
	c.runCtx, c.cancelRun = context.WithCancel(context.Background())
	warn := !c.warned
	c.warned = true
	events := c.beginCountdownLocked()
	c.mu.Unlock()

	if warn {
		if err := c.transcriber.Available(); err != nil {
			c.logger.Warn("transcription disabled", "error", err)
			events = append(events, Event{Kind: EventWarning, State: CountingDown, Err: err})
		}
	}
	c.logger.Info("session started", "interval", c.countdown.Interval())
	c.emit(events...)
	return nil
}

// Pause freezes the countdown.
func (c *Controller) Pause() error {
	c.mu.Lock()
	if c.state != CountingDown {
		st := c.state
		c.mu.Unlock()
		return errors.NewInvalidState("pause", string(st))
	}
	if !c.countdown.Pause() {
		// The deadline has passed and the expiry handler is about to enter
		// Recording.
		c.mu.Unlock()
		return errors.NewInvalidState("pause", "countdown expiring")
	}
	ev := c.transitionLocked(Paused)
	remaining := c.countdown.Remaining()
	c.mu.Unlock()

	ev.Remaining = remaining
	c.emit(ev)
	return nil
}

// Resume continues a paused countdown from its frozen remaining time.
func (c *Controller) Resume() error {
	c.mu.Lock()
	if c.state != Paused {
		st := c.state
		c.mu.Unlock()
		return errors.NewInvalidState("resume", string(st))
	}
	if !c.countdown.Resume() {
		// Nothing frozen to resume; open a fresh cycle so a deadline is armed.
		c.logger.Warn("resume found no paused countdown, restarting interval", "cycle", c.cycle)
		events := c.beginCountdownLocked()
		c.mu.Unlock()
		c.emit(events...)
		return nil
	}
	ev := c.transitionLocked(CountingDown)
	remaining := c.countdown.Remaining()
	c.mu.Unlock()

	ev.Remaining = remaining
	c.emit(ev)
	return nil
}

// Stop cancels every timer, halts media and transcription, drops the pending
// draft, and releases the devices. It is valid from any state; a second Stop
// is a no-op.
func (c *Controller) Stop() error {
	c.mu.Lock()
	if c.state == Stopped {
		c.mu.Unlock()
		return nil
	}
	c.cycle++
	c.countdown.Stop()
	c.recording.Stop()

	abort := c.recorderActive
	stopTranscriber := c.transcribing
	release := c.acquired
	cancel := c.cancelRun
	c.recorderActive = false
	c.transcribing = false
	c.acquired = false
	c.cancelRun = nil
	c.resetCycleLocked()
	ev := c.transitionLocked(Stopped)
	c.mu.Unlock()

	if abort {
		c.recorder.Abort()
	}
	if stopTranscriber {
		c.transcriber.Stop()
	}
	if cancel != nil {
		cancel()
	}

	var err error
	if release {
		if err = c.recorder.Release(); err != nil {
			c.logger.Warn("device release failed", "error", err)
		}
	}
	c.emit(ev)
	return err
}

// SelectPointer resolves a wheel click while waiting for input. Points
// outside the wheel return false and leave the selection unchanged.
func (c *Controller) SelectPointer(x, y float64) (wheel.Selection, bool, error) {
	c.mu.Lock()
	if c.state != AwaitingEmotionInput {
		st := c.state
		c.mu.Unlock()
		return wheel.Selection{}, false, errors.NewInvalidState("select", string(st))
	}
	sel, ok := c.codec.ResolveFromPointer(x, y)
	cycle := c.cycle
	c.mu.Unlock()

	if ok {
		c.emit(Event{Kind: EventSelection, State: AwaitingEmotionInput, Cycle: cycle, Selection: &sel})
	}
	return sel, ok, nil
}

// SelectWord resolves a free-text emotion word while waiting for input.
func (c *Controller) SelectWord(word string) (wheel.Selection, error) {
	word = strings.TrimSpace(word)
	if word == "" {
		return wheel.Selection{}, errors.NewInvalidRequest("emotion word is empty")
	}
	c.mu.Lock()
	if c.state != AwaitingEmotionInput {
		st := c.state
		c.mu.Unlock()
		return wheel.Selection{}, errors.NewInvalidState("select", string(st))
	}
	sel := c.codec.ResolveFromWord(word)
	cycle := c.cycle
	c.mu.Unlock()

	c.emit(Event{Kind: EventSelection, State: AwaitingEmotionInput, Cycle: cycle, Selection: &sel})
	return sel, nil
}

// Submit persists the cycle's capture and starts the next countdown. A
// non-empty word overrides any wheel selection; with neither the submission
// is rejected and the state is unchanged. A storage failure loses this
// capture but the countdown still restarts.
func (c *Controller) Submit(ctx context.Context, word string) (int64, error) {
	c.mu.Lock()
	if c.state != AwaitingEmotionInput {
		st := c.state
		c.mu.Unlock()
		return 0, errors.NewInvalidState("submit", string(st))
	}
	if c.submitting {
		c.mu.Unlock()
		return 0, errors.NewInvalidState("submit", "saving")
	}

	var sel wheel.Selection
	if w := strings.TrimSpace(word); w != "" {
		sel = c.codec.ResolveFromWord(w)
	} else if s, ok := c.codec.Selection(); ok {
		sel = s
	} else {
		c.mu.Unlock()
		return 0, errors.NewInvalidRequest("an emotion is required: pick a point on the wheel or enter a word")
	}

	var video []byte
	var mime string
	if c.media != nil {
		video, mime = c.media.Data, c.media.MIME
	}
	draft := capture.DraftFromSelection(sel, c.transcript, video, mime)
	c.submitting = true
	cycle := c.cycle
	c.mu.Unlock()

	id, err := c.store.SaveCapture(ctx, draft)
	if err != nil && errors.As(err).Code == errors.ErrInternal {
		err = errors.NewStorage("save", err)
	}

	c.mu.Lock()
	c.submitting = false
	if c.cycle != cycle || c.state != AwaitingEmotionInput {
		c.mu.Unlock()
		c.logger.Debug("save finished after stop", "cycle", cycle, "id", id)
		return id, err
	}

	var events []Event
	if err != nil {
		c.logger.Error("capture lost", "cycle", cycle, "error", err)
		events = append(events, Event{Kind: EventError, State: AwaitingEmotionInput, Cycle: cycle, Err: err})
	} else {
		c.saved++
		c.logger.Info("capture saved", "cycle", cycle, "id", id, "emotion", sel.Emotion, "level", sel.Level)
		events = append(events, Event{Kind: EventSaved, State: AwaitingEmotionInput, Cycle: cycle, CaptureID: id, Selection: &sel})
	}
	events = append(events, c.beginCountdownLocked()...)
	c.mu.Unlock()

	c.emit(events...)
	return id, err
}

func (c *Controller) onCountdownTick(remaining time.Duration) {
	c.mu.Lock()
	if c.state != CountingDown {
		c.mu.Unlock()
		return
	}
	cycle := c.cycle
	c.mu.Unlock()

	c.emit(Event{Kind: EventCountdown, State: CountingDown, Cycle: cycle, Remaining: remaining})
}

func (c *Controller) onRecordingTick(remaining time.Duration) {
	c.mu.Lock()
	if c.state != Recording {
		c.mu.Unlock()
		return
	}
	cycle := c.cycle
	c.mu.Unlock()

	c.emit(Event{Kind: EventRecording, State: Recording, Cycle: cycle, Remaining: remaining})
}

// onCountdownExpire enters Recording: transcription and media capture are
// both started and then run independently.
func (c *Controller) onCountdownExpire() {
	c.mu.Lock()
	if c.state != CountingDown {
		c.mu.Unlock()
		return
	}
	ev := c.transitionLocked(Recording)
	ev.Remaining = c.recording.Interval()
	cycle := c.cycle
	ctx := c.runCtx
	c.transcribing = true
	c.mu.Unlock()
	c.emit(ev)

	trErr := c.transcriber.Start(ctx, func(u TranscriptUpdate) { c.onTranscript(cycle, u) })
	recErr := c.recorder.Start(ctx, c.recording.Interval())

	c.mu.Lock()
	if c.cycle != cycle || c.state != Recording {
		c.mu.Unlock()
		if recErr == nil {
			c.recorder.Abort()
		}
		if trErr == nil {
			c.transcriber.Stop()
		}
		return
	}

	var events []Event
	if trErr != nil {
		c.transcribing = false
		// Unavailability was already reported once at Start.
		if !errors.Is(trErr, errors.ErrTranscriptionUnavailable) {
			c.logger.Warn("transcription did not start", "cycle", cycle, "error", trErr)
			events = append(events, Event{Kind: EventWarning, State: Recording, Cycle: cycle, Err: trErr})
		}
	}

	if recErr != nil {
		stopTranscriber := c.transcribing
		c.transcribing = false
		if !errors.Is(recErr, errors.ErrCaptureStartFailed) {
			recErr = errors.NewCaptureStartFailed(recErr)
		}
		c.logger.Warn("capture cycle aborted", "cycle", cycle, "error", recErr)
		events = append(events, Event{Kind: EventError, State: Recording, Cycle: cycle, Err: recErr})
		events = append(events, c.beginCountdownLocked()...)
		c.mu.Unlock()

		if stopTranscriber {
			c.transcriber.Stop()
		}
		c.emit(events...)
		return
	}

	c.recorderActive = true
	c.recording.Start()
	c.mu.Unlock()
	c.emit(events...)
}

// onRecordingElapsed stops media and transcription and waits for input.
func (c *Controller) onRecordingElapsed() {
	c.mu.Lock()
	if c.state != Recording {
		c.mu.Unlock()
		return
	}
	cycle := c.cycle
	ctx := c.runCtx
	stopTranscriber := c.transcribing
	c.transcribing = false
	c.recorderActive = false
	c.mu.Unlock()

	media, err := c.recorder.Stop(ctx)
	var text string
	if stopTranscriber {
		text = c.transcriber.Stop()
	}

	c.mu.Lock()
	if c.cycle != cycle || c.state != Recording {
		c.mu.Unlock()
		return
	}
	var events []Event
	if err != nil {
		c.logger.Warn("recording lost", "cycle", cycle, "error", err)
		events = append(events, Event{Kind: EventWarning, State: Recording, Cycle: cycle, Err: err})
		media = nil
	}
	c.media = media
	if strings.TrimSpace(text) != "" {
		c.transcript = strings.TrimSpace(text)
	} else {
		c.transcript = c.currentTranscriptLocked()
	}
	c.finals, c.partial = nil, ""
	c.codec.Reset()
	ev := c.transitionLocked(AwaitingEmotionInput)
	ev.Transcript = c.transcript
	events = append(events, ev)
	c.mu.Unlock()

	c.emit(events...)
}

func (c *Controller) onTranscript(cycle uint64, u TranscriptUpdate) {
	text := strings.TrimSpace(u.Text)
	c.mu.Lock()
	if c.cycle != cycle || c.state != Recording {
		c.mu.Unlock()
		return
	}
	if u.Final {
		if text != "" {
			c.finals = append(c.finals, text)
		}
		c.partial = ""
	} else {
		c.partial = text
	}
	ev := Event{
		Kind:       EventTranscript,
		State:      Recording,
		Cycle:      cycle,
		Transcript: strings.Join(c.finals, " "),
		Partial:    c.partial,
	}
	c.mu.Unlock()

	c.emit(ev)
}

// beginCountdownLocked opens a new cycle in CountingDown.
func (c *Controller) beginCountdownLocked() []Event {
	c.cycle++
	c.resetCycleLocked()
	c.recording.Stop()
	c.countdown.Start()
	ev := c.transitionLocked(CountingDown)
	ev.Remaining = c.countdown.Interval()
	return []Event{ev}
}

func (c *Controller) resetCycleLocked() {
	c.finals = nil
	c.partial = ""
	c.transcript = ""
	c.media = nil
	c.codec.Reset()
}

func (c *Controller) transitionLocked(to State) Event {
	from := c.state
	c.state = to
	c.logger.Debug("session transition", "from", from, "to", to, "cycle", c.cycle)
	return Event{Kind: EventState, State: to, Cycle: c.cycle}
}

// currentTranscriptLocked joins the final segments and any pending partial.
func (c *Controller) currentTranscriptLocked() string {
	if c.state != Recording {
		return c.transcript
	}
	parts := append([]string(nil), c.finals...)
	if c.partial != "" {
		parts = append(parts, c.partial)
	}
	return strings.Join(parts, " ")
}

func (c *Controller) emit(events ...Event) {
	if len(events) == 0 {
		return
	}
	c.obsMu.RLock()
	observers := append([]Observer(nil), c.observers...)
	c.obsMu.RUnlock()

	for _, e := range events {
		for _, o := range observers {
			o.OnEvent(e)
		}
	}
}

type noTranscriber struct{}

func (noTranscriber) Available() error {
	return errors.NewTranscriptionUnavailable("no transcriber configured")
}

func (noTranscriber) Start(context.Context, func(TranscriptUpdate)) error {
	return errors.NewTranscriptionUnavailable("no transcriber configured")
}

func (noTranscriber) Stop() string { return "" }
