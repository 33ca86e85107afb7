package session

import (
	"context"
	"time"

	"github.com/hpungsan/moodtrace/internal/capture"
)

// Media is the output of one finished recording.
type Media struct {
	Data []byte
	MIME string
}

// Recorder is the camera+microphone capability.
type Recorder interface {
	// Acquire obtains the devices. A denial or missing device must be
	// reported as PERMISSION_DENIED.
	Acquire(ctx context.Context) error
	// Start begins a recording of at most d. Failing to initialize is
	// CAPTURE_START_FAILED.
	Start(ctx context.Context, d time.Duration) error
	// Stop ends the running recording and returns what was captured.
	Stop(ctx context.Context) (*Media, error)
	// Abort halts the running recording immediately and discards it.
	Abort()
	// Release gives the devices back.
	Release() error
}

// TranscriptUpdate is a piece of streamed speech text.
type TranscriptUpdate struct {
	Text  string
	Final bool
}

// Transcriber is the speech-to-text capability.
type Transcriber interface {
	// Available returns TRANSCRIPTION_UNAVAILABLE when the host cannot
	// transcribe.
	Available() error
	// Start begins transcribing. Updates may arrive on any goroutine until
	// Stop returns.
	Start(ctx context.Context, onUpdate func(TranscriptUpdate)) error
	// Stop ends transcription without waiting for the current utterance and
	// returns the accumulated final text.
	Stop() string
}

// CaptureStore persists submitted drafts.
type CaptureStore interface {
	SaveCapture(ctx context.Context, d *capture.Draft) (int64, error)
}

// Observer receives controller events. Implementations must not block and
// must not call back into the controller synchronously.
type Observer interface {
	OnEvent(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

// OnEvent calls f(e).
func (f ObserverFunc) OnEvent(e Event) { f(e) }
