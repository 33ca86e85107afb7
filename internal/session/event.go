package session

import (
	"time"

	"github.com/hpungsan/moodtrace/internal/wheel"
)

// State is the controller's position in the capture cycle.
type State string

const (
	Idle                 State = "Idle"
	CountingDown         State = "CountingDown"
	Recording            State = "Recording"
	AwaitingEmotionInput State = "AwaitingEmotionInput"
	Paused               State = "Paused"
	Stopped              State = "Stopped"
)

// EventKind identifies an Event.
type EventKind string

const (
	EventState      EventKind = "state"
	EventCountdown  EventKind = "countdown"
	EventRecording  EventKind = "recording"
	EventTranscript EventKind = "transcript"
	EventSelection  EventKind = "selection"
	EventSaved      EventKind = "saved"
	EventWarning    EventKind = "warning"
	EventError      EventKind = "error"
)

// Event is pushed to observers. Only the fields relevant to Kind are set.
type Event struct {
	Kind  EventKind
	State State
	Cycle uint64

	// Remaining is the time left on the countdown or recording.
	Remaining time.Duration

	// Transcript is the text accumulated so far in this cycle.
	Transcript string
	// Partial is the latest non-final hypothesis, if any.
	Partial string

	Selection *wheel.Selection
	CaptureID int64
	Err       error
}

// Snapshot is a read-only view of the controller.
type Snapshot struct {
	State      State
	Cycle      uint64
	Remaining  time.Duration
	Transcript string
	Selection  *wheel.Selection
	HasMedia   bool
	Saved      int
}
