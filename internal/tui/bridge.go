package tui

import (
	"sync/atomic"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/hpungsan/moodtrace/internal/session"
)

// Bridge forwards controller events to the bubbletea loop. It never blocks
// the controller: when the buffer is full the event is dropped and the model
// recovers from the next Snapshot.
type Bridge struct {
	ch      chan session.Event
	dropped atomic.Int64
}

// NewBridge returns a Bridge buffering up to size events.
func NewBridge(size int) *Bridge {
	if size <= 0 {
		size = 256
	}
	return &Bridge{ch: make(chan session.Event, size)}
}

// OnEvent implements session.Observer.
func (b *Bridge) OnEvent(e session.Event) {
	select {
	case b.ch <- e:
	default:
		b.dropped.Add(1)
	}
}

// Events returns the receive side consumed by the model.
func (b *Bridge) Events() <-chan session.Event { return b.ch }

// Dropped reports how many events did not fit into the buffer.
func (b *Bridge) Dropped() int64 { return b.dropped.Load() }

func waitForEvent(ch <-chan session.Event) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		e, ok := <-ch
		if !ok {
			return eventsClosedMsg{}
		}
		return eventMsg(e)
	}
}
