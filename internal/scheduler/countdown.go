// Package scheduler drives the interval between capture cycles.
package scheduler

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/hpungsan/moodtrace/internal/clock"
)

// Defaults used when Options leave a field zero.
const (
	DefaultInterval = 5 * time.Minute
	DefaultTick     = 100 * time.Millisecond
)

// Options configures a Countdown.
type Options struct {
	Interval time.Duration
	// Tick is the display refresh period. It never moves the deadline.
	Tick time.Duration
	// OnTick receives the remaining time, computed from the deadline.
	OnTick func(remaining time.Duration)
	// OnExpire runs once per started countdown when the deadline is reached.
	OnExpire func()
}

type phase int

const (
	phaseIdle phase = iota
	phaseRunning
	phasePaused
)

// Countdown is a pausable one-shot deadline with periodic display ticks.
// Callbacks run without the countdown's lock held, so they may call back
// into the Countdown.
type Countdown struct {
	clock    clock.Clock
	interval time.Duration
	tick     time.Duration
	onTick   func(time.Duration)
	onExpire func()

	mu        sync.Mutex
	phase     phase
	deadline  time.Time
	remaining time.Duration
	expiry    clock.Timer
	ticker    clock.Timer
	gen       uint64
}

// New returns an idle Countdown.
func New(clk clock.Clock, opts Options) *Countdown {
	if clk == nil {
		clk = clock.Real{}
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Tick <= 0 {
		opts.Tick = DefaultTick
	}
	return &Countdown{
		clock:    clk,
		interval: opts.Interval,
		tick:     opts.Tick,
		onTick:   opts.OnTick,
		onExpire: opts.OnExpire,
	}
}

// Interval returns the configured full interval.
func (c *Countdown) Interval() time.Duration { return c.interval }

// Start begins a fresh countdown of the full interval, replacing any
// countdown already running or paused.
func (c *Countdown) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.runLocked(c.interval)
}

// Pause freezes the remaining time. It reports false when nothing is running.
func (c *Countdown) Pause() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase != phaseRunning {
		return false
	}
	c.remaining = c.remainingLocked()
	c.cancelLocked()
	c.phase = phasePaused
	return true
}

// Resume continues a paused countdown with deadline = now + frozen remaining.
// It reports false when the countdown is not paused.
func (c *Countdown) Resume() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase != phasePaused {
		return false
	}
	c.runLocked(c.remaining)
	return true
}

// Stop tears down every pending timer. No callback fires afterwards.
func (c *Countdown) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancelLocked()
	c.phase = phaseIdle
	c.remaining = 0
}

// Remaining reports the time left: computed from the deadline while running,
// frozen while paused, zero when idle.
func (c *Countdown) Remaining() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.phase {
	case phaseRunning:
		return c.remainingLocked()
	case phasePaused:
		return c.remaining
	default:
		return 0
	}
}

// Running reports whether a deadline is armed.
func (c *Countdown) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase == phaseRunning
}

// Paused reports whether the countdown is frozen.
func (c *Countdown) Paused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase == phasePaused
}

func (c *Countdown) runLocked(d time.Duration) {
	c.cancelLocked()
	c.phase = phaseRunning
	c.remaining = 0
	c.deadline = c.clock.Now().Add(d)
	gen := c.gen
	c.expiry = c.clock.AfterFunc(d, func() { c.fireExpiry(gen) })
	c.scheduleTickLocked(gen)
}

// cancelLocked invalidates every outstanding callback.
func (c *Countdown) cancelLocked() {
	c.gen++
	if c.expiry != nil {
		c.expiry.Stop()
		c.expiry = nil
	}
	if c.ticker != nil {
		c.ticker.Stop()
		c.ticker = nil
	}
}

func (c *Countdown) scheduleTickLocked(gen uint64) {
	c.ticker = c.clock.AfterFunc(c.tick, func() { c.fireTick(gen) })
}

func (c *Countdown) fireTick(gen uint64) {
	c.mu.Lock()
	if gen != c.gen || c.phase != phaseRunning {
		c.mu.Unlock()
		return
	}
	remaining := c.remainingLocked()
	if remaining > 0 {
		c.scheduleTickLocked(gen)
	} else {
		c.ticker = nil
	}
	onTick := c.onTick
	c.mu.Unlock()

	if onTick != nil {
		onTick(remaining)
	}
}

func (c *Countdown) fireExpiry(gen uint64) {
	c.mu.Lock()
	if gen != c.gen || c.phase != phaseRunning {
		c.mu.Unlock()
		return
	}
	c.cancelLocked()
	c.phase = phaseIdle
	onExpire := c.onExpire
	c.mu.Unlock()

	if onExpire != nil {
		onExpire()
	}
}

func (c *Countdown) remainingLocked() time.Duration {
	return max(c.deadline.Sub(c.clock.Now()), 0)
}

// FormatRemaining renders d as m:ss, rounding partial seconds up so the
// display reaches 0:00 only at the deadline.
func FormatRemaining(d time.Duration) string {
	if d <= 0 {
		return "0:00"
	}
	secs := int(math.Ceil(d.Seconds()))
	return fmt.Sprintf("%d:%02d", secs/60, secs%60)
}
