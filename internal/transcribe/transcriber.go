// Package transcribe provides speech-to-text for recordings: a segmenting
// HTTP transcriber, and a stand-in for hosts without one.
package transcribe

import (
	"context"
	"log/slog"
	"maps"
	"os"
	"os/exec"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/hpungsan/moodtrace/internal/config"
	"github.com/hpungsan/moodtrace/internal/errors"
	"github.com/hpungsan/moodtrace/internal/logging"
	"github.com/hpungsan/moodtrace/internal/session"
)

// Unavailable is the transcriber used when no service is configured. The
// recording still runs; transcripts stay empty.
type Unavailable struct {
	Reason string
}

var _ session.Transcriber = Unavailable{}

// Available reports TRANSCRIPTION_UNAVAILABLE.
func (u Unavailable) Available() error {
	return errors.NewTranscriptionUnavailable(u.Reason)
}

// Start reports TRANSCRIPTION_UNAVAILABLE.
func (u Unavailable) Start(context.Context, func(session.TranscriptUpdate)) error {
	return u.Available()
}

// Stop returns an empty transcript.
func (Unavailable) Stop() string { return "" }

// HTTPTranscriber streams the microphone to an ASR service one segment at a
// time. Segments are recorded back to back while earlier ones are being
// transcribed; transcribed segments are pushed as final updates in recording
// order, whatever order the service answers in.
type HTTPTranscriber struct {
	client *Client
	source SegmentSource
	ffmpeg string
	logger *slog.Logger

	// emitMu keeps updates from concurrent uploads in sequence.
	emitMu sync.Mutex

	mu      sync.Mutex
	gen     uint64
	cancel  context.CancelFunc
	done    map[int]string // finished segments by sequence number; failures are ""
	next    int            // lowest sequence number not yet emitted
	pending int
}

var _ session.Transcriber = (*HTTPTranscriber)(nil)

// NewHTTP returns a transcriber posting segments from source to client.
// ffmpeg, when set, must be on PATH for Available to succeed.
func NewHTTP(client *Client, source SegmentSource, ffmpeg string, logger *slog.Logger) *HTTPTranscriber {
	if logger == nil {
		logger = logging.Discard()
	}
	return &HTTPTranscriber{client: client, source: source, ffmpeg: ffmpeg, logger: logger}
}

// FromConfig builds the transcriber for cfg: HTTP when a transcription URL
// is configured, Unavailable otherwise.
func FromConfig(cfg *config.Config, logger *slog.Logger) session.Transcriber {
	if strings.TrimSpace(cfg.TranscriptionURL) == "" {
		return Unavailable{Reason: "no transcription_url configured"}
	}
	source := &FFmpegSegments{
		FFmpegPath:  cfg.FFmpegPath,
		AudioDevice: cfg.AudioDevice,
		Length:      cfg.SegmentDuration(),
		TempDir:     os.TempDir(),
	}
	return NewHTTP(NewClient(cfg.TranscriptionURL, nil), source, cfg.FFmpegPath, logger)
}

// Available checks that the audio segmenter can run.
func (t *HTTPTranscriber) Available() error {
	if t.ffmpeg != "" {
		if _, err := exec.LookPath(t.ffmpeg); err != nil {
			return errors.NewTranscriptionUnavailable("ffmpeg not found")
		}
	}
	return nil
}

// Start begins the segment loop.
func (t *HTTPTranscriber) Start(ctx context.Context, onUpdate func(session.TranscriptUpdate)) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancel != nil {
		t.cancel()
	}
	t.gen++
	t.done = make(map[int]string)
	t.next = 0
	t.pending = 0

	loopCtx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	go t.loop(loopCtx, t.gen, onUpdate)
	return nil
}

// Stop cancels recording and any in-flight uploads and returns the text
// transcribed so far. It never waits for the current utterance.
func (t *HTTPTranscriber) Stop() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
	t.gen++
	if t.pending > 0 {
		t.logger.Debug("transcription stopped with segments in flight", "pending", t.pending)
	}
	return t.textLocked()
}

// textLocked joins every finished segment in sequence order, including ones
// recorded after a segment that is still in flight.
func (t *HTTPTranscriber) textLocked() string {
	seqs := slices.Sorted(maps.Keys(t.done))
	parts := make([]string, 0, len(seqs))
	for _, seq := range seqs {
		if text := t.done[seq]; text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " ")
}

func (t *HTTPTranscriber) loop(ctx context.Context, gen uint64, onUpdate func(session.TranscriptUpdate)) {
	var wg sync.WaitGroup
	defer wg.Wait()

	// seq counts delivered segments only, so the emit cursor never waits on
	// a segment that was never recorded.
	seq := 0
	for ctx.Err() == nil {
		path, err := t.source.Next(ctx)
		if err != nil {
			if ctx.Err() == nil {
				t.logger.Warn("audio segment failed", "error", err)
				// Avoid spinning on a persistently failing device.
				select {
				case <-ctx.Done():
				case <-time.After(time.Second):
				}
			}
			continue
		}

		t.mu.Lock()
		t.pending++
		t.mu.Unlock()

		wg.Add(1)
		go func(seq int) {
			defer wg.Done()
			defer os.Remove(path)
			t.transcribe(ctx, gen, seq, path, onUpdate)
		}(seq)
		seq++
	}
}

// transcribe posts one segment and emits every update that is now contiguous
// with what was already emitted. A result that arrives after Stop is dropped.
func (t *HTTPTranscriber) transcribe(ctx context.Context, gen uint64, seq int, path string, onUpdate func(session.TranscriptUpdate)) {
	resp, err := t.client.Transcribe(ctx, path)

	var text string
	if err == nil {
		text = resp.Text()
	}

	t.emitMu.Lock()
	defer t.emitMu.Unlock()

	t.mu.Lock()
	t.pending--
	if gen != t.gen {
		t.mu.Unlock()
		return
	}
	if err != nil {
		t.logger.Warn("segment transcription failed", "segment", seq, "error", err)
	}
	t.done[seq] = text

	var ready []string
	for {
		next, ok := t.done[t.next]
		if !ok {
			break
		}
		t.next++
		if next != "" {
			ready = append(ready, next)
		}
	}
	t.mu.Unlock()

	if onUpdate == nil {
		return
	}
	for _, r := range ready {
		onUpdate(session.TranscriptUpdate{Text: r, Final: true})
	}
}
