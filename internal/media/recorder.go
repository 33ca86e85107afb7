// Package media records fixed-length audio+video clips with ffmpeg.
package media

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/hpungsan/moodtrace/internal/config"
	"github.com/hpungsan/moodtrace/internal/errors"
	"github.com/hpungsan/moodtrace/internal/logging"
	"github.com/hpungsan/moodtrace/internal/session"
)

// MIME is the container written by the recorder.
const MIME = "video/webm"

// Options configures an FFmpegRecorder.
type Options struct {
	FFmpegPath  string
	VideoDevice string
	AudioDevice string
	// TempDir holds the clip while it is being written. Default: os.TempDir().
	TempDir string
	// StartGrace is how long ffmpeg must survive before a recording counts
	// as started.
	StartGrace time.Duration
	// StopGrace bounds the wait for ffmpeg to finish the file on Stop.
	StopGrace time.Duration
	Logger    *slog.Logger
}

// OptionsFromConfig maps the media settings of cfg.
func OptionsFromConfig(cfg *config.Config, logger *slog.Logger) Options {
	return Options{
		FFmpegPath:  cfg.FFmpegPath,
		VideoDevice: cfg.VideoDevice,
		AudioDevice: cfg.AudioDevice,
		Logger:      logger,
	}
}

// FFmpegRecorder implements session.Recorder by running one ffmpeg process
// per recording.
type FFmpegRecorder struct {
	opts Options

	mu       sync.Mutex
	acquired bool
	run      *recording
}

type recording struct {
	cmd    *exec.Cmd
	cancel context.CancelFunc
	path   string
	stderr *bytes.Buffer
	done   chan error
}

var _ session.Recorder = (*FFmpegRecorder)(nil)

// NewFFmpegRecorder returns a recorder with defaults applied.
func NewFFmpegRecorder(opts Options) *FFmpegRecorder {
	if opts.FFmpegPath == "" {
		opts.FFmpegPath = "ffmpeg"
	}
	if opts.AudioDevice == "" {
		opts.AudioDevice = "default"
	}
	if opts.StartGrace <= 0 {
		opts.StartGrace = 500 * time.Millisecond
	}
	if opts.StopGrace <= 0 {
		opts.StopGrace = 5 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	return &FFmpegRecorder{opts: opts}
}

// Acquire checks that ffmpeg is installed and the camera can be opened.
func (r *FFmpegRecorder) Acquire(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return errors.NewPermissionDenied("camera/microphone", err)
	}
	if _, err := exec.LookPath(r.opts.FFmpegPath); err != nil {
		return errors.NewPermissionDenied("ffmpeg", err)
	}
	if r.opts.VideoDevice == "" {
		return errors.NewPermissionDenied("camera", fmt.Errorf("no video device configured"))
	}
	if runtime.GOOS == "linux" {
		f, err := os.OpenFile(r.opts.VideoDevice, os.O_RDONLY, 0)
		if err != nil {
			return errors.NewPermissionDenied("camera", err)
		}
		f.Close()
	}

	r.mu.Lock()
	r.acquired = true
	r.mu.Unlock()
	r.opts.Logger.Debug("devices acquired", "video", r.opts.VideoDevice, "audio", r.opts.AudioDevice)
	return nil
}

// Start launches ffmpeg for a clip of at most d. ffmpeg exiting within
// StartGrace is reported as CAPTURE_START_FAILED.
func (r *FFmpegRecorder) Start(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.acquired {
		return errors.NewCaptureStartFailed(fmt.Errorf("devices not acquired"))
	}
	if r.run != nil {
		return errors.NewCaptureStartFailed(fmt.Errorf("recording already running"))
	}

	tmp, err := os.CreateTemp(r.opts.TempDir, "moodtrace-*.webm")
	if err != nil {
		return errors.NewCaptureStartFailed(err)
	}
	path := tmp.Name()
	tmp.Close()

	cmdCtx, cancel := context.WithCancel(ctx)
	cmd := exec.CommandContext(cmdCtx, r.opts.FFmpegPath, recordArgs(r.opts, d, path)...) //nolint:gosec
	stderr := &bytes.Buffer{}
	cmd.Stderr = stderr
	cmd.WaitDelay = time.Second
	if err := cmd.Start(); err != nil {
		cancel()
		os.Remove(path)
		return errors.NewCaptureStartFailed(err)
	}

	run := &recording{cmd: cmd, cancel: cancel, path: path, stderr: stderr, done: make(chan error, 1)}
	go func() { run.done <- cmd.Wait() }()

	select {
	case err := <-run.done:
		cancel()
		os.Remove(path)
		if err == nil {
			err = fmt.Errorf("ffmpeg exited immediately")
		}
		return errors.NewCaptureStartFailed(fmt.Errorf("%w: %s", err, strings.TrimSpace(stderr.String())))
	case <-time.After(r.opts.StartGrace):
	}

	r.run = run
	r.opts.Logger.Debug("recording started", "path", path, "duration", d)
	return nil
}

// Stop waits for ffmpeg to finish the clip (interrupting it after StopGrace)
// and returns the file contents.
func (r *FFmpegRecorder) Stop(ctx context.Context) (*session.Media, error) {
	r.mu.Lock()
	run := r.run
	r.run = nil
	r.mu.Unlock()
	if run == nil {
		return nil, fmt.Errorf("no recording running")
	}
	defer os.Remove(run.path)
	defer run.cancel()

	var waitErr error
	select {
	case waitErr = <-run.done:
	case <-time.After(r.opts.StopGrace):
		// Interrupt lets ffmpeg write the container trailer.
		if err := run.cmd.Process.Signal(os.Interrupt); err != nil {
			run.cancel()
		}
		select {
		case waitErr = <-run.done:
		case <-time.After(r.opts.StopGrace):
			run.cancel()
			waitErr = <-run.done
		}
	case <-ctx.Done():
		run.cancel()
		<-run.done
		return nil, ctx.Err()
	}

	data, err := os.ReadFile(run.path)
	if err != nil {
		return nil, fmt.Errorf("read recording: %w", err)
	}
	if len(data) == 0 {
		if waitErr != nil {
			return nil, fmt.Errorf("ffmpeg record: %w: %s", waitErr, strings.TrimSpace(run.stderr.String()))
		}
		return nil, fmt.Errorf("ffmpeg produced an empty recording")
	}
	if waitErr != nil {
		r.opts.Logger.Warn("ffmpeg exited with error, keeping partial clip", "error", waitErr)
	}
	return &session.Media{Data: data, MIME: MIME}, nil
}

// Abort kills a running recording and discards it.
func (r *FFmpegRecorder) Abort() {
	r.mu.Lock()
	run := r.run
	r.run = nil
	r.mu.Unlock()
	if run == nil {
		return
	}
	run.cancel()
	<-run.done
	os.Remove(run.path)
	r.opts.Logger.Debug("recording aborted")
}

// Release aborts anything still running and gives the devices back.
func (r *FFmpegRecorder) Release() error {
	r.Abort()
	r.mu.Lock()
	r.acquired = false
	r.mu.Unlock()
	return nil
}

// InputFormats returns the ffmpeg capture formats for camera and microphone
// on goos.
func InputFormats(goos string) (video, audio string) {
	switch goos {
	case "darwin":
		return "avfoundation", "avfoundation"
	case "windows":
		return "dshow", "dshow"
	default:
		return "v4l2", "alsa"
	}
}

func recordArgs(opts Options, d time.Duration, dest string) []string {
	videoFormat, audioFormat := InputFormats(runtime.GOOS)
	return []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-f", videoFormat, "-i", opts.VideoDevice,
		"-f", audioFormat, "-i", opts.AudioDevice,
		"-t", fmt.Sprintf("%.3f", d.Seconds()),
		"-c:v", "libvpx",
		"-deadline", "realtime",
		"-b:v", "1M",
		"-c:a", "libopus",
		"-f", "webm",
		dest,
	}
}
