package transcribe

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/hpungsan/moodtrace/internal/media"
)

// SegmentSource yields consecutive short audio files from the microphone.
// Next blocks for one segment; the caller removes the returned file.
type SegmentSource interface {
	Next(ctx context.Context) (string, error)
}

// FFmpegSegments records mono 16kHz WAV segments with ffmpeg.
type FFmpegSegments struct {
	FFmpegPath  string
	AudioDevice string
	Length      time.Duration
	TempDir     string
}

// Next records one segment of Length.
func (s *FFmpegSegments) Next(ctx context.Context) (string, error) {
	tmp, err := os.CreateTemp(s.TempDir, "moodtrace-seg-*.wav")
	if err != nil {
		return "", err
	}
	dest := tmp.Name()
	tmp.Close()

	cmd := exec.CommandContext(ctx, s.FFmpegPath, s.args(runtime.GOOS, dest)...) //nolint:gosec
	cmd.WaitDelay = time.Second
	if output, err := cmd.CombinedOutput(); err != nil {
		os.Remove(dest)
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("ffmpeg segment: %w: %s", err, strings.TrimSpace(string(output)))
	}
	return dest, nil
}

func (s *FFmpegSegments) args(goos, dest string) []string {
	_, audioFormat := media.InputFormats(goos)
	return []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-f", audioFormat,
		"-i", s.AudioDevice,
		"-t", fmt.Sprintf("%.3f", s.Length.Seconds()),
		"-ac", "1",
		"-ar", "16000",
		"-c:a", "pcm_s16le",
		dest,
	}
}
