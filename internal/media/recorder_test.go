package media

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hpungsan/moodtrace/internal/errors"
)

// fakeFFmpeg writes a shell script standing in for ffmpeg.
func fakeFFmpeg(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script stand-in requires a unix shell")
	}
	path := filepath.Join(t.TempDir(), "ffmpeg")
	script := "#!/bin/sh\nfor last; do :; done\n" + body + "\n"
	require.NoError(t, os.WriteFile(path, []byte(script), 0755))
	return path
}

func newRecorder(t *testing.T, ffmpeg string) *FFmpegRecorder {
	t.Helper()
	device := filepath.Join(t.TempDir(), "video0")
	require.NoError(t, os.WriteFile(device, nil, 0600))
	return NewFFmpegRecorder(Options{
		FFmpegPath:  ffmpeg,
		VideoDevice: device,
		TempDir:     t.TempDir(),
		StartGrace:  20 * time.Millisecond,
		StopGrace:   2 * time.Second,
	})
}

func TestRecorder_RecordsClip(t *testing.T) {
	rec := newRecorder(t, fakeFFmpeg(t, `printf 'webm-bytes' > "$last"; sleep 0.1`))
	ctx := context.Background()

	require.NoError(t, rec.Acquire(ctx))
	require.NoError(t, rec.Start(ctx, 30*time.Second))

	media, err := rec.Stop(ctx)
	require.NoError(t, err)
	assert.Equal(t, "webm-bytes", string(media.Data))
	assert.Equal(t, MIME, media.MIME)

	entries, err := os.ReadDir(rec.opts.TempDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "temp clip removed")
	require.NoError(t, rec.Release())
}

func TestRecorder_StartFailure(t *testing.T) {
	rec := newRecorder(t, fakeFFmpeg(t, `echo "Device or resource busy" >&2; exit 1`))
	ctx := context.Background()
	require.NoError(t, rec.Acquire(ctx))

	err := rec.Start(ctx, time.Second)
	require.True(t, errors.Is(err, errors.ErrCaptureStartFailed))
	assert.Contains(t, err.Error(), "busy")
}

func TestRecorder_StartRequiresAcquire(t *testing.T) {
	rec := newRecorder(t, fakeFFmpeg(t, `sleep 1`))
	err := rec.Start(context.Background(), time.Second)
	assert.True(t, errors.Is(err, errors.ErrCaptureStartFailed))
}

func TestRecorder_AbortKillsProcess(t *testing.T) {
	rec := newRecorder(t, fakeFFmpeg(t, `printf 'x' > "$last"; sleep 30`))
	ctx := context.Background()
	require.NoError(t, rec.Acquire(ctx))
	require.NoError(t, rec.Start(ctx, 30*time.Second))

	done := make(chan struct{})
	go func() {
		rec.Abort()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Abort did not return")
	}

	_, err := rec.Stop(ctx)
	assert.Error(t, err, "nothing left to stop")
}

func TestRecorder_AcquireMissingDevice(t *testing.T) {
	rec := NewFFmpegRecorder(Options{
		FFmpegPath:  fakeFFmpeg(t, `exit 0`),
		VideoDevice: filepath.Join(t.TempDir(), "absent"),
	})
	err := rec.Acquire(context.Background())
	if runtime.GOOS == "linux" {
		assert.True(t, errors.Is(err, errors.ErrPermissionDenied))
	}
}

func TestRecorder_AcquireMissingFFmpeg(t *testing.T) {
	rec := NewFFmpegRecorder(Options{FFmpegPath: filepath.Join(t.TempDir(), "no-ffmpeg")})
	err := rec.Acquire(context.Background())
	assert.True(t, errors.Is(err, errors.ErrPermissionDenied))
}

func TestRecordArgs(t *testing.T) {
	args := recordArgs(Options{VideoDevice: "/dev/video0", AudioDevice: "default"}, 30*time.Second, "/tmp/out.webm")
	assert.Contains(t, args, "30.000")
	assert.Equal(t, "/tmp/out.webm", args[len(args)-1])
}

func TestInputFormats(t *testing.T) {
	cases := map[string][2]string{
		"linux":   {"v4l2", "alsa"},
		"freebsd": {"v4l2", "alsa"},
		"darwin":  {"avfoundation", "avfoundation"},
		"windows": {"dshow", "dshow"},
	}
	for goos, want := range cases {
		video, audio := InputFormats(goos)
		assert.Equal(t, want[0], video, goos)
		assert.Equal(t, want[1], audio, goos)
	}

	video, audio := InputFormats(runtime.GOOS)
	args := recordArgs(Options{VideoDevice: "cam", AudioDevice: "mic"}, time.Second, "out.webm")
	assert.Contains(t, strings.Join(args, " "), "-f "+video+" -i cam -f "+audio+" -i mic")
}
