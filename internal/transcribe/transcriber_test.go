package transcribe

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hpungsan/moodtrace/internal/config"
	"github.com/hpungsan/moodtrace/internal/errors"
	"github.com/hpungsan/moodtrace/internal/media"
	"github.com/hpungsan/moodtrace/internal/session"
)

// listSource hands out n fake wav files, then blocks until cancelled. Each
// file body is "RIFF" followed by its index.
type listSource struct {
	dir  string
	mu   sync.Mutex
	n    int
	made int
}

func (s *listSource) Next(ctx context.Context) (string, error) {
	s.mu.Lock()
	if s.n == 0 {
		s.mu.Unlock()
		<-ctx.Done()
		return "", ctx.Err()
	}
	s.n--
	idx := s.made
	s.made++
	s.mu.Unlock()

	f, err := os.CreateTemp(s.dir, "seg-*.wav")
	if err != nil {
		return "", err
	}
	defer f.Close()
	_, err = fmt.Fprintf(f, "RIFF%d", idx)
	return f.Name(), err
}

func asrServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_Transcribe(t *testing.T) {
	srv := asrServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/transcribe", r.URL.Path)
		file, header, err := r.FormFile("file")
		if !assert.NoError(t, err) {
			return
		}
		defer file.Close()
		body, _ := io.ReadAll(file)
		assert.Equal(t, "RIFF", string(body[:4]))
		assert.Equal(t, "clip.wav", header.Filename)

		json.NewEncoder(w).Encode(Response{Segments: []Segment{{Text: " hello "}, {Text: "there"}}})
	})

	path := filepath.Join(t.TempDir(), "clip.wav")
	require.NoError(t, os.WriteFile(path, []byte("RIFF0000"), 0600))

	resp, err := NewClient(srv.URL+"/", nil).Transcribe(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "hello there", resp.Text())
}

func TestClient_ErrorStatus(t *testing.T) {
	srv := asrServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	})
	path := filepath.Join(t.TempDir(), "clip.wav")
	require.NoError(t, os.WriteFile(path, []byte("RIFF"), 0600))

	_, err := NewClient(srv.URL, nil).Transcribe(context.Background(), path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model not loaded")
}

// segmentIndex reads the index listSource wrote into the uploaded file.
func segmentIndex(t *testing.T, r *http.Request) string {
	t.Helper()
	file, _, err := r.FormFile("file")
	if err != nil {
		return ""
	}
	defer file.Close()
	body, _ := io.ReadAll(file)
	return strings.TrimPrefix(string(body), "RIFF")
}

func collectUpdates(t *testing.T, updates <-chan session.TranscriptUpdate, n int) []string {
	t.Helper()
	var got []string
	for i := 0; i < n; i++ {
		select {
		case u := <-updates:
			assert.True(t, u.Final)
			got = append(got, u.Text)
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for transcript update %d", i+1)
		}
	}
	return got
}

func TestHTTPTranscriber_StreamsFinalSegments(t *testing.T) {
	srv := asrServer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(Response{Segments: []Segment{{Text: "part" + segmentIndex(t, r)}}})
	})

	tr := NewHTTP(NewClient(srv.URL, nil), &listSource{dir: t.TempDir(), n: 2}, "", nil)
	require.NoError(t, tr.Available())

	updates := make(chan session.TranscriptUpdate, 4)
	require.NoError(t, tr.Start(context.Background(), func(u session.TranscriptUpdate) { updates <- u }))

	assert.Equal(t, []string{"part0", "part1"}, collectUpdates(t, updates, 2))
	assert.Equal(t, "part0 part1", tr.Stop())
}

func TestHTTPTranscriber_SlowFirstSegmentKeepsOrder(t *testing.T) {
	srv := asrServer(t, func(w http.ResponseWriter, r *http.Request) {
		text := "second"
		if segmentIndex(t, r) == "0" {
			time.Sleep(300 * time.Millisecond)
			text = "first"
		}
		json.NewEncoder(w).Encode(Response{Segments: []Segment{{Text: text}}})
	})

	tr := NewHTTP(NewClient(srv.URL, nil), &listSource{dir: t.TempDir(), n: 2}, "", nil)
	updates := make(chan session.TranscriptUpdate, 4)
	require.NoError(t, tr.Start(context.Background(), func(u session.TranscriptUpdate) { updates <- u }))

	assert.Equal(t, []string{"first", "second"}, collectUpdates(t, updates, 2))
	assert.Equal(t, "first second", tr.Stop())
}

func TestHTTPTranscriber_StopJoinsFinishedSegmentsInOrder(t *testing.T) {
	release := make(chan struct{})
	answered := make(chan struct{}, 2)
	srv := asrServer(t, func(w http.ResponseWriter, r *http.Request) {
		idx := segmentIndex(t, r)
		if idx == "0" {
			select {
			case <-release:
			case <-r.Context().Done():
				return
			}
		}
		json.NewEncoder(w).Encode(Response{Segments: []Segment{{Text: "seg" + idx}}})
		answered <- struct{}{}
	})
	defer close(release)

	tr := NewHTTP(NewClient(srv.URL, nil), &listSource{dir: t.TempDir(), n: 3}, "", nil)
	var mu sync.Mutex
	var updates []string
	require.NoError(t, tr.Start(context.Background(), func(u session.TranscriptUpdate) {
		mu.Lock()
		updates = append(updates, u.Text)
		mu.Unlock()
	}))

	for i := 0; i < 2; i++ {
		select {
		case <-answered:
		case <-time.After(5 * time.Second):
			t.Fatal("later segments never answered")
		}
	}
	// Segments 1 and 2 are finished but wait behind segment 0.
	require.Eventually(t, func() bool {
		tr.mu.Lock()
		defer tr.mu.Unlock()
		return len(tr.done) == 2
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	assert.Empty(t, updates)
	mu.Unlock()

	assert.Equal(t, "seg1 seg2", tr.Stop())
}

func TestHTTPTranscriber_StopDoesNotWaitAndDropsLateResults(t *testing.T) {
	release := make(chan struct{})
	received := make(chan struct{}, 1)
	srv := asrServer(t, func(w http.ResponseWriter, r *http.Request) {
		received <- struct{}{}
		select {
		case <-release:
		case <-r.Context().Done():
			return
		}
		json.NewEncoder(w).Encode(Response{Segments: []Segment{{Text: "too late"}}})
	})
	defer close(release)

	tr := NewHTTP(NewClient(srv.URL, nil), &listSource{dir: t.TempDir(), n: 1}, "", nil)
	var mu sync.Mutex
	var updates []session.TranscriptUpdate
	require.NoError(t, tr.Start(context.Background(), func(u session.TranscriptUpdate) {
		mu.Lock()
		updates = append(updates, u)
		mu.Unlock()
	}))

	select {
	case <-received:
	case <-time.After(5 * time.Second):
		t.Fatal("segment never posted")
	}

	stopped := make(chan string, 1)
	go func() { stopped <- tr.Stop() }()
	select {
	case text := <-stopped:
		assert.Empty(t, text)
	case <-time.After(time.Second):
		t.Fatal("Stop blocked on an in-flight segment")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Empty(t, updates)
}

func TestFFmpegSegments_ArgsFollowHostInputFormat(t *testing.T) {
	s := &FFmpegSegments{AudioDevice: "mic", Length: 4 * time.Second}
	for _, goos := range []string{"linux", "darwin", "windows"} {
		_, audio := media.InputFormats(goos)
		args := strings.Join(s.args(goos, "seg.wav"), " ")
		assert.Contains(t, args, "-f "+audio+" -i mic -t 4.000", goos)
		assert.True(t, strings.HasSuffix(args, " seg.wav"), goos)
	}
	assert.NotContains(t, strings.Join(s.args("darwin", "seg.wav"), " "), "alsa")
}

func TestUnavailable(t *testing.T) {
	u := Unavailable{Reason: "none"}
	assert.True(t, errors.Is(u.Available(), errors.ErrTranscriptionUnavailable))
	assert.True(t, errors.Is(u.Start(context.Background(), nil), errors.ErrTranscriptionUnavailable))
	assert.Empty(t, u.Stop())
}

func TestFromConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	_, ok := FromConfig(cfg, nil).(Unavailable)
	assert.True(t, ok)

	cfg.TranscriptionURL = "http://127.0.0.1:9000"
	_, ok = FromConfig(cfg, nil).(*HTTPTranscriber)
	assert.True(t, ok)
}
