package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Config holds application configuration.
type Config struct {
	// IntervalSeconds is the countdown between two capture cycles.
	IntervalSeconds int `json:"interval_seconds"`

	// RecordingSeconds is the fixed length of one media capture.
	RecordingSeconds int `json:"recording_seconds"`

	// TickMillis is the display refresh resolution of the countdown.
	// It does not influence when captures happen.
	TickMillis int `json:"tick_millis"`

	// WheelRadius is the maximum radius of the emotion wheel in pointer units.
	WheelRadius float64 `json:"wheel_radius"`

	// VideoDevice is the capture device handed to ffmpeg (v4l2 on Linux).
	VideoDevice string `json:"video_device"`

	// AudioDevice is the ALSA input used for both the recording and transcription.
	AudioDevice string `json:"audio_device"`

	// FFmpegPath is the ffmpeg binary used for media capture.
	FFmpegPath string `json:"ffmpeg_path"`

	// TranscriptionURL is the base URL of the speech-to-text service.
	// Empty disables transcription (captures keep an empty transcript).
	TranscriptionURL string `json:"transcription_url,omitempty"`

	// TranscriptionSegmentSeconds is the audio chunk length posted to the
	// transcription service while a recording is running.
	TranscriptionSegmentSeconds int `json:"transcription_segment_seconds"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `json:"log_level"`

	// LogFormat is "text" or "json".
	LogFormat string `json:"log_format"`

	// WebBind and WebPort control the read-only web viewer.
	WebBind string `json:"web_bind"`
	WebPort int    `json:"web_port"`

	// AllowedPaths is an allowlist of directories for import/export operations.
	// Paths outside <home>/exports require either being in this list or AllowUnsafePaths=true.
	// Paths should be absolute (relative paths are ignored).
	AllowedPaths []string `json:"allowed_paths,omitempty"`

	// AllowUnsafePaths disables directory restrictions for import/export.
	// Symlink and extension checks still apply.
	AllowUnsafePaths bool `json:"allow_unsafe_paths,omitempty"`

	// DBMaxOpenConns limits the maximum number of open database connections.
	// 0 means use sql.DB default (unlimited).
	DBMaxOpenConns int `json:"db_max_open_conns,omitempty"`

	// DBMaxIdleConns limits the maximum number of idle database connections.
	DBMaxIdleConns int `json:"db_max_idle_conns,omitempty"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	DisabledTools []string `json:"disabled_tools,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		IntervalSeconds:             300,
		RecordingSeconds:            30,
		TickMillis:                  100,
		WheelRadius:                 140,
		VideoDevice:                 "/dev/video0",
		AudioDevice:                 "default",
		FFmpegPath:                  "ffmpeg",
		TranscriptionSegmentSeconds: 5,
		LogLevel:                    "info",
		LogFormat:                   "text",
		WebBind:                     "127.0.0.1",
		WebPort:                     7373,
	}
}

// Load loads configuration from baseDir/config.json, then applies
// MOODTRACE_* environment overrides.
// Returns default config if the file doesn't exist.
func Load(baseDir string) (*Config, error) {
	cfg, err := loadFile(filepath.Join(baseDir, "config.json"))
	if err != nil {
		return nil, err
	}
	ApplyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overlays environment variables onto cfg.
func ApplyEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("MOODTRACE_TRANSCRIPTION_URL")); v != "" {
		cfg.TranscriptionURL = v
	}
	if v := strings.TrimSpace(os.Getenv("MOODTRACE_LOG_LEVEL")); v != "" {
		cfg.LogLevel = v
	}
	if v := strings.TrimSpace(os.Getenv("MOODTRACE_FFMPEG")); v != "" {
		cfg.FFmpegPath = v
	}
}

// Validate rejects values that would break the session timing.
func (c *Config) Validate() error {
	if c.IntervalSeconds <= 0 {
		return fmt.Errorf("interval_seconds must be positive, got %d", c.IntervalSeconds)
	}
	if c.RecordingSeconds <= 0 {
		return fmt.Errorf("recording_seconds must be positive, got %d", c.RecordingSeconds)
	}
	if c.TickMillis <= 0 || c.TickMillis > 1000 {
		return fmt.Errorf("tick_millis must be within 1..1000, got %d", c.TickMillis)
	}
	if c.WheelRadius <= 0 {
		return fmt.Errorf("wheel_radius must be positive, got %v", c.WheelRadius)
	}
	return nil
}

// Interval returns the countdown between captures.
func (c *Config) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}

// RecordingDuration returns the fixed media capture length.
func (c *Config) RecordingDuration() time.Duration {
	return time.Duration(c.RecordingSeconds) * time.Second
}

// TickResolution returns the countdown display refresh period.
func (c *Config) TickResolution() time.Duration {
	return time.Duration(c.TickMillis) * time.Millisecond
}

// SegmentDuration returns the transcription chunk length.
func (c *Config) SegmentDuration() time.Duration {
	return time.Duration(c.TranscriptionSegmentSeconds) * time.Second
}

// loadFileRaw loads configuration from a specific file path.
// Returns zero-valued config if the file doesn't exist (not defaults).
func loadFileRaw(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadFile loads configuration from a specific file path.
// Returns default config if the file doesn't exist.
func loadFile(configPath string) (*Config, error) {
	cfg, err := loadFileRaw(configPath)
	if err != nil {
		return nil, err
	}
	return Merge(DefaultConfig(), cfg), nil
}

// Merge combines base and overlay configs.
// Overlay values take precedence for scalars; arrays are merged and deduplicated.
func Merge(base, overlay *Config) *Config {
	result := &Config{}

	result.IntervalSeconds = pickInt(overlay.IntervalSeconds, base.IntervalSeconds)
	result.RecordingSeconds = pickInt(overlay.RecordingSeconds, base.RecordingSeconds)
	result.TickMillis = pickInt(overlay.TickMillis, base.TickMillis)
	result.TranscriptionSegmentSeconds = pickInt(overlay.TranscriptionSegmentSeconds, base.TranscriptionSegmentSeconds)
	result.WebPort = pickInt(overlay.WebPort, base.WebPort)
	result.DBMaxOpenConns = pickInt(overlay.DBMaxOpenConns, base.DBMaxOpenConns)
	result.DBMaxIdleConns = pickInt(overlay.DBMaxIdleConns, base.DBMaxIdleConns)

	result.WheelRadius = overlay.WheelRadius
	if result.WheelRadius == 0 {
		result.WheelRadius = base.WheelRadius
	}

	result.VideoDevice = pickString(overlay.VideoDevice, base.VideoDevice)
	result.AudioDevice = pickString(overlay.AudioDevice, base.AudioDevice)
	result.FFmpegPath = pickString(overlay.FFmpegPath, base.FFmpegPath)
	result.TranscriptionURL = pickString(overlay.TranscriptionURL, base.TranscriptionURL)
	result.LogLevel = pickString(overlay.LogLevel, base.LogLevel)
	result.LogFormat = pickString(overlay.LogFormat, base.LogFormat)
	result.WebBind = pickString(overlay.WebBind, base.WebBind)

	// Booleans: overlay wins if true, else base
	result.AllowUnsafePaths = base.AllowUnsafePaths || overlay.AllowUnsafePaths

	// Arrays: merge and deduplicate
	result.AllowedPaths = mergeStringSlice(base.AllowedPaths, overlay.AllowedPaths)
	result.DisabledTools = mergeStringSlice(base.DisabledTools, overlay.DisabledTools)

	return result
}

func pickInt(overlay, base int) int {
	if overlay != 0 {
		return overlay
	}
	return base
}

func pickString(overlay, base string) string {
	if strings.TrimSpace(overlay) != "" {
		return strings.TrimSpace(overlay)
	}
	return base
}

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, s := range a {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}
	for _, s := range b {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}

// HomeEnv overrides the data directory.
const HomeEnv = "MOODTRACE_HOME"

// HomeDir returns the data directory: $MOODTRACE_HOME, or ~/.moodtrace.
func HomeDir() (string, error) {
	if v := strings.TrimSpace(os.Getenv(HomeEnv)); v != "" {
		return filepath.Abs(v)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".moodtrace"), nil
}
