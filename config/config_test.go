package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"landscapes2/sketch"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestNewDefaultConfig_Valid(t *testing.T) {
	cfg := NewDefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, ":8888", cfg.App.HTTP.Address())
	assert.Equal(t, zerolog.InfoLevel, cfg.App.Level())
	assert.Equal(t, 72, cfg.Scene.PoolSize)
	assert.Equal(t, sketch.Tempo{PPQ: 15360, BPM: 97}, cfg.Song.Tempo())
	assert.Equal(t, sketch.DefaultBindings(), cfg.Song.Bindings())
}

func TestLoad_OverridesDefaultsAndExpandsEnv(t *testing.T) {
	t.Setenv("LANDSCAPES_OUT", "/tmp/renders")
	path := writeConfig(t, `
app:
  log_level: debug
capture:
  prefix: landscapes
  frame_rate: 30
  resolution: 1080p
output:
  dir: ${LANDSCAPES_OUT}
song:
  path: audio/LandscapesNo2.mid
`)

	cfg, err := LoadOrDefault(path)
	require.NoError(t, err)

	assert.Equal(t, zerolog.DebugLevel, cfg.App.Level())
	assert.Equal(t, "landscapes", cfg.Capture.Prefix)
	assert.Equal(t, 30, cfg.Capture.FrameRate)
	assert.Equal(t, "/tmp/renders", cfg.Output.Dir)
	assert.Equal(t, "audio/LandscapesNo2.mid", cfg.Song.Path)

	// untouched sections keep their defaults
	assert.Equal(t, 8888, cfg.App.HTTP.Port)
	assert.Equal(t, 97.0, cfg.Song.BPM)
	assert.Len(t, cfg.Song.Tracks, 2)

	w, h := cfg.Capture.Size()
	assert.Equal(t, 1920, w)
	assert.Equal(t, 1080, h)
}

func TestLoad_ValidationFails(t *testing.T) {
	path := writeConfig(t, `
capture:
  frame_rate: 0
`)
	_, err := LoadOrDefault(path)
	assert.ErrorContains(t, err, "config validation failed")

	path = writeConfig(t, `
song:
  tracks:
    - index: 0
      handler: track7
`)
	_, err = LoadOrDefault(path)
	assert.ErrorContains(t, err, "tracks[0]")

	path = writeConfig(t, `
app:
  log_level: loud
`)
	_, err = LoadOrDefault(path)
	assert.Error(t, err)
}

func TestLoadOrDefault_MissingFile(t *testing.T) {
	_, err := LoadOrDefault(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorContains(t, err, "not found")

	cfg, err := LoadOrDefault("")
	require.NoError(t, err)
	assert.Equal(t, NewDefaultConfig(), cfg)
}

func TestLoad_BadYAML(t *testing.T) {
	var cfg Config
	err := Load(writeConfig(t, "capture: [\n"), &cfg)
	assert.ErrorContains(t, err, "failed to parse")
}

func TestCaptureConfig_Size(t *testing.T) {
	c := CaptureConfig{Resolution: "360p"}
	w, h := c.Size()
	assert.Equal(t, 640, w)
	assert.Equal(t, 360, h)

	c = CaptureConfig{Resolution: "480p", Width: 800, Height: 800}
	w, h = c.Size()
	assert.Equal(t, 800, w)
	assert.Equal(t, 800, h)

	c = CaptureConfig{}
	w, h = c.Size()
	assert.Equal(t, 1280, w)
	assert.Equal(t, 720, h)
}

func TestCaptureConfig_ResolutionIgnoresCase(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Capture.Resolution = "1080P"
	require.NoError(t, cfg.Validate())
	w, h := cfg.Capture.Size()
	assert.Equal(t, 1920, w)
	assert.Equal(t, 1080, h)

	cfg.Capture.Resolution = "4k"
	assert.ErrorContains(t, cfg.Validate(), "unknown resolution")
}

func TestCaptureConfig_Frames(t *testing.T) {
	c := CaptureConfig{FrameRate: 60}
	assert.Equal(t, 0, c.Frames(0))
	assert.Equal(t, 121, c.Frames(2.01))

	c.DurationSeconds = 1.5
	assert.Equal(t, 90, c.Frames(2.01))

	c.TotalFrames = 10
	assert.Equal(t, 10, c.Frames(2.01))
}

func TestCaptureConfig_Options(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Capture.Overlay = true
	opts := cfg.Capture.Options(1)

	assert.Equal(t, "capture", opts.Prefix)
	assert.True(t, opts.Enabled)
	assert.Equal(t, 60, opts.TotalFrames)
	assert.Equal(t, 1280, opts.Width)
	assert.True(t, opts.Overlay)
	require.NoError(t, opts.Validate())
}
