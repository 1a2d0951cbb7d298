package config

import (
	"fmt"
	"math"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/rs/zerolog"

	"landscapes2/capture"
	"landscapes2/sketch"
)

type Config struct {
	App     AppConfig     `yaml:"app"`
	Capture CaptureConfig `yaml:"capture"`
	Output  OutputConfig  `yaml:"output"`
	Song    SongConfig    `yaml:"song"`
	Scene   SceneConfig   `yaml:"scene"`
}

func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return fmt.Errorf("app: %w", err)
	}
	if err := c.Capture.Validate(); err != nil {
		return fmt.Errorf("capture: %w", err)
	}
	if err := c.Output.Validate(); err != nil {
		return fmt.Errorf("output: %w", err)
	}
	if err := c.Song.Validate(); err != nil {
		return fmt.Errorf("song: %w", err)
	}
	if err := c.Scene.Validate(); err != nil {
		return fmt.Errorf("scene: %w", err)
	}
	return nil
}

type AppConfig struct {
	LogLevel string     `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

func (c *AppConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.LogLevel, validation.By(func(v any) error {
			_, err := zerolog.ParseLevel(v.(string))
			return err
		})),
	); err != nil {
		return err
	}
	return c.HTTP.Validate()
}

// Level is the parsed log level; unknown or empty levels mean info.
func (c *AppConfig) Level() zerolog.Level {
	lvl, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

type HTTPConfig struct {
	Port int `yaml:"port"`
}

func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// Resolution presets.
var resolutions = map[string][2]int{
	"1080p": {1920, 1080},
	"720p":  {1280, 720},
	"480p":  {854, 480},
	"360p":  {640, 360},
}

const defaultResolution = "720p"

type CaptureConfig struct {
	Prefix    string `yaml:"prefix"`
	Enabled   bool   `yaml:"enabled"`
	FrameRate int    `yaml:"frame_rate"`
	// TotalFrames wins over DurationSeconds; with neither set the length of
	// the song decides.
	TotalFrames     int     `yaml:"total_frames"`
	DurationSeconds float64 `yaml:"duration_seconds"`
	SampleRate      int     `yaml:"sample_rate"`
	Resolution      string  `yaml:"resolution"`
	Width           int     `yaml:"width"`
	Height          int     `yaml:"height"`
	Overlay         bool    `yaml:"overlay"`
	LogEvery        int     `yaml:"log_every"`
}

// knownResolution accepts an empty value or a preset name in any case, the
// same names Size understands.
func knownResolution(v any) error {
	name, _ := v.(string)
	if name == "" {
		return nil
	}
	if _, ok := resolutions[strings.ToLower(name)]; !ok {
		return fmt.Errorf("unknown resolution %q, want one of 1080p, 720p, 480p, 360p", name)
	}
	return nil
}

func (c *CaptureConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Prefix, validation.Required),
		validation.Field(&c.FrameRate, validation.Required, validation.Min(1)),
		validation.Field(&c.TotalFrames, validation.Min(0)),
		validation.Field(&c.DurationSeconds, validation.Min(0.0)),
		validation.Field(&c.SampleRate, validation.Min(0)),
		validation.Field(&c.Resolution, validation.By(knownResolution)),
		validation.Field(&c.Width, validation.Min(0)),
		validation.Field(&c.Height, validation.Min(0)),
		validation.Field(&c.LogEvery, validation.Min(0)),
	)
}

// Size returns the explicit width and height when both are set, otherwise
// the resolution preset.
func (c *CaptureConfig) Size() (int, int) {
	if c.Width > 0 && c.Height > 0 {
		return c.Width, c.Height
	}
	r, ok := resolutions[strings.ToLower(c.Resolution)]
	if !ok {
		r = resolutions[defaultResolution]
	}
	return r[0], r[1]
}

// Frames is the number of frames to capture for a song of songSeconds.
func (c *CaptureConfig) Frames(songSeconds float64) int {
	switch {
	case c.TotalFrames > 0:
		return c.TotalFrames
	case c.DurationSeconds > 0:
		return int(math.Ceil(c.DurationSeconds * float64(c.FrameRate)))
	case songSeconds > 0:
		return int(math.Ceil(songSeconds * float64(c.FrameRate)))
	}
	return 0
}

func (c *CaptureConfig) Options(songSeconds float64) capture.Options {
	w, h := c.Size()
	return capture.Options{
		Prefix:      c.Prefix,
		Enabled:     c.Enabled,
		FrameRate:   c.FrameRate,
		TotalFrames: c.Frames(songSeconds),
		SampleRate:  c.SampleRate,
		Width:       w,
		Height:      h,
		LogEvery:    c.LogEvery,
		Overlay:     c.Overlay,
	}
}

type OutputConfig struct {
	Dir string `yaml:"dir"`
	// FramesDir, when set, also receives the frames as loose PNG files.
	FramesDir     string `yaml:"frames_dir"`
	ExportWorkers int    `yaml:"export_workers"`
}

func (c *OutputConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Dir, validation.Required),
		validation.Field(&c.ExportWorkers, validation.Min(0)),
	)
}

type TrackConfig struct {
	Index   int    `yaml:"index"`
	Handler string `yaml:"handler"`
	Poly    bool   `yaml:"poly"`
}

func (c *TrackConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Index, validation.Min(0)),
		validation.Field(&c.Handler, validation.Required, validation.In(sketch.HandlerTrack1, sketch.HandlerTrack2)),
	)
}

type SongConfig struct {
	Path   string        `yaml:"path"`
	PPQ    int           `yaml:"ppq"`
	BPM    float64       `yaml:"bpm"`
	Tracks []TrackConfig `yaml:"tracks"`
}

func (c *SongConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.PPQ, validation.Required, validation.Min(1)),
		validation.Field(&c.BPM, validation.Required, validation.Min(1.0)),
		validation.Field(&c.Tracks, validation.Required),
	); err != nil {
		return err
	}
	for i := range c.Tracks {
		if err := c.Tracks[i].Validate(); err != nil {
			return fmt.Errorf("tracks[%d]: %w", i, err)
		}
	}
	return nil
}

func (c *SongConfig) Tempo() sketch.Tempo {
	return sketch.Tempo{PPQ: c.PPQ, BPM: c.BPM}
}

func (c *SongConfig) Bindings() []sketch.Binding {
	out := make([]sketch.Binding, len(c.Tracks))
	for i, t := range c.Tracks {
		out[i] = sketch.Binding{Track: t.Index, Handler: t.Handler, Poly: t.Poly}
	}
	return out
}

type SceneConfig struct {
	PoolSize int    `yaml:"pool_size"`
	Seed     uint64 `yaml:"seed"`
	Cols     int    `yaml:"cols"`
	Rows     int    `yaml:"rows"`
}

func (c *SceneConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.PoolSize, validation.Required, validation.Min(1)),
		validation.Field(&c.Cols, validation.Required, validation.Min(1)),
		validation.Field(&c.Rows, validation.Required, validation.Min(1)),
	)
}

func NewDefaultConfig() *Config {
	opts := capture.DefaultOptions()
	return &Config{
		App: AppConfig{
			LogLevel: "info",
			HTTP:     HTTPConfig{Port: 8888},
		},
		Capture: CaptureConfig{
			Prefix:     opts.Prefix,
			Enabled:    true,
			FrameRate:  opts.FrameRate,
			SampleRate: opts.SampleRate,
			Resolution: defaultResolution,
			LogEvery:   opts.LogEvery,
		},
		Output: OutputConfig{
			Dir: "./output",
		},
		Song: SongConfig{
			PPQ: 3840 * 4,
			BPM: 97,
			Tracks: []TrackConfig{
				{Index: 0, Handler: sketch.HandlerTrack1},
				{Index: 1, Handler: sketch.HandlerTrack2},
			},
		},
		Scene: SceneConfig{
			PoolSize: 72,
			Seed:     2,
			Cols:     3,
			Rows:     3,
		},
	}
}
