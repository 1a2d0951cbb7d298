package capture

import (
	"context"
	"errors"
	"time"

	"github.com/fogleman/gg"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"

	"landscapes2/archive"
	"landscapes2/frames"
)

var (
	ErrRasterize = errors.New("rasterize frame")
	ErrRunning   = errors.New("capture run in progress")
)

type Status string

const (
	Idle      Status = "idle"
	Running   Status = "running"
	Completed Status = "completed"
	Aborted   Status = "aborted"
)

// RunState is everything one capture run owns. It is passed into and
// returned from the loop instead of living on the Capturer, so independent
// runs never share counters or stores.
type RunState struct {
	ID         uuid.UUID
	Status     Status
	Enabled    bool
	InProgress bool

	// NextIndex is the index the next captured frame will get.
	NextIndex int
	// LastPosition is the virtual playback position in samples.
	LastPosition float64

	Store    *frames.Store
	Artifact *archive.Artifact
	Err      error

	StartedAt  time.Time
	FinishedAt time.Time
}

func NewRunState(enabled bool) *RunState {
	return &RunState{
		ID:      uuid.New(),
		Status:  Idle,
		Enabled: enabled,
		Store:   frames.NewStore(),
	}
}

// Snapshot is a copy of the observable parts of a RunState.
type Snapshot struct {
	ID           string  `json:"id"`
	Status       Status  `json:"status"`
	InProgress   bool    `json:"in_progress"`
	Frames       int     `json:"frames"`
	TotalFrames  int     `json:"total_frames"`
	LastPosition float64 `json:"last_position"`
	Archive      string  `json:"archive,omitempty"`
	Error        string  `json:"error,omitempty"`
}

// Rasterizer turns the drawing surface into an encoded image. The loop waits
// for each call to return before drawing the next frame.
type Rasterizer interface {
	Rasterize(ctx context.Context, dc *gg.Context) ([]byte, error)
}

// Packager packages finalized frames.
type Packager interface {
	Build(fr []*frames.Frame, prefix string) (*archive.Artifact, error)
}

// ExportFunc receives the finalized frames of a completed run. It must not
// release their payloads.
type ExportFunc func(ctx context.Context, fr []*frames.Frame) error

type Options struct {
	Prefix      string
	Enabled     bool
	FrameRate   int
	TotalFrames int
	SampleRate  int
	Width       int
	Height      int
	// LogEvery logs progress every n frames; 0 disables progress logs.
	LogEvery int
	// Overlay stamps the frame number onto each frame.
	Overlay bool
}

func DefaultOptions() Options {
	return Options{
		Prefix:     "capture",
		FrameRate:  60,
		SampleRate: 44100,
		Width:      1280,
		Height:     720,
		LogEvery:   60,
	}
}

func (o *Options) Validate() error {
	return validation.ValidateStruct(o,
		validation.Field(&o.Prefix, validation.Required),
		validation.Field(&o.FrameRate, validation.Required, validation.Min(1)),
		validation.Field(&o.TotalFrames, validation.Min(0)),
		validation.Field(&o.SampleRate, validation.Min(0)),
		validation.Field(&o.Width, validation.Required, validation.Min(1)),
		validation.Field(&o.Height, validation.Required, validation.Min(1)),
		validation.Field(&o.LogEvery, validation.Min(0)),
	)
}
