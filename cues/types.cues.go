package cues

import (
	"errors"

	"landscapes2/scene"
)

var (
	ErrUnknownHandler = errors.New("unknown cue handler")
	ErrNilHandler     = errors.New("cue handler is nil")
)

// Note is one note-like record from a MIDI-derived track.
type Note struct {
	Tick          int     `json:"ticks"`
	Time          float64 `json:"time"`
	DurationTicks int     `json:"durationTicks"`
	Duration      float64 `json:"duration"`
	Midi          int     `json:"midi"`
	Velocity      float64 `json:"velocity"`

	// Cue is the 1-based sequence index assigned when the note is scheduled.
	Cue int `json:"-"`
}

// Handler reacts to a fired cue. A non-nil Request asks the capture loop to
// swap the active scene.
type Handler func(scope any, note Note) (*scene.Request, error)

// Registry resolves handler names to handlers.
type Registry map[string]Handler

type Cue struct {
	Time        float64
	HandlerName string
	Handler     Handler
	Payload     Note
	Scope       any

	// Seq is the enqueue order across the whole table.
	Seq int
}

func (c Cue) Fire() (*scene.Request, error) {
	return c.Handler(c.Scope, c.Payload)
}

// Resetter is implemented by scopes that carry per-run state.
type Resetter interface {
	Reset()
}
