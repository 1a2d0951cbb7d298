// Package sketch holds the cue handlers of the landscapes animation: which
// pooled landscape a note brings in, for how long, and in which mode.
package sketch

import (
	"fmt"

	"landscapes2/cues"
	"landscapes2/scene"
)

const (
	HandlerTrack1 = "track1"
	HandlerTrack2 = "track2"

	// durationScale leaves a gap before the next cue so every landscape
	// finishes drawing.
	durationScale = 0.8
)

// Tempo is the fixed song tempo used to turn note lengths into seconds.
type Tempo struct {
	PPQ int
	BPM float64
}

func (t Tempo) Seconds(durationTicks int) float64 {
	if t.PPQ <= 0 || t.BPM <= 0 {
		return 0
	}
	return float64(durationTicks) / float64(t.PPQ) * (60 / t.BPM)
}

// State is the scope shared by both tracks for one run.
type State struct {
	Tempo Tempo

	landscapeIndex int
}

var _ cues.Resetter = (*State)(nil)

func NewState(tempo Tempo) *State {
	return &State{Tempo: tempo, landscapeIndex: -1}
}

func (s *State) Reset() { s.landscapeIndex = -1 }

// LandscapeIndex is the index of the last landscape a track1 cue brought in.
func (s *State) LandscapeIndex() int { return s.landscapeIndex }

func stateOf(scope any) (*State, error) {
	st, ok := scope.(*State)
	if !ok || st == nil {
		return nil, fmt.Errorf("sketch handler: scope is %T, want *sketch.State", scope)
	}
	return st, nil
}

// Track1 steps through the pool in order, in day mode.
func Track1(scope any, note cues.Note) (*scene.Request, error) {
	st, err := stateOf(scope)
	if err != nil {
		return nil, err
	}
	st.landscapeIndex++
	return &scene.Request{
		Index:           st.landscapeIndex,
		DurationSeconds: st.Tempo.Seconds(note.DurationTicks) * durationScale,
		Night:           false,
	}, nil
}

// Track2 picks the landscape matching its own cue number, in night mode.
func Track2(scope any, note cues.Note) (*scene.Request, error) {
	st, err := stateOf(scope)
	if err != nil {
		return nil, err
	}
	st.landscapeIndex++
	return &scene.Request{
		Index:           note.Cue - 1,
		DurationSeconds: st.Tempo.Seconds(note.DurationTicks) * durationScale,
		Night:           true,
	}, nil
}

func Registry() cues.Registry {
	return cues.Registry{
		HandlerTrack1: Track1,
		HandlerTrack2: Track2,
	}
}

// Binding schedules one track of a song under a handler.
type Binding struct {
	Track   int
	Handler string
	Poly    bool
}

func DefaultBindings() []Binding {
	return []Binding{
		{Track: 0, Handler: HandlerTrack1},
		{Track: 1, Handler: HandlerTrack2},
	}
}

// Schedule builds the cue table for tracks with every binding sharing st.
// A binding pointing past the last track is an error.
func Schedule(tracks [][]cues.Note, bindings []Binding, st *State) (*cues.Table, error) {
	b := cues.NewBuilder(Registry())
	for _, bind := range bindings {
		if bind.Track < 0 || bind.Track >= len(tracks) {
			return nil, fmt.Errorf("bind %s: track %d not in song with %d tracks", bind.Handler, bind.Track, len(tracks))
		}
		if _, err := b.Schedule(tracks[bind.Track], bind.Handler, st, bind.Poly); err != nil {
			return nil, fmt.Errorf("bind %s to track %d: %w", bind.Handler, bind.Track, err)
		}
	}
	return b.Build(), nil
}
