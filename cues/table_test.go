package cues

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"landscapes2/scene"
)

func noop(any, Note) (*scene.Request, error) { return nil, nil }

var testRegistry = Registry{"noop": noop}

func chordNotes() []Note {
	return []Note{
		{Tick: 0, Time: 0},
		{Tick: 0, Time: 0},
		{Tick: 0, Time: 0},
		{Tick: 480, Time: 0.5},
		{Tick: 960, Time: 1},
		{Tick: 960, Time: 1},
		{Tick: 1440, Time: 1.5},
	}
}

func TestBuild_DeduplicatesRepeatedTicks(t *testing.T) {
	tbl, err := Build(chordNotes(), testRegistry, "noop", false)
	require.NoError(t, err)
	require.Equal(t, 4, tbl.Len())

	for i, c := range tbl.Cues() {
		assert.Equal(t, i+1, c.Payload.Cue)
		assert.Equal(t, "noop", c.HandlerName)
	}
}

func TestBuild_PolyModeKeepsEveryNote(t *testing.T) {
	notes := chordNotes()
	tbl, err := Build(notes, testRegistry, "noop", true)
	require.NoError(t, err)
	require.Equal(t, len(notes), tbl.Len())

	for i, c := range tbl.Cues() {
		assert.Equal(t, i+1, c.Payload.Cue)
	}
}

func TestBuild_DoesNotMutateInput(t *testing.T) {
	notes := chordNotes()
	_, err := Build(notes, testRegistry, "noop", false)
	require.NoError(t, err)
	for _, n := range notes {
		assert.Zero(t, n.Cue)
	}
}

func TestBuild_UnknownHandler(t *testing.T) {
	_, err := Build(chordNotes(), testRegistry, "executeTrack9", false)
	assert.ErrorIs(t, err, ErrUnknownHandler)
}

func TestBuild_NilHandler(t *testing.T) {
	_, err := Build(chordNotes(), Registry{"broken": nil}, "broken", false)
	assert.ErrorIs(t, err, ErrNilHandler)
}

func TestBuilder_MergesTracksStably(t *testing.T) {
	b := NewBuilder(testRegistry)
	_, err := b.Schedule([]Note{{Tick: 0, Time: 1}, {Tick: 10, Time: 2}}, "noop", "a", false)
	require.NoError(t, err)
	_, err = b.Schedule([]Note{{Tick: 0, Time: 0.5}, {Tick: 5, Time: 1}}, "noop", "b", false)
	require.NoError(t, err)

	tbl := b.Build()
	var got []any
	var times []float64
	for _, c := range tbl.Cues() {
		got = append(got, c.Scope)
		times = append(times, c.Time)
	}
	assert.Equal(t, []float64{0.5, 1, 1, 2}, times)
	// tie at 1.0: track "a" was enqueued first
	assert.Equal(t, []any{"b", "a", "b", "a"}, got)
}

func TestTable_DueCuesWindow(t *testing.T) {
	tbl, err := Build([]Note{
		{Tick: 0, Time: 0},
		{Tick: 1, Time: 0.5},
		{Tick: 2, Time: 0.5},
		{Tick: 3, Time: 0.51},
	}, testRegistry, "noop", false)
	require.NoError(t, err)

	first := tbl.DueCues(-1, 0)
	require.Len(t, first, 1)
	assert.Equal(t, 0.0, first[0].Time)

	assert.Empty(t, tbl.DueCues(0, 0.49))

	boundary := tbl.DueCues(0.49, 0.5)
	require.Len(t, boundary, 2)
	assert.Equal(t, 2, boundary[0].Payload.Cue)
	assert.Equal(t, 3, boundary[1].Payload.Cue)

	assert.Empty(t, tbl.DueCues(0.5, 0.5))
	assert.Equal(t, 1, tbl.Remaining())

	last := tbl.DueCues(0.5, 10)
	require.Len(t, last, 1)
	assert.Equal(t, 0, tbl.Remaining())
	assert.Empty(t, tbl.DueCues(10, 20))
}

func TestTable_NeverRefires(t *testing.T) {
	tbl, err := Build([]Note{{Tick: 0, Time: 0.25}}, testRegistry, "noop", false)
	require.NoError(t, err)

	require.Len(t, tbl.DueCues(0, 1), 1)
	assert.Empty(t, tbl.DueCues(0, 1))
	assert.Empty(t, tbl.DueCues(-1, 2))
}

type countingScope struct{ resets int }

func (s *countingScope) Reset() { s.resets++ }

func TestTable_ResetRewindsAndResetsScopes(t *testing.T) {
	scope := &countingScope{}
	b := NewBuilder(testRegistry)
	_, err := b.Schedule([]Note{{Tick: 0, Time: 0}, {Tick: 1, Time: 1}}, "noop", scope, false)
	require.NoError(t, err)
	tbl := b.Build()

	require.Len(t, tbl.DueCues(-1, 5), 2)
	tbl.Reset()

	assert.Equal(t, 1, scope.resets)
	assert.Equal(t, 2, tbl.Remaining())
	assert.Len(t, tbl.DueCues(-1, 5), 2)
}

type tallyScope map[string]int

func (s tallyScope) Reset() { s["resets"]++ }

type tagsScope struct {
	tags  []string
	count *int
}

func (s tagsScope) Reset() { *s.count++ }

func TestTable_ResetHandlesUnhashableScopes(t *testing.T) {
	tally := tallyScope{}
	other := tallyScope{}
	var tagResets int
	tags := tagsScope{tags: []string{"night"}, count: &tagResets}

	b := NewBuilder(testRegistry)
	notes := []Note{{Tick: 0, Time: 0}, {Tick: 1, Time: 1}}
	for _, scope := range []any{tally, other, tags} {
		_, err := b.Schedule(notes, "noop", scope, false)
		require.NoError(t, err)
	}
	tbl := b.Build()

	require.NotPanics(t, tbl.Reset)
	assert.Equal(t, 1, tally["resets"])
	assert.Equal(t, 1, other["resets"])
	// struct scopes holding slices cannot be told apart; one reset per cue
	assert.Equal(t, 2, tagResets)
}

func TestCue_FirePassesScopeAndPayload(t *testing.T) {
	var gotScope any
	var gotNote Note
	reg := Registry{"rec": func(scope any, n Note) (*scene.Request, error) {
		gotScope, gotNote = scope, n
		return &scene.Request{Index: n.Cue - 1}, errors.New("boom")
	}}
	b := NewBuilder(reg)
	_, err := b.Schedule([]Note{{Tick: 7, Time: 3, DurationTicks: 12}}, "rec", "scope", false)
	require.NoError(t, err)

	c := b.Build().Cues()[0]
	req, err := c.Fire()
	assert.EqualError(t, err, "boom")
	assert.Equal(t, 0, req.Index)
	assert.Equal(t, "scope", gotScope)
	assert.Equal(t, 12, gotNote.DurationTicks)
	assert.Equal(t, 1, gotNote.Cue)
}
