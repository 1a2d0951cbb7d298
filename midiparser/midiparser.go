// Package midiparser loads note lists from Standard MIDI Files or from the
// JSON produced by @tonejs/midi.
package midiparser

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"landscapes2/cues"
)

var ErrUnsupportedTimeFormat = errors.New("only metric (PPQ) time format is supported")

// LoadFile picks the parser from the file extension: .json is read as
// Tone.js JSON, anything else as a Standard MIDI File.
func LoadFile(path string) (*Song, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var song *Song
	if strings.EqualFold(filepath.Ext(path), ".json") {
		song, err = ParseJSON(f)
	} else {
		song, err = ParseSMF(f)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if song.Name == "" {
		song.Name = FileNameWithoutExtension(path)
	}
	return song, nil
}

func ParseJSON(r io.Reader) (*Song, error) {
	var doc toneJSON
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, err
	}

	song := &Song{
		Name:   doc.Header.Name,
		PPQ:    doc.Header.Ppq,
		Tempos: doc.Header.Tempos,
		Tracks: make([][]cues.Note, len(doc.Tracks)),
	}
	for i, track := range doc.Tracks {
		song.Tracks[i] = track.Notes
	}
	return song, nil
}

type noteKey struct {
	channel uint8
	key     uint8
}

// ParseSMF reads every track of a Standard MIDI File. Track indices match
// the file's chunks, so a conductor track shows up as an empty note list.
func ParseSMF(r io.Reader) (*Song, error) {
	s, err := smf.ReadFrom(r)
	if err != nil {
		return nil, err
	}
	mt, ok := s.TimeFormat.(smf.MetricTicks)
	if !ok {
		return nil, ErrUnsupportedTimeFormat
	}
	ppq := int(mt)

	var tempos []Tempo
	for _, track := range s.Tracks {
		tick := 0
		for _, ev := range track {
			tick += int(ev.Delta)
			var bpm float64
			if ev.Message.GetMetaTempo(&bpm) {
				tempos = append(tempos, Tempo{Tick: tick, Bpm: bpm})
			}
		}
	}
	tm := NewTempoMap(ppq, tempos)

	song := &Song{PPQ: ppq, Tempos: tempos, Tracks: make([][]cues.Note, len(s.Tracks))}
	for i, track := range s.Tracks {
		song.Tracks[i] = trackNotes(track, tm)
	}
	return song, nil
}

func trackNotes(track smf.Track, tm *TempoMap) []cues.Note {
	var notes []cues.Note
	open := map[noteKey][]int{}
	tick := 0

	for _, ev := range track {
		tick += int(ev.Delta)
		msg := midi.Message(ev.Message)

		var channel, key, velocity uint8
		switch {
		case msg.GetNoteStart(&channel, &key, &velocity):
			notes = append(notes, cues.Note{
				Tick:     tick,
				Time:     tm.Seconds(tick),
				Midi:     int(key),
				Velocity: float64(velocity) / 127,
			})
			k := noteKey{channel, key}
			open[k] = append(open[k], len(notes)-1)
		case msg.GetNoteEnd(&channel, &key):
			k := noteKey{channel, key}
			pending := open[k]
			if len(pending) == 0 {
				continue
			}
			n := &notes[pending[0]]
			open[k] = pending[1:]
			n.DurationTicks = tick - n.Tick
			n.Duration = tm.Seconds(tick) - n.Time
		}
	}

	return notes
}

func FileNameWithoutExtension(path string) string {
	name := filepath.Base(path)
	return name[:len(name)-len(filepath.Ext(name))]
}
