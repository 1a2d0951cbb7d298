package midiparser

import "landscapes2/cues"

type Tempo struct {
	Tick int     `json:"ticks"`
	Bpm  float64 `json:"bpm"`
}

// Song is a parsed note source: one note list per track, times in seconds.
type Song struct {
	Name   string
	PPQ    int
	Tempos []Tempo
	Tracks [][]cues.Note
}

// Duration is the end time of the last sounding note.
func (s *Song) Duration() float64 {
	var end float64
	for _, track := range s.Tracks {
		for _, n := range track {
			if e := n.Time + n.Duration; e > end {
				end = e
			}
		}
	}
	return end
}

// toneJSON is the @tonejs/midi JSON export.
type toneJSON struct {
	Header struct {
		Name   string  `json:"name"`
		Ppq    int     `json:"ppq"`
		Tempos []Tempo `json:"tempos"`
	} `json:"header"`
	Tracks []struct {
		Name  string      `json:"name"`
		Notes []cues.Note `json:"notes"`
	} `json:"tracks"`
}
