package midiparser

import "sort"

const defaultBpm = 120

// TempoMap converts ticks to seconds across tempo changes.
type TempoMap struct {
	ppq    int
	tempos []Tempo
}

func NewTempoMap(ppq int, tempos []Tempo) *TempoMap {
	sorted := make([]Tempo, len(tempos))
	copy(sorted, tempos)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Tick < sorted[j].Tick })
	if len(sorted) == 0 || sorted[0].Tick > 0 {
		sorted = append([]Tempo{{Tick: 0, Bpm: defaultBpm}}, sorted...)
	}
	return &TempoMap{ppq: ppq, tempos: sorted}
}

// Seconds walks the tempo segments up to tick and sums their lengths.
func (m *TempoMap) Seconds(tick int) float64 {
	var accumulated float64
	for i, tempo := range m.tempos {
		if tick <= tempo.Tick {
			break
		}
		end := tick
		if i+1 < len(m.tempos) && m.tempos[i+1].Tick < tick {
			end = m.tempos[i+1].Tick
		}
		beatTime := 60 / tempo.Bpm
		accumulated += float64(end-tempo.Tick) / float64(m.ppq) * beatTime
	}
	return accumulated
}
