package scene

import (
	"fmt"
	"math/rand/v2"
)

// Pool holds pre-generated landscapes so swapping scenes during a capture is
// O(1) and content depends only on the seed.
type Pool struct {
	palette    Palette
	landscapes []*Landscape
	preview    *Landscape
}

var _ Resolver = (*Pool)(nil)

func NewPool(size, cols, rows int, seed uint64) *Pool {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	palette := NewPalette(rng)

	landscapes := make([]*Landscape, size)
	for i := range landscapes {
		landscapes[i] = NewLandscape(rng, palette, cols, rows)
	}

	preview := NewLandscape(rng, palette, cols, rows)
	preview.SetFullDisplay(true)

	return &Pool{palette: palette, landscapes: landscapes, preview: preview}
}

func (p *Pool) Len() int { return len(p.landscapes) }

func (p *Pool) Palette() Palette { return p.palette }

// Preview is the full-display landscape shown before any cue fires.
func (p *Pool) Preview() *Landscape { return p.preview }

func (p *Pool) Get(index int) (*Landscape, error) {
	if index < 0 || index >= len(p.landscapes) {
		return nil, fmt.Errorf("%w: index %d outside pool of %d", ErrNoScene, index, len(p.landscapes))
	}
	return p.landscapes[index], nil
}

func (p *Pool) Resolve(req Request, nowMs float64) (Scene, error) {
	l, err := p.Get(req.Index)
	if err != nil {
		return nil, err
	}
	l.SetFullDisplay(false)
	l.SetNight(req.Night)
	l.Activate(req.DurationSeconds, nowMs)
	return l, nil
}
