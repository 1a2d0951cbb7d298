package scene

import (
	"image/color"
	"math"
	"math/rand/v2"
	"slices"

	"github.com/fogleman/gg"
)

const (
	activationScale     = 0.95
	gridBorderWidth     = 4
	hillStrokeWidth     = 6
	minHills, maxHills  = 2, 6
	baseHillDarkness    = 0.3
	hillDarknessPerStep = 0.1
)

var hillXs = []float64{0.1, 0.25, 0.4, 0.6, 0.8}
var hillMaxYs = []float64{0.2, 0.4, 0.5, 0.4, 0.2}

// Landscape is a cols x rows grid of sky cells with hills. Cells are revealed
// one by one as progress moves from 0 to 1.
type Landscape struct {
	cols int
	rows int

	cells []cell

	fullDisplay bool
	night       bool

	birthMs    float64
	durationMs float64
	progress   float64
}

var _ Scene = (*Landscape)(nil)

// NewLandscape generates every cell up front so drawing never touches rng.
func NewLandscape(rng *rand.Rand, palette Palette, cols, rows int) *Landscape {
	l := &Landscape{cols: cols, rows: rows}
	l.generate(rng, palette)
	return l
}

func (l *Landscape) generate(rng *rand.Rand, palette Palette) {
	colors := palette.Colors()
	grid := make([][]color.RGBA, l.cols)
	var used []color.RGBA

	for i := 0; i < l.cols; i++ {
		grid[i] = make([]color.RGBA, l.rows)
		for j := 0; j < l.rows; j++ {
			available := make([]color.RGBA, 0, len(colors))
			for _, c := range colors {
				if !slices.Contains(used, c) {
					available = append(available, c)
				}
			}
			if len(available) == 0 {
				available = colors
			}
			chosen := available[rng.IntN(len(available))]
			grid[i][j] = chosen
			used = append(used, chosen)
		}
	}

	cells := make([]cell, 0, l.cols*l.rows)
	for i := 0; i < l.cols; i++ {
		for j := 0; j < l.rows; j++ {
			numHills := minHills + rng.IntN(maxHills-minHills)
			hills := make([]hill, numHills)
			for h := range hills {
				points := make([]hillPoint, len(hillXs))
				for k := range points {
					points[k] = hillPoint{X: hillXs[k], Y: rng.Float64() * hillMaxYs[k]}
				}
				hills[h] = hill{Darkness: baseHillDarkness + float64(h)*hillDarknessPerStep, Points: points}
			}

			c := grid[i][j]
			var blue, black color.RGBA
			if brightness(c) > 127 {
				blue = randomShade(rng, [2]float64{60, 100}, [2]float64{120, 160}, [2]float64{180, 220})
				black = randomShade(rng, [2]float64{10, 30}, [2]float64{10, 30}, [2]float64{10, 30})
			} else {
				blue = randomShade(rng, [2]float64{150, 200}, [2]float64{200, 230}, [2]float64{230, 255})
				black = randomShade(rng, [2]float64{40, 70}, [2]float64{40, 70}, [2]float64{40, 70})
			}

			cells = append(cells, cell{
				GridI:      i,
				GridJ:      j,
				Color:      c,
				BlueShade:  blue,
				BlackShade: black,
				Hills:      hills,
			})
		}
	}

	rng.Shuffle(len(cells), func(a, b int) { cells[a], cells[b] = cells[b], cells[a] })
	l.cells = cells
}

func (l *Landscape) Activate(durationSeconds, nowMs float64) {
	l.durationMs = durationSeconds * 1000 * activationScale
	l.birthMs = nowMs
	l.progress = 0
}

func (l *Landscape) Update(nowMs float64) {
	if l.durationMs <= 0 {
		l.progress = 1
		return
	}
	raw := (nowMs - l.birthMs) / l.durationMs
	l.progress = math.Max(0, math.Min(1, raw))
}

func (l *Landscape) SetFullDisplay(full bool) { l.fullDisplay = full }

func (l *Landscape) SetNight(night bool) { l.night = night }

func (l *Landscape) Progress() float64 { return l.progress }

// Visible is the number of cells Draw paints.
func (l *Landscape) Visible() int {
	if l.fullDisplay {
		return len(l.cells)
	}
	return int(math.Floor(float64(len(l.cells)) * l.progress))
}

func (l *Landscape) Draw(dc *gg.Context) {
	w := float64(dc.Width())
	h := float64(dc.Height())
	cellW := w / float64(l.cols)
	cellH := h / float64(l.rows)

	dc.Push()
	defer dc.Pop()

	visible := l.Visible()
	for i := 0; i < visible; i++ {
		c := l.cells[i]
		l.drawCell(dc, float64(c.GridI)*cellW, float64(c.GridJ)*cellH, cellW, cellH, c)
	}

	dc.SetRGB(0, 0, 0)
	dc.SetLineWidth(gridBorderWidth)
	for i := 0; i < l.cols; i++ {
		for j := 0; j < l.rows; j++ {
			dc.DrawRectangle(float64(i)*cellW, float64(j)*cellH, cellW, cellH)
			dc.Stroke()
		}
	}
}

func (l *Landscape) drawCell(dc *gg.Context, x, y, w, h float64, c cell) {
	top := c.BlueShade
	if l.night {
		top = c.BlackShade
	}

	sky := gg.NewLinearGradient(x, y, x, y+h)
	sky.AddColorStop(0, top)
	sky.AddColorStop(1, c.Color)
	dc.SetFillStyle(sky)
	dc.DrawRectangle(x, y, w, h)
	dc.Fill()

	base := y + h
	for _, hl := range c.Hills {
		pts := make([]gg.Point, 0, len(hl.Points)+4)
		pts = append(pts, gg.Point{X: x, Y: base}, gg.Point{X: x, Y: base})
		for _, p := range hl.Points {
			pts = append(pts, gg.Point{X: x + w*p.X, Y: base - h*p.Y})
		}
		pts = append(pts, gg.Point{X: x + w, Y: base}, gg.Point{X: x + w, Y: base})

		catmullRom(dc, pts)
		dc.SetColor(darker(c.Color, hl.Darkness))
		dc.FillPreserve()
		dc.SetRGB(0, 0, 0)
		dc.SetLineWidth(hillStrokeWidth)
		dc.Stroke()
	}
}

// catmullRom traces a closed path through pts[1:len-1]; the first and last
// points only steer the end tangents.
func catmullRom(dc *gg.Context, pts []gg.Point) {
	dc.NewSubPath()
	dc.MoveTo(pts[1].X, pts[1].Y)
	for i := 1; i < len(pts)-2; i++ {
		p0, p1, p2, p3 := pts[i-1], pts[i], pts[i+1], pts[i+2]
		dc.CubicTo(
			p1.X+(p2.X-p0.X)/6, p1.Y+(p2.Y-p0.Y)/6,
			p2.X-(p3.X-p1.X)/6, p2.Y-(p3.Y-p1.Y)/6,
			p2.X, p2.Y,
		)
	}
	dc.ClosePath()
}
