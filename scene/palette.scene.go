package scene

import (
	"image/color"
	"math"
	"math/rand/v2"
)

const paletteSize = 12

// NewPalette builds a dark and a light colour set from rng.
func NewPalette(rng *rand.Rand) Palette {
	dark := make([]color.RGBA, paletteSize)
	light := make([]color.RGBA, paletteSize)
	for i := range paletteSize {
		dark[i] = hsvToRGBA(rng.Float64()*360, randRange(rng, 0.55, 0.9), randRange(rng, 0.2, 0.45))
		light[i] = hsvToRGBA(rng.Float64()*360, randRange(rng, 0.25, 0.6), randRange(rng, 0.8, 1))
	}
	rng.Shuffle(len(dark), func(i, j int) { dark[i], dark[j] = dark[j], dark[i] })
	rng.Shuffle(len(light), func(i, j int) { light[i], light[j] = light[j], light[i] })

	return Palette{Dark: dark, Light: light}
}

// Colors returns every palette colour, dark first.
func (p Palette) Colors() []color.RGBA {
	out := make([]color.RGBA, 0, len(p.Dark)+len(p.Light))
	out = append(out, p.Dark...)
	return append(out, p.Light...)
}

func randRange(rng *rand.Rand, lo, hi float64) float64 {
	return lo + rng.Float64()*(hi-lo)
}

func hsvToRGBA(h, s, v float64) color.RGBA {
	c := v * s
	x := c * (1 - math.Abs(math.Mod(h/60, 2)-1))
	m := v - c

	var r, g, b float64
	switch {
	case h < 60:
		r, g, b = c, x, 0
	case h < 120:
		r, g, b = x, c, 0
	case h < 180:
		r, g, b = 0, c, x
	case h < 240:
		r, g, b = 0, x, c
	case h < 300:
		r, g, b = x, 0, c
	default:
		r, g, b = c, 0, x
	}

	return color.RGBA{
		R: uint8(math.Round((r + m) * 255)),
		G: uint8(math.Round((g + m) * 255)),
		B: uint8(math.Round((b + m) * 255)),
		A: 255,
	}
}

func brightness(c color.RGBA) float64 {
	return (float64(c.R) + float64(c.G) + float64(c.B)) / 3
}

func darker(c color.RGBA, d float64) color.RGBA {
	return color.RGBA{
		R: uint8(float64(c.R) * d),
		G: uint8(float64(c.G) * d),
		B: uint8(float64(c.B) * d),
		A: 255,
	}
}

func randomShade(rng *rand.Rand, r, g, b [2]float64) color.RGBA {
	return color.RGBA{
		R: uint8(randRange(rng, r[0], r[1])),
		G: uint8(randRange(rng, g[0], g[1])),
		B: uint8(randRange(rng, b[0], b[1])),
		A: 255,
	}
}
