package scene

import (
	"errors"
	"image/color"

	"github.com/fogleman/gg"
)

var ErrNoScene = errors.New("scene not found")

// Scene is one drawable unit of the animation. Update and Draw are never
// called concurrently.
type Scene interface {
	// Activate starts a new lifetime of durationSeconds at virtual time nowMs.
	Activate(durationSeconds, nowMs float64)
	Update(nowMs float64)
	Draw(dc *gg.Context)
	SetFullDisplay(full bool)
	Progress() float64
}

// Request asks the capture loop to swap in a pooled scene.
type Request struct {
	Index           int
	DurationSeconds float64
	Night           bool
}

// Resolver turns a Request into an activated Scene.
type Resolver interface {
	Resolve(req Request, nowMs float64) (Scene, error)
}

type Palette struct {
	Dark  []color.RGBA
	Light []color.RGBA
}

type hillPoint struct {
	X float64
	Y float64
}

type hill struct {
	Darkness float64
	Points   []hillPoint
}

type cell struct {
	GridI      int
	GridJ      int
	Color      color.RGBA
	BlueShade  color.RGBA
	BlackShade color.RGBA
	Hills      []hill
}
