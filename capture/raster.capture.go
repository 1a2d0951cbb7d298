package capture

import (
	"bytes"
	"context"
	"fmt"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
)

// PNGRasterizer encodes the surface as PNG.
type PNGRasterizer struct{}

func (PNGRasterizer) Rasterize(ctx context.Context, dc *gg.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// RasterizerFunc adapts a function to Rasterizer.
type RasterizerFunc func(ctx context.Context, dc *gg.Context) ([]byte, error)

func (f RasterizerFunc) Rasterize(ctx context.Context, dc *gg.Context) ([]byte, error) {
	return f(ctx, dc)
}

func overlayFace(height int) (font.Face, error) {
	f, err := truetype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("parse overlay font: %w", err)
	}
	size := float64(height) / 60
	if size < 9 {
		size = 9
	}
	return truetype.NewFace(f, &truetype.Options{Size: size}), nil
}

func drawFrameLabel(dc *gg.Context, face font.Face, frame int) {
	dc.Push()
	dc.SetFontFace(face)
	dc.SetRGBA(1, 1, 1, 0.8)
	dc.DrawString(fmt.Sprintf("FRAME %05d", frame), 30, 30)
	dc.Pop()
}
