package report

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"math"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

const (
	jpegQuality     = 90
	maxSourcePixels = 80_000_000
)

var ErrImageTooLarge = errors.New("image exceeds pixel limit")

// FitToCanvas scales an encoded image to fit inside the page canvas keeping
// its aspect ratio, centres it on white and re-encodes it as JPEG.
func FitToCanvas(data []byte) ([]byte, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image header: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("decode image header: empty dimensions %dx%d", cfg.Width, cfg.Height)
	}
	if int64(cfg.Width)*int64(cfg.Height) > maxSourcePixels {
		return nil, fmt.Errorf("%dx%d: %w", cfg.Width, cfg.Height, ErrImageTooLarge)
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	canvas := image.NewRGBA(image.Rect(0, 0, CanvasWidth, CanvasHeight))
	draw.Draw(canvas, canvas.Bounds(), image.White, image.Point{}, draw.Src)
	draw.CatmullRom.Scale(canvas, fitRect(src.Bounds()), src, src.Bounds(), draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, canvas, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// fitRect returns the centred destination rectangle for a source of the given
// bounds. Small images are scaled up to the canvas.
func fitRect(b image.Rectangle) image.Rectangle {
	w, h := float64(b.Dx()), float64(b.Dy())
	scale := math.Min(CanvasWidth/w, CanvasHeight/h)

	dw := clamp(int(math.Round(w*scale)), 1, CanvasWidth)
	dh := clamp(int(math.Round(h*scale)), 1, CanvasHeight)
	x := (CanvasWidth - dw) / 2
	y := (CanvasHeight - dh) / 2
	return image.Rect(x, y, x+dw, y+dh)
}

func clamp(v, lo, hi int) int {
	return min(max(v, lo), hi)
}
