// Package display decodes and caches frame bitmaps and composites them onto
// a fixed background canvas for an attached display device.
package display

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"os"
	"path/filepath"

	_ "image/jpeg"
	_ "image/png"
)

// Device is an opaque sink for fully composited frames. Width and height are
// fixed at construction; Display converts to the panel's native pixel format
// as needed.
type Device interface {
	Bounds() image.Rectangle
	Display(frame *image.RGBA) error
}

// Screen caches decoded frame assets and composites them for one Device.
// The cache is never evicted; it is bounded by the finite asset set named in
// the behavior definition. Screen is owned by the engine goroutine and is
// not safe for concurrent use.
type Screen struct {
	dev   Device
	base  string
	cache map[string]image.Image
	bg    *image.RGBA
}

// NewScreen creates a Screen reading assets from base, with an opaque white
// background canvas sized to the device.
func NewScreen(dev Device, base string) *Screen {
	bg := image.NewRGBA(dev.Bounds())
	draw.Draw(bg, bg.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	return &Screen{
		dev:   dev,
		base:  base,
		cache: make(map[string]image.Image),
		bg:    bg,
	}
}

// Load decodes the asset at base/name, memoizing the result. Subsequent
// calls for the same name return the cached bitmap.
func (s *Screen) Load(name string) (image.Image, error) {
	if img, ok := s.cache[name]; ok {
		return img, nil
	}
	path := filepath.Join(s.base, name)
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("display: open %s: %w", path, err)
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("display: decode %s: %w", path, err)
	}
	s.cache[name] = img
	return img, nil
}

// Show composites img onto a copy of the background — centered horizontally,
// aligned to the top edge, alpha-blended — and pushes the result to the
// device.
func (s *Screen) Show(img image.Image) error {
	frame := image.NewRGBA(s.bg.Bounds())
	copy(frame.Pix, s.bg.Pix)

	w := img.Bounds().Dx()
	h := img.Bounds().Dy()
	x := (frame.Bounds().Dx() - w) / 2
	draw.Draw(frame, image.Rect(x, 0, x+w, h), img, img.Bounds().Min, draw.Over)

	return s.dev.Display(frame)
}

// Cached reports whether name has been decoded already.
func (s *Screen) Cached(name string) bool {
	_, ok := s.cache[name]
	return ok
}
