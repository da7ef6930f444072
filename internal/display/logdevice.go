package display

import (
	"image"
	"log/slog"
	"sync/atomic"
)

// LogDevice is a headless sink for development and tests: it counts frame
// pushes and logs them at debug level.
type LogDevice struct {
	bounds image.Rectangle
	frames atomic.Int64
}

// NewLogDevice creates a LogDevice of the given size.
func NewLogDevice(w, h int) *LogDevice {
	return &LogDevice{bounds: image.Rect(0, 0, w, h)}
}

// Bounds returns the device rectangle.
func (d *LogDevice) Bounds() image.Rectangle { return d.bounds }

// Display accepts a composited frame.
func (d *LogDevice) Display(frame *image.RGBA) error {
	n := d.frames.Add(1)
	slog.Debug("[DISPLAY] frame pushed", "n", n, "bounds", frame.Bounds())
	return nil
}

// Frames returns the number of frames pushed so far.
func (d *LogDevice) Frames() int64 { return d.frames.Load() }
