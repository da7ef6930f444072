package display

import (
	"fmt"
	"image"

	gc9307 "github.com/photonicat/periph.io-gc9307"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

// Default Raspberry Pi wiring for the GC9307 panel. Override via env if the
// hat routes differently.
const (
	gcRSTPin = "GPIO27"
	gcDCPin  = "GPIO25"
	gcCSPin  = "GPIO8"
	gcBLPin  = "GPIO18"
)

// GC9307 drives a GC9307 SPI panel over periph.io. Frames are converted to
// RGB565 before being pushed.
type GC9307 struct {
	panel  *gc9307.Device
	bounds image.Rectangle
	buf    []byte // reused RGB565 scratch, 2 bytes per pixel
}

// OpenGC9307 initializes the host, opens the first SPI port, and configures
// the panel at the given size.
func OpenGC9307(w, h int) (*GC9307, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("display: host init: %w", err)
	}
	port, err := spireg.Open("")
	if err != nil {
		return nil, fmt.Errorf("display: open spi: %w", err)
	}
	conn, err := port.Connect(40000*physic.KiloHertz, spi.Mode0, 8)
	if err != nil {
		return nil, fmt.Errorf("display: spi connect: %w", err)
	}

	panel := gc9307.New(conn,
		gpioreg.ByName(gcRSTPin),
		gpioreg.ByName(gcDCPin),
		gpioreg.ByName(gcCSPin),
		gpioreg.ByName(gcBLPin))
	panel.Configure(gc9307.Config{
		Width:     int16(w),
		Height:    int16(h),
		Rotation:  gc9307.NO_ROTATION,
		FrameRate: gc9307.FRAMERATE_60,
		UseCS:     false,
	})

	return &GC9307{
		panel:  &panel,
		bounds: image.Rect(0, 0, w, h),
		buf:    make([]byte, w*h*2),
	}, nil
}

// Bounds returns the panel rectangle.
func (d *GC9307) Bounds() image.Rectangle { return d.bounds }

// Display converts frame to big-endian RGB565 and pushes it to the panel.
func (d *GC9307) Display(frame *image.RGBA) error {
	w := d.bounds.Dx()
	h := d.bounds.Dy()
	i := 0
	for y := 0; y < h; y++ {
		row := frame.Pix[y*frame.Stride : y*frame.Stride+w*4]
		for x := 0; x < w; x++ {
			r, g, b := row[x*4], row[x*4+1], row[x*4+2]
			px := uint16(r&0xF8)<<8 | uint16(g&0xFC)<<3 | uint16(b)>>3
			d.buf[i] = byte(px >> 8)
			d.buf[i+1] = byte(px)
			i += 2
		}
	}
	return d.panel.DrawRGBBitmap8(0, 0, d.buf, int16(w), int16(h))
}
