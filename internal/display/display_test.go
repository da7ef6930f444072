package display

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

// captureDevice keeps the last composited frame.
type captureDevice struct {
	bounds image.Rectangle
	last   *image.RGBA
	pushes int
}

func (d *captureDevice) Bounds() image.Rectangle { return d.bounds }

func (d *captureDevice) Display(frame *image.RGBA) error {
	d.last = frame
	d.pushes++
	return nil
}

// writePNG writes a w×h image filled with fill to dir/name.
func writePNG(t *testing.T, dir, name string, w, h int, fill color.RGBA) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, fill)
		}
	}
	f, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
}

func TestLoad_Memoizes(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, dir, "A.png", 2, 2, color.RGBA{255, 0, 0, 255})
	s := NewScreen(&captureDevice{bounds: image.Rect(0, 0, 8, 4)}, dir)

	first, err := s.Load("A.png")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !s.Cached("A.png") {
		t.Error("frame not cached after Load")
	}

	// Deleting the file proves the second Load never touches disk.
	if err := os.Remove(filepath.Join(dir, "A.png")); err != nil {
		t.Fatal(err)
	}
	second, err := s.Load("A.png")
	if err != nil {
		t.Fatalf("cached Load: %v", err)
	}
	if first != second {
		t.Error("cached Load returned a different bitmap")
	}
}

func TestLoad_MissingAsset(t *testing.T) {
	s := NewScreen(&captureDevice{bounds: image.Rect(0, 0, 8, 4)}, t.TempDir())
	if _, err := s.Load("GONE.png"); err == nil {
		t.Fatal("expected error for missing asset")
	}
}

func TestLoad_CorruptAsset(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "BAD.png"), []byte("not a png"), 0o644); err != nil {
		t.Fatal(err)
	}
	s := NewScreen(&captureDevice{bounds: image.Rect(0, 0, 8, 4)}, dir)
	if _, err := s.Load("BAD.png"); err == nil {
		t.Fatal("expected error for corrupt asset")
	}
}

func TestShow_CentersHorizontallyAtTop(t *testing.T) {
	dir := t.TempDir()
	red := color.RGBA{255, 0, 0, 255}
	writePNG(t, dir, "A.png", 2, 2, red)
	dev := &captureDevice{bounds: image.Rect(0, 0, 8, 4)}
	s := NewScreen(dev, dir)

	img, err := s.Load("A.png")
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Show(img); err != nil {
		t.Fatalf("Show: %v", err)
	}
	if dev.pushes != 1 {
		t.Fatalf("pushes = %d", dev.pushes)
	}

	// 2px image on an 8px canvas lands at x=3..4, y=0..1.
	frame := dev.last
	if got := frame.RGBAAt(3, 0); got != red {
		t.Errorf("pixel (3,0) = %v, want red", got)
	}
	if got := frame.RGBAAt(4, 1); got != red {
		t.Errorf("pixel (4,1) = %v, want red", got)
	}
	white := color.RGBA{255, 255, 255, 255}
	if got := frame.RGBAAt(0, 0); got != white {
		t.Errorf("pixel (0,0) = %v, want white background", got)
	}
	if got := frame.RGBAAt(3, 3); got != white {
		t.Errorf("pixel (3,3) = %v, want white below the bitmap", got)
	}
}

func TestShow_RespectsAlpha(t *testing.T) {
	dir := t.TempDir()
	// Fully transparent bitmap: background shows through.
	writePNG(t, dir, "CLEAR.png", 2, 2, color.RGBA{0, 0, 0, 0})
	dev := &captureDevice{bounds: image.Rect(0, 0, 8, 4)}
	s := NewScreen(dev, dir)

	img, err := s.Load("CLEAR.png")
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Show(img); err != nil {
		t.Fatal(err)
	}
	white := color.RGBA{255, 255, 255, 255}
	if got := dev.last.RGBAAt(3, 0); got != white {
		t.Errorf("pixel (3,0) = %v, want white through transparency", got)
	}
}

func TestShow_DoesNotMutateBackground(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, dir, "A.png", 2, 2, color.RGBA{255, 0, 0, 255})
	dev := &captureDevice{bounds: image.Rect(0, 0, 8, 4)}
	s := NewScreen(dev, dir)

	img, _ := s.Load("A.png")
	_ = s.Show(img)
	_ = s.Show(img)

	// Second frame must start from a clean background, not the prior frame.
	white := color.RGBA{255, 255, 255, 255}
	if got := s.bg.RGBAAt(3, 0); got != white {
		t.Errorf("background mutated: %v", got)
	}
}
