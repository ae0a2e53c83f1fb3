package camera

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"sync"

	"photobooth/internal/debug"
)

// MockDevice simulates a camera without hardware: previews are a fixed
// generated JPEG and stills are that same JPEG written to dst. Failure
// counters let tests inject a number of transient device errors.
type MockDevice struct {
	mu      sync.Mutex
	preview []byte

	failInit    int
	failStill   int
	failPreview int

	inits    int
	captures int
}

// NewMockDevice creates a mock device with a generated preview frame.
func NewMockDevice() *MockDevice {
	return &MockDevice{preview: testFrame(640, 424)}
}

// testFrame encodes a flat gray JPEG of the given size.
func testFrame(w, h int) []byte {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	gray := color.RGBA{R: 0x60, G: 0x60, B: 0x68, A: 0xff}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, gray)
		}
	}
	var buf bytes.Buffer
	_ = jpeg.Encode(&buf, img, nil)
	return buf.Bytes()
}

func (d *MockDevice) Init() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failInit > 0 {
		d.failInit--
		return fmt.Errorf("mock: init failure injected")
	}
	d.inits++
	debug.Trace("mock camera: init (#%d)", d.inits)
	return nil
}

func (d *MockDevice) CaptureStill(dst string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failStill > 0 {
		d.failStill--
		return fmt.Errorf("mock: still capture failure injected")
	}
	if err := os.WriteFile(dst, d.preview, 0o644); err != nil {
		return err
	}
	d.captures++
	return nil
}

func (d *MockDevice) CapturePreview() ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failPreview > 0 {
		d.failPreview--
		return nil, fmt.Errorf("mock: preview failure injected")
	}
	return d.preview, nil
}

func (d *MockDevice) Close() error { return nil }

// FailNextInit makes the next n Init calls fail.
func (d *MockDevice) FailNextInit(n int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failInit = n
}

// FailNextStill makes the next n CaptureStill calls fail.
func (d *MockDevice) FailNextStill(n int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failStill = n
}

// FailNextPreview makes the next n CapturePreview calls fail.
func (d *MockDevice) FailNextPreview(n int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failPreview = n
}

// InitCount reports successful Init calls (for tests).
func (d *MockDevice) InitCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.inits
}

// CaptureCount reports successful still captures (for tests).
func (d *MockDevice) CaptureCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.captures
}
