// Package strip assembles captured photos into a photostrip and derives
// the printable sheet from it. Layout is fully deterministic: for a fixed
// background and a fixed ordered photo set the output is pixel-identical
// across runs. Background selection is the only randomized input and is
// injected so tests can pin it.
package strip

import (
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"
	"image/png"
	"math/rand"
	"os"
	"path/filepath"
	"strings"

	xdraw "golang.org/x/image/draw"

	"photobooth/internal/debug"
)

// Layout modes. These match the strip.mode values in the config file.
const (
	ModeSingleVertical = "single_vertical"
	ModeDoubleVertical = "double_vertical"
)

// Layout holds the placement parameters for a photostrip.
type Layout struct {
	Mode       string // ModeSingleVertical or ModeDoubleVertical
	ThumbWidth int

	OffsetX int // horizontal offset of the (first) thumbnail column
	OffsetY int // vertical offset of the first row
	SkipX   int // gap between the two columns (double vertical)
	SkipY   int // gap between stacked thumbnails

	MarginTop    int
	MarginRight  int
	MarginBottom int
	MarginLeft   int

	OutputPath string // printable sheet destination, overwritten per strip
}

// Photostrip composes one completed sequence. Photos is the ordered
// capture list; an empty entry is a shot that timed out and leaves its
// slot showing the background.
type Photostrip struct {
	Photos     []string
	Background string

	layout     Layout
	composited image.Image
	printable  image.Image
}

// New builds a photostrip over the given captures and chosen background.
func New(photos []string, background string, layout Layout) *Photostrip {
	return &Photostrip{
		Photos:     photos,
		Background: background,
		layout:     layout,
	}
}

// ChooseBackground picks one background uniformly at random. pick may be
// nil (real randomness) or injected by tests to pin the choice.
func ChooseBackground(backgrounds []string, pick func(n int) int) string {
	if len(backgrounds) == 1 {
		return backgrounds[0]
	}
	if pick == nil {
		pick = rand.Intn
	}
	return backgrounds[pick(len(backgrounds))]
}

// Composite pastes the thumbnails onto the background and returns the
// result. The composite is computed once and cached.
func (p *Photostrip) Composite() (image.Image, error) {
	if p.composited != nil {
		return p.composited, nil
	}

	bg, err := loadImage(p.Background)
	if err != nil {
		return nil, fmt.Errorf("load background: %w", err)
	}

	canvas := image.NewRGBA(bg.Bounds())
	draw.Draw(canvas, canvas.Bounds(), bg, bg.Bounds().Min, draw.Src)

	// The thumbnail height comes from the first decodable photo's aspect
	// ratio and applies uniformly to every row, so rows stay aligned even
	// if one capture came back at an odd size.
	thumbW := p.layout.ThumbWidth
	thumbH := 0

	for i, path := range p.Photos {
		if path == "" {
			debug.Verbose("strip: slot %d empty, background shows through", i)
			continue
		}
		photo, err := loadImage(path)
		if err != nil {
			debug.Error(fmt.Errorf("strip: skipping slot %d: %w", i, err))
			continue
		}

		if thumbH == 0 {
			b := photo.Bounds()
			thumbH = thumbW * b.Dy() / b.Dx()
		}

		thumb := scaleToFit(photo, thumbW, thumbH)
		y := p.layout.OffsetY + (thumbH+p.layout.SkipY)*i

		paste(canvas, thumb, p.layout.OffsetX, y)
		if p.layout.Mode == ModeDoubleVertical {
			paste(canvas, thumb, p.layout.OffsetX+p.layout.SkipX+thumbW, y)
		}
	}

	p.composited = canvas
	return canvas, nil
}

// MakePrintable pads the composite with the configured margins and, for
// the single-vertical layout, duplicates the margined strip side by side
// into a double-wide sheet (two identical strips per page). The result is
// persisted to the layout's output path, overwriting any previous sheet.
func (p *Photostrip) MakePrintable() (image.Image, error) {
	if p.printable != nil {
		return p.printable, nil
	}

	composite, err := p.Composite()
	if err != nil {
		return nil, err
	}

	b := composite.Bounds()
	pageW := p.layout.MarginLeft + b.Dx() + p.layout.MarginRight
	pageH := p.layout.MarginTop + b.Dy() + p.layout.MarginBottom

	page := image.NewRGBA(image.Rect(0, 0, pageW, pageH))
	draw.Draw(page, page.Bounds(), image.White, image.Point{}, draw.Src)
	paste(page, composite, p.layout.MarginLeft, p.layout.MarginTop)

	var sheet *image.RGBA
	if p.layout.Mode == ModeDoubleVertical {
		// Already two columns wide; the margined page is the sheet.
		sheet = page
	} else {
		sheet = image.NewRGBA(image.Rect(0, 0, 2*pageW, pageH))
		paste(sheet, page, 0, 0)
		paste(sheet, page, pageW, 0)
	}

	if err := saveImage(p.layout.OutputPath, sheet); err != nil {
		return nil, fmt.Errorf("save printable sheet: %w", err)
	}
	debug.Info("Printable sheet written: %s (%dx%d)", p.layout.OutputPath, sheet.Bounds().Dx(), sheet.Bounds().Dy())

	p.printable = sheet
	return sheet, nil
}

// scaleToFit scales src preserving its aspect ratio so it fits in a
// maxW x maxH box, never upscaling beyond the box.
func scaleToFit(src image.Image, maxW, maxH int) image.Image {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()

	targetW := maxW
	targetH := targetW * h / w
	if targetH > maxH {
		targetH = maxH
		targetW = targetH * w / h
	}
	if targetW == w && targetH == h {
		return src
	}

	dst := image.NewRGBA(image.Rect(0, 0, targetW, targetH))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, b, xdraw.Over, nil)
	return dst
}

// paste draws src onto dst with its top-left corner at (x, y).
func paste(dst draw.Image, src image.Image, x, y int) {
	b := src.Bounds()
	r := image.Rect(x, y, x+b.Dx(), y+b.Dy())
	draw.Draw(dst, r, src, b.Min, draw.Over)
}

func loadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return img, nil
}

// saveImage encodes by extension: .png stays lossless, anything else is
// written as JPEG, which is what print spoolers expect.
func saveImage(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if strings.EqualFold(filepath.Ext(path), ".png") {
		return png.Encode(f, img)
	}
	return jpeg.Encode(f, img, &jpeg.Options{Quality: 92})
}
