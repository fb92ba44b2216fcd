package fimage

import (
	"fmt"
	"image"
	"image/color"

	"github.com/mdouchement/hdr/hdrcolor"
)

// LinearImage is an interleaved float32 RGB(A) buffer, holding linear
// light. 1.0 is diffuse white, but values above that are allowed (and
// kept) all the way through to output encoding. If there is an alpha
// channel, it is always 1.0.
//
// Implements image.Image, and hdr.Image so it can be handed straight
// to the HDR codecs.
type LinearImage struct {
	Width    int
	Height   int
	Channels int // 3 (RGB) or 4 (RGBA)
	Pix      []float32
}

// New allocates a black image; alpha, if present, is set to 1.0.
func New(w, h, ch int) *LinearImage {
	img := &LinearImage{
		Width:    w,
		Height:   h,
		Channels: ch,
		Pix:      make([]float32, w*h*ch),
	}
	if ch == 4 {
		for i := 3; i < len(img.Pix); i += 4 {
			img.Pix[i] = 1.0
		}
	}
	return img
}

func (li *LinearImage) String() string {
	return fmt.Sprintf("LinearImage[%dx%d, %dch]", li.Width, li.Height, li.Channels)
}

// Validate checks the buffer invariants.
func (li *LinearImage) Validate() error {
	if li == nil {
		return fmt.Errorf("nil image")
	}
	if li.Width <= 0 || li.Height <= 0 {
		return fmt.Errorf("bad dimensions %dx%d", li.Width, li.Height)
	}
	if li.Channels != 3 && li.Channels != 4 {
		return fmt.Errorf("bad channel count %d", li.Channels)
	}
	if n := li.Width * li.Height * li.Channels; len(li.Pix) != n {
		return fmt.Errorf("buffer holds %d samples, %dx%dx%d needs %d", len(li.Pix), li.Width, li.Height, li.Channels, n)
	}
	return nil
}

// Clone makes a deep copy.
func (li *LinearImage) Clone() *LinearImage {
	c := *li
	c.Pix = make([]float32, len(li.Pix))
	copy(c.Pix, li.Pix)
	return &c
}

func (li *LinearImage) offset(x, y int) int { return (y*li.Width + x) * li.Channels }

func (li *LinearImage) RGB(x, y int) (r, g, b float64) {
	i := li.offset(x, y)
	return float64(li.Pix[i]), float64(li.Pix[i+1]), float64(li.Pix[i+2])
}

func (li *LinearImage) SetRGB(x, y int, r, g, b float64) {
	i := li.offset(x, y)
	li.Pix[i], li.Pix[i+1], li.Pix[i+2] = float32(r), float32(g), float32(b)
}

// Implement image.Image
func (li *LinearImage) ColorModel() color.Model { return hdrcolor.RGBModel }
func (li *LinearImage) Bounds() image.Rectangle { return image.Rect(0, 0, li.Width, li.Height) }
func (li *LinearImage) At(x, y int) color.Color { return li.HDRAt(x, y) }

// Implement hdr.Image
func (li *LinearImage) Size() int { return li.Width * li.Height }
func (li *LinearImage) HDRAt(x, y int) hdrcolor.Color {
	if !(image.Point{x, y}.In(li.Bounds())) {
		return hdrcolor.RGB{}
	}
	r, g, b := li.RGB(x, y)
	return hdrcolor.RGB{R: r, G: g, B: b}
}
