package ingest

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"

	"github.com/nfnt/resize"
	_ "golang.org/x/image/tiff"

	"github.com/Rla102277/FUji-ai-lab/pkg/ecolor"
	"github.com/Rla102277/FUji-ai-lab/pkg/fimage"
)

// DecodeOptions apply to the conventional raster path.
type DecodeOptions struct {
	// If non-zero, images wider than this are scaled down (keeping the
	// aspect ratio) before linearization. Handy for quick previews.
	MaxWidth int
}

// DecodeRaster reads a JPEG, PNG or TIFF, and linearizes it.
func DecodeRaster(src []byte, opts DecodeOptions) (*fimage.LinearImage, error) {
	img, format, err := image.Decode(bytes.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("decode raster: %w", err)
	}

	if opts.MaxWidth > 0 && img.Bounds().Dx() > opts.MaxWidth {
		img = resize.Resize(uint(opts.MaxWidth), 0, img, resize.Lanczos3)
	}

	li := ImageToLinear(img)
	if err := li.Validate(); err != nil {
		return nil, fmt.Errorf("decode raster (%s): %w", format, err)
	}
	return li, nil
}

func is16Bit(img image.Image) bool {
	switch img.(type) {
	case *image.RGBA64, *image.NRGBA64, *image.Gray16:
		return true
	}
	return false
}

// ImageToLinear converts a gamma encoded image.Image into linear light,
// at 16-bit precision if the source has it.
func ImageToLinear(img image.Image) *fimage.LinearImage {
	b := img.Bounds()
	li := fimage.New(b.Dx(), b.Dy(), 3)
	wide := is16Bit(img)

	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			c := img.At(b.Min.X+x, b.Min.Y+y)
			if wide {
				n := color.NRGBA64Model.Convert(c).(color.NRGBA64)
				li.SetRGB(x, y, ecolor.SRGB16ToLinear(n.R), ecolor.SRGB16ToLinear(n.G), ecolor.SRGB16ToLinear(n.B))
			} else {
				n := color.NRGBAModel.Convert(c).(color.NRGBA)
				li.SetRGB(x, y, ecolor.SRGBToLinear(n.R), ecolor.SRGBToLinear(n.G), ecolor.SRGBToLinear(n.B))
			}
		}
	}

	return li
}
