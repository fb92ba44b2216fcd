package develop

import (
	"fmt"
	"image"
	"image/color"
	"io"
	"log"
	"os"

	"github.com/mdouchement/hdr/codec/rgbe"
	"github.com/mdouchement/hdr/hdrcolor"
	"github.com/mdouchement/hdr/tmo"

	"github.com/Rla102277/FUji-ai-lab/pkg/ecolor"
	"github.com/Rla102277/FUji-ai-lab/pkg/fimage"
)

// Encode8 turns a developed buffer into a conventional 8-bit sRGB raster,
// for display. Anything above 1.0 clips.
func Encode8(img *fimage.LinearImage) *image.NRGBA {
	out := image.NewNRGBA(image.Rect(0, 0, img.Width, img.Height))
	for y := 0; y < img.Height; y++ {
		for x := 0; x < img.Width; x++ {
			r, g, b := img.RGB(x, y)
			out.SetNRGBA(x, y, color.NRGBA{
				R: ecolor.LinearToSRGB(r),
				G: ecolor.LinearToSRGB(g),
				B: ecolor.LinearToSRGB(b),
				A: 255,
			})
		}
	}
	return out
}

// nonNegative is a view of a LinearImage with negative samples floored
// to zero, which the HDR codecs and tonemappers need.
type nonNegative struct {
	*fimage.LinearImage
}

func (nn nonNegative) HDRAt(x, y int) hdrcolor.Color {
	return ecolor.HDRRGBFloorAt(nn.LinearImage.HDRAt(x, y).(hdrcolor.RGB), 0)
}
func (nn nonNegative) At(x, y int) color.Color { return nn.HDRAt(x, y) }

// WriteHDR writes the linear buffer as a Radiance RGBE (.hdr) file,
// keeping all the highlight range.
func WriteHDR(w io.Writer, img *fimage.LinearImage) error {
	if err := rgbe.Encode(w, nonNegative{img}); err != nil {
		return fmt.Errorf("encoding RGBE: %w", err)
	}
	return nil
}

// WriteHDRFile is WriteHDR to a named file.
func WriteHDRFile(filename string, img *fimage.LinearImage) error {
	if writer, err := os.Create(filename); err != nil {
		return fmt.Errorf("WriteHDRFile, open+w '%s': %v", filename, err)
	} else {
		defer writer.Close()
		err := WriteHDR(writer, img)
		if err != nil {
			log.Printf("WriteHDRFile, %s: %v\n", filename, err)
		}
		return err
	}
}

var (
	Tonemappers = []string{"drago03", "durand", "icam06", "linear", "reinhard05"}
)

// Tonemap compresses the full range of a developed buffer into a
// displayable image, as an alternative to Encode8's hard clip.
func Tonemap(img *fimage.LinearImage, name string) (image.Image, error) {
	var op tmo.ToneMappingOperator
	src := nonNegative{img}

	switch name {
	case "drago03":
		op = tmo.NewDefaultDrago03(src)
	case "durand":
		op = tmo.NewDefaultDurand(src)
	case "icam06":
		op = tmo.NewDefaultICam06(src)
	case "linear":
		op = tmo.NewLinear(src)
	case "reinhard05":
		op = tmo.NewDefaultReinhard05(src)
	default:
		return nil, fmt.Errorf("tonemapper %q not recognized, wanted %v", name, Tonemappers)
	}

	return op.Perform(), nil
}
