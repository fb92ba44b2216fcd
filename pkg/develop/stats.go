package develop

import (
	"fmt"

	"github.com/codahale/hdrhistogram"

	"github.com/Rla102277/FUji-ai-lab/pkg/emath"
	"github.com/Rla102277/FUji-ai-lab/pkg/fimage"
)

// Luma is recorded in units of 1/lumaScale, up to 64x diffuse white.
const (
	lumaScale = 10000
	lumaMax   = 64 * lumaScale
)

// Exposure summarizes the luma distribution of an image.
type Exposure struct {
	P1, P50, P99 float64 // percentiles
	Mean         float64
	Max          float64
	Clipped      float64 // fraction of pixels with luma >= 1.0
}

func (e Exposure) String() string {
	return fmt.Sprintf("luma p1=%.4f p50=%.4f p99=%.4f mean=%.4f max=%.4f clipped=%.2f%%",
		e.P1, e.P50, e.P99, e.Mean, e.Max, e.Clipped*100)
}

// Stats builds a histogram of the luma of every pixel.
func Stats(img *fimage.LinearImage) Exposure {
	h := hdrhistogram.New(1, lumaMax, 3)
	clipped := 0

	for y := 0; y < img.Height; y++ {
		for x := 0; x < img.Width; x++ {
			l := emath.Luma709(img.RGB(x, y))
			if l >= 1.0 {
				clipped++
			}
			h.RecordValue(int64(emath.Clamp(l, 0, 64) * lumaScale))
		}
	}

	n := h.TotalCount()
	if n == 0 {
		return Exposure{}
	}

	return Exposure{
		P1:      float64(h.ValueAtQuantile(1)) / lumaScale,
		P50:     float64(h.ValueAtQuantile(50)) / lumaScale,
		P99:     float64(h.ValueAtQuantile(99)) / lumaScale,
		Mean:    h.Mean() / lumaScale,
		Max:     float64(h.Max()) / lumaScale,
		Clipped: float64(clipped) / float64(n),
	}
}
