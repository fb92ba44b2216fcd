package develop

import (
	"math"

	"github.com/Rla102277/FUji-ai-lab/pkg/ecolor"
	"github.com/Rla102277/FUji-ai-lab/pkg/emath"
	"github.com/Rla102277/FUji-ai-lab/pkg/fimage"
	"github.com/Rla102277/FUji-ai-lab/pkg/lut"
)

// A PixelFunc adjusts one linear RGB pixel, in place.
type PixelFunc func(rgb *[3]float64)

// Mid grey, in linear light. Contrast pivots around it, and the tone
// ranges are measured in stops away from it.
const Pivot = 0.18

func perPixel(f PixelFunc) func(*fimage.LinearImage) {
	return func(img *fimage.LinearImage) {
		var rgb [3]float64
		for i := 0; i+2 < len(img.Pix); i += img.Channels {
			rgb[0], rgb[1], rgb[2] = float64(img.Pix[i]), float64(img.Pix[i+1]), float64(img.Pix[i+2])
			f(&rgb)
			img.Pix[i], img.Pix[i+1], img.Pix[i+2] = float32(rgb[0]), float32(rgb[1]), float32(rgb[2])
		}
	}
}

func whiteBalanceGains(s Settings) (float64, float64, bool) {
	if s.Temperature == ecolor.NeutralTemperature && s.Tint == ecolor.NeutralTint {
		return 1, 1, false
	}
	r, b := ecolor.WhiteBalanceGains(s.Temperature, s.Tint)
	return r, b, true
}

// WhiteBalanceBy scales R and B; G is the reference channel.
func WhiteBalanceBy(gainR, gainB float64) PixelFunc {
	return func(rgb *[3]float64) {
		rgb[0] *= gainR
		rgb[2] *= gainB
	}
}

// ExposeBy is a pure gain of 2^ev.
func ExposeBy(ev float64) PixelFunc {
	m := math.Pow(2, ev)
	return func(rgb *[3]float64) {
		rgb[0] *= m
		rgb[1] *= m
		rgb[2] *= m
	}
}

// ToneBy applies contrast, then the highlight and shadow adjustments.
// All three act on luminance, and the pixel is scaled to match, so hue
// is left alone.
//
// Contrast is a power curve in log space pivoted at mid grey, so
// Pivot maps to itself. Highlights and shadows are gains (up to one stop
// at +/-100) weighted by smoothstep roll-offs over the 2 stops above and
// 3 stops below the pivot; the weights are gentle enough that the curve
// stays monotonic at the extremes.
func ToneBy(contrast, highlights, shadows float64) PixelFunc {
	k := 1 + contrast/100*0.5
	hl := highlights / 100
	sh := shadows / 100

	return func(rgb *[3]float64) {
		l := emath.Luma709(rgb[0], rgb[1], rgb[2])
		if l <= 0 {
			return
		}

		l2 := l
		if k != 1 {
			l2 = Pivot * math.Pow(l/Pivot, k)
		}

		e := math.Log2(math.Max(l2, 1e-6) / Pivot)
		wH := emath.SmoothStep(0, 2, e)
		wS := emath.SmoothStep(0, 3, -e)
		l2 *= math.Pow(2, hl*wH) * math.Pow(2, sh*wS)

		scale := l2 / l
		rgb[0] *= scale
		rgb[1] *= scale
		rgb[2] *= scale
	}
}

// SaturateBy moves each channel towards (or away from) the pixel's luma.
// Boosting is allowed to push channels further out than they were, but
// never across zero.
func SaturateBy(saturation float64) PixelFunc {
	f := 1 + saturation/100
	return func(rgb *[3]float64) {
		l := emath.Luma709(rgb[0], rgb[1], rgb[2])
		for i := 0; i < 3; i++ {
			v := l + (rgb[i]-l)*f
			if f > 1 && rgb[i] >= 0 && v < 0 {
				v = 0
			}
			rgb[i] = v
		}
	}
}

// LookupBy passes the pixel through a 3D LUT, normalized into the table's domain.
func LookupBy(t *lut.Table) PixelFunc {
	return func(rgb *[3]float64) {
		rgb[0], rgb[1], rgb[2] = t.Apply(rgb[0], rgb[1], rgb[2])
	}
}

// Sharpen is an unsharp mask on the luma plane: the high frequency
// residual (luma minus a blurred copy) is scaled and added back to every
// channel equally, which moves luma by exactly that amount.
func Sharpen(sharpness float64) func(*fimage.LinearImage) {
	amount := sharpness / 100 * 1.5
	const passes = 2

	return func(img *fimage.LinearImage) {
		luma := emath.NewFloatGrid(img.Width, img.Height)
		for y := 0; y < img.Height; y++ {
			for x := 0; x < img.Width; x++ {
				luma.Set(x, y, emath.Luma709(img.RGB(x, y)))
			}
		}

		detail := luma.Sub(luma.Blur(passes))

		for y := 0; y < img.Height; y++ {
			for x := 0; x < img.Width; x++ {
				d := amount * detail.Get(x, y)
				r, g, b := img.RGB(x, y)
				img.SetRGB(x, y, r+d, g+d, b+d)
			}
		}
	}
}

// grainNoise is a stateless hash of the pixel coordinate, in [-1,1]. The
// same pixel always gets the same noise, so grain is reproducible.
func grainNoise(x, y int) float64 {
	h := uint32(x)*0x8da6b343 ^ uint32(y)*0xd8163841 ^ 0x9e3779b9
	h ^= h >> 16
	h *= 0x7feb352d
	h ^= h >> 15
	h *= 0x846ca68b
	h ^= h >> 16
	return float64(h)/float64(math.MaxUint32)*2 - 1
}

// AddGrain perturbs the brightness of each pixel by up to +/-8% (at grain 100).
func AddGrain(grain float64) func(*fimage.LinearImage) {
	amp := grain / 100 * 0.08
	return func(img *fimage.LinearImage) {
		for y := 0; y < img.Height; y++ {
			for x := 0; x < img.Width; x++ {
				m := 1 + amp*grainNoise(x, y)
				r, g, b := img.RGB(x, y)
				img.SetRGB(x, y, r*m, g*m, b*m)
			}
		}
	}
}
