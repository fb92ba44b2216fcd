package ecolor

import (
	"math"

	"github.com/Rla102277/FUji-ai-lab/pkg/emath"
)

// The sRGB transfer function, in both directions.

var srgb8ToLinear [256]float64

func init() {
	for i := 0; i < 256; i++ {
		srgb8ToLinear[i] = emath.GammaCompress_F64(float64(i) / 255.0)
	}
}

// SRGBToLinear maps an 8-bit gamma encoded channel value into linear
// light, in the range [0,1].
func SRGBToLinear(b uint8) float64 {
	return srgb8ToLinear[b]
}

// SRGB16ToLinear is SRGBToLinear for 16-bit encoded sources.
func SRGB16ToLinear(v uint16) float64 {
	return emath.GammaCompress_F64(float64(v) / 65535.0)
}

// LinearToSRGB encodes a linear value as an 8-bit sRGB channel. The input is
// clamped to [0,1] first, so highlights above 1.0 saturate at 255.
func LinearToSRGB(f float64) uint8 {
	if math.IsNaN(f) {
		return 0
	}
	f = emath.Clamp(f, 0, 1)
	return uint8(math.Round(emath.GammaExpand_F64(f) * 255.0))
}
