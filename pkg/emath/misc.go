package emath

import "math"

// Some functions that only operate on basic types, that are useful

// https://www.sjbrown.co.uk/posts/gamma-correct-rendering/ - "linear RGB to sRGB"
// f is assumed to be in the range [0,1]
func GammaExpand_F64(f float64) float64 {
	if f <= 0.0031308 {
		return 12.92 * f
	}
	return 1.055*math.Pow(f, 1.0/2.4) - 0.055
}

// GammaCompress_F64 is the inverse of GammaExpand_F64; it takes an sRGB encoded
// value in [0,1] back to linear light.
func GammaCompress_F64(f float64) float64 {
	if f <= 0.04045 {
		return f / 12.92
	}
	return math.Pow((f+0.055)/1.055, 2.4)
}

func Clamp(v, min, max float64) float64 {
	if v < min {
		return min
	} else if v > max {
		return max
	}
	return v
}

// SmoothStep is the usual cubic hermite between edges e0 and e1.
func SmoothStep(e0, e1, x float64) float64 {
	t := Clamp((x-e0)/(e1-e0), 0, 1)
	return t * t * (3 - 2*t)
}

// Luma709 is the Rec.709 weighted sum, for linear RGB.
func Luma709(r, g, b float64) float64 {
	return 0.2126*r + 0.7152*g + 0.0722*b
}
