package ecolor

import (
	"github.com/mdouchement/hdr/hdrcolor"

	"github.com/Rla102277/FUji-ai-lab/pkg/emath"
)

var (
	// Linear sRGB(D65) to XYZ(D65), and back.
	// http://www.brucelindbloom.com/index.html?Eqn_RGB_XYZ_Matrix.html
	LinearSRGB_to_XYZD65 = emath.Mat3{
		0.4124564, 0.3575761, 0.1804375,
		0.2126729, 0.7151522, 0.0721750,
		0.0193339, 0.1191920, 0.9503041,
	}
	XYZD65_to_LinearSRGB = emath.Mat3{
		3.2404542, -1.5371385, -0.4985314,
		-0.9692660, 1.8760108, 0.0415560,
		0.0556434, -0.2040259, 1.0572252,
	}

	// XYZ to the Bradford "sharpened" cone space, for von Kries style
	// white balance.
	XYZ_to_BradfordLMS = emath.Mat3{
		0.8951, 0.2664, -0.1614,
		-0.7502, 1.7135, 0.0367,
		0.0389, -0.0685, 1.0296,
	}

	// Translates XYZ(D50) to sRGB(D65)
	//
	// We use the second table on Bruce Lindblooms's site; it bundles in
	// the chromatic adaptation transform that we need to move from D50
	// to D65 reference whites. The DNG ForwardMatrix is the inverse of
	// this: it maps white balanced linear sRGB into the XYZ(D50) PCS.
	XYZD50_to_LinearSRGBD65 = emath.Mat3{
		3.1338561, -1.6168667, -0.4906146,
		-0.9787684, 1.9161415, 0.0334540,
		0.0719453, -0.2289914, 1.4052427,
	}
)

// ForwardMatrix returns the DNG ForwardMatrix for linear sRGB "camera"
// data: white balanced camera RGB to XYZ(D50).
func ForwardMatrix() (emath.Mat3, error) {
	return XYZD50_to_LinearSRGBD65.Inverse()
}

// ColorMatrix returns the DNG ColorMatrix for linear sRGB data under a
// D65 calibration illuminant: XYZ to camera RGB.
func ColorMatrix() emath.Mat3 {
	return XYZD65_to_LinearSRGB
}

func HDRRGBFloorAt(c1 hdrcolor.RGB, min float64) hdrcolor.RGB {
	c2 := c1
	if c2.R < min {
		c2.R = min
	}
	if c2.G < min {
		c2.G = min
	}
	if c2.B < min {
		c2.B = min
	}
	return c2
}
