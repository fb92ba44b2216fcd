package ecolor

import (
	"fmt"
	"math"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/Rla102277/FUji-ai-lab/pkg/emath"
)

/*

White balance is modelled as "which illuminant was the scene lit by".

The temperature picks a point near the Planckian locus, in CIE 1960 uv
space. We use Krystek's rational approximation of the locus, which is
good to better than 1e-4 in uv over 1000-15000K; we only need
2000-12000K. Because D65 sits slightly above the locus (Duv ~ +0.0032),
every illuminant is lifted off the locus by that same offset, so that
the reference (6500K) is essentially D65 and a linear sRGB pixel with
R=G=B is neutral.

The R and B gains come from a von Kries adaptation in Bradford cone
space: the ratio of the reference's cone response to the illuminant's,
with the long and short cones standing in for R and B, and the medium
cone for G. Cone responses of points on the locus are always positive,
so the gains are too, even at 2000K where the illuminant itself is
outside the sRGB gamut.

The tint is a green/magenta scaling on top of that, measured in stops:
positive tint means a green illuminant, which the develop step then
removes by lifting R and B (i.e. the picture goes magenta).

*/

const (
	NeutralTemperature = 6500.0
	NeutralTint        = 0.0

	MinTemperature = 2000.0
	MaxTemperature = 12000.0
	MinTint        = -50.0
	MaxTint        = 50.0

	// Duv of the D65 whitepoint, relative to the Planckian locus
	DuvRef = 0.0032

	// Stops of green removed per unit of tint; +50 is half a stop
	StopsPerTint = 0.01
)

// A WhiteBalance is a correlated color temperature (Kelvin) plus a
// green/magenta tint offset.
type WhiteBalance struct {
	Temperature float64 `yaml:"temperature"`
	Tint        float64 `yaml:"tint"`
}

func (wb WhiteBalance) String() string {
	return fmt.Sprintf("%.0fK, tint %+.1f", wb.Temperature, wb.Tint)
}

// An EstimationError means no white balance can be derived from the sample.
type EstimationError struct {
	R, G, B float64
	Reason  string
}

func (e *EstimationError) Error() string {
	return fmt.Sprintf("white balance estimation from [%g, %g, %g]: %s", e.R, e.G, e.B, e.Reason)
}

// locusUV is Krystek's approximation to the Planckian locus.
func locusUV(t float64) (u, v float64) {
	u = (0.860117757 + 1.54118254e-4*t + 1.28641212e-7*t*t) / (1 + 8.42420235e-4*t + 7.08145163e-7*t*t)
	v = (0.317398726 + 4.22806245e-5*t + 4.20481691e-8*t*t) / (1 - 2.89741816e-5*t + 1.61456053e-7*t*t)
	return
}

// locusNormal is the unit normal to the locus at t, pointing "up" (towards green).
func locusNormal(t float64) (nu, nv float64) {
	h := t * 1e-4
	u1, v1 := locusUV(t - h)
	u2, v2 := locusUV(t + h)
	du, dv := u2-u1, v2-v1
	n := math.Hypot(du, dv)
	return dv / n, -du / n
}

func uvToXY(u, v float64) (x, y float64) {
	d := 2*u - 8*v + 4
	return 3 * u / d, 2 * v / d
}

// IlluminantXY returns the chromaticity of the illuminant at temp.
func IlluminantXY(temp float64) (x, y float64) {
	temp = emath.Clamp(temp, MinTemperature, MaxTemperature)

	u, v := locusUV(temp)
	nu, nv := locusNormal(temp)
	return uvToXY(u+nu*DuvRef, v+nv*DuvRef)
}

// IlluminantCone is the Bradford cone response to the illuminant at temp,
// at unit luminance.
func IlluminantCone(temp float64) emath.Vec3 {
	x, y := IlluminantXY(temp)
	X, Y, Z := colorful.XyyToXyz(x, y, 1.0)
	return XYZ_to_BradfordLMS.Apply(emath.Vec3{X, Y, Z})
}

var refCone = IlluminantCone(NeutralTemperature)

// temperatureLogGains are ln(gainR) and ln(gainB) at tint 0.
func temperatureLogGains(temp float64) (lr, lb float64) {
	ill := IlluminantCone(temp)
	lg := math.Log(refCone[1] / ill[1])
	return math.Log(refCone[0]/ill[0]) - lg, math.Log(refCone[2]/ill[2]) - lg
}

// WhiteBalanceGains returns the multipliers for the R and B channels that
// move an image shot under (temp, tint) to the neutral reference. G is the
// reference channel and is never scaled. At the reference itself both
// gains are exactly 1. Out of range inputs are clamped.
func WhiteBalanceGains(temp, tint float64) (r, b float64) {
	if temp == NeutralTemperature && tint == NeutralTint {
		return 1, 1
	}
	temp = emath.Clamp(temp, MinTemperature, MaxTemperature)
	tint = emath.Clamp(tint, MinTint, MaxTint)

	lr, lb := temperatureLogGains(temp)
	lt := tint * StopsPerTint * math.Ln2
	return math.Exp(lr + lt), math.Exp(lb + lt)
}

// temperatureFor finds the temperature whose R/B gain balance is d, i.e.
// ln(gainR) - ln(gainB) == d. That balance rises strictly with
// temperature, so a bisection in mired space finds it; samples beyond
// either end of the range land on that end.
func temperatureFor(d float64) float64 {
	balance := func(temp float64) float64 {
		lr, lb := temperatureLogGains(temp)
		return lr - lb
	}
	if d <= balance(MinTemperature) {
		return MinTemperature
	}
	if d >= balance(MaxTemperature) {
		return MaxTemperature
	}

	lo, hi := 1e6/MaxTemperature, 1e6/MinTemperature // mireds; balance falls as mireds rise
	for i := 0; i < 100 && hi-lo > 1e-10; i++ {
		mid := (lo + hi) / 2
		if balance(1e6/mid) > d {
			lo = mid
		} else {
			hi = mid
		}
	}
	return 1e6 / ((lo + hi) / 2)
}

// EstimateKelvinAndTint takes a linear RGB sample that should be neutral
// grey, and works out the (temperature, tint) that the develop step
// needs to make it so. It is the inverse of WhiteBalanceGains.
//
// The sample's chromaticity is taken as the pair of gains that would
// neutralise it, in log space. The temperature is the point on the
// tint 0 curve of WhiteBalanceGains with the same R/B balance, and the
// tint is how far the sample sits off that curve along the green axis.
func EstimateKelvinAndTint(r, g, b float64) (WhiteBalance, error) {
	for _, c := range []float64{r, g, b} {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return WhiteBalance{}, &EstimationError{r, g, b, "non-finite sample"}
		}
	}
	peak := math.Max(r, math.Max(g, b))
	if peak < 1e-6 {
		return WhiteBalance{}, &EstimationError{r, g, b, "sample is black, no chromaticity"}
	}

	rgb := emath.Vec3{r, g, b}
	rgb.FloorAt(peak * 1e-6)

	// The gains that make this sample neutral
	lr := math.Log(rgb[1] / rgb[0])
	lb := math.Log(rgb[1] / rgb[2])

	temp := temperatureFor(lr - lb)
	tr, tb := temperatureLogGains(temp)
	tint := ((lr - tr) + (lb - tb)) / 2 / (StopsPerTint * math.Ln2)

	return WhiteBalance{
		Temperature: temp,
		Tint:        emath.Clamp(tint, MinTint, MaxTint),
	}, nil
}
