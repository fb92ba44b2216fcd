package develop

import (
	"bytes"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rla102277/FUji-ai-lab/pkg/ecolor"
	"github.com/Rla102277/FUji-ai-lab/pkg/fimage"
	"github.com/Rla102277/FUji-ai-lab/pkg/lut"
)

// gradient is a small test image with a spread of colors and levels,
// including a highlight above 1.0.
func gradient(w, h, ch int) *fimage.LinearImage {
	img := fimage.New(w, h, ch)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			fx := float64(x) / float64(w-1)
			fy := float64(y) / float64(h-1)
			img.SetRGB(x, y, 0.02+fx*0.9, 0.05+fy*0.6, 0.3*(1-fx)+0.01)
		}
	}
	img.SetRGB(w-1, h-1, 2.5, 2.2, 1.9)
	return img
}

func maxDiff(a, b *fimage.LinearImage) float64 {
	d := 0.0
	for i := range a.Pix {
		d = math.Max(d, math.Abs(float64(a.Pix[i]-b.Pix[i])))
	}
	return d
}

func TestDefaultsAreIdentity(t *testing.T) {
	in := gradient(8, 6, 4)
	assert.Empty(t, NewPipeline(DefaultSettings(), nil).Stages)

	out, err := Develop(in, DefaultSettings(), nil)
	require.NoError(t, err)
	assert.Equal(t, in.Pix, out.Pix)
	assert.NotSame(t, &in.Pix[0], &out.Pix[0], "output must be a new buffer")
}

func TestDevelopDoesNotMutateInput(t *testing.T) {
	in := gradient(8, 6, 3)
	orig := in.Clone()

	s := Settings{Exposure: 1, Contrast: 30, Temperature: 4000, Tint: 10, Highlights: -40,
		Shadows: 25, Saturation: 20, Grain: 50, Sharpness: 60}
	_, err := Develop(in, s, lut.Identity(5))
	require.NoError(t, err)

	if diff := cmp.Diff(orig, in); diff != "" {
		t.Errorf("input mutated:\n%s", diff)
	}
}

func TestExposureRoundTrip(t *testing.T) {
	in := gradient(8, 6, 3)

	up, err := Develop(in, Settings{Exposure: 1, Temperature: 6500}, nil)
	require.NoError(t, err)
	r, _, _ := up.RGB(3, 2)
	r0, _, _ := in.RGB(3, 2)
	assert.InDelta(t, 2*r0, r, 1e-6)

	down, err := Develop(up, Settings{Exposure: -1, Temperature: 6500}, nil)
	require.NoError(t, err)
	assert.Less(t, maxDiff(in, down), 1e-6)
}

func TestAlphaStaysOne(t *testing.T) {
	in := gradient(5, 5, 4)
	s := Settings{Exposure: 2, Contrast: -50, Temperature: 3000, Saturation: 100, Grain: 100, Sharpness: 100}
	out, err := Develop(in, s, nil)
	require.NoError(t, err)
	for i := 3; i < len(out.Pix); i += 4 {
		assert.Equal(t, float32(1.0), out.Pix[i])
	}
}

func TestGrainIsDeterministic(t *testing.T) {
	in := gradient(16, 9, 3)
	s := DefaultSettings()
	s.Grain = 70

	a, err := Develop(in, s, nil)
	require.NoError(t, err)
	b, err := Develop(in, s, nil)
	require.NoError(t, err)

	assert.Equal(t, a.Pix, b.Pix)
	assert.Greater(t, maxDiff(in, a), 0.0, "grain should do something")
}

func TestGrainNoiseRange(t *testing.T) {
	sum := 0.0
	for y := 0; y < 100; y++ {
		for x := 0; x < 100; x++ {
			n := grainNoise(x, y)
			require.GreaterOrEqual(t, n, -1.0)
			require.LessOrEqual(t, n, 1.0)
			sum += n
		}
	}
	assert.InDelta(t, 0, sum/10000, 0.05, "noise should be centred")
	assert.NotEqual(t, grainNoise(1, 2), grainNoise(2, 1))
}

func TestNeutralWhiteBalanceFromEstimate(t *testing.T) {
	// A grey card shot under tungsten light
	in := fimage.New(2, 2, 3)
	for y := 0; y < 2; y++ {
		for x := 0; x < 2; x++ {
			in.SetRGB(x, y, 0.30, 0.20, 0.09)
		}
	}

	wb, err := ecolor.EstimateKelvinAndTint(in.RGB(0, 0))
	require.NoError(t, err)

	s := DefaultSettings()
	s.Temperature, s.Tint = wb.Temperature, wb.Tint
	out, err := Develop(in, s, nil)
	require.NoError(t, err)

	r, g, b := out.RGB(1, 1)
	assert.InDelta(t, g, r, 2e-3)
	assert.InDelta(t, g, b, 2e-3)
}

func TestWhiteBalanceCornersStayBounded(t *testing.T) {
	in := fimage.New(1, 1, 3)
	in.SetRGB(0, 0, 0.18, 0.18, 0.18)

	for _, temp := range []float64{500, 2000, 2001, 12000, 20000} {
		for _, tint := range []float64{-90, -50, 0, 50, 90} {
			out, err := Develop(in, Settings{Temperature: temp, Tint: tint}, nil)
			require.NoError(t, err)
			r, g, b := out.RGB(0, 0)
			assert.InDelta(t, 0.18, g, 1e-6, "%vK %+v", temp, tint)
			for _, c := range []float64{r, b} {
				assert.Greater(t, c, 0.05, "%vK %+v", temp, tint)
				assert.Less(t, c, 3.0, "%vK %+v", temp, tint)
			}
		}
	}
}

func TestToneKeepsPivotAndOrder(t *testing.T) {
	for _, c := range []float64{-100, -30, 40, 100} {
		f := ToneBy(c, 0, 0)
		rgb := [3]float64{Pivot, Pivot, Pivot}
		f(&rgb)
		assert.InDelta(t, Pivot, rgb[1], 1e-9, "contrast %v", c)
	}

	// Monotonic over a wide range, at the extreme settings
	for _, p := range [][3]float64{{100, 100, 100}, {-100, -100, -100}, {100, -100, 100}, {-100, 100, -100}} {
		f := ToneBy(p[0], p[1], p[2])
		prev := 0.0
		for l := 0.001; l < 16; l *= 1.05 {
			rgb := [3]float64{l, l, l}
			f(&rgb)
			assert.Greater(t, rgb[1], prev, "%v at %v", p, l)
			prev = rgb[1]
		}
	}
}

func TestHighlightsAndShadows(t *testing.T) {
	bright := [3]float64{2, 2, 2}
	ToneBy(0, -100, 0)(&bright)
	assert.Less(t, bright[0], 2.0)

	dark := [3]float64{0.02, 0.02, 0.02}
	ToneBy(0, 0, 100)(&dark)
	assert.Greater(t, dark[0], 0.02)

	// Highlights leave the shadows alone
	dark2 := [3]float64{0.02, 0.02, 0.02}
	ToneBy(0, -100, 0)(&dark2)
	assert.InDelta(t, 0.02, dark2[0], 1e-12)
}

func TestSaturation(t *testing.T) {
	rgb := [3]float64{0.5, 0.2, 0.1}
	SaturateBy(-100)(&rgb)
	assert.InDelta(t, rgb[0], rgb[1], 1e-12)
	assert.InDelta(t, rgb[1], rgb[2], 1e-12)

	rgb = [3]float64{0.9, 0.1, 0.02}
	SaturateBy(100)(&rgb)
	assert.Greater(t, rgb[0], 0.9)
	assert.GreaterOrEqual(t, rgb[2], 0.0, "no inversion")
}

func TestSharpenFlatIsNoop(t *testing.T) {
	in := fimage.New(6, 6, 3)
	for y := 0; y < 6; y++ {
		for x := 0; x < 6; x++ {
			in.SetRGB(x, y, 0.4, 0.3, 0.2)
		}
	}
	s := DefaultSettings()
	s.Sharpness = 100
	out, err := Develop(in, s, nil)
	require.NoError(t, err)
	assert.Less(t, maxDiff(in, out), 1e-6)
}

func TestSharpenBoostsEdges(t *testing.T) {
	in := fimage.New(8, 4, 3)
	for y := 0; y < 4; y++ {
		for x := 4; x < 8; x++ {
			in.SetRGB(x, y, 0.8, 0.8, 0.8)
		}
	}
	out, err := Develop(in, Settings{Temperature: 6500, Sharpness: 100}, nil)
	require.NoError(t, err)

	_, dark, _ := out.RGB(3, 1)
	_, light, _ := out.RGB(4, 1)
	assert.Less(t, dark, 0.0)
	assert.Greater(t, light, 0.8)
}

func TestIdentityLUT(t *testing.T) {
	in := gradient(6, 6, 3)
	in.SetRGB(5, 5, 0.9, 0.9, 0.9) // keep everything inside the LUT domain

	out, err := Develop(in, DefaultSettings(), lut.Identity(17))
	require.NoError(t, err)
	assert.Less(t, maxDiff(in, out), 1e-5)
}

func TestStagesInOrder(t *testing.T) {
	s := Settings{Exposure: 1, Contrast: 1, Temperature: 5000, Highlights: 1, Saturation: 1, Grain: 1, Sharpness: 1}
	p := NewPipeline(s, lut.Identity(2))
	names := []string{}
	for _, st := range p.Stages {
		names = append(names, st.Name)
	}
	assert.Equal(t, []string{"whitebalance", "exposure", "tone", "saturation", "lut", "sharpness", "grain"}, names)
}

func TestDevelopRejectsBadBuffer(t *testing.T) {
	_, err := Develop(&fimage.LinearImage{Width: 2, Height: 2, Channels: 3, Pix: make([]float32, 5)}, DefaultSettings(), nil)
	assert.Error(t, err)
}

func TestNormalize(t *testing.T) {
	s := Settings{Exposure: 9, Contrast: -400, Temperature: math.NaN(), Tint: 80, Grain: -3, Sharpness: 1000}.Normalize()
	assert.Equal(t, Settings{Exposure: 3, Contrast: -100, Temperature: 6500, Tint: 50, Grain: 0, Sharpness: 100}, s)
}

func TestOverlay(t *testing.T) {
	o := Overlay{Saturation: F(20), Contrast: F(-10)}
	o.Merge(Overlay{Contrast: F(15), Grain: F(30)})

	s := o.Apply(DefaultSettings())
	want := DefaultSettings()
	want.Saturation, want.Contrast, want.Grain = 20, 15, 30
	assert.Equal(t, want, s)

	assert.True(t, Overlay{}.IsEmpty())
	assert.False(t, o.IsEmpty())
}

func TestEncode8(t *testing.T) {
	img := fimage.New(2, 1, 3)
	img.SetRGB(0, 0, 1.0, 0.18, -0.2)
	img.SetRGB(1, 0, 5, 0, 0)
	out := Encode8(img)

	c := out.NRGBAAt(0, 0)
	assert.Equal(t, uint8(255), c.R)
	assert.Equal(t, uint8(118), c.G)
	assert.Equal(t, uint8(0), c.B)
	assert.Equal(t, uint8(255), c.A)
	assert.Equal(t, uint8(255), out.NRGBAAt(1, 0).R)
}

func TestStats(t *testing.T) {
	img := fimage.New(10, 10, 3)
	for i := 0; i < 100; i++ {
		v := 0.18
		if i >= 90 {
			v = 2
		}
		img.SetRGB(i%10, i/10, v, v, v)
	}
	e := Stats(img)
	assert.InDelta(t, 0.18, e.P50, 0.002)
	assert.InDelta(t, 2, e.Max, 0.01)
	assert.InDelta(t, 0.10, e.Clipped, 1e-9)
}

func TestWriteHDR(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteHDR(&buf, gradient(4, 3, 3)))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("#?")), "radiance header")
}

func TestTonemapUnknown(t *testing.T) {
	_, err := Tonemap(gradient(4, 4, 3), "bogus")
	assert.Error(t, err)

	img, err := Tonemap(gradient(4, 4, 3), "linear")
	require.NoError(t, err)
	assert.Equal(t, 4, img.Bounds().Dx())
}
