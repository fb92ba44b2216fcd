package emath

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMat3Inverse(t *testing.T) {
	m := Mat3{
		2, 0, 1,
		1, 3, 0,
		0, 1, 4,
	}
	inv, err := m.Inverse()
	require.NoError(t, err)

	v := Vec3{0.25, -1, 3}
	back := inv.Apply(m.Apply(v))
	for i := range v {
		assert.InDelta(t, v[i], back[i], 1e-12, "element %d", i)
	}
}

func TestMat3InverseSingular(t *testing.T) {
	m := Mat3{
		1, 2, 3,
		2, 4, 6,
		0, 0, 1,
	}
	_, err := m.Inverse()
	assert.Error(t, err)
}

func TestMat3Apply(t *testing.T) {
	assert.Equal(t, Vec3{14, 10, 12}, Mat3{1, 2, 3, 3, 2, 1, 2, 2, 2}.Apply(Vec3{1, 2, 3}))
	assert.Equal(t, Vec3{2, 4, 1}, Mat3{2, 0, 0, 0, 4, 0, 0, 0, 1}.Apply(Vec3{1, 1, 1}))
}

func TestVec3Floor(t *testing.T) {
	v := Vec3{-1, 0.5, 2}
	v.FloorAt(0)
	assert.Equal(t, Vec3{0, 0.5, 2}, v)
}

func TestGammaRoundTrip(t *testing.T) {
	for _, f := range []float64{0, 0.001, 0.0031308, 0.01, 0.18, 0.5, 1} {
		assert.InDelta(t, f, GammaCompress_F64(GammaExpand_F64(f)), 1e-12)
	}
}

func TestSmoothStep(t *testing.T) {
	assert.Equal(t, 0.0, SmoothStep(0, 2, -1))
	assert.Equal(t, 0.5, SmoothStep(0, 2, 1))
	assert.Equal(t, 1.0, SmoothStep(0, 2, 5))
	assert.InDelta(t, 1.0, Luma709(1, 1, 1), 1e-12)
}

func TestFloatGridBlurKeepsFlatAreasFlat(t *testing.T) {
	g := NewFloatGrid(5, 4)
	for y := 0; y < 4; y++ {
		for x := 0; x < 5; x++ {
			g.Set(x, y, 0.3)
		}
	}
	b := g.Blur(3)
	for y := 0; y < 4; y++ {
		for x := 0; x < 5; x++ {
			assert.InDelta(t, 0.3, b.Get(x, y), 1e-12)
		}
	}
	diff := g.Sub(b)
	assert.Equal(t, 0.0, diff.Get(2, 2))
}

func TestFloatGridBlurSpreadsImpulse(t *testing.T) {
	g := NewFloatGrid(5, 5)
	g.Set(2, 2, 16)
	b := g.GaussianBlur()

	assert.Equal(t, 4.0, b.Get(2, 2))
	assert.Equal(t, 2.0, b.Get(1, 2))
	assert.Equal(t, 1.0, b.Get(1, 1))
	assert.Equal(t, 0.0, b.Get(0, 0))
	assert.Equal(t, 16.0, g.Get(2, 2), "source untouched")
}

func TestFloatGridDegenerate(t *testing.T) {
	var empty FloatGrid
	assert.Equal(t, 0, empty.Dx())
	assert.Equal(t, 0, empty.Dy())

	g := NewFloatGrid(1, 3)
	g.Set(0, 1, 2)
	b := g.GaussianBlur()
	assert.Equal(t, 2.0, b.Get(0, 1))

	c := g.Blur(0)
	c.Set(0, 1, 7)
	assert.Equal(t, 2.0, g.Get(0, 1))
}
