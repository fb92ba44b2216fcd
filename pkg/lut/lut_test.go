package lut

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rla102277/FUji-ai-lab/pkg/emath"
)

const cube2 = `# Created by hand
TITLE "Warm Fade"
LUT_3D_SIZE 2
LUT_1D_INPUT_RANGE 0 1

0.1 0.0 0.0
1.0 0.0 0.0
0.0 1.0 0.0
1.0 1.0 0.0
0.0 0.0 0.9
1.0 0.0 1.0
0.0 1.0 1.0
1.0 1.0 1.0
`

func TestParseCube(t *testing.T) {
	tbl, err := ParseCubeString(cube2)
	require.NoError(t, err)

	assert.Equal(t, "Warm Fade", tbl.Title)
	assert.Equal(t, 2, tbl.Size)
	assert.Len(t, tbl.Entries, 24)
	assert.Equal(t, emath.Vec3{0, 0, 0}, tbl.DomainMin)
	assert.Equal(t, emath.Vec3{1, 1, 1}, tbl.DomainMax)

	// Red varies fastest
	r, g, b := tbl.entry(1, 0, 0)
	assert.Equal(t, []float64{1, 0, 0}, []float64{r, g, b})
	r, g, b = tbl.entry(0, 0, 1)
	assert.InDelta(t, 0.9, b, 1e-6)
	assert.Equal(t, 0.0, r+g)
}

func TestParseCubeDomain(t *testing.T) {
	src := strings.Replace(cube2, "LUT_3D_SIZE 2", "LUT_3D_SIZE 2\nDOMAIN_MIN 0 0 0\nDOMAIN_MAX 2 4 1", 1)
	tbl, err := ParseCubeString(src)
	require.NoError(t, err)
	assert.Equal(t, emath.Vec3{2, 4, 1}, tbl.DomainMax)

	r, g, b := tbl.Normalize(1, 1, 1)
	assert.Equal(t, []float64{0.5, 0.25, 1}, []float64{r, g, b})
}

func TestParseCubeErrors(t *testing.T) {
	fiveRows := "LUT_3D_SIZE 3\n" + strings.Repeat("0.5 0.5 0.5\n", 5)

	tests := map[string]string{
		"row count":     fiveRows,
		"no size":       "TITLE \"x\"\n0 0 0\n1 1 1\n",
		"size too small": "LUT_3D_SIZE 1\n0 0 0\n",
		"size not int":  "LUT_3D_SIZE two\n",
		"short row":     "LUT_3D_SIZE 2\n0 0\n",
		"bad number":    "LUT_3D_SIZE 2\n0 0 zero\n",
		"bad domain":    strings.Replace(cube2, "LUT_3D_SIZE 2", "LUT_3D_SIZE 2\nDOMAIN_MAX 0 1 1", 1),
	}

	for name, src := range tests {
		_, err := ParseCubeString(src)
		require.Error(t, err, name)
		var lutErr *MalformedLutError
		assert.True(t, errors.As(err, &lutErr), "%s: %v", name, err)
	}
}

func TestIdentitySample(t *testing.T) {
	for _, n := range []int{2, 5, 17} {
		tbl := Identity(n)
		for _, in := range [][3]float64{{0, 0, 0}, {1, 1, 1}, {0.18, 0.5, 0.9}, {0.33, 0.01, 0.77}} {
			r, g, b := tbl.Sample(in[0], in[1], in[2])
			assert.InDelta(t, in[0], r, 1e-6, "n=%d %v", n, in)
			assert.InDelta(t, in[1], g, 1e-6, "n=%d %v", n, in)
			assert.InDelta(t, in[2], b, 1e-6, "n=%d %v", n, in)
		}
	}
}

func TestSampleClampsOutOfDomain(t *testing.T) {
	tbl := Identity(9)
	r, g, b := tbl.Sample(-0.5, 1.7, 0.5)
	assert.InDelta(t, 0.0, r, 1e-6)
	assert.InDelta(t, 1.0, g, 1e-6)
	assert.InDelta(t, 0.5, b, 1e-6)
}

func TestSampleInterpolates(t *testing.T) {
	tbl, err := ParseCubeString(cube2)
	require.NoError(t, err)

	// Halfway along the red axis, between 0.1 and 1.0
	r, _, _ := tbl.Sample(0.5, 0, 0)
	assert.InDelta(t, 0.55, r, 1e-6)

	// Dead centre of the cube averages all 8 corners
	r, g, b := tbl.Sample(0.5, 0.5, 0.5)
	assert.InDelta(t, (0.1+1+0+1+0+1+0+1)/8, r, 1e-6)
	assert.InDelta(t, 0.5, g, 1e-6)
	assert.InDelta(t, (0.9+1+1+1)/8, b, 1e-6)
}

func TestWriteCubeRoundTrip(t *testing.T) {
	tbl, err := ParseCubeString(cube2)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteCube(&buf, tbl))

	tbl2, err := ParseCube(&buf)
	require.NoError(t, err)
	if diff := cmp.Diff(tbl, tbl2); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestVisualizeDeterministic(t *testing.T) {
	tbl := Identity(5)
	opts := VizOptions{Hues: 6, Values: 3, CellSize: 4}

	img1 := Visualize(tbl, opts)
	img2 := Visualize(tbl, opts)
	assert.Equal(t, img1.Bounds().Dx(), 24)
	assert.Equal(t, img1.Bounds().Dy(), 12)

	for y := 0; y < 12; y++ {
		for x := 0; x < 24; x++ {
			assert.Equal(t, fmt.Sprint(img1.At(x, y)), fmt.Sprint(img2.At(x, y)))
		}
	}

	// Identity LUT: top and bottom half of a cell match
	assert.Equal(t, fmt.Sprint(img1.At(1, 0)), fmt.Sprint(img1.At(1, 3)))
}
