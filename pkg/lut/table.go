package lut

import (
	"fmt"
	"math"

	"github.com/Rla102277/FUji-ai-lab/pkg/emath"
)

// Table is a 3D color lookup table. Entries are RGB triplets, with red
// varying fastest: the entry for lattice point (r,g,b) starts at
// 3*(r + g*N + b*N*N), same as the .cube file order.
//
// A Table is never modified after it is built, so one can be shared by
// any number of concurrent develops.
type Table struct {
	Title     string
	Size      int
	DomainMin emath.Vec3
	DomainMax emath.Vec3
	Entries   []float32
}

func (t *Table) String() string {
	return fmt.Sprintf("LUT[%q, %d^3, domain %v-%v]", t.Title, t.Size, t.DomainMin, t.DomainMax)
}

// Identity builds an NxNxN table where every entry is its own lattice coordinate.
func Identity(n int) *Table {
	t := &Table{
		Title:     fmt.Sprintf("Identity %d", n),
		Size:      n,
		DomainMin: emath.Vec3{0, 0, 0},
		DomainMax: emath.Vec3{1, 1, 1},
		Entries:   make([]float32, n*n*n*3),
	}
	scale := float64(n - 1)
	for b := 0; b < n; b++ {
		for g := 0; g < n; g++ {
			for r := 0; r < n; r++ {
				i := t.index(r, g, b)
				t.Entries[i+0] = float32(float64(r) / scale)
				t.Entries[i+1] = float32(float64(g) / scale)
				t.Entries[i+2] = float32(float64(b) / scale)
			}
		}
	}
	return t
}

func (t *Table) index(r, g, b int) int {
	return 3 * (r + g*t.Size + b*t.Size*t.Size)
}

func (t *Table) entry(r, g, b int) (float64, float64, float64) {
	i := t.index(r, g, b)
	return float64(t.Entries[i]), float64(t.Entries[i+1]), float64(t.Entries[i+2])
}

// Normalize maps a value into [0,1] relative to the table's domain. The
// result is not clamped; Sample does that.
func (t *Table) Normalize(r, g, b float64) (float64, float64, float64) {
	norm := func(v float64, i int) float64 {
		span := t.DomainMax[i] - t.DomainMin[i]
		if span <= 0 {
			return v
		}
		return (v - t.DomainMin[i]) / span
	}
	return norm(r, 0), norm(g, 1), norm(b, 2)
}

// lattice turns a normalized channel into the lower lattice index, the
// upper lattice index, and the fractional weight of the upper one.
func (t *Table) lattice(c float64) (int, int, float64) {
	if math.IsNaN(c) {
		c = 0
	}
	pos := emath.Clamp(c, 0, 1) * float64(t.Size-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo > t.Size-1 {
		lo = t.Size - 1
	}
	if hi > t.Size-1 {
		hi = t.Size - 1
	}
	return lo, hi, pos - float64(lo)
}

// Sample looks up a normalized RGB value, trilinearly interpolating
// between the 8 surrounding lattice points. Inputs outside [0,1] are
// clamped; there is no extrapolation.
func (t *Table) Sample(r, g, b float64) (float64, float64, float64) {
	r0, r1, fr := t.lattice(r)
	g0, g1, fg := t.lattice(g)
	b0, b1, fb := t.lattice(b)

	var out [3]float64
	corners := [8]struct {
		r, g, b int
		w       float64
	}{
		{r0, g0, b0, (1 - fr) * (1 - fg) * (1 - fb)},
		{r1, g0, b0, fr * (1 - fg) * (1 - fb)},
		{r0, g1, b0, (1 - fr) * fg * (1 - fb)},
		{r1, g1, b0, fr * fg * (1 - fb)},
		{r0, g0, b1, (1 - fr) * (1 - fg) * fb},
		{r1, g0, b1, fr * (1 - fg) * fb},
		{r0, g1, b1, (1 - fr) * fg * fb},
		{r1, g1, b1, fr * fg * fb},
	}
	for _, c := range corners {
		if c.w == 0 {
			continue
		}
		er, eg, eb := t.entry(c.r, c.g, c.b)
		out[0] += er * c.w
		out[1] += eg * c.w
		out[2] += eb * c.w
	}

	return out[0], out[1], out[2]
}

// Apply is Normalize followed by Sample.
func (t *Table) Apply(r, g, b float64) (float64, float64, float64) {
	return t.Sample(t.Normalize(r, g, b))
}
