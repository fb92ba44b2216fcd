package emath

// A FloatGrid is a grid of floats, with some operations. The develop
// pipeline uses one to hold the luma plane while sharpening.
type FloatGrid struct {
	stride int
	values []float64
}

func NewFloatGrid(w, h int) FloatGrid {
	return FloatGrid{
		stride: w,
		values: make([]float64, w*h),
	}
}

func (g1 *FloatGrid) NewFromThis() FloatGrid  { return NewFloatGrid(g1.Dx(), g1.Dy()) }
func (fg *FloatGrid) Set(x, y int, v float64) { fg.values[fg.stride*y+x] = v }
func (fg *FloatGrid) Get(x, y int) float64    { return fg.values[fg.stride*y+x] }
func (fg *FloatGrid) Dx() int                 { return fg.stride }
func (fg *FloatGrid) Dy() int {
	if fg.stride == 0 {
		return 0
	}
	return len(fg.values) / fg.stride
}

func (g1 *FloatGrid) Copy() *FloatGrid {
	g2 := FloatGrid{stride: g1.stride, values: make([]float64, len(g1.values))}
	copy(g2.values, g1.values)
	return &g2
}

// GaussianBlur is a single separable [1 2 1]/4 pass, with the edges
// weighted [3 1]/4 so that flat areas stay flat.
func (g1 FloatGrid) GaussianBlur() FloatGrid {
	width := g1.Dx()
	height := g1.Dy()
	g2 := g1.NewFromThis()

	if width < 2 || height < 2 {
		copy(g2.values, g1.values)
		return g2
	}

	T := g1.NewFromThis()

	//--- X blur, build up in T
	for y := 0; y < height; y++ {
		for x := 1; x < width-1; x++ {
			t := 2.0 * g1.Get(x, y)
			t += g1.Get(x-1, y)
			t += g1.Get(x+1, y)
			T.Set(x, y, t/4.0)
		}
		T.Set(0, y, (3.0*g1.Get(0, y)+g1.Get(1, y))/4.0)
		T.Set(width-1, y, (3.0*g1.Get(width-1, y)+g1.Get(width-2, y))/4.0)
	}

	//--- Y blur, read from T and generate output
	for x := 0; x < width; x++ {
		for y := 1; y < height-1; y++ {
			t := 2.0 * T.Get(x, y)
			t += T.Get(x, y-1)
			t += T.Get(x, y+1)
			g2.Set(x, y, t/4.0)
		}
		g2.Set(x, 0, (3.0*T.Get(x, 0)+T.Get(x, 1))/4.0)
		g2.Set(x, height-1, (3.0*T.Get(x, height-1)+T.Get(x, height-2))/4.0)
	}

	return g2
}

// Blur runs `passes` rounds of GaussianBlur; repeated binomial passes
// approach a real gaussian with variance passes/2.
func (g1 FloatGrid) Blur(passes int) FloatGrid {
	if passes <= 0 {
		return *g1.Copy()
	}
	g := g1
	for i := 0; i < passes; i++ {
		g = g.GaussianBlur()
	}
	return g
}

// Sub returns g1 - g2, cell by cell. Both grids must be the same size.
func (g1 *FloatGrid) Sub(g2 FloatGrid) FloatGrid {
	out := g1.NewFromThis()
	for i := range g1.values {
		out.values[i] = g1.values[i] - g2.values[i]
	}
	return out
}
