package emath

// Small 3x3 matrix helpers, used for color transforms

import (
	"fmt"

	"golang.org/x/image/math/f64" // Will be "image/math/f64" at some point, hopefully make this file redundant
	"gonum.org/v1/gonum/mat"
)

// Use local types so we can hang methods off them
type Vec3 f64.Vec3
type Mat3 f64.Mat3

func (m Mat3) Apply(v Vec3) Vec3 {
	return Vec3{
		(m[3*0+0]*v[0] + m[3*0+1]*v[1] + m[3*0+2]*v[2]),
		(m[3*1+0]*v[0] + m[3*1+1]*v[1] + m[3*1+2]*v[2]),
		(m[3*2+0]*v[0] + m[3*2+1]*v[1] + m[3*2+2]*v[2]),
	}
}

// Inverse hands the matrix over to gonum, which does the pivoting and
// tells us when the matrix is singular.
func (m Mat3) Inverse() (Mat3, error) {
	a := mat.NewDense(3, 3, m[:])
	var inv mat.Dense
	if err := inv.Inverse(a); err != nil {
		return Mat3{}, fmt.Errorf("invert %v: %v", m, err)
	}

	ret := Mat3{}
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			ret[3*r+c] = inv.At(r, c)
		}
	}
	return ret, nil
}

func (m Mat3) String() string {
	str := fmt.Sprintf("[%10f, %10f, %10f]\n", m[3*0+0], m[3*0+1], m[3*0+2])
	str += fmt.Sprintf("[%10f, %10f, %10f]\n", m[3*1+0], m[3*1+1], m[3*1+2])
	str += fmt.Sprintf("[%10f, %10f, %10f]\n", m[3*2+0], m[3*2+1], m[3*2+2])
	return str
}

func (v Vec3) String() string {
	return fmt.Sprintf("[%12.10f, %12.10f, %12.10f]", v[0], v[1], v[2])
}

func (v *Vec3) FloorAt(min float64) {
	if v[0] < min {
		v[0] = min
	}
	if v[1] < min {
		v[1] = min
	}
	if v[2] < min {
		v[2] = min
	}
}
