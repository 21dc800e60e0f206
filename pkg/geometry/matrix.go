package geometry

import (
	"math"
)

// Matrix is a 3×3 homography in row-major order:
//
//	| m[0] m[1] m[2] |   | x |
//	| m[3] m[4] m[5] | · | y |
//	| m[6] m[7] m[8] |   | 1 |
//
// Affine transforms keep the last row at (0, 0, 1); perspective warps use a
// full projective matrix with a per-point divide.
type Matrix [9]float64

// Identity returns the identity matrix.
func Identity() Matrix {
	return Matrix{1, 0, 0, 0, 1, 0, 0, 0, 1}
}

// Translate returns a translation by (tx, ty).
func Translate(tx, ty float64) Matrix {
	return Matrix{1, 0, tx, 0, 1, ty, 0, 0, 1}
}

// Scale returns a scale by (sx, sy) about the origin.
func Scale(sx, sy float64) Matrix {
	return Matrix{sx, 0, 0, 0, sy, 0, 0, 0, 1}
}

// Rotate returns a rotation by theta radians about the origin.
// Positive theta rotates the +x axis toward +y, which on an image's
// y-down coordinate system is a clockwise rotation on screen.
func Rotate(theta float64) Matrix {
	sin, cos := math.Sincos(theta)
	return Matrix{cos, -sin, 0, sin, cos, 0, 0, 0, 1}
}

// Shear returns a shear with horizontal factor shx and vertical factor shy.
// Factors are tangents of the shear angles.
func Shear(shx, shy float64) Matrix {
	return Matrix{1, shx, 0, shy, 1, 0, 0, 0, 1}
}

// ReflectX returns a horizontal reflection about the vertical line x = axis.
func ReflectX(axis float64) Matrix {
	return Matrix{-1, 0, 2 * axis, 0, 1, 0, 0, 0, 1}
}

// ReflectY returns a vertical reflection about the horizontal line y = axis.
func ReflectY(axis float64) Matrix {
	return Matrix{1, 0, 0, 0, -1, 2 * axis, 0, 0, 1}
}

// RotateAbout returns a rotation by theta radians about center (cx, cy).
func RotateAbout(theta, cx, cy float64) Matrix {
	return Translate(cx, cy).Mul(Rotate(theta)).Mul(Translate(-cx, -cy))
}

// ScaleAbout returns a scale by (sx, sy) about center (cx, cy).
func ScaleAbout(sx, sy, cx, cy float64) Matrix {
	return Translate(cx, cy).Mul(Scale(sx, sy)).Mul(Translate(-cx, -cy))
}

// Mul returns m·n, the matrix applying n first and m second.
func (m Matrix) Mul(n Matrix) Matrix {
	var r Matrix
	for row := 0; row < 3; row++ {
		for col := 0; col < 3; col++ {
			sum := 0.0
			for k := 0; k < 3; k++ {
				sum += m[row*3+k] * n[k*3+col]
			}
			r[row*3+col] = sum
		}
	}
	return r
}

// Apply maps a point through the homography, performing the perspective
// divide. A point on the line at infinity (w ≈ 0) maps to itself.
func (m Matrix) Apply(x, y float64) (float64, float64) {
	w := m[6]*x + m[7]*y + m[8]
	if math.Abs(w) < 1e-12 {
		return x, y
	}
	return (m[0]*x + m[1]*y + m[2]) / w, (m[3]*x + m[4]*y + m[5]) / w
}

// IsAffine reports whether the last row is (0, 0, 1) within tolerance.
func (m Matrix) IsAffine() bool {
	return math.Abs(m[6]) < 1e-12 && math.Abs(m[7]) < 1e-12 && math.Abs(m[8]-1) < 1e-12
}

// Invert returns the inverse homography. The second return value is false
// when the matrix is singular.
func (m Matrix) Invert() (Matrix, bool) {
	a, b, c := m[0], m[1], m[2]
	d, e, f := m[3], m[4], m[5]
	g, h, i := m[6], m[7], m[8]

	ca := e*i - f*h
	cb := f*g - d*i
	cc := d*h - e*g

	det := a*ca + b*cb + c*cc
	if math.Abs(det) < 1e-12 {
		return Identity(), false
	}
	inv := 1.0 / det

	return Matrix{
		ca * inv, (c*h - b*i) * inv, (b*f - c*e) * inv,
		cb * inv, (a*i - c*g) * inv, (c*d - a*f) * inv,
		cc * inv, (b*g - a*h) * inv, (a*e - b*d) * inv,
	}, true
}

// Quad returns the four corners (x0,y0)-(x1,y1) rectangle mapped through m,
// in the order top-left, top-right, bottom-right, bottom-left.
func (m Matrix) Quad(x0, y0, x1, y1 float64) [4][2]float64 {
	var q [4][2]float64
	corners := [4][2]float64{{x0, y0}, {x1, y0}, {x1, y1}, {x0, y1}}
	for i, c := range corners {
		q[i][0], q[i][1] = m.Apply(c[0], c[1])
	}
	return q
}

// Bounds returns the axis-aligned bounding box of a rectangle mapped through
// m: (minX, minY, maxX, maxY).
func (m Matrix) Bounds(x0, y0, x1, y1 float64) (float64, float64, float64, float64) {
	q := m.Quad(x0, y0, x1, y1)
	minX, minY := q[0][0], q[0][1]
	maxX, maxY := minX, minY
	for _, c := range q[1:] {
		minX = math.Min(minX, c[0])
		minY = math.Min(minY, c[1])
		maxX = math.Max(maxX, c[0])
		maxY = math.Max(maxY, c[1])
	}
	return minX, minY, maxX, maxY
}

// QuadToQuad returns the homography mapping the four corners of src onto the
// corresponding corners of dst, or false if either quad is degenerate. It is
// built through the unit square: unit→dst composed with the inverse of unit→src.
// Used to build perspective warps from corner displacements.
func QuadToQuad(src, dst [4][2]float64) (Matrix, bool) {
	a, okA := unitSquareTo(src)
	if !okA {
		return Identity(), false
	}
	b, okB := unitSquareTo(dst)
	if !okB {
		return Identity(), false
	}
	aInv, ok := a.Invert()
	if !ok {
		return Identity(), false
	}
	return b.Mul(aInv), true
}

// unitSquareTo computes the projective map from the unit square to quad q
// using the standard adjugate construction.
func unitSquareTo(q [4][2]float64) (Matrix, bool) {
	x0, y0 := q[0][0], q[0][1]
	x1, y1 := q[1][0], q[1][1]
	x2, y2 := q[2][0], q[2][1]
	x3, y3 := q[3][0], q[3][1]

	dx1 := x1 - x2
	dx2 := x3 - x2
	dy1 := y1 - y2
	dy2 := y3 - y2
	sx := x0 - x1 + x2 - x3
	sy := y0 - y1 + y2 - y3

	den := dx1*dy2 - dx2*dy1
	if math.Abs(den) < 1e-12 {
		return Identity(), false
	}

	g := (sx*dy2 - dx2*sy) / den
	h := (dx1*sy - sx*dy1) / den

	return Matrix{
		x1 - x0 + g*x1, x3 - x0 + h*x3, x0,
		y1 - y0 + g*y1, y3 - y0 + h*y3, y0,
		g, h, 1,
	}, true
}
