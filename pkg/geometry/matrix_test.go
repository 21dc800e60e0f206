package geometry

import (
	"math"
	"testing"

	"pgregory.net/rapid"
)

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-6 }

func TestIdentity(t *testing.T) {
	m := Identity()
	x, y := m.Apply(12.5, -3.25)
	if x != 12.5 || y != -3.25 {
		t.Errorf("identity moved point: (%f, %f)", x, y)
	}
	if !m.IsAffine() {
		t.Error("identity not affine")
	}
}

func TestTranslateScale(t *testing.T) {
	m := Translate(10, -5)
	if x, y := m.Apply(1, 1); !approx(x, 11) || !approx(y, -4) {
		t.Errorf("translate: (%f, %f)", x, y)
	}

	s := Scale(2, 0.5)
	if x, y := s.Apply(4, 8); !approx(x, 8) || !approx(y, 4) {
		t.Errorf("scale: (%f, %f)", x, y)
	}
}

func TestMulOrder(t *testing.T) {
	// Mul applies the right operand first: (T·S)(p) = T(S(p)).
	m := Translate(10, 0).Mul(Scale(2, 2))
	x, y := m.Apply(3, 3)
	if !approx(x, 16) || !approx(y, 6) {
		t.Errorf("T·S applied wrong order: (%f, %f)", x, y)
	}
}

func TestRotateAbout_Quarter(t *testing.T) {
	// 90° clockwise (y-down) about the center of a 640×480 canvas.
	m := RotateAbout(math.Pi/2, 320, 240)
	x, y := m.Apply(320, 240)
	if !approx(x, 320) || !approx(y, 240) {
		t.Errorf("center moved: (%f, %f)", x, y)
	}
	// Top-left corner maps to top-right region under clockwise rotation.
	x, y = m.Apply(0, 0)
	if !approx(x, 560) || !approx(y, -80) {
		t.Errorf("corner mapped to (%f, %f), want (560, -80)", x, y)
	}
}

func TestReflect(t *testing.T) {
	// Horizontal flip of a 400-wide canvas: reflection about x = 200.
	m := ReflectX(200)
	if x, y := m.Apply(10, 33); !approx(x, 390) || !approx(y, 33) {
		t.Errorf("ReflectX: (%f, %f)", x, y)
	}
	if x, _ := m.Apply(390, 0); !approx(x, 10) {
		t.Error("ReflectX not an involution")
	}

	v := ReflectY(150)
	if x, y := v.Apply(10, 33); !approx(x, 10) || !approx(y, 267) {
		t.Errorf("ReflectY: (%f, %f)", x, y)
	}
}

func TestShear(t *testing.T) {
	m := Shear(0.5, 0)
	if x, y := m.Apply(0, 10); !approx(x, 5) || !approx(y, 10) {
		t.Errorf("shear: (%f, %f)", x, y)
	}
}

func TestInvert(t *testing.T) {
	m := Translate(7, -3).Mul(RotateAbout(0.37, 50, 80)).Mul(Scale(1.5, 0.75))
	inv, ok := m.Invert()
	if !ok {
		t.Fatal("invertible matrix reported singular")
	}

	x, y := m.Apply(12, 34)
	bx, by := inv.Apply(x, y)
	if !approx(bx, 12) || !approx(by, 34) {
		t.Errorf("roundtrip: (%f, %f), want (12, 34)", bx, by)
	}

	singular := Matrix{1, 2, 3, 2, 4, 6, 0, 0, 1}
	if _, ok := singular.Invert(); ok {
		t.Error("singular matrix inverted")
	}
}

func TestBounds(t *testing.T) {
	m := RotateAbout(math.Pi/2, 320, 240)
	minX, minY, maxX, maxY := m.Bounds(0, 0, 640, 480)
	if !approx(maxX-minX, 480) || !approx(maxY-minY, 640) {
		t.Errorf("rotated bounds %fx%f, want 480x640", maxX-minX, maxY-minY)
	}
}

func TestQuadToQuad_IdentityAndShift(t *testing.T) {
	src := [4][2]float64{{0, 0}, {100, 0}, {100, 50}, {0, 50}}

	m, ok := QuadToQuad(src, src)
	if !ok {
		t.Fatal("identity quad map failed")
	}
	for _, c := range src {
		x, y := m.Apply(c[0], c[1])
		if !approx(x, c[0]) || !approx(y, c[1]) {
			t.Errorf("identity quad moved (%f,%f) to (%f,%f)", c[0], c[1], x, y)
		}
	}
}

func TestQuadToQuad_Perspective(t *testing.T) {
	src := [4][2]float64{{0, 0}, {100, 0}, {100, 100}, {0, 100}}
	dst := [4][2]float64{{10, 5}, {90, 0}, {100, 95}, {0, 100}}

	m, ok := QuadToQuad(src, dst)
	if !ok {
		t.Fatal("perspective quad map failed")
	}
	for i, c := range src {
		x, y := m.Apply(c[0], c[1])
		if !approx(x, dst[i][0]) || !approx(y, dst[i][1]) {
			t.Errorf("corner %d mapped to (%f,%f), want (%f,%f)", i, x, y, dst[i][0], dst[i][1])
		}
	}
	if m.IsAffine() {
		t.Error("true perspective warp reported affine")
	}
}

// TestApply_InverseProperty checks Apply/Invert consistency over random
// affine compositions.
func TestApply_InverseProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		tx := rapid.Float64Range(-100, 100).Draw(t, "tx")
		ty := rapid.Float64Range(-100, 100).Draw(t, "ty")
		theta := rapid.Float64Range(-math.Pi, math.Pi).Draw(t, "theta")
		sx := rapid.Float64Range(0.2, 3).Draw(t, "sx")
		sy := rapid.Float64Range(0.2, 3).Draw(t, "sy")

		m := Translate(tx, ty).Mul(Rotate(theta)).Mul(Scale(sx, sy))
		inv, ok := m.Invert()
		if !ok {
			t.Fatal("composition reported singular")
		}

		x := rapid.Float64Range(-500, 500).Draw(t, "x")
		y := rapid.Float64Range(-500, 500).Draw(t, "y")
		fx, fy := m.Apply(x, y)
		bx, by := inv.Apply(fx, fy)
		if math.Abs(bx-x) > 1e-6 || math.Abs(by-y) > 1e-6 {
			t.Fatalf("roundtrip drift: (%f, %f) -> (%f, %f)", x, y, bx, by)
		}
	})
}
