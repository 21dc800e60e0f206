package engine

import (
	"image"
	"math"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/math/f64"

	"github.com/yelloji/relgen/pkg/geometry"
	"github.com/yelloji/relgen/pkg/rng"
	"github.com/yelloji/relgen/pkg/transform"
)

// exactOp marks a stage with an integer pixel remapping that avoids
// interpolation and off-by-one drift entirely.
type exactOp int

const (
	exactNone exactOp = iota
	exactFlipH
	exactFlipV
	exactRot90
	exactRot180
	exactRot270
	exactCrop
)

// stage is one geometric step lowered to a homography plus the canvas it
// produces. Stage parameters are evaluated against the current canvas, so
// rotation pivots about the current center, not the original one.
type stage struct {
	matrix geometry.Matrix
	width  int
	height int
	exact  exactOp
	crop   image.Rectangle // for exactCrop
	interp string
}

// buildStage lowers one resolved geometric transform against the current
// canvas (w, h). The stream seeds randomized geometry (perspective corners).
func buildStage(step transform.Resolved, w, h int, stream *rng.RNG) (stage, error) {
	fw, fh := float64(w), float64(h)
	cx, cy := fw/2, fh/2

	switch step.Type {
	case transform.KindResize:
		nw, nh := step.Int("width"), step.Int("height")
		if nw < 1 || nh < 1 {
			return stage{}, errCanvas(step.Type)
		}
		return stage{
			matrix: geometry.Scale(float64(nw)/fw, float64(nh)/fh),
			width:  nw, height: nh,
			interp: step.String("interpolation"),
		}, nil

	case transform.KindFlip:
		if step.String("axis") == "vertical" {
			return stage{matrix: geometry.ReflectY(cy), width: w, height: h, exact: exactFlipV}, nil
		}
		return stage{matrix: geometry.ReflectX(cx), width: w, height: h, exact: exactFlipH}, nil

	case transform.KindRotate:
		return rotateStage(step.Float("angle"), w, h), nil

	case transform.KindCrop:
		kf := step.Float("keep_fraction")
		cw := int(math.Round(fw * kf))
		ch := int(math.Round(fh * kf))
		if cw < 1 || ch < 1 {
			return stage{}, errCanvas(step.Type)
		}
		x0 := (w - cw) / 2
		y0 := (h - ch) / 2
		return stage{
			matrix: geometry.Translate(-float64(x0), -float64(y0)),
			width:  cw, height: ch,
			exact: exactCrop,
			crop:  image.Rect(x0, y0, x0+cw, y0+ch),
		}, nil

	case transform.KindShear:
		factor := math.Tan(step.Float("angle") * math.Pi / 180)
		m := geometry.Shear(factor, 0)
		return expandCanvas(m, fw, fh), nil

	case transform.KindAffine:
		s := step.Float("scale")
		rot := step.Float("rotation") * math.Pi / 180
		shx := math.Tan(step.Float("shear_x") * math.Pi / 180)
		shy := math.Tan(step.Float("shear_y") * math.Pi / 180)
		dx := step.Float("shift_x") * fw
		dy := step.Float("shift_y") * fh

		m := geometry.Translate(cx+dx, cy+dy).
			Mul(geometry.Rotate(rot)).
			Mul(geometry.Shear(shx, shy)).
			Mul(geometry.Scale(s, s)).
			Mul(geometry.Translate(-cx, -cy))
		return stage{matrix: m, width: w, height: h}, nil

	case transform.KindRandomZoom:
		f := step.Float("factor")
		if f <= 0 {
			return stage{}, errCanvas(step.Type)
		}
		return stage{matrix: geometry.ScaleAbout(f, f, cx, cy), width: w, height: h}, nil

	case transform.KindPerspective:
		d := step.Float("distortion")
		src := [4][2]float64{{0, 0}, {fw, 0}, {fw, fh}, {0, fh}}
		dst := src
		maxX, maxY := d*fw, d*fh
		for i := range dst {
			// Jitter each corner inward so the warp stays on-canvas.
			jx := stream.Float64Range(0, maxX)
			jy := stream.Float64Range(0, maxY)
			if dst[i][0] > 0 {
				jx = -jx
			}
			if dst[i][1] > 0 {
				jy = -jy
			}
			dst[i][0] += jx
			dst[i][1] += jy
		}
		m, ok := geometry.QuadToQuad(src, dst)
		if !ok {
			return stage{}, errCanvas(step.Type)
		}
		return stage{matrix: m, width: w, height: h}, nil

	default:
		// Photometric kinds never reach buildStage.
		return stage{matrix: geometry.Identity(), width: w, height: h}, nil
	}
}

// rotateStage builds a rotation about the current center with the canvas
// expanded to contain the rotated source. Multiples of 90° take the exact
// integer path.
func rotateStage(angleDeg float64, w, h int) stage {
	fw, fh := float64(w), float64(h)

	norm := math.Mod(angleDeg, 360)
	if norm < 0 {
		norm += 360
	}
	switch norm {
	case 0:
		return stage{matrix: geometry.Identity(), width: w, height: h}
	case 90:
		// (x, y) -> (H - y, x)
		return stage{matrix: geometry.Matrix{0, -1, fh, 1, 0, 0, 0, 0, 1}, width: h, height: w, exact: exactRot90}
	case 180:
		return stage{matrix: geometry.Matrix{-1, 0, fw, 0, -1, fh, 0, 0, 1}, width: w, height: h, exact: exactRot180}
	case 270:
		// (x, y) -> (y, W - x)
		return stage{matrix: geometry.Matrix{0, 1, 0, -1, 0, fw, 0, 0, 1}, width: h, height: w, exact: exactRot270}
	}

	theta := angleDeg * math.Pi / 180
	m := geometry.RotateAbout(theta, fw/2, fh/2)
	return expandCanvas(m, fw, fh)
}

// expandCanvas translates m so the mapped source rectangle lands at the
// origin and sizes the canvas to contain it.
func expandCanvas(m geometry.Matrix, fw, fh float64) stage {
	minX, minY, maxX, maxY := m.Bounds(0, 0, fw, fh)
	shifted := geometry.Translate(-minX, -minY).Mul(m)
	return stage{
		matrix: shifted,
		width:  int(math.Ceil(maxX - minX)),
		height: int(math.Ceil(maxY - minY)),
	}
}

func errCanvas(kind transform.Kind) error {
	return &stageError{kind: kind}
}

// stageError reports a stage that produced a degenerate canvas.
type stageError struct {
	kind transform.Kind
}

func (e *stageError) Error() string {
	return "stage " + string(e.kind) + " produced a degenerate canvas"
}

func (e *stageError) Unwrap() error { return ErrTransformFailed }

// warp renders a stage: exact integer remapping where available, x/image
// interpolated transforms for affine stages, and an inverse-homography
// bilinear sampler for perspective.
func warp(src *image.NRGBA, st stage) *image.NRGBA {
	switch st.exact {
	case exactFlipH:
		return flipH(src)
	case exactFlipV:
		return flipV(src)
	case exactRot90:
		return rot90(src)
	case exactRot180:
		return rot180(src)
	case exactRot270:
		return rot270(src)
	case exactCrop:
		return cropExact(src, st.crop)
	}

	dst := image.NewNRGBA(image.Rect(0, 0, st.width, st.height))
	m := st.matrix

	if m.IsAffine() {
		scaler := xdraw.Interpolator(xdraw.BiLinear)
		if st.interp == "nearest" {
			scaler = xdraw.NearestNeighbor
		}
		aff := f64.Aff3{m[0], m[1], m[2], m[3], m[4], m[5]}
		scaler.Transform(dst, aff, src, src.Bounds(), xdraw.Src, nil)
		return dst
	}

	inv, ok := m.Invert()
	if !ok {
		return dst
	}
	sampleInverse(dst, src, inv)
	return dst
}

// sampleInverse fills dst by mapping each destination pixel center through
// the inverse homography and sampling src bilinearly. Off-canvas samples are
// transparent black.
func sampleInverse(dst, src *image.NRGBA, inv geometry.Matrix) {
	sw, sh := src.Rect.Dx(), src.Rect.Dy()
	dw, dh := dst.Rect.Dx(), dst.Rect.Dy()

	for y := 0; y < dh; y++ {
		for x := 0; x < dw; x++ {
			sx, sy := inv.Apply(float64(x)+0.5, float64(y)+0.5)
			sx -= 0.5
			sy -= 0.5

			x0 := int(math.Floor(sx))
			y0 := int(math.Floor(sy))
			if x0 < -1 || y0 < -1 || x0 >= sw || y0 >= sh {
				continue
			}
			fx := sx - float64(x0)
			fy := sy - float64(y0)

			var acc [4]float64
			var wsum float64
			for dyi := 0; dyi <= 1; dyi++ {
				for dxi := 0; dxi <= 1; dxi++ {
					px, py := x0+dxi, y0+dyi
					if px < 0 || py < 0 || px >= sw || py >= sh {
						continue
					}
					wx := fx
					if dxi == 0 {
						wx = 1 - fx
					}
					wy := fy
					if dyi == 0 {
						wy = 1 - fy
					}
					weight := wx * wy
					o := src.PixOffset(px, py)
					acc[0] += weight * float64(src.Pix[o])
					acc[1] += weight * float64(src.Pix[o+1])
					acc[2] += weight * float64(src.Pix[o+2])
					acc[3] += weight * float64(src.Pix[o+3])
					wsum += weight
				}
			}
			if wsum <= 0 {
				continue
			}
			o := dst.PixOffset(x, y)
			dst.Pix[o] = clampByte(acc[0] / wsum)
			dst.Pix[o+1] = clampByte(acc[1] / wsum)
			dst.Pix[o+2] = clampByte(acc[2] / wsum)
			dst.Pix[o+3] = clampByte(acc[3] / wsum)
		}
	}
}

func flipH(src *image.NRGBA) *image.NRGBA {
	w, h := src.Rect.Dx(), src.Rect.Dy()
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			copyPixel(dst, src, w-1-x, y, x, y)
		}
	}
	return dst
}

func flipV(src *image.NRGBA) *image.NRGBA {
	w, h := src.Rect.Dx(), src.Rect.Dy()
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			copyPixel(dst, src, x, h-1-y, x, y)
		}
	}
	return dst
}

func rot90(src *image.NRGBA) *image.NRGBA {
	w, h := src.Rect.Dx(), src.Rect.Dy()
	dst := image.NewNRGBA(image.Rect(0, 0, h, w))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			copyPixel(dst, src, h-1-y, x, x, y)
		}
	}
	return dst
}

func rot180(src *image.NRGBA) *image.NRGBA {
	w, h := src.Rect.Dx(), src.Rect.Dy()
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			copyPixel(dst, src, w-1-x, h-1-y, x, y)
		}
	}
	return dst
}

func rot270(src *image.NRGBA) *image.NRGBA {
	w, h := src.Rect.Dx(), src.Rect.Dy()
	dst := image.NewNRGBA(image.Rect(0, 0, h, w))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			copyPixel(dst, src, y, w-1-x, x, y)
		}
	}
	return dst
}

func cropExact(src *image.NRGBA, r image.Rectangle) *image.NRGBA {
	dst := image.NewNRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	for y := 0; y < r.Dy(); y++ {
		srcOff := src.PixOffset(r.Min.X, r.Min.Y+y)
		dstOff := dst.PixOffset(0, y)
		copy(dst.Pix[dstOff:dstOff+r.Dx()*4], src.Pix[srcOff:srcOff+r.Dx()*4])
	}
	return dst
}

func copyPixel(dst, src *image.NRGBA, dx, dy, sx, sy int) {
	do := dst.PixOffset(dx, dy)
	so := src.PixOffset(sx, sy)
	copy(dst.Pix[do:do+4], src.Pix[so:so+4])
}

func clampByte(v float64) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v + 0.5)
}
