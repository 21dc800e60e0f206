package engine

import (
	"image"
	"math"

	"github.com/yelloji/relgen/pkg/rng"
	"github.com/yelloji/relgen/pkg/transform"
)

// applyPhotometric dispatches one photometric step. The stream seeds
// randomized pixel effects (noise, cutout); deterministic ops ignore it.
func applyPhotometric(img *image.NRGBA, step transform.Resolved, stream *rng.RNG) *image.NRGBA {
	switch step.Type {
	case transform.KindBrightness:
		return adjustBrightness(img, step.Float("percent"))
	case transform.KindContrast:
		return adjustContrast(img, step.Float("percent"))
	case transform.KindBlur:
		return boxBlur(img, step.Float("radius"))
	case transform.KindNoise:
		return addNoise(img, step.Float("strength"), stream)
	case transform.KindColorJitter:
		img = adjustHueSaturation(img, step.Float("hue"), step.Float("saturation"))
		img = adjustBrightness(img, step.Float("brightness"))
		return adjustContrast(img, step.Float("contrast"))
	case transform.KindGamma:
		return applyGamma(img, step.Float("gamma"))
	case transform.KindGrayscale:
		return grayscale(img)
	case transform.KindEqualize:
		return equalize(img)
	case transform.KindCLAHE:
		return clahe(img, step.Float("clip_limit"), step.Int("tile_grid"))
	case transform.KindCutout:
		return cutout(img, step.Int("num_holes"), step.Int("hole_size"), stream)
	default:
		return img
	}
}

// mapChannels applies a per-channel LUT to RGB, leaving alpha untouched.
func mapChannels(img *image.NRGBA, lut *[256]uint8) *image.NRGBA {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		dst.Pix[i] = lut[img.Pix[i]]
		dst.Pix[i+1] = lut[img.Pix[i+1]]
		dst.Pix[i+2] = lut[img.Pix[i+2]]
		dst.Pix[i+3] = img.Pix[i+3]
	}
	return dst
}

func adjustBrightness(img *image.NRGBA, percent float64) *image.NRGBA {
	shift := percent / 100 * 255
	var lut [256]uint8
	for i := range lut {
		lut[i] = clampByte(float64(i) + shift)
	}
	return mapChannels(img, &lut)
}

func adjustContrast(img *image.NRGBA, percent float64) *image.NRGBA {
	c := percent / 100 * 255
	factor := (259 * (c + 255)) / (255 * (259 - c))
	var lut [256]uint8
	for i := range lut {
		lut[i] = clampByte(factor*(float64(i)-128) + 128)
	}
	return mapChannels(img, &lut)
}

func applyGamma(img *image.NRGBA, gamma float64) *image.NRGBA {
	if gamma <= 0 {
		return img
	}
	inv := 1.0 / gamma
	var lut [256]uint8
	for i := range lut {
		lut[i] = clampByte(255 * math.Pow(float64(i)/255, inv))
	}
	return mapChannels(img, &lut)
}

func grayscale(img *image.NRGBA) *image.NRGBA {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		y := luma(img.Pix[i], img.Pix[i+1], img.Pix[i+2])
		dst.Pix[i] = y
		dst.Pix[i+1] = y
		dst.Pix[i+2] = y
		dst.Pix[i+3] = img.Pix[i+3]
	}
	return dst
}

func luma(r, g, b uint8) uint8 {
	return clampByte(0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b))
}

// boxBlur approximates a Gaussian with three separable box passes.
func boxBlur(img *image.NRGBA, radius float64) *image.NRGBA {
	r := int(math.Round(radius))
	if r < 1 {
		return img
	}
	out := img
	for pass := 0; pass < 3; pass++ {
		out = boxPassH(out, r)
		out = boxPassV(out, r)
	}
	return out
}

func boxPassH(img *image.NRGBA, r int) *image.NRGBA {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var acc [4]float64
			n := 0
			for k := -r; k <= r; k++ {
				px := x + k
				if px < 0 || px >= w {
					continue
				}
				o := img.PixOffset(px, y)
				for c := 0; c < 4; c++ {
					acc[c] += float64(img.Pix[o+c])
				}
				n++
			}
			o := dst.PixOffset(x, y)
			for c := 0; c < 4; c++ {
				dst.Pix[o+c] = clampByte(acc[c] / float64(n))
			}
		}
	}
	return dst
}

func boxPassV(img *image.NRGBA, r int) *image.NRGBA {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var acc [4]float64
			n := 0
			for k := -r; k <= r; k++ {
				py := y + k
				if py < 0 || py >= h {
					continue
				}
				o := img.PixOffset(x, py)
				for c := 0; c < 4; c++ {
					acc[c] += float64(img.Pix[o+c])
				}
				n++
			}
			o := dst.PixOffset(x, y)
			for c := 0; c < 4; c++ {
				dst.Pix[o+c] = clampByte(acc[c] / float64(n))
			}
		}
	}
	return dst
}

// addNoise adds seeded Gaussian noise with sigma scaled by strength percent.
func addNoise(img *image.NRGBA, strength float64, stream *rng.RNG) *image.NRGBA {
	if strength <= 0 {
		return img
	}
	sigma := strength / 100 * 255
	w, h := img.Rect.Dx(), img.Rect.Dy()
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		n := gaussian(stream) * sigma
		dst.Pix[i] = clampByte(float64(img.Pix[i]) + n)
		dst.Pix[i+1] = clampByte(float64(img.Pix[i+1]) + n)
		dst.Pix[i+2] = clampByte(float64(img.Pix[i+2]) + n)
		dst.Pix[i+3] = img.Pix[i+3]
	}
	return dst
}

// gaussian draws a standard normal via Box-Muller.
func gaussian(stream *rng.RNG) float64 {
	u1 := stream.Float64()
	for u1 == 0 {
		u1 = stream.Float64()
	}
	u2 := stream.Float64()
	return math.Sqrt(-2*math.Log(u1)) * math.Cos(2*math.Pi*u2)
}

// adjustHueSaturation rotates hue by hueDeg degrees and scales saturation by
// satPercent through HSV space.
func adjustHueSaturation(img *image.NRGBA, hueDeg, satPercent float64) *image.NRGBA {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	satScale := 1 + satPercent/100
	for i := 0; i < len(img.Pix); i += 4 {
		hue, s, v := rgbToHSV(img.Pix[i], img.Pix[i+1], img.Pix[i+2])
		hue = math.Mod(hue+hueDeg+360, 360)
		s = math.Min(1, math.Max(0, s*satScale))
		r, g, b := hsvToRGB(hue, s, v)
		dst.Pix[i] = r
		dst.Pix[i+1] = g
		dst.Pix[i+2] = b
		dst.Pix[i+3] = img.Pix[i+3]
	}
	return dst
}

func rgbToHSV(r8, g8, b8 uint8) (float64, float64, float64) {
	r := float64(r8) / 255
	g := float64(g8) / 255
	b := float64(b8) / 255

	max := math.Max(r, math.Max(g, b))
	min := math.Min(r, math.Min(g, b))
	d := max - min

	var h float64
	switch {
	case d == 0:
		h = 0
	case max == r:
		h = 60 * math.Mod((g-b)/d, 6)
	case max == g:
		h = 60 * ((b-r)/d + 2)
	default:
		h = 60 * ((r-g)/d + 4)
	}
	if h < 0 {
		h += 360
	}

	s := 0.0
	if max > 0 {
		s = d / max
	}
	return h, s, max
}

func hsvToRGB(h, s, v float64) (uint8, uint8, uint8) {
	c := v * s
	x := c * (1 - math.Abs(math.Mod(h/60, 2)-1))
	m := v - c

	var r, g, b float64
	switch {
	case h < 60:
		r, g, b = c, x, 0
	case h < 120:
		r, g, b = x, c, 0
	case h < 180:
		r, g, b = 0, c, x
	case h < 240:
		r, g, b = 0, x, c
	case h < 300:
		r, g, b = x, 0, c
	default:
		r, g, b = c, 0, x
	}
	return clampByte((r + m) * 255), clampByte((g + m) * 255), clampByte((b + m) * 255)
}

// equalize performs global histogram equalization on luminance, scaling RGB
// by the luminance ratio to preserve color.
func equalize(img *image.NRGBA) *image.NRGBA {
	var hist [256]int
	total := 0
	for i := 0; i < len(img.Pix); i += 4 {
		hist[luma(img.Pix[i], img.Pix[i+1], img.Pix[i+2])]++
		total++
	}
	if total == 0 {
		return img
	}

	lut := cdfToLUT(hist[:], total)

	w, h := img.Rect.Dx(), img.Rect.Dy()
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		applyLumaRatio(dst.Pix[i:i+4], img.Pix[i:i+4], lut)
	}
	return dst
}

// cdfToLUT converts a histogram to an equalization lookup table.
func cdfToLUT(hist []int, total int) *[256]uint8 {
	var lut [256]uint8
	cdf := 0
	cdfMin := -1
	cum := make([]int, 256)
	for i, c := range hist {
		cdf += c
		cum[i] = cdf
		if cdfMin < 0 && c > 0 {
			cdfMin = cdf
		}
	}
	if cdfMin < 0 || total == cdfMin {
		for i := range lut {
			lut[i] = uint8(i)
		}
		return &lut
	}
	for i := range lut {
		lut[i] = clampByte(float64(cum[i]-cdfMin) / float64(total-cdfMin) * 255)
	}
	return &lut
}

// applyLumaRatio writes src scaled by lut[luma]/luma into dst (4-byte pixel).
func applyLumaRatio(dst, src []uint8, lut *[256]uint8) {
	y := luma(src[0], src[1], src[2])
	ratio := 1.0
	if y > 0 {
		ratio = float64(lut[y]) / float64(y)
	}
	dst[0] = clampByte(float64(src[0]) * ratio)
	dst[1] = clampByte(float64(src[1]) * ratio)
	dst[2] = clampByte(float64(src[2]) * ratio)
	dst[3] = src[3]
}

// clahe performs contrast-limited adaptive histogram equalization on a
// tileGrid×tileGrid partition of the luminance channel, bilinearly blending
// the per-tile mappings to avoid tile seams.
func clahe(img *image.NRGBA, clipLimit float64, tileGrid int) *image.NRGBA {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	if w == 0 || h == 0 || tileGrid < 1 {
		return img
	}

	tw := (w + tileGrid - 1) / tileGrid
	th := (h + tileGrid - 1) / tileGrid

	// Build one clipped-equalization LUT per tile.
	luts := make([][]*[256]uint8, tileGrid)
	for ty := 0; ty < tileGrid; ty++ {
		luts[ty] = make([]*[256]uint8, tileGrid)
		for tx := 0; tx < tileGrid; tx++ {
			luts[ty][tx] = tileLUT(img, tx*tw, ty*th, minInt((tx+1)*tw, w), minInt((ty+1)*th, h), clipLimit)
		}
	}

	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			// Position in tile-center space.
			gx := (float64(x)-float64(tw)/2) / float64(tw)
			gy := (float64(y)-float64(th)/2) / float64(th)
			tx0 := int(math.Floor(gx))
			ty0 := int(math.Floor(gy))
			fx := gx - float64(tx0)
			fy := gy - float64(ty0)

			o := img.PixOffset(x, y)
			yv := luma(img.Pix[o], img.Pix[o+1], img.Pix[o+2])

			mapped := 0.0
			for dyi := 0; dyi <= 1; dyi++ {
				for dxi := 0; dxi <= 1; dxi++ {
					tx := clampInt(tx0+dxi, 0, tileGrid-1)
					ty := clampInt(ty0+dyi, 0, tileGrid-1)
					wx := fx
					if dxi == 0 {
						wx = 1 - fx
					}
					wy := fy
					if dyi == 0 {
						wy = 1 - fy
					}
					mapped += wx * wy * float64(luts[ty][tx][yv])
				}
			}

			ratio := 1.0
			if yv > 0 {
				ratio = mapped / float64(yv)
			}
			dst.Pix[o] = clampByte(float64(img.Pix[o]) * ratio)
			dst.Pix[o+1] = clampByte(float64(img.Pix[o+1]) * ratio)
			dst.Pix[o+2] = clampByte(float64(img.Pix[o+2]) * ratio)
			dst.Pix[o+3] = img.Pix[o+3]
		}
	}
	return dst
}

// tileLUT builds the clipped equalization LUT for one tile region.
func tileLUT(img *image.NRGBA, x0, y0, x1, y1 int, clipLimit float64) *[256]uint8 {
	var hist [256]int
	total := 0
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			o := img.PixOffset(x, y)
			hist[luma(img.Pix[o], img.Pix[o+1], img.Pix[o+2])]++
			total++
		}
	}
	if total == 0 {
		var lut [256]uint8
		for i := range lut {
			lut[i] = uint8(i)
		}
		return &lut
	}

	// Clip and redistribute the excess uniformly.
	limit := int(clipLimit * float64(total) / 256)
	if limit < 1 {
		limit = 1
	}
	excess := 0
	for i := range hist {
		if hist[i] > limit {
			excess += hist[i] - limit
			hist[i] = limit
		}
	}
	share := excess / 256
	rem := excess % 256
	for i := range hist {
		hist[i] += share
		if i < rem {
			hist[i]++
		}
	}

	return cdfToLUT(hist[:], total)
}

// cutout punches seeded opaque black rectangles. Annotation geometry is
// unaffected.
func cutout(img *image.NRGBA, numHoles, holeSize int, stream *rng.RNG) *image.NRGBA {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	if w == 0 || h == 0 || numHoles < 1 || holeSize < 1 {
		return img
	}

	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	copy(dst.Pix, img.Pix)

	for i := 0; i < numHoles; i++ {
		cx := stream.Intn(w)
		cy := stream.Intn(h)
		x0 := clampInt(cx-holeSize/2, 0, w)
		y0 := clampInt(cy-holeSize/2, 0, h)
		x1 := clampInt(cx+holeSize/2, 0, w)
		y1 := clampInt(cy+holeSize/2, 0, h)
		for y := y0; y < y1; y++ {
			for x := x0; x < x1; x++ {
				o := dst.PixOffset(x, y)
				dst.Pix[o] = 0
				dst.Pix[o+1] = 0
				dst.Pix[o+2] = 0
				dst.Pix[o+3] = 255
			}
		}
	}
	return dst
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
