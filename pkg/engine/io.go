package engine

import (
	"errors"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	// Register stdlib decoders for image.Decode.
	_ "image/gif"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"

	// Register webp decoding; encoding falls back to PNG (no pure-Go encoder).
	_ "golang.org/x/image/webp"
)

// Sentinel errors for per-image failure classification. The orchestrator
// records and skips these; they never fail the release on their own.
var (
	// ErrSourceMissing means the source image file was not found.
	ErrSourceMissing = errors.New("source image missing")

	// ErrDecodeFailed means the source image could not be decoded.
	ErrDecodeFailed = errors.New("image decode failed")

	// ErrTransformFailed means a numerical failure occurred while applying
	// one augmentation config.
	ErrTransformFailed = errors.New("transform failed")
)

// jpegQuality is the encoder quality for JPEG output.
const jpegQuality = 90

// LoadImage decodes an image file into NRGBA.
// Missing files wrap ErrSourceMissing; undecodable files wrap ErrDecodeFailed.
func LoadImage(path string) (*image.NRGBA, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrSourceMissing, path)
		}
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDecodeFailed, path, err)
	}
	return toNRGBA(img), nil
}

// toNRGBA converts any decoded image to NRGBA without premultiplying.
func toNRGBA(img image.Image) *image.NRGBA {
	if n, ok := img.(*image.NRGBA); ok && n.Bounds().Min == (image.Point{}) {
		return n
	}
	b := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}

// SaveImage encodes img to path, choosing the codec from the path extension.
// Formats without an alpha channel (jpeg, bmp) get alpha composited over
// white first. Parent directories must already exist.
func SaveImage(img *image.NRGBA, path string) error {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()

	switch ext {
	case "jpg", "jpeg":
		err = jpeg.Encode(f, stripAlpha(img), &jpeg.Options{Quality: jpegQuality})
	case "png":
		err = png.Encode(f, img)
	case "bmp":
		err = bmp.Encode(f, stripAlpha(img))
	case "tif", "tiff":
		err = tiff.Encode(f, img, &tiff.Options{Compression: tiff.Deflate})
	default:
		err = fmt.Errorf("unsupported output extension %q", ext)
	}
	if err != nil {
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	return nil
}

// OutputExt maps a configured image format to the file extension to write.
// "original" preserves the source extension; webp falls back to png because
// no pure-Go webp encoder exists.
func OutputExt(format, sourceExt string) string {
	switch format {
	case "original", "":
		ext := strings.ToLower(strings.TrimPrefix(sourceExt, "."))
		switch ext {
		case "jpg", "jpeg", "png", "bmp", "tif", "tiff":
			return ext
		default:
			// Decodable-but-unencodable sources (webp, gif) re-encode as png.
			return "png"
		}
	case "jpg", "jpeg":
		return "jpg"
	case "png":
		return "png"
	case "bmp":
		return "bmp"
	case "tiff":
		return "tiff"
	case "webp":
		return "png"
	default:
		return "jpg"
	}
}

// stripAlpha composites the image over a white background, dropping alpha.
func stripAlpha(img *image.NRGBA) *image.NRGBA {
	if img.Opaque() {
		return img
	}
	b := img.Bounds()
	dst := image.NewNRGBA(b)
	draw.Draw(dst, b, image.White, image.Point{}, draw.Src)
	draw.Draw(dst, b, img, b.Min, draw.Over)
	return dst
}

// OutputName builds the augmented image filename. The dataset prefix avoids
// collisions when several datasets merge into one release; config 0 is the
// passthrough original and keeps the bare stem.
func OutputName(dataset, stem string, configID int, ext string) string {
	if configID == 0 {
		return fmt.Sprintf("%s_%s.%s", dataset, stem, ext)
	}
	return fmt.Sprintf("%s_%s__cfg%d.%s", dataset, stem, configID, ext)
}
