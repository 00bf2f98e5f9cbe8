// File: internal/imaging/preprocess.go
package imaging

import (
	"bytes"
	"errors"
	"image"
	"image/jpeg"
	_ "image/png"

	"github.com/imagerestore/controlplane/internal/domain/model"

	_ "golang.org/x/image/webp"
)

const maxLongestSide = 2048
const jpegQuality = 85

var ErrUnrecognizedImage = errors.New("imaging: could not decode image")

// Preprocess implements spec.md §4.1 step 5: auto-orient, resize, re-encode
// as JPEG, strip metadata, attach only an sRGB color-profile label. It
// returns the transformed bytes and the applied-operation record kept on
// the job.
func Preprocess(raw []byte) ([]byte, model.PreprocessRecord, error) {
	orientation := detectOrientation(raw)

	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, model.PreprocessRecord{}, ErrUnrecognizedImage
	}

	rec := model.PreprocessRecord{ColorProfile: "sRGB"}

	if orientation != 1 {
		img = applyOrientation(img, orientation)
		rec.AutoOriented = true
	}

	if w, h := img.Bounds().Dx(), img.Bounds().Dy(); w > maxLongestSide || h > maxLongestSide {
		img = resizeLongestSide(img, maxLongestSide)
		rec.ResizedTo = maxLongestSide
	}

	out := new(bytes.Buffer)
	if err := jpeg.Encode(out, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, model.PreprocessRecord{}, err
	}
	rec.ReencodedJPEG = true
	rec.MetadataStripped = true

	return out.Bytes(), rec, nil
}

// applyOrientation normalizes an image per the EXIF orientation values 2-8
// (1 is already identity and never reaches here).
func applyOrientation(src image.Image, orientation int) image.Image {
	b := src.Bounds()
	switch orientation {
	case 2: // flip horizontal
		dst := image.NewRGBA(b)
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				dst.Set(b.Max.X-1-x, y, src.At(x, y))
			}
		}
		return dst
	case 3: // rotate 180
		dst := image.NewRGBA(b)
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				dst.Set(b.Max.X-1-x, b.Max.Y-1-y, src.At(x, y))
			}
		}
		return dst
	case 4: // flip vertical
		dst := image.NewRGBA(b)
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				dst.Set(x, b.Max.Y-1-y, src.At(x, y))
			}
		}
		return dst
	case 5, 6, 7, 8: // transpose family: swap axes, 6/8 add a 90-degree rotation
		return transpose(src, orientation)
	default:
		return src
	}
}

func transpose(src image.Image, orientation int) *image.RGBA {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	dst := image.NewRGBA(image.Rect(0, 0, h, w))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := src.At(b.Min.X+x, b.Min.Y+y)
			var dx, dy int
			switch orientation {
			case 5: // transpose
				dx, dy = y, x
			case 6: // rotate 90 CW
				dx, dy = h-1-y, x
			case 7: // transverse
				dx, dy = h-1-y, w-1-x
			case 8: // rotate 90 CCW
				dx, dy = y, w-1-x
			default:
				dx, dy = x, y
			}
			dst.Set(dx, dy, c)
		}
	}
	return dst
}

// resizeLongestSide nearest-neighbor scales img so its longest side equals
// target, preserving aspect ratio. No resampling library appears in the
// reference corpus, so this hand-rolled scaler is the deliberately simple
// stand-in; quality is secondary to determinism here.
func resizeLongestSide(img image.Image, target int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	var newW, newH int
	if w >= h {
		newW = target
		newH = h * target / w
	} else {
		newH = target
		newW = w * target / h
	}
	if newW < 1 {
		newW = 1
	}
	if newH < 1 {
		newH = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	for y := 0; y < newH; y++ {
		srcY := b.Min.Y + y*h/newH
		for x := 0; x < newW; x++ {
			srcX := b.Min.X + x*w/newW
			dst.Set(x, y, img.At(srcX, srcY))
		}
	}
	return dst
}

// sniffContentType checks magic bytes rather than a client-declared header
// (spec.md §4.1 step 4: "format sniffing by magic bytes, not declared type").
func sniffContentType(data []byte) (string, bool) {
	switch {
	case len(data) >= 3 && data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF:
		return "image/jpeg", true
	case len(data) >= 8 && bytes.Equal(data[0:8], []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}):
		return "image/png", true
	case len(data) >= 12 && bytes.Equal(data[0:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WEBP")):
		return "image/webp", true
	default:
		return "", false
	}
}

// SniffContentType is the exported form used by admission.
func SniffContentType(data []byte) (string, bool) { return sniffContentType(data) }
