// File: internal/worker/classify/classify_test.go
package classify

import (
	"image"
	"image/color"
	"testing"
)

func solidImage(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func checkerImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if (x+y)%2 == 0 {
				img.Set(x, y, color.White)
			} else {
				img.Set(x, y, color.Black)
			}
		}
	}
	return img
}

func TestClassifyNeverErrorsOnDegenerateImage(t *testing.T) {
	c := New(nil)
	tiny := image.NewRGBA(image.Rect(0, 0, 1, 1))
	scores := c.Classify(tiny, true)

	for kind, score := range scores {
		if score < 0 || score > 1 {
			t.Errorf("%s score %v out of [0,1]", kind, score)
		}
	}
}

func TestClassifySkipsCompressionForNonJPEGSource(t *testing.T) {
	c := New(nil)
	img := checkerImage(16, 16)

	scores := c.Classify(img, false)
	if scores[KindCompression] != 0 {
		t.Errorf("compression score for non-JPEG source = %v, want 0", scores[KindCompression])
	}
}

func TestClassifyFlatImageScoresLowOnBlurAndScratch(t *testing.T) {
	c := New(nil)
	flat := solidImage(32, 32, color.Gray{Y: 128})

	scores := c.Classify(flat, true)
	if scores[KindScratch] > 0.1 {
		t.Errorf("scratch score for a flat image = %v, want near 0", scores[KindScratch])
	}
	if scores[KindBlur] < 0.8 {
		t.Errorf("blur score for a perfectly flat (maximally blurry) image = %v, want near 1", scores[KindBlur])
	}
}

func TestClassifyDarkImageScoresHighOnLowLight(t *testing.T) {
	c := New(nil)
	dark := solidImage(16, 16, color.Gray{Y: 5})

	scores := c.Classify(dark, false)
	if scores[KindLowLight] < 0.7 {
		t.Errorf("low-light score for a near-black image = %v, want high", scores[KindLowLight])
	}
}

func TestClassifyBrightImageScoresZeroOnLowLight(t *testing.T) {
	c := New(nil)
	bright := solidImage(16, 16, color.White)

	scores := c.Classify(bright, false)
	if scores[KindLowLight] != 0 {
		t.Errorf("low-light score for a white image = %v, want 0", scores[KindLowLight])
	}
}

func TestClassifyAllKindsPresent(t *testing.T) {
	c := New(nil)
	img := checkerImage(8, 8)
	scores := c.Classify(img, true)

	for _, kind := range []string{KindBlur, KindNoise, KindLowLight, KindCompression, KindScratch, KindFade, KindColorShift} {
		if _, ok := scores[kind]; !ok {
			t.Errorf("missing score for kind %q", kind)
		}
	}
}
