// File: internal/worker/classify/classify.go
package classify

import (
	"image"
	"math"

	"github.com/rs/zerolog"
)

const (
	KindBlur        = "blur"
	KindNoise       = "noise"
	KindLowLight    = "low-light"
	KindCompression = "compression"
	KindScratch     = "scratch"
	KindFade        = "fade"
	KindColorShift  = "color-shift"
)

// conservative fallback scalars used when a stage's own math fails or the
// input is degenerate (e.g. a 1x1 image). Each is picked to under-report
// severity rather than over-report, since a false "high" score drives an
// unnecessarily aggressive restoration prompt.
const fallbackScalar = 0.1

// Classifier computes the seven degradation heuristics against a decoded
// image. isJPEGSource controls whether the compression heuristic runs at
// all, since it is only meaningful for JPEG sources.
type Classifier struct {
	logger *zerolog.Logger
}

func New(logger *zerolog.Logger) *Classifier {
	return &Classifier{logger: logger}
}

// Classify returns a frozen map of degradation kind to confidence in [0,1].
// Any stage panic or math failure is caught locally and replaced with the
// documented conservative fallback; Classify itself never errors.
func (c *Classifier) Classify(img image.Image, isJPEGSource bool) map[string]float64 {
	gray := toGrayscale(img)

	out := map[string]float64{
		KindBlur:       c.safe(KindBlur, func() float64 { return blurScore(gray) }),
		KindNoise:      c.safe(KindNoise, func() float64 { return noiseScore(gray) }),
		KindLowLight:   c.safe(KindLowLight, func() float64 { return lowLightScore(gray) }),
		KindScratch:    c.safe(KindScratch, func() float64 { return scratchScore(gray) }),
		KindFade:       c.safe(KindFade, func() float64 { return fadeScore(img) }),
		KindColorShift: c.safe(KindColorShift, func() float64 { return colorShiftScore(img) }),
	}

	if isJPEGSource {
		out[KindCompression] = c.safe(KindCompression, func() float64 { return compressionScore(gray) })
	} else {
		out[KindCompression] = 0
	}

	return out
}

func (c *Classifier) safe(kind string, fn func() float64) (result float64) {
	defer func() {
		if r := recover(); r != nil {
			if c.logger != nil {
				c.logger.Warn().Str("kind", kind).Interface("panic", r).Msg("classifier stage failed, using fallback")
			}
			result = fallbackScalar
		}
	}()
	v := fn()
	if math.IsNaN(v) || math.IsInf(v, 0) {
		if c.logger != nil {
			c.logger.Warn().Str("kind", kind).Msg("classifier stage produced non-finite value, using fallback")
		}
		return fallbackScalar
	}
	return clamp01(v)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func toGrayscale(img image.Image) [][]float64 {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	g := make([][]float64, h)
	for y := 0; y < h; y++ {
		g[y] = make([]float64, w)
		for x := 0; x < w; x++ {
			r, gg, bb, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			g[y][x] = (0.299*float64(r) + 0.587*float64(gg) + 0.114*float64(bb)) / 65535.0
		}
	}
	return g
}

// laplacian computes a discrete Laplacian response at each interior pixel.
func laplacian(gray [][]float64) []float64 {
	h := len(gray)
	if h < 3 {
		return nil
	}
	w := len(gray[0])
	if w < 3 {
		return nil
	}
	out := make([]float64, 0, (h-2)*(w-2))
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			v := 4*gray[y][x] - gray[y-1][x] - gray[y+1][x] - gray[y][x-1] - gray[y][x+1]
			out = append(out, v)
		}
	}
	return out
}

func mean(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

func variance(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	m := mean(vals)
	sum := 0.0
	for _, v := range vals {
		d := v - m
		sum += d * d
	}
	return sum / float64(len(vals))
}

func stddev(vals []float64) float64 { return math.Sqrt(variance(vals)) }

// blurScore: variance of Laplacian response, normalized, inverted so a
// sharp (high-variance) image scores low.
func blurScore(gray [][]float64) float64 {
	lap := laplacian(gray)
	if lap == nil {
		return fallbackScalar
	}
	v := variance(lap)
	const sharpCeiling = 0.02 // empirical normalization ceiling on the [0,1] luminance scale
	normalized := clamp01(v / sharpCeiling)
	return 1 - normalized
}

// noiseScore: standard deviation of a high-pass response, normalized.
func noiseScore(gray [][]float64) float64 {
	h := len(gray)
	if h < 3 {
		return fallbackScalar
	}
	w := len(gray[0])
	if w < 3 {
		return fallbackScalar
	}
	highPass := make([]float64, 0, (h-2)*(w-2))
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			avg := (gray[y-1][x] + gray[y+1][x] + gray[y][x-1] + gray[y][x+1]) / 4
			highPass = append(highPass, gray[y][x]-avg)
		}
	}
	sd := stddev(highPass)
	const noiseCeiling = 0.08
	return clamp01(sd / noiseCeiling)
}

// lowLightScore: piecewise on mean luminance; zero above 0.3, ramps below.
func lowLightScore(gray [][]float64) float64 {
	var sum float64
	var n int
	for _, row := range gray {
		for _, v := range row {
			sum += v
			n++
		}
	}
	if n == 0 {
		return fallbackScalar
	}
	lum := sum / float64(n)
	const threshold = 0.3
	if lum >= threshold {
		return 0
	}
	return clamp01((threshold - lum) / threshold)
}

// compressionScore: variance change under a light blur, JPEG-only.
func compressionScore(gray [][]float64) float64 {
	h := len(gray)
	if h < 3 {
		return fallbackScalar
	}
	w := len(gray[0])
	if w < 3 {
		return fallbackScalar
	}
	blurred := make([][]float64, h)
	for y := range blurred {
		blurred[y] = make([]float64, w)
	}
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			sum := 0.0
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					sum += gray[y+dy][x+dx]
				}
			}
			blurred[y][x] = sum / 9
		}
	}
	var origVals, blurVals []float64
	for y := 1; y < h-1; y++ {
		origVals = append(origVals, gray[y][1:w-1]...)
		blurVals = append(blurVals, blurred[y][1:w-1]...)
	}
	origVar := variance(origVals)
	blurVar := variance(blurVals)
	if origVar <= 1e-9 {
		return fallbackScalar
	}
	drop := (origVar - blurVar) / origVar
	const blockinessCeiling = 0.6
	return clamp01(drop / blockinessCeiling)
}

// scratchScore: density of linear high-contrast pixels sampled on a grid.
func scratchScore(gray [][]float64) float64 {
	h := len(gray)
	if h < 3 {
		return fallbackScalar
	}
	w := len(gray[0])
	if w < 3 {
		return fallbackScalar
	}
	const gridStep = 4
	const contrastThreshold = 0.35

	var hits, samples int
	for y := 1; y < h-1; y += gridStep {
		for x := 1; x < w-1; x += gridStep {
			left := gray[y][x-1]
			right := gray[y][x+1]
			up := gray[y-1][x]
			down := gray[y+1][x]
			center := gray[y][x]
			horiz := math.Abs(center-left) + math.Abs(center-right)
			vert := math.Abs(center-up) + math.Abs(center-down)
			samples++
			if horiz > contrastThreshold && vert < contrastThreshold/2 {
				hits++
			} else if vert > contrastThreshold && horiz < contrastThreshold/2 {
				hits++
			}
		}
	}
	if samples == 0 {
		return fallbackScalar
	}
	density := float64(hits) / float64(samples)
	const scratchCeiling = 0.15
	return clamp01(density / scratchCeiling)
}

// fadeScore: weighted combination of (1-colorfulness) and (1-contrast).
func fadeScore(img image.Image) float64 {
	b := img.Bounds()
	var rs, gs, bs []float64
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			rs = append(rs, float64(r)/65535.0)
			gs = append(gs, float64(g)/65535.0)
			bs = append(bs, float64(bl)/65535.0)
		}
	}
	if len(rs) == 0 {
		return fallbackScalar
	}
	rg := stddev(diff(rs, gs))
	yb := stddev(diff(sumHalf(rs, gs), bs))
	colorfulness := math.Sqrt(rg*rg+yb*yb) + 0.3*math.Sqrt(mean(rs)*mean(rs)+mean(gs)*mean(gs))
	colorfulness = clamp01(colorfulness)

	lum := append([]float64{}, rs...)
	for i := range lum {
		lum[i] = 0.299*rs[i] + 0.587*gs[i] + 0.114*bs[i]
	}
	contrast := clamp01(stddev(lum) / 0.25)

	return clamp01(0.5*(1-colorfulness) + 0.5*(1-contrast))
}

func diff(a, b []float64) []float64 {
	out := make([]float64, len(a))
	for i := range a {
		out[i] = a[i] - b[i]
	}
	return out
}

func sumHalf(a, b []float64) []float64 {
	out := make([]float64, len(a))
	for i := range a {
		out[i] = 0.5 * (a[i] + b[i])
	}
	return out
}

// colorShiftScore: max per-channel deviation from the cross-channel mean.
func colorShiftScore(img image.Image) float64 {
	b := img.Bounds()
	var rSum, gSum, bSum float64
	var n int
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			rSum += float64(r) / 65535.0
			gSum += float64(g) / 65535.0
			bSum += float64(bl) / 65535.0
			n++
		}
	}
	if n == 0 {
		return fallbackScalar
	}
	rMean, gMean, bMean := rSum/float64(n), gSum/float64(n), bSum/float64(n)
	overall := (rMean + gMean + bMean) / 3
	maxDev := math.Max(math.Abs(rMean-overall), math.Max(math.Abs(gMean-overall), math.Abs(bMean-overall)))
	const shiftCeiling = 0.2
	return clamp01(maxDev / shiftCeiling)
}
