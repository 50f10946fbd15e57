package cinch

import (
	"image"
	"math"
)

// Quality is an advisory quality tier returned by Analyze's
// RecommendedQuality. It is informational only — it has no bearing on the
// numeric quality bounds AdaptiveSearch actually uses, and exists purely
// to summarize what kind of image this looks like.
type Quality int

const (
	Balanced Quality = iota
	Aggressive
	High
)

func (q Quality) String() string {
	switch q {
	case Aggressive:
		return "aggressive"
	case High:
		return "high"
	default:
		return "balanced"
	}
}

// ImageStats is Analyze's report on a decoded image — advisory information
// a caller can log or use to pick Options before calling CompressBytes, but
// never something AdaptiveSearch itself consults.
type ImageStats struct {
	// Width and Height in pixels.
	Width, Height int

	// HasAlpha indicates the image uses transparency.
	HasAlpha bool

	// IsGrayscale indicates all pixels have R == G == B.
	IsGrayscale bool

	// UniqueColors is the number of distinct colors (sampled for large
	// images), counted up to 1024.
	UniqueColors int

	// Entropy measures information density (0-8 bits per channel).
	// Low entropy = highly compressible, high entropy = complex/noisy.
	Entropy float64

	// EdgeDensity measures the proportion of edge pixels (0-1).
	// High edge density = text/diagrams, low = photographs.
	EdgeDensity float64

	// MeanBrightness is the average luminance (0-255).
	MeanBrightness float64

	// Contrast is the standard deviation of luminance (0-127.5).
	Contrast float64

	// RecommendedFormat is Analyze's own format advice from the fuller
	// stats. Its rules differ from analyzeFormat's cheap scan (which
	// resolves Format: Auto), so the two can disagree, e.g. on edge-heavy
	// images with fewer than 1000 colors.
	RecommendedFormat Format

	// RecommendedQuality is an advisory starting point; SearchPolicy's
	// own InitialQuality is what AdaptiveSearch actually seeds with.
	RecommendedQuality Quality

	// EstimatedCompression is the estimated achievable compression ratio.
	EstimatedCompression float64
}

// analyzeSampleBudget is the pixel count above which Analyze samples every
// step-th pixel instead of every pixel for its unique-color count, mirroring
// formatSampleBudget's role in analyzeFormat: same idea, independent budget
// since Analyze is an opt-in diagnostic call, not something compressCore
// runs on every request.
const analyzeSampleBudget = 50000

// Analyze runs a fuller pass over img than analyzeFormat's quick scan,
// reporting entropy, edge density, and contrast alongside format/quality
// advice. Intended for callers who want to understand an image before
// compressing it, not for use inside the budget search itself.
func Analyze(img image.Image) ImageStats {
	src := toNRGBA(img)
	w := src.Bounds().Dx()
	h := src.Bounds().Dy()

	stats := ImageStats{Width: w, Height: h}
	if w == 0 || h == 0 {
		return stats
	}

	histogram := [256]float64{}
	var brightSum float64
	colorSet := make(map[uint32]struct{})
	step := 1
	if w*h > analyzeSampleBudget {
		step = w * h / analyzeSampleBudget
	}

	allGray := true
	hasAlpha := false
	idx := 0

	for y := 0; y < h; y++ {
		off := y * src.Stride
		for x := 0; x < w; x++ {
			i := off + x*4
			r := src.Pix[i]
			g := src.Pix[i+1]
			b := src.Pix[i+2]
			a := src.Pix[i+3]

			lum := luminanceOf(r, g, b)
			brightSum += lum
			histogram[int(lum+0.5)]++

			if a < 255 {
				hasAlpha = true
			}
			if r != g || g != b {
				allGray = false
			}
			if idx%step == 0 && len(colorSet) < 1024 {
				key := uint32(r)<<24 | uint32(g)<<16 | uint32(b)<<8 | uint32(a)
				colorSet[key] = struct{}{}
			}
			idx++
		}
	}

	n := float64(w * h)
	stats.HasAlpha = hasAlpha
	stats.IsGrayscale = allGray
	stats.UniqueColors = len(colorSet)
	stats.MeanBrightness = brightSum / n

	stats.Contrast = sampledContrast(src, stats.MeanBrightness)
	stats.Entropy = computeEntropy(histogram[:], n)
	stats.EdgeDensity = computeEdgeDensity(src)

	stats.RecommendedFormat = recommendFormat(stats)
	stats.RecommendedQuality = recommendQuality(stats)
	stats.EstimatedCompression = estimateCompression(stats)

	return stats
}

// sampledContrast estimates the standard deviation of luminance from a
// roughly 100x100 grid of sample points rather than every pixel — a full
// second pass over a large source would double Analyze's cost for a
// number that's only ever reported, never compared against a threshold.
func sampledContrast(src *image.NRGBA, mean float64) float64 {
	w := src.Bounds().Dx()
	h := src.Bounds().Dy()
	strideY := int(math.Max(1, float64(h)/100))
	strideX := int(math.Max(1, float64(w)/100))

	var varianceSum float64
	var samples int
	for y := 0; y < h; y += strideY {
		off := y * src.Stride
		for x := 0; x < w; x += strideX {
			i := off + x*4
			lum := luminanceOf(src.Pix[i], src.Pix[i+1], src.Pix[i+2])
			d := lum - mean
			varianceSum += d * d
			samples++
		}
	}
	if samples == 0 {
		return 0
	}
	return math.Sqrt(varianceSum / float64(samples))
}

// computeEntropy calculates Shannon entropy from a luminance histogram.
func computeEntropy(histogram []float64, total float64) float64 {
	if total == 0 {
		return 0
	}
	var entropy float64
	for _, count := range histogram {
		if count > 0 {
			p := count / total
			entropy -= p * math.Log2(p)
		}
	}
	return entropy
}

// computeEdgeDensity samples a Sobel operator across img and returns the
// fraction of sampled points that read as an edge.
func computeEdgeDensity(img *image.NRGBA) float64 {
	w := img.Bounds().Dx()
	h := img.Bounds().Dy()
	if w < 3 || h < 3 {
		return 0
	}

	stepX := int(math.Max(1, float64(w)/200))
	stepY := int(math.Max(1, float64(h)/200))

	const edgeThreshold = 30.0 // Sobel magnitude above this reads as an edge.
	edgeCount := 0
	totalCount := 0

	for y := 1; y < h-1; y += stepY {
		for x := 1; x < w-1; x += stepX {
			gx := sobelLum(img, x+1, y-1) - sobelLum(img, x-1, y-1) +
				2*sobelLum(img, x+1, y) - 2*sobelLum(img, x-1, y) +
				sobelLum(img, x+1, y+1) - sobelLum(img, x-1, y+1)

			gy := sobelLum(img, x-1, y+1) - sobelLum(img, x-1, y-1) +
				2*sobelLum(img, x, y+1) - 2*sobelLum(img, x, y-1) +
				sobelLum(img, x+1, y+1) - sobelLum(img, x+1, y-1)

			if math.Sqrt(gx*gx+gy*gy) > edgeThreshold {
				edgeCount++
			}
			totalCount++
		}
	}

	if totalCount == 0 {
		return 0
	}
	return float64(edgeCount) / float64(totalCount)
}

func sobelLum(img *image.NRGBA, x, y int) float64 {
	off := y*img.Stride + x*4
	return luminanceOf(img.Pix[off], img.Pix[off+1], img.Pix[off+2])
}

func recommendFormat(stats ImageStats) Format {
	if stats.HasAlpha {
		return PNG
	}
	if stats.UniqueColors <= 256 {
		return PNG
	}
	if stats.EdgeDensity > 0.3 && stats.UniqueColors < 1000 {
		// Screenshots, text, diagrams — PNG compresses better.
		return PNG
	}
	return JPEG
}

func recommendQuality(stats ImageStats) Quality {
	if stats.Entropy > 6 && stats.EdgeDensity < 0.15 {
		// High entropy, low edge density: photographic, compresses well.
		return Balanced
	}
	if stats.Entropy < 4 {
		return Aggressive
	}
	if stats.EdgeDensity > 0.25 {
		// Text/diagrams need more headroom to stay legible.
		return High
	}
	return Balanced
}

func estimateCompression(stats ImageStats) float64 {
	if stats.RecommendedFormat == PNG {
		if stats.UniqueColors <= 256 {
			return 5.0 + (256-float64(stats.UniqueColors))/50
		}
		if stats.IsGrayscale {
			return 3.0
		}
		return 2.0
	}

	base := 10.0
	if stats.Entropy > 7 {
		base = 5.0
	} else if stats.Entropy > 5 {
		base = 8.0
	}
	if stats.EdgeDensity > 0.2 {
		base *= 0.7
	}
	return base
}
