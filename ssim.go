package cinch

import (
	"image"
	"math"
	"runtime"
	"sync"
)

// SSIM weighting constants from Wang et al., applied to the luminance
// channel only — cinch never compares chroma, since Result.EstimatedSSIM
// is a reporting field, not a search input.
const (
	ssimK1 = 0.01
	ssimK2 = 0.03
	ssimL  = 255.0
	ssimC1 = (ssimK1 * ssimL) * (ssimK1 * ssimL)
	ssimC2 = (ssimK2 * ssimL) * (ssimK2 * ssimL)
)

// SSIM scores how close a winning candidate looks to the original it was
// derived from, after AdaptiveSearch has already picked that candidate —
// it plays no part in the search itself. img2 is resampled to img1's
// dimensions first, since the chosen candidate is frequently at a smaller
// size than the source: the budget search only answers "does this fit",
// never "does this look the same", so SSIM has to reconcile the mismatch
// on its own before it can say anything.
func SSIM(img1, img2 image.Image) float64 {
	orig := toNRGBARef(img1)
	candidate := toNRGBARef(img2)

	w := orig.Bounds().Dx()
	h := orig.Bounds().Dy()

	if w != candidate.Bounds().Dx() || h != candidate.Bounds().Dy() {
		candidate = lanczosResize(candidate, w, h)
	}

	if w < 8 || h < 8 {
		return pixelSSIM(orig, candidate)
	}

	return windowedSSIM(toLuminance(orig), toLuminance(candidate), w, h)
}

// windowedSSIM runs an 8x8 Gaussian-weighted sliding window over two
// luminance planes, splitting rows across GOMAXPROCS goroutines.
func windowedSSIM(lumA, lumB []float64, w, h int) float64 {
	const windowSize = 8
	half := windowSize / 2

	kernel := gaussianKernel(windowSize, 1.5)

	type partialSum struct {
		sum   float64
		count int
	}

	workers := runtime.GOMAXPROCS(0)
	rows := h - windowSize + 1
	if workers > rows {
		workers = rows
	}
	if workers < 1 {
		workers = 1
	}

	partials := make([]partialSum, workers)
	rowsPerWorker := (rows + workers - 1) / workers

	var wg sync.WaitGroup
	for worker := 0; worker < workers; worker++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			startY := half + worker*rowsPerWorker
			endY := startY + rowsPerWorker
			if endY > h-half {
				endY = h - half
			}

			var localSum float64
			var localCount int

			for y := startY; y < endY; y++ {
				for x := half; x < w-half; x++ {
					var muA, muB float64
					k := 0
					for wy := -half; wy < half; wy++ {
						for wx := -half; wx < half; wx++ {
							idx := (y+wy)*w + (x + wx)
							weight := kernel[k]
							muA += lumA[idx] * weight
							muB += lumB[idx] * weight
							k++
						}
					}

					var sigAA, sigBB, sigAB float64
					k = 0
					for wy := -half; wy < half; wy++ {
						for wx := -half; wx < half; wx++ {
							idx := (y+wy)*w + (x + wx)
							weight := kernel[k]
							da := lumA[idx] - muA
							db := lumB[idx] - muB
							sigAA += da * da * weight
							sigBB += db * db * weight
							sigAB += da * db * weight
							k++
						}
					}

					num := (2*muA*muB + ssimC1) * (2*sigAB + ssimC2)
					den := (muA*muA + muB*muB + ssimC1) * (sigAA + sigBB + ssimC2)

					localSum += num / den
					localCount++
				}
			}

			partials[worker] = partialSum{localSum, localCount}
		}(worker)
	}
	wg.Wait()

	var totalSum float64
	var totalCount int
	for _, p := range partials {
		totalSum += p.sum
		totalCount += p.count
	}

	if totalCount == 0 {
		return 1.0
	}
	return totalSum / float64(totalCount)
}

// pixelSSIM handles images too small for an 8x8 window by treating the
// whole frame as a single window.
func pixelSSIM(a, b *image.NRGBA) float64 {
	w := a.Bounds().Dx()
	h := a.Bounds().Dy()
	n := float64(w * h)
	if n == 0 {
		return 1.0
	}

	var muA, muB float64
	for i := 0; i < len(a.Pix); i += 4 {
		muA += luminanceOf(a.Pix[i], a.Pix[i+1], a.Pix[i+2])
		muB += luminanceOf(b.Pix[i], b.Pix[i+1], b.Pix[i+2])
	}
	muA /= n
	muB /= n

	var sigAA, sigBB, sigAB float64
	for i := 0; i < len(a.Pix); i += 4 {
		da := luminanceOf(a.Pix[i], a.Pix[i+1], a.Pix[i+2]) - muA
		db := luminanceOf(b.Pix[i], b.Pix[i+1], b.Pix[i+2]) - muB
		sigAA += da * da
		sigBB += db * db
		sigAB += da * db
	}
	sigAA /= n
	sigBB /= n
	sigAB /= n

	num := (2*muA*muB + ssimC1) * (2*sigAB + ssimC2)
	den := (muA*muA + muB*muB + ssimC1) * (sigAA + sigBB + ssimC2)
	return num / den
}

// luminanceOf converts one NRGBA pixel's color channels to BT.601 luma.
func luminanceOf(r, g, b uint8) float64 {
	return 0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b)
}

// toLuminance converts every pixel of img to a flat BT.601 luma plane.
func toLuminance(img *image.NRGBA) []float64 {
	w := img.Bounds().Dx()
	h := img.Bounds().Dy()
	lum := make([]float64, w*h)

	for y := 0; y < h; y++ {
		off := y * img.Stride
		for x := 0; x < w; x++ {
			i := off + x*4
			lum[y*w+x] = luminanceOf(img.Pix[i], img.Pix[i+1], img.Pix[i+2])
		}
	}
	return lum
}

// gaussianKernel builds a normalized size x size Gaussian kernel.
func gaussianKernel(size int, sigma float64) []float64 {
	kernel := make([]float64, size*size)
	half := size / 2
	var sum float64

	idx := 0
	for y := -half; y < half; y++ {
		for x := -half; x < half; x++ {
			val := math.Exp(-float64(x*x+y*y) / (2 * sigma * sigma))
			kernel[idx] = val
			sum += val
			idx++
		}
	}
	for i := range kernel {
		kernel[i] /= sum
	}
	return kernel
}
