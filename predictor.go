package cinch

import (
	"context"
	"math"
)

// probeHighQuality and probeLowQuality are the two quality points the
// linear predictor encodes at to fit size = a*quality + b.
const (
	probeHighQuality = 85
	probeLowQuality  = 35
)

// reprobeHighQuality and reprobeLowQuality are used for the cheap
// dimension re-probe, after a BOX-filtered downscale.
const (
	reprobeHighQuality = 80
	reprobeLowQuality  = 50
)

// LinearPredictor fits a line through two quality probes to jump straight
// to a near-target quality, instead of blind binary search from extremes.
// Grounded on the teacher's compressJPEGOptimal, which always starts its
// binary search at quality 1..100 — the predictor is what lets this engine
// skip most of that range in the common case.
type LinearPredictor struct {
	Policy SearchPolicy
}

// predictedQuality is the outcome of the two-probe linear fit. Slope and
// Intercept describe size(q) = Slope*q + Intercept and are reused by
// AdaptiveSearch's downscale branch to estimate size at an arbitrary
// quality without another encode.
type predictedQuality struct {
	Quality   int
	Slope     float64 // a in size = a*quality + b; bytes per quality point, positive when size grows with quality.
	Intercept float64

	// HiSize, LoSize are the raw probe sizes at probeHighQuality and
	// probeLowQuality, respectively — callers use LoSize to detect that
	// even the lowest probed quality overshot target at this dimension.
	HiSize, LoSize int
}

// Predict encodes img at the two probe qualities, fits a line, and solves
// for the quality whose predicted size lands on target. The result is
// clamped to [fallbackMinQuality, 100] and is a starting guess only — the
// caller still verifies it with a real encode.
func (p LinearPredictor) Predict(ctx context.Context, codec Codec, img *Image, dim int, target int, state *searchState) (predictedQuality, error) {
	if !codec.Format().qualityVaries() {
		return predictedQuality{Quality: 0}, nil
	}

	hi, err := p.probe(ctx, codec, img, dim, probeHighQuality, target, state)
	if err != nil {
		return predictedQuality{}, err
	}
	lo, err := p.probe(ctx, codec, img, dim, probeLowQuality, target, state)
	if err != nil {
		return predictedQuality{}, err
	}

	sizeHi := float64(hi.Size)
	sizeLo := float64(lo.Size)

	slope := (sizeHi - sizeLo) / float64(probeHighQuality-probeLowQuality)
	if slope == 0 {
		// Degenerate: quality has no effect on size at this dimension.
		// Fall back to the probe closest to target.
		q := probeHighQuality
		if abs64(int64(lo.Size)-int64(target)) < abs64(int64(hi.Size)-int64(target)) {
			q = probeLowQuality
		}
		return predictedQuality{Quality: q, HiSize: hi.Size, LoSize: lo.Size}, nil
	}

	intercept := sizeHi - slope*float64(probeHighQuality)
	q := int(math.Round((float64(target) - intercept) / slope))
	q = clampInt(q, fallbackMinQuality, 100)

	return predictedQuality{Quality: q, Slope: slope, Intercept: intercept, HiSize: hi.Size, LoSize: lo.Size}, nil
}

// probe encodes img at quality and records the trial in state.
func (p LinearPredictor) probe(ctx context.Context, codec Codec, img *Image, dim int, quality int, target int, state *searchState) (candidate, error) {
	if err := ctx.Err(); err != nil {
		return candidate{}, err
	}
	data, err := codec.Encode(img, quality)
	if err != nil {
		return candidate{}, err
	}
	c := candidate{Quality: quality, Dim: dim, Width: img.Width, Height: img.Height, Data: data, Size: len(data)}
	state.consider(c, target)
	return c, nil
}

// PredictDimension estimates a smaller max dimension to try next, given
// that encoding at origSize bytes overshot target. byte_scale is the ratio
// by which bytes must shrink; dim_scale approximates the corresponding
// linear-dimension shrink for roughly-quadratic pixel-count-to-bytes
// scaling, floored so a single bad probe can't collapse the image to
// nothing.
func PredictDimension(origDim int, origSize int, target int) int {
	if origSize <= 0 || origDim <= 0 {
		return origDim
	}
	byteScale := float64(target) / float64(origSize)
	if byteScale >= 1 {
		return origDim
	}
	dimScale := math.Sqrt(byteScale)
	if dimScale < 0.1 {
		dimScale = 0.1
	}
	newDim := int(math.Round(float64(origDim) * dimScale))
	if newDim < 1 {
		newDim = 1
	}
	return newDim
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
