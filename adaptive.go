package cinch

import (
	"context"
	"math"
)

// AdaptiveSearch is the general-purpose budget search: a predictor-assisted
// walk down the primary dimension ladder, followed by a widened fallback
// ladder when the primary pass found no candidate under target at all and
// its quality floor was above fallbackMinQuality.
type AdaptiveSearch struct {
	Policy SearchPolicy
	Codec  Codec
}

// Run searches for a candidate encoding of img at or under target bytes,
// with quality bounded to [minQ, maxQ] on the primary ladder. It returns
// the accumulated searchState regardless of whether the budget was met —
// callers read state.bestUnder / state.smallestOverall to decide what to
// do next.
func (a AdaptiveSearch) Run(ctx context.Context, img *Image, target int, minQ, maxQ int) (*searchState, error) {
	state := &searchState{}
	lo, _ := a.Policy.earlyStopBand(target)
	qs := QualitySearch{Policy: a.Policy}
	predictor := LinearPredictor{Policy: a.Policy}

	seed := 0
	for i, dim := range primaryLadder {
		if state.exhausted(a.Policy.MaxTotalTrials) {
			break
		}
		resized := a.resizeTo(img, dim, LINEAR)

		switch {
		case i == 0:
			guess, err := predictor.Predict(ctx, a.Codec, resized, dim, target, state)
			if err != nil {
				return state, err
			}
			if state.inEarlyStopBand(lo) {
				return state, nil
			}
			seed = guess.Quality

			if guess.LoSize > target {
				// Even probeLowQuality overshot target at native size —
				// engage the downscale branch: estimate size at q=75,
				// derive a shrink factor from it, and re-probe at the
				// predicted dimension before the ladder walk gets there
				// on its own.
				nativeLongest := img.Width
				if img.Height > nativeLongest {
					nativeLongest = img.Height
				}
				predDim, predSeed, err := a.downscaleProbe(ctx, img, nativeLongest, guess, target, state)
				if err != nil {
					return state, err
				}
				if state.inEarlyStopBand(lo) {
					return state, nil
				}
				predResized := a.resizeTo(img, predDim, LINEAR)
				if err := qs.Run(ctx, a.Codec, predResized, predDim, target, minQ, maxQ, predSeed, state); err != nil {
					return state, err
				}
				if state.inEarlyStopBand(lo) {
					return state, nil
				}
			}
		case a.Codec.Format().qualityVaries():
			// A cheap BOX-filtered preview refines the quality seed for
			// this dimension; QualitySearch then encodes the LINEAR
			// resize made above.
			preview := a.resizeTo(img, dim, BOX)
			reseed, err := a.reprobe(ctx, preview, dim, target, state)
			if err != nil {
				return state, err
			}
			if state.inEarlyStopBand(lo) {
				return state, nil
			}
			seed = reseed
		}

		if err := qs.Run(ctx, a.Codec, resized, dim, target, minQ, maxQ, seed, state); err != nil {
			return state, err
		}
		if state.inEarlyStopBand(lo) {
			return state, nil
		}
	}

	if state.inEarlyStopBand(lo) {
		return state, nil
	}

	// The fallback ladder only earns its keep when the primary pass truly
	// failed: nothing landed under target at all, the closest candidate
	// seen is still over it, and the primary floor left room to widen
	// further. Otherwise an acceptable bestUnder already exists and
	// re-searching smaller dimensions would only spend trials for free.
	if state.bestUnder != nil {
		return state, nil
	}
	if state.smallestOverall != nil && state.smallestOverall.Size <= target {
		return state, nil
	}
	if minQ <= fallbackMinQuality {
		return state, nil
	}

	// Primary ladder never landed in the early-stop band — widen the
	// quality floor and try again at the smaller fallback dimensions.
	for _, dim := range fallbackLadder {
		if state.exhausted(a.Policy.MaxTotalTrials) {
			break
		}
		resized := a.resizeTo(img, dim, LINEAR)
		if err := qs.Run(ctx, a.Codec, resized, dim, target, fallbackMinQuality, a.Policy.InitialQuality, 0, state); err != nil {
			return state, err
		}
		if state.inEarlyStopBand(lo) {
			return state, nil
		}
	}

	return state, nil
}

// downscaleProbe implements the predictor's downscale branch: estimate
// size at q=75 from the native-dimension two-probe fit (or the midpoint
// of the two probe sizes, if the fit was degenerate), derive a shrink
// factor via PredictDimension, and re-probe at q=80/50 on a cheap
// BOX-filtered preview of the predicted dimension.
func (a AdaptiveSearch) downscaleProbe(ctx context.Context, img *Image, nativeLongest int, guess predictedQuality, target int, state *searchState) (dim int, seed int, err error) {
	s75 := guess.Slope*75 + guess.Intercept
	if guess.Slope == 0 {
		s75 = float64(guess.HiSize+guess.LoSize) / 2
	}
	dim = PredictDimension(nativeLongest, int(math.Round(s75)), target)

	preview := a.resizeTo(img, dim, BOX)
	seed, err = a.reprobe(ctx, preview, dim, target, state)
	return dim, seed, err
}

// reprobe fits a cheap two-point line at reprobeHighQuality/reprobeLowQuality
// against a BOX-downsampled preview, returning a seed quality for the real
// QualitySearch.Run at this dimension.
func (a AdaptiveSearch) reprobe(ctx context.Context, preview *Image, dim int, target int, state *searchState) (int, error) {
	hi, err := a.trialAt(ctx, preview, dim, reprobeHighQuality, target, state)
	if err != nil {
		return 0, err
	}
	lo, err := a.trialAt(ctx, preview, dim, reprobeLowQuality, target, state)
	if err != nil {
		return 0, err
	}

	slope := float64(hi.Size-lo.Size) / float64(reprobeHighQuality-reprobeLowQuality)
	if slope == 0 {
		return reprobeHighQuality, nil
	}
	intercept := float64(hi.Size) - slope*float64(reprobeHighQuality)
	q := int(math.Round((float64(target) - intercept) / slope))
	return clampInt(q, fallbackMinQuality, 100), nil
}

func (a AdaptiveSearch) trialAt(ctx context.Context, img *Image, dim int, quality int, target int, state *searchState) (candidate, error) {
	if err := ctx.Err(); err != nil {
		return candidate{}, err
	}
	data, err := a.Codec.Encode(img, quality)
	if err != nil {
		return candidate{}, err
	}
	c := candidate{Quality: quality, Dim: dim, Width: img.Width, Height: img.Height, Data: data, Size: len(data)}
	state.consider(c, target)
	return c, nil
}

// resizeTo fits img within a dim x dim box, aspect-ratio preserving. dim
// <= 0, or img already fitting, returns img unchanged.
func (a AdaptiveSearch) resizeTo(img *Image, dim int, interp Interpolation) *Image {
	if dim <= 0 || (img.Width <= dim && img.Height <= dim) {
		return img
	}
	ratio := math.Min(float64(dim)/float64(img.Width), float64(dim)/float64(img.Height))
	w := int(math.Max(1, math.Round(float64(img.Width)*ratio)))
	h := int(math.Max(1, math.Round(float64(img.Height)*ratio)))
	return a.Codec.Resize(img, w, h, interp)
}
