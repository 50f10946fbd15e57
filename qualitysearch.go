package cinch

import "context"

// candidate is one encoded trial: a quality/dimension pair and its
// resulting bytes.
type candidate struct {
	Quality int
	Dim     int
	Width   int
	Height  int
	Data    []byte
	Size    int
}

// searchState accumulates every candidate produced across an entire
// AdaptiveSearch run, bounding the total trial count and tracking the two
// values the final Result is built from. Encoder size(quality) is not
// guaranteed monotonic, so a plain binary search can walk past and lose
// the best candidate it already saw — state.consider is what prevents
// that.
type searchState struct {
	trials int

	// bestUnder is the largest candidate seen with Size <= target.
	bestUnder *candidate

	// smallestOverall is the smallest candidate seen, tracked
	// independent of target so there is always something to fall back
	// to if nothing ever got under budget.
	smallestOverall *candidate
}

// consider records c against target, updating bestUnder/smallestOverall.
func (s *searchState) consider(c candidate, target int) {
	s.trials++
	if s.smallestOverall == nil || c.Size < s.smallestOverall.Size {
		cc := c
		s.smallestOverall = &cc
	}
	if c.Size <= target {
		if s.bestUnder == nil || c.Size > s.bestUnder.Size {
			cc := c
			s.bestUnder = &cc
		}
	}
}

// exhausted reports whether the total trial budget has been spent.
func (s *searchState) exhausted(maxTotal int) bool {
	return s.trials >= maxTotal
}

// inEarlyStopBand reports whether bestUnder already falls inside
// [lo, target].
func (s *searchState) inEarlyStopBand(lo int) bool {
	return s.bestUnder != nil && s.bestUnder.Size >= lo
}

// QualitySearch performs a bounded binary search over encoder quality at
// one fixed pixel dimension. Every trial, win or lose, is fed into state,
// so a non-monotonic codec never costs the search its best result.
type QualitySearch struct {
	Policy SearchPolicy
}

// Run searches quality in [minQ, maxQ] against img (already resized to
// dim), stopping when the per-dimension attempt cap or the overall trial
// cap is hit. Formats without a quality axis (PNG) encode exactly once.
// seed, if within [minQ, maxQ], is tried before the plain bisection
// midpoint — letting a predictor guess shortcut the search. 0 means no
// seed.
func (q QualitySearch) Run(ctx context.Context, codec Codec, img *Image, dim int, target int, minQ, maxQ int, seed int, state *searchState) error {
	if !codec.Format().qualityVaries() {
		_, err := q.trial(ctx, codec, img, dim, 0, target, state)
		return err
	}

	lo, hi := minQ, maxQ
	mid := (lo + hi) / 2
	if seed >= lo && seed <= hi {
		mid = seed
	}
	bandLo, _ := q.Policy.earlyStopBand(target)

	attempts := 0
	for lo <= hi {
		if attempts >= q.Policy.MaxAttemptsPerDim || state.exhausted(q.Policy.MaxTotalTrials) {
			return nil
		}
		c, err := q.trial(ctx, codec, img, dim, mid, target, state)
		if err != nil {
			return err
		}
		attempts++
		if state.inEarlyStopBand(bandLo) {
			// A candidate already landed close enough under target —
			// further bisection at this dimension would only spend
			// trials for a marginal gain.
			return nil
		}
		if c.Size <= target {
			// Under budget — there may be room for a higher quality.
			lo = mid + 1
		} else {
			hi = mid - 1
		}
		mid = (lo + hi) / 2
	}
	return nil
}

func (q QualitySearch) trial(ctx context.Context, codec Codec, img *Image, dim int, quality int, target int, state *searchState) (candidate, error) {
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
