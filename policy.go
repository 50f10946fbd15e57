package cinch

// Dimension ladders. Each is a decreasing sequence of candidate max pixel
// dimensions tried in order until the budget is met or the ladder is
// exhausted. 0 in the primary ladder means "native size, no resize".
var (
	// primaryLadder is walked by the general-purpose search.
	primaryLadder = []int{0, 3000, 2048, 1600, 1280, 1024, 800, 640, 480, 360, 320, 256, 224, 200, 180, 160, 128}

	// fallbackLadder runs only if the primary ladder found no candidate
	// under target at all, with the quality floor widened to
	// fallbackMinQuality.
	fallbackLadder = []int{360, 320, 256, 224, 200, 180, 160, 128}

	// enforcementLadder runs as a last resort, at the lowest quality the
	// format supports, when nothing above ever got under budget.
	enforcementLadder = []int{640, 480, 360, 320, 256, 224, 200, 180, 160, 128, 112, 96, 80}
)

// enforcementQuality is the fixed quality used by the enforcement sweep.
// Hardcoded rather than configurable: the enforcement sweep exists purely
// to get under budget by any means, so there is no reason to parameterize
// the quality it gives up to.
const enforcementQuality = 1

// fallbackMinQuality is the quality floor for the fallback ladder. Also
// hardcoded: the fallback ladder is itself a last-resort widening of the
// primary search, and 10 leaves enough headroom above enforcementQuality
// to still look like a photograph.
const fallbackMinQuality = 10

// SearchPolicy bundles the tunables that shape AdaptiveSearch's behavior,
// derived once from Options at the start of a compression.
type SearchPolicy struct {
	MaxAttemptsPerDim int
	MaxTotalTrials    int
	EarlyStopRatio    float64
	NearTargetFactor  float64
	MinQuality        int
	InitialQuality    int
}

// newSearchPolicy derives a SearchPolicy from already-defaulted Options.
func newSearchPolicy(o Options) SearchPolicy {
	return SearchPolicy{
		MaxAttemptsPerDim: o.MaxAttemptsPerDim,
		MaxTotalTrials:    o.MaxTotalTrials,
		EarlyStopRatio:    o.EarlyStopRatio,
		NearTargetFactor:  o.NearTargetFactor,
		MinQuality:        o.MinQuality,
		InitialQuality:    o.InitialQuality,
	}
}

// earlyStopBand returns [lo, target], the byte range AdaptiveSearch treats
// as "close enough" to stop searching immediately.
func (p SearchPolicy) earlyStopBand(target int) (lo, hi int) {
	lo = int(p.EarlyStopRatio * float64(target))
	if lo < 0 {
		lo = 0
	}
	return lo, target
}
