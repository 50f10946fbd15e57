package cinch

import "context"

// fastPathMaxAttempts bounds the platform encoder's binary search. It is a
// fixed cap of its own, separate from MaxAttemptsPerDim (default 5) and
// outside MaxTotalTrials: a platform encoder is assumed fast enough that
// it's worth trying first, and its trials do not eat into the general
// search's budget.
const fastPathMaxAttempts = 6

// PlatformEncoder is an optional, faster, platform-specific JPEG/WebP
// encoder consulted before the general-purpose AdaptiveSearch runs. A nil
// PlatformEncoder (the default) means FastPathEncoder always reports
// ErrEncoderUnavailable and the caller falls through to AdaptiveSearch.
type PlatformEncoder interface {
	// EncodeFile encodes the image at path at the given quality, in
	// format, optionally preserving EXIF metadata.
	EncodeFile(path string, quality int, format Format, keepEXIF bool) ([]byte, error)
}

// FastPathEncoder wraps an optional PlatformEncoder with the same bounded
// binary-search-to-budget contract as QualitySearch, operating against a
// file path instead of an in-memory Image since platform encoders
// typically expect one.
type FastPathEncoder struct {
	Platform PlatformEncoder
}

// Search binary-searches quality in [minQ, maxQ] via Platform.EncodeFile,
// recording every trial into state. Returns ErrEncoderUnavailable
// immediately if no PlatformEncoder is installed, or if the platform
// encoder itself errors on the first attempt.
func (f FastPathEncoder) Search(ctx context.Context, path string, format Format, keepEXIF bool, target int, minQ, maxQ int, state *searchState) error {
	if f.Platform == nil {
		return ErrEncoderUnavailable
	}

	lo, hi := minQ, maxQ
	attempts := 0
	for lo <= hi && attempts < fastPathMaxAttempts {
		if err := ctx.Err(); err != nil {
			return err
		}
		mid := (lo + hi) / 2
		data, err := f.Platform.EncodeFile(path, mid, format, keepEXIF)
		if err != nil {
			if attempts == 0 {
				return ErrEncoderUnavailable
			}
			return nil
		}
		c := candidate{Quality: mid, Data: data, Size: len(data)}
		state.consider(c, target)
		attempts++
		if c.Size <= target {
			lo = mid + 1
		} else {
			hi = mid - 1
		}
	}
	return nil
}
