package cinch

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"os"
)

// CompressionOrchestrator runs the full tiered budget-search contract:
// passthrough check, a high-quality near-target path when the source is
// already close to budget, the general-purpose path otherwise, and a
// final enforcement sweep before giving up. Compress/CompressBytes/
// CompressFile are the entry points; package-level Compress/CompressBytes/
// CompressFile wrap a fresh orchestrator for one-off callers.
type CompressionOrchestrator struct {
	Options Options

	// Gate, if set, overrides the package-level default ConcurrencyGate.
	Gate *ConcurrencyGate
}

// NewOrchestrator builds a CompressionOrchestrator from opts, filling in
// defaults.
func NewOrchestrator(opts Options) *CompressionOrchestrator {
	return &CompressionOrchestrator{Options: opts.withDefaults()}
}

func (c *CompressionOrchestrator) gate() *ConcurrencyGate {
	if c.Gate != nil {
		return c.Gate
	}
	return defaultConcurrencyGate()
}

// Compress reads an encoded image from r and compresses it to budget.
// The platform fast path is unavailable on this path — PlatformEncoder
// needs a filesystem path, which a Reader doesn't have.
func (c *CompressionOrchestrator) Compress(ctx context.Context, r io.Reader) (*Result, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("cinch: read: %w", err)
	}
	return c.compressCore(ctx, data, "")
}

// CompressFile reads srcPath and compresses it to budget. Unlike
// CompressBytes, the platform fast path (if Options.Platform is set) is
// available here, since it needs a real file path.
func (c *CompressionOrchestrator) CompressFile(ctx context.Context, srcPath string) (*Result, error) {
	data, err := os.ReadFile(srcPath)
	if err != nil {
		return nil, fmt.Errorf("cinch: read %q: %w", srcPath, err)
	}
	return c.compressCore(ctx, data, srcPath)
}

// CompressBytes compresses an already-read image to budget. No platform
// fast path: see Compress.
func (c *CompressionOrchestrator) CompressBytes(ctx context.Context, data []byte) (*Result, error) {
	return c.compressCore(ctx, data, "")
}

// compressCore is the engine every public method funnels through. It
// implements the tiered contract:
//  1. passthrough — input already fits, is already the target format, and
//     was not shrunk by the MaxWidth/MaxHeight ceiling.
//  2. safe target floor — never search for less than 10 KiB.
//  3. near-target branch — source within NearTargetFactor of budget: try
//     the platform fast path, then AdaptiveSearch with an elevated
//     quality floor.
//  4. general branch — fast path, then AdaptiveSearch with the ordinary
//     quality floor. Only one of steps 3 and 4 runs: a near-target source
//     that finds nothing under budget at the elevated floor goes on to
//     step 5 without a search at the ordinary floor.
//  5. enforcement sweep — quality pinned to enforcementQuality across
//     enforcementLadder, last resort.
//  6. give up — return the smallest candidate found if it is smaller than
//     the input; otherwise return the input unchanged when it is already
//     the target format and was not shrunk by the ceiling, or else the
//     smallest candidate even though it is still over budget.
//
// srcPath is the original file path, if known; empty when compressing
// from bytes or a Reader, which disables the platform fast path.
func (c *CompressionOrchestrator) compressCore(ctx context.Context, data []byte, srcPath string) (*Result, error) {
	opts := c.Options.withDefaults()
	if opts.TargetSizeKB <= 0 {
		return nil, fmt.Errorf("cinch: TargetSizeKB must be > 0")
	}

	gate := c.gate()
	if err := gate.Acquire(ctx); err != nil {
		return nil, err
	}
	defer gate.Release()

	if err := opts.reportProgress(ctx, StageAnalyzing, 0); err != nil {
		return nil, err
	}

	originalSize := int64(len(data))
	target := opts.targetBytes()
	const safeTargetFloor = 10 * 1024
	if target < safeTargetFloor {
		target = safeTargetFloor
	}

	registry := opts.registryFor()
	img, srcFormat, err := sniffDecode(registry, data)
	if err != nil {
		return nil, err
	}

	if opts.AutoOrient {
		if orient := ReadOrientation(bytes.NewReader(data)); orient > OrientNormal {
			img = newImage(ApplyOrientation(img.Pix, orient))
		}
	}
	originalDims := image.Point{X: img.Width, Y: img.Height}

	capped := false
	if opts.MaxWidth > 0 || opts.MaxHeight > 0 {
		if pix := smartResize(img.Pix, opts.MaxWidth, opts.MaxHeight); pix != img.Pix {
			img = newImage(pix)
			capped = true
		}
	}

	format := opts.Format
	if format == Auto {
		format = analyzeFormat(img.Pix)
	}
	codec, err := registry.Get(format)
	if err != nil {
		return nil, err
	}

	// Step 1: passthrough. Quality 100 marks that the input bytes come back
	// unchanged.
	if srcFormat == format && !capped && originalSize <= int64(target) {
		if err := opts.reportProgress(ctx, StageWriting, 1); err != nil {
			return nil, err
		}
		return c.finishResult(data, 100, format, img, originalSize, originalDims, img)
	}

	if err := opts.reportProgress(ctx, StageSearching, 0.1); err != nil {
		return nil, err
	}

	nearTarget := originalSize <= int64(float64(target)*opts.NearTargetFactor)
	minQ := opts.MinQuality
	if nearTarget {
		minQ = opts.PreferredMinQuality
		if opts.MinQuality > minQ {
			minQ = opts.MinQuality
		}
	}

	state := &searchState{}

	if srcPath != "" {
		fast := FastPathEncoder{Platform: opts.Platform}
		if err := fast.Search(ctx, srcPath, format, opts.KeepEXIF, target, minQ, opts.InitialQuality, state); err != nil && err != ErrEncoderUnavailable {
			return nil, err
		}
	}

	if !state.inEarlyStopBand(int(float64(target) * opts.EarlyStopRatio)) {
		policy := newSearchPolicy(opts)
		adaptive := AdaptiveSearch{Policy: policy, Codec: codec}
		adaptiveState, err := adaptive.Run(ctx, img, target, minQ, opts.InitialQuality)
		if err != nil && ctx.Err() != nil {
			return nil, err
		}
		// A codec error only ends this tier; the trials it already made
		// still count.
		mergeSearchState(state, adaptiveState, target)
	}

	if err := opts.reportProgress(ctx, StageEnforcing, 0.8); err != nil {
		return nil, err
	}

	if state.bestUnder == nil {
		// The sweep has its own cap of one trial per rung, outside
		// MaxTotalTrials, so a spent search budget does not skip it.
		policy := newSearchPolicy(opts)
		policy.MaxTotalTrials = state.trials + len(enforcementLadder)
		qs := QualitySearch{Policy: policy}
		for _, dim := range enforcementLadder {
			resized := img
			if dim > 0 && (img.Width > dim || img.Height > dim) {
				resized = newImage(smartResize(img.Pix, dim, dim))
			}
			if err := qs.Run(ctx, codec, resized, dim, target, enforcementQuality, enforcementQuality, 0, state); err != nil {
				if ctx.Err() != nil {
					return nil, err
				}
				break
			}
			if state.bestUnder != nil {
				break
			}
		}
	}

	best := state.bestUnder
	if best == nil {
		best = state.smallestOverall
		// Nothing got under budget: a candidate no smaller than the input
		// is worse than the input itself.
		if (best == nil || best.Size >= len(data)) && srcFormat == format && !capped {
			return c.finishResult(data, 100, format, img, originalSize, originalDims, img)
		}
	}
	if best == nil {
		return nil, fmt.Errorf("cinch: no candidate produced")
	}

	if opts.Sharpen {
		best, err = c.resharpen(codec, best)
		if err != nil {
			return nil, err
		}
	}

	if err := opts.reportProgress(ctx, StageWriting, 1); err != nil {
		return nil, err
	}

	return c.finishResult(best.Data, best.Quality, format, img, originalSize, originalDims, &Image{Width: best.Width, Height: best.Height})
}

// resharpen re-encodes the winning candidate after applying adaptive
// unsharp-mask sharpening. Runs strictly after the budget search, so it
// can never change which candidate won — only how that candidate looks.
func (c *CompressionOrchestrator) resharpen(codec Codec, best *candidate) (*candidate, error) {
	decoded, err := codec.Decode(best.Data)
	if err != nil {
		return best, nil // Sharpening is best-effort; fall back silently.
	}
	sharpened := AdaptiveSharpen(decoded.Pix, 0.3)
	data, err := codec.Encode(newImage(sharpened), best.Quality)
	if err != nil {
		return best, nil
	}
	out := *best
	out.Data = data
	out.Size = len(data)
	return &out, nil
}

// finishResult assembles a Result, computing the informational SSIM field
// against the original decoded image.
func (c *CompressionOrchestrator) finishResult(data []byte, quality int, format Format, original *Image, originalSize int64, originalDims image.Point, final *Image) (*Result, error) {
	r := &Result{
		CompressedData:     data,
		QualityUsed:        quality,
		Format:             format,
		SizeInfo:           SizeInfo{Width: final.Width, Height: final.Height},
		OriginalSize:       originalSize,
		CompressedSize:     int64(len(data)),
		OriginalDimensions: originalDims,
		FinalDimensions:    image.Point{X: final.Width, Y: final.Height},
	}
	r.EstimatedSSIM = 1.0
	if decoded, err := decodeForSSIM(format, data); err == nil {
		// SSIM resamples decoded to original's dimensions internally, so
		// this works whether the winning candidate was resized or not.
		r.EstimatedSSIM = SSIM(original.Pix, decoded)
	}
	r.computeStats()
	return r, nil
}

// decodeForSSIM decodes data back to NRGBA for the Result.EstimatedSSIM
// comparison. Any failure here just means SSIM stays at its fallback
// value — never fatal to the compression itself.
func decodeForSSIM(format Format, data []byte) (*image.NRGBA, error) {
	codec, err := defaultRegistry.Get(format)
	if err != nil {
		return nil, err
	}
	img, err := codec.Decode(data)
	if err != nil {
		return nil, err
	}
	return img.Pix, nil
}

// sniffDecode tries every registered format's Decode until one succeeds,
// reporting which Format matched.
func sniffDecode(registry *Registry, data []byte) (*Image, Format, error) {
	for _, f := range []Format{JPEG, PNG, WEBP} {
		codec, err := registry.Get(f)
		if err != nil {
			continue
		}
		img, err := codec.Decode(data)
		if err == nil {
			return img, f, nil
		}
	}
	return nil, Auto, fmt.Errorf("%w: unrecognized image data", ErrDecode)
}

// mergeSearchState folds src's trials into dst, so the fast path and
// AdaptiveSearch share one bestUnder/smallestOverall accumulator.
func mergeSearchState(dst, src *searchState, target int) {
	if src.bestUnder != nil {
		dst.consider(*src.bestUnder, target)
	}
	if src.smallestOverall != nil {
		dst.consider(*src.smallestOverall, target)
	}
	dst.trials += src.trials
}

// Compress is a convenience wrapper around a fresh CompressionOrchestrator.
func Compress(ctx context.Context, r io.Reader, opts Options) (*Result, error) {
	return NewOrchestrator(opts).Compress(ctx, r)
}

// CompressBytes is a convenience wrapper around a fresh
// CompressionOrchestrator.
func CompressBytes(ctx context.Context, data []byte, opts Options) (*Result, error) {
	return NewOrchestrator(opts).CompressBytes(ctx, data)
}

// CompressFile reads src, compresses it to budget, and writes the result
// to dst (created or truncated). Returns the same Result CompressBytes
// would.
func CompressFile(ctx context.Context, src, dst string, opts Options) (*Result, error) {
	result, err := NewOrchestrator(opts).CompressFile(ctx, src)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(dst, result.CompressedData, 0o644); err != nil {
		return nil, fmt.Errorf("cinch: write %q: %w", dst, err)
	}
	return result, nil
}
