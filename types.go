// Package cinch provides adaptive image recompression to a byte budget.
//
// Cinch — tighten an image down to the size you asked for, nothing more.
//
// Given a source image and a target byte count, Cinch searches a
// two-dimensional space of JPEG/WebP quality and maximum pixel dimension,
// encoding candidates and measuring their size until it finds one that
// fits the budget — or the closest thing to it the search turned up.
// The search is predictor-assisted (a two-probe linear fit of size vs.
// quality) and cost-bounded (a hard cap on total encoder calls), so it
// terminates quickly even against a non-monotonic or oddly-behaved codec.
package cinch

import (
	"context"
	"fmt"
	"image"
	"io"
)

// Version is the library version.
const Version = "1.0.0"

// Format represents an output image format.
type Format int

const (
	// Auto lets Cinch choose the best format based on image analysis.
	// Not part of the core budget search contract; resolved once, up
	// front, into JPEG/PNG before the search begins.
	Auto Format = iota
	// JPEG for photographs and complex images. Quality varies.
	JPEG
	// PNG for images with transparency, text, or sharp edges. Quality is
	// fixed; only the dimension ladder affects size.
	PNG
	// WEBP for photographs where WebP is an acceptable delivery format.
	// Quality varies, same as JPEG.
	WEBP
)

func (f Format) String() string {
	switch f {
	case JPEG:
		return "JPEG"
	case PNG:
		return "PNG"
	case WEBP:
		return "WEBP"
	default:
		return "Auto"
	}
}

// qualityVaries reports whether quality is a meaningful search axis for
// this format. PNG has no quality knob in this engine — only dimension.
func (f Format) qualityVaries() bool {
	return f == JPEG || f == WEBP
}

// ProgressStage describes what the compressor is currently doing.
type ProgressStage string

const (
	StageAnalyzing ProgressStage = "analyzing"
	StageResizing  ProgressStage = "resizing"
	StageSearching ProgressStage = "searching"
	StageEnforcing ProgressStage = "enforcing"
	StageWriting   ProgressStage = "writing"
)

// ProgressFunc is called during compression to report progress.
// stage describes the current operation, percent is 0.0-1.0.
// Return a non-nil error to abort the operation.
type ProgressFunc func(stage ProgressStage, percent float64) error

// Options configures the compression behavior. The zero value is not
// directly usable (TargetSizeKB must be set); start from DefaultOptions.
type Options struct {
	// TargetSizeKB is the byte budget in KiB. Required, must be > 0.
	// The working byte target is TargetSizeKB * 1024.
	TargetSizeKB int

	// InitialQuality is the inclusive upper quality bound (default 92).
	InitialQuality int

	// MinQuality is the inclusive lower quality bound for non-fallback
	// passes (default 40). Must be in (0, InitialQuality].
	MinQuality int

	// Format selects the output format (default JPEG).
	Format Format

	// KeepEXIF is forwarded verbatim to a PlatformEncoder, when one is
	// installed. JPEG only; has no effect on the default pure-Go codec
	// path, which never writes EXIF metadata.
	KeepEXIF bool

	// EarlyStopRatio defines the early-stop band as
	// [floor(EarlyStopRatio*target), target] (default 0.95).
	EarlyStopRatio float64

	// NearTargetFactor: if the original size is <= floor(factor*target),
	// a high-quality near-target path runs first (default 1.2).
	NearTargetFactor float64

	// PreferredMinQuality is substituted as the lower quality bound
	// during the near-target path (default 80):
	// max(PreferredMinQuality, MinQuality).
	PreferredMinQuality int

	// MaxAttemptsPerDim bounds binary-search steps at one dimension
	// (default 5).
	MaxAttemptsPerDim int

	// MaxTotalTrials bounds AdaptiveSearch's encoder calls across one
	// request (default 24); the fast path and the enforcement sweep have
	// caps of their own. It is checked before each ladder dimension and
	// each bisection step, and the two probe encodes that open a dimension
	// always run as a pair, so the count can end one past the cap, or at
	// four when the cap is below four and the first dimension takes the
	// downscale branch.
	MaxTotalTrials int

	// MaxWidth, MaxHeight, if set, are a hard pre-scale ceiling applied
	// once, before the dimension ladder, aspect-ratio preserving.
	MaxWidth, MaxHeight int

	// AutoOrient reads EXIF orientation data and auto-rotates the image
	// before the search begins (default true).
	AutoOrient bool

	// Sharpen applies adaptive unsharp-mask sharpening to the winning
	// candidate's image just before the final encode (default false).
	// Never affects which candidate the budget search picks.
	Sharpen bool

	// OnProgress is called during compression to report progress.
	// Optional. Returning a non-nil error aborts the operation.
	OnProgress ProgressFunc

	// Codec overrides the default Codec Registry. Nil uses the
	// package-level default registry (stdlib JPEG/PNG + WebP).
	Codec *Registry

	// Platform, if set, is consulted by FastPathEncoder before the
	// general-purpose search runs. Nil means no platform encoder is
	// available and FastPathEncoder always reports unavailable.
	Platform PlatformEncoder
}

// DefaultOptions returns sensible defaults for general use. TargetSizeKB
// is still required; every other field matches spec defaults.
func DefaultOptions() Options {
	return Options{
		InitialQuality:      92,
		MinQuality:          40,
		Format:              JPEG,
		EarlyStopRatio:      0.95,
		NearTargetFactor:    1.2,
		PreferredMinQuality: 80,
		MaxAttemptsPerDim:   5,
		MaxTotalTrials:      24,
		AutoOrient:          true,
	}
}

// withDefaults fills in zero-valued fields with package defaults,
// returning a copy. Does not touch TargetSizeKB.
func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.InitialQuality <= 0 {
		o.InitialQuality = d.InitialQuality
	}
	if o.MinQuality <= 0 {
		o.MinQuality = d.MinQuality
	}
	if o.MinQuality > o.InitialQuality {
		o.MinQuality = o.InitialQuality
	}
	if o.EarlyStopRatio <= 0 || o.EarlyStopRatio > 1 {
		o.EarlyStopRatio = d.EarlyStopRatio
	}
	if o.NearTargetFactor < 1.0 {
		o.NearTargetFactor = d.NearTargetFactor
	}
	if o.PreferredMinQuality <= 0 {
		o.PreferredMinQuality = d.PreferredMinQuality
	}
	if o.MaxAttemptsPerDim <= 0 {
		o.MaxAttemptsPerDim = d.MaxAttemptsPerDim
	}
	if o.MaxTotalTrials <= 0 {
		o.MaxTotalTrials = d.MaxTotalTrials
	}
	return o
}

// targetBytes returns the requested byte budget, before the 10 KiB floor.
func (o Options) targetBytes() int {
	return o.TargetSizeKB * 1024
}

// reportProgress safely invokes the progress callback if set.
// Returns context error or progress callback error.
func (o *Options) reportProgress(ctx context.Context, stage ProgressStage, percent float64) error {
	if ctx != nil {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}
	if o.OnProgress != nil {
		return o.OnProgress(stage, percent)
	}
	return nil
}

// SizeInfo carries the final pixel dimensions of a Result.
type SizeInfo struct {
	Width, Height int
}

// Result contains compression results and statistics.
type Result struct {
	// CompressedData holds the encoded bytes actually produced.
	CompressedData []byte

	// QualityUsed is the JPEG/WEBP quality chosen, in [1, InitialQuality].
	// It is 100 when the input bytes are returned unchanged: on
	// passthrough, or when no candidate got under budget and none was
	// smaller than the input.
	QualityUsed int

	// Format is the format the result was encoded in.
	Format Format

	// SizeInfo is the final pixel dimensions.
	SizeInfo SizeInfo

	// OriginalSize is the original input size in bytes.
	OriginalSize int64

	// CompressedSize is the compressed output size in bytes.
	CompressedSize int64

	// EstimatedSSIM is an informational structural-similarity estimate
	// between the original and the chosen candidate. It plays no part
	// in candidate selection — purely a reporting field.
	EstimatedSSIM float64

	// OriginalDimensions is the original width x height, after EXIF
	// auto-orientation and before any resize.
	OriginalDimensions image.Point

	// FinalDimensions is the output width x height (same as SizeInfo,
	// as an image.Point for convenience).
	FinalDimensions image.Point

	// Ratio is the compression ratio (original / compressed).
	Ratio float64

	// SavingsPercent is the percentage of bytes saved.
	SavingsPercent float64
}

// WriteTo writes the compressed image data to w.
func (r *Result) WriteTo(w io.Writer) (int64, error) {
	if len(r.CompressedData) == 0 {
		return 0, fmt.Errorf("cinch: no compressed data available")
	}
	n, err := w.Write(r.CompressedData)
	return int64(n), err
}

// Bytes returns the compressed image data as a byte slice.
func (r *Result) Bytes() []byte {
	return r.CompressedData
}

// String returns a human-readable summary of the compression result.
func (r *Result) String() string {
	qStr := ""
	if r.Format.qualityVaries() && r.QualityUsed > 0 {
		qStr = fmt.Sprintf(" Q=%d |", r.QualityUsed)
	}
	return fmt.Sprintf(
		"Cinch Result: %s |%s %dx%d -> %dx%d | %s -> %s",
		r.Format, qStr,
		r.OriginalDimensions.X, r.OriginalDimensions.Y,
		r.FinalDimensions.X, r.FinalDimensions.Y,
		humanBytes(r.OriginalSize), humanBytes(r.CompressedSize),
	)
}

// computeStats fills in the computed fields (Ratio, SavingsPercent).
func (r *Result) computeStats() {
	if r.OriginalSize > 0 && r.CompressedSize > 0 {
		r.Ratio = float64(r.OriginalSize) / float64(r.CompressedSize)
		r.SavingsPercent = (1 - float64(r.CompressedSize)/float64(r.OriginalSize)) * 100
	}
}
