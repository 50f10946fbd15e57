package cinch

import (
	"fmt"
	"image"
	"image/color"
	"math"
)

// toNRGBA converts any image.Image to *image.NRGBA, always returning a new
// copy. compressCore uses this on the decoded source so later pipeline
// steps (auto-orient, resharpen, the resize ladder) are free to mutate the
// pixel buffer in place without corrupting the caller's original.
func toNRGBA(img image.Image) *image.NRGBA {
	if nrgba, ok := img.(*image.NRGBA); ok {
		bounds := nrgba.Bounds()
		dst := image.NewNRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
		copy(dst.Pix, nrgba.Pix)
		return dst
	}
	return convertToNRGBA(img)
}

// toNRGBARef converts any image.Image to *image.NRGBA without copying when
// the input is already NRGBA. SSIM scoring only ever reads pixels, so it
// takes this path to skip a full-buffer copy on every finished compression.
// The caller must not modify the returned image.
func toNRGBARef(img image.Image) *image.NRGBA {
	if nrgba, ok := img.(*image.NRGBA); ok {
		return nrgba
	}
	return convertToNRGBA(img)
}

// convertToNRGBA walks every source pixel and un-premultiplies its alpha,
// the one part of format conversion that can't be skipped regardless of
// which image.Image implementation a codec's Decode handed back.
func convertToNRGBA(img image.Image) *image.NRGBA {
	bounds := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, a := img.At(x, y).RGBA()
			off := (y-bounds.Min.Y)*dst.Stride + (x-bounds.Min.X)*4
			switch a {
			case 0:
				// Fully transparent — RGB is meaningless, zero it too.
				dst.Pix[off] = 0
				dst.Pix[off+1] = 0
				dst.Pix[off+2] = 0
				dst.Pix[off+3] = 0
			case 0xffff:
				dst.Pix[off] = uint8(r >> 8)
				dst.Pix[off+1] = uint8(g >> 8)
				dst.Pix[off+2] = uint8(b >> 8)
				dst.Pix[off+3] = 0xff
			default:
				dst.Pix[off] = uint8(((r * 0xffff) / a) >> 8)
				dst.Pix[off+1] = uint8(((g * 0xffff) / a) >> 8)
				dst.Pix[off+2] = uint8(((b * 0xffff) / a) >> 8)
				dst.Pix[off+3] = uint8(a >> 8)
			}
		}
	}
	return dst
}

// allPixelsMatch scans every pixel of img and reports whether pred holds for
// all of them, short-circuiting on the first rejection. isOpaque and
// isGrayscale are both "does this one property hold everywhere" scans over
// the same Pix layout, so they share this walk instead of duplicating it.
func allPixelsMatch(img *image.NRGBA, pred func(off int) bool) bool {
	for off := 0; off < len(img.Pix); off += 4 {
		if !pred(off) {
			return false
		}
	}
	return true
}

// isOpaque reports whether every pixel has full alpha. encodeJPEG calls
// this to decide whether it can hand the pixel buffer to the stdlib JPEG
// encoder as RGBA directly, skipping its slower alpha-aware path.
func isOpaque(img *image.NRGBA) bool {
	return allPixelsMatch(img, func(off int) bool { return img.Pix[off+3] == 0xff })
}

// isGrayscale reports whether every pixel has R == G == B. compressPNG
// calls this once palette reduction has already failed, since a true
// grayscale PNG encodes to roughly a quarter the bytes of full NRGBA.
func isGrayscale(img *image.NRGBA) bool {
	return allPixelsMatch(img, func(off int) bool {
		return img.Pix[off] == img.Pix[off+1] && img.Pix[off+1] == img.Pix[off+2]
	})
}

// toGray collapses img to one byte per pixel. Only called once isGrayscale
// has already confirmed every channel triple matches, so no color
// information is lost in the process.
func toGray(img *image.NRGBA) *image.Gray {
	w := img.Bounds().Dx()
	h := img.Bounds().Dy()
	gray := image.NewGray(image.Rect(0, 0, w, h))

	for y := 0; y < h; y++ {
		srcOff := y * img.Stride
		dstOff := y * gray.Stride
		for x := 0; x < w; x++ {
			gray.Pix[dstOff+x] = img.Pix[srcOff+x*4]
		}
	}
	return gray
}

// formatSampleBudget caps how many pixels analyzeFormat inspects before
// deciding PNG vs JPEG. compressCore runs this once, ahead of the whole
// budget search, so it has to stay cheap even on very large sources.
const formatSampleBudget = 10000

// analyzeFormat picks an output format for compressCore when the caller
// left Options.Format unset: images with transparency or a small palette
// go to PNG, photographic many-color images go to JPEG. It samples rather
// than walking every pixel, since this runs once before AdaptiveSearch even
// starts and shouldn't itself become the compression bottleneck.
func analyzeFormat(img *image.NRGBA) Format {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	hasAlpha := false
	colorSet := make(map[color.NRGBA]struct{})
	step := 1
	total := w * h
	if total > formatSampleBudget {
		step = total / formatSampleBudget
		if step < 1 {
			step = 1
		}
	}

	const paletteCeiling = 512
	idx := 0
	for y := 0; y < h && len(colorSet) < paletteCeiling; y++ {
		for x := 0; x < w && len(colorSet) < paletteCeiling; x++ {
			if idx%step != 0 {
				idx++
				continue
			}
			off := y*img.Stride + x*4
			a := img.Pix[off+3]
			if a < 255 {
				hasAlpha = true
			}
			c := color.NRGBA{R: img.Pix[off], G: img.Pix[off+1], B: img.Pix[off+2], A: a}
			colorSet[c] = struct{}{}
			idx++
		}
	}

	if hasAlpha {
		return PNG
	}
	if len(colorSet) < 256 {
		return PNG
	}
	return JPEG
}

// clampF rounds and saturates a float64 channel value into uint8 range.
// Every resample filter and blur kernel in this package funnels its
// weighted sums through here, so overshoot from Lanczos's negative lobes
// or a blur's overshoot never escapes as pixel garbage.
func clampF(x float64) uint8 {
	v := int64(math.Round(x))
	switch {
	case v > 255:
		return 255
	case v < 0:
		return 0
	default:
		return uint8(v)
	}
}

// humanBytes renders a byte count the way cinch's CLI and logs report
// Result sizes, so "target" and "achieved" read naturally side by side.
func humanBytes(b int64) string {
	if b == 0 {
		return "0 B"
	}
	units := []string{"B", "KB", "MB", "GB"}
	i := 0
	bf := float64(b)
	for bf >= 1024 && i < len(units)-1 {
		bf /= 1024
		i++
	}
	if i == 0 {
		return fmt.Sprintf("%d B", b)
	}
	return fmt.Sprintf("%.1f %s", bf, units[i])
}

func abs64(x int64) int64 {
	if x < 0 {
		return -x
	}
	return x
}

// newNRGBALike allocates a zeroed destination buffer of the given
// dimensions. The four rotate/flip transforms below all start from one of
// these; factored out so the orientation math is the only thing that
// differs between them.
func newNRGBALike(w, h int) *image.NRGBA {
	return image.NewNRGBA(image.Rect(0, 0, w, h))
}

// rotateNRGBA90CW rotates an NRGBA image 90 degrees clockwise. Used by
// ApplyOrientation for EXIF orientation 6, and with a horizontal flip for 5.
func rotateNRGBA90CW(img *image.NRGBA) *image.NRGBA {
	w := img.Bounds().Dx()
	h := img.Bounds().Dy()
	dst := newNRGBALike(h, w)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			srcOff := y*img.Stride + x*4
			dstOff := x*dst.Stride + (h-1-y)*4
			copy(dst.Pix[dstOff:dstOff+4], img.Pix[srcOff:srcOff+4])
		}
	}
	return dst
}

// rotateNRGBA180 rotates an NRGBA image 180 degrees (EXIF orientation 3).
func rotateNRGBA180(img *image.NRGBA) *image.NRGBA {
	w := img.Bounds().Dx()
	h := img.Bounds().Dy()
	dst := newNRGBALike(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			srcOff := y*img.Stride + x*4
			dstOff := (h-1-y)*dst.Stride + (w-1-x)*4
			copy(dst.Pix[dstOff:dstOff+4], img.Pix[srcOff:srcOff+4])
		}
	}
	return dst
}

// rotateNRGBA270CW rotates an NRGBA image 270 degrees clockwise, i.e. 90
// degrees counter-clockwise (EXIF orientation 8, and with a horizontal
// flip 7).
func rotateNRGBA270CW(img *image.NRGBA) *image.NRGBA {
	w := img.Bounds().Dx()
	h := img.Bounds().Dy()
	dst := newNRGBALike(h, w)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			srcOff := y*img.Stride + x*4
			dstOff := (w-1-x)*dst.Stride + y*4
			copy(dst.Pix[dstOff:dstOff+4], img.Pix[srcOff:srcOff+4])
		}
	}
	return dst
}

// flipNRGBAHorizontal mirrors an NRGBA image left-to-right (EXIF
// orientation 2 on its own; 5 and 7 after a rotation).
func flipNRGBAHorizontal(img *image.NRGBA) *image.NRGBA {
	w := img.Bounds().Dx()
	h := img.Bounds().Dy()
	dst := newNRGBALike(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			srcOff := y*img.Stride + x*4
			dstOff := y*dst.Stride + (w-1-x)*4
			copy(dst.Pix[dstOff:dstOff+4], img.Pix[srcOff:srcOff+4])
		}
	}
	return dst
}

// flipNRGBAVertical mirrors an NRGBA image top-to-bottom (EXIF
// orientation 4's lone transform). Row-at-a-time since a vertical flip
// never reorders bytes within a row.
func flipNRGBAVertical(img *image.NRGBA) *image.NRGBA {
	w := img.Bounds().Dx()
	h := img.Bounds().Dy()
	dst := newNRGBALike(w, h)
	for y := 0; y < h; y++ {
		srcRow := y * img.Stride
		dstRow := (h - 1 - y) * dst.Stride
		copy(dst.Pix[dstRow:dstRow+w*4], img.Pix[srcRow:srcRow+w*4])
	}
	return dst
}
