package cinch

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"testing"
)

// makeJPEGPhoto builds a noisy-enough NRGBA image (flat colors compress
// to almost nothing, which would make every quality level pass the
// budget and defeat these tests) and encodes it at high quality so the
// fixture itself has real bytes to shrink.
func makeJPEGPhoto(t *testing.T, w, h, quality int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{
				R: uint8((x * 7) % 256),
				G: uint8((y * 13) % 256),
				B: uint8((x*3 + y*5) % 256),
				A: 255,
			})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		t.Fatalf("jpeg.Encode: %v", err)
	}
	return buf.Bytes()
}

func TestCompressBytesPassthroughWhenAlreadyUnderTarget(t *testing.T) {
	data := makeJPEGPhoto(t, 64, 64, 90)
	opts := DefaultOptions()
	opts.TargetSizeKB = len(data)/1024 + 64 // generous budget, already satisfied

	result, err := CompressBytes(ctxBG(), data, opts)
	if err != nil {
		t.Fatalf("CompressBytes: %v", err)
	}
	if result.QualityUsed != 100 {
		t.Errorf("QualityUsed = %d, want 100 (passthrough marker)", result.QualityUsed)
	}
	if !bytes.Equal(result.CompressedData, data) {
		t.Error("passthrough should return the original bytes unchanged")
	}
}

func TestCompressBytesShrinksToBudget(t *testing.T) {
	data := makeJPEGPhoto(t, 800, 600, 95)
	opts := DefaultOptions()
	opts.TargetSizeKB = 15 // well below the high-quality fixture's size

	result, err := CompressBytes(ctxBG(), data, opts)
	if err != nil {
		t.Fatalf("CompressBytes: %v", err)
	}
	if result.CompressedSize > int64(opts.TargetSizeKB*1024) {
		// The search can miss the budget and fall back to its closest
		// candidate; only fail if it came back no smaller than the input.
		if result.CompressedSize >= result.OriginalSize {
			t.Errorf("CompressedSize = %d, did not shrink below OriginalSize %d", result.CompressedSize, result.OriginalSize)
		}
	}
	if result.CompressedSize <= 0 {
		t.Error("expected non-empty compressed output")
	}
	if result.EstimatedSSIM <= 0 || result.EstimatedSSIM > 1 {
		t.Errorf("EstimatedSSIM = %v, want in (0, 1]", result.EstimatedSSIM)
	}
}

func TestCompressBytesRejectsZeroTarget(t *testing.T) {
	data := makeJPEGPhoto(t, 32, 32, 90)
	opts := DefaultOptions()
	opts.TargetSizeKB = 0

	if _, err := CompressBytes(ctxBG(), data, opts); err == nil {
		t.Error("expected an error for TargetSizeKB <= 0")
	}
}

func TestCompressBytesRejectsUnrecognizedData(t *testing.T) {
	opts := DefaultOptions()
	opts.TargetSizeKB = 10

	if _, err := CompressBytes(ctxBG(), []byte("not an image"), opts); err == nil {
		t.Error("expected an error for unrecognized image data")
	}
}

func TestCompressBytesHonorsMaxWidthHeight(t *testing.T) {
	data := makeJPEGPhoto(t, 800, 600, 90)
	opts := DefaultOptions()
	opts.TargetSizeKB = 200
	opts.MaxWidth = 200
	opts.MaxHeight = 200

	result, err := CompressBytes(ctxBG(), data, opts)
	if err != nil {
		t.Fatalf("CompressBytes: %v", err)
	}
	if result.FinalDimensions.X > 200 || result.FinalDimensions.Y > 200 {
		t.Errorf("FinalDimensions = %v, want within 200x200", result.FinalDimensions)
	}
	if result.OriginalDimensions.X != 800 || result.OriginalDimensions.Y != 600 {
		t.Errorf("OriginalDimensions = %v, want 800x600 (pre-resize)", result.OriginalDimensions)
	}
}

func TestCompressBytesEnforcesEvenTinyBudgets(t *testing.T) {
	data := makeJPEGPhoto(t, 800, 600, 95)
	opts := DefaultOptions()
	opts.TargetSizeKB = 1 // floored to 10 KiB internally

	result, err := CompressBytes(ctxBG(), data, opts)
	if err != nil {
		t.Fatalf("CompressBytes: %v", err)
	}
	if result.CompressedSize <= 0 {
		t.Error("expected a 1 KiB budget to still produce output")
	}
}
