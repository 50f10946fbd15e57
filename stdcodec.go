package cinch

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
)

// stdJPEGCodec is the default JPEG Codec: stdlib image/jpeg, with the
// teacher's opaque-image RGBA fast path and palette/grayscale probes left
// to stdPNGCodec since JPEG has no indexed mode.
type stdJPEGCodec struct{}

func newStdJPEGCodec() Codec { return stdJPEGCodec{} }

func (stdJPEGCodec) Format() Format { return JPEG }

func (stdJPEGCodec) Decode(data []byte) (*Image, error) {
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return newImage(toNRGBA(img)), nil
}

func (stdJPEGCodec) Encode(img *Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := encodeJPEG(&buf, img.Pix, quality, true); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncode, err)
	}
	return buf.Bytes(), nil
}

func (stdJPEGCodec) Resize(img *Image, w, h int, interp Interpolation) *Image {
	return newImage(resizePix(img.Pix, w, h, interp))
}

// stdPNGCodec is the default PNG Codec. PNG has no quality knob in this
// engine: Encode ignores its quality argument, and palette/grayscale
// reduction (tryPalettize, toGray) from the teacher's compressPNG does the
// actual size work, driven entirely by the dimension ladder.
type stdPNGCodec struct{}

func newStdPNGCodec() Codec { return stdPNGCodec{} }

func (stdPNGCodec) Format() Format { return PNG }

func (stdPNGCodec) Decode(data []byte) (*Image, error) {
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return newImage(toNRGBA(img)), nil
}

func (stdPNGCodec) Encode(img *Image, _ int) ([]byte, error) {
	var buf bytes.Buffer
	if err := compressPNG(img.Pix, &buf); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncode, err)
	}
	return buf.Bytes(), nil
}

func (stdPNGCodec) Resize(img *Image, w, h int, interp Interpolation) *Image {
	return newImage(resizePix(img.Pix, w, h, interp))
}

// encodeJPEG handles JPEG encoding, using RGBA for opaque images (faster
// path — stdlib jpeg.Encode skips the alpha-channel accounting).
func encodeJPEG(w io.Writer, img *image.NRGBA, quality int, subsample bool) error {
	_ = subsample // subsampling is controlled by quality alone in this codec.
	if isOpaque(img) {
		rgba := &image.RGBA{
			Pix:    img.Pix,
			Stride: img.Stride,
			Rect:   img.Rect,
		}
		return jpeg.Encode(w, rgba, &jpeg.Options{Quality: quality})
	}
	return jpeg.Encode(w, img, &jpeg.Options{Quality: quality})
}

// compressPNG applies PNG-specific size reduction: palette first, then
// grayscale, falling back to full NRGBA. Quality has no bearing here —
// size comes from the dimension ladder alone.
func compressPNG(img *image.NRGBA, w io.Writer) error {
	if paletted := tryPalettize(img, 256); paletted != nil {
		encoder := png.Encoder{CompressionLevel: png.BestCompression}
		return encoder.Encode(w, paletted)
	}

	if isGrayscale(img) {
		gray := toGray(img)
		encoder := png.Encoder{CompressionLevel: png.BestCompression}
		return encoder.Encode(w, gray)
	}

	encoder := png.Encoder{CompressionLevel: png.BestCompression}
	return encoder.Encode(w, img)
}

// tryPalettize attempts to convert the image to an indexed palette.
// Returns nil if the image has more than maxColors distinct colors.
func tryPalettize(img *image.NRGBA, maxColors int) *image.Paletted {
	w := img.Bounds().Dx()
	h := img.Bounds().Dy()

	colorMap := make(map[[4]uint8]int)

	for y := 0; y < h; y++ {
		off := y * img.Stride
		for x := 0; x < w; x++ {
			i := off + x*4
			key := [4]uint8{img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3]}
			colorMap[key]++
			if len(colorMap) > maxColors {
				return nil
			}
		}
	}

	palette := make([]color.Color, 0, len(colorMap))
	colorIndex := make(map[[4]uint8]uint8, len(colorMap))

	for c := range colorMap {
		idx := uint8(len(palette))
		colorIndex[c] = idx
		palette = append(palette, color.NRGBA{R: c[0], G: c[1], B: c[2], A: c[3]})
	}

	paletted := image.NewPaletted(image.Rect(0, 0, w, h), palette)
	for y := 0; y < h; y++ {
		srcOff := y * img.Stride
		dstOff := y * paletted.Stride
		for x := 0; x < w; x++ {
			i := srcOff + x*4
			key := [4]uint8{img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3]}
			paletted.Pix[dstOff+x] = colorIndex[key]
		}
	}

	return paletted
}
