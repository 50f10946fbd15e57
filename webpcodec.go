package cinch

import (
	"bytes"
	"fmt"

	"github.com/deepteams/webp"
)

// webpCodec is the WEBP Codec, backed by the pure-Go deepteams/webp
// encoder/decoder. Importing it registers "webp" with image.RegisterFormat
// as a side effect, so image.Decode also recognizes WebP input outside
// this package's own Decode path.
type webpCodec struct{}

func newWebPCodec() Codec { return webpCodec{} }

func (webpCodec) Format() Format { return WEBP }

func (webpCodec) Decode(data []byte) (*Image, error) {
	img, err := webp.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return newImage(toNRGBA(img)), nil
}

func (webpCodec) Encode(img *Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	opts := &webp.EncoderOptions{
		Quality: float32(quality),
		Method:  4,
		Preset:  webp.PresetPhoto,
	}
	if err := webp.Encode(&buf, img.Pix, opts); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncode, err)
	}
	return buf.Bytes(), nil
}

func (webpCodec) Resize(img *Image, w, h int, interp Interpolation) *Image {
	return newImage(resizePix(img.Pix, w, h, interp))
}
