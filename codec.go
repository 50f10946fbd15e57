package cinch

import (
	"errors"
	"image"
	"sync"
)

// Interpolation selects a resampling filter for Codec.Resize.
type Interpolation int

const (
	// LINEAR is the default — Lanczos-3, the only high-quality filter
	// this engine implements (the teacher's term for its own filter).
	LINEAR Interpolation = iota
	// BOX is a fast box-filter downsample, used internally by the
	// predictor's iterative probes where a cheap approximation is
	// preferable to a full Lanczos pass that may be discarded.
	BOX
)

// Image is an opaque decoded pixel buffer. Logically immutable: Resize
// always returns a new Image and never mutates its receiver.
type Image struct {
	Pix    *image.NRGBA
	Width  int
	Height int
}

// newImage wraps an NRGBA buffer, deriving Width/Height from its bounds.
func newImage(pix *image.NRGBA) *Image {
	b := pix.Bounds()
	return &Image{Pix: pix, Width: b.Dx(), Height: b.Dy()}
}

// Codec is the capability the search engine encodes and decodes through.
// Swapping the concrete JPEG/PNG/WebP implementation never touches the
// search logic — exactly the "opaque encoder capability" spec.md asks for.
type Codec interface {
	// Decode turns bytes into a logical Image. Pure: no I/O beyond the
	// bytes already in hand.
	Decode(data []byte) (*Image, error)

	// Encode produces bytes for img at the given quality. quality is
	// ignored by codecs whose Format doesn't vary by quality (PNG).
	Encode(img *Image, quality int) ([]byte, error)

	// Resize returns a new Image scaled to exactly w x h.
	Resize(img *Image, w, h int, interp Interpolation) *Image

	// Format identifies which Format this Codec implements.
	Format() Format
}

// Sentinel errors surfaced by codecs and the registry. Intra-tier codec
// failures are always treated as EncoderUnavailable by callers (§7);
// these are declared so callers can errors.Is/As when they care.
var (
	ErrCodecNotFound      = errors.New("cinch: no codec registered for format")
	ErrDecode             = errors.New("cinch: decode failed")
	ErrEncode             = errors.New("cinch: encode failed")
	ErrEncoderUnavailable = errors.New("cinch: encoder unavailable at this tier")
)

// Registry holds the Codec implementations available to the search
// engine, keyed by Format. Grounded on cocosip/go-dicom-codec's
// codec.Registry (Register/Get/List over a mutex-guarded map), adapted
// from a DICOM transfer-syntax-UID key to a Format key.
type Registry struct {
	mu     sync.RWMutex
	codecs map[Format]Codec
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{codecs: make(map[Format]Codec)}
}

// Register installs codec as the implementation for its own Format().
// A later Register call for the same Format replaces the earlier one.
func (r *Registry) Register(codec Codec) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.codecs[codec.Format()] = codec
}

// Get retrieves the Codec registered for format.
func (r *Registry) Get(format Format) (Codec, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.codecs[format]
	if !ok {
		return nil, ErrCodecNotFound
	}
	return c, nil
}

// List returns every registered Codec, in no particular order.
func (r *Registry) List() []Codec {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Codec, 0, len(r.codecs))
	for _, c := range r.codecs {
		out = append(out, c)
	}
	return out
}

// defaultRegistry is the package-level Registry used when Options.Codec
// is nil: stdlib JPEG/PNG plus the deepteams/webp-backed WEBP codec.
var defaultRegistry = func() *Registry {
	r := NewRegistry()
	r.Register(newStdJPEGCodec())
	r.Register(newStdPNGCodec())
	r.Register(newWebPCodec())
	return r
}()

// DefaultRegistry returns the package-level default Registry, so callers
// can Register a replacement codec (e.g. a cgo libjpeg-turbo wrapper)
// without constructing their own Registry from scratch.
func DefaultRegistry() *Registry {
	return defaultRegistry
}

// registryFor resolves the Registry an Options should search through.
func (o Options) registryFor() *Registry {
	if o.Codec != nil {
		return o.Codec
	}
	return defaultRegistry
}
