package cinch

import (
	"errors"
	"testing"
)

func TestRegistryRegisterAndGet(t *testing.T) {
	r := NewRegistry()
	r.Register(fakeCodec{format: JPEG})

	c, err := r.Get(JPEG)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if c.Format() != JPEG {
		t.Errorf("Format() = %v, want JPEG", c.Format())
	}
}

func TestRegistryGetMissingFormat(t *testing.T) {
	r := NewRegistry()
	_, err := r.Get(WEBP)
	if !errors.Is(err, ErrCodecNotFound) {
		t.Errorf("err = %v, want ErrCodecNotFound", err)
	}
}

func TestRegistryRegisterReplaces(t *testing.T) {
	r := NewRegistry()
	r.Register(fakeCodec{format: JPEG, bytesPerQ: 1})
	r.Register(fakeCodec{format: JPEG, bytesPerQ: 2})

	c, _ := r.Get(JPEG)
	fc := c.(fakeCodec)
	if fc.bytesPerQ != 2 {
		t.Errorf("bytesPerQ = %d, want 2 (second Register should win)", fc.bytesPerQ)
	}
}

func TestRegistryList(t *testing.T) {
	r := NewRegistry()
	r.Register(fakeCodec{format: JPEG})
	r.Register(fakeCodec{format: PNG})
	if len(r.List()) != 2 {
		t.Errorf("List() len = %d, want 2", len(r.List()))
	}
}

func TestDefaultRegistryHasAllThreeFormats(t *testing.T) {
	for _, f := range []Format{JPEG, PNG, WEBP} {
		if _, err := DefaultRegistry().Get(f); err != nil {
			t.Errorf("DefaultRegistry().Get(%v): %v", f, err)
		}
	}
}

func TestOptionsRegistryForFallsBackToDefault(t *testing.T) {
	o := Options{}
	if o.registryFor() != defaultRegistry {
		t.Error("registryFor() should return the package default when Codec is nil")
	}

	custom := NewRegistry()
	o.Codec = custom
	if o.registryFor() != custom {
		t.Error("registryFor() should return Options.Codec when set")
	}
}
