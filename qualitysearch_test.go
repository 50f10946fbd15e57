package cinch

import "testing"

// fakeCodec is a deterministic stand-in for a real Codec: size is a
// monotonic (or, via nonMonotonic, deliberately bumpy) function of
// quality, so tests can assert on exact search behavior without paying
// for real JPEG/PNG encodes.
type fakeCodec struct {
	format        Format
	bytesPerQ     int // size(quality) = quality * bytesPerQ * (W*H/100)
	nonMonotonic  map[int]int
}

func (f fakeCodec) Format() Format { return f.format }

func (f fakeCodec) Decode(data []byte) (*Image, error) {
	return nil, ErrDecode
}

func (f fakeCodec) Encode(img *Image, quality int) ([]byte, error) {
	size := quality * f.bytesPerQ * (img.Width * img.Height / 100)
	if f.nonMonotonic != nil {
		if override, ok := f.nonMonotonic[quality]; ok {
			size = override
		}
	}
	if size < 1 {
		size = 1
	}
	return make([]byte, size), nil
}

func (f fakeCodec) Resize(img *Image, w, h int, interp Interpolation) *Image {
	return &Image{Width: w, Height: h}
}

func newFakeImage(w, h int) *Image {
	return &Image{Width: w, Height: h}
}

func TestQualitySearchFindsLargestUnderTarget(t *testing.T) {
	codec := fakeCodec{format: JPEG, bytesPerQ: 100}
	img := newFakeImage(10, 10) // 100 px -> size = quality*100*1 = quality*100
	target := 5000              // expect quality ~50

	state := &searchState{}
	qs := QualitySearch{Policy: SearchPolicy{MaxAttemptsPerDim: 10, MaxTotalTrials: 50}}

	if err := qs.Run(ctxBG(), codec, img, 0, target, 1, 100, 0, state); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if state.bestUnder == nil {
		t.Fatal("expected a bestUnder candidate")
	}
	if state.bestUnder.Size > target {
		t.Errorf("bestUnder.Size = %d, exceeds target %d", state.bestUnder.Size, target)
	}
	// The next quality step up should have overshot — otherwise the
	// search left headroom on the table.
	nextUp := state.bestUnder.Quality + 1
	if nextUp <= 100 {
		data, _ := codec.Encode(img, nextUp)
		if len(data) <= target {
			t.Errorf("quality %d also fits under target; search should have found it", nextUp)
		}
	}
}

func TestQualitySearchRespectsAttemptCap(t *testing.T) {
	codec := fakeCodec{format: JPEG, bytesPerQ: 100}
	img := newFakeImage(10, 10)
	state := &searchState{}
	qs := QualitySearch{Policy: SearchPolicy{MaxAttemptsPerDim: 2, MaxTotalTrials: 50}}

	if err := qs.Run(ctxBG(), codec, img, 0, 5000, 1, 100, 0, state); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if state.trials > 2 {
		t.Errorf("trials = %d, want <= 2", state.trials)
	}
}

func TestQualitySearchNonMonotonicKeepsBestSeen(t *testing.T) {
	// Quality 50 happens to encode smaller than quality 40 would suggest —
	// a real codec can do this. The search must not lose that trial just
	// because it didn't fit the bisection direction it implies.
	codec := fakeCodec{
		format:    JPEG,
		bytesPerQ: 100,
		nonMonotonic: map[int]int{
			50: 4000, // unexpectedly small candidate, still under target
		},
	}
	img := newFakeImage(10, 10)
	target := 4500
	state := &searchState{}
	qs := QualitySearch{Policy: SearchPolicy{MaxAttemptsPerDim: 10, MaxTotalTrials: 50}}

	if err := qs.Run(ctxBG(), codec, img, 0, target, 1, 100, 50, state); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if state.smallestOverall == nil {
		t.Fatal("expected a smallestOverall candidate")
	}
}

func TestQualitySearchStopsOnceInsideEarlyStopBand(t *testing.T) {
	codec := fakeCodec{format: JPEG, bytesPerQ: 100}
	img := newFakeImage(10, 10) // size(quality) = quality*100
	target := 5000
	state := &searchState{}
	qs := QualitySearch{Policy: SearchPolicy{
		MaxAttemptsPerDim: 10,
		MaxTotalTrials:    50,
		EarlyStopRatio:    0.9, // band = [4500, 5000]
	}}

	if err := qs.Run(ctxBG(), codec, img, 0, target, 1, 100, 0, state); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if state.bestUnder == nil {
		t.Fatal("expected a bestUnder candidate")
	}
	if state.bestUnder.Size < 4500 {
		t.Errorf("bestUnder.Size = %d, want >= 4500 (early-stop band)", state.bestUnder.Size)
	}
	// The first bisection midpoint (quality 50) already lands size=5000,
	// squarely inside the band — the loop should have stopped right there
	// instead of spending further attempts refining it.
	if state.trials != 1 {
		t.Errorf("trials = %d, want 1 (should stop as soon as the band is hit)", state.trials)
	}
}

func TestQualitySearchSingleTrialWhenQualityFixed(t *testing.T) {
	codec := fakeCodec{format: PNG, bytesPerQ: 50}
	img := newFakeImage(10, 10)
	state := &searchState{}
	qs := QualitySearch{Policy: SearchPolicy{MaxAttemptsPerDim: 10, MaxTotalTrials: 50}}

	if err := qs.Run(ctxBG(), codec, img, 0, 5000, 1, 100, 0, state); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if state.trials != 1 {
		t.Errorf("trials = %d, want 1 for a fixed-quality format", state.trials)
	}
}

func TestSearchStateConsiderTracksBestUnderAndSmallest(t *testing.T) {
	state := &searchState{}
	target := 1000

	state.consider(candidate{Quality: 10, Size: 1200}, target)
	if state.bestUnder != nil {
		t.Error("1200 > target should not set bestUnder")
	}
	if state.smallestOverall == nil || state.smallestOverall.Size != 1200 {
		t.Error("smallestOverall should track the first candidate")
	}

	state.consider(candidate{Quality: 20, Size: 900}, target)
	if state.bestUnder == nil || state.bestUnder.Size != 900 {
		t.Error("900 <= target should set bestUnder")
	}

	state.consider(candidate{Quality: 30, Size: 950}, target)
	if state.bestUnder.Size != 950 {
		t.Error("a larger-but-still-under candidate should replace bestUnder")
	}

	state.consider(candidate{Quality: 5, Size: 500}, target)
	if state.smallestOverall.Size != 500 {
		t.Error("smallestOverall should update to the new minimum")
	}
	if state.bestUnder.Size != 950 {
		t.Error("a smaller-but-still-under candidate should not replace a larger bestUnder")
	}
}
