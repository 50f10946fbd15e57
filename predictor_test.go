package cinch

import "testing"

func TestLinearPredictorFitsStraightLine(t *testing.T) {
	// size(quality) = 2*quality exactly, so the two-probe fit should
	// recover the true root with no error.
	codec := fakeCodec{format: JPEG, bytesPerQ: 2}
	img := newFakeImage(10, 10) // bytesPerQ*quality*1

	target := 100 // size(quality) = 2*quality, so target 100 -> quality 50
	state := &searchState{}
	p := LinearPredictor{Policy: SearchPolicy{}}

	got, err := p.Predict(ctxBG(), codec, img, 0, target, state)
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if got.Quality < 48 || got.Quality > 52 {
		t.Errorf("predicted quality = %d, want ~50", got.Quality)
	}
	if state.trials != 2 {
		t.Errorf("trials = %d, want 2 (both probes recorded)", state.trials)
	}
}

func TestLinearPredictorClampsToValidRange(t *testing.T) {
	codec := fakeCodec{format: JPEG, bytesPerQ: 2}
	img := newFakeImage(10, 10)

	state := &searchState{}
	p := LinearPredictor{Policy: SearchPolicy{}}

	// An absurdly small target should clamp down to fallbackMinQuality,
	// not go negative or to zero.
	got, err := p.Predict(ctxBG(), codec, img, 0, 1, state)
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if got.Quality < fallbackMinQuality {
		t.Errorf("predicted quality = %d, want >= %d", got.Quality, fallbackMinQuality)
	}

	state = &searchState{}
	got, err = p.Predict(ctxBG(), codec, img, 0, 10_000_000, state)
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if got.Quality > 100 {
		t.Errorf("predicted quality = %d, want <= 100", got.Quality)
	}
}

func TestLinearPredictorSkipsFixedQualityFormats(t *testing.T) {
	codec := fakeCodec{format: PNG, bytesPerQ: 2}
	img := newFakeImage(10, 10)
	state := &searchState{}
	p := LinearPredictor{Policy: SearchPolicy{}}

	got, err := p.Predict(ctxBG(), codec, img, 0, 10000, state)
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if state.trials != 0 {
		t.Errorf("trials = %d, want 0 for a fixed-quality format", state.trials)
	}
	if got.Quality != 0 {
		t.Errorf("Quality = %d, want 0 (no-op)", got.Quality)
	}
}

func TestLinearPredictorReportsRawProbeSizes(t *testing.T) {
	codec := fakeCodec{format: JPEG, bytesPerQ: 2}
	img := newFakeImage(10, 10) // size(quality) = 2*quality

	state := &searchState{}
	p := LinearPredictor{Policy: SearchPolicy{}}

	got, err := p.Predict(ctxBG(), codec, img, 0, 100, state)
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if got.HiSize != probeHighQuality*2 {
		t.Errorf("HiSize = %d, want %d", got.HiSize, probeHighQuality*2)
	}
	if got.LoSize != probeLowQuality*2 {
		t.Errorf("LoSize = %d, want %d", got.LoSize, probeLowQuality*2)
	}
}

func TestPredictDimensionShrinksBySquareRootOfByteScale(t *testing.T) {
	dim := PredictDimension(1000, 4000, 1000) // byteScale = 0.25, dimScale = 0.5
	if dim != 500 {
		t.Errorf("PredictDimension = %d, want 500", dim)
	}
}

func TestPredictDimensionNeverGrows(t *testing.T) {
	dim := PredictDimension(1000, 500, 1000) // already under target
	if dim != 1000 {
		t.Errorf("PredictDimension = %d, want unchanged 1000", dim)
	}
}

func TestPredictDimensionFloorsScale(t *testing.T) {
	dim := PredictDimension(1000, 1_000_000, 1)
	if dim < 100 {
		t.Errorf("PredictDimension = %d, want >= 100 (0.1 floor)", dim)
	}
}
