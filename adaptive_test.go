package cinch

import "testing"

func TestAdaptiveSearchHitsEarlyStopBandOnPrimaryLadder(t *testing.T) {
	codec := fakeCodec{format: JPEG, bytesPerQ: 2}
	img := newFakeImage(1000, 1000) // W*H/100 = 10000, size = quality*2*10000

	target := 1_000_000 // quality ~50 lands here
	policy := SearchPolicy{
		MaxAttemptsPerDim: 6,
		MaxTotalTrials:    40,
		EarlyStopRatio:    0.95,
		InitialQuality:    92,
		MinQuality:        40,
	}
	a := AdaptiveSearch{Policy: policy, Codec: codec}

	state, err := a.Run(ctxBG(), img, target, policy.MinQuality, policy.InitialQuality)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if state.bestUnder == nil {
		t.Fatal("expected a bestUnder candidate")
	}
	lo, hi := policy.earlyStopBand(target)
	if state.bestUnder.Size < lo || state.bestUnder.Size > hi {
		t.Errorf("bestUnder.Size = %d, want in [%d, %d]", state.bestUnder.Size, lo, hi)
	}
}

func TestAdaptiveSearchFallsBackWhenPrimaryLadderMisses(t *testing.T) {
	// A target far too small for any primary-ladder quality forces the
	// fallback ladder's smaller dimensions and wider quality floor.
	codec := fakeCodec{format: JPEG, bytesPerQ: 50}
	img := newFakeImage(2000, 2000)

	target := 50 // out of reach even at the smallest fallback dimension and quality floor
	policy := SearchPolicy{
		MaxAttemptsPerDim: 6,
		MaxTotalTrials:    200,
		EarlyStopRatio:    0.95,
		InitialQuality:    92,
		MinQuality:        40,
	}
	a := AdaptiveSearch{Policy: policy, Codec: codec}

	state, err := a.Run(ctxBG(), img, target, policy.MinQuality, policy.InitialQuality)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if state.smallestOverall == nil {
		t.Fatal("expected at least a smallestOverall candidate")
	}
}

func TestAdaptiveSearchDownscaleProbeEngagesOnTinyTarget(t *testing.T) {
	// A target small enough that even probeLowQuality overshoots at native
	// size must trigger the downscale branch: PredictDimension should
	// propose something well under the native longest side.
	codec := fakeCodec{format: JPEG, bytesPerQ: 1}
	img := newFakeImage(4000, 3000)
	target := 100

	policy := SearchPolicy{MaxAttemptsPerDim: 6, MaxTotalTrials: 40}
	a := AdaptiveSearch{Policy: policy, Codec: codec}
	state := &searchState{}

	predictor := LinearPredictor{Policy: policy}
	guess, err := predictor.Predict(ctxBG(), codec, img, 0, target, state)
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if guess.LoSize <= target {
		t.Fatalf("test setup invalid: LoSize %d should exceed target %d", guess.LoSize, target)
	}

	dim, seed, err := a.downscaleProbe(ctxBG(), img, 4000, guess, target, state)
	if err != nil {
		t.Fatalf("downscaleProbe: %v", err)
	}
	if dim <= 0 || dim >= 4000 {
		t.Errorf("predicted dim = %d, want smaller than native 4000", dim)
	}
	if seed < fallbackMinQuality || seed > 100 {
		t.Errorf("seed = %d, want in [%d, 100]", seed, fallbackMinQuality)
	}
}

func TestAdaptiveSearchRespectsTotalTrialBudget(t *testing.T) {
	codec := fakeCodec{format: JPEG, bytesPerQ: 1}
	img := newFakeImage(5000, 5000)

	policy := SearchPolicy{
		MaxAttemptsPerDim: 6,
		MaxTotalTrials:    5,
		EarlyStopRatio:    0.95,
		InitialQuality:    92,
		MinQuality:        40,
	}
	a := AdaptiveSearch{Policy: policy, Codec: codec}

	state, err := a.Run(ctxBG(), img, 1, policy.MinQuality, policy.InitialQuality)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if state.trials > policy.MaxTotalTrials {
		t.Errorf("trials = %d, exceeds MaxTotalTrials %d", state.trials, policy.MaxTotalTrials)
	}
}
