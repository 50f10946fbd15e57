package cinch

import "testing"

func TestNewSearchPolicyCarriesOptions(t *testing.T) {
	o := DefaultOptions().withDefaults()
	o.MaxAttemptsPerDim = 7
	o.MaxTotalTrials = 30

	p := newSearchPolicy(o)
	if p.MaxAttemptsPerDim != 7 {
		t.Errorf("MaxAttemptsPerDim = %d, want 7", p.MaxAttemptsPerDim)
	}
	if p.MaxTotalTrials != 30 {
		t.Errorf("MaxTotalTrials = %d, want 30", p.MaxTotalTrials)
	}
	if p.MinQuality != o.MinQuality {
		t.Errorf("MinQuality = %d, want %d", p.MinQuality, o.MinQuality)
	}
}

func TestEarlyStopBand(t *testing.T) {
	p := SearchPolicy{EarlyStopRatio: 0.95}
	lo, hi := p.earlyStopBand(100000)
	if hi != 100000 {
		t.Errorf("hi = %d, want 100000", hi)
	}
	if lo != 95000 {
		t.Errorf("lo = %d, want 95000", lo)
	}
}

func TestEarlyStopBandNeverNegative(t *testing.T) {
	p := SearchPolicy{EarlyStopRatio: 0.95}
	lo, _ := p.earlyStopBand(0)
	if lo < 0 {
		t.Errorf("lo = %d, want >= 0", lo)
	}
}

func TestDimensionLaddersDescend(t *testing.T) {
	for _, ladder := range [][]int{primaryLadder, fallbackLadder, enforcementLadder} {
		for i := 1; i < len(ladder); i++ {
			if ladder[i-1] != 0 && ladder[i] >= ladder[i-1] {
				t.Fatalf("ladder not strictly descending at %d: %v", i, ladder)
			}
		}
	}
}
