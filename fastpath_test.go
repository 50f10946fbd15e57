package cinch

import "testing"

func TestFastPathEncoderUnavailableByDefault(t *testing.T) {
	f := FastPathEncoder{} // no Platform installed
	state := &searchState{}
	err := f.Search(ctxBG(), "photo.jpg", JPEG, false, 10000, 1, 100, state)
	if err != ErrEncoderUnavailable {
		t.Errorf("err = %v, want ErrEncoderUnavailable", err)
	}
	if state.trials != 0 {
		t.Errorf("trials = %d, want 0 when no platform encoder is installed", state.trials)
	}
}

type fakePlatformEncoder struct {
	bytesPerQ int
}

func (f fakePlatformEncoder) EncodeFile(path string, quality int, format Format, keepEXIF bool) ([]byte, error) {
	size := quality * f.bytesPerQ
	if size < 1 {
		size = 1
	}
	return make([]byte, size), nil
}

func TestFastPathEncoderSearchesToTarget(t *testing.T) {
	f := FastPathEncoder{Platform: fakePlatformEncoder{bytesPerQ: 100}}
	state := &searchState{}
	target := 5000

	if err := f.Search(ctxBG(), "photo.jpg", JPEG, false, target, 1, 100, state); err != nil {
		t.Fatalf("Search: %v", err)
	}
	if state.bestUnder == nil {
		t.Fatal("expected a bestUnder candidate")
	}
	if state.bestUnder.Size > target {
		t.Errorf("bestUnder.Size = %d, exceeds target %d", state.bestUnder.Size, target)
	}
	if state.trials > fastPathMaxAttempts {
		t.Errorf("trials = %d, exceeds fastPathMaxAttempts %d", state.trials, fastPathMaxAttempts)
	}
}
