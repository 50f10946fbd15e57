package cinch

import (
	"context"
	"runtime"
	"sync"
)

// ConcurrencyGate is a counting semaphore bounding how many compressions
// run their encode/search loop at once, independent of how many goroutines
// call in. Grounded on the teacher's parallelDo worker-sizing: clamp to
// NumCPU-1, leaving a core free for the caller, but never less than 1 nor
// more than 3 — past 3, concurrent encodes mostly contend for the same
// memory bandwidth without shortening wall-clock time.
type ConcurrencyGate struct {
	sem chan struct{}
}

// NewConcurrencyGate returns a gate admitting at most n concurrent holders.
// n < 1 is treated as 1.
func NewConcurrencyGate(n int) *ConcurrencyGate {
	if n < 1 {
		n = 1
	}
	return &ConcurrencyGate{sem: make(chan struct{}, n)}
}

// Acquire blocks until a slot is free or ctx is done.
func (g *ConcurrencyGate) Acquire(ctx context.Context) error {
	select {
	case g.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release frees a slot. Must be called exactly once per successful Acquire.
func (g *ConcurrencyGate) Release() {
	<-g.sem
}

var (
	defaultGateOnce sync.Once
	defaultGate     *ConcurrencyGate
)

// defaultConcurrencyGate returns the package-level gate used when a
// CompressionOrchestrator has no Gate of its own.
func defaultConcurrencyGate() *ConcurrencyGate {
	defaultGateOnce.Do(func() {
		n := runtime.NumCPU() - 1
		if n < 1 {
			n = 1
		}
		if n > 3 {
			n = 3
		}
		defaultGate = NewConcurrencyGate(n)
	})
	return defaultGate
}
