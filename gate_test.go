package cinch

import (
	"context"
	"testing"
	"time"
)

func TestConcurrencyGateBoundsHolders(t *testing.T) {
	gate := NewConcurrencyGate(2)
	ctx := context.Background()

	if err := gate.Acquire(ctx); err != nil {
		t.Fatalf("Acquire 1: %v", err)
	}
	if err := gate.Acquire(ctx); err != nil {
		t.Fatalf("Acquire 2: %v", err)
	}

	acquired := make(chan struct{})
	go func() {
		_ = gate.Acquire(context.Background())
		close(acquired)
	}()

	select {
	case <-acquired:
		t.Fatal("third Acquire should have blocked while 2 slots are held")
	case <-time.After(50 * time.Millisecond):
	}

	gate.Release()

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("third Acquire should have proceeded after a Release")
	}
	gate.Release()
}

func TestConcurrencyGateAcquireRespectsContext(t *testing.T) {
	gate := NewConcurrencyGate(1)
	if err := gate.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := gate.Acquire(ctx); err == nil {
		t.Error("Acquire should fail on an already-canceled context")
	}
}

func TestConcurrencyGateMinimumOne(t *testing.T) {
	gate := NewConcurrencyGate(0)
	if cap(gate.sem) != 1 {
		t.Errorf("cap = %d, want 1 for n=0", cap(gate.sem))
	}
}

func TestDefaultConcurrencyGateIsSingleton(t *testing.T) {
	a := defaultConcurrencyGate()
	b := defaultConcurrencyGate()
	if a != b {
		t.Error("defaultConcurrencyGate should return the same instance across calls")
	}
}
