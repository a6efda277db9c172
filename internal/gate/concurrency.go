package gate

import (
	"context"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// DefaultConcurrency is the default number of in-flight connections.
const DefaultConcurrency = 64

// ConcurrencyGate is a bounded counting semaphore for in-flight connections.
// Slots in use never exceed the capacity.
type ConcurrencyGate struct {
	sem      *semaphore.Weighted
	capacity int64
	inUse    atomic.Int64
	peak     atomic.Int64
}

// NewConcurrencyGate creates a gate with n slots. Values below one are
// raised to one.
func NewConcurrencyGate(n int) *ConcurrencyGate {
	if n < 1 {
		n = 1
	}
	return &ConcurrencyGate{
		sem:      semaphore.NewWeighted(int64(n)),
		capacity: int64(n),
	}
}

// Acquire blocks until a slot is free and returns the function that gives it
// back. The release function is safe to call more than once; only the first
// call returns the slot. Callers should defer it right away.
func (g *ConcurrencyGate) Acquire(ctx context.Context) (release func(), err error) {
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}

	current := g.inUse.Add(1)
	for {
		peak := g.peak.Load()
		if current <= peak || g.peak.CompareAndSwap(peak, current) {
			break
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			g.inUse.Add(-1)
			g.sem.Release(1)
		})
	}, nil
}

// Capacity returns the number of slots.
func (g *ConcurrencyGate) Capacity() int {
	return int(g.capacity)
}

// InUse returns the number of slots currently held.
func (g *ConcurrencyGate) InUse() int {
	return int(g.inUse.Load())
}

// Peak returns the highest number of slots held at once since creation.
func (g *ConcurrencyGate) Peak() int {
	return int(g.peak.Load())
}
