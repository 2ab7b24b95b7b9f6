package decompile

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	m "hydra.dev/pkg/hydra/internal/model"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = c.now.Add(d)
}

// fakeDecompiler answers from a script of errors, then succeeds.
type fakeDecompiler struct {
	calls  atomic.Int32
	errs   []error
	block  bool
	result m.Decompilation
}

func (f *fakeDecompiler) Decompile(ctx context.Context, _ []byte) (m.Decompilation, error) {
	n := int(f.calls.Add(1))

	if f.block {
		<-ctx.Done()
		return m.Decompilation{}, ctx.Err()
	}

	if n <= len(f.errs) && f.errs[n-1] != nil {
		return m.Decompilation{}, f.errs[n-1]
	}

	return f.result, nil
}

var errTransient = errors.New("decompiler crashed")

func sampleDecompilation() m.Decompilation {
	return m.Decompilation{
		Confidence: 0.8,
		Functions: map[string]m.Body{
			"value": {Instructions: []m.Instruction{
				{Op: m.OpLoadField, Local: "self", Struct: m.StructRef{Name: "Coin"}, Field: "value", Borrow: m.BorrowImmutable},
			}},
		},
	}
}

func sampleEntry(fingerprint, sum string) m.CacheEntry {
	decompilation := sampleDecompilation()

	return m.CacheEntry{
		Fingerprint:   fingerprint,
		Decompilation: decompilation,
		Confidence:    decompilation.Confidence,
		Checksum:      sum,
	}
}
