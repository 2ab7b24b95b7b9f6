package decompile

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hydra.dev/pkg/hydra/internal/adapter"
)

func newTestGuard(t *testing.T, decompiler adapter.Decompiler, budget float64) (Guard, *Metrics) {
	t.Helper()

	clock := newFakeClock()
	metrics := NewMetrics(nil)
	cache := NewCache(16, DefaultTTL, clock, metrics)
	ledger := NewLedger(LedgerOptions{DailyBudgetUSD: budget, Clock: clock, Metrics: metrics})

	return NewGuard(decompiler, cache, ledger, metrics, GuardOptions{
		CostPerCallUSD: 1,
		Timeout:        20 * time.Millisecond,
		RetryInterval:  time.Millisecond,
	}), metrics
}

func TestGuard_CachesByFingerprint(t *testing.T) {
	fake := &fakeDecompiler{result: sampleDecompilation()}
	guard, _ := newTestGuard(t, fake, 10)

	first, err := guard.Decompile(context.Background(), []byte("coin-bytecode"))
	require.NoError(t, err)
	assert.False(t, first.Cached)
	assert.Equal(t, 1, first.Invocations)
	assert.InDelta(t, 1, first.CostUSD, 1e-9)

	second, err := guard.Decompile(context.Background(), []byte("coin-bytecode"))
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, 0, second.Invocations)
	assert.Equal(t, first.Entry, second.Entry)

	assert.EqualValues(t, 1, fake.calls.Load())
	assert.EqualValues(t, 1, guard.Calls())
	assert.InDelta(t, 1, guard.Ledger().Snapshot().SpentUSD, 1e-9)
}

func TestGuard_CountsEachLookupOnce(t *testing.T) {
	fake := &fakeDecompiler{result: sampleDecompilation()}
	guard, metrics := newTestGuard(t, fake, 10)

	_, err := guard.Decompile(context.Background(), []byte("coin-bytecode"))
	require.NoError(t, err)

	assert.EqualValues(t, 1, fake.calls.Load())
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.CacheLookups.WithLabelValues("miss")), 1e-9)
	assert.InDelta(t, 0, testutil.ToFloat64(metrics.CacheLookups.WithLabelValues("hit")), 1e-9)

	_, err = guard.Decompile(context.Background(), []byte("coin-bytecode"))
	require.NoError(t, err)

	assert.InDelta(t, 1, testutil.ToFloat64(metrics.CacheLookups.WithLabelValues("miss")), 1e-9)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.CacheLookups.WithLabelValues("hit")), 1e-9)
}

func TestGuard_IdenticalBytecodeConcurrentlyCallsOnce(t *testing.T) {
	fake := &fakeDecompiler{result: sampleDecompilation()}
	guard, _ := newTestGuard(t, fake, 1)

	var wg sync.WaitGroup

	outcomes := make([]Outcome, 8)
	errs := make([]error, 8)

	for i := range outcomes {
		wg.Add(1)

		go func(i int) {
			defer wg.Done()

			outcomes[i], errs[i] = guard.Decompile(context.Background(), []byte("shared"))
		}(i)
	}

	wg.Wait()

	invocations := 0

	for i := range outcomes {
		require.NoError(t, errs[i])
		assert.InDelta(t, 0.8, outcomes[i].Entry.Confidence, 1e-9)
		invocations += outcomes[i].Invocations
	}

	assert.EqualValues(t, 1, fake.calls.Load())
	assert.Equal(t, 1, invocations)
}

func TestGuard_BudgetExhaustedMakesNoCall(t *testing.T) {
	fake := &fakeDecompiler{result: sampleDecompilation()}
	guard, metrics := newTestGuard(t, fake, 0.5)

	outcome, err := guard.Decompile(context.Background(), []byte("coin"))
	require.ErrorIs(t, err, ErrDecompileBudgetExhausted)
	assert.Equal(t, 0, outcome.Invocations)
	assert.EqualValues(t, 0, fake.calls.Load())
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.BudgetRefusals), 1e-9)
}

func TestGuard_TimeoutRetriesOnceThenFails(t *testing.T) {
	fake := &fakeDecompiler{block: true}
	guard, metrics := newTestGuard(t, fake, 10)

	outcome, err := guard.Decompile(context.Background(), []byte("slow"))
	require.ErrorIs(t, err, ErrDecompileTimeout)
	assert.Equal(t, 2, outcome.Invocations)
	assert.EqualValues(t, 2, fake.calls.Load())
	assert.InDelta(t, 2, testutil.ToFloat64(metrics.Calls.WithLabelValues("timeout")), 1e-9)

	snap := guard.Ledger().Snapshot()
	assert.InDelta(t, 0, snap.SpentUSD, 1e-9)
	assert.InDelta(t, 0, snap.ReservedUSD, 1e-9)
}

func TestGuard_TransientErrorRecoversOnRetry(t *testing.T) {
	fake := &fakeDecompiler{errs: []error{errTransient}, result: sampleDecompilation()}
	guard, _ := newTestGuard(t, fake, 10)

	outcome, err := guard.Decompile(context.Background(), []byte("flaky"))
	require.NoError(t, err)
	assert.Equal(t, 2, outcome.Invocations)
	assert.InDelta(t, 1, outcome.CostUSD, 1e-9)
	assert.InDelta(t, 1, guard.Ledger().Snapshot().SpentUSD, 1e-9)
}

func TestGuard_UnavailableIsNotRetried(t *testing.T) {
	guard, _ := newTestGuard(t, adapter.NewUnavailableDecompiler(), 10)

	outcome, err := guard.Decompile(context.Background(), []byte("coin"))
	require.ErrorIs(t, err, adapter.ErrDecompileUnavailable)
	assert.Equal(t, 1, outcome.Invocations)
	assert.InDelta(t, 0, guard.Ledger().Snapshot().SpentUSD, 1e-9)
}

func TestGuard_ConcurrentDistinctRequestsRespectBudget(t *testing.T) {
	fake := &fakeDecompiler{result: sampleDecompilation()}
	guard, _ := newTestGuard(t, fake, 5)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)

	for i := 0; i < 20; i++ {
		wg.Add(1)

		go func(i int) {
			defer wg.Done()

			_, err := guard.Decompile(context.Background(), []byte(fmt.Sprintf("module-%d", i)))
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}(i)
	}

	wg.Wait()

	assert.Equal(t, 5, succeeded)
	assert.EqualValues(t, 5, fake.calls.Load())
	assert.LessOrEqual(t, guard.Ledger().Snapshot().SpentUSD, 5.0)
}

func TestGuard_CancelledRunLeavesNoPartialSpend(t *testing.T) {
	fake := &fakeDecompiler{block: true}
	guard, _ := newTestGuard(t, fake, 10)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := guard.Decompile(ctx, []byte("coin"))
	require.Error(t, err)

	snap := guard.Ledger().Snapshot()
	assert.InDelta(t, 0, snap.SpentUSD, 1e-9)
	assert.InDelta(t, 0, snap.ReservedUSD, 1e-9)
}
