package decompile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"hydra.dev/pkg/hydra/internal/adapter"
	m "hydra.dev/pkg/hydra/internal/model"
)

const (
	defaultCallTimeout   = 60 * time.Second
	defaultRetryInterval = 500 * time.Millisecond
	maxAttempts          = 2
)

// GuardOptions configures a Guard.
type GuardOptions struct {
	CostPerCallUSD float64
	// Timeout bounds a single decompiler invocation.
	Timeout time.Duration
	// RatePerMinute caps invocations; zero or less means unlimited.
	RatePerMinute int
	// RetryInterval is the initial backoff before the single retry.
	RetryInterval time.Duration
}

// Outcome is the result of one guarded request.
type Outcome struct {
	Entry m.CacheEntry
	// Cached is true when no decompiler call was made.
	Cached bool
	// Invocations counts decompiler calls made for this request.
	Invocations int
	// CostUSD is the spend committed for this request.
	CostUSD float64
}

// Guard is the only path to the decompiler. It serves the cache first,
// collapses concurrent requests for the same bytecode into one call and
// charges every call to the ledger before issuing it.
type Guard interface {
	Decompile(ctx context.Context, bytecode []byte) (Outcome, error)
	// Calls counts decompiler invocations since construction.
	Calls() int64
	Ledger() *Ledger
}

type guard struct {
	decompiler adapter.Decompiler
	cache      *Cache
	ledger     *Ledger
	limiter    *rate.Limiter
	metrics    *Metrics
	opts       GuardOptions

	inflight singleflight.Group
	calls    atomic.Int64
}

// NewGuard wires a decompiler behind the cache and ledger.
func NewGuard(decompiler adapter.Decompiler, cache *Cache, ledger *Ledger, metrics *Metrics, opts GuardOptions) Guard {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultCallTimeout
	}

	if opts.RetryInterval <= 0 {
		opts.RetryInterval = defaultRetryInterval
	}

	if metrics == nil {
		metrics = NewMetrics(nil)
	}

	limit := rate.Inf
	if opts.RatePerMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(opts.RatePerMinute))
	}

	return &guard{
		decompiler: decompiler,
		cache:      cache,
		ledger:     ledger,
		limiter:    rate.NewLimiter(limit, 1),
		metrics:    metrics,
		opts:       opts,
	}
}

func (g *guard) Calls() int64 {
	return g.calls.Load()
}

func (g *guard) Ledger() *Ledger {
	return g.ledger
}

// Decompile returns the cached decompilation of bytecode or fetches it. On
// failure the returned Outcome still reports the calls that were made.
// Failures wrap ErrDecompileBudgetExhausted, ErrDecompileTimeout or
// adapter.ErrDecompileUnavailable.
func (g *guard) Decompile(ctx context.Context, bytecode []byte) (Outcome, error) {
	fingerprint := Fingerprint(bytecode)

	if entry, ok := g.cache.Get(fingerprint); ok {
		return Outcome{Entry: entry, Cached: true}, nil
	}

	leader := false

	value, err, _ := g.inflight.Do(fingerprint, func() (any, error) {
		leader = true

		// A request that finished between the lookup above and this call
		// already filled the cache. The miss was counted once already.
		if entry, ok := g.cache.peek(fingerprint); ok {
			return Outcome{Entry: entry, Cached: true}, nil
		}

		return g.fetch(ctx, fingerprint, bytecode)
	})

	outcome, _ := value.(Outcome)
	if !leader {
		// Only the caller that ran fetch paid for it.
		outcome = Outcome{Entry: outcome.Entry, Cached: err == nil}
	}

	return outcome, err
}

func (g *guard) fetch(ctx context.Context, fingerprint string, bytecode []byte) (Outcome, error) {
	outcome := Outcome{}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = g.opts.RetryInterval

	decompilation, err := backoff.Retry(ctx, func() (m.Decompilation, error) {
		decompilation, err := g.invoke(ctx, bytecode, &outcome)
		if err != nil {
			if errors.Is(err, ErrDecompileBudgetExhausted) || errors.Is(err, adapter.ErrDecompileUnavailable) {
				return m.Decompilation{}, backoff.Permanent(err)
			}

			slog.Warn("Decompiler call failed", "fingerprint", fingerprint, "attempt", outcome.Invocations, "error", err)

			return m.Decompilation{}, err
		}

		return decompilation, nil
	}, backoff.WithBackOff(policy), backoff.WithMaxTries(maxAttempts))
	if err != nil {
		return outcome, err
	}

	entry, err := g.cache.Put(fingerprint, decompilation)
	if err != nil {
		slog.Warn("Decompilation not cached", "fingerprint", fingerprint, "error", err)

		entry = m.CacheEntry{
			Fingerprint:   fingerprint,
			Decompilation: decompilation,
			Confidence:    decompilation.Confidence,
			CreatedAt:     g.cache.clock.Now(),
		}
	}

	outcome.Entry = entry

	return outcome, nil
}

// invoke performs one budgeted, rate-limited, time-bounded call. The
// reservation is committed only when the decompiler answered.
func (g *guard) invoke(ctx context.Context, bytecode []byte, outcome *Outcome) (m.Decompilation, error) {
	reservation, err := g.ledger.Reserve(g.opts.CostPerCallUSD)
	if err != nil {
		return m.Decompilation{}, err
	}

	if err := g.limiter.Wait(ctx); err != nil {
		reservation.Release()
		return m.Decompilation{}, fmt.Errorf("wait for rate limit: %w", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, g.opts.Timeout)
	defer cancel()

	g.calls.Add(1)
	outcome.Invocations++

	decompilation, err := g.decompiler.Decompile(callCtx, bytecode)

	switch {
	case err == nil:
		reservation.Commit()
		g.metrics.Calls.WithLabelValues("success").Inc()

		outcome.CostUSD += g.opts.CostPerCallUSD

		return decompilation, nil
	case errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil:
		reservation.Release()
		g.metrics.Calls.WithLabelValues("timeout").Inc()

		return m.Decompilation{}, fmt.Errorf("%w after %s", ErrDecompileTimeout, g.opts.Timeout)
	case errors.Is(err, adapter.ErrDecompileUnavailable):
		reservation.Release()
		g.metrics.Calls.WithLabelValues("unavailable").Inc()

		return m.Decompilation{}, err
	default:
		reservation.Release()
		g.metrics.Calls.WithLabelValues("error").Inc()

		return m.Decompilation{}, fmt.Errorf("decompile: %w", err)
	}
}
