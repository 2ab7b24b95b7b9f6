package decompile

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

const ledgerDay = 24 * time.Hour

// Alert is emitted once per ledger day when committed spend reaches the
// alert threshold.
type Alert struct {
	Day          time.Time
	SpentUSD     float64
	ThresholdUSD float64
}

// LedgerOptions configures a Ledger.
type LedgerOptions struct {
	DailyBudgetUSD    float64
	AlertThresholdUSD float64
	Clock             Clock
	Metrics           *Metrics
	// OnAlert is called outside the ledger lock.
	OnAlert func(Alert)
}

// LedgerSnapshot is a point-in-time copy of the ledger state.
type LedgerSnapshot struct {
	Day               time.Time
	SpentUSD          float64
	ReservedUSD       float64
	DailyBudgetUSD    float64
	AlertThresholdUSD float64
}

// Ledger tracks decompiler spend for the current day. Every call reserves its
// estimated cost before it is issued; the check and the reservation happen
// under one lock, so concurrent callers can never jointly pass the budget.
type Ledger struct {
	mu sync.Mutex

	opts     LedgerOptions
	day      time.Time
	spent    float64
	reserved float64
	alerted  bool
}

// NewLedger returns a ledger with nothing spent.
func NewLedger(opts LedgerOptions) *Ledger {
	if opts.Clock == nil {
		opts.Clock = SystemClock{}
	}

	if opts.Metrics == nil {
		opts.Metrics = NewMetrics(nil)
	}

	return &Ledger{
		opts: opts,
		day:  opts.Clock.Now().Truncate(ledgerDay),
	}
}

// Reservation is spend held against the budget while a call is in flight.
// Exactly one of Commit or Release takes effect; later calls are no-ops.
type Reservation struct {
	ledger *Ledger
	cost   float64
	done   bool
}

// Reserve holds cost against today's budget, or fails with
// ErrDecompileBudgetExhausted when spent, in-flight and requested cost
// together would exceed it.
func (l *Ledger) Reserve(cost float64) (*Reservation, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.rollover()

	if l.spent+l.reserved+cost > l.opts.DailyBudgetUSD {
		l.opts.Metrics.BudgetRefusals.Inc()
		slog.Warn("Decompilation refused by budget",
			"spentUSD", l.spent,
			"reservedUSD", l.reserved,
			"costUSD", cost,
			"dailyBudgetUSD", l.opts.DailyBudgetUSD,
		)

		return nil, fmt.Errorf("%w: %.2f spent, %.2f in flight, %.2f budget",
			ErrDecompileBudgetExhausted, l.spent, l.reserved, l.opts.DailyBudgetUSD)
	}

	l.reserved += cost

	return &Reservation{ledger: l, cost: cost}, nil
}

// Commit turns the reservation into spend.
func (r *Reservation) Commit() {
	alert, fire := r.ledger.settle(r, true)
	if fire && r.ledger.opts.OnAlert != nil {
		r.ledger.opts.OnAlert(alert)
	}
}

// Release returns the reservation to the budget without spending it.
func (r *Reservation) Release() {
	r.ledger.settle(r, false)
}

func (l *Ledger) settle(r *Reservation, commit bool) (Alert, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if r.done {
		return Alert{}, false
	}

	r.done = true
	l.reserved -= r.cost

	if l.reserved < 0 {
		l.reserved = 0
	}

	l.rollover()

	if !commit {
		return Alert{}, false
	}

	l.spent += r.cost
	l.opts.Metrics.SpentUSD.Set(l.spent)

	if l.alerted || l.opts.AlertThresholdUSD <= 0 || l.spent < l.opts.AlertThresholdUSD {
		return Alert{}, false
	}

	l.alerted = true
	l.opts.Metrics.Alerts.Inc()

	alert := Alert{Day: l.day, SpentUSD: l.spent, ThresholdUSD: l.opts.AlertThresholdUSD}
	slog.Warn("Decompilation spend crossed alert threshold",
		"spentUSD", alert.SpentUSD,
		"alertThresholdUSD", alert.ThresholdUSD,
		"dailyBudgetUSD", l.opts.DailyBudgetUSD,
	)

	return alert, true
}

// rollover starts a new ledger day when the clock has crossed a 24-hour
// boundary. In-flight reservations carry over. Callers hold l.mu.
func (l *Ledger) rollover() {
	today := l.opts.Clock.Now().Truncate(ledgerDay)
	if !today.After(l.day) {
		return
	}

	slog.Info("Decompilation ledger reset", "previousDay", l.day, "spentUSD", l.spent)

	l.day = today
	l.spent = 0
	l.alerted = false
	l.opts.Metrics.SpentUSD.Set(0)
}

// Snapshot returns the current state.
func (l *Ledger) Snapshot() LedgerSnapshot {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.rollover()

	return LedgerSnapshot{
		Day:               l.day,
		SpentUSD:          l.spent,
		ReservedUSD:       l.reserved,
		DailyBudgetUSD:    l.opts.DailyBudgetUSD,
		AlertThresholdUSD: l.opts.AlertThresholdUSD,
	}
}
