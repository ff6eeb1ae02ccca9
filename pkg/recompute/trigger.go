// Package recompute coalesces bursts of user edits into at most one
// in-flight feasibility computation.
//
// Every qualifying edit calls Trigger with a snapshot of the inputs; the
// trigger waits out a debounce delay, then runs the compute operation
// with the most recent snapshot. Each run is tagged with a generation
// counter, and a result is applied only while its generation is still
// current, so the UI never regresses to a stale result even when an
// older computation finishes after a newer one started.
package recompute

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/parcelio/feas-client/pkg/client"
)

// Prometheus metrics for debounced recomputation.
var (
	recomputeTriggersTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "feas_recompute_triggers_total",
		Help: "Total recompute trigger signals received",
	})

	recomputeRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "feas_recompute_runs_total",
		Help: "Total recompute runs by result",
	}, []string{"result"})
)

// DefaultDebounce is the delay applied when Config leaves it zero.
const DefaultDebounce = 400 * time.Millisecond

// ComputeFunc runs one feasibility computation over an input snapshot.
// The ctx is cancelled best-effort when a newer edit supersedes the run;
// correctness relies on the generation check, not on the cancellation
// interrupting the call in time.
type ComputeFunc[S, R any] func(ctx context.Context, snapshot S) (R, error)

// ApplyFunc receives the result of a computation that is still current.
type ApplyFunc[R any] func(R)

// Config configures a Trigger.
type Config struct {
	// Debounce is the quiet period required before a computation starts
	// (default 400ms).
	Debounce time.Duration

	// OnError receives non-cancellation computation errors. Optional;
	// errors are logged either way.
	OnError func(error)

	// Logger overrides the component logger.
	Logger *zerolog.Logger
}

// Trigger debounces recompute signals and discards superseded results.
type Trigger[S, R any] struct {
	compute  ComputeFunc[S, R]
	apply    ApplyFunc[R]
	debounce time.Duration
	onError  func(error)
	logger   zerolog.Logger

	mu         sync.Mutex
	generation uint64
	snapshot   S
	timer      *time.Timer
	inflight   context.CancelFunc
	closed     bool
}

// New creates a debounced recompute trigger.
func New[S, R any](compute ComputeFunc[S, R], apply ApplyFunc[R], cfg Config) *Trigger[S, R] {
	debounce := cfg.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	logger := log.With().Str("component", "recompute-trigger").Logger()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}

	return &Trigger[S, R]{
		compute:  compute,
		apply:    apply,
		debounce: debounce,
		onError:  cfg.OnError,
		logger:   logger,
	}
}

// Trigger records the latest input snapshot, advances the generation,
// and restarts the debounce delay. Any in-flight computation is
// cancelled best-effort; its result is discarded by the generation check
// regardless.
func (t *Trigger[S, R]) Trigger(snapshot S) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return
	}

	recomputeTriggersTotal.Inc()

	t.snapshot = snapshot
	t.generation++

	if t.inflight != nil {
		t.inflight()
		t.inflight = nil
	}

	if t.timer != nil {
		t.timer.Stop()
	}
	t.timer = time.AfterFunc(t.debounce, t.fire)
}

// Generation returns the current generation counter, mainly for tests
// and diagnostics.
func (t *Trigger[S, R]) Generation() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.generation
}

// Close stops the pending timer, cancels any in-flight computation, and
// suppresses every later apply. Idempotent.
func (t *Trigger[S, R]) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return
	}
	t.closed = true

	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	if t.inflight != nil {
		t.inflight()
		t.inflight = nil
	}
}

// fire runs once the debounce delay passes without a newer trigger. It
// snapshots the inputs and generation under the lock, then computes
// outside it.
func (t *Trigger[S, R]) fire() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	generation := t.generation
	snapshot := t.snapshot

	ctx, cancel := context.WithCancel(context.Background())
	t.inflight = cancel
	t.mu.Unlock()

	result, err := t.compute(ctx, snapshot)
	cancel()

	if err != nil {
		if client.IsCancelled(err) || ctx.Err() != nil {
			// Superseded by a newer edit; silence is correct here.
			recomputeRunsTotal.WithLabelValues("cancelled").Inc()
			return
		}
		recomputeRunsTotal.WithLabelValues("error").Inc()
		t.logger.Warn().Err(err).Uint64("generation", generation).Msg("Recompute failed")
		if t.onError != nil {
			t.onError(err)
		}
		return
	}

	t.mu.Lock()
	stale := t.closed || generation != t.generation
	t.mu.Unlock()

	if stale {
		recomputeRunsTotal.WithLabelValues("stale").Inc()
		t.logger.Debug().Uint64("generation", generation).Msg("Discarding stale recompute result")
		return
	}

	recomputeRunsTotal.WithLabelValues("applied").Inc()
	t.apply(result)
}
