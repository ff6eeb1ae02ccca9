package importjob

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/parcelio/feas-client/pkg/client"
)

// Prometheus metrics for import poll sessions.
var (
	pollAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "feas_import_poll_attempts_total",
		Help: "Total import status poll attempts by result",
	}, []string{"result"})

	pollSessionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "feas_import_poll_sessions_total",
		Help: "Total import poll sessions by outcome",
	}, []string{"outcome"})

	pollSessionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "feas_import_poll_session_seconds",
		Help:    "Import poll session duration in seconds",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300},
	})
)

// Outcome is the final state of one poll session.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeFailed    Outcome = "failed"
	OutcomeTimedOut  Outcome = "timed_out"
	OutcomeCancelled Outcome = "cancelled"
)

// Update is one forwarded observation within a poll session. Updates are
// delivered in non-decreasing sequence order and never after
// cancellation. Status is nil only for the synthesized timeout notice.
type Update struct {
	Seq     int
	Status  *JobStatus
	Outcome Outcome
}

// UpdateFunc receives poll session updates in receipt order.
type UpdateFunc func(Update)

// CancelFunc stops a poll session. Idempotent; after the first call no
// further updates are delivered, and a poll round trip already in flight
// finishes but its result is discarded.
type CancelFunc func()

// Recorder persists the last forwarded status of an import job. The
// poller only records statuses it actually delivered, so a response that
// arrives after cancellation never reaches the recorder either.
type Recorder interface {
	Record(ctx context.Context, status *JobStatus) error
}

// Default session parameters, applied when StartOptions leaves them zero.
const (
	DefaultInterval = 2 * time.Second
	DefaultTimeout  = 2 * time.Minute
)

// StartOptions configures one poll session.
type StartOptions struct {
	// ImportID identifies the server-side import job.
	ImportID string

	// OnUpdate receives every forwarded status plus the final synthesized
	// timeout notice, in order.
	OnUpdate UpdateFunc

	// Interval is the wait between poll attempts (default 2s).
	Interval time.Duration

	// Timeout bounds the whole session measured from start (default 2m).
	Timeout time.Duration
}

// Poller runs import status poll sessions.
type Poller struct {
	fetcher  StatusFetcher
	recorder Recorder
	logger   zerolog.Logger
}

// Option configures a Poller.
type Option func(*Poller)

// WithRecorder makes the poller persist every forwarded status.
func WithRecorder(r Recorder) Option {
	return func(p *Poller) {
		p.recorder = r
	}
}

// WithLogger overrides the component logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(p *Poller) {
		p.logger = logger
	}
}

// NewPoller creates a poller on top of a status fetcher.
func NewPoller(fetcher StatusFetcher, opts ...Option) *Poller {
	p := &Poller{
		fetcher: fetcher,
		logger:  log.With().Str("component", "import-poller").Logger(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// session holds the state of one poll invocation. It is owned by the
// polling goroutine; the mutex only guards the cancellation flag and the
// delivery bookkeeping shared with the cancel function.
type session struct {
	importID  string
	onUpdate  UpdateFunc
	interval  time.Duration
	timeout   time.Duration
	startedAt time.Time

	mu        sync.Mutex
	cancelled bool
	latestSeq int
	lastRank  int
}

// Start begins polling the import job, invoking opts.OnUpdate with every
// observed status in receipt order. The first status check is issued
// immediately. The session ends when a terminal state is observed, the
// timeout elapses (a timeout notice is synthesized), or the returned
// cancel function is called.
func (p *Poller) Start(ctx context.Context, opts StartOptions) (CancelFunc, error) {
	if opts.ImportID == "" {
		return nil, errors.New("import id is required")
	}
	if opts.OnUpdate == nil {
		return nil, errors.New("update callback is required")
	}

	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	s := &session{
		importID:  opts.ImportID,
		onUpdate:  opts.OnUpdate,
		interval:  interval,
		timeout:   timeout,
		startedAt: time.Now(),
		lastRank:  -1,
	}

	sessionCtx, stop := context.WithCancel(ctx)
	go p.run(sessionCtx, s)

	cancel := func() {
		if s.markCancelled() {
			p.logger.Debug().Str("import_id", s.importID).Msg("Poll session cancelled")
			pollSessionsTotal.WithLabelValues(string(OutcomeCancelled)).Inc()
		}
		stop()
	}
	return cancel, nil
}

// run drives one session until a terminal trigger fires.
func (p *Poller) run(ctx context.Context, s *session) {
	deadline := s.startedAt.Add(s.timeout)

	defer func() {
		pollSessionDuration.Observe(time.Since(s.startedAt).Seconds())
	}()

	for {
		if ctx.Err() != nil {
			return
		}

		seq := s.nextSeq()
		attemptCtx, cancelAttempt := context.WithDeadline(ctx, deadline)
		status, err := p.fetcher.FetchStatus(attemptCtx, s.importID)
		cancelAttempt()

		switch {
		case err != nil && ctx.Err() != nil:
			// Session cancelled while the attempt was in flight.
			return

		case err != nil && client.IsCancelled(err):
			// Attempt hit the session deadline; fall through to the
			// timeout check below.
			pollAttemptsTotal.WithLabelValues("deadline").Inc()

		case err != nil:
			// Transient failure: the job may be fine even though we
			// currently cannot reach the server. No update this cycle.
			pollAttemptsTotal.WithLabelValues("error").Inc()
			p.logger.Warn().
				Err(err).
				Str("import_id", s.importID).
				Int("seq", seq).
				Msg("Status check failed, continuing session")

		default:
			pollAttemptsTotal.WithLabelValues("ok").Inc()
			if s.deliver(seq, status) {
				p.record(ctx, status)
				if status.State.Terminal() {
					outcome := OutcomeCompleted
					if status.State == StateFailed {
						outcome = OutcomeFailed
					}
					pollSessionsTotal.WithLabelValues(string(outcome)).Inc()
					p.logger.Info().
						Str("import_id", s.importID).
						Str("state", string(status.State)).
						Msg("Import job reached terminal state")
					return
				}
			}
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			s.deliverTimeout()
			pollSessionsTotal.WithLabelValues(string(OutcomeTimedOut)).Inc()
			p.logger.Warn().
				Str("import_id", s.importID).
				Dur("timeout", s.timeout).
				Msg("Poll session timed out")
			return
		}

		wait := s.interval
		if wait > remaining {
			wait = remaining
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}

// record persists a forwarded status when a recorder is configured.
func (p *Poller) record(ctx context.Context, status *JobStatus) {
	if p.recorder == nil {
		return
	}
	if err := p.recorder.Record(ctx, status); err != nil {
		p.logger.Warn().
			Err(err).
			Str("import_id", status.ImportID).
			Msg("Failed to record import status")
	}
}

// markCancelled flips the cancelled flag, reporting whether this call
// was the first. Subsequent calls are no-ops.
func (s *session) markCancelled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancelled {
		return false
	}
	s.cancelled = true
	return true
}

// nextSeq allocates the sequence number for the next poll attempt.
func (s *session) nextSeq() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latestSeq++
	return s.latestSeq
}

// deliver forwards an observed status unless the session was cancelled,
// a newer attempt has been scheduled, or the state would move backwards.
// Reports whether the update was forwarded.
func (s *session) deliver(seq int, status *JobStatus) bool {
	s.mu.Lock()
	if s.cancelled || seq < s.latestSeq {
		s.mu.Unlock()
		return false
	}
	if status.State.rank() < s.lastRank {
		// The platform reports states monotonically; a regressing
		// observation can only be a stale response and is dropped.
		s.mu.Unlock()
		return false
	}
	s.lastRank = status.State.rank()
	s.mu.Unlock()

	update := Update{Seq: seq, Status: status}
	switch status.State {
	case StateCompleted:
		update.Outcome = OutcomeCompleted
	case StateFailed:
		update.Outcome = OutcomeFailed
	}

	s.onUpdate(update)
	return true
}

// deliverTimeout synthesizes the final timed-out notice unless the
// session was cancelled first.
func (s *session) deliverTimeout() {
	s.mu.Lock()
	if s.cancelled {
		s.mu.Unlock()
		return
	}
	s.cancelled = true // terminal: nothing may be delivered after this
	seq := s.latestSeq
	s.mu.Unlock()

	s.onUpdate(Update{Seq: seq, Outcome: OutcomeTimedOut})
}
