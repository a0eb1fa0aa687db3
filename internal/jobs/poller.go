package jobs

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"

	"keroro/internal/logging"
	"keroro/internal/services"
)

const (
	defaultPollInterval     = 2 * time.Second
	defaultFailureThreshold = 3
)

var errNoSnapshot = errors.New("no job snapshot")

// StatusFetcher loads one job snapshot. A nil job with a nil error counts as
// a failed poll.
type StatusFetcher interface {
	Status(ctx context.Context, id string) (*Job, error)
}

// Poller follows a single job at a time.
type Poller struct {
	fetcher   StatusFetcher
	interval  time.Duration
	threshold uint32
	logger    *slog.Logger
	onUpdate  func(*Job)

	mu       sync.Mutex
	activeID string
	cancel   context.CancelFunc
	done     chan struct{}
	last     *Job
}

// PollerOption customizes a Poller.
type PollerOption func(*Poller)

// WithInterval overrides the delay between polls.
func WithInterval(interval time.Duration) PollerOption {
	return func(p *Poller) {
		if interval > 0 {
			p.interval = interval
		}
	}
}

// WithFailureThreshold overrides how many consecutive failed polls end a
// session.
func WithFailureThreshold(threshold int) PollerOption {
	return func(p *Poller) {
		if threshold > 0 {
			p.threshold = uint32(threshold)
		}
	}
}

// WithUpdateHandler registers a callback for every fetched snapshot. It runs
// on the polling goroutine.
func WithUpdateHandler(fn func(*Job)) PollerOption {
	return func(p *Poller) {
		p.onUpdate = fn
	}
}

// WithPollerLogger attaches a logger.
func WithPollerLogger(logger *slog.Logger) PollerOption {
	return func(p *Poller) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewPoller constructs an idle poller.
func NewPoller(fetcher StatusFetcher, opts ...PollerOption) *Poller {
	p := &Poller{
		fetcher:   fetcher,
		interval:  defaultPollInterval,
		threshold: defaultFailureThreshold,
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = logging.NewComponentLogger(p.logger, "poller")
	return p
}

// Start begins polling id, cancelling any session for a different job. It
// returns false when id is empty or already being polled.
func (p *Poller) Start(ctx context.Context, id string) bool {
	if id == "" {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.activeID == id && p.cancel != nil {
		return false
	}
	if p.cancel != nil {
		p.cancel()
	}
	sessionCtx, cancel := context.WithCancel(services.WithJobID(ctx, id))
	done := make(chan struct{})
	p.activeID = id
	p.cancel = cancel
	p.done = done
	p.last = nil
	go p.run(sessionCtx, id, done, p.newBreaker(id))
	return true
}

// Stop ends the current session, if any.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		p.cancel()
	}
	p.activeID = ""
	p.cancel = nil
}

// Active returns the id being polled, or "".
func (p *Poller) Active() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.activeID
}

// Last returns the most recent snapshot of the current or last session.
func (p *Poller) Last() *Job {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last
}

// Done is closed when the most recently started session ends.
func (p *Poller) Done() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done == nil {
		closed := make(chan struct{})
		close(closed)
		return closed
	}
	return p.done
}

func (p *Poller) newBreaker(id string) *gobreaker.CircuitBreaker[*Job] {
	threshold := p.threshold
	return gobreaker.NewCircuitBreaker[*Job](gobreaker.Settings{
		Name:        "job-poll-" + id,
		MaxRequests: 1,
		Timeout:     24 * time.Hour,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
	})
}

func (p *Poller) run(ctx context.Context, id string, done chan struct{}, breaker *gobreaker.CircuitBreaker[*Job]) {
	defer close(done)
	defer p.finish(done)
	logger := logging.WithContext(ctx, p.logger)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		if p.poll(ctx, id, done, breaker, logger) {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// poll fetches one snapshot and reports whether the session should end.
func (p *Poller) poll(ctx context.Context, id string, done chan struct{}, breaker *gobreaker.CircuitBreaker[*Job], logger *slog.Logger) bool {
	job, err := breaker.Execute(func() (*Job, error) {
		job, err := p.fetcher.Status(ctx, id)
		if err == nil && job == nil {
			err = errNoSnapshot
		}
		return job, err
	})
	if ctx.Err() != nil {
		return true
	}
	if err != nil {
		if breaker.State() == gobreaker.StateOpen {
			logger.Warn("job polling stopped",
				logging.Args(logging.DecisionAttrs("poll_stop", "stopped", "consecutive failures reached threshold")...)...,
			)
			return true
		}
		logger.Debug("job poll failed", logging.Error(err))
		return false
	}
	p.record(done, job)
	if p.onUpdate != nil {
		p.onUpdate(job)
	}
	if job.Status.Terminal() {
		logger.Info("job finished",
			logging.String("status", string(job.Status)),
			logging.Int("done", job.Done),
			logging.Int("total", job.Total),
			logging.String(logging.FieldEventType, "job_finished"),
		)
		return true
	}
	return false
}

func (p *Poller) record(done chan struct{}, job *Job) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done == done {
		p.last = job
	}
}

func (p *Poller) finish(done chan struct{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done != done {
		return
	}
	if p.cancel != nil {
		p.cancel()
	}
	p.activeID = ""
	p.cancel = nil
}
