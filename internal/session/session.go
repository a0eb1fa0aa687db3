package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"keroro/internal/backend"
	"keroro/internal/config"
	"keroro/internal/jobs"
	"keroro/internal/logging"
	"keroro/internal/registry"
)

// Session wires the clients for one configured backend.
type Session struct {
	cfg    *config.Config
	logger *slog.Logger

	Transport *backend.Client
	Jobs      *jobs.Client
	Registry  *registry.Client
	poller    *jobs.Poller

	mu       sync.Mutex
	onUpdate func(*jobs.Job)
}

type options struct {
	logger          *slog.Logger
	backendOptions  []backend.Option
	registryOptions []registry.Option
}

// Option customizes New.
type Option func(*options)

// WithLogger attaches a logger to every client.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithBackendOptions appends transport options, applied after the ones
// derived from configuration.
func WithBackendOptions(opts ...backend.Option) Option {
	return func(o *options) {
		o.backendOptions = append(o.backendOptions, opts...)
	}
}

// WithRegistryOptions appends registry client options.
func WithRegistryOptions(opts ...registry.Option) Option {
	return func(o *options) {
		o.registryOptions = append(o.registryOptions, opts...)
	}
}

// New builds a session from cfg.
func New(cfg *config.Config, opts ...Option) (*Session, error) {
	if cfg == nil {
		return nil, errors.New("session: config is required")
	}
	o := options{logger: logging.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}

	transportOpts := append([]backend.Option{backend.WithLogger(o.logger)}, o.backendOptions...)
	transport := backend.NewClient(backend.Config{
		BaseURL:               cfg.Backend.BaseURL,
		AttemptTimeoutSeconds: cfg.Backend.RequestTimeout,
		RetryAttempts:         cfg.Backend.RetryAttempts,
		RetryBaseDelayMS:      cfg.Backend.RetryBaseDelayMS,
	}, transportOpts...)

	registryOpts := append([]registry.Option{
		registry.WithLogger(o.logger),
		registry.WithModelTTL(cfg.ModelCacheTTL()),
		registry.WithCacheSize(cfg.ModelCacheBytes()),
	}, o.registryOptions...)

	s := &Session{
		cfg:       cfg,
		logger:    logging.NewComponentLogger(o.logger, "session"),
		Transport: transport,
		Jobs:      jobs.NewClient(transport, o.logger),
		Registry:  registry.NewClient(transport, registryOpts...),
	}
	s.poller = jobs.NewPoller(s.Jobs,
		jobs.WithInterval(cfg.PollInterval()),
		jobs.WithFailureThreshold(cfg.Polling.FailureThreshold),
		jobs.WithUpdateHandler(s.dispatch),
		jobs.WithPollerLogger(o.logger),
	)
	return s, nil
}

// Config returns the configuration the session was built from.
func (s *Session) Config() *config.Config {
	return s.cfg
}

// Poller returns the session's job poller.
func (s *Session) Poller() *jobs.Poller {
	return s.poller
}

// OnJobUpdate replaces the callback that receives poller snapshots. Passing
// nil removes it.
func (s *Session) OnJobUpdate(fn func(*jobs.Job)) {
	s.mu.Lock()
	s.onUpdate = fn
	s.mu.Unlock()
}

func (s *Session) dispatch(job *jobs.Job) {
	s.mu.Lock()
	fn := s.onUpdate
	s.mu.Unlock()
	if fn != nil {
		fn(job)
	}
}

// Watch polls id until the job reaches a terminal status, the poller gives
// up or ctx ends. It returns the last snapshot seen, which may be nil when
// no poll succeeded.
func (s *Session) Watch(ctx context.Context, id string) (*jobs.Job, error) {
	if id == "" {
		return nil, jobs.ErrNoActiveJob
	}
	s.poller.Start(ctx, id)
	done := s.poller.Done()
	select {
	case <-done:
	case <-ctx.Done():
		s.poller.Stop()
		return s.poller.Last(), ctx.Err()
	}
	last := s.poller.Last()
	if err := ctx.Err(); err != nil {
		return last, err
	}
	if last == nil || !last.Status.Terminal() {
		logging.WarnWithContext(s.logger, "job polling stopped before completion", "poll_abandoned",
			logging.String(logging.FieldJobID, id),
			logging.String(logging.FieldErrorHint, "run `keroro job status` to check the job later"),
		)
	}
	return last, nil
}

// PushProviders loads the backend configuration, overlays the configured
// provider settings and saves the result.
func (s *Session) PushProviders(ctx context.Context) (*registry.BackendConfig, error) {
	current, err := s.Registry.GetConfig(ctx)
	if err != nil {
		return nil, err
	}
	if err := current.Merge(s.cfg.ProviderSettings()); err != nil {
		return nil, err
	}
	return s.Registry.SaveConfig(ctx, current)
}

// Close stops any active polling.
func (s *Session) Close() {
	s.poller.Stop()
}
