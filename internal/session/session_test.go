package session_test

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"keroro/internal/backend"
	"keroro/internal/jobs"
	"keroro/internal/registry"
	"keroro/internal/session"
	"keroro/internal/testsupport"
	"keroro/internal/workflow"
)

func newSession(t *testing.T, fake *testsupport.Backend, opts ...testsupport.ConfigOption) *session.Session {
	t.Helper()
	cfg := testsupport.NewConfig(t, append([]testsupport.ConfigOption{testsupport.WithBackend(fake)}, opts...)...)
	s, err := session.New(cfg, session.WithBackendOptions(backend.WithSleeper(func(time.Duration) {})))
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func submitSample(t *testing.T, s *session.Session) string {
	t.Helper()
	doc := workflow.NewDocument(2)
	_, err := doc.AddStep(workflow.KindQwenPrompt)
	require.NoError(t, err)
	id, err := s.Jobs.Submit(context.Background(), jobs.Inputs{Dir1: "/data/in", Dir2: "/data/ref"}, doc)
	require.NoError(t, err)
	return id
}

func TestNewRequiresConfig(t *testing.T) {
	_, err := session.New(nil)
	require.Error(t, err)
}

func TestWatchFollowsJobToCompletion(t *testing.T) {
	fake := testsupport.NewBackend(t)
	s := newSession(t, fake)
	id := submitSample(t, s)

	var mu sync.Mutex
	var seen []jobs.Status
	s.OnJobUpdate(func(job *jobs.Job) {
		mu.Lock()
		seen = append(seen, job.Status)
		mu.Unlock()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	last, err := s.Watch(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, jobs.StatusCompleted, last.Status)
	assert.Equal(t, 100, last.Progress())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []jobs.Status{jobs.StatusQueued, jobs.StatusRunning, jobs.StatusCompleted}, seen)
	assert.Empty(t, s.Poller().Active())
}

func TestWatchGivesUpAfterRepeatedFailures(t *testing.T) {
	fake := testsupport.NewBackend(t)
	s := newSession(t, fake)
	id := submitSample(t, s)
	fake.FailNext("/api/jobs/"+id, 1000)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	last, err := s.Watch(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, last)

	attempts := s.Config().Backend.RetryAttempts * s.Config().Polling.FailureThreshold
	assert.Len(t, fake.RequestsTo(http.MethodGet, "/api/jobs/"+id), attempts)
}

func TestWatchRequiresJobID(t *testing.T) {
	s := newSession(t, testsupport.NewBackend(t))
	_, err := s.Watch(context.Background(), "")
	assert.ErrorIs(t, err, jobs.ErrNoActiveJob)
}

func TestWatchStopsWithContext(t *testing.T) {
	fake := testsupport.NewBackend(t)
	fake.JobStatuses = []string{"running"}
	s := newSession(t, fake)
	id := submitSample(t, s)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	last, err := s.Watch(ctx, id)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	require.NotNil(t, last)
	assert.Equal(t, jobs.StatusRunning, last.Status)
}

func TestPushProvidersMergesSettings(t *testing.T) {
	fake := testsupport.NewBackend(t)
	s := newSession(t, fake,
		testsupport.WithProvider("qwen_api_key", "sk-local"),
		testsupport.WithProvider("kling_base_url", "  "),
	)

	saved, err := s.PushProviders(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "sk-local", saved.QwenAPIKey)

	pushed := fake.Config()
	assert.Equal(t, "sk-local", pushed["qwen_api_key"])
	assert.Equal(t, "", pushed["kling_base_url"])
	assert.Equal(t, float64(4), pushed["max_workers"])
}

func TestSessionSharesTransport(t *testing.T) {
	fake := testsupport.NewBackend(t)
	fake.SetModels(map[string]any{"model_id": "qwen-max", "provider": "qwen"})
	s := newSession(t, fake)

	models, err := s.Registry.ListModels(context.Background(), registry.Query{}, false)
	require.NoError(t, err)
	require.Len(t, models, 1)
	assert.Equal(t, fake.URL, s.Transport.BaseURL())
}
