package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type scriptedFetcher struct {
	mu      sync.Mutex
	calls   map[string]int
	respond func(id string, call int) (*Job, error)
}

func (f *scriptedFetcher) Status(_ context.Context, id string) (*Job, error) {
	f.mu.Lock()
	if f.calls == nil {
		f.calls = map[string]int{}
	}
	f.calls[id]++
	call := f.calls[id]
	f.mu.Unlock()
	return f.respond(id, call)
}

func (f *scriptedFetcher) count(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[id]
}

func waitDone(t *testing.T, p *Poller) {
	t.Helper()
	select {
	case <-p.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("poller did not stop")
	}
}

func TestPollerStopsOnTerminalStatus(t *testing.T) {
	fetcher := &scriptedFetcher{respond: func(id string, call int) (*Job, error) {
		if call < 2 {
			return &Job{JobID: id, Status: StatusRunning}, nil
		}
		return &Job{JobID: id, Status: StatusCompleted, Done: 4, Total: 4}, nil
	}}
	var updates []Status
	var mu sync.Mutex
	p := NewPoller(fetcher, WithInterval(5*time.Millisecond), WithUpdateHandler(func(job *Job) {
		mu.Lock()
		updates = append(updates, job.Status)
		mu.Unlock()
	}))

	if !p.Start(context.Background(), "abcd1234") {
		t.Fatal("expected Start to begin a session")
	}
	waitDone(t, p)

	if fetcher.count("abcd1234") != 2 {
		t.Fatalf("expected 2 polls, got %d", fetcher.count("abcd1234"))
	}
	if p.Active() != "" {
		t.Fatalf("expected no active job, got %q", p.Active())
	}
	if last := p.Last(); last == nil || last.Status != StatusCompleted {
		t.Fatalf("unexpected last snapshot %+v", last)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(updates) != 2 || updates[1] != StatusCompleted {
		t.Fatalf("unexpected updates %v", updates)
	}
}

func TestPollerStartIsIdempotentForActiveJob(t *testing.T) {
	polled := make(chan struct{}, 4)
	fetcher := &scriptedFetcher{respond: func(id string, call int) (*Job, error) {
		polled <- struct{}{}
		return &Job{JobID: id, Status: StatusRunning}, nil
	}}
	p := NewPoller(fetcher, WithInterval(time.Hour))
	defer p.Stop()

	if !p.Start(context.Background(), "abcd1234") {
		t.Fatal("expected first Start to succeed")
	}
	if p.Start(context.Background(), "abcd1234") {
		t.Fatal("expected second Start for the same job to be a no-op")
	}
	select {
	case <-polled:
	case <-time.After(5 * time.Second):
		t.Fatal("expected an immediate poll")
	}
	time.Sleep(20 * time.Millisecond)
	if got := fetcher.count("abcd1234"); got != 1 {
		t.Fatalf("expected exactly one poll, got %d", got)
	}
}

func TestPollerStopsAfterConsecutiveFailures(t *testing.T) {
	fetcher := &scriptedFetcher{respond: func(string, int) (*Job, error) {
		return nil, errors.New("offline")
	}}
	p := NewPoller(fetcher, WithInterval(time.Millisecond))
	p.Start(context.Background(), "abcd1234")
	waitDone(t, p)

	if got := fetcher.count("abcd1234"); got != defaultFailureThreshold {
		t.Fatalf("expected %d polls before giving up, got %d", defaultFailureThreshold, got)
	}
	if p.Active() != "" {
		t.Fatalf("expected poller to be idle, got %q", p.Active())
	}
}

func TestPollerFailureCountResetsOnSuccess(t *testing.T) {
	fetcher := &scriptedFetcher{respond: func(id string, call int) (*Job, error) {
		switch call {
		case 1, 2, 4, 5:
			return nil, nil
		case 3:
			return &Job{JobID: id, Status: StatusRunning}, nil
		default:
			return &Job{JobID: id, Status: StatusCancelled}, nil
		}
	}}
	p := NewPoller(fetcher, WithInterval(time.Millisecond))
	p.Start(context.Background(), "abcd1234")
	waitDone(t, p)

	if got := fetcher.count("abcd1234"); got != 6 {
		t.Fatalf("expected polling to survive interleaved failures, got %d polls", got)
	}
	if last := p.Last(); last == nil || last.Status != StatusCancelled {
		t.Fatalf("unexpected last snapshot %+v", last)
	}
}

func TestPollerSwitchesJobs(t *testing.T) {
	fetcher := &scriptedFetcher{respond: func(id string, _ int) (*Job, error) {
		return &Job{JobID: id, Status: StatusRunning}, nil
	}}
	p := NewPoller(fetcher, WithInterval(time.Hour))
	defer p.Stop()

	p.Start(context.Background(), "aaaaaaaa")
	first := p.Done()
	if !p.Start(context.Background(), "bbbbbbbb") {
		t.Fatal("expected a new job to start a new session")
	}
	select {
	case <-first:
	case <-time.After(5 * time.Second):
		t.Fatal("expected previous session to be cancelled")
	}
	if p.Active() != "bbbbbbbb" {
		t.Fatalf("unexpected active job %q", p.Active())
	}
}

func TestPollerStop(t *testing.T) {
	fetcher := &scriptedFetcher{respond: func(id string, _ int) (*Job, error) {
		return &Job{JobID: id, Status: StatusRunning}, nil
	}}
	p := NewPoller(fetcher, WithInterval(time.Hour))
	p.Start(context.Background(), "abcd1234")
	p.Stop()
	waitDone(t, p)
	if p.Active() != "" {
		t.Fatalf("expected idle poller, got %q", p.Active())
	}
}
