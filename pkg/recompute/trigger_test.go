package recompute

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/parcelio/feas-client/pkg/client"
)

// appliedCollector gathers applied results safely across goroutines.
type appliedCollector struct {
	mu      sync.Mutex
	results []string
}

func (c *appliedCollector) apply(r string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results = append(c.results, r)
}

func (c *appliedCollector) snapshot() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.results...)
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("Condition not met in time")
}

func TestTrigger_CoalescesBurst(t *testing.T) {
	var (
		mu        sync.Mutex
		computed  []int
		collector appliedCollector
	)

	compute := func(ctx context.Context, snapshot int) (string, error) {
		mu.Lock()
		computed = append(computed, snapshot)
		mu.Unlock()
		return "ok", nil
	}

	trigger := New(compute, collector.apply, Config{Debounce: 20 * time.Millisecond})
	defer trigger.Close()

	// A burst of edits inside the debounce window.
	for i := 1; i <= 5; i++ {
		trigger.Trigger(i)
		time.Sleep(2 * time.Millisecond)
	}

	waitFor(t, time.Second, func() bool {
		return len(collector.snapshot()) == 1
	})

	mu.Lock()
	defer mu.Unlock()
	if len(computed) != 1 {
		t.Fatalf("Computed %d times, want 1 (burst must coalesce)", len(computed))
	}
	if computed[0] != 5 {
		t.Errorf("Computed snapshot = %d, want 5 (latest)", computed[0])
	}
}

func TestTrigger_StaleResultDiscarded(t *testing.T) {
	var collector appliedCollector

	enteredSlow := make(chan struct{})
	releaseSlow := make(chan struct{})

	compute := func(ctx context.Context, snapshot int) (string, error) {
		if snapshot == 1 {
			close(enteredSlow)
			<-releaseSlow
			return "result-1", nil
		}
		return "result-2", nil
	}

	trigger := New(compute, collector.apply, Config{Debounce: 5 * time.Millisecond})
	defer trigger.Close()

	trigger.Trigger(1)
	<-enteredSlow

	// A newer edit supersedes generation 1 while it is still in flight.
	trigger.Trigger(2)

	waitFor(t, time.Second, func() bool {
		results := collector.snapshot()
		return len(results) == 1 && results[0] == "result-2"
	})

	// The older computation resolves after the newer one; its result
	// must be discarded.
	close(releaseSlow)
	time.Sleep(50 * time.Millisecond)

	results := collector.snapshot()
	if len(results) != 1 || results[0] != "result-2" {
		t.Errorf("Applied results = %v, want exactly [result-2]", results)
	}
}

func TestTrigger_InFlightCancelledBestEffort(t *testing.T) {
	var collector appliedCollector

	entered := make(chan struct{})
	cancelled := make(chan struct{})

	compute := func(ctx context.Context, snapshot int) (string, error) {
		if snapshot == 1 {
			close(entered)
			<-ctx.Done()
			close(cancelled)
			return "", &client.APIError{Kind: client.KindCancelled, Message: "request cancelled"}
		}
		return "result-2", nil
	}

	trigger := New(compute, collector.apply, Config{Debounce: 5 * time.Millisecond})
	defer trigger.Close()

	trigger.Trigger(1)
	<-entered
	trigger.Trigger(2)

	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Fatal("Superseded computation was not cancelled")
	}

	waitFor(t, time.Second, func() bool {
		results := collector.snapshot()
		return len(results) == 1 && results[0] == "result-2"
	})
}

func TestTrigger_ErrorDoesNotApply(t *testing.T) {
	var (
		collector appliedCollector
		mu        sync.Mutex
		gotErr    error
	)

	compute := func(ctx context.Context, snapshot int) (string, error) {
		return "", errors.New("scoring service exploded")
	}

	trigger := New(compute, collector.apply, Config{
		Debounce: 5 * time.Millisecond,
		OnError: func(err error) {
			mu.Lock()
			gotErr = err
			mu.Unlock()
		},
	})
	defer trigger.Close()

	trigger.Trigger(1)

	waitFor(t, time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return gotErr != nil
	})

	if results := collector.snapshot(); len(results) != 0 {
		t.Errorf("Applied results = %v, want none on error", results)
	}
}

func TestTrigger_CloseSuppressesPending(t *testing.T) {
	var (
		mu       sync.Mutex
		computes int
	)

	compute := func(ctx context.Context, snapshot int) (string, error) {
		mu.Lock()
		computes++
		mu.Unlock()
		return "ok", nil
	}

	trigger := New(compute, func(string) {}, Config{Debounce: 20 * time.Millisecond})

	trigger.Trigger(1)
	trigger.Close()
	trigger.Close() // idempotent

	time.Sleep(60 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if computes != 0 {
		t.Errorf("Computed %d times after Close, want 0", computes)
	}

	// Triggering after Close is a no-op.
	trigger.Trigger(2)
	if trigger.Generation() != 1 {
		t.Errorf("Generation = %d, want 1 (no advance after Close)", trigger.Generation())
	}
}

func TestTrigger_GenerationAdvances(t *testing.T) {
	trigger := New(
		func(ctx context.Context, snapshot int) (string, error) { return "", nil },
		func(string) {},
		Config{Debounce: time.Hour},
	)
	defer trigger.Close()

	for i := 0; i < 3; i++ {
		trigger.Trigger(i)
	}

	if got := trigger.Generation(); got != 3 {
		t.Errorf("Generation = %d, want 3", got)
	}
}
