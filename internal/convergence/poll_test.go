package convergence

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestWait_ConvergesAfterTransientState(t *testing.T) {
	var calls atomic.Int32

	res := Wait(context.Background(), "cluster", func(_ context.Context) (bool, error) {
		return calls.Add(1) >= 3, nil
	}, WithInterval(time.Millisecond), WithTimeout(time.Second))

	if res.Outcome != Converged {
		t.Fatalf("expected converged, got %s (%v)", res.Outcome, res.Err)
	}
	if calls.Load() != 3 {
		t.Errorf("expected 3 polls, got %d", calls.Load())
	}
}

func TestWait_TimesOut(t *testing.T) {
	res := Wait(context.Background(), "stack", func(_ context.Context) (bool, error) {
		return false, nil
	}, WithInterval(time.Millisecond), WithTimeout(20*time.Millisecond))

	if res.Outcome != TimedOut {
		t.Fatalf("expected timed-out, got %s", res.Outcome)
	}
	if res.Err == nil || res.Name != "stack" {
		t.Errorf("timeout result must carry name and error: %+v", res)
	}
}

func TestWait_TransientErrorsArePolledThrough(t *testing.T) {
	var calls atomic.Int32

	res := Wait(context.Background(), "bucket", func(_ context.Context) (bool, error) {
		if calls.Add(1) < 3 {
			return false, errors.New("throttled")
		}
		return true, nil
	}, WithInterval(time.Millisecond), WithTimeout(time.Second))

	if res.Outcome != Converged {
		t.Fatalf("expected transient errors to be retried, got %s (%v)", res.Outcome, res.Err)
	}
}

func TestWait_FatalErrorAborts(t *testing.T) {
	boom := errors.New("access denied")
	var calls atomic.Int32

	res := Wait(context.Background(), "role", func(_ context.Context) (bool, error) {
		calls.Add(1)
		return false, Fatal(boom)
	}, WithInterval(time.Millisecond), WithTimeout(time.Second))

	if res.Outcome != Failed {
		t.Fatalf("expected hard-failed, got %s", res.Outcome)
	}
	if !errors.Is(res.Err, boom) {
		t.Errorf("expected underlying error to be retained, got %v", res.Err)
	}
	if calls.Load() != 1 {
		t.Errorf("fatal error must abort immediately, got %d calls", calls.Load())
	}
}

func TestWait_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		time.Sleep(5 * time.Millisecond)
		cancel()
	}()

	res := Wait(ctx, "nodes", func(_ context.Context) (bool, error) {
		return false, nil
	}, WithInterval(50*time.Millisecond), WithTimeout(time.Minute))

	if res.Outcome != Failed || !errors.Is(res.Err, context.Canceled) {
		t.Fatalf("expected cancellation failure, got %+v", res)
	}
}

func TestWaitAll_ParallelNotSerial(t *testing.T) {
	const unit = 20 * time.Millisecond

	// Five targets converging after 1..5 units must complete in ~5 units,
	// not 15.
	targets := make([]Target, 5)
	start := time.Now()
	for i := range targets {
		deadline := start.Add(time.Duration(i+1) * unit)
		targets[i] = Target{
			Name: "target",
			Check: func(_ context.Context) (bool, error) {
				return time.Now().After(deadline), nil
			},
		}
	}

	results, ok := WaitAll(context.Background(), targets,
		WithInterval(time.Millisecond), WithTimeout(time.Second))

	elapsed := time.Since(start)
	if !ok {
		t.Fatalf("expected all targets to converge: %+v", results)
	}
	if elapsed >= 15*unit {
		t.Errorf("WaitAll appears serial: %v elapsed for 5 targets of max 5 units", elapsed)
	}
}

func TestWaitAll_ReportsPerTargetOutcomes(t *testing.T) {
	targets := []Target{
		{Name: "fast", Check: func(_ context.Context) (bool, error) { return true, nil }},
		{Name: "never", Check: func(_ context.Context) (bool, error) { return false, nil }},
	}

	results, ok := WaitAll(context.Background(), targets,
		WithInterval(time.Millisecond), WithTimeout(20*time.Millisecond))

	if ok {
		t.Fatal("expected overall failure when one target times out")
	}
	if results[0].Outcome != Converged || results[1].Outcome != TimedOut {
		t.Errorf("unexpected per-target outcomes: %+v", results)
	}
}

func TestWaitAll_Empty(t *testing.T) {
	results, ok := WaitAll(context.Background(), nil)
	if !ok || results != nil {
		t.Errorf("empty target set converges trivially, got %v %v", results, ok)
	}
}
