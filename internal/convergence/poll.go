// Package convergence provides the single bounded-wait primitive used by
// the orchestrator and the reclamation engine.
//
// A resource "converges" when it reaches its expected terminal state after a
// transient intermediate one. All waiting in this codebase goes through Wait
// or WaitAll so that every long-running external call shares one timeout and
// cancellation contract.
package convergence

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Outcome is the terminal result of a wait.
type Outcome string

const (
	// Converged means the check reported done before the deadline.
	Converged Outcome = "converged"
	// TimedOut means the deadline passed while the check kept reporting
	// not-done. The target may still converge out-of-band; callers must
	// re-observe on the next run rather than assume failure.
	TimedOut Outcome = "timed-out"
	// Failed means the check returned a non-transient error.
	Failed Outcome = "hard-failed"
)

// Check reports whether the observed target has reached its expected state.
// Returning an error marked fatal (or any unclassified error wrapped with
// Fatal) aborts the wait; other errors are treated as transient observation
// noise and polled through.
type Check func(ctx context.Context) (done bool, err error)

// Result describes how a wait ended.
type Result struct {
	Name    string
	Outcome Outcome
	Elapsed time.Duration
	Err     error
}

// Config holds poll parameters.
type Config struct {
	Interval time.Duration
	Timeout  time.Duration
}

// Option is a functional option for poll configuration.
type Option func(*Config)

// WithInterval sets the poll interval.
func WithInterval(d time.Duration) Option {
	return func(c *Config) { c.Interval = d }
}

// WithTimeout sets the maximum wait duration.
func WithTimeout(d time.Duration) Option {
	return func(c *Config) { c.Timeout = d }
}

// Wait polls check until it reports done, returns a fatal error, or the
// timeout elapses. The first check runs immediately.
func Wait(ctx context.Context, name string, check Check, opts ...Option) Result {
	cfg := &Config{
		Interval: 10 * time.Second,
		Timeout:  5 * time.Minute,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	start := time.Now()
	deadline := start.Add(cfg.Timeout)

	for {
		done, err := check(ctx)
		if err != nil && IsFatal(err) {
			return Result{Name: name, Outcome: Failed, Elapsed: time.Since(start), Err: err}
		}
		if done && err == nil {
			return Result{Name: name, Outcome: Converged, Elapsed: time.Since(start)}
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return Result{
				Name:    name,
				Outcome: TimedOut,
				Elapsed: time.Since(start),
				Err:     fmt.Errorf("%s did not converge within %v", name, cfg.Timeout),
			}
		}

		interval := cfg.Interval
		if interval > remaining {
			interval = remaining
		}

		select {
		case <-ctx.Done():
			return Result{Name: name, Outcome: Failed, Elapsed: time.Since(start), Err: ctx.Err()}
		case <-time.After(interval):
		}
	}
}

// Target is one independent wait in a WaitAll call.
type Target struct {
	Name  string
	Check Check
}

// WaitAll polls all targets in parallel and returns once every one has
// reached a terminal outcome. Total elapsed time tracks the slowest target,
// not the sum. The second return is true only if every target converged.
func WaitAll(ctx context.Context, targets []Target, opts ...Option) ([]Result, bool) {
	if len(targets) == 0 {
		return nil, true
	}

	results := make([]Result, len(targets))
	resultChan := make(chan struct {
		i int
		r Result
	}, len(targets))

	for i, target := range targets {
		go func() {
			resultChan <- struct {
				i int
				r Result
			}{i, Wait(ctx, target.Name, target.Check, opts...)}
		}()
	}

	allConverged := true
	for range len(targets) {
		res := <-resultChan
		results[res.i] = res.r
		if res.r.Outcome != Converged {
			allConverged = false
		}
	}

	return results, allConverged
}

// FatalError marks a check error as non-transient.
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string {
	return e.Err.Error()
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

// Fatal marks an error so that Wait aborts instead of polling through it.
func Fatal(err error) error {
	if err == nil {
		return nil
	}
	return &FatalError{Err: err}
}

// IsFatal checks if an error aborts the wait.
func IsFatal(err error) bool {
	var fatalErr *FatalError
	return errors.As(err, &fatalErr)
}
