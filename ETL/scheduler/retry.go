package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/LilVoxy/northwind_etl/ETL/utils"
)

// Outcome is the kind of result of one pipeline attempt
type Outcome int

const (
	// Success ends the retry loop
	Success Outcome = iota
	// Retryable failures are attempted again until the budget is spent
	Retryable
	// Fatal failures end the retry loop at once
	Fatal
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case Retryable:
		return "retryable"
	case Fatal:
		return "fatal"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Result is what one attempt of a job returns
type Result struct {
	Outcome Outcome
	Err     error
}

// Job is one attempt of the pipeline
type Job func(ctx context.Context) Result

// FatalError marks an error that retrying cannot fix
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string { return e.Err.Error() }

func (e *FatalError) Unwrap() error { return e.Err }

// AsFatal wraps err so that Classify reports it as Fatal
func AsFatal(err error) error {
	if err == nil {
		return nil
	}
	return &FatalError{Err: err}
}

// Classify turns an error into a Result. Cancellation and FatalError are fatal.
func Classify(err error) Result {
	if err == nil {
		return Result{Outcome: Success}
	}

	var fatal *FatalError
	if errors.As(err, &fatal) || errors.Is(err, context.Canceled) {
		return Result{Outcome: Fatal, Err: err}
	}
	return Result{Outcome: Retryable, Err: err}
}

// JobFunc adapts a plain function to a Job
func JobFunc(fn func(ctx context.Context) error) Job {
	return func(ctx context.Context) Result {
		return Classify(fn(ctx))
	}
}

// ErrRetriesExhausted is returned when every attempt failed
var ErrRetriesExhausted = errors.New("retries exhausted")

// SleepFunc waits for d or until ctx is done
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep is the real SleepFunc
func Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// RetryPolicy runs a job up to MaxAttempts times with a fixed Delay between attempts
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
	Sleep       SleepFunc
}

// Run executes job until it succeeds, fails fatally or the attempts run out.
// It returns the number of attempts made.
func (p RetryPolicy) Run(ctx context.Context, logger *utils.ETLLogger, job Job) (int, error) {
	maxAttempts := p.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = Sleep
	}

	var last Result
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		last = job(ctx)

		switch last.Outcome {
		case Success:
			if attempt > 1 {
				logger.Info("ETL succeeded on attempt %d", attempt)
			}
			return attempt, nil
		case Fatal:
			logger.Error("Attempt %d failed with a non-retryable error: %v", attempt, last.Err)
			return attempt, last.Err
		}

		if attempt == maxAttempts {
			break
		}

		logger.Warn("Attempt %d failed. Retrying in %v: %v", attempt, p.Delay, last.Err)
		if err := sleep(ctx, p.Delay); err != nil {
			return attempt, fmt.Errorf("retry interrupted: %w", errors.Join(err, last.Err))
		}
	}

	logger.Error("All %d attempts failed. Last error: %v", maxAttempts, last.Err)
	return maxAttempts, fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, maxAttempts, last.Err)
}
