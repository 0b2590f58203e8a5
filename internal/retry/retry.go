package retry

import (
	"context"
	"errors"
	"time"
)

// Outcome classifies an error for retry purposes.
type Outcome int

const (
	// Retry means the operation may succeed on another attempt after Delay.
	Retry Outcome = iota
	// Skip means the operation failed permanently but the run continues.
	Skip
	// Fatal means the whole run must abort.
	Fatal
)

// Policy describes a bounded retry loop: how many attempts, how long to
// wait between them, and how to classify each failure.
type Policy struct {
	MaxAttempts int
	Delay       time.Duration

	// Classify maps an error to an outcome. A nil Classify treats every
	// error as retryable until attempts are exhausted.
	Classify func(error) Outcome

	// Sleep defaults to time.Sleep; tests override it.
	Sleep func(time.Duration)
}

// ErrAttemptsExhausted wraps the last error once MaxAttempts retryable
// failures have occurred.
var ErrAttemptsExhausted = errors.New("retry attempts exhausted")

// Do runs op until it succeeds, a non-retryable outcome occurs, the
// attempt budget runs out, or ctx is cancelled.
func (p Policy) Do(ctx context.Context, op func() error) error {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := op()
		if err == nil {
			return nil
		}
		lastErr = err

		if p.Classify != nil {
			switch p.Classify(err) {
			case Skip, Fatal:
				return err
			}
		}

		if attempt < attempts && p.Delay > 0 {
			sleep(p.Delay)
		}
	}

	return errors.Join(ErrAttemptsExhausted, lastErr)
}
