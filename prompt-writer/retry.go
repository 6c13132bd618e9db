package main

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
)

// Retrier re-runs failed upstream calls up to maxRetries extra attempts
// with exponential backoff (baseDelay, 2x baseDelay, ...). Only errors
// classified timeout or transient are retried; everything else surfaces
// immediately.
type Retrier struct {
	maxRetries int
	baseDelay  time.Duration
}

func NewRetrier(maxRetries int, baseDelay time.Duration) *Retrier {
	return &Retrier{maxRetries: maxRetries, baseDelay: baseDelay}
}

// Do runs fn up to 1+maxRetries times and returns the last error unchanged
// in kind once the bound is exhausted.
func (r *Retrier) Do(ctx context.Context, op string, fn func() (string, error)) (string, error) {
	var lastErr error

	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		result, err := fn()
		if err == nil {
			return result, nil
		}
		lastErr = err

		var pe *PipelineError
		if !errors.As(err, &pe) || !pe.Retryable() {
			return "", err
		}
		if attempt == r.maxRetries {
			break
		}

		backoff := r.baseDelay << attempt
		logrus.WithFields(logrus.Fields{
			"op":      op,
			"attempt": attempt + 1,
			"backoff": backoff,
		}).Warnf("upstream call failed, retrying: %v", err)

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return "", &PipelineError{Kind: KindTimeout, Op: op, Err: ctx.Err()}
		}
	}

	logrus.WithField("op", op).Errorf("upstream call failed after %d attempts: %v", r.maxRetries+1, lastErr)
	return "", lastErr
}
