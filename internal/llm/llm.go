// Package llm defines the text-generation capability and the provider-neutral
// generation options shared by its adapters.
package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/Dipang-bhadrecha/promptlearn-ai-service/internal/model"
)

// Generator produces assistant text for an ordered list of messages.
type Generator interface {
	Generate(ctx context.Context, messages []model.Message, opts Options) (string, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, messages []model.Message, opts Options) (string, error)

func (f GeneratorFunc) Generate(ctx context.Context, messages []model.Message, opts Options) (string, error) {
	return f(ctx, messages, opts)
}

// StatusError is a non-2xx provider response.
type StatusError struct {
	Provider   string
	Model      string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Model != "" {
		return fmt.Sprintf("%s %s returned %d: %s", e.Provider, e.Model, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("%s returned %d: %s", e.Provider, e.StatusCode, e.Body)
}

// Busy reports whether a provider status means "overloaded, try again later".
func Busy(code int) bool {
	return code == 429 || code == 503 || code == 529
}

// IsBusy reports whether err is a StatusError with a busy status.
func IsBusy(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && Busy(se.StatusCode)
}

// Unavailable wraps cause as model.ErrUpstreamUnavailable.
func Unavailable(cause error) error {
	if cause == nil {
		return model.ErrUpstreamUnavailable
	}
	return fmt.Errorf("%w: %v", model.ErrUpstreamUnavailable, cause)
}

// DefaultBaseDelay is the first retry wait; it doubles on every further attempt.
const DefaultBaseDelay = 500 * time.Millisecond

// Retry runs call up to attempts times while it fails with a busy status, waiting
// base, 2*base, 4*base... between tries. The last error is returned unchanged.
func Retry(ctx context.Context, attempts int, base time.Duration, call func(ctx context.Context) (string, error)) (string, error) {
	if attempts < 1 {
		attempts = 1
	}
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = base
	exp.Multiplier = 2
	exp.RandomizationFactor = 0
	exp.MaxElapsedTime = 0
	exp.Reset()

	var (
		text string
		err  error
	)
	for attempt := 0; attempt < attempts; attempt++ {
		text, err = call(ctx)
		if err == nil || !IsBusy(err) || attempt == attempts-1 {
			return text, err
		}
		select {
		case <-time.After(exp.NextBackOff()):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return text, err
}
