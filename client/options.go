package client

import (
	"fmt"
	"net/http"
	"time"
)

// Option configures a Client during construction in New.
type Option func(*Client) error

// WithHTTPTimeout bounds a single HTTP attempt. The value must be greater than zero.
func WithHTTPTimeout(d time.Duration) Option {
	return func(c *Client) error {
		if d <= 0 {
			return fmt.Errorf("http timeout must be > 0")
		}
		c.http.SetTimeout(d)
		return nil
	}
}

// WithRetry sets how many attempts idempotent calls make and the first backoff
// interval, which doubles on every further attempt.
func WithRetry(maxAttempts int, base time.Duration) Option {
	return func(c *Client) error {
		if maxAttempts < 1 {
			return fmt.Errorf("max attempts must be >= 1")
		}
		if base <= 0 {
			return fmt.Errorf("retry backoff must be > 0")
		}
		c.maxAttempts, c.baseBackoff = maxAttempts, base
		return nil
	}
}

// WithDebugLogging wraps the client's transport so each request/response is
// logged when enabled is true. Do not enable in production: bodies are logged.
func WithDebugLogging(enabled bool) Option {
	return func(c *Client) error {
		if enabled {
			c.http.SetTransport(&debugTransport{base: transportOf(c.http.GetClient())})
		}
		return nil
	}
}

func transportOf(hc *http.Client) http.RoundTripper {
	if hc == nil || hc.Transport == nil {
		return http.DefaultTransport
	}
	return hc.Transport
}
