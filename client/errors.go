package client

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrUpstreamBusy is matched by APIErrors for 503 answers: the service could not
// reach a generation model. Retrying later may succeed.
var ErrUpstreamBusy = errors.New("upstream model busy")

// APIError is a non-2xx answer from the service.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("memory service returned %d: %s", e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error {
	if e.StatusCode == http.StatusServiceUnavailable {
		return ErrUpstreamBusy
	}
	return nil
}

// IsUpstreamBusy reports whether err is a busy answer from the service.
func IsUpstreamBusy(err error) bool { return errors.Is(err, ErrUpstreamBusy) }

// errorBody is the service's JSON error shape.
type errorBody struct {
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}
