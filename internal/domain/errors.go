package domain

import (
	"errors"
	"fmt"
)

var (
	ErrMissingAPIKey = errors.New("api key not configured")
	ErrUnknownMode   = errors.New("unknown mode")
)

// UpstreamError is returned when the generation endpoint answers with a
// non-success status. Body holds the upstream response text unchanged.
type UpstreamError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream status %d: %s", e.StatusCode, e.Body)
}

// MalformedCompletionError is returned when the upstream call succeeded but
// its content could not be used. Raw is the payload that failed: the whole
// envelope when the candidate is missing, the candidate text when it is not JSON.
type MalformedCompletionError struct {
	Reason string
	Raw    []byte
	Err    error
}

func (e *MalformedCompletionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Reason, e.Err)
	}
	return e.Reason
}

func (e *MalformedCompletionError) Unwrap() error { return e.Err }
