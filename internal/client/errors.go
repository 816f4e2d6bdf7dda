package client

import (
	"errors"
	"fmt"
)

var (
	// ErrBusy is returned when Submit is called while a request is in flight.
	ErrBusy = errors.New("a submission is already in progress")
	// ErrNoFiles is returned when Submit is called with an empty selection.
	ErrNoFiles = errors.New("no files selected")
)

// RequestError wraps a failure to send a submission or to decode its response.
type RequestError struct {
	Op     string // "read", "send" or "decode"
	Status int    // HTTP status, 0 if no response arrived
	Err    error
}

func (e *RequestError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s failed (HTTP %d): %v", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}
