package backend

import (
	"errors"
	"fmt"
)

// ErrOffline is returned when the network is known to be down before a
// request is issued.
var ErrOffline = errors.New("backend offline")

// TransportError is a failed backend call: either the backend could not be
// reached (Status 0) or it answered with a non-2xx status.
type TransportError struct {
	Endpoint string
	Status   int
	Message  string // server supplied statusMessage/message, if any
	Err      error
}

func (e *TransportError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("%s: backend unreachable: %v", e.Endpoint, e.Err)
	}
	if e.Message != "" {
		return fmt.Sprintf("%s: status %d: %s", e.Endpoint, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: status %d", e.Endpoint, e.Status)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Unreachable reports whether the backend could not be reached at all.
func (e *TransportError) Unreachable() bool { return e.Status == 0 }
