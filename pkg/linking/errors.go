// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package linking

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound = errors.New("bank link not found")
)

// InitiationError means a bank link could not be started and no polling began.
// StatusCode is the provider's HTTP status, or zero when the provider was never reached
// or answered.
type InitiationError struct {
	StatusCode int
	Err        error
}

func (e *InitiationError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("initiating bank link (HTTP %d): %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("initiating bank link: %v", e.Err)
}

func (e *InitiationError) Unwrap() error {
	return e.Err
}

// Rejected is true when the request itself was refused, rather than the provider being unavailable.
func (e *InitiationError) Rejected() bool {
	return e.StatusCode >= 400 && e.StatusCode < 500 && e.StatusCode != 429
}

// TransientPollError is one failed status check which is retried on the next interval.
type TransientPollError struct {
	RequestID  string
	Attempt    int
	StatusCode int
	Err        error
}

func (e *TransientPollError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("poll #%d of %s: %v", e.Attempt, e.RequestID, e.Err)
	}
	return fmt.Sprintf("poll #%d of %s: HTTP %d", e.Attempt, e.RequestID, e.StatusCode)
}

func (e *TransientPollError) Unwrap() error {
	return e.Err
}

// PersistenceError means a verified account could not be saved with the backend.
type PersistenceError struct {
	RequestID string
	Err       error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("saving bank account for %s: %v", e.RequestID, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
