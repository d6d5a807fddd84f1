// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package client

// Outcome is the terminal classification of a LinkRequest
type Outcome string

const (
	Success            Outcome = "success"
	InvalidAccountType Outcome = "invalid_account_type"
	InvalidHolder      Outcome = "invalid_holder"
	CommunicationError Outcome = "communication_error"
	TimeoutError       Outcome = "timeout_error"
	UnknownError       Outcome = "unknown_error"
)

func (o Outcome) String() string {
	return string(o)
}

func (o Outcome) Valid() bool {
	switch o {
	case Success, InvalidAccountType, InvalidHolder, CommunicationError, TimeoutError, UnknownError:
		return true
	}
	return false
}
