// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package linking

import (
	"net/http"

	"github.com/moov-io/banklink/pkg/client"
	"github.com/moov-io/banklink/pkg/provider"
)

// Reasons and application codes the provider attaches to HTTP 422 responses.
const (
	ReasonAccountType    = "account_type"
	ReasonHolderMismatch = "holder_mismatch"

	CodeInvalidAccountType = 4221
	CodeHolderMismatch     = 4222
)

// Message keys for user-facing errors.
const (
	keyPrefix = "bank_link.error."

	PersistenceErrorKey = keyPrefix + "persistence"
)

// Transient reports if a poll result should be retried on the next interval.
func Transient(result *client.PollResult) bool {
	if result == nil {
		return true
	}
	s := result.HTTPStatus
	if provider.Retryable(s) {
		return true
	}
	return s < 200 || (s >= 300 && s < 400)
}

// IsTerminal reports if a poll result ends polling. Results carrying terminal data
// and client errors (other than 429) are terminal. A 2xx response without data is pending.
func IsTerminal(result *client.PollResult) bool {
	if Transient(result) {
		return false
	}
	if result.Data != nil {
		return true
	}
	return result.HTTPStatus >= 400 && result.HTTPStatus < 500
}

// Reconcile classifies a terminal poll result. It has no side effects.
func Reconcile(result *client.PollResult) client.Outcome {
	if result == nil {
		return client.UnknownError
	}
	switch result.HTTPStatus {
	case http.StatusOK:
		if result.Code == 0 && isVerifiedSuccess(result.Data) {
			return client.Success
		}
	case http.StatusNotFound:
		return client.UnknownError
	case http.StatusRequestTimeout:
		return client.TimeoutError
	case http.StatusUnprocessableEntity:
		var reason string
		if result.Data != nil {
			reason = result.Data.Reason
		}
		switch {
		case reason == ReasonAccountType || result.Code == CodeInvalidAccountType:
			return client.InvalidAccountType
		case reason == ReasonHolderMismatch || result.Code == CodeHolderMismatch:
			return client.InvalidHolder
		}
	case http.StatusFailedDependency:
		return client.CommunicationError
	}
	return client.UnknownError
}

func isVerifiedSuccess(data *client.TerminalState) bool {
	if data == nil || data.State != client.TerminalSuccess {
		return false
	}
	return data.Account != nil && data.Account.Verified
}

// ErrorKey returns the message key shown for an outcome. Success has no key.
func ErrorKey(outcome client.Outcome) string {
	switch outcome {
	case client.Success:
		return ""
	case client.InvalidAccountType:
		return keyPrefix + "invalid_account_type"
	case client.InvalidHolder:
		return keyPrefix + "invalid_holder"
	case client.CommunicationError:
		return keyPrefix + "communication"
	case client.TimeoutError:
		return keyPrefix + "timeout"
	}
	return keyPrefix + "unknown"
}
