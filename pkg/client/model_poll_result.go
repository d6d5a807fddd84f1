// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package client

// PollResult is a single response from the provider's status endpoint.
type PollResult struct {
	HTTPStatus int            `json:"status"`
	Code       int            `json:"code"`
	Message    string         `json:"message"`
	Data       *TerminalState `json:"data"`
}

const (
	TerminalSuccess = "success"
	TerminalFailed  = "failed"
)

// TerminalState is included by the provider once a link request stops changing.
// It is nil while the provider is still connecting to the bank.
type TerminalState struct {
	State   string                `json:"state"`
	Reason  string                `json:"reason,omitempty"`
	Account *BankAccountCandidate `json:"account,omitempty"`
}
