// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package client

// Signal is what a UI shows for a link request
type Signal string

const (
	SignalConnecting Signal = "connecting"
	SignalConnected  Signal = "connected"
	SignalError      Signal = "error"
	SignalIdle       Signal = "idle"
)

// LinkStatus is returned by the HTTP API for a link request.
type LinkStatus struct {
	LinkRequest

	Signal      Signal       `json:"signal"`
	Outcome     Outcome      `json:"outcome,omitempty"`
	ErrorKey    string       `json:"errorKey,omitempty"`
	BankAccount *BankAccount `json:"bankAccount,omitempty"`
}
