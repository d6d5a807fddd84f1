// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package linking

import (
	"testing"

	"github.com/moov-io/banklink/pkg/client"
)

func verifiedAccount() *client.BankAccountCandidate {
	return &client.BankAccountCandidate{
		InstitutionNumber: "001",
		TransitNumber:     "12345",
		AccountNumber:     "1234567",
		HolderName:        "Jane Doe",
		Verified:          true,
	}
}

func successResult() *client.PollResult {
	return &client.PollResult{
		HTTPStatus: 200,
		Data: &client.TerminalState{
			State:   client.TerminalSuccess,
			Account: verifiedAccount(),
		},
	}
}

func pendingResult() *client.PollResult {
	return &client.PollResult{HTTPStatus: 200, Message: "in progress"}
}

func TestReconcile(t *testing.T) {
	unverified := successResult()
	unverified.Data.Account.Verified = false

	withCode := successResult()
	withCode.Code = 17

	cases := []struct {
		name     string
		result   *client.PollResult
		expected client.Outcome
	}{
		{"nil", nil, client.UnknownError},
		{"success", successResult(), client.Success},
		{"unverified account", unverified, client.UnknownError},
		{"success with code", withCode, client.UnknownError},
		{"200 failed state", &client.PollResult{HTTPStatus: 200, Data: &client.TerminalState{State: client.TerminalFailed}}, client.UnknownError},
		{"404", &client.PollResult{HTTPStatus: 404}, client.UnknownError},
		{"408", &client.PollResult{HTTPStatus: 408}, client.TimeoutError},
		{"422 account type", &client.PollResult{HTTPStatus: 422, Data: &client.TerminalState{State: client.TerminalFailed, Reason: ReasonAccountType}}, client.InvalidAccountType},
		{"422 account type code", &client.PollResult{HTTPStatus: 422, Code: CodeInvalidAccountType}, client.InvalidAccountType},
		{"422 holder", &client.PollResult{HTTPStatus: 422, Data: &client.TerminalState{State: client.TerminalFailed, Reason: ReasonHolderMismatch}}, client.InvalidHolder},
		{"422 holder code", &client.PollResult{HTTPStatus: 422, Code: CodeHolderMismatch}, client.InvalidHolder},
		{"422 other", &client.PollResult{HTTPStatus: 422, Data: &client.TerminalState{Reason: "other"}}, client.UnknownError},
		{"424", &client.PollResult{HTTPStatus: 424}, client.CommunicationError},
		{"400", &client.PollResult{HTTPStatus: 400}, client.UnknownError},
		{"410", &client.PollResult{HTTPStatus: 410}, client.UnknownError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Reconcile(tc.result); got != tc.expected {
				t.Errorf("got %s, expected %s", got, tc.expected)
			}
			// deterministic
			if got := Reconcile(tc.result); got != tc.expected {
				t.Errorf("second call got %s", got)
			}
		})
	}
}

func TestTransientAndTerminal(t *testing.T) {
	cases := []struct {
		result    *client.PollResult
		transient bool
		terminal  bool
	}{
		{nil, true, false},
		{&client.PollResult{HTTPStatus: 500}, true, false},
		{&client.PollResult{HTTPStatus: 503}, true, false},
		{&client.PollResult{HTTPStatus: 429}, true, false},
		{&client.PollResult{HTTPStatus: 302}, true, false},
		{&client.PollResult{HTTPStatus: 0}, true, false},
		{pendingResult(), false, false},
		{&client.PollResult{HTTPStatus: 202}, false, false},
		{successResult(), false, true},
		{&client.PollResult{HTTPStatus: 404}, false, true},
		{&client.PollResult{HTTPStatus: 422}, false, true},
		{&client.PollResult{HTTPStatus: 424}, false, true},
	}
	for i, tc := range cases {
		if got := Transient(tc.result); got != tc.transient {
			t.Errorf("#%d: Transient=%v", i, got)
		}
		if got := IsTerminal(tc.result); got != tc.terminal {
			t.Errorf("#%d: IsTerminal=%v", i, got)
		}
	}
}

func TestErrorKey(t *testing.T) {
	if key := ErrorKey(client.Success); key != "" {
		t.Errorf("unexpected key: %q", key)
	}
	keys := map[client.Outcome]string{
		client.InvalidAccountType: "bank_link.error.invalid_account_type",
		client.InvalidHolder:      "bank_link.error.invalid_holder",
		client.CommunicationError: "bank_link.error.communication",
		client.TimeoutError:       "bank_link.error.timeout",
		client.UnknownError:       "bank_link.error.unknown",
	}
	for outcome, expected := range keys {
		if got := ErrorKey(outcome); got != expected {
			t.Errorf("%s: got %q", outcome, got)
		}
	}
}
