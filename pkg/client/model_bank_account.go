// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package client

import (
	"time"
)

// BankAccountCandidate is the account the provider connected to. It's only
// persisted after reconciliation succeeds.
type BankAccountCandidate struct {
	InstitutionNumber string `json:"institutionNumber"`
	TransitNumber     string `json:"transitNumber"`
	AccountNumber     string `json:"accountNumber"`
	HolderName        string `json:"holderName"`
	Verified          bool   `json:"verified"`
}

// BankAccount is the canonical stored representation returned by the backend.
type BankAccount struct {
	BankAccountID       string    `json:"bankAccountID"`
	MerchantID          string    `json:"merchantID"`
	InstitutionNumber   string    `json:"institutionNumber"`
	TransitNumber       string    `json:"transitNumber"`
	MaskedAccountNumber string    `json:"maskedAccountNumber"`
	HolderName          string    `json:"holderName"`
	Verified            bool      `json:"verified"`
	CreatedAt           time.Time `json:"createdAt"`
}
