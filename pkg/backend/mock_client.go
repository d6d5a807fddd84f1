// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package backend

import (
	"context"
	"sync"
	"time"

	"github.com/moov-io/banklink/pkg/client"
	"github.com/moov-io/banklink/x/mask"
)

type MockClient struct {
	Err error

	mu    sync.Mutex
	Saved []client.BankAccountCandidate
}

func (c *MockClient) Ping() error {
	return c.Err
}

func (c *MockClient) SaveBankAccount(ctx context.Context, merchantID, authToken string, candidate client.BankAccountCandidate) (*client.BankAccount, error) {
	if c.Err != nil {
		return nil, c.Err
	}

	c.mu.Lock()
	c.Saved = append(c.Saved, candidate)
	c.mu.Unlock()

	return &client.BankAccount{
		BankAccountID:       "ba-" + candidate.TransitNumber,
		MerchantID:          merchantID,
		InstitutionNumber:   candidate.InstitutionNumber,
		TransitNumber:       candidate.TransitNumber,
		MaskedAccountNumber: mask.AccountNumber(candidate.AccountNumber),
		HolderName:          candidate.HolderName,
		Verified:            candidate.Verified,
		CreatedAt:           time.Now(),
	}, nil
}

// SavedCount returns how many accounts were persisted.
func (c *MockClient) SavedCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.Saved)
}
