// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package provider

import (
	"context"
	"sync"

	"github.com/moov-io/banklink/pkg/client"
)

type MockClient struct {
	Err error

	RequestID   string
	InitiateErr error

	// Results are handed out in order by Status, the last one repeats.
	Results []*client.PollResult
	// StatusErr is returned from Status when set.
	StatusErr error

	mu    sync.Mutex
	calls int
}

func (c *MockClient) Ping() error {
	return c.Err
}

func (c *MockClient) Initiate(ctx context.Context, merchantID, userID string) (string, error) {
	if c.InitiateErr != nil {
		return "", c.InitiateErr
	}
	return c.RequestID, nil
}

func (c *MockClient) Status(ctx context.Context, requestID string) (*client.PollResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.calls++
	if c.StatusErr != nil {
		return nil, c.StatusErr
	}
	if len(c.Results) == 0 {
		return &client.PollResult{HTTPStatus: 200}, nil
	}
	idx := c.calls - 1
	if idx >= len(c.Results) {
		idx = len(c.Results) - 1
	}
	res := *c.Results[idx]
	return &res, nil
}

// Calls returns how many times Status has been called.
func (c *MockClient) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}
