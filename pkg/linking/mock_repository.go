// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package linking

import (
	"sync"
	"time"

	"github.com/moov-io/banklink/pkg/client"
	"github.com/moov-io/banklink/x/mask"
)

// MockRepository keeps link requests in memory.
type MockRepository struct {
	Err error

	// ResolveErrs are handed out in order by ResolveLinkRequest, one per call.
	ResolveErrs []error

	mu       sync.Mutex
	requests map[string]*mockLink
}

type mockLink struct {
	status client.LinkStatus
	userID string
}

func (r *MockRepository) CreateLinkRequest(req *client.LinkRequest, userID string) error {
	if r.Err != nil {
		return r.Err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.requests == nil {
		r.requests = make(map[string]*mockLink)
	}
	r.requests[req.RequestID] = &mockLink{
		status: client.LinkStatus{
			LinkRequest: *req,
			Signal:      signalFor(req.State),
		},
		userID: userID,
	}
	return nil
}

func (r *MockRepository) GetLinkRequest(requestID, merchantID string) (*client.LinkStatus, error) {
	if r.Err != nil {
		return nil, r.Err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	link, ok := r.requests[requestID]
	if !ok || (merchantID != "" && link.status.MerchantID != merchantID) {
		return nil, ErrNotFound
	}
	status := link.status
	return &status, nil
}

func (r *MockRepository) ResolveLinkRequest(requestID string, res Resolved) (bool, error) {
	if r.Err != nil {
		return false, r.Err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.ResolveErrs) > 0 {
		err := r.ResolveErrs[0]
		r.ResolveErrs = r.ResolveErrs[1:]
		return false, err
	}

	link, ok := r.requests[requestID]
	if !ok || link.status.State != client.LinkPending {
		return false, nil
	}
	when := res.ResolvedAt
	link.status.State = res.State
	link.status.Signal = signalFor(res.State)
	link.status.Outcome = res.Outcome
	link.status.ErrorKey = res.ErrorKey
	link.status.ResolvedAt = &when
	if res.BankAccount != nil {
		acct := *res.BankAccount
		if res.Candidate != nil {
			acct.MaskedAccountNumber = mask.AccountNumber(res.Candidate.AccountNumber)
		}
		link.status.BankAccount = &acct
	}
	return true, nil
}

func (r *MockRepository) CancelLinkRequest(requestID string, when time.Time) (bool, error) {
	if r.Err != nil {
		return false, r.Err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	link, ok := r.requests[requestID]
	if !ok || link.status.State != client.LinkPending {
		return false, nil
	}
	link.status.State = client.LinkCancelled
	link.status.Signal = client.SignalIdle
	link.status.ResolvedAt = &when
	return true, nil
}

func (r *MockRepository) ExpirePendingBefore(cutoff time.Time, res Resolved) (int64, error) {
	if r.Err != nil {
		return 0, r.Err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for _, link := range r.requests {
		if link.status.State != client.LinkPending || !link.status.CreatedAt.Before(cutoff) {
			continue
		}
		when := res.ResolvedAt
		link.status.State = res.State
		link.status.Signal = signalFor(res.State)
		link.status.Outcome = res.Outcome
		link.status.ErrorKey = res.ErrorKey
		link.status.ResolvedAt = &when
		n++
	}
	return n, nil
}

func (r *MockRepository) DeleteResolvedBefore(cutoff time.Time) (int64, error) {
	if r.Err != nil {
		return 0, r.Err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for id, link := range r.requests {
		resolvedAt := link.status.ResolvedAt
		if link.status.State != client.LinkPending && resolvedAt != nil && resolvedAt.Before(cutoff) {
			delete(r.requests, id)
			n++
		}
	}
	return n, nil
}
