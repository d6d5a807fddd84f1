// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package linking

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/moov-io/banklink/pkg/backend"
	"github.com/moov-io/banklink/pkg/client"
	"github.com/moov-io/banklink/pkg/config"
	"github.com/moov-io/banklink/pkg/events"
	"github.com/moov-io/banklink/pkg/notify"
	"github.com/moov-io/banklink/pkg/provider"
	"github.com/moov-io/banklink/pkg/session"

	"github.com/go-kit/kit/log"
	"github.com/jonboulle/clockwork"
)

var (
	errShuttingDown = errors.New("bank link service is shutting down")
)

// Service runs bank links from initiation through polling to reconciliation.
// Each link is polled by its own goroutine.
type Service struct {
	logger log.Logger
	clock  clockwork.Clock

	initiator *Initiator
	poller    *Poller

	repo      Repository
	backend   backend.Client
	publisher events.Publisher
	sender    notify.Sender

	ctx      context.Context
	shutdown context.CancelFunc
	wg       sync.WaitGroup

	mu     sync.Mutex
	active map[string]*activeLink
	closed bool
}

// activeLink is guarded by Service.mu
type activeLink struct {
	merchantID string
	cancel     context.CancelFunc

	cancelled bool
	claimed   bool // a resolution is being applied

	done chan struct{}
}

func NewService(
	logger log.Logger,
	cfg config.Linking,
	clock clockwork.Clock,
	prov provider.Client,
	back backend.Client,
	repo Repository,
	publisher events.Publisher,
	sender notify.Sender,
) *Service {
	ctx, cancelFn := context.WithCancel(context.Background())
	return &Service{
		logger:    logger,
		clock:     clock,
		initiator: NewInitiator(clock, prov),
		poller:    NewPoller(logger, cfg, clock, prov),
		repo:      repo,
		backend:   back,
		publisher: publisher,
		sender:    sender,
		ctx:       ctx,
		shutdown:  cancelFn,
		active:    make(map[string]*activeLink),
	}
}

// Start initiates a bank link and begins polling it in the background.
func (s *Service) Start(ctx context.Context, sess session.Context) (*client.LinkStatus, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return nil, errShuttingDown
	}

	req, err := s.initiator.Start(ctx, sess)
	if err != nil {
		linksInitiated.With("result", "error").Add(1)
		return nil, err
	}
	if err := s.repo.CreateLinkRequest(req, sess.UserID); err != nil {
		linksInitiated.With("result", "error").Add(1)
		return nil, fmt.Errorf("saving link request: %w", err)
	}
	linksInitiated.With("result", "started").Add(1)

	linkCtx, cancelFn := context.WithCancel(s.ctx)
	link := &activeLink{
		merchantID: req.MerchantID,
		cancel:     cancelFn,
		done:       make(chan struct{}),
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		cancelFn()
		if _, err := s.repo.CancelLinkRequest(req.RequestID, s.clock.Now()); err != nil {
			s.logger.Log("linking", fmt.Sprintf("problem cancelling link request: %v", err), "linkRequestID", req.RequestID)
		}
		return nil, errShuttingDown
	}
	s.active[req.RequestID] = link
	s.wg.Add(1)
	s.mu.Unlock()

	s.logger.Log(append([]interface{}{"linking", "started bank link", "linkRequestID", req.RequestID}, sess.LogValues()...)...)

	go s.run(linkCtx, sess, req, link)

	return &client.LinkStatus{
		LinkRequest: *req,
		Signal:      client.SignalConnecting,
	}, nil
}

func (s *Service) run(ctx context.Context, sess session.Context, req *client.LinkRequest, link *activeLink) {
	defer s.wg.Done()
	defer close(link.done)

	res := s.poller.Run(ctx, req.RequestID)

	if !s.claim(req.RequestID, link) || res.Cancelled {
		s.release(req.RequestID, link)
		return
	}
	defer s.release(req.RequestID, link)

	s.apply(sess, req, res)
}

// claim reserves the right to apply a resolution. It fails once the link is cancelled.
func (s *Service) claim(requestID string, link *activeLink) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if link.cancelled {
		return false
	}
	link.claimed = true
	return true
}

func (s *Service) release(requestID string, link *activeLink) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active[requestID] == link {
		delete(s.active, requestID)
	}
	link.cancel()
}

func (s *Service) apply(sess session.Context, req *client.LinkRequest, res Resolution) {
	outcome := res.Outcome
	candidate := res.Candidate()

	if outcome == client.Success && sess.ExpectedHolder != "" && !HolderMatches(sess.ExpectedHolder, candidate.HolderName) {
		s.logger.Log("linking", "account holder mismatch", "linkRequestID", req.RequestID, "merchantID", req.MerchantID)
		outcome = client.InvalidHolder
	}

	resolved := Resolved{
		State:      client.LinkFailed,
		Outcome:    outcome,
		ErrorKey:   ErrorKey(outcome),
		ResolvedAt: s.clock.Now(),
	}
	if outcome == client.Success {
		resolved.Candidate = candidate
		account, err := s.backend.SaveBankAccount(s.ctx, sess.MerchantID, sess.AuthToken, *candidate)
		if err != nil {
			perr := &PersistenceError{RequestID: req.RequestID, Err: err}
			persistenceFailures.Add(1)
			resolved.ErrorKey = PersistenceErrorKey
			s.logger.Log("linking", perr.Error(), "linkRequestID", req.RequestID, "merchantID", req.MerchantID)
			s.notify(true, req, outcome, perr.Error())
		} else {
			resolved.State = client.LinkSuccess
			resolved.BankAccount = account
		}
	}
	outcomesCounter.With("outcome", outcome.String()).Add(1)

	stored, ok := s.store(req, resolved)
	if !ok {
		return
	}
	if stored.State == client.LinkSuccess {
		s.notify(false, req, outcome, "")
	}

	s.logger.Log("linking", "resolved bank link", "linkRequestID", req.RequestID, "merchantID", req.MerchantID,
		"outcome", outcome, "state", stored.State, "polls", res.Polls, "transientErrors", res.Transient, "elapsed", res.Elapsed)

	status := &client.LinkStatus{
		LinkRequest: *req,
		Signal:      signalFor(stored.State),
		Outcome:     outcome,
		ErrorKey:    stored.ErrorKey,
		BankAccount: stored.BankAccount,
	}
	status.State = stored.State
	if err := s.publisher.Publish(s.ctx, events.Resolved(status)); err != nil {
		s.logger.Log("linking", fmt.Sprintf("problem publishing event: %v", err), "linkRequestID", req.RequestID)
	}
}

// resolveAttempts bounds how many times a resolution is written before falling
// back to a persistence failure.
const resolveAttempts = 3

// store writes resolved and returns what was actually stored. When every write
// fails the link is resolved as a persistence failure instead. ok is false when
// nothing was stored, either because the request is no longer pending or the
// repository is unavailable, and nothing may be published.
func (s *Service) store(req *client.LinkRequest, resolved Resolved) (Resolved, bool) {
	var err error
	for i := 0; i < resolveAttempts; i++ {
		var ok bool
		ok, err = s.repo.ResolveLinkRequest(req.RequestID, resolved)
		if err == nil {
			if !ok {
				s.logger.Log("linking", "link request was no longer pending", "linkRequestID", req.RequestID)
			}
			return resolved, ok
		}
		s.logger.Log("linking", fmt.Sprintf("problem saving resolution (attempt %d): %v", i+1, err), "linkRequestID", req.RequestID)
	}

	detail := fmt.Sprintf("saving %s resolution: %v", resolved.State, err)
	fallback := Resolved{
		State:      client.LinkFailed,
		Outcome:    resolved.Outcome,
		ErrorKey:   PersistenceErrorKey,
		ResolvedAt: resolved.ResolvedAt,
	}
	ok, ferr := s.repo.ResolveLinkRequest(req.RequestID, fallback)
	switch {
	case ferr != nil:
		// left pending, the Cleaner times it out
		detail = fmt.Sprintf("%s, then saving persistence failure: %v", detail, ferr)
		s.logger.Log("linking", detail, "linkRequestID", req.RequestID, "merchantID", req.MerchantID)
		s.notify(true, req, resolved.Outcome, detail)
		return fallback, false
	case !ok:
		s.logger.Log("linking", "link request was no longer pending", "linkRequestID", req.RequestID)
		return fallback, false
	}
	s.logger.Log("linking", detail, "linkRequestID", req.RequestID, "merchantID", req.MerchantID)
	s.notify(true, req, resolved.Outcome, detail)
	return fallback, true
}

func (s *Service) notify(critical bool, req *client.LinkRequest, outcome client.Outcome, detail string) {
	if s.sender == nil {
		return
	}
	msg := &notify.Message{
		MerchantID: req.MerchantID,
		RequestID:  req.RequestID,
		Outcome:    outcome,
		Detail:     detail,
	}
	var err error
	if critical {
		err = s.sender.Critical(msg)
	} else {
		err = s.sender.Info(msg)
	}
	if err != nil {
		s.logger.Log("linking", fmt.Sprintf("problem sending notification: %v", err), "linkRequestID", req.RequestID)
	}
}

// Cancel stops polling a link request. Cancelling a resolved or already cancelled
// link is a no-op. An empty merchantID matches every merchant.
func (s *Service) Cancel(ctx context.Context, requestID, merchantID string) (*client.LinkStatus, error) {
	s.mu.Lock()
	link := s.active[requestID]
	if link != nil && merchantID != "" && link.merchantID != merchantID {
		link = nil
	}
	if link != nil && !link.claimed {
		link.cancelled = true
		delete(s.active, requestID)
		s.mu.Unlock()
		link.cancel()
	} else {
		s.mu.Unlock()
		if link != nil {
			// the poller already claimed its result, wait for it to be saved
			select {
			case <-link.done:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}

	status, err := s.repo.GetLinkRequest(requestID, merchantID)
	if err != nil {
		return nil, err
	}
	if status.State != client.LinkPending {
		return status, nil
	}

	ok, err := s.repo.CancelLinkRequest(requestID, s.clock.Now())
	if err != nil {
		return nil, err
	}
	if ok {
		linksCancelled.Add(1)
		s.logger.Log("linking", "cancelled bank link", "linkRequestID", requestID, "merchantID", status.MerchantID)
		if err := s.publisher.Publish(s.ctx, events.Cancelled(&status.LinkRequest)); err != nil {
			s.logger.Log("linking", fmt.Sprintf("problem publishing event: %v", err), "linkRequestID", requestID)
		}
	}
	return s.repo.GetLinkRequest(requestID, merchantID)
}

// Status returns the current state of a link request. An empty merchantID matches every merchant.
func (s *Service) Status(ctx context.Context, requestID, merchantID string) (*client.LinkStatus, error) {
	return s.repo.GetLinkRequest(requestID, merchantID)
}

// Active returns the link requests currently being polled.
func (s *Service) Active() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]string, 0, len(s.active))
	for id := range s.active {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Shutdown cancels every link request still being polled and waits for in-flight
// resolutions to finish.
func (s *Service) Shutdown() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true

	var cancelled []string
	for id, link := range s.active {
		if link.claimed {
			continue
		}
		link.cancelled = true
		link.cancel()
		delete(s.active, id)
		cancelled = append(cancelled, id)
	}
	s.mu.Unlock()

	s.wg.Wait()

	now := s.clock.Now()
	for _, id := range cancelled {
		if _, err := s.repo.CancelLinkRequest(id, now); err != nil {
			s.logger.Log("linking", fmt.Sprintf("problem cancelling on shutdown: %v", err), "linkRequestID", id)
		}
	}
	s.logger.Log("linking", fmt.Sprintf("shutdown cancelled %d bank links", len(cancelled)))
	s.shutdown()
}
