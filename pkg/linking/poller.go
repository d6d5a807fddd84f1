// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package linking

import (
	"context"
	"time"

	"github.com/moov-io/banklink/pkg/client"
	"github.com/moov-io/banklink/pkg/config"
	"github.com/moov-io/banklink/pkg/provider"
	"github.com/moov-io/banklink/pkg/util"

	"github.com/go-kit/kit/log"
	"github.com/jonboulle/clockwork"
)

// Resolution is how polling one link request ended.
type Resolution struct {
	// Cancelled is true when the poller's context ended first. Outcome is empty.
	Cancelled bool

	Outcome client.Outcome

	// Result is the terminal poll result, nil after a timeout or cancellation.
	Result *client.PollResult

	Polls     int
	Transient int
	Elapsed   time.Duration
}

// Candidate returns the account the provider verified, if any.
func (r Resolution) Candidate() *client.BankAccountCandidate {
	if r.Result == nil || r.Result.Data == nil {
		return nil
	}
	return r.Result.Data.Account
}

type Poller struct {
	client   provider.Client
	clock    clockwork.Clock
	interval time.Duration
	timeout  time.Duration
	logger   log.Logger
}

func NewPoller(logger log.Logger, cfg config.Linking, clock clockwork.Clock, client provider.Client) *Poller {
	p := &Poller{
		client:   client,
		clock:    clock,
		interval: util.OrDuration(cfg.PollInterval, config.DefaultPollInterval),
		timeout:  util.OrDuration(cfg.PollTimeout, config.DefaultPollTimeout),
		logger:   logger,
	}
	return p
}

type pollResponse struct {
	result *client.PollResult
	err    error
}

// Run polls the provider until the link request reaches a terminal state, the timeout
// elapses or ctx is cancelled. At most one poll is outstanding at any time and every
// timer is stopped before Run returns.
func (p *Poller) Run(ctx context.Context, requestID string) Resolution {
	start := p.clock.Now()
	deadline := p.clock.NewTimer(p.timeout)
	defer deadline.Stop()

	var res Resolution
	finish := func(outcome client.Outcome, result *client.PollResult) Resolution {
		res.Outcome = outcome
		res.Result = result
		res.Elapsed = p.clock.Since(start)
		return res
	}
	cancelled := func() Resolution {
		res.Cancelled = true
		res.Elapsed = p.clock.Since(start)
		return res
	}

	for {
		if ctx.Err() != nil {
			return cancelled()
		}
		if p.clock.Since(start) >= p.timeout {
			return finish(client.TimeoutError, nil)
		}

		res.Polls++
		resp, ok := p.poll(ctx, deadline, requestID)
		if !ok {
			if ctx.Err() != nil {
				return cancelled()
			}
			p.logger.Log("poller", "timed out with poll in flight", "linkRequestID", requestID, "polls", res.Polls)
			return finish(client.TimeoutError, nil)
		}
		if p.clock.Since(start) >= p.timeout {
			// responses arriving at or after the deadline are discarded
			return finish(client.TimeoutError, nil)
		}

		switch {
		case resp.err != nil || Transient(resp.result):
			res.Transient++
			perr := &TransientPollError{RequestID: requestID, Attempt: res.Polls, Err: resp.err}
			if resp.result != nil {
				perr.StatusCode = resp.result.HTTPStatus
			}
			pollsCounter.With("result", "transient").Add(1)
			p.logger.Log("poller", perr.Error(), "linkRequestID", requestID)

		case IsTerminal(resp.result):
			pollsCounter.With("result", "terminal").Add(1)
			return finish(Reconcile(resp.result), resp.result)

		default:
			pollsCounter.With("result", "pending").Add(1)
		}

		// The next poll is only scheduled once this one has been processed.
		wait := p.clock.NewTimer(p.interval)
		select {
		case <-ctx.Done():
			wait.Stop()
			return cancelled()
		case <-deadline.Chan():
			wait.Stop()
			return finish(client.TimeoutError, nil)
		case <-wait.Chan():
		}
	}
}

// poll makes one status call and waits for it, the deadline or ctx. A late response
// is dropped when ok is false.
func (p *Poller) poll(ctx context.Context, deadline clockwork.Timer, requestID string) (pollResponse, bool) {
	pollCtx, cancelPoll := context.WithCancel(ctx)
	defer cancelPoll()

	out := make(chan pollResponse, 1)
	go func() {
		result, err := p.client.Status(pollCtx, requestID)
		out <- pollResponse{result: result, err: err}
	}()

	select {
	case <-ctx.Done():
		return pollResponse{}, false
	case <-deadline.Chan():
		return pollResponse{}, false
	case resp := <-out:
		if ctx.Err() != nil {
			return pollResponse{}, false
		}
		return resp, true
	}
}
