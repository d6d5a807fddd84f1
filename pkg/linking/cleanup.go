// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package linking

import (
	"fmt"
	"time"

	"github.com/moov-io/banklink/pkg/client"
	"github.com/moov-io/banklink/pkg/config"
	"github.com/moov-io/banklink/pkg/util"

	"github.com/go-kit/kit/log"
	"github.com/jonboulle/clockwork"
	"github.com/robfig/cron/v3"
)

// expiryGrace covers a backend save still running after the poll deadline.
const expiryGrace = config.DefaultBackendTimeout + time.Minute

// Cleaner periodically times out link requests nobody is polling anymore and
// removes reconciled link requests older than the retention window.
type Cleaner struct {
	logger      log.Logger
	clock       clockwork.Clock
	repo        Repository
	retention   time.Duration
	pollTimeout time.Duration

	sched *cron.Cron
}

func NewCleaner(logger log.Logger, cfg config.Linking, clock clockwork.Clock, repo Repository) (*Cleaner, error) {
	c := &Cleaner{
		logger:      logger,
		clock:       clock,
		repo:        repo,
		retention:   util.OrDuration(cfg.Retention, config.DefaultRetention),
		pollTimeout: util.OrDuration(cfg.PollTimeout, config.DefaultPollTimeout),
		sched:       cron.New(),
	}
	spec := util.Or(cfg.CleanupSpec, config.DefaultCleanupSpec)
	if _, err := c.sched.AddFunc(spec, func() {
		c.Run()
	}); err != nil {
		return nil, fmt.Errorf("cleanup schedule %q: %v", spec, err)
	}
	return c, nil
}

func (c *Cleaner) Start() {
	if c == nil || c.sched == nil {
		return
	}
	c.sched.Start()
}

func (c *Cleaner) Stop() {
	if c == nil || c.sched == nil {
		return
	}
	<-c.sched.Stop().Done()
}

// Expire fails pending link requests created longer ago than the poll timeout
// (plus expiryGrace) with TimeoutError. Polls don't survive a restart, so those
// requests would otherwise stay pending forever.
func (c *Cleaner) Expire() (int64, error) {
	now := c.clock.Now()
	cutoff := now.Add(-c.pollTimeout - expiryGrace)
	n, err := c.repo.ExpirePendingBefore(cutoff, Resolved{
		State:      client.LinkFailed,
		Outcome:    client.TimeoutError,
		ErrorKey:   ErrorKey(client.TimeoutError),
		ResolvedAt: now,
	})
	if err != nil {
		c.logger.Log("cleanup", fmt.Sprintf("problem expiring link requests: %v", err))
		return 0, err
	}
	if n > 0 {
		expiredLinks.Add(float64(n))
		c.logger.Log("cleanup", fmt.Sprintf("timed out %d link requests created before %v", n, cutoff))
	}
	return n, nil
}

// Run expires abandoned link requests, then deletes every link request resolved
// before now minus the retention window. It returns how many were deleted.
func (c *Cleaner) Run() (int64, error) {
	if _, err := c.Expire(); err != nil {
		return 0, err
	}
	cutoff := c.clock.Now().Add(-c.retention)
	n, err := c.repo.DeleteResolvedBefore(cutoff)
	if err != nil {
		c.logger.Log("cleanup", fmt.Sprintf("problem deleting link requests: %v", err))
		return 0, err
	}
	if n > 0 {
		cleanedUp.Add(float64(n))
		c.logger.Log("cleanup", fmt.Sprintf("deleted %d link requests resolved before %v", n, cutoff))
	}
	return n, nil
}
