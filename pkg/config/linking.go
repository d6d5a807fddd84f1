// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

const (
	DefaultPollInterval = 3 * time.Second
	DefaultPollTimeout  = 2 * time.Minute
	DefaultRetention    = 24 * time.Hour
	DefaultCleanupSpec  = "@every 1h"
)

type Linking struct {
	PollInterval time.Duration
	PollTimeout  time.Duration

	// Retention is how long reconciled link requests are kept for status reads.
	Retention   time.Duration
	CleanupSpec string
}

func (cfg Linking) Validate() error {
	if cfg.PollInterval <= 0 {
		return errors.New("PollInterval must be positive")
	}
	if cfg.PollTimeout < cfg.PollInterval {
		return fmt.Errorf("PollTimeout=%v is shorter than PollInterval=%v", cfg.PollTimeout, cfg.PollInterval)
	}
	if cfg.Retention < 0 {
		return errors.New("negative Retention")
	}
	if cfg.CleanupSpec != "" {
		if _, err := cron.ParseStandard(cfg.CleanupSpec); err != nil {
			return fmt.Errorf("CleanupSpec: %v", err)
		}
	}
	return nil
}
