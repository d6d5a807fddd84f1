// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package config

import (
	"errors"
	"net/url"
	"time"
)

const (
	DefaultProviderTimeout = 10 * time.Second
	DefaultBackendTimeout  = 10 * time.Second
)

// Provider holds the connection details for the account-aggregation provider
// which verifies bank accounts on behalf of merchants.
type Provider struct {
	Endpoint string
	Timeout  time.Duration

	// OAuth2 client credentials, optional
	ClientID     string
	ClientSecret string `json:"-"`
	TokenURL     string
	Scopes       []string

	CircuitBreaker *CircuitBreaker
}

func (cfg Provider) Validate() error {
	if cfg.Endpoint != "" {
		if _, err := url.Parse(cfg.Endpoint); err != nil {
			return err
		}
	}
	if cfg.ClientID != "" && cfg.TokenURL == "" {
		return errors.New("missing TokenURL for ClientID")
	}
	if cfg.Timeout < 0 {
		return errors.New("negative Timeout")
	}
	if err := cfg.CircuitBreaker.Validate(); err != nil {
		return err
	}
	return nil
}

// CircuitBreaker trips after FailureThreshold failed calls out of the
// last MinRequests and stays open for Delay.
type CircuitBreaker struct {
	FailureThreshold uint
	MinRequests      uint
	Delay            time.Duration
}

func (cfg *CircuitBreaker) Validate() error {
	if cfg == nil {
		return nil
	}
	if cfg.FailureThreshold == 0 || cfg.MinRequests == 0 {
		return errors.New("circuit breaker: FailureThreshold and MinRequests are required")
	}
	if cfg.FailureThreshold > cfg.MinRequests {
		return errors.New("circuit breaker: FailureThreshold exceeds MinRequests")
	}
	return nil
}

// Backend is where verified bank accounts are persisted.
type Backend struct {
	Endpoint string
	Timeout  time.Duration
}

func (cfg Backend) Validate() error {
	if cfg.Endpoint != "" {
		if _, err := url.Parse(cfg.Endpoint); err != nil {
			return err
		}
	}
	if cfg.Timeout < 0 {
		return errors.New("negative Timeout")
	}
	return nil
}
