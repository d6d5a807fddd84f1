// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package config

import (
	"errors"
)

// Events configures where bank link outcomes are published.
type Events struct {
	InMem *InMemEvents
	Kafka *KafkaEvents
}

func (cfg *Events) Validate() error {
	if cfg == nil {
		return nil
	}
	if cfg.InMem != nil && cfg.InMem.URL == "" {
		return errors.New("inmem: missing URL")
	}
	if k := cfg.Kafka; k != nil {
		if len(k.Brokers) == 0 || k.Topic == "" {
			return errors.New("kafka: missing Brokers or Topic")
		}
	}
	return nil
}

type InMemEvents struct {
	URL string
}

type KafkaEvents struct {
	Brokers []string
	Topic   string

	ClientID string

	// Version is the broker version, e.g. 2.5.0. sarama's default is used when empty.
	Version string
}
