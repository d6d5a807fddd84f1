// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package events

import (
	"context"
	"fmt"

	"github.com/moov-io/banklink/pkg/config"

	"github.com/Shopify/sarama"
	"gocloud.dev/pubsub"
	"gocloud.dev/pubsub/kafkapubsub"
	_ "gocloud.dev/pubsub/mempubsub"
)

// Topic opens a topic by URL, e.g. mem://banklink
// See https://gocloud.dev/howto/pubsub/publish/
func Topic(ctx context.Context, url string) (*pubsub.Topic, error) {
	return pubsub.OpenTopic(ctx, url)
}

func Subscription(ctx context.Context, url string) (*pubsub.Subscription, error) {
	return pubsub.OpenSubscription(ctx, url)
}

// kafkaTopic sends through a sarama.SyncProducer. Each message is keyed by
// its link request so one link's events stay ordered on a single partition.
func kafkaTopic(cfg *config.KafkaEvents) (*pubsub.Topic, error) {
	sc, err := saramaConfig(cfg)
	if err != nil {
		return nil, err
	}
	return kafkapubsub.OpenTopic(cfg.Brokers, sc, cfg.Topic, &kafkapubsub.TopicOptions{
		KeyName: keyName,
	})
}

func saramaConfig(cfg *config.KafkaEvents) (*sarama.Config, error) {
	sc := kafkapubsub.MinimalConfig()
	if cfg.ClientID != "" {
		sc.ClientID = cfg.ClientID
	}
	if cfg.Version != "" {
		v, err := sarama.ParseKafkaVersion(cfg.Version)
		if err != nil {
			return nil, fmt.Errorf("kafka: %v", err)
		}
		sc.Version = v
	}
	// the producer waits on every in-sync replica before Send returns
	sc.Producer.RequiredAcks = sarama.WaitForAll
	sc.Producer.Return.Successes = true
	return sc, sc.Validate()
}
