// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package events

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/moov-io/banklink/pkg/client"
	"github.com/moov-io/banklink/pkg/config"

	"github.com/go-kit/kit/log"
	"github.com/moov-io/base"
	"gocloud.dev/pubsub"
)

const (
	TypeResolved  = "bank_link.resolved"
	TypeCancelled = "bank_link.cancelled"

	// keyName is the metadata key used as the Kafka message key so events
	// for one link request land on the same partition.
	keyName = "requestID"
)

type Event struct {
	EventID   string    `json:"eventID"`
	EventType string    `json:"eventType"`
	Timestamp time.Time `json:"timestamp"`

	RequestID     string         `json:"requestID"`
	MerchantID    string         `json:"merchantID"`
	Outcome       client.Outcome `json:"outcome,omitempty"`
	ErrorKey      string         `json:"errorKey,omitempty"`
	BankAccountID string         `json:"bankAccountID,omitempty"`
}

func Resolved(status *client.LinkStatus) Event {
	ev := Event{
		EventID:    base.ID(),
		EventType:  TypeResolved,
		Timestamp:  time.Now(),
		RequestID:  status.RequestID,
		MerchantID: status.MerchantID,
		Outcome:    status.Outcome,
		ErrorKey:   status.ErrorKey,
	}
	if status.BankAccount != nil {
		ev.BankAccountID = status.BankAccount.BankAccountID
	}
	return ev
}

func Cancelled(req *client.LinkRequest) Event {
	return Event{
		EventID:    base.ID(),
		EventType:  TypeCancelled,
		Timestamp:  time.Now(),
		RequestID:  req.RequestID,
		MerchantID: req.MerchantID,
	}
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Shutdown(ctx context.Context) error
}

// NewPublisher opens the configured topic. A nil config discards every event.
func NewPublisher(ctx context.Context, logger log.Logger, cfg *config.Events) (Publisher, error) {
	if cfg == nil {
		return &discardPublisher{}, nil
	}
	var topic *pubsub.Topic
	var err error
	switch {
	case cfg.Kafka != nil:
		logger.Log("events", "publishing to kafka", "topic", cfg.Kafka.Topic)
		topic, err = kafkaTopic(cfg.Kafka)
	case cfg.InMem != nil:
		logger.Log("events", "publishing to in-memory topic", "url", cfg.InMem.URL)
		topic, err = Topic(ctx, cfg.InMem.URL)
	default:
		return &discardPublisher{}, nil
	}
	if err != nil {
		return nil, err
	}
	return &topicPublisher{topic: topic, logger: logger}, nil
}

type topicPublisher struct {
	topic  *pubsub.Topic
	logger log.Logger
}

func (p *topicPublisher) Publish(ctx context.Context, event Event) error {
	msg, err := buildMessage(event)
	if err != nil {
		return err
	}
	if err := p.topic.Send(ctx, msg); err != nil {
		p.logger.Log("events", "problem publishing", "eventID", event.EventID, "error", err)
		return err
	}
	return nil
}

func (p *topicPublisher) Shutdown(ctx context.Context) error {
	if p == nil || p.topic == nil {
		return nil
	}
	return p.topic.Shutdown(ctx)
}

func buildMessage(event Event) (*pubsub.Message, error) {
	if event.EventID == "" {
		return nil, errors.New("missing EventID")
	}
	bs, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}
	return &pubsub.Message{
		Body: bs,
		Metadata: map[string]string{
			"eventID":   event.EventID,
			"eventType": event.EventType,
			keyName:     event.RequestID,
		},
	}, nil
}

type discardPublisher struct{}

func (*discardPublisher) Publish(_ context.Context, _ Event) error { return nil }
func (*discardPublisher) Shutdown(_ context.Context) error         { return nil }
