// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package notify

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/moov-io/banklink/pkg/config"
)

type Slack struct {
	webhookURL string
	client     *http.Client
}

func NewSlack(cfg *config.Slack) (*Slack, error) {
	if cfg == nil || cfg.WebhookURL == "" {
		return nil, errors.New("slack: missing webhook url")
	}
	return &Slack{
		webhookURL: cfg.WebhookURL,
		client:     &http.Client{Timeout: 5 * time.Second},
	}, nil
}

func (s *Slack) Info(msg *Message) error {
	return s.send(marshalSlackMessage(linked, msg))
}

func (s *Slack) Critical(msg *Message) error {
	return s.send(marshalSlackMessage(failed, msg))
}

func marshalSlackMessage(s status, msg *Message) string {
	out := fmt.Sprintf("bank link %s for merchant %s %s (%s)", msg.RequestID, msg.MerchantID, s.verb(), msg.Outcome)
	if msg.Detail != "" {
		out += ": " + msg.Detail
	}
	return out
}

type slackRequest struct {
	Text string `json:"text"`
}

func (s *Slack) send(text string) error {
	var body bytes.Buffer
	if err := json.NewEncoder(&body).Encode(slackRequest{Text: text}); err != nil {
		return err
	}
	resp, err := s.client.Post(s.webhookURL, "application/json", &body)
	if err != nil {
		return fmt.Errorf("slack: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("slack: unexpected HTTP status %d", resp.StatusCode)
	}
	return nil
}
