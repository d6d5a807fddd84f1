// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package notify

import (
	"errors"
	"fmt"
	"os"

	"github.com/moov-io/banklink/pkg/config"

	"github.com/PagerDuty/go-pagerduty"
)

type PagerDuty struct {
	routingKey string
	hostname   string

	// manage is pagerduty.ManageEvent outside of tests
	manage func(pagerduty.V2Event) (*pagerduty.V2EventResponse, error)
}

func NewPagerDuty(cfg *config.PagerDuty) (*PagerDuty, error) {
	if cfg == nil || cfg.RoutingKey == "" {
		return nil, errors.New("pagerduty: missing routing key")
	}
	hostname, _ := os.Hostname()
	return &PagerDuty{
		routingKey: cfg.RoutingKey,
		hostname:   hostname,
		manage:     pagerduty.ManageEvent,
	}, nil
}

// Info is a no-op, successful links don't page anyone.
func (pd *PagerDuty) Info(msg *Message) error {
	return nil
}

func (pd *PagerDuty) Critical(msg *Message) error {
	event := pd.event(msg)
	resp, err := pd.manage(event)
	if err != nil {
		return fmt.Errorf("pagerduty: %v", err)
	}
	if resp != nil && resp.Status != "success" {
		return fmt.Errorf("pagerduty: unexpected status %q: %s", resp.Status, resp.Message)
	}
	return nil
}

func (pd *PagerDuty) event(msg *Message) pagerduty.V2Event {
	summary := fmt.Sprintf("bank link %s for merchant %s %s", msg.RequestID, msg.MerchantID, failed.verb())
	if msg.Detail != "" {
		summary += ": " + msg.Detail
	}
	return pagerduty.V2Event{
		RoutingKey: pd.routingKey,
		Action:     "trigger",
		DedupKey:   msg.RequestID,
		Payload: &pagerduty.V2Payload{
			Summary:   summary,
			Source:    pd.hostname,
			Severity:  "critical",
			Component: "banklink",
			Details: map[string]string{
				"merchantID": msg.MerchantID,
				"requestID":  msg.RequestID,
				"outcome":    string(msg.Outcome),
			},
		},
	}
}
