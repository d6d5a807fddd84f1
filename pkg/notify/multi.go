// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package notify

import (
	"fmt"

	"github.com/moov-io/banklink/pkg/config"
	"github.com/moov-io/base"

	"github.com/go-kit/kit/log"
)

// MultiSender delivers each Message to every configured Sender. One failing
// channel doesn't stop the others, and all failures are returned together.
type MultiSender struct {
	logger  log.Logger
	senders map[string]Sender
}

func NewMultiSender(logger log.Logger, cfg *config.Notifications) (*MultiSender, error) {
	ms := &MultiSender{
		logger:  logger,
		senders: make(map[string]Sender),
	}
	if cfg == nil {
		return ms, nil
	}
	var el base.ErrorList
	if cfg.Email != nil {
		sender, err := NewEmail(cfg.Email)
		ms.add(&el, "email", sender, err)
	}
	if cfg.PagerDuty != nil {
		sender, err := NewPagerDuty(cfg.PagerDuty)
		ms.add(&el, "pagerduty", sender, err)
	}
	if cfg.Slack != nil {
		sender, err := NewSlack(cfg.Slack)
		ms.add(&el, "slack", sender, err)
	}
	if !el.Empty() {
		return nil, el
	}
	return ms, nil
}

func (ms *MultiSender) add(el *base.ErrorList, name string, sender Sender, err error) {
	if err != nil {
		el.Add(fmt.Errorf("%s: %v", name, err))
		return
	}
	ms.senders[name] = sender
}

func (ms *MultiSender) Info(msg *Message) error {
	return ms.deliver("info", msg, Sender.Info)
}

func (ms *MultiSender) Critical(msg *Message) error {
	return ms.deliver("critical", msg, Sender.Critical)
}

func (ms *MultiSender) deliver(level string, msg *Message, send func(Sender, *Message) error) error {
	var el base.ErrorList
	for name, sender := range ms.senders {
		if err := send(sender, msg); err != nil {
			ms.logger.Log("notify", name, "level", level, "linkRequestID", msg.RequestID, "error", err)
			el.Add(err)
		}
	}
	if el.Empty() {
		return nil
	}
	return el
}
