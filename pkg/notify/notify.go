// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package notify

import (
	"github.com/moov-io/banklink/pkg/client"
)

// Message describes one resolved bank link for operators.
type Message struct {
	MerchantID string
	RequestID  string
	Outcome    client.Outcome

	// Detail is an optional error or note, e.g. why persistence failed
	Detail string
}

type Sender interface {
	Info(msg *Message) error
	Critical(msg *Message) error
}

type status string

const (
	linked status = "linked"
	failed status = "failed"
)

func (s status) verb() string {
	if s == linked {
		return "was linked"
	}
	return "failed to link"
}
