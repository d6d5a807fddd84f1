// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package client

import (
	"time"
)

// LinkState is the lifecycle state of a LinkRequest
type LinkState string

const (
	LinkPending   LinkState = "pending"
	LinkSuccess   LinkState = "success"
	LinkFailed    LinkState = "failed"
	LinkCancelled LinkState = "cancelled"
)

// Terminal reports if no further polls will be made for the link.
func (s LinkState) Terminal() bool {
	return s == LinkSuccess || s == LinkFailed || s == LinkCancelled
}

// LinkRequest is one merchant-initiated attempt to connect a bank account through the provider.
type LinkRequest struct {
	// RequestID is assigned by the provider
	RequestID  string     `json:"requestID"`
	MerchantID string     `json:"merchantID"`
	State      LinkState  `json:"state"`
	CreatedAt  time.Time  `json:"createdAt"`
	ResolvedAt *time.Time `json:"resolvedAt,omitempty"`
}
