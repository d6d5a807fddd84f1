// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package linking

import (
	"context"
	"errors"
	"net/http"

	"github.com/moov-io/banklink/pkg/client"
	"github.com/moov-io/banklink/pkg/provider"
	"github.com/moov-io/banklink/pkg/session"

	"github.com/jonboulle/clockwork"
)

// Initiator starts bank links with the provider. It holds no state of its own.
type Initiator struct {
	client provider.Client
	clock  clockwork.Clock
}

func NewInitiator(clock clockwork.Clock, client provider.Client) *Initiator {
	return &Initiator{
		client: client,
		clock:  clock,
	}
}

// Start returns a pending LinkRequest, or an *InitiationError when the session is
// invalid or the provider refused or couldn't be reached.
func (i *Initiator) Start(ctx context.Context, sess session.Context) (*client.LinkRequest, error) {
	if err := sess.Validate(); err != nil {
		return nil, &InitiationError{StatusCode: http.StatusBadRequest, Err: err}
	}

	requestID, err := i.client.Initiate(ctx, sess.MerchantID, sess.UserID)
	if err != nil {
		var se *provider.StatusError
		if errors.As(err, &se) {
			return nil, &InitiationError{StatusCode: se.StatusCode, Err: err}
		}
		return nil, &InitiationError{Err: err}
	}
	if requestID == "" {
		return nil, &InitiationError{Err: errors.New("provider returned an empty request ID")}
	}

	return &client.LinkRequest{
		RequestID:  requestID,
		MerchantID: sess.MerchantID,
		State:      client.LinkPending,
		CreatedAt:  i.clock.Now(),
	}, nil
}
