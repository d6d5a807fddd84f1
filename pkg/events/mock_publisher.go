// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package events

import (
	"context"
	"sync"
)

type MockPublisher struct {
	Err error

	mu     sync.Mutex
	events []Event
}

func (p *MockPublisher) Publish(ctx context.Context, event Event) error {
	if p.Err != nil {
		return p.Err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *MockPublisher) Shutdown(ctx context.Context) error {
	return nil
}

func (p *MockPublisher) Events() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Event, len(p.events))
	copy(out, p.events)
	return out
}
