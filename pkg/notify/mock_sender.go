// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package notify

import (
	"sync"
)

// MockSender records every Message it's handed, keyed by level.
type MockSender struct {
	Err error

	mu       sync.Mutex
	info     []*Message
	critical []*Message
}

func (s *MockSender) Info(msg *Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.info = append(s.info, msg)
	return s.Err
}

func (s *MockSender) Critical(msg *Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.critical = append(s.critical, msg)
	return s.Err
}

func (s *MockSender) InfoWasCalled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.info) > 0
}

func (s *MockSender) CriticalWasCalled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.critical) > 0
}

// CapturedMessage returns the most recent Message of either level.
func (s *MockSender) CapturedMessage() *Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n := len(s.critical); n > 0 {
		return s.critical[n-1]
	}
	if n := len(s.info); n > 0 {
		return s.info[n-1]
	}
	return nil
}

// Sent returns how many messages were delivered at each level.
func (s *MockSender) Sent() (info int, critical int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.info), len(s.critical)
}
