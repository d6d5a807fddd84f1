// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package util

import (
	"testing"
	"time"
)

func TestOr(t *testing.T) {
	if v := Or("", "  ", "backend"); v != "backend" {
		t.Errorf("got %q", v)
	}
	if v := Or("provider", "backend"); v != "provider" {
		t.Errorf("got %q", v)
	}
	if v := Or(); v != "" {
		t.Errorf("got %q", v)
	}
}

func TestOrDuration(t *testing.T) {
	if v := OrDuration(0, -time.Second, 3*time.Second); v != 3*time.Second {
		t.Errorf("got %v", v)
	}
	if v := OrDuration(time.Minute, time.Second); v != time.Minute {
		t.Errorf("got %v", v)
	}
	if v := OrDuration(); v != 0 {
		t.Errorf("got %v", v)
	}
}
