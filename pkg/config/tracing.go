// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package config

import (
	"fmt"
)

// Tracing enables jaeger spans around outbound calls. A SampleRate of 1.0
// records every span.
type Tracing struct {
	ServiceName string
	SampleRate  float64
}

func (cfg *Tracing) Validate() error {
	if cfg == nil {
		return nil
	}
	if cfg.SampleRate < 0 || cfg.SampleRate > 1 {
		return fmt.Errorf("SampleRate=%v must be between 0 and 1", cfg.SampleRate)
	}
	return nil
}
