// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package client

// Envelope wraps responses from the provider and backend.
type Envelope struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
	Code    int    `json:"code,omitempty"`
}
