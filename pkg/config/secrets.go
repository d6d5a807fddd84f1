// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package config

import (
	"fmt"
	"strings"
)

// Secrets configures the keeper used to encrypt account numbers at rest.
type Secrets struct {
	// Provider is one of: local (default), gcp, vault
	Provider string

	LocalBase64Key string `json:"-"`

	GCPKeyResourceID string

	Vault *Vault
}

type Vault struct {
	ServerURL string
	Token     string `json:"-"`
	KeyPath   string
}

func (cfg Secrets) Validate() error {
	switch strings.ToLower(cfg.Provider) {
	case "", "local":
		return nil
	case "gcp":
		if cfg.GCPKeyResourceID == "" {
			return fmt.Errorf("gcp: missing GCPKeyResourceID")
		}
		return nil
	case "vault":
		if cfg.Vault == nil || cfg.Vault.KeyPath == "" {
			return fmt.Errorf("vault: missing KeyPath")
		}
		return nil
	}
	return fmt.Errorf("unknown secrets provider %q", cfg.Provider)
}
