// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

// Package secrets encrypts account numbers before they're written to the database.
// Keys are held by a Go CDK keeper: https://gocloud.dev/ref/secrets/
package secrets

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/moov-io/banklink/pkg/config"

	"github.com/hashicorp/vault/api"
	"gocloud.dev/secrets"
	"gocloud.dev/secrets/gcpkms"
	"gocloud.dev/secrets/hashivault"
	"gocloud.dev/secrets/localsecrets"
)

const defaultTimeout = 10 * time.Second

// AccountKeeper seals account numbers into base64 text suitable for a varchar column.
type AccountKeeper struct {
	keeper  *secrets.Keeper
	timeout time.Duration
}

func NewAccountKeeper(keeper *secrets.Keeper, timeout time.Duration) *AccountKeeper {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &AccountKeeper{keeper: keeper, timeout: timeout}
}

func (k *AccountKeeper) Close() error {
	if k == nil || k.keeper == nil {
		return nil
	}
	return k.keeper.Close()
}

// Seal encrypts accountNumber. Empty input seals to an empty string.
func (k *AccountKeeper) Seal(ctx context.Context, accountNumber string) (string, error) {
	if k == nil {
		return "", errors.New("nil AccountKeeper")
	}
	if accountNumber == "" {
		return "", nil
	}
	ctx, cancel := context.WithTimeout(ctx, k.timeout)
	defer cancel()

	bs, err := k.keeper.Encrypt(ctx, []byte(accountNumber))
	if err != nil {
		return "", fmt.Errorf("sealing account number: %v", err)
	}
	return base64.StdEncoding.EncodeToString(bs), nil
}

// Unseal reverses Seal.
func (k *AccountKeeper) Unseal(ctx context.Context, sealed string) (string, error) {
	if k == nil {
		return "", errors.New("nil AccountKeeper")
	}
	if sealed == "" {
		return "", nil
	}
	bs, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return "", fmt.Errorf("unsealing account number: %v", err)
	}

	ctx, cancel := context.WithTimeout(ctx, k.timeout)
	defer cancel()

	bs, err = k.keeper.Decrypt(ctx, bs)
	if err != nil {
		return "", fmt.Errorf("unsealing account number: %v", err)
	}
	return string(bs), nil
}

// Open returns an AccountKeeper backed by the configured provider.
func Open(ctx context.Context, cfg config.Secrets) (*AccountKeeper, error) {
	var (
		keeper *secrets.Keeper
		err    error
	)
	switch strings.ToLower(cfg.Provider) {
	case "", "local":
		keeper, err = OpenLocal(cfg.LocalBase64Key)
	case "gcp":
		keeper, err = openGCPKMS(ctx, cfg.GCPKeyResourceID)
	case "vault":
		keeper, err = openVault(ctx, cfg.Vault)
	default:
		err = fmt.Errorf("unknown secrets provider=%s", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}
	return NewAccountKeeper(keeper, defaultTimeout), nil
}

// OpenLocal returns an in-memory keeper from a base64 encoded 32 byte key.
// An empty key falls back to a fixed development key.
func OpenLocal(base64Key string) (*secrets.Keeper, error) {
	if base64Key == "" {
		base64Key = base64.StdEncoding.EncodeToString(bytes.Repeat([]byte("1"), 32))
	}
	key, err := localsecrets.Base64Key(base64Key)
	if err != nil {
		return nil, fmt.Errorf("problem reading SECRETS_LOCAL_BASE64_KEY: %v", err)
	}
	return localsecrets.NewKeeper(key), nil
}

// openGCPKMS uses a Cloud KMS key of the form
// projects/MYPROJECT/locations/MYLOCATION/keyRings/MYKEYRING/cryptoKeys/MYKEY
func openGCPKMS(ctx context.Context, resourceID string) (*secrets.Keeper, error) {
	if resourceID == "" {
		return nil, errors.New("gcp: missing key resource ID")
	}
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	// the connection stays open for as long as the keeper is used
	client, _, err := gcpkms.Dial(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("gcp: %v", err)
	}
	return gcpkms.OpenKeeper(client, resourceID, nil), nil
}

func openVault(ctx context.Context, cfg *config.Vault) (*secrets.Keeper, error) {
	if cfg == nil || cfg.KeyPath == "" {
		return nil, errors.New("vault: missing key path")
	}
	address := cfg.ServerURL
	if address == "" {
		address = "http://127.0.0.1:8200"
	}
	client, err := hashivault.Dial(ctx, &hashivault.Config{
		Token: cfg.Token,
		APIConfig: api.Config{
			Address: address,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("vault: %v", err)
	}
	return hashivault.OpenKeeper(client, cfg.KeyPath, nil), nil
}
