// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package secrets

import (
	"crypto/rand"
	"encoding/base64"
	"testing"
)

// TestAccountKeeper returns an AccountKeeper with a random local key.
// It's closed when the test finishes.
func TestAccountKeeper(t *testing.T) *AccountKeeper {
	t.Helper()

	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		t.Fatal(err)
	}
	keeper, err := OpenLocal(base64.StdEncoding.EncodeToString(key))
	if err != nil {
		t.Fatal(err)
	}
	k := NewAccountKeeper(keeper, 0)
	t.Cleanup(func() { k.Close() })
	return k
}
