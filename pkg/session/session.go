// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

// Package session carries the caller's merchant and auth context through a bank link.
//
// A Context is built once per inbound request and passed by value. Nothing after
// FromRequest mutates it, so pollers for independent links may share it freely.
package session

import (
	"errors"
	"net/http"
	"strings"

	moovhttp "github.com/moov-io/base/http"
)

var (
	ErrMissingMerchant = errors.New("missing merchant")
	ErrMissingUser     = errors.New("missing user")
)

type Context struct {
	MerchantID string
	UserID     string
	RequestID  string

	// AuthToken is forwarded to the backend when persisting a linked account.
	AuthToken string `json:"-"`

	// ExpectedHolder is the account holder name the merchant is expected to link, if known.
	ExpectedHolder string
}

// FromRequest reads a Context from HTTP headers. The merchant is taken from the
// path variable when non-empty, otherwise from X-Merchant-ID.
func FromRequest(r *http.Request, merchantID string) Context {
	if merchantID == "" {
		merchantID = r.Header.Get("X-Merchant-ID")
	}
	return Context{
		MerchantID:     strings.TrimSpace(merchantID),
		UserID:         strings.TrimSpace(r.Header.Get("X-User-ID")),
		RequestID:      moovhttp.GetRequestID(r),
		AuthToken:      bearerToken(r.Header.Get("Authorization")),
		ExpectedHolder: strings.TrimSpace(r.Header.Get("X-Account-Holder")),
	}
}

func bearerToken(header string) string {
	header = strings.TrimSpace(header)
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return header
}

func (c Context) Validate() error {
	if c.MerchantID == "" {
		return ErrMissingMerchant
	}
	if c.UserID == "" {
		return ErrMissingUser
	}
	return nil
}

// LogValues returns key/value pairs for structured logging. Credentials are never included.
func (c Context) LogValues() []interface{} {
	kv := []interface{}{"merchantID", c.MerchantID, "userID", c.UserID}
	if c.RequestID != "" {
		kv = append(kv, "requestID", c.RequestID)
	}
	return kv
}
