// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/moov-io/banklink/pkg/client"
	"github.com/moov-io/banklink/pkg/config"

	"github.com/go-kit/kit/log"
	"github.com/gorilla/mux"
)

func testBackend(t *testing.T, fail bool) Client {
	t.Helper()

	r := mux.NewRouter()
	r.Methods("GET").Path("/ping").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Methods("POST").Path("/merchants/{merchantID}/bank-accounts").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail {
			w.WriteHeader(http.StatusInternalServerError)
			fmt.Fprint(w, `{"status": 500, "message": "database down"}`)
			return
		}
		if r.Header.Get("Authorization") != "Bearer token" {
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprint(w, `{"status": 401, "message": "unauthorized"}`)
			return
		}
		var candidate client.BankAccountCandidate
		if err := json.NewDecoder(r.Body).Decode(&candidate); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":  201,
			"message": "created",
			"data": client.BankAccount{
				BankAccountID:       "ba1",
				MerchantID:          mux.Vars(r)["merchantID"],
				TransitNumber:       candidate.TransitNumber,
				MaskedAccountNumber: "****4567",
				HolderName:          candidate.HolderName,
				Verified:            candidate.Verified,
			},
		})
	})
	server := httptest.NewServer(r)
	t.Cleanup(server.Close)

	c, err := NewClient(log.NewNopLogger(), config.Backend{Endpoint: server.URL})
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestBackend__Ping(t *testing.T) {
	if err := testBackend(t, false).Ping(); err != nil {
		t.Fatal(err)
	}
}

func TestBackend__SaveBankAccount(t *testing.T) {
	c := testBackend(t, false)

	candidate := client.BankAccountCandidate{
		InstitutionNumber: "001",
		TransitNumber:     "12345",
		AccountNumber:     "1234567",
		HolderName:        "Jane Doe",
		Verified:          true,
	}
	account, err := c.SaveBankAccount(context.Background(), "m1", "token", candidate)
	if err != nil {
		t.Fatal(err)
	}
	if account.BankAccountID != "ba1" || account.MerchantID != "m1" {
		t.Errorf("unexpected account: %#v", account)
	}

	// missing auth
	_, err = c.SaveBankAccount(context.Background(), "m1", "", candidate)
	var se *StatusError
	if !errors.As(err, &se) || se.StatusCode != http.StatusUnauthorized {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestBackend__SaveBankAccountError(t *testing.T) {
	c := testBackend(t, true)

	_, err := c.SaveBankAccount(context.Background(), "m1", "token", client.BankAccountCandidate{})
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("unexpected error: %v", err)
	}
	if se.StatusCode != http.StatusInternalServerError || se.Message != "database down" {
		t.Errorf("unexpected error: %v", se)
	}
}

func TestBackend__NewClient(t *testing.T) {
	if _, err := NewClient(log.NewNopLogger(), config.Backend{}); err == nil {
		t.Error("expected error")
	}
}

func TestMockClient(t *testing.T) {
	mock := &MockClient{}
	account, err := mock.SaveBankAccount(context.Background(), "m1", "", client.BankAccountCandidate{AccountNumber: "123456789"})
	if err != nil {
		t.Fatal(err)
	}
	if account.MaskedAccountNumber != "*****6789" {
		t.Errorf("got %q", account.MaskedAccountNumber)
	}
	if n := mock.SavedCount(); n != 1 {
		t.Errorf("saved %d", n)
	}

	mock.Err = errors.New("bad")
	if _, err := mock.SaveBankAccount(context.Background(), "m1", "", client.BankAccountCandidate{}); err == nil {
		t.Error("expected error")
	}
}
