// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/moov-io/banklink/pkg/client"
	"github.com/moov-io/banklink/pkg/config"

	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	"github.com/go-kit/kit/log"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/require"
)

type testProvider struct {
	statuses  []int
	bodies    []string
	initiated int32
	polled    int32
}

func (p *testProvider) handler() http.Handler {
	r := mux.NewRouter()
	r.Methods("GET").Path("/ping").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Methods("POST").Path("/link-requests").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&p.initiated, 1)

		var req initiateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.MerchantID == "" {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, `{"status": 400, "message": "missing merchantId", "code": 1001}`)
			return
		}
		w.WriteHeader(http.StatusCreated)
		fmt.Fprintf(w, `{"status": 201, "message": "ok", "data": {"requestId": "req-%s"}}`, req.MerchantID)
	})
	r.Methods("GET").Path("/link-requests/{requestID}").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := int(atomic.AddInt32(&p.polled, 1)) - 1
		if n >= len(p.statuses) {
			n = len(p.statuses) - 1
		}
		w.WriteHeader(p.statuses[n])
		fmt.Fprint(w, p.bodies[n])
	})
	return r
}

func newTestClient(t *testing.T, p *testProvider, breaker *config.CircuitBreaker) (Client, *httptest.Server) {
	t.Helper()

	server := httptest.NewServer(p.handler())
	t.Cleanup(server.Close)

	c, err := NewClient(log.NewNopLogger(), config.Provider{
		Endpoint:       server.URL,
		Timeout:        time.Second,
		CircuitBreaker: breaker,
	})
	require.NoError(t, err)
	return c, server
}

func TestClient__Ping(t *testing.T) {
	c, _ := newTestClient(t, &testProvider{}, nil)
	require.NoError(t, c.Ping())
}

func TestClient__Initiate(t *testing.T) {
	p := &testProvider{}
	c, _ := newTestClient(t, p, nil)

	requestID, err := c.Initiate(context.Background(), "m1", "u1")
	require.NoError(t, err)
	require.Equal(t, "req-m1", requestID)

	// rejected
	_, err = c.Initiate(context.Background(), "", "u1")
	var se *StatusError
	require.True(t, errors.As(err, &se))
	require.Equal(t, http.StatusBadRequest, se.StatusCode)
	require.Equal(t, 1001, se.Code)
	require.Contains(t, se.Error(), "missing merchantId")
}

func TestClient__Status(t *testing.T) {
	p := &testProvider{
		statuses: []int{200, 200, 422, 502},
		bodies: []string{
			`{"status": 200, "message": "pending", "code": 0, "data": null}`,
			`{"status": 200, "message": "ok", "code": 0, "data": {"state": "success", "account": {"institutionNumber": "001", "transitNumber": "12345", "accountNumber": "1234567", "holderName": "Jane Doe", "verified": true}}}`,
			`{"status": 422, "message": "bad account", "code": 0, "data": {"state": "failed", "reason": "account_type"}}`,
			`<html>Bad Gateway</html>`,
		},
	}
	c, _ := newTestClient(t, p, nil)
	ctx := context.Background()

	res, err := c.Status(ctx, "req1")
	require.NoError(t, err)
	require.Equal(t, 200, res.HTTPStatus)
	require.Nil(t, res.Data)

	res, err = c.Status(ctx, "req1")
	require.NoError(t, err)
	require.Equal(t, client.TerminalSuccess, res.Data.State)
	require.Equal(t, "Jane Doe", res.Data.Account.HolderName)
	require.True(t, res.Data.Account.Verified)

	res, err = c.Status(ctx, "req1")
	require.NoError(t, err)
	require.Equal(t, 422, res.HTTPStatus)
	require.Equal(t, "account_type", res.Data.Reason)

	res, err = c.Status(ctx, "req1")
	require.NoError(t, err)
	require.Equal(t, 502, res.HTTPStatus)
	require.Equal(t, "Bad Gateway", res.Message)
}

func TestClient__StatusMalformed(t *testing.T) {
	p := &testProvider{
		statuses: []int{200},
		bodies:   []string{`{"status": `},
	}
	c, _ := newTestClient(t, p, nil)

	_, err := c.Status(context.Background(), "req1")
	require.Error(t, err)
	require.True(t, strings.Contains(err.Error(), "malformed"))
}

func TestClient__CircuitBreaker(t *testing.T) {
	p := &testProvider{
		statuses: []int{503},
		bodies:   []string{`{"status": 503, "message": "down"}`},
	}
	c, _ := newTestClient(t, p, &config.CircuitBreaker{
		FailureThreshold: 2,
		MinRequests:      2,
		Delay:            time.Minute,
	})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		res, err := c.Status(ctx, "req1")
		require.NoError(t, err)
		require.Equal(t, 503, res.HTTPStatus)
	}

	// breaker is open, the provider isn't called
	_, err := c.Status(ctx, "req1")
	require.True(t, errors.Is(err, circuitbreaker.ErrOpen), "unexpected error: %v", err)
	require.Equal(t, int32(2), atomic.LoadInt32(&p.polled))
}

func TestClient__cancelled(t *testing.T) {
	p := &testProvider{
		statuses: []int{200},
		bodies:   []string{`{"status": 200}`},
	}
	c, _ := newTestClient(t, p, nil)

	ctx, cancelFn := context.WithCancel(context.Background())
	cancelFn()

	_, err := c.Status(ctx, "req1")
	require.Error(t, err)
}

func TestNewClient__errors(t *testing.T) {
	_, err := NewClient(log.NewNopLogger(), config.Provider{})
	require.Error(t, err)
}

func TestRetryable(t *testing.T) {
	for _, status := range []int{429, 500, 502, 503, 504} {
		require.True(t, Retryable(status), "status %d", status)
	}
	for _, status := range []int{200, 400, 404, 408, 422, 424} {
		require.False(t, Retryable(status), "status %d", status)
	}
}

func TestMockClient(t *testing.T) {
	mock := &MockClient{
		RequestID: "req1",
		Results: []*client.PollResult{
			{HTTPStatus: 200},
			{HTTPStatus: 424},
		},
	}
	id, err := mock.Initiate(context.Background(), "m", "u")
	require.NoError(t, err)
	require.Equal(t, "req1", id)

	for _, expected := range []int{200, 424, 424} {
		res, err := mock.Status(context.Background(), id)
		require.NoError(t, err)
		require.Equal(t, expected, res.HTTPStatus)
	}
	require.Equal(t, 3, mock.Calls())
}
