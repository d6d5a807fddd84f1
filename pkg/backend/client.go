// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/moov-io/banklink/pkg/client"
	"github.com/moov-io/banklink/pkg/config"
	"github.com/moov-io/banklink/pkg/util"
	"github.com/moov-io/banklink/x/trace"

	"github.com/go-kit/kit/log"
	"github.com/opentracing/opentracing-go"
)

// Client persists verified bank accounts with the merchant-lending backend.
type Client interface {
	Ping() error

	SaveBankAccount(ctx context.Context, merchantID, authToken string, candidate client.BankAccountCandidate) (*client.BankAccount, error)
}

// StatusError is returned when the backend responds with a non-2xx status or a failed envelope.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("backend returned HTTP %d: %s", e.StatusCode, e.Message)
}

func NewClient(logger log.Logger, cfg config.Backend) (Client, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("backend: missing endpoint")
	}
	u, err := url.Parse(cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("backend: %v", err)
	}
	timeout := util.OrDuration(cfg.Timeout, config.DefaultBackendTimeout)
	return &httpBackend{
		endpoint:   strings.TrimSuffix(u.String(), "/"),
		underlying: &http.Client{Timeout: timeout},
		logger:     logger,
	}, nil
}

type httpBackend struct {
	endpoint   string
	underlying *http.Client
	logger     log.Logger
}

func (c *httpBackend) Ping() error {
	ctx, cancelFn := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelFn()

	req, err := http.NewRequestWithContext(ctx, "GET", c.endpoint+"/ping", nil)
	if err != nil {
		return err
	}
	resp, err := c.underlying.Do(req)
	if err != nil {
		return fmt.Errorf("backend ping: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &StatusError{StatusCode: resp.StatusCode, Message: "ping failed"}
	}
	return nil
}

type saveResponse struct {
	client.Envelope
	Data *client.BankAccount `json:"data"`
}

func (c *httpBackend) SaveBankAccount(ctx context.Context, merchantID, authToken string, candidate client.BankAccountCandidate) (*client.BankAccount, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "backend-save-bank-account")
	defer span.Finish()

	var body bytes.Buffer
	if err := json.NewEncoder(&body).Encode(candidate); err != nil {
		return nil, err
	}

	address := fmt.Sprintf("%s/merchants/%s/bank-accounts", c.endpoint, url.PathEscape(merchantID))
	req, err := http.NewRequestWithContext(ctx, "POST", address, &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if authToken != "" {
		req.Header.Set("Authorization", "Bearer "+authToken)
	}
	req = trace.InjectRequest(req, span)

	resp, err := c.underlying.Do(req)
	if err != nil {
		span.SetTag("error", true)
		return nil, fmt.Errorf("backend: saving bank account: %v", err)
	}
	defer resp.Body.Close()
	span.SetTag("http.status_code", resp.StatusCode)

	var wrapper saveResponse
	decodeErr := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&wrapper)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Message: wrapper.Message}
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("backend: reading response: %v", decodeErr)
	}
	if wrapper.Status >= 400 || wrapper.Data == nil {
		return nil, &StatusError{StatusCode: wrapper.Status, Message: wrapper.Message}
	}

	c.logger.Log("backend", "saved bank account", "merchantID", merchantID, "bankAccountID", wrapper.Data.BankAccountID)

	return wrapper.Data, nil
}
