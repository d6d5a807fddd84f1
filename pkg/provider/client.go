// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/ioutil"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/moov-io/banklink/pkg/client"
	"github.com/moov-io/banklink/pkg/config"
	"github.com/moov-io/banklink/pkg/util"
	"github.com/moov-io/banklink/x/trace"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	"github.com/go-kit/kit/log"
	"github.com/opentracing/opentracing-go"
	"golang.org/x/oauth2/clientcredentials"
)

// Client talks to the account-aggregation provider which connects merchant bank accounts.
type Client interface {
	Ping() error

	// Initiate starts a bank connection for the merchant and returns the provider's request ID.
	Initiate(ctx context.Context, merchantID, userID string) (string, error)

	// Status makes one call to the provider's status endpoint. Any HTTP response is
	// returned as a PollResult; an error is only returned when no usable response was read.
	Status(ctx context.Context, requestID string) (*client.PollResult, error)
}

// StatusError is returned when the provider answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Code       int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("provider returned HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("provider returned HTTP %d: %s", e.StatusCode, e.Message)
}

// Retryable reports if a provider HTTP status might succeed when tried again.
func Retryable(status int) bool {
	return status >= 500 || status == http.StatusTooManyRequests
}

func NewClient(logger log.Logger, cfg config.Provider) (Client, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("provider: missing endpoint")
	}
	u, err := url.Parse(cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("provider: %v", err)
	}
	timeout := util.OrDuration(cfg.Timeout, config.DefaultProviderTimeout)

	httpClient := &http.Client{Timeout: timeout}
	if cfg.ClientID != "" {
		creds := &clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
			Scopes:       cfg.Scopes,
		}
		httpClient = creds.Client(context.Background())
		httpClient.Timeout = timeout
	}

	return &httpProvider{
		endpoint:   strings.TrimSuffix(u.String(), "/"),
		underlying: httpClient,
		breaker:    newBreaker(logger, cfg.CircuitBreaker),
		logger:     logger,
	}, nil
}

type httpProvider struct {
	endpoint   string
	underlying *http.Client
	breaker    circuitbreaker.CircuitBreaker[*http.Response]
	logger     log.Logger
}

func newBreaker(logger log.Logger, cfg *config.CircuitBreaker) circuitbreaker.CircuitBreaker[*http.Response] {
	failures, requests, delay := uint(5), uint(10), 15*time.Second
	if cfg != nil {
		failures, requests = cfg.FailureThreshold, cfg.MinRequests
		if cfg.Delay > 0 {
			delay = cfg.Delay
		}
	}
	return circuitbreaker.NewBuilder[*http.Response]().
		WithFailureThresholdRatio(failures, requests).
		WithDelay(delay).
		WithSuccessThreshold(1).
		HandleIf(func(resp *http.Response, err error) bool {
			if err != nil {
				return true
			}
			return resp != nil && Retryable(resp.StatusCode)
		}).
		OnStateChanged(func(event circuitbreaker.StateChangedEvent) {
			logger.Log("provider", "circuit breaker state change", "from", event.OldState, "to", event.NewState)
		}).
		Build()
}

func (c *httpProvider) Ping() error {
	ctx, cancelFn := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelFn()

	resp, err := c.do(ctx, "provider-ping", "GET", c.endpoint+"/ping", nil)
	if err != nil {
		return fmt.Errorf("provider ping: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &StatusError{StatusCode: resp.StatusCode, Message: "ping failed"}
	}
	return nil
}

type initiateRequest struct {
	MerchantID string `json:"merchantId"`
	UserID     string `json:"userId"`
}

type initiateResponse struct {
	client.Envelope
	Data *struct {
		RequestID string `json:"requestId"`
	} `json:"data"`
}

func (c *httpProvider) Initiate(ctx context.Context, merchantID, userID string) (string, error) {
	var body bytes.Buffer
	if err := json.NewEncoder(&body).Encode(initiateRequest{MerchantID: merchantID, UserID: userID}); err != nil {
		return "", err
	}

	resp, err := c.do(ctx, "provider-initiate", "POST", c.endpoint+"/link-requests", body.Bytes())
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var wrapper initiateResponse
	decodeErr := json.NewDecoder(io.LimitReader(resp.Body, maxBodySize)).Decode(&wrapper)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &StatusError{
			StatusCode: resp.StatusCode,
			Code:       wrapper.Code,
			Message:    wrapper.Message,
		}
	}
	if decodeErr != nil {
		return "", fmt.Errorf("provider: reading initiate response: %v", decodeErr)
	}
	if wrapper.Data == nil || wrapper.Data.RequestID == "" {
		return "", errors.New("provider: initiate response missing requestId")
	}
	return wrapper.Data.RequestID, nil
}

const maxBodySize = 1 << 20

func (c *httpProvider) Status(ctx context.Context, requestID string) (*client.PollResult, error) {
	address := fmt.Sprintf("%s/link-requests/%s", c.endpoint, url.PathEscape(requestID))

	resp, err := c.do(ctx, "provider-status", "GET", address, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	bs, err := ioutil.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("provider: reading status response: %v", err)
	}

	var result client.PollResult
	if err := json.Unmarshal(bs, &result); err != nil {
		if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
			return nil, fmt.Errorf("provider: malformed status response: %v", err)
		}
		// error pages from proxies aren't JSON
		result = client.PollResult{Message: http.StatusText(resp.StatusCode)}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 || result.HTTPStatus == 0 {
		result.HTTPStatus = resp.StatusCode
	}
	return &result, nil
}

func (c *httpProvider) do(ctx context.Context, operation, method, address string, body []byte) (*http.Response, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, operation)
	defer span.Finish()

	resp, err := failsafe.With(c.breaker).WithContext(ctx).Get(func() (*http.Response, error) {
		var rdr io.Reader
		if body != nil {
			rdr = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, address, rdr)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		req = trace.InjectRequest(req, span)
		return c.underlying.Do(req)
	})
	if err != nil {
		if resp != nil && resp.Body != nil {
			resp.Body.Close()
		}
		span.SetTag("error", true)
		if errors.Is(err, circuitbreaker.ErrOpen) {
			return nil, fmt.Errorf("provider %s: %w", operation, err)
		}
		return nil, fmt.Errorf("provider %s: %v", operation, err)
	}
	span.SetTag("http.status_code", resp.StatusCode)
	return resp, nil
}
