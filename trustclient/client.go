// Package trustclient implements interfaces.TrustService over HTTP.
//
// Every call is retried with jittered exponential backoff (package backoff)
// when the service answers with a status on the policy's allow-list or the
// request fails at the transport level. A Retry-After header in whole seconds
// overrides the computed delay.
//
// Endpoints:
//
//	GET  /v1/auth-share     -> 200 AuthShare, 404 not onboarded
//	POST /v1/signers        -> 2xx onboarding started
//	POST /v1/signers/otp    -> 200 OTPResult
//
// Requests carry Authorization: Bearer <jwt>, X-API-Key and X-Device-ID.
package trustclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	cbackoff "github.com/cenkalti/backoff/v4"
	"github.com/ruteri/tee-secure-signer/backoff"
	"github.com/ruteri/tee-secure-signer/interfaces"
	"github.com/ruteri/tee-secure-signer/metrics"
)

const (
	APIKeyHeader   = "X-API-Key"
	DeviceIDHeader = "X-Device-ID"
)

// StatusError is returned for non-success responses once retries are exhausted
// or the status is not retryable.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("trust service returned %d: %s", e.StatusCode, e.Body)
}

// Client talks to the remote trust service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	policy     backoff.Policy
	log        *slog.Logger
	metrics    *metrics.Metrics
}

var _ interfaces.TrustService = (*Client)(nil)

// NewClient creates a trust service client.
//
// Parameters:
//   - baseURL: The base URL of the trust service (e.g., "https://trust.example.com")
//   - timeout: Per-attempt request timeout
//   - policy: Retry policy
func NewClient(baseURL string, timeout time.Duration, policy backoff.Policy, log *slog.Logger, m *metrics.Metrics) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		policy:     policy,
		log:        log,
		metrics:    m,
	}
}

func (c *Client) GetAuthShare(ctx context.Context, deviceID string, auth interfaces.AuthData) (*interfaces.AuthShare, error) {
	status, body, err := c.do(ctx, "get-auth-share", http.MethodGet, "/v1/auth-share", deviceID, auth, nil)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, nil
	}

	var share interfaces.AuthShare
	if err := json.Unmarshal(body, &share); err != nil {
		return nil, fmt.Errorf("could not parse auth share response: %w", err)
	}
	if share.AuthKeyShare == "" || share.DeviceKeyShareHash == "" || share.SignerID == "" {
		return nil, errors.New("incomplete auth share response")
	}
	return &share, nil
}

func (c *Client) CreateSigner(ctx context.Context, deviceID string, auth interfaces.AuthData, params interfaces.CreateSignerParams) error {
	status, body, err := c.do(ctx, "create-signer", http.MethodPost, "/v1/signers", deviceID, auth, params)
	if err != nil {
		return err
	}
	if status == http.StatusNotFound {
		return &StatusError{StatusCode: status, Body: string(body)}
	}
	return nil
}

func (c *Client) SendOTP(ctx context.Context, deviceID string, auth interfaces.AuthData, params interfaces.OTPParams) (*interfaces.OTPResult, error) {
	status, body, err := c.do(ctx, "send-otp", http.MethodPost, "/v1/signers/otp", deviceID, auth, params)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, &StatusError{StatusCode: status, Body: string(body)}
	}

	var result interfaces.OTPResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("could not parse otp response: %w", err)
	}
	if result.SignerID == "" || result.Shares.Device == "" || result.Shares.Auth == "" {
		return nil, errors.New("incomplete otp response")
	}
	return &result, nil
}

// do performs one logical call. It returns the final status and body for 2xx
// and 404 responses; every other outcome is an error.
func (c *Client) do(ctx context.Context, operation, method, path, deviceID string, auth interfaces.AuthData, payload any) (int, []byte, error) {
	var encoded []byte
	if payload != nil {
		var err error
		encoded, err = json.Marshal(payload)
		if err != nil {
			return 0, nil, fmt.Errorf("could not encode request: %w", err)
		}
	}

	var (
		status int
		body   []byte
	)
	bo := c.policy.NewBackOff()

	attempt := func() error {
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(encoded))
		if err != nil {
			return cbackoff.Permanent(fmt.Errorf("could not initialize request: %w", err))
		}
		req.Header.Set("Authorization", "Bearer "+auth.JWT)
		req.Header.Set(APIKeyHeader, auth.APIKey)
		req.Header.Set(DeviceIDHeader, deviceID)
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return cbackoff.Permanent(ctx.Err())
			}
			return fmt.Errorf("could not request trust service: %w", err)
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return fmt.Errorf("could not read trust service response: %w", err)
		}

		if resp.StatusCode/100 == 2 || resp.StatusCode == http.StatusNotFound {
			status, body = resp.StatusCode, respBody
			return nil
		}

		statusErr := &StatusError{StatusCode: resp.StatusCode, Body: string(respBody)}
		if !c.policy.ShouldRetry(bo.Attempt(), resp.StatusCode) {
			return cbackoff.Permanent(statusErr)
		}
		bo.SetRetryAfter(resp.Header.Get("Retry-After"))
		return statusErr
	}

	notify := func(err error, delay time.Duration) {
		c.metrics.CountTrustRetry(operation)
		c.log.Warn("Retrying trust service call",
			slog.String("operation", operation),
			slog.Int("attempt", bo.Attempt()),
			slog.Duration("delay", delay),
			"err", err)
	}

	if err := cbackoff.RetryNotify(attempt, cbackoff.WithContext(bo, ctx), notify); err != nil {
		return 0, nil, err
	}
	return status, body, nil
}
