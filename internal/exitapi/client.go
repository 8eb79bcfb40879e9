// internal/exitapi/client.go
package exitapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"

	"github.com/lasersell/lasersell/internal/stream"
)

const (
	// BaseURL is the production exit api.
	BaseURL = "https://api.lasersell.io"
	// LocalBaseURL is used when account.local is set.
	LocalBaseURL = "http://localhost:8080"

	DefaultConnectTimeout = 200 * time.Millisecond
	DefaultAttemptTimeout = 900 * time.Millisecond
	DefaultMaxAttempts    = 2
	DefaultRetryBackoff   = 25 * time.Millisecond

	errorBodySnippetLen = 220
)

// ErrZeroAmount is returned before any request when amount_tokens is zero.
var ErrZeroAmount = errors.New("amount_tokens must be greater than zero")

// SellRequest is the payload for POST /v1/sell.
type SellRequest struct {
	Mint          string                   `json:"mint"`
	UserPubkey    string                   `json:"user_pubkey"`
	AmountTokens  uint64                   `json:"amount_tokens"`
	SlippageBps   *uint16                  `json:"slippage_bps,omitempty"`
	Mode          *string                  `json:"mode,omitempty"`
	Output        *string                  `json:"output,omitempty"`
	ReferralID    *string                  `json:"referral_id,omitempty"`
	MarketContext *stream.MarketContextMsg `json:"market_context,omitempty"`
}

// Options tunes the transport and retry policy.
type Options struct {
	BaseURL        string
	ConnectTimeout time.Duration
	AttemptTimeout time.Duration
	MaxAttempts    uint
	RetryBackoff   time.Duration
	HTTPClient     *http.Client
}

// DefaultOptions returns production settings, or local ones when local is set.
func DefaultOptions(local bool) Options {
	base := BaseURL
	if local {
		base = LocalBaseURL
	}
	return Options{
		BaseURL:        base,
		ConnectTimeout: DefaultConnectTimeout,
		AttemptTimeout: DefaultAttemptTimeout,
		MaxAttempts:    DefaultMaxAttempts,
		RetryBackoff:   DefaultRetryBackoff,
	}
}

// Client builds unsigned sell transactions over HTTP.
type Client struct {
	http           *http.Client
	apiKey         string
	baseURL        string
	attemptTimeout time.Duration
	maxAttempts    uint
	retryBackoff   time.Duration
	logger         *zap.Logger
}

// NewClient creates an exit api client.
func NewClient(apiKey string, opts Options, logger *zap.Logger) *Client {
	if opts.AttemptTimeout <= 0 {
		opts.AttemptTimeout = DefaultAttemptTimeout
	}
	if opts.MaxAttempts == 0 {
		opts.MaxAttempts = 1
	}
	if opts.BaseURL == "" {
		opts.BaseURL = BaseURL
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = newHTTPClient(opts.ConnectTimeout)
	}
	return &Client{
		http:           httpClient,
		apiKey:         apiKey,
		baseURL:        strings.TrimRight(opts.BaseURL, "/"),
		attemptTimeout: opts.AttemptTimeout,
		maxAttempts:    opts.MaxAttempts,
		retryBackoff:   opts.RetryBackoff,
		logger:         logger.Named("exitapi"),
	}
}

func newHTTPClient(connectTimeout time.Duration) *http.Client {
	dialer := &net.Dialer{Timeout: connectTimeout}
	return &http.Client{
		Transport: &http.Transport{
			Proxy:               nil,
			DialContext:         dialer.DialContext,
			MaxIdleConnsPerHost: 4,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}

// BuildSellTx requests an unsigned sell transaction and returns it base64 encoded.
func (c *Client) BuildSellTx(ctx context.Context, req SellRequest) (string, error) {
	if req.AmountTokens == 0 {
		return "", ErrZeroAmount
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return "", &APIError{Kind: ErrorParse, Detail: "failed to encode request body", Err: err}
	}
	endpoint := c.baseURL + "/v1/sell"

	operation := func() (string, error) {
		tx, err := c.attempt(ctx, endpoint, payload)
		if err != nil {
			var apiErr *APIError
			if errors.As(err, &apiErr) && apiErr.IsRetryable() {
				return "", err
			}
			return "", backoff.Permanent(err)
		}
		return tx, nil
	}

	policy := backoff.NewConstantBackOff(c.retryBackoff)
	return backoff.Retry(ctx, operation,
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(c.maxAttempts),
		backoff.WithNotify(func(err error, next time.Duration) {
			c.logger.Debug("Retrying sell build",
				zap.String("mint", req.Mint),
				zap.Duration("next", next),
				zap.Error(err))
		}),
	)
}

func (c *Client) attempt(ctx context.Context, endpoint string, payload []byte) (string, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.attemptTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", &APIError{Kind: ErrorTransport, Err: err}
	}
	req.Header.Set("content-type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", &APIError{Kind: ErrorTransport, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &APIError{Kind: ErrorTransport, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &APIError{
			Kind:       ErrorHTTPStatus,
			StatusCode: resp.StatusCode,
			Body:       summarizeErrorBody(body),
		}
	}
	return ParseResponse(body)
}

// ErrorKind classifies exit api failures.
type ErrorKind string

const (
	ErrorTransport      ErrorKind = "transport"
	ErrorHTTPStatus     ErrorKind = "http_status"
	ErrorEnvelopeStatus ErrorKind = "envelope_status"
	ErrorParse          ErrorKind = "parse"
)

// APIError is returned for transport, status and schema failures.
type APIError struct {
	Kind       ErrorKind
	StatusCode int
	Status     string
	Body       string
	Detail     string
	Err        error
}

func (e *APIError) Error() string {
	switch e.Kind {
	case ErrorTransport:
		return fmt.Sprintf("request failed: %v", e.Err)
	case ErrorHTTPStatus:
		return fmt.Sprintf("http status %d: %s", e.StatusCode, e.Body)
	case ErrorEnvelopeStatus:
		return fmt.Sprintf("exit-api status %s: %s", e.Status, e.Detail)
	case ErrorParse:
		if e.Err != nil {
			return fmt.Sprintf("failed to parse response: %v", e.Err)
		}
		return fmt.Sprintf("failed to parse response: %s", e.Detail)
	}
	return "exit-api error"
}

func (e *APIError) Unwrap() error { return e.Err }

// IsRetryable reports whether the request may be repeated.
func (e *APIError) IsRetryable() bool {
	switch e.Kind {
	case ErrorTransport:
		return true
	case ErrorHTTPStatus:
		return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
	}
	return false
}
