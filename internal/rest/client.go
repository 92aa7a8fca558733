package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/maticvigil/vigil-go/internal/logger"
)

// retryConfig bounds the retries of a single request. Only transport failures
// are retried; any HTTP response is final.
type retryConfig struct {
	// MaxElapsed is the total time budget across attempts.
	MaxElapsed time.Duration
	// Delay is the base of the exponential backoff.
	Delay time.Duration
	// MaxDelay caps a single wait.
	MaxDelay time.Duration
}

var retryConfigDefault = retryConfig{
	MaxElapsed: 60 * time.Second,
	Delay:      time.Second,
	MaxDelay:   60 * time.Second,
}

func (c retryConfig) opts(ctx context.Context, lggr logger.Logger) []retry.Option {
	return []retry.Option{
		retry.Context(ctx),
		retry.Attempts(0),
		retry.Delay(c.Delay),
		retry.MaxDelay(c.MaxDelay),
		retry.MaxJitter(c.Delay),
		retry.DelayType(retry.CombineDelay(retry.BackOffDelay, retry.RandomDelay)),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			lggr.Debugw("Retrying request", "attempt", n+1, "err", err)
		}),
	}
}

// Option configures a Client.
type Option func(*Client)

// WithRetry overrides the retry budget and backoff base.
func WithRetry(maxElapsed, delay time.Duration) Option {
	return func(c *Client) {
		c.retry.MaxElapsed = maxElapsed
		c.retry.Delay = delay
	}
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// Client talks JSON to the gateway's REST endpoints.
type Client struct {
	http  *http.Client
	lggr  logger.Logger
	retry retryConfig
}

func New(lggr logger.Logger, opts ...Option) *Client {
	c := &Client{
		http:  http.DefaultClient,
		lggr:  lggr.Named("rest"),
		retry: retryConfigDefault,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get fetches url and decodes the response into out. A response whose success
// flag is not set fails with *APIError, unless it is an OpenAPI document.
func (c *Client) Get(ctx context.Context, url string, out any) error {
	return c.call(ctx, http.MethodGet, url, nil, nil, out)
}

// Post sends params as a JSON body. The success flag is left to the caller.
func (c *Client) Post(ctx context.Context, url string, params any, headers map[string]string, out any) error {
	return c.call(ctx, http.MethodPost, url, params, headers, out)
}

func (c *Client) call(ctx context.Context, method, url string, params any, headers map[string]string, out any) error {
	var reqBody []byte
	if params != nil {
		var err error
		reqBody, err = json.Marshal(params)
		if err != nil {
			return fmt.Errorf("error encoding request body: %w", err)
		}
	}
	c.lggr.Debugw("HTTPRequest", "requestType", method, "url", url, "params", string(reqBody), "headers", redact(headers))

	status, body, err := c.do(ctx, method, url, reqBody, headers)
	if err != nil {
		return &ConnectionError{URL: url, Err: err}
	}
	c.lggr.Debugw("HTTPResponse", "url", url, "status", status, "text", string(body))

	if status < 200 || status > 299 {
		return &HTTPError{URL: url, RequestBody: string(reqBody), StatusCode: status, ResponseBody: string(body)}
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return fmt.Errorf("error decoding response from %s: %w", url, err)
	}
	if method == http.MethodGet && !succeeded(envelope) {
		if _, ok := envelope["openapi"]; !ok {
			return &APIError{HTTPError{URL: url, RequestBody: string(reqBody), StatusCode: status, ResponseBody: string(body)}}
		}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("error decoding response from %s: %w", url, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, url string, reqBody []byte, headers map[string]string) (int, []byte, error) {
	rctx, cancel := context.WithTimeout(ctx, c.retry.MaxElapsed)
	defer cancel()

	var (
		status int
		body   []byte
	)
	err := retry.Do(func() error {
		req, err := http.NewRequestWithContext(rctx, method, url, bytes.NewReader(reqBody))
		if err != nil {
			return retry.Unrecoverable(err)
		}
		req.Header.Set("Accept", "application/json")
		if reqBody != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("error reading response body: %w", err)
		}
		status = resp.StatusCode
		return nil
	}, c.retry.opts(rctx, c.lggr)...)

	return status, body, err
}

// Envelope is the common shape of gateway responses.
type Envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error,omitempty"`
}

func succeeded(envelope map[string]json.RawMessage) bool {
	var ok bool
	raw, found := envelope["success"]
	if !found {
		return false
	}
	return json.Unmarshal(raw, &ok) == nil && ok
}

func redact(headers map[string]string) map[string]string {
	if len(headers) == 0 {
		return headers
	}
	out := make(map[string]string, len(headers))
	for k, v := range headers {
		if http.CanonicalHeaderKey(k) == "X-Api-Key" {
			v = "***"
		}
		out[k] = v
	}
	return out
}
