// Package httputil provides the outbound HTTP client used to reach third-party APIs
// and the JSON response helpers shared by the handlers.
package httputil

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/R3E-Network/demo_gateway/internal/app/metrics"
	"github.com/R3E-Network/demo_gateway/internal/logging"
)

// DefaultTimeout applies when a Request carries no timeout of its own.
const DefaultTimeout = 10 * time.Second

// maxResponseBytes caps how much of an upstream body is buffered.
const maxResponseBytes = 8 << 20

// =============================================================================
// Failure
// =============================================================================

// FailureKind classifies why a call produced no usable response.
type FailureKind string

const (
	// NetworkError covers connection failures, timeouts and truncated bodies.
	NetworkError FailureKind = "NetworkError"
	// EncodeError means the request body could not be marshalled.
	EncodeError FailureKind = "EncodeError"
)

// Failure is returned instead of a Response when a call did not complete.
type Failure struct {
	Kind    FailureKind
	Detail  string
	Timeout bool
	Err     error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s: %s", f.Kind, f.Detail)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// AsFailure returns the Failure in err's chain, if any.
func AsFailure(err error) (*Failure, bool) {
	var f *Failure
	ok := errors.As(err, &f)
	return f, ok
}

// =============================================================================
// Client
// =============================================================================

// Request describes a single outbound call.
type Request struct {
	// Name labels the call in logs and metrics, e.g. "rpc" or "ticker".
	Name    string
	Method  string
	URL     string
	Body    interface{}
	Headers map[string]string
	Timeout time.Duration
}

// Response is a completed call. Any status code counts as completed.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Client performs outbound calls. It never retries: one attempt per Call.
type Client struct {
	httpClient *http.Client
	logger     *logging.Logger
}

// ClientConfig configures the client.
type ClientConfig struct {
	// HTTPClient overrides the transport; its Timeout is ignored in favour of per-call timeouts.
	HTTPClient *http.Client
	Logger     *logging.Logger
}

// NewClient creates a new outbound client.
func NewClient(cfg ClientConfig) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewDefault("httputil")
	}
	return &Client{
		httpClient: httpClient,
		logger:     logger,
	}
}

// Call executes req within req.Timeout. Transport problems come back as *Failure.
func (c *Client) Call(ctx context.Context, req Request) (*Response, error) {
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	var bodyReader io.Reader
	if req.Body != nil {
		jsonBody, err := json.Marshal(req.Body)
		if err != nil {
			return nil, &Failure{Kind: EncodeError, Detail: fmt.Sprintf("marshal request body: %v", err), Err: err}
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, bodyReader)
	if err != nil {
		return nil, &Failure{Kind: NetworkError, Detail: fmt.Sprintf("create request: %v", err), Err: err}
	}
	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		failure := networkFailure(ctx, "request failed", err)
		c.record(ctx, req.Name, 0, time.Since(start), failure)
		return nil, failure
	}
	defer resp.Body.Close()

	body, err := ReadAllStrict(resp.Body, maxResponseBytes)
	if err != nil {
		failure := networkFailure(ctx, "read response body", err)
		c.record(ctx, req.Name, resp.StatusCode, time.Since(start), failure)
		return nil, failure
	}

	c.record(ctx, req.Name, resp.StatusCode, time.Since(start), nil)
	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
	}, nil
}

// Get performs a GET request.
func (c *Client) Get(ctx context.Context, name, url string, timeout time.Duration) (*Response, error) {
	return c.Call(ctx, Request{Name: name, Method: http.MethodGet, URL: url, Timeout: timeout})
}

// Post performs a POST request with a JSON body.
func (c *Client) Post(ctx context.Context, name, url string, body interface{}, timeout time.Duration) (*Response, error) {
	return c.Call(ctx, Request{Name: name, Method: http.MethodPost, URL: url, Body: body, Timeout: timeout})
}

func (c *Client) record(ctx context.Context, name string, status int, duration time.Duration, err error) {
	outcome := "ok"
	switch {
	case err != nil:
		outcome = "network_error"
	case status >= 400:
		outcome = "http_error"
	}
	metrics.RecordUpstreamCall(name, outcome, duration)
	c.logger.LogUpstream(ctx, name, status, duration, err)
}

func networkFailure(ctx context.Context, op string, err error) *Failure {
	timedOut := errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded)
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		timedOut = true
	}
	return &Failure{
		Kind:    NetworkError,
		Detail:  fmt.Sprintf("%s: %v", op, err),
		Timeout: timedOut,
		Err:     err,
	}
}

// =============================================================================
// Response decoding
// =============================================================================

// DecodeJSON decodes the response body into target regardless of status code.
func (r *Response) DecodeJSON(target interface{}) error {
	if err := json.Unmarshal(r.Body, target); err != nil {
		return fmt.Errorf("decode response (status %d): %w", r.StatusCode, err)
	}
	return nil
}

// IsJSON reports whether the body is syntactically valid JSON.
func (r *Response) IsJSON() bool {
	return json.Valid(r.Body)
}
