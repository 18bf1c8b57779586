// Package chain provides the EVM JSON-RPC calls used by the gateway.
package chain

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/R3E-Network/demo_gateway/internal/httputil"
)

// ZeroAddress is the default eth_call target.
const ZeroAddress = "0x0000000000000000000000000000000000000000"

// EmptyData is the default eth_call input.
const EmptyData = "0x"

// BlockLatest is the block tag simulations run against.
const BlockLatest = "latest"

// Client sends JSON-RPC requests to a single node endpoint.
type Client struct {
	rpcURL string
	http   *httputil.Client
}

// Config holds client configuration.
type Config struct {
	RPCURL     string
	HTTPClient *httputil.Client
}

// NewClient creates a new JSON-RPC client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.RPCURL == "" {
		return nil, fmt.Errorf("RPC URL required")
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = httputil.NewClient(httputil.ClientConfig{})
	}
	return &Client{
		rpcURL: cfg.RPCURL,
		http:   httpClient,
	}, nil
}

// URL returns the node endpoint.
func (c *Client) URL() string {
	return c.rpcURL
}

// =============================================================================
// Core RPC Methods
// =============================================================================

// Send posts req and returns the node's answer without interpreting it.
func (c *Client) Send(ctx context.Context, req RPCRequest, timeout time.Duration) (*RawResult, error) {
	resp, err := c.http.Call(ctx, httputil.Request{
		Name:    "rpc",
		Method:  "POST",
		URL:     c.rpcURL,
		Body:    req,
		Timeout: timeout,
	})
	if err != nil {
		return nil, err
	}
	return &RawResult{StatusCode: resp.StatusCode, Body: resp.Body}, nil
}

// BlockNumber issues eth_blockNumber. Only transport failures are errors;
// callers inspect StatusCode themselves.
func (c *Client) BlockNumber(ctx context.Context, timeout time.Duration) (*RawResult, error) {
	return c.Send(ctx, NewRequest("eth_blockNumber"), timeout)
}

// EthCall issues eth_call for msg at block and requires a JSON answer.
func (c *Client) EthCall(ctx context.Context, msg CallMsg, block string, timeout time.Duration) (*RawResult, error) {
	if block == "" {
		block = BlockLatest
	}
	result, err := c.Send(ctx, NewRequest("eth_call", msg, block), timeout)
	if err != nil {
		return nil, err
	}
	if !json.Valid(result.Body) {
		return nil, fmt.Errorf("eth_call: node returned non-JSON body (status %d)", result.StatusCode)
	}
	return result, nil
}
