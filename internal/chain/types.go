package chain

import (
	"encoding/json"
	"fmt"
)

// RPCRequest is a JSON-RPC 2.0 request.
type RPCRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int           `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

// NewRequest builds a request with id 1. Params always serialise as an array.
func NewRequest(method string, params ...interface{}) RPCRequest {
	if params == nil {
		params = []interface{}{}
	}
	return RPCRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  method,
		Params:  params,
	}
}

// RPCError is the error member of a JSON-RPC response.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

// RPCResponse is a decoded JSON-RPC 2.0 response.
type RPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// CallMsg is the transaction object of eth_call. Fields are kept as decoded
// JSON values so caller input reaches the node unchanged.
type CallMsg struct {
	To   interface{} `json:"to"`
	Data interface{} `json:"data"`
}

// RawResult is the node's HTTP answer, body untouched.
type RawResult struct {
	StatusCode int
	Body       json.RawMessage
}

// Decode parses the body as a JSON-RPC response.
func (r *RawResult) Decode() (*RPCResponse, error) {
	var resp RPCResponse
	if err := json.Unmarshal(r.Body, &resp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	return &resp, nil
}
