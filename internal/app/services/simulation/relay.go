// Package simulation relays caller-supplied eth_call parameters to the RPC node.
package simulation

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/R3E-Network/demo_gateway/internal/chain"
	svcerrors "github.com/R3E-Network/demo_gateway/internal/errors"
	"github.com/R3E-Network/demo_gateway/internal/logging"
)

// DefaultTimeout bounds the eth_call relay.
const DefaultTimeout = 5 * time.Second

// Result is the relay's success payload.
type Result struct {
	OK       bool            `json:"ok"`
	Response json.RawMessage `json:"response"`
}

// EthCaller is the slice of the chain client the relay needs.
type EthCaller interface {
	EthCall(ctx context.Context, msg chain.CallMsg, block string, timeout time.Duration) (*chain.RawResult, error)
}

// Relay forwards simulations.
type Relay struct {
	rpc     EthCaller
	timeout time.Duration
	logger  *logging.Logger
}

// Config configures a Relay. RPC may be nil when no endpoint is configured.
type Config struct {
	RPC     EthCaller
	Timeout time.Duration
	Logger  *logging.Logger
}

// NewRelay creates a relay.
func NewRelay(cfg Config) *Relay {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewDefault("simulation")
	}
	return &Relay{rpc: cfg.RPC, timeout: timeout, logger: logger}
}

// Relay checks method then endpoint, builds the call and forwards it. The
// node's JSON answer is returned untouched.
func (r *Relay) Relay(ctx context.Context, method string, body []byte) (*Result, error) {
	if method != http.MethodPost {
		return nil, svcerrors.MethodNotAllowed("POST required")
	}
	if r.rpc == nil {
		return nil, svcerrors.Configuration("Missing QUICKNODE_RPC_URL")
	}

	msg, err := BuildCall(body)
	if err != nil {
		return nil, svcerrors.Internal("invalid request body", err)
	}

	result, err := r.rpc.EthCall(ctx, msg, chain.BlockLatest, r.timeout)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Warn("eth_call relay failed")
		return nil, svcerrors.Upstream(err.Error(), err)
	}
	return &Result{OK: true, Response: json.RawMessage(result.Body)}, nil
}

// BuildCall decodes body into a CallMsg, filling in defaults for absent
// fields. Present fields are forwarded as given, whatever their JSON type.
func BuildCall(body []byte) (chain.CallMsg, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return chain.CallMsg{}, err
	}
	if fields == nil {
		return chain.CallMsg{}, fmt.Errorf("request body must be a JSON object")
	}

	msg := chain.CallMsg{To: chain.ZeroAddress, Data: chain.EmptyData}
	if raw, ok := fields["to"]; ok {
		msg.To = raw
	}
	if raw, ok := fields["data"]; ok {
		msg.Data = raw
	}
	return msg, nil
}
