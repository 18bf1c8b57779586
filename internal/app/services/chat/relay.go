// Package chat relays a single user message to a chat-completion API.
package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/PaesslerAG/jsonpath"

	svcerrors "github.com/R3E-Network/demo_gateway/internal/errors"
	"github.com/R3E-Network/demo_gateway/internal/httputil"
	"github.com/R3E-Network/demo_gateway/internal/logging"
)

const (
	// DefaultModel is the model identifier sent upstream.
	DefaultModel = "llama3-8b-8192"
	// DefaultTimeout bounds the completion call.
	DefaultTimeout = 15 * time.Second
	// Temperature is fixed for every request.
	Temperature = 0.7
	// NoResponse is the answer when the upstream reply has an unexpected shape.
	NoResponse = "No response"
	// ReplyPath locates the answer in a completion response.
	ReplyPath = "$.choices[0].message.content"
)

// Message is one chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest is the body sent upstream.
type CompletionRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
}

// Reply is the relay's success payload.
type Reply struct {
	OK     bool   `json:"ok"`
	Answer string `json:"answer"`
}

// Caller is the slice of the HTTP client the relay needs.
type Caller interface {
	Call(ctx context.Context, req httputil.Request) (*httputil.Response, error)
}

// Relay forwards messages. It keeps no history between calls.
type Relay struct {
	caller  Caller
	apiURL  string
	apiKey  string
	model   string
	timeout time.Duration
	logger  *logging.Logger
}

// Config configures a Relay.
type Config struct {
	Caller  Caller
	APIURL  string
	APIKey  string
	Model   string
	Timeout time.Duration
	Logger  *logging.Logger
}

// NewRelay creates a relay. An empty APIKey is accepted; Relay reports it per request.
func NewRelay(cfg Config) *Relay {
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewDefault("chat")
	}
	return &Relay{
		caller:  cfg.Caller,
		apiURL:  cfg.APIURL,
		apiKey:  cfg.APIKey,
		model:   model,
		timeout: timeout,
		logger:  logger,
	}
}

// Relay validates an inbound request and forwards the message. Checks run in
// order: credential, method, body, message.
func (r *Relay) Relay(ctx context.Context, method string, body []byte) (*Reply, error) {
	if r.apiKey == "" {
		return nil, svcerrors.Configuration("Missing GROQ_API_KEY in environment")
	}
	if method != http.MethodPost {
		return nil, svcerrors.MethodNotAllowed("POST required")
	}
	message, err := ParseMessage(body)
	if err != nil {
		return nil, err
	}

	answer, err := r.Complete(ctx, message)
	if err != nil {
		return nil, err
	}
	return &Reply{OK: true, Answer: answer}, nil
}

// ParseMessage extracts a non-empty "message" string from a JSON object body.
func ParseMessage(body []byte) (string, error) {
	var payload map[string]interface{}
	if err := json.Unmarshal(body, &payload); err != nil || payload == nil {
		return "", svcerrors.Validation("Invalid JSON")
	}
	message, _ := payload["message"].(string)
	if message == "" {
		return "", svcerrors.Validation("No message provided")
	}
	return message, nil
}

// Complete sends message upstream and extracts the reply text.
func (r *Relay) Complete(ctx context.Context, message string) (string, error) {
	resp, err := r.caller.Call(ctx, httputil.Request{
		Name:   "chat",
		Method: http.MethodPost,
		URL:    r.apiURL,
		Body: CompletionRequest{
			Model:       r.model,
			Messages:    []Message{{Role: "user", Content: message}},
			Temperature: Temperature,
		},
		Headers: map[string]string{"Authorization": "Bearer " + r.apiKey},
		Timeout: r.timeout,
	})
	if err != nil {
		return "", svcerrors.Upstream(err.Error(), err)
	}

	var decoded interface{}
	if err := resp.DecodeJSON(&decoded); err != nil {
		return "", svcerrors.Upstream(err.Error(), err)
	}
	if resp.StatusCode != http.StatusOK {
		r.logger.WithContext(ctx).WithField("status", resp.StatusCode).Warn("chat API returned non-200")
	}
	return ExtractAnswer(decoded), nil
}

// ExtractAnswer reads ReplyPath from a decoded completion response.
func ExtractAnswer(decoded interface{}) string {
	value, err := jsonpath.Get(ReplyPath, decoded)
	if err != nil {
		return NoResponse
	}
	answer, ok := value.(string)
	if !ok {
		return NoResponse
	}
	return answer
}

// String describes the relay target without the credential.
func (r *Relay) String() string {
	return fmt.Sprintf("chat relay (%s, model %s)", r.apiURL, r.model)
}
