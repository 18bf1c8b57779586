package config

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Upstreams overrides third-party endpoints from a YAML file. Zero fields are ignored.
//
//	rpc:
//	  url: https://example.quiknode.pro/abc
//	  probe_timeout: 3s
//	chat:
//	  url: https://api.groq.com/openai/v1/chat/completions
//	  model: llama3-8b-8192
//	ticker:
//	  url: https://api.coinlore.net/api/tickers/?start=0&limit=20
type Upstreams struct {
	RPC struct {
		URL             string        `yaml:"url"`
		ProbeTimeout    time.Duration `yaml:"probe_timeout"`
		SimulateTimeout time.Duration `yaml:"simulate_timeout"`
	} `yaml:"rpc"`
	Chat struct {
		URL     string        `yaml:"url"`
		Model   string        `yaml:"model"`
		Timeout time.Duration `yaml:"timeout"`
	} `yaml:"chat"`
	Ticker struct {
		URL     string        `yaml:"url"`
		Timeout time.Duration `yaml:"timeout"`
	} `yaml:"ticker"`
}

// LoadUpstreams reads and validates an upstreams file.
func LoadUpstreams(path string) (*Upstreams, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read upstreams config: %w", err)
	}

	var u Upstreams
	if err := yaml.Unmarshal(data, &u); err != nil {
		return nil, fmt.Errorf("failed to parse upstreams config: %w", err)
	}

	for name, raw := range map[string]string{
		"rpc.url":    u.RPC.URL,
		"chat.url":   u.Chat.URL,
		"ticker.url": u.Ticker.URL,
	} {
		if raw == "" {
			continue
		}
		if err := validateURL(raw); err != nil {
			return nil, fmt.Errorf("upstreams %s: %w", name, err)
		}
	}

	return &u, nil
}

// ApplyUpstreams copies the non-zero fields of u onto c.
func (c *Config) ApplyUpstreams(u *Upstreams) {
	if u == nil {
		return
	}
	if u.RPC.URL != "" {
		c.RPCURL = u.RPC.URL
	}
	if u.RPC.ProbeTimeout > 0 {
		c.ProbeTimeout = u.RPC.ProbeTimeout
	}
	if u.RPC.SimulateTimeout > 0 {
		c.SimulateTimeout = u.RPC.SimulateTimeout
	}
	if u.Chat.URL != "" {
		c.ChatAPIURL = u.Chat.URL
	}
	if u.Chat.Model != "" {
		c.ChatModel = u.Chat.Model
	}
	if u.Chat.Timeout > 0 {
		c.ChatTimeout = u.Chat.Timeout
	}
	if u.Ticker.URL != "" {
		c.TickerURL = u.Ticker.URL
	}
	if u.Ticker.Timeout > 0 {
		c.TickerTimeout = u.Ticker.Timeout
	}
}

func validateURL(raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("parse %q: %w", raw, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("%q: scheme must be http or https", raw)
	}
	if parsed.Host == "" {
		return fmt.Errorf("%q: host required", raw)
	}
	return nil
}
