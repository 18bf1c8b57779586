// Package config loads the process-wide settings once at startup.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
)

// Config is read once at startup and passed by value to each component.
type Config struct {
	ListenAddr string `env:"LISTEN_ADDR,default=:8000"`

	RPCURL            string `env:"QUICKNODE_RPC_URL"`
	BaseTestnetRPCURL string `env:"BASE_TESTNET_RPC_URL"`

	GroqAPIKey string `env:"GROQ_API_KEY"`
	ChatAPIURL string `env:"GROQ_API_URL,default=https://api.groq.com/openai/v1/chat/completions"`
	ChatModel  string `env:"GROQ_MODEL,default=llama3-8b-8192"`

	TickerURL string `env:"TICKER_API_URL,default=https://api.coinlore.net/api/tickers/?start=0&limit=20"`

	ProbeTimeout    time.Duration `env:"PROBE_TIMEOUT,default=3s"`
	TickerTimeout   time.Duration `env:"TICKER_TIMEOUT,default=5s"`
	ChatTimeout     time.Duration `env:"CHAT_TIMEOUT,default=15s"`
	SimulateTimeout time.Duration `env:"SIMULATE_TIMEOUT,default=5s"`

	AllowedOrigins string `env:"ALLOWED_ORIGINS"`
	RateLimitRPS   int    `env:"RATE_LIMIT_RPS,default=10"`
	RateLimitBurst int    `env:"RATE_LIMIT_BURST,default=20"`

	LogLevel  string `env:"LOG_LEVEL,default=info"`
	LogFormat string `env:"LOG_FORMAT,default=text"`
	Debug     bool   `env:"DEBUG,default=false"`

	UpstreamsFile string `env:"UPSTREAMS_FILE"`
}

// LoadDotEnv loads path into the environment if the file exists. Variables
// already set in the process win.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// Load decodes Config from the environment and applies UPSTREAMS_FILE if set.
func Load() (Config, error) {
	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return Config{}, fmt.Errorf("decode environment: %w", err)
	}
	cfg.applyDefaults()

	if cfg.UpstreamsFile != "" {
		upstreams, err := LoadUpstreams(cfg.UpstreamsFile)
		if err != nil {
			return Config{}, err
		}
		cfg.ApplyUpstreams(upstreams)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Default returns the configuration used when nothing is set in the environment.
func Default() Config {
	var cfg Config
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	c.RPCURL = strings.TrimSpace(c.RPCURL)
	if c.RPCURL == "" {
		c.RPCURL = strings.TrimSpace(c.BaseTestnetRPCURL)
	}
	c.GroqAPIKey = strings.TrimSpace(c.GroqAPIKey)

	if c.ListenAddr == "" {
		c.ListenAddr = ":8000"
	}
	if c.ChatAPIURL == "" {
		c.ChatAPIURL = "https://api.groq.com/openai/v1/chat/completions"
	}
	if c.ChatModel == "" {
		c.ChatModel = "llama3-8b-8192"
	}
	if c.TickerURL == "" {
		c.TickerURL = "https://api.coinlore.net/api/tickers/?start=0&limit=20"
	}
	if c.ProbeTimeout <= 0 {
		c.ProbeTimeout = 3 * time.Second
	}
	if c.TickerTimeout <= 0 {
		c.TickerTimeout = 5 * time.Second
	}
	if c.ChatTimeout <= 0 {
		c.ChatTimeout = 15 * time.Second
	}
	if c.SimulateTimeout <= 0 {
		c.SimulateTimeout = 5 * time.Second
	}
	if c.RateLimitRPS <= 0 {
		c.RateLimitRPS = 10
	}
	if c.RateLimitBurst <= 0 {
		c.RateLimitBurst = 20
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogFormat == "" {
		c.LogFormat = "text"
	}
}

// Validate checks the URLs that are set. Empty RPC URL and API key are allowed:
// the affected endpoints report them per request.
func (c Config) Validate() error {
	for name, raw := range map[string]string{
		"QUICKNODE_RPC_URL": c.RPCURL,
		"GROQ_API_URL":      c.ChatAPIURL,
		"TICKER_API_URL":    c.TickerURL,
	} {
		if raw == "" {
			continue
		}
		if err := validateURL(raw); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

// Origins returns the CORS allow-list.
func (c Config) Origins() []string {
	return splitAndTrimCSV(c.AllowedOrigins)
}

func splitAndTrimCSV(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
