// Package health measures reachability and round-trip latency of the RPC node.
package health

import (
	"context"
	"math"
	"net/http"
	"time"

	"github.com/R3E-Network/demo_gateway/internal/app/metrics"
	"github.com/R3E-Network/demo_gateway/internal/chain"
	"github.com/R3E-Network/demo_gateway/internal/logging"
)

// DefaultTimeout bounds the eth_blockNumber probe.
const DefaultTimeout = 3 * time.Second

// LatencyProbeResult is the /healthz/data/ payload.
type LatencyProbeResult struct {
	Timestamp int64 `json:"timestamp"`
	// DB is a placeholder; no database check is performed.
	DB        bool    `json:"db"`
	Web3      bool    `json:"web3"`
	LatencyMS float64 `json:"latency_ms"`
}

// BlockNumberer is the slice of the chain client the prober needs.
type BlockNumberer interface {
	BlockNumber(ctx context.Context, timeout time.Duration) (*chain.RawResult, error)
}

// Prober issues one synthetic RPC call per Probe.
type Prober struct {
	rpc     BlockNumberer
	timeout time.Duration
	logger  *logging.Logger
	now     func() time.Time
}

// Config configures a Prober. RPC may be nil when no endpoint is configured.
type Config struct {
	RPC     BlockNumberer
	Timeout time.Duration
	Logger  *logging.Logger
}

// NewProber creates a prober.
func NewProber(cfg Config) *Prober {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewDefault("health")
	}
	return &Prober{
		rpc:     cfg.RPC,
		timeout: timeout,
		logger:  logger,
		now:     time.Now,
	}
}

// Probe never fails: every error is reported as Web3 == false.
func (p *Prober) Probe(ctx context.Context) LatencyProbeResult {
	start := p.now()
	reachable := p.reachable(ctx)
	elapsed := p.now().Sub(start)

	metrics.RecordProbe(reachable, elapsed)

	return LatencyProbeResult{
		Timestamp: p.now().Unix(),
		DB:        false,
		Web3:      reachable,
		LatencyMS: RoundMillis(elapsed),
	}
}

func (p *Prober) reachable(ctx context.Context) bool {
	if p.rpc == nil {
		p.logger.WithContext(ctx).Warn("latency probe skipped: no RPC endpoint configured")
		return false
	}
	result, err := p.rpc.BlockNumber(ctx, p.timeout)
	if err != nil {
		p.logger.WithContext(ctx).WithError(err).Warn("latency probe failed")
		return false
	}
	return result.StatusCode == http.StatusOK
}

// RoundMillis converts d to milliseconds rounded to two decimals.
func RoundMillis(d time.Duration) float64 {
	ms := float64(d) / float64(time.Millisecond)
	return math.Round(ms*100) / 100
}
