// Package market screens a coin-ticker listing for small-cap candidates.
package market

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/R3E-Network/demo_gateway/internal/app/metrics"
	"github.com/R3E-Network/demo_gateway/internal/app/services/health"
	svcerrors "github.com/R3E-Network/demo_gateway/internal/errors"
	"github.com/R3E-Network/demo_gateway/internal/httputil"
	"github.com/R3E-Network/demo_gateway/internal/logging"
)

const (
	// Threshold is the exclusive market-cap ceiling in USD.
	Threshold = 10_000_000
	// MaxCandidates caps all_candidates.
	MaxCandidates = 5
	// DefaultTimeout bounds the ticker fetch.
	DefaultTimeout = 5 * time.Second

	fetchFailedMessage = "API fetch failed"
)

// MarketCandidate is one ticker below Threshold.
type MarketCandidate struct {
	Symbol       string  `json:"symbol"`
	Name         string  `json:"name"`
	PriceUSD     string  `json:"price_usd"`
	MarketCapUSD float64 `json:"market_cap_usd"`
}

// ScreenResult is the /healthz/crypto_data/ payload.
//
// LowestValuedCoin is the first candidate in upstream order, not the one with
// the smallest market cap. The name is kept for wire compatibility.
type ScreenResult struct {
	RequestLatencyMS float64           `json:"request_latency_ms"`
	LowestValuedCoin interface{}       `json:"lowest_valued_coin"`
	AllCandidates    []MarketCandidate `json:"all_candidates"`
}

// Fetcher is the slice of the HTTP client the screener needs.
type Fetcher interface {
	Get(ctx context.Context, name, url string, timeout time.Duration) (*httputil.Response, error)
}

// Screener fetches the listing and filters it.
type Screener struct {
	fetcher Fetcher
	url     string
	timeout time.Duration
	logger  *logging.Logger
}

// Config configures a Screener.
type Config struct {
	Fetcher   Fetcher
	TickerURL string
	Timeout   time.Duration
	Logger    *logging.Logger
}

// NewScreener creates a screener.
func NewScreener(cfg Config) *Screener {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewDefault("market")
	}
	return &Screener{
		fetcher: cfg.Fetcher,
		url:     cfg.TickerURL,
		timeout: timeout,
		logger:  logger,
	}
}

// Screen fetches the listing and returns the candidates. Any failure is an
// upstream ServiceError carrying the cause as details.
func (s *Screener) Screen(ctx context.Context) (*ScreenResult, error) {
	start := time.Now()
	resp, err := s.fetcher.Get(ctx, "ticker", s.url, s.timeout)
	if err != nil {
		return nil, svcerrors.Upstream(fetchFailedMessage, err)
	}
	latency := health.RoundMillis(time.Since(start))

	if !gjson.ValidBytes(resp.Body) {
		return nil, svcerrors.Upstream(fetchFailedMessage, fmt.Errorf("ticker response is not JSON (status %d)", resp.StatusCode))
	}
	root := gjson.ParseBytes(resp.Body)
	if !root.IsObject() {
		return nil, svcerrors.Upstream(fetchFailedMessage, fmt.Errorf("ticker response is not a JSON object (status %d)", resp.StatusCode))
	}

	candidates, err := FilterCandidates(root.Get("data"))
	if err != nil {
		return nil, svcerrors.Upstream(fetchFailedMessage, err)
	}
	metrics.SetScreenerCandidates(len(candidates))
	s.logger.WithContext(ctx).WithField("candidates", len(candidates)).Debug("ticker listing screened")

	result := &ScreenResult{
		RequestLatencyMS: latency,
		LowestValuedCoin: struct{}{},
		AllCandidates:    candidates,
	}
	if len(candidates) > 0 {
		result.LowestValuedCoin = candidates[0]
	}
	if len(candidates) > MaxCandidates {
		result.AllCandidates = candidates[:MaxCandidates]
	}
	return result, nil
}

// FilterCandidates returns every entry of data whose market_cap_usd is set
// and below Threshold, in upstream order. A missing data field yields none.
func FilterCandidates(data gjson.Result) ([]MarketCandidate, error) {
	candidates := make([]MarketCandidate, 0)
	if !data.Exists() || !data.IsArray() {
		return candidates, nil
	}

	var filterErr error
	data.ForEach(func(_, entry gjson.Result) bool {
		capField := entry.Get("market_cap_usd")
		if !isTruthy(capField) {
			return true
		}
		marketCap, err := parseFloat(capField)
		if err != nil {
			filterErr = fmt.Errorf("ticker %q: %w", entry.Get("symbol").String(), err)
			return false
		}
		// Non-finite caps cannot be encoded as JSON.
		if math.IsNaN(marketCap) || math.IsInf(marketCap, 0) || marketCap >= Threshold {
			return true
		}
		candidates = append(candidates, MarketCandidate{
			Symbol:       entry.Get("symbol").String(),
			Name:         entry.Get("name").String(),
			PriceUSD:     entry.Get("price_usd").String(),
			MarketCapUSD: marketCap,
		})
		return true
	})
	if filterErr != nil {
		return nil, filterErr
	}
	return candidates, nil
}

// isTruthy treats missing, null, false, "" and 0 as absent.
func isTruthy(v gjson.Result) bool {
	switch v.Type {
	case gjson.Null:
		return false
	case gjson.False:
		return false
	case gjson.String:
		return v.Str != ""
	case gjson.Number:
		return v.Num != 0
	default:
		return v.Exists()
	}
}

func parseFloat(v gjson.Result) (float64, error) {
	switch v.Type {
	case gjson.Number:
		return v.Num, nil
	case gjson.True:
		return 1, nil
	case gjson.String:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.Str), 64)
		if err != nil {
			return 0, fmt.Errorf("invalid market_cap_usd %q", v.Str)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("invalid market_cap_usd %s", v.Raw)
	}
}
