package httpapi

import (
	"bytes"
	"encoding/json"
	"io"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/R3E-Network/demo_gateway/internal/app/services/chat"
	"github.com/R3E-Network/demo_gateway/internal/app/services/health"
	"github.com/R3E-Network/demo_gateway/internal/app/services/market"
	"github.com/R3E-Network/demo_gateway/internal/app/services/simulation"
	"github.com/R3E-Network/demo_gateway/internal/app/services/upcoming"
	"github.com/R3E-Network/demo_gateway/internal/app/services/wallet"
	"github.com/R3E-Network/demo_gateway/internal/chain"
	"github.com/R3E-Network/demo_gateway/internal/httputil"
	"github.com/R3E-Network/demo_gateway/internal/logging"
	"github.com/R3E-Network/demo_gateway/internal/middleware"
)

type upstreams struct {
	rpc    *httptest.Server
	ticker *httptest.Server
	chat   *httptest.Server

	rpcStatus  int32
	rpcDelay   time.Duration
	lastRPC    atomic.Value
	lastChat   atomic.Value
	tickerBody string
}

func newUpstreams(t *testing.T) *upstreams {
	t.Helper()
	u := &upstreams{rpcStatus: http.StatusOK}

	u.rpc = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		u.lastRPC.Store(string(body))
		if u.rpcDelay > 0 {
			select {
			case <-time.After(u.rpcDelay):
			case <-r.Context().Done():
				return
			}
		}
		w.WriteHeader(int(atomic.LoadInt32(&u.rpcStatus)))
		w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":"0x10"}`))
	}))
	u.ticker = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(u.tickerBody))
	}))
	u.chat = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		u.lastChat.Store(string(body))
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"hello!"}}]}`))
	}))
	t.Cleanup(func() {
		u.rpc.Close()
		u.ticker.Close()
		u.chat.Close()
	})
	return u
}

type setup struct {
	rpcURL   string
	apiKey   string
	probeTTL time.Duration
	limiter  *middleware.RateLimiter
}

func newTestHandler(t *testing.T, u *upstreams, s setup) http.Handler {
	t.Helper()
	logger := logging.NewDiscard("test")
	client := httputil.NewClient(httputil.ClientConfig{Logger: logger})

	var prober health.BlockNumberer
	var caller simulation.EthCaller
	if s.rpcURL != "" {
		rpc, err := chain.NewClient(chain.Config{RPCURL: s.rpcURL, HTTPClient: client})
		if err != nil {
			t.Fatalf("chain client: %v", err)
		}
		prober, caller = rpc, rpc
	}

	return NewHandler(Options{
		Services: Services{
			Prober:     health.NewProber(health.Config{RPC: prober, Timeout: s.probeTTL, Logger: logger}),
			Screener:   market.NewScreener(market.Config{Fetcher: client, TickerURL: u.ticker.URL, Logger: logger}),
			Chat:       chat.NewRelay(chat.Config{Caller: client, APIURL: u.chat.URL, APIKey: s.apiKey, Logger: logger}),
			Simulation: simulation.NewRelay(simulation.Config{RPC: caller, Logger: logger}),
			Upcoming:   upcoming.NewGenerator(rand.NewSource(7)),
		},
		Logger:         logger,
		ServiceName:    "demo-gateway",
		Version:        "test",
		RPCURL:         s.rpcURL,
		AllowedOrigins: []string{"*"},
		RateLimiter:    s.limiter,
	})
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, req)
	return resp
}

func decode(t *testing.T, resp *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(resp.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", resp.Body.String(), err)
	}
	return out
}

// =============================================================================
// /healthz/data/
// =============================================================================

func TestHealthData(t *testing.T) {
	u := newUpstreams(t)
	h := newTestHandler(t, u, setup{rpcURL: u.rpc.URL})

	for _, tc := range []struct {
		status int32
		web3   bool
	}{
		{http.StatusOK, true},
		{http.StatusServiceUnavailable, false},
		{http.StatusAccepted, false},
	} {
		atomic.StoreInt32(&u.rpcStatus, tc.status)
		resp := do(t, h, http.MethodGet, "/healthz/data/", "")
		if resp.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", resp.Code)
		}
		out := decode(t, resp)
		if out["db"] != false {
			t.Fatalf("db must always be false, got %v", out["db"])
		}
		if out["web3"] != tc.web3 {
			t.Fatalf("upstream %d: expected web3=%v, got %v", tc.status, tc.web3, out["web3"])
		}
		if _, ok := out["latency_ms"].(float64); !ok {
			t.Fatalf("latency_ms missing: %v", out)
		}
		if _, ok := out["timestamp"].(float64); !ok {
			t.Fatalf("timestamp missing: %v", out)
		}
	}

	if got, _ := u.lastRPC.Load().(string); !strings.Contains(got, `"eth_blockNumber"`) || !strings.Contains(got, `"params":[]`) {
		t.Fatalf("unexpected probe payload %s", got)
	}
}

func TestHealthData_TimeoutStillAnswers(t *testing.T) {
	u := newUpstreams(t)
	u.rpcDelay = 2 * time.Second
	h := newTestHandler(t, u, setup{rpcURL: u.rpc.URL, probeTTL: 100 * time.Millisecond})

	start := time.Now()
	resp := do(t, h, http.MethodGet, "/healthz/data/", "")
	elapsed := time.Since(start)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if decode(t, resp)["web3"] != false {
		t.Fatalf("expected web3=false on timeout")
	}
	if elapsed > time.Second {
		t.Fatalf("probe took %s, expected about the timeout", elapsed)
	}
}

func TestHealthData_NoEndpoint(t *testing.T) {
	u := newUpstreams(t)
	resp := do(t, newTestHandler(t, u, setup{}), http.MethodGet, "/healthz/data/", "")
	if resp.Code != http.StatusOK || decode(t, resp)["web3"] != false {
		t.Fatalf("expected 200 web3=false, got %d %s", resp.Code, resp.Body.String())
	}
}

// =============================================================================
// /healthz/crypto_data/
// =============================================================================

func TestCryptoData(t *testing.T) {
	u := newUpstreams(t)
	u.tickerBody = `{"data":[
		{"symbol":"BTC","name":"Bitcoin","price_usd":"60000","market_cap_usd":"1200000000000"},
		{"symbol":"AAA","name":"Alpha","price_usd":"0.1","market_cap_usd":"9000000"},
		{"symbol":"BBB","name":"Beta","price_usd":"0.2","market_cap_usd":"100"}
	]}`
	h := newTestHandler(t, u, setup{})

	resp := do(t, h, http.MethodGet, "/healthz/crypto_data/", "")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	out := decode(t, resp)
	lowest := out["lowest_valued_coin"].(map[string]any)
	if lowest["symbol"] != "AAA" {
		t.Fatalf("expected positional first candidate AAA, got %v", lowest)
	}
	if got := len(out["all_candidates"].([]any)); got != 2 {
		t.Fatalf("expected 2 candidates, got %d", got)
	}
}

func TestCryptoData_UpstreamFailure(t *testing.T) {
	u := newUpstreams(t)
	u.tickerBody = "not json"
	resp := do(t, newTestHandler(t, u, setup{}), http.MethodGet, "/healthz/crypto_data/", "")

	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.Code)
	}
	out := decode(t, resp)
	if out["error"] != "API fetch failed" {
		t.Fatalf("unexpected error %v", out["error"])
	}
	if out["details"] == "" || out["details"] == nil {
		t.Fatalf("expected details, got %v", out)
	}
}

// =============================================================================
// /api/groq/chat/
// =============================================================================

func TestChatAPI(t *testing.T) {
	u := newUpstreams(t)
	h := newTestHandler(t, u, setup{apiKey: "key"})

	resp := do(t, h, http.MethodPost, "/api/groq/chat/", `{"message":"hi"}`)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	out := decode(t, resp)
	if out["ok"] != true || out["answer"] != "hello!" {
		t.Fatalf("unexpected reply %v", out)
	}
	if got, _ := u.lastChat.Load().(string); !strings.Contains(got, `"content":"hi"`) {
		t.Fatalf("message not forwarded: %s", got)
	}

	resp = do(t, h, http.MethodPost, "/api/groq/chat/", `{}`)
	if resp.Code != http.StatusBadRequest || decode(t, resp)["error"] != "No message provided" {
		t.Fatalf("expected 400 No message provided, got %d %s", resp.Code, resp.Body.String())
	}

	resp = do(t, h, http.MethodPost, "/api/groq/chat/", `{oops`)
	if resp.Code != http.StatusBadRequest || decode(t, resp)["error"] != "Invalid JSON" {
		t.Fatalf("expected 400 Invalid JSON, got %d %s", resp.Code, resp.Body.String())
	}

	resp = do(t, h, http.MethodGet, "/api/groq/chat/", "")
	if resp.Code != http.StatusMethodNotAllowed || decode(t, resp)["error"] != "POST required" {
		t.Fatalf("expected 405 POST required, got %d %s", resp.Code, resp.Body.String())
	}
}

func TestChatAPI_MissingCredential(t *testing.T) {
	u := newUpstreams(t)
	h := newTestHandler(t, u, setup{})

	for _, tc := range []struct{ method, body string }{
		{http.MethodPost, `{"message":"hi"}`},
		{http.MethodPost, `{}`},
		{http.MethodGet, ""},
	} {
		resp := do(t, h, tc.method, "/api/groq/chat/", tc.body)
		if resp.Code != http.StatusInternalServerError {
			t.Fatalf("%s %q: expected 500, got %d", tc.method, tc.body, resp.Code)
		}
		if decode(t, resp)["error"] != "Missing GROQ_API_KEY in environment" {
			t.Fatalf("unexpected body %s", resp.Body.String())
		}
	}
}

// =============================================================================
// /api/simulate/
// =============================================================================

func TestSimulateAPI(t *testing.T) {
	u := newUpstreams(t)
	h := newTestHandler(t, u, setup{rpcURL: u.rpc.URL})

	resp := do(t, h, http.MethodPost, "/api/simulate/", `{}`)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	out := decode(t, resp)
	if out["ok"] != true {
		t.Fatalf("expected ok, got %v", out)
	}
	if result := out["response"].(map[string]any)["result"]; result != "0x10" {
		t.Fatalf("node response not passed through: %v", out["response"])
	}
	var sent chain.RPCRequest
	if err := json.Unmarshal([]byte(u.lastRPC.Load().(string)), &sent); err != nil {
		t.Fatalf("decode forwarded request: %v", err)
	}
	if sent.Method != "eth_call" || sent.Params[1] != "latest" {
		t.Fatalf("unexpected forwarded request %+v", sent)
	}
	call := sent.Params[0].(map[string]any)
	if call["to"] != chain.ZeroAddress || call["data"] != "0x" {
		t.Fatalf("expected defaults, got %v", call)
	}

	do(t, h, http.MethodPost, "/api/simulate/", `{"to":"0xabc","data":"0x123"}`)
	if got := u.lastRPC.Load().(string); !strings.Contains(got, `{"to":"0xabc","data":"0x123"}`) {
		t.Fatalf("values not forwarded unchanged: %s", got)
	}
}

func TestSimulateAPI_Failures(t *testing.T) {
	u := newUpstreams(t)

	resp := do(t, newTestHandler(t, u, setup{rpcURL: u.rpc.URL}), http.MethodGet, "/api/simulate/", "")
	if resp.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", resp.Code)
	}
	if out := decode(t, resp); out["ok"] != false || out["error"] != "POST required" {
		t.Fatalf("unexpected body %v", out)
	}

	resp = do(t, newTestHandler(t, u, setup{}), http.MethodPost, "/api/simulate/", `{}`)
	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.Code)
	}
	if out := decode(t, resp); out["ok"] != false || out["error"] != "Missing QUICKNODE_RPC_URL" {
		t.Fatalf("unexpected body %v", out)
	}

	resp = do(t, newTestHandler(t, u, setup{rpcURL: u.rpc.URL}), http.MethodPost, "/api/simulate/", `nope`)
	if resp.Code != http.StatusInternalServerError || decode(t, resp)["ok"] != false {
		t.Fatalf("expected 500 ok=false, got %d %s", resp.Code, resp.Body.String())
	}
}

// =============================================================================
// QR, upcoming, pages, operational routes
// =============================================================================

func TestWalletQR_Idempotent(t *testing.T) {
	h := newTestHandler(t, newUpstreams(t), setup{})

	first := decode(t, do(t, h, http.MethodGet, "/api/wallet/qr/", ""))
	second := decode(t, do(t, h, http.MethodGet, "/api/wallet/qr/", ""))
	if first["uri"] != wallet.SessionURI || second["uri"] != first["uri"] {
		t.Fatalf("uri changed between calls: %v / %v", first["uri"], second["uri"])
	}
	if qr, _ := first["qr"].(string); !strings.HasPrefix(qr, "data:image/png;base64,") {
		t.Fatalf("unexpected qr %.40s", qr)
	}
}

func TestUpcomingData(t *testing.T) {
	out := decode(t, do(t, newTestHandler(t, newUpstreams(t), setup{}), http.MethodGet, "/upcoming/data/", ""))

	gas := out["gas_savings"].(float64)
	latency := out["latency_reduction"].(float64)
	if gas < 5 || gas > 20 || latency < 50 || latency > 200 {
		t.Fatalf("values out of range: %v", out)
	}
	switch out["autonomy_level"] {
	case "Manual", "Semi-Auto", "Full-Auto":
	default:
		t.Fatalf("unexpected autonomy level %v", out["autonomy_level"])
	}
}

func TestPages(t *testing.T) {
	h := newTestHandler(t, newUpstreams(t), setup{rpcURL: "https://rpc.example"})

	for path := range pageRoutes {
		resp := do(t, h, http.MethodGet, path, "")
		if resp.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, resp.Code)
		}
		if ct := resp.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
			t.Fatalf("%s: unexpected content type %q", path, ct)
		}
	}

	resp := do(t, h, http.MethodGet, "/wallet/", "")
	if resp.Code != http.StatusOK || !strings.Contains(resp.Body.String(), "https://rpc.example") {
		t.Fatalf("wallet page missing rpc url: %d", resp.Code)
	}
}

func TestOperationalRoutes(t *testing.T) {
	h := newTestHandler(t, newUpstreams(t), setup{})

	out := decode(t, do(t, h, http.MethodGet, "/health", ""))
	if out["status"] != "healthy" || out["service"] != "demo-gateway" {
		t.Fatalf("unexpected health %v", out)
	}

	out = decode(t, do(t, h, http.MethodGet, "/info", ""))
	stats, ok := out["statistics"].(map[string]any)
	if !ok || stats["goroutines"] == nil {
		t.Fatalf("unexpected info %v", out)
	}

	do(t, h, http.MethodGet, "/healthz/data/", "")
	resp := do(t, h, http.MethodGet, "/metrics", "")
	if resp.Code != http.StatusOK || !strings.Contains(resp.Body.String(), "demo_gateway_http_requests_total") {
		t.Fatalf("metrics not exposed: %d", resp.Code)
	}
}

func TestNotFoundAndTraceHeader(t *testing.T) {
	resp := do(t, newTestHandler(t, newUpstreams(t), setup{}), http.MethodGet, "/admin/", "")
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
	if resp.Header().Get(middleware.TraceHeader) == "" {
		t.Fatalf("expected trace header")
	}
}

func TestAPIRateLimit(t *testing.T) {
	limiter := middleware.NewRateLimiter(1, 1, logging.NewDiscard("test"))
	h := newTestHandler(t, newUpstreams(t), setup{limiter: limiter})

	if resp := do(t, h, http.MethodGet, "/api/wallet/qr/", ""); resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if resp := do(t, h, http.MethodGet, "/api/wallet/qr/", ""); resp.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", resp.Code)
	}
	// Non-API routes are not limited.
	if resp := do(t, h, http.MethodGet, "/upcoming/data/", ""); resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
}
