// Package httpapi exposes the gateway's JSON endpoints and demo pages.
package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/R3E-Network/demo_gateway/internal/app/metrics"
	"github.com/R3E-Network/demo_gateway/internal/app/services/chat"
	"github.com/R3E-Network/demo_gateway/internal/app/services/health"
	"github.com/R3E-Network/demo_gateway/internal/app/services/market"
	"github.com/R3E-Network/demo_gateway/internal/app/services/simulation"
	"github.com/R3E-Network/demo_gateway/internal/app/services/upcoming"
	"github.com/R3E-Network/demo_gateway/internal/app/services/wallet"
	svcerrors "github.com/R3E-Network/demo_gateway/internal/errors"
	"github.com/R3E-Network/demo_gateway/internal/httputil"
	"github.com/R3E-Network/demo_gateway/internal/logging"
	"github.com/R3E-Network/demo_gateway/internal/middleware"
)

// maxRequestBody bounds inbound JSON bodies.
const maxRequestBody = 1 << 20

// Services are the components behind the JSON routes.
type Services struct {
	Prober     *health.Prober
	Screener   *market.Screener
	Chat       *chat.Relay
	Simulation *simulation.Relay
	Upcoming   *upcoming.Generator
}

// Options configures the handler.
type Options struct {
	Services Services
	Logger   *logging.Logger

	ServiceName string
	Version     string
	// RPCURL is shown on the wallet page.
	RPCURL string

	AllowedOrigins []string
	// RateLimiter guards /api/. Nil disables limiting.
	RateLimiter *middleware.RateLimiter
}

// handler bundles HTTP endpoints for the gateway services.
type handler struct {
	services Services
	logger   *logging.Logger
	pages    *pageRenderer
	info     *infoProvider
	rpcURL   string
}

// NewHandler returns the fully wrapped router.
func NewHandler(opts Options) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewDefault("gateway")
	}
	name := opts.ServiceName
	if name == "" {
		name = logger.Service()
	}

	h := &handler{
		services: opts.Services,
		logger:   logger,
		pages:    newPageRenderer(),
		info:     newInfoProvider(name, opts.Version),
		rpcURL:   opts.RPCURL,
	}

	router := mux.NewRouter()
	router.Use(middleware.MetricsMiddleware())
	h.registerRoutes(router, opts)

	var root http.Handler = router
	root = middleware.NewCORSMiddleware(opts.AllowedOrigins).Handler(root)
	root = middleware.NewTracingMiddleware(logger).Handler(root)
	root = middleware.RecoveryMiddleware(logger)(root)
	return root
}

// =============================================================================
// Routes
// =============================================================================

func (h *handler) registerRoutes(router *mux.Router, opts Options) {
	// Operational
	router.HandleFunc("/health", h.info.health).Methods(http.MethodGet)
	router.HandleFunc("/info", h.info.infoHandler).Methods(http.MethodGet)
	router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	// Probes and data
	router.HandleFunc("/healthz/data/", h.healthData).Methods(http.MethodGet)
	router.HandleFunc("/healthz/crypto_data/", h.cryptoData).Methods(http.MethodGet)
	router.HandleFunc("/upcoming/data/", h.upcomingData).Methods(http.MethodGet)

	// Relays answer wrong methods themselves.
	api := router.PathPrefix("/api/").Subrouter()
	if opts.RateLimiter != nil {
		api.Use(opts.RateLimiter.Handler)
	}
	api.HandleFunc("/groq/chat/", h.chatAPI)
	api.HandleFunc("/simulate/", h.simulateAPI)
	api.HandleFunc("/wallet/qr/", h.walletQR).Methods(http.MethodGet)

	// Pages
	for path, page := range pageRoutes {
		router.HandleFunc(path, h.page(page)).Methods(http.MethodGet)
	}
	router.HandleFunc("/wallet/", h.walletPage).Methods(http.MethodGet)

	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteError(w, http.StatusNotFound, "not found")
	})
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
}

// =============================================================================
// JSON endpoints
// =============================================================================

func (h *handler) healthData(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, h.services.Prober.Probe(r.Context()))
}

func (h *handler) cryptoData(w http.ResponseWriter, r *http.Request) {
	result, err := h.services.Screener.Screen(r.Context())
	if err != nil {
		h.logger.WithContext(r.Context()).WithError(err).Error("market screen failed")
		httputil.WriteServiceError(w, err, true)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *handler) chatAPI(w http.ResponseWriter, r *http.Request) {
	body := readBody(r)
	reply, err := h.services.Chat.Relay(r.Context(), r.Method, body)
	if err != nil {
		h.logRelayError(r, "chat", err)
		httputil.WriteServiceError(w, err, false)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, reply)
}

// simulateErrorResponse is the simulation relay's failure shape.
type simulateErrorResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

func (h *handler) simulateAPI(w http.ResponseWriter, r *http.Request) {
	body := readBody(r)
	result, err := h.services.Simulation.Relay(r.Context(), r.Method, body)
	if err != nil {
		h.logRelayError(r, "simulation", err)
		status, message := http.StatusInternalServerError, err.Error()
		if svcErr := svcerrors.GetServiceError(err); svcErr != nil {
			status, message = svcErr.HTTPStatus, svcErr.Cause()
		}
		httputil.WriteJSON(w, status, simulateErrorResponse{OK: false, Error: message})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *handler) walletQR(w http.ResponseWriter, r *http.Request) {
	code, err := wallet.Generate()
	if err != nil {
		h.logger.WithContext(r.Context()).WithError(err).Error("qr render failed")
		httputil.InternalError(w, err.Error())
		return
	}
	httputil.WriteJSON(w, http.StatusOK, code)
}

func (h *handler) upcomingData(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, h.services.Upcoming.Next())
}

// =============================================================================
// Helpers
// =============================================================================

// readBody returns the request body, or nil when it cannot be read. The
// relays report a nil body as invalid input after their own precondition checks.
func readBody(r *http.Request) []byte {
	if r.Body == nil {
		return nil
	}
	body, err := httputil.ReadAllStrict(r.Body, maxRequestBody)
	if err != nil {
		return nil
	}
	return body
}

func (h *handler) logRelayError(r *http.Request, relay string, err error) {
	entry := h.logger.WithContext(r.Context()).WithError(err).WithField("relay", relay)
	if svcerrors.IsValidation(err) {
		entry.Debug("relay request rejected")
		return
	}
	entry.Error("relay request failed")
}
