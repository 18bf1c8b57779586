// Package main runs the demo gateway: RPC health probe, market screener,
// chat and simulation relays, wallet QR and the demo pages.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/R3E-Network/demo_gateway/internal/app/httpapi"
	"github.com/R3E-Network/demo_gateway/internal/app/services/chat"
	"github.com/R3E-Network/demo_gateway/internal/app/services/health"
	"github.com/R3E-Network/demo_gateway/internal/app/services/market"
	"github.com/R3E-Network/demo_gateway/internal/app/services/simulation"
	"github.com/R3E-Network/demo_gateway/internal/app/services/upcoming"
	"github.com/R3E-Network/demo_gateway/internal/chain"
	"github.com/R3E-Network/demo_gateway/internal/config"
	"github.com/R3E-Network/demo_gateway/internal/httputil"
	"github.com/R3E-Network/demo_gateway/internal/logging"
	"github.com/R3E-Network/demo_gateway/internal/middleware"
)

const serviceName = "demo-gateway"

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := config.LoadDotEnv(os.Getenv("DOTENV_FILE")); err != nil {
		log.Fatalf("Failed to load .env: %v", err)
	}
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	level := cfg.LogLevel
	if cfg.Debug {
		level = "debug"
	}
	logger := logging.New(serviceName, level, cfg.LogFormat)

	httpClient := httputil.NewClient(httputil.ClientConfig{Logger: logger})

	// Nil interfaces, not typed nil pointers, when no endpoint is configured.
	var (
		probeRPC    health.BlockNumberer
		simulateRPC simulation.EthCaller
	)
	if cfg.RPCURL == "" {
		logger.Warn("QUICKNODE_RPC_URL not set; probe reports web3=false and simulation is disabled")
	} else if client, clientErr := chain.NewClient(chain.Config{RPCURL: cfg.RPCURL, HTTPClient: httpClient}); clientErr != nil {
		logger.WithError(clientErr).Warn("failed to initialize chain client")
	} else {
		probeRPC, simulateRPC = client, client
	}
	if cfg.GroqAPIKey == "" {
		logger.Warn("GROQ_API_KEY not set; chat relay will answer 500")
	}

	chatRelay := chat.NewRelay(chat.Config{
		Caller:  httpClient,
		APIURL:  cfg.ChatAPIURL,
		APIKey:  cfg.GroqAPIKey,
		Model:   cfg.ChatModel,
		Timeout: cfg.ChatTimeout,
		Logger:  logger,
	})
	logger.Infof("using %s", chatRelay)

	limiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, logger)
	limiter.StartCleanup(ctx, 5*time.Minute)

	handler := httpapi.NewHandler(httpapi.Options{
		Services: httpapi.Services{
			Prober: health.NewProber(health.Config{
				RPC:     probeRPC,
				Timeout: cfg.ProbeTimeout,
				Logger:  logger,
			}),
			Screener: market.NewScreener(market.Config{
				Fetcher:   httpClient,
				TickerURL: cfg.TickerURL,
				Timeout:   cfg.TickerTimeout,
				Logger:    logger,
			}),
			Chat: chatRelay,
			Simulation: simulation.NewRelay(simulation.Config{
				RPC:     simulateRPC,
				Timeout: cfg.SimulateTimeout,
				Logger:  logger,
			}),
			Upcoming: upcoming.NewGenerator(nil),
		},
		Logger:         logger,
		ServiceName:    serviceName,
		Version:        version,
		RPCURL:         cfg.RPCURL,
		AllowedOrigins: cfg.Origins(),
		RateLimiter:    limiter,
	})

	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		logger.WithField("addr", cfg.ListenAddr).Info("demo gateway listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("Shutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("server shutdown failed")
	}
	logger.Info("Server stopped")
}
