package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"glittr/core/events"
	"glittr/native/escrow"
	"glittr/native/ledger"
	"glittr/observability/logging"
	"glittr/observability/metrics"
	"glittr/observability/otel"
	"glittr/services/trustlock-gateway/auth"
	"glittr/services/trustlock-gateway/config"
	"glittr/services/trustlock-gateway/grader"
	"glittr/services/trustlock-gateway/middleware"
	"glittr/services/trustlock-gateway/recon"
	"glittr/services/trustlock-gateway/server"
	"glittr/services/trustlock-gateway/store"
	"glittr/services/trustlock-gateway/watcher"
)

func main() {
	configPath := flag.String("config", "trustlock.toml", "path to the gateway configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.Setup(logging.Options{Service: "trustlock-gateway"}).Error("load configuration", "error", err)
		os.Exit(1)
	}

	logger := logging.Setup(logging.Options{
		Service:    "trustlock-gateway",
		Env:        cfg.Environment,
		Level:      cfg.LogLevel,
		FilePath:   cfg.LogFile,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Traces || cfg.Metrics {
		shutdown, err := otel.Init(ctx, otel.Config{
			ServiceName: "trustlock-gateway",
			Environment: cfg.Environment,
			Endpoint:    cfg.OTLPEndpoint,
			Insecure:    cfg.OTLPInsecure,
			Headers:     otel.ParseHeaders(cfg.OTLPHeaders),
			Traces:      cfg.Traces,
			Metrics:     false,
		})
		if err != nil {
			logger.Error("initialise telemetry", "error", err)
			os.Exit(1)
		}
		defer func() {
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(flushCtx); err != nil {
				logger.Error("telemetry shutdown", "error", err)
			}
		}()
	}

	db, err := store.Open(cfg.DatabaseDSN)
	if err != nil {
		logger.Error("open store", "error", err)
		os.Exit(1)
	}

	led := ledger.New()
	if accounts, err := db.LoadWallets(); err != nil {
		logger.Error("load wallet snapshot", "error", err)
		os.Exit(1)
	} else if len(accounts) > 0 {
		if err := led.Restore(accounts); err != nil {
			logger.Error("restore ledger", "error", err)
			os.Exit(1)
		}
		logger.Info("ledger restored", "accounts", len(accounts))
	}

	broadcaster := events.NewBroadcaster()

	engine := escrow.NewEngine()
	engine.SetState(db)
	engine.SetLedger(led)
	engine.SetEmitter(events.Tee{events.LogEmitter{Logger: logger}, broadcaster})
	if cfg.PolicyPath != "" {
		policy, err := escrow.LoadPolicy(cfg.PolicyPath)
		if err != nil {
			logger.Error("load policy", "error", err)
			os.Exit(1)
		}
		if err := engine.SetPolicy(policy); err != nil {
			logger.Error("apply policy", "error", err)
			os.Exit(1)
		}
		logger.Info("policy loaded", "path", cfg.PolicyPath)
	}

	var scorer grader.Scorer
	if cfg.GraderURL != "" {
		scorer = grader.New(cfg.GraderURL, cfg.GraderAPIKey, cfg.GraderTimeout, cfg.GraderRetries)
		logger.Info("grader configured", "url", cfg.GraderURL)
	} else {
		scorer = grader.Deterministic{}
		logger.Warn("no grader configured, using deterministic local scoring")
	}

	verifier, err := auth.NewVerifier(auth.Options{
		Secret:   cfg.JWTSecret,
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
		MaxSkew:  30 * time.Second,
	})
	if err != nil {
		logger.Error("configure auth", "error", err)
		os.Exit(1)
	}

	srv := server.New(server.Config{
		Engine:   engine,
		Store:    db,
		Ledger:   led,
		Scorer:   scorer,
		Verifier: verifier,
		Limiter:  middleware.NewRateLimiter(cfg.RateLimitPerMinute, cfg.RateLimitBurst),
		Metrics:  metrics.NewGateway(prometheus.DefaultRegisterer),
		Events:   broadcaster,
		Logger:   logger,
	})

	go watcher.NewDeadline(db, engine, cfg.SweepInterval, logger).Run(ctx)
	go runExportLoop(ctx, recon.NewExporter(db, cfg.ReconOutputDir, logger), logger)

	httpServer := &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("gateway listening", "address", cfg.ListenAddress)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", "error", err)
	}
}

// runExportLoop writes a settlement report once a day covering the previous
// 24 hours.
func runExportLoop(ctx context.Context, exporter *recon.Exporter, logger *slog.Logger) {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := exporter.Export(time.Now().Add(-24 * time.Hour)); err != nil {
				logger.Error("settlement export", "error", err)
			}
		}
	}
}
