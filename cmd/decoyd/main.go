package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/decoynet/decoyd/internal/aggregate"
	"github.com/decoynet/decoyd/internal/config"
	"github.com/decoynet/decoyd/internal/engine"
	"github.com/decoynet/decoyd/internal/reply"
	"github.com/decoynet/decoyd/internal/report"
	"github.com/decoynet/decoyd/internal/server"
	"github.com/decoynet/decoyd/internal/session"
	"github.com/decoynet/decoyd/pkg/observability"
)

var (
	// Version information (set via ldflags)
	Version = "dev"

	// Command line flags
	configFile  = flag.String("config", getEnv("CONFIG_FILE", ""), "Configuration file")
	httpPort    = flag.Int("http-port", getEnvInt("PORT", 0), "API server port (overrides config)")
	metricsPort = flag.Int("metrics-port", getEnvInt("METRICS_PORT", 0), "Metrics server port (overrides config)")
)

func main() {
	flag.Parse()

	log.Printf("Starting decoyd v%s", Version)

	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *httpPort > 0 {
		cfg.ListenPort = *httpPort
	}
	if *metricsPort > 0 {
		cfg.MetricsPort = *metricsPort
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}
	log.Printf("Config: API port %d, metrics port %d, max turns %d, min artifacts %d",
		cfg.ListenPort, cfg.MetricsPort, cfg.MaxTurns, cfg.MinArtifacts)

	// Initialize observability
	observability.InitMetrics()
	healthChecker := observability.InitHealthChecker()
	healthChecker.RegisterCheck(observability.PingCheck())

	// Session store, optionally mirrored to Redis for warm inspection
	var storeOpts []session.Option
	if cfg.RedisAddr != "" {
		mirror, err := session.NewRedisMirror(session.RedisConfig{
			Addr:        cfg.RedisAddr,
			Password:    cfg.RedisPassword,
			DB:          cfg.RedisDB,
			SnapshotTTL: cfg.SnapshotTTL.Std(),
		})
		if err != nil {
			log.Fatalf("Failed to connect session mirror: %v", err)
		}
		defer func() { _ = mirror.Close() }()
		storeOpts = append(storeOpts, session.WithMirror(mirror))
		healthChecker.RegisterCheck(observability.MirrorCheck(mirror.Ping))
		log.Printf("Session mirror enabled at %s", cfg.RedisAddr)
	}
	store := session.NewStore(storeOpts...)

	// Decoy persona: model-backed when a key is configured, canned otherwise
	var generator reply.Generator = reply.CannedGenerator{}
	if cfg.GroqKey != "" {
		llm, err := reply.NewLLMGenerator(cfg.GroqKey, cfg.GroqBaseURL, cfg.GroqModel)
		if err != nil {
			log.Fatalf("Failed to build reply generator: %v", err)
		}
		generator = llm
		log.Printf("Persona model enabled")
	} else {
		log.Printf("No GROQ_API_KEY set, using canned persona replies")
	}

	sink := report.NewHTTPSink(cfg.CallbackURL, cfg.CallbackTimeout.Std())
	healthChecker.RegisterCheck(observability.SinkCheck(sink.Check))
	eng := engine.New(store, sink,
		engine.WithGenerator(generator),
		engine.WithThresholds(aggregate.Thresholds{
			MaxTurns:     cfg.MaxTurns,
			MinArtifacts: cfg.MinArtifacts,
		}),
	)

	// Optional idle-session eviction sweep
	var sweeper *cron.Cron
	if cfg.SweepInterval > 0 {
		sweeper = cron.New()
		spec := "@every " + cfg.SweepInterval.Std().String()
		if _, err := sweeper.AddFunc(spec, func() {
			eng.SweepIdle(cfg.SessionTTL.Std())
		}); err != nil {
			log.Fatalf("Failed to schedule session sweep: %v", err)
		}
		sweeper.Start()
		log.Printf("Idle-session sweep every %s (TTL %s)", cfg.SweepInterval.Std(), cfg.SessionTTL.Std())
	}

	errChan := make(chan error, 2)

	// Start observability server
	obsServer := observability.NewServer(cfg.MetricsPort)
	go func() {
		log.Printf("Starting metrics server on :%d", cfg.MetricsPort)
		if err := obsServer.Start(); err != nil {
			errChan <- fmt.Errorf("metrics server error: %w", err)
		}
	}()

	// Start API server
	api := server.New(eng, cfg.APIKey)
	go func() {
		log.Printf("Starting API server on :%d", cfg.ListenPort)
		if err := api.Run(fmt.Sprintf(":%d", cfg.ListenPort)); err != nil {
			errChan <- fmt.Errorf("API server error: %w", err)
		}
	}()

	// Wait for shutdown signal or error
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.Printf("Received signal %v, shutting down", sig)
	case err := <-errChan:
		log.Printf("Server error: %v", err)
	}

	if sweeper != nil {
		sweeper.Stop()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := obsServer.Shutdown(ctx); err != nil {
		log.Printf("Metrics server shutdown error: %v", err)
	}
	log.Printf("decoyd stopped")
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
