// Package main is the entry point for the order book aggregation server.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/fd1az/orderbook-aggregator/business/book/app"
	"github.com/fd1az/orderbook-aggregator/business/book/infra/rpc"
	"github.com/fd1az/orderbook-aggregator/business/book/ingest"
	"github.com/fd1az/orderbook-aggregator/internal/apm"
	"github.com/fd1az/orderbook-aggregator/internal/config"
	"github.com/fd1az/orderbook-aggregator/internal/health"
	"github.com/fd1az/orderbook-aggregator/internal/logger"
	"github.com/fd1az/orderbook-aggregator/internal/metrics"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	// Load .env file if present (ignore error if not found)
	_ = godotenv.Load()

	configPath := flag.String("config", "", "Path to configuration file")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] <symbol> [depth]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if *showVersion {
		fmt.Printf("orderbook-aggregator %s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	// Setup context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		fmt.Fprintf(os.Stderr, "received shutdown signal: %v\n", sig)
		cancel()
	}()

	if err := run(ctx, *configPath, flag.Args()); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string, args []string) error {
	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Positional arguments override the config: server <symbol> [depth]
	if len(args) >= 1 {
		cfg.Book.Symbol = strings.ToLower(args[0])
	}
	if len(args) >= 2 {
		depth, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid depth %q: %w", args[1], err)
		}
		cfg.Book.Depth = depth
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// Setup logger
	logLevel := logger.LevelInfo
	switch cfg.App.LogLevel {
	case "debug":
		logLevel = logger.LevelDebug
	case "warn":
		logLevel = logger.LevelWarn
	case "error":
		logLevel = logger.LevelError
	}

	log := logger.New(os.Stderr, logLevel, cfg.App.Name, nil)
	log.Info(ctx, "starting order book aggregator",
		"version", version,
		"environment", cfg.App.Environment,
		"symbol", cfg.Book.Symbol,
		"depth", cfg.Book.Depth,
	)

	// Initialize observability if enabled
	var traceProvider apm.TraceProvider
	if cfg.Telemetry.Enabled {
		if cfg.Telemetry.ServiceName != "" {
			os.Setenv("OTEL_SERVICE_NAME", cfg.Telemetry.ServiceName)
		}
		if cfg.Telemetry.OTLPEndpoint != "" {
			os.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.Telemetry.OTLPEndpoint)
		}

		traceProvider = apm.NewTraceProvider(log, apm.WithProvider(apm.ZipkinProvider, log))
		log.Info(ctx, "tracing initialized", "provider", "zipkin", "endpoint", cfg.Telemetry.OTLPEndpoint)

		metrics.NewMetricProvider(
			metrics.WithServiceName(cfg.Telemetry.ServiceName),
			metrics.WithProviderConfig(metrics.ProviderCfg{
				Provider: metrics.PrometheusProvider,
			}),
		)

		port := cfg.Telemetry.PrometheusPort
		if port == 0 {
			port = 9090
		}
		go metrics.ServePrometheusMetrics(metrics.WithPort(strconv.Itoa(port)))
		log.Info(ctx, "prometheus metrics server started", "port", port)
	}
	defer func() {
		if traceProvider != nil {
			traceProvider.Stop()
		}
	}()

	// Upstream sessions
	binanceSession, err := ingest.NewSession(ingest.Binance(), sessionConfig(cfg.Book, cfg.Binance), log)
	if err != nil {
		return fmt.Errorf("failed to create binance session: %w", err)
	}
	defer binanceSession.Close()

	bitstampSession, err := ingest.NewSession(ingest.Bitstamp(), sessionConfig(cfg.Book, cfg.Bitstamp), log)
	if err != nil {
		return fmt.Errorf("failed to create bitstamp session: %w", err)
	}
	defer bitstampSession.Close()

	// Health check server
	healthServer := health.NewServer(cfg.Server.HealthPort, version)
	healthServer.RegisterCheck("binance", func(ctx context.Context) (bool, string) {
		if binanceSession.IsConnected() {
			return true, ""
		}
		return false, "binance upstream disconnected"
	})
	healthServer.RegisterCheck("bitstamp", func(ctx context.Context) (bool, string) {
		if bitstampSession.IsConnected() {
			return true, ""
		}
		return false, "bitstamp upstream disconnected"
	})
	if err := healthServer.Start(); err != nil {
		log.Warn(ctx, "failed to start health server", "error", err)
	} else {
		log.Info(ctx, "health server started", "port", cfg.Server.HealthPort)
	}
	defer healthServer.Stop(ctx)

	// Subscribe to both upstreams; either failure is an initialization
	// failure and exits non-zero.
	if err := binanceSession.Connect(ctx); err != nil {
		return fmt.Errorf("binance connect: %w", err)
	}
	if err := bitstampSession.Connect(ctx); err != nil {
		return fmt.Errorf("bitstamp connect: %w", err)
	}

	// Aggregation hub
	hub, err := app.NewHub(binanceSession, bitstampSession, app.HubConfig{Depth: cfg.Book.Depth}, log)
	if err != nil {
		return fmt.Errorf("failed to create hub: %w", err)
	}

	// Seed the slots over REST so the first publish carries both venues.
	// Failures degrade to stream-only startup.
	seedSlot(ctx, hub, ingest.Binance(), cfg.Binance, cfg.Book, log)
	seedSlot(ctx, hub, ingest.Bitstamp(), cfg.Bitstamp, cfg.Book, log)

	hub.Start(ctx)
	defer hub.Stop()

	// gRPC surface, blocks until shutdown.
	server, err := rpc.NewServer(hub, log)
	if err != nil {
		return fmt.Errorf("failed to create rpc server: %w", err)
	}

	if err := server.Serve(ctx, cfg.Server.ListenAddr); err != nil {
		return fmt.Errorf("rpc serve: %w", err)
	}

	log.Info(ctx, "shutdown complete")
	return nil
}

func sessionConfig(book config.BookConfig, upstream config.UpstreamConfig) ingest.SessionConfig {
	return ingest.SessionConfig{
		Symbol:         book.Symbol,
		Depth:          book.Depth,
		WebSocketURL:   upstream.WebSocketURL,
		AckTimeout:     upstream.AckTimeout,
		MaxReconnects:  upstream.MaxReconnects,
		InitialBackoff: upstream.InitialBackoff,
		MaxBackoff:     upstream.MaxBackoff,
	}
}

func seedSlot(ctx context.Context, hub *app.Hub, exchange ingest.Exchange, upstream config.UpstreamConfig, book config.BookConfig, log logger.LoggerInterface) {
	if !upstream.SnapshotFirst || upstream.HTTPURL == "" {
		return
	}

	fetcher, err := ingest.NewSnapshotFetcher(exchange, upstream.HTTPURL, book.Symbol, book.Depth, log)
	if err != nil {
		log.Warn(ctx, "failed to create snapshot fetcher", "exchange", exchange.Name, "error", err)
		return
	}

	snapshot, err := fetcher.Fetch(ctx)
	if err != nil {
		log.Warn(ctx, "snapshot bootstrap failed, waiting for stream", "exchange", exchange.Name, "error", err)
		return
	}

	hub.Seed(exchange.Name, snapshot)
	log.Info(ctx, "slot seeded from snapshot",
		"exchange", exchange.Name,
		"bids", len(snapshot.Bids),
		"asks", len(snapshot.Asks),
	)
}
