// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// MaxDepth is the largest number of levels retained per book side.
const MaxDepth = 100

// Config holds all application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Book      BookConfig      `mapstructure:"book"`
	Server    ServerConfig    `mapstructure:"server"`
	Binance   UpstreamConfig  `mapstructure:"binance"`
	Bitstamp  UpstreamConfig  `mapstructure:"bitstamp"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// AppConfig holds general application settings.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
	LogLevel    string `mapstructure:"log_level"`
}

// BookConfig holds the instrument and depth the aggregator serves.
type BookConfig struct {
	Symbol string `mapstructure:"symbol"`
	Depth  int    `mapstructure:"depth"`
}

// ServerConfig holds the gRPC and health endpoints.
type ServerConfig struct {
	ListenAddr string `mapstructure:"listen_addr"`
	HealthPort int    `mapstructure:"health_port"`
}

// UpstreamConfig holds per-exchange connection settings.
type UpstreamConfig struct {
	WebSocketURL   string        `mapstructure:"websocket_url"`
	HTTPURL        string        `mapstructure:"http_url"`
	SnapshotFirst  bool          `mapstructure:"snapshot_first"`
	MaxReconnects  int           `mapstructure:"max_reconnects"`
	InitialBackoff time.Duration `mapstructure:"initial_backoff"`
	MaxBackoff     time.Duration `mapstructure:"max_backoff"`
	AckTimeout     time.Duration `mapstructure:"ack_timeout"`
}

// TelemetryConfig holds observability configuration.
type TelemetryConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	ServiceName    string `mapstructure:"service_name"`
	OTLPEndpoint   string `mapstructure:"otlp_endpoint"`
	PrometheusPort int    `mapstructure:"prometheus_port"`
}

// Load loads configuration from file and environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Environment variables
	v.SetEnvPrefix("OBA")
	v.AutomaticEnv()

	bindEnvVars(v)
	setDefaults(v)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found is OK, use env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.Book.Symbol = strings.ToLower(cfg.Book.Symbol)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func bindEnvVars(v *viper.Viper) {
	// App
	v.BindEnv("app.name", "OBA_APP_NAME", "SERVICE_NAME")
	v.BindEnv("app.environment", "OBA_ENVIRONMENT", "ENVIRONMENT")
	v.BindEnv("app.log_level", "OBA_LOG_LEVEL", "LOG_LEVEL")

	// Book
	v.BindEnv("book.symbol", "OBA_SYMBOL")
	v.BindEnv("book.depth", "OBA_DEPTH")

	// Server
	v.BindEnv("server.listen_addr", "OBA_LISTEN_ADDR")
	v.BindEnv("server.health_port", "OBA_HEALTH_PORT")

	// Upstreams
	v.BindEnv("binance.websocket_url", "OBA_BINANCE_WS_URL", "BINANCE_WS_URL")
	v.BindEnv("binance.http_url", "OBA_BINANCE_HTTP_URL", "BINANCE_HTTP_URL")
	v.BindEnv("bitstamp.websocket_url", "OBA_BITSTAMP_WS_URL", "BITSTAMP_WS_URL")
	v.BindEnv("bitstamp.http_url", "OBA_BITSTAMP_HTTP_URL", "BITSTAMP_HTTP_URL")

	// Telemetry
	v.BindEnv("telemetry.enabled", "OBA_OTEL_ENABLED", "OTEL_ENABLED")
	v.BindEnv("telemetry.service_name", "OBA_OTEL_SERVICE_NAME", "OTEL_SERVICE_NAME")
	v.BindEnv("telemetry.otlp_endpoint", "OBA_OTEL_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT")
}

func setDefaults(v *viper.Viper) {
	// App defaults
	v.SetDefault("app.name", "orderbook-aggregator")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")

	// Book defaults
	v.SetDefault("book.symbol", "ethbtc")
	v.SetDefault("book.depth", 10)

	// Server defaults
	v.SetDefault("server.listen_addr", "0.0.0.0:50051")
	v.SetDefault("server.health_port", 8081)

	// Upstream defaults
	v.SetDefault("binance.websocket_url", "wss://stream.binance.com:9443/ws")
	v.SetDefault("binance.http_url", "https://api.binance.com")
	v.SetDefault("binance.snapshot_first", true)
	v.SetDefault("binance.max_reconnects", 0) // infinite
	v.SetDefault("binance.initial_backoff", "1s")
	v.SetDefault("binance.max_backoff", "30s")
	v.SetDefault("binance.ack_timeout", "10s")

	v.SetDefault("bitstamp.websocket_url", "wss://ws.bitstamp.net/")
	v.SetDefault("bitstamp.http_url", "https://www.bitstamp.net")
	v.SetDefault("bitstamp.snapshot_first", true)
	v.SetDefault("bitstamp.max_reconnects", 0)
	v.SetDefault("bitstamp.initial_backoff", "1s")
	v.SetDefault("bitstamp.max_backoff", "30s")
	v.SetDefault("bitstamp.ack_timeout", "10s")

	// Telemetry defaults
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.service_name", "orderbook-aggregator")
	v.SetDefault("telemetry.prometheus_port", 9090)
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Book.Symbol == "" {
		return fmt.Errorf("book.symbol is required")
	}
	if c.Book.Depth < 1 || c.Book.Depth > MaxDepth {
		return fmt.Errorf("book.depth must be between 1 and %d, got %d", MaxDepth, c.Book.Depth)
	}
	if _, _, err := net.SplitHostPort(c.Server.ListenAddr); err != nil {
		return fmt.Errorf("invalid server.listen_addr %q: %w", c.Server.ListenAddr, err)
	}
	if c.Binance.WebSocketURL == "" {
		return fmt.Errorf("binance.websocket_url is required")
	}
	if c.Bitstamp.WebSocketURL == "" {
		return fmt.Errorf("bitstamp.websocket_url is required")
	}
	return nil
}
