package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"trademcp/internal/domain"
)

// DefaultPath is the configuration file read when TRADEMCP_CONFIG is unset.
const DefaultPath = "config/trademcp.yaml"

// Transports and brokers understood by the server.
const (
	TransportStdio          = "stdio"
	TransportSSE            = "sse"
	TransportStreamableHTTP = "streamable-http"

	BrokerAlpaca    = "alpaca"
	BrokerSimulator = "simulator"
)

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration of the trading tool server.
type Config struct {
	Alpaca  Alpaca  `yaml:"alpaca"`
	Server  Server  `yaml:"server"`
	Logging Logging `yaml:"logging"`
	Trading Trading `yaml:"trading"`
	Storage Storage `yaml:"storage"`
}

// Alpaca holds credentials and endpoints for the Alpaca broker API.
type Alpaca struct {
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	BaseURL   string `yaml:"base_url"`
	DataURL   string `yaml:"data_url"`
	// Feed is the market data feed, iex or sip.
	Feed  string `yaml:"feed"`
	Paper bool   `yaml:"paper"`
}

// Endpoint returns the trading API base URL, choosing the paper or live
// endpoint when BaseURL is unset.
func (a Alpaca) Endpoint() string {
	if a.BaseURL != "" {
		return a.BaseURL
	}
	if a.Paper {
		return "https://paper-api.alpaca.markets"
	}
	return "https://api.alpaca.markets"
}

// Server holds listener configuration. Port serves the network MCP
// transports, OpsPort the health and metrics endpoints.
type Server struct {
	Transport string `yaml:"transport"`
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	OpsPort   int    `yaml:"ops_port"`
	GRPCPort  int    `yaml:"grpc_port"`
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Trading defines order construction and pre-trade limits.
type Trading struct {
	Broker                 string  `yaml:"broker"`
	DefaultTimeInForce     string  `yaml:"default_time_in_force"`
	PriceDecimals          int32   `yaml:"price_decimals"`
	SubDollarPriceDecimals int32   `yaml:"sub_dollar_price_decimals"`
	MaxOrderQty            float64 `yaml:"max_order_qty"`
	MaxOrderNotional       float64 `yaml:"max_order_notional"`
	RateLimitPerMin        int     `yaml:"rate_limit_per_min"`
}

// Storage holds paths for data persistence.
type Storage struct {
	JournalPath string `yaml:"journal_path"`
	// DataDir receives Parquet journal exports.
	DataDir string `yaml:"data_dir"`
}

// Default returns the configuration used for every field the file and
// environment leave unset.
func Default() *Config {
	return &Config{
		Alpaca: Alpaca{Feed: "iex", Paper: true},
		Server: Server{
			Transport: TransportStdio,
			Host:      "0.0.0.0",
			Port:      8001,
		},
		Logging: Logging{Level: "info", Format: "json"},
		Trading: Trading{
			Broker:                 BrokerAlpaca,
			DefaultTimeInForce:     string(domain.TimeInForceGTC),
			PriceDecimals:          2,
			SubDollarPriceDecimals: 4,
			RateLimitPerMin:        200,
		},
		Storage: Storage{
			JournalPath: "data/journal.db",
			DataDir:     "data",
		},
	}
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Path returns the configuration file location: TRADEMCP_CONFIG when set,
// otherwise DefaultPath.
func Path() string {
	if v := os.Getenv("TRADEMCP_CONFIG"); v != "" {
		return v
	}
	return DefaultPath
}

// Load reads the YAML configuration file at the given path over the
// defaults, then applies environment variable overrides. A missing file is
// not an error; the defaults and environment still apply.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides checks well-known environment variables and overrides the
// corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("ALPACA_API_KEY"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("ALPACA_API_SECRET"); v != "" {
		cfg.Alpaca.APISecret = v
	}
	if v := os.Getenv("ALPACA_SECRET_KEY"); v != "" {
		cfg.Alpaca.APISecret = v
	}
	if v := os.Getenv("ALPACA_BASE_URL"); v != "" {
		cfg.Alpaca.BaseURL = v
	}
	if v := os.Getenv("ALPACA_DATA_URL"); v != "" {
		cfg.Alpaca.DataURL = v
	}
	if v := os.Getenv("ALPACA_PAPER"); v != "" {
		paper, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("ALPACA_PAPER: %w", err)
		}
		cfg.Alpaca.Paper = paper
	}

	if v := os.Getenv("MCP_TRANSPORT"); v != "" {
		cfg.Server.Transport = strings.ToLower(v)
	}
	if v := os.Getenv("MCP_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("MCP_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("MCP_PORT: %w", err)
		}
		cfg.Server.Port = port
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("JOURNAL_PATH"); v != "" {
		cfg.Storage.JournalPath = v
	}
	if v := os.Getenv("TRADEMCP_BROKER"); v != "" {
		cfg.Trading.Broker = strings.ToLower(v)
	}

	// Standard Alpaca env vars (highest priority, the names the SDK reads).
	if v := os.Getenv("APCA_API_KEY_ID"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("APCA_API_SECRET_KEY"); v != "" {
		cfg.Alpaca.APISecret = v
	}
	return nil
}

// ---------------------------------------------------------------------------
// Validation
// ---------------------------------------------------------------------------

// Validate reports every configuration problem at once.
func (c *Config) Validate() error {
	var errs []error

	switch c.Server.Transport {
	case TransportStdio, TransportSSE, TransportStreamableHTTP:
	default:
		errs = append(errs, fmt.Errorf("server.transport: unknown transport %q", c.Server.Transport))
	}
	for name, port := range map[string]int{"server.port": c.Server.Port, "server.ops_port": c.Server.OpsPort, "server.grpc_port": c.Server.GRPCPort} {
		if port < 0 || port > 65535 {
			errs = append(errs, fmt.Errorf("%s: %d is not a valid port", name, port))
		}
	}

	switch c.Trading.Broker {
	case BrokerAlpaca:
		if c.Alpaca.APIKey == "" || c.Alpaca.APISecret == "" {
			errs = append(errs, errors.New("alpaca: api_key and api_secret are required (set ALPACA_API_KEY and ALPACA_SECRET_KEY)"))
		}
	case BrokerSimulator:
	default:
		errs = append(errs, fmt.Errorf("trading.broker: unknown broker %q", c.Trading.Broker))
	}
	if _, ok := domain.ParseTimeInForce(c.Trading.DefaultTimeInForce); !ok {
		errs = append(errs, fmt.Errorf("trading.default_time_in_force: unknown value %q", c.Trading.DefaultTimeInForce))
	}
	if c.Trading.PriceDecimals < 0 || c.Trading.SubDollarPriceDecimals < 0 {
		errs = append(errs, errors.New("trading: price decimals must not be negative"))
	}
	if c.Trading.MaxOrderQty < 0 {
		errs = append(errs, errors.New("trading.max_order_qty: must not be negative"))
	}
	if c.Trading.MaxOrderNotional < 0 {
		errs = append(errs, errors.New("trading.max_order_notional: must not be negative"))
	}
	if c.Trading.RateLimitPerMin < 0 {
		errs = append(errs, errors.New("trading.rate_limit_per_min: must not be negative"))
	}
	if c.Storage.JournalPath == "" {
		errs = append(errs, errors.New("storage.journal_path: required"))
	}
	return errors.Join(errs...)
}
