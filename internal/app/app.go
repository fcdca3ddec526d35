// Package app wires the configured broker, journal, metrics and engine
// together for the command line entry points.
package app

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"trademcp/internal/broker"
	"trademcp/internal/config"
	"trademcp/internal/domain"
	"trademcp/internal/engine"
	"trademcp/internal/order"
	"trademcp/internal/store"
	"trademcp/internal/telemetry"
)

// Version is the release of the server and CLI.
const Version = "0.3.0"

// App holds the long-lived components built from one configuration.
type App struct {
	Config  *config.Config
	Broker  broker.Broker
	Journal *store.SQLiteStore
	Metrics *telemetry.Metrics
	Engine  *engine.Engine
}

// New validates cfg and builds every component. The caller owns the
// returned App and must Close it.
func New(cfg *config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	journal, err := store.NewSQLiteStore(cfg.Storage.JournalPath)
	if err != nil {
		return nil, fmt.Errorf("opening journal: %w", err)
	}

	var (
		b      broker.Broker
		market broker.MarketData
	)
	switch cfg.Trading.Broker {
	case config.BrokerSimulator:
		sim := broker.NewSimulatorBroker()
		b, market = sim, sim
	default:
		ab := broker.NewAlpacaBroker(broker.AlpacaOptions{
			APIKey:            cfg.Alpaca.APIKey,
			APISecret:         cfg.Alpaca.APISecret,
			BaseURL:           cfg.Alpaca.Endpoint(),
			DataURL:           cfg.Alpaca.DataURL,
			Feed:              strings.ToLower(cfg.Alpaca.Feed),
			RequestsPerMinute: cfg.Trading.RateLimitPerMin,
			Timeout:           30 * time.Second,
		})
		b, market = ab, ab
	}

	metrics := telemetry.New()
	eng := engine.NewEngine(b, market, NewBuilder(cfg.Trading), NewRiskManager(cfg.Trading), journal, metrics)

	slog.Default().Info("components ready",
		"broker", b.Name(),
		"paper", cfg.Alpaca.Paper,
		"journal", cfg.Storage.JournalPath,
		"defaultTimeInForce", cfg.Trading.DefaultTimeInForce,
	)
	return &App{Config: cfg, Broker: b, Journal: journal, Metrics: metrics, Engine: eng}, nil
}

// Close releases the journal.
func (a *App) Close() error {
	return a.Journal.Close()
}

// NewBuilder returns the order builder for the trading settings.
func NewBuilder(t config.Trading) *order.Builder {
	tif, ok := domain.ParseTimeInForce(t.DefaultTimeInForce)
	if !ok {
		tif = domain.TimeInForceGTC
	}
	return order.NewBuilder(order.PricePolicy{
		Decimals:          t.PriceDecimals,
		SubDollarDecimals: t.SubDollarPriceDecimals,
	}, tif)
}

// NewRiskManager returns the pre-trade limits for the trading settings.
func NewRiskManager(t config.Trading) *engine.RiskManager {
	return engine.NewRiskManager(decimal.NewFromFloat(t.MaxOrderQty), decimal.NewFromFloat(t.MaxOrderNotional))
}
