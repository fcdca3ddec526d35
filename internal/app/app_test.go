package app

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"

	"trademcp/internal/config"
	"trademcp/internal/domain"
	"trademcp/internal/order"
	"trademcp/internal/result"
)

func simulatorConfig(t *testing.T) *config.Config {
	cfg := config.Default()
	cfg.Trading.Broker = config.BrokerSimulator
	cfg.Storage.JournalPath = filepath.Join(t.TempDir(), "journal.db")
	return cfg
}

func TestNewSimulator(t *testing.T) {
	cfg := simulatorConfig(t)
	cfg.Trading.MaxOrderQty = 100

	a, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Close()

	if a.Broker.Name() != "simulator" {
		t.Errorf("broker = %s, want simulator", a.Broker.Name())
	}
	env := a.Engine.Invoke(context.Background(), "place_market_order", map[string]any{"symbol": "AAPL", "side": "buy", "qty": 500})
	if env.Status != result.StatusInvalid {
		t.Errorf("oversized order = %q, want invalid", env.Status)
	}
}

func TestNewAlpacaNeedsCredentials(t *testing.T) {
	cfg := simulatorConfig(t)
	cfg.Trading.Broker = config.BrokerAlpaca
	if _, err := New(cfg); err == nil {
		t.Error("New accepted an alpaca config without credentials")
	}

	cfg.Alpaca.APIKey, cfg.Alpaca.APISecret = "key", "secret"
	a, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Close()
	if a.Broker.Name() != "alpaca" {
		t.Errorf("broker = %s, want alpaca", a.Broker.Name())
	}
}

func TestNewBuilder(t *testing.T) {
	b := NewBuilder(config.Trading{DefaultTimeInForce: "day", PriceDecimals: 2, SubDollarPriceDecimals: 4})
	limit := decimal.RequireFromString("0.123456")
	qty := decimal.NewFromInt(100)
	plan, err := b.Build(order.SimpleRequest{Intent: domain.OrderIntent{
		Symbol: "SNDL", Side: domain.SideBuy, Type: domain.OrderTypeLimit, Qty: &qty, LimitPrice: &limit,
	}})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if plan.Order.TimeInForce != domain.TimeInForceDay || plan.Order.LimitPrice.String() != "0.1235" {
		t.Errorf("order = %s %s, want day 0.1235", plan.Order.TimeInForce, plan.Order.LimitPrice)
	}
}
