package order

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"trademcp/internal/domain"
)

func dec(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func testValidator() Validator {
	return Validator{Policy: DefaultPricePolicy(), DefaultTIF: domain.TimeInForceGTC}
}

func TestValidateRequiredPriceFields(t *testing.T) {
	tests := []struct {
		name   string
		intent domain.OrderIntent
		field  string
	}{
		{"limit without limit_price", domain.OrderIntent{Type: domain.OrderTypeLimit}, "limit_price"},
		{"stop without stop_price", domain.OrderIntent{Type: domain.OrderTypeStop}, "stop_price"},
		{"stop_limit without stop_price", domain.OrderIntent{Type: domain.OrderTypeStopLimit, LimitPrice: dec("10")}, "stop_price"},
		{"stop_limit without limit_price", domain.OrderIntent{Type: domain.OrderTypeStopLimit, StopPrice: dec("10")}, "limit_price"},
		{"trailing without trail", domain.OrderIntent{Type: domain.OrderTypeTrailingStop}, "trail_price"},
	}
	v := testValidator()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := tt.intent
			in.Symbol = "AAPL"
			in.Side = domain.SideBuy
			in.Qty = dec("10")
			_, err := v.Validate(in)
			var ve *domain.ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("Validate() error = %v, want *ValidationError", err)
			}
			if ve.Field != tt.field {
				t.Errorf("ValidationError.Field = %q, want %q", ve.Field, tt.field)
			}
		})
	}
}

func TestValidateStopLimitPriceOrderIsLeftToBroker(t *testing.T) {
	// A stop-limit buy may carry a limit below its stop; whether that can
	// fill is for the brokerage to decide.
	tests := []struct {
		name        string
		side        domain.Side
		stop, limit string
	}{
		{"buy limit below stop", domain.SideBuy, "170", "169"},
		{"buy limit above stop", domain.SideBuy, "170", "171"},
		{"sell limit above stop", domain.SideSell, "165", "166"},
	}
	v := testValidator()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := v.Validate(domain.OrderIntent{
				Symbol: "AAPL", Side: tt.side, Type: domain.OrderTypeStopLimit,
				Qty: dec("10"), StopPrice: dec(tt.stop), LimitPrice: dec(tt.limit),
			})
			if err != nil {
				t.Fatalf("Validate() returned error: %v", err)
			}
			if out.StopPrice.String() != tt.stop || out.LimitPrice.String() != tt.limit {
				t.Errorf("prices = stop %s limit %s, want %s %s", out.StopPrice, out.LimitPrice, tt.stop, tt.limit)
			}
		})
	}
}

func TestValidateRejectsForeignAndExclusiveFields(t *testing.T) {
	tests := []struct {
		name   string
		intent domain.OrderIntent
		field  string
	}{
		{"market with limit_price", domain.OrderIntent{Type: domain.OrderTypeMarket, Qty: dec("1"), LimitPrice: dec("10")}, "limit_price"},
		{"market with trail_percent", domain.OrderIntent{Type: domain.OrderTypeMarket, Qty: dec("1"), TrailPercent: dec("2")}, "trail_percent"},
		{"limit with stop_price", domain.OrderIntent{Type: domain.OrderTypeLimit, Qty: dec("1"), LimitPrice: dec("10"), StopPrice: dec("9")}, "stop_price"},
		{"both trail fields", domain.OrderIntent{Type: domain.OrderTypeTrailingStop, Qty: dec("1"), TrailPrice: dec("1"), TrailPercent: dec("2")}, "trail_percent"},
		{"qty and notional", domain.OrderIntent{Type: domain.OrderTypeMarket, Qty: dec("1"), Notional: dec("100")}, "qty"},
		{"neither qty nor notional", domain.OrderIntent{Type: domain.OrderTypeMarket}, "qty"},
		{"fractional qty", domain.OrderIntent{Type: domain.OrderTypeMarket, Qty: dec("1.5")}, "qty"},
		{"zero qty", domain.OrderIntent{Type: domain.OrderTypeMarket, Qty: dec("0")}, "qty"},
		{"negative notional", domain.OrderIntent{Type: domain.OrderTypeMarket, Notional: dec("-5")}, "notional"},
		{"negative limit", domain.OrderIntent{Type: domain.OrderTypeLimit, Qty: dec("1"), LimitPrice: dec("-1")}, "limit_price"},
		{"trail percent of 100", domain.OrderIntent{Type: domain.OrderTypeTrailingStop, Qty: dec("1"), TrailPercent: dec("100")}, "trail_percent"},
		{"limit rounds to zero", domain.OrderIntent{Type: domain.OrderTypeLimit, Qty: dec("1"), LimitPrice: dec("0.00001")}, "limit_price"},
	}
	v := testValidator()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := tt.intent
			in.Symbol = "AAPL"
			in.Side = domain.SideSell
			_, err := v.Validate(in)
			var ve *domain.ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("Validate() error = %v, want *ValidationError", err)
			}
			if ve.Field != tt.field {
				t.Errorf("ValidationError.Field = %q, want %q (%s)", ve.Field, tt.field, ve.Reason)
			}
		})
	}
}

func TestValidateSymbolAndSide(t *testing.T) {
	v := testValidator()
	_, err := v.Validate(domain.OrderIntent{Symbol: " ", Side: domain.SideBuy, Type: domain.OrderTypeMarket, Qty: dec("1")})
	if ve, ok := err.(*domain.ValidationError); !ok || ve.Field != "symbol" {
		t.Errorf("blank symbol: error = %v, want symbol ValidationError", err)
	}
	_, err = v.Validate(domain.OrderIntent{Symbol: "AAPL", Side: "short", Type: domain.OrderTypeMarket, Qty: dec("1")})
	if ve, ok := err.(*domain.ValidationError); !ok || ve.Field != "side" {
		t.Errorf("bad side: error = %v, want side ValidationError", err)
	}
}

func TestValidateAppliesDefaultsAndRounding(t *testing.T) {
	v := testValidator()
	got, err := v.Validate(domain.OrderIntent{
		Symbol:     "aapl",
		Side:       domain.SideBuy,
		Type:       domain.OrderTypeStopLimit,
		Qty:        dec("10"),
		StopPrice:  dec("170.005"),
		LimitPrice: dec("171.234"),
	})
	if err != nil {
		t.Fatalf("Validate() returned error: %v", err)
	}
	if got.Symbol != "AAPL" {
		t.Errorf("Symbol = %q, want %q", got.Symbol, "AAPL")
	}
	if got.TimeInForce != domain.TimeInForceGTC {
		t.Errorf("TimeInForce = %q, want %q", got.TimeInForce, domain.TimeInForceGTC)
	}
	if !got.StopPrice.Equal(decimal.RequireFromString("170.01")) {
		t.Errorf("StopPrice = %s, want 170.01", got.StopPrice)
	}
	if !got.LimitPrice.Equal(decimal.RequireFromString("171.23")) {
		t.Errorf("LimitPrice = %s, want 171.23", got.LimitPrice)
	}
}

func TestValidateTrailingStop(t *testing.T) {
	v := testValidator()
	got, err := v.Validate(domain.OrderIntent{
		Symbol:       "TSLA",
		Side:         domain.SideSell,
		Type:         domain.OrderTypeTrailingStop,
		Qty:          dec("5"),
		TrailPercent: dec("2.5"),
		TimeInForce:  domain.TimeInForceDay,
	})
	if err != nil {
		t.Fatalf("Validate() returned error: %v", err)
	}
	if got.TrailPrice != nil {
		t.Errorf("TrailPrice = %s, want nil", got.TrailPrice)
	}
	if got.TimeInForce != domain.TimeInForceDay {
		t.Errorf("TimeInForce = %q, want day", got.TimeInForce)
	}
}

func TestValidateNotionalMarket(t *testing.T) {
	v := testValidator()
	got, err := v.Validate(domain.OrderIntent{Symbol: "SPY", Side: domain.SideBuy, Type: domain.OrderTypeMarket, Notional: dec("250.50")})
	if err != nil {
		t.Fatalf("Validate() returned error: %v", err)
	}
	if got.Qty != nil || got.Notional == nil {
		t.Errorf("Qty = %v, Notional = %v; want nil qty and a notional", got.Qty, got.Notional)
	}
}

func TestPricePolicyRound(t *testing.T) {
	p := DefaultPricePolicy()
	tests := []struct{ in, want string }{
		{"170.005", "170.01"},
		{"170.004", "170"},
		{"0.12345", "0.1235"},
		{"0.99999", "1"},
		{"-2.555", "-2.56"},
	}
	for _, tt := range tests {
		got := p.Round(decimal.RequireFromString(tt.in))
		if !got.Equal(decimal.RequireFromString(tt.want)) {
			t.Errorf("Round(%s) = %s, want %s", tt.in, got, tt.want)
		}
	}

	cents := PricePolicy{Decimals: 2}
	if got := cents.Round(decimal.RequireFromString("0.12345")); !got.Equal(decimal.RequireFromString("0.12")) {
		t.Errorf("Round without sub-dollar precision = %s, want 0.12", got)
	}
}
