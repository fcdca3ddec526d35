package schema

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"trademcp/internal/domain"
	"trademcp/internal/order"
)

func TestToolsRegistered(t *testing.T) {
	want := []string{
		"place_market_order", "place_limit_order", "place_stop_order", "place_stop_limit_order",
		"place_trailing_stop_order", "place_bracket_order", "place_oco_order", "place_option_order",
		"place_multi_leg_option_order", "cancel_order", "close_position", "close_all_positions",
		"get_account_info", "get_positions", "get_orders", "get_order", "get_latest_quotes",
		"get_stock_bars", "get_portfolio_history", "get_option_contracts", "get_option_contract",
		"get_option_positions", "exercise_option_position",
	}
	for _, name := range want {
		if _, ok := Lookup(name); !ok {
			t.Errorf("tool %q is not registered", name)
		}
	}
	if got := len(Tools()); got != len(want) {
		t.Errorf("Tools() returned %d tools, want %d", got, len(want))
	}
	tools := Tools()
	for i := 1; i < len(tools); i++ {
		if tools[i-1].Name >= tools[i].Name {
			t.Errorf("Tools() not sorted: %q before %q", tools[i-1].Name, tools[i].Name)
		}
	}
}

func TestParseLimitOrder(t *testing.T) {
	req, err := Parse("place_limit_order", map[string]any{
		"symbol":      "aapl",
		"side":        "BUY",
		"qty":         float64(10),
		"limit_price": "170.5",
	})
	if err != nil {
		t.Fatalf("Parse() returned error: %v", err)
	}
	simple, ok := req.(order.SimpleRequest)
	if !ok {
		t.Fatalf("Parse() = %T, want order.SimpleRequest", req)
	}
	in := simple.Intent
	if in.Type != domain.OrderTypeLimit || in.Side != domain.SideBuy {
		t.Errorf("intent = %+v, want a buy limit", in)
	}
	if !in.LimitPrice.Equal(decimal.RequireFromString("170.5")) {
		t.Errorf("LimitPrice = %s, want 170.5", in.LimitPrice)
	}
	if in.TimeInForce != "" {
		t.Errorf("TimeInForce = %q, want empty so the configured default applies", in.TimeInForce)
	}
	if in.Notional != nil || in.StopPrice != nil {
		t.Errorf("absent optional fields must stay nil: %+v", in)
	}
}

func TestParseSchemaErrors(t *testing.T) {
	tests := []struct {
		name  string
		tool  string
		args  map[string]any
		field string
	}{
		{"missing required", "place_limit_order", map[string]any{"side": "buy", "qty": 1, "limit_price": 10}, "symbol"},
		{"missing exit price", "place_oco_order", map[string]any{"symbol": "AAPL", "side": "sell", "qty": 1,
			"stop_loss_stop_price": 165}, "take_profit_limit_price"},
		{"bad enum", "place_market_order", map[string]any{"symbol": "AAPL", "side": "long", "qty": 1}, "side"},
		{"unknown tif", "place_market_order", map[string]any{"symbol": "AAPL", "side": "buy", "qty": 1, "time_in_force": "gtx"}, "time_in_force"},
		{"wrong type", "place_market_order", map[string]any{"symbol": "AAPL", "side": "buy", "qty": "ten"}, "qty"},
		{"unknown field", "place_bracket_order", map[string]any{"symbol": "AAPL", "side": "buy", "qty": 1, "notional": 100,
			"take_profit_limit_price": 180, "stop_loss_stop_price": 165}, "notional"},
		{"bracket ioc", "place_bracket_order", map[string]any{"symbol": "AAPL", "side": "buy", "qty": 1, "time_in_force": "ioc",
			"take_profit_limit_price": 180, "stop_loss_stop_price": 165}, "time_in_force"},
		{"leg ratio not integer", "place_multi_leg_option_order", map[string]any{"legs": []any{
			map[string]any{"symbol": "AAPL240119C00175000", "ratio_qty": 1.5, "position_intent": "buy_to_open"},
		}}, "legs[0].ratio_qty"},
		{"leg not object", "place_multi_leg_option_order", map[string]any{"legs": []any{"AAPL240119C00175000"}}, "legs[0]"},
		{"empty legs", "place_multi_leg_option_order", map[string]any{"legs": []any{}}, "legs"},
		{"bad bool", "close_all_positions", map[string]any{"cancel_orders": "maybe"}, "cancel_orders"},
		{"bad date", "get_stock_bars", map[string]any{"symbols": "AAPL", "start": "yesterday"}, "start"},
		{"limit out of range", "get_orders", map[string]any{"limit": 1000}, "limit"},
		{"no symbols", "get_latest_quotes", map[string]any{"symbols": " , "}, "symbols"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.tool, tt.args)
			var se *domain.SchemaError
			if !errors.As(err, &se) {
				t.Fatalf("Parse() error = %v, want *SchemaError", err)
			}
			if se.Field != tt.field {
				t.Errorf("SchemaError.Field = %q, want %q (%s)", se.Field, tt.field, se.Reason)
			}
		})
	}
}

func TestParseUnknownTool(t *testing.T) {
	_, err := Parse("place_magic_order", nil)
	if domain.KindOf(err) != domain.KindSchema {
		t.Errorf("Parse(unknown) error kind = %q, want schema_error", domain.KindOf(err))
	}
}

func TestParseBusinessRulesAreNotSchemaErrors(t *testing.T) {
	// Both trail fields are structurally fine; the validator rejects them.
	req, err := Parse("place_trailing_stop_order", map[string]any{
		"symbol": "TSLA", "side": "sell", "qty": 1, "trail_price": 2, "trail_percent": 1,
	})
	if err != nil {
		t.Fatalf("Parse() returned error: %v", err)
	}
	if _, err := order.NewBuilder(order.DefaultPricePolicy(), domain.TimeInForceGTC).Build(req.(order.Request)); domain.KindOf(err) != domain.KindValidation {
		t.Errorf("Build() error = %v, want validation_error", err)
	}
}

func TestParseMultiLegDefaults(t *testing.T) {
	var raw map[string]any
	payload := `{"legs":[
		{"symbol":"AAPL240119C00175000","position_intent":"buy_to_open"},
		{"symbol":"AAPL240119C00180000","position_intent":"sell_to_open","side":"sell"}
	],"order_type":"limit","limit_price":2.5}`
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		t.Fatal(err)
	}
	req, err := Parse("place_multi_leg_option_order", raw)
	if err != nil {
		t.Fatalf("Parse() returned error: %v", err)
	}
	ml, ok := req.(order.MultiLegRequest)
	if !ok {
		t.Fatalf("Parse() = %T, want order.MultiLegRequest", req)
	}
	if len(ml.Legs) != 2 || ml.Legs[0].RatioQty != 1 || ml.Legs[1].Side != domain.SideSell {
		t.Errorf("legs = %+v, want ratio default 1 and explicit sell side", ml.Legs)
	}
	if ml.Legs[0].Symbol != "AAPL240119C00175000" {
		t.Errorf("leg order not preserved: %+v", ml.Legs)
	}
	if ml.Qty != nil {
		t.Errorf("Qty = %s, want nil so the builder applies its default", ml.Qty)
	}
	if ml.Type != domain.OrderTypeLimit {
		t.Errorf("Type = %q, want limit", ml.Type)
	}
}

func TestParseReadTools(t *testing.T) {
	req, err := Parse("get_orders", map[string]any{"symbols": "aapl, msft,"})
	if err != nil {
		t.Fatalf("Parse(get_orders) returned error: %v", err)
	}
	q := req.(GetOrders)
	if q.Status != "open" || q.Limit != 50 {
		t.Errorf("defaults = %+v, want status open and limit 50", q)
	}
	if len(q.Symbols) != 2 || q.Symbols[0] != "AAPL" || q.Symbols[1] != "MSFT" {
		t.Errorf("Symbols = %v, want [AAPL MSFT]", q.Symbols)
	}

	req, err = Parse("get_stock_bars", map[string]any{"symbols": "SPY", "start": "2024-01-02", "limit": json.Number("10")})
	if err != nil {
		t.Fatalf("Parse(get_stock_bars) returned error: %v", err)
	}
	bars := req.(GetStockBars)
	if bars.Timeframe != "1Day" || bars.Limit != 10 || bars.Start.Year() != 2024 {
		t.Errorf("bars query = %+v", bars)
	}

	req, err = Parse("cancel_order", map[string]any{"order_id": " abc "})
	if err != nil {
		t.Fatalf("Parse(cancel_order) returned error: %v", err)
	}
	if got := req.(CancelOrder).OrderID; got != "abc" {
		t.Errorf("OrderID = %q, want abc", got)
	}

	if _, err := Parse("get_account_info", map[string]any{}); err != nil {
		t.Errorf("Parse(get_account_info) returned error: %v", err)
	}
}

func TestToolAnnotations(t *testing.T) {
	for _, tool := range Tools() {
		if IsOrderTool(tool.Name) && tool.ReadOnly {
			t.Errorf("order tool %q marked read-only", tool.Name)
		}
		if tool.Description == "" {
			t.Errorf("tool %q has no description", tool.Name)
		}
	}
	if tool, _ := Lookup("exercise_option_position"); !tool.Destructive {
		t.Error("exercise_option_position should be destructive")
	}
	if tool, _ := Lookup("cancel_order"); !tool.Destructive {
		t.Error("cancel_order should be destructive")
	}
}
