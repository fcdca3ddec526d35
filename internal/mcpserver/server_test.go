package mcpserver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"trademcp/internal/broker"
	"trademcp/internal/config"
	"trademcp/internal/domain"
	"trademcp/internal/engine"
	"trademcp/internal/order"
	"trademcp/internal/result"
	"trademcp/internal/schema"
)

func newGateway(t *testing.T) (*Gateway, *broker.SimulatorBroker) {
	t.Helper()
	sim := broker.NewSimulatorBroker()
	eng := engine.NewEngine(sim, sim, order.NewBuilder(order.DefaultPricePolicy(), domain.TimeInForceGTC), nil, nil, nil)
	return New(eng, "test"), sim
}

func TestToolDefinition(t *testing.T) {
	bracket, _ := schema.Lookup("place_bracket_order")
	tool := ToolDefinition(bracket)

	if tool.Name != "place_bracket_order" || tool.Description == "" {
		t.Errorf("tool = %s %q", tool.Name, tool.Description)
	}
	for _, want := range []string{"symbol", "side", "qty", "take_profit_limit_price", "stop_loss_stop_price"} {
		if !slices.Contains(tool.InputSchema.Required, want) {
			t.Errorf("Required = %v, missing %s", tool.InputSchema.Required, want)
		}
	}
	entryType, ok := tool.InputSchema.Properties["entry_type"].(map[string]any)
	if !ok {
		t.Fatalf("entry_type property = %T", tool.InputSchema.Properties["entry_type"])
	}
	if entryType["default"] != "market" {
		t.Errorf("entry_type default = %v, want market", entryType["default"])
	}
	if tool.Annotations.DestructiveHint == nil || !*tool.Annotations.DestructiveHint {
		t.Error("order tool not marked destructive")
	}
}

func TestToolDefinitionLegs(t *testing.T) {
	mleg, _ := schema.Lookup("place_multi_leg_option_order")
	tool := ToolDefinition(mleg)

	legs, ok := tool.InputSchema.Properties["legs"].(map[string]any)
	if !ok || legs["type"] != "array" {
		t.Fatalf("legs property = %+v", tool.InputSchema.Properties["legs"])
	}
	items, ok := legs["items"].(map[string]any)
	if !ok {
		t.Fatalf("legs items = %T", legs["items"])
	}
	if items["additionalProperties"] != false {
		t.Error("leg objects accept unknown fields")
	}
	props := items["properties"].(map[string]any)
	ratio := props["ratio_qty"].(map[string]any)
	if ratio["type"] != "integer" || ratio["default"] != 1 {
		t.Errorf("ratio_qty = %+v, want an integer defaulting to 1", ratio)
	}
	if req := items["required"].([]string); !slices.Equal(req, []string{"symbol", "position_intent"}) {
		t.Errorf("leg required = %v", req)
	}
}

func TestReadOnlyAnnotations(t *testing.T) {
	for _, st := range schema.Tools() {
		tool := ToolDefinition(st)
		ro := tool.Annotations.ReadOnlyHint != nil && *tool.Annotations.ReadOnlyHint
		if schema.IsOrderTool(st.Name) && ro {
			t.Errorf("%s is an order tool but marked read-only", st.Name)
		}
		if strings.HasPrefix(st.Name, "get_") && !ro {
			t.Errorf("%s is a read tool but not marked read-only", st.Name)
		}
	}
}

func TestNewRegistersEveryTool(t *testing.T) {
	g, _ := newGateway(t)
	if len(g.ToolNames()) != len(schema.Tools()) {
		t.Errorf("registered %d tools, want %d", len(g.ToolNames()), len(schema.Tools()))
	}
	if g.MCPServer() == nil {
		t.Error("MCPServer() returned nil")
	}
}

func TestCallAccepted(t *testing.T) {
	g, _ := newGateway(t)
	res, err := g.Call(context.Background(), "place_market_order", map[string]any{"symbol": "AAPL", "side": "buy", "qty": float64(5)})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if res.IsError {
		t.Fatalf("IsError set on an accepted order: %+v", res.StructuredContent)
	}
	env, ok := res.StructuredContent.(result.Envelope)
	if !ok || env.Status != result.StatusAccepted {
		t.Errorf("StructuredContent = %+v, want an accepted envelope", res.StructuredContent)
	}
	text, ok := res.Content[0].(mcp.TextContent)
	if !ok || !strings.Contains(text.Text, `"status": "accepted"`) {
		t.Errorf("text content = %+v, want the JSON envelope", res.Content[0])
	}
}

func TestCallFailuresAreInBand(t *testing.T) {
	g, sim := newGateway(t)
	ctx := context.Background()
	sim.Reject(broker.RejectRule{Tag: domain.LegStopLoss, Reason: "stop price too close"})

	tests := []struct {
		name   string
		tool   string
		args   map[string]any
		status result.Status
	}{
		{"schema", "place_market_order", map[string]any{"symbol": "AAPL"}, result.StatusInvalid},
		{"partial failure", "place_bracket_order", map[string]any{
			"symbol": "AAPL", "side": "buy", "qty": float64(10),
			"take_profit_limit_price": float64(180), "stop_loss_stop_price": float64(165),
		}, result.StatusPartialFailure},
		{"not found", "get_order", map[string]any{"order_id": "missing"}, result.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := g.Call(ctx, tt.tool, tt.args)
			if err != nil {
				t.Fatalf("Call returned a protocol error: %v", err)
			}
			env := res.StructuredContent.(result.Envelope)
			if !res.IsError || env.Status != tt.status {
				t.Errorf("IsError = %v, status = %q; want true, %q", res.IsError, env.Status, tt.status)
			}
		})
	}
}

func TestHTTPHandler(t *testing.T) {
	g, _ := newGateway(t)

	if _, err := g.HTTPHandler(config.TransportStdio); err == nil {
		t.Error("HTTPHandler(stdio) returned no error")
	}
	for _, tr := range []string{config.TransportSSE, config.TransportStreamableHTTP} {
		if h, err := g.HTTPHandler(tr); err != nil || h == nil {
			t.Errorf("HTTPHandler(%s) = %v, %v", tr, h, err)
		}
	}

	h, _ := g.HTTPHandler(config.TransportStreamableHTTP)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/elsewhere", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("GET /elsewhere = %d, want 404", rec.Code)
	}
}

func TestServeUnknownTransport(t *testing.T) {
	g, _ := newGateway(t)
	if err := g.Serve(context.Background(), config.Server{Transport: "carrier-pigeon"}); err == nil {
		t.Error("Serve accepted an unknown transport")
	}
}
