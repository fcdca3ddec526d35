package schema

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"trademcp/internal/domain"
	"trademcp/internal/order"
)

// Typed requests for the tools that do not construct orders.
type (
	CancelOrder         struct{ OrderID string }
	GetAccount          struct{}
	GetPositions        struct{}
	GetOrder            struct{ OrderID string }
	GetOptionContract   struct{ Symbol string }
	GetOptionPositions  struct{}
	GetLatestQuotes     struct{ Symbols []string }
	CloseAllPositions   struct{ CancelOrders bool }
	GetOrders           = domain.OrderQuery
	ClosePosition       = domain.ClosePositionRequest
	GetStockBars        = domain.BarQuery
	GetPortfolioHistory = domain.PortfolioHistoryQuery
	GetOptionContracts  = domain.OptionContractQuery
	ExercisePosition    = domain.ExerciseRequest
)

var (
	sides        = []string{"buy", "sell"}
	entryTypes   = []string{"market", "limit"}
	optionTypes  = []string{"market", "limit"}
	linkedTIFs   = []string{"day", "gtc"}
	orderStatus  = []string{"open", "closed", "all"}
	contractType = []string{"call", "put"}
)

func tifs() []string {
	out := make([]string, len(domain.TimeInForces))
	for i, t := range domain.TimeInForces {
		out[i] = string(t)
	}
	return out
}

func intents() []string {
	out := make([]string, len(domain.PositionIntents))
	for i, p := range domain.PositionIntents {
		out[i] = string(p)
	}
	return out
}

// ---- shared field declarations ----

func symbolField(desc string) Field {
	return Field{Name: "symbol", Kind: String, Required: true, Description: desc}
}

func sideField(required bool, desc string) Field {
	return Field{Name: "side", Kind: String, Required: required, Enum: sides, Description: desc}
}

func tifField(enum []string) Field {
	return Field{Name: "time_in_force", Kind: String, Enum: enum,
		Description: "Time in force; defaults to the server's configured default (gtc unless changed)."}
}

func priceField(name string, required bool, desc string) Field {
	return Field{Name: name, Kind: Number, Required: required, Description: desc}
}

// simpleFields are the fields every single stock order accepts.
func simpleFields(extra ...Field) []Field {
	fields := []Field{
		symbolField("Stock symbol, e.g. AAPL."),
		sideField(true, "buy or sell."),
		{Name: "qty", Kind: Number, Description: "Whole number of shares. Mutually exclusive with notional."},
		{Name: "notional", Kind: Number, Description: "Dollar amount to trade. Mutually exclusive with qty."},
		tifField(tifs()),
		{Name: "extended_hours", Kind: Boolean, Default: false, Description: "Allow execution in pre and post market sessions."},
	}
	return append(fields, extra...)
}

func exitFields() []Field {
	return []Field{
		priceField("take_profit_limit_price", true, "Limit price of the take-profit exit."),
		priceField("stop_loss_stop_price", true, "Trigger price of the stop-loss exit."),
		priceField("stop_loss_limit_price", false, "Optional limit for the stop-loss; omitted means a plain stop."),
	}
}

func simpleTool(name string, typ domain.OrderType, desc string, extra ...Field) *Tool {
	return &Tool{
		Name:        name,
		Description: desc,
		Fields:      simpleFields(extra...),
		decode: func(a Args) (any, error) {
			return order.SimpleRequest{Intent: domain.OrderIntent{
				Symbol:        a.String("symbol"),
				Side:          domain.Side(a.String("side")),
				Type:          typ,
				TimeInForce:   domain.TimeInForce(a.String("time_in_force")),
				Qty:           a.Decimal("qty"),
				Notional:      a.Decimal("notional"),
				LimitPrice:    a.Decimal("limit_price"),
				StopPrice:     a.Decimal("stop_price"),
				TrailPrice:    a.Decimal("trail_price"),
				TrailPercent:  a.Decimal("trail_percent"),
				ExtendedHours: a.Bool("extended_hours"),
			}}, nil
		},
	}
}

func noArgs(name, desc string, req any) *Tool {
	return &Tool{Name: name, Description: desc, ReadOnly: true,
		decode: func(Args) (any, error) { return req, nil }}
}

var registry = buildRegistry()

func buildRegistry() map[string]*Tool {
	tools := []*Tool{
		simpleTool("place_market_order", domain.OrderTypeMarket,
			"Place a market order for a stock by share quantity or notional amount."),
		// Price presence is a business rule owned by order.Validator, so the
		// type-specific prices are optional here.
		simpleTool("place_limit_order", domain.OrderTypeLimit,
			"Place a limit order for a stock. limit_price is required.",
			priceField("limit_price", false, "Limit price.")),
		simpleTool("place_stop_order", domain.OrderTypeStop,
			"Place a stop (market) order that triggers at stop_price. stop_price is required.",
			priceField("stop_price", false, "Trigger price.")),
		simpleTool("place_stop_limit_order", domain.OrderTypeStopLimit,
			"Place a stop-limit order: becomes a limit order at limit_price once stop_price trades. Both prices are required.",
			priceField("stop_price", false, "Trigger price."),
			priceField("limit_price", false, "Limit price after the trigger.")),
		simpleTool("place_trailing_stop_order", domain.OrderTypeTrailingStop,
			"Place a trailing stop order. Give exactly one of trail_price or trail_percent.",
			priceField("trail_price", false, "Trail distance in dollars."),
			priceField("trail_percent", false, "Trail distance in percent, between 0 and 100.")),
		{
			Name: "place_bracket_order",
			Description: "Open a NEW position with an entry order plus linked take-profit and stop-loss exits (3 orders). " +
				"For a buy, take_profit > entry > stop_loss; for a sell the inequality reverses.",
			Fields: append([]Field{
				symbolField("Stock symbol."),
				{Name: "qty", Kind: Number, Required: true, Description: "Whole number of shares."},
				sideField(true, "buy opens a long, sell opens a short."),
				{Name: "entry_type", Kind: String, Enum: entryTypes, Default: "market", Description: "Entry order type."},
				priceField("entry_limit_price", false, "Entry limit price; required when entry_type is limit."),
				tifField(linkedTIFs),
			}, exitFields()...),
			decode: func(a Args) (any, error) {
				return order.BracketRequest{
					Symbol:               a.String("symbol"),
					Side:                 domain.Side(a.String("side")),
					Qty:                  *a.Decimal("qty"),
					EntryType:            domain.OrderType(a.String("entry_type")),
					EntryLimitPrice:      a.Decimal("entry_limit_price"),
					TakeProfitLimitPrice: *a.Decimal("take_profit_limit_price"),
					StopLossStopPrice:    *a.Decimal("stop_loss_stop_price"),
					StopLossLimitPrice:   a.Decimal("stop_loss_limit_price"),
					TimeInForce:          domain.TimeInForce(a.String("time_in_force")),
				}, nil
			},
		},
		{
			Name: "place_oco_order",
			Description: "Protect an EXISTING position with linked take-profit and stop-loss exits (2 orders). " +
				"side is the exit side: sell for a long position, buy for a short.",
			Fields: append([]Field{
				symbolField("Stock symbol of the held position."),
				{Name: "qty", Kind: Number, Required: true, Description: "Whole number of shares to exit."},
				sideField(true, "sell exits a long, buy covers a short."),
				tifField(linkedTIFs),
			}, exitFields()...),
			decode: func(a Args) (any, error) {
				return order.OCORequest{
					Symbol:               a.String("symbol"),
					Side:                 domain.Side(a.String("side")),
					Qty:                  *a.Decimal("qty"),
					TakeProfitLimitPrice: *a.Decimal("take_profit_limit_price"),
					StopLossStopPrice:    *a.Decimal("stop_loss_stop_price"),
					StopLossLimitPrice:   a.Decimal("stop_loss_limit_price"),
					TimeInForce:          domain.TimeInForce(a.String("time_in_force")),
				}, nil
			},
		},
		{
			Name:        "place_option_order",
			Description: "Place a single-leg option order on an OCC contract symbol such as AAPL241220C00150000.",
			Fields: []Field{
				symbolField("OCC option contract symbol."),
				{Name: "qty", Kind: Number, Required: true, Description: "Number of contracts."},
				sideField(false, "buy or sell; derived from position_intent when omitted."),
				{Name: "position_intent", Kind: String, Required: true, Enum: intents(), Description: "Whether the order opens or closes a position."},
				{Name: "order_type", Kind: String, Enum: optionTypes, Default: "market", Description: "market or limit."},
				priceField("limit_price", false, "Limit price per contract; required for limit orders."),
				tifField(tifs()),
			},
			decode: func(a Args) (any, error) {
				return order.OptionRequest{
					Symbol:         a.String("symbol"),
					Qty:            *a.Decimal("qty"),
					Side:           domain.Side(a.String("side")),
					PositionIntent: domain.PositionIntent(a.String("position_intent")),
					Type:           domain.OrderType(a.String("order_type")),
					LimitPrice:     a.Decimal("limit_price"),
					TimeInForce:    domain.TimeInForce(a.String("time_in_force")),
				}, nil
			},
		},
		{
			Name: "place_multi_leg_option_order",
			Description: "Place a 2 to 4 leg option order (spreads, straddles, condors) executed as one unit. " +
				"Legs must share an underlying and must all open or all close positions.",
			Fields: []Field{
				{Name: "legs", Kind: Array, Required: true, MinItems: 1, Description: "Ordered option legs.",
					Items: []Field{
						symbolField("OCC option contract symbol."),
						{Name: "ratio_qty", Kind: Integer, Default: 1, Description: "Contracts of this leg per strategy unit."},
						sideField(false, "buy or sell; derived from position_intent when omitted."),
						{Name: "position_intent", Kind: String, Required: true, Enum: intents(), Description: "Whether the leg opens or closes a position."},
					}},
				{Name: "qty", Kind: Number, Description: "Number of strategy units; defaults to 1."},
				{Name: "order_type", Kind: String, Enum: optionTypes, Default: "market", Description: "market or limit."},
				priceField("limit_price", false, "Net limit price for the strategy; negative for a net credit."),
				tifField(tifs()),
			},
			decode: func(a Args) (any, error) {
				var legs []order.LegSpec
				for _, l := range a.Objects("legs") {
					legs = append(legs, order.LegSpec{
						Symbol:         l.String("symbol"),
						RatioQty:       l.Int("ratio_qty"),
						Side:           domain.Side(l.String("side")),
						PositionIntent: domain.PositionIntent(l.String("position_intent")),
					})
				}
				return order.MultiLegRequest{
					Legs:        legs,
					Qty:         a.Decimal("qty"),
					Type:        domain.OrderType(a.String("order_type")),
					LimitPrice:  a.Decimal("limit_price"),
					TimeInForce: domain.TimeInForce(a.String("time_in_force")),
				}, nil
			},
		},
		{
			Name:        "cancel_order",
			Description: "Cancel an open order by its brokerage order id.",
			Destructive: true,
			Fields:      []Field{{Name: "order_id", Kind: String, Required: true, Description: "Brokerage order id."}},
			decode: func(a Args) (any, error) {
				return CancelOrder{OrderID: a.String("order_id")}, nil
			},
		},
		{
			Name:        "close_position",
			Description: "Liquidate all or part of a position. Give at most one of qty or percentage.",
			Destructive: true,
			Fields: []Field{
				symbolField("Symbol of the position to close."),
				{Name: "qty", Kind: Number, Description: "Number of shares or contracts to close."},
				{Name: "percentage", Kind: Number, Description: "Percent of the position to close, 0 to 100."},
			},
			decode: func(a Args) (any, error) {
				return ClosePosition{
					Symbol:     strings.ToUpper(a.String("symbol")),
					Qty:        a.Decimal("qty"),
					Percentage: a.Decimal("percentage"),
				}, nil
			},
		},
		{
			Name:        "close_all_positions",
			Description: "Liquidate every open position, optionally cancelling open orders first.",
			Destructive: true,
			Fields:      []Field{{Name: "cancel_orders", Kind: Boolean, Default: false, Description: "Cancel all open orders before liquidating."}},
			decode: func(a Args) (any, error) {
				return CloseAllPositions{CancelOrders: a.Bool("cancel_orders")}, nil
			},
		},
		{
			Name: "exercise_option_position",
			Description: "Exercise a long option position. The brokerage exercises every held contract; " +
				"qty, when given, must equal the held quantity.",
			Destructive: true,
			Fields: []Field{
				symbolField("OCC option contract symbol of the held position."),
				{Name: "qty", Kind: Number, Description: "Contracts to exercise; defaults to the whole position."},
			},
			decode: func(a Args) (any, error) {
				return ExercisePosition{
					Symbol: strings.ToUpper(a.String("symbol")),
					Qty:    a.Decimal("qty"),
				}, nil
			},
		},
		noArgs("get_account_info", "Get account balances, buying power and status.", GetAccount{}),
		noArgs("get_positions", "List all open positions.", GetPositions{}),
		noArgs("get_option_positions", "List open option positions.", GetOptionPositions{}),
		{
			Name:        "get_orders",
			Description: "List orders filtered by status.",
			ReadOnly:    true,
			Fields: []Field{
				{Name: "status", Kind: String, Enum: orderStatus, Default: "open", Description: "open, closed or all."},
				{Name: "limit", Kind: Integer, Default: 50, Description: "Maximum number of orders, 1 to 500."},
				{Name: "symbols", Kind: String, Description: "Optional comma-separated symbol filter."},
			},
			decode: func(a Args) (any, error) {
				limit := a.Int("limit")
				if limit < 1 || limit > 500 {
					return nil, &domain.SchemaError{Field: "limit", Reason: "must be between 1 and 500"}
				}
				return GetOrders{Status: a.String("status"), Limit: limit, Symbols: a.Symbols("symbols")}, nil
			},
		},
		{
			Name:        "get_order",
			Description: "Get one order by its brokerage order id.",
			ReadOnly:    true,
			Fields:      []Field{{Name: "order_id", Kind: String, Required: true, Description: "Brokerage order id."}},
			decode: func(a Args) (any, error) {
				return GetOrder{OrderID: a.String("order_id")}, nil
			},
		},
		{
			Name:        "get_latest_quotes",
			Description: "Get the latest bid and ask for one or more stocks.",
			ReadOnly:    true,
			Fields:      []Field{{Name: "symbols", Kind: String, Required: true, Description: "Comma-separated symbols, e.g. AAPL,MSFT."}},
			decode: func(a Args) (any, error) {
				syms := a.Symbols("symbols")
				if len(syms) == 0 {
					return nil, &domain.SchemaError{Field: "symbols", Reason: "must name at least one symbol"}
				}
				return GetLatestQuotes{Symbols: syms}, nil
			},
		},
		{
			Name:        "get_stock_bars",
			Description: "Get historical OHLCV bars. timeframe is one of 1Min, 5Min, 15Min, 1Hour, 1Day.",
			ReadOnly:    true,
			Fields: []Field{
				{Name: "symbols", Kind: String, Required: true, Description: "Comma-separated symbols."},
				{Name: "timeframe", Kind: String, Default: "1Day", Description: "Bar size."},
				{Name: "start", Kind: String, Description: "Start date, YYYY-MM-DD or RFC 3339."},
				{Name: "end", Kind: String, Description: "End date, YYYY-MM-DD or RFC 3339."},
				{Name: "limit", Kind: Integer, Description: "Maximum number of bars returned across all symbols."},
			},
			decode: func(a Args) (any, error) {
				q := GetStockBars{Symbols: a.Symbols("symbols"), Timeframe: a.String("timeframe"), Limit: a.Int("limit")}
				if len(q.Symbols) == 0 {
					return nil, &domain.SchemaError{Field: "symbols", Reason: "must name at least one symbol"}
				}
				var err error
				if q.Start, err = parseTime(a, "start"); err != nil {
					return nil, err
				}
				if q.End, err = parseTime(a, "end"); err != nil {
					return nil, err
				}
				return q, nil
			},
		},
		{
			Name:        "get_portfolio_history",
			Description: "Get account equity and profit/loss over time.",
			ReadOnly:    true,
			Fields: []Field{
				{Name: "period", Kind: String, Description: "Window such as 1D, 1W, 1M, 3M, 1A."},
				{Name: "timeframe", Kind: String, Description: "Resolution such as 1Min, 15Min, 1H, 1D."},
			},
			decode: func(a Args) (any, error) {
				return GetPortfolioHistory{Period: a.String("period"), Timeframe: a.String("timeframe")}, nil
			},
		},
		{
			Name:        "get_option_contracts",
			Description: "Search listed option contracts for one or more underlyings.",
			ReadOnly:    true,
			Fields: []Field{
				{Name: "underlying_symbols", Kind: String, Required: true, Description: "Comma-separated underlying symbols."},
				{Name: "expiration_date", Kind: String, Description: "Exact expiration, YYYY-MM-DD."},
				{Name: "expiration_date_gte", Kind: String, Description: "Earliest expiration, YYYY-MM-DD."},
				{Name: "expiration_date_lte", Kind: String, Description: "Latest expiration, YYYY-MM-DD."},
				{Name: "type", Kind: String, Enum: contractType, Description: "call or put."},
				priceField("strike_price_gte", false, "Minimum strike."),
				priceField("strike_price_lte", false, "Maximum strike."),
				{Name: "limit", Kind: Integer, Description: "Maximum contracts to return."},
			},
			decode: func(a Args) (any, error) {
				q := GetOptionContracts{
					UnderlyingSymbols: a.Symbols("underlying_symbols"),
					ExpirationDate:    a.String("expiration_date"),
					ExpirationGTE:     a.String("expiration_date_gte"),
					ExpirationLTE:     a.String("expiration_date_lte"),
					Type:              a.String("type"),
					StrikePriceGTE:    a.Decimal("strike_price_gte"),
					StrikePriceLTE:    a.Decimal("strike_price_lte"),
					Limit:             a.Int("limit"),
				}
				for field, v := range map[string]string{
					"expiration_date":     q.ExpirationDate,
					"expiration_date_gte": q.ExpirationGTE,
					"expiration_date_lte": q.ExpirationLTE,
				} {
					if v == "" {
						continue
					}
					if _, err := time.Parse(time.DateOnly, v); err != nil {
						return nil, &domain.SchemaError{Field: field, Reason: "must be a date in YYYY-MM-DD form"}
					}
				}
				return q, nil
			},
		},
		{
			Name:        "get_option_contract",
			Description: "Get one option contract by OCC symbol or id.",
			ReadOnly:    true,
			Fields:      []Field{symbolField("OCC option symbol or contract id.")},
			decode: func(a Args) (any, error) {
				return GetOptionContract{Symbol: strings.ToUpper(a.String("symbol"))}, nil
			},
		},
	}

	m := make(map[string]*Tool, len(tools))
	for _, t := range tools {
		if t.decode == nil {
			panic(fmt.Sprintf("schema: tool %s has no decoder", t.Name))
		}
		m[t.Name] = t
	}
	return m
}

func parseTime(a Args, name string) (time.Time, error) {
	s := a.String(name)
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range []string{time.RFC3339, time.DateOnly} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, &domain.SchemaError{Field: name, Reason: "must be YYYY-MM-DD or RFC 3339"}
}

// Lookup returns the tool named name.
func Lookup(name string) (*Tool, bool) {
	t, ok := registry[name]
	return t, ok
}

// Tools returns every tool sorted by name.
func Tools() []*Tool {
	out := make([]*Tool, 0, len(registry))
	for _, t := range registry {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Parse structurally validates the arguments of the named tool.
func Parse(name string, raw map[string]any) (any, error) {
	t, ok := Lookup(name)
	if !ok {
		return nil, &domain.SchemaError{Reason: fmt.Sprintf("unknown tool %q", name)}
	}
	return t.Parse(raw)
}

// IsOrderTool reports whether the tool constructs and submits orders.
func IsOrderTool(name string) bool {
	return strings.HasPrefix(name, "place_")
}
