package broker

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/shopspring/decimal"

	"trademcp/internal/domain"
	"trademcp/internal/util"
)

// Compile-time interface checks.
var (
	_ Broker     = (*AlpacaBroker)(nil)
	_ MarketData = (*AlpacaBroker)(nil)
)

// AlpacaOptions configures an AlpacaBroker. Empty credentials fall back to
// the APCA_API_KEY_ID and APCA_API_SECRET_KEY environment variables.
type AlpacaOptions struct {
	APIKey    string
	APISecret string
	BaseURL   string
	DataURL   string
	Feed      string
	// RequestsPerMinute paces every call; zero disables pacing.
	RequestsPerMinute int
	// RetryLimit bounds the SDK's own retries of HTTP 429 answers.
	RetryLimit int
	Timeout    time.Duration
	HTTPClient *http.Client
}

// AlpacaBroker implements Broker and MarketData on the Alpaca trading and
// market data APIs.
type AlpacaBroker struct {
	client  *alpaca.Client
	data    *marketdata.Client
	feed    string
	limiter *util.RateLimiter
	log     *slog.Logger

	// Used for trading endpoints the SDK does not wrap.
	httpClient *http.Client
	baseURL    string
	apiKey     string
	apiSecret  string
}

// NewAlpacaBroker creates a new AlpacaBroker from opts.
func NewAlpacaBroker(opts AlpacaOptions) *AlpacaBroker {
	httpClient := opts.HTTPClient
	if httpClient == nil && opts.Timeout > 0 {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}

	// Resolve credentials and endpoint the way the SDK does so direct
	// requests reach the same account.
	apiKey := cmp.Or(opts.APIKey, os.Getenv("APCA_API_KEY_ID"))
	apiSecret := cmp.Or(opts.APISecret, os.Getenv("APCA_API_SECRET_KEY"))
	baseURL := cmp.Or(opts.BaseURL, os.Getenv("APCA_API_BASE_URL"), "https://api.alpaca.markets")

	tradeOpts := alpaca.ClientOpts{
		APIKey:     apiKey,
		APISecret:  apiSecret,
		BaseURL:    baseURL,
		RetryLimit: opts.RetryLimit,
		HTTPClient: httpClient,
	}
	dataOpts := marketdata.ClientOpts{
		APIKey:     opts.APIKey,
		APISecret:  opts.APISecret,
		RetryLimit: opts.RetryLimit,
		HTTPClient: httpClient,
	}
	if opts.DataURL != "" {
		dataOpts.BaseURL = opts.DataURL
	}

	feed := opts.Feed
	if feed == "" {
		feed = marketdata.IEX
	}

	return &AlpacaBroker{
		client:  alpaca.NewClient(tradeOpts),
		data:    marketdata.NewClient(dataOpts),
		feed:    feed,
		limiter: util.NewRateLimiter(opts.RequestsPerMinute),
		log:     slog.Default().With("broker", "alpaca"),

		httpClient: cmp.Or(httpClient, &http.Client{Timeout: 10 * time.Second}),
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		apiSecret:  apiSecret,
	}
}

// Name returns "alpaca".
func (b *AlpacaBroker) Name() string {
	return "alpaca"
}

// ---- orders ----

// SubmitOrder sends a single order via POST /v2/orders.
func (b *AlpacaBroker) SubmitOrder(ctx context.Context, d domain.OrderDescriptor) (*domain.Order, error) {
	req := alpaca.PlaceOrderRequest{
		Symbol:         d.Symbol,
		Qty:            d.Qty,
		Notional:       d.Notional,
		Side:           alpaca.Side(d.Side),
		Type:           alpaca.OrderType(d.Type),
		TimeInForce:    alpaca.TimeInForce(d.TimeInForce),
		LimitPrice:     d.LimitPrice,
		StopPrice:      d.StopPrice,
		TrailPrice:     d.TrailPrice,
		TrailPercent:   d.TrailPercent,
		ExtendedHours:  d.ExtendedHours,
		ClientOrderID:  d.ClientOrderID,
		PositionIntent: alpaca.PositionIntent(d.PositionIntent),
	}
	o, err := b.place(ctx, "submit order", req)
	if err != nil {
		return nil, err
	}
	out := toOrder(o)
	return &out, nil
}

// SubmitGroup sends a bracket or OCO group as one linked Alpaca order. The
// parent order carries the first descriptor (entry for a bracket,
// take_profit for an OCO) and the brokerage creates the exit legs.
func (b *AlpacaBroker) SubmitGroup(ctx context.Context, g domain.OrderGroup) (domain.GroupSubmission, error) {
	sub := domain.GroupSubmission{LinkedGroupID: g.LinkedGroupID, Class: g.Class}
	req, err := groupRequest(g)
	if err != nil {
		return sub, err
	}

	o, err := b.place(ctx, fmt.Sprintf("submit %s order", g.Class), req)
	if err != nil {
		var rej *domain.SubmissionRejected
		if !errors.As(err, &rej) {
			return sub, err
		}
		for i, d := range g.Legs {
			out := domain.LegOutcome{Tag: d.Tag, ClientOrderID: d.ClientOrderID, Outcome: domain.OutcomeNotSubmitted}
			if i == 0 {
				out.Outcome = domain.OutcomeRejected
				out.Reason = rej.Reason
			}
			sub.Legs = append(sub.Legs, out)
		}
		return sub, nil
	}

	sub.Legs = matchLegs(g, o)
	b.log.Info("group submitted", "class", g.Class, "linkedGroupId", g.LinkedGroupID,
		"orderId", o.ID, "legs", len(o.Legs))
	return sub, nil
}

// SubmitMultiLeg sends a multi-leg option order with order_class mleg.
func (b *AlpacaBroker) SubmitMultiLeg(ctx context.Context, m domain.MultiLegOrderDescriptor) (*domain.Order, error) {
	qty := m.Qty
	req := alpaca.PlaceOrderRequest{
		Qty:           &qty,
		Type:          alpaca.OrderType(m.Type),
		TimeInForce:   alpaca.TimeInForce(m.TimeInForce),
		LimitPrice:    m.LimitPrice,
		ClientOrderID: m.ClientOrderID,
		OrderClass:    alpaca.MLeg,
	}
	for _, l := range m.Legs {
		req.Legs = append(req.Legs, alpaca.Leg{
			Symbol:         l.Symbol,
			Side:           alpaca.Side(l.Side),
			PositionIntent: alpaca.PositionIntent(l.PositionIntent),
			RatioQty:       decimal.NewFromInt(int64(l.RatioQty)),
		})
	}
	o, err := b.place(ctx, "submit multi-leg order", req)
	if err != nil {
		return nil, err
	}
	out := toOrder(o)
	return &out, nil
}

func (b *AlpacaBroker) place(ctx context.Context, op string, req alpaca.PlaceOrderRequest) (*alpaca.Order, error) {
	if err := b.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	o, err := b.client.PlaceOrder(req)
	if err != nil {
		return nil, classify(op, err, nil)
	}
	return o, nil
}

// CancelOrder requests cancellation via DELETE /v2/orders/{orderID}.
func (b *AlpacaBroker) CancelOrder(ctx context.Context, orderID string) error {
	if err := b.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("cancel order: %w", err)
	}
	if err := b.client.CancelOrder(orderID); err != nil {
		return classify("cancel order", err, domain.ErrOrderNotFound)
	}
	return nil
}

// GetOrder returns one order with its legs nested.
func (b *AlpacaBroker) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	if err := b.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	o, err := b.client.GetOrder(orderID)
	if err != nil {
		return nil, classify("get order", err, domain.ErrOrderNotFound)
	}
	out := toOrder(o)
	return &out, nil
}

// ListOrders returns orders matching q, newest first.
func (b *AlpacaBroker) ListOrders(ctx context.Context, q domain.OrderQuery) ([]domain.Order, error) {
	if err := b.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	orders, err := b.client.GetOrders(alpaca.GetOrdersRequest{
		Status:    q.Status,
		Limit:     q.Limit,
		Direction: "desc",
		Nested:    true,
		Symbols:   q.Symbols,
	})
	if err != nil {
		return nil, classify("list orders", err, nil)
	}
	out := make([]domain.Order, 0, len(orders))
	for i := range orders {
		out = append(out, toOrder(&orders[i]))
	}
	return out, nil
}

// ---- positions and account ----

// GetPositions returns all open positions.
func (b *AlpacaBroker) GetPositions(ctx context.Context) ([]domain.Position, error) {
	if err := b.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("get positions: %w", err)
	}
	positions, err := b.client.GetPositions()
	if err != nil {
		return nil, classify("get positions", err, nil)
	}
	out := make([]domain.Position, 0, len(positions))
	for _, p := range positions {
		out = append(out, domain.Position{
			Symbol:         p.Symbol,
			AssetClass:     string(p.AssetClass),
			Side:           p.Side,
			Qty:            p.Qty,
			AvgEntryPrice:  p.AvgEntryPrice,
			CostBasis:      p.CostBasis,
			CurrentPrice:   p.CurrentPrice,
			MarketValue:    p.MarketValue,
			UnrealizedPL:   p.UnrealizedPL,
			UnrealizedPLPC: p.UnrealizedPLPC,
		})
	}
	return out, nil
}

// GetAccount returns the current account snapshot.
func (b *AlpacaBroker) GetAccount(ctx context.Context) (*domain.AccountInfo, error) {
	if err := b.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	a, err := b.client.GetAccount()
	if err != nil {
		return nil, classify("get account", err, nil)
	}
	return &domain.AccountInfo{
		ID:               a.ID,
		AccountNumber:    a.AccountNumber,
		Status:           a.Status,
		Currency:         a.Currency,
		Cash:             a.Cash,
		Equity:           a.Equity,
		PortfolioValue:   a.PortfolioValue,
		BuyingPower:      a.BuyingPower,
		LongMarketValue:  a.LongMarketValue,
		ShortMarketValue: a.ShortMarketValue,
		DaytradeCount:    a.DaytradeCount,
		PatternDayTrader: a.PatternDayTrader,
	}, nil
}

// ClosePosition liquidates all or part of one position at market.
func (b *AlpacaBroker) ClosePosition(ctx context.Context, req domain.ClosePositionRequest) (*domain.Order, error) {
	if err := b.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("close position: %w", err)
	}
	var r alpaca.ClosePositionRequest
	if req.Qty != nil {
		r.Qty = *req.Qty
	}
	if req.Percentage != nil {
		r.Percentage = *req.Percentage
	}
	o, err := b.client.ClosePosition(req.Symbol, r)
	if err != nil {
		return nil, classify("close position", err, domain.ErrNotFound)
	}
	out := toOrder(o)
	return &out, nil
}

// CloseAllPositions liquidates every position. Orders the brokerage did
// create are returned alongside the error when only some positions closed.
func (b *AlpacaBroker) CloseAllPositions(ctx context.Context, cancelOrders bool) ([]domain.Order, error) {
	if err := b.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("close all positions: %w", err)
	}
	orders, err := b.client.CloseAllPositions(alpaca.CloseAllPositionsRequest{CancelOrders: cancelOrders})
	out := make([]domain.Order, 0, len(orders))
	for i := range orders {
		out = append(out, toOrder(&orders[i]))
	}
	if err != nil {
		return out, classify("close all positions", err, nil)
	}
	return out, nil
}

// ExercisePosition exercises every held contract of an option position via
// POST /v2/positions/{symbol}/exercise. The SDK has no call for this
// endpoint, so the request is made directly with the account credentials.
func (b *AlpacaBroker) ExercisePosition(ctx context.Context, symbol string) error {
	if err := b.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("exercise position: %w", err)
	}
	endpoint := fmt.Sprintf("%s/v2/positions/%s/exercise", b.baseURL, url.PathEscape(symbol))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return fmt.Errorf("exercise position: %w", err)
	}
	req.Header.Set("User-Agent", alpaca.Version())
	req.Header.Set("APCA-API-KEY-ID", b.apiKey)
	req.Header.Set("APCA-API-SECRET-KEY", b.apiSecret)

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return classify("exercise position", err, nil)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusMultipleChoices {
		return classify("exercise position", alpaca.APIErrorFromResponse(resp), domain.ErrNotFound)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	b.log.Info("position exercised", "symbol", symbol)
	return nil
}

// GetPortfolioHistory returns the account equity series.
func (b *AlpacaBroker) GetPortfolioHistory(ctx context.Context, q domain.PortfolioHistoryQuery) (*domain.PortfolioHistory, error) {
	if err := b.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("get portfolio history: %w", err)
	}
	h, err := b.client.GetPortfolioHistory(alpaca.GetPortfolioHistoryRequest{
		Period:    q.Period,
		TimeFrame: alpaca.TimeFrame(q.Timeframe),
	})
	if err != nil {
		return nil, classify("get portfolio history", err, nil)
	}
	return &domain.PortfolioHistory{
		Timeframe:     string(h.Timeframe),
		BaseValue:     h.BaseValue,
		Timestamps:    h.Timestamp,
		Equity:        h.Equity,
		ProfitLoss:    h.ProfitLoss,
		ProfitLossPct: h.ProfitLossPct,
	}, nil
}

// ---- options ----

// GetOptionContracts searches active option contracts.
func (b *AlpacaBroker) GetOptionContracts(ctx context.Context, q domain.OptionContractQuery) ([]domain.OptionContract, error) {
	req := alpaca.GetOptionContractsRequest{
		UnderlyingSymbols: strings.Join(q.UnderlyingSymbols, ","),
		Status:            alpaca.OptionStatusActive,
		Type:              alpaca.OptionType(q.Type),
		TotalLimit:        q.Limit,
	}
	var err error
	if req.ExpirationDate, err = parseDate(q.ExpirationDate); err != nil {
		return nil, err
	}
	if req.ExpirationDateGTE, err = parseDate(q.ExpirationGTE); err != nil {
		return nil, err
	}
	if req.ExpirationDateLTE, err = parseDate(q.ExpirationLTE); err != nil {
		return nil, err
	}
	if q.StrikePriceGTE != nil {
		req.StrikePriceGTE = *q.StrikePriceGTE
	}
	if q.StrikePriceLTE != nil {
		req.StrikePriceLTE = *q.StrikePriceLTE
	}

	if err := b.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("get option contracts: %w", err)
	}
	contracts, err := b.client.GetOptionContracts(req)
	if err != nil {
		return nil, classify("get option contracts", err, nil)
	}
	out := make([]domain.OptionContract, 0, len(contracts))
	for i := range contracts {
		out = append(out, toContract(&contracts[i]))
	}
	return out, nil
}

// GetOptionContract returns one contract by OCC symbol or id.
func (b *AlpacaBroker) GetOptionContract(ctx context.Context, symbolOrID string) (*domain.OptionContract, error) {
	if err := b.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("get option contract: %w", err)
	}
	c, err := b.client.GetOptionContract(symbolOrID)
	if err != nil {
		return nil, classify("get option contract", err, domain.ErrNotFound)
	}
	out := toContract(c)
	return &out, nil
}

// ---- market data ----

// GetLatestQuotes returns the latest quote per symbol in request order.
// Symbols without a quote are omitted.
func (b *AlpacaBroker) GetLatestQuotes(ctx context.Context, symbols []string) ([]domain.Quote, error) {
	if err := b.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("get latest quotes: %w", err)
	}
	quotes, err := b.data.GetLatestQuotes(symbols, marketdata.GetLatestQuoteRequest{Feed: b.feed})
	if err != nil {
		return nil, classify("get latest quotes", err, nil)
	}
	out := make([]domain.Quote, 0, len(symbols))
	for _, sym := range symbols {
		q, ok := quotes[sym]
		if !ok {
			continue
		}
		out = append(out, domain.Quote{
			Symbol:    sym,
			Timestamp: q.Timestamp,
			BidPrice:  q.BidPrice,
			BidSize:   q.BidSize,
			AskPrice:  q.AskPrice,
			AskSize:   q.AskSize,
		})
	}
	return out, nil
}

// GetBars returns historical bars per symbol. A zero start defaults to 30
// days before the end of the window.
func (b *AlpacaBroker) GetBars(ctx context.Context, q domain.BarQuery) (map[string][]domain.Bar, error) {
	start := q.Start
	if start.IsZero() {
		end := q.End
		if end.IsZero() {
			end = time.Now()
		}
		start = end.AddDate(0, 0, -30)
	}
	if err := b.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("get bars: %w", err)
	}
	bars, err := b.data.GetMultiBars(q.Symbols, marketdata.GetBarsRequest{
		TimeFrame:  barTimeFrame(q.Timeframe),
		Adjustment: marketdata.AdjustmentSplit,
		Start:      start,
		End:        q.End,
		TotalLimit: q.Limit,
		Feed:       b.feed,
	})
	if err != nil {
		return nil, classify("get bars", err, nil)
	}
	out := make(map[string][]domain.Bar, len(bars))
	for sym, series := range bars {
		converted := make([]domain.Bar, 0, len(series))
		for _, bar := range series {
			converted = append(converted, domain.Bar{
				Symbol:     sym,
				Timestamp:  bar.Timestamp,
				Open:       bar.Open,
				High:       bar.High,
				Low:        bar.Low,
				Close:      bar.Close,
				Volume:     bar.Volume,
				TradeCount: bar.TradeCount,
				VWAP:       bar.VWAP,
			})
		}
		out[sym] = converted
	}
	return out, nil
}

// ---- mapping helpers ----

// groupRequest maps a bracket or OCO group onto one Alpaca linked order.
func groupRequest(g domain.OrderGroup) (alpaca.PlaceOrderRequest, error) {
	tp, okTP := g.Leg(domain.LegTakeProfit)
	sl, okSL := g.Leg(domain.LegStopLoss)
	if !okTP || !okSL {
		return alpaca.PlaceOrderRequest{}, fmt.Errorf("%s group %s: missing exit leg", g.Class, g.LinkedGroupID)
	}
	req := alpaca.PlaceOrderRequest{
		TakeProfit: &alpaca.TakeProfit{LimitPrice: tp.LimitPrice},
		StopLoss:   &alpaca.StopLoss{StopPrice: sl.StopPrice, LimitPrice: sl.LimitPrice},
	}

	switch g.Class {
	case domain.OrderClassBracket:
		entry, ok := g.Leg(domain.LegEntry)
		if !ok {
			return req, fmt.Errorf("bracket group %s: missing entry leg", g.LinkedGroupID)
		}
		req.Symbol = entry.Symbol
		req.Qty = entry.Qty
		req.Side = alpaca.Side(entry.Side)
		req.Type = alpaca.OrderType(entry.Type)
		req.TimeInForce = alpaca.TimeInForce(entry.TimeInForce)
		req.LimitPrice = entry.LimitPrice
		req.ClientOrderID = entry.ClientOrderID
		req.OrderClass = alpaca.Bracket
	case domain.OrderClassOCO:
		req.Symbol = tp.Symbol
		req.Qty = tp.Qty
		req.Side = alpaca.Side(tp.Side)
		req.Type = alpaca.Limit
		req.TimeInForce = alpaca.TimeInForce(tp.TimeInForce)
		req.ClientOrderID = tp.ClientOrderID
		req.OrderClass = alpaca.OCO
	default:
		return req, fmt.Errorf("order class %q is not a linked group", g.Class)
	}
	return req, nil
}

// matchLegs pairs the brokerage's parent order and its child legs with the
// group's descriptors. The parent answers the first descriptor; children are
// matched by order type. A descriptor the brokerage did not materialize is
// reported as rejected.
func matchLegs(g domain.OrderGroup, parent *alpaca.Order) []domain.LegOutcome {
	out := make([]domain.LegOutcome, 0, len(g.Legs))
	used := make([]bool, len(parent.Legs))
	for i, d := range g.Legs {
		var o *alpaca.Order
		if i == 0 {
			o = parent
		} else {
			for j := range parent.Legs {
				if !used[j] && legMatches(d, &parent.Legs[j]) {
					used[j] = true
					o = &parent.Legs[j]
					break
				}
			}
		}
		out = append(out, legOutcome(d, o))
	}
	return out
}

func legMatches(d domain.OrderDescriptor, o *alpaca.Order) bool {
	switch d.Tag {
	case domain.LegTakeProfit:
		return o.Type == alpaca.Limit
	case domain.LegStopLoss:
		return o.Type == alpaca.Stop || o.Type == alpaca.StopLimit
	}
	return false
}

func legOutcome(d domain.OrderDescriptor, o *alpaca.Order) domain.LegOutcome {
	out := domain.LegOutcome{Tag: d.Tag, ClientOrderID: d.ClientOrderID}
	switch {
	case o == nil:
		out.Outcome = domain.OutcomeRejected
		out.Reason = "brokerage did not create this leg"
	case o.Status == "rejected":
		out.Outcome = domain.OutcomeRejected
		out.OrderID = o.ID
		out.Status = o.Status
		out.Reason = "rejected by brokerage"
	default:
		out.Outcome = domain.OutcomeAccepted
		out.OrderID = o.ID
		out.Status = o.Status
	}
	return out
}

func toOrder(o *alpaca.Order) domain.Order {
	out := domain.Order{
		ID:             o.ID,
		ClientOrderID:  o.ClientOrderID,
		Symbol:         o.Symbol,
		AssetClass:     string(o.AssetClass),
		Class:          domain.OrderClass(o.OrderClass),
		Side:           domain.Side(o.Side),
		Type:           domain.OrderType(o.Type),
		TimeInForce:    domain.TimeInForce(o.TimeInForce),
		PositionIntent: domain.PositionIntent(o.PositionIntent),
		Status:         o.Status,
		Qty:            o.Qty,
		Notional:       o.Notional,
		FilledQty:      o.FilledQty,
		FilledAvgPrice: o.FilledAvgPrice,
		LimitPrice:     o.LimitPrice,
		StopPrice:      o.StopPrice,
		TrailPrice:     o.TrailPrice,
		TrailPercent:   o.TrailPercent,
		RatioQty:       o.RatioQty,
		SubmittedAt:    o.SubmittedAt,
	}
	for i := range o.Legs {
		out.Legs = append(out.Legs, toOrder(&o.Legs[i]))
	}
	return out
}

func toContract(c *alpaca.OptionContract) domain.OptionContract {
	return domain.OptionContract{
		ID:               c.ID,
		Symbol:           c.Symbol,
		Name:             c.Name,
		Status:           string(c.Status),
		Tradable:         c.Tradable,
		UnderlyingSymbol: c.UnderlyingSymbol,
		Type:             string(c.Type),
		Style:            string(c.Style),
		ExpirationDate:   c.ExpirationDate.String(),
		StrikePrice:      c.StrikePrice,
		Multiplier:       c.Multiplier,
		OpenInterest:     c.OpenInterest,
		ClosePrice:       c.ClosePrice,
	}
}

func parseDate(s string) (civil.Date, error) {
	if s == "" {
		return civil.Date{}, nil
	}
	d, err := civil.ParseDate(s)
	if err != nil {
		return civil.Date{}, &domain.SchemaError{Field: "expiration_date", Reason: fmt.Sprintf("%q is not a YYYY-MM-DD date", s)}
	}
	return d, nil
}

// barTimeFrame maps the tool's timeframe names onto market data timeframes.
// Unknown names fall back to daily bars.
func barTimeFrame(s string) marketdata.TimeFrame {
	switch s {
	case "1Min":
		return marketdata.OneMin
	case "5Min":
		return marketdata.NewTimeFrame(5, marketdata.Min)
	case "15Min":
		return marketdata.NewTimeFrame(15, marketdata.Min)
	case "1Hour":
		return marketdata.OneHour
	}
	return marketdata.OneDay
}

// classify maps an SDK error onto the error taxonomy. An HTTP 404 becomes
// notFound when one is given; other 4xx answers are brokerage rejections.
// Everything else (5xx, network failures, unparseable bodies) leaves the
// outcome unknown and is a transport error.
func classify(op string, err error, notFound error) error {
	var apiErr *alpaca.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == http.StatusNotFound && notFound != nil:
			return fmt.Errorf("%s: %w", op, notFound)
		case apiErr.StatusCode >= 400 && apiErr.StatusCode < 500:
			return &domain.SubmissionRejected{
				StatusCode: apiErr.StatusCode,
				Code:       apiErr.Code,
				Reason:     apiErr.Message,
			}
		}
	}
	return &domain.TransportError{Op: op, Err: err}
}
