package broker

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"trademcp/internal/domain"
	"trademcp/internal/order"
)

// Compile-time interface checks.
var (
	_ Broker     = (*SimulatorBroker)(nil)
	_ MarketData = (*SimulatorBroker)(nil)
)

var sharesPerContract = decimal.NewFromInt(100)

// RejectRule makes the simulator decline matching submissions. Empty fields
// match anything.
type RejectRule struct {
	Symbol string
	Tag    domain.LegTag
	Type   domain.OrderType
	Reason string
}

func (r RejectRule) matches(symbol string, tag domain.LegTag, typ domain.OrderType) bool {
	return (r.Symbol == "" || r.Symbol == symbol) &&
		(r.Tag == "" || r.Tag == tag) &&
		(r.Type == "" || r.Type == typ)
}

// SimulatorBroker implements Broker and MarketData in memory for paper
// trading and tests. Orders are acknowledged but never filled. Linked
// groups are submitted leg by leg, so a rejected exit leg leaves the
// earlier legs live.
type SimulatorBroker struct {
	mu        sync.Mutex
	seq       int
	orders    map[string]*domain.Order
	history   []string // order ids in submission order
	positions map[string]*domain.Position
	quotes    map[string]domain.Quote
	bars      map[string][]domain.Bar
	contracts []domain.OptionContract
	account   domain.AccountInfo
	rules     []RejectRule
	down      bool
	now       func() time.Time
}

// NewSimulatorBroker creates a new SimulatorBroker with an empty book and a
// funded cash account.
func NewSimulatorBroker() *SimulatorBroker {
	cash := decimal.NewFromInt(100_000)
	return &SimulatorBroker{
		orders:    make(map[string]*domain.Order),
		positions: make(map[string]*domain.Position),
		quotes:    make(map[string]domain.Quote),
		bars:      make(map[string][]domain.Bar),
		account: domain.AccountInfo{
			ID:             "simulator",
			AccountNumber:  "SIM0001",
			Status:         "ACTIVE",
			Currency:       "USD",
			Cash:           cash,
			Equity:         cash,
			PortfolioValue: cash,
			BuyingPower:    cash.Mul(decimal.NewFromInt(2)),
		},
		now: time.Now,
	}
}

// Name returns "simulator".
func (b *SimulatorBroker) Name() string {
	return "simulator"
}

// ---- scripting ----

// Reject adds a rule that declines matching submissions.
func (b *SimulatorBroker) Reject(rule RejectRule) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rules = append(b.rules, rule)
}

// SetUnreachable makes every call fail with a transport error while down is
// true.
func (b *SimulatorBroker) SetUnreachable(down bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.down = down
}

// SetQuote seeds the latest quote for q.Symbol.
func (b *SimulatorBroker) SetQuote(q domain.Quote) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.quotes[q.Symbol] = q
}

// SetBars seeds the bar history of symbol.
func (b *SimulatorBroker) SetBars(symbol string, bars []domain.Bar) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.bars[symbol] = bars
}

// SetPosition seeds or replaces a position.
func (b *SimulatorBroker) SetPosition(p domain.Position) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.positions[p.Symbol] = &p
}

// AddContract lists an option contract.
func (b *SimulatorBroker) AddContract(c domain.OptionContract) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.contracts = append(b.contracts, c)
}

// ---- orders ----

// SubmitOrder records a single order.
func (b *SimulatorBroker) SubmitOrder(ctx context.Context, d domain.OrderDescriptor) (*domain.Order, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.reachable(ctx, "submit order"); err != nil {
		return nil, err
	}
	if reason, ok := b.rejected(d.Symbol, d.Tag, d.Type); ok {
		return nil, &domain.SubmissionRejected{StatusCode: http.StatusForbidden, Reason: reason}
	}
	o := b.record(d, domain.OrderClassSimple, "new")
	return &o, nil
}

// SubmitGroup submits the legs of g one at a time. A rejected first leg
// stops the group; later legs are submitted regardless of each other.
func (b *SimulatorBroker) SubmitGroup(ctx context.Context, g domain.OrderGroup) (domain.GroupSubmission, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	sub := domain.GroupSubmission{LinkedGroupID: g.LinkedGroupID, Class: g.Class}
	if err := b.reachable(ctx, fmt.Sprintf("submit %s order", g.Class)); err != nil {
		return sub, err
	}

	for i, d := range g.Legs {
		out := domain.LegOutcome{Tag: d.Tag, ClientOrderID: d.ClientOrderID}
		if i > 0 && sub.Legs[0].Outcome != domain.OutcomeAccepted {
			out.Outcome = domain.OutcomeNotSubmitted
			sub.Legs = append(sub.Legs, out)
			continue
		}
		if reason, ok := b.rejected(d.Symbol, d.Tag, d.Type); ok {
			out.Outcome = domain.OutcomeRejected
			out.Reason = reason
			sub.Legs = append(sub.Legs, out)
			continue
		}
		status := "new"
		if i > 0 {
			status = "held"
		}
		o := b.record(d, g.Class, status)
		out.Outcome = domain.OutcomeAccepted
		out.OrderID = o.ID
		out.Status = o.Status
		sub.Legs = append(sub.Legs, out)
	}
	return sub, nil
}

// SubmitMultiLeg records a multi-leg option order. A rule matching any leg
// rejects the whole order.
func (b *SimulatorBroker) SubmitMultiLeg(ctx context.Context, m domain.MultiLegOrderDescriptor) (*domain.Order, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.reachable(ctx, "submit multi-leg order"); err != nil {
		return nil, err
	}
	for _, l := range m.Legs {
		if reason, ok := b.rejected(l.Symbol, "", m.Type); ok {
			return nil, &domain.SubmissionRejected{StatusCode: http.StatusForbidden, Reason: reason}
		}
	}

	qty := m.Qty
	parent := domain.Order{
		ID:            b.nextID(),
		ClientOrderID: m.ClientOrderID,
		AssetClass:    "us_option",
		Class:         domain.OrderClassMultiLeg,
		Type:          m.Type,
		TimeInForce:   m.TimeInForce,
		Status:        "new",
		Qty:           &qty,
		LimitPrice:    m.LimitPrice,
		SubmittedAt:   b.now(),
	}
	for _, l := range m.Legs {
		ratio := decimal.NewFromInt(int64(l.RatioQty))
		parent.Legs = append(parent.Legs, domain.Order{
			ID:             b.nextID(),
			Symbol:         l.Symbol,
			AssetClass:     "us_option",
			Class:          domain.OrderClassMultiLeg,
			Side:           l.Side,
			Type:           m.Type,
			TimeInForce:    m.TimeInForce,
			PositionIntent: l.PositionIntent,
			Status:         "new",
			RatioQty:       &ratio,
			SubmittedAt:    parent.SubmittedAt,
		})
	}
	b.store(&parent)
	return &parent, nil
}

// CancelOrder marks an open order canceled.
func (b *SimulatorBroker) CancelOrder(ctx context.Context, orderID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.reachable(ctx, "cancel order"); err != nil {
		return err
	}
	o, ok := b.orders[orderID]
	if !ok {
		return fmt.Errorf("cancel order %s: %w", orderID, domain.ErrOrderNotFound)
	}
	if isTerminal(o.Status) {
		return &domain.SubmissionRejected{
			StatusCode: http.StatusUnprocessableEntity,
			Reason:     fmt.Sprintf("order is already %s", o.Status),
		}
	}
	o.Status = "canceled"
	return nil
}

// GetOrder returns one order by id.
func (b *SimulatorBroker) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.reachable(ctx, "get order"); err != nil {
		return nil, err
	}
	o, ok := b.orders[orderID]
	if !ok {
		return nil, fmt.Errorf("get order %s: %w", orderID, domain.ErrOrderNotFound)
	}
	out := *o
	return &out, nil
}

// ListOrders returns matching orders, newest first.
func (b *SimulatorBroker) ListOrders(ctx context.Context, q domain.OrderQuery) ([]domain.Order, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.reachable(ctx, "list orders"); err != nil {
		return nil, err
	}
	var out []domain.Order
	for i := len(b.history) - 1; i >= 0; i-- {
		o := b.orders[b.history[i]]
		switch q.Status {
		case "open":
			if isTerminal(o.Status) {
				continue
			}
		case "closed":
			if !isTerminal(o.Status) {
				continue
			}
		}
		if len(q.Symbols) > 0 && !slices.Contains(q.Symbols, o.Symbol) {
			continue
		}
		out = append(out, *o)
		if q.Limit > 0 && len(out) == q.Limit {
			break
		}
	}
	return out, nil
}

// ---- positions and account ----

// GetPositions returns all positions sorted by symbol.
func (b *SimulatorBroker) GetPositions(ctx context.Context) ([]domain.Position, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.reachable(ctx, "get positions"); err != nil {
		return nil, err
	}
	positions := make([]domain.Position, 0, len(b.positions))
	for _, p := range b.positions {
		positions = append(positions, *p)
	}
	sort.Slice(positions, func(i, j int) bool { return positions[i].Symbol < positions[j].Symbol })
	return positions, nil
}

// GetAccount returns the simulated account.
func (b *SimulatorBroker) GetAccount(ctx context.Context) (*domain.AccountInfo, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.reachable(ctx, "get account"); err != nil {
		return nil, err
	}
	a := b.account
	return &a, nil
}

// ClosePosition reduces a position by req.Qty or req.Percentage, or closes
// it entirely, and records the market order that did so.
func (b *SimulatorBroker) ClosePosition(ctx context.Context, req domain.ClosePositionRequest) (*domain.Order, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.reachable(ctx, "close position"); err != nil {
		return nil, err
	}
	return b.closePosition(req)
}

// CloseAllPositions closes every position, optionally canceling open orders
// first.
func (b *SimulatorBroker) CloseAllPositions(ctx context.Context, cancelOrders bool) ([]domain.Order, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.reachable(ctx, "close all positions"); err != nil {
		return nil, err
	}
	if cancelOrders {
		for _, o := range b.orders {
			if !isTerminal(o.Status) {
				o.Status = "canceled"
			}
		}
	}
	symbols := make([]string, 0, len(b.positions))
	for sym := range b.positions {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)

	out := make([]domain.Order, 0, len(symbols))
	for _, sym := range symbols {
		o, err := b.closePosition(domain.ClosePositionRequest{Symbol: sym})
		if err != nil {
			return out, err
		}
		out = append(out, *o)
	}
	return out, nil
}

// ExercisePosition exercises a long option position: the contracts are
// removed and 100 shares of the underlying per contract are bought (call)
// or sold (put) at the strike.
func (b *SimulatorBroker) ExercisePosition(ctx context.Context, symbol string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.reachable(ctx, "exercise position"); err != nil {
		return err
	}
	p, ok := b.positions[symbol]
	if !ok {
		return fmt.Errorf("exercise position %s: position %w", symbol, domain.ErrNotFound)
	}
	c, err := order.ParseOCC(p.Symbol)
	if !p.IsOption() || err != nil {
		return &domain.SubmissionRejected{StatusCode: http.StatusUnprocessableEntity, Reason: symbol + " is not an option position"}
	}
	if !p.Qty.IsPositive() {
		return &domain.SubmissionRejected{StatusCode: http.StatusForbidden, Reason: "only long option positions can be exercised"}
	}

	shares := p.Qty.Mul(sharesPerContract)
	cost := shares.Mul(c.Strike)
	if c.Type == "put" {
		shares, cost = shares.Neg(), cost.Neg()
	}
	delete(b.positions, p.Symbol)
	b.adjustPosition(c.Root, shares, c.Strike)
	b.account.Cash = b.account.Cash.Sub(cost)
	return nil
}

// adjustPosition adds delta shares of an equity position, dropping it when
// it nets out.
func (b *SimulatorBroker) adjustPosition(symbol string, delta, price decimal.Decimal) {
	p, ok := b.positions[symbol]
	if !ok {
		p = &domain.Position{Symbol: symbol, AssetClass: "us_equity", AvgEntryPrice: price}
		b.positions[symbol] = p
	}
	p.Qty = p.Qty.Add(delta)
	switch {
	case p.Qty.IsZero():
		delete(b.positions, symbol)
	case p.Qty.IsNegative():
		p.Side = "short"
	default:
		p.Side = "long"
	}
	p.CostBasis = p.Qty.Mul(p.AvgEntryPrice)
}

func (b *SimulatorBroker) closePosition(req domain.ClosePositionRequest) (*domain.Order, error) {
	p, ok := b.positions[req.Symbol]
	if !ok {
		return nil, fmt.Errorf("close position %s: position %w", req.Symbol, domain.ErrNotFound)
	}
	held := p.Qty.Abs()
	qty := held
	switch {
	case req.Qty != nil:
		qty = *req.Qty
	case req.Percentage != nil:
		qty = held.Mul(*req.Percentage).Div(decimal.NewFromInt(100)).Round(9)
	}
	if qty.GreaterThan(held) {
		return nil, &domain.SubmissionRejected{
			StatusCode: http.StatusForbidden,
			Reason:     fmt.Sprintf("insufficient qty available for order (requested: %s, available: %s)", qty, held),
		}
	}

	side := domain.SideSell
	if p.Qty.IsNegative() {
		side = domain.SideBuy
	}
	o := b.record(domain.OrderDescriptor{
		Symbol:      p.Symbol,
		Side:        side,
		Type:        domain.OrderTypeMarket,
		TimeInForce: domain.TimeInForceDay,
		Qty:         &qty,
	}, domain.OrderClassSimple, "new")
	o.AssetClass = p.AssetClass
	b.orders[o.ID].AssetClass = p.AssetClass

	remaining := held.Sub(qty)
	if remaining.IsZero() {
		delete(b.positions, p.Symbol)
	} else if p.Qty.IsNegative() {
		p.Qty = remaining.Neg()
	} else {
		p.Qty = remaining
	}
	return &o, nil
}

// GetPortfolioHistory returns a single point at the current equity.
func (b *SimulatorBroker) GetPortfolioHistory(ctx context.Context, q domain.PortfolioHistoryQuery) (*domain.PortfolioHistory, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.reachable(ctx, "get portfolio history"); err != nil {
		return nil, err
	}
	return &domain.PortfolioHistory{
		Timeframe:     q.Timeframe,
		BaseValue:     b.account.Equity,
		Timestamps:    []int64{b.now().Unix()},
		Equity:        []decimal.Decimal{b.account.Equity},
		ProfitLoss:    []decimal.Decimal{decimal.Zero},
		ProfitLossPct: []decimal.Decimal{decimal.Zero},
	}, nil
}

// ---- options ----

// GetOptionContracts filters the listed contracts.
func (b *SimulatorBroker) GetOptionContracts(ctx context.Context, q domain.OptionContractQuery) ([]domain.OptionContract, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.reachable(ctx, "get option contracts"); err != nil {
		return nil, err
	}
	var out []domain.OptionContract
	for _, c := range b.contracts {
		if !contractMatches(c, q) {
			continue
		}
		out = append(out, c)
		if q.Limit > 0 && len(out) == q.Limit {
			break
		}
	}
	return out, nil
}

// GetOptionContract returns one listed contract by symbol or id.
func (b *SimulatorBroker) GetOptionContract(ctx context.Context, symbolOrID string) (*domain.OptionContract, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.reachable(ctx, "get option contract"); err != nil {
		return nil, err
	}
	for _, c := range b.contracts {
		if c.Symbol == symbolOrID || c.ID == symbolOrID {
			return &c, nil
		}
	}
	return nil, fmt.Errorf("option contract %s: %w", symbolOrID, domain.ErrNotFound)
}

func contractMatches(c domain.OptionContract, q domain.OptionContractQuery) bool {
	switch {
	case len(q.UnderlyingSymbols) > 0 && !slices.Contains(q.UnderlyingSymbols, c.UnderlyingSymbol):
		return false
	case q.Type != "" && !strings.EqualFold(q.Type, c.Type):
		return false
	case q.ExpirationDate != "" && c.ExpirationDate != q.ExpirationDate:
		return false
	// ISO dates compare correctly as strings.
	case q.ExpirationGTE != "" && c.ExpirationDate < q.ExpirationGTE:
		return false
	case q.ExpirationLTE != "" && c.ExpirationDate > q.ExpirationLTE:
		return false
	case q.StrikePriceGTE != nil && c.StrikePrice.LessThan(*q.StrikePriceGTE):
		return false
	case q.StrikePriceLTE != nil && c.StrikePrice.GreaterThan(*q.StrikePriceLTE):
		return false
	}
	return true
}

// ---- market data ----

// GetLatestQuotes returns seeded quotes in symbol order.
func (b *SimulatorBroker) GetLatestQuotes(ctx context.Context, symbols []string) ([]domain.Quote, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.reachable(ctx, "get latest quotes"); err != nil {
		return nil, err
	}
	out := make([]domain.Quote, 0, len(symbols))
	for _, sym := range symbols {
		if q, ok := b.quotes[sym]; ok {
			out = append(out, q)
		}
	}
	return out, nil
}

// GetBars returns seeded bars inside the query window. The limit applies
// across all symbols.
func (b *SimulatorBroker) GetBars(ctx context.Context, q domain.BarQuery) (map[string][]domain.Bar, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.reachable(ctx, "get bars"); err != nil {
		return nil, err
	}
	out := make(map[string][]domain.Bar, len(q.Symbols))
	n := 0
	for _, sym := range q.Symbols {
		for _, bar := range b.bars[sym] {
			if q.Limit > 0 && n == q.Limit {
				return out, nil
			}
			if !q.Start.IsZero() && bar.Timestamp.Before(q.Start) {
				continue
			}
			if !q.End.IsZero() && bar.Timestamp.After(q.End) {
				continue
			}
			out[sym] = append(out[sym], bar)
			n++
		}
	}
	return out, nil
}

// ---- internals (callers hold mu) ----

func (b *SimulatorBroker) reachable(ctx context.Context, op string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if b.down {
		return &domain.TransportError{Op: op, Err: fmt.Errorf("simulated outage")}
	}
	return nil
}

func (b *SimulatorBroker) rejected(symbol string, tag domain.LegTag, typ domain.OrderType) (string, bool) {
	for _, r := range b.rules {
		if r.matches(symbol, tag, typ) {
			reason := r.Reason
			if reason == "" {
				reason = "rejected by simulator"
			}
			return reason, true
		}
	}
	return "", false
}

func (b *SimulatorBroker) nextID() string {
	b.seq++
	return fmt.Sprintf("sim-%06d", b.seq)
}

func (b *SimulatorBroker) record(d domain.OrderDescriptor, class domain.OrderClass, status string) domain.Order {
	o := &domain.Order{
		ID:             b.nextID(),
		ClientOrderID:  d.ClientOrderID,
		Symbol:         d.Symbol,
		AssetClass:     "us_equity",
		Class:          class,
		Side:           d.Side,
		Type:           d.Type,
		TimeInForce:    d.TimeInForce,
		PositionIntent: d.PositionIntent,
		Status:         status,
		Qty:            d.Qty,
		Notional:       d.Notional,
		LimitPrice:     d.LimitPrice,
		StopPrice:      d.StopPrice,
		TrailPrice:     d.TrailPrice,
		TrailPercent:   d.TrailPercent,
		SubmittedAt:    b.now(),
	}
	if d.PositionIntent != "" {
		o.AssetClass = "us_option"
	}
	b.store(o)
	return *o
}

func (b *SimulatorBroker) store(o *domain.Order) {
	b.orders[o.ID] = o
	b.history = append(b.history, o.ID)
}

func isTerminal(status string) bool {
	switch status {
	case "filled", "canceled", "expired", "rejected", "replaced", "done_for_day":
		return true
	}
	return false
}
