// Package engine runs one tool invocation end to end: structural parsing,
// order construction, risk checks, journaling, submission and translation
// of the brokerage's answer into a result envelope.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"trademcp/internal/broker"
	"trademcp/internal/domain"
	"trademcp/internal/order"
	"trademcp/internal/result"
	"trademcp/internal/schema"
	"trademcp/internal/store"
	"trademcp/internal/telemetry"
	"trademcp/internal/util"
)

// Engine orchestrates tool calls by delegating to a builder for order
// construction, a broker for execution and market data, a journal for
// persistence, and a risk manager for pre-trade checks. It holds no
// per-call state and is safe for concurrent use.
type Engine struct {
	broker      broker.Broker
	market      broker.MarketData
	builder     *order.Builder
	riskChecker *RiskManager
	journal     store.JournalStore
	metrics     *telemetry.Metrics
	log         *slog.Logger

	readAttempts int
	readBackoff  time.Duration
}

// NewEngine creates a new Engine wired with the given dependencies. The
// journal, risk manager and metrics may be nil.
func NewEngine(
	b broker.Broker,
	market broker.MarketData,
	builder *order.Builder,
	riskChecker *RiskManager,
	journal store.JournalStore,
	metrics *telemetry.Metrics,
) *Engine {
	return &Engine{
		broker:       b,
		market:       market,
		builder:      builder,
		riskChecker:  riskChecker,
		journal:      journal,
		metrics:      metrics,
		log:          slog.Default().With("component", "engine"),
		readAttempts: 3,
		readBackoff:  200 * time.Millisecond,
	}
}

// SetReadRetry changes how often idempotent reads are attempted when the
// brokerage is unreachable. Submissions are never retried.
func (e *Engine) SetReadRetry(attempts int, backoff time.Duration) {
	e.readAttempts = max(attempts, 1)
	e.readBackoff = backoff
}

// Invoke parses raw tool arguments and runs the named tool. It never
// returns an error: every failure is described by the envelope.
func (e *Engine) Invoke(ctx context.Context, tool string, args map[string]any) result.Envelope {
	start := time.Now()
	env := e.invoke(ctx, tool, args)
	e.metrics.ObserveToolCall(tool, string(env.Status), time.Since(start))

	attrs := []any{"tool", tool, "status", env.Status, "elapsed", time.Since(start)}
	if env.OrderClass != "" {
		attrs = append(attrs, "orderClass", env.OrderClass)
	}
	switch {
	case env.Error == nil:
		e.log.Info("tool call", attrs...)
	case env.Status == result.StatusTransportError || env.Status == result.StatusError:
		e.log.Error("tool call failed", append(attrs, "error", env.Error.Message)...)
	default:
		e.log.Warn("tool call refused", append(attrs, "error", env.Error.Message)...)
	}
	return env
}

func (e *Engine) invoke(ctx context.Context, tool string, args map[string]any) result.Envelope {
	req, err := schema.Parse(tool, args)
	if err != nil {
		e.metrics.ValidationFailure(string(domain.KindOf(err)))
		return result.FromError(err)
	}

	switch r := req.(type) {
	case order.Request:
		return e.Place(ctx, tool, r)
	case schema.CancelOrder:
		return e.CancelOrder(ctx, r.OrderID)
	case schema.ClosePosition:
		return e.ClosePosition(ctx, r)
	case schema.CloseAllPositions:
		return e.CloseAllPositions(ctx, r.CancelOrders)
	case schema.ExercisePosition:
		return e.ExercisePosition(ctx, r)
	case schema.GetAccount:
		return e.GetAccount(ctx)
	case schema.GetPositions:
		return e.GetPositions(ctx, false)
	case schema.GetOptionPositions:
		return e.GetPositions(ctx, true)
	case schema.GetOrders:
		return e.ListOrders(ctx, r)
	case schema.GetOrder:
		return e.GetOrder(ctx, r.OrderID)
	case schema.GetLatestQuotes:
		return e.GetLatestQuotes(ctx, r.Symbols)
	case schema.GetStockBars:
		return e.GetBars(ctx, r)
	case schema.GetPortfolioHistory:
		return e.GetPortfolioHistory(ctx, r)
	case schema.GetOptionContracts:
		return e.GetOptionContracts(ctx, r)
	case schema.GetOptionContract:
		return e.GetOptionContract(ctx, r.Symbol)
	default:
		return result.FromError(fmt.Errorf("tool %s: no handler for %T", tool, req))
	}
}

// ---------------------------------------------------------------------------
// Order placement
// ---------------------------------------------------------------------------

// Check builds req and applies the risk limits without submitting anything.
func (e *Engine) Check(req order.Request) (*order.Plan, error) {
	plan, err := e.builder.Build(req)
	if err != nil {
		return nil, err
	}
	if err := e.riskChecker.CheckPlan(plan); err != nil {
		return nil, err
	}
	return plan, nil
}

// Place constructs, journals and submits one order request. Construction
// failures never reach the broker.
func (e *Engine) Place(ctx context.Context, tool string, req order.Request) result.Envelope {
	plan, err := e.Check(req)
	if err != nil {
		e.metrics.ValidationFailure(string(domain.KindOf(err)))
		return result.FromError(err)
	}

	entry := e.recordSubmission(ctx, tool, plan)

	var env result.Envelope
	switch plan.Class {
	case domain.OrderClassBracket, domain.OrderClassOCO:
		env = e.submitGroup(ctx, *plan.Group)
	case domain.OrderClassMultiLeg:
		o, err := e.broker.SubmitMultiLeg(ctx, *plan.MultiLeg)
		env = e.single(plan.Class, o, err)
	default:
		o, err := e.broker.SubmitOrder(ctx, *plan.Order)
		env = e.single(plan.Class, o, err)
	}

	e.recordOutcome(ctx, entry, env)
	return env
}

func (e *Engine) single(class domain.OrderClass, o *domain.Order, err error) result.Envelope {
	if err != nil {
		kind := domain.KindOf(err)
		outcome := domain.OutcomeRejected
		if kind != domain.KindSubmissionRejected {
			outcome = "unknown"
			e.metrics.BrokerError(string(kind))
		}
		e.metrics.LegOutcome(string(class), string(outcome))
		env := result.FromError(err)
		env.OrderClass = class
		return env
	}
	e.metrics.LegOutcome(string(class), string(domain.OutcomeAccepted))
	return result.FromOrder(class, o)
}

func (e *Engine) submitGroup(ctx context.Context, g domain.OrderGroup) result.Envelope {
	sub, err := e.broker.SubmitGroup(ctx, g)
	if err != nil {
		e.metrics.BrokerError(string(domain.KindOf(err)))
		env := result.FromError(err)
		env.OrderClass = g.Class
		env.LinkedGroupID = g.LinkedGroupID
		return env
	}
	for _, l := range sub.Legs {
		e.metrics.LegOutcome(string(g.Class), string(l.Outcome))
	}
	env := result.FromGroup(sub)
	if env.Status == result.StatusPartialFailure {
		e.log.Error("linked group partially accepted", "linkedGroupId", g.LinkedGroupID,
			"orderClass", g.Class, "accepted", len(sub.Accepted()), "legs", len(sub.Legs))
	}
	return env
}

// ---- journal ----

func (e *Engine) recordSubmission(ctx context.Context, tool string, plan *order.Plan) *domain.JournalEntry {
	if e.journal == nil {
		return nil
	}
	entry := &domain.JournalEntry{Tool: tool, Class: plan.Class}
	var payload any
	switch {
	case plan.Group != nil:
		entry.Reference = plan.Group.LinkedGroupID
		if len(plan.Group.Legs) > 0 {
			entry.Symbol = plan.Group.Legs[0].Symbol
		}
		payload = plan.Group
	case plan.MultiLeg != nil:
		entry.Reference = plan.MultiLeg.ClientOrderID
		entry.Symbol = plan.MultiLeg.Underlying
		payload = plan.MultiLeg
	default:
		entry.Reference = plan.Order.ClientOrderID
		entry.Symbol = plan.Order.Symbol
		payload = plan.Order
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		e.log.Error("encoding journal entry", "reference", entry.Reference, "error", err)
		return nil
	}
	entry.Request = string(raw)

	// The order still goes out if the journal is unavailable.
	if err := e.journal.RecordSubmission(ctx, entry); err != nil {
		e.log.Error("journal write failed", "reference", entry.Reference, "error", err)
		return nil
	}
	return entry
}

func (e *Engine) recordOutcome(ctx context.Context, entry *domain.JournalEntry, env result.Envelope) {
	if entry == nil {
		return
	}
	var (
		ids    []string
		detail string
	)
	if env.Order != nil {
		ids = append(ids, env.Order.ID)
	}
	for _, l := range env.Legs {
		if l.OrderID != "" {
			ids = append(ids, l.OrderID)
		}
	}
	if env.Error != nil {
		detail = env.Error.Message
	}
	// The submission already happened; use a context that survives the
	// caller's cancellation.
	ctx = context.WithoutCancel(ctx)
	if err := e.journal.RecordOutcome(ctx, entry.ID, journalStatus(env.Status), ids, detail); err != nil {
		e.log.Error("journal outcome write failed", "reference", entry.Reference, "error", err)
	}
}

func journalStatus(s result.Status) domain.JournalStatus {
	switch s {
	case result.StatusAccepted:
		return domain.JournalAccepted
	case result.StatusRejected:
		return domain.JournalRejected
	case result.StatusPartialFailure:
		return domain.JournalPartialFailure
	case result.StatusTransportError:
		return domain.JournalTransportError
	}
	return domain.JournalError
}

// Journal lists recorded submissions.
func (e *Engine) Journal(ctx context.Context, q domain.JournalQuery) ([]domain.JournalEntry, error) {
	if e.journal == nil {
		return nil, fmt.Errorf("journal is not configured")
	}
	return e.journal.ListEntries(ctx, q)
}

// JournalEntry returns the entry recorded under a client order id or linked
// group id.
func (e *Engine) JournalEntry(ctx context.Context, reference string) (*domain.JournalEntry, error) {
	if e.journal == nil {
		return nil, fmt.Errorf("journal is not configured")
	}
	return e.journal.GetEntry(ctx, reference)
}

// ---------------------------------------------------------------------------
// Order and position management
// ---------------------------------------------------------------------------

// CancelOrder requests cancellation of an open order. It is not retried.
func (e *Engine) CancelOrder(ctx context.Context, orderID string) result.Envelope {
	if err := e.broker.CancelOrder(ctx, orderID); err != nil {
		return e.failed(err)
	}
	return result.FromData(map[string]string{"order_id": orderID, "status": "cancel_requested"})
}

// ClosePosition liquidates all or part of a position. It is not retried.
func (e *Engine) ClosePosition(ctx context.Context, req domain.ClosePositionRequest) result.Envelope {
	if err := checkClose(req); err != nil {
		e.metrics.ValidationFailure(string(domain.KindOf(err)))
		return result.FromError(err)
	}
	o, err := e.broker.ClosePosition(ctx, req)
	if err != nil {
		return e.failed(err)
	}
	return result.FromData(o)
}

func checkClose(req domain.ClosePositionRequest) error {
	switch {
	case req.Qty != nil && req.Percentage != nil:
		return &domain.ValidationError{Field: "percentage", Reason: "give qty or percentage, not both"}
	case req.Qty != nil && !req.Qty.IsPositive():
		return &domain.ValidationError{Field: "qty", Reason: "must be greater than 0"}
	case req.Percentage != nil && (!req.Percentage.IsPositive() || req.Percentage.GreaterThan(hundred)):
		return &domain.ValidationError{Field: "percentage", Reason: "must be greater than 0 and at most 100"}
	}
	return nil
}

// CloseAllPositions liquidates every position. When only some positions
// close, the created orders are returned alongside the error.
func (e *Engine) CloseAllPositions(ctx context.Context, cancelOrders bool) result.Envelope {
	orders, err := e.broker.CloseAllPositions(ctx, cancelOrders)
	if err != nil {
		env := e.failed(err)
		if len(orders) > 0 {
			env.Data = orders
		}
		return env
	}
	return result.FromData(orders)
}

// ExercisePosition exercises a held long option position. The position is
// looked up first (a read, so transport failures are retried); the exercise
// instruction itself is not retried.
func (e *Engine) ExercisePosition(ctx context.Context, req domain.ExerciseRequest) result.Envelope {
	var positions []domain.Position
	err := util.RetryIf(ctx, e.readAttempts, e.readBackoff, isTransport, func() (err error) {
		positions, err = e.broker.GetPositions(ctx)
		return err
	})
	if err != nil {
		return e.failed(err)
	}
	i := slices.IndexFunc(positions, func(p domain.Position) bool { return p.Symbol == req.Symbol })
	if i < 0 {
		return result.FromError(fmt.Errorf("no position in %s: %w", req.Symbol, domain.ErrNotFound))
	}
	p := positions[i]
	if err := checkExercise(req, p); err != nil {
		e.metrics.ValidationFailure(string(domain.KindOf(err)))
		return result.FromError(err)
	}

	if err := e.broker.ExercisePosition(ctx, p.Symbol); err != nil {
		return e.failed(err)
	}
	e.log.Info("option exercised", "symbol", p.Symbol, "qty", p.Qty)
	return result.FromData(domain.Exercise{
		Symbol:       p.Symbol,
		ExercisedQty: p.Qty,
		Message:      fmt.Sprintf("exercise of %s contracts of %s submitted", p.Qty, p.Symbol),
	})
}

func checkExercise(req domain.ExerciseRequest, p domain.Position) error {
	switch {
	case !p.IsOption():
		return &domain.ValidationError{Field: "symbol", Reason: "is not an option position"}
	case !p.Qty.IsPositive():
		return &domain.ValidationError{Field: "symbol", Reason: "only long option positions can be exercised"}
	case req.Qty == nil:
		return nil
	case !req.Qty.IsPositive():
		return &domain.ValidationError{Field: "qty", Reason: "must be greater than 0"}
	case !req.Qty.Equal(p.Qty):
		return &domain.ValidationError{Field: "qty",
			Reason: fmt.Sprintf("partial exercise is not supported; the brokerage exercises all %s held contracts", p.Qty)}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Read-only pass-throughs
// ---------------------------------------------------------------------------

// GetAccount returns the account snapshot.
func (e *Engine) GetAccount(ctx context.Context) result.Envelope {
	var a *domain.AccountInfo
	return e.read(ctx, func() (err error) {
		a, err = e.broker.GetAccount(ctx)
		return err
	}, func() any { return a })
}

// GetPositions returns open positions, only option positions when
// optionsOnly is set.
func (e *Engine) GetPositions(ctx context.Context, optionsOnly bool) result.Envelope {
	var positions []domain.Position
	return e.read(ctx, func() (err error) {
		positions, err = e.broker.GetPositions(ctx)
		return err
	}, func() any {
		out := make([]domain.Position, 0, len(positions))
		for _, p := range positions {
			if !optionsOnly || p.IsOption() {
				out = append(out, p)
			}
		}
		return out
	})
}

// ListOrders returns orders matching q.
func (e *Engine) ListOrders(ctx context.Context, q domain.OrderQuery) result.Envelope {
	var orders []domain.Order
	return e.read(ctx, func() (err error) {
		orders, err = e.broker.ListOrders(ctx, q)
		return err
	}, func() any { return orders })
}

// GetOrder returns one order.
func (e *Engine) GetOrder(ctx context.Context, orderID string) result.Envelope {
	var o *domain.Order
	return e.read(ctx, func() (err error) {
		o, err = e.broker.GetOrder(ctx, orderID)
		return err
	}, func() any { return o })
}

// GetLatestQuotes returns the latest quote per symbol.
func (e *Engine) GetLatestQuotes(ctx context.Context, symbols []string) result.Envelope {
	var quotes []domain.Quote
	return e.read(ctx, func() (err error) {
		quotes, err = e.market.GetLatestQuotes(ctx, symbols)
		return err
	}, func() any { return quotes })
}

// GetBars returns historical bars per symbol.
func (e *Engine) GetBars(ctx context.Context, q domain.BarQuery) result.Envelope {
	var bars map[string][]domain.Bar
	return e.read(ctx, func() (err error) {
		bars, err = e.market.GetBars(ctx, q)
		return err
	}, func() any { return bars })
}

// GetPortfolioHistory returns the equity series.
func (e *Engine) GetPortfolioHistory(ctx context.Context, q domain.PortfolioHistoryQuery) result.Envelope {
	var h *domain.PortfolioHistory
	return e.read(ctx, func() (err error) {
		h, err = e.broker.GetPortfolioHistory(ctx, q)
		return err
	}, func() any { return h })
}

// GetOptionContracts searches option contracts.
func (e *Engine) GetOptionContracts(ctx context.Context, q domain.OptionContractQuery) result.Envelope {
	var contracts []domain.OptionContract
	return e.read(ctx, func() (err error) {
		contracts, err = e.broker.GetOptionContracts(ctx, q)
		return err
	}, func() any { return contracts })
}

// GetOptionContract returns one option contract.
func (e *Engine) GetOptionContract(ctx context.Context, symbol string) result.Envelope {
	var c *domain.OptionContract
	return e.read(ctx, func() (err error) {
		c, err = e.broker.GetOptionContract(ctx, symbol)
		return err
	}, func() any { return c })
}

// read runs an idempotent brokerage query, retrying transport failures.
func (e *Engine) read(ctx context.Context, fn func() error, data func() any) result.Envelope {
	err := util.RetryIf(ctx, e.readAttempts, e.readBackoff, isTransport, fn)
	if err != nil {
		return e.failed(err)
	}
	return result.FromData(data())
}

func (e *Engine) failed(err error) result.Envelope {
	kind := domain.KindOf(err)
	if kind == domain.KindTransport || kind == domain.KindInternal {
		e.metrics.BrokerError(string(kind))
	}
	return result.FromError(err)
}

func isTransport(err error) bool {
	return domain.KindOf(err) == domain.KindTransport
}
