// Package broker defines the Broker interface and provides implementations
// for submitting orders and querying accounts at a brokerage.
package broker

import (
	"context"

	"trademcp/internal/domain"
)

// Broker abstracts brokerage operations for order submission and account
// management.
//
// Submission methods never retry. A *domain.SubmissionRejected means the
// brokerage declined the request; a *domain.TransportError means the
// outcome is unknown.
type Broker interface {
	// Name returns the broker identifier (e.g. "alpaca", "simulator").
	Name() string

	// SubmitOrder sends a single order.
	SubmitOrder(ctx context.Context, d domain.OrderDescriptor) (*domain.Order, error)

	// SubmitGroup sends a bracket or OCO group and reports one outcome per
	// leg in descriptor order. Brokerage rejections are reported through
	// the outcomes; the error is reserved for transport failures.
	SubmitGroup(ctx context.Context, g domain.OrderGroup) (domain.GroupSubmission, error)

	// SubmitMultiLeg sends a multi-leg option order as one unit.
	SubmitMultiLeg(ctx context.Context, m domain.MultiLegOrderDescriptor) (*domain.Order, error)

	// CancelOrder requests cancellation of an open order by its ID.
	// Unknown ids yield domain.ErrOrderNotFound.
	CancelOrder(ctx context.Context, orderID string) error

	// GetOrder returns one order by its ID.
	GetOrder(ctx context.Context, orderID string) (*domain.Order, error)

	// ListOrders returns orders matching q.
	ListOrders(ctx context.Context, q domain.OrderQuery) ([]domain.Order, error)

	// GetPositions returns all current positions held at the brokerage.
	GetPositions(ctx context.Context) ([]domain.Position, error)

	// GetAccount returns a snapshot of the account's financial metrics.
	GetAccount(ctx context.Context) (*domain.AccountInfo, error)

	// ClosePosition liquidates all or part of one position.
	ClosePosition(ctx context.Context, req domain.ClosePositionRequest) (*domain.Order, error)

	// CloseAllPositions liquidates every position.
	CloseAllPositions(ctx context.Context, cancelOrders bool) ([]domain.Order, error)

	// ExercisePosition exercises every held contract of a long option
	// position. Unknown positions yield domain.ErrNotFound.
	ExercisePosition(ctx context.Context, symbol string) error

	// GetPortfolioHistory returns the account equity series.
	GetPortfolioHistory(ctx context.Context, q domain.PortfolioHistoryQuery) (*domain.PortfolioHistory, error)

	// GetOptionContracts searches listed option contracts.
	GetOptionContracts(ctx context.Context, q domain.OptionContractQuery) ([]domain.OptionContract, error)

	// GetOptionContract returns one contract by symbol or id.
	GetOptionContract(ctx context.Context, symbolOrID string) (*domain.OptionContract, error)
}

// MarketData provides quotes and historical bars.
type MarketData interface {
	// GetLatestQuotes returns the latest quote per symbol, in symbol order.
	GetLatestQuotes(ctx context.Context, symbols []string) ([]domain.Quote, error)

	// GetBars returns bars per symbol.
	GetBars(ctx context.Context, q domain.BarQuery) (map[string][]domain.Bar, error)
}
