package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// AccountInfo is a snapshot of the trading account.
type AccountInfo struct {
	ID               string          `json:"id"`
	AccountNumber    string          `json:"account_number"`
	Status           string          `json:"status"`
	Currency         string          `json:"currency"`
	Cash             decimal.Decimal `json:"cash"`
	Equity           decimal.Decimal `json:"equity"`
	PortfolioValue   decimal.Decimal `json:"portfolio_value"`
	BuyingPower      decimal.Decimal `json:"buying_power"`
	LongMarketValue  decimal.Decimal `json:"long_market_value"`
	ShortMarketValue decimal.Decimal `json:"short_market_value"`
	DaytradeCount    int64           `json:"daytrade_count"`
	PatternDayTrader bool            `json:"pattern_day_trader"`
}

// Position is an open position held at the brokerage.
type Position struct {
	Symbol         string           `json:"symbol"`
	AssetClass     string           `json:"asset_class"`
	Side           string           `json:"side"`
	Qty            decimal.Decimal  `json:"qty"`
	AvgEntryPrice  decimal.Decimal  `json:"avg_entry_price"`
	CostBasis      decimal.Decimal  `json:"cost_basis"`
	CurrentPrice   *decimal.Decimal `json:"current_price,omitempty"`
	MarketValue    *decimal.Decimal `json:"market_value,omitempty"`
	UnrealizedPL   *decimal.Decimal `json:"unrealized_pl,omitempty"`
	UnrealizedPLPC *decimal.Decimal `json:"unrealized_plpc,omitempty"`
}

// IsOption reports whether the position is in an option contract.
func (p Position) IsOption() bool {
	return p.AssetClass == "us_option"
}

// Quote is the latest NBBO quote for a symbol.
type Quote struct {
	Symbol    string    `json:"symbol"`
	Timestamp time.Time `json:"timestamp"`
	BidPrice  float64   `json:"bid_price"`
	BidSize   uint32    `json:"bid_size"`
	AskPrice  float64   `json:"ask_price"`
	AskSize   uint32    `json:"ask_size"`
}

// Bar is one OHLCV aggregate.
type Bar struct {
	Symbol     string    `json:"symbol"`
	Timestamp  time.Time `json:"timestamp"`
	Open       float64   `json:"open"`
	High       float64   `json:"high"`
	Low        float64   `json:"low"`
	Close      float64   `json:"close"`
	Volume     uint64    `json:"volume"`
	TradeCount uint64    `json:"trade_count"`
	VWAP       float64   `json:"vwap"`
}

// OptionContract describes a listed option contract.
type OptionContract struct {
	ID               string           `json:"id"`
	Symbol           string           `json:"symbol"`
	Name             string           `json:"name"`
	Status           string           `json:"status"`
	Tradable         bool             `json:"tradable"`
	UnderlyingSymbol string           `json:"underlying_symbol"`
	Type             string           `json:"type"`
	Style            string           `json:"style"`
	ExpirationDate   string           `json:"expiration_date"`
	StrikePrice      decimal.Decimal  `json:"strike_price"`
	Multiplier       decimal.Decimal  `json:"multiplier"`
	OpenInterest     *decimal.Decimal `json:"open_interest,omitempty"`
	ClosePrice       *decimal.Decimal `json:"close_price,omitempty"`
}

// PortfolioHistory is a time series of account equity.
type PortfolioHistory struct {
	Timeframe     string            `json:"timeframe"`
	BaseValue     decimal.Decimal   `json:"base_value"`
	Timestamps    []int64           `json:"timestamp"`
	Equity        []decimal.Decimal `json:"equity"`
	ProfitLoss    []decimal.Decimal `json:"profit_loss"`
	ProfitLossPct []decimal.Decimal `json:"profit_loss_pct"`
}

// ---------------------------------------------------------------------------
// Query parameters
// ---------------------------------------------------------------------------

// OrderQuery filters an order listing.
type OrderQuery struct {
	Status  string // open, closed or all
	Limit   int
	Symbols []string
}

// ClosePositionRequest liquidates all or part of a position. At most one of
// Qty and Percentage is set; neither means close everything.
type ClosePositionRequest struct {
	Symbol     string
	Qty        *decimal.Decimal
	Percentage *decimal.Decimal
}

// ExerciseRequest exercises a held option position. The brokerage always
// exercises every held contract, so Qty, when set, must equal the held
// quantity.
type ExerciseRequest struct {
	Symbol string
	Qty    *decimal.Decimal
}

// Exercise reports an accepted exercise instruction.
type Exercise struct {
	Symbol       string          `json:"symbol"`
	ExercisedQty decimal.Decimal `json:"exercised_qty"`
	Message      string          `json:"message"`
}

// BarQuery selects historical bars.
type BarQuery struct {
	Symbols   []string
	Timeframe string // 1Min, 5Min, 15Min, 1Hour or 1Day
	Start     time.Time
	End       time.Time
	Limit     int
}

// OptionContractQuery filters option contract listings.
type OptionContractQuery struct {
	UnderlyingSymbols []string
	ExpirationDate    string // YYYY-MM-DD
	ExpirationGTE     string
	ExpirationLTE     string
	Type              string // call or put
	StrikePriceGTE    *decimal.Decimal
	StrikePriceLTE    *decimal.Decimal
	Limit             int
}

// PortfolioHistoryQuery selects a portfolio history window.
type PortfolioHistoryQuery struct {
	Period    string // e.g. 1D, 1W, 1M
	Timeframe string // e.g. 1Min, 15Min, 1H, 1D
}
