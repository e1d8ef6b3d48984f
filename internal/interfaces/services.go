// Package interfaces defines service contracts for vire-recon
package interfaces

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/bobmcallan/vire-recon/internal/models"
)

// PnLAggregator replays transactions against the lot ledger
type PnLAggregator interface {
	// Process replays transactions in date order and returns the unvalued rollup
	Process(txns []models.Transaction) (*models.PortfolioPnL, error)

	// Value attaches prices and FX rates, recomputing market value and unrealized P&L
	Value(prices, fxRates map[string]decimal.Decimal) *models.PortfolioPnL
}

// ValuationStrategy converts a quoted price into a per-unit value for one asset class
type ValuationStrategy interface {
	// Name identifies the strategy in logs
	Name() string

	// Supports reports whether the strategy values the asset type
	Supports(asset models.AssetType) bool

	// UnitValue converts a quoted price into the value of one unit held
	UnitValue(price decimal.Decimal, terms models.InstrumentTerms) decimal.Decimal

	// Validate checks the asset-specific fields a transaction must carry
	Validate(txn models.Transaction) error
}

// StrategyResolver picks the valuation strategy for an asset type
type StrategyResolver interface {
	Resolve(asset models.AssetType) ValuationStrategy
}

// RateSolver finds the money-weighted annual rate of dated cash flows
type RateSolver interface {
	// Solve returns the rate and false when no solution was found
	Solve(flows []models.CashFlow) (float64, bool)
}

// ReturnSolver computes time-weighted returns
type ReturnSolver interface {
	// TimeWeighted chains sub-period returns split at each cash-flow date
	TimeWeighted(daily []models.DailyValue) (float64, bool)

	// ModifiedDietz approximates the whole-period return from endpoint values.
	// Flows are contributions into the portfolio (positive = money in).
	ModifiedDietz(startValue, endValue float64, start, end time.Time, flows []models.CashFlow) (float64, bool)
}

// Reconciler compares calculated figures with expected ones
type Reconciler interface {
	// Reconcile never fails; mismatches are recorded as results
	Reconcile(portfolioID string, date time.Time, baseCurrency string, pnl *models.PortfolioPnL,
		metrics *models.PerformanceMetrics, expected *models.ExpectedValues) *models.PortfolioReconciliation
}

// TransactionClassifier applies the configured symbol conventions
type TransactionClassifier interface {
	// IsCash reports whether symbol is a currency code that is not inventoried
	IsCash(symbol string) bool

	// IsSaleToOpen reports whether a sell writes an option rather than closing a position
	IsSaleToOpen(txn models.Transaction) bool
}

// DataQualityChecker runs the upstream data-quality pass
type DataQualityChecker interface {
	// Check validates transactions and returns every issue found
	Check(txns []models.Transaction) *models.DataQualityReport
}
