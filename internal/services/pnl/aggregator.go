// Package pnl replays transactions against the lot ledger and values the result
package pnl

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bobmcallan/vire-recon/internal/common"
	"github.com/bobmcallan/vire-recon/internal/interfaces"
	"github.com/bobmcallan/vire-recon/internal/ledger"
	"github.com/bobmcallan/vire-recon/internal/models"
)

// Aggregator implements PnLAggregator. It is single-use: build a fresh one per run.
type Aggregator struct {
	cfg        *common.Config
	logger     *common.Logger
	classifier *Classifier
	registry   *ValuationRegistry

	book      *ledger.Book
	pnl       *models.PortfolioPnL
	income    map[string]*models.Income
	processed int
}

// NewAggregator creates an aggregator using the ledger and classifier settings in cfg
func NewAggregator(cfg *common.Config, logger *common.Logger) *Aggregator {
	a := &Aggregator{
		cfg:        cfg,
		logger:     logger,
		classifier: NewClassifier(cfg.Classifier),
		registry:   NewValuationRegistry(),
	}
	a.reset()
	return a
}

func (a *Aggregator) reset() {
	a.book = ledger.NewBook(a.cfg.Ledger, a.logger)
	a.pnl = models.NewPortfolioPnL()
	a.income = make(map[string]*models.Income)
	a.processed = 0
}

// Registry exposes the valuation strategies so callers can register their own
func (a *Aggregator) Registry() *ValuationRegistry { return a.registry }

// Classifier exposes the symbol and fee rules the replay uses
func (a *Aggregator) Classifier() *Classifier { return a.classifier }

// Process replays txns in date order and returns the unvalued rollup.
// Ties keep their input order. In strict mode an oversell aborts the run.
func (a *Aggregator) Process(txns []models.Transaction) (*models.PortfolioPnL, error) {
	a.reset()

	sorted := make([]models.Transaction, len(txns))
	copy(sorted, txns)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.Before(sorted[j].Date)
	})

	for _, txn := range sorted {
		if err := a.apply(txn); err != nil {
			return nil, fmt.Errorf("failed to process transaction %s (%s %s): %w", txn.ID, txn.Type, txn.Symbol, err)
		}
		a.processed++
	}

	a.buildPositions()

	a.logger.Info().
		Int("transactions", a.processed).
		Int("positions", len(a.pnl.Symbols)).
		Str("realized", a.pnl.RealizedCapitalGains.StringFixed(2)).
		Str("net_income", a.pnl.Income.Net().StringFixed(2)).
		Msg("Transactions processed")

	return a.pnl, nil
}

func (a *Aggregator) apply(txn models.Transaction) error {
	// Income and expenses are booked even when the symbol is a currency code
	switch {
	case txn.Type.IsIncome():
		a.applyIncome(txn)
		return nil
	case txn.Type.IsExpense():
		a.applyExpense(txn)
		return nil
	case txn.Type.IsExternalFlow():
		a.pnl.NetCash = a.pnl.NetCash.Add(externalCash(txn))
		return nil
	}

	if a.classifier.IsCash(txn.Symbol) {
		if txn.Type.IsBuyType() || txn.Type.IsSellType() {
			a.pnl.NetCash = a.pnl.NetCash.Add(externalCash(txn))
		}
		return nil
	}

	switch {
	case txn.Type.IsBuyType():
		a.applyBuy(txn)
	case txn.Type.IsSellType():
		return a.applySell(txn)
	case txn.Type == models.TxStockSplit:
		_, err := a.book.ApplySplit(txn.Symbol, txn.Quantity)
		return err
	case txn.Type == models.TxReverseSplit:
		return a.applyReverseSplit(txn)
	case txn.Type == models.TxOptionExpiry:
		return a.applyExpiry(txn)
	case txn.Type == models.TxOptionExercise, txn.Type == models.TxOptionAssignment:
		return a.applyExercise(txn)
	default:
		a.logger.Debug().
			Str("type", string(txn.Type)).
			Str("symbol", txn.Symbol).
			Msg("Transaction has no ledger effect")
	}
	return nil
}

func (a *Aggregator) applyBuy(txn models.Transaction) {
	if err := a.registry.Resolve(txn.AssetType).Validate(txn); err != nil {
		a.logger.Warn().Str("symbol", txn.Symbol).Err(err).Msg("Instrument terms incomplete")
	}
	a.book.AddLot(ledger.NewLotFromTransaction(txn))
	a.pnl.NetCash = a.pnl.NetCash.Sub(txn.BaseAmount())
}

func (a *Aggregator) applySell(txn models.Transaction) error {
	a.pnl.NetCash = a.pnl.NetCash.Add(txn.BaseAmount())

	if a.classifier.IsSaleToOpen(txn) && a.held(txn.Symbol).IsZero() {
		premium := txn.BaseAmount()
		a.pnl.Income.OptionPremium = a.pnl.Income.OptionPremium.Add(premium)
		a.logger.Debug().
			Str("symbol", txn.Symbol).
			Str("premium", premium.String()).
			Msg("Option written, premium booked as income")
		return nil
	}

	// Realized gain is measured on the trade price; the commission is an expense
	if fees := txn.TotalFees().Abs().Mul(txn.Rate()); !fees.IsZero() {
		a.pnl.Income.AddExpense(models.FeeOther, fees)
		if pos := a.positionIncome(txn.Symbol); pos != nil {
			pos.AddExpense(models.FeeOther, fees)
		}
	}

	_, err := a.book.DisposeFIFO(txn.Symbol, txn.Quantity.Abs(), txn.UnitPrice(), txn.Date, txn.Rate())
	return err
}

func (a *Aggregator) applyReverseSplit(txn models.Transaction) error {
	held := a.held(txn.Symbol)
	if held.IsZero() {
		return nil
	}
	// An explicit ratio travels in the price field; otherwise quantity is the shares removed
	ratio := txn.Price
	if !ratio.IsPositive() {
		ratio = held.Sub(txn.Quantity.Abs()).Div(held)
	}
	return a.book.ApplyRatio(txn.Symbol, ratio)
}

func (a *Aggregator) applyExpiry(txn models.Transaction) error {
	held := a.held(txn.Symbol)
	if held.IsZero() {
		return nil
	}
	_, err := a.book.DisposeFIFO(txn.Symbol, held, decimal.Zero, txn.Date, txn.Rate())
	return err
}

func (a *Aggregator) applyExercise(txn models.Transaction) error {
	qty := txn.Quantity.Abs()
	if qty.IsZero() {
		qty = a.held(txn.Symbol)
	}
	_, err := a.book.DisposeFIFO(txn.Symbol, qty, txn.UnitPrice(), txn.Date, txn.Rate())
	return err
}

func (a *Aggregator) applyIncome(txn models.Transaction) {
	amount := txn.BaseAmount()
	credit := func(i *models.Income) {
		if txn.Type == models.TxDividend {
			i.Dividends = i.Dividends.Add(amount)
		} else {
			i.Interest = i.Interest.Add(amount)
		}
	}
	credit(&a.pnl.Income)
	if pos := a.positionIncome(txn.Symbol); pos != nil {
		credit(pos)
	}
	a.pnl.NetCash = a.pnl.NetCash.Add(amount)
}

func (a *Aggregator) applyExpense(txn models.Transaction) {
	// Fees are often reported as negative amounts
	amount := txn.NetAmount().Abs()
	if amount.IsZero() {
		amount = txn.GrossAmount().Abs()
	}
	amount = amount.Mul(txn.Rate())

	category := a.classifier.FeeCategory(txn)
	a.pnl.Income.AddExpense(category, amount)
	if pos := a.positionIncome(txn.Symbol); pos != nil {
		pos.AddExpense(category, amount)
	}
	a.pnl.NetCash = a.pnl.NetCash.Sub(amount)
}

// positionIncome returns the per-symbol income bucket, or nil when the
// symbol has never held a lot.
func (a *Aggregator) positionIncome(symbol string) *models.Income {
	if symbol == "" || !a.book.Has(symbol) {
		return nil
	}
	inc, ok := a.income[symbol]
	if !ok {
		inc = &models.Income{}
		a.income[symbol] = inc
	}
	return inc
}

func (a *Aggregator) held(symbol string) decimal.Decimal {
	q := a.book.Queue(symbol)
	if q == nil {
		return decimal.Zero
	}
	return q.TotalQuantity()
}

func (a *Aggregator) buildPositions() {
	a.pnl.Symbols = a.book.SortedSymbols()
	for _, sym := range a.pnl.Symbols {
		q := a.book.Queue(sym)
		pos := &models.PositionPnL{
			Symbol:      sym,
			Quantity:    q.TotalQuantity(),
			CostBasis:   q.TotalBaseCost(),
			AverageCost: q.AverageCost(),
			FXRate:      decimal.NewFromInt(1),
			RealizedPnL: q.RealizedPnL(),
			LotCount:    q.ActiveCount(),
		}
		if first, err := q.Lot(0); err == nil {
			pos.AssetType = first.AssetType
			pos.Currency = first.Currency
		}
		if inc, ok := a.income[sym]; ok {
			pos.Income = *inc
		}
		a.pnl.Positions[sym] = pos
	}
	a.pnl.Recompute()
}

// Value attaches quoted prices and FX rates and recomputes market value and
// unrealized P&L in place. A missing price values the position at zero; a
// missing rate is taken as 1.
func (a *Aggregator) Value(prices, fxRates map[string]decimal.Decimal) *models.PortfolioPnL {
	one := decimal.NewFromInt(1)
	for _, sym := range a.pnl.Symbols {
		pos := a.pnl.Positions[sym]
		q := a.book.Queue(sym)

		price, ok := prices[sym]
		if !ok && pos.Quantity.IsPositive() {
			a.logger.Warn().Str("symbol", sym).Msg("No current price, valuing at zero")
		}
		fx, ok := fxRates[sym]
		if !ok || fx.IsZero() {
			fx = one
		}

		var terms models.InstrumentTerms
		if first, err := q.Lot(0); err == nil {
			terms = first.Terms
		}
		unit := a.registry.Resolve(pos.AssetType).UnitValue(price, terms)

		pos.CurrentPrice = price
		pos.FXRate = fx
		pos.MarketValue = pos.Quantity.Mul(unit).Mul(fx)
		pos.UnrealizedPnL = a.book.UnrealizedPnL(sym, unit, fx)
	}
	a.pnl.Recompute()
	return a.pnl
}

// PnL returns the current rollup.
func (a *Aggregator) PnL() *models.PortfolioPnL { return a.pnl }

// Book exposes the ledger for audit display.
func (a *Aggregator) Book() *ledger.Book { return a.book }

// Lots returns every lot held for symbol, depleted ones included.
func (a *Aggregator) Lots(symbol string, asOf time.Time) []ledger.LotDetail {
	return a.book.LotDetails(symbol, asOf)
}

// Disposals returns symbol's disposal history.
func (a *Aggregator) Disposals(symbol string) []ledger.Disposal {
	return a.book.Disposals(symbol)
}

// externalCash is the change in cash held caused by money moving in or out
// of the portfolio: deposits and buy-type cash movements add, the rest subtract.
func externalCash(txn models.Transaction) decimal.Decimal {
	amount := txn.NetAmount().Abs().Mul(txn.Rate())
	if txn.Type.IsBuyType() {
		return amount
	}
	return amount.Neg()
}

// Ensure Aggregator implements PnLAggregator
var _ interfaces.PnLAggregator = (*Aggregator)(nil)
