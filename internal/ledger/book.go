package ledger

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bobmcallan/vire-recon/internal/common"
)

// Book maps symbols to their lot queues. Symbol insertion order is kept so
// iteration is deterministic.
type Book struct {
	strict bool
	logger *common.Logger
	queues map[string]*LotQueue
	order  []string
}

// NewBook creates an empty book using the configured oversell mode.
func NewBook(cfg common.LedgerConfig, logger *common.Logger) *Book {
	return &Book{
		strict: cfg.IsStrict(),
		logger: logger,
		queues: make(map[string]*LotQueue),
	}
}

// Strict reports whether oversells fail.
func (b *Book) Strict() bool { return b.strict }

// queue returns the queue for symbol, creating it on first use.
func (b *Book) queue(symbol string) *LotQueue {
	q, ok := b.queues[symbol]
	if !ok {
		q = NewLotQueue(symbol)
		b.queues[symbol] = q
		b.order = append(b.order, symbol)
	}
	return q
}

// AddLot appends lot to the tail of its symbol's queue.
func (b *Book) AddLot(lot Lot) Lot {
	added := b.queue(lot.Symbol).Add(lot)
	b.logger.Debug().
		Str("symbol", added.Symbol).
		Str("lot_id", added.ID).
		Str("quantity", added.AcquisitionQuantity.String()).
		Str("cost", added.AcquisitionCost.String()).
		Msg("Lot added")
	return added
}

// DisposeFIFO consumes quantity from the head of symbol's queue.
func (b *Book) DisposeFIFO(symbol string, quantity, price decimal.Decimal, date time.Time, fx decimal.Decimal) (Disposition, error) {
	q, ok := b.queues[symbol]
	if !ok {
		q = NewLotQueue(symbol)
	}
	d, err := q.Dispose(quantity, price, date, fx, b.strict)
	if err != nil {
		return d, err
	}
	if d.Oversold() {
		b.logger.Warn().
			Str("symbol", symbol).
			Str("date", date.Format("2006-01-02")).
			Str("requested", d.Requested.String()).
			Str("unfilled", d.Unfilled.String()).
			Msg("Sell exceeds quantity held, disposed what was available")
	}
	return d, nil
}

// UnrealizedPnL values symbol's remaining lots at price and fx.
func (b *Book) UnrealizedPnL(symbol string, price, fx decimal.Decimal) decimal.Decimal {
	q, ok := b.queues[symbol]
	if !ok {
		return decimal.Zero
	}
	return q.UnrealizedPnL(price, fx)
}

// ApplySplit applies a split reported as new shares received. It returns
// the ratio used, or zero when nothing was held.
func (b *Book) ApplySplit(symbol string, newShares decimal.Decimal) (decimal.Decimal, error) {
	q, ok := b.queues[symbol]
	if !ok {
		return decimal.Zero, nil
	}
	ratio, err := q.ApplySplit(newShares)
	if err != nil {
		return decimal.Zero, err
	}
	if !ratio.IsZero() {
		b.logger.Info().
			Str("symbol", symbol).
			Str("new_shares", newShares.String()).
			Str("ratio", ratio.String()).
			Msg("Split applied")
	}
	return ratio, nil
}

// ApplyRatio applies an explicit split ratio, e.g. 0.1 for a 1-for-10 reverse split.
func (b *Book) ApplyRatio(symbol string, ratio decimal.Decimal) error {
	q, ok := b.queues[symbol]
	if !ok || q.TotalQuantity().IsZero() {
		return nil
	}
	return q.ApplyRatio(ratio)
}

// Queue returns symbol's queue, or nil.
func (b *Book) Queue(symbol string) *LotQueue {
	return b.queues[symbol]
}

// Has reports whether symbol has ever held a lot.
func (b *Book) Has(symbol string) bool {
	_, ok := b.queues[symbol]
	return ok
}

// Symbols returns symbols in first-acquisition order.
func (b *Book) Symbols() []string {
	out := make([]string, len(b.order))
	copy(out, b.order)
	return out
}

// SortedSymbols returns symbols in lexical order.
func (b *Book) SortedSymbols() []string {
	out := b.Symbols()
	sort.Strings(out)
	return out
}

// LotDetails returns the audit view of symbol's lots.
func (b *Book) LotDetails(symbol string, asOf time.Time) []LotDetail {
	q, ok := b.queues[symbol]
	if !ok {
		return nil
	}
	return q.LotDetails(asOf)
}

// Disposals returns symbol's disposal log.
func (b *Book) Disposals(symbol string) []Disposal {
	q, ok := b.queues[symbol]
	if !ok {
		return nil
	}
	return q.Disposals()
}

// TaxLotSummary splits one symbol's holdings and gains by holding period.
type TaxLotSummary struct {
	Symbol             string          `json:"symbol"`
	ShortTermQuantity  decimal.Decimal `json:"short_term_quantity"`
	LongTermQuantity   decimal.Decimal `json:"long_term_quantity"`
	ShortTermCostBasis decimal.Decimal `json:"short_term_cost_basis"`
	LongTermCostBasis  decimal.Decimal `json:"long_term_cost_basis"`
	RealizedShortTerm  decimal.Decimal `json:"realized_short_term"`
	RealizedLongTerm   decimal.Decimal `json:"realized_long_term"`
	Lots               []LotDetail     `json:"lots"`
}

// TaxLotReport covers every symbol in the book.
type TaxLotReport struct {
	AsOf    time.Time       `json:"as_of"`
	Symbols []TaxLotSummary `json:"symbols"`
}

// TaxLotReport classifies open lots and realized disposals as short or long term.
func (b *Book) TaxLotReport(asOf time.Time) TaxLotReport {
	report := TaxLotReport{AsOf: asOf}
	for _, sym := range b.SortedSymbols() {
		q := b.queues[sym]
		s := TaxLotSummary{
			Symbol:             sym,
			ShortTermQuantity:  decimal.Zero,
			LongTermQuantity:   decimal.Zero,
			ShortTermCostBasis: decimal.Zero,
			LongTermCostBasis:  decimal.Zero,
			RealizedShortTerm:  decimal.Zero,
			RealizedLongTerm:   decimal.Zero,
		}
		for _, lot := range q.ActiveLots() {
			if lot.IsLongTerm(asOf) {
				s.LongTermQuantity = s.LongTermQuantity.Add(lot.RemainingQuantity)
				s.LongTermCostBasis = s.LongTermCostBasis.Add(lot.RemainingBaseCost())
			} else {
				s.ShortTermQuantity = s.ShortTermQuantity.Add(lot.RemainingQuantity)
				s.ShortTermCostBasis = s.ShortTermCostBasis.Add(lot.RemainingBaseCost())
			}
			s.Lots = append(s.Lots, lot.detail(asOf))
		}
		for _, d := range q.disposals {
			if d.LongTerm {
				s.RealizedLongTerm = s.RealizedLongTerm.Add(d.RealizedPnL)
			} else {
				s.RealizedShortTerm = s.RealizedShortTerm.Add(d.RealizedPnL)
			}
		}
		report.Symbols = append(report.Symbols, s)
	}
	return report
}
