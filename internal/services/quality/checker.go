// Package quality runs upstream data-quality checks over a transaction set
package quality

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/bobmcallan/vire-recon/internal/common"
	"github.com/bobmcallan/vire-recon/internal/interfaces"
	"github.com/bobmcallan/vire-recon/internal/models"
)

// Issue categories
const (
	CategoryCompleteness = "completeness"
	CategoryConsistency  = "consistency"
	CategoryValidity     = "validity"
	CategoryAnomaly      = "anomaly"
)

const (
	maxAffected      = 10
	maxSettlementLag = 5
)

var (
	priceJumpLimit = decimal.RequireFromString("0.5")
	minFXRate      = decimal.RequireFromString("0.001")
	maxFXRate      = decimal.NewFromInt(1000)
)

// Checker validates transactions before they reach the aggregator. It never
// rejects input; every finding is reported with a severity.
type Checker struct {
	baseCurrency string
	classifier   interfaces.TransactionClassifier
	resolver     interfaces.StrategyResolver
	logger       *common.Logger
}

// NewChecker creates a checker. classifier must be the one the aggregator
// replays with so both agree on cash symbols and written options. resolver
// supplies the per-asset field validation; nil skips instrument checks.
func NewChecker(cfg *common.Config, classifier interfaces.TransactionClassifier, resolver interfaces.StrategyResolver, logger *common.Logger) *Checker {
	return &Checker{
		baseCurrency: strings.ToUpper(cfg.BaseCurrency),
		classifier:   classifier,
		resolver:     resolver,
		logger:       logger,
	}
}

type checkFunc func(txns []models.Transaction, report *models.DataQualityReport)

// Check runs every check in a fixed order and returns the report
func (c *Checker) Check(txns []models.Transaction) *models.DataQualityReport {
	report := &models.DataQualityReport{TotalRecords: len(txns)}
	if len(txns) == 0 {
		report.Add(models.DataQualityIssue{
			Severity: models.SeverityWarning,
			Category: CategoryCompleteness,
			Message:  "No transactions provided",
		})
		return report
	}

	for _, check := range []checkFunc{
		c.completeness,
		c.chronology,
		c.duplicates,
		c.negativePositions,
		c.priceAnomalies,
		c.settlementDates,
		c.fxRates,
		c.instrumentFields,
	} {
		check(txns, report)
	}

	c.logger.Debug().
		Int("records", report.TotalRecords).
		Int("critical", report.CriticalCount).
		Int("warnings", report.WarningCount).
		Int("info", report.InfoCount).
		Msg("Data quality check complete")

	return report
}

func (c *Checker) completeness(txns []models.Transaction, report *models.DataQualityReport) {
	var missingSymbol, missingPrice, zeroQty []string
	for i, t := range txns {
		if !isPriced(t) {
			continue
		}
		if strings.TrimSpace(t.Symbol) == "" {
			missingSymbol = append(missingSymbol, row(i, t))
		}
		if t.Price.IsZero() && t.Type != models.TxOptionExpiry {
			missingPrice = append(missingPrice, row(i, t))
		}
		if t.Quantity.IsZero() {
			zeroQty = append(zeroQty, row(i, t))
		}
	}

	add(report, models.SeverityCritical, CategoryCompleteness, "Transactions with missing symbol",
		missingSymbol, "Ensure all transactions have a valid symbol")
	add(report, models.SeverityWarning, CategoryCompleteness, "Transactions with zero or missing price",
		missingPrice, "")
	add(report, models.SeverityWarning, CategoryCompleteness, "Transactions with zero quantity",
		zeroQty, "")
}

func (c *Checker) chronology(txns []models.Transaction, report *models.DataQualityReport) {
	var out []string
	for i := 1; i < len(txns); i++ {
		if txns[i].Date.Before(txns[i-1].Date) {
			out = append(out, fmt.Sprintf("Row %d: %s < %s", i+1,
				txns[i].Date.Format(models.DateLayout), txns[i-1].Date.Format(models.DateLayout)))
		}
	}
	add(report, models.SeverityInfo, CategoryConsistency, "Transactions not in chronological order",
		out, "Transactions are replayed in date order; input order only breaks same-day ties")
}

func (c *Checker) duplicates(txns []models.Transaction, report *models.DataQualityReport) {
	type key struct {
		date, symbol, qty, price string
		typ                      models.TransactionType
	}
	rows := make(map[key][]int)
	var order []key
	for i, t := range txns {
		k := key{
			date:   t.Date.Format(models.DateLayout),
			symbol: t.Symbol,
			qty:    t.Quantity.String(),
			price:  t.Price.String(),
			typ:    t.Type,
		}
		if _, seen := rows[k]; !seen {
			order = append(order, k)
		}
		rows[k] = append(rows[k], i+1)
	}

	var out []string
	for _, k := range order {
		if len(rows[k]) > 1 {
			out = append(out, fmt.Sprintf("Rows %v: %s %s %s", rows[k], k.date, k.symbol, k.typ))
		}
	}
	add(report, models.SeverityWarning, CategoryConsistency, "Potential duplicate transactions detected",
		out, "Review these transactions to ensure they are not duplicates")
}

// negativePositions replays quantities in date order the way the ledger
// does and flags sells that exceed what is held. An oversell empties the
// holding, as a lenient disposal would.
func (c *Checker) negativePositions(txns []models.Transaction, report *models.DataQualityReport) {
	sorted := make([]models.Transaction, len(txns))
	copy(sorted, txns)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })

	held := make(map[string]decimal.Decimal)
	var out []string
	for _, t := range sorted {
		if t.Type.IsExternalFlow() || c.classifier.IsCash(t.Symbol) {
			continue
		}
		before := held[t.Symbol]
		qty := t.Quantity.Abs()
		switch {
		case t.Type.IsBuyType():
			held[t.Symbol] = before.Add(qty)
		case t.Type.IsSellType():
			if c.classifier.IsSaleToOpen(t) && before.IsZero() {
				continue
			}
			if qty.GreaterThan(before) {
				out = append(out, fmt.Sprintf("%s %s: selling %s but only have %s",
					t.Date.Format(models.DateLayout), t.Symbol, qty, before))
				held[t.Symbol] = decimal.Zero
				continue
			}
			held[t.Symbol] = before.Sub(qty)
		case t.Type == models.TxStockSplit:
			if before.IsPositive() {
				held[t.Symbol] = before.Add(t.Quantity)
			}
		case t.Type == models.TxReverseSplit:
			if !before.IsPositive() {
				continue
			}
			if t.Price.IsPositive() {
				held[t.Symbol] = before.Mul(t.Price)
			} else {
				held[t.Symbol] = before.Sub(qty)
			}
		case t.Type == models.TxOptionExpiry:
			held[t.Symbol] = decimal.Zero
		case t.Type == models.TxOptionExercise, t.Type == models.TxOptionAssignment:
			if qty.IsZero() || qty.GreaterThan(before) {
				qty = before
			}
			held[t.Symbol] = before.Sub(qty)
		}
	}
	add(report, models.SeverityCritical, CategoryConsistency,
		"Sell transactions exceed available quantity (short selling or missing buys)",
		out, "Check for missing buy transactions or incorrect quantities")
}

func (c *Checker) priceAnomalies(txns []models.Transaction, report *models.DataQualityReport) {
	bySymbol := make(map[string][]models.Transaction)
	var symbols []string
	for _, t := range txns {
		if !t.Price.IsPositive() || !isPriced(t) {
			continue
		}
		if _, ok := bySymbol[t.Symbol]; !ok {
			symbols = append(symbols, t.Symbol)
		}
		bySymbol[t.Symbol] = append(bySymbol[t.Symbol], t)
	}
	sort.Strings(symbols)

	var out []string
	for _, sym := range symbols {
		series := bySymbol[sym]
		sort.SliceStable(series, func(i, j int) bool { return series[i].Date.Before(series[j].Date) })
		for i := 1; i < len(series); i++ {
			prev, curr := series[i-1], series[i]
			change := curr.Price.Sub(prev.Price).Div(prev.Price).Abs()
			if change.GreaterThan(priceJumpLimit) {
				out = append(out, fmt.Sprintf("%s: %s -> %s (%s%% change) from %s to %s",
					sym, prev.Price, curr.Price, change.Mul(decimal.NewFromInt(100)).StringFixed(1),
					prev.Date.Format(models.DateLayout), curr.Date.Format(models.DateLayout)))
			}
		}
	}
	add(report, models.SeverityWarning, CategoryAnomaly, "Large price changes detected (>50%)",
		out, "Verify prices are correct; could indicate stock splits or data errors")
}

func (c *Checker) settlementDates(txns []models.Transaction, report *models.DataQualityReport) {
	var out []string
	for i, t := range txns {
		if t.SettlementDate.IsZero() {
			continue
		}
		if t.SettlementDate.Before(t.Date) {
			out = append(out, fmt.Sprintf("Row %d: Settlement %s before trade %s", i+1,
				t.SettlementDate.Format(models.DateLayout), t.Date.Format(models.DateLayout)))
			continue
		}
		if lag := int(t.SettlementDate.Sub(t.Date).Hours() / 24); lag > maxSettlementLag {
			out = append(out, fmt.Sprintf("Row %d: Settlement T+%d for %s", i+1, lag, t.Symbol))
		}
	}
	add(report, models.SeverityWarning, CategoryConsistency, "Settlement date anomalies", out, "")
}

func (c *Checker) fxRates(txns []models.Transaction, report *models.DataQualityReport) {
	var out []string
	for i, t := range txns {
		switch {
		case t.FXRate.IsNegative():
			out = append(out, fmt.Sprintf("Row %d: Invalid FX rate %s", i+1, t.FXRate))
		case t.FXRate.IsZero():
			ccy := strings.ToUpper(t.Currency)
			if ccy != "" && c.baseCurrency != "" && ccy != c.baseCurrency {
				out = append(out, fmt.Sprintf("Row %d: Missing FX rate for %s", i+1, ccy))
			}
		case t.FXRate.GreaterThan(maxFXRate) || t.FXRate.LessThan(minFXRate):
			out = append(out, fmt.Sprintf("Row %d: Unusual FX rate %s", i+1, t.FXRate))
		}
	}
	add(report, models.SeverityWarning, CategoryValidity, "FX rate anomalies", out, "")
}

// instrumentFields applies each asset class's own field validation to its
// acquisitions and disposals
func (c *Checker) instrumentFields(txns []models.Transaction, report *models.DataQualityReport) {
	if c.resolver == nil {
		return
	}
	var out []string
	for i, t := range txns {
		if t.AssetType == "" || !(t.Type.IsBuyType() || t.Type.IsSellType()) {
			continue
		}
		if err := c.resolver.Resolve(t.AssetType).Validate(t); err != nil {
			out = append(out, fmt.Sprintf("Row %d: %v", i+1, err))
		}
	}
	add(report, models.SeverityWarning, CategoryCompleteness, "Instrument transactions with missing/invalid fields",
		out, "")
}

// isPriced reports whether a transaction is expected to carry quantity and price
func isPriced(t models.Transaction) bool {
	if t.Type.IsExternalFlow() {
		return false
	}
	switch t.Type {
	case models.TxBuy, models.TxSell, models.TxOptionBuy, models.TxOptionSell,
		models.TxOptionExercise, models.TxOptionAssignment, models.TxOptionExpiry,
		models.TxTransferIn, models.TxTransferOut:
		return true
	}
	return false
}

func row(i int, t models.Transaction) string {
	return fmt.Sprintf("Row %d: %s", i+1, t.Date.Format(models.DateLayout))
}

func add(report *models.DataQualityReport, sev models.Severity, category, msg string, records []string, suggestion string) {
	if len(records) == 0 {
		return
	}
	if len(records) > maxAffected {
		records = records[:maxAffected]
	}
	report.Add(models.DataQualityIssue{
		Severity:        sev,
		Category:        category,
		Message:         msg,
		AffectedRecords: records,
		Suggestion:      suggestion,
	})
}

// Ensure Checker implements DataQualityChecker
var _ interfaces.DataQualityChecker = (*Checker)(nil)
