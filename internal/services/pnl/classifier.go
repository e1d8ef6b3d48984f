package pnl

import (
	"strings"

	"github.com/bobmcallan/vire-recon/internal/common"
	"github.com/bobmcallan/vire-recon/internal/interfaces"
	"github.com/bobmcallan/vire-recon/internal/models"
)

// Classifier applies the configured rule tables to transactions whose
// category is not carried by a structured field. It is best-effort.
type Classifier struct {
	cash          map[string]bool
	optionMarkers []string
	feeRules      []feeRule
}

type feeRule struct {
	category    models.FeeCategory
	symbols     []string
	description []string
}

// NewClassifier builds a classifier from configuration. Matching is case-insensitive.
func NewClassifier(cfg common.ClassifierConfig) *Classifier {
	c := &Classifier{cash: make(map[string]bool, len(cfg.CashSymbols))}
	for _, s := range cfg.CashSymbols {
		c.cash[strings.ToUpper(strings.TrimSpace(s))] = true
	}
	for _, m := range cfg.OptionMarkers {
		if m = strings.TrimSpace(m); m != "" {
			c.optionMarkers = append(c.optionMarkers, strings.ToUpper(m))
		}
	}
	for _, r := range cfg.FeeRules {
		c.feeRules = append(c.feeRules, feeRule{
			category:    models.FeeCategory(r.Category),
			symbols:     lowerAll(r.SymbolContains),
			description: lowerAll(r.DescriptionContains),
		})
	}
	return c
}

// IsCash reports whether symbol is a currency code that is not inventoried.
func (c *Classifier) IsCash(symbol string) bool {
	if symbol == "" {
		return false
	}
	return c.cash[strings.ToUpper(symbol)]
}

// IsOptionSymbol reports whether symbol follows a configured option convention.
func (c *Classifier) IsOptionSymbol(symbol string) bool {
	upper := strings.ToUpper(symbol)
	for _, m := range c.optionMarkers {
		if strings.Contains(upper, m) {
			return true
		}
	}
	return false
}

// IsSaleToOpen reports whether a sell-type transaction writes an option
// rather than closing a long position.
func (c *Classifier) IsSaleToOpen(txn models.Transaction) bool {
	if txn.Type != models.TxSell && txn.Type != models.TxOptionSell {
		return false
	}
	return c.IsOptionSymbol(txn.Symbol) && txn.NetAmount().IsPositive()
}

// FeeCategory returns the expense bucket for a fee-like transaction: the
// structured flag when present, then the first matching rule, then other fees.
func (c *Classifier) FeeCategory(txn models.Transaction) models.FeeCategory {
	switch txn.FeeType {
	case models.FeeWithholdingTax, models.FeeInterestExpense, models.FeeOther:
		return txn.FeeType
	}
	if txn.Type == models.TxWithholdingTax {
		return models.FeeWithholdingTax
	}

	symbol := strings.ToLower(txn.Symbol)
	desc := strings.ToLower(txn.Description)
	for _, r := range c.feeRules {
		if containsAny(symbol, r.symbols) || containsAny(desc, r.description) {
			return r.category
		}
	}
	return models.FeeOther
}

func containsAny(s string, needles []string) bool {
	if s == "" {
		return false
	}
	for _, n := range needles {
		if n != "" && strings.Contains(s, n) {
			return true
		}
	}
	return false
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		out = append(out, strings.ToLower(s))
	}
	return out
}

// Ensure Classifier implements TransactionClassifier
var _ interfaces.TransactionClassifier = (*Classifier)(nil)
