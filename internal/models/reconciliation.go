package models

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// ReconciliationStatus is the outcome of a single comparison.
type ReconciliationStatus string

const (
	StatusPass    ReconciliationStatus = "PASS"
	StatusFail    ReconciliationStatus = "FAIL"
	StatusWarning ReconciliationStatus = "WARNING"
)

// ReconciliationResult is one metric comparison. Difference and status are
// fixed at construction; the With* methods return modified copies.
type ReconciliationResult struct {
	metric     string
	symbol     string
	assetType  AssetType
	calculated decimal.NullDecimal
	expected   decimal.NullDecimal
	tolerance  decimal.Decimal
	difference decimal.Decimal
	status     ReconciliationStatus
	notes      string
}

// NewResult compares calculated against expected: PASS iff
// |calculated − expected| ≤ tolerance, else FAIL.
func NewResult(metric string, calculated, expected, tolerance decimal.Decimal) ReconciliationResult {
	diff := calculated.Sub(expected)
	status := StatusFail
	if diff.Abs().LessThanOrEqual(tolerance) {
		status = StatusPass
	}
	return ReconciliationResult{
		metric:     metric,
		calculated: decimal.NewNullDecimal(calculated),
		expected:   decimal.NewNullDecimal(expected),
		tolerance:  tolerance,
		difference: diff,
		status:     status,
	}
}

// NewWarning records a check that could not be compared.
func NewWarning(metric, notes string) ReconciliationResult {
	return ReconciliationResult{
		metric: metric,
		status: StatusWarning,
		notes:  notes,
	}
}

// WithSymbol scopes the result to a position.
func (r ReconciliationResult) WithSymbol(symbol string, assetType AssetType) ReconciliationResult {
	r.symbol = symbol
	r.assetType = assetType
	return r
}

// WithNotes attaches a free-text note.
func (r ReconciliationResult) WithNotes(notes string) ReconciliationResult {
	r.notes = notes
	return r
}

// WithExpected attaches the expected value to a warning without changing its status.
func (r ReconciliationResult) WithExpected(expected decimal.Decimal) ReconciliationResult {
	r.expected = decimal.NewNullDecimal(expected)
	return r
}

func (r ReconciliationResult) Metric() string               { return r.metric }
func (r ReconciliationResult) Symbol() string               { return r.symbol }
func (r ReconciliationResult) AssetType() AssetType         { return r.assetType }
func (r ReconciliationResult) Tolerance() decimal.Decimal   { return r.tolerance }
func (r ReconciliationResult) Difference() decimal.Decimal  { return r.difference }
func (r ReconciliationResult) Status() ReconciliationStatus { return r.status }
func (r ReconciliationResult) Notes() string                { return r.notes }
func (r ReconciliationResult) IsPass() bool                 { return r.status == StatusPass }
func (r ReconciliationResult) HasCalculated() bool          { return r.calculated.Valid }
func (r ReconciliationResult) Calculated() decimal.Decimal  { return r.calculated.Decimal }
func (r ReconciliationResult) Expected() decimal.Decimal    { return r.expected.Decimal }
func (r ReconciliationResult) HasExpected() bool            { return r.expected.Valid }

// PercentDifference is difference / expected × 100, or nil when expected is zero or absent.
func (r ReconciliationResult) PercentDifference() *decimal.Decimal {
	if !r.expected.Valid || !r.calculated.Valid || r.expected.Decimal.IsZero() {
		return nil
	}
	pct := r.difference.Div(r.expected.Decimal).Mul(decimal.NewFromInt(100))
	return &pct
}

func (r ReconciliationResult) String() string {
	label := r.metric
	if r.symbol != "" {
		label = r.symbol + " " + r.metric
	}
	if r.status == StatusWarning {
		return fmt.Sprintf("%s: %s (%s)", label, r.status, r.notes)
	}
	return fmt.Sprintf("%s: %s calc=%s exp=%s diff=%s tol=%s",
		label, r.status, r.calculated.Decimal, r.expected.Decimal, r.difference, r.tolerance)
}

// MarshalJSON implements json.Marshaler.
func (r ReconciliationResult) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Metric            string               `json:"metric"`
		Symbol            string               `json:"symbol,omitempty"`
		AssetType         AssetType            `json:"asset_type,omitempty"`
		Calculated        decimal.NullDecimal  `json:"calculated"`
		Expected          decimal.NullDecimal  `json:"expected"`
		Difference        decimal.Decimal      `json:"difference"`
		PercentDifference *decimal.Decimal     `json:"percent_difference"`
		Tolerance         decimal.Decimal      `json:"tolerance"`
		Status            ReconciliationStatus `json:"status"`
		Notes             string               `json:"notes,omitempty"`
	}{
		Metric:            r.metric,
		Symbol:            r.symbol,
		AssetType:         r.assetType,
		Calculated:        r.calculated,
		Expected:          r.expected,
		Difference:        r.difference,
		PercentDifference: r.PercentDifference(),
		Tolerance:         r.tolerance,
		Status:            r.status,
		Notes:             r.notes,
	})
}

// PortfolioReconciliation is the ordered result set for one run.
type PortfolioReconciliation struct {
	PortfolioID        string
	ReconciliationDate time.Time
	BaseCurrency       string

	Results         []ReconciliationResult
	PositionResults map[string][]ReconciliationResult

	DataQuality       *DataQualityReport
	CalculatedMetrics *PerformanceMetrics

	TotalChecks   int
	PassedChecks  int
	FailedChecks  int
	WarningChecks int
}

// NewPortfolioReconciliation returns an empty result set.
func NewPortfolioReconciliation(portfolioID string, date time.Time, baseCurrency string) *PortfolioReconciliation {
	return &PortfolioReconciliation{
		PortfolioID:        portfolioID,
		ReconciliationDate: date,
		BaseCurrency:       baseCurrency,
		PositionResults:    make(map[string][]ReconciliationResult),
	}
}

// Add appends a result and updates the counters and symbol groups.
func (p *PortfolioReconciliation) Add(r ReconciliationResult) {
	p.Results = append(p.Results, r)
	p.TotalChecks++
	switch r.status {
	case StatusPass:
		p.PassedChecks++
	case StatusFail:
		p.FailedChecks++
	case StatusWarning:
		p.WarningChecks++
	}
	if r.symbol != "" {
		p.PositionResults[r.symbol] = append(p.PositionResults[r.symbol], r)
	}
}

// IsFullyReconciled is true iff no result is FAIL. Warnings do not count.
func (p *PortfolioReconciliation) IsFullyReconciled() bool {
	return p.FailedChecks == 0
}

// PassRate returns passed checks as a percentage of all checks, 100 when empty.
func (p *PortfolioReconciliation) PassRate() float64 {
	if p.TotalChecks == 0 {
		return 100
	}
	return float64(p.PassedChecks) / float64(p.TotalChecks) * 100
}

// FailedResults returns FAIL results in insertion order.
func (p *PortfolioReconciliation) FailedResults() []ReconciliationResult {
	return p.filter(StatusFail)
}

// WarningResults returns WARNING results in insertion order.
func (p *PortfolioReconciliation) WarningResults() []ReconciliationResult {
	return p.filter(StatusWarning)
}

func (p *PortfolioReconciliation) filter(status ReconciliationStatus) []ReconciliationResult {
	var out []ReconciliationResult
	for _, r := range p.Results {
		if r.status == status {
			out = append(out, r)
		}
	}
	return out
}

// PositionSymbols returns symbols with position-level results, sorted.
func (p *PortfolioReconciliation) PositionSymbols() []string {
	syms := make([]string, 0, len(p.PositionResults))
	for s := range p.PositionResults {
		syms = append(syms, s)
	}
	sort.Strings(syms)
	return syms
}

// ReconciliationSummary is the headline view of a run.
type ReconciliationSummary struct {
	PortfolioID        string `json:"portfolio_id"`
	ReconciliationDate string `json:"reconciliation_date"`
	BaseCurrency       string `json:"base_currency"`
	TotalChecks        int    `json:"total_checks"`
	Passed             int    `json:"passed"`
	Failed             int    `json:"failed"`
	Warnings           int    `json:"warnings"`
	PassRate           string `json:"pass_rate"`
	FullyReconciled    bool   `json:"fully_reconciled"`
	DataQualityIssues  int    `json:"data_quality_issues"`
}

// Summary returns the headline counters.
func (p *PortfolioReconciliation) Summary() ReconciliationSummary {
	issues := 0
	if p.DataQuality != nil {
		issues = len(p.DataQuality.Issues)
	}
	return ReconciliationSummary{
		PortfolioID:        p.PortfolioID,
		ReconciliationDate: p.ReconciliationDate.Format(DateLayout),
		BaseCurrency:       p.BaseCurrency,
		TotalChecks:        p.TotalChecks,
		Passed:             p.PassedChecks,
		Failed:             p.FailedChecks,
		Warnings:           p.WarningChecks,
		PassRate:           fmt.Sprintf("%.2f%%", p.PassRate()),
		FullyReconciled:    p.IsFullyReconciled(),
		DataQualityIssues:  issues,
	}
}

// MarshalJSON implements json.Marshaler.
func (p *PortfolioReconciliation) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Summary         ReconciliationSummary             `json:"summary"`
		Results         []ReconciliationResult            `json:"results"`
		PositionResults map[string][]ReconciliationResult `json:"position_results,omitempty"`
		DataQuality     *DataQualityReport                `json:"data_quality,omitempty"`
		Metrics         *PerformanceMetrics               `json:"calculated_metrics,omitempty"`
	}{
		Summary:         p.Summary(),
		Results:         p.Results,
		PositionResults: p.PositionResults,
		DataQuality:     p.DataQuality,
		Metrics:         p.CalculatedMetrics,
	})
}
