package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"

	"github.com/bobmcallan/vire-recon/internal/app"
	"github.com/bobmcallan/vire-recon/internal/common"
	"github.com/bobmcallan/vire-recon/internal/models"
)

var (
	successSymbol = "✓"
	errorSymbol   = "✗"
	warningSymbol = "!"
	infoSymbol    = "→"

	successStyle = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#00D787", Dark: "#00D787"})
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#FF5F87", Dark: "#FF5F87"})
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#D7AF00", Dark: "#FFD75F"})
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#5FAFFF", Dark: "#5FAFFF"})
)

func printSuccess(w io.Writer, message string) {
	_, _ = fmt.Fprintf(w, "%s %s\n", successStyle.Render(successSymbol), message)
}

func printError(w io.Writer, message string) {
	_, _ = fmt.Fprintf(w, "%s %s\n", errorStyle.Render(errorSymbol), errorStyle.Render(message))
}

func printWarning(w io.Writer, message string) {
	_, _ = fmt.Fprintf(w, "%s %s\n", warningStyle.Render(warningSymbol), message)
}

func printInfof(w io.Writer, format string, args ...interface{}) {
	_, _ = fmt.Fprintf(w, "%s %s\n", infoStyle.Render(infoSymbol), fmt.Sprintf(format, args...))
}

// writeJSON writes v indented to path, or to w when path is empty
func writeJSON(w io.Writer, path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	data = append(data, '\n')
	if path == "" {
		_, err = w.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write report %s: %w", path, err)
	}
	return nil
}

// printRunSummary renders the headline figures and every non-passing check
func printRunSummary(w io.Writer, res *app.Result) {
	rec := res.Reconciliation
	s := rec.Summary()
	base := rec.BaseCurrency

	printInfof(w, "%s as of %s: %d checks, %d passed, %d failed, %d warnings (%s)",
		s.PortfolioID, s.ReconciliationDate, s.TotalChecks, s.Passed, s.Failed, s.Warnings, s.PassRate)
	printInfof(w, "Realized %s, unrealized %s, market value %s",
		common.FormatMoney(res.PnL.TotalRealizedPnL(), base),
		common.FormatMoney(res.PnL.TotalUnrealizedPnL, base),
		common.FormatMoney(res.PnL.TotalMarketValue, base))

	for _, r := range rec.WarningResults() {
		printWarning(w, r.String())
	}
	for _, r := range rec.FailedResults() {
		printError(w, r.String())
	}

	if rec.IsFullyReconciled() {
		printSuccess(w, "Fully reconciled")
		return
	}
	printError(w, fmt.Sprintf("%d check(s) failed", s.Failed))
}

// printQualitySummary renders the severity counts and each issue
func printQualitySummary(w io.Writer, report *models.DataQualityReport) {
	printInfof(w, "%d records: %d critical, %d warnings, %d info",
		report.TotalRecords, report.CriticalCount, report.WarningCount, report.InfoCount)
	for _, issue := range report.Issues {
		msg := fmt.Sprintf("[%s] %s", issue.Category, issue.Message)
		switch issue.Severity {
		case models.SeverityCritical:
			printError(w, msg)
		case models.SeverityWarning:
			printWarning(w, msg)
		default:
			printInfof(w, "%s", msg)
		}
	}
	if report.IsClean() {
		printSuccess(w, "Data quality clean")
	}
}
