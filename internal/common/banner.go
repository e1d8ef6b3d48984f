package common

import (
	"fmt"
	"io"
	"strings"

	"github.com/ternarybob/banner"
)

// PrintBanner writes the startup banner for a reconciliation run.
func PrintBanner(w io.Writer, config *Config, logger *Logger, input string) {
	lineColor := banner.ColorCyan
	textColor := banner.ColorBold + banner.ColorWhite
	width := 60
	hr := lineColor + strings.Repeat("═", width) + banner.ColorReset

	fmt.Fprintf(w, "\n%s\n", hr)
	fmt.Fprintf(w, "%s  VIRE RECON%s\n", textColor, banner.ColorReset)
	fmt.Fprintf(w, "%s  Portfolio P&L and performance reconciliation%s\n", textColor, banner.ColorReset)
	fmt.Fprintf(w, "%s\n", hr)

	kvPad := 14
	kvLines := [][2]string{
		{"Version", GetVersion()},
		{"Commit", GetGitCommit()},
		{"Environment", config.Environment},
		{"Base currency", config.BaseCurrency},
		{"Oversell", config.Ledger.Oversell},
		{"Input", input},
	}
	for _, kv := range kvLines {
		fmt.Fprintf(w, "%s  %-*s %s%s\n", textColor, kvPad, kv[0], kv[1], banner.ColorReset)
	}
	fmt.Fprintf(w, "%s\n\n", hr)

	logger.Info().
		Str("version", GetVersion()).
		Str("environment", config.Environment).
		Str("base_currency", config.BaseCurrency).
		Str("oversell", config.Ledger.Oversell).
		Str("input", input).
		Msg("Reconciliation started")
}
