package main

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/alecthomas/kong"

	"github.com/bobmcallan/vire-recon/internal/app"
	"github.com/bobmcallan/vire-recon/internal/clients/navexa"
	"github.com/bobmcallan/vire-recon/internal/common"
	"github.com/bobmcallan/vire-recon/internal/ledger"
	"github.com/bobmcallan/vire-recon/internal/models"
	"github.com/bobmcallan/vire-recon/internal/pms"
)

// exitUnreconciled is the status returned by --strict when a check fails
const exitUnreconciled = 2

// Globals defines global flags available to all commands.
type Globals struct {
	Config string `help:"Path to vire-recon.toml." short:"c" env:"VIRE_RECON_CONFIG" type:"path"`
	Quiet  bool   `help:"Suppress the banner, status lines and info logging." short:"q"`
}

type Commands struct {
	Globals

	Run     RunCmd     `cmd:"" help:"Reconcile a run envelope against expected values."`
	Lots    LotsCmd    `cmd:"" help:"Show open lots, disposals and the tax-lot report."`
	Quality QualityCmd `cmd:"" help:"Run the data-quality checks only."`
}

// newApp builds the app and loads the envelope
func newApp(globals *Globals, input string) (*app.App, *models.RunInput, error) {
	a, err := app.NewApp(globals.Config)
	if err != nil {
		return nil, nil, err
	}
	if globals.Quiet {
		a.Logger = common.NewLoggerFromConfig(common.LoggingConfig{Level: "error", Format: a.Config.Logging.Format})
	}
	in, err := app.LoadInput(input)
	if err != nil {
		return nil, nil, err
	}
	return a, in, nil
}

type RunCmd struct {
	Input           string `help:"Run envelope (JSON)." short:"i" required:"" type:"existingfile"`
	Expected        string `help:"PMS export holding expected values." short:"e" type:"existingfile" xor:"source"`
	Format          string `help:"Format of the PMS export (${enum})." enum:"auto,canonical,mapping,navexa" default:"auto"`
	NavexaPortfolio string `help:"Fetch expected values from the Navexa API for this portfolio ID." xor:"source"`
	Out             string `help:"Write the JSON report to this file instead of stdout." short:"o" type:"path"`
	Full            bool   `help:"Include P&L, lots and disposals in the report."`
	Strict          bool   `help:"Exit with status 2 when any check fails."`
}

func (cmd *RunCmd) Run(ctx *kong.Context, globals *Globals) error {
	a, in, err := newApp(globals, cmd.Input)
	if err != nil {
		return err
	}
	if !globals.Quiet {
		common.PrintBanner(ctx.Stderr, a.Config, a.Logger, cmd.Input)
	}

	external, err := cmd.loadExpected(a)
	if err != nil {
		return err
	}

	res, err := a.Run(in, external)
	if err != nil {
		return err
	}

	var report any = res.Reconciliation
	if cmd.Full {
		report = res
	}
	if err := writeJSON(ctx.Stdout, cmd.Out, report); err != nil {
		return err
	}

	if !globals.Quiet {
		printRunSummary(ctx.Stderr, res)
		if cmd.Out != "" {
			printInfof(ctx.Stderr, "Report written to %s", cmd.Out)
		}
	}

	if cmd.Strict && !res.Reconciliation.IsFullyReconciled() {
		ctx.Exit(exitUnreconciled)
	}
	return nil
}

// loadExpected returns the external expected values, if any were asked for
func (cmd *RunCmd) loadExpected(a *app.App) (*models.ExpectedValues, error) {
	if cmd.NavexaPortfolio != "" {
		if a.Config.Navexa.APIKey == "" {
			return nil, fmt.Errorf("navexa api key not configured (set NAVEXA_API_KEY or [navexa] api_key)")
		}
		client := navexa.NewClientFromConfig(a.Config.Navexa, a.Logger)
		return client.Fetch(context.Background(), cmd.NavexaPortfolio)
	}
	if cmd.Expected == "" {
		return nil, nil
	}
	kind := cmd.Format
	if kind == "auto" {
		kind = ""
	}
	src, err := pms.NewSource(kind, a.Config.PMS)
	if err != nil {
		return nil, err
	}
	return pms.Load(cmd.Expected, src)
}

type LotsCmd struct {
	Input  string `help:"Run envelope (JSON)." short:"i" required:"" type:"existingfile"`
	Symbol string `help:"Only show this symbol." short:"s"`
	Out    string `help:"Write the JSON report to this file instead of stdout." short:"o" type:"path"`
}

// lotsReport is the payload of the lots command
type lotsReport struct {
	Lots      map[string][]ledger.LotDetail `json:"lots"`
	Disposals map[string][]ledger.Disposal  `json:"disposals,omitempty"`
	TaxLots   *ledger.TaxLotReport          `json:"tax_lots,omitempty"`
}

func (cmd *LotsCmd) Run(ctx *kong.Context, globals *Globals) error {
	a, in, err := newApp(globals, cmd.Input)
	if err != nil {
		return err
	}
	res, err := a.Run(in, nil)
	if err != nil {
		return err
	}

	report, err := selectLots(res, cmd.Symbol)
	if err != nil {
		return err
	}
	if err := writeJSON(ctx.Stdout, cmd.Out, report); err != nil {
		return err
	}

	if !globals.Quiet {
		for _, sym := range slices.Sorted(maps.Keys(report.Lots)) {
			printInfof(ctx.Stderr, "%s: %d lot(s), %d disposal(s)", sym, len(report.Lots[sym]), len(report.Disposals[sym]))
		}
	}
	return nil
}

// selectLots narrows a run result to one symbol. The tax-lot report is
// portfolio wide so it is only carried when no symbol is given.
func selectLots(res *app.Result, symbol string) (*lotsReport, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return &lotsReport{Lots: res.Lots, Disposals: res.Disposals, TaxLots: &res.TaxLots}, nil
	}
	lots, ok := res.Lots[symbol]
	if !ok {
		return nil, fmt.Errorf("no lots for symbol %s", symbol)
	}
	report := &lotsReport{Lots: map[string][]ledger.LotDetail{symbol: lots}}
	if d, ok := res.Disposals[symbol]; ok {
		report.Disposals = map[string][]ledger.Disposal{symbol: d}
	}
	return report, nil
}

type QualityCmd struct {
	Input          string `help:"Run envelope (JSON)." short:"i" required:"" type:"existingfile"`
	Out            string `help:"Write the JSON report to this file instead of stdout." short:"o" type:"path"`
	FailOnCritical bool   `help:"Exit with status 1 when a critical issue is found."`
}

func (cmd *QualityCmd) Run(ctx *kong.Context, globals *Globals) error {
	a, in, err := newApp(globals, cmd.Input)
	if err != nil {
		return err
	}
	report := a.CheckQuality(in)
	if err := writeJSON(ctx.Stdout, cmd.Out, report); err != nil {
		return err
	}
	if !globals.Quiet {
		printQualitySummary(ctx.Stderr, report)
	}
	if cmd.FailOnCritical && report.HasCritical() {
		return fmt.Errorf("%d critical data quality issue(s) found", report.CriticalCount)
	}
	return nil
}
