package main

import (
	"github.com/alecthomas/kong"

	"github.com/bobmcallan/vire-recon/internal/common"
)

var cli struct {
	Version kong.VersionFlag `help:"Show version information"`
	Commands
}

func main() {
	ctx := kong.Parse(&cli,
		kong.Vars{
			"version": common.GetFullVersion(),
		},
		kong.Name("vire-recon"),
		kong.Description("Reconcile portfolio P&L and performance against a PMS export."),
		kong.UsageOnError(),
		kong.Bind(&cli.Globals),
	)

	err := ctx.Run()
	ctx.FatalIfErrorf(err)
}
