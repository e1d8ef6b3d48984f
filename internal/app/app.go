package app

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bobmcallan/vire-recon/internal/common"
	"github.com/bobmcallan/vire-recon/internal/ledger"
	"github.com/bobmcallan/vire-recon/internal/models"
	"github.com/bobmcallan/vire-recon/internal/services/performance"
	"github.com/bobmcallan/vire-recon/internal/services/pnl"
	"github.com/bobmcallan/vire-recon/internal/services/quality"
	"github.com/bobmcallan/vire-recon/internal/services/reconcile"
)

// App holds configuration and the logger shared by every run. Services are
// built fresh per run so identical inputs give identical results.
type App struct {
	Config      *common.Config
	Logger      *common.Logger
	StartupTime time.Time
}

// Result is everything one run produces
type Result struct {
	Reconciliation *models.PortfolioReconciliation `json:"reconciliation"`
	PnL            *models.PortfolioPnL            `json:"pnl"`
	Lots           map[string][]ledger.LotDetail   `json:"lots,omitempty"`
	Disposals      map[string][]ledger.Disposal    `json:"disposals,omitempty"`
	TaxLots        ledger.TaxLotReport             `json:"tax_lots"`
}

// getBinaryDir returns the directory containing the executable.
func getBinaryDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}

// NewApp loads configuration and initializes logging.
// configPath may be empty, in which case the default resolution logic is used.
func NewApp(configPath string) (*App, error) {
	if configPath == "" {
		configPath = os.Getenv("VIRE_RECON_CONFIG")
	}
	if configPath == "" {
		configPath = filepath.Join(getBinaryDir(), "vire-recon.toml")
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			configPath = "config/vire-recon.toml" // fallback for development
		}
	}

	config, err := common.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return NewAppWithConfig(config, common.NewLoggerFromConfig(config.Logging)), nil
}

// NewAppWithConfig wraps an already loaded configuration
func NewAppWithConfig(config *common.Config, logger *common.Logger) *App {
	a := &App{
		Config:      config,
		Logger:      logger,
		StartupTime: time.Now(),
	}

	if unknown := config.UnregisteredCashSymbols(); len(unknown) > 0 {
		logger.Warn().
			Str("symbols", strings.Join(unknown, ",")).
			Msg("Cash symbols not in the currency registry")
	}
	return a
}

// LoadInput reads a run envelope from path
func LoadInput(path string) (*models.RunInput, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read input %s: %w", path, err)
	}
	var in models.RunInput
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, fmt.Errorf("failed to parse input %s: %w", path, err)
	}
	return &in, nil
}

// CheckQuality runs the data-quality pass on its own
func (a *App) CheckQuality(in *models.RunInput) *models.DataQualityReport {
	aggregator := pnl.NewAggregator(a.Config, a.Logger)
	return quality.NewChecker(a.Config, aggregator.Classifier(), aggregator.Registry(), a.Logger).Check(in.Transactions)
}

// Run executes the pipeline once: data-quality pass, lot replay, valuation,
// performance, reconciliation. external overrides expected values carried
// in the input envelope.
func (a *App) Run(in *models.RunInput, external *models.ExpectedValues) (*Result, error) {
	start := time.Now()
	asOf := in.AsOf()
	base := in.BaseCurrency
	if base == "" {
		base = a.Config.BaseCurrency
	}

	aggregator := pnl.NewAggregator(a.Config, a.Logger)
	checker := quality.NewChecker(a.Config, aggregator.Classifier(), aggregator.Registry(), a.Logger)
	calculator := performance.NewCalculator(a.Config, a.Logger)
	engine := reconcile.NewEngine(a.Config.Tolerances, a.Logger,
		reconcile.WithCriticalQualityFailure(a.Config.Quality.FailsOnCritical()))

	report := checker.Check(in.Transactions)

	if _, err := aggregator.Process(in.Transactions); err != nil {
		return nil, err
	}
	valued := aggregator.Value(in.Prices, in.FXRates)

	metrics := calculator.Metrics(in.Transactions, valued, in.DailyValues, asOf)

	expected := models.NewExpectedValues()
	expected.Merge(in.Expected)
	expected.Merge(external)

	rec := engine.Reconcile(in.PortfolioID, asOf, base, valued, metrics, expected)
	engine.AddDataQuality(rec, report)

	result := &Result{
		Reconciliation: rec,
		PnL:            valued,
		Lots:           make(map[string][]ledger.LotDetail),
		Disposals:      make(map[string][]ledger.Disposal),
		TaxLots:        aggregator.Book().TaxLotReport(asOf),
	}
	for _, sym := range aggregator.Book().SortedSymbols() {
		result.Lots[sym] = aggregator.Lots(sym, asOf)
		if d := aggregator.Disposals(sym); len(d) > 0 {
			result.Disposals[sym] = d
		}
	}

	a.Logger.Info().
		Str("portfolio", in.PortfolioID).
		Int("transactions", len(in.Transactions)).
		Int("positions", len(valued.Symbols)).
		Bool("reconciled", rec.IsFullyReconciled()).
		Dur("elapsed", time.Since(start)).
		Msg("Run complete")

	return result, nil
}
