// Package common provides shared utilities for vire-recon
package common

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Rhymond/go-money"
	"github.com/joho/godotenv"
	toml "github.com/pelletier/go-toml/v2"
)

// Config holds all configuration for a reconciliation run
type Config struct {
	Environment  string           `toml:"environment"`
	BaseCurrency string           `toml:"base_currency"` // Currency all P&L figures are reported in
	Solver       SolverConfig     `toml:"solver"`
	Tolerances   TolerancesConfig `toml:"tolerances"`
	Ledger       LedgerConfig     `toml:"ledger"`
	Quality      QualityConfig    `toml:"quality"`
	Classifier   ClassifierConfig `toml:"classifier"`
	PMS          PMSConfig        `toml:"pms"`
	Navexa       NavexaConfig     `toml:"navexa"`
	Logging      LoggingConfig    `toml:"logging"`
}

// SolverConfig holds Newton-Raphson parameters for the XIRR solver
type SolverConfig struct {
	MaxIterations    int       `toml:"max_iterations"`
	Precision        float64   `toml:"precision"`
	InitialGuess     float64   `toml:"initial_guess"`
	AlternateGuesses []float64 `toml:"alternate_guesses"`
	MinRate          float64   `toml:"min_rate"`
	MaxRate          float64   `toml:"max_rate"`
}

// TolerancesConfig holds per-metric absolute tolerances.
// Rates are decimals (0.0001 = 1bp), amounts are in base currency.
type TolerancesConfig struct {
	IRR               float64 `toml:"irr"`
	XIRR              float64 `toml:"xirr"`
	TWR               float64 `toml:"twr"`
	YTM               float64 `toml:"ytm"`
	RealizedPnL       float64 `toml:"realized_pnl"`
	UnrealizedPnL     float64 `toml:"unrealized_pnl"`
	TotalPnLPosition  float64 `toml:"total_pnl_position"`
	TotalPnLPortfolio float64 `toml:"total_pnl_portfolio"`
	FXRate            float64 `toml:"fx_rate"`
	Quantity          float64 `toml:"quantity"`
	MarketValue       float64 `toml:"market_value"`
	AccruedInterest   float64 `toml:"accrued_interest"`
}

// Oversell handling modes for the lot ledger
const (
	OversellLenient = "lenient"
	OversellStrict  = "strict"
)

// LedgerConfig controls lot ledger behaviour
type LedgerConfig struct {
	// Oversell is "lenient" (dispose what is held, report the rest) or "strict" (error).
	Oversell string `toml:"oversell"`
}

// IsStrict returns true if a sell exceeding held quantity must fail the run
func (c LedgerConfig) IsStrict() bool {
	return strings.EqualFold(strings.TrimSpace(c.Oversell), OversellStrict)
}

// Severity given to critical data-quality issues in the reconciliation
const (
	CriticalQualityWarn = "warn"
	CriticalQualityFail = "fail"
)

// QualityConfig controls how the data-quality pass feeds the reconciliation
type QualityConfig struct {
	// Critical is "warn" (record a WARNING result) or "fail" (record a FAIL
	// comparing the critical count against zero).
	Critical string `toml:"critical"`
}

// FailsOnCritical returns true if critical issues must fail the reconciliation
func (c QualityConfig) FailsOnCritical() bool {
	return strings.EqualFold(strings.TrimSpace(c.Critical), CriticalQualityFail)
}

// ClassifierConfig holds the rule tables used to categorise transactions
// whose category is not carried by a structured field.
type ClassifierConfig struct {
	CashSymbols   []string  `toml:"cash_symbols"`
	OptionMarkers []string  `toml:"option_markers"` // symbol substrings identifying listed options
	FeeRules      []FeeRule `toml:"fee_rules"`
}

// FeeRule maps free-text hints to an expense category. First matching rule wins.
type FeeRule struct {
	Category            string   `toml:"category"` // withholding_tax, interest_expense, other_fees
	SymbolContains      []string `toml:"symbol_contains"`
	DescriptionContains []string `toml:"description_contains"`
}

// PMSConfig describes how expected values are pulled from a PMS export
type PMSConfig struct {
	// Metrics maps a metric name (xirr, twr, market_value, ...) to a JSONPath expression.
	Metrics map[string]string `toml:"metrics"`
	// PositionsPath selects the array of position objects in the export.
	PositionsPath string `toml:"positions_path"`
	// SymbolField is the key holding the symbol inside each position object.
	SymbolField string `toml:"symbol_field"`
	// PositionFields maps a position metric name to the key inside each position object.
	PositionFields map[string]string `toml:"position_fields"`
	// PercentMetrics lists metrics the export reports as percentages (12.5 = 0.125).
	PercentMetrics []string `toml:"percent_metrics"`
}

// NavexaConfig holds Navexa API configuration for fetching expected values live
type NavexaConfig struct {
	BaseURL   string `toml:"base_url"`
	APIKey    string `toml:"api_key"`
	RateLimit int    `toml:"rate_limit"` // requests per second
	Timeout   string `toml:"timeout"`
}

// GetTimeout parses and returns the timeout duration
func (c *NavexaConfig) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "console" or "json"
}

// DefaultCashSymbols are currency codes treated as cash rather than inventoried.
var DefaultCashSymbols = []string{
	"USD", "EUR", "GBP", "CHF", "JPY", "CAD", "AUD", "NZD", "HKD", "SGD",
	"CNY", "CNH", "INR", "KRW", "TWD", "THB", "MYR", "IDR", "PHP", "VND",
	"SEK", "NOK", "DKK", "PLN", "CZK", "HUF", "TRY", "ZAR", "MXN", "BRL",
	"ARS", "CLP", "COP", "PEN", "ILS", "AED", "SAR", "KWD", "BHD", "QAR",
}

// NewDefaultConfig returns a Config with sensible defaults
func NewDefaultConfig() *Config {
	return &Config{
		Environment:  "development",
		BaseCurrency: "USD",
		Solver: SolverConfig{
			MaxIterations:    100,
			Precision:        1e-10,
			InitialGuess:     0.1,
			AlternateGuesses: []float64{-0.5, 0.5, 0.01, -0.01, 1.0, -0.9},
			MinRate:          -0.9999,
			MaxRate:          10,
		},
		Tolerances: TolerancesConfig{
			IRR:               0.0001,
			XIRR:              0.0001,
			TWR:               0.0001,
			YTM:               0.0001,
			RealizedPnL:       0.01,
			UnrealizedPnL:     0.01,
			TotalPnLPosition:  0.01,
			TotalPnLPortfolio: 1.00,
			FXRate:            0.0001,
			Quantity:          0.0001,
			MarketValue:       0.01,
			AccruedInterest:   0.01,
		},
		Ledger: LedgerConfig{
			Oversell: OversellLenient,
		},
		Quality: QualityConfig{
			Critical: CriticalQualityWarn,
		},
		Classifier: ClassifierConfig{
			CashSymbols:   append([]string(nil), DefaultCashSymbols...),
			OptionMarkers: []string{"_OPQ"},
			FeeRules: []FeeRule{
				{
					Category:            "withholding_tax",
					SymbolContains:      []string{"wtax"},
					DescriptionContains: []string{"tax", "withhold"},
				},
				{
					Category:            "interest_expense",
					SymbolContains:      []string{"intpaid"},
					DescriptionContains: []string{"interest paid"},
				},
			},
		},
		PMS: PMSConfig{
			SymbolField: "symbol",
		},
		Navexa: NavexaConfig{
			BaseURL:   "https://api.navexa.com.au",
			RateLimit: 5,
			Timeout:   "30s",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// LoadConfig loads configuration from files with environment overrides.
// Later files override earlier ones; missing files are skipped.
func LoadConfig(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	// .env is optional; a missing file is not an error
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	for _, path := range paths {
		if path == "" {
			continue
		}

		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("VIRE_RECON_ENV"); env != "" {
		config.Environment = env
	}

	if bc := os.Getenv("VIRE_RECON_BASE_CURRENCY"); bc != "" {
		config.BaseCurrency = strings.ToUpper(bc)
	}

	if level := os.Getenv("VIRE_RECON_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}

	if format := os.Getenv("VIRE_RECON_LOG_FORMAT"); format != "" {
		config.Logging.Format = format
	}

	if mode := os.Getenv("VIRE_RECON_OVERSELL"); mode != "" {
		config.Ledger.Oversell = strings.ToLower(mode)
	}

	if mode := os.Getenv("VIRE_RECON_CRITICAL_QUALITY"); mode != "" {
		config.Quality.Critical = strings.ToLower(mode)
	}

	if key := os.Getenv("NAVEXA_API_KEY"); key != "" {
		config.Navexa.APIKey = key
	}

	if v := os.Getenv("VIRE_RECON_MAX_ITERATIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			config.Solver.MaxIterations = n
		}
	}
}

// Validate checks the configuration for values the pipeline cannot run with
func (c *Config) Validate() error {
	var problems []string

	if money.GetCurrency(strings.ToUpper(c.BaseCurrency)) == nil {
		problems = append(problems, fmt.Sprintf("base_currency %q is not an ISO 4217 code", c.BaseCurrency))
	}

	switch strings.ToLower(strings.TrimSpace(c.Ledger.Oversell)) {
	case OversellLenient, OversellStrict:
	default:
		problems = append(problems, fmt.Sprintf("ledger.oversell must be %q or %q, got %q", OversellLenient, OversellStrict, c.Ledger.Oversell))
	}

	switch strings.ToLower(strings.TrimSpace(c.Quality.Critical)) {
	case CriticalQualityWarn, CriticalQualityFail:
	default:
		problems = append(problems, fmt.Sprintf("quality.critical must be %q or %q, got %q", CriticalQualityWarn, CriticalQualityFail, c.Quality.Critical))
	}

	if c.Solver.MaxIterations <= 0 {
		problems = append(problems, "solver.max_iterations must be positive")
	}
	if c.Solver.Precision <= 0 {
		problems = append(problems, "solver.precision must be positive")
	}
	if c.Solver.MinRate <= -1 || c.Solver.MinRate >= c.Solver.MaxRate {
		problems = append(problems, "solver rate bounds must satisfy -1 < min_rate < max_rate")
	}

	for _, r := range c.Classifier.FeeRules {
		switch r.Category {
		case "withholding_tax", "interest_expense", "other_fees":
		default:
			problems = append(problems, fmt.Sprintf("fee rule category %q is not recognised", r.Category))
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// UnregisteredCashSymbols returns configured cash symbols the currency
// registry does not know. Offshore codes such as CNH are legitimate but
// unregistered, so callers log these rather than fail.
func (c *Config) UnregisteredCashSymbols() []string {
	var out []string
	for _, sym := range c.Classifier.CashSymbols {
		if money.GetCurrency(strings.ToUpper(sym)) == nil {
			out = append(out, sym)
		}
	}
	return out
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}
