package pms

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/PaesslerAG/jsonpath"
	"github.com/shopspring/decimal"

	"github.com/bobmcallan/vire-recon/internal/common"
	"github.com/bobmcallan/vire-recon/internal/models"
)

// MappingSource pulls expected values out of an arbitrary JSON export with
// configured JSONPath expressions
type MappingSource struct {
	cfg     common.PMSConfig
	percent map[string]bool
}

// NewMappingSource creates a decoder for the configured mapping
func NewMappingSource(cfg common.PMSConfig) *MappingSource {
	percent := make(map[string]bool, len(cfg.PercentMetrics))
	for _, m := range cfg.PercentMetrics {
		percent[metricKey(m)] = true
	}
	if cfg.SymbolField == "" {
		cfg.SymbolField = "symbol"
	}
	return &MappingSource{cfg: cfg, percent: percent}
}

func (s *MappingSource) Name() string { return KindMapping }

func (s *MappingSource) Parse(data []byte) (*models.ExpectedValues, error) {
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}

	exp := models.NewExpectedValues()

	names := make([]string, 0, len(s.cfg.Metrics))
	for name := range s.cfg.Metrics {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		v, found, err := s.lookup(s.cfg.Metrics[name], doc)
		if err != nil {
			return nil, fmt.Errorf("metric %s: %w", name, err)
		}
		if !found {
			continue
		}
		exp.Metrics[metricKey(name)] = s.scale(name, v)
	}

	if s.cfg.PositionsPath == "" {
		return exp, nil
	}
	if err := s.positions(doc, exp); err != nil {
		return nil, err
	}
	return exp, nil
}

func (s *MappingSource) positions(doc any, exp *models.ExpectedValues) error {
	raw, err := jsonpath.Get(s.cfg.PositionsPath, doc)
	if err != nil {
		return fmt.Errorf("positions %q: %w", s.cfg.PositionsPath, err)
	}
	list, ok := raw.([]any)
	if !ok {
		return fmt.Errorf("positions %q: not an array", s.cfg.PositionsPath)
	}

	for i, item := range list {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		sym, _ := obj[s.cfg.SymbolField].(string)
		sym = strings.TrimSpace(sym)
		if sym == "" {
			continue
		}
		for name, field := range s.cfg.PositionFields {
			fv, ok := obj[field]
			if !ok || fv == nil {
				continue
			}
			d, err := ParseAmount(fv)
			if err != nil {
				return fmt.Errorf("position %d (%s) %s: %w", i, sym, field, err)
			}
			exp.SetPosition(sym, metricKey(name), s.scale(name, d))
		}
	}
	return nil
}

// lookup evaluates path. A path that selects nothing is not an error; only
// a value that cannot be read as an amount is.
func (s *MappingSource) lookup(path string, doc any) (decimal.Decimal, bool, error) {
	v, err := jsonpath.Get(path, doc)
	if err != nil {
		return decimal.Zero, false, nil
	}
	// a filter or wildcard yields a list; keep the first match
	if list, ok := v.([]any); ok {
		if len(list) == 0 {
			return decimal.Zero, false, nil
		}
		v = list[0]
	}
	if v == nil {
		return decimal.Zero, false, nil
	}
	d, err := ParseAmount(v)
	return d, err == nil, err
}

func (s *MappingSource) scale(name string, v decimal.Decimal) decimal.Decimal {
	if s.percent[metricKey(name)] {
		return v.Div(decimal.NewFromInt(100))
	}
	return v
}
