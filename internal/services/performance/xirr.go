package performance

import (
	"math"
	"sort"

	"github.com/bobmcallan/vire-recon/internal/common"
	"github.com/bobmcallan/vire-recon/internal/models"
)

// derivativeFloor is the smallest |NPV'| Newton-Raphson will divide by.
const derivativeFloor = 1e-12

// daysPerYear is the XIRR day-count basis.
const daysPerYear = 365.0

// XIRRSolver finds the money-weighted annual rate of irregular cash flows
// using Newton-Raphson with a fixed list of fallback guesses.
type XIRRSolver struct {
	MaxIterations    int
	Precision        float64
	InitialGuess     float64
	AlternateGuesses []float64
	MinRate          float64
	MaxRate          float64
}

// NewXIRRSolver creates a solver from the solver configuration
func NewXIRRSolver(cfg common.SolverConfig) *XIRRSolver {
	return &XIRRSolver{
		MaxIterations:    cfg.MaxIterations,
		Precision:        cfg.Precision,
		InitialGuess:     cfg.InitialGuess,
		AlternateGuesses: append([]float64(nil), cfg.AlternateGuesses...),
		MinRate:          cfg.MinRate,
		MaxRate:          cfg.MaxRate,
	}
}

// Solve returns the rate r with Σ CFᵢ / (1+r)^(tᵢ/365) = 0, where tᵢ is days
// since the earliest flow. ok is false when flows do not change sign or no
// attempt converges.
func (s *XIRRSolver) Solve(flows []models.CashFlow) (float64, bool) {
	if len(flows) < 2 {
		return 0, false
	}

	sorted := make([]models.CashFlow, len(flows))
	copy(sorted, flows)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.Before(sorted[j].Date)
	})

	amounts := make([]float64, len(sorted))
	years := make([]float64, len(sorted))
	base := sorted[0].Date
	for i, f := range sorted {
		amounts[i] = f.Amount
		years[i] = float64(calendarDays(base, f.Date)) / daysPerYear
	}

	if !hasSignChange(amounts) {
		return 0, false
	}

	if r, ok := s.newton(amounts, years, s.InitialGuess, false); ok {
		return r, true
	}
	for _, guess := range s.AlternateGuesses {
		if r, ok := s.newton(amounts, years, guess, true); ok {
			return r, true
		}
	}
	return 0, false
}

// newton runs one Newton-Raphson attempt. The primary attempt clamps the
// rate into [MinRate, MaxRate] each step; fallback attempts give up as soon
// as the rate leaves that range.
func (s *XIRRSolver) newton(amounts, years []float64, guess float64, abortOutside bool) (float64, bool) {
	rate := guess
	for i := 0; i < s.MaxIterations; i++ {
		f := npv(amounts, years, rate)
		df := npvDerivative(amounts, years, rate)
		if !isFinite(f) || !isFinite(df) || math.Abs(df) < derivativeFloor {
			return 0, false
		}

		next := rate - f/df
		if !isFinite(next) {
			return 0, false
		}
		if math.Abs(next-rate) < s.Precision {
			if next <= -1 {
				return 0, false
			}
			return next, true
		}

		if next < s.MinRate || next > s.MaxRate {
			if abortOutside {
				return 0, false
			}
			next = math.Max(s.MinRate, math.Min(s.MaxRate, next))
		}
		rate = next
	}
	return 0, false
}

// NPV discounts flows at an annual rate from the earliest flow date.
func (s *XIRRSolver) NPV(flows []models.CashFlow, rate float64) float64 {
	if len(flows) == 0 {
		return 0
	}
	base := flows[0].Date
	for _, f := range flows {
		if f.Date.Before(base) {
			base = f.Date
		}
	}
	total := 0.0
	for _, f := range flows {
		t := float64(calendarDays(base, f.Date)) / daysPerYear
		total += f.Amount / math.Pow(1+rate, t)
	}
	return total
}

// IRR returns the annual rate of evenly spaced flows, periodsPerYear apart.
// It runs a single Newton-Raphson attempt from the initial guess.
func (s *XIRRSolver) IRR(amounts []float64, periodsPerYear int) (float64, bool) {
	if len(amounts) < 2 || periodsPerYear <= 0 || !hasSignChange(amounts) {
		return 0, false
	}
	years := make([]float64, len(amounts))
	for i := range amounts {
		years[i] = float64(i) / float64(periodsPerYear)
	}
	return s.newton(amounts, years, s.InitialGuess, false)
}

func npv(amounts, years []float64, rate float64) float64 {
	total := 0.0
	for i, a := range amounts {
		if rate <= -1 && years[i] > 0 {
			return math.Inf(1)
		}
		total += a / math.Pow(1+rate, years[i])
	}
	return total
}

// npvDerivative is d(NPV)/dr = Σ −tᵢ·CFᵢ / (1+r)^(tᵢ+1).
func npvDerivative(amounts, years []float64, rate float64) float64 {
	total := 0.0
	for i, a := range amounts {
		if rate <= -1 && years[i] > 0 {
			return math.Inf(1)
		}
		total -= years[i] * a / math.Pow(1+rate, years[i]+1)
	}
	return total
}

func hasSignChange(amounts []float64) bool {
	pos, neg := false, false
	for _, a := range amounts {
		if a > 0 {
			pos = true
		}
		if a < 0 {
			neg = true
		}
	}
	return pos && neg
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
