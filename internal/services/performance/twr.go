package performance

import (
	"math"
	"sort"
	"time"

	"github.com/bobmcallan/vire-recon/internal/models"
)

// TWRSolver computes time-weighted returns. Flows passed to it are
// contributions into the portfolio: positive is money in.
type TWRSolver struct{}

// NewTWRSolver creates a time-weighted return solver
func NewTWRSolver() *TWRSolver {
	return &TWRSolver{}
}

// SubPeriod is one Modified Dietz interval between external flows.
type SubPeriod struct {
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	StartValue float64   `json:"start_value"`
	EndValue   float64   `json:"end_value"`
	CashFlow   float64   `json:"cash_flow"`
	Return     float64   `json:"return"`
}

// TimeWeighted splits the valuations at every day carrying a flow, computes
// each sub-period by Modified Dietz and compounds them. Values are measured
// after that day's flow. ok is false with fewer than two valuations or when
// any sub-period has a zero denominator.
func (s *TWRSolver) TimeWeighted(daily []models.DailyValue) (float64, bool) {
	periods, ok := s.SubPeriods(daily)
	if !ok {
		return 0, false
	}
	if len(periods) == 1 {
		return periods[0].Return, true
	}
	returns := make([]float64, len(periods))
	for i, p := range periods {
		returns[i] = p.Return
	}
	r := Compound(returns)
	if !isFinite(r) {
		return 0, false
	}
	return r, true
}

// SubPeriods returns the sub-period breakdown used by TimeWeighted.
func (s *TWRSolver) SubPeriods(daily []models.DailyValue) ([]SubPeriod, bool) {
	if len(daily) < 2 {
		return nil, false
	}
	sorted := sortDaily(daily)

	var periods []SubPeriod
	start := 0
	for i := 1; i < len(sorted); i++ {
		last := i == len(sorted)-1
		if sorted[i].CashFlow == 0 && !last {
			continue
		}
		p, ok := subPeriod(sorted[start], sorted[i], sorted[i].CashFlow)
		if !ok {
			return nil, false
		}
		periods = append(periods, p)
		start = i
	}
	return periods, true
}

// subPeriod books the flow on the end date, so none of the interval remains
// after it and its weight is zero. Same-day intervals use a weight of 0.5.
// ok is false when the denominator is zero.
func subPeriod(start, end models.DailyValue, cf float64) (SubPeriod, bool) {
	p := SubPeriod{
		Start:      start.Date,
		End:        end.Date,
		StartValue: start.Value,
		EndValue:   end.Value,
		CashFlow:   cf,
	}
	weight := 0.0
	if calendarDays(start.Date, end.Date) == 0 {
		weight = 0.5
	}
	denom := start.Value + weight*cf
	if denom == 0 {
		return p, false
	}
	p.Return = (end.Value - start.Value - cf) / denom
	return p, isFinite(p.Return)
}

// ModifiedDietz approximates the return over [start, end] from the endpoint
// values, weighting each contribution by the fraction of the period
// remaining after it.
func (s *TWRSolver) ModifiedDietz(startValue, endValue float64, start, end time.Time, flows []models.CashFlow) (float64, bool) {
	total := calendarDays(start, end)
	if total <= 0 {
		return 0, false
	}
	if len(flows) == 0 {
		if startValue == 0 {
			return 0, false
		}
		return (endValue - startValue) / startValue, true
	}

	netFlow, weighted := 0.0, 0.0
	for _, f := range flows {
		netFlow += f.Amount
		weighted += f.Amount * float64(calendarDays(f.Date, end)) / float64(total)
	}
	denom := startValue + weighted
	if denom == 0 {
		return 0, false
	}
	r := (endValue - startValue - netFlow) / denom
	if !isFinite(r) {
		return 0, false
	}
	return r, true
}

// DailyReturn is the flow-adjusted return for one valuation day.
type DailyReturn struct {
	Date   time.Time `json:"date"`
	Return float64   `json:"return"`
}

// DailyReturns returns day-on-day returns, adding each day's flow to the
// previous value before comparing.
func (s *TWRSolver) DailyReturns(daily []models.DailyValue) []DailyReturn {
	if len(daily) < 2 {
		return nil
	}
	sorted := sortDaily(daily)
	out := make([]DailyReturn, 0, len(sorted)-1)
	for i := 1; i < len(sorted); i++ {
		prev := sorted[i-1].Value + sorted[i].CashFlow
		r := 0.0
		if prev != 0 {
			r = (sorted[i].Value - prev) / prev
		}
		out = append(out, DailyReturn{Date: sorted[i].Date, Return: r})
	}
	return out
}

// Compound links period returns as Π(1+Rᵢ) − 1.
func Compound(returns []float64) float64 {
	growth := 1.0
	for _, r := range returns {
		growth *= 1 + r
	}
	return growth - 1
}

// Annualize converts a cumulative return over days to an annual rate. Guarded
// inputs (no days, a non-positive base or a non-finite result) return zero.
func Annualize(r float64, days int) float64 {
	if days <= 0 || !isFinite(r) {
		return 0
	}
	base := 1 + r
	if base <= 0 {
		return 0
	}
	out := math.Pow(base, daysPerYear/float64(days)) - 1
	if !isFinite(out) {
		return 0
	}
	return out
}

func sortDaily(daily []models.DailyValue) []models.DailyValue {
	sorted := make([]models.DailyValue, len(daily))
	copy(sorted, daily)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.Before(sorted[j].Date)
	})
	return sorted
}

// calendarDays counts whole calendar days between the dates of from and to.
func calendarDays(from, to time.Time) int {
	f := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	t := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, time.UTC)
	return int(math.Round(t.Sub(f).Hours() / 24))
}
