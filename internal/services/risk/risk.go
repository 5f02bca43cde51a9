// Package risk derives concentration, diversification, return and
// volatility metrics from valued positions and a daily value history.
package risk

import (
	"math"

	"github.com/bobmcallan/playasset/internal/common"
	"github.com/bobmcallan/playasset/internal/models"
	"github.com/shopspring/decimal"
)

// Calculator computes RiskMetrics with a fixed set of thresholds.
// It holds no mutable state and is safe for concurrent use.
type Calculator struct {
	cfg common.RiskConfig
}

// NewCalculator creates a calculator for cfg.
func NewCalculator(cfg common.RiskConfig) *Calculator {
	return &Calculator{cfg: cfg}
}

// Compute derives the full metric set. With no positions the result is
// EmptyRiskMetrics, never an error.
func (c *Calculator) Compute(positions []models.PositionSnapshot, history []models.DailyValuePoint, total decimal.Decimal) models.RiskMetrics {
	if len(positions) == 0 {
		return models.EmptyRiskMetrics()
	}

	totalValue := total.InexactFloat64()
	weights := Weights(positions, totalValue)
	concentration := Concentration(weights)
	diversification := DiversificationScore(weights)

	values := make([]float64, len(history))
	for i, p := range history {
		values[i] = p.Value.InexactFloat64()
	}
	returns := DailyReturns(values)
	days := float64(c.cfg.TradingDaysPerYear)

	var meanDaily float64
	if len(returns) >= 2 {
		meanDaily = Mean(returns)
	} else {
		meanDaily = c.fallbackDailyReturn(positions, weights)
	}
	expected := meanDaily * days * 100

	var volatility float64
	if len(returns) >= 2 {
		volatility = SampleStdDev(returns) * math.Sqrt(days) * 100
	} else {
		volatility = math.Max(c.cfg.MinVolatilityPct, c.pnlSpread(positions))
	}

	drawdown := c.maxDrawdown(values, concentration)

	sharpe := 0.0
	if volatility > c.cfg.SharpeMinVolatilityPct {
		sharpe = (expected - c.cfg.RiskFreeRatePct) / volatility
	}

	return models.RiskMetrics{
		TotalValue:              Round(totalValue, 2),
		ExpectedAnnualReturnPct: Round(expected, 2),
		AnnualVolatilityPct:     Round(volatility, 2),
		SharpeRatio:             Round(sharpe, 2),
		MaxDrawdownPct:          Round(drawdown, 2),
		ConcentrationPct:        Round(concentration, 2),
		DiversificationScore:    Round(diversification, 2),
		RiskLevel:               c.Classify(volatility, drawdown, concentration),
		HistoryPoints:           len(history),
	}
}

// Classify maps the three headline measures to a risk level. Any single
// measure reaching a level's threshold is enough.
func (c *Calculator) Classify(volatilityPct, drawdownPct, concentrationPct float64) models.RiskLevel {
	reaches := func(t common.RiskThresholds) bool {
		return volatilityPct >= t.VolatilityPct || drawdownPct >= t.DrawdownPct || concentrationPct >= t.ConcentrationPct
	}
	switch {
	case reaches(c.cfg.High):
		return models.RiskLevelHigh
	case reaches(c.cfg.Medium):
		return models.RiskLevelMedium
	default:
		return models.RiskLevelLow
	}
}

// fallbackDailyReturn is the valuation-weighted position pnl rate, damped,
// used as a daily-return proxy when history is too short.
func (c *Calculator) fallbackDailyReturn(positions []models.PositionSnapshot, weights []float64) float64 {
	if len(weights) == 0 {
		return 0
	}
	weighted := 0.0
	for i, p := range positions {
		weighted += weights[i] * (p.PnLRate.InexactFloat64() / 100)
	}
	return weighted / c.cfg.FallbackReturnDampening
}

func (c *Calculator) pnlSpread(positions []models.PositionSnapshot) float64 {
	if len(positions) < 2 {
		return c.cfg.SinglePositionVolatilityPct
	}
	rates := make([]float64, len(positions))
	for i, p := range positions {
		rates[i] = p.PnLRate.InexactFloat64()
	}
	return math.Max(c.cfg.PnLSpreadFloorPct, SampleStdDev(rates))
}

func (c *Calculator) maxDrawdown(values []float64, concentrationPct float64) float64 {
	if len(values) < 2 {
		return math.Max(c.cfg.DrawdownFallbackFloorPct, concentrationPct*c.cfg.DrawdownConcentrationFactor)
	}
	return MaxDrawdown(values)
}

// Weights returns each position's share of total. Nil when total <= 0.
func Weights(positions []models.PositionSnapshot, total float64) []float64 {
	if total <= 0 {
		return nil
	}
	w := make([]float64, len(positions))
	for i, p := range positions {
		w[i] = p.Valuation.InexactFloat64() / total
	}
	return w
}

// Concentration is the largest weight as a percentage.
func Concentration(weights []float64) float64 {
	maxWeight := 0.0
	for _, w := range weights {
		maxWeight = math.Max(maxWeight, w)
	}
	return maxWeight * 100
}

// DiversificationScore inverts the normalised Herfindahl index into 0..100.
// A single position scores 0; equal weights score 100.
func DiversificationScore(weights []float64) float64 {
	n := len(weights)
	if n <= 1 {
		return 0
	}
	hhi := 0.0
	for _, w := range weights {
		hhi += w * w
	}
	minHHI := 1 / float64(n)
	normalized := (hhi - minHHI) / (1 - minHHI)
	return clamp((1-normalized)*100, 0, 100)
}

// DailyReturns returns simple returns between consecutive values, skipping
// pairs whose previous value is not positive.
func DailyReturns(values []float64) []float64 {
	var out []float64
	for i := 1; i < len(values); i++ {
		prev := values[i-1]
		if prev <= 0 {
			continue
		}
		out = append(out, (values[i]-prev)/prev)
	}
	return out
}

// MaxDrawdown is the largest peak-to-trough decline, in percent. Non-positive
// values are ignored.
func MaxDrawdown(values []float64) float64 {
	peak, worst := 0.0, 0.0
	for _, v := range values {
		if v <= 0 {
			continue
		}
		peak = math.Max(peak, v)
		worst = math.Max(worst, (peak-v)/peak)
	}
	return worst * 100
}

// Mean of values; 0 for none.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// SampleStdDev is the n-1 standard deviation; 0 for fewer than two values.
func SampleStdDev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	mean := Mean(values)
	sum := 0.0
	for _, v := range values {
		sum += (v - mean) * (v - mean)
	}
	return math.Sqrt(math.Max(sum/float64(len(values)-1), 0))
}

// Round rounds half away from zero to places. Non-finite input rounds to 0.
func Round(v float64, places int32) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
