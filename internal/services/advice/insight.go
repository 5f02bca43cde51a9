package advice

import (
	"fmt"
	"time"

	"github.com/Rhymond/go-money"
	"github.com/bobmcallan/playasset/internal/common"
	"github.com/bobmcallan/playasset/internal/models"
	"github.com/shopspring/decimal"
)

// Headlines by risk level.
const (
	headlineHigh   = "Reducing concentration risk is the top priority"
	headlineMedium = "Gradual rebalancing can move the portfolio into a stable range"
	headlineLow    = "Portfolio is stable with room to grow exposure"

	headlineInsufficient = "Not enough portfolio data"
)

// BuildInsight writes the rule-based narrative for computed advice.
func BuildInsight(m models.RiskMetrics, actions []models.RebalancingAction, etfs []models.EtfRecommendation, cfg common.AdviceConfig, now time.Time) models.Insight {
	headline := headlineLow
	switch m.RiskLevel {
	case models.RiskLevelHigh:
		headline = headlineHigh
	case models.RiskLevelMedium:
		headline = headlineMedium
	}

	summary := fmt.Sprintf("Based on Sharpe %.2f, volatility %.2f%%, max drawdown %.2f%% and top weight %.2f%%.",
		m.SharpeRatio, m.AnnualVolatilityPct, m.MaxDrawdownPct, m.ConcentrationPct)

	var points []string
	if len(actions) > 0 {
		top := actions[0]
		verb := "reduce weight"
		if top.Action == models.SideBuy {
			verb = "increase weight"
		}
		points = append(points, fmt.Sprintf("Priority action: %s %s (suggested amount about %s)",
			displayName(top), verb, formatMoney(top.SuggestedAmount, cfg.Currency)))
	}
	if len(etfs) > 0 {
		top := etfs[0]
		points = append(points, fmt.Sprintf("ETF alternative: %s %s (match %d, suggested %.1f%%)",
			top.Symbol, top.Name, top.MatchScore, top.SuggestedWeightPct))
	}
	if m.DiversificationScore < cfg.DiversificationNoteThreshold {
		points = append(points, "Diversification score is low; widen sector and region exposure first.")
	} else {
		points = append(points, "Diversification is healthy; fine-tune toward target returns.")
	}

	cautions := []string{"These suggestions are rule-based indicators; investment decisions and outcomes remain with the user."}
	if m.MaxDrawdownPct >= cfg.DrawdownCautionPct {
		cautions = append(cautions, "Recent max drawdown is large; set stop-loss and cash-weight rules in advance.")
	} else {
		cautions = append(cautions, "Drawdown is manageable, but short-term volatility may return.")
	}

	return models.Insight{
		Headline:    headline,
		Summary:     summary,
		KeyPoints:   points,
		Cautions:    cautions,
		GeneratedAt: now,
		Model:       cfg.Model,
	}
}

// EmptyInsight is the narrative for a user with no positions.
func EmptyInsight(cfg common.AdviceConfig, now time.Time) models.Insight {
	return models.Insight{
		Headline:    headlineInsufficient,
		Summary:     "No holdings are recorded, so no quantitative diagnosis is possible.",
		KeyPoints:   []string{"Record trades to see Sharpe, risk and ETF suggestions."},
		Cautions:    []string{"Estimates for periods without data are unreliable."},
		GeneratedAt: now,
		Model:       cfg.Model,
	}
}

func displayName(a models.RebalancingAction) string {
	if a.Name != "" {
		return a.Name
	}
	if a.Symbol != "" {
		return a.Symbol
	}
	return a.InstrumentID
}

// formatMoney renders amount in currency's display format. Unknown
// currencies fall back to a plain two-decimal amount with the code.
func formatMoney(amount float64, currency string) string {
	cur := money.GetCurrency(currency)
	if cur == nil {
		return fmt.Sprintf("%.2f %s", amount, currency)
	}
	minor := decimal.NewFromFloat(amount).Shift(int32(cur.Fraction)).Round(0)
	return money.New(minor.IntPart(), cur.Code).Display()
}
