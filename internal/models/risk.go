package models

// RiskLevel is the discrete risk classification of a portfolio.
type RiskLevel string

const (
	RiskLevelLow              RiskLevel = "LOW"
	RiskLevelMedium           RiskLevel = "MEDIUM"
	RiskLevelHigh             RiskLevel = "HIGH"
	RiskLevelInsufficientData RiskLevel = "INSUFFICIENT_DATA"
)

// RiskMetrics holds the derived risk and diversification figures for a
// portfolio. All percentages are rounded to two decimals.
type RiskMetrics struct {
	TotalValue              float64   `json:"total_value"`
	ExpectedAnnualReturnPct float64   `json:"expected_annual_return_pct"`
	AnnualVolatilityPct     float64   `json:"annual_volatility_pct"`
	SharpeRatio             float64   `json:"sharpe_ratio"`
	MaxDrawdownPct          float64   `json:"max_drawdown_pct"`
	ConcentrationPct        float64   `json:"concentration_pct"`
	DiversificationScore    float64   `json:"diversification_score"`
	RiskLevel               RiskLevel `json:"risk_level"`
	// HistoryPoints is the number of daily values used; zero means fallbacks applied.
	HistoryPoints int `json:"history_points"`
}

// EmptyRiskMetrics is the well-formed result for a portfolio with no positions.
func EmptyRiskMetrics() RiskMetrics {
	return RiskMetrics{RiskLevel: RiskLevelInsufficientData}
}
