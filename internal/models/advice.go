package models

import "time"

// RiskBucket is the volatility class of an ETF in the advisor catalog.
type RiskBucket string

const (
	RiskBucketLow  RiskBucket = "LOW"
	RiskBucketMid  RiskBucket = "MID"
	RiskBucketHigh RiskBucket = "HIGH"
)

// EtfCatalogRow is one ETF the advisor may recommend.
type EtfCatalogRow struct {
	ID                  string     `json:"id"`
	Symbol              string     `json:"symbol"`
	Name                string     `json:"name"`
	Market              string     `json:"market"`
	FocusTheme          string     `json:"focus_theme"`
	RiskBucket          RiskBucket `json:"risk_bucket"`
	DiversificationRole string     `json:"diversification_role"`
	ExpenseRatioPct     float64    `json:"expense_ratio_pct"`
	Active              bool       `json:"active"`
}

// EtfRecommendation is a scored catalog entry with a suggested allocation.
type EtfRecommendation struct {
	EtfID              string     `json:"etf_id"`
	Symbol             string     `json:"symbol"`
	Name               string     `json:"name"`
	Market             string     `json:"market"`
	FocusTheme         string     `json:"focus_theme"`
	RiskBucket         RiskBucket `json:"risk_bucket"`
	ExpenseRatioPct    float64    `json:"expense_ratio_pct"`
	SuggestedWeightPct float64    `json:"suggested_weight_pct"`
	MatchScore         int        `json:"match_score"`
	Reason             string     `json:"reason"`
}

// RebalancingAction is a suggested trade toward a target weight.
type RebalancingAction struct {
	InstrumentID     string  `json:"instrument_id"`
	Symbol           string  `json:"symbol"`
	Name             string  `json:"name"`
	Action           Side    `json:"action"`
	CurrentWeightPct float64 `json:"current_weight_pct"`
	TargetWeightPct  float64 `json:"target_weight_pct"`
	GapPct           float64 `json:"gap_pct"`
	SuggestedAmount  float64 `json:"suggested_amount"`
	Priority         int     `json:"priority"`
	Reason           string  `json:"reason"`
}

// Insight is the rule-based narrative attached to advice.
type Insight struct {
	Headline    string    `json:"headline"`
	Summary     string    `json:"summary"`
	KeyPoints   []string  `json:"key_points"`
	Cautions    []string  `json:"cautions"`
	GeneratedAt time.Time `json:"generated_at"`
	Model       string    `json:"model"`
}

// PortfolioAdvice bundles metrics, actions, ETF picks and insight for a user.
type PortfolioAdvice struct {
	UserID             string              `json:"user_id"`
	AsOf               string              `json:"as_of"`
	RiskTier           int                 `json:"risk_tier"`
	Metrics            RiskMetrics         `json:"metrics"`
	Actions            []RebalancingAction `json:"actions"`
	EtfRecommendations []EtfRecommendation `json:"etf_recommendations"`
	Insight            Insight             `json:"insight"`
}

// AdviceLogEntry records one advice computation for audit.
type AdviceLogEntry struct {
	ID               string    `json:"id"`
	UserID           string    `json:"user_id"`
	Headline         string    `json:"headline"`
	RiskLevel        RiskLevel `json:"risk_level"`
	SharpeRatio      float64   `json:"sharpe_ratio"`
	ConcentrationPct float64   `json:"concentration_pct"`
	GeneratedAt      time.Time `json:"generated_at"`
}

// RiskProfile is a user's investment profile. Tier runs 1 (conservative) to 10.
type RiskProfile struct {
	UserID    string    `json:"user_id"`
	Tier      int       `json:"tier"`
	UpdatedAt time.Time `json:"updated_at"`
}
