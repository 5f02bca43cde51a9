package common

import (
	"errors"
	"fmt"
	"sync/atomic"
)

// AnalyticsConfig holds every tunable threshold used by the analytics engine.
// Each component is constructed with its own section.
type AnalyticsConfig struct {
	Risk       RiskConfig       `toml:"risk"`
	Rebalance  RebalanceConfig  `toml:"rebalance"`
	Etf        EtfConfig        `toml:"etf"`
	Simulation SimulationConfig `toml:"simulation"`
	Advice     AdviceConfig     `toml:"advice"`
}

// RiskThresholds is one level of the risk classification. A portfolio
// reaches the level when any single measure meets its threshold.
type RiskThresholds struct {
	VolatilityPct    float64 `toml:"volatility_pct"`
	DrawdownPct      float64 `toml:"drawdown_pct"`
	ConcentrationPct float64 `toml:"concentration_pct"`
}

// RiskConfig configures the risk metrics calculator.
type RiskConfig struct {
	TradingDaysPerYear int     `toml:"trading_days_per_year"`
	RiskFreeRatePct    float64 `toml:"risk_free_rate_pct"`
	LookbackDays       int     `toml:"lookback_days"`

	// Volatility fallback when fewer than two daily returns exist:
	// max(MinVolatilityPct, stddev of position pnl rates floored at PnLSpreadFloorPct),
	// or SinglePositionVolatilityPct when only one position is held.
	MinVolatilityPct            float64 `toml:"min_volatility_pct"`
	PnLSpreadFloorPct           float64 `toml:"pnl_spread_floor_pct"`
	SinglePositionVolatilityPct float64 `toml:"single_position_volatility_pct"`

	// Expected return fallback divides the weighted pnl rate by this factor.
	FallbackReturnDampening float64 `toml:"fallback_return_dampening"`

	DrawdownFallbackFloorPct    float64 `toml:"drawdown_fallback_floor_pct"`
	DrawdownConcentrationFactor float64 `toml:"drawdown_concentration_factor"`

	SharpeMinVolatilityPct float64 `toml:"sharpe_min_volatility_pct"`

	High   RiskThresholds `toml:"high"`
	Medium RiskThresholds `toml:"medium"`
}

// TierBand holds the target weight band and gap threshold for a risk tier range.
type TierBand struct {
	MinWeightPct    float64 `toml:"min_weight_pct"`
	MaxWeightPct    float64 `toml:"max_weight_pct"`
	GapThresholdPct float64 `toml:"gap_threshold_pct"`
}

// RebalanceConfig configures the rebalancing action generator.
type RebalanceConfig struct {
	LowTierMax int      `toml:"low_tier_max"` // tiers <= this use Low
	MidTierMax int      `toml:"mid_tier_max"` // tiers <= this use Mid, above use High
	Low        TierBand `toml:"low"`
	Mid        TierBand `toml:"mid"`
	High       TierBand `toml:"high"`

	GapPriorityWeight float64 `toml:"gap_priority_weight"`
	BuyPriorityBase   float64 `toml:"buy_priority_base"`
	SellPriorityBase  float64 `toml:"sell_priority_base"`
	MaxPriority       int     `toml:"max_priority"`
	MaxActions        int     `toml:"max_actions"`
}

// BandFor returns the tier band that applies to tier.
func (c RebalanceConfig) BandFor(tier int) TierBand {
	switch {
	case tier <= c.LowTierMax:
		return c.Low
	case tier <= c.MidTierMax:
		return c.Mid
	default:
		return c.High
	}
}

// BucketTable maps ETF risk buckets to a number.
type BucketTable struct {
	Low  float64 `toml:"low"`
	Mid  float64 `toml:"mid"`
	High float64 `toml:"high"`
}

// EtfConfig configures the ETF recommendation scorer.
type EtfConfig struct {
	BaseScore int `toml:"base_score"`
	MinScore  int `toml:"min_score"`
	MaxScore  int `toml:"max_score"`

	DiversificationConcentrationPct float64  `toml:"diversification_concentration_pct"`
	DiversificationBonus            int      `toml:"diversification_bonus"`
	DiversificationRoles            []string `toml:"diversification_roles"` // case-insensitive substrings
	PreferredMarkets                []string `toml:"preferred_markets"`     // case-insensitive words in the focus theme
	ThemeBonus                      int      `toml:"theme_bonus"`

	// Score adjustment by portfolio risk level and ETF bucket.
	ScoreHighRisk   BucketTable `toml:"score_high_risk"`
	ScoreMediumRisk BucketTable `toml:"score_medium_risk"`
	ScoreLowRisk    BucketTable `toml:"score_low_risk"`

	TierExactBonus      int `toml:"tier_exact_bonus"`
	TierAdjacentBonus   int `toml:"tier_adjacent_bonus"`
	TierMismatchPenalty int `toml:"tier_mismatch_penalty"`
	LowTierMax          int `toml:"low_tier_max"`
	MidTierMax          int `toml:"mid_tier_max"`

	// Base suggested weight by portfolio risk level and ETF bucket.
	WeightHighRisk   BucketTable `toml:"weight_high_risk"`
	WeightMediumRisk BucketTable `toml:"weight_medium_risk"`
	WeightLowRisk    BucketTable `toml:"weight_low_risk"`

	ConcentrationWeightPct float64 `toml:"concentration_weight_pct"`
	WeightAdjustmentPct    float64 `toml:"weight_adjustment_pct"`
	MinWeightPct           float64 `toml:"min_weight_pct"`
	MaxWeightPct           float64 `toml:"max_weight_pct"`

	MaxRecommendations int `toml:"max_recommendations"`
}

// SimulationConfig configures the backtest builder.
type SimulationConfig struct {
	AnnualizeMinDays      int `toml:"annualize_min_days"`
	DefaultLookbackMonths int `toml:"default_lookback_months"`
	BatchMinLookbackDays  int `toml:"batch_min_lookback_days"`

	// PricePadDays is how far before the window start closes are loaded so
	// the first day can be forward-filled.
	PricePadDays int `toml:"price_pad_days"`
}

// AdviceConfig configures advice orchestration and the insight text.
type AdviceConfig struct {
	DefaultRiskTier              int     `toml:"default_risk_tier"`
	Currency                     string  `toml:"currency"`
	DiversificationNoteThreshold float64 `toml:"diversification_note_threshold"`
	DrawdownCautionPct           float64 `toml:"drawdown_caution_pct"`
	Model                        string  `toml:"model"`
}

// DefaultAnalyticsConfig returns the default thresholds.
func DefaultAnalyticsConfig() AnalyticsConfig {
	return AnalyticsConfig{
		Risk: RiskConfig{
			TradingDaysPerYear:          252,
			RiskFreeRatePct:             3.0,
			LookbackDays:                180,
			MinVolatilityPct:            9.0,
			PnLSpreadFloorPct:           8.0,
			SinglePositionVolatilityPct: 12.0,
			FallbackReturnDampening:     20.0,
			DrawdownFallbackFloorPct:    4.0,
			DrawdownConcentrationFactor: 0.25,
			SharpeMinVolatilityPct:      0.001,
			High:                        RiskThresholds{VolatilityPct: 35, DrawdownPct: 18, ConcentrationPct: 45},
			Medium:                      RiskThresholds{VolatilityPct: 20, DrawdownPct: 10, ConcentrationPct: 30},
		},
		Rebalance: RebalanceConfig{
			LowTierMax:        2,
			MidTierMax:        4,
			Low:               TierBand{MinWeightPct: 5, MaxWeightPct: 20, GapThresholdPct: 2.0},
			Mid:               TierBand{MinWeightPct: 10, MaxWeightPct: 30, GapThresholdPct: 2.5},
			High:              TierBand{MinWeightPct: 10, MaxWeightPct: 40, GapThresholdPct: 3.5},
			GapPriorityWeight: 3,
			BuyPriorityBase:   5,
			SellPriorityBase:  15,
			MaxPriority:       99,
			MaxActions:        6,
		},
		Etf: EtfConfig{
			BaseScore:                       50,
			MinScore:                        45,
			MaxScore:                        99,
			DiversificationConcentrationPct: 40,
			DiversificationBonus:            16,
			DiversificationRoles:            []string{"diversif", "mitigat", "hedge"},
			PreferredMarkets:                []string{"US"},
			ThemeBonus:                      6,
			ScoreHighRisk:                   BucketTable{Low: 18, Mid: 9, High: -5},
			ScoreMediumRisk:                 BucketTable{Low: 10, Mid: 12, High: 4},
			ScoreLowRisk:                    BucketTable{Low: 2, Mid: 9, High: 14},
			TierExactBonus:                  8,
			TierAdjacentBonus:               2,
			TierMismatchPenalty:             -4,
			LowTierMax:                      2,
			MidTierMax:                      4,
			WeightHighRisk:                  BucketTable{Low: 14, Mid: 9, High: 5},
			WeightMediumRisk:                BucketTable{Low: 10, Mid: 11, High: 7},
			WeightLowRisk:                   BucketTable{Low: 7, Mid: 9, High: 11},
			ConcentrationWeightPct:          45,
			WeightAdjustmentPct:             2,
			MinWeightPct:                    4,
			MaxWeightPct:                    18,
			MaxRecommendations:              3,
		},
		Simulation: SimulationConfig{
			AnnualizeMinDays:      90,
			DefaultLookbackMonths: 6,
			BatchMinLookbackDays:  30,
			PricePadDays:          30,
		},
		Advice: AdviceConfig{
			DefaultRiskTier:              3,
			Currency:                     "USD",
			DiversificationNoteThreshold: 55,
			DrawdownCautionPct:           12,
			Model:                        "advisor-rule-v1",
		},
	}
}

// Validate rejects threshold combinations the engine cannot honour.
func (c AnalyticsConfig) Validate() error {
	var errs []error
	if c.Risk.TradingDaysPerYear <= 0 {
		errs = append(errs, fmt.Errorf("risk.trading_days_per_year must be positive"))
	}
	if c.Risk.LookbackDays <= 0 {
		errs = append(errs, fmt.Errorf("risk.lookback_days must be positive"))
	}
	if c.Risk.FallbackReturnDampening <= 0 {
		errs = append(errs, fmt.Errorf("risk.fallback_return_dampening must be positive"))
	}
	m, h := c.Risk.Medium, c.Risk.High
	if m.VolatilityPct > h.VolatilityPct || m.DrawdownPct > h.DrawdownPct || m.ConcentrationPct > h.ConcentrationPct {
		errs = append(errs, fmt.Errorf("risk.medium thresholds must not exceed risk.high"))
	}
	if c.Rebalance.LowTierMax > c.Rebalance.MidTierMax {
		errs = append(errs, fmt.Errorf("rebalance.low_tier_max must not exceed rebalance.mid_tier_max"))
	}
	for name, b := range map[string]TierBand{"low": c.Rebalance.Low, "mid": c.Rebalance.Mid, "high": c.Rebalance.High} {
		if b.MinWeightPct > b.MaxWeightPct {
			errs = append(errs, fmt.Errorf("rebalance.%s min_weight_pct exceeds max_weight_pct", name))
		}
		if b.GapThresholdPct < 0 {
			errs = append(errs, fmt.Errorf("rebalance.%s gap_threshold_pct must not be negative", name))
		}
	}
	if c.Rebalance.MaxActions < 0 {
		errs = append(errs, fmt.Errorf("rebalance.max_actions must not be negative"))
	}
	if c.Etf.MinScore > c.Etf.MaxScore {
		errs = append(errs, fmt.Errorf("etf.min_score exceeds etf.max_score"))
	}
	if c.Etf.MinWeightPct > c.Etf.MaxWeightPct {
		errs = append(errs, fmt.Errorf("etf.min_weight_pct exceeds etf.max_weight_pct"))
	}
	if c.Etf.LowTierMax > c.Etf.MidTierMax {
		errs = append(errs, fmt.Errorf("etf.low_tier_max must not exceed etf.mid_tier_max"))
	}
	if c.Etf.MaxRecommendations < 0 {
		errs = append(errs, fmt.Errorf("etf.max_recommendations must not be negative"))
	}
	if c.Simulation.AnnualizeMinDays < 0 {
		errs = append(errs, fmt.Errorf("simulation.annualize_min_days must not be negative"))
	}
	if c.Advice.DefaultRiskTier < 1 || c.Advice.DefaultRiskTier > 10 {
		errs = append(errs, fmt.Errorf("advice.default_risk_tier must be between 1 and 10"))
	}
	return errors.Join(errs...)
}

// RuntimeAnalytics holds the active analytics configuration. Readers take a
// copy per request; a reload swaps the whole struct.
type RuntimeAnalytics struct {
	current atomic.Pointer[AnalyticsConfig]
}

// NewRuntimeAnalytics creates a holder seeded with cfg.
func NewRuntimeAnalytics(cfg AnalyticsConfig) *RuntimeAnalytics {
	r := &RuntimeAnalytics{}
	r.current.Store(&cfg)
	return r
}

// Load returns the active configuration.
func (r *RuntimeAnalytics) Load() AnalyticsConfig {
	return *r.current.Load()
}

// Store validates cfg and makes it active.
func (r *RuntimeAnalytics) Store(cfg AnalyticsConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	r.current.Store(&cfg)
	return nil
}
