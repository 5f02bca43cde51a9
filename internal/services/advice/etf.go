package advice

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/bobmcallan/playasset/internal/common"
	"github.com/bobmcallan/playasset/internal/models"
	"github.com/bobmcallan/playasset/internal/services/risk"
)

// EtfScorer ranks catalog ETFs for a portfolio's risk level, concentration
// and the user's risk tier.
type EtfScorer struct {
	cfg common.EtfConfig
}

// NewEtfScorer creates a scorer for cfg.
func NewEtfScorer(cfg common.EtfConfig) *EtfScorer {
	return &EtfScorer{cfg: cfg}
}

// Recommend scores every row and returns the best few, cheapest first on ties.
func (s *EtfScorer) Recommend(catalog []models.EtfCatalogRow, level models.RiskLevel, concentrationPct float64, tier int) []models.EtfRecommendation {
	recs := make([]models.EtfRecommendation, 0, len(catalog))
	for _, etf := range catalog {
		recs = append(recs, models.EtfRecommendation{
			EtfID:              etf.ID,
			Symbol:             etf.Symbol,
			Name:               etf.Name,
			Market:             etf.Market,
			FocusTheme:         etf.FocusTheme,
			RiskBucket:         etf.RiskBucket,
			ExpenseRatioPct:    risk.Round(etf.ExpenseRatioPct, 4),
			SuggestedWeightPct: risk.Round(s.Weight(etf.RiskBucket, level, concentrationPct, tier), 1),
			MatchScore:         s.Score(etf, level, concentrationPct, tier),
			Reason:             fmt.Sprintf("%s purpose, expense ratio %.4f%%", etf.DiversificationRole, etf.ExpenseRatioPct),
		})
	}

	sort.SliceStable(recs, func(i, j int) bool {
		if recs[i].MatchScore != recs[j].MatchScore {
			return recs[i].MatchScore > recs[j].MatchScore
		}
		if recs[i].ExpenseRatioPct != recs[j].ExpenseRatioPct {
			return recs[i].ExpenseRatioPct < recs[j].ExpenseRatioPct
		}
		return recs[i].Symbol < recs[j].Symbol
	})

	if len(recs) > s.cfg.MaxRecommendations {
		recs = recs[:s.cfg.MaxRecommendations]
	}
	return recs
}

// Score is the clamped match score for one ETF.
func (s *EtfScorer) Score(etf models.EtfCatalogRow, level models.RiskLevel, concentrationPct float64, tier int) int {
	score := s.cfg.BaseScore
	if concentrationPct >= s.cfg.DiversificationConcentrationPct && containsAny(etf.DiversificationRole, s.cfg.DiversificationRoles) {
		score += s.cfg.DiversificationBonus
	}
	if hasWord(etf.FocusTheme, s.cfg.PreferredMarkets) {
		score += s.cfg.ThemeBonus
	}
	score += int(math.Round(lookup(s.scoreTable(level), etf.RiskBucket)))
	score += s.tierBonus(etf.RiskBucket, tier)
	return max(s.cfg.MinScore, min(s.cfg.MaxScore, score))
}

// Weight is the suggested allocation for an ETF in bucket, in percent.
func (s *EtfScorer) Weight(bucket models.RiskBucket, level models.RiskLevel, concentrationPct float64, tier int) float64 {
	w := lookup(s.weightTable(level), bucket)
	if concentrationPct >= s.cfg.ConcentrationWeightPct && bucket == models.RiskBucketLow {
		w += s.cfg.WeightAdjustmentPct
	}
	switch {
	case tier <= s.cfg.LowTierMax && bucket == models.RiskBucketLow:
		w += s.cfg.WeightAdjustmentPct
	case tier > s.cfg.MidTierMax && bucket == models.RiskBucketHigh:
		w += s.cfg.WeightAdjustmentPct
	}
	return math.Max(s.cfg.MinWeightPct, math.Min(s.cfg.MaxWeightPct, w))
}

// PreferredBucket is the bucket that suits a risk tier.
func (s *EtfScorer) PreferredBucket(tier int) models.RiskBucket {
	switch {
	case tier <= s.cfg.LowTierMax:
		return models.RiskBucketLow
	case tier <= s.cfg.MidTierMax:
		return models.RiskBucketMid
	default:
		return models.RiskBucketHigh
	}
}

func (s *EtfScorer) tierBonus(bucket models.RiskBucket, tier int) int {
	preferred := s.PreferredBucket(tier)
	switch {
	case bucket == preferred:
		return s.cfg.TierExactBonus
	case preferred == models.RiskBucketMid && bucket == models.RiskBucketHigh:
		return s.cfg.TierAdjacentBonus
	default:
		return s.cfg.TierMismatchPenalty
	}
}

func (s *EtfScorer) scoreTable(level models.RiskLevel) common.BucketTable {
	switch level {
	case models.RiskLevelHigh:
		return s.cfg.ScoreHighRisk
	case models.RiskLevelMedium:
		return s.cfg.ScoreMediumRisk
	default:
		return s.cfg.ScoreLowRisk
	}
}

func (s *EtfScorer) weightTable(level models.RiskLevel) common.BucketTable {
	switch level {
	case models.RiskLevelHigh:
		return s.cfg.WeightHighRisk
	case models.RiskLevelMedium:
		return s.cfg.WeightMediumRisk
	default:
		return s.cfg.WeightLowRisk
	}
}

// lookup treats any bucket other than LOW or MID as HIGH.
func lookup(t common.BucketTable, bucket models.RiskBucket) float64 {
	switch bucket {
	case models.RiskBucketLow:
		return t.Low
	case models.RiskBucketMid:
		return t.Mid
	default:
		return t.High
	}
}

func containsAny(s string, subs []string) bool {
	s = strings.ToLower(s)
	for _, sub := range subs {
		if sub != "" && strings.Contains(s, strings.ToLower(sub)) {
			return true
		}
	}
	return false
}

// hasWord reports whether any of words appears as a whole word in s.
func hasWord(s string, words []string) bool {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, f := range fields {
		for _, w := range words {
			if strings.EqualFold(f, w) {
				return true
			}
		}
	}
	return false
}
