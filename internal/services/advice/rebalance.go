package advice

import (
	"fmt"
	"math"
	"sort"

	"github.com/bobmcallan/playasset/internal/common"
	"github.com/bobmcallan/playasset/internal/models"
	"github.com/bobmcallan/playasset/internal/services/risk"
	"github.com/shopspring/decimal"
)

// Rebalancer suggests trades that move positions toward an equal-weight
// target clamped to the tier's band.
type Rebalancer struct {
	cfg common.RebalanceConfig
}

// NewRebalancer creates a rebalancer for cfg.
func NewRebalancer(cfg common.RebalanceConfig) *Rebalancer {
	return &Rebalancer{cfg: cfg}
}

// Actions returns ranked buy/sell suggestions. Empty when there is nothing to value.
func (r *Rebalancer) Actions(positions []models.PositionSnapshot, total decimal.Decimal, tier int) []models.RebalancingAction {
	totalValue := total.InexactFloat64()
	if totalValue <= 0 || len(positions) == 0 {
		return []models.RebalancingAction{}
	}

	band := r.cfg.BandFor(tier)
	target := math.Max(band.MinWeightPct, math.Min(band.MaxWeightPct, 100/float64(len(positions))))

	type candidate struct {
		action models.RebalancingAction
		absGap float64
	}
	var candidates []candidate
	for _, p := range positions {
		current := p.Valuation.InexactFloat64() / totalValue * 100
		gap := target - current
		absGap := math.Abs(gap)
		if absGap < band.GapThresholdPct {
			continue
		}

		side := models.SideSell
		base := r.cfg.SellPriorityBase
		reason := fmt.Sprintf("current weight %.1f%% above target %.1f%%, trim partially", current, target)
		if gap > 0 {
			side = models.SideBuy
			base = r.cfg.BuyPriorityBase
			reason = fmt.Sprintf("current weight %.1f%% below target %.1f%%, staged buy", current, target)
		}
		priority := int(risk.Round(absGap*r.cfg.GapPriorityWeight+base, 0))
		if priority > r.cfg.MaxPriority {
			priority = r.cfg.MaxPriority
		}

		candidates = append(candidates, candidate{
			absGap: absGap,
			action: models.RebalancingAction{
				InstrumentID:     p.InstrumentID,
				Symbol:           p.Symbol,
				Name:             p.Name,
				Action:           side,
				CurrentWeightPct: risk.Round(current, 2),
				TargetWeightPct:  risk.Round(target, 2),
				GapPct:           risk.Round(gap, 2),
				SuggestedAmount:  risk.Round(totalValue*absGap/100, 0),
				Priority:         priority,
				Reason:           reason,
			},
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].action.Priority != candidates[j].action.Priority {
			return candidates[i].action.Priority > candidates[j].action.Priority
		}
		return candidates[i].absGap > candidates[j].absGap
	})

	limit := min(len(candidates), r.cfg.MaxActions)
	out := make([]models.RebalancingAction, limit)
	for i := range limit {
		out[i] = candidates[i].action
	}
	return out
}
