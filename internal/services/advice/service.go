// Package advice turns valued positions into risk metrics, rebalancing
// actions, ETF suggestions and a short narrative.
package advice

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bobmcallan/playasset/internal/cache"
	"github.com/bobmcallan/playasset/internal/common"
	"github.com/bobmcallan/playasset/internal/interfaces"
	"github.com/bobmcallan/playasset/internal/metrics"
	"github.com/bobmcallan/playasset/internal/models"
	"github.com/bobmcallan/playasset/internal/services/risk"
	"github.com/bobmcallan/playasset/internal/services/valuation"
	"github.com/google/uuid"
)

// Service implements AdviceService
type Service struct {
	valuation interfaces.ValuationService
	advisor   interfaces.AdvisorStore
	cache     interfaces.Cache
	cacheTTL  time.Duration
	analytics *common.RuntimeAnalytics
	logger    *common.Logger
	now       func() time.Time
}

// NewService creates a new advice service
func NewService(
	storage interfaces.StorageManager,
	valuationSvc interfaces.ValuationService,
	c interfaces.Cache,
	cacheTTL time.Duration,
	analytics *common.RuntimeAnalytics,
	logger *common.Logger,
) *Service {
	return &Service{
		valuation: valuationSvc,
		advisor:   storage.AdvisorStore(),
		cache:     c,
		cacheTTL:  cacheTTL,
		analytics: analytics,
		logger:    logger,
		now:       time.Now,
	}
}

// GetPortfolioAdvice computes (or returns cached) advice for a user. A user
// without positions gets well-formed empty advice.
func (s *Service) GetPortfolioAdvice(ctx context.Context, userID string) (*models.PortfolioAdvice, error) {
	log := s.logger.WithContext(ctx)
	key := cache.AdviceKey(userID)

	var cached models.PortfolioAdvice
	if hit, err := s.cache.Get(ctx, key, &cached); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Cache read failed")
	} else {
		metrics.CacheHit(cache.NameAdvice, hit)
		if hit {
			return &cached, nil
		}
	}

	cfg := s.analytics.Load()
	now := s.now().UTC()

	positions, err := s.valuation.Positions(ctx, userID)
	if err != nil {
		return nil, err
	}

	var result *models.PortfolioAdvice
	if len(positions) == 0 {
		result = emptyAdvice(userID, cfg, now)
	} else {
		result, err = s.compute(ctx, userID, positions, cfg, now)
		if err != nil {
			return nil, err
		}
	}

	metrics.AdviceComputed.WithLabelValues(string(result.Metrics.RiskLevel)).Inc()
	log.Info().
		Str("user_id", userID).
		Str("risk_level", string(result.Metrics.RiskLevel)).
		Int("actions", len(result.Actions)).
		Int("etfs", len(result.EtfRecommendations)).
		Msg("Portfolio advice computed")

	if err := s.cache.Set(ctx, key, result, s.cacheTTL); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Cache write failed")
	}
	return result, nil
}

func (s *Service) compute(ctx context.Context, userID string, positions []models.PositionSnapshot, cfg common.AnalyticsConfig, now time.Time) (*models.PortfolioAdvice, error) {
	total := valuation.TotalValue(positions)

	history, err := s.valuation.DailyValues(ctx, userID, cfg.Risk.LookbackDays)
	if err != nil {
		return nil, err
	}
	m := risk.NewCalculator(cfg.Risk).Compute(positions, history, total)

	tier, err := s.riskTier(ctx, userID, cfg.Advice.DefaultRiskTier)
	if err != nil {
		return nil, err
	}

	catalog, err := s.advisor.LoadEtfCatalog(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load ETF catalog: %w", err)
	}

	actions := NewRebalancer(cfg.Rebalance).Actions(positions, total, tier)
	etfs := NewEtfScorer(cfg.Etf).Recommend(catalog, m.RiskLevel, m.ConcentrationPct, tier)
	insight := BuildInsight(m, actions, etfs, cfg.Advice, now)

	entry := models.AdviceLogEntry{
		ID:               uuid.NewString(),
		UserID:           userID,
		Headline:         insight.Headline,
		RiskLevel:        m.RiskLevel,
		SharpeRatio:      m.SharpeRatio,
		ConcentrationPct: m.ConcentrationPct,
		GeneratedAt:      now,
	}
	if err := s.advisor.InsertAdviceLog(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to record advice log: %w", err)
	}

	return &models.PortfolioAdvice{
		UserID:             userID,
		AsOf:               now.Format(models.DateLayout),
		RiskTier:           tier,
		Metrics:            m,
		Actions:            actions,
		EtfRecommendations: etfs,
		Insight:            insight,
	}, nil
}

// riskTier returns the user's profile tier, or def when no profile exists.
func (s *Service) riskTier(ctx context.Context, userID string, def int) (int, error) {
	profile, err := s.advisor.GetRiskProfile(ctx, userID)
	if errors.Is(err, models.ErrNotFound) {
		return def, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to load risk profile for %s: %w", userID, err)
	}
	if profile.Tier < 1 || profile.Tier > 10 {
		return def, nil
	}
	return profile.Tier, nil
}

func emptyAdvice(userID string, cfg common.AnalyticsConfig, now time.Time) *models.PortfolioAdvice {
	return &models.PortfolioAdvice{
		UserID:             userID,
		AsOf:               now.Format(models.DateLayout),
		RiskTier:           cfg.Advice.DefaultRiskTier,
		Metrics:            models.EmptyRiskMetrics(),
		Actions:            []models.RebalancingAction{},
		EtfRecommendations: []models.EtfRecommendation{},
		Insight:            EmptyInsight(cfg.Advice, now),
	}
}

// Compile-time check
var _ interfaces.AdviceService = (*Service)(nil)
