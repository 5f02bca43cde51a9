package valuation

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
)

// Service implements ValuationService
type Service struct {
	ledger    interfaces.LedgerStore
	market    interfaces.MarketDataStore
	cache     interfaces.Cache
	cacheTTL  time.Duration
	analytics *common.RuntimeAnalytics
	logger    *common.Logger
	now       func() time.Time
}

// NewService creates a new valuation service
func NewService(
	storage interfaces.StorageManager,
	c interfaces.Cache,
	cacheTTL time.Duration,
	analytics *common.RuntimeAnalytics,
	logger *common.Logger,
) *Service {
	return &Service{
		ledger:    storage.LedgerStore(),
		market:    storage.MarketDataStore(),
		cache:     c,
		cacheTTL:  cacheTTL,
		analytics: analytics,
		logger:    logger,
		now:       time.Now,
	}
}

// Positions returns the user's open positions valued at their latest close,
// largest first. A position without any close is valued at cost.
func (s *Service) Positions(ctx context.Context, userID string) ([]models.PositionSnapshot, error) {
	key := cache.PositionsKey(userID)
	var cached []models.PositionSnapshot
	if hit, err := s.cache.Get(ctx, key, &cached); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("Cache read failed")
	} else {
		metrics.CacheHit(cache.NamePositions, hit)
		if hit {
			return cached, nil
		}
	}

	positions, err := s.ledger.ListPositions(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list positions for %s: %w", userID, err)
	}

	snapshots := make([]models.PositionSnapshot, 0, len(positions))
	for _, p := range positions {
		if !p.Quantity.IsPositive() {
			continue
		}
		snap, err := s.value(ctx, p)
		if err != nil {
			return nil, err
		}
		snapshots = append(snapshots, snap)
	}
	SortByValuation(snapshots)

	if err := s.cache.Set(ctx, key, snapshots, s.cacheTTL); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("Cache write failed")
	}
	return snapshots, nil
}

func (s *Service) value(ctx context.Context, p models.Position) (models.PositionSnapshot, error) {
	price, ok, err := s.market.LatestClose(ctx, p.InstrumentID)
	if err != nil {
		return models.PositionSnapshot{}, fmt.Errorf("failed to load latest close for %s: %w", p.InstrumentID, err)
	}
	if !ok {
		price = p.AverageCost
	}

	snap := Snapshot(p, price)
	snap.PriceIsCost = !ok
	snap.Symbol = p.InstrumentID

	inst, err := s.market.GetInstrument(ctx, p.InstrumentID)
	switch {
	case err == nil:
		snap.Symbol = inst.Symbol
		snap.Name = inst.Name
		snap.Market = inst.Market
	case errors.Is(err, models.ErrNotFound):
		s.logger.Debug().Str("instrument_id", p.InstrumentID).Msg("Instrument metadata missing, using ID")
	default:
		return models.PositionSnapshot{}, fmt.Errorf("failed to load instrument %s: %w", p.InstrumentID, err)
	}
	return snap, nil
}

// DailyValues returns the aggregate value of the user's current holdings for
// each date in the trailing lookback that has a close, rounded to cents.
func (s *Service) DailyValues(ctx context.Context, userID string, lookbackDays int) ([]models.DailyValuePoint, error) {
	positions, err := s.ledger.ListPositions(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list positions for %s: %w", userID, err)
	}
	holdings := Holdings(positions)
	if len(holdings) == 0 {
		return nil, nil
	}

	to := models.DateOnly(s.now().UTC())
	from := to.AddDate(0, 0, -lookbackDays)
	pad := s.analytics.Load().Simulation.PricePadDays

	prices, err := LoadPriceSeries(ctx, s.market, holdings, from.AddDate(0, 0, -pad), to)
	if err != nil {
		return nil, err
	}

	points := ValueSeries(holdings, prices, from, to)
	for i := range points {
		points[i].Value = points[i].Value.Round(models.AmountScale)
	}
	return points, nil
}

// LoadPriceSeries fetches closes in [from, to] for every holding.
func LoadPriceSeries(ctx context.Context, market interfaces.MarketDataStore, holdings []Holding, from, to time.Time) (map[string]PriceSeries, error) {
	prices := make(map[string]PriceSeries, len(holdings))
	for _, h := range holdings {
		closes, err := market.ClosePrices(ctx, h.InstrumentID, from, to)
		if err != nil {
			return nil, fmt.Errorf("failed to load closes for %s: %w", h.InstrumentID, err)
		}
		prices[h.InstrumentID] = PriceSeries(closes)
	}
	return prices, nil
}

// Compile-time check
var _ interfaces.ValuationService = (*Service)(nil)
