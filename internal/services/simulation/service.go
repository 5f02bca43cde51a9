package simulation

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/bobmcallan/playasset/internal/cache"
	"github.com/bobmcallan/playasset/internal/common"
	"github.com/bobmcallan/playasset/internal/interfaces"
	"github.com/bobmcallan/playasset/internal/metrics"
	"github.com/bobmcallan/playasset/internal/models"
	"github.com/bobmcallan/playasset/internal/services/valuation"
)

// Service implements SimulationService
type Service struct {
	ledger    interfaces.LedgerStore
	market    interfaces.MarketDataStore
	snapshots interfaces.SimulationStore
	locker    interfaces.Locker
	cache     interfaces.Cache
	cacheTTL  time.Duration
	analytics *common.RuntimeAnalytics
	logger    *common.Logger
	now       func() time.Time
}

// NewService creates a new simulation service
func NewService(
	storage interfaces.StorageManager,
	locker interfaces.Locker,
	c interfaces.Cache,
	cacheTTL time.Duration,
	analytics *common.RuntimeAnalytics,
	logger *common.Logger,
) *Service {
	return &Service{
		ledger:    storage.LedgerStore(),
		market:    storage.MarketDataStore(),
		snapshots: storage.SimulationStore(),
		locker:    locker,
		cache:     c,
		cacheTTL:  cacheTTL,
		analytics: analytics,
		logger:    logger,
		now:       time.Now,
	}
}

// run is one resolved and rebuilt simulation window.
type run struct {
	window Window
	held   []Held
	prices map[string]valuation.PriceSeries
	rows   []models.SimulationSnapshot
}

// Run rebuilds the snapshot rows for the requested window and summarizes them.
func (s *Service) Run(ctx context.Context, userID, startDate, endDate string) (*models.SimulationResult, error) {
	window, err := s.resolve(ctx, userID, startDate, endDate)
	if err != nil {
		return nil, err
	}

	key := cache.SimulationKey(userID, window.Start.Format(models.DateLayout), window.End.Format(models.DateLayout))
	var cached models.SimulationResult
	if hit, err := s.cache.Get(ctx, key, &cached); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("Cache read failed")
	} else {
		metrics.CacheHit(cache.NameSimulation, hit)
		if hit {
			return &cached, nil
		}
	}

	r, err := s.prepare(ctx, userID, window)
	if err != nil {
		return nil, err
	}

	result := Summarize(userID, r.rows, r.window.Start, r.window.End, s.analytics.Load().Simulation)
	if len(r.rows) > 0 {
		result.Contributions = Contributions(r.held, r.prices, r.window.Start, r.window.End)
	}

	s.logger.WithContext(ctx).Info().
		Str("user_id", userID).
		Str("start", result.StartDate).
		Str("end", result.EndDate).
		Int("points", result.Points).
		Float64("pnl_rate", result.PnLRate).
		Msg("Simulation computed")

	if err := s.cache.Set(ctx, key, result, s.cacheTTL); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("Cache write failed")
	}
	return result, nil
}

// Chart renders the rebuilt window as a PNG.
func (s *Service) Chart(ctx context.Context, userID, startDate, endDate string) ([]byte, error) {
	window, err := s.resolve(ctx, userID, startDate, endDate)
	if err != nil {
		return nil, err
	}
	r, err := s.prepare(ctx, userID, window)
	if err != nil {
		return nil, err
	}
	return RenderChart(r.rows)
}

// Rebuild refreshes the trailing lookback window, starting no earlier than
// the user's first buy. Returns the number of rows written.
func (s *Service) Rebuild(ctx context.Context, userID string, lookbackDays int) (int, error) {
	cfg := s.analytics.Load().Simulation
	end := models.DateOnly(s.now().UTC())
	start := end.AddDate(0, 0, -max(lookbackDays, cfg.BatchMinLookbackDays))

	earliest, ok, err := s.ledger.EarliestBuyDate(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to find first buy for %s: %w", userID, err)
	}
	if ok && earliest.After(start) {
		start = earliest
	}
	if start.After(end) {
		return 0, nil
	}

	held, err := s.held(ctx, userID)
	if err != nil {
		return 0, err
	}
	r, err := s.rebuild(ctx, userID, held, Window{Start: start, End: end})
	if err != nil {
		return 0, err
	}
	return len(r.rows), nil
}

// resolve turns the request bounds into a concrete window. A blank start
// defaults to the user's first buy.
func (s *Service) resolve(ctx context.Context, userID, startDate, endDate string) (Window, error) {
	earliest, ok, err := s.ledger.EarliestBuyDate(ctx, userID)
	if err != nil {
		return Window{}, fmt.Errorf("failed to find first buy for %s: %w", userID, err)
	}
	return ResolveWindow(s.now().UTC(), startDate, endDate, earliest, ok, s.analytics.Load().Simulation.DefaultLookbackMonths)
}

func (s *Service) prepare(ctx context.Context, userID string, window Window) (*run, error) {
	held, err := s.held(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.rebuild(ctx, userID, held, window)
}

// rebuild computes the window's rows, replaces the stored rows for that
// window in one atomic write and reads them back. The write and the read
// both happen under the user's simulation lock, so the returned rows always
// come from this run.
func (s *Service) rebuild(ctx context.Context, userID string, held []Held, w Window) (*run, error) {
	started := time.Now()
	pad := s.analytics.Load().Simulation.PricePadDays

	holdings := Holdings(held)
	prices, err := valuation.LoadPriceSeries(ctx, s.market, holdings, w.Start.AddDate(0, 0, -pad), w.End)
	if err != nil {
		return nil, err
	}
	rows := Build(userID, holdings, prices, w.Start, w.End)

	unlock, err := s.locker.Lock(ctx, "simulation:"+userID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock simulation for %s: %w", userID, err)
	}
	defer unlock()

	if err := s.snapshots.ReplaceSimulationSnapshots(ctx, userID, w.Start, w.End, rows); err != nil {
		return nil, fmt.Errorf("failed to store simulation snapshots for %s: %w", userID, err)
	}
	stored, err := s.snapshots.LoadSimulationSnapshots(ctx, userID, w.Start, w.End)
	if err != nil {
		return nil, fmt.Errorf("failed to load simulation snapshots for %s: %w", userID, err)
	}

	metrics.SimulationRebuildDuration.Observe(time.Since(started).Seconds())
	metrics.SimulationRowsWritten.Add(float64(len(rows)))
	s.logger.Debug().
		Str("user_id", userID).
		Str("start", w.Start.Format(models.DateLayout)).
		Str("end", w.End.Format(models.DateLayout)).
		Int("rows", len(rows)).
		Msg("Simulation snapshots rebuilt")

	return &run{window: w, held: held, prices: prices, rows: stored}, nil
}

// held aggregates the user's open positions per instrument. Quantities are
// summed and the cost basis is quantity-weighted.
func (s *Service) held(ctx context.Context, userID string) ([]Held, error) {
	positions, err := s.ledger.ListPositions(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list positions for %s: %w", userID, err)
	}

	byID := make(map[string]*Held)
	for _, p := range positions {
		if !p.Quantity.IsPositive() {
			continue
		}
		h, ok := byID[p.InstrumentID]
		if !ok {
			h = &Held{InstrumentID: p.InstrumentID, Symbol: p.InstrumentID}
			byID[p.InstrumentID] = h
		}
		cost := h.AverageCost.Mul(h.Quantity).Add(p.AverageCost.Mul(p.Quantity))
		h.Quantity = h.Quantity.Add(p.Quantity)
		h.AverageCost = cost.Div(h.Quantity)
	}

	out := make([]Held, 0, len(byID))
	for id, h := range byID {
		inst, err := s.market.GetInstrument(ctx, id)
		switch {
		case err == nil:
			h.Symbol, h.Name = inst.Symbol, inst.Name
		case !errors.Is(err, models.ErrNotFound):
			return nil, fmt.Errorf("failed to load instrument %s: %w", id, err)
		}
		h.AverageCost = h.AverageCost.Round(rowScale)
		out = append(out, *h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].InstrumentID < out[j].InstrumentID })
	return out, nil
}

// Compile-time check
var _ interfaces.SimulationService = (*Service)(nil)
