package ledger

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
	"github.com/google/uuid"
)

// Service implements LedgerService
type Service struct {
	ledger interfaces.LedgerStore
	market interfaces.MarketDataStore
	locker interfaces.Locker
	cache  interfaces.Cache
	logger *common.Logger
	now    func() time.Time
}

// NewService creates a new ledger service
func NewService(
	storage interfaces.StorageManager,
	locker interfaces.Locker,
	c interfaces.Cache,
	logger *common.Logger,
) *Service {
	return &Service{
		ledger: storage.LedgerStore(),
		market: storage.MarketDataStore(),
		locker: locker,
		cache:  c,
		logger: logger,
		now:    time.Now,
	}
}

// RecordTrade validates a trade, applies it to its position under the
// position's lock and evicts the user's derived results.
func (s *Service) RecordTrade(ctx context.Context, userID string, trade models.TradeEvent) (*models.TradeResult, error) {
	log := s.logger.WithContext(ctx)

	if err := ValidateTrade(trade); err != nil {
		metrics.TradesRejected.Inc()
		return nil, err
	}
	if err := s.checkOwnership(ctx, userID, trade); err != nil {
		if errors.Is(err, models.ErrInvalidInput) {
			metrics.TradesRejected.Inc()
		}
		return nil, err
	}

	if trade.ID == "" {
		trade.ID = uuid.NewString()
	}
	if trade.OccurredAt.IsZero() {
		trade.OccurredAt = s.now().UTC()
	}

	unlock, err := s.locker.Lock(ctx, "position:"+trade.PositionKey())
	if err != nil {
		return nil, fmt.Errorf("failed to lock position %s: %w", trade.PositionKey(), err)
	}
	defer unlock()

	var outcome Outcome
	pos, err := s.ledger.ApplyTrade(ctx, trade, func(current models.Position) (models.Position, error) {
		o, err := ApplyTrade(current, trade)
		if err != nil {
			return models.Position{}, err
		}
		outcome = o
		return o.Position, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to apply trade %s: %w", trade.ID, err)
	}

	metrics.TradesRecorded.WithLabelValues(string(trade.Side)).Inc()
	if outcome.Clamped {
		metrics.OversellClamped.Inc()
		log.Warn().
			Str("trade_id", trade.ID).
			Str("position", trade.PositionKey()).
			Str("requested", trade.Quantity.String()).
			Str("sold", outcome.Sellable.String()).
			Msg("Sell quantity exceeded holding, clamped")
	}

	s.evict(ctx, userID)

	log.Info().
		Str("user_id", userID).
		Str("trade_id", trade.ID).
		Str("side", string(trade.Side)).
		Str("position", trade.PositionKey()).
		Str("quantity", pos.Quantity.String()).
		Msg("Trade recorded")

	return &models.TradeResult{
		Trade:    trade,
		Position: pos.Rounded(),
		Clamped:  outcome.Clamped,
	}, nil
}

func (s *Service) checkOwnership(ctx context.Context, userID string, trade models.TradeEvent) error {
	account, err := s.ledger.GetAccount(ctx, trade.AccountID)
	if errors.Is(err, models.ErrNotFound) {
		return models.Invalid("account_id", "unknown account %s", trade.AccountID)
	}
	if err != nil {
		return fmt.Errorf("failed to load account %s: %w", trade.AccountID, err)
	}
	if account.UserID != userID {
		return models.Invalid("account_id", "account %s is not owned by user %s", trade.AccountID, userID)
	}

	if _, err := s.market.GetInstrument(ctx, trade.InstrumentID); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.Invalid("instrument_id", "unknown instrument %s", trade.InstrumentID)
		}
		return fmt.Errorf("failed to load instrument %s: %w", trade.InstrumentID, err)
	}
	return nil
}

// evict drops cached results derived from the user's positions. Failures are
// logged; a stale entry expires on its TTL.
func (s *Service) evict(ctx context.Context, userID string) {
	if err := s.cache.Delete(ctx, cache.UserKeys(userID)...); err != nil {
		s.logger.Warn().Err(err).Str("user_id", userID).Msg("Failed to evict cached results")
	}
	if err := s.cache.DeletePrefix(ctx, cache.SimulationPrefix(userID)); err != nil {
		s.logger.Warn().Err(err).Str("user_id", userID).Msg("Failed to evict cached simulations")
	}
}

// Compile-time check
var _ interfaces.LedgerService = (*Service)(nil)
