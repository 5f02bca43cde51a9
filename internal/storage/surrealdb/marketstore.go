package surrealdb

import (
	"context"
	"fmt"
	"time"

	"github.com/bobmcallan/playasset/internal/common"
	"github.com/bobmcallan/playasset/internal/interfaces"
	"github.com/bobmcallan/playasset/internal/models"
	"github.com/shopspring/decimal"
	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// MarketStore implements interfaces.MarketDataStore using SurrealDB.
type MarketStore struct {
	db     *surrealdb.DB
	logger *common.Logger
}

func NewMarketStore(db *surrealdb.DB, logger *common.Logger) *MarketStore {
	return &MarketStore{db: db, logger: logger}
}

// --- Instruments ---

func (s *MarketStore) SaveInstrument(ctx context.Context, instrument *models.Instrument) error {
	sql := "UPSERT $rid CONTENT $instrument"
	vars := map[string]any{
		"rid": surrealmodels.NewRecordID(tableInstrument, instrument.ID),
		"instrument": instrumentRecord{
			InstrumentID: instrument.ID,
			Symbol:       instrument.Symbol,
			Name:         instrument.Name,
			Market:       instrument.Market,
			AssetType:    instrument.AssetType,
			Currency:     instrument.Currency,
		},
	}
	if _, err := surrealdb.Query[[]instrumentRecord](ctx, s.db, sql, vars); err != nil {
		return fmt.Errorf("failed to save instrument %s: %w", instrument.ID, err)
	}
	return nil
}

func (s *MarketStore) GetInstrument(ctx context.Context, instrumentID string) (*models.Instrument, error) {
	rec, err := surrealdb.Select[instrumentRecord](ctx, s.db, surrealmodels.NewRecordID(tableInstrument, instrumentID))
	if err != nil {
		if isNotFoundError(err) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get instrument %s: %w", instrumentID, err)
	}
	if rec == nil {
		return nil, models.ErrNotFound
	}
	return rec.toModel(), nil
}

// --- Daily closes ---

// SaveCloses upserts each close keyed by instrument and date.
func (s *MarketStore) SaveCloses(ctx context.Context, closes []models.PricePoint) error {
	sql := "UPSERT $rid CONTENT $close"
	for _, c := range closes {
		date := formatDate(c.Date)
		vars := map[string]any{
			"rid": surrealmodels.NewRecordID(tableClose, c.InstrumentID+"_"+date),
			"close": closeRecord{
				InstrumentID: c.InstrumentID,
				Date:         date,
				Close:        c.Close.String(),
			},
		}

		var lastErr error
		for attempt := 1; attempt <= 3; attempt++ {
			_, lastErr = surrealdb.Query[[]closeRecord](ctx, s.db, sql, vars)
			if lastErr == nil {
				break
			}
		}
		if lastErr != nil {
			return fmt.Errorf("failed to save close %s %s after retries: %w", c.InstrumentID, date, lastErr)
		}
	}
	return nil
}

func (s *MarketStore) LatestClose(ctx context.Context, instrumentID string) (decimal.Decimal, bool, error) {
	sql := "SELECT * FROM price_close WHERE instrument_id = $id ORDER BY date DESC LIMIT 1"
	results, err := surrealdb.Query[[]closeRecord](ctx, s.db, sql, map[string]any{"id": instrumentID})
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("failed to get latest close for %s: %w", instrumentID, err)
	}
	rows := firstResult(results)
	if len(rows) == 0 {
		return decimal.Zero, false, nil
	}
	return toDecimal(rows[0].Close), true, nil
}

func (s *MarketStore) ClosePrices(ctx context.Context, instrumentID string, from, to time.Time) ([]models.PricePoint, error) {
	sql := "SELECT * FROM price_close WHERE instrument_id = $id AND date >= $from AND date <= $to ORDER BY date ASC"
	vars := map[string]any{
		"id":   instrumentID,
		"from": formatDate(from),
		"to":   formatDate(to),
	}
	results, err := surrealdb.Query[[]closeRecord](ctx, s.db, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("failed to get closes for %s: %w", instrumentID, err)
	}

	rows := firstResult(results)
	out := make([]models.PricePoint, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toModel())
	}
	return out, nil
}

// Compile-time check
var _ interfaces.MarketDataStore = (*MarketStore)(nil)
