package surrealdb

import (
	"time"

	"github.com/bobmcallan/playasset/internal/models"
	"github.com/shopspring/decimal"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// Record shapes. Decimals are stored as strings so no precision is lost on
// the wire; calendar dates are stored as YYYY-MM-DD so range filters compare
// lexically.

type accountRecord struct {
	AccountID string `json:"account_id"`
	UserID    string `json:"user_id"`
	Name      string `json:"name"`
	Currency  string `json:"currency"`
}

func (r accountRecord) toModel() *models.Account {
	return &models.Account{ID: r.AccountID, UserID: r.UserID, Name: r.Name, Currency: r.Currency}
}

type positionRecord struct {
	AccountID    string    `json:"account_id"`
	InstrumentID string    `json:"instrument_id"`
	Quantity     string    `json:"quantity"`
	AverageCost  string    `json:"average_cost"`
	RealizedPnL  string    `json:"realized_pnl"`
	Open         bool      `json:"open"`
	Version      int       `json:"version"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func newPositionRecord(p models.Position, version int) positionRecord {
	return positionRecord{
		AccountID:    p.AccountID,
		InstrumentID: p.InstrumentID,
		Quantity:     p.Quantity.String(),
		AverageCost:  p.AverageCost.String(),
		RealizedPnL:  p.RealizedPnL.String(),
		Open:         p.Quantity.IsPositive(),
		Version:      version,
		UpdatedAt:    p.UpdatedAt,
	}
}

func (r positionRecord) toModel() models.Position {
	return models.Position{
		AccountID:    r.AccountID,
		InstrumentID: r.InstrumentID,
		Quantity:     toDecimal(r.Quantity),
		AverageCost:  toDecimal(r.AverageCost),
		RealizedPnL:  toDecimal(r.RealizedPnL),
		UpdatedAt:    r.UpdatedAt,
	}
}

type tradeRecord struct {
	TradeID      string    `json:"trade_id"`
	PositionKey  string    `json:"position_key"`
	AccountID    string    `json:"account_id"`
	InstrumentID string    `json:"instrument_id"`
	Side         string    `json:"side"`
	Quantity     string    `json:"quantity"`
	Price        string    `json:"price"`
	Fee          string    `json:"fee"`
	Tax          string    `json:"tax"`
	OccurredAt   time.Time `json:"occurred_at"`
	RecordedAt   time.Time `json:"recorded_at"`
	Note         string    `json:"note"`
}

func newTradeRecord(t models.TradeEvent, recordedAt time.Time) tradeRecord {
	return tradeRecord{
		TradeID:      t.ID,
		PositionKey:  t.PositionKey(),
		AccountID:    t.AccountID,
		InstrumentID: t.InstrumentID,
		Side:         string(t.Side),
		Quantity:     t.Quantity.String(),
		Price:        t.Price.String(),
		Fee:          t.Fee.String(),
		Tax:          t.Tax.String(),
		OccurredAt:   t.OccurredAt,
		RecordedAt:   recordedAt,
		Note:         t.Note,
	}
}

func (r tradeRecord) toModel() models.TradeEvent {
	return models.TradeEvent{
		ID:           r.TradeID,
		AccountID:    r.AccountID,
		InstrumentID: r.InstrumentID,
		Side:         models.Side(r.Side),
		Quantity:     toDecimal(r.Quantity),
		Price:        toDecimal(r.Price),
		Fee:          toDecimal(r.Fee),
		Tax:          toDecimal(r.Tax),
		OccurredAt:   r.OccurredAt,
		Note:         r.Note,
	}
}

type instrumentRecord struct {
	InstrumentID string `json:"instrument_id"`
	Symbol       string `json:"symbol"`
	Name         string `json:"name"`
	Market       string `json:"market"`
	AssetType    string `json:"asset_type"`
	Currency     string `json:"currency"`
}

func (r instrumentRecord) toModel() *models.Instrument {
	return &models.Instrument{
		ID:        r.InstrumentID,
		Symbol:    r.Symbol,
		Name:      r.Name,
		Market:    r.Market,
		AssetType: r.AssetType,
		Currency:  r.Currency,
	}
}

type closeRecord struct {
	InstrumentID string `json:"instrument_id"`
	Date         string `json:"date"`
	Close        string `json:"close"`
}

func (r closeRecord) toModel() models.PricePoint {
	return models.PricePoint{InstrumentID: r.InstrumentID, Date: parseDate(r.Date), Close: toDecimal(r.Close)}
}

type snapshotRecord struct {
	ID                  surrealmodels.RecordID `json:"id"`
	UserID              string                 `json:"user_id"`
	Date                string                 `json:"date"`
	SimulatedValue      string                 `json:"simulated_value"`
	BaseValue           string                 `json:"base_value"`
	CumulativeReturnPct string                 `json:"cumulative_return_pct"`
	DailyReturnPct      string                 `json:"daily_return_pct"`
	DrawdownPct         string                 `json:"drawdown_pct"`
}

func newSnapshotRecord(userID string, s models.SimulationSnapshot) snapshotRecord {
	date := s.Date.Format(models.DateLayout)
	return snapshotRecord{
		ID:                  surrealmodels.NewRecordID(tableSnapshot, userID+"_"+date),
		UserID:              userID,
		Date:                date,
		SimulatedValue:      s.SimulatedValue.String(),
		BaseValue:           s.BaseValue.String(),
		CumulativeReturnPct: s.CumulativeReturnPct.String(),
		DailyReturnPct:      s.DailyReturnPct.String(),
		DrawdownPct:         s.DrawdownPct.String(),
	}
}

func (r snapshotRecord) toModel() models.SimulationSnapshot {
	return models.SimulationSnapshot{
		UserID:              r.UserID,
		Date:                parseDate(r.Date),
		SimulatedValue:      toDecimal(r.SimulatedValue),
		BaseValue:           toDecimal(r.BaseValue),
		CumulativeReturnPct: toDecimal(r.CumulativeReturnPct),
		DailyReturnPct:      toDecimal(r.DailyReturnPct),
		DrawdownPct:         toDecimal(r.DrawdownPct),
	}
}

type etfRecord struct {
	EtfID               string  `json:"etf_id"`
	Symbol              string  `json:"symbol"`
	Name                string  `json:"name"`
	Market              string  `json:"market"`
	FocusTheme          string  `json:"focus_theme"`
	RiskBucket          string  `json:"risk_bucket"`
	DiversificationRole string  `json:"diversification_role"`
	ExpenseRatioPct     float64 `json:"expense_ratio_pct"`
	Active              bool    `json:"active"`
}

func (r etfRecord) toModel() models.EtfCatalogRow {
	return models.EtfCatalogRow{
		ID:                  r.EtfID,
		Symbol:              r.Symbol,
		Name:                r.Name,
		Market:              r.Market,
		FocusTheme:          r.FocusTheme,
		RiskBucket:          models.RiskBucket(r.RiskBucket),
		DiversificationRole: r.DiversificationRole,
		ExpenseRatioPct:     r.ExpenseRatioPct,
		Active:              r.Active,
	}
}

type profileRecord struct {
	UserID    string    `json:"user_id"`
	Tier      int       `json:"tier"`
	UpdatedAt time.Time `json:"updated_at"`
}

type adviceLogRecord struct {
	EntryID          string    `json:"entry_id"`
	UserID           string    `json:"user_id"`
	Headline         string    `json:"headline"`
	RiskLevel        string    `json:"risk_level"`
	SharpeRatio      float64   `json:"sharpe_ratio"`
	ConcentrationPct float64   `json:"concentration_pct"`
	GeneratedAt      time.Time `json:"generated_at"`
}

func (r adviceLogRecord) toModel() models.AdviceLogEntry {
	return models.AdviceLogEntry{
		ID:               r.EntryID,
		UserID:           r.UserID,
		Headline:         r.Headline,
		RiskLevel:        models.RiskLevel(r.RiskLevel),
		SharpeRatio:      r.SharpeRatio,
		ConcentrationPct: r.ConcentrationPct,
		GeneratedAt:      r.GeneratedAt,
	}
}

type jobRunRecord struct {
	RunID        string    `json:"run_id"`
	JobName      string    `json:"job_name"`
	Status       string    `json:"status"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
	UsersTotal   int       `json:"users_total"`
	UsersFailed  int       `json:"users_failed"`
	RowsWritten  int       `json:"rows_written"`
	ErrorMessage string    `json:"error_message"`
}

func (r jobRunRecord) toModel() models.JobRun {
	return models.JobRun{
		ID:           r.RunID,
		JobName:      r.JobName,
		Status:       r.Status,
		StartedAt:    r.StartedAt,
		FinishedAt:   r.FinishedAt,
		UsersTotal:   r.UsersTotal,
		UsersFailed:  r.UsersFailed,
		RowsWritten:  r.RowsWritten,
		ErrorMessage: r.ErrorMessage,
	}
}

// toDecimal parses a stored decimal. Values are written by this package, so
// an empty or unparsable field reads as zero.
func toDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func parseDate(s string) time.Time {
	t, err := time.Parse(models.DateLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func formatDate(t time.Time) string {
	return models.DateOnly(t).Format(models.DateLayout)
}
