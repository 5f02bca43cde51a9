package surrealdb

import (
	"context"
	"fmt"

	"github.com/bobmcallan/playasset/internal/common"
	"github.com/bobmcallan/playasset/internal/interfaces"
	"github.com/bobmcallan/playasset/internal/models"
	"github.com/google/uuid"
	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// defaultListLimit caps list queries called with a non-positive limit.
const defaultListLimit = 100

// AdvisorStore implements interfaces.AdvisorStore using SurrealDB.
type AdvisorStore struct {
	db     *surrealdb.DB
	logger *common.Logger
}

func NewAdvisorStore(db *surrealdb.DB, logger *common.Logger) *AdvisorStore {
	return &AdvisorStore{db: db, logger: logger}
}

// --- ETF catalog ---

func (s *AdvisorStore) SaveEtf(ctx context.Context, row models.EtfCatalogRow) error {
	sql := "UPSERT $rid CONTENT $etf"
	vars := map[string]any{
		"rid": surrealmodels.NewRecordID(tableEtf, row.ID),
		"etf": etfRecord{
			EtfID:               row.ID,
			Symbol:              row.Symbol,
			Name:                row.Name,
			Market:              row.Market,
			FocusTheme:          row.FocusTheme,
			RiskBucket:          string(row.RiskBucket),
			DiversificationRole: row.DiversificationRole,
			ExpenseRatioPct:     row.ExpenseRatioPct,
			Active:              row.Active,
		},
	}
	if _, err := surrealdb.Query[[]etfRecord](ctx, s.db, sql, vars); err != nil {
		return fmt.Errorf("failed to save etf %s: %w", row.ID, err)
	}
	return nil
}

func (s *AdvisorStore) LoadEtfCatalog(ctx context.Context) ([]models.EtfCatalogRow, error) {
	sql := "SELECT * FROM etf_catalog WHERE active = true ORDER BY etf_id ASC"
	results, err := surrealdb.Query[[]etfRecord](ctx, s.db, sql, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load etf catalog: %w", err)
	}

	rows := firstResult(results)
	out := make([]models.EtfCatalogRow, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toModel())
	}
	return out, nil
}

// --- Risk profiles ---

func (s *AdvisorStore) GetRiskProfile(ctx context.Context, userID string) (*models.RiskProfile, error) {
	rec, err := surrealdb.Select[profileRecord](ctx, s.db, surrealmodels.NewRecordID(tableProfile, userID))
	if err != nil {
		if isNotFoundError(err) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get risk profile for %s: %w", userID, err)
	}
	if rec == nil {
		return nil, models.ErrNotFound
	}
	return &models.RiskProfile{UserID: rec.UserID, Tier: rec.Tier, UpdatedAt: rec.UpdatedAt}, nil
}

func (s *AdvisorStore) SaveRiskProfile(ctx context.Context, profile models.RiskProfile) error {
	sql := "UPSERT $rid CONTENT $profile"
	vars := map[string]any{
		"rid":     surrealmodels.NewRecordID(tableProfile, profile.UserID),
		"profile": profileRecord{UserID: profile.UserID, Tier: profile.Tier, UpdatedAt: profile.UpdatedAt},
	}
	if _, err := surrealdb.Query[[]profileRecord](ctx, s.db, sql, vars); err != nil {
		return fmt.Errorf("failed to save risk profile for %s: %w", profile.UserID, err)
	}
	return nil
}

// --- Advice log ---

func (s *AdvisorStore) InsertAdviceLog(ctx context.Context, entry models.AdviceLogEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	sql := "CREATE $rid CONTENT $entry"
	vars := map[string]any{
		"rid": surrealmodels.NewRecordID(tableAdviceLog, entry.ID),
		"entry": adviceLogRecord{
			EntryID:          entry.ID,
			UserID:           entry.UserID,
			Headline:         entry.Headline,
			RiskLevel:        string(entry.RiskLevel),
			SharpeRatio:      entry.SharpeRatio,
			ConcentrationPct: entry.ConcentrationPct,
			GeneratedAt:      entry.GeneratedAt,
		},
	}
	if _, err := surrealdb.Query[[]adviceLogRecord](ctx, s.db, sql, vars); err != nil {
		return fmt.Errorf("failed to insert advice log for %s: %w", entry.UserID, err)
	}
	return nil
}

// ListAdviceLog returns the user's entries, newest first.
func (s *AdvisorStore) ListAdviceLog(ctx context.Context, userID string, limit int) ([]models.AdviceLogEntry, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	sql := "SELECT * FROM advice_log WHERE user_id = $user ORDER BY generated_at DESC LIMIT $limit"
	results, err := surrealdb.Query[[]adviceLogRecord](ctx, s.db, sql, map[string]any{"user": userID, "limit": limit})
	if err != nil {
		return nil, fmt.Errorf("failed to list advice log for %s: %w", userID, err)
	}

	rows := firstResult(results)
	out := make([]models.AdviceLogEntry, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toModel())
	}
	return out, nil
}

// Compile-time check
var _ interfaces.AdvisorStore = (*AdvisorStore)(nil)
