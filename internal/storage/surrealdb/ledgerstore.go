package surrealdb

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/bobmcallan/playasset/internal/common"
	"github.com/bobmcallan/playasset/internal/interfaces"
	"github.com/bobmcallan/playasset/internal/models"
	"github.com/google/uuid"
	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// ErrPositionConflict is returned when a position changed between the read
// and the write of ApplyTrade. Callers serialize trades per position, so this
// only surfaces when two writers bypass the lock.
var ErrPositionConflict = errors.New("position version conflict")

// applyTradeSQL writes the position and its trade in one transaction. The
// version guard rejects the write if the position moved since it was read.
const applyTradeSQL = `BEGIN TRANSACTION;
LET $current = (SELECT VALUE version FROM $rid)[0] ?? 0;
IF $current != $expected { THROW "position version conflict" };
UPSERT $rid CONTENT $position;
CREATE $tid CONTENT $trade;
COMMIT TRANSACTION;`

// userAccounts selects the account IDs owned by $user.
const userAccounts = "(SELECT VALUE account_id FROM account WHERE user_id = $user)"

// LedgerStore implements interfaces.LedgerStore using SurrealDB.
type LedgerStore struct {
	db     *surrealdb.DB
	logger *common.Logger
}

// NewLedgerStore creates a new LedgerStore.
func NewLedgerStore(db *surrealdb.DB, logger *common.Logger) *LedgerStore {
	return &LedgerStore{db: db, logger: logger}
}

func (s *LedgerStore) SaveAccount(ctx context.Context, account *models.Account) error {
	sql := "UPSERT $rid CONTENT $account"
	vars := map[string]any{
		"rid": surrealmodels.NewRecordID(tableAccount, account.ID),
		"account": accountRecord{
			AccountID: account.ID,
			UserID:    account.UserID,
			Name:      account.Name,
			Currency:  account.Currency,
		},
	}
	if _, err := surrealdb.Query[[]accountRecord](ctx, s.db, sql, vars); err != nil {
		return fmt.Errorf("failed to save account %s: %w", account.ID, err)
	}
	return nil
}

func (s *LedgerStore) GetAccount(ctx context.Context, accountID string) (*models.Account, error) {
	rec, err := surrealdb.Select[accountRecord](ctx, s.db, surrealmodels.NewRecordID(tableAccount, accountID))
	if err != nil {
		if isNotFoundError(err) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get account %s: %w", accountID, err)
	}
	if rec == nil {
		return nil, models.ErrNotFound
	}
	return rec.toModel(), nil
}

// ApplyTrade reads the position, computes the next state with fn and writes
// both the position and the trade inside one transaction.
func (s *LedgerStore) ApplyTrade(ctx context.Context, trade models.TradeEvent, fn interfaces.ApplyFunc) (models.Position, error) {
	rid := surrealmodels.NewRecordID(tablePosition, trade.PositionKey())

	current := models.Position{AccountID: trade.AccountID, InstrumentID: trade.InstrumentID}
	version := 0
	rec, err := surrealdb.Select[positionRecord](ctx, s.db, rid)
	if err != nil && !isNotFoundError(err) {
		return models.Position{}, fmt.Errorf("failed to read position %s: %w", trade.PositionKey(), err)
	}
	if rec != nil {
		current = rec.toModel()
		version = rec.Version
	}

	next, err := fn(current)
	if err != nil {
		return models.Position{}, err
	}

	if trade.ID == "" {
		trade.ID = uuid.New().String()
	}
	vars := map[string]any{
		"rid":      rid,
		"tid":      surrealmodels.NewRecordID(tableTrade, trade.ID),
		"expected": version,
		"position": newPositionRecord(next, version+1),
		"trade":    newTradeRecord(trade, time.Now().UTC()),
	}
	if _, err := surrealdb.Query[any](ctx, s.db, applyTradeSQL, vars); err != nil {
		if strings.Contains(err.Error(), ErrPositionConflict.Error()) {
			return models.Position{}, fmt.Errorf("position %s: %w", trade.PositionKey(), ErrPositionConflict)
		}
		return models.Position{}, fmt.Errorf("failed to apply trade %s: %w", trade.ID, err)
	}
	return next, nil
}

func (s *LedgerStore) GetPosition(ctx context.Context, accountID, instrumentID string) (*models.Position, error) {
	rid := surrealmodels.NewRecordID(tablePosition, models.PositionKey(accountID, instrumentID))
	rec, err := surrealdb.Select[positionRecord](ctx, s.db, rid)
	if err != nil {
		if isNotFoundError(err) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get position: %w", err)
	}
	if rec == nil {
		return nil, models.ErrNotFound
	}
	p := rec.toModel()
	return &p, nil
}

func (s *LedgerStore) ListPositions(ctx context.Context, userID string) ([]models.Position, error) {
	sql := "SELECT * FROM position WHERE account_id IN " + userAccounts + " ORDER BY account_id, instrument_id"
	results, err := surrealdb.Query[[]positionRecord](ctx, s.db, sql, map[string]any{"user": userID})
	if err != nil {
		return nil, fmt.Errorf("failed to list positions for %s: %w", userID, err)
	}

	rows := firstResult(results)
	out := make([]models.Position, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toModel())
	}
	return out, nil
}

func (s *LedgerStore) ListTrades(ctx context.Context, accountID, instrumentID string) ([]models.TradeEvent, error) {
	sql := "SELECT * FROM trade WHERE position_key = $key ORDER BY recorded_at ASC"
	vars := map[string]any{"key": models.PositionKey(accountID, instrumentID)}
	results, err := surrealdb.Query[[]tradeRecord](ctx, s.db, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("failed to list trades: %w", err)
	}

	rows := firstResult(results)
	out := make([]models.TradeEvent, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toModel())
	}
	return out, nil
}

func (s *LedgerStore) EarliestBuyDate(ctx context.Context, userID string) (time.Time, bool, error) {
	keysSQL := "SELECT VALUE string::concat(account_id, '_', instrument_id) FROM position WHERE open = true AND account_id IN " + userAccounts
	keyResults, err := surrealdb.Query[[]string](ctx, s.db, keysSQL, map[string]any{"user": userID})
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to list open positions for %s: %w", userID, err)
	}
	keys := firstResult(keyResults)
	if len(keys) == 0 {
		return time.Time{}, false, nil
	}

	type buyRow struct {
		OccurredAt time.Time `json:"occurred_at"`
	}
	sql := "SELECT occurred_at FROM trade WHERE side = $side AND position_key IN $keys ORDER BY occurred_at ASC LIMIT 1"
	vars := map[string]any{"side": string(models.SideBuy), "keys": keys}
	results, err := surrealdb.Query[[]buyRow](ctx, s.db, sql, vars)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to find first buy for %s: %w", userID, err)
	}
	rows := firstResult(results)
	if len(rows) == 0 {
		return time.Time{}, false, nil
	}
	return models.DateOnly(rows[0].OccurredAt), true, nil
}

func (s *LedgerStore) UsersWithOpenPositions(ctx context.Context) ([]string, error) {
	sql := "SELECT VALUE user_id FROM account WHERE account_id IN (SELECT VALUE account_id FROM position WHERE open = true)"
	results, err := surrealdb.Query[[]string](ctx, s.db, sql, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list users with open positions: %w", err)
	}

	seen := make(map[string]bool)
	var out []string
	for _, u := range firstResult(results) {
		if !seen[u] {
			seen[u] = true
			out = append(out, u)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (s *LedgerStore) Close() error {
	return nil
}

// Compile-time check
var _ interfaces.LedgerStore = (*LedgerStore)(nil)
