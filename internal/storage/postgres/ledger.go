// Package postgres is a PostgreSQL ledger store. Positions and trades are
// NUMERIC columns and each trade is applied under a row lock.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/bobmcallan/playasset/internal/common"
	"github.com/bobmcallan/playasset/internal/interfaces"
	"github.com/bobmcallan/playasset/internal/models"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS accounts (
		id       TEXT PRIMARY KEY,
		user_id  TEXT NOT NULL,
		name     TEXT NOT NULL DEFAULT '',
		currency TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS accounts_user_idx ON accounts (user_id)`,
	`CREATE TABLE IF NOT EXISTS positions (
		account_id    TEXT NOT NULL,
		instrument_id TEXT NOT NULL,
		quantity      NUMERIC NOT NULL DEFAULT 0,
		average_cost  NUMERIC NOT NULL DEFAULT 0,
		realized_pnl  NUMERIC NOT NULL DEFAULT 0,
		updated_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (account_id, instrument_id)
	)`,
	`CREATE TABLE IF NOT EXISTS trades (
		seq           BIGSERIAL PRIMARY KEY,
		id            TEXT NOT NULL UNIQUE,
		account_id    TEXT NOT NULL,
		instrument_id TEXT NOT NULL,
		side          TEXT NOT NULL,
		quantity      NUMERIC NOT NULL,
		price         NUMERIC NOT NULL,
		fee           NUMERIC NOT NULL DEFAULT 0,
		tax           NUMERIC NOT NULL DEFAULT 0,
		occurred_at   TIMESTAMPTZ NOT NULL,
		note          TEXT NOT NULL DEFAULT '',
		recorded_at   TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS trades_position_idx ON trades (account_id, instrument_id, seq)`,
}

// LedgerStore implements interfaces.LedgerStore on a pgx pool.
type LedgerStore struct {
	pool   *pgxpool.Pool
	logger *common.Logger
}

// NewLedgerStore creates the schema if needed and returns the store.
func NewLedgerStore(ctx context.Context, pool *pgxpool.Pool, logger *common.Logger) (*LedgerStore, error) {
	for _, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return nil, fmt.Errorf("failed to apply ledger schema: %w", err)
		}
	}
	return &LedgerStore{pool: pool, logger: logger}, nil
}

// Connect opens a pool for dsn with at most maxConns connections.
func Connect(ctx context.Context, dsn string, maxConns int) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("invalid ledger dsn: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = int32(maxConns)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ledger database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping ledger database: %w", err)
	}
	return pool, nil
}

func (s *LedgerStore) SaveAccount(ctx context.Context, account *models.Account) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO accounts (id, user_id, name, currency) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (id) DO UPDATE SET user_id = EXCLUDED.user_id, name = EXCLUDED.name, currency = EXCLUDED.currency`,
		account.ID, account.UserID, account.Name, account.Currency)
	if err != nil {
		return fmt.Errorf("failed to save account %s: %w", account.ID, err)
	}
	return nil
}

func (s *LedgerStore) GetAccount(ctx context.Context, accountID string) (*models.Account, error) {
	var a models.Account
	err := s.pool.QueryRow(ctx, "SELECT id, user_id, name, currency FROM accounts WHERE id = $1", accountID).
		Scan(&a.ID, &a.UserID, &a.Name, &a.Currency)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account %s: %w", accountID, err)
	}
	return &a, nil
}

// ApplyTrade materialises the position row, locks it with SELECT ... FOR
// UPDATE, then inserts the trade and writes the new state before commit.
// An error from fn rolls everything back.
func (s *LedgerStore) ApplyTrade(ctx context.Context, trade models.TradeEvent, fn interfaces.ApplyFunc) (models.Position, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.Position{}, fmt.Errorf("failed to begin trade transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		"INSERT INTO positions (account_id, instrument_id) VALUES ($1, $2) ON CONFLICT DO NOTHING",
		trade.AccountID, trade.InstrumentID); err != nil {
		return models.Position{}, fmt.Errorf("failed to materialise position: %w", err)
	}

	current, err := scanPosition(tx.QueryRow(ctx,
		`SELECT account_id, instrument_id, quantity::TEXT, average_cost::TEXT, realized_pnl::TEXT, updated_at
		 FROM positions WHERE account_id = $1 AND instrument_id = $2 FOR UPDATE`,
		trade.AccountID, trade.InstrumentID))
	if err != nil {
		return models.Position{}, fmt.Errorf("failed to lock position: %w", err)
	}

	next, err := fn(current)
	if err != nil {
		return models.Position{}, err
	}

	if trade.ID == "" {
		trade.ID = uuid.New().String()
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO trades (id, account_id, instrument_id, side, quantity, price, fee, tax, occurred_at, note)
		 VALUES ($1, $2, $3, $4, $5::NUMERIC, $6::NUMERIC, $7::NUMERIC, $8::NUMERIC, $9, $10)`,
		trade.ID, trade.AccountID, trade.InstrumentID, string(trade.Side),
		trade.Quantity.String(), trade.Price.String(), trade.Fee.String(), trade.Tax.String(),
		trade.OccurredAt, trade.Note); err != nil {
		return models.Position{}, fmt.Errorf("failed to insert trade %s: %w", trade.ID, err)
	}

	updatedAt := next.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}
	if _, err := tx.Exec(ctx,
		`UPDATE positions SET quantity = $3::NUMERIC, average_cost = $4::NUMERIC, realized_pnl = $5::NUMERIC, updated_at = $6
		 WHERE account_id = $1 AND instrument_id = $2`,
		trade.AccountID, trade.InstrumentID,
		next.Quantity.String(), next.AverageCost.String(), next.RealizedPnL.String(), updatedAt); err != nil {
		return models.Position{}, fmt.Errorf("failed to update position: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return models.Position{}, fmt.Errorf("failed to commit trade %s: %w", trade.ID, err)
	}
	return next, nil
}

func (s *LedgerStore) GetPosition(ctx context.Context, accountID, instrumentID string) (*models.Position, error) {
	p, err := scanPosition(s.pool.QueryRow(ctx,
		`SELECT account_id, instrument_id, quantity::TEXT, average_cost::TEXT, realized_pnl::TEXT, updated_at
		 FROM positions WHERE account_id = $1 AND instrument_id = $2`,
		accountID, instrumentID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get position: %w", err)
	}
	return &p, nil
}

func (s *LedgerStore) ListPositions(ctx context.Context, userID string) ([]models.Position, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT p.account_id, p.instrument_id, p.quantity::TEXT, p.average_cost::TEXT, p.realized_pnl::TEXT, p.updated_at
		 FROM positions p JOIN accounts a ON a.id = p.account_id
		 WHERE a.user_id = $1 ORDER BY p.account_id, p.instrument_id`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list positions for %s: %w", userID, err)
	}
	defer rows.Close()

	var out []models.Position
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *LedgerStore) ListTrades(ctx context.Context, accountID, instrumentID string) ([]models.TradeEvent, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, account_id, instrument_id, side, quantity::TEXT, price::TEXT, fee::TEXT, tax::TEXT, occurred_at, note
		 FROM trades WHERE account_id = $1 AND instrument_id = $2 ORDER BY seq`, accountID, instrumentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list trades: %w", err)
	}
	defer rows.Close()

	var out []models.TradeEvent
	for rows.Next() {
		var t models.TradeEvent
		var side, qty, price, fee, tax string
		if err := rows.Scan(&t.ID, &t.AccountID, &t.InstrumentID, &side, &qty, &price, &fee, &tax, &t.OccurredAt, &t.Note); err != nil {
			return nil, err
		}
		t.Side = models.Side(side)
		t.Quantity, _ = decimal.NewFromString(qty)
		t.Price, _ = decimal.NewFromString(price)
		t.Fee, _ = decimal.NewFromString(fee)
		t.Tax, _ = decimal.NewFromString(tax)
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *LedgerStore) EarliestBuyDate(ctx context.Context, userID string) (time.Time, bool, error) {
	var earliest *time.Time
	err := s.pool.QueryRow(ctx,
		`SELECT min(t.occurred_at)
		 FROM trades t
		 JOIN positions p ON p.account_id = t.account_id AND p.instrument_id = t.instrument_id
		 JOIN accounts a ON a.id = p.account_id
		 WHERE a.user_id = $1 AND p.quantity > 0 AND t.side = $2`,
		userID, string(models.SideBuy)).Scan(&earliest)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to find first buy for %s: %w", userID, err)
	}
	if earliest == nil {
		return time.Time{}, false, nil
	}
	return models.DateOnly(earliest.UTC()), true, nil
}

func (s *LedgerStore) UsersWithOpenPositions(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT DISTINCT a.user_id FROM accounts a JOIN positions p ON p.account_id = a.id
		 WHERE p.quantity > 0 ORDER BY a.user_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users with open positions: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// Close releases the pool.
func (s *LedgerStore) Close() error {
	s.pool.Close()
	return nil
}

func scanPosition(row pgx.Row) (models.Position, error) {
	var p models.Position
	var qty, avg, realized string
	if err := row.Scan(&p.AccountID, &p.InstrumentID, &qty, &avg, &realized, &p.UpdatedAt); err != nil {
		return models.Position{}, err
	}
	p.Quantity, _ = decimal.NewFromString(qty)
	p.AverageCost, _ = decimal.NewFromString(avg)
	p.RealizedPnL, _ = decimal.NewFromString(realized)
	p.UpdatedAt = p.UpdatedAt.UTC()
	return p, nil
}

// Compile-time check
var _ interfaces.LedgerStore = (*LedgerStore)(nil)
