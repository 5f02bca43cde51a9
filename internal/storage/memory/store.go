// Package memory is an in-process implementation of every storage port.
// It backs unit tests and the "memory" storage backend.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/bobmcallan/playasset/internal/interfaces"
	"github.com/bobmcallan/playasset/internal/models"
	"github.com/shopspring/decimal"
)

// Store holds all data in maps guarded by a single mutex. Reads return copies.
type Store struct {
	mu sync.RWMutex

	accounts    map[string]models.Account
	positions   map[string]models.Position // by models.PositionKey
	trades      map[string][]models.TradeEvent
	tradeIDs    map[string]struct{}
	instruments map[string]models.Instrument
	closes      map[string]map[string]models.PricePoint // instrument -> date -> close
	snapshots   map[string]map[string]models.SimulationSnapshot
	etfs        map[string]models.EtfCatalogRow
	profiles    map[string]models.RiskProfile
	adviceLog   []models.AdviceLogEntry
	jobRuns     []models.JobRun
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		accounts:    make(map[string]models.Account),
		positions:   make(map[string]models.Position),
		trades:      make(map[string][]models.TradeEvent),
		tradeIDs:    make(map[string]struct{}),
		instruments: make(map[string]models.Instrument),
		closes:      make(map[string]map[string]models.PricePoint),
		snapshots:   make(map[string]map[string]models.SimulationSnapshot),
		etfs:        make(map[string]models.EtfCatalogRow),
		profiles:    make(map[string]models.RiskProfile),
	}
}

func (s *Store) LedgerStore() interfaces.LedgerStore { return s }
func (s *Store) MarketDataStore() interfaces.MarketDataStore { return s }
func (s *Store) SimulationStore() interfaces.SimulationStore { return s }
func (s *Store) AdvisorStore() interfaces.AdvisorStore { return s }
func (s *Store) JobRunStore() interfaces.JobRunStore { return s }
func (s *Store) Close() error { return nil }

// --- Ledger ---

func (s *Store) SaveAccount(_ context.Context, account *models.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[account.ID] = *account
	return nil
}

func (s *Store) GetAccount(_ context.Context, accountID string) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[accountID]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &a, nil
}

// ApplyTrade holds the write lock for the whole read-modify-write.
func (s *Store) ApplyTrade(_ context.Context, trade models.TradeEvent, fn interfaces.ApplyFunc) (models.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if trade.ID != "" {
		if _, dup := s.tradeIDs[trade.ID]; dup {
			return models.Position{}, fmt.Errorf("failed to apply trade %s: trade already recorded", trade.ID)
		}
	}

	key := trade.PositionKey()
	current, ok := s.positions[key]
	if !ok {
		current = models.Position{AccountID: trade.AccountID, InstrumentID: trade.InstrumentID}
	}
	next, err := fn(current)
	if err != nil {
		return models.Position{}, err
	}
	s.positions[key] = next
	s.trades[key] = append(s.trades[key], trade)
	if trade.ID != "" {
		s.tradeIDs[trade.ID] = struct{}{}
	}
	return next, nil
}

func (s *Store) GetPosition(_ context.Context, accountID, instrumentID string) (*models.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.positions[models.PositionKey(accountID, instrumentID)]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &p, nil
}

func (s *Store) ListPositions(_ context.Context, userID string) ([]models.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Position
	for _, p := range s.positions {
		if a, ok := s.accounts[p.AccountID]; ok && a.UserID == userID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out, nil
}

func (s *Store) ListTrades(_ context.Context, accountID, instrumentID string) ([]models.TradeEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	src := s.trades[models.PositionKey(accountID, instrumentID)]
	out := make([]models.TradeEvent, len(src))
	copy(out, src)
	return out, nil
}

func (s *Store) EarliestBuyDate(_ context.Context, userID string) (time.Time, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var earliest time.Time
	found := false
	for key, p := range s.positions {
		if !p.Quantity.IsPositive() {
			continue
		}
		if a, ok := s.accounts[p.AccountID]; !ok || a.UserID != userID {
			continue
		}
		for _, t := range s.trades[key] {
			if t.Side != models.SideBuy {
				continue
			}
			if !found || t.OccurredAt.Before(earliest) {
				earliest = t.OccurredAt
				found = true
			}
		}
	}
	if !found {
		return time.Time{}, false, nil
	}
	return models.DateOnly(earliest), true, nil
}

func (s *Store) UsersWithOpenPositions(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[string]bool)
	for _, p := range s.positions {
		if !p.Quantity.IsPositive() {
			continue
		}
		if a, ok := s.accounts[p.AccountID]; ok {
			seen[a.UserID] = true
		}
	}
	out := make([]string, 0, len(seen))
	for u := range seen {
		out = append(out, u)
	}
	sort.Strings(out)
	return out, nil
}

// --- Market data ---

func (s *Store) SaveInstrument(_ context.Context, instrument *models.Instrument) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.instruments[instrument.ID] = *instrument
	return nil
}

func (s *Store) GetInstrument(_ context.Context, instrumentID string) (*models.Instrument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.instruments[instrumentID]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &i, nil
}

func (s *Store) SaveCloses(_ context.Context, closes []models.PricePoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range closes {
		byDate, ok := s.closes[c.InstrumentID]
		if !ok {
			byDate = make(map[string]models.PricePoint)
			s.closes[c.InstrumentID] = byDate
		}
		c.Date = models.DateOnly(c.Date)
		byDate[c.Date.Format(models.DateLayout)] = c
	}
	return nil
}

func (s *Store) LatestClose(_ context.Context, instrumentID string) (decimal.Decimal, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var latest models.PricePoint
	found := false
	for _, c := range s.closes[instrumentID] {
		if !found || c.Date.After(latest.Date) {
			latest = c
			found = true
		}
	}
	return latest.Close, found, nil
}

func (s *Store) ClosePrices(_ context.Context, instrumentID string, from, to time.Time) ([]models.PricePoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	from, to = models.DateOnly(from), models.DateOnly(to)
	var out []models.PricePoint
	for _, c := range s.closes[instrumentID] {
		if c.Date.Before(from) || c.Date.After(to) {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

// --- Simulation ---

func (s *Store) ReplaceSimulationSnapshots(_ context.Context, userID string, from, to time.Time, rows []models.SimulationSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	byDate, ok := s.snapshots[userID]
	if !ok {
		byDate = make(map[string]models.SimulationSnapshot)
		s.snapshots[userID] = byDate
	}
	from, to = models.DateOnly(from), models.DateOnly(to)
	for k, row := range byDate {
		if !row.Date.Before(from) && !row.Date.After(to) {
			delete(byDate, k)
		}
	}
	for _, row := range rows {
		row.UserID = userID
		row.Date = models.DateOnly(row.Date)
		byDate[row.Date.Format(models.DateLayout)] = row
	}
	return nil
}

func (s *Store) LoadSimulationSnapshots(_ context.Context, userID string, from, to time.Time) ([]models.SimulationSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	from, to = models.DateOnly(from), models.DateOnly(to)
	var out []models.SimulationSnapshot
	for _, row := range s.snapshots[userID] {
		if row.Date.Before(from) || row.Date.After(to) {
			continue
		}
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

// --- Advisor ---

func (s *Store) SaveEtf(_ context.Context, row models.EtfCatalogRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.etfs[row.ID] = row
	return nil
}

func (s *Store) LoadEtfCatalog(_ context.Context) ([]models.EtfCatalogRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.EtfCatalogRow
	for _, e := range s.etfs {
		if e.Active {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ExpenseRatioPct != out[j].ExpenseRatioPct {
			return out[i].ExpenseRatioPct < out[j].ExpenseRatioPct
		}
		return out[i].Symbol < out[j].Symbol
	})
	return out, nil
}

func (s *Store) GetRiskProfile(_ context.Context, userID string) (*models.RiskProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[userID]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &p, nil
}

func (s *Store) SaveRiskProfile(_ context.Context, profile models.RiskProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[profile.UserID] = profile
	return nil
}

func (s *Store) InsertAdviceLog(_ context.Context, entry models.AdviceLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.adviceLog = append(s.adviceLog, entry)
	return nil
}

// ListAdviceLog returns newest first.
func (s *Store) ListAdviceLog(_ context.Context, userID string, limit int) ([]models.AdviceLogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.AdviceLogEntry
	for i := len(s.adviceLog) - 1; i >= 0; i-- {
		if s.adviceLog[i].UserID != userID {
			continue
		}
		out = append(out, s.adviceLog[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// --- Job runs ---

func (s *Store) InsertJobRun(_ context.Context, run models.JobRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobRuns = append(s.jobRuns, run)
	return nil
}

// ListJobRuns returns newest first.
func (s *Store) ListJobRuns(_ context.Context, jobName string, limit int) ([]models.JobRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.JobRun
	for i := len(s.jobRuns) - 1; i >= 0; i-- {
		if jobName != "" && s.jobRuns[i].JobName != jobName {
			continue
		}
		out = append(out, s.jobRuns[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

var _ interfaces.StorageManager = (*Store)(nil)
