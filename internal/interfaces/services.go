package interfaces

import (
	"context"

	"github.com/bobmcallan/playasset/internal/models"
)

// LedgerService records trades against positions
type LedgerService interface {
	// RecordTrade validates and applies a trade for the user owning the account
	RecordTrade(ctx context.Context, userID string, trade models.TradeEvent) (*models.TradeResult, error)
}

// ValuationService values a user's current holdings
type ValuationService interface {
	Positions(ctx context.Context, userID string) ([]models.PositionSnapshot, error)
	DailyValues(ctx context.Context, userID string, lookbackDays int) ([]models.DailyValuePoint, error)
}

// AdviceService produces risk metrics and recommendations
type AdviceService interface {
	GetPortfolioAdvice(ctx context.Context, userID string) (*models.PortfolioAdvice, error)
}

// SimulationService replays current holdings against history
type SimulationService interface {
	// Run resolves the window from optional YYYY-MM-DD bounds, rebuilds the
	// snapshot rows and returns KPIs
	Run(ctx context.Context, userID, startDate, endDate string) (*models.SimulationResult, error)

	// Rebuild refreshes stored snapshot rows for a trailing lookback; returns rows written
	Rebuild(ctx context.Context, userID string, lookbackDays int) (int, error)

	// Chart renders the simulated value series as a PNG
	Chart(ctx context.Context, userID, startDate, endDate string) ([]byte, error)
}
