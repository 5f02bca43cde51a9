package simulation

import (
	"testing"

	"github.com/bobmcallan/playasset/internal/common"
	"github.com/bobmcallan/playasset/internal/models"
	"github.com/bobmcallan/playasset/internal/services/valuation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func simCfg() common.SimulationConfig {
	return common.DefaultAnalyticsConfig().Simulation
}

func twoRows(startDate, endDate, startValue, endValue, cumulative string) []models.SimulationSnapshot {
	return []models.SimulationSnapshot{
		{Date: day(startDate), SimulatedValue: d(startValue), BaseValue: d(startValue), CumulativeReturnPct: d("0"), DrawdownPct: d("0")},
		{Date: day(endDate), SimulatedValue: d(endValue), BaseValue: d(startValue), CumulativeReturnPct: d(cumulative), DrawdownPct: d("0")},
	}
}

func TestSummarize(t *testing.T) {
	holdings := []valuation.Holding{{InstrumentID: "A", Quantity: d("10")}}
	prices := map[string]valuation.PriceSeries{
		"A": series("2024-01-02", "10", "2024-01-03", "12", "2024-01-04", "9", "2024-01-05", "15"),
	}
	rows := Build("u1", holdings, prices, day("2024-01-02"), day("2024-01-05"))

	got := Summarize("u1", rows, day("2024-01-02"), day("2024-01-05"), simCfg())

	assert.Equal(t, "2024-01-02", got.StartDate)
	assert.Equal(t, "2024-01-05", got.EndDate)
	assert.Equal(t, 4, got.Points)
	assert.Equal(t, 100.0, got.StartValue)
	assert.Equal(t, 150.0, got.EndValue)
	assert.Equal(t, 50.0, got.PnLAmount)
	assert.Equal(t, 50.0, got.PnLRate)
	assert.Equal(t, got.PnLRate, got.AnnualizedReturnPct, "short windows are not annualized")
	assert.Equal(t, 25.0, got.MaxDrawdownPct)
	require.Len(t, got.Timeline, 4)
	assert.Equal(t, 90.0, got.Timeline[2].Value)
	assert.Equal(t, -10.0, got.Timeline[2].CumulativeReturnPct)
	assert.Len(t, got.Notes, 4)
	assert.NotNil(t, got.Contributions)
}

func TestSummarize_AnnualizationThreshold(t *testing.T) {
	tests := []struct {
		name       string
		end        string
		wantEqual  bool
		wantAnnual float64
	}{
		{"89 days reports period return", "2024-03-30", true, 10},
		{"90 days compounds", "2024-03-31", false, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows := twoRows("2024-01-01", tt.end, "100", "110", "10")
			got := Summarize("u1", rows, day("2024-01-01"), day(tt.end), simCfg())
			assert.Equal(t, 10.0, got.PnLRate)
			if tt.wantEqual {
				assert.Equal(t, tt.wantAnnual, got.AnnualizedReturnPct)
			} else {
				assert.Greater(t, got.AnnualizedReturnPct, got.PnLRate)
			}
		})
	}
}

func TestSummarize_CompoundsOverLongWindow(t *testing.T) {
	// 21% over two non-leap years is 10% a year
	rows := twoRows("2022-01-01", "2024-01-01", "100", "121", "21")
	got := Summarize("u1", rows, day("2022-01-01"), day("2024-01-01"), simCfg())

	assert.Equal(t, 21.0, got.PnLRate)
	assert.InDelta(t, 10.0, got.AnnualizedReturnPct, 0.001)
}

func TestSummarize_Empty(t *testing.T) {
	got := Summarize("u1", nil, day("2024-01-01"), day("2024-02-01"), simCfg())

	assert.Equal(t, "2024-01-01", got.StartDate)
	assert.Equal(t, "2024-02-01", got.EndDate)
	assert.Zero(t, got.Points)
	assert.Zero(t, got.PnLRate)
	assert.NotNil(t, got.Timeline)
	assert.Empty(t, got.Timeline)
	assert.NotNil(t, got.Contributions)
	assert.Len(t, got.Notes, 2)
}

func TestContributions(t *testing.T) {
	held := []Held{
		{InstrumentID: "A", Symbol: "AAA", Quantity: d("10"), AverageCost: d("8")},
		{InstrumentID: "B", Symbol: "BBB", Quantity: d("5"), AverageCost: d("100")},
		{InstrumentID: "C", Symbol: "CCC", Quantity: d("1"), AverageCost: d("50")},
	}
	prices := map[string]valuation.PriceSeries{
		"A": series("2024-01-02", "10", "2024-01-05", "15"),
		"C": series("2024-01-01", "200", "2024-01-05", "100"),
	}

	got := Contributions(held, prices, day("2024-01-02"), day("2024-01-05"))
	require.Len(t, got, 3)

	assert.Equal(t, "C", got[0].InstrumentID)
	assert.Equal(t, -100.0, got[0].PnLAmount)
	assert.Equal(t, -50.0, got[0].PnLRate)

	assert.Equal(t, "A", got[1].InstrumentID)
	assert.Equal(t, 10.0, got[1].StartPrice)
	assert.Equal(t, 15.0, got[1].EndPrice)
	assert.Equal(t, 50.0, got[1].PnLAmount)
	assert.Equal(t, 50.0, got[1].PnLRate)

	// no closes at all: priced at cost on both ends
	assert.Equal(t, "B", got[2].InstrumentID)
	assert.Equal(t, 100.0, got[2].StartPrice)
	assert.Zero(t, got[2].PnLAmount)
}
