package simulation

import (
	"bytes"
	"fmt"
	"math"
	"time"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/bobmcallan/playasset/internal/models"
)

// RenderChart renders a PNG line chart of snapshot rows.
// Simulated value (blue solid) and base value (gray dashed) share the left
// axis; drawdown (red) is plotted on the right axis.
// Returns models.ErrNotFound when there are fewer than two rows to plot.
func RenderChart(rows []models.SimulationSnapshot) ([]byte, error) {
	if len(rows) < 2 {
		return nil, fmt.Errorf("need at least 2 snapshot rows, got %d: %w", len(rows), models.ErrNotFound)
	}

	xValues := make([]time.Time, len(rows))
	valueY := make([]float64, len(rows))
	baseY := make([]float64, len(rows))
	drawdownY := make([]float64, len(rows))

	lo, hi, deepest := math.Inf(1), math.Inf(-1), 0.0
	for i, r := range rows {
		xValues[i] = r.Date
		valueY[i] = r.SimulatedValue.InexactFloat64()
		baseY[i] = r.BaseValue.InexactFloat64()
		drawdownY[i] = -r.DrawdownPct.InexactFloat64()
		lo = math.Min(lo, math.Min(valueY[i], baseY[i]))
		hi = math.Max(hi, math.Max(valueY[i], baseY[i]))
		deepest = math.Min(deepest, drawdownY[i])
	}
	// Explicit ranges keep a flat series renderable.
	pad := math.Max((hi-lo)*0.05, 1)

	valueSeries := chart.TimeSeries{
		Name: "Simulated Value",
		Style: chart.Style{
			StrokeColor: drawing.ColorFromHex("2563eb"), // blue-600
			StrokeWidth: 2.5,
		},
		XValues: xValues,
		YValues: valueY,
	}

	baseSeries := chart.TimeSeries{
		Name: "Base Value",
		Style: chart.Style{
			StrokeColor:     drawing.ColorFromHex("9ca3af"), // gray-400
			StrokeWidth:     1.5,
			StrokeDashArray: []float64{5.0, 3.0},
		},
		XValues: xValues,
		YValues: baseY,
	}

	drawdownSeries := chart.TimeSeries{
		Name:  "Drawdown %",
		YAxis: chart.YAxisSecondary,
		Style: chart.Style{
			StrokeColor: drawing.ColorFromHex("dc2626"), // red-600
			StrokeWidth: 1,
		},
		XValues: xValues,
		YValues: drawdownY,
	}

	graph := chart.Chart{
		Title:  "Portfolio Simulation",
		Width:  900,
		Height: 400,
		Background: chart.Style{
			Padding: chart.Box{Top: 40, Left: 10, Right: 20, Bottom: 10},
		},
		XAxis: chart.XAxis{
			TickPosition: chart.TickPositionBetweenTicks,
			ValueFormatter: func(v interface{}) string {
				if t, ok := v.(float64); ok {
					return chart.TimeFromFloat64(t).Format("Jan 06")
				}
				return ""
			},
		},
		YAxis: chart.YAxis{
			Range: &chart.ContinuousRange{Min: lo - pad, Max: hi + pad},
			ValueFormatter: func(v interface{}) string {
				if f, ok := v.(float64); ok {
					return fmt.Sprintf("$%.0fk", f/1000)
				}
				return ""
			},
		},
		YAxisSecondary: chart.YAxis{
			Range: &chart.ContinuousRange{Min: deepest - 1, Max: 0},
			ValueFormatter: func(v interface{}) string {
				if f, ok := v.(float64); ok {
					return fmt.Sprintf("%.0f%%", f)
				}
				return ""
			},
		},
		Series: []chart.Series{
			valueSeries,
			baseSeries,
			drawdownSeries,
		},
	}

	graph.Elements = []chart.Renderable{
		chart.LegendLeft(&graph),
	}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("chart render failed: %w", err)
	}

	return buf.Bytes(), nil
}
