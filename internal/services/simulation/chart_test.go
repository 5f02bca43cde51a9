package simulation

import (
	"bytes"
	"testing"

	"github.com/bobmcallan/playasset/internal/models"
	"github.com/bobmcallan/playasset/internal/services/valuation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngMagic = []byte("\x89PNG\r\n\x1a\n")

func TestRenderChart(t *testing.T) {
	holdings := []valuation.Holding{{InstrumentID: "A", Quantity: d("100")}}
	prices := map[string]valuation.PriceSeries{
		"A": series("2024-01-02", "100", "2024-01-03", "120", "2024-01-04", "90", "2024-01-05", "130"),
	}
	rows := Build("u1", holdings, prices, day("2024-01-02"), day("2024-01-05"))

	png, err := RenderChart(rows)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, pngMagic))
}

func TestRenderChart_FlatSeries(t *testing.T) {
	rows := twoRows("2024-01-02", "2024-01-03", "500", "500", "0")

	png, err := RenderChart(rows)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, pngMagic))
}

func TestRenderChart_TooFewRows(t *testing.T) {
	rows := twoRows("2024-01-02", "2024-01-03", "500", "510", "2")[:1]

	_, err := RenderChart(rows)
	assert.ErrorIs(t, err, models.ErrNotFound)

	_, err = RenderChart(nil)
	assert.ErrorIs(t, err, models.ErrNotFound)
}
