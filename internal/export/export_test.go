// internal/export/export_test.go
package export

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/rovshanmuradov/solana-autotrader/internal/storage/models"
)

var day = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

func testSales() []models.SoldPosition {
	return []models.SoldPosition{
		{Address: "MintBBBBBBBBB", Symbol: "BBB", Name: "B", ProfitLossPercent: -30.5, SoldAt: day.Add(3 * time.Hour)},
		{Address: "MintAAAAAAAAA", Symbol: "AAA", Name: "A", ProfitLossPercent: 42, SoldAt: day.Add(time.Hour)},
		{Address: "MintCCCCCCCCC", Symbol: "CCC", Name: "C", ProfitLossPercent: 0, SoldAt: day.Add(26 * time.Hour)},
	}
}

func newTestExporter(t *testing.T) *Exporter {
	e := NewExporter(zaptest.NewLogger(t))
	e.now = func() time.Time { return day.Add(48 * time.Hour) }
	return e
}

func TestExport_CSV(t *testing.T) {
	e := newTestExporter(t)
	path, err := e.Export(testSales(), Options{Format: FormatCSV, OutputDir: t.TempDir()})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(path, "sold_positions_20240603_000000.csv"))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)

	require.Len(t, rows, 4)
	assert.Equal(t, csvHeaders, rows[0])
	assert.Equal(t, []string{"MintAAAAAAAAA", "AAA", "A", "42.00", "2024-06-01T01:00:00Z"}, rows[1])
	assert.Equal(t, "-30.50", rows[2][3])
}

func TestExport_JSONWithFilter(t *testing.T) {
	e := newTestExporter(t)
	path, err := e.Export(testSales(), Options{
		Format:    FormatJSON,
		OutputDir: t.TempDir(),
		EndTime:   day.Add(24 * time.Hour),
	})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var out struct {
		Summary Summary               `json:"summary"`
		Sales   []models.SoldPosition `json:"sales"`
	}
	require.NoError(t, json.Unmarshal(data, &out))

	require.Len(t, out.Sales, 2)
	assert.Equal(t, "AAA", out.Sales[0].Symbol)
	assert.Equal(t, 2, out.Summary.TotalSales)
	assert.Equal(t, 1, out.Summary.WinCount)
	assert.Equal(t, 1, out.Summary.LossCount)
}

func TestExport_Errors(t *testing.T) {
	e := newTestExporter(t)

	_, err := e.Export(testSales(), Options{Format: FormatCSV, OutputDir: t.TempDir(), TokenFilter: "unknown"})
	assert.ErrorIs(t, err, ErrNothingToExport)

	_, err = e.Export(testSales(), Options{Format: "xml", OutputDir: t.TempDir()})
	assert.ErrorContains(t, err, "unsupported format")
}

func TestSummarize(t *testing.T) {
	sales := testSales()
	sales[0], sales[1] = sales[1], sales[0] // по времени продажи

	s := Summarize(sales)
	assert.Equal(t, 3, s.TotalSales)
	assert.Equal(t, 3, s.UniqueTokens)
	assert.Equal(t, 1, s.WinCount)
	assert.Equal(t, 1, s.LossCount)
	assert.InDelta(t, 33.333, s.WinRate, 0.01)
	assert.InDelta(t, 11.5, s.TotalPnL, 1e-9)
	assert.Equal(t, 42.0, s.BestPnL)
	assert.Equal(t, -30.5, s.WorstPnL)
	assert.Equal(t, day.Add(time.Hour), s.StartDate)
	assert.Equal(t, day.Add(26*time.Hour), s.EndDate)

	assert.Equal(t, Summary{}, Summarize(nil))
}
