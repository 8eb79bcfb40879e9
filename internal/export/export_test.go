package export

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lasersell/lasersell/internal/storage/models"
)

var base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func testSells() []*models.Sell {
	mk := func(offset time.Duration, mint, sig, reason string, attempts int, bps uint16) *models.Sell {
		s := &models.Sell{
			Mint:        mint,
			Signature:   sig,
			Reason:      reason,
			Attempts:    attempts,
			SlippageBps: bps,
			SlippagePct: decimal.New(int64(bps), -2),
		}
		s.CreatedAt = base.Add(offset)
		return s
	}
	return []*models.Sell{
		mk(2*time.Hour, "MintBBBBBBBBBB", "sig-3", "stop_loss", 1, 2000),
		mk(0, "MintAAAAAAAAAA", "sig-1", "target_profit", 1, 2000),
		mk(time.Hour, "MintAAAAAAAAAA", "sig-2", "target_profit", 3, 2060),
	}
}

func newExporter() *SellExporter {
	e := NewSellExporter(zap.NewNop())
	e.now = func() time.Time { return base }
	return e
}

func TestExport_CSV(t *testing.T) {
	dir := t.TempDir()
	path, err := newExporter().Export(testSells(), Options{Format: FormatCSV, OutputDir: dir})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "sells_all_20260301_120000.csv"), path)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)

	require.Len(t, rows, 4)
	assert.Equal(t, csvHeaders, rows[0])
	assert.Equal(t, "sig-1", rows[1][2])
	assert.Equal(t, "sig-3", rows[3][2])
	assert.Equal(t, "20.6", rows[2][6])
}

func TestExport_JSONSummary(t *testing.T) {
	path, err := newExporter().Export(testSells(), Options{Format: FormatJSON, OutputDir: t.TempDir()})
	require.NoError(t, err)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	var body struct {
		Summary Summary        `json:"summary"`
		Sells   []*models.Sell `json:"sells"`
	}
	require.NoError(t, json.Unmarshal(raw, &body))
	assert.Equal(t, 3, body.Summary.TotalSells)
	assert.Equal(t, 2, body.Summary.UniqueMints)
	assert.Equal(t, 1, body.Summary.RetriedSells)
	assert.Equal(t, map[string]int{"target_profit": 2, "stop_loss": 1}, body.Summary.ByReason)
	assert.True(t, body.Summary.MaxSlippagePct.Equal(decimal.RequireFromString("20.6")))
	assert.True(t, body.Summary.AvgSlippagePct.Equal(decimal.RequireFromString("20.2")))
	require.Len(t, body.Sells, 3)
	assert.Equal(t, "sig-1", body.Sells[0].Signature)
}

func TestExport_Filters(t *testing.T) {
	tests := []struct {
		name    string
		options Options
		want    []string
	}{
		{"by reason", Options{Reason: "stop_loss"}, []string{"sig-3"}},
		{"by mint", Options{Mint: "MintAAAAAAAAAA"}, []string{"sig-1", "sig-2"}},
		{"by window", Options{StartTime: base.Add(30 * time.Minute), EndTime: base.Add(90 * time.Minute)}, []string{"sig-2"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []string
			for _, s := range filterSells(testSells(), tt.options) {
				got = append(got, s.Signature)
			}
			assert.ElementsMatch(t, tt.want, got)
		})
	}
}

func TestExport_NoMatches(t *testing.T) {
	_, err := newExporter().Export(testSells(), Options{Format: FormatCSV, Reason: "manual", OutputDir: t.TempDir()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no sells match")
}

func TestExport_FilenameCarriesFilters(t *testing.T) {
	name := newExporter().filename(Options{Format: FormatJSON, Reason: "stop_loss", Mint: "MintBBBBBBBBBB"})
	assert.True(t, strings.HasPrefix(name, "sells_stop_loss_MintBBBB_"))
	assert.True(t, strings.HasSuffix(name, ".json"))
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("csv")
	require.NoError(t, err)
	assert.Equal(t, FormatCSV, f)

	_, err = ParseFormat("xlsx")
	assert.Error(t, err)
}

func TestSummarize_Empty(t *testing.T) {
	s := Summarize(nil)
	assert.Zero(t, s.TotalSells)
	assert.NotNil(t, s.ByReason)
}
