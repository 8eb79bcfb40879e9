package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/lasersell/lasersell/internal/storage/models"
)

// Format represents the export file format
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

func ParseFormat(raw string) (Format, error) {
	switch Format(raw) {
	case FormatCSV, FormatJSON:
		return Format(raw), nil
	default:
		return "", fmt.Errorf("unsupported export format %q (want csv or json)", raw)
	}
}

// Options configures the export behavior
type Options struct {
	Format    Format
	StartTime time.Time
	EndTime   time.Time
	Mint      string
	Reason    string
	OutputDir string
}

// Summary aggregates the exported sells.
type Summary struct {
	TotalSells     int             `json:"total_sells"`
	UniqueMints    int             `json:"unique_mints"`
	ByReason       map[string]int  `json:"by_reason"`
	RetriedSells   int             `json:"retried_sells"`
	AvgSlippagePct decimal.Decimal `json:"avg_slippage_pct"`
	MaxSlippagePct decimal.Decimal `json:"max_slippage_pct"`
	StartDate      time.Time       `json:"start_date"`
	EndDate        time.Time       `json:"end_date"`
}

var csvHeaders = []string{
	"created_at", "mint", "signature", "reason", "attempts", "slippage_bps", "slippage_pct",
}

// SellExporter writes journal sells to disk.
type SellExporter struct {
	logger *zap.Logger
	now    func() time.Time
}

func NewSellExporter(logger *zap.Logger) *SellExporter {
	return &SellExporter{logger: logger, now: time.Now}
}

// Export filters, sorts oldest first, and writes the sells. It returns the
// path of the written file.
func (e *SellExporter) Export(sells []*models.Sell, options Options) (string, error) {
	filtered := filterSells(sells, options)
	if len(filtered) == 0 {
		return "", fmt.Errorf("no sells match the export criteria")
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].CreatedAt.Before(filtered[j].CreatedAt)
	})

	if options.OutputDir == "" {
		options.OutputDir = "."
	}
	if err := os.MkdirAll(options.OutputDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	outputPath := filepath.Join(options.OutputDir, e.filename(options))

	var err error
	switch options.Format {
	case FormatCSV:
		err = writeCSV(filtered, outputPath)
	case FormatJSON:
		err = writeJSON(filtered, outputPath, e.now())
	default:
		err = fmt.Errorf("unsupported format: %s", options.Format)
	}
	if err != nil {
		return "", err
	}

	e.logger.Info("📦 Sells exported",
		zap.String("file", outputPath),
		zap.Int("count", len(filtered)),
		zap.String("format", string(options.Format)))
	return outputPath, nil
}

func filterSells(sells []*models.Sell, options Options) []*models.Sell {
	var filtered []*models.Sell
	for _, s := range sells {
		if s == nil {
			continue
		}
		if !options.StartTime.IsZero() && s.CreatedAt.Before(options.StartTime) {
			continue
		}
		if !options.EndTime.IsZero() && s.CreatedAt.After(options.EndTime) {
			continue
		}
		if options.Mint != "" && s.Mint != options.Mint {
			continue
		}
		if options.Reason != "" && s.Reason != options.Reason {
			continue
		}
		filtered = append(filtered, s)
	}
	return filtered
}

func (e *SellExporter) filename(options Options) string {
	prefix := "sells_all"
	if options.Reason != "" {
		prefix = "sells_" + options.Reason
	}
	if len(options.Mint) >= 8 {
		prefix += "_" + options.Mint[:8]
	}
	return fmt.Sprintf("%s_%s.%s", prefix, e.now().Format("20060102_150405"), options.Format)
}

func writeCSV(sells []*models.Sell, outputPath string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(csvHeaders); err != nil {
		return fmt.Errorf("failed to write CSV headers: %w", err)
	}
	for _, s := range sells {
		row := []string{
			s.CreatedAt.UTC().Format(time.RFC3339),
			s.Mint,
			s.Signature,
			s.Reason,
			strconv.Itoa(s.Attempts),
			strconv.Itoa(int(s.SlippageBps)),
			s.SlippagePct.String(),
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write sell: %w", err)
		}
	}
	writer.Flush()
	return writer.Error()
}

func writeJSON(sells []*models.Sell, outputPath string, now time.Time) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create JSON file: %w", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")

	exportData := struct {
		ExportTime time.Time      `json:"export_time"`
		Summary    Summary        `json:"summary"`
		Sells      []*models.Sell `json:"sells"`
	}{
		ExportTime: now,
		Summary:    Summarize(sells),
		Sells:      sells,
	}
	if err := encoder.Encode(exportData); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

// Summarize expects sells sorted oldest first.
func Summarize(sells []*models.Sell) Summary {
	summary := Summary{
		TotalSells: len(sells),
		ByReason:   make(map[string]int),
	}
	if len(sells) == 0 {
		return summary
	}

	summary.StartDate = sells[0].CreatedAt
	summary.EndDate = sells[len(sells)-1].CreatedAt

	mints := make(map[string]struct{})
	total := decimal.Zero
	for _, s := range sells {
		mints[s.Mint] = struct{}{}
		summary.ByReason[s.Reason]++
		if s.Attempts > 1 {
			summary.RetriedSells++
		}
		total = total.Add(s.SlippagePct)
		if s.SlippagePct.GreaterThan(summary.MaxSlippagePct) {
			summary.MaxSlippagePct = s.SlippagePct
		}
	}
	summary.UniqueMints = len(mints)
	summary.AvgSlippagePct = total.Div(decimal.NewFromInt(int64(len(sells)))).Round(4)
	return summary
}
