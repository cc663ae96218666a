// internal/export/export.go
package export

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/rovshanmuradov/solana-autotrader/internal/storage/models"
)

// Format - формат файла выгрузки
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

var ErrNothingToExport = errors.New("no sold positions match the export criteria")

// Options настраивает выгрузку истории продаж
type Options struct {
	Format      Format
	StartTime   time.Time
	EndTime     time.Time
	TokenFilter string // адрес минта
	OutputDir   string
}

// Summary - сводка по выгруженным продажам
type Summary struct {
	TotalSales   int       `json:"total_sales"`
	UniqueTokens int       `json:"unique_tokens"`
	WinCount     int       `json:"win_count"`
	LossCount    int       `json:"loss_count"`
	WinRate      float64   `json:"win_rate"`
	TotalPnL     float64   `json:"total_pnl"`
	AvgPnL       float64   `json:"avg_pnl"`
	BestPnL      float64   `json:"best_pnl"`
	WorstPnL     float64   `json:"worst_pnl"`
	StartDate    time.Time `json:"start_date"`
	EndDate      time.Time `json:"end_date"`
}

// Exporter выгружает историю продаж в CSV или JSON
type Exporter struct {
	logger *zap.Logger
	now    func() time.Time
}

func NewExporter(logger *zap.Logger) *Exporter {
	return &Exporter{
		logger: logger.Named("export"),
		now:    time.Now,
	}
}

// Export пишет отфильтрованные продажи (по времени продажи) и возвращает путь к файлу
func (e *Exporter) Export(sold []models.SoldPosition, opts Options) (string, error) {
	filtered := filter(sold, opts)
	if len(filtered) == 0 {
		return "", ErrNothingToExport
	}
	sort.Slice(filtered, func(i, j int) bool {
		return filtered[i].SoldAt.Before(filtered[j].SoldAt)
	})

	if opts.OutputDir == "" {
		opts.OutputDir = "."
	}
	if err := os.MkdirAll(opts.OutputDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	outputPath := filepath.Join(opts.OutputDir, e.filename(opts))

	var err error
	switch opts.Format {
	case FormatCSV:
		err = writeCSV(filtered, outputPath)
	case FormatJSON:
		err = e.writeJSON(filtered, outputPath)
	default:
		err = fmt.Errorf("unsupported format: %s", opts.Format)
	}
	if err != nil {
		return "", err
	}

	e.logger.Info("Sold positions exported",
		zap.String("file", outputPath),
		zap.Int("count", len(filtered)),
		zap.String("format", string(opts.Format)))
	return outputPath, nil
}

func filter(sold []models.SoldPosition, opts Options) []models.SoldPosition {
	var out []models.SoldPosition
	for _, s := range sold {
		if !opts.StartTime.IsZero() && s.SoldAt.Before(opts.StartTime) {
			continue
		}
		if !opts.EndTime.IsZero() && s.SoldAt.After(opts.EndTime) {
			continue
		}
		if opts.TokenFilter != "" && s.Address != opts.TokenFilter {
			continue
		}
		out = append(out, s)
	}
	return out
}

func (e *Exporter) filename(opts Options) string {
	prefix := "sold_positions"
	if len(opts.TokenFilter) >= 8 {
		prefix += "_" + opts.TokenFilter[:8]
	}
	return fmt.Sprintf("%s_%s.%s", prefix, e.now().Format("20060102_150405"), opts.Format)
}

var csvHeaders = []string{"address", "symbol", "name", "profit_loss_percent", "sold_at"}

func writeCSV(sold []models.SoldPosition, path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %w", err)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	if err := w.Write(csvHeaders); err != nil {
		return fmt.Errorf("failed to write CSV headers: %w", err)
	}
	for _, s := range sold {
		row := []string{
			s.Address,
			s.Symbol,
			s.Name,
			strconv.FormatFloat(s.ProfitLossPercent, 'f', 2, 64),
			s.SoldAt.UTC().Format(time.RFC3339),
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("failed to write sold position: %w", err)
		}
	}
	w.Flush()
	return w.Error()
}

func (e *Exporter) writeJSON(sold []models.SoldPosition, path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create JSON file: %w", err)
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	data := struct {
		ExportTime time.Time             `json:"export_time"`
		Summary    Summary               `json:"summary"`
		Sales      []models.SoldPosition `json:"sales"`
	}{
		ExportTime: e.now().UTC(),
		Summary:    Summarize(sold),
		Sales:      sold,
	}
	if err := enc.Encode(data); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

// Summarize считает статистику; продажи должны быть упорядочены по SoldAt
func Summarize(sold []models.SoldPosition) Summary {
	s := Summary{TotalSales: len(sold)}
	if len(sold) == 0 {
		return s
	}

	s.StartDate = sold[0].SoldAt
	s.EndDate = sold[len(sold)-1].SoldAt
	s.BestPnL = sold[0].ProfitLossPercent
	s.WorstPnL = sold[0].ProfitLossPercent

	tokens := make(map[string]struct{})
	for _, p := range sold {
		tokens[p.Address] = struct{}{}
		s.TotalPnL += p.ProfitLossPercent
		switch {
		case p.ProfitLossPercent > 0:
			s.WinCount++
		case p.ProfitLossPercent < 0:
			s.LossCount++
		}
		if p.ProfitLossPercent > s.BestPnL {
			s.BestPnL = p.ProfitLossPercent
		}
		if p.ProfitLossPercent < s.WorstPnL {
			s.WorstPnL = p.ProfitLossPercent
		}
	}

	s.UniqueTokens = len(tokens)
	s.WinRate = float64(s.WinCount) / float64(s.TotalSales) * 100
	s.AvgPnL = s.TotalPnL / float64(s.TotalSales)
	return s
}
