package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/xuri/excelize/v2"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Writer persists a Summary.
type Writer interface {
	Write(summary *Summary) error
}

// WriterFactory creates report writers based on format
type WriterFactory struct{}

// NewWriterFactory creates a new WriterFactory
func NewWriterFactory() *WriterFactory {
	return &WriterFactory{}
}

// Formats lists the supported report formats.
var Formats = []string{"xlsx", "json", "csv"}

// Create returns a writer for format that writes to outputPath.
func (wf *WriterFactory) Create(outputPath, format string) (Writer, error) {
	if strings.TrimSpace(outputPath) == "" {
		return nil, fmt.Errorf("output path cannot be empty")
	}
	if dir := filepath.Dir(outputPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create output directory %s: %w", dir, err)
		}
	}

	switch strings.ToLower(format) {
	case "xlsx":
		return &XLSXWriter{path: outputPath}, nil
	case "json":
		return &JSONWriter{path: outputPath}, nil
	case "csv":
		return &CSVWriter{path: outputPath}, nil
	default:
		return nil, fmt.Errorf("unsupported report format: %s", format)
	}
}

// XLSXWriter writes a workbook with a results sheet and a summary sheet.
type XLSXWriter struct {
	path string
}

const (
	resultsSheet = "Resultados"
	summarySheet = "Resumo"
)

var itemHeader = []string{"#", "CNPJ", "Empresa", "Status", "Duração", "Erro"}

func (w *XLSXWriter) Write(summary *Summary) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), resultsSheet); err != nil {
		return fmt.Errorf("failed to rename sheet: %w", err)
	}

	header := make([]any, len(itemHeader))
	for i, h := range itemHeader {
		header[i] = h
	}
	if err := f.SetSheetRow(resultsSheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for i, item := range summary.Items {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []any{item.Index, item.CNPJ, item.Company, item.Status, item.Duration, item.Error}
		if err := f.SetSheetRow(resultsSheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	if _, err := f.NewSheet(summarySheet); err != nil {
		return fmt.Errorf("failed to create summary sheet: %w", err)
	}
	summaryRows := [][]any{
		{"Execução", summary.RunID},
		{"Data", summary.Timestamp.Format("2006-01-02 15:04:05")},
		{"Total", summary.Total},
		{"Sucessos", summary.SuccessCount},
		{"Falhas", summary.FailureCount},
		{"Erros inesperados", summary.FaultCount},
		{"Tempo total", summary.ExecutionTime},
		{"Latência p50 (ms)", summary.Latency.P50},
		{"Latência p90 (ms)", summary.Latency.P90},
		{"Latência máx (ms)", summary.Latency.Max},
	}
	for i, row := range summaryRows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(summarySheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write summary row: %w", err)
		}
	}

	if err := f.SaveAs(w.path); err != nil {
		return fmt.Errorf("failed to save workbook %s: %w", w.path, err)
	}
	return nil
}

// JSONWriter writes the summary as indented JSON.
type JSONWriter struct {
	path string
}

func (w *JSONWriter) Write(summary *Summary) error {
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal summary: %w", err)
	}
	if err := os.WriteFile(w.path, data, 0644); err != nil {
		return fmt.Errorf("failed to write JSON report %s: %w", w.path, err)
	}
	return nil
}

// CSVWriter writes one row per identifier.
type CSVWriter struct {
	path string
}

func (w *CSVWriter) Write(summary *Summary) error {
	file, err := os.Create(w.path)
	if err != nil {
		return fmt.Errorf("failed to create CSV report %s: %w", w.path, err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write([]string{"index", "cnpj", "company", "status", "duration", "error"}); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, item := range summary.Items {
		record := []string{strconv.Itoa(item.Index), item.CNPJ, item.Company, item.Status, item.Duration, item.Error}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write CSV record: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("failed to flush CSV report: %w", err)
	}
	return file.Close()
}

// Path returns the conventional report path for format inside dir.
func Path(dir, format string) string {
	return filepath.Join(dir, "relatorio."+strings.ToLower(format))
}
