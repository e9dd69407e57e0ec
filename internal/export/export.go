// Package export writes benchmark records to the result files: one CSV per
// strategy, a combined workbook and an aggregate YAML report.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/localrivet/summbench/internal/schema"
)

// File names inside the results directory.
const (
	WorkbookFile = "benchmark_results.xlsx"
	ReportFile   = "report.yaml"
)

// CSVFile returns the per-strategy CSV file name.
func CSVFile(strategy schema.Strategy) string {
	return fmt.Sprintf("results_%s.csv", strategy)
}

// Paths lists the files written by WriteAll.
type Paths struct {
	CSV      map[schema.Strategy]string
	Workbook string
	Report   string
}

// Writer writes result files into a directory.
type Writer struct {
	dir    string
	logger *slog.Logger
}

// New creates a Writer for dir. The directory is created on first write.
func New(dir string, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{dir: dir, logger: logger.With("component", "export")}
}

// Dir returns the results directory.
func (w *Writer) Dir() string {
	return w.dir
}

// WriteAll writes every result file for a finished run. A CSV is written for
// each strategy even when it produced no records.
func (w *Writer) WriteAll(runID string, strategies []schema.Strategy, records []schema.ResultRecord) (*Paths, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create results dir: %w", err)
	}

	groups := GroupByStrategy(records)
	paths := &Paths{CSV: make(map[schema.Strategy]string, len(strategies))}

	for _, strategy := range strategies {
		path := filepath.Join(w.dir, CSVFile(strategy))
		if err := writeCSVFile(path, groups[strategy]); err != nil {
			return nil, err
		}
		paths.CSV[strategy] = path
	}

	paths.Workbook = filepath.Join(w.dir, WorkbookFile)
	hasData, err := WriteWorkbook(paths.Workbook, strategies, groups)
	if err != nil {
		return nil, err
	}
	if !hasData {
		w.logger.Warn("No data found to write to workbook", "path", paths.Workbook)
	}

	paths.Report = filepath.Join(w.dir, ReportFile)
	if err := WriteReport(paths.Report, BuildReport(runID, strategies, records)); err != nil {
		return nil, err
	}

	w.logger.Info("Results saved", "dir", w.dir, "records", len(records))
	return paths, nil
}

// GroupByStrategy splits records by strategy, keeping their order.
func GroupByStrategy(records []schema.ResultRecord) map[schema.Strategy][]schema.ResultRecord {
	groups := make(map[schema.Strategy][]schema.ResultRecord)
	for _, rec := range records {
		groups[rec.Strategy] = append(groups[rec.Strategy], rec)
	}
	return groups
}

// WriteCSV writes a header row and one row per record in ResultColumns order.
func WriteCSV(out io.Writer, records []schema.ResultRecord) error {
	writer := csv.NewWriter(out)
	if err := writer.Write(schema.ResultColumns); err != nil {
		return fmt.Errorf("write CSV header: %w", err)
	}
	for _, rec := range records {
		if err := writer.Write(rec.Row()); err != nil {
			return fmt.Errorf("write CSV row: %w", err)
		}
	}
	writer.Flush()
	return writer.Error()
}

func writeCSVFile(path string, records []schema.ResultRecord) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = cerr
		}
	}()
	return WriteCSV(f, records)
}
