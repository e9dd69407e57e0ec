package export

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/localrivet/summbench/internal/schema"
)

// Placeholder sheet written when no strategy produced records.
const (
	NoDataSheet   = "No Data"
	NoDataHeader  = "Info"
	NoDataMessage = "No results generated"
)

// WriteWorkbook writes one sheet per strategy that has records. When none has,
// the workbook holds a single placeholder sheet and hasData is false.
func WriteWorkbook(path string, strategies []schema.Strategy, groups map[schema.Strategy][]schema.ResultRecord) (hasData bool, err error) {
	f := excelize.NewFile()
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = cerr
		}
	}()

	const defaultSheet = "Sheet1"
	for _, strategy := range strategies {
		records := groups[strategy]
		if len(records) == 0 {
			continue
		}
		if err := writeSheet(f, string(strategy), records); err != nil {
			return false, err
		}
		hasData = true
	}

	if !hasData {
		if _, err := f.NewSheet(NoDataSheet); err != nil {
			return false, fmt.Errorf("create sheet: %w", err)
		}
		if err := f.SetSheetRow(NoDataSheet, "A1", &[]any{NoDataHeader}); err != nil {
			return false, err
		}
		if err := f.SetSheetRow(NoDataSheet, "A2", &[]any{NoDataMessage}); err != nil {
			return false, err
		}
	}

	if err := f.DeleteSheet(defaultSheet); err != nil {
		return false, fmt.Errorf("remove default sheet: %w", err)
	}
	f.SetActiveSheet(0)

	if err := f.SaveAs(path); err != nil {
		return false, fmt.Errorf("save workbook %s: %w", path, err)
	}
	return hasData, nil
}

func writeSheet(f *excelize.File, sheet string, records []schema.ResultRecord) error {
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("create sheet %s: %w", sheet, err)
	}

	header := make([]any, len(schema.ResultColumns))
	for i, col := range schema.ResultColumns {
		header[i] = col
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("write header of %s: %w", sheet, err)
	}

	for i, rec := range records {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		values := rec.Values()
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return fmt.Errorf("write row %d of %s: %w", i+1, sheet, err)
		}
	}
	return nil
}
