package adapters

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/xuri/excelize/v2"

	"github.com/ChuchoCoder/MarketDataExcelUpdater/internal/sheet"
)

// XlsxSink writes cell updates into an .xlsx workbook via excelize. Column
// names are resolved against the sheet's header row; an unknown name is
// created by appending at the end of the header. Names are never interpreted
// as spreadsheet-letter coordinates.
type XlsxSink struct {
	path string

	mu      sync.Mutex
	file    *excelize.File
	columns map[string]map[string]int // sheet -> column name -> 1-based index
}

func NewXlsxSink(path string) *XlsxSink {
	return &XlsxSink{path: path, columns: make(map[string]map[string]int)}
}

func (x *XlsxSink) Open(ctx context.Context) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	created := false
	if _, err := os.Stat(x.path); err == nil {
		f, err := excelize.OpenFile(x.path)
		if err != nil {
			return fmt.Errorf("open workbook %s: %w", x.path, err)
		}
		x.file = f
	} else {
		x.file = excelize.NewFile()
		created = true
	}

	for _, name := range []string{sheet.SheetMarketData, sheet.SheetMetrics} {
		if err := x.ensureSheet(name); err != nil {
			return err
		}
	}

	// Drop excelize's default sheet, but only in a workbook we created; an
	// existing workbook's Sheet1 belongs to the analyst.
	if created {
		if idx, err := x.file.GetSheetIndex("Sheet1"); err == nil && idx >= 0 {
			if err := x.file.DeleteSheet("Sheet1"); err != nil {
				return fmt.Errorf("delete default sheet: %w", err)
			}
		}
	}

	if err := x.file.SaveAs(x.path); err != nil {
		return fmt.Errorf("save workbook %s: %w", x.path, err)
	}
	return nil
}

func (x *XlsxSink) ensureSheet(name string) error {
	idx, err := x.file.GetSheetIndex(name)
	if err != nil {
		return fmt.Errorf("sheet index %s: %w", name, err)
	}
	if idx < 0 {
		if _, err := x.file.NewSheet(name); err != nil {
			return fmt.Errorf("create sheet %s: %w", name, err)
		}
	}
	return x.loadHeader(name)
}

// loadHeader caches the header row's column-name -> index mapping.
func (x *XlsxSink) loadHeader(name string) error {
	rows, err := x.file.GetRows(name)
	if err != nil {
		return fmt.Errorf("read header %s: %w", name, err)
	}
	cols := make(map[string]int)
	if len(rows) > 0 {
		for i, header := range rows[0] {
			if header != "" {
				cols[header] = i + 1
			}
		}
	}
	x.columns[name] = cols
	return nil
}

// resolveColumn returns the 1-based column index for a column name, creating
// the header cell for unknown names by appending at the end.
func (x *XlsxSink) resolveColumn(sheetName, column string) (int, error) {
	cols := x.columns[sheetName]
	if cols == nil {
		cols = make(map[string]int)
		x.columns[sheetName] = cols
	}
	if idx, ok := cols[column]; ok {
		return idx, nil
	}
	idx := 1
	for _, existing := range cols {
		if existing >= idx {
			idx = existing + 1
		}
	}
	cell, err := excelize.CoordinatesToCellName(idx, 1)
	if err != nil {
		return 0, err
	}
	if err := x.file.SetCellValue(sheetName, cell, column); err != nil {
		return 0, fmt.Errorf("write header %s.%s: %w", sheetName, column, err)
	}
	cols[column] = idx
	return idx, nil
}

func (x *XlsxSink) WriteBatch(ctx context.Context, batch []sheet.CellUpdate) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.file == nil {
		return fmt.Errorf("workbook not open")
	}

	for _, u := range batch {
		col, err := x.resolveColumn(u.Address.Sheet, u.Address.Column)
		if err != nil {
			return err
		}
		cell, err := excelize.CoordinatesToCellName(col, u.Address.Row)
		if err != nil {
			return err
		}
		if u.Value.Kind == sheet.KindAbsent {
			if err := x.file.SetCellValue(u.Address.Sheet, cell, ""); err != nil {
				return fmt.Errorf("clear %s!%s: %w", u.Address.Sheet, cell, err)
			}
			continue
		}
		if err := x.file.SetCellValue(u.Address.Sheet, cell, u.Value.Interface()); err != nil {
			return fmt.Errorf("write %s!%s: %w", u.Address.Sheet, cell, err)
		}
	}
	return nil
}

func (x *XlsxSink) Flush(ctx context.Context) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.file == nil {
		return fmt.Errorf("workbook not open")
	}
	if err := x.file.Save(); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	return nil
}

func (x *XlsxSink) Close(ctx context.Context) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.file == nil {
		return nil
	}
	if err := x.file.Save(); err != nil {
		_ = x.file.Close()
		return fmt.Errorf("save workbook on close: %w", err)
	}
	err := x.file.Close()
	x.file = nil
	return err
}
