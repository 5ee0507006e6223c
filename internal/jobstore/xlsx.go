package jobstore

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/xuri/excelize/v2"
)

// Workbook is a Table backed by a local .xlsx file. Every write is saved
// immediately so a crash leaves the file consistent with the log.
type Workbook struct {
	mu    sync.Mutex
	file  *excelize.File
	path  string
	sheet string
}

// OpenWorkbook opens path and binds it to sheet, or to the first sheet when
// sheet is empty.
func OpenWorkbook(path, sheet string) (*Workbook, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook %s: %w", path, err)
	}
	if sheet == "" {
		sheet = f.GetSheetName(0)
	}
	if idx, err := f.GetSheetIndex(sheet); err != nil || idx < 0 {
		_ = f.Close()
		return nil, fmt.Errorf("workbook %s has no sheet %q", path, sheet)
	}
	return &Workbook{file: f, path: path, sheet: sheet}, nil
}

// Close releases the workbook.
func (w *Workbook) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.file.Close()
}

// ReadAll returns every row of the sheet.
func (w *Workbook) ReadAll(_ context.Context) ([][]string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	rows, err := w.file.GetRows(w.sheet)
	if err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}
	return rows, nil
}

// UpdateCell writes one cell and saves.
func (w *Workbook) UpdateCell(_ context.Context, a1 string, value any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.file.SetCellValue(w.sheet, a1, value); err != nil {
		return fmt.Errorf("set %s: %w", a1, err)
	}
	return w.save()
}

// BatchUpdate writes every cell, then saves once.
func (w *Workbook) BatchUpdate(_ context.Context, updates []CellUpdate) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, u := range updates {
		if err := w.file.SetCellValue(w.sheet, u.Cell, u.Value); err != nil {
			return fmt.Errorf("set %s: %w", u.Cell, err)
		}
	}
	return w.save()
}

// UpdateRange writes values starting at the first cell of rng.
func (w *Workbook) UpdateRange(_ context.Context, rng string, values []any) error {
	start, _, _ := strings.Cut(rng, ":")
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.file.SetSheetRow(w.sheet, start, &values); err != nil {
		return fmt.Errorf("set row %s: %w", rng, err)
	}
	return w.save()
}

func (w *Workbook) save() error {
	if err := w.file.SaveAs(w.path); err != nil {
		return fmt.Errorf("save workbook %s: %w", w.path, err)
	}
	return nil
}
