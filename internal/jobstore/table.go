package jobstore

import "context"

// CellUpdate is one value written to a single A1 cell, e.g. "C7".
type CellUpdate struct {
	Cell  string
	Value any
}

// Table is the spreadsheet the queue lives in. Cells and ranges use A1
// notation without a sheet prefix; implementations add it.
type Table interface {
	// ReadAll returns every row of the sheet, header included. Rows may be
	// shorter than the widest row when trailing cells are empty.
	ReadAll(ctx context.Context) ([][]string, error)

	UpdateCell(ctx context.Context, cell string, value any) error

	// BatchUpdate writes several cells in one request.
	BatchUpdate(ctx context.Context, updates []CellUpdate) error

	// UpdateRange writes values left to right into a single-row range
	// such as "K7:R7".
	UpdateRange(ctx context.Context, rng string, values []any) error
}
