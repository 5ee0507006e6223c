package jobstore

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/time/rate"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/TrackerIA/new-grading-vawa/internal/retry"
)

const valueInputOption = "USER_ENTERED"

// Sheets allows 60 requests per minute per user.
const (
	sheetsRPS   = 1.0
	sheetsBurst = 5
)

// SheetsTable is a Table backed by one tab of a Google spreadsheet.
type SheetsTable struct {
	svc           *sheets.Service
	spreadsheetID string
	sheetName     string
	limiter       *rate.Limiter
	policy        retry.Policy
}

// NewSheetsTable creates a Sheets client for spreadsheetID and binds it to
// the named tab.
func NewSheetsTable(ctx context.Context, spreadsheetID, sheetName string, policy retry.Policy, opts ...option.ClientOption) (*SheetsTable, error) {
	svc, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return &SheetsTable{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
		limiter:       rate.NewLimiter(rate.Limit(sheetsRPS), sheetsBurst),
		policy:        policy,
	}, nil
}

// qualify prefixes an A1 reference with the quoted tab name.
func (t *SheetsTable) qualify(a1 string) string {
	name := "'" + strings.ReplaceAll(t.sheetName, "'", "''") + "'"
	if a1 == "" {
		return name
	}
	return name + "!" + a1
}

func (t *SheetsTable) do(ctx context.Context, name string, op func(ctx context.Context) error) error {
	return t.policy.With(name).Do(ctx, func(ctx context.Context) error {
		if err := t.limiter.Wait(ctx); err != nil {
			return err
		}
		return op(ctx)
	})
}

// ReadAll reads every populated row of the tab.
func (t *SheetsTable) ReadAll(ctx context.Context) ([][]string, error) {
	var rows [][]string
	err := t.do(ctx, "sheets.read", func(ctx context.Context) error {
		resp, err := t.svc.Spreadsheets.Values.Get(t.spreadsheetID, t.qualify("")).Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("get values: %w", err)
		}
		rows = make([][]string, len(resp.Values))
		for i, r := range resp.Values {
			row := make([]string, len(r))
			for j, v := range r {
				row[j] = fmt.Sprint(v)
			}
			rows[i] = row
		}
		return nil
	})
	return rows, err
}

// UpdateCell writes a single cell.
func (t *SheetsTable) UpdateCell(ctx context.Context, a1 string, value any) error {
	return t.UpdateRange(ctx, a1, []any{value})
}

// UpdateRange writes one row of values into rng.
func (t *SheetsTable) UpdateRange(ctx context.Context, rng string, values []any) error {
	vr := &sheets.ValueRange{Values: [][]interface{}{values}}
	return t.do(ctx, "sheets.update", func(ctx context.Context) error {
		_, err := t.svc.Spreadsheets.Values.Update(t.spreadsheetID, t.qualify(rng), vr).
			ValueInputOption(valueInputOption).
			Context(ctx).
			Do()
		if err != nil {
			return fmt.Errorf("update %s: %w", rng, err)
		}
		return nil
	})
}

// BatchUpdate writes several cells in one values:batchUpdate call.
func (t *SheetsTable) BatchUpdate(ctx context.Context, updates []CellUpdate) error {
	req := &sheets.BatchUpdateValuesRequest{ValueInputOption: valueInputOption}
	for _, u := range updates {
		req.Data = append(req.Data, &sheets.ValueRange{
			Range:  t.qualify(u.Cell),
			Values: [][]interface{}{{u.Value}},
		})
	}
	return t.do(ctx, "sheets.batch_update", func(ctx context.Context) error {
		if _, err := t.svc.Spreadsheets.Values.BatchUpdate(t.spreadsheetID, req).Context(ctx).Do(); err != nil {
			return fmt.Errorf("batch update: %w", err)
		}
		return nil
	})
}
