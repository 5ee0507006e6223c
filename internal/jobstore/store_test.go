package jobstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TrackerIA/new-grading-vawa/internal/grading"
)

// memTable records writes against an in-memory grid.
type memTable struct {
	rows        [][]string
	cells       map[string]any
	ranges      map[string][]any
	batches     [][]CellUpdate
	readErr     error
	rangeErr    error
	updateCalls []string
}

func newMemTable(rows [][]string) *memTable {
	return &memTable{rows: rows, cells: map[string]any{}, ranges: map[string][]any{}}
}

func (m *memTable) ReadAll(context.Context) ([][]string, error) {
	return m.rows, m.readErr
}

func (m *memTable) UpdateCell(_ context.Context, a1 string, value any) error {
	m.updateCalls = append(m.updateCalls, a1)
	m.cells[a1] = value
	return nil
}

func (m *memTable) BatchUpdate(_ context.Context, updates []CellUpdate) error {
	m.batches = append(m.batches, updates)
	for _, u := range updates {
		m.cells[u.Cell] = u.Value
	}
	return nil
}

func (m *memTable) UpdateRange(_ context.Context, rng string, values []any) error {
	if m.rangeErr != nil {
		return m.rangeErr
	}
	m.ranges[rng] = values
	return nil
}

var header = []string{"ID", "Cliente", "Status", "Caratula", "Transcript", "Evidencias", "DAIR", "FAIR", "RapSheet", "Summary"}

func TestGetReadyJobs(t *testing.T) {
	table := newMemTable([][]string{
		header,
		{"42", "Ana Perez", "PENDING PROCESSING", "", "https://docs.google.com/document/d/T1/edit", "", "", "", "", "https://drive.google.com/file/d/S1/view"},
		{"43", "Luis Gomez", "COMPLETED", "", "t", "", "", "", "", "s"},
		{"44", "Sin Summary", " PENDING PROCESSING ", "", "https://docs.google.com/document/d/T2/edit"},
		{"45"},
		{"46", " Maria  Ruiz ", "PENDING PROCESSING", "car", "T3xxxxxxxxxxxxxxxxxxxxx", "", "", "", "", "S3xxxxxxxxxxxxxxxxxxxxx"},
	})
	s := New(table, "v1.0.0")

	jobs, err := s.GetReadyJobs(context.Background())
	require.NoError(t, err)
	require.Len(t, jobs, 2)

	assert.Equal(t, 2, jobs[0].RowIndex)
	assert.Equal(t, "42", jobs[0].ClientID)
	assert.Equal(t, "Ana Perez", jobs[0].ClientName)
	assert.Equal(t, "https://drive.google.com/file/d/S1/view", jobs[0].Link(grading.RoleSummary))
	assert.Equal(t, 6, jobs[1].RowIndex)
	assert.Equal(t, " Maria  Ruiz ", jobs[1].ClientName, "client name is copied verbatim")
	assert.Equal(t, "car", jobs[1].Link(grading.RoleCaratula))

	assert.Equal(t, string(grading.StatusMainLinkMissing), table.cells["C4"])
	assert.Equal(t, []string{"C4"}, table.updateCalls)
}

func TestGetReadyJobs_ReadError(t *testing.T) {
	table := newMemTable(nil)
	table.readErr = errors.New("quota")

	_, err := New(table, "v1").GetReadyJobs(context.Background())
	assert.ErrorContains(t, err, "quota")
}

func TestMarkStarted(t *testing.T) {
	start := time.Date(2026, 3, 4, 9, 15, 0, 0, time.Local)
	table := newMemTable(nil)
	s := New(table, "v1", WithClock(func() time.Time { return start }))

	job := &grading.Job{RowIndex: 7}
	s.MarkStarted(context.Background(), job)

	require.Len(t, table.batches, 1)
	assert.Equal(t, []CellUpdate{
		{Cell: "C7", Value: "PROCESSING"},
		{Cell: "P7", Value: "2026-03-04 09:15:00"},
	}, table.batches[0])
	assert.Equal(t, start, job.StartedAt)
}

func TestWriteResult(t *testing.T) {
	start := time.Date(2026, 3, 4, 9, 0, 0, 0, time.Local)
	end := start.Add(7*time.Minute + 30*time.Second)
	table := newMemTable(nil)
	s := New(table, "v1.0.0", WithClock(func() time.Time { return end }))

	job := &grading.Job{RowIndex: 3, ClientName: "Ana", StartedAt: start}
	s.WriteResult(context.Background(), job, grading.Outcome{
		DeliverableRef: "https://drive/x",
		TokensIn:       1500,
		TokensOut:      400,
	})

	assert.Equal(t, []any{
		"https://drive/x", "", 1500, 400, "v1.0.0",
		"2026-03-04 09:00:00", "2026-03-04 09:07:30", 7.5,
	}, table.ranges["K3:R3"])
	assert.Equal(t, "COMPLETED", table.cells["C3"])
	assert.Equal(t, grading.StatusCompleted, job.Status)
}

func TestWriteResult_FailureMarksErrorSaving(t *testing.T) {
	table := newMemTable(nil)
	table.rangeErr = errors.New("protected range")
	s := New(table, "v1")

	job := &grading.Job{RowIndex: 9}
	s.WriteResult(context.Background(), job, grading.Outcome{})

	assert.Equal(t, "ERROR SAVING RESULTS", table.cells["C9"])
	assert.Equal(t, grading.StatusErrorSavingResult, job.Status)
}

func TestSetError_Truncates(t *testing.T) {
	table := newMemTable(nil)
	s := New(table, "v1")

	msg := "no valid client documents could be downloaded for this client today"
	s.SetError(context.Background(), &grading.Job{RowIndex: 5}, msg)

	assert.Equal(t, "ERROR: "+msg[:50], table.cells["C5"])
}

func TestDurationMinutes(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, 0.0, DurationMinutes(start, start))
	assert.Equal(t, 1.33, DurationMinutes(start, start.Add(80*time.Second)))
	assert.Equal(t, 61.0, DurationMinutes(start, start.Add(61*time.Minute)))
}
