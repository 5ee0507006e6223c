package jobutil

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/TrackerIA/new-grading-vawa/internal/grading"
)

func TestSetJobError(t *testing.T) {
	job := &grading.Job{RowIndex: 4, ClientName: "Ana"}
	var gotJob *grading.Job
	var gotMsg string

	cause := fmt.Errorf("review step %q: %w", "Final", errors.New("503 service unavailable"))
	err := SetJobError(context.Background(), "run-1", job, cause, func(_ context.Context, j *grading.Job, msg string) error {
		gotJob, gotMsg = j, msg
		return nil
	})

	assert.NoError(t, err)
	assert.Same(t, job, gotJob)
	assert.Equal(t, "503 service unavailable", gotMsg)
}

func TestSetJobError_WriterError(t *testing.T) {
	want := errors.New("sheet unavailable")
	err := SetJobError(context.Background(), "run-1", &grading.Job{}, errors.New("boom"), func(context.Context, *grading.Job, string) error {
		return want
	})
	assert.ErrorIs(t, err, want)
}
