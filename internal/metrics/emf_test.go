package metrics

import (
	"bytes"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_FunctionNameDimension(t *testing.T) {
	t.Setenv("AWS_LAMBDA_FUNCTION_NAME", "grading-lambda")

	r := New(Namespace)
	assert.Equal(t, "VawaGrading", r.namespace)
	assert.Equal(t, "grading-lambda", r.dimensions["FunctionName"])
}

func TestRecorder_FlushOutput(t *testing.T) {
	t.Setenv("AWS_LAMBDA_FUNCTION_NAME", "")
	var buf bytes.Buffer

	rec := NewTo(Namespace, &buf)
	rec.now = func() time.Time { return time.UnixMilli(1700000000000) }
	rec.Dimension("Outcome", "completed").
		Duration("JobDuration", 1500*time.Millisecond).
		Metric("TokensIn", 1234, UnitCount).
		Property("row", 7).
		Flush()

	var doc map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc), buf.String())

	awsMap := doc["_aws"].(map[string]any)
	assert.Equal(t, float64(1700000000000), awsMap["Timestamp"])

	cw := awsMap["CloudWatchMetrics"].([]any)[0].(map[string]any)
	assert.Equal(t, "VawaGrading", cw["Namespace"])
	assert.Equal(t, []any{[]any{"Outcome"}}, cw["Dimensions"])

	metrics := cw["Metrics"].([]any)
	require.Len(t, metrics, 2)
	assert.Equal(t, "JobDuration", metrics[0].(map[string]any)["Name"])
	assert.Equal(t, "Milliseconds", metrics[0].(map[string]any)["Unit"])

	assert.Equal(t, "completed", doc["Outcome"])
	assert.Equal(t, float64(1500), doc["JobDuration"])
	assert.Equal(t, float64(1234), doc["TokensIn"])
	assert.Equal(t, float64(7), doc["row"])
}

func TestRecorder_FlushEmpty(t *testing.T) {
	var buf bytes.Buffer
	NewTo("Test", &buf).Property("only", "property").Flush()
	assert.Zero(t, buf.Len())
}

func TestRecorder_Count(t *testing.T) {
	rec := NewTo("Test", &bytes.Buffer{})
	rec.Count("JobsFailed")

	assert.Equal(t, float64(1), rec.values["JobsFailed"])
	assert.Equal(t, UnitCount, rec.metrics["JobsFailed"].Unit)
}

func TestSetOutput(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() { SetOutput(os.Stdout) })

	New(Namespace).Count("RunsStarted").Flush()
	assert.Contains(t, buf.String(), `"RunsStarted":1`)
}
