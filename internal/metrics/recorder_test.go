package metrics

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() { SetOutput(nil) })
	return &buf
}

func TestSetOutputNilDiscards(t *testing.T) {
	buf := captureOutput(t)
	SetOutput(nil)

	New(Namespace).Count("ConversionResult").Flush()
	assert.Zero(t, buf.Len())
}

func TestRecorder_FlushOutput(t *testing.T) {
	buf := captureOutput(t)

	New(Namespace).
		Dimension("Result", "completed").
		Metric("ConversionLatencyMs", 1234.5, UnitMilliseconds).
		Count("ConversionResult").
		Property("jobId", "abc").
		Flush()

	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc), "output: %s", buf.String())

	awsDir, ok := doc["_aws"].(map[string]interface{})
	require.True(t, ok, "missing _aws directive")
	assert.Contains(t, awsDir, "Timestamp")

	cwArr, ok := awsDir["CloudWatchMetrics"].([]interface{})
	require.True(t, ok)
	require.Len(t, cwArr, 1)
	cw := cwArr[0].(map[string]interface{})
	assert.Equal(t, Namespace, cw["Namespace"])

	assert.Equal(t, "completed", doc["Result"])
	assert.Equal(t, 1234.5, doc["ConversionLatencyMs"])
	assert.Equal(t, float64(1), doc["ConversionResult"])
	assert.Equal(t, "abc", doc["jobId"])
}

func TestRecorder_FlushEmpty(t *testing.T) {
	buf := captureOutput(t)
	New("Test").Flush()
	assert.Zero(t, buf.Len())
}

func TestRecorder_OneLinePerFlush(t *testing.T) {
	buf := captureOutput(t)
	New("Test").Count("A").Flush()
	New("Test").Count("B").Flush()
	assert.Equal(t, 2, bytes.Count(buf.Bytes(), []byte("\n")))
}

func TestRecorder_Chaining(t *testing.T) {
	rec := New("Test").
		Dimension("Op", "test").
		Metric("Duration", 100, UnitMilliseconds).
		Count("Calls").
		Property("id", "xyz")

	assert.Equal(t, "test", rec.dimensions["Op"])
	assert.Equal(t, float64(100), rec.values["Duration"])
	assert.Equal(t, float64(1), rec.values["Calls"])
	assert.Equal(t, UnitCount, rec.metrics["Calls"].Unit)
	assert.Equal(t, "xyz", rec.properties["id"])
}

func TestRecorder_DimensionsSorted(t *testing.T) {
	rec := New("Test").Dimension("b", "2").Dimension("a", "1").Count("X")
	doc := rec.document(time.Unix(0, 0))
	dir := doc["_aws"].(emfDirective)
	assert.Equal(t, []string{"a", "b"}, dir.CloudWatchMetrics[0].Dimensions[0])
	assert.Equal(t, int64(0), dir.Timestamp)
}
