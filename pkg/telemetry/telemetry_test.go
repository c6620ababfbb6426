package telemetry

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsTextfile(t *testing.T) {
	m, err := NewMetrics()
	require.NoError(t, err)
	defer m.Shutdown(context.Background())

	ctx := context.Background()
	m.RecordRun(ctx, "apachekill", "Pass", 150)
	m.RecordIteration(ctx, "apachekill", "Fail")
	m.RecordIteration(ctx, "apachekill", "Pass")
	m.RecordCalibration(ctx, "apachekill", "DONE")

	families, err := m.Gatherer().Gather()
	require.NoError(t, err)
	var names []string
	for _, f := range families {
		names = append(names, f.GetName())
	}
	joined := strings.Join(names, ",")
	assert.Contains(t, joined, "magicwand_runs")
	assert.Contains(t, joined, "magicwand_calibration_iterations")
	assert.Contains(t, joined, "magicwand_calibrations")

	path := filepath.Join(t.TempDir(), MetricsFile)
	require.NoError(t, m.WriteTextfile(path))
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `attack="apachekill"`)
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.RecordRun(context.Background(), "apachekill", "Pass", 1)
	m.RecordCalibration(context.Background(), "apachekill", "DONE")
	assert.NoError(t, m.WriteTextfile(filepath.Join(t.TempDir(), MetricsFile)))
	assert.NoError(t, m.Shutdown(context.Background()))
}

func TestSpanMarshalling(t *testing.T) {
	// without an installed provider the context carries no span
	assert.Equal(t, "", GetMarshalledSpanFromContext(context.Background()))

	_, err := GetTraceParentContext("not json")
	assert.Error(t, err)
	ctx, err := GetTraceParentContext(`{}`)
	require.NoError(t, err)
	assert.NotNil(t, ctx)

	ctx, span := StartTracing(context.Background(), "Run")
	assert.NotNil(t, ctx)
	EndSpan(span, nil)
}
