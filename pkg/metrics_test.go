package vx2740

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteMetrics(t *testing.T) {
	RecordsDecodedTotal.WithLabelValues(FORMAT_WAVEFORM.String()).Inc()
	PhaseDeltaMean.Set(1.25)

	filename := filepath.Join(t.TempDir(), "vx2740.prom")
	require.NoError(t, WriteMetrics(filename))

	content, err := os.ReadFile(filename)
	require.NoError(t, err)
	text := string(content)
	assert.Contains(t, text, "# TYPE vx2740_records_decoded_total counter")
	assert.Contains(t, text, `vx2740_records_decoded_total{format="`+FORMAT_WAVEFORM.String()+`"}`)
	assert.Contains(t, text, "vx2740_phase_delta_mean_ns 1.25")
	assert.Contains(t, text, "vx2740_phase_delta_centroid_ns")
}

func TestWriteMetricsBadPath(t *testing.T) {
	err := WriteMetrics(filepath.Join(t.TempDir(), "missing", "vx2740.prom"))
	assert.Error(t, err)
}
