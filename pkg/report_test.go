package vx2740

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReportFields(t *testing.T) {
	config := HistogramConfig{Min: -10, Max: 10, Bins: 100}
	stats := AggregateStats{
		NumEvents:     250,
		Mean:          1.23456,
		RMS:           0.5,
		MeanError:     0.0316,
		Status:        GaussianOK,
		Centroid:      1.2,
		Sigma:         0.58871,
		CentroidError: 0.0315123456,
	}

	fields := ReportFields(stats, config)
	assert.Equal(t, []ReportField{
		{Key: "num_events", Value: "250"},
		{Key: "bin size", Value: "0.200 ns"},
		{Key: "mean", Value: "1.235 ns"},
		{Key: "rms", Value: "0.500 ns"},
		{Key: "mean_error", Value: "0.032 ns"},
		{Key: "centroid", Value: "1.200 ns"},
		{Key: "width (sigma)", Value: "0.589 ns"},
		{Key: "error on the centroid", Value: "0.031512 ns"},
	}, fields)
}

func TestReportFieldsWithoutGaussian(t *testing.T) {
	config := HistogramConfig{Min: 0, Max: 10, Bins: 20}
	for _, status := range []GaussianStatus{GaussianInsufficient, GaussianFailed} {
		stats := AggregateStats{NumEvents: 4, Mean: 4, Status: status, Centroid: 99}
		fields := ReportFields(stats, config)
		require.Len(t, fields, 8)
		for _, field := range fields[5:] {
			assert.Equal(t, NOT_AVAILABLE, field.Value, status.String())
		}
	}
}

func TestWriteReport(t *testing.T) {
	fields := []ReportField{{Key: "num_events", Value: "3"}, {Key: "mean", Value: "1.000 ns"}}

	var out bytes.Buffer
	require.NoError(t, WriteReport(&out, fields))
	assert.Equal(t, "num_events = 3\nmean = 1.000 ns\n", out.String())

	filename := filepath.Join(t.TempDir(), "run00389.mid.lz4.txt")
	require.NoError(t, WriteReportFile(filename, fields))
	content, err := os.ReadFile(filename)
	require.NoError(t, err)
	assert.Equal(t, out.String(), string(content))
}
