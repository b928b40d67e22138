package vx2740

import (
	"fmt"
	"io"
	"os"
)

const NOT_AVAILABLE = "n/a"

type ReportField struct {
	Key   string
	Value string
}

// ReportFields lists the run summary in the order it is written to the
// text report.
func ReportFields(stats AggregateStats, config HistogramConfig) []ReportField {
	fields := []ReportField{
		{Key: "num_events", Value: fmt.Sprintf("%d", stats.NumEvents)},
		{Key: "bin size", Value: fmt.Sprintf("%.3f ns", config.BinSize())},
		{Key: "mean", Value: fmt.Sprintf("%.3f ns", stats.Mean)},
		{Key: "rms", Value: fmt.Sprintf("%.3f ns", stats.RMS)},
		{Key: "mean_error", Value: fmt.Sprintf("%.3f ns", stats.MeanError)},
	}
	gaussian := []ReportField{
		{Key: "centroid", Value: NOT_AVAILABLE},
		{Key: "width (sigma)", Value: NOT_AVAILABLE},
		{Key: "error on the centroid", Value: NOT_AVAILABLE},
	}
	if stats.Status == GaussianOK {
		gaussian[0].Value = fmt.Sprintf("%.3f ns", stats.Centroid)
		gaussian[1].Value = fmt.Sprintf("%.3f ns", stats.Sigma)
		gaussian[2].Value = fmt.Sprintf("%.6f ns", stats.CentroidError)
	}
	return append(fields, gaussian...)
}

func WriteReport(w io.Writer, fields []ReportField) error {
	for _, field := range fields {
		if _, err := fmt.Fprintf(w, "%s = %s\n", field.Key, field.Value); err != nil {
			return err
		}
	}
	return nil
}

func WriteReportFile(filename string, fields []ReportField) error {
	file, err := os.Create(filename)
	if err != nil {
		return &ErrOpenFile{Filename: filename, Err: err}
	}
	if err := WriteReport(file, fields); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}
