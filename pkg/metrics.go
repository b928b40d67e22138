package vx2740

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Batch metrics for one measurement run, written once at the end in the
// node exporter textfile format.
var (
	metricsRegistry = prometheus.NewRegistry()

	RecordsDecodedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vx2740_records_decoded_total",
			Help: "Total number of digitizer records decoded, by format",
		},
		[]string{"format"},
	)

	WaveformsFittedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vx2740_waveforms_fitted_total",
			Help: "Total number of clock waveforms fitted, by board slot",
		},
		[]string{"board"},
	)

	SyncEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vx2740_sync_events_total",
			Help: "Total number of synchronized events, by trigger alignment",
		},
		[]string{"status"},
	)

	PhaseDeltaMean = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "vx2740_phase_delta_mean_ns",
			Help: "Histogram mean of the phase difference between boards",
		},
	)

	PhaseDeltaCentroid = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "vx2740_phase_delta_centroid_ns",
			Help: "Gaussian centroid of the phase difference between boards",
		},
	)
)

func init() {
	metricsRegistry.MustRegister(RecordsDecodedTotal)
	metricsRegistry.MustRegister(WaveformsFittedTotal)
	metricsRegistry.MustRegister(SyncEventsTotal)
	metricsRegistry.MustRegister(PhaseDeltaMean)
	metricsRegistry.MustRegister(PhaseDeltaCentroid)
}

// WriteMetrics writes every metric of the run to filename.
func WriteMetrics(filename string) error {
	return prometheus.WriteToTextfile(filename, metricsRegistry)
}
