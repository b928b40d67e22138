package writer

import (
	"errors"
	"fmt"
	"math"

	hdf5 "github.com/jmbenlloch/go-hdf5"

	vx2740 "github.com/dsproto/vx2740_go/pkg"
)

// Writer stores the products of one phase measurement run in an HDF5 file.
type Writer struct {
	File             *hdf5.File
	Filename         string
	compressionLevel int
	RunGroup         *hdf5.Group
	PhaseGroup       *hdf5.Group
	HistogramGroup   *hdf5.Group
	WaveformGroup    *hdf5.Group
	SummaryTable     *hdf5.Dataset
	PhaseEventsTable *hdf5.Dataset
	HistEdges        *hdf5.Dataset
	HistHeights      *hdf5.Dataset
	GaussCurve       *hdf5.Dataset
	WaveformSamples  *hdf5.Dataset
	WaveformSeed     *hdf5.Dataset
	WaveformFit      *hdf5.Dataset
}

func NewWriter(filename string, compressionLevel int) (*Writer, error) {
	hdf5.SetStringLength(STRLEN)

	w := &Writer{Filename: filename, compressionLevel: compressionLevel}
	var err error
	if w.File, err = openFile(filename); err != nil {
		return nil, err
	}
	if err := w.createLayout(); err != nil {
		return nil, errors.Join(err, w.Close())
	}
	return w, nil
}

func (w *Writer) createLayout() error {
	var err error
	if w.RunGroup, err = createGroup(w.File, "Run"); err != nil {
		return err
	}
	if w.PhaseGroup, err = createGroup(w.File, "Phase"); err != nil {
		return err
	}
	if w.HistogramGroup, err = createGroup(w.File, "Histogram"); err != nil {
		return err
	}
	if w.WaveformGroup, err = createGroup(w.File, "Waveform"); err != nil {
		return err
	}

	tables := []struct {
		dataset  **hdf5.Dataset
		group    *hdf5.Group
		name     string
		datatype interface{}
	}{
		{&w.SummaryTable, w.RunGroup, "summary", RunParamHDF5{}},
		{&w.PhaseEventsTable, w.PhaseGroup, "events", PhaseEventHDF5{}},
		{&w.HistEdges, w.HistogramGroup, "edges", float64(0)},
		{&w.HistHeights, w.HistogramGroup, "heights", float64(0)},
		{&w.GaussCurve, w.HistogramGroup, "gauss", GaussPointHDF5{}},
		{&w.WaveformSamples, w.WaveformGroup, "samples", uint16(0)},
		{&w.WaveformSeed, w.WaveformGroup, "seed", float64(0)},
		{&w.WaveformFit, w.WaveformGroup, "fit", float64(0)},
	}
	for _, table := range tables {
		if *table.dataset, err = createTable(table.group, table.name, table.datatype, w.compressionLevel); err != nil {
			return err
		}
	}
	return nil
}

func (w *Writer) WriteRun(result *vx2740.RunResult) error {
	summary := runSummary(result)
	if err := writeArrayToTable(w.SummaryTable, &summary); err != nil {
		return fmt.Errorf("error writing run summary: %w", err)
	}

	events := phaseEvents(result)
	if err := writeArrayToTable(w.PhaseEventsTable, &events); err != nil {
		return fmt.Errorf("error writing phase events: %w", err)
	}

	edges := result.Stats.Histogram.Edges
	if err := writeArrayToTable(w.HistEdges, &edges); err != nil {
		return fmt.Errorf("error writing histogram edges: %w", err)
	}
	heights := result.Stats.Histogram.Heights
	if err := writeArrayToTable(w.HistHeights, &heights); err != nil {
		return fmt.Errorf("error writing histogram heights: %w", err)
	}

	gauss := make([]GaussPointHDF5, len(result.GaussianX))
	for i := range gauss {
		gauss[i] = GaussPointHDF5{x: result.GaussianX[i], y: result.GaussianY[i]}
	}
	if err := writeArrayToTable(w.GaussCurve, &gauss); err != nil {
		return fmt.Errorf("error writing gaussian curve: %w", err)
	}

	waveform := result.Representative
	if err := writeArrayToTable(w.WaveformSamples, &waveform.Samples); err != nil {
		return fmt.Errorf("error writing waveform samples: %w", err)
	}
	if err := writeArrayToTable(w.WaveformSeed, &waveform.Seed); err != nil {
		return fmt.Errorf("error writing waveform seed: %w", err)
	}
	if err := writeArrayToTable(w.WaveformFit, &waveform.Fit); err != nil {
		return fmt.Errorf("error writing waveform fit: %w", err)
	}
	return nil
}

func phaseEvents(result *vx2740.RunResult) []PhaseEventHDF5 {
	events := make([]PhaseEventHDF5, len(result.Sync))
	for i, s := range result.Sync {
		p0 := result.Series[0][i]
		p1 := result.Series[1][i]
		events[i] = PhaseEventHDF5{
			evt_index:   int32(i),
			trig_delta:  s.TrigDelta,
			phase_delta: s.PhaseDeltaNs,
			phase0:      p0.Phase,
			phase1:      p1.Phase,
			amplitude0:  p0.Amplitude,
			amplitude1:  p1.Amplitude,
			period0:     p0.Period,
			period1:     p1.Period,
		}
	}
	return events
}

// Gaussian parameters are NaN unless the fit succeeded.
func runSummary(result *vx2740.RunResult) []RunParamHDF5 {
	stats := result.Stats
	centroid, sigma, centroidError := math.NaN(), math.NaN(), math.NaN()
	if stats.Status == vx2740.GaussianOK {
		centroid, sigma, centroidError = stats.Centroid, stats.Sigma, stats.CentroidError
	}
	params := []struct {
		name  string
		value float64
	}{
		{"run_number", float64(result.RunNumber)},
		{"num_events", float64(stats.NumEvents)},
		{"hist_min", stats.Config.Min},
		{"hist_max", stats.Config.Max},
		{"hist_bins", float64(stats.Config.Bins)},
		{"bin_size", stats.Config.BinSize()},
		{"mean", stats.Mean},
		{"rms", stats.RMS},
		{"mean_error", stats.MeanError},
		{"gauss_status", float64(stats.Status)},
		{"centroid", centroid},
		{"sigma", sigma},
		{"centroid_error", centroidError},
	}
	summary := make([]RunParamHDF5, len(params))
	for i, p := range params {
		summary[i] = RunParamHDF5{param: convertToHdf5String(p.name), value: p.value}
	}
	return summary
}

func (w *Writer) Close() error {
	var errs []error

	datasets := []struct {
		dataset *hdf5.Dataset
		name    string
	}{
		{w.SummaryTable, "run summary"},
		{w.PhaseEventsTable, "phase events"},
		{w.HistEdges, "histogram edges"},
		{w.HistHeights, "histogram heights"},
		{w.GaussCurve, "gaussian curve"},
		{w.WaveformSamples, "waveform samples"},
		{w.WaveformSeed, "waveform seed"},
		{w.WaveformFit, "waveform fit"},
	}
	for _, d := range datasets {
		if d.dataset == nil {
			continue
		}
		if err := d.dataset.Close(); err != nil {
			errs = append(errs, fmt.Errorf("error closing %s: %w", d.name, err))
		}
	}

	groups := []struct {
		group *hdf5.Group
		name  string
	}{
		{w.RunGroup, "run"},
		{w.PhaseGroup, "phase"},
		{w.HistogramGroup, "histogram"},
		{w.WaveformGroup, "waveform"},
	}
	for _, g := range groups {
		if g.group == nil {
			continue
		}
		if err := g.group.Close(); err != nil {
			errs = append(errs, fmt.Errorf("error closing %s group: %w", g.name, err))
		}
	}

	if w.File != nil {
		if err := w.File.Close(); err != nil {
			errs = append(errs, fmt.Errorf("error closing file: %w", err))
		}
	}
	return errors.Join(errs...)
}
