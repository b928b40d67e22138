package vx2740

import (
	"errors"
	"fmt"
	"strconv"
)

type PipelineConfig struct {
	NumBoards int
	// Capacity of each board buffer, in events.
	MaxEvents int
	// Expected samples per waveform. Zero takes it from the first waveform.
	SampleCount int
	// A board stops buffering once its event counter exceeds this value.
	StopEvent int
	Histogram HistogramConfig
	// Goroutines fitting waveforms in Finish. Values below 1 fit serially.
	Workers   int
	Verbosity int
}

func (c PipelineConfig) Validate() error {
	if c.NumBoards != 2 {
		return fmt.Errorf("phase synchronization needs exactly 2 boards, got %d", c.NumBoards)
	}
	if c.MaxEvents <= 0 {
		return fmt.Errorf("buffer capacity must be positive, got %d", c.MaxEvents)
	}
	if c.SampleCount < 0 {
		return fmt.Errorf("sample count must not be negative, got %d", c.SampleCount)
	}
	return c.Histogram.Validate()
}

// BoardBuffer keeps the clock waveforms and trigger times of one board,
// indexed by arrival order. Every index is written once.
type BoardBuffer struct {
	capacity         int
	sampleCount      int
	samples          []uint16
	TriggerTimeTicks []uint64
	EventCounters    []uint32
}

func NewBoardBuffer(capacity int, sampleCount int) *BoardBuffer {
	b := &BoardBuffer{
		capacity:         capacity,
		TriggerTimeTicks: make([]uint64, 0, capacity),
		EventCounters:    make([]uint32, 0, capacity),
	}
	if sampleCount > 0 {
		b.allocate(sampleCount)
	}
	return b
}

func (b *BoardBuffer) allocate(sampleCount int) {
	b.sampleCount = sampleCount
	b.samples = make([]uint16, 0, b.capacity*sampleCount)
}

func (b *BoardBuffer) Len() int {
	return len(b.TriggerTimeTicks)
}

func (b *BoardBuffer) Full() bool {
	return b.Len() >= b.capacity
}

func (b *BoardBuffer) SampleCount() int {
	return b.sampleCount
}

// Waveform returns the samples stored at index i.
func (b *BoardBuffer) Waveform(i int) []uint16 {
	return b.samples[i*b.sampleCount : (i+1)*b.sampleCount]
}

// Append stores one event and returns its index.
func (b *BoardBuffer) Append(waveform []uint16, triggerTimeTicks uint64, eventCounter uint32) (int, error) {
	if b.Full() {
		return -1, fmt.Errorf("buffer full (%d events)", b.capacity)
	}
	if b.sampleCount == 0 {
		if len(waveform) == 0 {
			return -1, errors.New("empty waveform")
		}
		b.allocate(len(waveform))
	}
	if len(waveform) != b.sampleCount {
		return -1, fmt.Errorf("waveform has %d samples, expected %d", len(waveform), b.sampleCount)
	}
	b.samples = append(b.samples, waveform...)
	b.TriggerTimeTicks = append(b.TriggerTimeTicks, triggerTimeTicks)
	b.EventCounters = append(b.EventCounters, eventCounter)
	return b.Len() - 1, nil
}

// Pipeline buffers the clock waveforms of both boards until the stop
// condition is met, then fits, synchronizes and aggregates them.
type Pipeline struct {
	config   PipelineConfig
	boards   BoardMap
	logger   Logger
	buffers  []*BoardBuffer
	finished []bool
}

func NewPipeline(config PipelineConfig, boards BoardMap, logger Logger) (*Pipeline, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if err := boards.Validate(config.NumBoards); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = NopLogger{}
	}
	p := &Pipeline{
		config:   config,
		boards:   boards,
		logger:   logger,
		buffers:  make([]*BoardBuffer, config.NumBoards),
		finished: make([]bool, config.NumBoards),
	}
	for i := range p.buffers {
		p.buffers[i] = NewBoardBuffer(config.MaxEvents, config.SampleCount)
	}
	return p, nil
}

func (p *Pipeline) Buffer(board int) *BoardBuffer {
	return p.buffers[board]
}

// Done reports whether every board crossed its stop threshold.
func (p *Pipeline) Done() bool {
	for _, f := range p.finished {
		if !f {
			return false
		}
	}
	return true
}

// Process decodes one record and buffers it when it is a waveform of a
// mapped board. Malformed records are returned as errors and must abort the
// run, since both boards are matched by buffer index.
func (p *Pipeline) Process(record RawRecord) (bool, error) {
	event, err := Decode(record)
	if err != nil {
		return p.Done(), err
	}
	RecordsDecodedTotal.WithLabelValues(event.Header().Format.String()).Inc()

	switch ev := event.(type) {
	case *WaveformEvent:
		if err := p.bufferWaveform(ev); err != nil {
			return p.Done(), err
		}
	case *BeginOfRunEvent:
		if p.config.Verbosity > 0 {
			message := fmt.Sprintf("Begin of run for board %03d/%02d, waveform width %d samples", ev.FrontendID, ev.BoardID, ev.WaveformWidth)
			p.logger.Info(message, "pipeline")
		}
		if p.config.SampleCount > 0 && int(ev.WaveformWidth) != p.config.SampleCount {
			message := fmt.Sprintf("board %03d/%02d records %d samples, configured %d", ev.FrontendID, ev.BoardID, ev.WaveformWidth, p.config.SampleCount)
			p.logger.Error(message)
		}
	case *EndOfRunEvent:
		if p.config.Verbosity > 0 {
			message := fmt.Sprintf("End of run for board %03d/%02d, realtime %d, deadtime %d", ev.FrontendID, ev.BoardID, ev.Realtime, ev.Deadtime)
			p.logger.Info(message, "pipeline")
		}
	case *UnknownEvent:
		if p.config.Verbosity > 1 {
			message := fmt.Sprintf("Skipping record of unhandled format 0x%x from board %03d/%02d", uint8(ev.Format), ev.FrontendID, ev.BoardID)
			p.logger.Info(message, "pipeline")
		}
	}
	return p.Done(), nil
}

func (p *Pipeline) bufferWaveform(event *WaveformEvent) error {
	setup, ok := p.boards.Lookup(event.FrontendID, event.BoardID)
	if !ok {
		if p.config.Verbosity > 1 {
			message := fmt.Sprintf("Skipping waveform from unmapped board %03d/%02d", event.FrontendID, event.BoardID)
			p.logger.Info(message, "pipeline")
		}
		return nil
	}
	if p.finished[setup.Index] {
		return nil
	}

	waveform, ok := event.Waveforms[setup.ClockChannel]
	if !ok {
		return &MalformedRecordError{
			FrontendID: event.FrontendID,
			BoardID:    event.BoardID,
			Reason:     fmt.Sprintf("clock channel %d not enabled", setup.ClockChannel),
		}
	}

	buffer := p.buffers[setup.Index]
	index, err := buffer.Append(waveform, event.TriggerTimeTicks, event.EventCounter)
	if err != nil {
		return &MalformedRecordError{
			FrontendID: event.FrontendID,
			BoardID:    event.BoardID,
			Reason:     fmt.Sprintf("event %d: %v", event.EventCounter, err),
		}
	}
	if p.config.Verbosity > 2 {
		message := fmt.Sprintf("Board %d: event counter %d buffered at index %d", setup.Index, event.EventCounter, index)
		p.logger.Info(message, "pipeline")
	}

	if int64(event.EventCounter) > int64(p.config.StopEvent) || buffer.Full() {
		p.finished[setup.Index] = true
		if p.config.Verbosity > 0 {
			message := fmt.Sprintf("Board %d finished after %d events", setup.Index, buffer.Len())
			p.logger.Info(message, "pipeline")
		}
	}
	return nil
}

// RepresentativeWaveform is one raw waveform with the seed and the final
// fitted models sampled at the same indices.
type RepresentativeWaveform struct {
	Board   int
	Event   int
	Samples []uint16
	Seed    []float64
	Fit     []float64
}

type RunResult struct {
	// Filled by the caller when known, -1 otherwise.
	RunNumber      int
	Fits           [][]SineFit
	Series         []PhaseSeries
	Sync           []SyncResult
	Stats          AggregateStats
	GaussianX      []float64
	GaussianY      []float64
	Representative RepresentativeWaveform
}

func (r *RunResult) PhaseDeltas() []float64 {
	deltas := make([]float64, len(r.Sync))
	for i, s := range r.Sync {
		deltas[i] = s.PhaseDeltaNs
	}
	return deltas
}

func (r *RunResult) TrigDeltas() []int64 {
	deltas := make([]int64, len(r.Sync))
	for i, s := range r.Sync {
		deltas[i] = s.TrigDelta
	}
	return deltas
}

// Finish fits every buffered waveform, synchronizes both boards and
// aggregates the phase differences. A waveform that cannot be fitted aborts
// the run. A Gaussian fit failure is logged and reported in the stats status.
func (p *Pipeline) Finish() (*RunResult, error) {
	result := &RunResult{
		RunNumber: -1,
		Fits:      make([][]SineFit, len(p.buffers)),
		Series:    make([]PhaseSeries, len(p.buffers)),
	}
	for board, buffer := range p.buffers {
		if buffer.Len() == 0 {
			return nil, fmt.Errorf("no waveform events buffered for board %d", board)
		}
		fits, series, err := fitBoard(buffer, board, p.config.Workers)
		if err != nil {
			return nil, err
		}
		result.Fits[board] = fits
		result.Series[board] = series
		if p.config.Verbosity > 0 {
			message := fmt.Sprintf("Board %d: fitted %d waveforms", board, len(fits))
			p.logger.Info(message, "pipeline")
		}
	}

	result.Sync = Synchronize(result.Series[0], result.Series[1])
	for _, s := range result.Sync {
		if s.Aligned() {
			SyncEventsTotal.WithLabelValues("aligned").Inc()
		} else {
			SyncEventsTotal.WithLabelValues("unaligned").Inc()
		}
	}

	stats, err := Aggregate(result.Sync, p.config.Histogram)
	if err != nil {
		if !errors.Is(err, ErrFitDidNotConverge) {
			return nil, err
		}
		message := fmt.Errorf("gaussian fit of the phase difference: %w", err)
		p.logger.Error(message.Error())
	}
	result.Stats = stats
	PhaseDeltaMean.Set(stats.Mean)

	sampleCount := p.buffers[0].SampleCount()
	if stats.Status == GaussianOK {
		PhaseDeltaCentroid.Set(stats.Centroid)
		result.GaussianX, result.GaussianY = stats.Gaussian.Curve(stats.Config.Min, stats.Config.Max, max(sampleCount, 2))
	}

	representative, err := representativeWaveform(p.buffers[0], 0, result.Fits[0])
	if err != nil {
		return nil, err
	}
	result.Representative = representative
	return result, nil
}

func fitBoard(buffer *BoardBuffer, board int, nWorkers int) ([]SineFit, PhaseSeries, error) {
	fits, failed, err := FitWaveforms(buffer, nWorkers)
	if err != nil {
		return nil, nil, fmt.Errorf("board %d, event index %d (counter %d): %w", board, failed, buffer.EventCounters[failed], err)
	}
	series := make(PhaseSeries, len(fits))
	for i, fit := range fits {
		series[i] = NewPhasePoint(fit, buffer.TriggerTimeTicks[i])
	}
	WaveformsFittedTotal.WithLabelValues(strconv.Itoa(board)).Add(float64(len(fits)))
	return fits, series, nil
}

// The last buffered waveform of the board is the representative one.
func representativeWaveform(buffer *BoardBuffer, board int, fits []SineFit) (RepresentativeWaveform, error) {
	last := buffer.Len() - 1
	samples := buffer.Waveform(last)
	seed, err := SeedSine(samples)
	if err != nil {
		return RepresentativeWaveform{}, err
	}
	waveform := make([]uint16, len(samples))
	copy(waveform, samples)
	return RepresentativeWaveform{
		Board:   board,
		Event:   last,
		Samples: waveform,
		Seed:    seed.Curve(len(samples)),
		Fit:     fits[last].Curve(len(samples)),
	}, nil
}
