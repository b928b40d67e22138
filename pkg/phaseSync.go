package vx2740

// Phase differences are converted to nanoseconds with a fixed 8 ns scale,
// the period of the 125 MHz trigger clock.
// TODO: derive from the configured sample clock once the calibration is reviewed.
const PHASE_SCALE_NS = 8.0

// Marks an event whose trigger timestamps differ between boards.
const UNALIGNED_SENTINEL = 9999.0

// Fraction of a period above which the phase difference is wrapped back.
const WRAP_THRESHOLD = 0.99

// PhasePoint is the fitted clock phase of one board for one event.
type PhasePoint struct {
	Phase            float64
	Amplitude        float64
	Period           float64
	TriggerTimeTicks uint64
}

// PhaseSeries is indexed by event number.
type PhaseSeries []PhasePoint

func NewPhasePoint(fit SineFit, triggerTimeTicks uint64) PhasePoint {
	return PhasePoint{
		Phase:            fit.Phase,
		Amplitude:        fit.Amplitude,
		Period:           fit.Period,
		TriggerTimeTicks: triggerTimeTicks,
	}
}

type SyncResult struct {
	TrigDelta    int64
	PhaseDeltaNs float64
}

func (s SyncResult) Aligned() bool {
	return s.TrigDelta == 0
}

// Synchronize computes the phase difference between both boards for every
// event index they share.
func Synchronize(board0, board1 PhaseSeries) []SyncResult {
	n := min(len(board0), len(board1))
	results := make([]SyncResult, n)
	for i := 0; i < n; i++ {
		results[i] = synchronizeEvent(board0[i], board1[i])
	}
	return results
}

func synchronizeEvent(p0, p1 PhasePoint) SyncResult {
	phase0, phase1 := resolvePhases(p0, p1)

	trigDelta := int64(p1.TriggerTimeTicks) - int64(p0.TriggerTimeTicks)
	result := SyncResult{TrigDelta: trigDelta, PhaseDeltaNs: UNALIGNED_SENTINEL}
	if trigDelta == 0 {
		result.PhaseDeltaNs = (phase1 - phase0) * PHASE_SCALE_NS
	}
	return result
}

// A sine fit has a two-fold ambiguity: a negative amplitude is equivalent to
// a half period shift. When the boards disagree in sign the negative one is
// shifted, and a difference that ends up close to a full period is wrapped.
// Board 1's period is the reference for both corrections.
func resolvePhases(p0, p1 PhasePoint) (float64, float64) {
	phase0, phase1 := p0.Phase, p1.Phase
	period := p1.Period
	sign0, sign1 := sign(p0.Amplitude), sign(p1.Amplitude)

	switch {
	case sign0 == -1 && sign1 == 1:
		phase0 += period / 2
	case sign0 == 1 && sign1 == -1:
		phase1 += period / 2
	default:
		return phase0, phase1
	}
	if phase1-phase0 > WRAP_THRESHOLD*period {
		phase1 -= period
	}
	return phase0, phase1
}
