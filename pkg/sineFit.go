package vx2740

import (
	"math"
	"math/cmplx"

	"golang.org/x/exp/constraints"
	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/floats"
)

// SineFit holds the parameters of
//
//	f(i) = Offset + Amplitude * sin(2*pi*i/Period - 2*pi*Phase/Period)
//
// Period and Phase are expressed in samples.
type SineFit struct {
	Offset    float64
	Amplitude float64
	Period    float64
	Phase     float64
}

func (s SineFit) params() []float64 {
	return []float64{s.Offset, s.Amplitude, s.Period, s.Phase}
}

func sineFromParams(p []float64) SineFit {
	return SineFit{Offset: p[0], Amplitude: p[1], Period: p[2], Phase: p[3]}
}

func sineModel(x float64, p []float64) float64 {
	offset, amplitude, period, phase := p[0], p[1], p[2], p[3]
	return offset + amplitude*math.Sin(2*math.Pi*x/period-2*math.Pi*phase/period)
}

func (s SineFit) Eval(i float64) float64 {
	return sineModel(i, s.params())
}

// Curve samples the model at indices 0..n-1.
func (s SineFit) Curve(n int) []float64 {
	curve := make([]float64, n)
	for i := range curve {
		curve[i] = s.Eval(float64(i))
	}
	return curve
}

func ToFloat64[T constraints.Integer](samples []T) []float64 {
	out := make([]float64, len(samples))
	for i, s := range samples {
		out[i] = float64(s)
	}
	return out
}

// SeedSine estimates the initial parameters of the sine fit: offset and
// amplitude from the extremes, phase from the first zero crossing and period
// from the dominant frequency of the spectrum.
func SeedSine[T constraints.Integer](samples []T) (SineFit, error) {
	return seedSine(ToFloat64(samples))
}

func seedSine(y []float64) (SineFit, error) {
	if len(y) < 4 {
		return SineFit{}, &FitError{Model: "sine", Reason: "waveform too short"}
	}
	maxValue := floats.Max(y)
	minValue := floats.Min(y)
	seed := SineFit{
		Offset:    (maxValue + minValue) / 2,
		Amplitude: (maxValue - minValue) / 2,
	}

	centered := make([]float64, len(y))
	copy(centered, y)
	floats.AddConst(-seed.Offset, centered)

	crossing, ok := firstZeroCrossing(centered)
	if !ok {
		return seed, &FitError{Model: "sine", Reason: "waveform has no zero crossing"}
	}
	seed.Phase = float64(crossing)

	peak, ok := dominantFrequency(centered)
	if !ok {
		return seed, &FitError{Model: "sine", Reason: "spectrum has no non-zero frequency peak"}
	}
	seed.Period = float64(len(y)) / float64(peak)
	return seed, nil
}

func sign(v float64) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}

func firstZeroCrossing(centered []float64) (int, bool) {
	for i := 0; i+1 < len(centered); i++ {
		if sign(centered[i]) != sign(centered[i+1]) {
			return i, true
		}
	}
	return 0, false
}

// Index of the largest magnitude in the first half of the spectrum, DC excluded.
func dominantFrequency(centered []float64) (int, bool) {
	n := len(centered)
	fft := fourier.NewFFT(n)
	coeffs := fft.Coefficients(nil, centered)
	half := int(math.RoundToEven(float64(n) / 2))
	half = min(half, len(coeffs))

	peak := 0
	peakMagnitude := 0.0
	for k := 1; k < half; k++ {
		magnitude := cmplx.Abs(coeffs[k])
		if magnitude > peakMagnitude {
			peak = k
			peakMagnitude = magnitude
		}
	}
	return peak, peak > 0
}

// A fit whose amplitude ends below this fraction of the seed amplitude, or
// whose residual RMS exceeds MAX_RESIDUAL_RATIO of its amplitude, has settled
// in a local minimum of the period.
const (
	MIN_AMPLITUDE_RATIO = 0.5
	MAX_RESIDUAL_RATIO  = 0.25
)

// FitSine fits a sinusoid to one channel's samples. A fit that does not
// converge is returned as an error, never replaced by the seed.
//
// The period seed is an FFT bin. When the fit from it lands in a local
// minimum, the fit is repeated from periods between the neighbouring bins and
// the one with the smallest residual is kept.
func FitSine[T constraints.Integer](samples []T) (SineFit, error) {
	y := ToFloat64(samples)
	seed, err := seedSine(y)
	if err != nil {
		return SineFit{}, err
	}
	xs := make([]float64, len(y))
	for i := range xs {
		xs[i] = float64(i)
	}

	best, err := fitSineFrom(xs, y, seed)
	if err != nil {
		return SineFit{}, err
	}
	bestCost := sineCost(best, y)
	if !localMinimum(best, bestCost, seed, len(y)) {
		return best, nil
	}

	for _, period := range periodCandidates(len(y), seed.Period) {
		candidate := seed
		candidate.Period = period
		fit, err := fitSineFrom(xs, y, candidate)
		if err != nil || collapsed(fit, seed) {
			continue
		}
		if cost := sineCost(fit, y); cost < bestCost || collapsed(best, seed) {
			best, bestCost = fit, cost
		}
	}
	if collapsed(best, seed) {
		return SineFit{}, &FitError{Model: "sine", Reason: "fitted amplitude collapsed for every period seed"}
	}
	return best, nil
}

func fitSineFrom(xs, y []float64, seed SineFit) (SineFit, error) {
	params, err := CurveFit("sine", sineModel, xs, y, seed.params(), DefaultLeastSquaresSettings())
	if err != nil {
		return SineFit{}, err
	}
	return sineFromParams(params), nil
}

func localMinimum(fit SineFit, cost float64, seed SineFit, n int) bool {
	residualRMS := math.Sqrt(cost / float64(n))
	return collapsed(fit, seed) || residualRMS > MAX_RESIDUAL_RATIO*math.Abs(fit.Amplitude)
}

func collapsed(fit SineFit, seed SineFit) bool {
	return math.Abs(fit.Amplitude) < MIN_AMPLITUDE_RATIO*seed.Amplitude
}

func sineCost(fit SineFit, y []float64) float64 {
	cost := 0.0
	for i, v := range y {
		r := v - fit.Eval(float64(i))
		cost += r * r
	}
	return cost
}

// periodCandidates returns the periods a quarter, half, three quarters and a
// whole FFT bin away from the seed period, on both sides.
func periodCandidates(n int, seedPeriod float64) []float64 {
	peak := math.Round(float64(n) / seedPeriod)
	candidates := make([]float64, 0, 8)
	for _, offset := range []float64{0.25, 0.5, 0.75, 1} {
		for _, k := range []float64{peak - offset, peak + offset} {
			if k > 0 {
				candidates = append(candidates, float64(n)/k)
			}
		}
	}
	return candidates
}
