package vx2740

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// wrappedDistance is the distance between two phases modulo period.
func wrappedDistance(a, b, period float64) float64 {
	d := math.Mod(a-b, period)
	if d > period/2 {
		d -= period
	} else if d < -period/2 {
		d += period
	}
	return math.Abs(d)
}

func TestSeedSine(t *testing.T) {
	samples := sineWaveform(512, 2000, 1000, 32, 5.3)

	seed, err := SeedSine(samples)
	require.NoError(t, err)
	assert.InDelta(t, 2000, seed.Offset, 1)
	assert.InDelta(t, 1000, seed.Amplitude, 3)
	assert.Equal(t, 32.0, seed.Period)
	assert.Equal(t, 5.0, seed.Phase)
}

func TestFitSineRecoversParameters(t *testing.T) {
	tests := []struct {
		name      string
		n         int
		offset    float64
		amplitude float64
		period    float64
		phase     float64
	}{
		{"period 32", 512, 2000, 1000, 32, 5.3},
		{"period 16", 512, 8000, 3000, 16, 2.75},
		{"late zero crossing", 480, 30000, 12000, 40, 17.2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			samples := sineWaveform(tt.n, tt.offset, tt.amplitude, tt.period, tt.phase)
			fit, err := FitSine(samples)
			require.NoError(t, err)

			assert.InDelta(t, tt.period, fit.Period, 0.001*tt.period)
			assert.InDelta(t, tt.offset, fit.Offset, 1)
			assert.InDelta(t, tt.amplitude, math.Abs(fit.Amplitude), 1)
			if fit.Amplitude > 0 {
				assert.Less(t, wrappedDistance(fit.Phase, tt.phase, tt.period), 0.01*tt.period)
			} else {
				assert.Less(t, wrappedDistance(fit.Phase+fit.Period/2, tt.phase, tt.period), 0.01*tt.period)
			}
		})
	}
}

func TestFitSineWithBoundedNoise(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	samples := sineWaveform(512, 2000, 1000, 32, 9.6)
	for i := range samples {
		samples[i] = uint16(int(samples[i]) + rng.Intn(21) - 10)
	}

	fit, err := FitSine(samples)
	require.NoError(t, err)
	assert.InDelta(t, 32, fit.Period, 0.05)
	assert.Less(t, wrappedDistance(fit.Phase, 9.6, 32), 0.32)
}

func TestFitSineSignedSamples(t *testing.T) {
	samples := make([]int16, 256)
	for i := range samples {
		samples[i] = int16(math.Round(500 * math.Sin(2*math.Pi*(float64(i)-3)/32)))
	}
	fit, err := FitSine(samples)
	require.NoError(t, err)
	assert.InDelta(t, 32, fit.Period, 0.01)
	assert.InDelta(t, 0, fit.Offset, 1)
}

func TestFitSineFailures(t *testing.T) {
	flat := make([]uint16, 128)
	for i := range flat {
		flat[i] = 1000
	}
	_, err := FitSine(flat)
	assert.ErrorIs(t, err, ErrFitDidNotConverge)

	_, err = FitSine([]uint16{1, 2, 3})
	assert.ErrorIs(t, err, ErrFitDidNotConverge)
}

func TestSineFitCurve(t *testing.T) {
	fit := SineFit{Offset: 10, Amplitude: 2, Period: 8, Phase: 0}
	curve := fit.Curve(9)
	require.Len(t, curve, 9)
	assert.InDelta(t, 10, curve[0], 1e-12)
	assert.InDelta(t, 12, curve[2], 1e-12)
	assert.InDelta(t, 8, curve[6], 1e-12)
	assert.InDelta(t, fit.Eval(3), curve[3], 1e-12)
}

func TestFitSineNonIntegerPeriods(t *testing.T) {
	// Periods between FFT bins leave the first seed off by up to half a bin
	tests := []struct {
		n      int
		period float64
		phase  float64
	}{
		{256, 10.47, 3},
		{256, 10.47, 7.5},
		{256, 13.9, 1.2},
		{512, 21.3, 4},
	}
	for _, tt := range tests {
		samples := sineWaveform(tt.n, 2000, 1000, tt.period, tt.phase)
		fit, err := FitSine(samples)
		require.NoError(t, err, "n %d, period %g", tt.n, tt.period)
		assert.InDelta(t, tt.period, fit.Period, 0.01*tt.period, "n %d, period %g", tt.n, tt.period)
		assert.InDelta(t, 1000, math.Abs(fit.Amplitude), 5, "n %d, period %g", tt.n, tt.period)
	}
}

func TestPeriodCandidates(t *testing.T) {
	candidates := periodCandidates(256, 256.0/24)
	require.Len(t, candidates, 8)
	assert.Equal(t, []float64{256 / 23.75, 256 / 24.25, 256 / 23.5, 256 / 24.5}, candidates[:4])
	assert.Equal(t, 256.0/25, candidates[7])

	// Bin offsets that would reach zero frequency are dropped
	assert.Len(t, periodCandidates(8, 8), 7)
}
