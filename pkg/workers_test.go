package vx2740

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fillBuffer(t *testing.T, waveforms ...[]uint16) *BoardBuffer {
	t.Helper()
	buffer := NewBoardBuffer(len(waveforms), 0)
	for i, waveform := range waveforms {
		_, err := buffer.Append(waveform, uint64(i), uint32(i))
		require.NoError(t, err)
	}
	return buffer
}

func TestFitWaveformsKeepsOrder(t *testing.T) {
	waveforms := make([][]uint16, 12)
	for i := range waveforms {
		waveforms[i] = sineWaveform(testSamples, 2000, 1000, 32, 2+float64(i))
	}
	buffer := fillBuffer(t, waveforms...)

	for _, nWorkers := range []int{0, 1, 3, 50} {
		fits, failed, err := FitWaveforms(buffer, nWorkers)
		require.NoError(t, err, "workers %d", nWorkers)
		assert.Equal(t, -1, failed)
		require.Len(t, fits, len(waveforms))
		for i, fit := range fits {
			serial, err := FitSine(waveforms[i])
			require.NoError(t, err)
			assert.Equal(t, serial, fit, "workers %d, waveform %d", nWorkers, i)
		}
	}
}

func TestFitWaveformsReportsFirstFailure(t *testing.T) {
	flat := make([]uint16, testSamples)
	sine := sineWaveform(testSamples, 2000, 1000, 32, 4)
	buffer := fillBuffer(t, sine, sine, flat, sine, flat)

	fits, failed, err := FitWaveforms(buffer, 4)
	assert.Nil(t, fits)
	assert.Equal(t, 2, failed)
	assert.ErrorIs(t, err, ErrFitDidNotConverge)
}
