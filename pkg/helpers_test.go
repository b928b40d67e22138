package vx2740

import (
	"math"
	"sort"
)

// packWaveformRecord builds the words of a waveform record the way the
// digitizer lays them out.
func packWaveformRecord(frontendID, boardID int, counter uint32, flags uint16, overlap uint8, ticks uint64, waveforms map[int][]uint16) RawRecord {
	channels := make([]int, 0, len(waveforms))
	var mask uint64
	for channel := range waveforms {
		channels = append(channels, channel)
		mask |= uint64(1) << channel
	}
	sort.Ints(channels)

	samples := 0
	if len(channels) > 0 {
		samples = len(waveforms[channels[0]])
	}
	nWords := NUM_HEADER_WORDS + samples/SAMPLES_PER_WORD*len(channels)

	words := make([]uint64, 0, nWords)
	words = append(words, uint64(FORMAT_WAVEFORM)<<56|uint64(counter&0xFFFFFF)<<32|uint64(nWords))
	words = append(words, uint64(flags&0xFFF)<<52|uint64(overlap&0xF)<<48|ticks&0xFFFFFFFFFFFF)
	words = append(words, mask)
	for s := 0; s < samples; s += SAMPLES_PER_WORD {
		for _, channel := range channels {
			wf := waveforms[channel]
			words = append(words, uint64(wf[s])|uint64(wf[s+1])<<16|uint64(wf[s+2])<<32|uint64(wf[s+3])<<48)
		}
	}
	return RawRecord{FrontendID: frontendID, BoardID: boardID, Words: words}
}

// sineWaveform samples offset + amplitude*sin(2*pi*(i-phase)/period),
// rounded to the nearest ADC count.
func sineWaveform(n int, offset, amplitude, period, phase float64) []uint16 {
	samples := make([]uint16, n)
	for i := range samples {
		v := offset + amplitude*math.Sin(2*math.Pi*(float64(i)-phase)/period)
		samples[i] = uint16(math.Round(v))
	}
	return samples
}
