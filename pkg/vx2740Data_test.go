package vx2740

import (
	"bytes"
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randomWaveforms(mask uint64, samples int, seed int64) map[int][]uint16 {
	rng := rand.New(rand.NewSource(seed))
	waveforms := make(map[int][]uint16)
	for c := 0; c < 64; c++ {
		if mask&(uint64(1)<<c) == 0 {
			continue
		}
		wf := make([]uint16, samples)
		for i := range wf {
			wf[i] = uint16(rng.Intn(math.MaxUint16 + 1))
		}
		waveforms[c] = wf
	}
	return waveforms
}

func TestProperty_WaveformRoundTrip(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("packed waveform records decode to the packed fields", prop.ForAll(
		func(counter uint32, flags uint16, overlap uint8, ticks uint64, mask uint64, groups int, seed int64) bool {
			waveforms := randomWaveforms(mask, groups*SAMPLES_PER_WORD, seed)
			record := packWaveformRecord(3, 1, counter, flags, overlap, ticks, waveforms)

			decoded, err := Decode(record)
			if err != nil {
				return false
			}
			event, ok := decoded.(*WaveformEvent)
			if !ok {
				return false
			}
			if event.EventCounter != counter || event.Flags != flags || event.Overlap != overlap ||
				event.TriggerTimeTicks != ticks || int(event.SizeWords) != len(record.Words) {
				return false
			}
			if event.FrontendID != 3 || event.BoardID != 1 || event.Format != FORMAT_WAVEFORM {
				return false
			}
			if len(event.Waveforms) != len(waveforms) {
				return false
			}
			for channel, want := range waveforms {
				got := event.Waveforms[channel]
				if len(got) != len(want) {
					return false
				}
				for i := range want {
					if got[i] != want[i] {
						return false
					}
				}
			}
			for i := 1; i < len(event.ChannelsEnabled); i++ {
				if event.ChannelsEnabled[i-1] >= event.ChannelsEnabled[i] {
					return false
				}
			}
			return true
		},
		gen.UInt32Range(0, 0xFFFFFF),
		gen.UInt16Range(0, 0xFFF),
		gen.UInt8Range(0, 0xF),
		gen.UInt64Range(0, 0xFFFFFFFFFFFF),
		gen.UInt64Range(1, math.MaxUint64),
		gen.IntRange(1, 4),
		gen.Int64(),
	))

	properties.TestingRun(t)
}

func TestDecodeWaveformPacking(t *testing.T) {
	// Two channels, eight samples each: the payload alternates channel words
	record := RawRecord{
		FrontendID: 0,
		BoardID:    2,
		Words: []uint64{
			0x10_000007_00000007,
			0x0000_0000_0000_00FF,
			0x0000_0000_0000_0005,
			0x0004_0003_0002_0001,
			0x0014_0013_0012_0011,
			0x0008_0007_0006_0005,
			0x0018_0017_0016_0015,
		},
	}

	decoded, err := Decode(record)
	require.NoError(t, err)
	event, ok := decoded.(*WaveformEvent)
	require.True(t, ok)

	assert.Equal(t, uint32(7), event.EventCounter)
	assert.Equal(t, uint32(7), event.SizeWords)
	assert.Equal(t, uint64(0xFF), event.TriggerTimeTicks)
	assert.Equal(t, []int{0, 2}, event.ChannelsEnabled)
	assert.Equal(t, []uint16{1, 2, 3, 4, 5, 6, 7, 8}, event.Waveforms[0])
	assert.Equal(t, []uint16{0x11, 0x12, 0x13, 0x14, 0x15, 0x16, 0x17, 0x18}, event.Waveforms[2])
	assert.Equal(t, 8, event.SamplesPerChannel())
	assert.InDelta(t, 255/1.25e8, event.TriggerTimeSecs(), 1e-15)
}

func TestDecodeTriggerWordIsolation(t *testing.T) {
	tests := []struct {
		name        string
		word1       uint64
		wantFlags   uint16
		wantOverlap uint8
		wantTicks   uint64
	}{
		{"flags", 0xFFF << 52, 0xFFF, 0, 0},
		{"overlap", 0xF << 48, 0, 0xF, 0},
		{"ticks", 0xFFFFFFFFFFFF, 0, 0, 0xFFFFFFFFFFFF},
		{"single flag bit", 1 << 52, 1, 0, 0},
		{"single overlap bit", 1 << 48, 0, 1, 0},
		{"top tick bit", 1 << 47, 0, 0, 1 << 47},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			record := RawRecord{Words: []uint64{
				uint64(FORMAT_WAVEFORM)<<56 | 4,
				tt.word1,
				1,
				0,
			}}
			decoded, err := Decode(record)
			require.NoError(t, err)
			event := decoded.(*WaveformEvent)
			assert.Equal(t, tt.wantFlags, event.Flags)
			assert.Equal(t, tt.wantOverlap, event.Overlap)
			assert.Equal(t, tt.wantTicks, event.TriggerTimeTicks)
			assert.Equal(t, uint32(0), event.EventCounter)
		})
	}
}

func TestDecodeCounterDoesNotLeakIntoFormat(t *testing.T) {
	record := RawRecord{Words: []uint64{
		uint64(FORMAT_WAVEFORM)<<56 | 0xFFFFFF<<32 | 4,
		0,
		1 << 63,
		0,
	}}
	decoded, err := Decode(record)
	require.NoError(t, err)
	event := decoded.(*WaveformEvent)
	assert.Equal(t, uint32(0xFFFFFF), event.EventCounter)
	assert.Equal(t, FORMAT_WAVEFORM, event.Format)
	assert.Equal(t, []int{63}, event.ChannelsEnabled)
}

func TestDecodeMalformed(t *testing.T) {
	waveformHeader := func(size uint64) uint64 { return uint64(FORMAT_WAVEFORM)<<56 | size }
	tests := []struct {
		name  string
		words []uint64
	}{
		{"empty record", nil},
		{"header shorter than three words", []uint64{waveformHeader(2), 0}},
		{"declared size larger than record", []uint64{waveformHeader(5), 0, 1, 0}},
		{"declared size smaller than record", []uint64{waveformHeader(3), 0, 1, 0}},
		{"no channels enabled", []uint64{waveformHeader(4), 0, 0, 0}},
		{"payload does not split among channels", []uint64{waveformHeader(5), 0, 0b111, 0, 0}},
		{"short begin of run", []uint64{uint64(FORMAT_BEGIN_OF_RUN) << 56, 0, 0}},
		{"short end of run", []uint64{uint64(FORMAT_END_OF_RUN) << 56, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			record := RawRecord{FrontendID: 1, BoardID: 4, Words: tt.words}
			event, err := Decode(record)
			require.Error(t, err)
			assert.Nil(t, event)
			assert.True(t, errors.Is(err, ErrMalformedRecord))

			var malformedErr *MalformedRecordError
			require.True(t, errors.As(err, &malformedErr))
			assert.Equal(t, 1, malformedErr.FrontendID)
			assert.Equal(t, 4, malformedErr.BoardID)
		})
	}
}

func TestDecodeUnevenPayload(t *testing.T) {
	// Three channels and four payload words
	record := RawRecord{Words: []uint64{uint64(FORMAT_WAVEFORM)<<56 | 7, 0, 0b111, 1, 2, 3, 4}}
	_, err := Decode(record)
	assert.ErrorIs(t, err, ErrMalformedRecord)
}

func TestDecodeBeginOfRun(t *testing.T) {
	record := RawRecord{FrontendID: 2, BoardID: 1, Words: []uint64{
		uint64(FORMAT_BEGIN_OF_RUN) << 56,
		0xFE000000 | 512,
		0xABCD_0000_0000_000F,
		0x1234_8000_0001,
	}}
	decoded, err := Decode(record)
	require.NoError(t, err)
	event, ok := decoded.(*BeginOfRunEvent)
	require.True(t, ok)
	assert.Equal(t, uint32(2048), event.WaveformWidth)
	assert.Equal(t, uint32(0xF), event.ChannelMaskLow)
	assert.Equal(t, uint32(0x80000001), event.ChannelMaskHigh)
	assert.Equal(t, EventHeader{FrontendID: 2, BoardID: 1, Format: FORMAT_BEGIN_OF_RUN}, event.Header())
}

func TestDecodeEndOfRun(t *testing.T) {
	record := RawRecord{Words: []uint64{
		uint64(FORMAT_END_OF_RUN) << 56,
		0xFFFF_0000_0000_1234,
		0xFFFF_FFFF_0000_0042,
	}}
	decoded, err := Decode(record)
	require.NoError(t, err)
	event, ok := decoded.(*EndOfRunEvent)
	require.True(t, ok)
	assert.Equal(t, uint64(0x1234), event.Realtime)
	assert.Equal(t, uint32(0x42), event.Deadtime)
}

func TestDecodeUnknownFormat(t *testing.T) {
	words := []uint64{0x20 << 56, 1, 2}
	decoded, err := Decode(RawRecord{Words: words})
	require.NoError(t, err)
	event, ok := decoded.(*UnknownEvent)
	require.True(t, ok)
	assert.Equal(t, Format(0x20), event.Format)
	assert.Equal(t, words, event.Words)

	words[1] = 99
	assert.Equal(t, uint64(1), event.Words[1])
}

func TestDumpSummary(t *testing.T) {
	record := packWaveformRecord(1, 2, 42, 0, 0, 125000000, map[int][]uint16{
		5: {1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12},
	})
	decoded, err := Decode(record)
	require.NoError(t, err)

	var out bytes.Buffer
	DumpSummary(&out, decoded)
	assert.Contains(t, out.String(), "Trigger # 42 for board 001/02")
	assert.Contains(t, out.String(), "Trigger time: 1.000000s")
	assert.Contains(t, out.String(), "First 10 samples on chan 5: [1 2 3 4 5 6 7 8 9 10]")

	out.Reset()
	DumpSummary(&out, &UnknownEvent{EventHeader: EventHeader{Format: 0x20}})
	assert.Contains(t, out.String(), "unhandled format 0x20")
}
