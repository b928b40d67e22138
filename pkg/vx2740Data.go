package vx2740

import (
	"fmt"
	"io"
	"math/bits"
)

const NUM_HEADER_WORDS = 3
const SAMPLES_PER_WORD = 4

// Decode parses one digitizer bank. Records are assumed to be in the
// Scope Mode layout, the frontend rewrites User Mode data to look like it.
func Decode(record RawRecord) (Event, error) {
	if len(record.Words) == 0 {
		return nil, malformed(record, "empty record")
	}
	header := EventHeader{
		FrontendID: record.FrontendID,
		BoardID:    record.BoardID,
		Format:     readFormat(record.Words[0]),
	}

	var event Event
	var err error
	switch header.Format {
	case FORMAT_WAVEFORM:
		event, err = readWaveformEvent(record, header)
	case FORMAT_BEGIN_OF_RUN:
		event, err = readBeginOfRun(record, header)
	case FORMAT_END_OF_RUN:
		event, err = readEndOfRun(record, header)
	default:
		words := make([]uint64, len(record.Words))
		copy(words, record.Words)
		event = &UnknownEvent{EventHeader: header, Words: words}
	}
	if err != nil {
		return nil, err
	}
	return event, nil
}

func malformed(record RawRecord, format string, args ...any) *MalformedRecordError {
	return &MalformedRecordError{
		FrontendID: record.FrontendID,
		BoardID:    record.BoardID,
		Reason:     fmt.Sprintf(format, args...),
	}
}

func readFormat(word uint64) Format {
	return Format(word >> 56)
}

func readWaveformEvent(record RawRecord, header EventHeader) (*WaveformEvent, error) {
	data := record.Words
	if len(data) < NUM_HEADER_WORDS {
		return nil, malformed(record, "waveform record has %d words, header needs %d", len(data), NUM_HEADER_WORDS)
	}

	event := &WaveformEvent{EventHeader: header}
	readCounterAndSize(data[0], event)
	readTriggerTime(data[1], event)
	event.ChannelsEnabled = readChannelMask(data[2])

	if int(event.SizeWords) != len(data) {
		return nil, malformed(record, "declared size %d words, record has %d", event.SizeWords, len(data))
	}
	if len(event.ChannelsEnabled) == 0 {
		return nil, malformed(record, "no channels enabled")
	}

	payloadWords := len(data) - NUM_HEADER_WORDS
	nChannels := len(event.ChannelsEnabled)
	if payloadWords%nChannels != 0 {
		return nil, malformed(record, "%d payload words do not split among %d channels", payloadWords, nChannels)
	}
	samplesPerChannel := payloadWords / nChannels * SAMPLES_PER_WORD

	event.Waveforms = make(map[int][]uint16, nChannels)
	for _, channel := range event.ChannelsEnabled {
		event.Waveforms[channel] = make([]uint16, samplesPerChannel)
	}
	readSamples(data[NUM_HEADER_WORDS:], event)
	return event, nil
}

func readCounterAndSize(word uint64, event *WaveformEvent) {
	event.EventCounter = uint32((word >> 32) & 0xFFFFFF)
	event.SizeWords = uint32(word & 0xFFFFFFFF)
}

func readTriggerTime(word uint64, event *WaveformEvent) {
	event.Flags = uint16(word >> 52)
	event.Overlap = uint8((word >> 48) & 0xF)
	event.TriggerTimeTicks = word & 0xFFFFFFFFFFFF
}

func readChannelMask(mask uint64) []int {
	channels := make([]int, 0, bits.OnesCount64(mask))
	for c := 0; c < 64; c++ {
		if mask&(uint64(1)<<c) != 0 {
			channels = append(channels, c)
		}
	}
	return channels
}

// One 64-bit word per channel, then the next channel. Each word carries four
// consecutive samples, least significant chunk first.
func readSamples(payload []uint64, event *WaveformEvent) {
	nChannels := len(event.ChannelsEnabled)
	for w, word := range payload {
		channel := event.ChannelsEnabled[w%nChannels]
		sample := (w / nChannels) * SAMPLES_PER_WORD
		waveform := event.Waveforms[channel]
		waveform[sample] = uint16(word & 0xFFFF)
		waveform[sample+1] = uint16((word >> 16) & 0xFFFF)
		waveform[sample+2] = uint16((word >> 32) & 0xFFFF)
		waveform[sample+3] = uint16((word >> 48) & 0xFFFF)
	}
}

func readBeginOfRun(record RawRecord, header EventHeader) (*BeginOfRunEvent, error) {
	data := record.Words
	if len(data) < 4 {
		return nil, malformed(record, "begin of run record has %d words, needs 4", len(data))
	}
	return &BeginOfRunEvent{
		EventHeader:     header,
		WaveformWidth:   uint32(data[1]&0x1FFFFFF) * SAMPLES_PER_WORD,
		ChannelMaskLow:  uint32(data[2] & 0xFFFFFFFF),
		ChannelMaskHigh: uint32(data[3] & 0xFFFFFFFF),
	}, nil
}

func readEndOfRun(record RawRecord, header EventHeader) (*EndOfRunEvent, error) {
	data := record.Words
	if len(data) < 3 {
		return nil, malformed(record, "end of run record has %d words, needs 3", len(data))
	}
	return &EndOfRunEvent{
		EventHeader: header,
		Realtime:    data[1] & 0xFFFFFFFFFFFF,
		Deadtime:    uint32(data[2] & 0xFFFFFFFF),
	}, nil
}

// DumpSummary prints a short human readable description of a decoded record.
func DumpSummary(w io.Writer, event Event) {
	h := event.Header()
	switch ev := event.(type) {
	case *WaveformEvent:
		firstChannel := ev.ChannelsEnabled[0]
		waveform := ev.Waveforms[firstChannel]
		first := waveform[:min(10, len(waveform))]
		fmt.Fprintf(w, "  Trigger # %d for board %03d/%02d\n", ev.EventCounter, h.FrontendID, h.BoardID)
		fmt.Fprintf(w, "    Format: 0x%x, flags: 0x%x, overlap: 0x%x\n", uint8(h.Format), ev.Flags, ev.Overlap)
		fmt.Fprintf(w, "    Trigger time: %.6fs\n", ev.TriggerTimeSecs())
		fmt.Fprintf(w, "    First 10 samples on chan %d: %v\n", firstChannel, first)
	case *BeginOfRunEvent:
		fmt.Fprintf(w, "  Begin of run event for board %03d/%02d\n", h.FrontendID, h.BoardID)
		fmt.Fprintf(w, "    Waveform width: %d samples\n", ev.WaveformWidth)
		fmt.Fprintf(w, "    Channels enabled (31-00): 0x%08x\n", ev.ChannelMaskLow)
		fmt.Fprintf(w, "    Channels enabled (63-32): 0x%08x\n", ev.ChannelMaskHigh)
	case *EndOfRunEvent:
		fmt.Fprintf(w, "  End of run event for board %03d/%02d\n", h.FrontendID, h.BoardID)
		fmt.Fprintf(w, "    Realtime: %d\n", ev.Realtime)
		fmt.Fprintf(w, "    Deadtime: %d\n", ev.Deadtime)
	default:
		fmt.Fprintf(w, "  Event of unhandled format 0x%x for board %03d/%02d\n", uint8(h.Format), h.FrontendID, h.BoardID)
	}
}
