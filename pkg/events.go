package vx2740

// Format is the record format tag stored in the top byte of the first word.
type Format uint8

const (
	FORMAT_WAVEFORM     Format = 0x10
	FORMAT_BEGIN_OF_RUN Format = 0x30
	FORMAT_END_OF_RUN   Format = 0x32
)

func (f Format) String() string {
	switch f {
	case FORMAT_WAVEFORM:
		return "waveform"
	case FORMAT_BEGIN_OF_RUN:
		return "begin-of-run"
	case FORMAT_END_OF_RUN:
		return "end-of-run"
	default:
		return "unknown"
	}
}

// Trigger timestamps are counted in ticks of a 125 MHz clock.
const TRIGGER_CLOCK_HZ float64 = 1.25e8

// RawRecord is the payload of one digitizer data bank.
type RawRecord struct {
	FrontendID int
	BoardID    int
	Words      []uint64
}

type EventHeader struct {
	FrontendID int
	BoardID    int
	Format     Format
}

// Event is one decoded record. The concrete type is one of *WaveformEvent,
// *BeginOfRunEvent, *EndOfRunEvent or *UnknownEvent.
type Event interface {
	Header() EventHeader
	isEvent()
}

func (h EventHeader) Header() EventHeader { return h }
func (EventHeader) isEvent()              {}

type WaveformEvent struct {
	EventHeader
	EventCounter     uint32
	SizeWords        uint32
	Flags            uint16
	Overlap          uint8
	TriggerTimeTicks uint64
	ChannelsEnabled  []int
	Waveforms        map[int][]uint16
}

func (e *WaveformEvent) TriggerTimeSecs() float64 {
	return float64(e.TriggerTimeTicks) / TRIGGER_CLOCK_HZ
}

func (e *WaveformEvent) SamplesPerChannel() int {
	if len(e.ChannelsEnabled) == 0 {
		return 0
	}
	return len(e.Waveforms[e.ChannelsEnabled[0]])
}

type BeginOfRunEvent struct {
	EventHeader
	WaveformWidth   uint32
	ChannelMaskLow  uint32
	ChannelMaskHigh uint32
}

type EndOfRunEvent struct {
	EventHeader
	Realtime uint64
	Deadtime uint32
}

type UnknownEvent struct {
	EventHeader
	Words []uint64
}
