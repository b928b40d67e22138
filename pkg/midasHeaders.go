package vx2740

// MIDAS event ids reserved for run transitions and messages.
const (
	EVENTID_BOR     uint16 = 0x8000
	EVENTID_EOR     uint16 = 0x8001
	EVENTID_MESSAGE uint16 = 0x8002
)

// Bank header flags.
const (
	BANK_FORMAT_VERSION       = 1
	BANK_FORMAT_32BIT         = 1 << 4
	BANK_FORMAT_64BIT_ALIGNED = 1 << 5
)

// Bank data types. Digitizer banks are stored as 64-bit words.
const (
	TID_UINT8  = 1
	TID_UINT16 = 4
	TID_UINT32 = 6
	TID_UINT64 = 17
	TID_INT64  = 18
)

const BANK_ALIGNMENT = 8

type MidasEventHeaderStruct struct {
	EventID      uint16
	TriggerMask  uint16
	SerialNumber uint32
	TimeStamp    uint32
	DataSize     uint32
}

type BankHeaderStruct struct {
	DataSize uint32
	Flags    uint32
}

type BankStruct struct {
	Name     [4]byte
	Type     uint16
	DataSize uint16
}

type Bank32Struct struct {
	Name     [4]byte
	Type     uint32
	DataSize uint32
}

type Bank32AStruct struct {
	Name     [4]byte
	Type     uint32
	DataSize uint32
	Reserved uint32
}

type MidasBank struct {
	Name string
	Type uint32
	Data []byte
}

type MidasEvent struct {
	Header MidasEventHeaderStruct
	Banks  []MidasBank
	// Payload of internal events, which carry no banks.
	Data []byte
}

func (h MidasEventHeaderStruct) IsInternal() bool {
	switch h.EventID {
	case EVENTID_BOR, EVENTID_EOR, EVENTID_MESSAGE:
		return true
	}
	return false
}

func (e MidasEvent) IsInternal() bool {
	return e.Header.IsInternal()
}

func (e MidasEvent) Bank(name string) (MidasBank, bool) {
	for _, bank := range e.Banks {
		if bank.Name == name {
			return bank, true
		}
	}
	return MidasBank{}, false
}
