package vx2740

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"unsafe"

	"github.com/pierrec/lz4/v4"
)

// MidasFile reads MIDAS events sequentially from a stream.
type MidasFile struct {
	reader    io.Reader
	closer    io.Closer
	EvtCount  int
	RunNumber int
}

func NewMidasFile(reader io.Reader) *MidasFile {
	return &MidasFile{reader: bufio.NewReader(reader), EvtCount: -1, RunNumber: -1}
}

// OpenMidasFile opens a MIDAS file, decompressing it when its name ends in .lz4.
func OpenMidasFile(filename string) (*MidasFile, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, &ErrOpenFile{Filename: filename, Err: err}
	}
	var reader io.Reader = file
	if strings.HasSuffix(filename, ".lz4") {
		reader = lz4.NewReader(file)
	}
	midasFile := NewMidasFile(reader)
	midasFile.closer = file
	return midasFile, nil
}

func (f *MidasFile) Close() error {
	if f.closer == nil {
		return nil
	}
	return f.closer.Close()
}

// NextEvent returns io.EOF once the stream ends on an event boundary.
func (f *MidasFile) NextEvent() (MidasEvent, error) {
	var header MidasEventHeaderStruct
	headerBinary := make([]byte, unsafe.Sizeof(header))
	if _, err := io.ReadFull(f.reader, headerBinary); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return MidasEvent{}, fmt.Errorf("truncated event header: %w", err)
		}
		return MidasEvent{}, err
	}
	binary.Read(bytes.NewReader(headerBinary), binary.LittleEndian, &header)

	data := make([]byte, header.DataSize)
	if _, err := io.ReadFull(f.reader, data); err != nil {
		return MidasEvent{}, fmt.Errorf("truncated event %d (serial %d): %w", header.EventID, header.SerialNumber, err)
	}
	f.EvtCount++

	event := MidasEvent{Header: header}
	if header.IsInternal() {
		event.Data = data
		if header.EventID == EVENTID_BOR {
			f.RunNumber = int(header.SerialNumber)
		}
		return event, nil
	}

	banks, err := readBanks(data)
	if err != nil {
		return event, fmt.Errorf("event serial %d: %w", header.SerialNumber, err)
	}
	event.Banks = banks
	return event, nil
}

func readBanks(data []byte) ([]MidasBank, error) {
	var bankHeader BankHeaderStruct
	bankHeaderSize := int(unsafe.Sizeof(bankHeader))
	if len(data) < bankHeaderSize {
		return nil, fmt.Errorf("event data too short for bank header")
	}
	binary.Read(bytes.NewReader(data[:bankHeaderSize]), binary.LittleEndian, &bankHeader)

	end := bankHeaderSize + int(bankHeader.DataSize)
	if end > len(data) {
		return nil, fmt.Errorf("bank area of %d bytes exceeds event size %d", bankHeader.DataSize, len(data)-bankHeaderSize)
	}

	banks := make([]MidasBank, 0)
	position := bankHeaderSize
	for position < end {
		bank, nRead, err := readBank(data[position:end], bankHeader.Flags)
		if err != nil {
			return banks, err
		}
		banks = append(banks, bank)
		position += nRead
	}
	return banks, nil
}

// readBank returns the bank at the start of data and the number of bytes it
// takes including the padding to the next bank.
func readBank(data []byte, flags uint32) (MidasBank, int, error) {
	var bank MidasBank
	var headerSize int
	var dataSize int
	reader := bytes.NewReader(data)

	switch {
	case flags&BANK_FORMAT_64BIT_ALIGNED != 0:
		var header Bank32AStruct
		headerSize = int(unsafe.Sizeof(header))
		if len(data) < headerSize {
			return bank, 0, fmt.Errorf("truncated bank header")
		}
		binary.Read(reader, binary.LittleEndian, &header)
		bank.Name = string(header.Name[:])
		bank.Type = header.Type
		dataSize = int(header.DataSize)
	case flags&BANK_FORMAT_32BIT != 0:
		var header Bank32Struct
		headerSize = int(unsafe.Sizeof(header))
		if len(data) < headerSize {
			return bank, 0, fmt.Errorf("truncated bank header")
		}
		binary.Read(reader, binary.LittleEndian, &header)
		bank.Name = string(header.Name[:])
		bank.Type = header.Type
		dataSize = int(header.DataSize)
	default:
		var header BankStruct
		headerSize = int(unsafe.Sizeof(header))
		if len(data) < headerSize {
			return bank, 0, fmt.Errorf("truncated bank header")
		}
		binary.Read(reader, binary.LittleEndian, &header)
		bank.Name = string(header.Name[:])
		bank.Type = uint32(header.Type)
		dataSize = int(header.DataSize)
	}

	if headerSize+dataSize > len(data) {
		return bank, 0, fmt.Errorf("bank %q of %d bytes exceeds the bank area", bank.Name, dataSize)
	}
	bank.Data = data[headerSize : headerSize+dataSize]
	return bank, headerSize + alignBank(dataSize), nil
}

func alignBank(size int) int {
	return (size + BANK_ALIGNMENT - 1) / BANK_ALIGNMENT * BANK_ALIGNMENT
}

// Words returns the bank data as little endian 64-bit words.
func (b MidasBank) Words() ([]uint64, error) {
	if len(b.Data)%8 != 0 {
		return nil, fmt.Errorf("bank %q has %d bytes, not a multiple of 8", b.Name, len(b.Data))
	}
	words := make([]uint64, len(b.Data)/8)
	for i := range words {
		words[i] = binary.LittleEndian.Uint64(b.Data[i*8:])
	}
	return words, nil
}

// BoardID parses the board id from digitizer bank names such as D001.
func (b MidasBank) BoardID() (int, error) {
	if !strings.HasPrefix(b.Name, "D") {
		return -1, fmt.Errorf("not a digitizer bank")
	}
	return strconv.Atoi(strings.TrimPrefix(b.Name, "D"))
}

// RecordsFromEvent extracts one record per digitizer bank. Banks whose name
// starts with D but carry no board id are returned as errors and skipped.
func RecordsFromEvent(event MidasEvent) ([]RawRecord, []error) {
	if event.IsInternal() {
		return nil, nil
	}
	records := make([]RawRecord, 0, len(event.Banks))
	var errs []error
	for _, bank := range event.Banks {
		if !strings.HasPrefix(bank.Name, "D") {
			continue
		}
		boardID, err := bank.BoardID()
		if err != nil {
			errs = append(errs, &UnrecognizedBankError{Name: bank.Name, Err: err})
			continue
		}
		words, err := bank.Words()
		if err != nil {
			errs = append(errs, &UnrecognizedBankError{Name: bank.Name, Err: err})
			continue
		}
		records = append(records, RawRecord{
			FrontendID: int(event.Header.TriggerMask),
			BoardID:    boardID,
			Words:      words,
		})
	}
	return records, errs
}
