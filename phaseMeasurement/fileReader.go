package main

import (
	"fmt"

	vx2740 "github.com/dsproto/vx2740_go/pkg"
)

// FileReader returns the data events of a MIDAS file, skipping the internal
// ones and the first configured number of data events.
type FileReader struct {
	File     *vx2740.MidasFile
	EvtCount int
	skip     int
	logger   Logger
	verbose  int
}

func NewFileReader(file *vx2740.MidasFile, skip int, logger Logger, verbosity int) *FileReader {
	return &FileReader{File: file, EvtCount: -1, skip: skip, logger: logger, verbose: verbosity}
}

func (f *FileReader) getNextEvent() (vx2740.MidasEvent, error) {
	for {
		event, err := f.File.NextEvent()
		if err != nil {
			return event, err
		}
		if event.IsInternal() {
			if f.verbose > 1 {
				message := fmt.Sprintf("Internal event 0x%04x, serial %d", event.Header.EventID, event.Header.SerialNumber)
				f.logger.Info(message, "fileReader")
			}
			continue
		}
		f.EvtCount++
		if f.EvtCount < f.skip {
			if f.verbose > 0 {
				message := fmt.Sprintf("Skipping event %d with serial %d", f.EvtCount, event.Header.SerialNumber)
				f.logger.Info(message, "fileReader")
			}
			continue
		}
		if f.verbose > 1 {
			message := fmt.Sprintf("Reading event %d with serial %d", f.EvtCount, event.Header.SerialNumber)
			f.logger.Info(message, "fileReader")
		}
		return event, nil
	}
}

// RunNumber is the serial number of the begin of run event, -1 before it is read.
func (f *FileReader) RunNumber() int {
	return f.File.RunNumber
}
