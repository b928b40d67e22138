package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/pflag"

	vx2740 "github.com/dsproto/vx2740_go/pkg"
)

var logger = slog.New(slog.NewJSONHandler(os.Stderr, nil))

func main() {
	maxRecords := pflag.IntP("max", "n", 0, "Stop after this many records (0 reads the whole file)")
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] midas_file\n", os.Args[0])
		pflag.PrintDefaults()
	}
	pflag.Parse()
	if pflag.NArg() != 1 {
		pflag.Usage()
		os.Exit(2)
	}

	if err := dump(pflag.Arg(0), *maxRecords, os.Stdout); err != nil {
		logger.Error(err.Error())
		os.Exit(1)
	}
}

func dump(filename string, maxRecords int, out io.Writer) error {
	file, err := vx2740.OpenMidasFile(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	nRecords := 0
	for {
		event, err := file.NextEvent()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		records, bankErrs := vx2740.RecordsFromEvent(event)
		for _, bankErr := range bankErrs {
			logger.Error(bankErr.Error(), "serial", event.Header.SerialNumber)
		}
		if len(records) > 0 {
			fmt.Fprintf(out, "Midas event serial # %d\n", event.Header.SerialNumber)
		}
		for _, record := range records {
			decoded, err := vx2740.Decode(record)
			if err != nil {
				logger.Error(err.Error(), "serial", event.Header.SerialNumber)
				continue
			}
			vx2740.DumpSummary(out, decoded)
			nRecords++
			if maxRecords > 0 && nRecords >= maxRecords {
				return nil
			}
		}
	}
}
