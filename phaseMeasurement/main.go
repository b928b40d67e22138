package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	vx2740 "github.com/dsproto/vx2740_go/pkg"
	"github.com/dsproto/vx2740_go/pkg/writer"
	"github.com/spf13/pflag"
)

var (
	logger         Logger
	VerbosityLevel int
)

func init() {
	opts := &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}
	handlerStdOut := NewHandler(os.Stdout, opts)
	handlerStdErr := slog.NewJSONHandler(os.Stderr, opts)
	logger = Logger{
		InfoLog:  slog.New(handlerStdOut),
		ErrorLog: slog.New(handlerStdErr),
	}
}

func main() {
	var opts cliOptions
	flags := newFlagSet(&opts)
	if err := flags.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		logger.Error(err.Error())
		os.Exit(2)
	}

	configuration, err := LoadConfiguration(opts.configFilename)
	if err != nil {
		message := fmt.Errorf("Error reading configuration file: %w", err)
		logger.Error(message.Error())
		os.Exit(1)
	}
	applyFlags(flags, opts, &configuration)
	if err := configuration.Validate(); err != nil {
		message := fmt.Errorf("Invalid configuration: %w", err)
		logger.Error(message.Error())
		os.Exit(1)
	}

	VerbosityLevel = configuration.Verbosity
	if VerbosityLevel > 0 {
		message := fmt.Sprintf("Reading configuration file: %s", opts.configFilename)
		logger.Info(message, "main")
		printConfiguration(configuration, logger)
	}

	start := time.Now()
	if err := run(configuration); err != nil {
		logger.Error(err.Error())
		os.Exit(1)
	}
	if VerbosityLevel > 0 {
		message := fmt.Sprintf("Total time: %d ms", time.Since(start).Milliseconds())
		logger.Info(message, "main")
	}
}

func run(configuration vx2740.Configuration) error {
	file, err := vx2740.OpenMidasFile(configuration.FileIn)
	if err != nil {
		return err
	}
	defer file.Close()
	fileReader := NewFileReader(file, configuration.Skip, logger, VerbosityLevel)

	var pipeline *vx2740.Pipeline
	runNumber := configuration.RunNumber

	for done := false; !done; {
		event, err := fileReader.getNextEvent()
		if err != nil {
			if err == io.EOF {
				if VerbosityLevel > 0 {
					logger.Info("End of file reached before every board finished", "main")
				}
				break
			}
			return fmt.Errorf("error reading event: %w", err)
		}

		// The board mapping depends on the run number, known once the
		// begin of run event has been read.
		if pipeline == nil {
			if runNumber <= 0 {
				runNumber = fileReader.RunNumber()
			}
			boardMap, err := loadBoardMap(configuration, runNumber)
			if err != nil {
				return err
			}
			pipeline, err = vx2740.NewPipeline(configuration.Pipeline(), boardMap, logger)
			if err != nil {
				return err
			}
		}

		records, bankErrs := vx2740.RecordsFromEvent(event)
		for _, bankErr := range bankErrs {
			message := fmt.Errorf("event serial %d: %w", event.Header.SerialNumber, bankErr)
			logger.Error(message.Error())
		}
		for _, record := range records {
			done, err = pipeline.Process(record)
			if err != nil {
				return fmt.Errorf("event serial %d: %w", event.Header.SerialNumber, err)
			}
			if done {
				break
			}
		}
	}
	if pipeline == nil {
		return fmt.Errorf("no data events in %s", configuration.FileIn)
	}

	result, err := pipeline.Finish()
	if err != nil {
		return fmt.Errorf("error measuring the phase: %w", err)
	}
	result.RunNumber = runNumber

	return writeOutputs(configuration, result)
}

func loadBoardMap(configuration vx2740.Configuration, runNumber int) (vx2740.BoardMap, error) {
	if configuration.NoDB {
		return vx2740.DefaultBoardMap(configuration.ClockChannel), nil
	}
	if runNumber <= 0 {
		return nil, errors.New("run number unknown: set run_number or use no_db")
	}
	dbConn, err := vx2740.ConnectToDatabase(configuration.DBDriver, configuration.User, configuration.Passwd, configuration.Host, configuration.DBName)
	if err != nil {
		return nil, fmt.Errorf("Error connection to database: %w", err)
	}
	defer dbConn.Close()

	boardMap, err := vx2740.GetBoardMapFromDB(dbConn, runNumber)
	if err != nil {
		return nil, err
	}
	if VerbosityLevel > 0 {
		for _, key := range boardMap.Keys() {
			setup := boardMap[key]
			message := fmt.Sprintf("Board %03d/%02d -> slot %d, clock channel %d", key.FrontendID, key.BoardID, setup.Index, setup.ClockChannel)
			logger.Info(message, "database")
		}
	}
	return boardMap, nil
}

func writeOutputs(configuration vx2740.Configuration, result *vx2740.RunResult) error {
	fields := vx2740.ReportFields(result.Stats, configuration.Histogram())
	for _, field := range fields {
		logger.Info(fmt.Sprintf("%s = %s", field.Key, field.Value), "report")
	}

	var errs []error
	if configuration.WriteTxt {
		if err := vx2740.WriteReportFile(configuration.ReportFilename(), fields); err != nil {
			errs = append(errs, fmt.Errorf("error writing report: %w", err))
		}
	}
	if configuration.FileOut != "" {
		if err := writeHDF5(configuration, result); err != nil {
			errs = append(errs, err)
		}
	}
	if configuration.MetricsFile != "" {
		if err := vx2740.WriteMetrics(configuration.MetricsFile); err != nil {
			errs = append(errs, fmt.Errorf("error writing metrics: %w", err))
		}
	}
	return errors.Join(errs...)
}

func writeHDF5(configuration vx2740.Configuration, result *vx2740.RunResult) error {
	w, err := writer.NewWriter(configuration.FileOut, configuration.CompressionLevel)
	if err != nil {
		return err
	}
	if err := w.WriteRun(result); err != nil {
		return errors.Join(err, w.Close())
	}
	return w.Close()
}
