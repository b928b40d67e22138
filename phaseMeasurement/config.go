package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	vx2740 "github.com/dsproto/vx2740_go/pkg"
)

// LoadConfiguration reads the configuration file on top of the defaults. The
// format is chosen by extension: .toml, .yaml/.yml, anything else is JSON.
// An empty filename returns the defaults.
func LoadConfiguration(filename string) (vx2740.Configuration, error) {
	config := vx2740.DefaultConfiguration()
	if filename == "" {
		return config, nil
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		return config, err
	}

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".toml":
		decoder := toml.NewDecoder(bytes.NewReader(data))
		decoder.DisallowUnknownFields()
		err = decoder.Decode(&config)
	case ".yaml", ".yml":
		decoder := yaml.NewDecoder(bytes.NewReader(data))
		decoder.KnownFields(true)
		err = decoder.Decode(&config)
	default:
		decoder := json.NewDecoder(bytes.NewReader(data))
		decoder.DisallowUnknownFields()
		err = decoder.Decode(&config)
	}
	if err != nil {
		return config, fmt.Errorf("error decoding %s: %w", filename, err)
	}
	return config, nil
}

type cliOptions struct {
	configFilename string
	fileIn         string
	fileOut        string
	maxEvents      int
	numBoards      int
	sampleCount    int
	stopEvent      int
	histMin        float64
	histMax        float64
	histBins       int
	workers        int
	writeTxt       bool
}

func newFlagSet(opts *cliOptions) *pflag.FlagSet {
	flags := pflag.NewFlagSet("phaseMeasurement", pflag.ContinueOnError)
	flags.StringVarP(&opts.configFilename, "config", "c", "", "Configuration file path (json, toml or yaml)")
	flags.StringVar(&opts.fileIn, "file", "", "MIDAS file to read (.mid or .mid.lz4)")
	flags.StringVar(&opts.fileOut, "out", "", "HDF5 output file")
	flags.IntVar(&opts.maxEvents, "events", 0, "Number of events per board to buffer")
	flags.IntVar(&opts.numBoards, "boards", 0, "Number of boards in the run")
	flags.IntVar(&opts.sampleCount, "samples", 0, "Samples per waveform")
	flags.IntVar(&opts.stopEvent, "stop", 0, "Event counter after which a board stops buffering")
	flags.Float64Var(&opts.histMin, "hist-min", 0, "Lower edge of the phase difference histogram (ns)")
	flags.Float64Var(&opts.histMax, "hist-max", 0, "Upper edge of the phase difference histogram (ns)")
	flags.IntVar(&opts.histBins, "bins", 0, "Number of histogram bins")
	flags.IntVar(&opts.workers, "workers", 0, "Goroutines fitting waveforms")
	flags.BoolVar(&opts.writeTxt, "txt", false, "Write the text report")
	return flags
}

// applyFlags overrides the configuration with the flags given on the
// command line.
func applyFlags(flags *pflag.FlagSet, opts cliOptions, config *vx2740.Configuration) {
	if flags.Changed("file") {
		config.FileIn = opts.fileIn
	}
	if flags.Changed("out") {
		config.FileOut = opts.fileOut
	}
	if flags.Changed("events") {
		config.MaxEvents = opts.maxEvents
	}
	if flags.Changed("boards") {
		config.NumBoards = opts.numBoards
	}
	if flags.Changed("samples") {
		config.SampleCount = opts.sampleCount
	}
	if flags.Changed("stop") {
		config.StopEvent = opts.stopEvent
	}
	if flags.Changed("hist-min") {
		config.HistMin = opts.histMin
	}
	if flags.Changed("hist-max") {
		config.HistMax = opts.histMax
	}
	if flags.Changed("bins") {
		config.HistBins = opts.histBins
	}
	if flags.Changed("workers") {
		config.Workers = opts.workers
	}
	if flags.Changed("txt") {
		config.WriteTxt = opts.writeTxt
	}
}

func printConfiguration(config vx2740.Configuration, logger Logger) {
	logger.Info(fmt.Sprintf("File in: %s", config.FileIn), "config")
	logger.Info(fmt.Sprintf("File out: %s", config.FileOut), "config")
	logger.Info(fmt.Sprintf("Write txt: %t (%s)", config.WriteTxt, config.ReportFilename()), "config")
	logger.Info(fmt.Sprintf("Metrics file: %s", config.MetricsFile), "config")
	logger.Info(fmt.Sprintf("Number of boards: %d", config.NumBoards), "config")
	logger.Info(fmt.Sprintf("Max events: %d", config.MaxEvents), "config")
	logger.Info(fmt.Sprintf("Sample count: %d", config.SampleCount), "config")
	logger.Info(fmt.Sprintf("Stop event: %d", config.StopEvent), "config")
	logger.Info(fmt.Sprintf("Skip: %d", config.Skip), "config")
	logger.Info(fmt.Sprintf("Histogram: [%g, %g] ns, %d bins", config.HistMin, config.HistMax, config.HistBins), "config")
	logger.Info(fmt.Sprintf("Clock channel: %d", config.ClockChannel), "config")
	logger.Info(fmt.Sprintf("Run number: %d", config.RunNumber), "config")
	logger.Info(fmt.Sprintf("No DB: %t", config.NoDB), "config")
	logger.Info(fmt.Sprintf("DB driver: %s", config.DBDriver), "config")
	logger.Info(fmt.Sprintf("Host: %s", config.Host), "config")
	logger.Info(fmt.Sprintf("DB name: %s", config.DBName), "config")
	logger.Info(fmt.Sprintf("Compression level: %d", config.CompressionLevel), "config")
	logger.Info(fmt.Sprintf("Workers: %d", config.Workers), "config")
	logger.Info(fmt.Sprintf("Verbosity: %d", config.Verbosity), "config")
}
