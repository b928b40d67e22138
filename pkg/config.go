package vx2740

import (
	"errors"
	"fmt"
)

type Configuration struct {
	FileIn           string  `json:"file_in" toml:"file_in" yaml:"file_in"`
	FileOut          string  `json:"file_out" toml:"file_out" yaml:"file_out"`
	WriteTxt         bool    `json:"write_txt" toml:"write_txt" yaml:"write_txt"`
	ReportFile       string  `json:"report_file" toml:"report_file" yaml:"report_file"`
	MetricsFile      string  `json:"metrics_file" toml:"metrics_file" yaml:"metrics_file"`
	NumBoards        int     `json:"num_boards" toml:"num_boards" yaml:"num_boards"`
	MaxEvents        int     `json:"max_events" toml:"max_events" yaml:"max_events"`
	SampleCount      int     `json:"sample_count" toml:"sample_count" yaml:"sample_count"`
	StopEvent        int     `json:"stop_event" toml:"stop_event" yaml:"stop_event"`
	Skip             int     `json:"skip" toml:"skip" yaml:"skip"`
	HistMin          float64 `json:"hist_min" toml:"hist_min" yaml:"hist_min"`
	HistMax          float64 `json:"hist_max" toml:"hist_max" yaml:"hist_max"`
	HistBins         int     `json:"hist_bins" toml:"hist_bins" yaml:"hist_bins"`
	ClockChannel     int     `json:"clock_channel" toml:"clock_channel" yaml:"clock_channel"`
	RunNumber        int     `json:"run_number" toml:"run_number" yaml:"run_number"`
	Workers          int     `json:"workers" toml:"workers" yaml:"workers"`
	Verbosity        int     `json:"verbosity" toml:"verbosity" yaml:"verbosity"`
	NoDB             bool    `json:"no_db" toml:"no_db" yaml:"no_db"`
	DBDriver         string  `json:"db_driver" toml:"db_driver" yaml:"db_driver"`
	Host             string  `json:"host" toml:"host" yaml:"host"`
	User             string  `json:"user" toml:"user" yaml:"user"`
	Passwd           string  `json:"pass" toml:"pass" yaml:"pass"`
	DBName           string  `json:"dbname" toml:"dbname" yaml:"dbname"`
	CompressionLevel int     `json:"compression_level" toml:"compression_level" yaml:"compression_level"`
}

func DefaultConfiguration() Configuration {
	return Configuration{
		NumBoards:        2,
		MaxEvents:        1000,
		SampleCount:      0,
		StopEvent:        100,
		HistMin:          -10,
		HistMax:          10,
		HistBins:         100,
		ClockChannel:     0,
		Workers:          1,
		Verbosity:        0,
		NoDB:             true,
		DBDriver:         "mysql",
		Host:             "localhost",
		User:             "dsreader",
		Passwd:           "readonly",
		DBName:           "DSPROTO",
		CompressionLevel: 4,
	}
}

func (c Configuration) Histogram() HistogramConfig {
	return HistogramConfig{Min: c.HistMin, Max: c.HistMax, Bins: c.HistBins}
}

func (c Configuration) Pipeline() PipelineConfig {
	return PipelineConfig{
		NumBoards:   c.NumBoards,
		MaxEvents:   c.MaxEvents,
		SampleCount: c.SampleCount,
		StopEvent:   c.StopEvent,
		Histogram:   c.Histogram(),
		Workers:     c.Workers,
		Verbosity:   c.Verbosity,
	}
}

// ReportFilename defaults to the input file name with a .txt suffix.
func (c Configuration) ReportFilename() string {
	if c.ReportFile != "" {
		return c.ReportFile
	}
	return c.FileIn + ".txt"
}

func (c Configuration) Validate() error {
	var errs []error
	if c.FileIn == "" {
		errs = append(errs, errors.New("file_in is required"))
	}
	if c.NumBoards != 2 {
		errs = append(errs, fmt.Errorf("num_boards must be 2, got %d", c.NumBoards))
	}
	if c.MaxEvents <= 0 {
		errs = append(errs, fmt.Errorf("max_events must be positive, got %d", c.MaxEvents))
	}
	if c.SampleCount < 0 {
		errs = append(errs, fmt.Errorf("sample_count must not be negative, got %d", c.SampleCount))
	}
	if c.StopEvent < 0 {
		errs = append(errs, fmt.Errorf("stop_event must not be negative, got %d", c.StopEvent))
	}
	if c.Skip < 0 {
		errs = append(errs, fmt.Errorf("skip must not be negative, got %d", c.Skip))
	}
	if c.Workers < 1 {
		errs = append(errs, fmt.Errorf("workers must be positive, got %d", c.Workers))
	}
	if c.ClockChannel < 0 || c.ClockChannel > 63 {
		errs = append(errs, fmt.Errorf("clock_channel must be in 0..63, got %d", c.ClockChannel))
	}
	if err := c.Histogram().Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
