// Package export serializes run results: per-sample CSV time series, the
// configuration snapshot, and the final HDF5 observables file.
package export

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"

	"github.com/pthm-cable/abp2d/config"
	"github.com/pthm-cable/abp2d/telemetry"
)

// SampleRecord is one row of the per-sample time series.
type SampleRecord struct {
	Step     int     `csv:"step"`
	SimTime  float64 `csv:"sim_time"`
	FAlong   float64 `csv:"f_along"`
	FAlongSq float64 `csv:"f_along_sq"`
}

// Output handles structured run output with CSV logging.
type Output struct {
	dir         string
	samplesFile *os.File
	perfFile    *os.File

	// Track if headers have been written
	samplesHeaderWritten bool
	perfHeaderWritten    bool
}

// NewOutput creates an output manager and initializes the output directory.
// Returns nil if dir is empty (output disabled).
func NewOutput(dir string) (*Output, error) {
	if dir == "" {
		return nil, nil
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	o := &Output{dir: dir}

	f, err := os.Create(filepath.Join(dir, "samples.csv"))
	if err != nil {
		return nil, fmt.Errorf("creating samples.csv: %w", err)
	}
	o.samplesFile = f

	f, err = os.Create(filepath.Join(dir, "perf.csv"))
	if err != nil {
		o.samplesFile.Close()
		return nil, fmt.Errorf("creating perf.csv: %w", err)
	}
	o.perfFile = f

	return o, nil
}

// WriteConfig saves the current configuration as YAML.
func (o *Output) WriteConfig(cfg *config.Config) error {
	if o == nil {
		return nil
	}
	return cfg.WriteYAML(filepath.Join(o.dir, "config.yaml"))
}

// WriteSample appends a record to samples.csv.
func (o *Output) WriteSample(rec SampleRecord) error {
	if o == nil {
		return nil
	}

	records := []SampleRecord{rec}

	if !o.samplesHeaderWritten {
		// First write includes headers
		if err := gocsv.Marshal(records, o.samplesFile); err != nil {
			return fmt.Errorf("writing sample: %w", err)
		}
		o.samplesHeaderWritten = true
	} else {
		if err := gocsv.MarshalWithoutHeaders(records, o.samplesFile); err != nil {
			return fmt.Errorf("writing sample: %w", err)
		}
	}

	return nil
}

// WritePerf appends a performance record to perf.csv.
func (o *Output) WritePerf(rec telemetry.PerfRecord) error {
	if o == nil {
		return nil
	}

	records := []telemetry.PerfRecord{rec}

	if !o.perfHeaderWritten {
		if err := gocsv.Marshal(records, o.perfFile); err != nil {
			return fmt.Errorf("writing perf: %w", err)
		}
		o.perfHeaderWritten = true
	} else {
		if err := gocsv.MarshalWithoutHeaders(records, o.perfFile); err != nil {
			return fmt.Errorf("writing perf: %w", err)
		}
	}

	return nil
}

// Dir returns the output directory path.
func (o *Output) Dir() string {
	if o == nil {
		return ""
	}
	return o.dir
}

// Close flushes and closes all output files.
func (o *Output) Close() error {
	if o == nil {
		return nil
	}

	var firstErr error
	if o.samplesFile != nil {
		if err := o.samplesFile.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if o.perfFile != nil {
		if err := o.perfFile.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
