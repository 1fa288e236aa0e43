// Package dataset validates and summarizes uploaded battery-cycle CSV files.
package dataset

import (
	"encoding/csv"
	"errors"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	pkgerrors "github.com/pkg/errors"

	"github.com/charlie0129/battsense/pkg/soh"
)

var (
	// ErrInvalidFileType is returned when an upload is not a CSV file.
	ErrInvalidFileType = errors.New("invalid file type, please upload a CSV file")

	// ErrEmptyDataset is returned when a CSV file has no header row.
	ErrEmptyDataset = errors.New("dataset is empty")

	// ErrInvalidValue is returned for non-finite measurements and cycle
	// numbers outside [0, soh.MaxCycleCount].
	ErrInvalidValue = errors.New("invalid value")
)

// column aliases, matched case-insensitively against the header row.
var columns = map[string][]string{
	"cycle":       {"cycle", "cycles", "cycle_count", "cyclecount"},
	"voltage":     {"voltage", "voltage_measured"},
	"current":     {"current", "current_measured"},
	"temperature": {"temperature", "temperature_measured", "temp"},
	"capacity":    {"capacity", "capacity_ah"},
}

// Summary describes an uploaded dataset. Mean values are nil when the
// corresponding column is absent or has no data.
type Summary struct {
	FileName    string   `json:"fileName,omitempty"`
	Rows        int      `json:"rows"`
	CycleCount  int      `json:"cycleCount"`
	Voltage     *float64 `json:"voltage,omitempty"`
	Current     *float64 `json:"current,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
	Capacity    *float64 `json:"capacity,omitempty"`
}

// ValidateFile accepts a file whose name ends in .csv or whose content type
// is text/csv.
func ValidateFile(name, contentType string) error {
	if strings.EqualFold(filepath.Ext(name), ".csv") {
		return nil
	}
	mediaType, _, _ := strings.Cut(contentType, ";")
	if strings.EqualFold(strings.TrimSpace(mediaType), "text/csv") {
		return nil
	}
	return ErrInvalidFileType
}

// Load validates and parses the CSV file at path.
func Load(path string) (*Summary, error) {
	if err := ValidateFile(path, ""); err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to open dataset %s", path)
	}
	defer f.Close() //nolint:errcheck

	s, err := Parse(f)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to parse dataset %s", path)
	}
	s.FileName = filepath.Base(path)
	return s, nil
}

// Parse reads a CSV stream whose first record is the header row. Unknown
// columns are ignored; known columns must hold numbers or be blank.
func Parse(r io.Reader) (*Summary, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, ErrEmptyDataset
	}
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to read header")
	}

	index := resolveColumns(header)
	acc := means{}
	for name := range index {
		acc[name] = &mean{}
	}

	s := &Summary{}
	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, pkgerrors.Wrapf(err, "row %d", line)
		}
		s.Rows++

		for name, i := range index {
			raw := strings.TrimSpace(record[i])
			if raw == "" {
				continue
			}
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return nil, pkgerrors.Wrapf(err, "row %d: invalid %s %q", line, name, raw)
			}
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, pkgerrors.Wrapf(ErrInvalidValue, "row %d: %s must be a finite number, got %q", line, name, raw)
			}
			if name == "cycle" {
				if v < 0 || v > soh.MaxCycleCount {
					return nil, pkgerrors.Wrapf(ErrInvalidValue, "row %d: cycle %q out of range [0, %d]", line, raw, soh.MaxCycleCount)
				}
				if int(v) > s.CycleCount {
					s.CycleCount = int(v)
				}
			}
			acc[name].add(v)
		}
	}

	s.Voltage = acc.value("voltage")
	s.Current = acc.value("current")
	s.Temperature = acc.value("temperature")
	s.Capacity = acc.value("capacity")
	return s, nil
}

func resolveColumns(header []string) map[string]int {
	index := map[string]int{}
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(h))
		for name, aliases := range columns {
			if _, seen := index[name]; seen {
				continue
			}
			for _, a := range aliases {
				if h == a {
					index[name] = i
				}
			}
		}
	}
	return index
}

type mean struct {
	sum float64
	n   int
}

func (m *mean) add(v float64) {
	m.sum += v
	m.n++
}

type means map[string]*mean

func (acc means) value(name string) *float64 {
	m, ok := acc[name]
	if !ok || m.n == 0 {
		return nil
	}
	v := m.sum / float64(m.n)
	return &v
}
