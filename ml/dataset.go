package ml

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

var (
	ErrEmptyDataset   = errors.New("dataset is empty")
	ErrMissingColumn  = errors.New("missing required column")
	ErrNonBinaryLabel = errors.New("label must be 0 or 1")
)

// Label values used by the classifier.
const (
	LabelNotSafe = 0
	LabelSafe    = 1
)

// Sample is one row of feature values. Missing readings are NaN until imputed.
type Sample struct {
	Features []float64 `json:"features"`
	Label    int       `json:"label"`
}

// Dataset is an ordered collection of labeled samples sharing one schema.
type Dataset struct {
	Schema  Schema
	Samples []Sample
}

func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.Samples)
}

// Matrix returns the feature rows and labels as parallel slices.
func (d *Dataset) Matrix() ([][]float64, []int) {
	features := make([][]float64, len(d.Samples))
	labels := make([]int, len(d.Samples))
	for i, sample := range d.Samples {
		features[i] = sample.Features
		labels[i] = sample.Label
	}
	return features, labels
}

// Clone deep-copies the dataset so imputation never touches the caller's rows.
func (d *Dataset) Clone() *Dataset {
	out := &Dataset{
		Schema:  append(Schema(nil), d.Schema...),
		Samples: make([]Sample, len(d.Samples)),
	}
	for i, sample := range d.Samples {
		out.Samples[i] = Sample{
			Features: append([]float64(nil), sample.Features...),
			Label:    sample.Label,
		}
	}
	return out
}

var missingTokens = map[string]bool{
	"":     true,
	"na":   true,
	"n/a":  true,
	"nan":  true,
	"null": true,
	"none": true,
	"-":    true,
}

// LoadDataset opens path and reads it with ReadDataset.
func LoadDataset(path string, schema Schema, labelColumn string) (*Dataset, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer file.Close()

	ds, err := ReadDataset(file, schema, labelColumn)
	if err != nil {
		return nil, fmt.Errorf("read dataset %s: %w", path, err)
	}
	return ds, nil
}

// ReadDataset parses a CSV with a header row. Only the schema columns and the label column are
// read; other columns are ignored. A UTF-8 or UTF-16 byte order mark is honored.
func ReadDataset(r io.Reader, schema Schema, labelColumn string) (*Dataset, error) {
	if len(schema) == 0 {
		return nil, errors.New("feature schema is empty")
	}
	if labelColumn == "" {
		labelColumn = DefaultLabelColumn
	}

	decoded := transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))
	reader := csv.NewReader(decoded)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, ErrEmptyDataset
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.TrimSpace(name)] = i
	}
	featureIdx := make([]int, len(schema))
	for i, name := range schema {
		idx, ok := columns[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, name)
		}
		featureIdx[i] = idx
	}
	labelIdx, ok := columns[labelColumn]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumn, labelColumn)
	}

	ds := &Dataset{Schema: append(Schema(nil), schema...)}
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		features := make([]float64, len(schema))
		for i, idx := range featureIdx {
			value, err := parseReading(record[idx])
			if err != nil {
				return nil, fmt.Errorf("line %d column %s: %w", line, schema[i], err)
			}
			features[i] = value
		}
		label, err := parseLabel(record[labelIdx])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		ds.Samples = append(ds.Samples, Sample{Features: features, Label: label})
	}

	if len(ds.Samples) == 0 {
		return nil, ErrEmptyDataset
	}
	return ds, nil
}

func parseReading(raw string) (float64, error) {
	value := strings.TrimSpace(raw)
	if missingTokens[strings.ToLower(value)] {
		return math.NaN(), nil
	}
	return strconv.ParseFloat(value, 64)
}

func parseLabel(raw string) (int, error) {
	value := strings.TrimSpace(raw)
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrNonBinaryLabel, value)
	}
	switch f {
	case 0:
		return LabelNotSafe, nil
	case 1:
		return LabelSafe, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrNonBinaryLabel, value)
	}
}
