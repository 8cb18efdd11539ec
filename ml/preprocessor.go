package ml

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

var ErrAllMissing = errors.New("column has no values to impute from")

// Imputer replaces missing readings with the per-column mean of the observed readings.
// The means depend on the rows it was fitted on, so a different slice of data yields different
// fill values. They are recorded in the artifact for reference; prediction never imputes.
type Imputer struct {
	schema Schema
	means  []float64
}

// FitImputer computes one mean per schema column, each over that column's non-missing values only.
func FitImputer(ds *Dataset) (*Imputer, error) {
	if ds.Len() == 0 {
		return nil, ErrEmptyDataset
	}
	means := make([]float64, len(ds.Schema))
	for col, name := range ds.Schema {
		observed := make([]float64, 0, len(ds.Samples))
		for _, sample := range ds.Samples {
			if v := sample.Features[col]; !math.IsNaN(v) {
				observed = append(observed, v)
			}
		}
		if len(observed) == 0 {
			return nil, fmt.Errorf("%w: %s", ErrAllMissing, name)
		}
		means[col] = stat.Mean(observed, nil)
	}
	return &Imputer{schema: ds.Schema, means: means}, nil
}

// Transform returns a copy of ds with every NaN replaced by its column mean.
func (p *Imputer) Transform(ds *Dataset) (*Dataset, error) {
	if !p.schema.Equal(ds.Schema) {
		return nil, CheckCompatible(p.schema, ds.Schema)
	}
	out := ds.Clone()
	for i := range out.Samples {
		for col, v := range out.Samples[i].Features {
			if math.IsNaN(v) {
				out.Samples[i].Features[col] = p.means[col]
			}
		}
	}
	return out, nil
}

// Means maps feature name to the fill value.
func (p *Imputer) Means() map[string]float64 {
	means := make(map[string]float64, len(p.schema))
	for i, name := range p.schema {
		means[name] = p.means[i]
	}
	return means
}

// Impute fits on ds and transforms it in one step.
func Impute(ds *Dataset) (*Dataset, *Imputer, error) {
	imputer, err := FitImputer(ds)
	if err != nil {
		return nil, nil, err
	}
	out, err := imputer.Transform(ds)
	if err != nil {
		return nil, nil, err
	}
	return out, imputer, nil
}
