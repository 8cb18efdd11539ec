// Package water describes the measured water parameters and the regulatory limits shown next to
// each prediction. The limits are display-only; the classifier does not consult them.
package water

import (
	"fmt"
	"strconv"

	"waterguard/ml"
)

// Parameter describes one measurable feature.
type Parameter struct {
	Name  string
	Label string
	Unit  string
}

var parameters = map[string]Parameter{
	ml.FeaturePH:            {Name: ml.FeaturePH, Label: "pH", Unit: ""},
	ml.FeatureFecalColiform: {Name: ml.FeatureFecalColiform, Label: "Fecal Coliform", Unit: "MPN/100 mL"},
	ml.FeatureDO:            {Name: ml.FeatureDO, Label: "Dissolved Oxygen", Unit: "mg/L"},
	ml.FeatureBOD:           {Name: ml.FeatureBOD, Label: "BOD", Unit: "mg/L"},
	ml.FeatureTurbidity:     {Name: ml.FeatureTurbidity, Label: "Turbidity", Unit: "NTU"},
	ml.FeatureTemp:          {Name: ml.FeatureTemp, Label: "Temperature", Unit: "°C"},
}

// Lookup returns the descriptor for a feature name.
func Lookup(name string) (Parameter, bool) {
	p, ok := parameters[name]
	return p, ok
}

// Thresholds are inclusive regulatory limits.
type Thresholds struct {
	PHMin            float64 `yaml:"ph_min"`
	PHMax            float64 `yaml:"ph_max"`
	FecalColiformMax float64 `yaml:"fecal_coliform_max"`
	DOMin            float64 `yaml:"do_min"`
	BODMax           float64 `yaml:"bod_max"`
	TurbidityMax     float64 `yaml:"turbidity_max"`
	TempMax          float64 `yaml:"temp_max"`
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		PHMin:            6.5,
		PHMax:            8.5,
		FecalColiformMax: 100,
		DOMin:            5,
		BODMax:           5,
		TurbidityMax:     5,
		TempMax:          30,
	}
}

func (t Thresholds) Validate() error {
	if t.PHMin > t.PHMax {
		return fmt.Errorf("thresholds: ph_min %v exceeds ph_max %v", t.PHMin, t.PHMax)
	}
	return nil
}

// ParameterCheck is one line of the readings-versus-limits display.
type ParameterCheck struct {
	Parameter   Parameter
	Value       float64
	Limit       string
	WithinLimit bool
}

func (c ParameterCheck) Status() string {
	if c.WithinLimit {
		return "within limit"
	}
	return "outside limit"
}

// Check compares a single reading with its limit.
func (t Thresholds) Check(name string, value float64) (ParameterCheck, error) {
	param, ok := Lookup(name)
	if !ok {
		return ParameterCheck{}, fmt.Errorf("%w: %q", ml.ErrUnknownFeature, name)
	}
	check := ParameterCheck{Parameter: param, Value: value}
	switch name {
	case ml.FeaturePH:
		check.Limit = fmt.Sprintf("%s–%s", num(t.PHMin), num(t.PHMax))
		check.WithinLimit = value >= t.PHMin && value <= t.PHMax
	case ml.FeatureFecalColiform:
		check.Limit = "≤ " + num(t.FecalColiformMax)
		check.WithinLimit = value <= t.FecalColiformMax
	case ml.FeatureDO:
		check.Limit = "≥ " + num(t.DOMin)
		check.WithinLimit = value >= t.DOMin
	case ml.FeatureBOD:
		check.Limit = "≤ " + num(t.BODMax)
		check.WithinLimit = value <= t.BODMax
	case ml.FeatureTurbidity:
		check.Limit = "≤ " + num(t.TurbidityMax)
		check.WithinLimit = value <= t.TurbidityMax
	case ml.FeatureTemp:
		check.Limit = "≤ " + num(t.TempMax)
		check.WithinLimit = value <= t.TempMax
	}
	if param.Unit != "" {
		check.Limit += " " + param.Unit
	}
	return check, nil
}

// CheckReadings lines up each value of features (in schema order) with its limit.
func (t Thresholds) CheckReadings(schema ml.Schema, features []float64) ([]ParameterCheck, error) {
	if len(schema) != len(features) {
		return nil, fmt.Errorf("%w: %d values for %d features", ml.ErrSchemaMismatch, len(features), len(schema))
	}
	checks := make([]ParameterCheck, 0, len(schema))
	for i, name := range schema {
		check, err := t.Check(name, features[i])
		if err != nil {
			return nil, err
		}
		checks = append(checks, check)
	}
	return checks, nil
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
