package ml

import (
	"errors"
	"fmt"
	"strings"
)

// Feature column names as they appear in the training CSV header.
const (
	FeaturePH            = "pH"
	FeatureFecalColiform = "FecalColiform"
	FeatureDO            = "DO"
	FeatureBOD           = "BOD"
	FeatureTurbidity     = "Turbidity"
	FeatureTemp          = "Temp"

	DefaultLabelColumn = "Label"
)

var (
	ErrUnknownFeature = errors.New("unknown feature")
	ErrSchemaMismatch = errors.New("feature schema mismatch")
)

// KnownFeatures lists every feature the classifier can be trained on, in canonical order.
func KnownFeatures() []string {
	return []string{
		FeaturePH,
		FeatureFecalColiform,
		FeatureDO,
		FeatureBOD,
		FeatureTurbidity,
		FeatureTemp,
	}
}

// Schema is the ordered set of feature names a trained model expects.
type Schema []string

// ParseSchema validates names against KnownFeatures and rejects duplicates.
func ParseSchema(names []string) (Schema, error) {
	if len(names) == 0 {
		return nil, errors.New("feature schema is empty")
	}
	known := make(map[string]bool)
	for _, name := range KnownFeatures() {
		known[name] = true
	}
	seen := make(map[string]bool, len(names))
	schema := make(Schema, 0, len(names))
	for _, raw := range names {
		name := strings.TrimSpace(raw)
		if !known[name] {
			return nil, fmt.Errorf("%w: %q", ErrUnknownFeature, name)
		}
		if seen[name] {
			return nil, fmt.Errorf("duplicate feature %q", name)
		}
		seen[name] = true
		schema = append(schema, name)
	}
	return schema, nil
}

func (s Schema) Equal(other Schema) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

// Index returns the column position of name, or -1.
func (s Schema) Index(name string) int {
	for i, n := range s {
		if n == name {
			return i
		}
	}
	return -1
}

func (s Schema) String() string {
	return strings.Join(s, ",")
}

// CheckCompatible returns ErrSchemaMismatch when the configured schema differs from the trained one.
func CheckCompatible(trained, configured Schema) error {
	if trained.Equal(configured) {
		return nil
	}
	return fmt.Errorf("%w: model trained on [%s], configured [%s]", ErrSchemaMismatch, trained, configured)
}
