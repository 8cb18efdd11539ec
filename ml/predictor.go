package ml

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Verdict is the human-facing reading of a predicted label.
type Verdict int

const (
	VerdictNotSafe Verdict = iota
	VerdictSafe
)

// VerdictFor maps label 1 to Safe and every other value to Not Safe.
func VerdictFor(label int) Verdict {
	if label == LabelSafe {
		return VerdictSafe
	}
	return VerdictNotSafe
}

func (v Verdict) String() string {
	if v == VerdictSafe {
		return "Safe"
	}
	return "Not Safe"
}

func (v Verdict) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// PredictionResult is the outcome of classifying one sample.
type PredictionResult struct {
	Schema     Schema  `json:"schema"`
	Sample     Sample  `json:"sample"`
	Label      int     `json:"label"`
	Verdict    Verdict `json:"verdict"`
	Confidence float64 `json:"confidence"`
	Cached     bool    `json:"cached"`
}

type cachedPrediction struct {
	label      int
	confidence float64
}

// Predictor is a read-only handle over a loaded model. It is safe for concurrent use.
type Predictor struct {
	artifact *Artifact
	schema   Schema
	cache    *lru.Cache[string, cachedPrediction]
}

// NewPredictor binds artifact to the schema the caller will supply rows in. A schema that differs
// from the one the model was trained on is rejected. cacheSize <= 0 disables the verdict cache.
func NewPredictor(artifact *Artifact, schema Schema, cacheSize int) (*Predictor, error) {
	if artifact == nil || artifact.Forest == nil {
		return nil, ErrNotTrained
	}
	if err := CheckCompatible(artifact.Schema, schema); err != nil {
		return nil, err
	}
	p := &Predictor{artifact: artifact, schema: append(Schema(nil), schema...)}
	if cacheSize > 0 {
		cache, err := lru.New[string, cachedPrediction](cacheSize)
		if err != nil {
			return nil, fmt.Errorf("create prediction cache: %w", err)
		}
		p.cache = cache
	}
	return p, nil
}

func (p *Predictor) Schema() Schema {
	return append(Schema(nil), p.schema...)
}

func (p *Predictor) Artifact() *Artifact {
	return p.artifact
}

// Predict classifies one row given in schema order.
func (p *Predictor) Predict(ctx context.Context, features []float64) (PredictionResult, error) {
	if err := ctx.Err(); err != nil {
		return PredictionResult{}, err
	}
	if len(features) != len(p.schema) {
		return PredictionResult{}, fmt.Errorf("%w: got %d values for [%s]", ErrSchemaMismatch, len(features), p.schema)
	}
	for i, v := range features {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return PredictionResult{}, fmt.Errorf("feature %s is not a finite number", p.schema[i])
		}
	}

	row := append([]float64(nil), features...)
	result := PredictionResult{
		Schema: p.Schema(),
		Sample: Sample{Features: row},
	}

	key := cacheKey(row)
	if p.cache != nil {
		if hit, ok := p.cache.Get(key); ok {
			result.Label = hit.label
			result.Confidence = hit.confidence
			result.Verdict = VerdictFor(hit.label)
			result.Cached = true
			result.Sample.Label = hit.label
			return result, nil
		}
	}

	label, confidence, err := p.artifact.Predict(row)
	if err != nil {
		return PredictionResult{}, err
	}
	if p.cache != nil {
		p.cache.Add(key, cachedPrediction{label: label, confidence: confidence})
	}
	result.Label = label
	result.Confidence = confidence
	result.Verdict = VerdictFor(label)
	result.Sample.Label = label
	return result, nil
}

// PredictNamed assembles a row in schema order from named values and classifies it.
func (p *Predictor) PredictNamed(ctx context.Context, values map[string]float64) (PredictionResult, error) {
	row, err := AssembleRow(p.schema, values)
	if err != nil {
		return PredictionResult{}, err
	}
	return p.Predict(ctx, row)
}

// AssembleRow orders values by schema. Every schema feature must be present; extra names are rejected.
func AssembleRow(schema Schema, values map[string]float64) ([]float64, error) {
	row := make([]float64, len(schema))
	for i, name := range schema {
		v, ok := values[name]
		if !ok {
			return nil, fmt.Errorf("%w: missing value for %s", ErrSchemaMismatch, name)
		}
		row[i] = v
	}
	if len(values) != len(schema) {
		extra := make([]string, 0)
		for name := range values {
			if schema.Index(name) < 0 {
				extra = append(extra, name)
			}
		}
		return nil, fmt.Errorf("%w: unexpected features %v", ErrSchemaMismatch, extra)
	}
	return row, nil
}

func cacheKey(row []float64) string {
	parts := make([]string, len(row))
	for i, v := range row {
		parts[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	return strings.Join(parts, "|")
}

// LoadPredictor loads path and binds it to schema. Any failure is meant to be fatal at startup.
func LoadPredictor(path string, schema Schema, cacheSize int) (*Predictor, error) {
	if path == "" {
		return nil, errors.New("model path is required")
	}
	artifact, err := LoadArtifact(path)
	if err != nil {
		return nil, err
	}
	return NewPredictor(artifact, schema, cacheSize)
}
