package ml

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const ArtifactFormatVersion = 1

// Artifact is the persisted output of one training run. It is immutable once written; a new
// training run replaces the whole file.
type Artifact struct {
	FormatVersion int                `json:"format_version"`
	Schema        Schema             `json:"schema"`
	Forest        *RandomForest      `json:"forest"`
	Report        Report             `json:"report"`
	ImputedMeans  map[string]float64 `json:"imputed_means"`
	TrainRows     int                `json:"train_rows"`
	TestRows      int                `json:"test_rows"`
	TestRatio     float64            `json:"test_ratio"`
	TrainedAt     time.Time          `json:"trained_at"`
}

func (a *Artifact) Predict(features []float64) (int, float64, error) {
	if a == nil || a.Forest == nil {
		return 0, 0, ErrNotTrained
	}
	return a.Forest.Predict(features)
}

// SaveArtifact writes a to path through a temporary file and rename, overwriting any previous
// model without keeping a backup.
func SaveArtifact(a *Artifact, path string) error {
	if a == nil || a.Forest == nil || len(a.Forest.Trees) == 0 {
		return ErrNotTrained
	}
	payload, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("encode model: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create model dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp model: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		return fmt.Errorf("write model: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close model: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// LoadArtifact reads and validates a model file.
func LoadArtifact(path string) (*Artifact, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model: %w", err)
	}
	var a Artifact
	if err := json.Unmarshal(payload, &a); err != nil {
		return nil, fmt.Errorf("decode model %s: %w", path, err)
	}
	if a.FormatVersion != ArtifactFormatVersion {
		return nil, fmt.Errorf("model %s: unsupported format version %d", path, a.FormatVersion)
	}
	if a.Forest == nil || len(a.Forest.Trees) == 0 {
		return nil, fmt.Errorf("model %s: %w", path, ErrNotTrained)
	}
	if _, err := ParseSchema(a.Schema); err != nil {
		return nil, fmt.Errorf("model %s: %w", path, err)
	}
	if a.Forest.NumFeatures != len(a.Schema) {
		return nil, errors.New("model forest width does not match its schema")
	}
	for i, tree := range a.Forest.Trees {
		if tree == nil || len(tree.Nodes) == 0 {
			return nil, fmt.Errorf("model %s: tree %d is empty", path, i)
		}
		if err := tree.Validate(a.Forest.NumFeatures); err != nil {
			return nil, fmt.Errorf("model %s: tree %d: %w", path, i, err)
		}
	}
	return &a, nil
}
