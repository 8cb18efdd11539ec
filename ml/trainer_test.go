package ml

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTrainerConfig() TrainerConfig {
	config := DefaultTrainerConfig()
	config.NTrees = 40
	return config
}

func writeDataset(t *testing.T, ds *Dataset) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "water.csv")
	require.NoError(t, os.WriteFile(path, []byte(datasetCSV(ds)), 0o644))
	return path
}

func TestTrainerRunEndToEnd(t *testing.T) {
	dataset := writeDataset(t, waterSamples(200, 21))
	modelPath := filepath.Join(t.TempDir(), "models", "water_quality_model.json")

	trainer := NewTrainer(testTrainerConfig(), nil)
	artifact, err := trainer.Run(context.Background(), dataset, modelPath)
	require.NoError(t, err)

	assert.Equal(t, 150, artifact.TrainRows)
	assert.Equal(t, 50, artifact.TestRows)
	assert.Equal(t, Schema{FeaturePH, FeatureFecalColiform}, artifact.Schema)
	assert.Len(t, artifact.Forest.Trees, 40)
	assert.Greater(t, artifact.Report.Accuracy, 0.9)
	assert.Equal(t, 50, artifact.Report.Total)

	predictor, err := LoadPredictor(modelPath, Schema{FeaturePH, FeatureFecalColiform}, 0)
	require.NoError(t, err)

	tests := []struct {
		name     string
		readings []float64
		want     Verdict
	}{
		{"neutral and clean", []float64{7.0, 100}, VerdictSafe},
		{"alkaline and contaminated", []float64{9.0, 2000}, VerdictNotSafe},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := predictor.Predict(context.Background(), tt.readings)
			require.NoError(t, err)
			assert.Equal(t, tt.want, result.Verdict)
		})
	}
}

func TestTrainerIsDeterministic(t *testing.T) {
	ds := waterSamples(160, 4)
	fixed := time.Date(2021, 6, 1, 0, 0, 0, 0, time.UTC)

	run := func() *Artifact {
		trainer := NewTrainer(testTrainerConfig(), nil)
		trainer.now = func() time.Time { return fixed }
		artifact, err := trainer.Train(context.Background(), ds)
		require.NoError(t, err)
		return artifact
	}

	a, b := run(), run()
	assert.Equal(t, a.Report, b.Report)
	assert.Equal(t, a.Forest.Trees, b.Forest.Trees)
	assert.Equal(t, a.ImputedMeans, b.ImputedMeans)
}

func TestTrainerRunOverwritesModel(t *testing.T) {
	modelPath := filepath.Join(t.TempDir(), "model.json")
	require.NoError(t, os.WriteFile(modelPath, []byte("stale"), 0o644))

	_, err := NewTrainer(testTrainerConfig(), nil).Run(context.Background(), writeDataset(t, waterSamples(40, 2)), modelPath)
	require.NoError(t, err)

	_, err = LoadArtifact(modelPath)
	assert.NoError(t, err)

	entries, err := os.ReadDir(filepath.Dir(modelPath))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestTrainerErrors(t *testing.T) {
	trainer := NewTrainer(testTrainerConfig(), nil)

	_, err := trainer.Train(context.Background(), &Dataset{Schema: Schema{FeaturePH, FeatureFecalColiform}})
	assert.ErrorIs(t, err, ErrEmptyDataset)

	other := &Dataset{Schema: Schema{FeaturePH}, Samples: []Sample{{Features: []float64{7}, Label: 1}}}
	_, err = trainer.Train(context.Background(), other)
	assert.ErrorIs(t, err, ErrSchemaMismatch)

	_, err = trainer.Run(context.Background(), filepath.Join(t.TempDir(), "absent.csv"), "model.json")
	assert.ErrorIs(t, err, os.ErrNotExist)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = trainer.Train(ctx, waterSamples(20, 1))
	assert.ErrorIs(t, err, context.Canceled)
}
