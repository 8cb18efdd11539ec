package ml

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func trainedArtifact(t *testing.T) *Artifact {
	t.Helper()
	artifact, err := NewTrainer(testTrainerConfig(), nil).Train(context.Background(), waterSamples(120, 8))
	require.NoError(t, err)
	return artifact
}

func TestArtifactRoundTrip(t *testing.T) {
	artifact := trainedArtifact(t)
	path := filepath.Join(t.TempDir(), "model.json")
	require.NoError(t, SaveArtifact(artifact, path))

	loaded, err := LoadArtifact(path)
	require.NoError(t, err)
	assert.Equal(t, artifact.Schema, loaded.Schema)
	assert.Equal(t, artifact.Report.Accuracy, loaded.Report.Accuracy)
	assert.True(t, artifact.TrainedAt.Equal(loaded.TrainedAt))

	for _, row := range waterSamples(50, 99).Samples {
		wantLabel, wantConf, err := artifact.Predict(row.Features)
		require.NoError(t, err)
		gotLabel, gotConf, err := loaded.Predict(row.Features)
		require.NoError(t, err)
		assert.Equal(t, wantLabel, gotLabel)
		assert.InDelta(t, wantConf, gotConf, 1e-12)
	}
}

func TestLoadArtifactRejectsBadFiles(t *testing.T) {
	dir := t.TempDir()
	artifact := trainedArtifact(t)
	require.False(t, artifact.Forest.Trees[0].Nodes[0].IsLeaf)

	write := func(name string, mutate func(map[string]any)) string {
		payload, err := json.Marshal(artifact)
		require.NoError(t, err)
		var doc map[string]any
		require.NoError(t, json.Unmarshal(payload, &doc))
		mutate(doc)
		payload, err = json.Marshal(doc)
		require.NoError(t, err)
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, payload, 0o644))
		return path
	}

	tests := []struct {
		name string
		path string
	}{
		{"missing", filepath.Join(dir, "absent.json")},
		{"wrong version", write("version.json", func(d map[string]any) { d["format_version"] = 99 })},
		{"no forest", write("forest.json", func(d map[string]any) { delete(d, "forest") })},
		{"unknown feature", write("schema.json", func(d map[string]any) { d["schema"] = []string{"pH", "Salinity"} })},
		{"narrow schema", write("narrow.json", func(d map[string]any) { d["schema"] = []string{"pH"} })},
		{"child points back at its parent", write("cycle.json", func(d map[string]any) { rootNode(d)["left_child"] = 0 })},
		{"child past the last node", write("dangling.json", func(d map[string]any) { rootNode(d)["right_child"] = 1 << 20 })},
		{"split on missing feature", write("feature.json", func(d map[string]any) { rootNode(d)["feature_idx"] = 5 })},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadArtifact(tt.path)
			assert.Error(t, err)
		})
	}

	corrupt := filepath.Join(dir, "corrupt.json")
	require.NoError(t, os.WriteFile(corrupt, []byte("{not json"), 0o644))
	_, err := LoadArtifact(corrupt)
	assert.Error(t, err)
}

// rootNode returns the first node of the first tree in a decoded artifact.
func rootNode(doc map[string]any) map[string]any {
	trees := doc["forest"].(map[string]any)["trees"].([]any)
	return trees[0].(map[string]any)["nodes"].([]any)[0].(map[string]any)
}

func TestSaveArtifactRequiresTrainedForest(t *testing.T) {
	err := SaveArtifact(&Artifact{Forest: NewRandomForest(3, 0, 2, 1)}, filepath.Join(t.TempDir(), "m.json"))
	assert.ErrorIs(t, err, ErrNotTrained)
}
