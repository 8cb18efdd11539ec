package ml

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrainTestSplitSizes(t *testing.T) {
	tests := []struct {
		rows      int
		ratio     float64
		wantTest  int
		wantTrain int
	}{
		{rows: 100, ratio: 0.25, wantTest: 25, wantTrain: 75},
		{rows: 10, ratio: 0.25, wantTest: 3, wantTrain: 7},
		{rows: 3, ratio: 0.5, wantTest: 2, wantTrain: 1},
	}
	for _, tt := range tests {
		train, test, err := TrainTestSplit(waterSamples(tt.rows, 1), tt.ratio, 42)
		require.NoError(t, err)
		assert.Equal(t, tt.wantTest, test.Len(), "rows=%d ratio=%v", tt.rows, tt.ratio)
		assert.Equal(t, tt.wantTrain, train.Len(), "rows=%d ratio=%v", tt.rows, tt.ratio)
	}
}

func TestTrainTestSplitIsDeterministic(t *testing.T) {
	ds := waterSamples(60, 7)

	trainA, testA, err := TrainTestSplit(ds, 0.25, 42)
	require.NoError(t, err)
	trainB, testB, err := TrainTestSplit(ds, 0.25, 42)
	require.NoError(t, err)
	assert.Equal(t, trainA.Samples, trainB.Samples)
	assert.Equal(t, testA.Samples, testB.Samples)

	_, testC, err := TrainTestSplit(ds, 0.25, 43)
	require.NoError(t, err)
	assert.NotEqual(t, testA.Samples, testC.Samples)
}

func TestTrainTestSplitPartitionsRows(t *testing.T) {
	ds := waterSamples(20, 2)
	train, test, err := TrainTestSplit(ds, 0.25, 42)
	require.NoError(t, err)

	seen := make(map[float64]int)
	for _, s := range append(append([]Sample(nil), train.Samples...), test.Samples...) {
		seen[s.Features[0]]++
	}
	for _, s := range ds.Samples {
		assert.Equal(t, 1, seen[s.Features[0]])
	}
}

func TestTrainTestSplitErrors(t *testing.T) {
	_, _, err := TrainTestSplit(&Dataset{}, 0.25, 42)
	assert.ErrorIs(t, err, ErrEmptyDataset)

	_, _, err = TrainTestSplit(waterSamples(10, 1), 0, 42)
	assert.Error(t, err)

	_, _, err = TrainTestSplit(waterSamples(1, 1), 0.25, 42)
	assert.Error(t, err)
}
