package ml

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecisionTreeTrainPredict(t *testing.T) {
	features := [][]float64{
		{7.0, 10},
		{7.5, 40},
		{9.5, 20},
		{9.8, 30},
	}
	labels := []int{1, 1, 0, 0}

	tree := NewDecisionTree(0, 2, 0, nil)
	require.NoError(t, tree.Train(features, labels))

	label, confidence, err := tree.Predict([]float64{7.2, 15})
	require.NoError(t, err)
	assert.Equal(t, LabelSafe, label)
	assert.Equal(t, 1.0, confidence)

	label, _, err = tree.Predict([]float64{9.9, 15})
	require.NoError(t, err)
	assert.Equal(t, LabelNotSafe, label)

	// one split on pH at the midpoint between 7.5 and 9.5
	require.Len(t, tree.Nodes, 3)
	assert.Equal(t, 0, tree.Nodes[0].FeatureIdx)
	assert.InDelta(t, 8.5, tree.Nodes[0].Threshold, 1e-9)
}

func TestDecisionTreeMaxDepth(t *testing.T) {
	ds := waterSamples(80, 5)
	x, y := ds.Matrix()

	tree := NewDecisionTree(1, 2, 0, nil)
	require.NoError(t, tree.Train(x, y))
	assert.LessOrEqual(t, len(tree.Nodes), 3)
	for _, node := range tree.Nodes[1:] {
		assert.True(t, node.IsLeaf)
	}
}

func TestDecisionTreeRejectsNonBinaryLabels(t *testing.T) {
	tree := NewDecisionTree(0, 2, 0, nil)
	err := tree.Train([][]float64{{1}, {2}}, []int{0, 2})
	assert.ErrorIs(t, err, ErrNonBinaryLabel)
}

func TestDecisionTreeFeatureSamplingNeedsRandomSource(t *testing.T) {
	ds := waterSamples(10, 1)
	x, y := ds.Matrix()

	assert.Error(t, NewDecisionTree(0, 2, 1, nil).Train(x, y))
	assert.NoError(t, NewDecisionTree(0, 2, 1, rand.New(rand.NewSource(1))).Train(x, y))
}

func TestDecisionTreeRejectsBackwardChild(t *testing.T) {
	tree := &DecisionTree{Nodes: []TreeNode{
		{FeatureIdx: 0, Threshold: 8.5, LeftChild: 1, RightChild: 2},
		{FeatureIdx: 0, Threshold: 7.0, LeftChild: 1, RightChild: 2},
		{IsLeaf: true, SafeProb: 0},
	}}
	assert.Error(t, tree.Validate(2))

	done := make(chan error, 1)
	go func() {
		_, _, err := tree.Predict([]float64{6.0, 10})
		done <- err
	}()
	select {
	case err := <-done:
		assert.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("prediction did not terminate on a cyclic tree")
	}
}

func TestDecisionTreeValidate(t *testing.T) {
	ds := waterSamples(60, 3)
	x, y := ds.Matrix()
	tree := NewDecisionTree(0, 2, 0, nil)
	require.NoError(t, tree.Train(x, y))
	assert.NoError(t, tree.Validate(2))
	assert.Error(t, tree.Validate(0))

	leafy := &DecisionTree{Nodes: []TreeNode{{IsLeaf: true, SafeProb: 1.5}}}
	assert.Error(t, leafy.Validate(2))
	assert.ErrorIs(t, (&DecisionTree{}).Validate(2), ErrNotTrained)
}

func TestDecisionTreeUntrained(t *testing.T) {
	_, _, err := NewDecisionTree(0, 2, 0, nil).Predict([]float64{7})
	assert.ErrorIs(t, err, ErrNotTrained)
}

func TestRandomForestDeterministic(t *testing.T) {
	ds := waterSamples(120, 11)
	x, y := ds.Matrix()

	a := NewRandomForest(25, 0, 2, 42)
	b := NewRandomForest(25, 0, 2, 42)
	require.NoError(t, a.Train(x, y))
	require.NoError(t, b.Train(x, y))
	assert.Equal(t, a.Trees, b.Trees)
	assert.Equal(t, 2, a.NumFeatures)
}

func TestRandomForestPredict(t *testing.T) {
	ds := waterSamples(200, 9)
	x, y := ds.Matrix()

	forest := NewRandomForest(50, 0, 2, 42)
	require.NoError(t, forest.Train(x, y))

	label, confidence, err := forest.Predict([]float64{7.0, 100})
	require.NoError(t, err)
	assert.Equal(t, LabelSafe, label)
	assert.Greater(t, confidence, 0.5)

	label, _, err = forest.Predict([]float64{9.0, 2000})
	require.NoError(t, err)
	assert.Equal(t, LabelNotSafe, label)

	_, _, err = forest.Predict([]float64{7.0})
	assert.ErrorIs(t, err, ErrSchemaMismatch)
}

func TestScore(t *testing.T) {
	actual := []int{1, 1, 1, 0, 0}
	predicted := []int{1, 1, 0, 0, 1}

	report := Score(actual, predicted)
	assert.InDelta(t, 0.6, report.Accuracy, 1e-9)
	assert.Equal(t, 5, report.Total)
	require.Len(t, report.Classes, 2)

	notSafe, safe := report.Classes[0], report.Classes[1]
	assert.Equal(t, "Not Safe", notSafe.Name)
	assert.InDelta(t, 0.5, notSafe.Precision, 1e-9)
	assert.InDelta(t, 0.5, notSafe.Recall, 1e-9)
	assert.Equal(t, 2, notSafe.Support)

	assert.Equal(t, "Safe", safe.Name)
	assert.InDelta(t, 2.0/3.0, safe.Precision, 1e-9)
	assert.InDelta(t, 2.0/3.0, safe.Recall, 1e-9)
	assert.Equal(t, 3, safe.Support)

	assert.Contains(t, report.String(), "weighted avg")
}
