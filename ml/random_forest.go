package ml

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
)

// RandomForest averages the safe-probability of bootstrap-trained decision trees.
type RandomForest struct {
	Trees           []*DecisionTree `json:"trees"`
	NTrees          int             `json:"n_trees"`
	MaxDepth        int             `json:"max_depth"`
	MinSamplesSplit int             `json:"min_samples_split"`
	NumFeatures     int             `json:"num_features"`
	Seed            int64           `json:"seed"`
}

func NewRandomForest(nTrees, maxDepth, minSamplesSplit int, seed int64) *RandomForest {
	return &RandomForest{
		NTrees:          nTrees,
		MaxDepth:        maxDepth,
		MinSamplesSplit: minSamplesSplit,
		Seed:            seed,
	}
}

// Train fits NTrees trees sequentially. Each tree draws its bootstrap rows and per-split feature
// subsets from its own generator, seeded in order from a master generator, so a fixed seed
// reproduces the same forest.
func (rf *RandomForest) Train(features [][]float64, labels []int) error {
	if rf.NTrees < 1 {
		return fmt.Errorf("tree count must be positive, got %d", rf.NTrees)
	}
	if len(features) == 0 || len(features) != len(labels) {
		return errors.New("features and labels must be non-empty and equal length")
	}

	width := len(features[0])
	maxFeatures := int(math.Sqrt(float64(width)))
	if maxFeatures < 1 {
		maxFeatures = 1
	}

	master := rand.New(rand.NewSource(rf.Seed))
	n := len(features)
	trees := make([]*DecisionTree, 0, rf.NTrees)
	for t := 0; t < rf.NTrees; t++ {
		rnd := rand.New(rand.NewSource(master.Int63()))

		bootX := make([][]float64, n)
		bootY := make([]int, n)
		for i := 0; i < n; i++ {
			j := rnd.Intn(n)
			bootX[i] = features[j]
			bootY[i] = labels[j]
		}

		tree := NewDecisionTree(rf.MaxDepth, rf.MinSamplesSplit, maxFeatures, rnd)
		if err := tree.Train(bootX, bootY); err != nil {
			return fmt.Errorf("tree %d: %w", t, err)
		}
		trees = append(trees, tree)
	}

	rf.Trees = trees
	rf.NumFeatures = width
	return nil
}

// Predict returns LabelSafe when the mean safe-probability exceeds one half. Ties go to LabelNotSafe.
func (rf *RandomForest) Predict(features []float64) (int, float64, error) {
	if len(rf.Trees) == 0 {
		return 0, 0, ErrNotTrained
	}
	if len(features) != rf.NumFeatures {
		return 0, 0, fmt.Errorf("%w: got %d features, model expects %d", ErrSchemaMismatch, len(features), rf.NumFeatures)
	}
	sum := 0.0
	for _, tree := range rf.Trees {
		prob, err := tree.safeProbability(features)
		if err != nil {
			return 0, 0, err
		}
		sum += prob
	}
	prob := sum / float64(len(rf.Trees))
	if prob > 0.5 {
		return LabelSafe, prob, nil
	}
	return LabelNotSafe, 1 - prob, nil
}
