package ml

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"
)

// DecisionTree is a binary CART classifier stored as a flat node slice so it serializes as plain JSON.
type DecisionTree struct {
	Nodes           []TreeNode `json:"nodes"`
	MaxDepth        int        `json:"max_depth"`
	MinSamplesSplit int        `json:"min_samples_split"`
	MaxFeatures     int        `json:"max_features"`

	rnd *rand.Rand
}

type TreeNode struct {
	FeatureIdx int     `json:"feature_idx"`
	Threshold  float64 `json:"threshold"`
	LeftChild  int     `json:"left_child"`
	RightChild int     `json:"right_child"`
	ClassLabel int     `json:"class_label"`
	SafeProb   float64 `json:"safe_prob"`
	Samples    int     `json:"samples"`
	IsLeaf     bool    `json:"is_leaf"`
}

// NewDecisionTree returns an untrained tree. maxFeatures <= 0 considers every feature at each
// split; rnd may be nil when every feature is considered.
func NewDecisionTree(maxDepth, minSamplesSplit, maxFeatures int, rnd *rand.Rand) *DecisionTree {
	if minSamplesSplit < 2 {
		minSamplesSplit = 2
	}
	return &DecisionTree{
		MaxDepth:        maxDepth,
		MinSamplesSplit: minSamplesSplit,
		MaxFeatures:     maxFeatures,
		rnd:             rnd,
	}
}

func (dt *DecisionTree) Train(features [][]float64, labels []int) error {
	if len(features) == 0 || len(labels) == 0 {
		return errors.New("features or labels empty")
	}
	if len(features) != len(labels) {
		return errors.New("features and labels size mismatch")
	}
	width := len(features[0])
	if width == 0 {
		return errors.New("feature rows are empty")
	}
	for i, row := range features {
		if len(row) != width {
			return fmt.Errorf("row %d has %d features, expected %d", i, len(row), width)
		}
		if labels[i] != LabelNotSafe && labels[i] != LabelSafe {
			return fmt.Errorf("%w: %d", ErrNonBinaryLabel, labels[i])
		}
	}
	if dt.MaxFeatures > 0 && dt.MaxFeatures < width && dt.rnd == nil {
		return errors.New("feature sampling requires a random source")
	}
	if dt.MinSamplesSplit < 2 {
		dt.MinSamplesSplit = 2
	}

	indices := make([]int, len(features))
	for i := range indices {
		indices[i] = i
	}
	dt.Nodes = nil
	dt.buildNode(features, labels, indices, 0)
	return nil
}

func (dt *DecisionTree) Predict(features []float64) (int, float64, error) {
	prob, err := dt.safeProbability(features)
	if err != nil {
		return 0, 0, err
	}
	if prob > 0.5 {
		return LabelSafe, prob, nil
	}
	return LabelNotSafe, 1 - prob, nil
}

// safeProbability walks to a leaf and returns the fraction of safe training rows in it.
func (dt *DecisionTree) safeProbability(features []float64) (float64, error) {
	if len(dt.Nodes) == 0 {
		return 0, ErrNotTrained
	}
	idx := 0
	for {
		node := dt.Nodes[idx]
		if node.IsLeaf {
			return node.SafeProb, nil
		}
		if node.FeatureIdx < 0 || node.FeatureIdx >= len(features) {
			return 0, errors.New("feature index out of range")
		}
		next := node.RightChild
		if features[node.FeatureIdx] <= node.Threshold {
			next = node.LeftChild
		}
		// children are always appended after their parent
		if next <= idx || next >= len(dt.Nodes) {
			return 0, errors.New("invalid tree state")
		}
		idx = next
	}
}

// Validate checks the node graph of a deserialized tree: every split references a feature below
// width and both children sit after their parent, so prediction always reaches a leaf.
func (dt *DecisionTree) Validate(width int) error {
	if len(dt.Nodes) == 0 {
		return ErrNotTrained
	}
	for i, node := range dt.Nodes {
		if node.IsLeaf {
			if node.SafeProb < 0 || node.SafeProb > 1 || math.IsNaN(node.SafeProb) {
				return fmt.Errorf("node %d: leaf probability %v outside [0,1]", i, node.SafeProb)
			}
			continue
		}
		if node.FeatureIdx < 0 || node.FeatureIdx >= width {
			return fmt.Errorf("node %d: feature index %d outside [0,%d)", i, node.FeatureIdx, width)
		}
		for _, child := range []int{node.LeftChild, node.RightChild} {
			if child <= i || child >= len(dt.Nodes) {
				return fmt.Errorf("node %d: child index %d must be in (%d,%d)", i, child, i, len(dt.Nodes))
			}
		}
	}
	return nil
}

// buildNode appends the subtree for indices and returns the position of its root.
func (dt *DecisionTree) buildNode(features [][]float64, labels []int, indices []int, depth int) int {
	safe := countSafe(labels, indices)
	pos := len(dt.Nodes)
	dt.Nodes = append(dt.Nodes, leafNode(safe, len(indices)))

	if dt.MaxDepth > 0 && depth >= dt.MaxDepth {
		return pos
	}
	if len(indices) < dt.MinSamplesSplit || safe == 0 || safe == len(indices) {
		return pos
	}

	featureIdx, threshold, ok := dt.findBestSplit(features, labels, indices)
	if !ok {
		return pos
	}

	left := make([]int, 0, len(indices))
	right := make([]int, 0, len(indices))
	for _, i := range indices {
		if features[i][featureIdx] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	if len(left) == 0 || len(right) == 0 {
		return pos
	}

	leftPos := dt.buildNode(features, labels, left, depth+1)
	rightPos := dt.buildNode(features, labels, right, depth+1)

	node := &dt.Nodes[pos]
	node.IsLeaf = false
	node.FeatureIdx = featureIdx
	node.Threshold = threshold
	node.LeftChild = leftPos
	node.RightChild = rightPos
	return pos
}

// findBestSplit sweeps every candidate feature in sorted order and picks the midpoint
// threshold with the lowest weighted gini impurity.
func (dt *DecisionTree) findBestSplit(features [][]float64, labels []int, indices []int) (int, float64, bool) {
	bestFeature := -1
	bestThreshold := 0.0
	bestImpurity := math.MaxFloat64

	totalSafe := countSafe(labels, indices)
	n := len(indices)
	sorted := make([]int, n)

	for _, featureIdx := range dt.candidateFeatures(len(features[0])) {
		copy(sorted, indices)
		sort.SliceStable(sorted, func(a, b int) bool {
			return features[sorted[a]][featureIdx] < features[sorted[b]][featureIdx]
		})

		leftSafe := 0
		for i := 0; i < n-1; i++ {
			if labels[sorted[i]] == LabelSafe {
				leftSafe++
			}
			current := features[sorted[i]][featureIdx]
			next := features[sorted[i+1]][featureIdx]
			if current == next {
				continue
			}
			leftN := i + 1
			rightN := n - leftN
			impurity := weightedGini(leftSafe, leftN, totalSafe-leftSafe, rightN)
			if impurity < bestImpurity {
				bestImpurity = impurity
				bestFeature = featureIdx
				bestThreshold = current + (next-current)/2
			}
		}
	}
	if bestFeature == -1 {
		return -1, 0, false
	}
	return bestFeature, bestThreshold, true
}

func (dt *DecisionTree) candidateFeatures(width int) []int {
	if dt.MaxFeatures <= 0 || dt.MaxFeatures >= width {
		all := make([]int, width)
		for i := range all {
			all[i] = i
		}
		return all
	}
	return dt.rnd.Perm(width)[:dt.MaxFeatures]
}

func leafNode(safe, total int) TreeNode {
	prob := 0.0
	if total > 0 {
		prob = float64(safe) / float64(total)
	}
	label := LabelNotSafe
	if prob > 0.5 {
		label = LabelSafe
	}
	return TreeNode{
		FeatureIdx: -1,
		LeftChild:  -1,
		RightChild: -1,
		ClassLabel: label,
		SafeProb:   prob,
		Samples:    total,
		IsLeaf:     true,
	}
}

func countSafe(labels []int, indices []int) int {
	safe := 0
	for _, i := range indices {
		if labels[i] == LabelSafe {
			safe++
		}
	}
	return safe
}

func weightedGini(leftSafe, leftN, rightSafe, rightN int) float64 {
	total := float64(leftN + rightN)
	return (float64(leftN)/total)*gini(leftSafe, leftN) + (float64(rightN)/total)*gini(rightSafe, rightN)
}

func gini(safe, total int) float64 {
	if total == 0 {
		return 0
	}
	p := float64(safe) / float64(total)
	return 1 - p*p - (1-p)*(1-p)
}
