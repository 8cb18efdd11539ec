package ml

import "errors"

var ErrNotTrained = errors.New("model not trained")

// Classifier predicts a label and its confidence for one feature row.
type Classifier interface {
	Predict(features []float64) (int, float64, error)
}

// TrainableClassifier is a Classifier that can be fitted on labeled rows.
type TrainableClassifier interface {
	Classifier
	Train(features [][]float64, labels []int) error
}

var (
	_ TrainableClassifier = (*DecisionTree)(nil)
	_ TrainableClassifier = (*RandomForest)(nil)
	_ Classifier          = (*Artifact)(nil)
)
