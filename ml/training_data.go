package ml

import (
	"fmt"
	"math"
	"math/rand"
)

// TrainTestSplit shuffles row indices with a generator seeded by seed and holds out
// ceil(n*testRatio) rows. The same input and seed always yield the same partitions.
func TrainTestSplit(ds *Dataset, testRatio float64, seed int64) (train, test *Dataset, err error) {
	n := ds.Len()
	if n == 0 {
		return nil, nil, ErrEmptyDataset
	}
	if testRatio <= 0 || testRatio >= 1 {
		return nil, nil, fmt.Errorf("test ratio must be in (0,1), got %v", testRatio)
	}

	nTest := int(math.Ceil(float64(n) * testRatio))
	nTrain := n - nTest
	if nTest == 0 || nTrain == 0 {
		return nil, nil, fmt.Errorf("cannot split %d rows with test ratio %v", n, testRatio)
	}

	rnd := rand.New(rand.NewSource(seed))
	indices := rnd.Perm(n)

	train = &Dataset{Schema: ds.Schema, Samples: make([]Sample, 0, nTrain)}
	test = &Dataset{Schema: ds.Schema, Samples: make([]Sample, 0, nTest)}
	for i, idx := range indices {
		if i < nTest {
			test.Samples = append(test.Samples, ds.Samples[idx])
		} else {
			train.Samples = append(train.Samples, ds.Samples[idx])
		}
	}
	return train, test, nil
}
