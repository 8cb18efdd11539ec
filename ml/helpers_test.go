package ml

import (
	"fmt"
	"math/rand"
	"strings"
)

// waterSamples generates pH and fecal coliform readings. Safe rows sit inside the 6.8-8.2 pH
// band with coliform counts up to 150, so readings such as (7.0, 100) are labeled safe. Unsafe
// rows are either alkaline with low coliform counts or in band with counts from 600 upward.
func waterSamples(n int, seed int64) *Dataset {
	rnd := rand.New(rand.NewSource(seed))
	between := func(lo, hi float64) float64 { return lo + rnd.Float64()*(hi-lo) }

	ds := &Dataset{Schema: Schema{FeaturePH, FeatureFecalColiform}}
	for i := 0; i < n; i++ {
		var sample Sample
		switch i % 4 {
		case 0, 1:
			sample = Sample{Features: []float64{between(6.8, 8.2), between(5, 150)}, Label: LabelSafe}
		case 2:
			sample = Sample{Features: []float64{between(8.8, 10.5), between(5, 60)}, Label: LabelNotSafe}
		default:
			sample = Sample{Features: []float64{between(6.8, 8.2), between(600, 1800)}, Label: LabelNotSafe}
		}
		ds.Samples = append(ds.Samples, sample)
	}
	return ds
}

func datasetCSV(ds *Dataset) string {
	var b strings.Builder
	b.WriteString("Station," + strings.Join(ds.Schema, ",") + ",Label\n")
	for i, s := range ds.Samples {
		fmt.Fprintf(&b, "S%d", i)
		for _, v := range s.Features {
			fmt.Fprintf(&b, ",%g", v)
		}
		fmt.Fprintf(&b, ",%d\n", s.Label)
	}
	return b.String()
}
