package ml

import (
	"fmt"
	"strings"
)

// ClassMetrics holds precision, recall and F1 for one label on the held-out rows.
type ClassMetrics struct {
	Label     int     `json:"label"`
	Name      string  `json:"name"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
	Support   int     `json:"support"`
}

// Report summarizes classifier quality on a held-out set. It is informational only.
type Report struct {
	Accuracy    float64        `json:"accuracy"`
	Classes     []ClassMetrics `json:"classes"`
	MacroAvg    ClassMetrics   `json:"macro_avg"`
	WeightedAvg ClassMetrics   `json:"weighted_avg"`
	Total       int            `json:"total"`
}

// Evaluate predicts every row of ds and scores the predictions against the labels.
func Evaluate(clf Classifier, ds *Dataset) (Report, error) {
	if ds.Len() == 0 {
		return Report{}, ErrEmptyDataset
	}
	predicted := make([]int, ds.Len())
	actual := make([]int, ds.Len())
	for i, sample := range ds.Samples {
		label, _, err := clf.Predict(sample.Features)
		if err != nil {
			return Report{}, fmt.Errorf("predict row %d: %w", i, err)
		}
		predicted[i] = label
		actual[i] = sample.Label
	}
	return Score(actual, predicted), nil
}

// Score builds a Report for the two labels from parallel actual/predicted slices.
func Score(actual, predicted []int) Report {
	report := Report{Total: len(actual)}
	if len(actual) == 0 {
		return report
	}

	correct := 0
	for i := range actual {
		if actual[i] == predicted[i] {
			correct++
		}
	}
	report.Accuracy = float64(correct) / float64(len(actual))

	for _, label := range []int{LabelNotSafe, LabelSafe} {
		var truePositive, predictedPositive, actualPositive int
		for i := range actual {
			if predicted[i] == label {
				predictedPositive++
			}
			if actual[i] == label {
				actualPositive++
				if predicted[i] == label {
					truePositive++
				}
			}
		}
		m := ClassMetrics{Label: label, Name: VerdictFor(label).String(), Support: actualPositive}
		if predictedPositive > 0 {
			m.Precision = float64(truePositive) / float64(predictedPositive)
		}
		if actualPositive > 0 {
			m.Recall = float64(truePositive) / float64(actualPositive)
		}
		if m.Precision+m.Recall > 0 {
			m.F1 = 2 * m.Precision * m.Recall / (m.Precision + m.Recall)
		}
		report.Classes = append(report.Classes, m)
	}

	report.MacroAvg = ClassMetrics{Name: "macro avg", Support: len(actual)}
	report.WeightedAvg = ClassMetrics{Name: "weighted avg", Support: len(actual)}
	for _, m := range report.Classes {
		report.MacroAvg.Precision += m.Precision / float64(len(report.Classes))
		report.MacroAvg.Recall += m.Recall / float64(len(report.Classes))
		report.MacroAvg.F1 += m.F1 / float64(len(report.Classes))

		weight := float64(m.Support) / float64(len(actual))
		report.WeightedAvg.Precision += m.Precision * weight
		report.WeightedAvg.Recall += m.Recall * weight
		report.WeightedAvg.F1 += m.F1 * weight
	}
	return report
}

func (r Report) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Accuracy: %.4f\n\n", r.Accuracy)
	fmt.Fprintf(&b, "%14s %10s %10s %10s %10s\n\n", "", "precision", "recall", "f1-score", "support")
	for _, m := range r.Classes {
		fmt.Fprintf(&b, "%14s %10.2f %10.2f %10.2f %10d\n", m.Name, m.Precision, m.Recall, m.F1, m.Support)
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "%14s %10s %10s %10.2f %10d\n", "accuracy", "", "", r.Accuracy, r.Total)
	for _, m := range []ClassMetrics{r.MacroAvg, r.WeightedAvg} {
		fmt.Fprintf(&b, "%14s %10.2f %10.2f %10.2f %10d\n", m.Name, m.Precision, m.Recall, m.F1, m.Support)
	}
	return b.String()
}
