package water

// Series is a labeled monthly time series used by the illustrative charts view. The values are
// fixed sample data and have no connection to the trained model.
type Series struct {
	Title  string
	Unit   string
	Months []string
	Values []float64
	// BandLow is nil for series that only have an upper limit.
	BandLow  *float64
	BandHigh float64
}

var months = []string{"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"}

// History returns the pH and fecal coliform example series with bands taken from t.
func History(t Thresholds) []Series {
	phLow := t.PHMin
	return []Series{
		{
			Title:    "pH trend",
			Months:   months,
			Values:   []float64{7.1, 7.3, 7.0, 6.8, 6.6, 6.9, 7.4, 7.8, 8.1, 8.6, 7.9, 7.2},
			BandLow:  &phLow,
			BandHigh: t.PHMax,
		},
		{
			Title:    "Fecal coliform trend",
			Unit:     "MPN/100 mL",
			Months:   months,
			Values:   []float64{40, 55, 70, 90, 130, 210, 340, 280, 160, 110, 80, 60},
			BandHigh: t.FecalColiformMax,
		},
	}
}
