package water

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"waterguard/ml"
)

func TestThresholdBoundaries(t *testing.T) {
	limits := DefaultThresholds()
	tests := []struct {
		feature string
		value   float64
		within  bool
	}{
		{ml.FeaturePH, 6.5, true},
		{ml.FeaturePH, 6.49, false},
		{ml.FeaturePH, 8.5, true},
		{ml.FeaturePH, 8.51, false},
		{ml.FeatureFecalColiform, 100, true},
		{ml.FeatureFecalColiform, 101, false},
		{ml.FeatureDO, 5, true},
		{ml.FeatureDO, 4.9, false},
		{ml.FeatureBOD, 5, true},
		{ml.FeatureBOD, 5.1, false},
		{ml.FeatureTurbidity, 5, true},
		{ml.FeatureTurbidity, 6, false},
		{ml.FeatureTemp, 30, true},
		{ml.FeatureTemp, 30.5, false},
	}
	for _, tt := range tests {
		check, err := limits.Check(tt.feature, tt.value)
		require.NoError(t, err)
		assert.Equal(t, tt.within, check.WithinLimit, "%s=%v", tt.feature, tt.value)
	}
}

func TestCheckLimitText(t *testing.T) {
	limits := DefaultThresholds()

	ph, err := limits.Check(ml.FeaturePH, 7)
	require.NoError(t, err)
	assert.Equal(t, "6.5–8.5", ph.Limit)
	assert.Equal(t, "within limit", ph.Status())

	fc, err := limits.Check(ml.FeatureFecalColiform, 2000)
	require.NoError(t, err)
	assert.Equal(t, "≤ 100 MPN/100 mL", fc.Limit)
	assert.Equal(t, "outside limit", fc.Status())
	assert.Equal(t, "Fecal Coliform", fc.Parameter.Label)

	_, err = limits.Check("Salinity", 1)
	assert.ErrorIs(t, err, ml.ErrUnknownFeature)
}

func TestCheckReadings(t *testing.T) {
	limits := DefaultThresholds()
	schema := ml.Schema{ml.FeaturePH, ml.FeatureFecalColiform}

	checks, err := limits.CheckReadings(schema, []float64{9.0, 50})
	require.NoError(t, err)
	require.Len(t, checks, 2)
	assert.False(t, checks[0].WithinLimit)
	assert.True(t, checks[1].WithinLimit)

	_, err = limits.CheckReadings(schema, []float64{7})
	assert.ErrorIs(t, err, ml.ErrSchemaMismatch)
}

func TestThresholdsValidate(t *testing.T) {
	assert.NoError(t, DefaultThresholds().Validate())
	bad := DefaultThresholds()
	bad.PHMin = 9
	assert.Error(t, bad.Validate())
}

func TestHistoryUsesThresholdBands(t *testing.T) {
	limits := DefaultThresholds()
	limits.FecalColiformMax = 200

	series := History(limits)
	require.Len(t, series, 2)
	require.NotNil(t, series[0].BandLow)
	assert.Equal(t, 6.5, *series[0].BandLow)
	assert.Equal(t, 8.5, series[0].BandHigh)
	assert.Nil(t, series[1].BandLow)
	assert.Equal(t, 200.0, series[1].BandHigh)
	for _, s := range series {
		assert.Len(t, s.Values, len(s.Months))
	}
}
