package ml

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadDataset(t *testing.T) {
	input := "Station,FecalColiform,pH,Label\n" +
		"A,40,7.1,1\n" +
		"B,,9.2,0\n" +
		"C,1200,NA,0.0\n"

	ds, err := ReadDataset(strings.NewReader(input), Schema{FeaturePH, FeatureFecalColiform}, "")
	require.NoError(t, err)
	require.Equal(t, 3, ds.Len())

	assert.Equal(t, []float64{7.1, 40}, ds.Samples[0].Features)
	assert.Equal(t, LabelSafe, ds.Samples[0].Label)
	assert.True(t, math.IsNaN(ds.Samples[1].Features[1]))
	assert.True(t, math.IsNaN(ds.Samples[2].Features[0]))
	assert.Equal(t, LabelNotSafe, ds.Samples[2].Label)
}

func TestReadDatasetByteOrderMark(t *testing.T) {
	input := "\ufeffpH,FecalColiform,Label\n7.0,10,1\n"
	ds, err := ReadDataset(strings.NewReader(input), Schema{FeaturePH, FeatureFecalColiform}, DefaultLabelColumn)
	require.NoError(t, err)
	assert.Equal(t, []float64{7.0, 10}, ds.Samples[0].Features)
}

func TestReadDatasetErrors(t *testing.T) {
	schema := Schema{FeaturePH, FeatureFecalColiform}
	tests := []struct {
		name  string
		input string
		want  error
	}{
		{"missing feature column", "pH,Label\n7,1\n", ErrMissingColumn},
		{"missing label column", "pH,FecalColiform\n7,10\n", ErrMissingColumn},
		{"label outside 0/1", "pH,FecalColiform,Label\n7,10,2\n", ErrNonBinaryLabel},
		{"text label", "pH,FecalColiform,Label\n7,10,Safe\n", ErrNonBinaryLabel},
		{"header only", "pH,FecalColiform,Label\n", ErrEmptyDataset},
		{"empty input", "", ErrEmptyDataset},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadDataset(strings.NewReader(tt.input), schema, "")
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestLoadDatasetMissingFile(t *testing.T) {
	_, err := LoadDataset(filepath.Join(t.TempDir(), "absent.csv"), Schema{FeaturePH}, "")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestParseSchema(t *testing.T) {
	schema, err := ParseSchema([]string{"pH", " FecalColiform "})
	require.NoError(t, err)
	assert.Equal(t, Schema{FeaturePH, FeatureFecalColiform}, schema)
	assert.Equal(t, "pH,FecalColiform", schema.String())
	assert.Equal(t, 1, schema.Index(FeatureFecalColiform))
	assert.Equal(t, -1, schema.Index(FeatureDO))

	_, err = ParseSchema([]string{"pH", "Salinity"})
	assert.ErrorIs(t, err, ErrUnknownFeature)

	_, err = ParseSchema([]string{"pH", "pH"})
	assert.Error(t, err)

	_, err = ParseSchema(nil)
	assert.Error(t, err)
}

func TestCheckCompatible(t *testing.T) {
	trained := Schema{FeaturePH, FeatureFecalColiform}
	assert.NoError(t, CheckCompatible(trained, Schema{FeaturePH, FeatureFecalColiform}))
	assert.ErrorIs(t, CheckCompatible(trained, Schema{FeatureFecalColiform, FeaturePH}), ErrSchemaMismatch)
	assert.ErrorIs(t, CheckCompatible(trained, Schema{FeaturePH, FeatureFecalColiform, FeatureDO}), ErrSchemaMismatch)
}
