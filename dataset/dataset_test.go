package dataset

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/modeltrainer/pkg/errors"
)

const sampleCSV = `ID,age,smoker,score,outcome
1,50,yes,3.5,sick
2,31,no,1.0,healthy
3,44,yes,2.5,sick
4,29,no,0.5,healthy
5,61,no,4.0,sick
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadCSV(t *testing.T) {
	ds, err := Load(writeFile(t, "patients.csv", sampleCSV))
	require.NoError(t, err)

	assert.Equal(t, []string{"age", "smoker", "score"}, ds.FeatureNames)
	assert.Equal(t, "outcome", ds.LabelName)
	assert.Equal(t, []string{"healthy", "sick"}, ds.ClassNames)
	assert.Equal(t, 5, ds.NSamples())
	assert.Equal(t, 3, ds.NFeatures())

	// identifier column is gone, numeric columns keep their values
	assert.Equal(t, 50.0, ds.X.At(0, 0))
	assert.Equal(t, 3.5, ds.X.At(0, 2))
	// "no" < "yes"
	assert.Equal(t, 1.0, ds.X.At(0, 1))
	assert.Equal(t, 0.0, ds.X.At(1, 1))
	assert.Contains(t, ds.Encoders, "smoker")
	assert.Equal(t, []float64{1, 0, 1, 0, 1}, ds.Y.RawVector().Data)
}

func TestLoadExcel(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	rows := [][]interface{}{
		{"ID", "x1", "x2", "label"},
		{1, 0.1, 5, 0},
		{2, 0.9, 7, 1},
		{3, 0.4, 6, 0},
		{4, 0.8, 9, 1},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}
	path := filepath.Join(t.TempDir(), "data.xlsx")
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	ds, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"x1", "x2"}, ds.FeatureNames)
	assert.Equal(t, []string{"0", "1"}, ds.ClassNames)
	assert.InDelta(t, 0.9, ds.X.At(1, 0), 1e-12)
	assert.Equal(t, []float64{0, 1, 0, 1}, ds.Y.RawVector().Data)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		want    string
	}{
		{"unsupported extension", "data.json", "{}", "unsupported file extension"},
		{"only id and label", "narrow.csv", "ID,label\n1,0\n2,1\n", "need at least 2 columns"},
		{"multiclass label", "multi.csv", "ID,x,y\n1,1,a\n2,2,b\n3,3,c\n", "must be binary"},
		{"single class", "single.csv", "ID,x,y\n1,1,a\n2,2,a\n", "must be binary"},
		{"missing feature", "gap.csv", "ID,x,y\n1,1,a\n2,,b\n3,3,a\n", "missing values"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, tt.file, tt.content))
			require.Error(t, err)
			var dfe *errors.DataFormatError
			require.True(t, errors.As(err, &dfe), "got %T", err)
			assert.Contains(t, err.Error(), tt.want)
			assert.True(t, strings.HasSuffix(dfe.Path, tt.file))
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.csv"))
	var dfe *errors.DataFormatError
	assert.True(t, errors.As(err, &dfe))
}

func TestTrainTestSplitDeterministic(t *testing.T) {
	n := 20
	X := mat.NewDense(n, 2, nil)
	y := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		X.Set(i, 0, float64(i))
		X.Set(i, 1, float64(i*i))
		y.SetVec(i, float64(i%2))
	}

	a, err := TrainTestSplit(X, y, 0.3, 10)
	require.NoError(t, err)
	b, err := TrainTestSplit(X, y, 0.3, 10)
	require.NoError(t, err)

	assert.Equal(t, a.TrainIndex, b.TrainIndex)
	assert.Equal(t, a.TestIndex, b.TestIndex)
	assert.Len(t, a.TestIndex, 6)
	assert.Len(t, a.TrainIndex, 14)

	// every row lands in exactly one subset with its own label
	seen := map[int]bool{}
	for i, src := range a.TrainIndex {
		seen[src] = true
		assert.Equal(t, float64(src), a.XTrain.At(i, 0))
		assert.Equal(t, float64(src%2), a.YTrain.AtVec(i))
	}
	for i, src := range a.TestIndex {
		assert.False(t, seen[src], "row %d in both subsets", src)
		seen[src] = true
		assert.Equal(t, float64(src), a.XTest.At(i, 0))
	}
	assert.Len(t, seen, n)

	c, err := TrainTestSplit(X, y, 0.3, 11)
	require.NoError(t, err)
	assert.NotEqual(t, a.TestIndex, c.TestIndex)
}

func TestTrainTestSplitTooFewRows(t *testing.T) {
	X := mat.NewDense(1, 1, []float64{1})
	y := mat.NewVecDense(1, []float64{0})
	_, err := TrainTestSplit(X, y, 0.3, 10)
	var dfe *errors.DataFormatError
	assert.True(t, errors.As(err, &dfe))
}

func TestLabelEncoderNumericOrder(t *testing.T) {
	enc := NewLabelEncoder()
	codes, err := enc.FitTransform([]string{"10", "2", "10", "-1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"-1", "2", "10"}, enc.Classes)
	assert.Equal(t, []int{2, 1, 2, 0}, codes)

	back, err := enc.InverseTransform([]int{0, 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"-1", "10"}, back)

	_, err = enc.Transform([]string{"3"})
	assert.Error(t, err)
}
