package trainer

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/modeltrainer/core/model"
	"github.com/YuminosukeSato/modeltrainer/pkg/errors"
	"github.com/YuminosukeSato/modeltrainer/pkg/log"
)

// writeSeparableCSV writes 40 rows whose two classes are far apart on both
// features.
func writeSeparableCSV(t *testing.T) string {
	t.Helper()
	var b strings.Builder
	b.WriteString("id,radius,texture,diagnosis\n")
	for i := 0; i < 40; i++ {
		label, offset := "B", 0.0
		if i%2 == 1 {
			label, offset = "M", 10.0
		}
		fmt.Fprintf(&b, "%d,%.2f,%.2f,%s\n", 1000+i, offset+float64(i%5)/10, offset+float64(i%3)/10, label)
	}
	path := filepath.Join(t.TempDir(), "cells.csv")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o600))
	return path
}

// searchState has a single test row at 0 whose training neighbors, ordered
// by distance, are labelled 0 0 1 1 1 followed by fifteen 0s. Only k = 5
// classifies it correctly.
func searchState() *State {
	xTrain := make([]float64, 20)
	yTrain := make([]float64, 20)
	for i := range xTrain {
		xTrain[i] = float64(i + 1)
	}
	yTrain[2], yTrain[3], yTrain[4] = 1, 1, 1

	return &State{
		xTrain: mat.NewDense(20, 1, xTrain),
		yTrain: mat.NewVecDense(20, yTrain),
		xTest:  mat.NewDense(1, 1, []float64{0}),
		yTest:  mat.NewVecDense(1, []float64{1}),
		out:    &bytes.Buffer{},
		logger: log.GetLoggerWithName("trainer"),
	}
}

func TestFindBestK(t *testing.T) {
	st := searchState()

	var seen []int
	res, err := st.FindBestK(WithProgress(func(k int, _ float64) { seen = append(seen, k) }))
	require.NoError(t, err)

	assert.Equal(t, 5, res.BestK)
	require.Len(t, res.Scores, MaxNeighbors)
	for k := MinNeighbors; k <= MaxNeighbors; k++ {
		score, ok := res.Score(k)
		require.True(t, ok)
		if k == 5 {
			assert.Equal(t, 1.0, score)
		} else {
			assert.Equal(t, 0.0, score, "k=%d", k)
		}
	}
	assert.Len(t, seen, MaxNeighbors)
	assert.Equal(t, MinNeighbors, seen[0])

	_, ok := res.Score(MaxNeighbors + 1)
	assert.False(t, ok)
}

func TestFindBestK_TiesPickSmallestK(t *testing.T) {
	st := searchState()
	// every k now classifies the test row as 0
	st.yTest = mat.NewVecDense(1, []float64{0})

	res, err := st.FindBestK()
	require.NoError(t, err)
	assert.Equal(t, 1, res.BestK)
}

func TestFindBestK_TooFewTrainingRows(t *testing.T) {
	st := searchState()
	st.xTrain = mat.NewDense(10, 1, nil)
	st.yTrain = mat.NewVecDense(10, nil)

	_, err := st.FindBestK()
	var fe *errors.FitError
	require.True(t, errors.As(err, &fe), "got %v", err)
}

func TestTrainKNN_UsesBestK(t *testing.T) {
	knn, err := searchState().TrainKNN()
	require.NoError(t, err)
	assert.Equal(t, 5, knn.NNeighbors())
}

func TestPrepare(t *testing.T) {
	st, err := Prepare(writeSeparableCSV(t), WithOutput(&bytes.Buffer{}))
	require.NoError(t, err)

	xTrain, yTrain := st.Train()
	_, yTest := st.Test()
	assert.Equal(t, []string{"radius", "texture"}, st.Data().FeatureNames)
	assert.Equal(t, []string{"B", "M"}, st.Data().ClassNames)
	assert.Equal(t, 12, yTest.Len())
	assert.Equal(t, 28, yTrain.Len())
	assert.True(t, st.Scaler().IsFitted())

	// training features span exactly [0, 1]
	r, c := xTrain.Dims()
	for j := 0; j < c; j++ {
		lo, hi := 1.0, 0.0
		for i := 0; i < r; i++ {
			v := xTrain.At(i, j)
			lo, hi = min(lo, v), max(hi, v)
		}
		assert.Equal(t, 0.0, lo)
		assert.Equal(t, 1.0, hi)
	}

	again, err := Prepare(writeSeparableCSV(t))
	require.NoError(t, err)
	assert.Equal(t, st.Split().TestIndex, again.Split().TestIndex)
}

func TestPrepare_MissingFile(t *testing.T) {
	_, err := Prepare(filepath.Join(t.TempDir(), "nope.csv"))
	var de *errors.DataFormatError
	assert.True(t, errors.As(err, &de), "got %v", err)
}

func TestTrainAndEvaluate_Separable(t *testing.T) {
	const perfect = "Accuracy Score: 1.000\nPrecision Score: 1.000\nRecall Score: 1.000\n" +
		"Specificity Score: 1.000\nF1 Score: 1.000\nAuc Score: 1.000\nKappa Score: 1.000\n"

	path := writeSeparableCSV(t)
	trainers := map[string]func(*State) (model.Classifier, error){
		"knn":  func(s *State) (model.Classifier, error) { return s.TrainKNN() },
		"svm":  func(s *State) (model.Classifier, error) { return s.TrainSVM() },
		"tree": func(s *State) (model.Classifier, error) { return s.TrainDecisionTree() },
	}

	for name, train := range trainers {
		t.Run(name, func(t *testing.T) {
			var out bytes.Buffer
			st, err := Prepare(path, WithOutput(&out))
			require.NoError(t, err)

			clf, err := train(st)
			require.NoError(t, err)

			rep, err := st.Evaluate(clf)
			require.NoError(t, err)
			assert.Equal(t, perfect, out.String())
			assert.Equal(t, st.yTest.Len(), rep.Confusion.Total())
		})
	}
}

func TestEvaluate_LogsLogLossForProbabilities(t *testing.T) {
	logger, _ := log.NewTestLogger(log.LevelInfo)
	prev := log.SetLogger(logger)
	defer log.SetLogger(prev)

	st, err := Prepare(writeSeparableCSV(t), WithOutput(&bytes.Buffer{}))
	require.NoError(t, err)

	dt, err := st.TrainDecisionTree()
	require.NoError(t, err)
	_, err = st.Evaluate(dt)
	require.NoError(t, err)

	svc, err := st.TrainSVM()
	require.NoError(t, err)
	_, err = st.Evaluate(svc)
	require.NoError(t, err)

	entries, err := logger.GetLogEntries()
	require.NoError(t, err)
	var evaluated []map[string]interface{}
	for _, e := range entries {
		if e["message"] == "model evaluated" {
			evaluated = append(evaluated, e)
		}
	}
	require.Len(t, evaluated, 2)

	// pure leaves give clipped probabilities of 0 and 1
	loss, ok := evaluated[0][log.LogLossKey].(float64)
	require.True(t, ok, "tree record %v", evaluated[0])
	assert.Less(t, loss, 1e-6)

	// decision values are not probabilities
	assert.NotContains(t, evaluated[1], log.LogLossKey)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	var out bytes.Buffer
	dir := t.TempDir()
	st, err := Prepare(writeSeparableCSV(t), WithOutput(&out), WithModelDir(dir))
	require.NoError(t, err)

	dt, err := st.TrainDecisionTree()
	require.NoError(t, err)
	require.NoError(t, st.SaveModel(dt, "tree"))
	assert.Equal(t, "tree model saved successfully.\n", out.String())
	assert.FileExists(t, filepath.Join(dir, "tree"+ModelExt))

	loaded, err := st.LoadModel("tree")
	require.NoError(t, err)
	assert.Equal(t, dt.Name(), loaded.Name())

	want, err := dt.Predict(st.xTest)
	require.NoError(t, err)
	got, err := loaded.Predict(st.xTest)
	require.NoError(t, err)
	assert.True(t, mat.Equal(want, got))

	// saving again overwrites
	require.NoError(t, st.SaveModel(dt, "tree"))
}

func TestLoadModel_Missing(t *testing.T) {
	_, err := LoadModel(filepath.Join(t.TempDir(), "absent"))
	var pe *errors.PersistenceError
	assert.True(t, errors.As(err, &pe), "got %v", err)
}

func TestPlots(t *testing.T) {
	dir := t.TempDir()
	st, err := Prepare(writeSeparableCSV(t), WithOutput(&bytes.Buffer{}))
	require.NoError(t, err)

	svc, err := st.TrainSVM()
	require.NoError(t, err)

	cmPath := filepath.Join(dir, "svm_confusion.png")
	rocPath := filepath.Join(dir, "svm_roc.svg")
	require.NoError(t, st.PlotConfusionMatrix(svc, cmPath))
	require.NoError(t, st.PlotROCCurve(svc, rocPath))
	assert.FileExists(t, cmPath)
	assert.FileExists(t, rocPath)

	assert.Equal(t, []string{"B", "M"}, st.ClassLabels(svc))
}

func TestRoundScore(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{1, 1},
		{2.0 / 3.0, 0.6667},
		{0.12345, 0.1235},
		{0.95238095, 0.9524},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, roundScore(tt.in), "roundScore(%v)", tt.in)
	}
}
