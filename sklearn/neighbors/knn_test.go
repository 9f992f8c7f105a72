package neighbors

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/modeltrainer/core/model"
	"github.com/YuminosukeSato/modeltrainer/pkg/errors"
)

func clusters() (*mat.Dense, *mat.Dense) {
	X := mat.NewDense(8, 2, []float64{
		0, 0,
		0, 1,
		1, 0,
		1, 1,
		5, 5,
		5, 6,
		6, 5,
		6, 6,
	})
	y := mat.NewDense(8, 1, []float64{0, 0, 0, 0, 1, 1, 1, 1})
	return X, y
}

func TestKNeighborsClassifier_FitPredict(t *testing.T) {
	X, y := clusters()
	knn := NewKNeighborsClassifier(WithNNeighbors(3))
	if err := knn.Fit(X, y); err != nil {
		t.Fatalf("Failed to fit: %v", err)
	}

	XTest := mat.NewDense(2, 2, []float64{0.5, 0.5, 5.5, 5.5})
	pred, err := knn.Predict(XTest)
	if err != nil {
		t.Fatal(err)
	}
	if pred.At(0, 0) != 0 || pred.At(1, 0) != 1 {
		t.Errorf("predictions = %v, want [0 1]", mat.Formatted(pred))
	}
	if score := knn.Score(X, y); score != 1.0 {
		t.Errorf("Score() = %v, want 1", score)
	}
}

func TestKNeighborsClassifier_PredictProba(t *testing.T) {
	X, y := clusters()
	knn := NewKNeighborsClassifier(WithNNeighbors(4))
	if err := knn.Fit(X, y); err != nil {
		t.Fatal(err)
	}

	// the four closest rows form the lower-left cluster
	proba, err := knn.PredictProba(mat.NewDense(1, 2, []float64{1, 1}))
	if err != nil {
		t.Fatal(err)
	}
	if proba.At(0, 0) != 1 || proba.At(0, 1) != 0 {
		t.Errorf("proba = %v, want [1 0]", mat.Formatted(proba))
	}

	scores, err := model.PositiveScores(knn, mat.NewDense(2, 2, []float64{0, 0, 6, 6}))
	if err != nil {
		t.Fatal(err)
	}
	if scores.AtVec(0) != 0 || scores.AtVec(1) != 1 {
		t.Errorf("positive scores = %v", mat.Formatted(scores))
	}
}

func TestKNeighborsClassifier_TieGoesToSmallerClass(t *testing.T) {
	X := mat.NewDense(2, 1, []float64{-1, 1})
	y := mat.NewDense(2, 1, []float64{1, 0})

	knn := NewKNeighborsClassifier(WithNNeighbors(2))
	if err := knn.Fit(X, y); err != nil {
		t.Fatal(err)
	}
	pred, err := knn.Predict(mat.NewDense(1, 1, []float64{0}))
	if err != nil {
		t.Fatal(err)
	}
	if pred.At(0, 0) != 0 {
		t.Errorf("tied vote predicted %v, want 0", pred.At(0, 0))
	}
}

func TestKNeighborsClassifier_ParallelMatchesSequential(t *testing.T) {
	X, y := clusters()
	knn := NewKNeighborsClassifier(WithNNeighbors(3))
	if err := knn.Fit(X, y); err != nil {
		t.Fatal(err)
	}

	n := parallelThreshold * 3
	query := mat.NewDense(n, 2, nil)
	for i := 0; i < n; i++ {
		v := 6 * float64(i) / float64(n)
		query.Set(i, 0, v)
		query.Set(i, 1, v)
	}
	batch, err := knn.Predict(query)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < n; i++ {
		single, err := knn.Predict(query.Slice(i, i+1, 0, 2))
		if err != nil {
			t.Fatal(err)
		}
		if single.At(0, 0) != batch.At(i, 0) {
			t.Fatalf("row %d: batch %v, single %v", i, batch.At(i, 0), single.At(0, 0))
		}
	}
}

func TestKNeighborsClassifier_Errors(t *testing.T) {
	X, y := clusters()

	if err := NewKNeighborsClassifier(WithNNeighbors(9)).Fit(X, y); err == nil {
		t.Error("expected error when k exceeds training samples")
	}
	if err := NewKNeighborsClassifier(WithNNeighbors(0)).Fit(X, y); err == nil {
		t.Error("expected error for k = 0")
	}
	nan := mat.NewDense(2, 1, []float64{math.NaN(), 1})
	if err := NewKNeighborsClassifier(WithNNeighbors(1)).Fit(nan, mat.NewDense(2, 1, []float64{0, 1})); err == nil {
		t.Error("expected error for NaN features")
	}

	var notFitted *errors.NotFittedError
	if _, err := NewKNeighborsClassifier().Predict(X); !errors.As(err, &notFitted) {
		t.Errorf("expected NotFittedError, got %v", err)
	}
}

func TestKNeighborsClassifier_PersistRoundTrip(t *testing.T) {
	X, y := clusters()
	knn := NewKNeighborsClassifier(WithNNeighbors(3))
	if err := knn.Fit(X, y); err != nil {
		t.Fatal(err)
	}
	data, err := knn.MarshalBinary()
	if err != nil {
		t.Fatal(err)
	}
	restored := &KNeighborsClassifier{}
	if err := restored.UnmarshalBinary(data); err != nil {
		t.Fatal(err)
	}
	if restored.NNeighbors() != 3 {
		t.Errorf("NNeighbors() = %d", restored.NNeighbors())
	}
	want, _ := knn.PredictProba(X)
	got, err := restored.PredictProba(X)
	if err != nil {
		t.Fatal(err)
	}
	if !mat.Equal(want, got) {
		t.Error("restored classifier predicts differently")
	}
}
