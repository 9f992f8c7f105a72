package svm

import (
	"bytes"
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/modeltrainer/core/model"
	"github.com/YuminosukeSato/modeltrainer/metrics"
	"github.com/YuminosukeSato/modeltrainer/pkg/errors"
)

func separable() (*mat.Dense, *mat.Dense) {
	X := mat.NewDense(10, 2, []float64{
		0.0, 0.1,
		0.1, 0.0,
		0.2, 0.2,
		0.1, 0.3,
		0.3, 0.1,
		0.9, 0.8,
		0.8, 0.9,
		1.0, 1.0,
		0.7, 0.9,
		0.9, 0.7,
	})
	y := mat.NewDense(10, 1, []float64{3, 3, 3, 3, 3, 7, 7, 7, 7, 7})
	return X, y
}

func TestSVC_FitPredictSeparable(t *testing.T) {
	X, y := separable()
	svc := NewSVC(WithProbability(true), WithRandomState(10))
	if err := svc.Fit(X, y); err != nil {
		t.Fatalf("Failed to fit: %v", err)
	}

	if got := svc.Score(X, y); got != 1.0 {
		t.Errorf("training accuracy = %v, want 1", got)
	}
	if c := svc.Classes(); len(c) != 2 || c[0] != 3 || c[1] != 7 {
		t.Errorf("Classes() = %v, want [3 7]", c)
	}

	dec, err := svc.DecisionFunction(X)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 5; i++ {
		if dec.At(i, 0) >= 0 {
			t.Errorf("row %d: decision %v should be negative", i, dec.At(i, 0))
		}
		if dec.At(i+5, 0) <= 0 {
			t.Errorf("row %d: decision %v should be positive", i+5, dec.At(i+5, 0))
		}
	}
}

func TestSVC_ProbabilityMonotoneInDecision(t *testing.T) {
	X, y := separable()
	svc := NewSVC(WithProbability(true))
	if err := svc.Fit(X, y); err != nil {
		t.Fatal(err)
	}

	XTest := mat.NewDense(3, 2, []float64{0, 0, 0.5, 0.5, 1, 1})
	proba, err := svc.PredictProba(XTest)
	if err != nil {
		t.Fatal(err)
	}
	prev := -1.0
	for i := 0; i < 3; i++ {
		p0, p1 := proba.At(i, 0), proba.At(i, 1)
		if math.Abs(p0+p1-1) > 1e-12 {
			t.Errorf("row %d: probabilities sum to %v", i, p0+p1)
		}
		if p1 <= prev {
			t.Errorf("row %d: P(positive)=%v not increasing (prev %v)", i, p1, prev)
		}
		prev = p1
	}
	if proba.At(0, 1) >= 0.5 || proba.At(2, 1) <= 0.5 {
		t.Errorf("extreme rows on wrong side of 0.5: %v, %v", proba.At(0, 1), proba.At(2, 1))
	}
}

func TestSVC_PositiveScoresUsesDecision(t *testing.T) {
	X, y := separable()
	svc := NewSVC()
	if err := svc.Fit(X, y); err != nil {
		t.Fatal(err)
	}
	if svc.ScoreKind() != model.DecisionScore {
		t.Fatalf("ScoreKind() = %v", svc.ScoreKind())
	}

	scores, err := model.PositiveScores(svc, X)
	if err != nil {
		t.Fatal(err)
	}
	dec, _ := svc.DecisionFunction(X)
	for i := 0; i < scores.Len(); i++ {
		if scores.AtVec(i) != dec.At(i, 0) {
			t.Errorf("row %d: score %v != decision %v", i, scores.AtVec(i), dec.At(i, 0))
		}
	}
}

func TestSVC_AUCSameForProbabilityAndDecision(t *testing.T) {
	// overlapping classes so the ranking is not trivially perfect
	X := mat.NewDense(12, 1, []float64{0.0, 0.1, 0.2, 0.35, 0.5, 0.65, 0.3, 0.45, 0.6, 0.8, 0.9, 1.0})
	y := mat.NewDense(12, 1, []float64{0, 0, 0, 0, 0, 0, 1, 1, 1, 1, 1, 1})
	svc := NewSVC(WithProbability(true), WithRandomState(10))
	if err := svc.Fit(X, y); err != nil {
		t.Fatal(err)
	}

	labels := mat.NewVecDense(12, nil)
	for i := 0; i < 12; i++ {
		labels.SetVec(i, y.At(i, 0))
	}
	dec, err := model.PositiveScores(svc, X)
	if err != nil {
		t.Fatal(err)
	}
	proba, err := svc.PredictProba(X)
	if err != nil {
		t.Fatal(err)
	}

	aucDec, err := metrics.AUC(labels, dec)
	if err != nil {
		t.Fatal(err)
	}
	aucProb, err := metrics.AUC(labels, mat.VecDenseCopyOf(proba.(*mat.Dense).ColView(1)))
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(aucDec-aucProb) > 1e-12 {
		t.Errorf("AUC from decision values = %v, from probabilities = %v", aucDec, aucProb)
	}
	if aucDec <= 0.5 || aucDec >= 1 {
		t.Errorf("AUC = %v, want between 0.5 and 1 on overlapping classes", aucDec)
	}
}

func TestSVC_ProbabilityDisabled(t *testing.T) {
	X, y := separable()
	svc := NewSVC()
	if err := svc.Fit(X, y); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.PredictProba(X); err == nil {
		t.Error("expected error when probability estimates are disabled")
	}
}

func TestSVC_Deterministic(t *testing.T) {
	X, y := separable()
	a := NewSVC(WithRandomState(10))
	b := NewSVC(WithRandomState(10))
	if err := a.Fit(X, y); err != nil {
		t.Fatal(err)
	}
	if err := b.Fit(X, y); err != nil {
		t.Fatal(err)
	}
	ca, cb := a.Coef(), b.Coef()
	for j := range ca {
		if ca[j] != cb[j] {
			t.Errorf("coef[%d]: %v != %v", j, ca[j], cb[j])
		}
	}
	if a.Intercept() != b.Intercept() {
		t.Errorf("intercept: %v != %v", a.Intercept(), b.Intercept())
	}
}

func TestSVC_ConvergenceWarning(t *testing.T) {
	var warned []error
	prev := errors.SetWarningHandler(func(w error) { warned = append(warned, w) })
	defer errors.SetWarningHandler(prev)

	// overlapping labels keep the solver busy beyond a single pass
	X := mat.NewDense(6, 1, []float64{0, 1, 2, 0.5, 1.5, 2.5})
	y := mat.NewDense(6, 1, []float64{0, 1, 0, 1, 0, 1})
	svc := NewSVC(WithMaxIter(1))
	if err := svc.Fit(X, y); err != nil {
		t.Fatal(err)
	}
	if svc.NIter() != 1 {
		t.Fatalf("NIter() = %d, want 1", svc.NIter())
	}

	found := false
	for _, w := range warned {
		var cw *errors.ConvergenceWarning
		if errors.As(w, &cw) {
			found = true
		}
	}
	if !found {
		t.Errorf("expected ConvergenceWarning, got %v", warned)
	}
}

func TestSVC_Errors(t *testing.T) {
	t.Run("not fitted", func(t *testing.T) {
		svc := NewSVC()
		_, err := svc.Predict(mat.NewDense(1, 2, []float64{0, 0}))
		var nf *errors.NotFittedError
		if !errors.As(err, &nf) {
			t.Errorf("expected NotFittedError, got %v", err)
		}
	})

	t.Run("single class", func(t *testing.T) {
		svc := NewSVC()
		err := svc.Fit(mat.NewDense(3, 1, []float64{1, 2, 3}), mat.NewDense(3, 1, []float64{1, 1, 1}))
		var fe *errors.FitError
		if !errors.As(err, &fe) {
			t.Errorf("expected FitError, got %v", err)
		}
	})

	t.Run("three classes", func(t *testing.T) {
		svc := NewSVC()
		err := svc.Fit(mat.NewDense(3, 1, []float64{1, 2, 3}), mat.NewDense(3, 1, []float64{0, 1, 2}))
		if err == nil {
			t.Error("expected error for multiclass labels")
		}
	})

	t.Run("non-positive C", func(t *testing.T) {
		X, y := separable()
		if err := NewSVC(WithC(0)).Fit(X, y); err == nil {
			t.Error("expected error for C=0")
		}
	})

	t.Run("feature mismatch", func(t *testing.T) {
		X, y := separable()
		svc := NewSVC()
		if err := svc.Fit(X, y); err != nil {
			t.Fatal(err)
		}
		_, err := svc.DecisionFunction(mat.NewDense(1, 3, nil))
		var de *errors.DimensionError
		if !errors.As(err, &de) {
			t.Errorf("expected DimensionError, got %v", err)
		}
	})
}

func TestSVC_PersistRoundTrip(t *testing.T) {
	X, y := separable()
	svc := NewSVC(WithProbability(true))
	if err := svc.Fit(X, y); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := model.SaveModelToWriter(svc, &buf); err != nil {
		t.Fatal(err)
	}
	loaded, err := model.LoadModelFromReader(&buf)
	if err != nil {
		t.Fatal(err)
	}
	restored, ok := loaded.(*SVC)
	if !ok {
		t.Fatalf("loaded %T, want *SVC", loaded)
	}

	want, _ := svc.PredictProba(X)
	got, err := restored.PredictProba(X)
	if err != nil {
		t.Fatal(err)
	}
	if !mat.EqualApprox(want, got, 1e-12) {
		t.Error("restored probabilities differ")
	}
}

func TestSVC_SetParams(t *testing.T) {
	svc := NewSVC()
	if err := svc.SetParams(map[string]interface{}{"C": 2.0, "probability": true}); err != nil {
		t.Fatal(err)
	}
	p := svc.GetParams()
	if p["C"] != 2.0 || p["probability"] != true {
		t.Errorf("GetParams() = %v", p)
	}
	if err := svc.SetParams(map[string]interface{}{"gamma": 1.0}); err == nil {
		t.Error("expected error for unknown parameter")
	}
}
