package model

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/modeltrainer/pkg/errors"
)

// ScoreKind declares which continuous score a classifier offers for ranking
// metrics such as ROC and AUC.
type ScoreKind int

const (
	// ProbabilityScore models implement ProbabilityEstimator.
	ProbabilityScore ScoreKind = iota
	// DecisionScore models implement DecisionFunctionEstimator.
	DecisionScore
)

func (k ScoreKind) String() string {
	switch k {
	case ProbabilityScore:
		return "probability"
	case DecisionScore:
		return "decision"
	default:
		return fmt.Sprintf("ScoreKind(%d)", int(k))
	}
}

// Classifier is the contract every trainable model in the pipeline meets.
type Classifier interface {
	Fitter
	Predictor
	ParameterGetter

	// Name is the estimator kind, used for logging and persistence.
	Name() string

	// Classes returns the sorted class labels seen during Fit.
	Classes() []int

	// ScoreKind tells PositiveScores which capability to use.
	ScoreKind() ScoreKind
}

// ParameterGetter is the interface for models that expose their parameters.
type ParameterGetter interface {
	GetParams() map[string]interface{}
}

// ParameterSetter is the interface for models that allow parameter modification.
type ParameterSetter interface {
	SetParams(params map[string]interface{}) error
}

// PositiveScores returns one continuous score per row of X for the positive
// class (Classes()[1]): the predicted probability for ProbabilityScore models
// and the raw decision value for DecisionScore models.
func PositiveScores(clf Classifier, X mat.Matrix) (*mat.VecDense, error) {
	classes := clf.Classes()
	if len(classes) != 2 {
		return nil, errors.NewValueError("PositiveScores",
			fmt.Sprintf("%s: binary classifier required, got %d classes", clf.Name(), len(classes)))
	}

	switch clf.ScoreKind() {
	case ProbabilityScore:
		pe, ok := clf.(ProbabilityEstimator)
		if !ok {
			return nil, errors.NewValueError("PositiveScores", clf.Name()+" declares probability scores but has no PredictProba")
		}
		proba, err := pe.PredictProba(X)
		if err != nil {
			return nil, err
		}
		return columnVec(proba, 1), nil
	case DecisionScore:
		de, ok := clf.(DecisionFunctionEstimator)
		if !ok {
			return nil, errors.NewValueError("PositiveScores", clf.Name()+" declares decision scores but has no DecisionFunction")
		}
		dec, err := de.DecisionFunction(X)
		if err != nil {
			return nil, err
		}
		return columnVec(dec, 0), nil
	default:
		return nil, errors.NewValueError("PositiveScores", "unknown score kind "+clf.ScoreKind().String())
	}
}

func columnVec(m mat.Matrix, j int) *mat.VecDense {
	r, _ := m.Dims()
	out := mat.NewVecDense(r, nil)
	for i := 0; i < r; i++ {
		out.SetVec(i, m.At(i, j))
	}
	return out
}
