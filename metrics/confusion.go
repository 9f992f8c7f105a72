package metrics

import (
	"fmt"
	"io"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/modeltrainer/pkg/errors"
)

// ConfusionMatrix counts (true, predicted) pairs. Row i and column j follow
// the order of labels; labels outside that set are an error.
func ConfusionMatrix(yTrue, yPred *mat.VecDense, labels []int) (*mat.Dense, error) {
	n, err := checkPair("ConfusionMatrix", yTrue, yPred)
	if err != nil {
		return nil, err
	}
	if len(labels) == 0 {
		return nil, errors.NewValueError("ConfusionMatrix", "labels must not be empty")
	}
	pos := make(map[int]int, len(labels))
	for i, l := range labels {
		pos[l] = i
	}
	lookup := func(v float64) (int, error) {
		i, ok := pos[int(v)]
		if !ok || float64(int(v)) != v {
			return 0, errors.NewValueError("ConfusionMatrix", fmt.Sprintf("label %v is not in %v", v, labels))
		}
		return i, nil
	}

	cm := mat.NewDense(len(labels), len(labels), nil)
	for k := 0; k < n; k++ {
		i, err := lookup(yTrue.AtVec(k))
		if err != nil {
			return nil, err
		}
		j, err := lookup(yPred.AtVec(k))
		if err != nil {
			return nil, err
		}
		cm.Set(i, j, cm.At(i, j)+1)
	}
	return cm, nil
}

// BinaryConfusion holds the four cells of a 2×2 confusion matrix, class 1
// being positive.
type BinaryConfusion struct {
	TN, FP, FN, TP int
}

// NewBinaryConfusion reads a 2×2 matrix laid out as [[TN FP] [FN TP]].
func NewBinaryConfusion(cm mat.Matrix) (BinaryConfusion, error) {
	if r, c := cm.Dims(); r != 2 || c != 2 {
		return BinaryConfusion{}, errors.NewValueError("NewBinaryConfusion",
			fmt.Sprintf("expected a 2x2 matrix, got %dx%d", r, c))
	}
	return BinaryConfusion{
		TN: int(cm.At(0, 0)), FP: int(cm.At(0, 1)),
		FN: int(cm.At(1, 0)), TP: int(cm.At(1, 1)),
	}, nil
}

// Total returns the number of counted samples.
func (c BinaryConfusion) Total() int { return c.TN + c.FP + c.FN + c.TP }

// Matrix returns the counts as [[TN FP] [FN TP]].
func (c BinaryConfusion) Matrix() *mat.Dense {
	return mat.NewDense(2, 2, []float64{
		float64(c.TN), float64(c.FP),
		float64(c.FN), float64(c.TP),
	})
}

// Precision は tp/(tp+fp)。陽性予測が0件なら 0 を返して警告する
func (c BinaryConfusion) Precision() float64 {
	if c.TP+c.FP == 0 {
		errors.Warn(errors.NewUndefinedMetricWarning("precision", "no predicted positive samples", 0))
		return 0
	}
	return float64(c.TP) / float64(c.TP+c.FP)
}

// Recall は tp/(tp+fn)。真の陽性が0件なら 0 を返して警告する
func (c BinaryConfusion) Recall() float64 {
	if c.TP+c.FN == 0 {
		errors.Warn(errors.NewUndefinedMetricWarning("recall", "no true positive samples", 0))
		return 0
	}
	return float64(c.TP) / float64(c.TP+c.FN)
}

// Specificity は tn/(tn+fp)。真の陰性が0件の場合は定義できないため EvaluationError を返す
func (c BinaryConfusion) Specificity() (float64, error) {
	if c.TN+c.FP == 0 {
		return 0, errors.NewEvaluationError("specificity", "test set has no negative samples (tn+fp = 0)")
	}
	return float64(c.TN) / float64(c.TN+c.FP), nil
}

// F1 is the harmonic mean of precision and recall, 2tp/(2tp+fp+fn).
func (c BinaryConfusion) F1() float64 {
	denom := 2*c.TP + c.FP + c.FN
	if denom == 0 {
		errors.Warn(errors.NewUndefinedMetricWarning("f1", "no true or predicted positive samples", 0))
		return 0
	}
	return errors.SafeDivide(float64(2*c.TP), float64(denom))
}

// CohenKappa computes Cohen's kappa from a square confusion matrix. When the
// expected agreement is 1 (a single label everywhere) kappa is reported as 0.
func CohenKappa(cm mat.Matrix) (float64, error) {
	r, c := cm.Dims()
	if r != c || r == 0 {
		return 0, errors.NewValueError("CohenKappa", fmt.Sprintf("expected a square matrix, got %dx%d", r, c))
	}
	total := mat.Sum(cm)
	if total == 0 {
		return 0, errors.Wrap(errors.ErrEmptyData, "CohenKappa")
	}

	var observed, expected float64
	for k := 0; k < r; k++ {
		observed += cm.At(k, k)
		var rowSum, colSum float64
		for j := 0; j < c; j++ {
			rowSum += cm.At(k, j)
			colSum += cm.At(j, k)
		}
		expected += rowSum * colSum
	}
	observed /= total
	expected /= total * total

	if expected >= 1 {
		errors.Warn(errors.NewUndefinedMetricWarning("kappa", "expected agreement is 1", 0))
		return 0, nil
	}
	return (observed - expected) / (1 - expected), nil
}

// BinaryReport is the seven-metric evaluation of a binary classifier.
type BinaryReport struct {
	Accuracy    float64
	Precision   float64
	Recall      float64
	Specificity float64
	F1          float64
	AUC         float64
	Kappa       float64

	Confusion BinaryConfusion
}

// EvaluateBinary builds a BinaryReport from 0/1 labels, hard predictions and
// positive-class scores. AUC is computed on the scores.
func EvaluateBinary(yTrue, yPred, yScore *mat.VecDense) (*BinaryReport, error) {
	if _, err := checkPair("EvaluateBinary", yTrue, yPred); err != nil {
		return nil, err
	}
	cm, err := ConfusionMatrix(yTrue, yPred, []int{0, 1})
	if err != nil {
		return nil, err
	}
	conf, err := NewBinaryConfusion(cm)
	if err != nil {
		return nil, err
	}

	rep := &BinaryReport{Confusion: conf}
	if rep.Accuracy, err = Accuracy(yTrue, yPred); err != nil {
		return nil, err
	}
	rep.Precision = conf.Precision()
	rep.Recall = conf.Recall()
	if rep.Specificity, err = conf.Specificity(); err != nil {
		return nil, err
	}
	rep.F1 = conf.F1()
	if rep.AUC, err = AUC(yTrue, yScore); err != nil {
		return nil, err
	}
	if rep.Kappa, err = CohenKappa(cm); err != nil {
		return nil, err
	}
	return rep, nil
}

// Values returns the metrics in report order.
func (r *BinaryReport) Values() [7]float64 {
	return [7]float64{r.Accuracy, r.Precision, r.Recall, r.Specificity, r.F1, r.AUC, r.Kappa}
}

// String renders the seven-line report with 3-decimal values.
func (r *BinaryReport) String() string {
	return fmt.Sprintf("Accuracy Score: %.3f\nPrecision Score: %.3f\nRecall Score: %.3f\n"+
		"Specificity Score: %.3f\nF1 Score: %.3f\nAuc Score: %.3f\nKappa Score: %.3f\n",
		r.Accuracy, r.Precision, r.Recall, r.Specificity, r.F1, r.AUC, r.Kappa)
}

// WriteTo writes String() to w.
func (r *BinaryReport) WriteTo(w io.Writer) (int64, error) {
	n, err := io.WriteString(w, r.String())
	return int64(n), err
}
