// Package metrics は二値分類モデルの評価指標を提供する
//
// ラベルは 0/1 にエンコードされた *mat.VecDense で受け取り、1 を陽性クラスとして扱う。
// 定義できない指標（陽性予測が0件の適合率など）は scikit-learn の zero_division と同様に
// 0 を返し、UndefinedMetricWarning を errors.Warn に送る。
package metrics

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/modeltrainer/pkg/errors"
)

// checkPair validates two label/score vectors of the same non-zero length.
func checkPair(op string, yTrue, yPred *mat.VecDense) (int, error) {
	if yTrue == nil || yPred == nil {
		return 0, errors.Wrapf(errors.ErrEmptyData, "%s: nil input", op)
	}
	n := yTrue.Len()
	if n == 0 {
		return 0, errors.Wrapf(errors.ErrEmptyData, "%s", op)
	}
	if yPred.Len() != n {
		return 0, errors.NewDimensionError(op, n, yPred.Len(), 0)
	}
	return n, nil
}

func checkBinary(op string, y *mat.VecDense) (nPos int, err error) {
	for i := 0; i < y.Len(); i++ {
		switch y.AtVec(i) {
		case 1:
			nPos++
		case 0:
		default:
			return 0, errors.NewValueError(op, fmt.Sprintf("labels must be 0 or 1, got %v at index %d", y.AtVec(i), i))
		}
	}
	return nPos, nil
}

// Accuracy は正解率 (一致したラベルの割合) を計算する
func Accuracy(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("Accuracy", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	correct := 0
	for i := 0; i < n; i++ {
		if yTrue.AtVec(i) == yPred.AtVec(i) {
			correct++
		}
	}
	return float64(correct) / float64(n), nil
}

// AUC computes the area under the ROC curve from 0/1 labels and continuous
// scores with the rank statistic (Mann-Whitney U), averaging tied ranks.
// When only one class is present the area is undefined and 0.5 is returned.
func AUC(yTrue, yScore *mat.VecDense) (float64, error) {
	n, err := checkPair("AUC", yTrue, yScore)
	if err != nil {
		return 0, err
	}
	nPos, err := checkBinary("AUC", yTrue)
	if err != nil {
		return 0, err
	}
	nNeg := n - nPos
	if nPos == 0 || nNeg == 0 {
		errors.Warn(errors.NewUndefinedMetricWarning("auc", "only one class present in y_true", 0.5))
		return 0.5, nil
	}

	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return yScore.AtVec(idx[a]) < yScore.AtVec(idx[b]) })

	var posRankSum float64
	for i := 0; i < n; {
		j := i
		for j+1 < n && yScore.AtVec(idx[j+1]) == yScore.AtVec(idx[i]) {
			j++
		}
		// ranks are 1-based, ties share the mean rank
		rank := float64(i+j)/2 + 1
		for k := i; k <= j; k++ {
			if yTrue.AtVec(idx[k]) == 1 {
				posRankSum += rank
			}
		}
		i = j + 1
	}

	u := posRankSum - float64(nPos*(nPos+1))/2
	return u / float64(nPos*nNeg), nil
}

// BinaryLogLoss は二値交差エントロピーを計算する。確率は [1e-15, 1-1e-15] にクリップされる
func BinaryLogLoss(yTrue, yProb *mat.VecDense) (float64, error) {
	n, err := checkPair("BinaryLogLoss", yTrue, yProb)
	if err != nil {
		return 0, err
	}
	if _, err := checkBinary("BinaryLogLoss", yTrue); err != nil {
		return 0, err
	}
	const eps = 1e-15
	var loss float64
	for i := 0; i < n; i++ {
		p := errors.ClipValue(yProb.AtVec(i), eps, 1-eps)
		if yTrue.AtVec(i) == 1 {
			loss -= errors.StabilizeLog(p)
		} else {
			loss -= errors.StabilizeLog(1 - p)
		}
	}
	return loss / float64(n), nil
}

// ROCCurve returns false and true positive rates at every distinct score
// threshold, highest threshold first. The first point is (0, 0) with an
// infinite threshold and the last is (1, 1).
func ROCCurve(yTrue, yScore *mat.VecDense) (fpr, tpr, thresholds []float64, err error) {
	n, err := checkPair("ROCCurve", yTrue, yScore)
	if err != nil {
		return nil, nil, nil, err
	}
	nPos, err := checkBinary("ROCCurve", yTrue)
	if err != nil {
		return nil, nil, nil, err
	}
	nNeg := n - nPos
	if nPos == 0 || nNeg == 0 {
		return nil, nil, nil, errors.NewEvaluationError("roc_curve", "both classes must be present in y_true")
	}

	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return yScore.AtVec(idx[a]) > yScore.AtVec(idx[b]) })

	fpr = []float64{0}
	tpr = []float64{0}
	thresholds = []float64{math.Inf(1)}
	var tp, fp int
	for i := 0; i < n; i++ {
		if yTrue.AtVec(idx[i]) == 1 {
			tp++
		} else {
			fp++
		}
		if i+1 < n && yScore.AtVec(idx[i+1]) == yScore.AtVec(idx[i]) {
			continue
		}
		fpr = append(fpr, float64(fp)/float64(nNeg))
		tpr = append(tpr, float64(tp)/float64(nPos))
		thresholds = append(thresholds, yScore.AtVec(idx[i]))
	}
	return fpr, tpr, thresholds, nil
}

// AreaUnderCurve integrates y over monotonically increasing x with the
// trapezoidal rule.
func AreaUnderCurve(x, y []float64) (float64, error) {
	if len(x) != len(y) {
		return 0, errors.NewDimensionError("AreaUnderCurve", len(x), len(y), 0)
	}
	if len(x) < 2 {
		return 0, errors.NewValueError("AreaUnderCurve", "at least 2 points are required")
	}
	var area float64
	for i := 1; i < len(x); i++ {
		dx := x[i] - x[i-1]
		if dx < 0 {
			return 0, errors.NewValueError("AreaUnderCurve", "x must be non-decreasing")
		}
		area += dx * (y[i] + y[i-1]) / 2
	}
	return area, nil
}
