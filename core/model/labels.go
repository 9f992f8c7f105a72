package model

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/modeltrainer/pkg/errors"
)

// ValidateXy checks the shapes shared by every classifier's Fit: X is n×d
// with n, d > 0 and y is n×1 (or 1×n).
func ValidateXy(op string, X, y mat.Matrix) (nSamples, nFeatures int, err error) {
	nSamples, nFeatures = X.Dims()
	if nSamples == 0 || nFeatures == 0 {
		return 0, 0, errors.Wrapf(errors.ErrEmptyData, "%s", op)
	}
	yr, yc := y.Dims()
	if yc != 1 && yr == 1 {
		yr, yc = yc, yr
	}
	if yc != 1 {
		return 0, 0, errors.NewDimensionError(op, 1, yc, 1)
	}
	if yr != nSamples {
		return 0, 0, errors.NewDimensionError(op, nSamples, yr, 0)
	}
	return nSamples, nFeatures, nil
}

// EncodeLabels reads integer class labels from an n×1 (or 1×n) matrix and
// returns the sorted distinct classes plus each sample's index into them.
func EncodeLabels(y mat.Matrix) (classes []int, encoded []int, err error) {
	r, c := y.Dims()
	n := r
	at := func(i int) float64 { return y.At(i, 0) }
	if r == 1 && c > 1 {
		n = c
		at = func(i int) float64 { return y.At(0, i) }
	}

	labels := make([]int, n)
	seen := map[int]struct{}{}
	for i := 0; i < n; i++ {
		v := at(i)
		if math.IsNaN(v) || v != math.Trunc(v) {
			return nil, nil, errors.NewValueError("EncodeLabels", fmt.Sprintf("label %v at index %d is not an integer class", v, i))
		}
		labels[i] = int(v)
		seen[labels[i]] = struct{}{}
	}

	classes = make([]int, 0, len(seen))
	for k := range seen {
		classes = append(classes, k)
	}
	sort.Ints(classes)

	pos := make(map[int]int, len(classes))
	for i, k := range classes {
		pos[k] = i
	}
	encoded = make([]int, n)
	for i, l := range labels {
		encoded[i] = pos[l]
	}
	return classes, encoded, nil
}

// ScoreAccuracy is the mean accuracy of clf on (X, y). Errors and a y whose
// row count differs from the predictions score 0.
func ScoreAccuracy(clf Predictor, X, y mat.Matrix) float64 {
	pred, err := clf.Predict(X)
	if err != nil || y == nil {
		return 0
	}
	n, _ := pred.Dims()
	if yr, _ := y.Dims(); n == 0 || yr != n {
		return 0
	}
	correct := 0
	for i := 0; i < n; i++ {
		if pred.At(i, 0) == y.At(i, 0) {
			correct++
		}
	}
	return float64(correct) / float64(n)
}
