package dataset

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/modeltrainer/pkg/errors"
)

// Split is a fixed partition of a dataset's rows.
type Split struct {
	XTrain, XTest *mat.Dense
	YTrain, YTest *mat.VecDense

	// TrainIndex and TestIndex are the source row numbers of each subset.
	TrainIndex, TestIndex []int
}

// TrainTestSplit shuffles row indices with a generator seeded by seed and
// assigns the first ceil(testSize*n) of them to the test subset. The same
// inputs always produce the same partition.
func TrainTestSplit(X *mat.Dense, y *mat.VecDense, testSize float64, seed int64) (*Split, error) {
	if testSize <= 0 || testSize >= 1 {
		return nil, errors.NewValidationError("test_size", "must be in (0, 1)", testSize)
	}
	n, d := X.Dims()
	if y.Len() != n {
		return nil, errors.NewDimensionError("TrainTestSplit", n, y.Len(), 0)
	}

	nTest := int(math.Ceil(testSize * float64(n)))
	nTrain := n - nTest
	if nTest == 0 || nTrain == 0 {
		return nil, errors.NewDataFormatError("",
			fmt.Sprintf("%d rows cannot be split into non-empty training and test subsets", n), nil)
	}

	perm := rand.New(rand.NewSource(seed)).Perm(n)
	s := &Split{
		TestIndex:  perm[:nTest],
		TrainIndex: perm[nTest:],
	}
	s.XTrain, s.YTrain = takeRows(X, y, s.TrainIndex, d)
	s.XTest, s.YTest = takeRows(X, y, s.TestIndex, d)
	return s, nil
}

func takeRows(X *mat.Dense, y *mat.VecDense, idx []int, d int) (*mat.Dense, *mat.VecDense) {
	xs := mat.NewDense(len(idx), d, nil)
	ys := mat.NewVecDense(len(idx), nil)
	for i, src := range idx {
		xs.SetRow(i, X.RawRowView(src))
		ys.SetVec(i, y.AtVec(src))
	}
	return xs, ys
}
