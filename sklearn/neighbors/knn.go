// Package neighbors implements the k-nearest-neighbors classifier.
package neighbors

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/modeltrainer/core/model"
	"github.com/YuminosukeSato/modeltrainer/core/parallel"
	"github.com/YuminosukeSato/modeltrainer/pkg/errors"
)

const modelName = "KNeighborsClassifier"

// parallelThreshold is the number of query rows below which prediction runs
// on the calling goroutine.
const parallelThreshold = 64

func init() {
	model.Register(modelName, &KNeighborsClassifier{})
}

var (
	_ model.Classifier           = (*KNeighborsClassifier)(nil)
	_ model.ProbabilityEstimator = (*KNeighborsClassifier)(nil)
	_ model.ParameterSetter      = (*KNeighborsClassifier)(nil)
)

// KNeighborsClassifier votes among the k training rows closest in Euclidean
// distance, with uniform weights.
type KNeighborsClassifier struct {
	state *model.StateManager

	nNeighbors int

	// training data kept for prediction
	xTrain   *mat.Dense
	yEncoded []int
	classes_ []int
}

// KNNOption is a functional option for KNeighborsClassifier
type KNNOption func(*KNeighborsClassifier)

// NewKNeighborsClassifier creates a classifier with k = 5 unless overridden.
func NewKNeighborsClassifier(opts ...KNNOption) *KNeighborsClassifier {
	knn := &KNeighborsClassifier{
		state:      model.NewStateManager(),
		nNeighbors: 5,
	}
	for _, opt := range opts {
		opt(knn)
	}
	return knn
}

// WithNNeighbors sets k.
func WithNNeighbors(k int) KNNOption {
	return func(knn *KNeighborsClassifier) { knn.nNeighbors = k }
}

// NNeighbors returns k.
func (knn *KNeighborsClassifier) NNeighbors() int { return knn.nNeighbors }

// Fit stores a copy of the training data. k must not exceed the number of
// training rows.
func (knn *KNeighborsClassifier) Fit(X, y mat.Matrix) error {
	if knn.nNeighbors < 1 {
		return errors.NewValidationError("n_neighbors", "must be at least 1", knn.nNeighbors)
	}
	nSamples, nFeatures, err := model.ValidateXy(modelName+".Fit", X, y)
	if err != nil {
		return err
	}
	if knn.nNeighbors > nSamples {
		return errors.NewValueError(modelName+".Fit",
			fmt.Sprintf("n_neighbors=%d exceeds the %d training samples", knn.nNeighbors, nSamples))
	}
	if err := errors.CheckMatrix(modelName+".Fit", X, nSamples, nFeatures); err != nil {
		return err
	}
	classes, encoded, err := model.EncodeLabels(y)
	if err != nil {
		return err
	}

	knn.state.Reset()
	knn.xTrain = mat.DenseCopyOf(X)
	knn.yEncoded = encoded
	knn.classes_ = classes
	knn.state.SetDimensions(nFeatures, nSamples)
	knn.state.SetFitted()
	return nil
}

type neighbor struct {
	index int
	dist  float64
}

// votes returns per-class neighbor counts for the query row q. Equal
// distances are ordered by training row index.
func (knn *KNeighborsClassifier) votes(q []float64) []int {
	n, _ := knn.xTrain.Dims()
	neighbors := make([]neighbor, n)
	for i := 0; i < n; i++ {
		neighbors[i] = neighbor{index: i, dist: floats.Distance(q, knn.xTrain.RawRowView(i), 2)}
	}
	sort.SliceStable(neighbors, func(a, b int) bool { return neighbors[a].dist < neighbors[b].dist })

	counts := make([]int, len(knn.classes_))
	for _, nb := range neighbors[:knn.nNeighbors] {
		counts[knn.yEncoded[nb.index]]++
	}
	return counts
}

// neighborVotes computes votes for every row of X, fanning rows out over
// CPU cores for large inputs.
func (knn *KNeighborsClassifier) neighborVotes(method string, X mat.Matrix) ([][]int, error) {
	if err := knn.state.RequireFitted(modelName, method); err != nil {
		return nil, err
	}
	r, c := X.Dims()
	if err := knn.state.RequireFeatures(modelName+"."+method, c); err != nil {
		return nil, err
	}
	if r == 0 {
		return nil, errors.Wrapf(errors.ErrEmptyData, "%s.%s", modelName, method)
	}
	query := mat.DenseCopyOf(X)
	out := make([][]int, r)
	parallel.ParallelizeWithThreshold(r, parallelThreshold, func(start, end int) {
		for i := start; i < end; i++ {
			out[i] = knn.votes(query.RawRowView(i))
		}
	})
	return out, nil
}

// Predict returns the majority class among each row's k neighbors. Tied
// votes resolve to the smaller class label.
func (knn *KNeighborsClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	votes, err := knn.neighborVotes("Predict", X)
	if err != nil {
		return nil, err
	}
	out := mat.NewDense(len(votes), 1, nil)
	for i, counts := range votes {
		best := 0
		for k := 1; k < len(counts); k++ {
			if counts[k] > counts[best] {
				best = k
			}
		}
		out.Set(i, 0, float64(knn.classes_[best]))
	}
	return out, nil
}

// PredictProba returns the fraction of neighbors in each class.
func (knn *KNeighborsClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	votes, err := knn.neighborVotes("PredictProba", X)
	if err != nil {
		return nil, err
	}
	out := mat.NewDense(len(votes), len(knn.classes_), nil)
	for i, counts := range votes {
		for k, c := range counts {
			out.Set(i, k, float64(c)/float64(knn.nNeighbors))
		}
	}
	return out, nil
}

// Score returns the mean accuracy on (X, y).
func (knn *KNeighborsClassifier) Score(X, y mat.Matrix) float64 {
	return model.ScoreAccuracy(knn, X, y)
}

// Name implements model.Classifier.
func (knn *KNeighborsClassifier) Name() string { return modelName }

// Classes returns the sorted class labels seen during Fit.
func (knn *KNeighborsClassifier) Classes() []int { return append([]int(nil), knn.classes_...) }

// ScoreKind implements model.Classifier.
func (knn *KNeighborsClassifier) ScoreKind() model.ScoreKind { return model.ProbabilityScore }

// GetParams returns the hyperparameters.
func (knn *KNeighborsClassifier) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"n_neighbors": knn.nNeighbors,
		"weights":     "uniform",
		"metric":      "euclidean",
	}
}

// SetParams updates n_neighbors.
func (knn *KNeighborsClassifier) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		if key != "n_neighbors" {
			return errors.NewValidationError(key, "unknown parameter", value)
		}
		k, ok := value.(int)
		if !ok || k < 1 {
			return errors.NewValidationError(key, "must be a positive int", value)
		}
		knn.nNeighbors = k
	}
	return nil
}

type snapshot struct {
	NNeighbors int
	Rows, Cols int
	XTrain     []float64
	YEncoded   []int
	Classes    []int
	State      model.ModelState
}

// MarshalBinary implements encoding.BinaryMarshaler for model persistence.
func (knn *KNeighborsClassifier) MarshalBinary() ([]byte, error) {
	s := snapshot{
		NNeighbors: knn.nNeighbors,
		YEncoded:   knn.yEncoded,
		Classes:    knn.classes_,
		State:      knn.state.GetState(),
	}
	if knn.xTrain != nil {
		s.Rows, s.Cols = knn.xTrain.Dims()
		s.XTrain = mat.DenseCopyOf(knn.xTrain).RawMatrix().Data
	}
	var buf bytes.Buffer
	err := gob.NewEncoder(&buf).Encode(s)
	return buf.Bytes(), err
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (knn *KNeighborsClassifier) UnmarshalBinary(data []byte) error {
	var s snapshot
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return err
	}
	knn.state = model.NewStateManager()
	knn.state.SetState(s.State)
	knn.nNeighbors = s.NNeighbors
	knn.yEncoded = s.YEncoded
	knn.classes_ = s.Classes
	knn.xTrain = nil
	if s.Rows > 0 && s.Cols > 0 {
		knn.xTrain = mat.NewDense(s.Rows, s.Cols, s.XTrain)
	}
	return nil
}
