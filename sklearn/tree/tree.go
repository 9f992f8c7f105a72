// Package tree implements a CART decision tree classifier compatible with
// scikit-learn's DecisionTreeClassifier.
package tree

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/modeltrainer/core/model"
	"github.com/YuminosukeSato/modeltrainer/pkg/errors"
	"github.com/YuminosukeSato/modeltrainer/pkg/log"
)

const modelName = "DecisionTreeClassifier"

const (
	CriterionGini    = "gini"
	CriterionEntropy = "entropy"
)

func init() {
	model.Register(modelName, &DecisionTreeClassifier{})
}

var (
	_ model.Classifier           = (*DecisionTreeClassifier)(nil)
	_ model.ProbabilityEstimator = (*DecisionTreeClassifier)(nil)
	_ model.ParameterSetter      = (*DecisionTreeClassifier)(nil)
)

// Node is one node of a fitted tree, stored in a flat slice. Leaves have
// Left == Right == -1.
type Node struct {
	Feature   int
	Threshold float64
	Left      int
	Right     int
	Impurity  float64
	NSamples  int
	// Value holds the fraction of each class among the node's samples.
	Value []float64
}

func (n *Node) isLeaf() bool { return n.Left < 0 }

// DecisionTreeClassifier は不純度の減少が最大となる軸平行な分割を貪欲に選ぶ決定木分類器
type DecisionTreeClassifier struct {
	state *model.StateManager

	// Hyperparameters
	criterion       string // "gini" or "entropy"
	maxDepth        int    // <= 0 means unlimited
	minSamplesSplit int
	minSamplesLeaf  int

	// Model parameters
	nodes               []Node
	classes_            []int
	nClasses_           int
	featureImportances_ []float64
}

// DecisionTreeOption is a functional option for DecisionTreeClassifier
type DecisionTreeOption func(*DecisionTreeClassifier)

// NewDecisionTreeClassifier creates a tree with scikit-learn defaults:
// gini criterion, unlimited depth, min_samples_split 2, min_samples_leaf 1.
func NewDecisionTreeClassifier(opts ...DecisionTreeOption) *DecisionTreeClassifier {
	dt := &DecisionTreeClassifier{
		state:           model.NewStateManager(),
		criterion:       CriterionGini,
		maxDepth:        0,
		minSamplesSplit: 2,
		minSamplesLeaf:  1,
	}
	for _, opt := range opts {
		opt(dt)
	}
	return dt
}

// WithCriterion sets the impurity measure, "gini" or "entropy".
func WithCriterion(criterion string) DecisionTreeOption {
	return func(dt *DecisionTreeClassifier) { dt.criterion = criterion }
}

// WithMaxDepth limits the tree depth. Zero or negative means unlimited.
func WithMaxDepth(depth int) DecisionTreeOption {
	return func(dt *DecisionTreeClassifier) { dt.maxDepth = depth }
}

// WithMinSamplesSplit sets the minimum number of samples required to split a node.
func WithMinSamplesSplit(n int) DecisionTreeOption {
	return func(dt *DecisionTreeClassifier) { dt.minSamplesSplit = n }
}

// WithMinSamplesLeaf sets the minimum number of samples in each leaf.
func WithMinSamplesLeaf(n int) DecisionTreeOption {
	return func(dt *DecisionTreeClassifier) { dt.minSamplesLeaf = n }
}

func (dt *DecisionTreeClassifier) validateParams() error {
	if dt.criterion != CriterionGini && dt.criterion != CriterionEntropy {
		return errors.NewValidationError("criterion", "must be gini or entropy", dt.criterion)
	}
	if dt.minSamplesSplit < 2 {
		return errors.NewValidationError("min_samples_split", "must be at least 2", dt.minSamplesSplit)
	}
	if dt.minSamplesLeaf < 1 {
		return errors.NewValidationError("min_samples_leaf", "must be at least 1", dt.minSamplesLeaf)
	}
	return nil
}

// builder carries the training data during Fit.
type builder struct {
	dt      *DecisionTreeClassifier
	X       mat.Matrix
	y       []int
	nFeat   int
	nodes   []Node
	gains   []float64
	nTotal  float64
	scratch []int
}

// Fit builds the tree from X (n×d) and integer labels y (n×1).
func (dt *DecisionTreeClassifier) Fit(X, y mat.Matrix) error {
	if err := dt.validateParams(); err != nil {
		return err
	}
	nSamples, nFeatures, err := model.ValidateXy(modelName+".Fit", X, y)
	if err != nil {
		return err
	}
	if err := errors.CheckMatrix(modelName+".Fit", X, nSamples, nFeatures); err != nil {
		return err
	}
	classes, encoded, err := model.EncodeLabels(y)
	if err != nil {
		return err
	}

	dt.state.Reset()
	dt.classes_ = classes
	dt.nClasses_ = len(classes)

	b := &builder{
		dt:     dt,
		X:      X,
		y:      encoded,
		nFeat:  nFeatures,
		gains:  make([]float64, nFeatures),
		nTotal: float64(nSamples),
	}
	idx := make([]int, nSamples)
	for i := range idx {
		idx[i] = i
	}
	b.scratch = make([]int, nSamples)
	b.build(idx, 0)

	dt.nodes = b.nodes
	dt.featureImportances_ = normalize(b.gains)
	dt.state.SetDimensions(nFeatures, nSamples)
	dt.state.SetFitted()

	log.GetLoggerWithName("tree").Debug("tree grown",
		log.ModelNameKey, modelName,
		log.OperationKey, log.OperationFit,
		log.SamplesKey, nSamples,
		log.FeaturesKey, nFeatures,
		"depth", dt.GetDepth(),
		"leaves", dt.GetNLeaves(),
	)
	return nil
}

// build appends the subtree for idx and returns its node index.
func (b *builder) build(idx []int, depth int) int {
	counts := b.classCounts(idx)
	impurity := b.dt.impurity(counts, len(idx))

	self := len(b.nodes)
	b.nodes = append(b.nodes, Node{
		Feature:  -1,
		Left:     -1,
		Right:    -1,
		Impurity: impurity,
		NSamples: len(idx),
		Value:    fractions(counts, len(idx)),
	})

	if impurity <= 0 ||
		len(idx) < b.dt.minSamplesSplit ||
		len(idx) < 2*b.dt.minSamplesLeaf ||
		(b.dt.maxDepth > 0 && depth >= b.dt.maxDepth) {
		return self
	}

	feature, threshold, ok := b.bestSplit(idx, impurity)
	if !ok {
		return self
	}

	var left, right []int
	for _, i := range idx {
		if b.X.At(i, feature) <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	leftImp := b.dt.impurity(b.classCounts(left), len(left))
	rightImp := b.dt.impurity(b.classCounts(right), len(right))
	b.gains[feature] += (float64(len(idx))*impurity -
		float64(len(left))*leftImp - float64(len(right))*rightImp) / b.nTotal

	l := b.build(left, depth+1)
	r := b.build(right, depth+1)
	b.nodes[self].Feature = feature
	b.nodes[self].Threshold = threshold
	b.nodes[self].Left = l
	b.nodes[self].Right = r
	return self
}

// bestSplit scans every feature for the threshold with the lowest weighted
// child impurity. Ties keep the first feature and the lowest threshold.
func (b *builder) bestSplit(idx []int, parentImpurity float64) (feature int, threshold float64, ok bool) {
	n := len(idx)
	minLeaf := b.dt.minSamplesLeaf
	best := math.Inf(1)
	sorted := b.scratch[:n]

	for f := 0; f < b.nFeat; f++ {
		copy(sorted, idx)
		sort.SliceStable(sorted, func(a, c int) bool { return b.X.At(sorted[a], f) < b.X.At(sorted[c], f) })

		left := make([]int, b.dt.nClasses_)
		right := b.classCounts(sorted)
		for i := 0; i < n-1; i++ {
			k := b.y[sorted[i]]
			left[k]++
			right[k]--

			nLeft := i + 1
			nRight := n - nLeft
			if nLeft < minLeaf || nRight < minLeaf {
				continue
			}
			v, next := b.X.At(sorted[i], f), b.X.At(sorted[i+1], f)
			if next <= v {
				continue
			}
			score := (float64(nLeft)*b.dt.impurity(left, nLeft) + float64(nRight)*b.dt.impurity(right, nRight)) / float64(n)
			if score < best-1e-12 {
				best = score
				feature = f
				threshold = v + (next-v)/2
				ok = true
			}
		}
	}
	if ok && best > parentImpurity+1e-12 {
		return 0, 0, false
	}
	return feature, threshold, ok
}

func (b *builder) classCounts(idx []int) []int {
	counts := make([]int, b.dt.nClasses_)
	for _, i := range idx {
		counts[b.y[i]]++
	}
	return counts
}

func (dt *DecisionTreeClassifier) impurity(counts []int, n int) float64 {
	if n == 0 {
		return 0
	}
	var imp float64
	switch dt.criterion {
	case CriterionEntropy:
		for _, c := range counts {
			if c == 0 {
				continue
			}
			p := float64(c) / float64(n)
			imp -= p * math.Log2(p)
		}
	default:
		imp = 1
		for _, c := range counts {
			p := float64(c) / float64(n)
			imp -= p * p
		}
	}
	return imp
}

func fractions(counts []int, n int) []float64 {
	out := make([]float64, len(counts))
	for k, c := range counts {
		out[k] = float64(c) / float64(n)
	}
	return out
}

func normalize(v []float64) []float64 {
	out := make([]float64, len(v))
	var sum float64
	for _, x := range v {
		sum += x
	}
	if sum <= 0 {
		return out
	}
	for i, x := range v {
		out[i] = x / sum
	}
	return out
}

func (dt *DecisionTreeClassifier) leaf(X mat.Matrix, i int) *Node {
	n := &dt.nodes[0]
	for !n.isLeaf() {
		if X.At(i, n.Feature) <= n.Threshold {
			n = &dt.nodes[n.Left]
		} else {
			n = &dt.nodes[n.Right]
		}
	}
	return n
}

func (dt *DecisionTreeClassifier) checkPredict(method string, X mat.Matrix) (int, error) {
	if err := dt.state.RequireFitted(modelName, method); err != nil {
		return 0, err
	}
	r, c := X.Dims()
	if err := dt.state.RequireFeatures(modelName+"."+method, c); err != nil {
		return 0, err
	}
	if r == 0 {
		return 0, errors.Wrapf(errors.ErrEmptyData, "%s.%s", modelName, method)
	}
	return r, nil
}

// Predict returns the majority class of the leaf reached by each row. Equal
// class fractions resolve to the smaller class label.
func (dt *DecisionTreeClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	r, err := dt.checkPredict("Predict", X)
	if err != nil {
		return nil, err
	}
	out := mat.NewDense(r, 1, nil)
	for i := 0; i < r; i++ {
		value := dt.leaf(X, i).Value
		best := 0
		for k := 1; k < len(value); k++ {
			if value[k] > value[best] {
				best = k
			}
		}
		out.Set(i, 0, float64(dt.classes_[best]))
	}
	return out, nil
}

// PredictProba returns the class fractions of the reached leaf, one column per class.
func (dt *DecisionTreeClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	r, err := dt.checkPredict("PredictProba", X)
	if err != nil {
		return nil, err
	}
	out := mat.NewDense(r, dt.nClasses_, nil)
	for i := 0; i < r; i++ {
		out.SetRow(i, dt.leaf(X, i).Value)
	}
	return out, nil
}

// Score returns the mean accuracy on (X, y).
func (dt *DecisionTreeClassifier) Score(X, y mat.Matrix) float64 {
	return model.ScoreAccuracy(dt, X, y)
}

// Name implements model.Classifier.
func (dt *DecisionTreeClassifier) Name() string { return modelName }

// Classes returns the sorted class labels seen during Fit.
func (dt *DecisionTreeClassifier) Classes() []int { return append([]int(nil), dt.classes_...) }

// ScoreKind implements model.Classifier.
func (dt *DecisionTreeClassifier) ScoreKind() model.ScoreKind { return model.ProbabilityScore }

// GetFeatureImportances returns the normalized total impurity decrease per feature.
func (dt *DecisionTreeClassifier) GetFeatureImportances() []float64 {
	return append([]float64(nil), dt.featureImportances_...)
}

// GetDepth returns the length of the longest root-to-leaf path.
func (dt *DecisionTreeClassifier) GetDepth() int {
	if len(dt.nodes) == 0 {
		return 0
	}
	var depth func(i int) int
	depth = func(i int) int {
		n := dt.nodes[i]
		if n.isLeaf() {
			return 0
		}
		l, r := depth(n.Left), depth(n.Right)
		if l > r {
			return l + 1
		}
		return r + 1
	}
	return depth(0)
}

// GetNLeaves returns the number of leaves.
func (dt *DecisionTreeClassifier) GetNLeaves() int {
	leaves := 0
	for i := range dt.nodes {
		if dt.nodes[i].isLeaf() {
			leaves++
		}
	}
	return leaves
}

// GetParams returns the hyperparameters.
func (dt *DecisionTreeClassifier) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"criterion":         dt.criterion,
		"max_depth":         dt.maxDepth,
		"min_samples_split": dt.minSamplesSplit,
		"min_samples_leaf":  dt.minSamplesLeaf,
	}
}

// SetParams updates hyperparameters by name.
func (dt *DecisionTreeClassifier) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		switch key {
		case "criterion":
			v, ok := value.(string)
			if !ok {
				return errors.NewValidationError(key, "must be a string", value)
			}
			dt.criterion = v
		case "max_depth", "min_samples_split", "min_samples_leaf":
			v, ok := value.(int)
			if !ok {
				return errors.NewValidationError(key, "must be an int", value)
			}
			switch key {
			case "max_depth":
				dt.maxDepth = v
			case "min_samples_split":
				dt.minSamplesSplit = v
			default:
				dt.minSamplesLeaf = v
			}
		default:
			return errors.NewValidationError(key, "unknown parameter", value)
		}
	}
	return dt.validateParams()
}

func (dt *DecisionTreeClassifier) String() string {
	return fmt.Sprintf("DecisionTreeClassifier(criterion=%s, max_depth=%d, min_samples_split=%d, min_samples_leaf=%d)",
		dt.criterion, dt.maxDepth, dt.minSamplesSplit, dt.minSamplesLeaf)
}

type snapshot struct {
	Criterion       string
	MaxDepth        int
	MinSamplesSplit int
	MinSamplesLeaf  int
	Nodes           []Node
	Classes         []int
	Importances     []float64
	State           model.ModelState
}

// MarshalBinary implements encoding.BinaryMarshaler for model persistence.
func (dt *DecisionTreeClassifier) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	err := gob.NewEncoder(&buf).Encode(snapshot{
		Criterion:       dt.criterion,
		MaxDepth:        dt.maxDepth,
		MinSamplesSplit: dt.minSamplesSplit,
		MinSamplesLeaf:  dt.minSamplesLeaf,
		Nodes:           dt.nodes,
		Classes:         dt.classes_,
		Importances:     dt.featureImportances_,
		State:           dt.state.GetState(),
	})
	return buf.Bytes(), err
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (dt *DecisionTreeClassifier) UnmarshalBinary(data []byte) error {
	var s snapshot
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return err
	}
	dt.state = model.NewStateManager()
	dt.state.SetState(s.State)
	dt.criterion = s.Criterion
	dt.maxDepth = s.MaxDepth
	dt.minSamplesSplit = s.MinSamplesSplit
	dt.minSamplesLeaf = s.MinSamplesLeaf
	dt.nodes = s.Nodes
	dt.classes_ = s.Classes
	dt.nClasses_ = len(s.Classes)
	dt.featureImportances_ = s.Importances
	return nil
}
