// Package svm implements a linear support vector classifier.
//
// SVC solves the L1-loss (hinge) dual problem with coordinate descent, with
// the bias learned through a constant augmented feature. With probability
// enabled, a Platt sigmoid is fitted to the training decision values so that
// PredictProba is available.
package svm

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/modeltrainer/core/model"
	"github.com/YuminosukeSato/modeltrainer/pkg/errors"
	"github.com/YuminosukeSato/modeltrainer/pkg/log"
)

const modelName = "SVC"

func init() {
	model.Register(modelName, &SVC{})
}

var (
	_ model.Classifier                = (*SVC)(nil)
	_ model.DecisionFunctionEstimator = (*SVC)(nil)
	_ model.ProbabilityEstimator      = (*SVC)(nil)
	_ model.ParameterSetter           = (*SVC)(nil)
)

// SVC is a binary linear support vector classifier.
type SVC struct {
	state *model.StateManager

	// Hyperparameters
	c           float64
	tol         float64
	maxIter     int
	probability bool
	randomState int64

	// Model parameters
	coef_      []float64
	intercept_ float64
	classes_   []int
	nIter_     int
	// Platt sigmoid P(positive) = 1 / (1 + exp(A*f + B))
	probA, probB float64
}

// SVCOption is a functional option for SVC
type SVCOption func(*SVC)

// NewSVC creates a linear SVC with C = 1, tol = 1e-3, at most 1000 passes
// over the data and probability estimates disabled.
func NewSVC(opts ...SVCOption) *SVC {
	s := &SVC{
		state:       model.NewStateManager(),
		c:           1.0,
		tol:         1e-3,
		maxIter:     1000,
		randomState: 0,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// WithC sets the penalty on margin violations.
func WithC(c float64) SVCOption {
	return func(s *SVC) { s.c = c }
}

// WithTol sets the stopping tolerance on the projected gradient.
func WithTol(tol float64) SVCOption {
	return func(s *SVC) { s.tol = tol }
}

// WithMaxIter limits the number of passes over the training data.
func WithMaxIter(n int) SVCOption {
	return func(s *SVC) { s.maxIter = n }
}

// WithProbability enables Platt-scaled PredictProba.
func WithProbability(enabled bool) SVCOption {
	return func(s *SVC) { s.probability = enabled }
}

// WithRandomState seeds the coordinate order.
func WithRandomState(seed int64) SVCOption {
	return func(s *SVC) { s.randomState = seed }
}

// Fit trains on X (n×d) and labels y (n×1) holding exactly two classes.
func (s *SVC) Fit(X, y mat.Matrix) error {
	if s.c <= 0 {
		return errors.NewValidationError("C", "must be positive", s.c)
	}
	if s.maxIter < 1 {
		return errors.NewValidationError("max_iter", "must be at least 1", s.maxIter)
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
	if len(classes) != 2 {
		return errors.NewFitError(modelName,
			fmt.Sprintf("training labels must contain exactly 2 classes, got %d", len(classes)), nil)
	}

	s.state.Reset()
	s.classes_ = classes

	// augmented rows [x, 1] and signed labels
	xa := make([][]float64, nSamples)
	signs := make([]float64, nSamples)
	for i := 0; i < nSamples; i++ {
		row := make([]float64, nFeatures+1)
		for j := 0; j < nFeatures; j++ {
			row[j] = X.At(i, j)
		}
		row[nFeatures] = 1
		xa[i] = row
		signs[i] = -1
		if encoded[i] == 1 {
			signs[i] = 1
		}
	}

	w, iters := s.solveDual(xa, signs)
	s.coef_ = w[:nFeatures]
	s.intercept_ = w[nFeatures]
	s.nIter_ = iters
	if iters >= s.maxIter {
		errors.Warn(errors.NewConvergenceWarning(modelName+" dual coordinate descent", iters))
	}

	s.state.SetDimensions(nFeatures, nSamples)
	s.state.SetFitted()

	if s.probability {
		dec := make([]float64, nSamples)
		for i := range dec {
			dec[i] = floats.Dot(s.coef_, xa[i][:nFeatures]) + s.intercept_
		}
		s.probA, s.probB = plattScaling(dec, signs)
	}

	log.GetLoggerWithName("svm").Debug("svc fitted",
		log.ModelNameKey, modelName,
		log.OperationKey, log.OperationFit,
		log.SamplesKey, nSamples,
		log.FeaturesKey, nFeatures,
		"iterations", iters,
	)
	return nil
}

// solveDual runs dual coordinate descent for
// min_a 1/2 a'Qa - e'a, 0 <= a_i <= C, Q_ij = y_i y_j x_i'x_j
// and returns the primal weights and the number of passes made.
func (s *SVC) solveDual(xa [][]float64, signs []float64) ([]float64, int) {
	n := len(xa)
	w := make([]float64, len(xa[0]))
	alpha := make([]float64, n)
	qd := make([]float64, n)
	for i, row := range xa {
		qd[i] = floats.Dot(row, row)
	}

	rng := rand.New(rand.NewSource(s.randomState))
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}

	iter := 0
	for iter < s.maxIter {
		rng.Shuffle(n, func(a, b int) { order[a], order[b] = order[b], order[a] })

		pgMax, pgMin := math.Inf(-1), math.Inf(1)
		for _, i := range order {
			g := signs[i]*floats.Dot(w, xa[i]) - 1

			var pg float64
			switch {
			case alpha[i] == 0:
				pg = math.Min(g, 0)
			case alpha[i] == s.c:
				pg = math.Max(g, 0)
			default:
				pg = g
			}
			pgMax = math.Max(pgMax, pg)
			pgMin = math.Min(pgMin, pg)

			if math.Abs(pg) > 1e-12 {
				old := alpha[i]
				alpha[i] = math.Min(math.Max(alpha[i]-g/qd[i], 0), s.c)
				floats.AddScaled(w, (alpha[i]-old)*signs[i], xa[i])
			}
		}
		iter++
		if pgMax-pgMin <= s.tol {
			break
		}
	}
	return w, iter
}

// plattScaling fits P(y=+1|f) = 1/(1+exp(A*f+B)) by Newton's method with
// backtracking line search on regularized targets.
func plattScaling(dec, signs []float64) (a, b float64) {
	const (
		maxIter = 100
		minStep = 1e-10
		sigma   = 1e-12
		eps     = 1e-5
	)
	var prior1, prior0 float64
	for _, s := range signs {
		if s > 0 {
			prior1++
		} else {
			prior0++
		}
	}
	hi := (prior1 + 1) / (prior1 + 2)
	lo := 1 / (prior0 + 2)
	t := make([]float64, len(signs))
	for i, s := range signs {
		if s > 0 {
			t[i] = hi
		} else {
			t[i] = lo
		}
	}

	objective := func(a, b float64) float64 {
		var f float64
		for i, d := range dec {
			fApB := d*a + b
			if fApB >= 0 {
				f += t[i]*fApB + math.Log1p(math.Exp(-fApB))
			} else {
				f += (t[i]-1)*fApB + math.Log1p(math.Exp(fApB))
			}
		}
		return f
	}

	a, b = 0, math.Log((prior0+1)/(prior1+1))
	fval := objective(a, b)
	for iter := 0; iter < maxIter; iter++ {
		h11, h22, h21 := sigma, sigma, 0.0
		var g1, g2 float64
		for i, d := range dec {
			fApB := d*a + b
			var p, q float64
			if fApB >= 0 {
				e := math.Exp(-fApB)
				p, q = e/(1+e), 1/(1+e)
			} else {
				e := math.Exp(fApB)
				p, q = 1/(1+e), e/(1+e)
			}
			d2 := p * q
			h11 += d * d * d2
			h22 += d2
			h21 += d * d2
			d1 := t[i] - p
			g1 += d * d1
			g2 += d1
		}
		if math.Abs(g1) < eps && math.Abs(g2) < eps {
			break
		}

		det := h11*h22 - h21*h21
		dA := -(h22*g1 - h21*g2) / det
		dB := -(-h21*g1 + h11*g2) / det
		gd := g1*dA + g2*dB

		step := 1.0
		for step >= minStep {
			newA, newB := a+step*dA, b+step*dB
			if newF := objective(newA, newB); newF < fval+0.0001*step*gd {
				a, b, fval = newA, newB, newF
				break
			}
			step /= 2
		}
		if step < minStep {
			log.GetLoggerWithName("svm").Debug("platt line search failed", "iteration", iter)
			break
		}
	}
	return a, b
}

func sigmoidPredict(f, a, b float64) float64 {
	fApB := f*a + b
	if fApB >= 0 {
		e := math.Exp(-fApB)
		return e / (1 + e)
	}
	return 1 / (1 + math.Exp(fApB))
}

func (s *SVC) checkPredict(method string, X mat.Matrix) (int, error) {
	if err := s.state.RequireFitted(modelName, method); err != nil {
		return 0, err
	}
	r, c := X.Dims()
	if err := s.state.RequireFeatures(modelName+"."+method, c); err != nil {
		return 0, err
	}
	if r == 0 {
		return 0, errors.Wrapf(errors.ErrEmptyData, "%s.%s", modelName, method)
	}
	return r, nil
}

// DecisionFunction returns w·x + b for each row (n×1). Positive values favour
// Classes()[1].
func (s *SVC) DecisionFunction(X mat.Matrix) (mat.Matrix, error) {
	r, err := s.checkPredict("DecisionFunction", X)
	if err != nil {
		return nil, err
	}
	out := mat.NewDense(r, 1, nil)
	coef := mat.NewVecDense(len(s.coef_), s.coef_)
	row := mat.NewVecDense(len(s.coef_), nil)
	for i := 0; i < r; i++ {
		for j := range s.coef_ {
			row.SetVec(j, X.At(i, j))
		}
		out.Set(i, 0, mat.Dot(coef, row)+s.intercept_)
	}
	return out, nil
}

// Predict returns Classes()[1] where the decision value is positive and
// Classes()[0] otherwise.
func (s *SVC) Predict(X mat.Matrix) (mat.Matrix, error) {
	dec, err := s.DecisionFunction(X)
	if err != nil {
		return nil, err
	}
	r, _ := dec.Dims()
	out := mat.NewDense(r, 1, nil)
	for i := 0; i < r; i++ {
		k := 0
		if dec.At(i, 0) > 0 {
			k = 1
		}
		out.Set(i, 0, float64(s.classes_[k]))
	}
	return out, nil
}

// PredictProba returns Platt-scaled probabilities, one column per class.
// It requires WithProbability(true) at fit time.
func (s *SVC) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if !s.probability {
		return nil, errors.NewValueError(modelName+".PredictProba", "probability estimates must be enabled before Fit")
	}
	dec, err := s.DecisionFunction(X)
	if err != nil {
		return nil, err
	}
	r, _ := dec.Dims()
	out := mat.NewDense(r, 2, nil)
	for i := 0; i < r; i++ {
		p := sigmoidPredict(dec.At(i, 0), s.probA, s.probB)
		out.Set(i, 0, 1-p)
		out.Set(i, 1, p)
	}
	return out, nil
}

// Score returns the mean accuracy on (X, y).
func (s *SVC) Score(X, y mat.Matrix) float64 {
	return model.ScoreAccuracy(s, X, y)
}

// Name implements model.Classifier.
func (s *SVC) Name() string { return modelName }

// Classes returns the sorted class labels seen during Fit.
func (s *SVC) Classes() []int { return append([]int(nil), s.classes_...) }

// ScoreKind implements model.Classifier. ROC and AUC use the decision values.
func (s *SVC) ScoreKind() model.ScoreKind { return model.DecisionScore }

// Coef returns the learned weights.
func (s *SVC) Coef() []float64 { return append([]float64(nil), s.coef_...) }

// Intercept returns the learned bias.
func (s *SVC) Intercept() float64 { return s.intercept_ }

// NIter returns the number of passes the solver made.
func (s *SVC) NIter() int { return s.nIter_ }

// GetParams returns the hyperparameters.
func (s *SVC) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"kernel":       "linear",
		"C":            s.c,
		"tol":          s.tol,
		"max_iter":     s.maxIter,
		"probability":  s.probability,
		"random_state": s.randomState,
	}
}

// SetParams updates C, tol, max_iter, probability or random_state.
func (s *SVC) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		var ok bool
		switch key {
		case "C":
			s.c, ok = value.(float64)
		case "tol":
			s.tol, ok = value.(float64)
		case "max_iter":
			s.maxIter, ok = value.(int)
		case "probability":
			s.probability, ok = value.(bool)
		case "random_state":
			s.randomState, ok = value.(int64)
		default:
			return errors.NewValidationError(key, "unknown parameter", value)
		}
		if !ok {
			return errors.NewValidationError(key, "unexpected type", value)
		}
	}
	return nil
}

type snapshot struct {
	C            float64
	Tol          float64
	MaxIter      int
	Probability  bool
	RandomState  int64
	Coef         []float64
	Intercept    float64
	Classes      []int
	NIter        int
	ProbA, ProbB float64
	State        model.ModelState
}

// MarshalBinary implements encoding.BinaryMarshaler for model persistence.
func (s *SVC) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	err := gob.NewEncoder(&buf).Encode(snapshot{
		C: s.c, Tol: s.tol, MaxIter: s.maxIter, Probability: s.probability, RandomState: s.randomState,
		Coef: s.coef_, Intercept: s.intercept_, Classes: s.classes_, NIter: s.nIter_,
		ProbA: s.probA, ProbB: s.probB,
		State: s.state.GetState(),
	})
	return buf.Bytes(), err
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (s *SVC) UnmarshalBinary(data []byte) error {
	var snap snapshot
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&snap); err != nil {
		return err
	}
	s.state = model.NewStateManager()
	s.state.SetState(snap.State)
	s.c, s.tol, s.maxIter = snap.C, snap.Tol, snap.MaxIter
	s.probability, s.randomState = snap.Probability, snap.RandomState
	s.coef_, s.intercept_, s.classes_, s.nIter_ = snap.Coef, snap.Intercept, snap.Classes, snap.NIter
	s.probA, s.probB = snap.ProbA, snap.ProbB
	return nil
}
