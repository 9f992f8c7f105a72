// Package trainer runs the end-to-end binary classification workflow: load a
// table, split and scale it, choose the neighbor count, fit one of the
// supported classifiers, then evaluate, plot and persist the result.
package trainer

import (
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/modeltrainer/core/model"
	"github.com/YuminosukeSato/modeltrainer/dataset"
	"github.com/YuminosukeSato/modeltrainer/metrics"
	"github.com/YuminosukeSato/modeltrainer/pkg/errors"
	"github.com/YuminosukeSato/modeltrainer/pkg/log"
	"github.com/YuminosukeSato/modeltrainer/preprocessing"
	"github.com/YuminosukeSato/modeltrainer/sklearn/neighbors"
	"github.com/YuminosukeSato/modeltrainer/sklearn/svm"
	"github.com/YuminosukeSato/modeltrainer/sklearn/tree"
	"github.com/YuminosukeSato/modeltrainer/visualize"
)

// Fixed workflow parameters.
const (
	TestSize    = 0.3
	RandomState = int64(10)

	MinNeighbors = 1
	MaxNeighbors = 20

	// ModelExt is appended to model names to form file names.
	ModelExt = ".gob"
)

// State is a prepared dataset: split once, scaled with bounds learned from
// the training rows only. Its fields are set by FromDataset and never
// reassigned. The accessors hand out shared values that callers must treat
// as read-only.
type State struct {
	data  *dataset.Dataset
	split *dataset.Split

	scaler *preprocessing.MinMaxScaler
	// scaled feature matrices
	xTrain, xTest mat.Matrix
	yTrain, yTest *mat.VecDense

	out      io.Writer
	modelDir string
	logger   log.Logger
}

// Option configures a State.
type Option func(*State)

// WithOutput sets where reports and save messages are printed. Defaults to
// os.Stdout.
func WithOutput(w io.Writer) Option {
	return func(s *State) { s.out = w }
}

// WithModelDir sets the directory that SaveModel and LoadModel resolve model
// names against. Defaults to the working directory.
func WithModelDir(dir string) Option {
	return func(s *State) { s.modelDir = dir }
}

// Prepare loads path and builds a State from it.
func Prepare(path string, opts ...Option) (*State, error) {
	ds, err := dataset.Load(path)
	if err != nil {
		return nil, err
	}
	return FromDataset(ds, opts...)
}

// FromDataset splits ds with TestSize and RandomState and min-max scales both
// subsets using the training bounds.
func FromDataset(ds *dataset.Dataset, opts ...Option) (*State, error) {
	if ds == nil || ds.X == nil || ds.Y == nil {
		return nil, errors.WithStack(errors.ErrEmptyData)
	}
	s := &State{
		data:   ds,
		out:    os.Stdout,
		logger: log.GetLoggerWithName("trainer"),
	}
	for _, opt := range opts {
		opt(s)
	}

	split, err := dataset.TrainTestSplit(ds.X, ds.Y, TestSize, RandomState)
	if err != nil {
		return nil, err
	}
	s.split = split
	s.yTrain, s.yTest = split.YTrain, split.YTest

	s.scaler = preprocessing.NewMinMaxScalerDefault()
	if s.xTrain, err = s.scaler.FitTransform(split.XTrain); err != nil {
		return nil, err
	}
	if s.xTest, err = s.scaler.Transform(split.XTest); err != nil {
		return nil, err
	}

	s.logger.Info("dataset prepared",
		log.OperationKey, log.OperationSplit,
		log.PhaseKey, log.PhasePreprocessing,
		"train_samples", split.YTrain.Len(),
		"test_samples", split.YTest.Len(),
		log.FeaturesKey, ds.NFeatures(),
		log.TestSizeKey, TestSize,
		log.RandomSeedKey, RandomState,
	)
	return s, nil
}

// Output returns the writer reports are printed to.
func (s *State) Output() io.Writer { return s.out }

// Data returns the loaded dataset.
func (s *State) Data() *dataset.Dataset { return s.data }

// Split returns the row partition, including the source row indices.
func (s *State) Split() *dataset.Split { return s.split }

// Scaler returns the scaler fitted on the training rows.
func (s *State) Scaler() *preprocessing.MinMaxScaler { return s.scaler }

// Train returns the scaled training features and their encoded labels.
func (s *State) Train() (mat.Matrix, *mat.VecDense) { return s.xTrain, s.yTrain }

// Test returns the scaled test features and their encoded labels.
func (s *State) Test() (mat.Matrix, *mat.VecDense) { return s.xTest, s.yTest }

// SearchResult holds the outcome of FindBestK.
type SearchResult struct {
	BestK int
	// Scores[k-MinNeighbors] is the test accuracy with k neighbors, rounded
	// to 4 decimals.
	Scores []float64
}

// Score returns the recorded accuracy for k.
func (r *SearchResult) Score(k int) (float64, bool) {
	i := k - MinNeighbors
	if i < 0 || i >= len(r.Scores) {
		return 0, false
	}
	return r.Scores[i], true
}

// SearchOption configures FindBestK.
type SearchOption func(*searchConfig)

type searchConfig struct {
	progress func(k int, score float64)
}

// WithProgress registers a callback invoked after each candidate k is scored.
func WithProgress(fn func(k int, score float64)) SearchOption {
	return func(c *searchConfig) { c.progress = fn }
}

// FindBestK fits a KNN classifier for every k in [MinNeighbors,
// MaxNeighbors] and returns the k with the highest test accuracy. The
// smallest k wins ties.
func (s *State) FindBestK(opts ...SearchOption) (*SearchResult, error) {
	cfg := &searchConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	if nTrain := s.yTrain.Len(); nTrain < MaxNeighbors {
		return nil, errors.NewFitError("KNeighborsClassifier",
			fmt.Sprintf("neighbor search needs at least %d training rows, have %d", MaxNeighbors, nTrain), nil)
	}

	start := time.Now()
	res := &SearchResult{BestK: MinNeighbors, Scores: make([]float64, 0, MaxNeighbors-MinNeighbors+1)}
	best := math.Inf(-1)
	for k := MinNeighbors; k <= MaxNeighbors; k++ {
		knn := neighbors.NewKNeighborsClassifier(neighbors.WithNNeighbors(k))
		if err := errors.SafeFit(knn.Name(), func() error { return knn.Fit(s.xTrain, s.yTrain) }); err != nil {
			return nil, err
		}
		score := roundScore(knn.Score(s.xTest, s.yTest))
		res.Scores = append(res.Scores, score)
		if score > best {
			best = score
			res.BestK = k
		}
		if cfg.progress != nil {
			cfg.progress(k, score)
		}
	}

	s.logger.Info("neighbor search finished",
		log.OperationKey, log.OperationSearch,
		log.NeighborsKey, res.BestK,
		log.AccuracyKey, best,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return res, nil
}

// roundScore rounds to 4 decimal places on the shortest decimal
// representation of v, so 0.12345 becomes 0.1235.
func roundScore(v float64) float64 {
	return decimal.NewFromFloat(v).Round(4).InexactFloat64()
}

// TrainKNN searches for the best neighbor count and fits a KNN classifier
// with it on the scaled training rows.
func (s *State) TrainKNN(opts ...SearchOption) (*neighbors.KNeighborsClassifier, error) {
	res, err := s.FindBestK(opts...)
	if err != nil {
		return nil, err
	}
	knn := neighbors.NewKNeighborsClassifier(neighbors.WithNNeighbors(res.BestK))
	if err := s.fit(knn); err != nil {
		return nil, err
	}
	return knn, nil
}

// TrainSVM fits a linear SVC with C = 1 and probability estimates enabled.
func (s *State) TrainSVM() (*svm.SVC, error) {
	svc := svm.NewSVC(
		svm.WithC(1.0),
		svm.WithProbability(true),
		svm.WithRandomState(RandomState),
	)
	if err := s.fit(svc); err != nil {
		return nil, err
	}
	return svc, nil
}

// TrainDecisionTree fits an unpruned decision tree using entropy.
func (s *State) TrainDecisionTree() (*tree.DecisionTreeClassifier, error) {
	dt := tree.NewDecisionTreeClassifier(tree.WithCriterion(tree.CriterionEntropy))
	if err := s.fit(dt); err != nil {
		return nil, err
	}
	return dt, nil
}

func (s *State) fit(clf model.Classifier) error {
	start := time.Now()
	if err := errors.SafeFit(clf.Name(), func() error { return clf.Fit(s.xTrain, s.yTrain) }); err != nil {
		return err
	}
	s.logger.Info("model trained",
		log.ModelNameKey, clf.Name(),
		log.OperationKey, log.OperationFit,
		log.PhaseKey, log.PhaseTraining,
		log.SamplesKey, s.yTrain.Len(),
		log.HyperParamsKey, clf.GetParams(),
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return nil
}

// predictTest returns hard predictions and positive-class scores on the
// scaled test rows.
func (s *State) predictTest(clf model.Classifier) (yPred, yScore *mat.VecDense, err error) {
	pred, err := clf.Predict(s.xTest)
	if err != nil {
		return nil, nil, err
	}
	n, _ := pred.Dims()
	yPred = mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		yPred.SetVec(i, pred.At(i, 0))
	}
	if yScore, err = model.PositiveScores(clf, s.xTest); err != nil {
		return nil, nil, err
	}
	return yPred, yScore, nil
}

// Evaluate scores clf on the test rows and prints the seven-metric report.
func (s *State) Evaluate(clf model.Classifier) (*metrics.BinaryReport, error) {
	yPred, yScore, err := s.predictTest(clf)
	if err != nil {
		return nil, err
	}
	rep, err := metrics.EvaluateBinary(s.yTest, yPred, yScore)
	if err != nil {
		return nil, err
	}
	if _, err := rep.WriteTo(s.out); err != nil {
		return nil, errors.Wrap(err, "trainer: write report")
	}

	fields := []any{
		log.ModelNameKey, clf.Name(),
		log.OperationKey, log.OperationEvaluate,
		log.PhaseKey, log.PhaseTesting,
		log.SamplesKey, s.yTest.Len(),
		log.AccuracyKey, rep.Accuracy,
	}
	// log loss needs probabilities, decision values have no such scale
	if clf.ScoreKind() == model.ProbabilityScore {
		loss, err := metrics.BinaryLogLoss(s.yTest, yScore)
		if err != nil {
			return nil, err
		}
		fields = append(fields, log.LogLossKey, loss)
	}
	s.logger.Info("model evaluated", fields...)
	return rep, nil
}

// ClassLabels maps the classifier's learned class codes to the dataset's
// label values.
func (s *State) ClassLabels(clf model.Classifier) []string {
	classes := clf.Classes()
	names := make([]string, len(classes))
	for i, c := range classes {
		if c >= 0 && c < len(s.data.ClassNames) {
			names[i] = s.data.ClassNames[c]
		} else {
			names[i] = fmt.Sprint(c)
		}
	}
	return names
}

// PlotConfusionMatrix renders the test-set confusion matrix of clf to path.
func (s *State) PlotConfusionMatrix(clf model.Classifier, path string, opts ...visualize.Option) error {
	yPred, _, err := s.predictTest(clf)
	if err != nil {
		return err
	}
	cm, err := metrics.ConfusionMatrix(s.yTest, yPred, clf.Classes())
	if err != nil {
		return err
	}
	return visualize.ConfusionMatrix(cm, s.ClassLabels(clf), path, opts...)
}

// PlotROCCurve renders the test-set ROC curve of clf to path.
func (s *State) PlotROCCurve(clf model.Classifier, path string, opts ...visualize.Option) error {
	_, yScore, err := s.predictTest(clf)
	if err != nil {
		return err
	}
	fpr, tpr, _, err := metrics.ROCCurve(s.yTest, yScore)
	if err != nil {
		return err
	}
	auc, err := metrics.AreaUnderCurve(fpr, tpr)
	if err != nil {
		return err
	}
	return visualize.ROCCurve(fpr, tpr, auc, path, opts...)
}

// ModelPath returns the file a model named name is stored in.
func (s *State) ModelPath(name string) string {
	return filepath.Join(s.modelDir, name+ModelExt)
}

// SaveModel writes clf under the state's model directory and prints a
// confirmation.
func (s *State) SaveModel(clf model.Classifier, name string) error {
	if err := SaveModel(clf, filepath.Join(s.modelDir, name)); err != nil {
		return err
	}
	_, err := fmt.Fprintf(s.out, "%s model saved successfully.\n", name)
	return err
}

// LoadModel reads the model named name from the state's model directory.
func (s *State) LoadModel(name string) (model.Classifier, error) {
	return LoadModel(filepath.Join(s.modelDir, name))
}

// SaveModel writes clf to name + ModelExt, replacing any existing file.
func SaveModel(clf model.Classifier, name string) error {
	path := name + ModelExt
	if err := model.SaveModel(clf, path); err != nil {
		return err
	}
	log.GetLoggerWithName("trainer").Info("model saved",
		log.ModelNameKey, clf.Name(),
		log.OperationKey, log.OperationSave,
		log.PathKey, path,
	)
	return nil
}

// LoadModel reads the classifier stored in name + ModelExt.
func LoadModel(name string) (model.Classifier, error) {
	return model.LoadModel(name + ModelExt)
}
