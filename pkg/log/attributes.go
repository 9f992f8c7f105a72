package log

// Model and operation context.
const (
	// ModelNameKey identifies the estimator, e.g. "KNeighborsClassifier".
	ModelNameKey = "model.name"

	// OperationKey is one of the Operation* values below.
	OperationKey = "ml.operation"

	// ComponentKey names the package emitting the record.
	ComponentKey = "ml.component"

	PhaseKey = "ml.phase"
)

// Data shape.
const (
	SamplesKey  = "data.samples"
	FeaturesKey = "data.features"
	PathKey     = "data.path"
	ClassesKey  = "data.classes"
)

// Metrics and search results.
const (
	DurationMsKey  = "perf.duration_ms"
	AccuracyKey    = "metrics.accuracy"
	LogLossKey     = "metrics.log_loss"
	NeighborsKey   = "hyperparams.n_neighbors"
	HyperParamsKey = "model.hyperparams"
	RandomSeedKey  = "config.random_seed"
	TestSizeKey    = "config.test_size"
)

// StacktraceKey holds the cockroachdb stack of a logged error.
const StacktraceKey = "stacktrace"

// BadKey holds a leading field value that had no key and was not an error.
const BadKey = "!BADKEY"

// Standard attribute values.
const (
	OperationLoad      = "load"
	OperationSplit     = "split"
	OperationFit       = "fit"
	OperationPredict   = "predict"
	OperationTransform = "transform"
	OperationSearch    = "search"
	OperationEvaluate  = "evaluate"
	OperationPlot      = "plot"
	OperationSave      = "save"

	PhaseTraining      = "training"
	PhaseTesting       = "testing"
	PhasePreprocessing = "preprocessing"
)
