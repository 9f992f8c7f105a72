package model

import "gonum.org/v1/gonum/mat"

// Fitter は学習可能なモデルのインターフェース
type Fitter interface {
	// Fit はモデルを訓練データで学習させる。y は n×1 のクラスラベル列
	Fit(X, y mat.Matrix) error
}

// Predictor は予測可能なモデルのインターフェース
type Predictor interface {
	// Predict は n×1 のクラスラベル列を返す
	Predict(X mat.Matrix) (mat.Matrix, error)
}

// ProbabilityEstimator is implemented by models that report per-class
// probabilities, one column per entry of Classes().
type ProbabilityEstimator interface {
	PredictProba(X mat.Matrix) (mat.Matrix, error)
}

// DecisionFunctionEstimator is implemented by margin-based models. For a
// binary problem the result is n×1 and positive values favour Classes()[1].
type DecisionFunctionEstimator interface {
	DecisionFunction(X mat.Matrix) (mat.Matrix, error)
}
