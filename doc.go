// Package modeltrainer trains and evaluates binary classifiers on tabular
// data with a scikit-learn-like API built on gonum.
//
// The workflow loads a CSV or Excel table, drops its leading identifier
// column, splits the rows 70/30 with a fixed seed and min-max scales the
// features using bounds learned from the training rows only. Three models are
// available: k-nearest neighbors (with the neighbor count chosen over 1..20),
// a linear support vector classifier with Platt-scaled probabilities, and an
// entropy decision tree.
//
// # Quick Start
//
//	package main
//
//	import (
//	    "log"
//
//	    "github.com/YuminosukeSato/modeltrainer/trainer"
//	)
//
//	func main() {
//	    st, err := trainer.Prepare("cells.xlsx")
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//
//	    clf, err := st.TrainKNN()
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//
//	    // Accuracy, precision, recall, specificity, F1, AUC and kappa
//	    if _, err := st.Evaluate(clf); err != nil {
//	        log.Fatal(err)
//	    }
//	    if err := st.SaveModel(clf, "knn"); err != nil {
//	        log.Fatal(err)
//	    }
//	}
//
// # Packages
//
//   - trainer: the end-to-end workflow (prepare, search, train, evaluate, plot, save)
//   - dataset: CSV/Excel loading, label encoding and the seeded train/test split
//   - preprocessing: MinMaxScaler
//   - sklearn/neighbors, sklearn/svm, sklearn/tree: the classifiers
//   - metrics: confusion matrix, binary metrics, ROC and AUC
//   - visualize: confusion matrix heatmap and ROC curve rendering
//   - config: file, environment and flag configuration
//   - core/model: estimator interfaces, fitted state and gob persistence
//   - core/parallel: chunked parallel loops
//   - pkg/errors, pkg/log: error types and structured logging
//
// The modeltrainer command in cmd/modeltrainer exposes the workflow on the
// command line.
package modeltrainer
