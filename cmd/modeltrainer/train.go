package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/modeltrainer/core/model"
	"github.com/YuminosukeSato/modeltrainer/trainer"
	"github.com/YuminosukeSato/modeltrainer/visualize"
)

func (a *app) trainCmd() *cobra.Command {
	var (
		name  string
		plots bool
	)
	cmd := &cobra.Command{
		Use:       "train [knn|svm|tree]",
		Short:     "Train a model, print its test metrics and save it",
		ValidArgs: []string{"knn", "svm", "tree"},
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind := args[0]
			if name == "" {
				name = kind
			}

			st, err := a.prepare(cmd)
			if err != nil {
				return err
			}
			clf, err := trainKind(cmd, st, kind)
			if err != nil {
				return err
			}
			if _, err := st.Evaluate(clf); err != nil {
				return err
			}
			if err := st.SaveModel(clf, name); err != nil {
				return err
			}
			if plots {
				return a.renderPlots(cmd, st, clf, name)
			}
			return nil
		},
	}
	addDataFlag(cmd)
	cmd.Flags().StringVar(&name, "name", "", "model name, saved as <name>.gob (default: the model kind)")
	cmd.Flags().BoolVar(&plots, "plots", false, "also render the confusion matrix and ROC curve")
	return cmd
}

func trainKind(cmd *cobra.Command, st *trainer.State, kind string) (model.Classifier, error) {
	switch kind {
	case "knn":
		bar := newSearchBar(cmd)
		knn, err := st.TrainKNN(trainer.WithProgress(func(int, float64) { _ = bar.Add(1) }))
		_ = bar.Finish()
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return nil, err
		}
		return knn, nil
	case "svm":
		return st.TrainSVM()
	case "tree":
		return st.TrainDecisionTree()
	}
	return nil, fmt.Errorf("unknown model kind %q", kind)
}

func (a *app) renderPlots(cmd *cobra.Command, st *trainer.State, clf model.Classifier, name string) error {
	size := visualize.WithSize(a.cfg.Output.PlotWidth, a.cfg.Output.PlotHeight)

	cmPath := a.cfg.PlotPath(name, "confusion")
	if err := ensureDir(cmPath); err != nil {
		return err
	}
	if err := st.PlotConfusionMatrix(clf, cmPath, size); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "saved %s\n", cmPath)

	rocPath := a.cfg.PlotPath(name, "roc")
	if err := st.PlotROCCurve(clf, rocPath, size); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "saved %s\n", rocPath)
	return nil
}
