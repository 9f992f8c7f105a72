package main

import (
	"github.com/spf13/cobra"
)

func (a *app) evaluateCmd() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Print the test metrics of a saved model",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := a.prepare(cmd)
			if err != nil {
				return err
			}
			clf, err := st.LoadModel(name)
			if err != nil {
				return err
			}
			_, err = st.Evaluate(clf)
			return err
		},
	}
	addDataFlag(cmd)
	cmd.Flags().StringVar(&name, "name", "", "name of the saved model")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func (a *app) plotCmd() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "plot",
		Short: "Render the confusion matrix and ROC curve of a saved model",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := a.prepare(cmd)
			if err != nil {
				return err
			}
			clf, err := st.LoadModel(name)
			if err != nil {
				return err
			}
			return a.renderPlots(cmd, st, clf, name)
		},
	}
	addDataFlag(cmd)
	cmd.Flags().StringVar(&name, "name", "", "name of the saved model")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}
