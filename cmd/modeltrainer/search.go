package main

import (
	"fmt"
	"strconv"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/modeltrainer/trainer"
)

func (a *app) searchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search-k",
		Short: "Score KNN for every neighbor count and report the best one",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := a.prepare(cmd)
			if err != nil {
				return err
			}

			bar := newSearchBar(cmd)
			res, err := st.FindBestK(trainer.WithProgress(func(int, float64) { _ = bar.Add(1) }))
			_ = bar.Finish()
			fmt.Fprintln(cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			best := color.New(color.FgGreen, color.Bold).Sprint("best")
			table := tablewriter.NewWriter(cmd.OutOrStdout())
			table.Header("n_neighbors", "accuracy", "")
			rows := lo.Map(res.Scores, func(score float64, i int) []string {
				k := i + trainer.MinNeighbors
				return []string{strconv.Itoa(k), strconv.FormatFloat(score, 'f', 4, 64), lo.Ternary(k == res.BestK, best, "")}
			})
			for _, row := range rows {
				if err := table.Append(row); err != nil {
					return err
				}
			}
			if err := table.Render(); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "best n_neighbors: %d\n", res.BestK)
			return err
		},
	}
	addDataFlag(cmd)
	return cmd
}
