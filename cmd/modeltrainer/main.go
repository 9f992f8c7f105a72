// Command modeltrainer trains, evaluates and plots binary classifiers on a
// CSV or Excel table.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/YuminosukeSato/modeltrainer/config"
	"github.com/YuminosukeSato/modeltrainer/pkg/errors"
	"github.com/YuminosukeSato/modeltrainer/pkg/log"
	"github.com/YuminosukeSato/modeltrainer/trainer"
)

var version = "dev"

// app carries the configuration shared by every subcommand.
type app struct {
	v       *viper.Viper
	cfgFile string
	cfg     *config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{v: config.New()}

	root := &cobra.Command{
		Use:   "modeltrainer",
		Short: "Train and evaluate binary classifiers on tabular data",
		Long: `modeltrainer loads a CSV or Excel table whose first column is a row
identifier and whose last column is a binary label, splits it 70/30,
scales the features and trains a KNN, linear SVM or decision tree model.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.initConfig,
	}

	root.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (default: ./modeltrainer.yaml)")
	root.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	root.PersistentFlags().String("log-format", "console", "log format (console, json)")
	_ = a.v.BindPFlag("logging.level", root.PersistentFlags().Lookup("log-level"))
	_ = a.v.BindPFlag("logging.format", root.PersistentFlags().Lookup("log-format"))

	root.AddCommand(a.trainCmd())
	root.AddCommand(a.evaluateCmd())
	root.AddCommand(a.searchCmd())
	root.AddCommand(a.plotCmd())
	root.AddCommand(versionCmd())
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func (a *app) initConfig(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(a.v, a.cfgFile)
	if err != nil {
		return err
	}
	a.cfg = cfg
	if err := log.SetupLogger(cfg.Logging.Level, cfg.Logging.Format, cmd.ErrOrStderr()); err != nil {
		return errors.Wrap(err, "setup logging")
	}
	return nil
}

// dataPath prefers --data over dataset.path from the config.
func (a *app) dataPath(cmd *cobra.Command) (string, error) {
	path, _ := cmd.Flags().GetString("data")
	if path == "" {
		path = a.cfg.Dataset.Path
	}
	if path == "" {
		return "", errors.NewValidationError("data", "no dataset given; use --data or dataset.path", path)
	}
	return path, nil
}

func (a *app) prepare(cmd *cobra.Command) (*trainer.State, error) {
	path, err := a.dataPath(cmd)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(a.cfg.Output.ModelDir, 0o755); err != nil {
		return nil, errors.Wrap(err, "create model directory")
	}
	return trainer.Prepare(path,
		trainer.WithOutput(cmd.OutOrStdout()),
		trainer.WithModelDir(a.cfg.Output.ModelDir),
	)
}

func addDataFlag(cmd *cobra.Command) {
	cmd.Flags().String("data", "", "input table (.csv, .xlsx or .xlsm)")
}

func newSearchBar(cmd *cobra.Command) *progressbar.ProgressBar {
	return progressbar.NewOptions(trainer.MaxNeighbors-trainer.MinNeighbors+1,
		progressbar.OptionSetWriter(cmd.ErrOrStderr()),
		progressbar.OptionSetDescription("searching n_neighbors"),
		progressbar.OptionShowCount(),
	)
}

func ensureDir(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "create directory for %s", path)
	}
	return nil
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "modeltrainer %s\n", version)
		},
	}
}
