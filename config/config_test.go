package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/modeltrainer/pkg/errors"
)

func TestDefaults(t *testing.T) {
	cfg, err := Decode(New())
	require.NoError(t, err)

	assert.Equal(t, "", cfg.Dataset.Path)
	assert.Equal(t, ".", cfg.Output.ModelDir)
	assert.Equal(t, "png", cfg.Output.PlotFormat)
	assert.Equal(t, 6.0, cfg.Output.PlotWidth)
	assert.Equal(t, 5.0, cfg.Output.PlotHeight)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "console", cfg.Logging.Format)
}

func TestLoad_File(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{
			name: "yaml",
			file: "modeltrainer.yaml",
			content: `dataset:
  path: data/cells.xlsx
output:
  model_dir: models
  plot_format: svg
  plot_width: 8
logging:
  level: debug
  format: json
`,
		},
		{
			name: "toml",
			file: "modeltrainer.toml",
			content: `[dataset]
path = "data/cells.xlsx"

[output]
model_dir = "models"
plot_format = "svg"
plot_width = 8.0

[logging]
level = "debug"
format = "json"
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), tt.file)
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o600))

			cfg, err := Load(New(), path)
			require.NoError(t, err)
			assert.Equal(t, "data/cells.xlsx", cfg.Dataset.Path)
			assert.Equal(t, "models", cfg.Output.ModelDir)
			assert.Equal(t, "svg", cfg.Output.PlotFormat)
			assert.Equal(t, 8.0, cfg.Output.PlotWidth)
			assert.Equal(t, 5.0, cfg.Output.PlotHeight)
			assert.Equal(t, "debug", cfg.Logging.Level)
			assert.Equal(t, "json", cfg.Logging.Format)
		})
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("MODELTRAINER_OUTPUT_PLOT_FORMAT", "pdf")
	t.Setenv("MODELTRAINER_DATASET_PATH", "env.csv")

	cfg, err := Decode(New())
	require.NoError(t, err)
	assert.Equal(t, "pdf", cfg.Output.PlotFormat)
	assert.Equal(t, "env.csv", cfg.Dataset.Path)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(New(), filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		key    string
	}{
		{"plot format", func(c *Config) { c.Output.PlotFormat = "gif" }, "output.plot_format"},
		{"plot width", func(c *Config) { c.Output.PlotWidth = 0 }, "output.plot_width"},
		{"log level", func(c *Config) { c.Logging.Level = "trace" }, "logging.level"},
		{"log format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Decode(New())
			require.NoError(t, err)
			tt.mutate(cfg)

			err = cfg.Validate()
			var ve *errors.ValidationError
			require.True(t, errors.As(err, &ve), "got %v", err)
			assert.Equal(t, tt.key, ve.ParamName)
		})
	}
}

func TestPaths(t *testing.T) {
	cfg := &Config{Output: OutputConfig{ModelDir: "models", PlotDir: "plots", PlotFormat: "svg"}}
	assert.Equal(t, filepath.Join("plots", "knn_roc.svg"), cfg.PlotPath("knn", "roc"))
}
