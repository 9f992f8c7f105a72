// Package config loads modeltrainer settings from a config file,
// MODELTRAINER_* environment variables and bound command-line flags.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/YuminosukeSato/modeltrainer/pkg/errors"
)

// EnvPrefix is prepended to environment variable names, e.g.
// MODELTRAINER_OUTPUT_PLOT_FORMAT overrides output.plot_format.
const EnvPrefix = "MODELTRAINER"

// Config is the full set of settings.
type Config struct {
	Dataset DatasetConfig `mapstructure:"dataset"`
	Output  OutputConfig  `mapstructure:"output"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// DatasetConfig locates the input table.
type DatasetConfig struct {
	Path string `mapstructure:"path"`
}

// OutputConfig controls where models and plots are written.
type OutputConfig struct {
	ModelDir   string  `mapstructure:"model_dir"`
	PlotDir    string  `mapstructure:"plot_dir"`
	PlotFormat string  `mapstructure:"plot_format" validate:"oneof=png svg pdf"`
	PlotWidth  float64 `mapstructure:"plot_width" validate:"gt=0"`  // inches
	PlotHeight float64 `mapstructure:"plot_height" validate:"gt=0"` // inches
}

// LoggingConfig selects the log level and encoder.
type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=console json"`
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("dataset.path", "")
	v.SetDefault("output.model_dir", ".")
	v.SetDefault("output.plot_dir", ".")
	v.SetDefault("output.plot_format", "png")
	v.SetDefault("output.plot_width", 6.0)
	v.SetDefault("output.plot_height", 5.0)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
}

// New returns a viper instance with defaults and environment lookup set up.
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads file into v (or searches the working directory for
// modeltrainer.{yaml,toml,json} when file is empty), then decodes and
// validates the result. A missing searched-for file is not an error; a
// missing explicit file is.
func Load(v *viper.Viper, file string) (*Config, error) {
	if file != "" {
		if _, err := os.Stat(file); err != nil {
			return nil, errors.Wrapf(err, "config: %s", file)
		}
		v.SetConfigFile(file)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("modeltrainer")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, errors.Wrapf(err, "config: read %s", file)
		}
	}
	return Decode(v)
}

// Decode unmarshals and validates the settings currently held by v.
func Decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "config: decode")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("mapstructure"), ",")
		return name
	})
	return v
}

// Validate checks every field against its constraints and reports the first
// violation as a ValidationError keyed by its config path.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return errors.Wrap(err, "config: validate")
	}
	fe := fieldErrs[0]
	key := strings.TrimPrefix(fe.Namespace(), "Config.")
	reason := fmt.Sprintf("must satisfy %s", fe.Tag())
	if fe.Param() != "" {
		reason = fmt.Sprintf("must satisfy %s=%s", fe.Tag(), fe.Param())
	}
	return errors.NewValidationError(key, reason, fe.Value())
}

// PlotPath returns the file for plot kind ("confusion" or "roc") of the model
// named name.
func (c *Config) PlotPath(name, kind string) string {
	return filepath.Join(c.Output.PlotDir, fmt.Sprintf("%s_%s.%s", name, kind, c.Output.PlotFormat))
}
