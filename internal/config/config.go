// Package config loads the CLI configuration from leetstore.yaml, the
// environment, and defaults.
package config

import (
	"errors"
	"strings"

	"github.com/spf13/viper"

	"github.com/tordrt/leetstore/internal/apperr"
)

// EnvPrefix prefixes every environment override, e.g. LEETSTORE_LOGGING_LEVEL.
const EnvPrefix = "LEETSTORE"

type Config struct {
	Dir              string        `mapstructure:"dir"`
	SchemaFile       string        `mapstructure:"schema_file"`
	MinEngineVersion string        `mapstructure:"min_engine_version"`
	Fix              bool          `mapstructure:"fix"`
	DropExtraColumns bool          `mapstructure:"drop_extra_columns"`
	Logging          LoggingConfig `mapstructure:"logging"`
	Output           OutputConfig  `mapstructure:"output"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type OutputConfig struct {
	Format string `mapstructure:"format"`
}

// Load reads configFile, or leetstore.yaml from the working directory or
// $HOME/.config/leetstore when configFile is empty. A missing default file is
// not an error; a missing explicit file is.
func Load(configFile string) (*Config, error) {
	v := viper.New()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("leetstore")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/leetstore")
	}

	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, apperr.Wrap(apperr.ErrConfig, err, "error reading config file").WithPath(configFile)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, apperr.Wrap(apperr.ErrConfig, err, "error unmarshaling config")
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("dir", "")
	v.SetDefault("schema_file", "")
	v.SetDefault("min_engine_version", "3.0.0")
	v.SetDefault("fix", true)
	v.SetDefault("drop_extra_columns", false)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")

	v.SetDefault("output.format", "text")
}

func (c *Config) validate() error {
	switch c.Logging.Format {
	case "text", "json":
	default:
		return apperr.Newf(apperr.ErrConfig, "logging.format must be text or json, got %q", c.Logging.Format)
	}
	switch c.Output.Format {
	case "text", "markdown":
	default:
		return apperr.Newf(apperr.ErrConfig, "output.format must be text or markdown, got %q", c.Output.Format)
	}
	return nil
}
