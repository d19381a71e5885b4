package config

import (
	"errors"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Data   DataConfig   `yaml:"data" mapstructure:"data"`
	Output OutputConfig `yaml:"output" mapstructure:"output"`
	Train  TrainConfig  `yaml:"train" mapstructure:"train"`
	Store  StoreConfig  `yaml:"store" mapstructure:"store"`
	Log    LogConfig    `yaml:"log" mapstructure:"log"`
}

// DataConfig locates the line-delimited JSON inputs.
type DataConfig struct {
	Dir           string `yaml:"dir" mapstructure:"dir"`
	InstancesFile string `yaml:"instances_file" mapstructure:"instances_file"`
	TruthFile     string `yaml:"truth_file" mapstructure:"truth_file"`
	FilePrefix    string `yaml:"file_prefix" mapstructure:"file_prefix"`
}

// OutputConfig names the artifacts a training run writes. Empty paths are
// skipped, except the vocabulary file which is always written.
type OutputConfig struct {
	VocabFile   string `yaml:"vocab_file" mapstructure:"vocab_file"`
	ModelFile   string `yaml:"model_file" mapstructure:"model_file"`
	ReportFile  string `yaml:"report_file" mapstructure:"report_file"`
	MetricsFile string `yaml:"metrics_file" mapstructure:"metrics_file"`
}

// TrainConfig configures splitting, the forest and cross-validation.
type TrainConfig struct {
	SplitOffset     int    `yaml:"split_offset" mapstructure:"split_offset"`
	Trees           int    `yaml:"trees" mapstructure:"trees"`
	Folds           int    `yaml:"folds" mapstructure:"folds"`
	Seed            uint64 `yaml:"seed" mapstructure:"seed"`
	Workers         int    `yaml:"workers" mapstructure:"workers"`
	MaxDepth        int    `yaml:"max_depth" mapstructure:"max_depth"`
	MinSamplesSplit int    `yaml:"min_samples_split" mapstructure:"min_samples_split"`
}

// StoreConfig configures the run history backend.
type StoreConfig struct {
	Driver          string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL     string `yaml:"database_url" mapstructure:"database_url"`
	ConnectAttempts int    `yaml:"connect_attempts" mapstructure:"connect_attempts"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Validate checks that the fields required by the given mode are usable.
// Modes: "train", "vectorize", "predict", "runs".
func (c *Config) Validate(mode string) error {
	var errs []string

	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, "store.driver must be sqlite or postgres")
	}
	if c.Store.Driver == "postgres" && c.Store.DatabaseURL == "" {
		errs = append(errs, "store.database_url is required for postgres")
	}

	switch mode {
	case "train":
		if c.Train.SplitOffset <= 0 {
			errs = append(errs, "train.split_offset must be > 0")
		}
		if c.Train.Trees <= 0 {
			errs = append(errs, "train.trees must be > 0")
		}
		if c.Train.Folds < 2 {
			errs = append(errs, "train.folds must be >= 2")
		}
		if c.Train.Workers < 1 || c.Train.Workers > 64 {
			errs = append(errs, "train.workers must be between 1 and 64")
		}
		if c.Train.MaxDepth < 0 {
			errs = append(errs, "train.max_depth must be >= 0")
		}
		if c.Output.VocabFile == "" {
			errs = append(errs, "output.vocab_file is required")
		}
	case "vectorize":
		if c.Output.VocabFile == "" {
			errs = append(errs, "output.vocab_file is required")
		}
	case "predict":
		if c.Output.VocabFile == "" {
			errs = append(errs, "output.vocab_file is required")
		}
		if c.Output.ModelFile == "" {
			errs = append(errs, "output.model_file is required")
		}
	case "runs":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// defaults are applied before the config file and the environment.
var defaults = map[string]any{
	"data.dir":                ".",
	"data.instances_file":     "instances.jsonl",
	"data.truth_file":         "truth.jsonl",
	"data.file_prefix":        "",
	"output.vocab_file":       "vocabs.json",
	"output.model_file":       "",
	"output.report_file":      "",
	"output.metrics_file":     "",
	"train.split_offset":      2394,
	"train.trees":             10,
	"train.folds":             3,
	"train.seed":              42,
	"train.workers":           1,
	"train.max_depth":         0,
	"train.min_samples_split": 2,
	"store.driver":            "sqlite",
	"store.database_url":      "",
	"store.connect_attempts":  3,
	"log.level":               "info",
	"log.format":              "json",
}

// Load reads configuration from defaults, a YAML file and CLICKBAIT_*
// environment variables, later sources winning. With an empty path an
// optional config.yaml in the working directory is used; an explicit
// path must exist.
func Load(path string) (*Config, error) {
	v := viper.New()
	for key, val := range defaults {
		v.SetDefault(key, val)
	}

	v.SetEnvPrefix("CLICKBAIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}
	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
