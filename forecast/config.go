// Package forecast wires the feature builder, walk-forward planner,
// hyperparameter search, trainer, evaluator and explainer into one
// train-to-artifact pipeline, and provides the matching inference path that
// scores future (store, item, date) queries from a saved artifact.
package forecast

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/demandcast/demandcast/gbt"
	"github.com/demandcast/demandcast/pkg/errors"
	"github.com/demandcast/demandcast/search"
	"github.com/demandcast/demandcast/timeseries"
)

// Model kinds accepted by Config.Model.
const (
	ModelGBT      = "gbt"
	ModelBaseline = "baseline"
)

// FeatureConfig selects the temporal features. Zero slices fall back to the
// builder defaults.
type FeatureConfig struct {
	Lags           []int     `yaml:"lags" json:"lags"`
	RollingWindows []int     `yaml:"rolling_windows" json:"rolling_windows"`
	EWMAAlphas     []float64 `yaml:"ewma_alphas" json:"ewma_alphas"`
	GroupWindow    int       `yaml:"group_window" json:"group_window"`
	WeatherLevels  []string  `yaml:"weather_levels" json:"weather_levels"`
	SeasonLevels   []string  `yaml:"season_levels" json:"season_levels"`
}

// SplitConfig shapes the walk-forward plan.
type SplitConfig struct {
	Folds       int `yaml:"folds" json:"folds"`
	HoldoutDays int `yaml:"holdout_days" json:"holdout_days"`
}

// SearchConfig bounds the hyperparameter search.
type SearchConfig struct {
	Budget  int   `yaml:"budget" json:"budget"`
	Workers int   `yaml:"workers" json:"workers"`
	Seed    int64 `yaml:"seed" json:"seed"`
}

// TrainingConfig fixes the non-searched training parameters.
type TrainingConfig struct {
	NumIterations       int     `yaml:"num_iterations" json:"num_iterations"`
	Lambda              float64 `yaml:"lambda_l2" json:"lambda_l2"`
	MinGainToSplit      float64 `yaml:"min_gain_to_split" json:"min_gain_to_split"`
	EarlyStoppingRounds int     `yaml:"early_stopping_rounds" json:"early_stopping_rounds"`
}

// Config is the full pipeline configuration. It is embedded verbatim in the
// saved artifact so inference can rebuild the exact feature schema.
type Config struct {
	Model    string         `yaml:"model" json:"model"`
	Features FeatureConfig  `yaml:"features" json:"features"`
	Split    SplitConfig    `yaml:"split" json:"split"`
	Search   SearchConfig   `yaml:"search" json:"search"`
	Training TrainingConfig `yaml:"training" json:"training"`
}

// DefaultConfig is the configuration used when fields are left unset.
func DefaultConfig() Config {
	return Config{
		Model: ModelGBT,
		Split: SplitConfig{
			Folds:       3,
			HoldoutDays: 28,
		},
		Search: SearchConfig{
			Budget: search.DefaultBudget,
			Seed:   42,
		},
		Training: TrainingConfig{
			NumIterations:       300,
			Lambda:              1.0,
			EarlyStoppingRounds: 50,
		},
	}
}

// LoadConfig reads and validates a YAML configuration file.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrapf(err, "forecast: read config %s", path)
	}
	return ParseConfig(data)
}

// ParseConfig decodes YAML on top of the defaults and validates.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, errors.Wrap(err, "forecast: parse config")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects configurations the pipeline cannot honor.
func (c Config) Validate() error {
	switch c.Model {
	case ModelGBT, ModelBaseline:
	default:
		return errors.NewConfigurationError("forecast", "model",
			"must be \"gbt\" or \"baseline\"", c.Model)
	}
	if c.Split.Folds < 1 {
		return errors.NewConfigurationError("forecast", "split.folds",
			"must be at least 1", c.Split.Folds)
	}
	if c.Split.HoldoutDays < 0 {
		return errors.NewConfigurationError("forecast", "split.holdout_days",
			"cannot be negative", c.Split.HoldoutDays)
	}
	if c.Search.Budget < 0 {
		return errors.NewConfigurationError("forecast", "search.budget",
			"cannot be negative", c.Search.Budget)
	}
	if c.Training.NumIterations < 1 {
		return errors.NewConfigurationError("forecast", "training.num_iterations",
			"must be at least 1", c.Training.NumIterations)
	}
	return nil
}

// builderConfig maps the feature section onto the builder.
func (c Config) builderConfig(cal timeseries.HolidayCalendar) timeseries.BuilderConfig {
	return timeseries.BuilderConfig{
		Lags:           c.Features.Lags,
		RollingWindows: c.Features.RollingWindows,
		EWMAAlphas:     c.Features.EWMAAlphas,
		GroupWindow:    c.Features.GroupWindow,
		WeatherLevels:  c.Features.WeatherLevels,
		SeasonLevels:   c.Features.SeasonLevels,
		Calendar:       cal,
	}
}

// params combines the fixed training section with one searched
// configuration.
func (c Config) params(sc search.Config, seed int64) gbt.Params {
	return gbt.Params{
		NumIterations:   c.Training.NumIterations,
		LearningRate:    sc.LearningRate,
		NumLeaves:       sc.NumLeaves,
		MinDataInLeaf:   sc.MinDataInLeaf,
		BaggingFraction: sc.BaggingFraction,
		BaggingFreq:     sc.BaggingFreq,
		FeatureFraction: sc.FeatureFraction,
		Lambda:          c.Training.Lambda,
		MinGainToSplit:  c.Training.MinGainToSplit,
		EarlyStopping:   c.Training.EarlyStoppingRounds,
		Seed:            seed,
	}
}
