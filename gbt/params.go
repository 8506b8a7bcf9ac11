package gbt

import "github.com/demandcast/demandcast/pkg/errors"

// Params holds the training hyperparameters. The six tunable dimensions the
// hyperparameter search explores are NumLeaves, LearningRate,
// BaggingFraction, FeatureFraction, BaggingFreq and MinDataInLeaf; the rest
// are fixed per run.
type Params struct {
	NumIterations int     `json:"num_iterations"`
	LearningRate  float64 `json:"learning_rate"`
	NumLeaves     int     `json:"num_leaves"`
	MinDataInLeaf int     `json:"min_data_in_leaf"`

	// Sampling
	BaggingFraction float64 `json:"bagging_fraction"`
	BaggingFreq     int     `json:"bagging_freq"`
	FeatureFraction float64 `json:"feature_fraction"`

	// Regularization
	Lambda         float64 `json:"lambda_l2"`
	MinGainToSplit float64 `json:"min_gain_to_split"`

	// EarlyStopping is the patience in boosting rounds without validation
	// improvement before training stops. Applied only when validation data
	// is supplied.
	EarlyStopping int `json:"early_stopping_rounds"`

	Seed int64 `json:"seed"`
}

// withDefaults fills unset parameters with the library defaults.
func (p Params) withDefaults() Params {
	if p.NumIterations == 0 {
		p.NumIterations = 100
	}
	if p.LearningRate == 0 {
		p.LearningRate = 0.1
	}
	if p.NumLeaves == 0 {
		p.NumLeaves = 31
	}
	if p.MinDataInLeaf == 0 {
		p.MinDataInLeaf = 20
	}
	if p.BaggingFraction == 0 {
		p.BaggingFraction = 1.0
	}
	if p.FeatureFraction == 0 {
		p.FeatureFraction = 1.0
	}
	if p.Lambda == 0 {
		p.Lambda = 1.0
	}
	if p.EarlyStopping == 0 {
		p.EarlyStopping = 50
	}
	return p
}

// validate rejects parameter values outside their domains.
func (p Params) validate() error {
	if p.NumIterations < 1 {
		return errors.NewConfigurationError("gbt.Trainer", "num_iterations", "must be at least 1", p.NumIterations)
	}
	if p.LearningRate <= 0 || p.LearningRate > 1 {
		return errors.NewConfigurationError("gbt.Trainer", "learning_rate", "must be in (0, 1]", p.LearningRate)
	}
	if p.NumLeaves < 2 {
		return errors.NewConfigurationError("gbt.Trainer", "num_leaves", "must be at least 2", p.NumLeaves)
	}
	if p.MinDataInLeaf < 1 {
		return errors.NewConfigurationError("gbt.Trainer", "min_data_in_leaf", "must be at least 1", p.MinDataInLeaf)
	}
	if p.BaggingFraction <= 0 || p.BaggingFraction > 1 {
		return errors.NewConfigurationError("gbt.Trainer", "bagging_fraction", "must be in (0, 1]", p.BaggingFraction)
	}
	if p.FeatureFraction <= 0 || p.FeatureFraction > 1 {
		return errors.NewConfigurationError("gbt.Trainer", "feature_fraction", "must be in (0, 1]", p.FeatureFraction)
	}
	if p.BaggingFreq < 0 {
		return errors.NewConfigurationError("gbt.Trainer", "bagging_freq", "cannot be negative", p.BaggingFreq)
	}
	return nil
}
