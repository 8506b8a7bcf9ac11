// Package search runs a bounded, sequential-model-based hyperparameter
// search over the six tunable training dimensions. Proposals come from a
// pluggable Suggester; the default is a tree-structured Parzen estimator,
// and a seeded random suggester satisfies the same contract for tests.
// Trials are evaluated across all walk-forward folds; a failing fold is
// excluded from the trial average, a fully failing trial is excluded from
// the search, and only a search where every trial fails is fatal.
package search

import (
	"math"
	"math/rand/v2"

	"github.com/demandcast/demandcast/pkg/errors"
)

// Config is one point in the search space.
type Config struct {
	NumLeaves       int     `json:"num_leaves"`
	LearningRate    float64 `json:"learning_rate"`
	BaggingFraction float64 `json:"bagging_fraction"`
	FeatureFraction float64 `json:"feature_fraction"`
	BaggingFreq     int     `json:"bagging_freq"`
	MinDataInLeaf   int     `json:"min_data_in_leaf"`
}

// Space bounds every dimension. Inclusive on both ends.
type Space struct {
	NumLeavesMin, NumLeavesMax             int
	LearningRateMin, LearningRateMax       float64
	BaggingFractionMin, BaggingFractionMax float64
	FeatureFractionMin, FeatureFractionMax float64
	BaggingFreqMin, BaggingFreqMax         int
	MinDataInLeafMin, MinDataInLeafMax     int
}

// DefaultSpace covers the ranges that work well for daily retail demand
// series of a few hundred to a few hundred thousand rows.
func DefaultSpace() Space {
	return Space{
		NumLeavesMin: 8, NumLeavesMax: 256,
		LearningRateMin: 0.005, LearningRateMax: 0.3,
		BaggingFractionMin: 0.5, BaggingFractionMax: 1.0,
		FeatureFractionMin: 0.5, FeatureFractionMax: 1.0,
		BaggingFreqMin: 0, BaggingFreqMax: 7,
		MinDataInLeafMin: 5, MinDataInLeafMax: 100,
	}
}

// dimension describes one axis in the internal vector representation the
// suggesters work in. Log-scaled dimensions are searched in log space.
type dimension struct {
	name    string
	lo, hi  float64
	logScl  bool
	integer bool
}

func (s Space) dimensions() []dimension {
	return []dimension{
		{name: "num_leaves", lo: float64(s.NumLeavesMin), hi: float64(s.NumLeavesMax), logScl: true, integer: true},
		{name: "learning_rate", lo: s.LearningRateMin, hi: s.LearningRateMax, logScl: true},
		{name: "bagging_fraction", lo: s.BaggingFractionMin, hi: s.BaggingFractionMax},
		{name: "feature_fraction", lo: s.FeatureFractionMin, hi: s.FeatureFractionMax},
		{name: "bagging_freq", lo: float64(s.BaggingFreqMin), hi: float64(s.BaggingFreqMax), integer: true},
		{name: "min_data_in_leaf", lo: float64(s.MinDataInLeafMin), hi: float64(s.MinDataInLeafMax), logScl: true, integer: true},
	}
}

// validate rejects bounds the search scale cannot represent.
func (s Space) validate() error {
	for _, d := range s.dimensions() {
		if d.hi < d.lo {
			return errors.NewConfigurationError("search", d.name,
				"upper bound must not be below lower bound", d.hi)
		}
		if d.logScl && d.lo <= 0 {
			return errors.NewConfigurationError("search", d.name,
				"log-scaled bounds must be positive", d.lo)
		}
	}
	return nil
}

// transform maps a raw value into the (possibly log) search scale.
func (d dimension) transform(v float64) float64 {
	if d.logScl {
		return math.Log(v)
	}
	return v
}

// restore maps a search-scale value back into the raw domain, clamped and
// rounded for integer dimensions.
func (d dimension) restore(v float64) float64 {
	if d.logScl {
		v = math.Exp(v)
	}
	if v < d.lo {
		v = d.lo
	}
	if v > d.hi {
		v = d.hi
	}
	if d.integer {
		v = math.Round(v)
	}
	return v
}

// sample draws uniformly on the search scale.
func (d dimension) sample(rng *rand.Rand) float64 {
	lo, hi := d.transform(d.lo), d.transform(d.hi)
	return d.restore(lo + rng.Float64()*(hi-lo))
}

// vector converts a Config to the internal representation.
func (s Space) vector(c Config) []float64 {
	return []float64{
		float64(c.NumLeaves),
		c.LearningRate,
		c.BaggingFraction,
		c.FeatureFraction,
		float64(c.BaggingFreq),
		float64(c.MinDataInLeaf),
	}
}

// config converts an internal vector back to a Config.
func (s Space) config(v []float64) Config {
	return Config{
		NumLeaves:       int(v[0]),
		LearningRate:    v[1],
		BaggingFraction: v[2],
		FeatureFraction: v[3],
		BaggingFreq:     int(v[4]),
		MinDataInLeaf:   int(v[5]),
	}
}

// Sample draws a uniform random configuration.
func (s Space) Sample(rng *rand.Rand) Config {
	dims := s.dimensions()
	v := make([]float64, len(dims))
	for i, d := range dims {
		v[i] = d.sample(rng)
	}
	return s.config(v)
}
