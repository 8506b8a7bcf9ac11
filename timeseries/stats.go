package timeseries

import (
	"math"
	"time"

	"github.com/demandcast/demandcast/pkg/errors"
)

// TrainingStats holds the per-feature statistics fitted on the training split
// only: the fill value for missing entries and the 3-sigma caps for outliers.
// The struct is persisted inside the artifact bundle so inference-time rows
// are filled with the exact values training used, never with statistics
// recomputed from the query.
type TrainingStats struct {
	FeatureNames []string  `json:"feature_names"`
	Means        []float64 `json:"means"`
	Stds         []float64 `json:"stds"`
	LowerCaps    []float64 `json:"lower_caps"`
	UpperCaps    []float64 `json:"upper_caps"`
}

// ComputeTrainingStats fits statistics on the frame rows dated within
// [from, to]. Rows outside the range contribute nothing, so validation and
// holdout data can never influence imputation or capping. The 3-sigma caps
// are applied uniformly to every numeric feature.
func ComputeTrainingStats(f *Frame, from, to time.Time) (*TrainingStats, error) {
	train := f.Between(from, to)
	if train.Len() == 0 {
		return nil, errors.NewConfigurationError("timeseries.TrainingStats", "train_range",
			"no rows fall inside the training range", from.Format("2006-01-02")+".."+to.Format("2006-01-02"))
	}

	nf := len(f.FeatureNames)
	stats := &TrainingStats{
		FeatureNames: append([]string(nil), f.FeatureNames...),
		Means:        make([]float64, nf),
		Stds:         make([]float64, nf),
		LowerCaps:    make([]float64, nf),
		UpperCaps:    make([]float64, nf),
	}

	for j := 0; j < nf; j++ {
		var sum float64
		n := 0
		for _, row := range train.Rows {
			if v := row.Values[j]; !math.IsNaN(v) {
				sum += v
				n++
			}
		}
		if n == 0 {
			stats.Means[j] = 0
			stats.Stds[j] = 0
			stats.LowerCaps[j] = math.Inf(-1)
			stats.UpperCaps[j] = math.Inf(1)
			continue
		}
		mean := sum / float64(n)
		stats.Means[j] = mean

		if n < 2 {
			stats.Stds[j] = 0
			stats.LowerCaps[j] = math.Inf(-1)
			stats.UpperCaps[j] = math.Inf(1)
			continue
		}
		var ss float64
		for _, row := range train.Rows {
			if v := row.Values[j]; !math.IsNaN(v) {
				d := v - mean
				ss += d * d
			}
		}
		std := math.Sqrt(ss / float64(n-1))
		stats.Stds[j] = std
		if std == 0 {
			stats.LowerCaps[j] = math.Inf(-1)
			stats.UpperCaps[j] = math.Inf(1)
		} else {
			stats.LowerCaps[j] = mean - 3*std
			stats.UpperCaps[j] = mean + 3*std
		}
	}

	return stats, nil
}

// Apply fills missing values with the training means and caps outliers to the
// 3-sigma bounds, preserving row count. The input frame is not mutated; a
// transformed copy is returned. The frame must carry exactly the schema the
// statistics were fitted on.
func (s *TrainingStats) Apply(f *Frame) (*Frame, error) {
	if err := f.ValidateSchema("TrainingStats.Apply", s.FeatureNames); err != nil {
		return nil, err
	}

	out := f.Clone()
	for _, row := range out.Rows {
		for j, v := range row.Values {
			switch {
			case math.IsNaN(v):
				row.Values[j] = s.Means[j]
			case v < s.LowerCaps[j]:
				row.Values[j] = s.LowerCaps[j]
			case v > s.UpperCaps[j]:
				row.Values[j] = s.UpperCaps[j]
			}
		}
	}
	return out, nil
}
