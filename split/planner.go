// Package split plans walk-forward train/validation partitions over a daily
// timestamp index. Every fold's training range ends strictly before its
// validation range starts, successive validation ranges move strictly
// forward without overlapping, and an optional holdout block at the end of
// the timeline stays fully disjoint from all folds so the final reported
// metrics are computed on data no model or trial ever saw.
package split

import (
	"sort"
	"time"

	"github.com/demandcast/demandcast/pkg/errors"
	"github.com/demandcast/demandcast/pkg/log"
)

// Range is an inclusive interval of days.
type Range struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Contains reports whether a day falls inside the range.
func (r Range) Contains(day time.Time) bool {
	return !day.Before(r.Start) && !day.After(r.End)
}

// IsZero reports whether the range is unset.
func (r Range) IsZero() bool {
	return r.Start.IsZero() && r.End.IsZero()
}

// Fold is one walk-forward partition: everything before the validation block
// is training data.
type Fold struct {
	Train      Range `json:"train"`
	Validation Range `json:"validation"`
}

// Plan is an ordered sequence of folds plus the optional final holdout.
type Plan struct {
	Folds   []Fold `json:"folds"`
	Holdout Range  `json:"holdout"`
}

// HasHoldout reports whether a holdout block was carved.
func (p *Plan) HasHoldout() bool {
	return !p.Holdout.IsZero()
}

// Planner produces walk-forward plans.
type Planner struct {
	folds       int
	holdoutDays int
}

// NewPlanner creates a planner for the given fold count and holdout length in
// days. A holdout of 0 skips the final block.
func NewPlanner(folds, holdoutDays int) *Planner {
	return &Planner{folds: folds, holdoutDays: holdoutDays}
}

// Plan carves the timestamp index into folds and holdout. The index may
// arrive unsorted and with duplicates; it is normalized internally. Plan
// fails with a ConfigurationError when the requested partitions cannot be
// carved without an empty one.
func (p *Planner) Plan(index []time.Time) (*Plan, error) {
	if p.folds < 1 {
		return nil, errors.NewConfigurationError("split.Planner", "folds",
			"fold count must be at least 1", p.folds)
	}
	if p.holdoutDays < 0 {
		return nil, errors.NewConfigurationError("split.Planner", "holdout_days",
			"holdout length cannot be negative", p.holdoutDays)
	}

	days := normalizeIndex(index)
	if len(days) == 0 {
		return nil, errors.NewConfigurationError("split.Planner", "index",
			"empty timestamp index", len(index))
	}

	cvDays := days
	plan := &Plan{}
	if p.holdoutDays > 0 {
		if p.holdoutDays >= len(days) {
			return nil, errors.NewConfigurationError("split.Planner", "holdout_days",
				"holdout consumes the whole timeline", p.holdoutDays)
		}
		cut := len(days) - p.holdoutDays
		cvDays = days[:cut]
		plan.Holdout = Range{Start: days[cut], End: days[len(days)-1]}
	}

	// The walk-forward layout needs folds+1 consecutive blocks: fold i trains
	// on blocks 0..i and validates on block i+1.
	blocks := p.folds + 1
	if len(cvDays) < blocks {
		return nil, errors.NewConfigurationError("split.Planner", "folds",
			"not enough days to carve the requested folds without an empty partition", p.folds)
	}

	bounds := blockBounds(len(cvDays), blocks)
	for i := 0; i < p.folds; i++ {
		valStart, valEnd := bounds[i+1], bounds[i+2]-1
		plan.Folds = append(plan.Folds, Fold{
			Train:      Range{Start: cvDays[0], End: cvDays[bounds[i+1]-1]},
			Validation: Range{Start: cvDays[valStart], End: cvDays[valEnd]},
		})
	}

	logger := log.GetLoggerWithName("split.planner")
	logger.Debug("walk-forward plan carved",
		"folds", len(plan.Folds),
		"cv_days", len(cvDays),
		"holdout_days", p.holdoutDays,
	)
	return plan, nil
}

// blockBounds splits n items into k consecutive blocks, front-loading the
// remainder, and returns the k+1 boundary offsets.
func blockBounds(n, k int) []int {
	bounds := make([]int, k+1)
	base := n / k
	rem := n % k
	off := 0
	for i := 0; i < k; i++ {
		bounds[i] = off
		size := base
		if i < rem {
			size++
		}
		off += size
	}
	bounds[k] = n
	return bounds
}

func normalizeIndex(index []time.Time) []time.Time {
	seen := make(map[time.Time]bool, len(index))
	days := make([]time.Time, 0, len(index))
	for _, t := range index {
		y, m, d := t.UTC().Date()
		day := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
		if !seen[day] {
			seen[day] = true
			days = append(days, day)
		}
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })
	return days
}
