// Package timeseries implements the temporal feature builder for per-store,
// per-item daily demand series.
//
// All derived features are causal: a feature attached to the row at time t is
// computed exclusively from observations strictly earlier than t (lags,
// rolling windows, EWMA, group aggregates) or from information that is known
// at t independently of the target (calendar decomposition, exogenous
// attributes). The builder is a pure function of its inputs; rebuilding a
// frame from identical observations yields bit-identical output.
package timeseries

import (
	"sort"
	"time"

	"github.com/demandcast/demandcast/pkg/errors"
)

// EntityKey identifies one (store, item) demand series.
type EntityKey struct {
	Store string `json:"store"`
	Item  string `json:"item"`
}

func (k EntityKey) String() string {
	return k.Store + "/" + k.Item
}

// less orders entities by store then item, the canonical frame order.
func (k EntityKey) less(o EntityKey) bool {
	if k.Store != o.Store {
		return k.Store < o.Store
	}
	return k.Item < o.Item
}

// Observation is one raw (entity, day) measurement. Observations are
// append-only inputs and are never mutated by the builder.
type Observation struct {
	Entity EntityKey
	Date   time.Time
	Units  float64
	Region string
}

// Query is an inference request row: an (entity, day) to forecast, with the
// region used to join exogenous attributes. The target is unknown.
type Query struct {
	Entity EntityKey
	Date   time.Time
	Region string
}

// ExogenousRecord is a side-table entry keyed by (date, region) carrying
// weather and season attributes for every entity trading in that region.
type ExogenousRecord struct {
	Date    time.Time
	Region  string
	Weather string
	Season  string
}

// Day truncates a timestamp to UTC midnight. All builder internals key on
// days, so callers may pass timestamps with arbitrary clock components.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// sortObservations orders observations by entity then date without mutating
// the caller's slice.
func sortObservations(obs []Observation) []Observation {
	sorted := make([]Observation, len(obs))
	copy(sorted, obs)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Entity != sorted[j].Entity {
			return sorted[i].Entity.less(sorted[j].Entity)
		}
		return sorted[i].Date.Before(sorted[j].Date)
	})
	return sorted
}

// validateObservations rejects duplicate (entity, date) pairs. The input is
// expected sorted.
func validateObservations(obs []Observation) error {
	if len(obs) == 0 {
		return errors.Wrap(errors.ErrEmptyData, "timeseries: no observations")
	}
	for i := 1; i < len(obs); i++ {
		if obs[i].Entity == obs[i-1].Entity && obs[i].Date.Equal(obs[i-1].Date) {
			return errors.NewValueError("Builder.Build",
				"duplicate observation for entity "+obs[i].Entity.String()+" at "+obs[i].Date.Format("2006-01-02"))
		}
	}
	return nil
}

// exogenousKey joins the side table by (date, region).
type exogenousKey struct {
	date   time.Time
	region string
}

func indexExogenous(records []ExogenousRecord) map[exogenousKey]ExogenousRecord {
	idx := make(map[exogenousKey]ExogenousRecord, len(records))
	for _, r := range records {
		idx[exogenousKey{date: Day(r.Date), region: r.Region}] = r
	}
	return idx
}
