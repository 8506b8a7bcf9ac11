package timeseries

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/demandcast/demandcast/pkg/errors"
	"github.com/demandcast/demandcast/pkg/log"
)

// BuilderConfig controls which feature families the builder derives.
// Zero values are replaced with the defaults below.
type BuilderConfig struct {
	// Lags are the day offsets for lagged target features. Every lag must be
	// at least 1; a lag of 0 would copy the row's own target into its inputs.
	Lags []int

	// RollingWindows are the window lengths (in days, ending at t-1) for the
	// rolling mean/min/max/std features.
	RollingWindows []int

	// EWMAAlphas are the decay factors of the exponentially weighted moving
	// averages, each in (0, 1).
	EWMAAlphas []float64

	// GroupWindow is the window length of the store-level and item-level
	// rolling aggregates.
	GroupWindow int

	// WeatherLevels and SeasonLevels fix the one-hot vocabularies so the
	// feature schema is identical at training and inference time. Values not
	// in the vocabulary encode as all zeros.
	WeatherLevels []string
	SeasonLevels  []string

	// Calendar marks holidays. Defaults to a calendar with no holidays.
	Calendar HolidayCalendar
}

func (c BuilderConfig) withDefaults() BuilderConfig {
	if len(c.Lags) == 0 {
		c.Lags = []int{1, 7, 14, 28}
	}
	if len(c.RollingWindows) == 0 {
		c.RollingWindows = []int{7, 14, 28}
	}
	if len(c.EWMAAlphas) == 0 {
		c.EWMAAlphas = []float64{0.5, 0.1}
	}
	if c.GroupWindow == 0 {
		c.GroupWindow = 7
	}
	if len(c.WeatherLevels) == 0 {
		c.WeatherLevels = []string{"cloudy", "rain", "snow", "sunny"}
	}
	if len(c.SeasonLevels) == 0 {
		c.SeasonLevels = []string{"winter", "spring", "summer", "fall"}
	}
	if c.Calendar == nil {
		c.Calendar = emptyCalendar{}
	}
	return c
}

// Builder derives the model's feature frame from raw observations.
type Builder struct {
	cfg   BuilderConfig
	names []string
}

// NewBuilder validates the configuration and fixes the feature schema.
// Window definitions that would reference the row's own time step or later
// are rejected here with a LeakageError rather than silently computed.
func NewBuilder(cfg BuilderConfig) (*Builder, error) {
	cfg = cfg.withDefaults()

	for _, k := range cfg.Lags {
		if k < 1 {
			return nil, errors.NewLeakageError(fmt.Sprintf("lag_%d", k),
				"lag offsets must be at least 1 day")
		}
	}
	for _, w := range cfg.RollingWindows {
		if w < 1 {
			return nil, errors.NewLeakageError(fmt.Sprintf("roll_mean_%d", w),
				"rolling windows must cover at least 1 past day")
		}
	}
	if cfg.GroupWindow < 1 {
		return nil, errors.NewLeakageError(fmt.Sprintf("store_roll_mean_%d", cfg.GroupWindow),
			"group windows must cover at least 1 past day")
	}
	for _, a := range cfg.EWMAAlphas {
		if a <= 0 || a >= 1 {
			return nil, errors.NewConfigurationError("timeseries.Builder", "ewma_alphas",
				"decay factors must be in (0, 1)", a)
		}
	}

	b := &Builder{cfg: cfg}
	b.names = b.featureNames()
	return b, nil
}

// FeatureNames returns the schema the builder produces, in column order.
func (b *Builder) FeatureNames() []string {
	return append([]string(nil), b.names...)
}

func (b *Builder) featureNames() []string {
	var names []string
	for _, k := range b.cfg.Lags {
		names = append(names, fmt.Sprintf("lag_%d", k))
	}
	for _, w := range b.cfg.RollingWindows {
		names = append(names,
			fmt.Sprintf("roll_mean_%d", w),
			fmt.Sprintf("roll_min_%d", w),
			fmt.Sprintf("roll_max_%d", w),
			fmt.Sprintf("roll_std_%d", w),
		)
	}
	for _, a := range b.cfg.EWMAAlphas {
		names = append(names, fmt.Sprintf("ewma_%g", a))
	}
	w := b.cfg.GroupWindow
	names = append(names,
		fmt.Sprintf("store_roll_mean_%d", w),
		fmt.Sprintf("store_roll_sum_%d", w),
		fmt.Sprintf("item_roll_mean_%d", w),
		fmt.Sprintf("item_roll_sum_%d", w),
	)
	names = append(names, calendarFeatureNames...)
	for _, lvl := range b.cfg.WeatherLevels {
		names = append(names, "weather_"+lvl)
	}
	for _, lvl := range b.cfg.SeasonLevels {
		names = append(names, "season_"+lvl)
	}
	return names
}

// Build derives the full feature frame from raw observations and the
// exogenous side table. Observations may arrive in any order; rows are
// emitted sorted by entity then date. Gaps that cannot be computed (history
// shorter than a window, missing exogenous record) carry NaN, the reserved
// missing marker, to be filled later from training-split statistics.
func (b *Builder) Build(obs []Observation, exo []ExogenousRecord) (*Frame, error) {
	sorted := sortObservations(obs)
	if err := validateObservations(sorted); err != nil {
		return nil, err
	}

	frame := b.buildRows(sorted, indexExogenous(exo))

	logger := log.GetLoggerWithName("timeseries.builder")
	logger.Debug("feature frame built",
		log.RowsKey, frame.Len(),
		log.FeaturesKey, len(frame.FeatureNames),
		log.EntitiesKey, countEntities(sorted),
	)
	return frame, nil
}

// BuildInferenceRows produces feature rows for forecast queries. History
// supplies the past targets needed by lag/rolling/EWMA features; the query
// rows themselves contribute no target information. The returned frame is
// schema-identical to training frames and contains exactly one row per query,
// in query order normalized to entity-then-date. Gap filling is left to the
// caller, which must use the persisted training statistics.
func (b *Builder) BuildInferenceRows(history []Observation, queries []Query, exo []ExogenousRecord) (*Frame, error) {
	if len(queries) == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, "timeseries: no query rows")
	}

	combined := make([]Observation, 0, len(history)+len(queries))
	combined = append(combined, history...)
	queryKeys := make(map[string]bool, len(queries))
	for _, q := range queries {
		combined = append(combined, Observation{
			Entity: q.Entity,
			Date:   q.Date,
			Units:  math.NaN(),
			Region: q.Region,
		})
		queryKeys[rowKey(q.Entity, q.Date)] = true
	}

	sorted := sortObservations(combined)
	if err := validateObservations(sorted); err != nil {
		return nil, err
	}

	full := b.buildRows(sorted, indexExogenous(exo))
	return full.Filter(func(r Row) bool {
		return queryKeys[rowKey(r.Entity, r.Date)]
	}), nil
}

func rowKey(e EntityKey, t time.Time) string {
	return e.String() + "@" + Day(t).Format("2006-01-02")
}

// groupSeries tracks per-day sums and contributor counts for one group
// (a store across its items, or an item across stores).
type groupSeries struct {
	sum   map[time.Time]float64
	count map[time.Time]int
}

func newGroupSeries() *groupSeries {
	return &groupSeries{sum: make(map[time.Time]float64), count: make(map[time.Time]int)}
}

func (g *groupSeries) add(day time.Time, v float64) {
	if math.IsNaN(v) {
		return
	}
	g.sum[day] += v
	g.count[day]++
}

// otherAt returns the group aggregate at day excluding one entity's own
// contribution. ok is false when no other entity reported that day.
func (g *groupSeries) otherAt(day time.Time, own float64, ownPresent bool) (float64, bool) {
	n := g.count[day]
	s := g.sum[day]
	if ownPresent {
		n--
		s -= own
	}
	if n <= 0 {
		return 0, false
	}
	return s, true
}

func (b *Builder) buildRows(sorted []Observation, exoIdx map[exogenousKey]ExogenousRecord) *Frame {
	// Per-entity target lookup and group daily aggregates.
	byEntity := make(map[EntityKey]map[time.Time]float64)
	stores := make(map[string]*groupSeries)
	items := make(map[string]*groupSeries)
	for _, o := range sorted {
		day := Day(o.Date)
		m, ok := byEntity[o.Entity]
		if !ok {
			m = make(map[time.Time]float64)
			byEntity[o.Entity] = m
		}
		m[day] = o.Units

		sg, ok := stores[o.Entity.Store]
		if !ok {
			sg = newGroupSeries()
			stores[o.Entity.Store] = sg
		}
		sg.add(day, o.Units)

		ig, ok := items[o.Entity.Item]
		if !ok {
			ig = newGroupSeries()
			items[o.Entity.Item] = ig
		}
		ig.add(day, o.Units)
	}

	frame := &Frame{FeatureNames: b.names, Rows: make([]Row, 0, len(sorted))}

	// EWMA state per alpha, reset on entity change. The recurrence is seeded
	// at the entity's first observation; the feature at row i reflects the
	// state after row i-1, so the first row of every entity carries NaN.
	ewmaState := make([]float64, len(b.cfg.EWMAAlphas))
	var current EntityKey
	seeded := false

	for idx, o := range sorted {
		if idx == 0 || o.Entity != current {
			current = o.Entity
			seeded = false
		}
		day := Day(o.Date)
		targets := byEntity[o.Entity]
		values := make([]float64, 0, len(b.names))

		// Lag features: fail closed to the missing marker, never zero.
		for _, k := range b.cfg.Lags {
			v, ok := targets[day.AddDate(0, 0, -k)]
			if !ok || math.IsNaN(v) {
				v = math.NaN()
			}
			values = append(values, v)
		}

		// Rolling statistics over (t-w, t-1], excluding t itself.
		for _, w := range b.cfg.RollingWindows {
			window := gatherWindow(targets, day, w)
			values = append(values, rollingStats(window)...)
		}

		// EWMA features read the state accumulated strictly before this row.
		for i := range b.cfg.EWMAAlphas {
			if !seeded {
				values = append(values, math.NaN())
			} else {
				values = append(values, ewmaState[i])
			}
		}
		if !math.IsNaN(o.Units) {
			for i, a := range b.cfg.EWMAAlphas {
				if !seeded {
					ewmaState[i] = o.Units
				} else {
					ewmaState[i] = a*o.Units + (1-a)*ewmaState[i]
				}
			}
			seeded = true
		}

		// Group aggregates: other entities of the same store, then of the
		// same item, over days strictly before t.
		values = append(values, b.groupFeatures(stores[o.Entity.Store], targets, day)...)
		values = append(values, b.groupFeatures(items[o.Entity.Item], targets, day)...)

		// Calendar decomposition.
		values = append(values, calendarFeatures(day, b.cfg.Calendar)...)

		// Exogenous one-hot encodings joined by (date, region).
		values = append(values, b.exogenousFeatures(exoIdx, day, o.Region)...)

		frame.Rows = append(frame.Rows, Row{
			Entity: o.Entity,
			Date:   day,
			Target: o.Units,
			Values: values,
		})
	}

	return frame
}

// gatherWindow collects the entity's targets at days t-1 .. t-w, skipping
// missing days and missing targets.
func gatherWindow(targets map[time.Time]float64, day time.Time, w int) []float64 {
	window := make([]float64, 0, w)
	for off := 1; off <= w; off++ {
		if v, ok := targets[day.AddDate(0, 0, -off)]; ok && !math.IsNaN(v) {
			window = append(window, v)
		}
	}
	return window
}

// rollingStats returns mean, min, max, std of a window. An empty window
// yields the missing marker for all four; std needs at least two points.
func rollingStats(window []float64) []float64 {
	if len(window) == 0 {
		nan := math.NaN()
		return []float64{nan, nan, nan, nan}
	}
	mean := stat.Mean(window, nil)
	std := math.NaN()
	if len(window) > 1 {
		std = stat.StdDev(window, nil)
	}
	return []float64{mean, floats.Min(window), floats.Max(window), std}
}

// groupFeatures returns the rolling mean and sum of the group's daily totals
// (excluding the entity's own contribution) over days t-1 .. t-GroupWindow.
func (b *Builder) groupFeatures(group *groupSeries, own map[time.Time]float64, day time.Time) []float64 {
	var sum float64
	days := 0
	for off := 1; off <= b.cfg.GroupWindow; off++ {
		d := day.AddDate(0, 0, -off)
		ownV, ownPresent := own[d]
		if ownPresent && math.IsNaN(ownV) {
			ownPresent = false
		}
		if v, ok := group.otherAt(d, ownV, ownPresent); ok {
			sum += v
			days++
		}
	}
	if days == 0 {
		nan := math.NaN()
		return []float64{nan, nan}
	}
	return []float64{sum / float64(days), sum}
}

func (b *Builder) exogenousFeatures(exoIdx map[exogenousKey]ExogenousRecord, day time.Time, region string) []float64 {
	out := make([]float64, 0, len(b.cfg.WeatherLevels)+len(b.cfg.SeasonLevels))

	rec, ok := exoIdx[exogenousKey{date: day, region: region}]
	if !ok {
		// No side record: all exogenous columns carry the missing marker so
		// the training-split means fill them.
		for range b.cfg.WeatherLevels {
			out = append(out, math.NaN())
		}
		for range b.cfg.SeasonLevels {
			out = append(out, math.NaN())
		}
		return out
	}

	for _, lvl := range b.cfg.WeatherLevels {
		if rec.Weather == lvl {
			out = append(out, 1)
		} else {
			out = append(out, 0)
		}
	}
	season := rec.Season
	if season == "" {
		season = seasonOf(day)
	}
	for _, lvl := range b.cfg.SeasonLevels {
		if season == lvl {
			out = append(out, 1)
		} else {
			out = append(out, 0)
		}
	}
	return out
}

func countEntities(sorted []Observation) int {
	n := 0
	for i, o := range sorted {
		if i == 0 || o.Entity != sorted[i-1].Entity {
			n++
		}
	}
	return n
}
