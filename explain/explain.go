// Package explain turns raw per-row attributions from a trained ensemble
// into the summaries analysts read: a global importance ranking, binned
// dependence curves per feature, and attribution profiles aggregated by
// month and day of week.
package explain

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/demandcast/demandcast/gbt"
	"github.com/demandcast/demandcast/pkg/errors"
	"github.com/demandcast/demandcast/pkg/log"
	"github.com/demandcast/demandcast/timeseries"
)

// additivityTolerance bounds the allowed drift between the attribution sum
// and the model prediction per row.
const additivityTolerance = 1e-4

// dependenceBins is the number of equal-width bins per dependence curve.
const dependenceBins = 10

// Importance is one entry of the global ranking.
type Importance struct {
	Feature string  `json:"feature"`
	MeanAbs float64 `json:"mean_abs_contribution"`
}

// DependenceBin summarizes the contributions of rows whose feature value
// falls in [Low, High).
type DependenceBin struct {
	Low              float64 `json:"low"`
	High             float64 `json:"high"`
	Count            int     `json:"count"`
	MeanValue        float64 `json:"mean_value"`
	MeanContribution float64 `json:"mean_contribution"`
}

// TemporalBucket is the mean signed contribution per feature across the
// rows of one calendar bucket.
type TemporalBucket struct {
	Label         string             `json:"label"`
	Count         int                `json:"count"`
	Contributions map[string]float64 `json:"contributions"`
}

// Summary is the full explanation artifact for one feature frame.
type Summary struct {
	BaseValue   float64                    `json:"base_value"`
	Rows        int                        `json:"rows"`
	Importance  []Importance               `json:"importance"`
	Dependence  map[string][]DependenceBin `json:"dependence"`
	ByMonth     []TemporalBucket           `json:"by_month"`
	ByDayOfWeek []TemporalBucket           `json:"by_day_of_week"`
}

// Explainer computes attribution summaries for one trained model.
type Explainer struct {
	model *gbt.Model
}

// New returns an explainer for a fitted model.
func New(model *gbt.Model) (*Explainer, error) {
	if model == nil || !model.IsFitted() {
		return nil, errors.NewNotFittedError("explain.Explainer", "New")
	}
	return &Explainer{model: model}, nil
}

// Explain attributes every row of the frame and aggregates. The frame's
// feature schema must match the model's exactly; a mismatch is fatal, since
// attributions against the wrong columns would be silently wrong.
func (e *Explainer) Explain(frame *timeseries.Frame) (*Summary, error) {
	if err := frame.ValidateSchema("explain.Explain", e.model.FeatureNames); err != nil {
		return nil, err
	}
	if frame.Len() == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, "explain: empty frame")
	}

	X := frame.Matrix()
	attr, err := e.model.Contributions(X)
	if err != nil {
		return nil, err
	}
	preds, err := e.model.Predict(X)
	if err != nil {
		return nil, err
	}
	if err := checkAdditivity(attr, preds); err != nil {
		return nil, err
	}

	logger := log.GetLoggerWithName("explain")
	logger.Debug("attributions computed",
		log.RowsKey, frame.Len(),
		log.FeaturesKey, len(attr.FeatureNames),
	)

	return &Summary{
		BaseValue:   attr.BaseValue,
		Rows:        frame.Len(),
		Importance:  rankImportance(attr),
		Dependence:  dependenceCurves(X, attr),
		ByMonth:     temporalBuckets(frame, attr, monthLabel),
		ByDayOfWeek: temporalBuckets(frame, attr, dayOfWeekLabel),
	}, nil
}

// checkAdditivity verifies that base value plus contributions reproduces
// each prediction.
func checkAdditivity(attr *gbt.Attribution, preds *mat.Dense) error {
	rows, cols := attr.Values.Dims()
	for i := 0; i < rows; i++ {
		sum := attr.BaseValue
		for j := 0; j < cols; j++ {
			sum += attr.Values.At(i, j)
		}
		if math.Abs(sum-preds.At(i, 0)) > additivityTolerance {
			return errors.NewValueError("explain.checkAdditivity",
				"attribution sum does not reproduce the prediction")
		}
	}
	return nil
}

// rankImportance sorts features by mean absolute contribution, descending,
// ties broken by feature name for stable output.
func rankImportance(attr *gbt.Attribution) []Importance {
	rows, cols := attr.Values.Dims()
	out := make([]Importance, cols)
	for j := 0; j < cols; j++ {
		var sum float64
		for i := 0; i < rows; i++ {
			sum += math.Abs(attr.Values.At(i, j))
		}
		out[j] = Importance{
			Feature: attr.FeatureNames[j],
			MeanAbs: sum / float64(rows),
		}
	}
	sort.Slice(out, func(a, b int) bool {
		if out[a].MeanAbs != out[b].MeanAbs {
			return out[a].MeanAbs > out[b].MeanAbs
		}
		return out[a].Feature < out[b].Feature
	})
	return out
}

// dependenceCurves bins each feature's observed values into equal-width
// intervals and records the mean contribution per bin. Rows where the
// feature is NaN are skipped; a feature that is NaN everywhere or constant
// gets a single bin.
func dependenceCurves(X mat.Matrix, attr *gbt.Attribution) map[string][]DependenceBin {
	rows, cols := X.Dims()
	curves := make(map[string][]DependenceBin, cols)

	for j := 0; j < cols; j++ {
		lo, hi := math.Inf(1), math.Inf(-1)
		for i := 0; i < rows; i++ {
			v := X.At(i, j)
			if math.IsNaN(v) {
				continue
			}
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
		if math.IsInf(lo, 1) {
			continue
		}

		nBins := dependenceBins
		if lo == hi {
			nBins = 1
		}
		width := (hi - lo) / float64(nBins)
		type acc struct {
			count      int
			valueSum   float64
			contribSum float64
		}
		accs := make([]acc, nBins)
		for i := 0; i < rows; i++ {
			v := X.At(i, j)
			if math.IsNaN(v) {
				continue
			}
			b := nBins - 1
			if width > 0 {
				b = int((v - lo) / width)
				if b >= nBins {
					b = nBins - 1
				}
			} else {
				b = 0
			}
			accs[b].count++
			accs[b].valueSum += v
			accs[b].contribSum += attr.Values.At(i, j)
		}

		bins := make([]DependenceBin, 0, nBins)
		for b, a := range accs {
			if a.count == 0 {
				continue
			}
			bins = append(bins, DependenceBin{
				Low:              lo + float64(b)*width,
				High:             lo + float64(b+1)*width,
				Count:            a.count,
				MeanValue:        a.valueSum / float64(a.count),
				MeanContribution: a.contribSum / float64(a.count),
			})
		}
		curves[attr.FeatureNames[j]] = bins
	}
	return curves
}

func monthLabel(r timeseries.Row) string {
	return r.Date.Month().String()
}

func dayOfWeekLabel(r timeseries.Row) string {
	return r.Date.Weekday().String()
}

// temporalBuckets groups rows by a calendar label and averages the signed
// contribution of each feature within the group. Buckets come back in
// chronological label order (first occurrence in the date-sorted frame).
func temporalBuckets(frame *timeseries.Frame, attr *gbt.Attribution, label func(timeseries.Row) string) []TemporalBucket {
	_, cols := attr.Values.Dims()

	type acc struct {
		count int
		sums  []float64
	}
	order := make([]string, 0, 12)
	groups := make(map[string]*acc)

	for i, row := range frame.Rows {
		key := label(row)
		g, ok := groups[key]
		if !ok {
			g = &acc{sums: make([]float64, cols)}
			groups[key] = g
			order = append(order, key)
		}
		g.count++
		for j := 0; j < cols; j++ {
			g.sums[j] += attr.Values.At(i, j)
		}
	}

	out := make([]TemporalBucket, 0, len(order))
	for _, key := range order {
		g := groups[key]
		contribs := make(map[string]float64, cols)
		for j := 0; j < cols; j++ {
			contribs[attr.FeatureNames[j]] = g.sums[j] / float64(g.count)
		}
		out = append(out, TemporalBucket{
			Label:         key,
			Count:         g.count,
			Contributions: contribs,
		})
	}
	return out
}
