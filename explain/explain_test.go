package explain

import (
	"testing"
	"time"

	"github.com/demandcast/demandcast/gbt"
	"github.com/demandcast/demandcast/pkg/errors"
	"github.com/demandcast/demandcast/timeseries"
)

func day(n int) time.Time {
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n-1)
}

// trainedFixture returns a frame spanning two months and a model fitted on
// it. Only the "demand_signal" feature carries information.
func trainedFixture(t *testing.T) (*gbt.Model, *timeseries.Frame) {
	t.Helper()
	entity := timeseries.EntityKey{Store: "s1", Item: "i1"}

	frame := &timeseries.Frame{
		FeatureNames: []string{"demand_signal", "flat"},
	}
	for n := 1; n <= 60; n++ {
		signal := float64(n % 7)
		frame.Rows = append(frame.Rows, timeseries.Row{
			Entity: entity,
			Date:   day(n),
			Target: 4 * signal,
			Values: []float64{signal, 1.0},
		})
	}

	trainer := gbt.NewTrainer(gbt.Params{
		NumIterations: 40,
		LearningRate:  0.1,
		NumLeaves:     7,
		MinDataInLeaf: 2,
		Lambda:        1.0,
		Seed:          7,
	}).WithFeatureNames(frame.FeatureNames)
	if err := trainer.Fit(frame.Matrix(), frame.Targets()); err != nil {
		t.Fatalf("Fit() error = %v", err)
	}
	model, err := trainer.Model()
	if err != nil {
		t.Fatalf("Model() error = %v", err)
	}
	return model, frame
}

func TestNewRequiresFittedModel(t *testing.T) {
	if _, err := New(&gbt.Model{}); err == nil {
		t.Fatal("New() on unfitted model: expected error")
	} else {
		var nf *errors.NotFittedError
		if !errors.As(err, &nf) {
			t.Errorf("error type = %T, want *NotFittedError", err)
		}
	}
}

func TestExplainSchemaMismatchIsFatal(t *testing.T) {
	model, frame := trainedFixture(t)
	explainer, err := New(model)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	wrong := &timeseries.Frame{
		FeatureNames: []string{"flat", "demand_signal"}, // reordered
		Rows:         frame.Rows,
	}
	_, err = explainer.Explain(wrong)
	if err == nil {
		t.Fatal("Explain() with reordered schema: expected error")
	}
	var se *errors.SchemaError
	if !errors.As(err, &se) {
		t.Errorf("error type = %T, want *SchemaError", err)
	}
}

func TestExplainRanking(t *testing.T) {
	model, frame := trainedFixture(t)
	explainer, err := New(model)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	summary, err := explainer.Explain(frame)
	if err != nil {
		t.Fatalf("Explain() error = %v", err)
	}

	if len(summary.Importance) != 2 {
		t.Fatalf("importance entries = %d, want 2", len(summary.Importance))
	}
	if summary.Importance[0].Feature != "demand_signal" {
		t.Errorf("top feature = %q, want demand_signal", summary.Importance[0].Feature)
	}
	if summary.Importance[0].MeanAbs == 0 {
		t.Error("signal feature has zero mean attribution")
	}
	if flat := summary.Importance[1]; flat.MeanAbs != 0 {
		t.Errorf("constant feature attribution = %v, want 0", flat.MeanAbs)
	}
}

func TestExplainTemporalAggregation(t *testing.T) {
	model, frame := trainedFixture(t)
	explainer, err := New(model)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	summary, err := explainer.Explain(frame)
	if err != nil {
		t.Fatalf("Explain() error = %v", err)
	}

	// 60 days from Jan 1 span January and February.
	if len(summary.ByMonth) != 2 {
		t.Fatalf("month buckets = %d, want 2", len(summary.ByMonth))
	}
	if summary.ByMonth[0].Label != "January" {
		t.Errorf("first month bucket = %q, want January", summary.ByMonth[0].Label)
	}
	if len(summary.ByDayOfWeek) != 7 {
		t.Fatalf("day-of-week buckets = %d, want 7", len(summary.ByDayOfWeek))
	}

	total := 0
	for _, b := range summary.ByMonth {
		total += b.Count
	}
	if total != frame.Len() {
		t.Errorf("month bucket counts sum to %d, want %d", total, frame.Len())
	}
	for _, b := range summary.ByDayOfWeek {
		if _, ok := b.Contributions["demand_signal"]; !ok {
			t.Errorf("bucket %q missing per-feature contributions", b.Label)
		}
	}
}

func TestExplainDependenceCurves(t *testing.T) {
	model, frame := trainedFixture(t)
	explainer, err := New(model)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	summary, err := explainer.Explain(frame)
	if err != nil {
		t.Fatalf("Explain() error = %v", err)
	}

	bins, ok := summary.Dependence["demand_signal"]
	if !ok || len(bins) == 0 {
		t.Fatal("no dependence curve for the signal feature")
	}
	count := 0
	for _, b := range bins {
		count += b.Count
	}
	if count != frame.Len() {
		t.Errorf("dependence bin counts sum to %d, want %d", count, frame.Len())
	}

	// Constant feature collapses to a single bin.
	if flat := summary.Dependence["flat"]; len(flat) != 1 {
		t.Errorf("constant feature bins = %d, want 1", len(flat))
	}
}

func TestExplainEmptyFrame(t *testing.T) {
	model, _ := trainedFixture(t)
	explainer, err := New(model)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	empty := &timeseries.Frame{FeatureNames: []string{"demand_signal", "flat"}}
	if _, err := explainer.Explain(empty); err == nil {
		t.Error("Explain() on empty frame: expected error")
	}
}
