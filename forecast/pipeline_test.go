package forecast

import (
	"context"
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/demandcast/demandcast/pkg/errors"
	"github.com/demandcast/demandcast/timeseries"
)

func day(n int) time.Time {
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n-1)
}

// retailFixture builds two items in one store with weekly seasonality over
// 60 days, plus exogenous weather for the shared region.
func retailFixture() ([]timeseries.Observation, []timeseries.ExogenousRecord) {
	entities := []timeseries.EntityKey{
		{Store: "s1", Item: "i1"},
		{Store: "s1", Item: "i2"},
	}
	var obs []timeseries.Observation
	for _, e := range entities {
		for n := 1; n <= 60; n++ {
			units := 10 + float64(n%7)
			if e.Item == "i2" {
				units = 20 + 2*float64(n%7)
			}
			obs = append(obs, timeseries.Observation{
				Entity: e,
				Date:   day(n),
				Units:  units,
				Region: "north",
			})
		}
	}
	var exo []timeseries.ExogenousRecord
	for n := 1; n <= 61; n++ {
		weather := "sunny"
		if n%3 == 0 {
			weather = "rain"
		}
		exo = append(exo, timeseries.ExogenousRecord{
			Date:    day(n),
			Region:  "north",
			Weather: weather,
		})
	}
	return obs, exo
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Features.Lags = []int{1, 7}
	cfg.Features.RollingWindows = []int{7}
	cfg.Features.EWMAAlphas = []float64{0.5}
	cfg.Features.GroupWindow = 7
	cfg.Split.Folds = 2
	cfg.Split.HoldoutDays = 10
	cfg.Search.Budget = 2
	cfg.Search.Workers = 1
	cfg.Training.NumIterations = 30
	cfg.Training.EarlyStoppingRounds = 10
	return cfg
}

func silenceWarnings(t *testing.T) {
	t.Helper()
	errors.SetWarningHandler(func(error) {})
	t.Cleanup(func() { errors.SetWarningHandler(nil) })
}

func TestPipelineEndToEnd(t *testing.T) {
	silenceWarnings(t)
	obs, exo := retailFixture()

	pipeline, err := NewPipeline(testConfig())
	if err != nil {
		t.Fatalf("NewPipeline() error = %v", err)
	}
	artifact, err := pipeline.Run(context.Background(), obs, exo)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if artifact.RunID == "" {
		t.Error("artifact has no run ID")
	}
	if artifact.Model == nil || !artifact.Model.IsFitted() {
		t.Fatal("artifact carries no fitted model")
	}
	if artifact.Stats == nil {
		t.Fatal("artifact carries no training statistics")
	}
	if artifact.Metrics == nil {
		t.Fatal("artifact carries no evaluation report")
	}
	if math.IsNaN(artifact.Metrics.RMSE) || math.IsInf(artifact.Metrics.RMSE, 0) {
		t.Errorf("holdout RMSE = %v, want finite", artifact.Metrics.RMSE)
	}
	if artifact.BestTrial == nil {
		t.Fatal("artifact records no best trial")
	}
	if len(artifact.Trials) != 2 {
		t.Errorf("trials = %d, want the full budget of 2", len(artifact.Trials))
	}
	if artifact.Attribution == nil {
		t.Fatal("artifact carries no attribution summary")
	}
	if len(artifact.Attribution.Importance) == 0 {
		t.Error("attribution summary has no importance ranking")
	}
}

func TestPipelineBaseline(t *testing.T) {
	silenceWarnings(t)
	obs, exo := retailFixture()

	cfg := testConfig()
	cfg.Model = ModelBaseline
	pipeline, err := NewPipeline(cfg)
	if err != nil {
		t.Fatalf("NewPipeline() error = %v", err)
	}
	artifact, err := pipeline.Run(context.Background(), obs, exo)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if artifact.Model != nil {
		t.Error("baseline artifact should carry no tree model")
	}
	if artifact.BestTrial != nil {
		t.Error("baseline run should not record search trials")
	}
	if artifact.Metrics == nil {
		t.Fatal("baseline artifact carries no evaluation report")
	}
	// With clean weekly seasonality the seasonal-naive baseline is exact on
	// the holdout.
	if artifact.Metrics.MAE > 1e-9 {
		t.Errorf("baseline MAE = %v, want 0 on perfectly seasonal data", artifact.Metrics.MAE)
	}
}

func TestPipelineStatsIgnoreValidationRows(t *testing.T) {
	silenceWarnings(t)
	cfg := testConfig()
	cfg.Model = ModelBaseline

	run := func(obs []timeseries.Observation, exo []timeseries.ExogenousRecord) *timeseries.TrainingStats {
		t.Helper()
		pipeline, err := NewPipeline(cfg)
		if err != nil {
			t.Fatalf("NewPipeline() error = %v", err)
		}
		artifact, err := pipeline.Run(context.Background(), obs, exo)
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		return artifact.Stats
	}

	obs, exo := retailFixture()
	before := run(obs, exo)

	// With 2 folds over 60 days and a 10-day holdout, the last fold trains
	// on days 1-34 and validates on days 35-50. Rewriting day 42 changes
	// validation rows only, so the persisted statistics must not move.
	obs, exo = retailFixture()
	for i := range obs {
		if obs[i].Date.Equal(day(42)) {
			obs[i].Units *= 50
		}
	}
	after := run(obs, exo)

	if !reflect.DeepEqual(before, after) {
		t.Errorf("persisted statistics changed after perturbing validation-only rows:\nbefore means %v\nafter means  %v",
			before.Means, after.Means)
	}
}

func TestArtifactRoundTrip(t *testing.T) {
	silenceWarnings(t)
	obs, exo := retailFixture()

	pipeline, err := NewPipeline(testConfig())
	if err != nil {
		t.Fatalf("NewPipeline() error = %v", err)
	}
	artifact, err := pipeline.Run(context.Background(), obs, exo)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	dir := t.TempDir()
	if err := artifact.Save(dir); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	loaded, err := LoadArtifact(dir)
	if err != nil {
		t.Fatalf("LoadArtifact() error = %v", err)
	}

	if loaded.RunID != artifact.RunID {
		t.Errorf("run ID = %q, want %q", loaded.RunID, artifact.RunID)
	}
	if loaded.Model == nil {
		t.Fatal("loaded artifact has no model")
	}
	if len(loaded.Model.FeatureNames) != len(artifact.Model.FeatureNames) {
		t.Error("model schema changed across serialization")
	}
	if loaded.Stats == nil || len(loaded.Stats.Means) != len(artifact.Stats.Means) {
		t.Error("training statistics changed across serialization")
	}
	if loaded.Metrics == nil || loaded.Metrics.RMSE != artifact.Metrics.RMSE {
		t.Error("evaluation report changed across serialization")
	}
	if loaded.Attribution == nil {
		t.Error("attribution summary missing after load")
	}
	if loaded.Config.Split.Folds != artifact.Config.Split.Folds {
		t.Error("config changed across serialization")
	}
}

func TestPredictorForecast(t *testing.T) {
	silenceWarnings(t)
	obs, exo := retailFixture()

	pipeline, err := NewPipeline(testConfig())
	if err != nil {
		t.Fatalf("NewPipeline() error = %v", err)
	}
	artifact, err := pipeline.Run(context.Background(), obs, exo)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	dir := t.TempDir()
	if err := artifact.Save(dir); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	loaded, err := LoadArtifact(dir)
	if err != nil {
		t.Fatalf("LoadArtifact() error = %v", err)
	}

	predictor, err := NewPredictor(loaded)
	if err != nil {
		t.Fatalf("NewPredictor() error = %v", err)
	}
	queries := []timeseries.Query{
		{Entity: timeseries.EntityKey{Store: "s1", Item: "i1"}, Date: day(61), Region: "north"},
		{Entity: timeseries.EntityKey{Store: "s1", Item: "i2"}, Date: day(61), Region: "north"},
	}
	preds, err := predictor.Forecast(obs, queries, exo)
	if err != nil {
		t.Fatalf("Forecast() error = %v", err)
	}

	if len(preds) != len(queries) {
		t.Fatalf("predictions = %d, want %d", len(preds), len(queries))
	}
	for _, p := range preds {
		if !p.Date.Equal(day(61)) {
			t.Errorf("prediction date = %v, want day 61", p.Date)
		}
		if math.IsNaN(p.Units) || math.IsInf(p.Units, 0) {
			t.Errorf("prediction for %s = %v, want finite", p.Entity, p.Units)
		}
	}
}

func TestPredictorRequiresModel(t *testing.T) {
	a := &Artifact{Config: DefaultConfig(), Stats: &timeseries.TrainingStats{}}
	if _, err := NewPredictor(a); err == nil {
		t.Error("NewPredictor() without model: expected error")
	}
}

func TestPredictorNoQueries(t *testing.T) {
	silenceWarnings(t)
	obs, exo := retailFixture()
	pipeline, err := NewPipeline(testConfig())
	if err != nil {
		t.Fatalf("NewPipeline() error = %v", err)
	}
	artifact, err := pipeline.Run(context.Background(), obs, exo)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	predictor, err := NewPredictor(artifact)
	if err != nil {
		t.Fatalf("NewPredictor() error = %v", err)
	}
	if _, err := predictor.Forecast(obs, nil, exo); err == nil {
		t.Error("Forecast() with no queries: expected error")
	}
}
