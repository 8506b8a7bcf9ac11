package forecast

import (
	"context"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/demandcast/demandcast/explain"
	"github.com/demandcast/demandcast/metrics"
	"github.com/demandcast/demandcast/pkg/errors"
	"github.com/demandcast/demandcast/pkg/log"
	"github.com/demandcast/demandcast/search"
	"github.com/demandcast/demandcast/split"
	"github.com/demandcast/demandcast/timeseries"
)

// Pipeline runs the full training sequence: feature construction,
// training-range statistics, walk-forward planning, hyperparameter search,
// final fit with early stopping, held-out evaluation, attribution, and
// artifact assembly.
type Pipeline struct {
	cfg Config
	cal timeseries.HolidayCalendar
}

// NewPipeline validates the configuration and returns a pipeline.
func NewPipeline(cfg Config) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Pipeline{cfg: cfg}, nil
}

// WithCalendar sets the holiday calendar used by the feature builder.
func (p *Pipeline) WithCalendar(cal timeseries.HolidayCalendar) *Pipeline {
	p.cal = cal
	return p
}

// Run trains on the observations and returns the artifact. The walk-forward
// holdout is carved from the end of the timeline and is never seen during
// feature statistics, search, or the final fit.
func (p *Pipeline) Run(ctx context.Context, obs []timeseries.Observation, exo []timeseries.ExogenousRecord) (*Artifact, error) {
	runID := newRunID()
	logger := log.GetLoggerWithName("forecast.pipeline").With(log.RunIDKey, runID)

	builder, err := timeseries.NewBuilder(p.cfg.builderConfig(p.cal))
	if err != nil {
		return nil, err
	}
	frame, err := builder.Build(obs, exo)
	if err != nil {
		return nil, err
	}
	logger.Info("features built",
		log.RowsKey, frame.Len(),
		log.FeaturesKey, len(frame.FeatureNames),
	)

	index := make([]time.Time, 0, frame.Len())
	for _, row := range frame.Rows {
		index = append(index, row.Date)
	}
	plan, err := split.NewPlanner(p.cfg.Split.Folds, p.cfg.Split.HoldoutDays).Plan(index)
	if err != nil {
		return nil, err
	}

	// The last fold's training range is the largest span that ends before
	// every validation block and the holdout. Statistics for the final fit
	// are computed there, so no imputation value depends on rows the model
	// is later scored on.
	lastFold := plan.Folds[len(plan.Folds)-1]

	stats, err := timeseries.ComputeTrainingStats(frame, lastFold.Train.Start, lastFold.Train.End)
	if err != nil {
		return nil, err
	}
	applied, err := stats.Apply(frame)
	if err != nil {
		return nil, err
	}

	var (
		best      *search.Trial
		trials    []search.Trial
		regressor Regressor
	)
	switch p.cfg.Model {
	case ModelBaseline:
		regressor = newBaselineRegressor()
		if err := regressor.Fit(applied.Between(lastFold.Train.Start, lastFold.Train.End), nil); err != nil {
			return nil, err
		}
	default:
		result, err := p.searchParams(ctx, frame, plan)
		if err != nil {
			return nil, err
		}
		best, trials = &result.Best, result.Trials
		logger.Info("search selected configuration",
			log.TrialKey, best.ID,
			log.ScoreKey, best.Score,
		)

		reg := newGBTRegressor(p.cfg.params(best.Config, p.cfg.Search.Seed))
		train := applied.Between(lastFold.Train.Start, lastFold.Train.End)
		validation := applied.Between(lastFold.Validation.Start, lastFold.Validation.End)
		if err := reg.Fit(train, validation); err != nil {
			return nil, err
		}
		regressor = reg
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, "forecast: cancelled")
	}

	evalRange := lastFold.Validation
	if plan.HasHoldout() {
		evalRange = plan.Holdout
	}
	report, err := p.evaluate(regressor, applied, evalRange)
	if err != nil {
		return nil, err
	}
	logger.Info("holdout evaluation",
		"mae", report.MAE,
		"rmse", report.RMSE,
		"wape", report.WAPE,
	)

	artifact := &Artifact{
		RunID:     runID,
		CreatedAt: time.Now().UTC(),
		Config:    p.cfg,
		Metrics:   report,
		BestTrial: best,
		Trials:    trials,
		Stats:     stats,
	}

	if gr, ok := regressor.(*gbtRegressor); ok {
		model, err := gr.Model()
		if err != nil {
			return nil, err
		}
		artifact.Model = model

		explainer, err := explain.New(model)
		if err != nil {
			return nil, err
		}
		summary, err := explainer.Explain(applied.Between(lastFold.Train.Start, lastFold.Train.End))
		if err != nil {
			return nil, err
		}
		artifact.Attribution = summary
	}
	return artifact, nil
}

// searchParams runs the hyperparameter trials over the walk-forward folds.
// Each trial trains on a fold's past and scores RMSE on its future block.
// Every fold carries its own statistics, fitted on that fold's training
// range alone, so imputation never reflects the block a trial is scored on.
func (p *Pipeline) searchParams(ctx context.Context, frame *timeseries.Frame, plan *split.Plan) (*search.Result, error) {
	type foldFrames struct {
		train      *timeseries.Frame
		validation *timeseries.Frame
	}
	folds := make([]foldFrames, len(plan.Folds))
	for i, f := range plan.Folds {
		stats, err := timeseries.ComputeTrainingStats(frame, f.Train.Start, f.Train.End)
		if err != nil {
			return nil, err
		}
		applied, err := stats.Apply(frame)
		if err != nil {
			return nil, err
		}
		folds[i] = foldFrames{
			train:      applied.Between(f.Train.Start, f.Train.End),
			validation: applied.Between(f.Validation.Start, f.Validation.End),
		}
	}

	objective := func(trial int, cfg search.Config, fold int) (float64, error) {
		f := folds[fold]
		if f.train.Len() == 0 || f.validation.Len() == 0 {
			return 0, errors.Wrapf(errors.ErrEmptyData, "fold %d", fold)
		}

		reg := newGBTRegressor(p.cfg.params(cfg, p.cfg.Search.Seed+int64(trial)))
		if err := reg.Fit(f.train, f.validation); err != nil {
			return 0, err
		}
		preds, err := reg.Predict(f.validation)
		if err != nil {
			return 0, err
		}
		return metrics.RMSE(columnVec(f.validation.Targets()), columnVec(preds))
	}

	s, err := search.New(search.DefaultSpace(), len(plan.Folds), objective, search.Options{
		Budget:  p.cfg.Search.Budget,
		Workers: p.cfg.Search.Workers,
		Seed:    p.cfg.Search.Seed,
	})
	if err != nil {
		return nil, err
	}
	return s.Run(ctx)
}

// evaluate scores the regressor on one date range of the frame.
func (p *Pipeline) evaluate(r Regressor, applied *timeseries.Frame, rng split.Range) (*metrics.Report, error) {
	eval := applied.Between(rng.Start, rng.End)
	if eval.Len() == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, "forecast: empty evaluation range")
	}
	preds, err := r.Predict(eval)
	if err != nil {
		return nil, err
	}
	return metrics.Evaluate(columnVec(eval.Targets()), columnVec(preds))
}

func columnVec(m *mat.Dense) *mat.VecDense {
	rows, _ := m.Dims()
	v := mat.NewVecDense(rows, nil)
	for i := 0; i < rows; i++ {
		v.SetVec(i, m.At(i, 0))
	}
	return v
}
