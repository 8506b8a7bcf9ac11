package forecast

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/demandcast/demandcast/gbt"
	"github.com/demandcast/demandcast/pkg/errors"
	"github.com/demandcast/demandcast/timeseries"
)

// Regressor is the capability the pipeline needs from a model: fit on a
// training frame with an optional validation frame for early stopping, then
// predict targets for feature rows.
type Regressor interface {
	Fit(train, validation *timeseries.Frame) error
	Predict(frame *timeseries.Frame) (*mat.Dense, error)
}

// gbtRegressor adapts the boosted-tree trainer to the Regressor surface.
type gbtRegressor struct {
	params gbt.Params
	model  *gbt.Model
}

func newGBTRegressor(params gbt.Params) *gbtRegressor {
	return &gbtRegressor{params: params}
}

func (r *gbtRegressor) Fit(train, validation *timeseries.Frame) error {
	trainer := gbt.NewTrainer(r.params).WithFeatureNames(train.FeatureNames)
	var val *gbt.ValidationData
	if validation != nil && validation.Len() > 0 {
		val = &gbt.ValidationData{X: validation.Matrix(), Y: validation.Targets()}
	}
	if err := trainer.FitWithValidation(train.Matrix(), train.Targets(), val); err != nil {
		return err
	}
	model, err := trainer.Model()
	if err != nil {
		return err
	}
	r.model = model
	return nil
}

func (r *gbtRegressor) Predict(frame *timeseries.Frame) (*mat.Dense, error) {
	if r.model == nil {
		return nil, errors.NewNotFittedError("forecast.gbtRegressor", "Predict")
	}
	if err := frame.ValidateSchema("forecast.gbtRegressor.Predict", r.model.FeatureNames); err != nil {
		return nil, err
	}
	return r.model.Predict(frame.Matrix())
}

// Model returns the trained ensemble.
func (r *gbtRegressor) Model() (*gbt.Model, error) {
	if r.model == nil {
		return nil, errors.NewNotFittedError("forecast.gbtRegressor", "Model")
	}
	return r.model, nil
}

// baselineRegressor is the sanity-check model: last week's demand where the
// lag features carry it, the smoothed level where they do not, and the
// training mean as the final fallback. It gives the evaluation report a
// floor any trained model has to beat.
type baselineRegressor struct {
	featureNames []string
	lagCols      []int
	ewmaCol      int
	mean         float64
	fitted       bool
}

func newBaselineRegressor() *baselineRegressor {
	return &baselineRegressor{}
}

func (r *baselineRegressor) Fit(train, _ *timeseries.Frame) error {
	if train.Len() == 0 {
		return errors.Wrap(errors.ErrEmptyData, "forecast: baseline fit")
	}
	r.featureNames = append([]string(nil), train.FeatureNames...)

	// Seasonal naive first, shortest lag as backup.
	r.lagCols = nil
	for _, name := range []string{"lag_7", "lag_1"} {
		if idx := train.FeatureIndex(name); idx >= 0 {
			r.lagCols = append(r.lagCols, idx)
		}
	}
	r.ewmaCol = -1
	for idx, name := range train.FeatureNames {
		if len(name) > 5 && name[:5] == "ewma_" {
			r.ewmaCol = idx
			break
		}
	}

	targets := make([]float64, 0, train.Len())
	for _, row := range train.Rows {
		if !math.IsNaN(row.Target) {
			targets = append(targets, row.Target)
		}
	}
	if len(targets) == 0 {
		return errors.Wrap(errors.ErrEmptyData, "forecast: baseline fit, all targets missing")
	}
	r.mean = stat.Mean(targets, nil)
	r.fitted = true
	return nil
}

func (r *baselineRegressor) Predict(frame *timeseries.Frame) (*mat.Dense, error) {
	if !r.fitted {
		return nil, errors.NewNotFittedError("forecast.baselineRegressor", "Predict")
	}
	if err := frame.ValidateSchema("forecast.baselineRegressor.Predict", r.featureNames); err != nil {
		return nil, err
	}

	out := mat.NewDense(frame.Len(), 1, nil)
	for i, row := range frame.Rows {
		out.Set(i, 0, r.predictRow(row))
	}
	return out, nil
}

func (r *baselineRegressor) predictRow(row timeseries.Row) float64 {
	for _, col := range r.lagCols {
		if v := row.Values[col]; !math.IsNaN(v) {
			return v
		}
	}
	if r.ewmaCol >= 0 {
		if v := row.Values[r.ewmaCol]; !math.IsNaN(v) {
			return v
		}
	}
	return r.mean
}
