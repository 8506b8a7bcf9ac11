package forecast

import (
	"time"

	"github.com/demandcast/demandcast/gbt"
	"github.com/demandcast/demandcast/pkg/errors"
	"github.com/demandcast/demandcast/timeseries"
)

// Prediction is one scored query.
type Prediction struct {
	Entity timeseries.EntityKey `json:"entity"`
	Date   time.Time            `json:"date"`
	Units  float64              `json:"units"`
}

// Predictor scores future (store, item, date) queries using a saved
// artifact. Features are built from history alone, imputed with the
// statistics frozen at training time, and fed to the trained model, so
// inference sees exactly the schema and fill values training saw.
type Predictor struct {
	builder *timeseries.Builder
	stats   *timeseries.TrainingStats
	model   *gbt.Model
}

// NewPredictor builds the inference path from an artifact. The artifact
// must carry a trained model; baseline-only artifacts hold no serialized
// model to score with.
func NewPredictor(a *Artifact) (*Predictor, error) {
	return NewPredictorWithCalendar(a, nil)
}

// NewPredictorWithCalendar is NewPredictor with the holiday calendar that
// was used at training time. Passing a different calendar silently shifts
// the is_holiday feature, so callers persist and reuse the same one.
func NewPredictorWithCalendar(a *Artifact, cal timeseries.HolidayCalendar) (*Predictor, error) {
	if a.Model == nil || !a.Model.IsFitted() {
		return nil, errors.NewNotFittedError("forecast.Predictor", "NewPredictor")
	}
	if a.Stats == nil {
		return nil, errors.NewValueError("forecast.NewPredictor", "artifact has no training statistics")
	}
	builder, err := timeseries.NewBuilder(a.Config.builderConfig(cal))
	if err != nil {
		return nil, err
	}
	return &Predictor{
		builder: builder,
		stats:   a.Stats,
		model:   a.Model,
	}, nil
}

// Forecast scores the queries. History must contain the observations the
// lag and rolling features need; queries reaching beyond the available
// history degrade to the training-mean fill rather than failing.
func (p *Predictor) Forecast(history []timeseries.Observation, queries []timeseries.Query, exo []timeseries.ExogenousRecord) ([]Prediction, error) {
	if len(queries) == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, "forecast: no queries")
	}

	frame, err := p.builder.BuildInferenceRows(history, queries, exo)
	if err != nil {
		return nil, err
	}
	applied, err := p.stats.Apply(frame)
	if err != nil {
		return nil, err
	}
	if err := applied.ValidateSchema("forecast.Predictor.Forecast", p.model.FeatureNames); err != nil {
		return nil, err
	}

	preds, err := p.model.Predict(applied.Matrix())
	if err != nil {
		return nil, err
	}

	out := make([]Prediction, applied.Len())
	for i, row := range applied.Rows {
		out[i] = Prediction{
			Entity: row.Entity,
			Date:   row.Date,
			Units:  preds.At(i, 0),
		}
	}
	return out, nil
}
