// Package demandcast is a leakage-safe demand forecasting library for daily
// retail sales, built around gradient-boosted trees.
//
// The library covers the full train-to-inference path:
//
//   - timeseries: temporal feature construction (lags, rolling windows,
//     exponentially weighted averages, cross-entity aggregates, calendar and
//     exogenous encodings) where every feature at time t is a function of
//     data strictly before t, and training-split statistics for imputation
//     and outlier capping
//   - split: walk-forward train/validation planning with a final disjoint
//     holdout block
//   - gbt: the boosted-tree trainer and model, with validation-based early
//     stopping and exactly additive per-feature prediction attributions
//   - search: Parzen-estimator hyperparameter search over the walk-forward
//     folds on a bounded worker pool
//   - metrics: MAE, RMSE and WAPE evaluation
//   - explain: attribution summaries (importance ranking, dependence curves,
//     calendar aggregation)
//   - forecast: pipeline orchestration, the on-disk artifact bundle, and the
//     inference path that scores future (store, item, date) queries
//
// # Quick start
//
//	cfg := forecast.DefaultConfig()
//	pipeline, err := forecast.NewPipeline(cfg)
//	if err != nil {
//		return err
//	}
//	artifact, err := pipeline.Run(ctx, observations, exogenous)
//	if err != nil {
//		return err
//	}
//	if err := artifact.Save("artifacts/run"); err != nil {
//		return err
//	}
//
//	predictor, err := forecast.NewPredictor(artifact)
//	if err != nil {
//		return err
//	}
//	preds, err := predictor.Forecast(history, queries, exogenous)
package demandcast
