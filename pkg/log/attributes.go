package log

// Standard attribute keys used across the pipeline. The hierarchical naming
// (component.key) keeps log streams filterable per pipeline stage.
const (
	// ComponentKey identifies which package emitted the record.
	// Examples: "timeseries.builder", "search", "forecast.pipeline"
	ComponentKey = "ml.component"

	// OperationKey specifies the operation being performed.
	// Standard values: "fit", "predict", "explain", "build_features", "split"
	OperationKey = "ml.operation"

	// RunIDKey carries the pipeline run identifier the record belongs to.
	RunIDKey = "run.id"
)

// Data shape attributes.
const (
	// RowsKey is the number of feature rows being processed.
	RowsKey = "data.rows"

	// FeaturesKey is the number of feature columns.
	FeaturesKey = "data.features"

	// EntitiesKey is the number of distinct (store, item) series.
	EntitiesKey = "data.entities"
)

// Training and search attributes.
const (
	// FoldKey is the walk-forward fold index.
	FoldKey = "cv.fold"

	// TrialKey is the hyperparameter trial index.
	TrialKey = "search.trial"

	// IterationKey is the boosting iteration.
	IterationKey = "train.iteration"

	// ScoreKey is a validation score (lower is better for loss metrics).
	ScoreKey = "eval.score"

	// DurationMsKey is elapsed wall time in milliseconds.
	DurationMsKey = "duration.ms"
)
