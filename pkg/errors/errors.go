// Package errors provides the structured error and warning system used across
// the forecasting core. Fatal conditions (bad configuration, temporal leakage,
// schema mismatches) are expressed as typed errors carrying stack traces via
// cockroachdb/errors; recoverable conditions (an excluded fold, an undefined
// metric) are routed through the warning handler instead of aborting the run.
package errors

import (
	"fmt"
	"log"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

// ===========================================================================
//
//	Global warning handling
//
// ===========================================================================
var (
	warningMutex   sync.Mutex
	warningHandler = func(w error) {
		log.Printf("demandcast-warning: %v\n", w)
	}
	// zerolog sink, injected lazily to avoid an import cycle with pkg/log.
	zerologWarnFunc func(warning error)
)

// SetWarningHandler overrides how non-fatal warnings are reported.
//
// Example:
//
//	errors.SetWarningHandler(func(w error) {
//	    // swallow warnings in tests
//	})
func SetWarningHandler(handler func(w error)) {
	warningMutex.Lock()
	defer warningMutex.Unlock()
	warningHandler = handler
}

// SetZerologWarnFunc installs a zerolog-backed warning sink.
func SetZerologWarnFunc(warnFunc func(warning error)) {
	warningMutex.Lock()
	defer warningMutex.Unlock()
	zerologWarnFunc = warnFunc
}

// Warn reports a non-fatal condition. The structured sink wins when set.
func Warn(w error) {
	warningMutex.Lock()
	defer warningMutex.Unlock()

	if zerologWarnFunc != nil {
		zerologWarnFunc(w)
		return
	}

	if warningHandler != nil {
		warningHandler(w)
	}
}

// ===========================================================================
//
//	Fatal error types
//
// ===========================================================================

// ConfigurationError reports invalid split, search, or pipeline parameters.
type ConfigurationError struct {
	Component string
	Param     string
	Reason    string
	Value     interface{}
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("demandcast: %s: invalid configuration for '%s': %s (got: %v)",
		e.Component, e.Param, e.Reason, e.Value)
}

// MarshalZerologObject adds the structured configuration context to a zerolog event.
func (e *ConfigurationError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("component", e.Component).
		Str("param", e.Param).
		Str("reason", e.Reason).
		Interface("value", e.Value).
		Str("type", "ConfigurationError")
}

// NewConfigurationError creates a ConfigurationError with a stack trace attached.
func NewConfigurationError(component, param, reason string, value interface{}) error {
	err := &ConfigurationError{Component: component, Param: param, Reason: reason, Value: value}
	return errors.WithStack(err)
}

// LeakageError reports a feature definition that would reference data from
// the future of the row it is attached to. It is raised when the feature set
// is constructed, never after features have been silently computed.
type LeakageError struct {
	Feature string
	Reason  string
}

func (e *LeakageError) Error() string {
	return fmt.Sprintf("demandcast: feature '%s' would leak future information: %s", e.Feature, e.Reason)
}

// MarshalZerologObject adds the structured leakage context to a zerolog event.
func (e *LeakageError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("feature", e.Feature).
		Str("reason", e.Reason).
		Str("type", "LeakageError")
}

// NewLeakageError creates a LeakageError with a stack trace attached.
func NewLeakageError(feature, reason string) error {
	err := &LeakageError{Feature: feature, Reason: reason}
	return errors.WithStack(err)
}

// SchemaError reports a feature-set mismatch between a frame and the schema a
// model was trained with. Attribution depends on exact column order, so this
// is always fatal.
type SchemaError struct {
	Op       string
	Expected []string
	Got      []string
	Detail   string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("demandcast: %s: feature schema mismatch: %s (model has %d features, frame has %d)",
		e.Op, e.Detail, len(e.Expected), len(e.Got))
}

// MarshalZerologObject adds the structured schema context to a zerolog event.
func (e *SchemaError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Op).
		Int("expected_features", len(e.Expected)).
		Int("got_features", len(e.Got)).
		Str("detail", e.Detail).
		Str("type", "SchemaError")
}

// NewSchemaError creates a SchemaError with a stack trace attached.
func NewSchemaError(op string, expected, got []string, detail string) error {
	err := &SchemaError{Op: op, Expected: expected, Got: got, Detail: detail}
	return errors.WithStack(err)
}

// NotFittedError reports a Predict or Explain call on a model that has not
// been through a successful Fit.
type NotFittedError struct {
	ModelName string
	Method    string
}

func (e *NotFittedError) Error() string {
	return fmt.Sprintf("demandcast: %s: this model is not fitted yet. Call Fit() before using %s()", e.ModelName, e.Method)
}

// MarshalZerologObject adds the structured model context to a zerolog event.
func (e *NotFittedError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("model_name", e.ModelName).
		Str("method", e.Method).
		Str("type", "NotFittedError")
}

// NewNotFittedError creates a NotFittedError with a stack trace attached.
func NewNotFittedError(modelName, method string) error {
	err := &NotFittedError{ModelName: modelName, Method: method}
	return errors.WithStack(err)
}

// DimensionError reports input data whose shape differs from what an
// operation expects.
type DimensionError struct {
	Op       string
	Expected int
	Got      int
	Axis     int // 0 for rows, 1 for columns/features
}

func (e *DimensionError) Error() string {
	axisName := "features"
	if e.Axis == 0 {
		axisName = "rows"
	}
	return fmt.Sprintf("demandcast: %s: dimension mismatch on axis %d (%s). Expected %d, got %d", e.Op, e.Axis, axisName, e.Expected, e.Got)
}

// MarshalZerologObject adds the structured dimension context to a zerolog event.
func (e *DimensionError) MarshalZerologObject(event *zerolog.Event) {
	axisName := "features"
	if e.Axis == 0 {
		axisName = "rows"
	}
	event.Str("operation", e.Op).
		Int("expected", e.Expected).
		Int("got", e.Got).
		Int("axis", e.Axis).
		Str("axis_name", axisName).
		Str("type", "DimensionError")
}

// NewDimensionError creates a DimensionError with a stack trace attached.
func NewDimensionError(op string, expected, got, axis int) error {
	err := &DimensionError{Op: op, Expected: expected, Got: got, Axis: axis}
	return errors.WithStack(err)
}

// ValueError reports an argument whose value is invalid for the operation.
type ValueError struct {
	Op      string
	Message string
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("demandcast: %s: %s", e.Op, e.Message)
}

// NewValueError creates a ValueError with a stack trace attached.
func NewValueError(op, message string) error {
	err := &ValueError{Op: op, Message: message}
	return errors.WithStack(err)
}

// ===========================================================================
//
//	Warning types
//
// ===========================================================================

// TrialWarning reports a hyperparameter trial (or a single fold of one) that
// failed and was excluded from aggregation. The search continues; only a run
// where every trial fails becomes a fatal error.
type TrialWarning struct {
	Trial int
	Fold  int // -1 when the whole trial failed rather than a single fold
	Err   error
}

func (w *TrialWarning) Error() string {
	if w.Fold >= 0 {
		return fmt.Sprintf("trial %d: fold %d failed and was excluded from the trial average: %v", w.Trial, w.Fold, w.Err)
	}
	return fmt.Sprintf("trial %d failed and was excluded from the search: %v", w.Trial, w.Err)
}

func (w *TrialWarning) Unwrap() error {
	return w.Err
}

// MarshalZerologObject adds the structured trial context to a zerolog event.
func (w *TrialWarning) MarshalZerologObject(event *zerolog.Event) {
	event.Int("trial", w.Trial).
		Int("fold", w.Fold).
		AnErr("cause", w.Err).
		Str("type", "TrialWarning")
}

// NewTrialWarning creates a TrialWarning. Pass fold = -1 for whole-trial failures.
func NewTrialWarning(trial, fold int, err error) *TrialWarning {
	return &TrialWarning{Trial: trial, Fold: fold, Err: err}
}

// UndefinedMetricWarning reports a metric that is ill-defined on the given
// data and has been replaced by a defined fallback value, e.g. WAPE over a
// range with zero total actual sales.
type UndefinedMetricWarning struct {
	Metric    string
	Condition string
	Result    float64
}

func (w *UndefinedMetricWarning) Error() string {
	return fmt.Sprintf("'%s' is ill-defined and being set to %f due to %s.", w.Metric, w.Result, w.Condition)
}

// MarshalZerologObject adds the structured metric context to a zerolog event.
func (w *UndefinedMetricWarning) MarshalZerologObject(event *zerolog.Event) {
	event.Str("metric", w.Metric).
		Str("condition", w.Condition).
		Float64("result", w.Result).
		Str("type", "UndefinedMetricWarning")
}

// NewUndefinedMetricWarning creates an UndefinedMetricWarning.
func NewUndefinedMetricWarning(metric, condition string, result float64) *UndefinedMetricWarning {
	return &UndefinedMetricWarning{Metric: metric, Condition: condition, Result: result}
}

// ===========================================================================
//
//	cockroachdb/errors wrappers
//
// ===========================================================================

// Is reports whether err matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Wrap wraps an error with a message.
func Wrap(err error, message string) error {
	return errors.Wrap(err, message)
}

// Wrapf wraps an error with a format string.
func Wrapf(err error, format string, args ...interface{}) error {
	return errors.Wrapf(err, format, args...)
}

// New creates a new error.
func New(message string) error {
	return errors.New(message)
}

// Newf creates a new formatted error.
func Newf(format string, args ...interface{}) error {
	return errors.Newf(format, args...)
}

// WithStack attaches a stack trace to an error.
func WithStack(err error) error {
	return errors.WithStack(err)
}

// ===========================================================================
//
//	Common error variables
//
// ===========================================================================

var (
	// ErrEmptyData is returned when an operation receives no data.
	ErrEmptyData = New("empty data")

	// ErrAllTrialsFailed is returned when every trial in a hyperparameter
	// search failed and no configuration could be selected.
	ErrAllTrialsFailed = New("all trials failed")

	// ErrAllFoldsFailed is returned when every fold of a trial failed and no
	// validation score could be aggregated.
	ErrAllFoldsFailed = New("all folds failed")
)
