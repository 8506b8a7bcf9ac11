// Package metrics computes the forecast accuracy measures reported by the
// pipeline. All metrics are evaluated on held-out ranges disjoint from
// training data; the package itself is agnostic to where the values came
// from.
package metrics

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/demandcast/demandcast/pkg/errors"
)

// Report is the scalar accuracy record for one evaluation range.
type Report struct {
	MAE  float64 `json:"mae"`
	RMSE float64 `json:"rmse"`
	WAPE float64 `json:"wape"`
}

// MAE computes the mean absolute error.
func MAE(yTrue, yPred *mat.VecDense) (float64, error) {
	n := yTrue.Len()
	if n == 0 {
		return 0, errors.NewValueError("MAE", "empty vector")
	}
	if yPred.Len() != n {
		return 0, errors.NewDimensionError("MAE", n, yPred.Len(), 0)
	}

	var sum float64
	for i := 0; i < n; i++ {
		sum += math.Abs(yTrue.AtVec(i) - yPred.AtVec(i))
	}
	return sum / float64(n), nil
}

// MSE computes the mean squared error.
func MSE(yTrue, yPred *mat.VecDense) (float64, error) {
	n := yTrue.Len()
	if n == 0 {
		return 0, errors.NewValueError("MSE", "empty vector")
	}
	if yPred.Len() != n {
		return 0, errors.NewDimensionError("MSE", n, yPred.Len(), 0)
	}

	var sum float64
	for i := 0; i < n; i++ {
		diff := yTrue.AtVec(i) - yPred.AtVec(i)
		sum += diff * diff
	}
	return sum / float64(n), nil
}

// RMSE computes the root mean squared error.
func RMSE(yTrue, yPred *mat.VecDense) (float64, error) {
	mse, err := MSE(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return math.Sqrt(mse), nil
}

// WAPE computes the weighted absolute percentage error,
// sum(|actual-predicted|) / sum(|actual|). A range with zero total actual
// magnitude makes the ratio undefined; by policy the result is then exactly
// 0 and a warning is emitted instead of an error, since a range with no
// sales and no predicted sales error carries no signal to report.
func WAPE(yTrue, yPred *mat.VecDense) (float64, error) {
	n := yTrue.Len()
	if n == 0 {
		return 0, errors.NewValueError("WAPE", "empty vector")
	}
	if yPred.Len() != n {
		return 0, errors.NewDimensionError("WAPE", n, yPred.Len(), 0)
	}

	var num, den float64
	for i := 0; i < n; i++ {
		num += math.Abs(yTrue.AtVec(i) - yPred.AtVec(i))
		den += math.Abs(yTrue.AtVec(i))
	}
	if den == 0 {
		errors.Warn(errors.NewUndefinedMetricWarning("WAPE", "zero total actual magnitude", 0))
		return 0, nil
	}
	return num / den, nil
}

// Evaluate computes the full accuracy report for equal-length actual and
// predicted sequences.
func Evaluate(yTrue, yPred *mat.VecDense) (*Report, error) {
	mae, err := MAE(yTrue, yPred)
	if err != nil {
		return nil, err
	}
	rmse, err := RMSE(yTrue, yPred)
	if err != nil {
		return nil, err
	}
	wape, err := WAPE(yTrue, yPred)
	if err != nil {
		return nil, err
	}
	return &Report{MAE: mae, RMSE: rmse, WAPE: wape}, nil
}

// EvaluateColumns is Evaluate over n×1 matrices, the shape models predict
// into.
func EvaluateColumns(yTrue, yPred mat.Matrix) (*Report, error) {
	rTrue, cTrue := yTrue.Dims()
	rPred, cPred := yPred.Dims()
	if cTrue != 1 || cPred != 1 {
		return nil, errors.NewValueError("EvaluateColumns", "inputs must be column matrices")
	}
	if rTrue != rPred {
		return nil, errors.NewDimensionError("EvaluateColumns", rTrue, rPred, 0)
	}

	tv := mat.NewVecDense(rTrue, nil)
	pv := mat.NewVecDense(rPred, nil)
	for i := 0; i < rTrue; i++ {
		tv.SetVec(i, yTrue.At(i, 0))
		pv.SetVec(i, yPred.At(i, 0))
	}
	return Evaluate(tv, pv)
}
