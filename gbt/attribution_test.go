package gbt

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestContributionsAdditivity(t *testing.T) {
	X, y := syntheticData(120)
	params := testParams()
	params.BaggingFraction = 0.8
	params.BaggingFreq = 2
	trainer := NewTrainer(params).WithFeatureNames([]string{"x0", "x1"})
	if err := trainer.Fit(X, y); err != nil {
		t.Fatalf("Fit() error = %v", err)
	}
	model, err := trainer.Model()
	if err != nil {
		t.Fatalf("Model() error = %v", err)
	}

	attr, err := model.Contributions(X)
	if err != nil {
		t.Fatalf("Contributions() error = %v", err)
	}
	preds, err := model.Predict(X)
	if err != nil {
		t.Fatalf("Predict() error = %v", err)
	}

	rows, cols := attr.Values.Dims()
	for i := 0; i < rows; i++ {
		sum := attr.BaseValue
		for j := 0; j < cols; j++ {
			sum += attr.Values.At(i, j)
		}
		if diff := math.Abs(sum - preds.At(i, 0)); diff > 1e-4 {
			t.Fatalf("row %d: base + contributions = %v, prediction = %v (diff %v)",
				i, sum, preds.At(i, 0), diff)
		}
	}
}

func TestContributionsCreditTheSignalFeature(t *testing.T) {
	// Only x0 carries signal; x1 is constant. All credit must land on x0.
	n := 80
	X := mat.NewDense(n, 2, nil)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		X.Set(i, 0, float64(i%8))
		X.Set(i, 1, 1.0)
		y.Set(i, 0, 5*float64(i%8))
	}

	trainer := NewTrainer(testParams())
	if err := trainer.Fit(X, y); err != nil {
		t.Fatalf("Fit() error = %v", err)
	}
	model, err := trainer.Model()
	if err != nil {
		t.Fatalf("Model() error = %v", err)
	}

	attr, err := model.Contributions(X)
	if err != nil {
		t.Fatalf("Contributions() error = %v", err)
	}

	var abs0, abs1 float64
	for i := 0; i < n; i++ {
		abs0 += math.Abs(attr.Values.At(i, 0))
		abs1 += math.Abs(attr.Values.At(i, 1))
	}
	if abs1 != 0 {
		t.Errorf("constant feature received credit %v, want 0", abs1)
	}
	if abs0 == 0 {
		t.Error("signal feature received no credit")
	}
}

func TestContributionsMissingValuesStayAdditive(t *testing.T) {
	X, y := syntheticData(120)
	trainer := NewTrainer(testParams())
	if err := trainer.Fit(X, y); err != nil {
		t.Fatalf("Fit() error = %v", err)
	}
	model, err := trainer.Model()
	if err != nil {
		t.Fatalf("Model() error = %v", err)
	}

	probe := mat.NewDense(2, 2, []float64{
		math.NaN(), 2,
		4, math.NaN(),
	})
	attr, err := model.Contributions(probe)
	if err != nil {
		t.Fatalf("Contributions() error = %v", err)
	}
	preds, err := model.Predict(probe)
	if err != nil {
		t.Fatalf("Predict() error = %v", err)
	}

	for i := 0; i < 2; i++ {
		sum := attr.BaseValue
		for j := 0; j < 2; j++ {
			sum += attr.Values.At(i, j)
		}
		if diff := math.Abs(sum - preds.At(i, 0)); diff > 1e-4 {
			t.Errorf("row %d with missing values: additivity off by %v", i, diff)
		}
	}
}

func TestContributionsErrors(t *testing.T) {
	model := &Model{}
	if _, err := model.Contributions(mat.NewDense(1, 1, nil)); err == nil {
		t.Error("Contributions() on unfitted model: expected error")
	}

	X, y := syntheticData(60)
	trainer := NewTrainer(testParams())
	if err := trainer.Fit(X, y); err != nil {
		t.Fatalf("Fit() error = %v", err)
	}
	fitted, err := trainer.Model()
	if err != nil {
		t.Fatalf("Model() error = %v", err)
	}
	if _, err := fitted.Contributions(mat.NewDense(3, 5, nil)); err == nil {
		t.Error("Contributions() with wrong width: expected error")
	}
}
