// Package gbt implements the gradient-boosted-tree regressor used as the
// primary forecasting model: an L2-objective boosting loop with exact greedy
// split search, row/feature subsampling, validation-based early stopping, and
// additive per-feature prediction attributions.
package gbt

import (
	"encoding/json"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/demandcast/demandcast/pkg/errors"
	"github.com/demandcast/demandcast/pkg/parallel"
)

// parallelRowThreshold is the batch size above which row-wise scoring fans
// out across CPU cores.
const parallelRowThreshold = 2048

// Node is a single node of a regression tree. Internal nodes carry the split
// and a cover-weighted expected value used by attribution; leaves carry the
// fitted output.
type Node struct {
	ID         int     `json:"id"`
	Leaf       bool    `json:"leaf"`
	LeftChild  int     `json:"left"`
	RightChild int     `json:"right"`
	Feature    int     `json:"feature"`
	Threshold  float64 `json:"threshold"`
	Value      float64 `json:"value"`
	Count      int     `json:"count"`
	Gain       float64 `json:"gain"`
}

// Tree is one member of the boosted ensemble. Node 0 is the root.
type Tree struct {
	Nodes     []Node  `json:"nodes"`
	Shrinkage float64 `json:"shrinkage"`
}

// predictNode walks a sample to its leaf and returns the unscaled leaf value.
func (t *Tree) predictNode(x []float64) float64 {
	idx := 0
	for idx >= 0 && idx < len(t.Nodes) {
		node := &t.Nodes[idx]
		if node.Leaf {
			return node.Value
		}
		if x[node.Feature] <= node.Threshold || math.IsNaN(x[node.Feature]) {
			idx = node.LeftChild
		} else {
			idx = node.RightChild
		}
	}
	return 0
}

// Predict returns the shrinkage-scaled contribution of this tree.
func (t *Tree) Predict(x []float64) float64 {
	return t.predictNode(x) * t.Shrinkage
}

// Model is an immutable trained regressor: the fitted ensemble, the exact
// feature schema it was trained on (order matters for attribution), and the
// hyperparameter configuration used. Models are created by the Trainer and
// never mutated afterwards.
type Model struct {
	FeatureNames []string `json:"feature_names"`
	Params       Params   `json:"params"`
	InitScore    float64  `json:"init_score"`
	Trees        []Tree   `json:"trees"`
}

// NumFeatures returns the width of the training schema.
func (m *Model) NumFeatures() int {
	return len(m.FeatureNames)
}

// IsFitted reports whether the model went through a successful fit.
func (m *Model) IsFitted() bool {
	return len(m.Trees) > 0
}

// PredictRow scores a single feature vector.
func (m *Model) PredictRow(x []float64) (float64, error) {
	if !m.IsFitted() {
		return 0, errors.NewNotFittedError("gbt.Model", "PredictRow")
	}
	if len(x) != m.NumFeatures() {
		return 0, errors.NewDimensionError("gbt.Model.PredictRow", m.NumFeatures(), len(x), 1)
	}
	pred := m.InitScore
	for i := range m.Trees {
		pred += m.Trees[i].Predict(x)
	}
	return pred, nil
}

// Predict scores every row of the design matrix and returns a column of
// predictions.
func (m *Model) Predict(X mat.Matrix) (*mat.Dense, error) {
	if !m.IsFitted() {
		return nil, errors.NewNotFittedError("gbt.Model", "Predict")
	}
	rows, cols := X.Dims()
	if cols != m.NumFeatures() {
		return nil, errors.NewDimensionError("gbt.Model.Predict", m.NumFeatures(), cols, 1)
	}

	out := mat.NewDense(rows, 1, nil)
	parallel.ChunkedWithThreshold(rows, parallelRowThreshold, func(start, end int) {
		x := make([]float64, cols)
		for i := start; i < end; i++ {
			mat.Row(x, i, X)
			pred := m.InitScore
			for t := range m.Trees {
				pred += m.Trees[t].Predict(x)
			}
			out.Set(i, 0, pred)
		}
	})
	return out, nil
}

// MarshalBinary serializes the model as JSON for the artifact bundle.
func (m *Model) MarshalBinary() ([]byte, error) {
	return json.Marshal(m)
}

// UnmarshalBinary restores a model serialized with MarshalBinary.
func (m *Model) UnmarshalBinary(data []byte) error {
	return errors.Wrap(json.Unmarshal(data, m), "gbt: decode model")
}
